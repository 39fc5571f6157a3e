// Package auth implements a minimal credential and session-token core:
// user registration backed by a Bun repository, bcrypt password
// verification, HS256 JWT issuance, and bearer-token checks for
// protected routes.
//
// Registration:
//   - RegisterUserHandler validates and persists a new User inside a
//     transaction. Username uniqueness is guarded twice: a lookup for a
//     clean conflict response, and the database unique constraint as the
//     race-proof backstop.
//
// Login:
//   - Auther verifies credentials through an IdentityProvider and signs a
//     one-hour session token. Unknown users and wrong passwords are
//     indistinguishable to callers so usernames cannot be enumerated.
//
// Token checks:
//   - TokenService validates signature before expiry and never persists
//     tokens server side. The middleware/jwtware sub-package gates HTTP
//     routes with a pluggable TokenValidator.
package auth
