package auth

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-auth-api/middleware/jwtware"
)

// ProtectedRoute gates a route group behind bearer-token validation. The
// validator decides validity; the middleware only extracts the raw token
// and stores the resulting claims under the configured context key.
func ProtectedRoute(cfg Config, validator TokenValidator, errorHandler fiber.ErrorHandler) fiber.Handler {
	return jwtware.New(jwtware.Config{
		ErrorHandler:   errorHandler,
		TokenValidator: tokenValidatorAdapter{validator: validator},
		SigningKey: jwtware.SigningKey{
			Key:    []byte(cfg.GetSigningKey()),
			JWTAlg: cfg.GetSigningMethod(),
		},
		AuthScheme:  cfg.GetAuthScheme(),
		ContextKey:  cfg.GetContextKey(),
		TokenLookup: cfg.GetTokenLookup(),
		ContextEnricher: func(ctx context.Context, claims jwtware.AuthClaims) context.Context {
			if ac, ok := claims.(AuthClaims); ok {
				return WithClaimsContext(ctx, ac)
			}
			return ctx
		},
	})
}

// tokenValidatorAdapter bridges the root TokenValidator to the middleware
// interface without an import cycle.
type tokenValidatorAdapter struct {
	validator TokenValidator
}

func (a tokenValidatorAdapter) Validate(raw string) (jwtware.AuthClaims, error) {
	if a.validator == nil {
		return nil, ErrUnableToDecodeSession
	}

	claims, err := a.validator.Validate(raw)
	if err != nil {
		return nil, err
	}

	return claims, nil
}
