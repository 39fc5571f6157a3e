//go:build race

package auth

import "golang.org/x/crypto/bcrypt"

func passwordHashCost() int {
	// Race-enabled builds drop to the default cost so suites finish inside
	// their timeouts.
	return bcrypt.DefaultCost
}
