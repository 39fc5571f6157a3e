package main

import (
	env "github.com/caarlos0/env/v11"
	"github.com/goliatone/go-errors"
)

// Config is the process-wide configuration, loaded once at startup and
// injected into the auth service. The signing key has no default: a
// publicly known value must never sign production tokens.
type Config struct {
	HTTPAddr        string `env:"HTTP_ADDR" envDefault:":8080"`
	DatabaseDSN     string `env:"DATABASE_DSN" envDefault:"file:auth.db?cache=shared"`
	SigningKey      string `env:"AUTH_SIGNING_KEY,required"`
	SigningMethod   string `env:"AUTH_SIGNING_METHOD" envDefault:"HS256"`
	ContextKey      string `env:"AUTH_CONTEXT_KEY" envDefault:"user"`
	TokenExpiration int    `env:"AUTH_TOKEN_TTL_HOURS" envDefault:"1"`
	TokenLookup     string `env:"AUTH_TOKEN_LOOKUP" envDefault:"header:Authorization"`
	AuthScheme      string `env:"AUTH_SCHEME" envDefault:"Bearer"`
	Issuer          string `env:"AUTH_ISSUER" envDefault:"go-auth-api"`
	Debug           bool   `env:"DEBUG" envDefault:"false"`
}

func LoadConfig() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, errors.Wrap(err, errors.CategoryBadInput, "failed to parse environment configuration")
	}

	if cfg.SigningKey == "" {
		return nil, errors.New("AUTH_SIGNING_KEY must not be empty", errors.CategoryBadInput)
	}

	return cfg, nil
}

func (c *Config) GetSigningKey() string {
	return c.SigningKey
}

func (c *Config) GetSigningMethod() string {
	return c.SigningMethod
}

func (c *Config) GetContextKey() string {
	return c.ContextKey
}

func (c *Config) GetTokenExpiration() int {
	return c.TokenExpiration
}

func (c *Config) GetTokenLookup() string {
	return c.TokenLookup
}

func (c *Config) GetAuthScheme() string {
	return c.AuthScheme
}

func (c *Config) GetIssuer() string {
	return c.Issuer
}
