package environment

import (
	"context"
	"strings"
)

// Environment represents the deployment environment.
type Environment string

const (
	Development Environment = "development"
	Staging     Environment = "staging"
	Production  Environment = "production"
)

// Parse maps common spellings ("prod", "stage", "dev") onto an Environment.
// Unknown values fall back to Development.
func Parse(s string) Environment {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "production", "prod":
		return Production
	case "staging", "stage":
		return Staging
	default:
		return Development
	}
}

func (e Environment) IsProduction() bool { return e == Production }

type contextKey struct{}

// WithContext adds environment to context.
func WithContext(ctx context.Context, env Environment) context.Context {
	return context.WithValue(ctx, contextKey{}, env)
}

// FromContext retrieves environment from context, defaulting to Development.
func FromContext(ctx context.Context) Environment {
	if ctx == nil {
		return Development
	}
	env, ok := ctx.Value(contextKey{}).(Environment)
	if !ok {
		return Development
	}
	return env
}

// IsProduction reports whether the request runs in production.
func IsProduction(ctx context.Context) bool {
	return FromContext(ctx) == Production
}
