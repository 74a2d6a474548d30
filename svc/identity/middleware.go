package identity

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/dmitrymomot/promptcredits/core"
	"github.com/dmitrymomot/promptcredits/pkg/jwt"
	"github.com/dmitrymomot/promptcredits/pkg/logger"
)

// ProvisionFunc runs after every successful verification, before the handler.
type ProvisionFunc func(ctx context.Context, id Identity) error

type middlewareConfig struct {
	extractor jwt.TokenExtractorFunc
	provision ProvisionFunc
	logger    *slog.Logger
}

type MiddlewareOption func(*middlewareConfig)

func WithExtractor(ex jwt.TokenExtractorFunc) MiddlewareOption {
	return func(c *middlewareConfig) {
		if ex != nil {
			c.extractor = ex
		}
	}
}

// WithProvisioning makes sure an account exists for every caller.
func WithProvisioning(fn ProvisionFunc) MiddlewareOption {
	return func(c *middlewareConfig) { c.provision = fn }
}

func WithLogger(l *slog.Logger) MiddlewareOption {
	return func(c *middlewareConfig) {
		if l != nil {
			c.logger = l
		}
	}
}

// Middleware rejects requests without a valid bearer token with 401 and
// stores the Identity in the request context otherwise.
func Middleware(v Verifier, opts ...MiddlewareOption) func(http.Handler) http.Handler {
	cfg := middlewareConfig{extractor: jwt.BearerTokenExtractor, logger: slog.Default()}
	for _, opt := range opts {
		opt(&cfg)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			token, err := cfg.extractor(r)
			if err != nil {
				core.JSONError(w, core.ErrUnauthorized.WithMessage("No valid token provided"))
				return
			}

			id, err := v.Verify(ctx, token)
			if err != nil {
				cfg.logger.DebugContext(ctx, "token verification failed", logger.Component("identity"), logger.Error(err))
				core.JSONError(w, core.ErrUnauthorized.WithMessage("Invalid token"))
				return
			}

			ctx = WithContext(ctx, id)
			if cfg.provision != nil {
				if err := cfg.provision(ctx, id); err != nil {
					cfg.logger.ErrorContext(ctx, "account provisioning failed",
						logger.Component("identity"),
						logger.UserID(id.UserID),
						logger.Error(err),
					)
					core.JSONError(w, core.ErrInternalServerError)
					return
				}
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
