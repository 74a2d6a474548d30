package identity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/MicahParks/keyfunc/v2"
	gojwt "github.com/golang-jwt/jwt/v5"
)

type JWKSConfig struct {
	URL             string
	Issuer          string
	Audience        string
	RefreshInterval time.Duration
	Logger          *slog.Logger
}

// JWKSVerifier checks RS256 ID tokens against a remote key set that is
// refreshed in the background.
type JWKSVerifier struct {
	jwks     *keyfunc.JWKS
	issuer   string
	audience string
}

func NewJWKSVerifier(ctx context.Context, cfg JWKSConfig) (*JWKSVerifier, error) {
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}

	jwks, err := keyfunc.Get(cfg.URL, keyfunc.Options{
		Ctx:               ctx,
		RefreshInterval:   cfg.RefreshInterval,
		RefreshUnknownKID: true,
		RefreshRateLimit:  time.Minute,
		RefreshTimeout:    10 * time.Second,
		RefreshErrorHandler: func(err error) {
			log.Error("jwks refresh failed", slog.String("url", cfg.URL), slog.Any("error", err))
		},
	})
	if err != nil {
		return nil, errors.Join(ErrFailedToFetchKS, err)
	}

	return &JWKSVerifier{jwks: jwks, issuer: cfg.Issuer, audience: cfg.Audience}, nil
}

type idTokenClaims struct {
	gojwt.RegisteredClaims
	UserID string `json:"user_id,omitempty"`
	Email  string `json:"email,omitempty"`
}

func (v *JWKSVerifier) Verify(_ context.Context, token string) (Identity, error) {
	opts := []gojwt.ParserOption{
		gojwt.WithValidMethods([]string{"RS256"}),
		gojwt.WithExpirationRequired(),
		gojwt.WithIssuedAt(),
	}
	if v.issuer != "" {
		opts = append(opts, gojwt.WithIssuer(v.issuer))
	}
	if v.audience != "" {
		opts = append(opts, gojwt.WithAudience(v.audience))
	}

	claims := &idTokenClaims{}
	if _, err := gojwt.ParseWithClaims(token, claims, v.jwks.Keyfunc, opts...); err != nil {
		return Identity{}, fmt.Errorf("%w: %w", ErrUnauthorized, err)
	}

	uid := claims.Subject
	if uid == "" {
		uid = claims.UserID
	}
	if uid == "" {
		return Identity{}, fmt.Errorf("%w: %w", ErrUnauthorized, ErrMissingSubject)
	}
	return Identity{UserID: uid, Email: claims.Email}, nil
}

// Close stops the background refresh goroutine.
func (v *JWKSVerifier) Close() {
	if v.jwks != nil {
		v.jwks.EndBackground()
	}
}
