package identity

import (
	"cmp"
	"context"
	"fmt"
	"time"

	"github.com/dmitrymomot/promptcredits/pkg/jwt"
)

const firebaseJWKSURL = "https://www.googleapis.com/service_accounts/v1/jwk/securetoken@system.gserviceaccount.com"

type Config struct {
	// Mode is "firebase" (JWKS-verified ID tokens) or "hmac" (local HS256).
	Mode            string        `env:"AUTH_MODE" envDefault:"firebase"`
	ProjectID       string        `env:"FIREBASE_PROJECT_ID"`
	JWKSURL         string        `env:"AUTH_JWKS_URL"`
	Issuer          string        `env:"AUTH_ISSUER"`
	Audience        string        `env:"AUTH_AUDIENCE"`
	RefreshInterval time.Duration `env:"AUTH_JWKS_REFRESH" envDefault:"1h"`
	HMACSecret      string        `env:"AUTH_HMAC_SECRET"`
}

// NewVerifier builds the verifier selected by cfg.Mode. The returned close
// function stops background key refresh.
func NewVerifier(ctx context.Context, cfg Config) (Verifier, func(), error) {
	switch cfg.Mode {
	case "firebase", "jwks":
		jwksCfg := JWKSConfig{
			URL:             cfg.JWKSURL,
			Issuer:          cfg.Issuer,
			Audience:        cfg.Audience,
			RefreshInterval: cfg.RefreshInterval,
		}
		if cfg.ProjectID != "" {
			jwksCfg.Issuer = cmp.Or(jwksCfg.Issuer, "https://securetoken.google.com/"+cfg.ProjectID)
			jwksCfg.Audience = cmp.Or(jwksCfg.Audience, cfg.ProjectID)
		}
		jwksCfg.URL = cmp.Or(jwksCfg.URL, firebaseJWKSURL)

		v, err := NewJWKSVerifier(ctx, jwksCfg)
		if err != nil {
			return nil, nil, err
		}
		return v, v.Close, nil
	case "hmac":
		svc, err := jwt.NewFromString(cfg.HMACSecret, jwt.WithIssuer(cfg.Issuer))
		if err != nil {
			return nil, nil, err
		}
		return NewHMACVerifier(svc), func() {}, nil
	default:
		return nil, nil, fmt.Errorf("%w: %q", ErrUnknownMode, cfg.Mode)
	}
}
