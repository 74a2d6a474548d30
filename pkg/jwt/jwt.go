package jwt

import (
	"errors"
	"time"

	gojwt "github.com/golang-jwt/jwt/v5"
)

// Claims are the registered claims plus the account email.
type Claims struct {
	gojwt.RegisteredClaims
	Email string `json:"email,omitempty"`
}

// Service issues and parses HS256 tokens. It backs local development and
// tests, where no identity provider is available.
type Service struct {
	signingKey []byte
	issuer     string
	ttl        time.Duration
}

type Option func(*Service)

func WithIssuer(issuer string) Option {
	return func(s *Service) { s.issuer = issuer }
}

func WithTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

func New(signingKey []byte, opts ...Option) (*Service, error) {
	if len(signingKey) == 0 {
		return nil, ErrMissingSigningKey
	}
	if len(signingKey) < 32 {
		return nil, ErrInvalidSigningKey
	}
	s := &Service{signingKey: signingKey, ttl: time.Hour}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func NewFromString(signingKey string, opts ...Option) (*Service, error) {
	return New([]byte(signingKey), opts...)
}

// Issue signs a token for subject valid for the configured TTL.
func (s *Service) Issue(subject, email string) (string, error) {
	now := time.Now()
	claims := Claims{
		RegisteredClaims: gojwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    s.issuer,
			IssuedAt:  gojwt.NewNumericDate(now),
			ExpiresAt: gojwt.NewNumericDate(now.Add(s.ttl)),
		},
		Email: email,
	}
	return gojwt.NewWithClaims(gojwt.SigningMethodHS256, claims).SignedString(s.signingKey)
}

// Parse validates signature, algorithm, expiry and issuer (when configured).
func (s *Service) Parse(token string) (*Claims, error) {
	opts := []gojwt.ParserOption{
		gojwt.WithValidMethods([]string{gojwt.SigningMethodHS256.Alg()}),
		gojwt.WithExpirationRequired(),
	}
	if s.issuer != "" {
		opts = append(opts, gojwt.WithIssuer(s.issuer))
	}

	claims := &Claims{}
	_, err := gojwt.ParseWithClaims(token, claims, func(*gojwt.Token) (any, error) {
		return s.signingKey, nil
	}, opts...)
	// Every failure matches ErrInvalidToken. Expiry and bad signatures also
	// match their specific sentinel.
	switch {
	case err == nil:
		return claims, nil
	case errors.Is(err, gojwt.ErrTokenExpired):
		return nil, errors.Join(ErrInvalidToken, ErrExpiredToken, err)
	case errors.Is(err, gojwt.ErrTokenSignatureInvalid):
		return nil, errors.Join(ErrInvalidToken, ErrInvalidSignature, err)
	default:
		return nil, errors.Join(ErrInvalidToken, err)
	}
}
