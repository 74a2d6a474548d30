package identity

import (
	"context"
	"fmt"

	"github.com/dmitrymomot/promptcredits/pkg/jwt"
)

// HMACVerifier accepts tokens issued by a shared-secret jwt.Service.
type HMACVerifier struct {
	svc *jwt.Service
}

func NewHMACVerifier(svc *jwt.Service) *HMACVerifier {
	return &HMACVerifier{svc: svc}
}

func (v *HMACVerifier) Verify(_ context.Context, token string) (Identity, error) {
	claims, err := v.svc.Parse(token)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %w", ErrUnauthorized, err)
	}
	if claims.Subject == "" {
		return Identity{}, fmt.Errorf("%w: %w", ErrUnauthorized, ErrMissingSubject)
	}
	return Identity{UserID: claims.Subject, Email: claims.Email}, nil
}
