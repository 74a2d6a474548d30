package identity_test

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	gojwt "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/promptcredits/pkg/jwt"
	"github.com/dmitrymomot/promptcredits/pkg/logger"
	"github.com/dmitrymomot/promptcredits/svc/identity"
)

const hmacSecret = "0123456789abcdef0123456789abcdef"

func hmacVerifier(t *testing.T) (*identity.HMACVerifier, *jwt.Service) {
	t.Helper()
	svc, err := jwt.NewFromString(hmacSecret)
	require.NoError(t, err)
	return identity.NewHMACVerifier(svc), svc
}

func TestHMACVerifier(t *testing.T) {
	t.Parallel()
	v, issuer := hmacVerifier(t)

	token, err := issuer.Issue("user-1", "u@example.com")
	require.NoError(t, err)

	id, err := v.Verify(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, identity.Identity{UserID: "user-1", Email: "u@example.com"}, id)

	_, err = v.Verify(context.Background(), "garbage")
	assert.ErrorIs(t, err, identity.ErrUnauthorized)

	noSub, err := issuer.Issue("", "")
	require.NoError(t, err)
	_, err = v.Verify(context.Background(), noSub)
	assert.ErrorIs(t, err, identity.ErrMissingSubject)
}

func TestMiddleware(t *testing.T) {
	t.Parallel()
	v, issuer := hmacVerifier(t)
	token, err := issuer.Issue("user-1", "")
	require.NoError(t, err)

	var provisioned []string
	handler := identity.Middleware(v,
		identity.WithLogger(logger.Nop()),
		identity.WithProvisioning(func(_ context.Context, id identity.Identity) error {
			if id.UserID == "broken" {
				return errors.New("db down")
			}
			provisioned = append(provisioned, id.UserID)
			return nil
		}),
	)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(identity.UserID(r.Context())))
	}))

	t.Run("valid token", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/credits", nil)
		r.Header.Set("Authorization", "Bearer "+token)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, r)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "user-1", w.Body.String())
		assert.Equal(t, []string{"user-1"}, provisioned)
	})

	t.Run("missing token", func(t *testing.T) {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/credits", nil))
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Contains(t, w.Body.String(), "unauthorized")
	})

	t.Run("invalid token", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/credits", nil)
		r.Header.Set("Authorization", "Bearer nope")
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, r)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("provisioning failure", func(t *testing.T) {
		broken, err := issuer.Issue("broken", "")
		require.NoError(t, err)
		r := httptest.NewRequest(http.MethodGet, "/credits", nil)
		r.Header.Set("Authorization", "Bearer "+broken)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, r)
		assert.Equal(t, http.StatusInternalServerError, w.Code)
	})
}

func jwksServer(t *testing.T, key *rsa.PrivateKey, kid string) *httptest.Server {
	t.Helper()
	pub := key.PublicKey
	doc := map[string]any{
		"keys": []map[string]string{{
			"kty": "RSA",
			"kid": kid,
			"alg": "RS256",
			"use": "sig",
			"n":   base64.RawURLEncoding.EncodeToString(pub.N.Bytes()),
			"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(pub.E)).Bytes()),
		}},
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(doc)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func signRS256(t *testing.T, key *rsa.PrivateKey, kid string, claims gojwt.MapClaims) string {
	t.Helper()
	tok := gojwt.NewWithClaims(gojwt.SigningMethodRS256, claims)
	tok.Header["kid"] = kid
	s, err := tok.SignedString(key)
	require.NoError(t, err)
	return s
}

func TestJWKSVerifier(t *testing.T) {
	t.Parallel()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	srv := jwksServer(t, key, "k1")

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	v, err := identity.NewJWKSVerifier(ctx, identity.JWKSConfig{
		URL:      srv.URL,
		Issuer:   "https://securetoken.google.com/demo",
		Audience: "demo",
		Logger:   logger.Nop(),
	})
	require.NoError(t, err)
	t.Cleanup(v.Close)

	now := time.Now()
	base := func() gojwt.MapClaims {
		return gojwt.MapClaims{
			"iss":   "https://securetoken.google.com/demo",
			"aud":   "demo",
			"sub":   "firebase-uid",
			"email": "u@example.com",
			"iat":   now.Add(-time.Minute).Unix(),
			"exp":   now.Add(time.Hour).Unix(),
		}
	}

	id, err := v.Verify(ctx, signRS256(t, key, "k1", base()))
	require.NoError(t, err)
	assert.Equal(t, identity.Identity{UserID: "firebase-uid", Email: "u@example.com"}, id)

	t.Run("user_id fallback", func(t *testing.T) {
		c := base()
		delete(c, "sub")
		c["user_id"] = "legacy-uid"
		id, err := v.Verify(ctx, signRS256(t, key, "k1", c))
		require.NoError(t, err)
		assert.Equal(t, "legacy-uid", id.UserID)
	})

	t.Run("wrong audience", func(t *testing.T) {
		c := base()
		c["aud"] = "other-project"
		_, err := v.Verify(ctx, signRS256(t, key, "k1", c))
		assert.ErrorIs(t, err, identity.ErrUnauthorized)
	})

	t.Run("wrong issuer", func(t *testing.T) {
		c := base()
		c["iss"] = "https://evil.example.com"
		_, err := v.Verify(ctx, signRS256(t, key, "k1", c))
		assert.ErrorIs(t, err, identity.ErrUnauthorized)
	})

	t.Run("expired", func(t *testing.T) {
		c := base()
		c["exp"] = now.Add(-time.Minute).Unix()
		_, err := v.Verify(ctx, signRS256(t, key, "k1", c))
		assert.ErrorIs(t, err, identity.ErrUnauthorized)
	})

	t.Run("foreign key", func(t *testing.T) {
		other, err := rsa.GenerateKey(rand.Reader, 2048)
		require.NoError(t, err)
		_, err = v.Verify(ctx, signRS256(t, other, "k1", base()))
		assert.ErrorIs(t, err, identity.ErrUnauthorized)
	})
}

func TestLoggerExtractor(t *testing.T) {
	t.Parallel()
	ex := identity.LoggerExtractor()

	_, ok := ex(context.Background())
	assert.False(t, ok)

	attr, ok := ex(identity.WithContext(context.Background(), identity.Identity{UserID: "u"}))
	require.True(t, ok)
	assert.Equal(t, "user_id", attr.Key)
	assert.Equal(t, "u", attr.Value.String())
}

func TestNewVerifier_UnknownMode(t *testing.T) {
	t.Parallel()
	_, _, err := identity.NewVerifier(context.Background(), identity.Config{Mode: "saml"})
	assert.ErrorIs(t, err, identity.ErrUnknownMode)
}
