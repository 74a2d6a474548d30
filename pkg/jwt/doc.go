// Package jwt issues and parses HS256 JSON Web Tokens on top of
// github.com/golang-jwt/jwt/v5 and extracts raw tokens from HTTP requests.
//
// Production tokens come from the identity provider and are verified by
// svc/identity against its JWKS. This package covers the symmetric case used
// for local development and tests:
//
//	svc, err := jwt.NewFromString(secret, jwt.WithIssuer("promptcredits-dev"))
//	token, err := svc.Issue("user-1", "user@example.com")
//	claims, err := svc.Parse(token)
package jwt
