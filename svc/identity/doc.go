// Package identity authenticates API callers.
//
// In production, ID tokens issued by Firebase Auth are verified against the
// provider's JWKS with github.com/golang-jwt/jwt/v5 and
// github.com/MicahParks/keyfunc/v2, checking issuer and audience. For local
// development the "hmac" mode accepts HS256 tokens from pkg/jwt.
//
// Middleware puts the Identity in the request context and, through
// WithProvisioning, creates the caller's free ledger on first sight.
package identity
