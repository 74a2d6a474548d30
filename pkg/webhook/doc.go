// Package webhook verifies hex-encoded HMAC-SHA256 signatures used by payment
// provider callbacks, both for raw webhook bodies and for "a|b" style joined
// identifiers returned to the browser after checkout.
package webhook
