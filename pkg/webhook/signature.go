package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// Sign returns the lowercase hex HMAC-SHA256 of payload keyed by secret.
func Sign(secret string, payload []byte) (string, error) {
	if secret == "" {
		return "", fmt.Errorf("%w: secret is required", ErrInvalidConfiguration)
	}
	h := hmac.New(sha256.New, []byte(secret))
	h.Write(payload)
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Verify checks a hex HMAC-SHA256 signature in constant time.
// Signature case is ignored.
func Verify(secret string, payload []byte, signature string) error {
	if len(payload) == 0 {
		return fmt.Errorf("%w: payload cannot be empty", ErrInvalidPayload)
	}
	if signature == "" {
		return fmt.Errorf("%w: signature is missing", ErrInvalidSignature)
	}
	expected, err := Sign(secret, payload)
	if err != nil {
		return err
	}
	if !hmac.Equal([]byte(expected), []byte(strings.ToLower(strings.TrimSpace(signature)))) {
		return fmt.Errorf("%w: signature mismatch", ErrInvalidSignature)
	}
	return nil
}

// JoinFields builds the signed message for providers that sign a set of
// identifiers rather than a body, e.g. "order_id|payment_id".
func JoinFields(sep string, fields ...string) []byte {
	return []byte(strings.Join(fields, sep))
}
