package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
)

// MaxBodyBytes caps JSON request bodies.
const MaxBodyBytes = 64 << 10

// BindJSON decodes a single JSON object from the request body into v.
// A missing Content-Type is tolerated, any other media type is rejected.
func BindJSON(r *http.Request, v any) error {
	if ct := r.Header.Get("Content-Type"); ct != "" {
		mediaType, _, err := mime.ParseMediaType(ct)
		if err != nil || mediaType != "application/json" {
			return ErrUnsupportedMedia.WithMessage("expected application/json")
		}
	}

	dec := json.NewDecoder(io.LimitReader(r.Body, MaxBodyBytes))
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return ErrBadRequest.WithMessage("empty request body")
		}
		return ErrBadRequest.WithMessage(fmt.Sprintf("invalid JSON: %v", err))
	}
	if dec.More() {
		return ErrBadRequest.WithMessage("unexpected data after JSON object")
	}
	return nil
}
