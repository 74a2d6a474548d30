package core

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/dmitrymomot/promptcredits/pkg/validator"
)

// ErrorBody is the JSON envelope for every error response.
type ErrorBody struct {
	Error ErrorDetail `json:"error"`
}

type ErrorDetail struct {
	Code    string              `json:"code"`
	Message string              `json:"message,omitempty"`
	Details map[string][]string `json:"details,omitempty"`
}

// JSON writes v with the given status.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

// JSONError renders err. HTTPError keeps its status and key, validator
// errors become 400 validation_error with per-field details, and anything
// else is a 500 whose message is never exposed.
func JSONError(w http.ResponseWriter, err error) {
	var (
		httpErr HTTPError
		status  = http.StatusInternalServerError
		detail  = ErrorDetail{Code: ErrInternalServerError.Key}
	)

	switch ve := validator.ExtractValidationErrors(err); {
	case ve != nil:
		status = ErrValidation.Code
		detail = ErrorDetail{Code: ErrValidation.Key, Message: "validation failed", Details: ve.Map()}
	case errors.As(err, &httpErr):
		status = httpErr.Code
		detail = ErrorDetail{Code: httpErr.Key, Message: httpErr.Message}
	}

	if detail.Message == "" {
		detail.Message = http.StatusText(status)
	}
	JSON(w, status, ErrorBody{Error: detail})
}
