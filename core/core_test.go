package core_test

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/promptcredits/core"
	"github.com/dmitrymomot/promptcredits/pkg/validator"
)

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) core.ErrorDetail {
	t.Helper()
	var body core.ErrorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body.Error
}

func TestJSONError(t *testing.T) {
	t.Parallel()

	t.Run("http error keeps status and key", func(t *testing.T) {
		t.Parallel()
		rec := httptest.NewRecorder()
		core.JSONError(rec, fmt.Errorf("spend: %w", core.ErrPaymentRequired.WithMessage("upgrade your plan")))

		assert.Equal(t, http.StatusPaymentRequired, rec.Code)
		d := decodeError(t, rec)
		assert.Equal(t, "insufficient_credits", d.Code)
		assert.Equal(t, "upgrade your plan", d.Message)
	})

	t.Run("validation errors carry details", func(t *testing.T) {
		t.Parallel()
		rec := httptest.NewRecorder()
		core.JSONError(rec, validator.Apply(validator.Required("text", "")))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		d := decodeError(t, rec)
		assert.Equal(t, "validation_error", d.Code)
		assert.Contains(t, d.Details, "text")
	})

	t.Run("unknown errors are hidden", func(t *testing.T) {
		t.Parallel()
		rec := httptest.NewRecorder()
		core.JSONError(rec, errors.New("pq: connection refused"))

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		d := decodeError(t, rec)
		assert.Equal(t, "internal_server_error", d.Code)
		assert.NotContains(t, d.Message, "pq")
	})
}

func TestHTTPError_Is(t *testing.T) {
	t.Parallel()
	err := fmt.Errorf("wrap: %w", core.ErrNotFound.WithMessage("order not found"))
	assert.ErrorIs(t, err, core.ErrNotFound)
	assert.NotErrorIs(t, err, core.ErrBadRequest)
}

func TestBindJSON(t *testing.T) {
	t.Parallel()

	type payload struct {
		Text string `json:"text"`
	}

	newReq := func(ct, body string) *http.Request {
		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
		if ct != "" {
			r.Header.Set("Content-Type", ct)
		}
		return r
	}

	var p payload
	require.NoError(t, core.BindJSON(newReq("application/json; charset=utf-8", `{"text":"hi","extra":1}`), &p))
	assert.Equal(t, "hi", p.Text)

	require.NoError(t, core.BindJSON(newReq("", `{"text":"no header"}`), &p))
	assert.Equal(t, "no header", p.Text)

	assert.ErrorIs(t, core.BindJSON(newReq("text/plain", `{}`), &p), core.ErrUnsupportedMedia)
	assert.ErrorIs(t, core.BindJSON(newReq("application/json", ``), &p), core.ErrBadRequest)
	assert.ErrorIs(t, core.BindJSON(newReq("application/json", `{"text":`), &p), core.ErrBadRequest)
	assert.ErrorIs(t, core.BindJSON(newReq("application/json", `{} {}`), &p), core.ErrBadRequest)
}
