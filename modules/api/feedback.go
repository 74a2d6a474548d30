package api

import (
	"net/http"

	"github.com/dmitrymomot/promptcredits/core"
	"github.com/dmitrymomot/promptcredits/pkg/sanitizer"
	"github.com/dmitrymomot/promptcredits/svc/identity"
)

type feedbackRequest struct {
	Feedback string `json:"feedback"`
	Rating   int    `json:"rating"`
}

func (h *handlers) submitFeedback(w http.ResponseWriter, r *http.Request) {
	var req feedbackRequest
	if err := core.BindJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}

	id, _ := identity.FromContext(r.Context())
	entry, err := h.feedback.Submit(r.Context(), id.UserID, id.Email, sanitizer.Feedback(req.Feedback), req.Rating)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	core.JSON(w, http.StatusCreated, map[string]any{"ok": true, "id": entry.ID})
}
