package api

import (
	"net/http"

	"github.com/dmitrymomot/promptcredits/core"
	"github.com/dmitrymomot/promptcredits/pkg/logger"
	"github.com/dmitrymomot/promptcredits/pkg/sanitizer"
	"github.com/dmitrymomot/promptcredits/pkg/validator"
	"github.com/dmitrymomot/promptcredits/svc/identity"
	"github.com/dmitrymomot/promptcredits/svc/ledger"
)

const (
	minPromptLength = 10
	maxPromptLength = 2000
)

type enhanceRequest struct {
	OriginalPrompt string `json:"originalPrompt"`
}

type enhanceResponse struct {
	EnhancedText string           `json:"enhancedText"`
	Remaining    ledger.Remaining `json:"remaining"`
}

// enhance checks the entitlement, calls the model and only then spends.
// The ledger is untouched when the model call fails.
func (h *handlers) enhance(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := identity.UserID(ctx)

	var req enhanceRequest
	if err := core.BindJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	text := sanitizer.Prompt(req.OriginalPrompt)
	if err := validator.Apply(
		validator.Required("originalPrompt", text),
		validator.LenBetween("originalPrompt", text, minPromptLength, maxPromptLength),
	); err != nil {
		h.fail(w, r, err)
		return
	}

	l, err := h.ledger.Get(ctx, userID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if !ledger.CanConsume(l) {
		h.fail(w, r, ledger.ErrInsufficientCredits)
		return
	}

	enhanced, err := h.enhancer.Enhance(ctx, text)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	remaining, rec, err := h.ledger.Spend(ctx, userID, ledger.Usage{InputText: text, OutputText: enhanced})
	if err != nil {
		h.fail(w, r, err)
		return
	}

	h.log.InfoContext(ctx, "prompt enhanced",
		logger.PlanID(rec.PlanID),
		logger.Credits("charged", int64(rec.CreditsCharged)),
	)
	core.JSON(w, http.StatusOK, enhanceResponse{EnhancedText: enhanced, Remaining: remaining})
}

type deductRequest struct {
	OriginalPrompt string `json:"originalPrompt"`
	EnhancedPrompt string `json:"enhancedPrompt"`
}

type deductResponse struct {
	Remaining ledger.Remaining   `json:"remaining"`
	Record    ledger.UsageRecord `json:"record"`
}

// deduct spends one credit for an enhancement produced elsewhere.
func (h *handlers) deduct(w http.ResponseWriter, r *http.Request) {
	var req deductRequest
	if err := core.BindJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	req.OriginalPrompt = sanitizer.Prompt(req.OriginalPrompt)
	req.EnhancedPrompt = sanitizer.Prompt(req.EnhancedPrompt)
	if err := validator.Apply(
		validator.Required("originalPrompt", req.OriginalPrompt),
		validator.Required("enhancedPrompt", req.EnhancedPrompt),
	); err != nil {
		h.fail(w, r, err)
		return
	}

	remaining, rec, err := h.ledger.Spend(r.Context(), identity.UserID(r.Context()), ledger.Usage{
		InputText:  req.OriginalPrompt,
		OutputText: req.EnhancedPrompt,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	core.JSON(w, http.StatusOK, deductResponse{Remaining: remaining, Record: rec})
}
