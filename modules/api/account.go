package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/dmitrymomot/promptcredits/core"
	"github.com/dmitrymomot/promptcredits/pkg/validator"
	"github.com/dmitrymomot/promptcredits/svc/history"
	"github.com/dmitrymomot/promptcredits/svc/identity"
	"github.com/dmitrymomot/promptcredits/svc/ledger"
	"github.com/dmitrymomot/promptcredits/svc/plans"
)

type creditsResponse struct {
	PlanID      string           `json:"planId"`
	Allotment   int64            `json:"allotment"`
	Consumed    int64            `json:"consumed"`
	Remaining   ledger.Remaining `json:"remaining"`
	Unlimited   bool             `json:"unlimited"`
	PeriodStart time.Time        `json:"periodStart"`
	PeriodEnd   *time.Time       `json:"periodEnd"`
}

func (h *handlers) credits(w http.ResponseWriter, r *http.Request) {
	l, err := h.ledger.Get(r.Context(), identity.UserID(r.Context()))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	core.JSON(w, http.StatusOK, creditsResponse{
		PlanID:      l.PlanID,
		Allotment:   l.Allotment,
		Consumed:    l.Consumed,
		Remaining:   ledger.RemainingOf(l),
		Unlimited:   l.Unlimited,
		PeriodStart: l.PeriodStart,
		PeriodEnd:   l.PeriodEnd,
	})
}

type planView struct {
	plans.Plan
	Currency string `json:"currency"`
}

func (h *handlers) listPlans(w http.ResponseWriter, _ *http.Request) {
	public := h.plans.Public()
	out := make([]planView, 0, len(public))
	for _, p := range public {
		p.Unlimited = h.plans.IsUnlimited(p)
		p.YearlyPrice = p.PriceFor(plans.Yearly)
		out = append(out, planView{Plan: p, Currency: h.plans.Currency()})
	}
	core.JSON(w, http.StatusOK, map[string]any{"plans": out})
}

func (h *handlers) listHistory(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	sort, err := history.ParseSort(q.Get("sort"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	limit, lerr := intParam(q.Get("limit"))
	offset, oerr := intParam(q.Get("offset"))
	if err := validator.Apply(
		validator.Rule{Check: func() bool { return lerr == nil }, Error: validator.ValidationError{Field: "limit", Message: "must be a number"}},
		validator.Rule{Check: func() bool { return oerr == nil }, Error: validator.ValidationError{Field: "offset", Message: "must be a number"}},
	); err != nil {
		h.fail(w, r, err)
		return
	}

	page, err := h.history.List(r.Context(), identity.UserID(r.Context()), history.Query{
		Search: q.Get("q"),
		Sort:   sort,
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	core.JSON(w, http.StatusOK, page)
}

func (h *handlers) deleteHistory(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, core.ErrBadRequest.WithMessage("invalid history id"))
		return
	}
	if err := h.history.Delete(r.Context(), identity.UserID(r.Context()), id); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func intParam(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.Atoi(s)
}
