package api

import (
	"net/http"

	"github.com/ignite/affiliate-ledger/internal/domain"
	"github.com/ignite/affiliate-ledger/internal/pkg/httputil"
	"github.com/ignite/affiliate-ledger/internal/service/withdrawal"
)

// RequestWithdrawal handles POST /api/withdrawals for the caller's own wallet.
func (h *Handlers) RequestWithdrawal(w http.ResponseWriter, r *http.Request) {
	actor, err := currentPromoter(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	var req withdrawal.Request
	if !httputil.Decode(w, r, &req) {
		return
	}
	created, err := h.withdrawals.RequestWithdrawal(r.Context(), actor.ID, req)
	if err != nil {
		respondError(w, r, err)
		return
	}
	httputil.Created(w, created)
}

// WithdrawalHistory handles GET /api/withdrawals/history.
func (h *Handlers) WithdrawalHistory(w http.ResponseWriter, r *http.Request) {
	actor, err := currentPromoter(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	status, err := withdrawalStatusParam(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	page := ParsePagination(r, defaultPageLimit, maxPageLimit)
	items, total, err := h.withdrawals.List(r.Context(), withdrawal.ListFilter{
		PromoterID: actor.ID, Status: status, Skip: page.Skip, Limit: page.Limit,
	})
	if err != nil {
		respondError(w, r, err)
		return
	}
	if items == nil {
		items = []domain.WithdrawalRequest{}
	}
	httputil.OK(w, NewPaginatedResponse(items, page, total))
}

// WithdrawalStats handles GET /api/withdrawals/stats.
func (h *Handlers) WithdrawalStats(w http.ResponseWriter, r *http.Request) {
	actor, err := currentPromoter(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	stats, err := h.withdrawals.Stats(r.Context(), actor.ID)
	if err != nil {
		respondError(w, r, err)
		return
	}
	httputil.OK(w, stats)
}
