package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ignite/affiliate-ledger/internal/auth"
	"github.com/ignite/affiliate-ledger/internal/domain"
	"github.com/ignite/affiliate-ledger/internal/pkg/httputil"
	"github.com/ignite/affiliate-ledger/internal/service/commission"
	"github.com/ignite/affiliate-ledger/internal/service/withdrawal"
)

type reasonBody struct {
	Reason string `json:"reason"`
}

type paymentBody struct {
	PaymentReference string `json:"payment_reference"`
}

// ---------------------------------------------------------------------------
// Withdrawals
// ---------------------------------------------------------------------------

// AdminListWithdrawals handles GET /api/admin/withdrawals?status=pending.
func (h *Handlers) AdminListWithdrawals(w http.ResponseWriter, r *http.Request) {
	status, err := withdrawalStatusParam(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	page := ParsePagination(r, defaultPageLimit, maxPageLimit)
	items, total, err := h.review.ListWithdrawals(r.Context(), auth.ActorFromContext(r.Context()), withdrawal.ListFilter{
		PromoterID: r.URL.Query().Get("promoter_id"),
		Status:     status,
		Skip:       page.Skip,
		Limit:      page.Limit,
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

// AdminGetWithdrawal handles GET /api/admin/withdrawals/{id}.
func (h *Handlers) AdminGetWithdrawal(w http.ResponseWriter, r *http.Request) {
	wr, err := h.review.GetWithdrawal(r.Context(), auth.ActorFromContext(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	httputil.OK(w, wr)
}

func (h *Handlers) AdminApproveWithdrawal(w http.ResponseWriter, r *http.Request) {
	wr, err := h.review.ApproveWithdrawal(r.Context(), auth.ActorFromContext(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	httputil.OK(w, wr)
}

func (h *Handlers) AdminRejectWithdrawal(w http.ResponseWriter, r *http.Request) {
	var body reasonBody
	if !httputil.Decode(w, r, &body) {
		return
	}
	wr, err := h.review.RejectWithdrawal(r.Context(), auth.ActorFromContext(r.Context()), chi.URLParam(r, "id"), body.Reason)
	if err != nil {
		respondError(w, r, err)
		return
	}
	httputil.OK(w, wr)
}

func (h *Handlers) AdminCompleteWithdrawal(w http.ResponseWriter, r *http.Request) {
	var body paymentBody
	if !httputil.Decode(w, r, &body) {
		return
	}
	wr, err := h.review.CompleteWithdrawal(r.Context(), auth.ActorFromContext(r.Context()), chi.URLParam(r, "id"), body.PaymentReference)
	if err != nil {
		respondError(w, r, err)
		return
	}
	httputil.OK(w, wr)
}

func (h *Handlers) AdminReverseWithdrawal(w http.ResponseWriter, r *http.Request) {
	var body reasonBody
	if !httputil.Decode(w, r, &body) {
		return
	}
	wr, err := h.review.ReverseWithdrawal(r.Context(), auth.ActorFromContext(r.Context()), chi.URLParam(r, "id"), body.Reason)
	if err != nil {
		respondError(w, r, err)
		return
	}
	httputil.OK(w, wr)
}

// ---------------------------------------------------------------------------
// Sales / commissions
// ---------------------------------------------------------------------------

// AdminListSales handles GET /api/admin/sales?status&promoter_id.
func (h *Handlers) AdminListSales(w http.ResponseWriter, r *http.Request) {
	status, err := commissionStatusParam(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	page := ParsePagination(r, defaultPageLimit, maxPageLimit)
	sales, total, err := h.review.ListSales(r.Context(), auth.ActorFromContext(r.Context()), commission.ListFilter{
		PromoterID: r.URL.Query().Get("promoter_id"),
		Status:     status,
		Skip:       page.Skip,
		Limit:      page.Limit,
	})
	if err != nil {
		respondError(w, r, err)
		return
	}
	if sales == nil {
		sales = []domain.AffiliateSale{}
	}
	httputil.OK(w, NewPaginatedResponse(sales, page, total))
}

func (h *Handlers) AdminApproveSale(w http.ResponseWriter, r *http.Request) {
	sale, err := h.review.ApproveCommission(r.Context(), auth.ActorFromContext(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	httputil.OK(w, sale)
}

func (h *Handlers) AdminRejectSale(w http.ResponseWriter, r *http.Request) {
	var body reasonBody
	if !httputil.Decode(w, r, &body) {
		return
	}
	sale, err := h.review.RejectCommission(r.Context(), auth.ActorFromContext(r.Context()), chi.URLParam(r, "id"), body.Reason)
	if err != nil {
		respondError(w, r, err)
		return
	}
	httputil.OK(w, sale)
}

func (h *Handlers) AdminMarkSalePaid(w http.ResponseWriter, r *http.Request) {
	var body paymentBody
	if !httputil.Decode(w, r, &body) {
		return
	}
	sale, err := h.review.MarkCommissionPaid(r.Context(), auth.ActorFromContext(r.Context()), chi.URLParam(r, "id"), body.PaymentReference)
	if err != nil {
		respondError(w, r, err)
		return
	}
	httputil.OK(w, sale)
}

// ---------------------------------------------------------------------------
// Wallets
// ---------------------------------------------------------------------------

// AdminGetWallet handles GET /api/admin/wallets/{promoterId}.
func (h *Handlers) AdminGetWallet(w http.ResponseWriter, r *http.Request) {
	balance, err := h.review.Wallet(r.Context(), auth.ActorFromContext(r.Context()), chi.URLParam(r, "promoterId"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	httputil.OK(w, balance)
}

// AdminReconcileWallet handles POST /api/admin/wallets/{promoterId}/reconcile.
func (h *Handlers) AdminReconcileWallet(w http.ResponseWriter, r *http.Request) {
	balance, err := h.review.Reconcile(r.Context(), auth.ActorFromContext(r.Context()), chi.URLParam(r, "promoterId"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	httputil.OK(w, balance)
}
