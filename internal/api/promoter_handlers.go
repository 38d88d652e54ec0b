package api

import (
	"net/http"
	"time"

	"github.com/ignite/affiliate-ledger/internal/domain"
	"github.com/ignite/affiliate-ledger/internal/pkg/httputil"
	"github.com/ignite/affiliate-ledger/internal/service/commission"
	"github.com/ignite/affiliate-ledger/internal/service/ledger"
)

// ListMySales handles GET /api/promoters/me/sales.
func (h *Handlers) ListMySales(w http.ResponseWriter, r *http.Request) {
	actor, err := currentPromoter(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	status, err := commissionStatusParam(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	page := ParsePagination(r, defaultPageLimit, maxPageLimit)
	sales, total, err := h.commissions.List(r.Context(), commission.ListFilter{
		PromoterID: actor.ID, Status: status, Skip: page.Skip, Limit: page.Limit,
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

// commissionView is the commission-centric projection of a sale.
type commissionView struct {
	SaleID           string                  `json:"sale_id"`
	OrderID          string                  `json:"order_id"`
	ProductID        string                  `json:"product_id"`
	SaleAmount       string                  `json:"sale_amount"`
	CommissionType   domain.CommissionType   `json:"commission_type,omitempty"`
	CommissionAmount string                  `json:"commission_amount"`
	Status           domain.CommissionStatus `json:"status"`
	RejectionReason  string                  `json:"rejection_reason,omitempty"`
	PaymentReference string                  `json:"payment_reference,omitempty"`
	CreatedAt        time.Time               `json:"created_at"`
}

// ListMyCommissions handles GET /api/promoters/me/commissions.
func (h *Handlers) ListMyCommissions(w http.ResponseWriter, r *http.Request) {
	actor, err := currentPromoter(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	status, err := commissionStatusParam(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	page := ParsePagination(r, defaultPageLimit, maxPageLimit)
	sales, total, err := h.commissions.List(r.Context(), commission.ListFilter{
		PromoterID: actor.ID, Status: status, Skip: page.Skip, Limit: page.Limit,
	})
	if err != nil {
		respondError(w, r, err)
		return
	}
	out := make([]commissionView, 0, len(sales))
	for _, s := range sales {
		out = append(out, commissionView{
			SaleID:           s.ID,
			OrderID:          s.OrderID,
			ProductID:        s.ProductID,
			SaleAmount:       s.SaleAmount.StringFixed(2),
			CommissionType:   s.CommissionType,
			CommissionAmount: s.CommissionAmount.StringFixed(2),
			Status:           s.CommissionStatus,
			RejectionReason:  s.RejectionReason,
			PaymentReference: s.PaymentReference,
			CreatedAt:        s.CreatedAt,
		})
	}
	httputil.OK(w, NewPaginatedResponse(out, page, total))
}

// GetMyWallet handles GET /api/promoters/me/wallet.
func (h *Handlers) GetMyWallet(w http.ResponseWriter, r *http.Request) {
	actor, err := currentPromoter(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	balance, err := h.ledger.BalanceOf(r.Context(), actor.ID)
	if err != nil {
		respondError(w, r, err)
		return
	}
	httputil.OK(w, balance)
}

// ListMyTransactions handles GET /api/promoters/me/wallet/transactions.
func (h *Handlers) ListMyTransactions(w http.ResponseWriter, r *http.Request) {
	actor, err := currentPromoter(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	typ := domain.TransactionType(r.URL.Query().Get("type"))
	if typ != "" && !typ.Valid() {
		respondError(w, r, domain.Invalid("type", "unknown transaction type"))
		return
	}
	page := ParsePagination(r, defaultPageLimit, maxPageLimit)
	entries, total, err := h.ledger.Transactions(r.Context(), ledger.ListFilter{
		PromoterID: actor.ID, Type: typ, Skip: page.Skip, Limit: page.Limit,
	})
	if err != nil {
		respondError(w, r, err)
		return
	}
	if entries == nil {
		entries = []domain.WalletTransaction{}
	}
	httputil.OK(w, NewPaginatedResponse(entries, page, total))
}

// GetMyAnalytics handles GET /api/promoters/me/analytics?days=30.
func (h *Handlers) GetMyAnalytics(w http.ResponseWriter, r *http.Request) {
	actor, err := currentPromoter(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	days := queryInt(r, "days", 30)
	if days < 1 || days > 365 {
		respondError(w, r, domain.Invalid("days", "must be between 1 and 365"))
		return
	}
	report, err := h.analytics.Promoter(r.Context(), actor.ID, days)
	if err != nil {
		respondError(w, r, err)
		return
	}
	httputil.OK(w, report)
}
