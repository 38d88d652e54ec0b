package memory

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ignite/affiliate-ledger/internal/domain"
	"github.com/ignite/affiliate-ledger/internal/service/commission"
)

// SaleRepo implements commission.Repository.
type SaleRepo struct{ s *Store }

func (r *SaleRepo) CreateSale(_ context.Context, sale *domain.AffiliateSale) (*domain.AffiliateSale, bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if id, ok := r.s.saleByOrder[sale.OrderID]; ok {
		stored := *r.s.sales[id]
		return &stored, false, nil
	}
	stored := *sale
	r.s.sales[sale.ID] = &stored
	r.s.saleByOrder[sale.OrderID] = sale.ID
	r.s.saleOrder = append(r.s.saleOrder, sale.ID)
	if entry, ok := sale.CreationAudit(); ok {
		r.s.addAudit(entry)
	}
	out := stored
	return &out, true, nil
}

func (r *SaleRepo) GetSale(_ context.Context, id string) (*domain.AffiliateSale, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return r.s.getSale(id)
}

func (s *Store) getSale(id string) (*domain.AffiliateSale, error) {
	sale, ok := s.sales[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	out := *sale
	return &out, nil
}

func (r *SaleRepo) GetSaleByOrder(_ context.Context, orderID string) (*domain.AffiliateSale, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	id, ok := r.s.saleByOrder[orderID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return r.s.getSale(id)
}

func (r *SaleRepo) ListSales(_ context.Context, f commission.ListFilter) ([]domain.AffiliateSale, int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []domain.AffiliateSale
	for _, id := range r.s.saleOrder {
		sale := r.s.sales[id]
		if f.PromoterID != "" && sale.PromoterID != f.PromoterID {
			continue
		}
		if f.Status != "" && sale.CommissionStatus != f.Status {
			continue
		}
		out = append(out, *sale)
	}
	newestFirst(out, func(s domain.AffiliateSale) int64 { return s.CreatedAt.UnixNano() })
	return page(out, f.Skip, f.Limit), len(out), nil
}

func (r *SaleRepo) SummarizeSales(_ context.Context, promoterID string, since time.Time) (domain.SaleSummary, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	sum := domain.SaleSummary{
		Count:  make(map[domain.CommissionStatus]int),
		Amount: make(map[domain.CommissionStatus]decimal.Decimal),
	}
	for _, sale := range r.s.sales {
		if sale.PromoterID != promoterID || sale.CreatedAt.Before(since) {
			continue
		}
		sum.Count[sale.CommissionStatus]++
		sum.Amount[sale.CommissionStatus] = sum.Amount[sale.CommissionStatus].Add(sale.CommissionAmount)
	}
	return sum, nil
}

func (r *SaleRepo) TransitionSale(_ context.Context, id string, from, to domain.CommissionStatus, change domain.SaleChange) (*domain.AffiliateSale, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	sale, _, err := r.s.transitionSale(id, from, to, change)
	return sale, err
}

func (r *SaleRepo) InPromoterTx(ctx context.Context, promoterID string, fn func(ctx context.Context, tx commission.Tx) error) error {
	return r.s.inPromoterTx(ctx, promoterID, func(ctx context.Context, tx *Tx) error { return fn(ctx, tx) })
}

// transitionSale applies a compare-and-swap status change. Callers hold mu.
func (s *Store) transitionSale(id string, from, to domain.CommissionStatus, change domain.SaleChange) (*domain.AffiliateSale, func(), error) {
	sale, ok := s.sales[id]
	if !ok {
		return nil, nil, domain.ErrNotFound
	}
	if sale.CommissionStatus != from {
		return nil, nil, domain.ErrInvalidTransition
	}
	before := *sale
	sale.Apply(to, change)
	undoAudit := s.addAudit(domain.AuditEntry{
		EntityType: domain.AuditSale,
		EntityID:   id,
		FromStatus: string(from),
		ToStatus:   string(to),
		ActorID:    change.ReviewerID,
		Reason:     change.Reason,
		CreatedAt:  change.At,
	})
	out := *sale
	return &out, func() {
		*sale = before
		undoAudit()
	}, nil
}

// TransitionSale is the in-transaction variant used by payouts.
func (tx *Tx) TransitionSale(_ context.Context, id string, from, to domain.CommissionStatus, change domain.SaleChange) (*domain.AffiliateSale, error) {
	tx.s.mu.Lock()
	defer tx.s.mu.Unlock()
	sale, undo, err := tx.s.transitionSale(id, from, to, change)
	if err != nil {
		return nil, err
	}
	tx.undo = append(tx.undo, undo)
	return sale, nil
}
