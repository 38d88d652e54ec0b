package memory

import (
	"context"

	"github.com/ignite/affiliate-ledger/internal/domain"
	"github.com/ignite/affiliate-ledger/internal/service/withdrawal"
)

// WithdrawalRepo implements withdrawal.Repository.
type WithdrawalRepo struct{ s *Store }

func (r *WithdrawalRepo) InPromoterTx(ctx context.Context, promoterID string, fn func(ctx context.Context, tx withdrawal.Tx) error) error {
	return r.s.inPromoterTx(ctx, promoterID, func(ctx context.Context, tx *Tx) error { return fn(ctx, tx) })
}

func (r *WithdrawalRepo) GetWithdrawal(_ context.Context, id string) (*domain.WithdrawalRequest, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return r.s.getWithdrawal(id)
}

func (s *Store) getWithdrawal(id string) (*domain.WithdrawalRequest, error) {
	w, ok := s.withdrawals[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	out := *w
	return &out, nil
}

func (r *WithdrawalRepo) ListWithdrawals(_ context.Context, f withdrawal.ListFilter) ([]domain.WithdrawalRequest, int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []domain.WithdrawalRequest
	for _, id := range r.s.withdrawalOrder {
		w := r.s.withdrawals[id]
		if f.PromoterID != "" && w.PromoterID != f.PromoterID {
			continue
		}
		if f.Status != "" && w.Status != f.Status {
			continue
		}
		out = append(out, *w)
	}
	newestFirst(out, func(w domain.WithdrawalRequest) int64 { return w.CreatedAt.UnixNano() })
	return page(out, f.Skip, f.Limit), len(out), nil
}

func (r *WithdrawalRepo) CountWithdrawals(_ context.Context, promoterID string) (map[domain.WithdrawalStatus]int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	counts := make(map[domain.WithdrawalStatus]int)
	for _, w := range r.s.withdrawals {
		if w.PromoterID == promoterID {
			counts[w.Status]++
		}
	}
	return counts, nil
}

func (tx *Tx) PendingWithdrawal(_ context.Context, promoterID string) (*domain.WithdrawalRequest, error) {
	tx.s.mu.RLock()
	defer tx.s.mu.RUnlock()
	for _, w := range tx.s.withdrawals {
		if w.PromoterID == promoterID && w.Status == domain.WithdrawalPending {
			out := *w
			return &out, nil
		}
	}
	return nil, nil
}

func (tx *Tx) InsertWithdrawal(_ context.Context, w *domain.WithdrawalRequest) error {
	tx.s.mu.Lock()
	defer tx.s.mu.Unlock()
	for _, existing := range tx.s.withdrawals {
		if existing.PromoterID == w.PromoterID && existing.Status == domain.WithdrawalPending {
			return domain.ErrDuplicatePendingRequest
		}
	}
	stored := *w
	tx.s.withdrawals[w.ID] = &stored
	tx.s.withdrawalOrder = append(tx.s.withdrawalOrder, w.ID)
	id := w.ID
	tx.undo = append(tx.undo, func() {
		delete(tx.s.withdrawals, id)
		tx.s.withdrawalOrder = removeByID(tx.s.withdrawalOrder, id, func(s string) string { return s })
	})
	return nil
}

func (tx *Tx) GetWithdrawal(_ context.Context, id string) (*domain.WithdrawalRequest, error) {
	tx.s.mu.RLock()
	defer tx.s.mu.RUnlock()
	return tx.s.getWithdrawal(id)
}

func (tx *Tx) UpdateWithdrawal(_ context.Context, w *domain.WithdrawalRequest, from domain.WithdrawalStatus, actorID, reason string) error {
	tx.s.mu.Lock()
	defer tx.s.mu.Unlock()
	stored, ok := tx.s.withdrawals[w.ID]
	if !ok {
		return domain.ErrNotFound
	}
	if stored.Status != from {
		return domain.ErrInvalidTransition
	}
	before := *stored
	*stored = *w
	undoAudit := tx.s.addAudit(domain.AuditEntry{
		EntityType: domain.AuditWithdrawal,
		EntityID:   w.ID,
		FromStatus: string(from),
		ToStatus:   string(w.Status),
		ActorID:    actorID,
		Reason:     reason,
		CreatedAt:  w.UpdatedAt,
	})
	tx.undo = append(tx.undo, func() {
		*stored = before
		undoAudit()
	})
	return nil
}
