package memory

import (
	"context"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ignite/affiliate-ledger/internal/domain"
	"github.com/ignite/affiliate-ledger/internal/service/ledger"
)

// LedgerRepo implements ledger.Store.
type LedgerRepo struct{ s *Store }

func entryKey(typ domain.TransactionType, ref string) string {
	return string(typ) + "\x00" + ref
}

func (r *LedgerRepo) InPromoterTx(ctx context.Context, promoterID string, fn func(ctx context.Context, tx ledger.Tx) error) error {
	return r.s.inPromoterTx(ctx, promoterID, func(ctx context.Context, tx *Tx) error { return fn(ctx, tx) })
}

func (r *LedgerRepo) LedgerTotals(_ context.Context, promoterID string) (domain.LedgerTotals, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return r.s.totals(promoterID), nil
}

func (tx *Tx) ReservedAmount(_ context.Context, promoterID string) (decimal.Decimal, error) {
	tx.s.mu.RLock()
	defer tx.s.mu.RUnlock()
	return tx.s.reserved(promoterID), nil
}

func (tx *Tx) ReplayEntries(_ context.Context, promoterID string, fn func(domain.WalletTransaction) error) error {
	tx.s.mu.RLock()
	var entries []domain.WalletTransaction
	for _, e := range tx.s.entries {
		if e.PromoterID == promoterID {
			entries = append(entries, e)
		}
	}
	tx.s.mu.RUnlock()

	for _, e := range entries {
		if err := fn(e); err != nil {
			return err
		}
	}
	return nil
}

// EntriesBetween visits entries created in [from, to) in append order.
func (r *LedgerRepo) EntriesBetween(_ context.Context, from, to time.Time, fn func(domain.WalletTransaction) error) error {
	r.s.mu.RLock()
	var entries []domain.WalletTransaction
	for _, e := range r.s.entries {
		if !e.CreatedAt.Before(from) && e.CreatedAt.Before(to) {
			entries = append(entries, e)
		}
	}
	r.s.mu.RUnlock()

	for _, e := range entries {
		if err := fn(e); err != nil {
			return err
		}
	}
	return nil
}

func (r *LedgerRepo) ListEntries(_ context.Context, f ledger.ListFilter) ([]domain.WalletTransaction, int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []domain.WalletTransaction
	for _, e := range r.s.entries {
		if f.PromoterID != "" && e.PromoterID != f.PromoterID {
			continue
		}
		if f.Type != "" && e.Type != f.Type {
			continue
		}
		out = append(out, e)
	}
	// Entries are appended in order; newest first is the reverse.
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return page(out, f.Skip, f.Limit), len(out), nil
}

func (r *LedgerRepo) PromoterIDs(_ context.Context) ([]string, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	seen := make(map[string]bool)
	for _, e := range r.s.entries {
		seen[e.PromoterID] = true
	}
	for _, w := range r.s.withdrawals {
		seen[w.PromoterID] = true
	}
	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// totals folds entries and reservations. Callers hold mu.
func (s *Store) totals(promoterID string) domain.LedgerTotals {
	var t domain.LedgerTotals
	for _, e := range s.entries {
		if e.PromoterID == promoterID {
			t = t.Add(e)
		}
	}
	t.Reserved = s.reserved(promoterID)
	return t
}

func (s *Store) reserved(promoterID string) decimal.Decimal {
	sum := decimal.Zero
	for _, w := range s.withdrawals {
		if w.PromoterID == promoterID && w.Status.Reserved() {
			sum = sum.Add(w.Amount)
		}
	}
	return sum
}

func (tx *Tx) FindEntry(_ context.Context, typ domain.TransactionType, referenceID string) (*domain.WalletTransaction, error) {
	tx.s.mu.RLock()
	defer tx.s.mu.RUnlock()
	return tx.s.findEntry(typ, referenceID), nil
}

func (s *Store) findEntry(typ domain.TransactionType, referenceID string) *domain.WalletTransaction {
	id, ok := s.entryKeys[entryKey(typ, referenceID)]
	if !ok {
		return nil
	}
	for _, e := range s.entries {
		if e.ID == id {
			out := e
			return &out
		}
	}
	return nil
}

func (tx *Tx) AppendEntry(_ context.Context, e *domain.WalletTransaction) (*domain.WalletTransaction, error) {
	tx.s.mu.Lock()
	defer tx.s.mu.Unlock()
	if existing := tx.s.findEntry(e.Type, e.ReferenceID); existing != nil {
		return existing, nil
	}
	key := entryKey(e.Type, e.ReferenceID)
	tx.s.entries = append(tx.s.entries, *e)
	tx.s.entryKeys[key] = e.ID
	id := e.ID
	tx.undo = append(tx.undo, func() {
		delete(tx.s.entryKeys, key)
		tx.s.entries = removeByID(tx.s.entries, id, func(w domain.WalletTransaction) string { return w.ID })
	})
	return nil, nil
}

func (tx *Tx) LedgerTotals(_ context.Context, promoterID string) (domain.LedgerTotals, error) {
	tx.s.mu.RLock()
	defer tx.s.mu.RUnlock()
	return tx.s.totals(promoterID), nil
}
