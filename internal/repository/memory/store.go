// Package memory provides in-process implementations of every repository
// contract. It backs service tests and the server's in-memory dev mode;
// state is lost on exit.
//
// Per-promoter transactions hold a keyed mutex for their promoter and
// record an undo action for every write, so a failed transaction leaves
// the store as it found it.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/ignite/affiliate-ledger/internal/domain"
	"github.com/ignite/affiliate-ledger/internal/pkg/distlock"
)

// Store is the shared state behind the typed repositories.
type Store struct {
	mu    sync.RWMutex
	locks *distlock.KeyedMutex

	views       []domain.ViewEvent
	viewKeys    map[string]string
	clicks      map[string]domain.ClickEvent
	conversions []domain.ConversionEvent
	convByOrder map[string]int
	failures    map[string]domain.AttributionFailure

	sales       map[string]*domain.AffiliateSale
	saleOrder   []string
	saleByOrder map[string]string

	entries   []domain.WalletTransaction
	entryKeys map[string]string

	withdrawals     map[string]*domain.WithdrawalRequest
	withdrawalOrder []string

	audit []domain.AuditEntry
}

// New returns an empty store.
func New() *Store {
	return &Store{
		locks:       distlock.NewKeyedMutex(),
		viewKeys:    make(map[string]string),
		clicks:      make(map[string]domain.ClickEvent),
		convByOrder: make(map[string]int),
		failures:    make(map[string]domain.AttributionFailure),
		sales:       make(map[string]*domain.AffiliateSale),
		saleByOrder: make(map[string]string),
		entryKeys:   make(map[string]string),
		withdrawals: make(map[string]*domain.WithdrawalRequest),
	}
}

// Events returns the event-store view.
func (s *Store) Events() *EventRepo { return &EventRepo{s: s} }

// Sales returns the affiliate-sale view.
func (s *Store) Sales() *SaleRepo { return &SaleRepo{s: s} }

// Ledger returns the wallet-ledger view.
func (s *Store) Ledger() *LedgerRepo { return &LedgerRepo{s: s} }

// Withdrawals returns the withdrawal-request view.
func (s *Store) Withdrawals() *WithdrawalRepo { return &WithdrawalRepo{s: s} }

// AuditTrail returns a copy of the status audit log.
func (s *Store) AuditTrail() []domain.AuditEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.AuditEntry(nil), s.audit...)
}

// Tx is a per-promoter transaction over the store.
type Tx struct {
	s    *Store
	undo []func()
}

// inPromoterTx serializes fn against other transactions for promoterID.
func (s *Store) inPromoterTx(ctx context.Context, promoterID string, fn func(ctx context.Context, tx *Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	unlock := s.locks.Lock("promoter:" + promoterID)
	defer unlock()

	tx := &Tx{s: s}
	if err := fn(ctx, tx); err != nil {
		s.mu.Lock()
		for i := len(tx.undo) - 1; i >= 0; i-- {
			tx.undo[i]()
		}
		s.mu.Unlock()
		return err
	}
	return nil
}

// addAudit appends an audit entry and returns its undo. Callers hold mu.
func (s *Store) addAudit(e domain.AuditEntry) func() {
	e.ID = uuid.NewString()
	s.audit = append(s.audit, e)
	return func() { s.audit = removeByID(s.audit, e.ID, func(a domain.AuditEntry) string { return a.ID }) }
}

func removeByID[T any](items []T, id string, key func(T) string) []T {
	for i := range items {
		if key(items[i]) == id {
			return append(items[:i], items[i+1:]...)
		}
	}
	return items
}

func page[T any](items []T, skip, limit int) []T {
	if skip >= len(items) {
		return []T{}
	}
	end := len(items)
	if limit > 0 && skip+limit < end {
		end = skip + limit
	}
	return items[skip:end]
}

func newestFirst[T any](items []T, created func(T) int64) {
	sort.SliceStable(items, func(i, j int) bool { return created(items[i]) > created(items[j]) })
}
