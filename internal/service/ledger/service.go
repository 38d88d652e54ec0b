package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/shopspring/decimal"

	"github.com/ignite/affiliate-ledger/internal/domain"
	"github.com/ignite/affiliate-ledger/internal/pkg/logger"
)

// Service owns ledger writes and balance derivation.
type Service struct {
	store      Store
	cache      Cache
	minorUnits int32
	now        func() time.Time
}

// NewService creates a ledger service. cache may be nil.
func NewService(store Store, cache Cache) *Service {
	if cache == nil {
		cache = nopCache{}
	}
	return &Service{
		store:      store,
		cache:      cache,
		minorUnits: 2,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// WithMinorUnits sets the currency precision entries must respect.
func (s *Service) WithMinorUnits(units int32) *Service {
	s.minorUnits = units
	return s
}

// WithClock replaces the time source. Intended for tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Store exposes the underlying store to packages that need to open a
// per-promoter transaction with ledger access.
func (s *Service) Store() Store { return s.store }

// Credit adds a positive amount to the promoter's wallet.
func (s *Service) Credit(ctx context.Context, promoterID string, amount decimal.Decimal, referenceID, description string) (*domain.WalletTransaction, error) {
	var entry *domain.WalletTransaction
	err := s.store.InPromoterTx(ctx, promoterID, func(ctx context.Context, tx Tx) error {
		var err error
		entry, err = s.CreditTx(ctx, tx, promoterID, amount, referenceID, description)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.Invalidate(ctx, promoterID)
	return entry, nil
}

// Debit removes a positive amount from the promoter's available balance.
func (s *Service) Debit(ctx context.Context, promoterID string, amount decimal.Decimal, referenceID, description string) (*domain.WalletTransaction, error) {
	var entry *domain.WalletTransaction
	err := s.store.InPromoterTx(ctx, promoterID, func(ctx context.Context, tx Tx) error {
		var err error
		entry, err = s.DebitTx(ctx, tx, promoterID, amount, referenceID, description)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.Invalidate(ctx, promoterID)
	return entry, nil
}

// CreditTx writes a credit_commission entry inside tx. Replaying the same
// reference returns the stored entry.
func (s *Service) CreditTx(ctx context.Context, tx Tx, promoterID string, amount decimal.Decimal, referenceID, description string) (*domain.WalletTransaction, error) {
	if err := s.checkAmount(amount); err != nil {
		return nil, err
	}
	return s.append(ctx, tx, domain.WalletTransaction{
		PromoterID:  promoterID,
		Type:        domain.TxCreditCommission,
		Amount:      amount,
		ReferenceID: referenceID,
		Description: description,
	})
}

// DebitTx writes a debit_withdrawal entry inside tx. It fails with an
// InsufficientFundsError, writing nothing, when amount exceeds available.
func (s *Service) DebitTx(ctx context.Context, tx Tx, promoterID string, amount decimal.Decimal, referenceID, description string) (*domain.WalletTransaction, error) {
	if err := s.checkAmount(amount); err != nil {
		return nil, err
	}
	existing, err := tx.FindEntry(ctx, domain.TxDebitWithdrawal, referenceID)
	if err != nil {
		return nil, fmt.Errorf("find debit %s: %w", referenceID, err)
	}
	if existing != nil {
		return s.matchReplay(existing, promoterID, amount.Neg())
	}

	totals, err := tx.LedgerTotals(ctx, promoterID)
	if err != nil {
		return nil, fmt.Errorf("load ledger totals: %w", err)
	}
	if available := totals.Available(); amount.GreaterThan(available) {
		return nil, &domain.InsufficientFundsError{Requested: amount, Available: available}
	}

	return s.append(ctx, tx, domain.WalletTransaction{
		PromoterID:  promoterID,
		Type:        domain.TxDebitWithdrawal,
		Amount:      amount.Neg(),
		ReferenceID: referenceID,
		Description: description,
	})
}

// ReverseTx writes a compensating entry inside tx. A positive amount
// returns money to the wallet, a negative one claws it back.
func (s *Service) ReverseTx(ctx context.Context, tx Tx, promoterID string, amount decimal.Decimal, referenceID, description string) (*domain.WalletTransaction, error) {
	if amount.IsZero() {
		return nil, domain.Invalid("amount", "must not be zero")
	}
	return s.append(ctx, tx, domain.WalletTransaction{
		PromoterID:  promoterID,
		Type:        domain.TxReversal,
		Amount:      amount,
		ReferenceID: referenceID,
		Description: description,
	})
}

// CheckTx verifies the balance invariant inside tx and returns the totals.
func (s *Service) CheckTx(ctx context.Context, tx Tx, promoterID string) (domain.LedgerTotals, error) {
	totals, err := tx.LedgerTotals(ctx, promoterID)
	if err != nil {
		return domain.LedgerTotals{}, fmt.Errorf("load ledger totals: %w", err)
	}
	if err := s.verify(promoterID, totals); err != nil {
		return domain.LedgerTotals{}, err
	}
	return totals, nil
}

func (s *Service) append(ctx context.Context, tx Tx, e domain.WalletTransaction) (*domain.WalletTransaction, error) {
	now := s.now()
	e.ID = ulid.MustNew(ulid.Timestamp(now), ulid.DefaultEntropy()).String()
	e.CreatedAt = now

	existing, err := tx.AppendEntry(ctx, &e)
	if err != nil {
		return nil, fmt.Errorf("append %s entry: %w", e.Type, err)
	}
	if existing != nil {
		return s.matchReplay(existing, e.PromoterID, e.Amount)
	}

	if _, err := s.CheckTx(ctx, tx, e.PromoterID); err != nil {
		return nil, err
	}
	return &e, nil
}

// matchReplay accepts a replayed write only if it describes the same
// money movement as the stored entry.
func (s *Service) matchReplay(existing *domain.WalletTransaction, promoterID string, amount decimal.Decimal) (*domain.WalletTransaction, error) {
	if existing.PromoterID != promoterID || !existing.Amount.Equal(amount) {
		err := &domain.InconsistencyError{
			PromoterID: promoterID,
			Detail: fmt.Sprintf("replay of %s %s differs from stored entry %s (%s for %s)",
				existing.Type, existing.ReferenceID, existing.ID, existing.Amount.StringFixed(2), existing.PromoterID),
		}
		logger.Error("[Ledger] conflicting replay", "promoter_id", promoterID, "error", err)
		return nil, err
	}
	logger.Debug("[Ledger] idempotent replay", "promoter_id", promoterID, "reference_id", existing.ReferenceID, "type", existing.Type)
	return existing, nil
}

func (s *Service) verify(promoterID string, totals domain.LedgerTotals) error {
	if available := totals.Available(); available.IsNegative() {
		err := &domain.InconsistencyError{
			PromoterID: promoterID,
			Detail:     "available balance is negative: " + available.StringFixed(2),
		}
		logger.Error("[Ledger] invariant violated", "promoter_id", promoterID, "available", available.StringFixed(2))
		return err
	}
	return nil
}

// BalanceOf returns the derived wallet, serving from cache when possible.
// A miss is filled while holding the promoter lock, so a concurrent writer
// either commits before the read or invalidates after the fill.
func (s *Service) BalanceOf(ctx context.Context, promoterID string) (domain.Balance, error) {
	if cached, err := s.cache.Get(ctx, promoterID); err != nil {
		logger.Warn("[Ledger] balance cache read failed", "promoter_id", promoterID, "error", err)
	} else if cached != nil {
		return *cached, nil
	}

	var b domain.Balance
	err := s.store.InPromoterTx(ctx, promoterID, func(ctx context.Context, tx Tx) error {
		totals, err := tx.LedgerTotals(ctx, promoterID)
		if err != nil {
			return fmt.Errorf("load ledger totals: %w", err)
		}
		if err := s.verify(promoterID, totals); err != nil {
			return err
		}
		b = totals.Balance(promoterID, s.now())
		if err := s.cache.Set(ctx, b); err != nil {
			logger.Warn("[Ledger] balance cache write failed", "promoter_id", promoterID, "error", err)
		}
		return nil
	})
	if err != nil {
		return domain.Balance{}, err
	}
	return b, nil
}

// Invalidate drops the cached balance after a committed write.
func (s *Service) Invalidate(ctx context.Context, promoterID string) {
	if err := s.cache.Invalidate(ctx, promoterID); err != nil {
		logger.Warn("[Ledger] balance cache invalidation failed", "promoter_id", promoterID, "error", err)
	}
}

// Transactions pages through a promoter's ledger.
func (s *Service) Transactions(ctx context.Context, filter ListFilter) ([]domain.WalletTransaction, int, error) {
	if filter.Type != "" && !filter.Type.Valid() {
		return nil, 0, domain.Invalid("type", "unknown transaction type")
	}
	return s.store.ListEntries(ctx, filter)
}

// Rebuild replays a promoter's log from the first entry, cross-checks the
// fold against the store's aggregate and refreshes the cache. Cache drift
// is repaired; a broken invariant is reported and left untouched.
func (s *Service) Rebuild(ctx context.Context, promoterID string) (domain.Balance, error) {
	b, _, err := s.rebuild(ctx, promoterID)
	return b, err
}

func (s *Service) rebuild(ctx context.Context, promoterID string) (domain.Balance, bool, error) {
	var (
		replayed domain.Balance
		drifted  bool
	)
	err := s.store.InPromoterTx(ctx, promoterID, func(ctx context.Context, tx Tx) error {
		var folded domain.LedgerTotals
		err := tx.ReplayEntries(ctx, promoterID, func(e domain.WalletTransaction) error {
			folded = folded.Add(e)
			return nil
		})
		if err != nil {
			return fmt.Errorf("replay ledger: %w", err)
		}
		reserved, err := tx.ReservedAmount(ctx, promoterID)
		if err != nil {
			return fmt.Errorf("load reserved amount: %w", err)
		}
		folded.Reserved = reserved

		aggregate, err := tx.LedgerTotals(ctx, promoterID)
		if err != nil {
			return fmt.Errorf("load ledger totals: %w", err)
		}
		now := s.now()
		replayed = folded.Balance(promoterID, now)
		if !replayed.Equal(aggregate.Balance(promoterID, now)) {
			logger.Error("[Ledger] replay mismatch", "promoter_id", promoterID,
				"replayed_available", replayed.Available.StringFixed(2),
				"aggregate_available", aggregate.Available().StringFixed(2))
			return &domain.InconsistencyError{PromoterID: promoterID, Detail: "replayed balance differs from stored aggregate"}
		}
		if err := s.verify(promoterID, folded); err != nil {
			return err
		}

		cached, err := s.cache.Get(ctx, promoterID)
		if err != nil {
			logger.Warn("[Ledger] balance cache read failed", "promoter_id", promoterID, "error", err)
		} else if cached != nil && !cached.Equal(replayed) {
			drifted = true
			logger.Warn("[Ledger] cached balance drifted, replacing", "promoter_id", promoterID,
				"cached_available", cached.Available.StringFixed(2),
				"replayed_available", replayed.Available.StringFixed(2))
		}
		if err := s.cache.Set(ctx, replayed); err != nil {
			logger.Warn("[Ledger] balance cache write failed", "promoter_id", promoterID, "error", err)
		}
		return nil
	})
	if err != nil {
		return domain.Balance{}, false, err
	}
	return replayed, drifted, nil
}

// ReconcileReport summarises one reconciliation sweep.
type ReconcileReport struct {
	Checked      int      `json:"checked"`
	CacheDrifted int      `json:"cache_drifted"`
	Inconsistent []string `json:"inconsistent_promoters"`
}

// ReconcileAll rebuilds every promoter's balance. Invariant violations are
// collected in the report; other failures abort the sweep.
func (s *Service) ReconcileAll(ctx context.Context) (ReconcileReport, error) {
	var report ReconcileReport
	ids, err := s.store.PromoterIDs(ctx)
	if err != nil {
		return report, fmt.Errorf("list promoters: %w", err)
	}
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		_, drifted, err := s.rebuild(ctx, id)
		switch {
		case errors.Is(err, domain.ErrInternalInconsistency):
			report.Inconsistent = append(report.Inconsistent, id)
		case err != nil:
			return report, fmt.Errorf("rebuild %s: %w", id, err)
		}
		report.Checked++
		if drifted {
			report.CacheDrifted++
		}
	}
	return report, nil
}

func (s *Service) checkAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return domain.Invalid("amount", "must be positive")
	}
	if !amount.Equal(amount.Round(s.minorUnits)) {
		return domain.Invalid("amount", "is finer than the currency's minor unit")
	}
	return nil
}
