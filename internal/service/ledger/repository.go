package ledger

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/ignite/affiliate-ledger/internal/domain"
)

// Tx is the ledger view of a per-promoter transaction.
type Tx interface {
	// FindEntry returns the entry for (type, referenceID) or nil.
	FindEntry(ctx context.Context, typ domain.TransactionType, referenceID string) (*domain.WalletTransaction, error)

	// AppendEntry inserts e. If an entry with the same type and reference
	// already exists nothing is written and the stored entry is returned.
	AppendEntry(ctx context.Context, e *domain.WalletTransaction) (*domain.WalletTransaction, error)

	// LedgerTotals folds the promoter's entries and reserved withdrawals
	// as seen inside the transaction.
	LedgerTotals(ctx context.Context, promoterID string) (domain.LedgerTotals, error)

	// ReservedAmount sums withdrawal requests that still hold funds.
	ReservedAmount(ctx context.Context, promoterID string) (decimal.Decimal, error)

	// ReplayEntries calls fn for each entry in append order.
	ReplayEntries(ctx context.Context, promoterID string, fn func(domain.WalletTransaction) error) error
}

// Store is the durable ledger.
type Store interface {
	// InPromoterTx runs fn inside one durable transaction serialized per
	// promoter. fn's error rolls everything back.
	InPromoterTx(ctx context.Context, promoterID string, fn func(ctx context.Context, tx Tx) error) error

	// LedgerTotals is the aggregate read outside any transaction.
	LedgerTotals(ctx context.Context, promoterID string) (domain.LedgerTotals, error)

	// ListEntries pages through entries, newest first.
	ListEntries(ctx context.Context, filter ListFilter) ([]domain.WalletTransaction, int, error)

	// PromoterIDs lists every promoter with at least one entry or request.
	PromoterIDs(ctx context.Context) ([]string, error)
}

// ListFilter controls pagination and filtering for ledger listings.
type ListFilter struct {
	PromoterID string
	Type       domain.TransactionType
	Skip       int
	Limit      int
}

// Cache holds derived balances. A miss returns nil, nil.
type Cache interface {
	Get(ctx context.Context, promoterID string) (*domain.Balance, error)
	Set(ctx context.Context, b domain.Balance) error
	Invalidate(ctx context.Context, promoterID string) error
}

type nopCache struct{}

func (nopCache) Get(context.Context, string) (*domain.Balance, error) { return nil, nil }
func (nopCache) Set(context.Context, domain.Balance) error            { return nil }
func (nopCache) Invalidate(context.Context, string) error             { return nil }
