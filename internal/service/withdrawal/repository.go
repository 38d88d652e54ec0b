package withdrawal

import (
	"context"

	"github.com/ignite/affiliate-ledger/internal/domain"
	"github.com/ignite/affiliate-ledger/internal/service/ledger"
)

// Repository defines the data access contract for withdrawal requests.
type Repository interface {
	// InPromoterTx runs fn in one per-promoter transaction.
	InPromoterTx(ctx context.Context, promoterID string, fn func(ctx context.Context, tx Tx) error) error

	// GetWithdrawal returns a request or domain.ErrNotFound.
	GetWithdrawal(ctx context.Context, id string) (*domain.WithdrawalRequest, error)

	// ListWithdrawals returns requests matching the filter, newest first,
	// and the total number of matches.
	ListWithdrawals(ctx context.Context, filter ListFilter) ([]domain.WithdrawalRequest, int, error)

	// CountWithdrawals counts a promoter's requests by status.
	CountWithdrawals(ctx context.Context, promoterID string) (map[domain.WithdrawalStatus]int, error)
}

// Tx is the withdrawal and ledger view of a per-promoter transaction.
type Tx interface {
	ledger.Tx

	// PendingWithdrawal returns the promoter's pending request or nil.
	PendingWithdrawal(ctx context.Context, promoterID string) (*domain.WithdrawalRequest, error)

	// InsertWithdrawal stores a new pending request. Returns
	// domain.ErrDuplicatePendingRequest if one already exists.
	InsertWithdrawal(ctx context.Context, w *domain.WithdrawalRequest) error

	// GetWithdrawal reads a request, locking it for the transaction.
	GetWithdrawal(ctx context.Context, id string) (*domain.WithdrawalRequest, error)

	// UpdateWithdrawal persists w if its stored status is still from, and
	// appends an audit entry. Returns domain.ErrInvalidTransition otherwise.
	UpdateWithdrawal(ctx context.Context, w *domain.WithdrawalRequest, from domain.WithdrawalStatus, actorID, reason string) error
}

// ListFilter controls pagination and filtering for withdrawal listings.
type ListFilter struct {
	PromoterID string
	Status     domain.WithdrawalStatus
	Skip       int
	Limit      int
}

// Notifier delivers promoter-facing messages without blocking.
type Notifier interface {
	Notify(ctx context.Context, n domain.Notification)
}
