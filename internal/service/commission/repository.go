package commission

import (
	"context"
	"time"

	"github.com/ignite/affiliate-ledger/internal/domain"
	"github.com/ignite/affiliate-ledger/internal/service/ledger"
)

// Repository defines the data access contract for affiliate sales.
type Repository interface {
	// CreateSale inserts a sale. If the order already has one, nothing is
	// written and the stored sale is returned with false. A sale created
	// already rejected gets a pending to rejected audit entry in the same
	// write.
	CreateSale(ctx context.Context, s *domain.AffiliateSale) (*domain.AffiliateSale, bool, error)

	// GetSale returns a sale by id or domain.ErrNotFound.
	GetSale(ctx context.Context, id string) (*domain.AffiliateSale, error)

	// GetSaleByOrder returns the sale for an order or domain.ErrNotFound.
	GetSaleByOrder(ctx context.Context, orderID string) (*domain.AffiliateSale, error)

	// ListSales returns sales matching the filter, newest first, and the
	// total number of matches.
	ListSales(ctx context.Context, filter ListFilter) ([]domain.AffiliateSale, int, error)

	// SummarizeSales aggregates a promoter's sales created since a time.
	SummarizeSales(ctx context.Context, promoterID string, since time.Time) (domain.SaleSummary, error)

	// TransitionSale moves a sale from one status to another and appends
	// an audit entry. Returns domain.ErrInvalidTransition if the sale is
	// not currently in from.
	TransitionSale(ctx context.Context, id string, from, to domain.CommissionStatus, change domain.SaleChange) (*domain.AffiliateSale, error)

	// InPromoterTx runs fn in one per-promoter transaction.
	InPromoterTx(ctx context.Context, promoterID string, fn func(ctx context.Context, tx Tx) error) error
}

// Tx is the sale and ledger view of a per-promoter transaction.
type Tx interface {
	ledger.Tx
	TransitionSale(ctx context.Context, id string, from, to domain.CommissionStatus, change domain.SaleChange) (*domain.AffiliateSale, error)
}

// ListFilter controls pagination and filtering for sale listings.
type ListFilter struct {
	PromoterID string
	Status     domain.CommissionStatus
	Skip       int
	Limit      int
}

// Catalog is the product/promotion lookup.
type Catalog interface {
	// CommissionRule returns the rule on the promotion linking a promoter
	// to a product, or domain.ErrNotFound.
	CommissionRule(ctx context.Context, productID, promoterID string) (*domain.CommissionRule, error)

	// Order returns an order's lines, or domain.ErrNotFound.
	Order(ctx context.Context, orderID string) (*domain.Order, error)
}

// Notifier delivers promoter-facing messages without blocking.
type Notifier interface {
	Notify(ctx context.Context, n domain.Notification)
}
