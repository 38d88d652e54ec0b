package recorder

import (
	"context"
	"time"

	"github.com/ignite/affiliate-ledger/internal/domain"
)

// Repository is the append-only event store.
type Repository interface {
	// InsertView appends a view. If the view is deduplicable and an
	// identical (reel, viewer, session) view exists, nothing is written,
	// v.ID is set to the stored id and false is returned.
	InsertView(ctx context.Context, v *domain.ViewEvent) (bool, error)

	// InsertClick appends a click. Returns domain.ErrDuplicateSession if
	// the click session id is already recorded.
	InsertClick(ctx context.Context, c *domain.ClickEvent) error

	// InsertConversion appends a conversion. If the order already has a
	// conversion, nothing is written and the stored event is returned
	// with false.
	InsertConversion(ctx context.Context, c *domain.ConversionEvent) (*domain.ConversionEvent, bool, error)

	// GetClick returns the click for a session or domain.ErrNotFound.
	GetClick(ctx context.Context, clickSessionID string) (*domain.ClickEvent, error)

	// ListUnresolvedConversions returns conversions that have no
	// AffiliateSale yet, oldest first.
	ListUnresolvedConversions(ctx context.Context, limit int) ([]domain.ConversionEvent, error)

	// ListDueConversions is ListUnresolvedConversions without the
	// conversions whose next attribution attempt is after now.
	ListDueConversions(ctx context.Context, now time.Time, limit int) ([]domain.ConversionEvent, error)

	// GetAttributionFailure returns the failure record for an order or
	// domain.ErrNotFound.
	GetAttributionFailure(ctx context.Context, orderID string) (*domain.AttributionFailure, error)

	// UpsertAttributionFailure writes f, replacing any record for the order.
	UpsertAttributionFailure(ctx context.Context, f *domain.AttributionFailure) error

	// CountEngagement counts a promoter's views and clicks since a time.
	CountEngagement(ctx context.Context, promoterID string, since time.Time) (views, clicks int, err error)
}
