package analytics

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/ignite/affiliate-ledger/internal/domain"
)

// DefaultDays is the trailing window used when the caller gives none.
const DefaultDays = 30

// EngagementCounter counts a promoter's views and clicks.
type EngagementCounter interface {
	Engagement(ctx context.Context, promoterID string, days int) (views, clicks int, err error)
}

// SaleSummarizer aggregates a promoter's sales by status.
type SaleSummarizer interface {
	Summary(ctx context.Context, promoterID string, days int) (domain.SaleSummary, error)
}

// Service builds the promoter funnel report from the event log and the
// sales aggregate.
type Service struct {
	events EngagementCounter
	sales  SaleSummarizer
}

func NewService(events EngagementCounter, sales SaleSummarizer) *Service {
	return &Service{events: events, sales: sales}
}

// Promoter reports views, clicks, attributed conversions and commission
// totals over the trailing days.
func (s *Service) Promoter(ctx context.Context, promoterID string, days int) (domain.PromoterAnalytics, error) {
	if days <= 0 {
		days = DefaultDays
	}
	out := domain.PromoterAnalytics{PromoterID: promoterID, Days: days}

	views, clicks, err := s.events.Engagement(ctx, promoterID, days)
	if err != nil {
		return out, fmt.Errorf("count engagement: %w", err)
	}
	summary, err := s.sales.Summary(ctx, promoterID, days)
	if err != nil {
		return out, fmt.Errorf("summarize sales: %w", err)
	}

	amount := func(st domain.CommissionStatus) decimal.Decimal {
		if v, ok := summary.Amount[st]; ok {
			return v
		}
		return decimal.Zero
	}

	out.Views = views
	out.Clicks = clicks
	out.Conversions = summary.Count[domain.CommissionPending] +
		summary.Count[domain.CommissionApproved] +
		summary.Count[domain.CommissionPaid]
	out.RejectedSaleCount = summary.Count[domain.CommissionRejected]
	out.ClickThroughRate = domain.Percent(clicks, views)
	out.ConversionRate = domain.Percent(out.Conversions, clicks)
	out.EarnedCommission = amount(domain.CommissionPaid)
	out.UnreleasedAmount = amount(domain.CommissionPending).Add(amount(domain.CommissionApproved))
	return out, nil
}
