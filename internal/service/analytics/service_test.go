package analytics

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/affiliate-ledger/internal/domain"
)

type stubEvents struct {
	views, clicks int
	days          int
	err           error
}

func (s *stubEvents) Engagement(_ context.Context, _ string, days int) (int, int, error) {
	s.days = days
	return s.views, s.clicks, s.err
}

type stubSales struct{ summary domain.SaleSummary }

func (s stubSales) Summary(context.Context, string, int) (domain.SaleSummary, error) {
	return s.summary, nil
}

func TestPromoterAnalytics(t *testing.T) {
	events := &stubEvents{views: 200, clicks: 40}
	sales := stubSales{summary: domain.SaleSummary{
		Count: map[domain.CommissionStatus]int{
			domain.CommissionPending:  2,
			domain.CommissionApproved: 1,
			domain.CommissionPaid:     3,
			domain.CommissionRejected: 4,
		},
		Amount: map[domain.CommissionStatus]decimal.Decimal{
			domain.CommissionPending:  decimal.RequireFromString("4.00"),
			domain.CommissionApproved: decimal.RequireFromString("1.50"),
			domain.CommissionPaid:     decimal.RequireFromString("12.25"),
		},
	}}

	got, err := NewService(events, sales).Promoter(context.Background(), "p1", 0)
	require.NoError(t, err)
	assert.Equal(t, DefaultDays, events.days)
	assert.Equal(t, 6, got.Conversions)
	assert.Equal(t, 4, got.RejectedSaleCount)
	assert.Equal(t, 20.0, got.ClickThroughRate)
	assert.Equal(t, 15.0, got.ConversionRate)
	assert.Equal(t, "12.25", got.EarnedCommission.StringFixed(2))
	assert.Equal(t, "5.50", got.UnreleasedAmount.StringFixed(2))
}

func TestPromoterAnalyticsNoTraffic(t *testing.T) {
	got, err := NewService(&stubEvents{}, stubSales{}).Promoter(context.Background(), "p1", 7)
	require.NoError(t, err)
	assert.Zero(t, got.ClickThroughRate)
	assert.Zero(t, got.ConversionRate)
	assert.True(t, got.EarnedCommission.IsZero())
	assert.Equal(t, 7, got.Days)
}

func TestPromoterAnalyticsPropagatesErrors(t *testing.T) {
	_, err := NewService(&stubEvents{err: errors.New("boom")}, stubSales{}).Promoter(context.Background(), "p1", 7)
	assert.Error(t, err)
}
