package attribution

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/affiliate-ledger/internal/domain"
)

type clickMap map[string]*domain.ClickEvent

func (m clickMap) GetClick(_ context.Context, id string) (*domain.ClickEvent, error) {
	c, ok := m[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return c, nil
}

type failingClicks struct{}

func (failingClicks) GetClick(context.Context, string) (*domain.ClickEvent, error) {
	return nil, errors.New("connection reset")
}

var clickedAt = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newResolver(window time.Duration) *Resolver {
	return NewResolver(clickMap{
		"cs-1": {ClickSessionID: "cs-1", PromoterID: "promoter-1", ProductID: "sku-1", ReelID: "reel-1", OccurredAt: clickedAt},
	}, window)
}

func TestResolveWithinWindow(t *testing.T) {
	r := newResolver(24 * time.Hour)
	out, err := r.Resolve(context.Background(), domain.ConversionEvent{
		OrderID: "o1", ClickSessionID: "cs-1", OccurredAt: clickedAt.Add(3 * time.Hour),
	})
	require.NoError(t, err)
	assert.True(t, out.Attributed)
	assert.Equal(t, "promoter-1", out.PromoterID())
	assert.Equal(t, "sku-1", out.Click.ProductID)
	assert.Equal(t, 3*time.Hour, out.Delay)
}

func TestResolveWindowBoundaryIsInclusive(t *testing.T) {
	r := newResolver(24 * time.Hour)
	out, err := r.Resolve(context.Background(), domain.ConversionEvent{
		OrderID: "o1", ClickSessionID: "cs-1", OccurredAt: clickedAt.Add(24 * time.Hour),
	})
	require.NoError(t, err)
	assert.True(t, out.Attributed)
}

func TestResolveOutsideWindowNeverAttributes(t *testing.T) {
	r := newResolver(24 * time.Hour)
	out, err := r.Resolve(context.Background(), domain.ConversionEvent{
		OrderID: "o1", ClickSessionID: "cs-1", OccurredAt: clickedAt.Add(24*time.Hour + time.Second),
	})
	require.NoError(t, err)
	assert.False(t, out.Attributed)
	assert.Equal(t, MissOutsideWindow, out.Miss)
	assert.Empty(t, out.PromoterID())
}

func TestResolveUnknownClick(t *testing.T) {
	r := newResolver(0)
	assert.Equal(t, DefaultWindow, r.Window())

	out, err := r.Resolve(context.Background(), domain.ConversionEvent{OrderID: "o1", ClickSessionID: "cs-missing", OccurredAt: clickedAt})
	require.NoError(t, err)
	assert.False(t, out.Attributed)
	assert.Equal(t, MissClickNotFound, out.Miss)
}

func TestResolveConversionBeforeClick(t *testing.T) {
	r := newResolver(24 * time.Hour)

	out, err := r.Resolve(context.Background(), domain.ConversionEvent{OrderID: "o1", ClickSessionID: "cs-1", OccurredAt: clickedAt.Add(-time.Minute)})
	require.NoError(t, err)
	assert.True(t, out.Attributed, "small negative skew is tolerated")

	out, err = r.Resolve(context.Background(), domain.ConversionEvent{OrderID: "o1", ClickSessionID: "cs-1", OccurredAt: clickedAt.Add(-time.Hour)})
	require.NoError(t, err)
	assert.Equal(t, MissClickAfterConversion, out.Miss)
}

func TestResolveIsDeterministic(t *testing.T) {
	r := newResolver(24 * time.Hour)
	conv := domain.ConversionEvent{OrderID: "o1", ClickSessionID: "cs-1", OccurredAt: clickedAt.Add(time.Hour)}
	first, err := r.Resolve(context.Background(), conv)
	require.NoError(t, err)
	second, err := r.Resolve(context.Background(), conv)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestResolveStoreError(t *testing.T) {
	r := NewResolver(failingClicks{}, time.Hour)
	_, err := r.Resolve(context.Background(), domain.ConversionEvent{OrderID: "o1", ClickSessionID: "cs-1"})
	assert.Error(t, err)
}
