package catalog

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/affiliate-ledger/internal/domain"
	"github.com/ignite/affiliate-ledger/internal/pkg/httpretry"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	doer := httpretry.NewRetryClient(srv.Client(), 2, httpretry.WithBackoff(time.Millisecond, time.Millisecond))
	return NewClient(srv.URL+"/", "secret", doer)
}

func TestCommissionRule(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/promotions/commission-rule", r.URL.Path)
		assert.Equal(t, "sku-1", r.URL.Query().Get("product_id"))
		assert.Equal(t, "promoter-1", r.URL.Query().Get("promoter_id"))
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		w.Write([]byte(`{"promotion_id":"promo-1","product_id":"sku-1","promoter_id":"promoter-1","commission_type":"percentage","commission_rate":"12.5"}`))
	})

	rule, err := c.CommissionRule(context.Background(), "sku-1", "promoter-1")
	require.NoError(t, err)
	assert.Equal(t, "promo-1", rule.PromotionID)
	assert.Equal(t, domain.CommissionPercentage, rule.Type)
	require.NotNil(t, rule.Rate)
	assert.True(t, rule.Rate.Equal(decimal.RequireFromString("12.5")))
	assert.Nil(t, rule.Amount)
}

func TestOrderNotFound(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	_, err := c.Order(context.Background(), "o-missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestOrderRetriesServerErrors(t *testing.T) {
	calls := 0
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		json.NewEncoder(w).Encode(domain.Order{
			OrderID: "o-1",
			BuyerID: "buyer-1",
			Lines:   []domain.OrderLine{{ProductID: "sku-1", UnitPrice: decimal.RequireFromString("49.99"), Quantity: 1}},
		})
	})

	order, err := c.Order(context.Background(), "o-1")
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	line, ok := order.LineFor("sku-1")
	require.True(t, ok)
	assert.Equal(t, "49.99", line.SaleAmount().StringFixed(2))
}

func TestOrderServerErrorSurfaces(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte("bad order id"))
	})
	_, err := c.Order(context.Background(), "o-1")
	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrNotFound)
	assert.Contains(t, err.Error(), "bad order id")
}

func TestStatic(t *testing.T) {
	s := NewStatic()
	rate := decimal.NewFromInt(10)
	s.PutRule(domain.CommissionRule{PromotionID: "p", ProductID: "sku", PromoterID: "u", Type: domain.CommissionPercentage, Rate: &rate})

	_, err := s.CommissionRule(context.Background(), "sku", "u")
	require.NoError(t, err)
	s.RemoveRule("sku", "u")
	_, err = s.CommissionRule(context.Background(), "sku", "u")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
