package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/affiliate-ledger/internal/auth"
	"github.com/ignite/affiliate-ledger/internal/catalog"
	"github.com/ignite/affiliate-ledger/internal/config"
	"github.com/ignite/affiliate-ledger/internal/domain"
	"github.com/ignite/affiliate-ledger/internal/pkg/httputil"
	"github.com/ignite/affiliate-ledger/internal/repository/memory"
	"github.com/ignite/affiliate-ledger/internal/service/analytics"
	"github.com/ignite/affiliate-ledger/internal/service/attribution"
	"github.com/ignite/affiliate-ledger/internal/service/commission"
	"github.com/ignite/affiliate-ledger/internal/service/ledger"
	"github.com/ignite/affiliate-ledger/internal/service/recorder"
	"github.com/ignite/affiliate-ledger/internal/service/review"
	"github.com/ignite/affiliate-ledger/internal/service/withdrawal"
)

type testEnv struct {
	t       *testing.T
	handler http.Handler
	auth    *auth.AuthManager
	svc     Services
}

func setupTestServer(t *testing.T) *testEnv {
	t.Helper()
	store := memory.New()
	cat := catalog.NewStatic()
	rate := decimal.RequireFromString("10")
	cat.PutRule(domain.CommissionRule{PromotionID: "promo-1", ProductID: "sku-1", PromoterID: "p1", Type: domain.CommissionPercentage, Rate: &rate})
	cat.PutOrder(domain.Order{OrderID: "o-1", BuyerID: "b1", Lines: []domain.OrderLine{
		{ProductID: "sku-1", UnitPrice: decimal.RequireFromString("300.00"), Quantity: 2},
	}})

	ledgerSvc := ledger.NewService(store.Ledger(), nil)
	rec := recorder.NewService(store.Events())
	commissions := commission.NewService(commission.Config{
		Repo:     store.Sales(),
		Resolver: attribution.NewResolver(store.Events(), 0),
		Catalog:  cat,
		Ledger:   ledgerSvc,
	})
	withdrawals := withdrawal.NewService(store.Withdrawals(), ledgerSvc, nil)
	svc := Services{
		Recorder:    rec,
		Commissions: commissions,
		Ledger:      ledgerSvc,
		Withdrawals: withdrawals,
		Review:      review.NewService(commissions, withdrawals, ledgerSvc),
		Analytics:   analytics.NewService(rec, commissions),
	}

	am := auth.NewAuthManager(config.AuthConfig{JWTSecret: "test-secret", Issuer: "affiliate-ledger"})
	srv := NewServer(config.ServerConfig{AllowedOrigins: []string{"http://localhost:3000"}},
		NewHandlers(svc, NewHealthChecker(nil, nil).WithBacklog(rec)), am)
	return &testEnv{t: t, handler: srv.Handler(), auth: am, svc: svc}
}

func (e *testEnv) token(actor domain.Actor) string {
	e.t.Helper()
	tok, err := e.auth.IssueToken(actor, time.Hour)
	require.NoError(e.t, err)
	return tok
}

func (e *testEnv) do(method, path string, actor *domain.Actor, body interface{}) *httptest.ResponseRecorder {
	e.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(e.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if actor != nil {
		req.Header.Set("Authorization", "Bearer "+e.token(*actor))
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, dst interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), dst), rec.Body.String())
}

var (
	promoterP1 = domain.Actor{ID: "p1", Role: domain.RolePromoter}
	adminA1    = domain.Actor{ID: "admin-1", Role: domain.RoleAdmin}
)

// seedPaidSale drives one attributed sale through approval and payment,
// leaving p1 with 60.00 available.
func (e *testEnv) seedPaidSale() string {
	e.t.Helper()
	rec := e.do(http.MethodPost, "/api/events/clicks", nil, map[string]interface{}{
		"click_session_id": "cs-1", "reel_id": "reel-1", "product_id": "sku-1", "promoter_id": "p1",
		"occurred_at": time.Now().UTC().Add(-time.Hour),
	})
	require.Equal(e.t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = e.do(http.MethodPost, "/api/events/conversions", nil, map[string]string{
		"order_id": "o-1", "click_session_id": "cs-1",
	})
	require.Equal(e.t, http.StatusCreated, rec.Code, rec.Body.String())

	pending, err := e.svc.Recorder.Unresolved(context.Background(), 10)
	require.NoError(e.t, err)
	require.Len(e.t, pending, 1)
	sale, err := e.svc.Commissions.Process(context.Background(), pending[0])
	require.NoError(e.t, err)

	rec = e.do(http.MethodPost, "/api/admin/sales/"+sale.ID+"/approve", &adminA1, nil)
	require.Equal(e.t, http.StatusOK, rec.Code, rec.Body.String())
	rec = e.do(http.MethodPost, "/api/admin/sales/"+sale.ID+"/mark-paid", &adminA1, map[string]string{"payment_reference": "PAY-001"})
	require.Equal(e.t, http.StatusOK, rec.Code, rec.Body.String())
	return sale.ID
}

func TestHealthEndpoints(t *testing.T) {
	env := setupTestServer(t)

	rec := env.do(http.MethodGet, "/health", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var status HealthStatus
	decodeBody(t, rec, &status)
	assert.Equal(t, "healthy", status.Status)
	assert.Equal(t, "not_configured", status.Checks["database"].Status)
	assert.Equal(t, "up", status.Checks["attribution"].Status)

	rec = env.do(http.MethodGet, "/health/ready", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestEventEndpoints(t *testing.T) {
	env := setupTestServer(t)
	click := map[string]string{"click_session_id": "cs-1", "reel_id": "reel-1", "product_id": "sku-1", "promoter_id": "p1"}

	rec := env.do(http.MethodPost, "/api/events/clicks", nil, click)
	assert.Equal(t, http.StatusCreated, rec.Code)

	rec = env.do(http.MethodPost, "/api/events/clicks", nil, click)
	assert.Equal(t, http.StatusConflict, rec.Code)
	var errBody httputil.ErrorResponse
	decodeBody(t, rec, &errBody)
	assert.Equal(t, "duplicate_session", errBody.Code)

	rec = env.do(http.MethodPost, "/api/events/views", nil, map[string]string{"reel_id": "reel-1"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	decodeBody(t, rec, &errBody)
	assert.Equal(t, "validation_failed", errBody.Code)

	rec = env.do(http.MethodPost, "/api/events/views", &promoterP1, map[string]string{"reel_id": "reel-1", "promoter_id": "p2"})
	require.Equal(t, http.StatusCreated, rec.Code)
	var view domain.ViewEvent
	decodeBody(t, rec, &view)
	assert.Equal(t, "p1", view.ViewerID, "signed-in viewer is attached")

	rec = env.do(http.MethodPost, "/api/events/conversions", nil, map[string]string{"order_id": "o-1", "click_session_id": "cs-1"})
	assert.Equal(t, http.StatusCreated, rec.Code)
	rec = env.do(http.MethodPost, "/api/events/conversions", nil, map[string]string{"order_id": "o-1", "click_session_id": "cs-2"})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestEventEndpointRejectsBadToken(t *testing.T) {
	env := setupTestServer(t)
	req := httptest.NewRequest(http.MethodPost, "/api/events/views", bytes.NewBufferString(`{"reel_id":"r","promoter_id":"p1"}`))
	req.Header.Set("Authorization", "Bearer not-a-token")
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestPromoterEndpointsRequireAuth(t *testing.T) {
	env := setupTestServer(t)
	for _, path := range []string{
		"/api/promoters/me/wallet",
		"/api/promoters/me/sales",
		"/api/withdrawals/stats",
	} {
		rec := env.do(http.MethodGet, path, nil, nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, path)
	}
}

func TestAdminEndpointsRequireAdminRole(t *testing.T) {
	env := setupTestServer(t)
	rec := env.do(http.MethodGet, "/api/admin/withdrawals", &promoterP1, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = env.do(http.MethodPost, "/api/admin/wallets/p1/reconcile", &promoterP1, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = env.do(http.MethodGet, "/api/admin/sales?status=bogus", &adminA1, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCommissionToWithdrawalFlow(t *testing.T) {
	env := setupTestServer(t)
	env.seedPaidSale()

	rec := env.do(http.MethodGet, "/api/promoters/me/wallet", &promoterP1, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var balance domain.Balance
	decodeBody(t, rec, &balance)
	assert.True(t, balance.Available.Equal(decimal.RequireFromString("60")), balance.Available.String())
	assert.True(t, balance.TotalEarned.Equal(decimal.RequireFromString("60")))

	rec = env.do(http.MethodGet, "/api/promoters/me/commissions?status=paid", &promoterP1, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var commissions struct {
		Data       []commissionView `json:"data"`
		Pagination PaginationMeta   `json:"pagination"`
	}
	decodeBody(t, rec, &commissions)
	require.Len(t, commissions.Data, 1)
	assert.Equal(t, "60.00", commissions.Data[0].CommissionAmount)
	assert.Equal(t, "PAY-001", commissions.Data[0].PaymentReference)

	rec = env.do(http.MethodPost, "/api/withdrawals", &promoterP1, map[string]interface{}{
		"amount": "100.00", "payment_method": "paypal", "payment_details": map[string]string{"email": "p1@example.com"},
	})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	var errBody httputil.ErrorResponse
	decodeBody(t, rec, &errBody)
	assert.Equal(t, "insufficient_funds", errBody.Code)

	rec = env.do(http.MethodPost, "/api/withdrawals", &promoterP1, map[string]interface{}{
		"amount": "55.00", "payment_method": "paypal", "payment_details": map[string]string{"email": "p1@example.com"},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var wr domain.WithdrawalRequest
	decodeBody(t, rec, &wr)
	assert.Equal(t, domain.WithdrawalPending, wr.Status)

	rec = env.do(http.MethodPost, "/api/withdrawals", &promoterP1, map[string]interface{}{
		"amount": "50.00", "payment_method": "paypal", "payment_details": map[string]string{"email": "p1@example.com"},
	})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = env.do(http.MethodGet, "/api/admin/withdrawals", &adminA1, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var listed struct {
		Data       []domain.WithdrawalRequest `json:"data"`
		Pagination PaginationMeta             `json:"pagination"`
	}
	decodeBody(t, rec, &listed)
	require.Len(t, listed.Data, 1)
	assert.Equal(t, 1, listed.Pagination.Total)

	rec = env.do(http.MethodPost, "/api/admin/withdrawals/"+wr.ID+"/reject", &adminA1, map[string]string{"reason": "short"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(http.MethodPost, "/api/admin/withdrawals/"+wr.ID+"/approve", &adminA1, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = env.do(http.MethodPost, "/api/admin/withdrawals/"+wr.ID+"/complete", &adminA1, map[string]string{"payment_reference": "PP-12345"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rec = env.do(http.MethodPost, "/api/admin/withdrawals/"+wr.ID+"/approve", &adminA1, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = env.do(http.MethodGet, "/api/withdrawals/stats", &promoterP1, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var stats domain.WithdrawalStats
	decodeBody(t, rec, &stats)
	assert.True(t, stats.AvailableBalance.Equal(decimal.RequireFromString("5")), stats.AvailableBalance.String())
	assert.True(t, stats.TotalWithdrawn.Equal(decimal.RequireFromString("55")))
	assert.Equal(t, 1, stats.CompletedCount)

	rec = env.do(http.MethodGet, "/api/promoters/me/wallet/transactions?limit=1", &promoterP1, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var txs struct {
		Data       []domain.WalletTransaction `json:"data"`
		Pagination PaginationMeta             `json:"pagination"`
	}
	decodeBody(t, rec, &txs)
	require.Len(t, txs.Data, 1)
	assert.Equal(t, domain.TxDebitWithdrawal, txs.Data[0].Type)
	assert.Equal(t, 2, txs.Pagination.Total)
	assert.True(t, txs.Pagination.HasMore)

	rec = env.do(http.MethodPost, "/api/admin/wallets/p1/reconcile", &adminA1, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	decodeBody(t, rec, &balance)
	assert.True(t, balance.Available.Equal(decimal.RequireFromString("5")))
}

func TestAnalyticsEndpoint(t *testing.T) {
	env := setupTestServer(t)
	env.seedPaidSale()

	rec := env.do(http.MethodGet, "/api/promoters/me/analytics?days=7", &promoterP1, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var report domain.PromoterAnalytics
	decodeBody(t, rec, &report)
	assert.Equal(t, 1, report.Clicks)
	assert.Equal(t, 1, report.Conversions)
	assert.True(t, report.EarnedCommission.Equal(decimal.RequireFromString("60")))

	rec = env.do(http.MethodGet, "/api/promoters/me/analytics?days=1000", &promoterP1, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestParsePagination(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/x?skip=-3&limit=500", nil)
	p := ParsePagination(req, 20, 100)
	assert.Equal(t, PaginationParams{Skip: 0, Limit: 100}, p)

	req = httptest.NewRequest(http.MethodGet, "/x", nil)
	assert.Equal(t, PaginationParams{Skip: 0, Limit: 20}, ParsePagination(req, 20, 100))

	resp := NewPaginatedResponse([]int{1}, PaginationParams{Skip: 10, Limit: 10}, 20)
	assert.False(t, resp.Pagination.HasMore)
}

func TestUnknownRoute(t *testing.T) {
	env := setupTestServer(t)
	rec := env.do(http.MethodGet, "/api/nope", nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
