package review_test

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/affiliate-ledger/internal/catalog"
	"github.com/ignite/affiliate-ledger/internal/domain"
	"github.com/ignite/affiliate-ledger/internal/repository/memory"
	"github.com/ignite/affiliate-ledger/internal/service/attribution"
	"github.com/ignite/affiliate-ledger/internal/service/commission"
	"github.com/ignite/affiliate-ledger/internal/service/ledger"
	"github.com/ignite/affiliate-ledger/internal/service/review"
	"github.com/ignite/affiliate-ledger/internal/service/withdrawal"
)

var (
	admin    = domain.Actor{ID: "admin-1", Role: domain.RoleAdmin}
	finance  = domain.Actor{ID: "fin-1", Role: domain.RoleFinance}
	promoter = domain.Actor{ID: "p1", Role: domain.RolePromoter}
	stranger = domain.Actor{ID: "p2", Role: domain.RolePromoter}
)

func newReview(t *testing.T) (*review.Service, *withdrawal.Service, *ledger.Service) {
	t.Helper()
	store := memory.New()
	ledgerSvc := ledger.NewService(store.Ledger(), nil)
	commissions := commission.NewService(commission.Config{
		Repo:     store.Sales(),
		Resolver: attribution.NewResolver(store.Events(), 0),
		Catalog:  catalog.NewStatic(),
		Ledger:   ledgerSvc,
	})
	withdrawals := withdrawal.NewService(store.Withdrawals(), ledgerSvc, nil)

	_, err := ledgerSvc.Credit(context.Background(), "p1", decimal.RequireFromString("200.00"), "sale-seed", "")
	require.NoError(t, err)
	return review.NewService(commissions, withdrawals, ledgerSvc), withdrawals, ledgerSvc
}

func TestRequireAdmin(t *testing.T) {
	assert.NoError(t, review.RequireAdmin(admin))
	assert.NoError(t, review.RequireAdmin(finance))
	assert.NoError(t, review.RequireAdmin(domain.Actor{ID: "root", Role: domain.RoleSuperAdmin}))
	assert.ErrorIs(t, review.RequireAdmin(promoter), domain.ErrForbidden)
	assert.ErrorIs(t, review.RequireAdmin(domain.Actor{}), domain.ErrUnauthorized)
}

func TestRequireOwnerOrAdmin(t *testing.T) {
	assert.NoError(t, review.RequireOwnerOrAdmin(promoter, "p1"))
	assert.NoError(t, review.RequireOwnerOrAdmin(admin, "p1"))
	assert.ErrorIs(t, review.RequireOwnerOrAdmin(stranger, "p1"), domain.ErrForbidden)
	assert.ErrorIs(t, review.RequireOwnerOrAdmin(domain.Actor{}, "p1"), domain.ErrUnauthorized)
}

func TestPromoterCannotReviewOwnWithdrawal(t *testing.T) {
	svc, withdrawals, _ := newReview(t)
	ctx := context.Background()
	w, err := withdrawals.RequestWithdrawal(ctx, "p1", withdrawal.Request{
		Amount: decimal.RequireFromString("100"), PaymentMethod: domain.PaymentPayPal,
		PaymentDetails: map[string]string{"email": "p1@example.com"},
	})
	require.NoError(t, err)

	_, err = svc.ApproveWithdrawal(ctx, promoter, w.ID)
	assert.ErrorIs(t, err, domain.ErrForbidden)
	_, err = svc.CompleteWithdrawal(ctx, promoter, w.ID, "PP-12345")
	assert.ErrorIs(t, err, domain.ErrForbidden)

	stored, err := withdrawals.Get(ctx, w.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.WithdrawalPending, stored.Status)
}

func TestAdminWorkflow(t *testing.T) {
	svc, withdrawals, _ := newReview(t)
	ctx := context.Background()
	w, err := withdrawals.RequestWithdrawal(ctx, "p1", withdrawal.Request{
		Amount: decimal.RequireFromString("100"), PaymentMethod: domain.PaymentPayPal,
		PaymentDetails: map[string]string{"email": "p1@example.com"},
	})
	require.NoError(t, err)

	queue, total, err := svc.ListWithdrawals(ctx, admin, withdrawal.ListFilter{})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, w.ID, queue[0].ID)

	_, err = svc.ApproveWithdrawal(ctx, admin, w.ID)
	require.NoError(t, err)
	done, err := svc.CompleteWithdrawal(ctx, finance, w.ID, "PP-12345")
	require.NoError(t, err)
	assert.Equal(t, "fin-1", done.ReviewerID)

	queue, total, err = svc.ListWithdrawals(ctx, admin, withdrawal.ListFilter{})
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, queue)

	b, err := svc.Wallet(ctx, admin, "p1")
	require.NoError(t, err)
	assert.Equal(t, "100.00", b.Available.StringFixed(2))

	_, err = svc.Wallet(ctx, stranger, "p1")
	assert.ErrorIs(t, err, domain.ErrForbidden)

	rebuilt, err := svc.Reconcile(ctx, admin, "p1")
	require.NoError(t, err)
	assert.True(t, rebuilt.Equal(b))
	_, err = svc.Reconcile(ctx, promoter, "p1")
	assert.ErrorIs(t, err, domain.ErrForbidden)
}

func TestCommissionActionsRequireAdmin(t *testing.T) {
	svc, _, _ := newReview(t)
	ctx := context.Background()
	_, err := svc.ApproveCommission(ctx, promoter, "sale-1")
	assert.ErrorIs(t, err, domain.ErrForbidden)
	_, err = svc.MarkCommissionPaid(ctx, promoter, "sale-1", "batch")
	assert.ErrorIs(t, err, domain.ErrForbidden)
	_, _, err = svc.ListSales(ctx, domain.Actor{}, commission.ListFilter{})
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
	_, err = svc.ApproveCommission(ctx, admin, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
