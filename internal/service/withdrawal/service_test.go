package withdrawal_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/affiliate-ledger/internal/domain"
	"github.com/ignite/affiliate-ledger/internal/repository/memory"
	"github.com/ignite/affiliate-ledger/internal/service/ledger"
	"github.com/ignite/affiliate-ledger/internal/service/withdrawal"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

var paypal = map[string]string{"email": "promoter@example.com"}

type fixture struct {
	store  *memory.Store
	ledger *ledger.Service
	svc    *withdrawal.Service
}

func newFixture(t *testing.T, funded string) *fixture {
	t.Helper()
	store := memory.New()
	ledgerSvc := ledger.NewService(store.Ledger(), nil)
	if funded != "" {
		_, err := ledgerSvc.Credit(context.Background(), "p1", d(funded), "sale-seed", "seed")
		require.NoError(t, err)
	}
	return &fixture{store: store, ledger: ledgerSvc, svc: withdrawal.NewService(store.Withdrawals(), ledgerSvc, nil)}
}

func (f *fixture) request(amount string) (*domain.WithdrawalRequest, error) {
	return f.svc.RequestWithdrawal(context.Background(), "p1", withdrawal.Request{
		Amount: d(amount), PaymentMethod: domain.PaymentPayPal, PaymentDetails: paypal,
	})
}

func (f *fixture) balance(t *testing.T) domain.Balance {
	t.Helper()
	b, err := f.ledger.BalanceOf(context.Background(), "p1")
	require.NoError(t, err)
	return b
}

func TestOnePendingRequestAtATime(t *testing.T) {
	f := newFixture(t, "120.00")

	w, err := f.request("100.00")
	require.NoError(t, err)
	assert.Equal(t, domain.WithdrawalPending, w.Status)

	b := f.balance(t)
	assert.Equal(t, "20.00", b.Available.StringFixed(2))
	assert.Equal(t, "100.00", b.Pending.StringFixed(2))

	_, err = f.request("50.00")
	assert.ErrorIs(t, err, domain.ErrDuplicatePendingRequest)

	_, err = f.svc.Reject(context.Background(), w.ID, "admin-1", "details could not be verified")
	require.NoError(t, err)
	b = f.balance(t)
	assert.Equal(t, "120.00", b.Available.StringFixed(2))
	assert.True(t, b.Pending.IsZero())

	_, err = f.request("50.00")
	require.NoError(t, err)
}

func TestRequestValidation(t *testing.T) {
	f := newFixture(t, "20000.00")
	ctx := context.Background()

	_, err := f.request("49.99")
	assert.ErrorIs(t, err, domain.ErrValidation)
	_, err = f.request("10000.01")
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = f.svc.RequestWithdrawal(ctx, "p1", withdrawal.Request{
		Amount: d("60"), PaymentMethod: domain.PaymentPayPal, PaymentDetails: map[string]string{"email": "nope"},
	})
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = f.svc.RequestWithdrawal(ctx, "p1", withdrawal.Request{
		Amount: d("60"), PaymentMethod: domain.PaymentBankTransfer,
		PaymentDetails: map[string]string{"account_holder_name": "A", "bank_name": "B", "account_number": "123"},
	})
	assert.ErrorIs(t, err, domain.ErrValidation)

	w, err := f.svc.RequestWithdrawal(ctx, "p1", withdrawal.Request{
		Amount: d("60.005"), PaymentMethod: domain.PaymentBankTransfer,
		PaymentDetails: map[string]string{"account_holder_name": "A", "bank_name": "B", "account_number": "123", "routing_number": "021000021"},
	})
	require.NoError(t, err)
	assert.Equal(t, "60.00", w.Amount.StringFixed(2), "amounts round half to even")
}

func TestRequestInsufficientFunds(t *testing.T) {
	f := newFixture(t, "80.00")
	_, err := f.request("80.01")
	var insufficient *domain.InsufficientFundsError
	require.ErrorAs(t, err, &insufficient)
	assert.Equal(t, "80.00", insufficient.Available.StringFixed(2))

	list, total, err := f.svc.List(context.Background(), withdrawal.ListFilter{PromoterID: "p1"})
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, list)
}

func TestConcurrentRequestsLeaveOnePending(t *testing.T) {
	f := newFixture(t, "1000.00")

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		created int
		dupes   int
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.request("60.00")
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				created++
			case errors.Is(err, domain.ErrDuplicatePendingRequest):
				dupes++
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, created)
	assert.Equal(t, 19, dupes)
	assert.Equal(t, "940.00", f.balance(t).Available.StringFixed(2))
}

func TestCompleteDebitsOnce(t *testing.T) {
	f := newFixture(t, "200.00")
	ctx := context.Background()

	w, err := f.request("150.00")
	require.NoError(t, err)

	_, err = f.svc.Complete(ctx, w.ID, "admin-1", "PP-12345")
	assert.ErrorIs(t, err, domain.ErrInvalidTransition, "pending requests must be approved first")

	_, err = f.svc.Approve(ctx, w.ID, "admin-1")
	require.NoError(t, err)
	assert.Equal(t, "50.00", f.balance(t).Available.StringFixed(2), "approval moves no money")

	_, err = f.svc.Complete(ctx, w.ID, "admin-1", "abc")
	assert.ErrorIs(t, err, domain.ErrValidation)

	done, err := f.svc.Complete(ctx, w.ID, "admin-1", "PP-12345")
	require.NoError(t, err)
	assert.Equal(t, domain.WithdrawalCompleted, done.Status)
	assert.Equal(t, "PP-12345", done.CompletionReference)

	_, err = f.svc.Complete(ctx, w.ID, "admin-1", "PP-12345")
	require.NoError(t, err)

	entries, total, err := f.ledger.Transactions(ctx, ledger.ListFilter{PromoterID: "p1", Type: domain.TxDebitWithdrawal})
	require.NoError(t, err)
	require.Equal(t, 1, total)
	assert.Equal(t, "-150.00", entries[0].Amount.StringFixed(2))
	assert.Equal(t, w.ID, entries[0].ReferenceID)

	b := f.balance(t)
	assert.Equal(t, "50.00", b.Available.StringFixed(2))
	assert.Equal(t, "150.00", b.Withdrawn.StringFixed(2))
	assert.True(t, b.Pending.IsZero())
}

func TestRejectRequiresReason(t *testing.T) {
	f := newFixture(t, "100.00")
	w, err := f.request("60.00")
	require.NoError(t, err)
	_, err = f.svc.Reject(context.Background(), w.ID, "admin-1", "too short")
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestReverse(t *testing.T) {
	t.Run("approved request releases its reservation", func(t *testing.T) {
		f := newFixture(t, "100.00")
		ctx := context.Background()
		w, err := f.request("60.00")
		require.NoError(t, err)
		_, err = f.svc.Approve(ctx, w.ID, "admin-1")
		require.NoError(t, err)

		reversed, err := f.svc.Reverse(ctx, w.ID, "admin-1", "payout provider outage")
		require.NoError(t, err)
		assert.Equal(t, domain.WithdrawalReversed, reversed.Status)
		assert.Equal(t, "100.00", f.balance(t).Available.StringFixed(2))

		_, total, err := f.ledger.Transactions(ctx, ledger.ListFilter{PromoterID: "p1", Type: domain.TxReversal})
		require.NoError(t, err)
		assert.Zero(t, total)
	})

	t.Run("completed request gets a reversal entry", func(t *testing.T) {
		f := newFixture(t, "100.00")
		ctx := context.Background()
		w, err := f.request("60.00")
		require.NoError(t, err)
		_, err = f.svc.Approve(ctx, w.ID, "admin-1")
		require.NoError(t, err)
		_, err = f.svc.Complete(ctx, w.ID, "admin-1", "PP-12345")
		require.NoError(t, err)

		_, err = f.svc.Reverse(ctx, w.ID, "admin-1", "bank returned the payment")
		require.NoError(t, err)
		_, err = f.svc.Reverse(ctx, w.ID, "admin-1", "bank returned the payment")
		require.NoError(t, err)

		b := f.balance(t)
		assert.Equal(t, "100.00", b.Available.StringFixed(2))
		assert.True(t, b.Withdrawn.IsZero())
	})

	t.Run("pending request cannot be reversed", func(t *testing.T) {
		f := newFixture(t, "100.00")
		w, err := f.request("60.00")
		require.NoError(t, err)
		_, err = f.svc.Reverse(context.Background(), w.ID, "admin-1", "changed my mind here")
		assert.ErrorIs(t, err, domain.ErrInvalidTransition)
	})
}

func TestAuditTrailRecordsTransitions(t *testing.T) {
	f := newFixture(t, "100.00")
	ctx := context.Background()
	w, err := f.request("60.00")
	require.NoError(t, err)
	_, err = f.svc.Approve(ctx, w.ID, "admin-1")
	require.NoError(t, err)
	_, err = f.svc.Complete(ctx, w.ID, "admin-2", "PP-12345")
	require.NoError(t, err)

	trail := f.store.AuditTrail()
	require.Len(t, trail, 2)
	assert.Equal(t, domain.AuditWithdrawal, trail[1].EntityType)
	assert.Equal(t, "approved", trail[1].FromStatus)
	assert.Equal(t, "completed", trail[1].ToStatus)
	assert.Equal(t, "admin-2", trail[1].ActorID)
	assert.Equal(t, "PP-12345", trail[1].Reason)
}

func TestStats(t *testing.T) {
	f := newFixture(t, "300.00")
	ctx := context.Background()
	w, err := f.request("100.00")
	require.NoError(t, err)
	_, err = f.svc.Approve(ctx, w.ID, "admin-1")
	require.NoError(t, err)
	_, err = f.svc.Complete(ctx, w.ID, "admin-1", "PP-12345")
	require.NoError(t, err)
	_, err = f.request("75.00")
	require.NoError(t, err)

	stats, err := f.svc.Stats(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, "125.00", stats.AvailableBalance.StringFixed(2))
	assert.Equal(t, "75.00", stats.PendingBalance.StringFixed(2))
	assert.Equal(t, "100.00", stats.TotalWithdrawn.StringFixed(2))
	assert.Equal(t, 1, stats.PendingCount)
	assert.Equal(t, 1, stats.CompletedCount)
	assert.Equal(t, 2, stats.TotalCount)
}
