package postgres

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/affiliate-ledger/internal/domain"
	"github.com/ignite/affiliate-ledger/internal/pkg/distlock"
	"github.com/ignite/affiliate-ledger/internal/service/commission"
	"github.com/ignite/affiliate-ledger/internal/service/ledger"
	"github.com/ignite/affiliate-ledger/internal/service/withdrawal"
)

func setupTestDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	return db, mock, func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		db.Close()
	}
}

var ts = time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)

func TestInPromoterTxTakesAdvisoryLock(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectExec("SELECT pg_advisory_xact_lock").
		WithArgs(distlock.AdvisoryKey("promoter:p1")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	called := false
	err := New(db).Ledger().InPromoterTx(context.Background(), "p1", func(ctx context.Context, tx ledger.Tx) error {
		called = true
		return nil
	})
	require.NoError(t, err)
	assert.True(t, called)
}

func TestInPromoterTxRollsBackOnError(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectExec("SELECT pg_advisory_xact_lock").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	boom := errors.New("boom")
	err := New(db).Ledger().InPromoterTx(context.Background(), "p1", func(ctx context.Context, tx ledger.Tx) error {
		return boom
	})
	assert.ErrorIs(t, err, boom)
}

func TestInsertClickDuplicateSession(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	mock.ExpectExec("INSERT INTO eventlog.clicks").
		WillReturnError(&pq.Error{Code: "23505", Constraint: "clicks_pkey"})

	err := New(db).Events().InsertClick(context.Background(), &domain.ClickEvent{
		ClickSessionID: "cs-1", ReelID: "r", ProductID: "sku", PromoterID: "p1", OccurredAt: ts, RecordedAt: ts,
	})
	assert.ErrorIs(t, err, domain.ErrDuplicateSession)
}

func TestInsertConversionReturnsStoredOnConflict(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	mock.ExpectExec("INSERT INTO eventlog.conversions").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("FROM eventlog.conversions WHERE order_id").
		WithArgs("o-1").
		WillReturnRows(sqlmock.NewRows([]string{"order_id", "click_session_id", "occurred_at", "recorded_at"}).
			AddRow("o-1", "cs-original", ts, ts))

	stored, inserted, err := New(db).Events().InsertConversion(context.Background(), &domain.ConversionEvent{
		OrderID: "o-1", ClickSessionID: "cs-other", OccurredAt: ts, RecordedAt: ts,
	})
	require.NoError(t, err)
	assert.False(t, inserted)
	assert.Equal(t, "cs-original", stored.ClickSessionID)
}

func TestGetClickNotFound(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	mock.ExpectQuery("FROM eventlog.clicks").WithArgs("missing").WillReturnError(sql.ErrNoRows)
	_, err := New(db).Events().GetClick(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestLedgerTotals(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	mock.ExpectQuery("FROM eventlog.wallet_transactions").
		WithArgs("p1").
		WillReturnRows(sqlmock.NewRows([]string{"credits", "debits", "reversals", "reserved"}).
			AddRow("120.00", "50.00", "10.00", "30.00"))

	totals, err := New(db).Ledger().LedgerTotals(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, "50.00", totals.Available().StringFixed(2))
	b := totals.Balance("p1", ts)
	assert.Equal(t, "40.00", b.Withdrawn.StringFixed(2))
	assert.Equal(t, "30.00", b.Pending.StringFixed(2))
}

func TestAppendEntryConflictReturnsExisting(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectExec("SELECT pg_advisory_xact_lock").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("INSERT INTO eventlog.wallet_transactions").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("FROM eventlog.wallet_transactions").
		WithArgs(domain.TxCreditCommission, "sale-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "promoter_id", "type", "amount", "reference_id", "description", "created_at"}).
			AddRow("01J000", "p1", "credit_commission", "5.00", "sale-1", "", ts))
	mock.ExpectCommit()

	var existing *domain.WalletTransaction
	err := New(db).Ledger().InPromoterTx(context.Background(), "p1", func(ctx context.Context, tx ledger.Tx) error {
		var err error
		existing, err = tx.AppendEntry(ctx, &domain.WalletTransaction{
			ID: "01J001", PromoterID: "p1", Type: domain.TxCreditCommission,
			Amount: decimal.RequireFromString("5.00"), ReferenceID: "sale-1", CreatedAt: ts,
		})
		return err
	})
	require.NoError(t, err)
	require.NotNil(t, existing)
	assert.Equal(t, "01J000", existing.ID)
}

func TestInsertWithdrawalDuplicatePending(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectExec("SELECT pg_advisory_xact_lock").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("INSERT INTO materialized.withdrawal_requests").
		WillReturnError(&pq.Error{Code: "23505", Constraint: "withdrawal_requests_one_pending_idx"})
	mock.ExpectRollback()

	err := New(db).Withdrawals().InPromoterTx(context.Background(), "p1", func(ctx context.Context, tx withdrawal.Tx) error {
		return tx.InsertWithdrawal(ctx, &domain.WithdrawalRequest{
			ID: "w-1", PromoterID: "p1", Amount: decimal.RequireFromString("60"),
			PaymentMethod: domain.PaymentPayPal, PaymentDetails: map[string]string{"email": "a@b.c"},
			Status: domain.WithdrawalPending, CreatedAt: ts, UpdatedAt: ts,
		})
	})
	assert.ErrorIs(t, err, domain.ErrDuplicatePendingRequest)
}

func TestUpdateWithdrawalStaleStatus(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectExec("SELECT pg_advisory_xact_lock").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("UPDATE materialized.withdrawal_requests").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := New(db).Withdrawals().InPromoterTx(context.Background(), "p1", func(ctx context.Context, tx withdrawal.Tx) error {
		return tx.UpdateWithdrawal(ctx, &domain.WithdrawalRequest{ID: "w-1", Status: domain.WithdrawalApproved, UpdatedAt: ts},
			domain.WithdrawalPending, "admin-1", "")
	})
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
}

func TestUpdateWithdrawalWritesAudit(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectExec("SELECT pg_advisory_xact_lock").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("UPDATE materialized.withdrawal_requests").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO eventlog.audit_entries").
		WithArgs(sqlmock.AnyArg(), domain.AuditWithdrawal, "w-1", "pending", "rejected", "admin-1", "duplicate account", ts).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := New(db).Withdrawals().InPromoterTx(context.Background(), "p1", func(ctx context.Context, tx withdrawal.Tx) error {
		return tx.UpdateWithdrawal(ctx, &domain.WithdrawalRequest{ID: "w-1", Status: domain.WithdrawalRejected, UpdatedAt: ts},
			domain.WithdrawalPending, "admin-1", "duplicate account")
	})
	require.NoError(t, err)
}

func TestListSalesBuildsFilter(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM materialized.affiliate_sales WHERE promoter_id = \$1 AND commission_status = \$2`).
		WithArgs("p1", domain.CommissionPending).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectQuery(`ORDER BY created_at DESC LIMIT \$3 OFFSET \$4`).
		WithArgs("p1", domain.CommissionPending, 20, 40).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	sales, total, err := New(db).Sales().ListSales(context.Background(), commission.ListFilter{PromoterID: "p1", Status: domain.CommissionPending, Skip: 40, Limit: 20})
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, sales)
}

func TestReplayAndReservedReadInsidePromoterTx(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectExec("SELECT pg_advisory_xact_lock").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("FROM eventlog.wallet_transactions").
		WithArgs("p1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "promoter_id", "type", "amount", "reference_id", "description", "created_at"}).
			AddRow("01J000", "p1", "credit_commission", "5.00", "sale-1", "", ts).
			AddRow("01J001", "p1", "debit_withdrawal", "-2.00", "w-1", "", ts))
	mock.ExpectQuery("FROM materialized.withdrawal_requests").
		WithArgs("p1").
		WillReturnRows(sqlmock.NewRows([]string{"sum"}).AddRow("1.50"))
	mock.ExpectCommit()

	var ids []string
	var reserved decimal.Decimal
	err := New(db).Ledger().InPromoterTx(context.Background(), "p1", func(ctx context.Context, tx ledger.Tx) error {
		if err := tx.ReplayEntries(ctx, "p1", func(e domain.WalletTransaction) error {
			ids = append(ids, e.ID)
			return nil
		}); err != nil {
			return err
		}
		var err error
		reserved, err = tx.ReservedAmount(ctx, "p1")
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"01J000", "01J001"}, ids)
	assert.Equal(t, "1.50", reserved.StringFixed(2))
}

func TestListDueConversionsSkipsBackedOff(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	mock.ExpectQuery("LEFT JOIN materialized.attribution_failures f").
		WithArgs(2, ts).
		WillReturnRows(sqlmock.NewRows([]string{"order_id", "click_session_id", "occurred_at", "recorded_at"}).
			AddRow("o-3", "cs-3", ts, ts))

	convs, err := New(db).Events().ListDueConversions(context.Background(), ts, 2)
	require.NoError(t, err)
	require.Len(t, convs, 1)
	assert.Equal(t, "o-3", convs[0].OrderID)
}

func TestUpsertAttributionFailure(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	next := ts.Add(2 * time.Minute)
	mock.ExpectExec("INSERT INTO materialized.attribution_failures").
		WithArgs("o-1", 2, "catalog down", ts, next).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("FROM materialized.attribution_failures").
		WithArgs("o-9").
		WillReturnError(sql.ErrNoRows)

	repo := New(db).Events()
	require.NoError(t, repo.UpsertAttributionFailure(context.Background(), &domain.AttributionFailure{
		OrderID: "o-1", Attempts: 2, LastError: "catalog down", LastAttemptAt: ts, NextAttemptAt: next,
	}))
	_, err := repo.GetAttributionFailure(context.Background(), "o-9")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestCreateRejectedSaleWritesAudit(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	sale := &domain.AffiliateSale{ID: "s-1", OrderID: "o-1", ClickSessionID: "cs-1", CreatedAt: ts, UpdatedAt: ts}
	sale.Apply(domain.CommissionRejected, domain.SaleChange{ReviewerID: "system", Reason: "unattributed: click_not_found", At: ts})

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO materialized.affiliate_sales").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO eventlog.audit_entries").
		WithArgs(sqlmock.AnyArg(), domain.AuditSale, "s-1", "pending", "rejected", "system", "unattributed: click_not_found", ts).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	stored, created, err := New(db).Sales().CreateSale(context.Background(), sale)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, domain.CommissionRejected, stored.CommissionStatus)
}
