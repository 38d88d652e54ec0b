package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ignite/affiliate-ledger/internal/domain"
	"github.com/ignite/affiliate-ledger/internal/service/ledger"
)

// LedgerRepo implements ledger.Store.
type LedgerRepo struct{ s *Store }

const entryColumns = `id, promoter_id, type, amount, reference_id, COALESCE(description, ''), created_at`

// totalsQuery folds the ledger and the open reservations in one round
// trip. Debits are stored negative and summed as a magnitude.
const totalsQuery = `
	SELECT
		COALESCE(SUM(amount) FILTER (WHERE type = 'credit_commission'), 0),
		COALESCE(-SUM(amount) FILTER (WHERE type = 'debit_withdrawal'), 0),
		COALESCE(SUM(amount) FILTER (WHERE type = 'reversal'), 0),
		(SELECT COALESCE(SUM(w.amount), 0) FROM materialized.withdrawal_requests w
		 WHERE w.promoter_id = $1 AND w.status IN ('pending', 'approved'))
	FROM eventlog.wallet_transactions
	WHERE promoter_id = $1`

func scanEntry(row interface{ Scan(...any) error }) (*domain.WalletTransaction, error) {
	e := &domain.WalletTransaction{}
	if err := row.Scan(&e.ID, &e.PromoterID, &e.Type, &e.Amount, &e.ReferenceID, &e.Description, &e.CreatedAt); err != nil {
		return nil, err
	}
	return e, nil
}

func loadTotals(ctx context.Context, q querier, promoterID string) (domain.LedgerTotals, error) {
	var t domain.LedgerTotals
	if err := q.QueryRowContext(ctx, totalsQuery, promoterID).Scan(&t.Credits, &t.Debits, &t.Reversals, &t.Reserved); err != nil {
		return domain.LedgerTotals{}, fmt.Errorf("sum ledger: %w", err)
	}
	return t, nil
}

func (r *LedgerRepo) InPromoterTx(ctx context.Context, promoterID string, fn func(ctx context.Context, tx ledger.Tx) error) error {
	return r.s.inPromoterTx(ctx, promoterID, func(ctx context.Context, tx *Tx) error { return fn(ctx, tx) })
}

func (r *LedgerRepo) LedgerTotals(ctx context.Context, promoterID string) (domain.LedgerTotals, error) {
	return loadTotals(ctx, r.s.db, promoterID)
}

func (tx *Tx) ReservedAmount(ctx context.Context, promoterID string) (decimal.Decimal, error) {
	var sum decimal.Decimal
	err := tx.tx.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(amount), 0) FROM materialized.withdrawal_requests
		WHERE promoter_id = $1 AND status IN ('pending', 'approved')
	`, promoterID).Scan(&sum)
	if err != nil {
		return decimal.Zero, fmt.Errorf("sum reserved: %w", err)
	}
	return sum, nil
}

func (tx *Tx) ReplayEntries(ctx context.Context, promoterID string, fn func(domain.WalletTransaction) error) error {
	rows, err := tx.tx.QueryContext(ctx, `
		SELECT `+entryColumns+`
		FROM eventlog.wallet_transactions
		WHERE promoter_id = $1
		ORDER BY created_at, id
	`, promoterID)
	if err != nil {
		return fmt.Errorf("replay ledger: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return fmt.Errorf("scan entry: %w", err)
		}
		if err := fn(*e); err != nil {
			return err
		}
	}
	return rows.Err()
}

// EntriesBetween streams every entry created in [from, to), oldest first.
func (r *LedgerRepo) EntriesBetween(ctx context.Context, from, to time.Time, fn func(domain.WalletTransaction) error) error {
	rows, err := r.s.db.QueryContext(ctx, `
		SELECT `+entryColumns+`
		FROM eventlog.wallet_transactions
		WHERE created_at >= $1 AND created_at < $2
		ORDER BY created_at, id
	`, from, to)
	if err != nil {
		return fmt.Errorf("list entries: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return fmt.Errorf("scan entry: %w", err)
		}
		if err := fn(*e); err != nil {
			return err
		}
	}
	return rows.Err()
}

func (r *LedgerRepo) ListEntries(ctx context.Context, f ledger.ListFilter) ([]domain.WalletTransaction, int, error) {
	var w where
	if f.PromoterID != "" {
		w.add("promoter_id = $%d", f.PromoterID)
	}
	if f.Type != "" {
		w.add("type = $%d", f.Type)
	}

	var total int
	if err := r.s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM eventlog.wallet_transactions`+w.String(), w.args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count entries: %w", err)
	}

	limit, args := w.page(f.Limit, f.Skip)
	rows, err := r.s.db.QueryContext(ctx, `SELECT `+entryColumns+` FROM eventlog.wallet_transactions`+
		w.String()+` ORDER BY created_at DESC, id DESC`+limit, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list entries: %w", err)
	}
	defer rows.Close()

	out := []domain.WalletTransaction{}
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan entry: %w", err)
		}
		out = append(out, *e)
	}
	return out, total, rows.Err()
}

func (r *LedgerRepo) PromoterIDs(ctx context.Context) ([]string, error) {
	rows, err := r.s.db.QueryContext(ctx, `
		SELECT promoter_id FROM eventlog.wallet_transactions
		UNION
		SELECT promoter_id FROM materialized.withdrawal_requests
		ORDER BY 1
	`)
	if err != nil {
		return nil, fmt.Errorf("list promoters: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan promoter id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (tx *Tx) FindEntry(ctx context.Context, typ domain.TransactionType, referenceID string) (*domain.WalletTransaction, error) {
	e, err := scanEntry(tx.tx.QueryRowContext(ctx, `
		SELECT `+entryColumns+`
		FROM eventlog.wallet_transactions
		WHERE type = $1 AND reference_id = $2
	`, typ, referenceID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find entry: %w", err)
	}
	return e, nil
}

func (tx *Tx) AppendEntry(ctx context.Context, e *domain.WalletTransaction) (*domain.WalletTransaction, error) {
	res, err := tx.tx.ExecContext(ctx, `
		INSERT INTO eventlog.wallet_transactions
			(id, promoter_id, type, amount, reference_id, description, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (type, reference_id) DO NOTHING
	`, e.ID, e.PromoterID, e.Type, e.Amount, e.ReferenceID, nullString(e.Description), e.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert entry: %w", err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return nil, nil
	}
	existing, err := tx.FindEntry(ctx, e.Type, e.ReferenceID)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, fmt.Errorf("entry %s/%s conflicted but is not visible", e.Type, e.ReferenceID)
	}
	return existing, nil
}

func (tx *Tx) LedgerTotals(ctx context.Context, promoterID string) (domain.LedgerTotals, error) {
	return loadTotals(ctx, tx.tx, promoterID)
}
