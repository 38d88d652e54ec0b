package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ignite/affiliate-ledger/internal/domain"
	"github.com/ignite/affiliate-ledger/internal/service/withdrawal"
)

// WithdrawalRepo implements withdrawal.Repository against
// materialized.withdrawal_requests.
type WithdrawalRepo struct{ s *Store }

const withdrawalColumns = `
	id, promoter_id, amount, payment_method, payment_details, status,
	COALESCE(reviewer_id, ''), reviewed_at, COALESCE(rejection_reason, ''),
	COALESCE(completion_reference, ''), completed_at, COALESCE(reversal_reason, ''),
	created_at, updated_at`

func scanWithdrawal(row interface{ Scan(...any) error }) (*domain.WithdrawalRequest, error) {
	w := &domain.WithdrawalRequest{}
	var details []byte
	err := row.Scan(
		&w.ID, &w.PromoterID, &w.Amount, &w.PaymentMethod, &details, &w.Status,
		&w.ReviewerID, &w.ReviewedAt, &w.RejectionReason,
		&w.CompletionReference, &w.CompletedAt, &w.ReversalReason,
		&w.CreatedAt, &w.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(details) > 0 {
		if err := json.Unmarshal(details, &w.PaymentDetails); err != nil {
			return nil, fmt.Errorf("decode payment details: %w", err)
		}
	}
	return w, nil
}

func getWithdrawal(ctx context.Context, q querier, clause string, args ...any) (*domain.WithdrawalRequest, error) {
	w, err := scanWithdrawal(q.QueryRowContext(ctx, `SELECT `+withdrawalColumns+` FROM materialized.withdrawal_requests `+clause, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get withdrawal: %w", err)
	}
	return w, nil
}

func (r *WithdrawalRepo) InPromoterTx(ctx context.Context, promoterID string, fn func(ctx context.Context, tx withdrawal.Tx) error) error {
	return r.s.inPromoterTx(ctx, promoterID, func(ctx context.Context, tx *Tx) error { return fn(ctx, tx) })
}

func (r *WithdrawalRepo) GetWithdrawal(ctx context.Context, id string) (*domain.WithdrawalRequest, error) {
	return getWithdrawal(ctx, r.s.db, `WHERE id = $1`, id)
}

func (r *WithdrawalRepo) ListWithdrawals(ctx context.Context, f withdrawal.ListFilter) ([]domain.WithdrawalRequest, int, error) {
	var w where
	if f.PromoterID != "" {
		w.add("promoter_id = $%d", f.PromoterID)
	}
	if f.Status != "" {
		w.add("status = $%d", f.Status)
	}

	var total int
	if err := r.s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM materialized.withdrawal_requests`+w.String(), w.args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count withdrawals: %w", err)
	}

	limit, args := w.page(f.Limit, f.Skip)
	rows, err := r.s.db.QueryContext(ctx, `SELECT `+withdrawalColumns+` FROM materialized.withdrawal_requests`+
		w.String()+` ORDER BY created_at DESC`+limit, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list withdrawals: %w", err)
	}
	defer rows.Close()

	out := []domain.WithdrawalRequest{}
	for rows.Next() {
		req, err := scanWithdrawal(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan withdrawal: %w", err)
		}
		out = append(out, *req)
	}
	return out, total, rows.Err()
}

func (r *WithdrawalRepo) CountWithdrawals(ctx context.Context, promoterID string) (map[domain.WithdrawalStatus]int, error) {
	rows, err := r.s.db.QueryContext(ctx, `
		SELECT status, COUNT(*) FROM materialized.withdrawal_requests
		WHERE promoter_id = $1
		GROUP BY status
	`, promoterID)
	if err != nil {
		return nil, fmt.Errorf("count withdrawals: %w", err)
	}
	defer rows.Close()

	counts := make(map[domain.WithdrawalStatus]int)
	for rows.Next() {
		var (
			status domain.WithdrawalStatus
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scan withdrawal count: %w", err)
		}
		counts[status] = n
	}
	return counts, rows.Err()
}

func (tx *Tx) PendingWithdrawal(ctx context.Context, promoterID string) (*domain.WithdrawalRequest, error) {
	w, err := getWithdrawal(ctx, tx.tx, `WHERE promoter_id = $1 AND status = $2`, promoterID, domain.WithdrawalPending)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, nil
	}
	return w, err
}

func (tx *Tx) InsertWithdrawal(ctx context.Context, w *domain.WithdrawalRequest) error {
	details, err := json.Marshal(w.PaymentDetails)
	if err != nil {
		return fmt.Errorf("encode payment details: %w", err)
	}
	_, err = tx.tx.ExecContext(ctx, `
		INSERT INTO materialized.withdrawal_requests
			(id, promoter_id, amount, payment_method, payment_details, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, w.ID, w.PromoterID, w.Amount, w.PaymentMethod, details, w.Status, w.CreatedAt, w.UpdatedAt)
	if uniqueViolation(err, "withdrawal_requests_one_pending_idx") {
		return domain.ErrDuplicatePendingRequest
	}
	if err != nil {
		return fmt.Errorf("insert withdrawal: %w", err)
	}
	return nil
}

func (tx *Tx) GetWithdrawal(ctx context.Context, id string) (*domain.WithdrawalRequest, error) {
	return getWithdrawal(ctx, tx.tx, `WHERE id = $1 FOR UPDATE`, id)
}

func (tx *Tx) UpdateWithdrawal(ctx context.Context, w *domain.WithdrawalRequest, from domain.WithdrawalStatus, actorID, reason string) error {
	res, err := tx.tx.ExecContext(ctx, `
		UPDATE materialized.withdrawal_requests
		SET status = $3, reviewer_id = $4, reviewed_at = $5, rejection_reason = $6,
		    completion_reference = $7, completed_at = $8, reversal_reason = $9, updated_at = $10
		WHERE id = $1 AND status = $2
	`, w.ID, from, w.Status, nullString(w.ReviewerID), w.ReviewedAt, nullString(w.RejectionReason),
		nullString(w.CompletionReference), w.CompletedAt, nullString(w.ReversalReason), w.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update withdrawal: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrInvalidTransition
	}
	return insertAudit(ctx, tx.tx, domain.AuditEntry{
		EntityType: domain.AuditWithdrawal,
		EntityID:   w.ID,
		FromStatus: string(from),
		ToStatus:   string(w.Status),
		ActorID:    actorID,
		Reason:     reason,
		CreatedAt:  w.UpdatedAt,
	})
}
