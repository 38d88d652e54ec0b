// Package postgres implements the repository contracts against PostgreSQL.
//
// Append-only logs (events, ledger entries, status audit) live in the
// eventlog schema; rows that change state (affiliate sales, withdrawal
// requests) live in the materialized schema. Per-promoter transactions
// take a transaction-scoped advisory lock so writes for one promoter are
// serialized across every API and worker process.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"github.com/ignite/affiliate-ledger/internal/pkg/distlock"
	"github.com/ignite/affiliate-ledger/internal/pkg/logger"
)

// Store shares one connection pool between the typed repositories.
type Store struct{ db *sql.DB }

// New creates a Postgres-backed store.
func New(db *sql.DB) *Store { return &Store{db: db} }

// Events returns the event-log repository.
func (s *Store) Events() *EventRepo { return &EventRepo{db: s.db} }

// Sales returns the affiliate-sale repository.
func (s *Store) Sales() *SaleRepo { return &SaleRepo{s: s} }

// Ledger returns the wallet-ledger repository.
func (s *Store) Ledger() *LedgerRepo { return &LedgerRepo{s: s} }

// Withdrawals returns the withdrawal-request repository.
func (s *Store) Withdrawals() *WithdrawalRepo { return &WithdrawalRepo{s: s} }

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Tx is a per-promoter transaction. It implements the Tx contracts of the
// ledger, commission and withdrawal services.
type Tx struct{ tx *sql.Tx }

// inTx runs fn in a database transaction, committing on success.
func (s *Store) inTx(ctx context.Context, fn func(ctx context.Context, tx *Tx) error) (err error) {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := sqlTx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				logger.Error("[Postgres] rollback failed", "error", rbErr)
			}
		}
	}()

	if err = fn(ctx, &Tx{tx: sqlTx}); err != nil {
		return err
	}
	if err = sqlTx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// inPromoterTx runs fn holding the promoter's advisory lock until commit
// or rollback.
func (s *Store) inPromoterTx(ctx context.Context, promoterID string, fn func(ctx context.Context, tx *Tx) error) error {
	return s.inTx(ctx, func(ctx context.Context, tx *Tx) error {
		if _, err := tx.tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`,
			distlock.AdvisoryKey("promoter:"+promoterID)); err != nil {
			return fmt.Errorf("lock promoter %s: %w", promoterID, err)
		}
		return fn(ctx, tx)
	})
}

// uniqueViolation reports whether err is a unique-constraint failure on the
// named constraint. An empty name matches any unique violation.
func uniqueViolation(err error, constraint string) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) || pqErr.Code != "23505" {
		return false
	}
	return constraint == "" || pqErr.Constraint == constraint
}

// nullString maps "" to NULL.
func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// where accumulates optional AND-ed conditions with positional arguments.
type where struct {
	conds []string
	args  []any
}

// add appends cond, which must contain one %d for the placeholder index.
func (w *where) add(cond string, arg any) {
	w.args = append(w.args, arg)
	w.conds = append(w.conds, fmt.Sprintf(cond, len(w.args)))
}

func (w *where) String() string {
	if len(w.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.conds, " AND ")
}

// page appends LIMIT and OFFSET placeholders and returns the full argument
// list.
func (w *where) page(limit, skip int) (string, []any) {
	if limit <= 0 {
		limit = 50
	}
	n := len(w.args)
	return fmt.Sprintf(" LIMIT $%d OFFSET $%d", n+1, n+2), append(append([]any{}, w.args...), limit, skip)
}
