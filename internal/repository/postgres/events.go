package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ignite/affiliate-ledger/internal/domain"
)

// EventRepo implements recorder.Repository against the eventlog schema.
type EventRepo struct{ db *sql.DB }

func (r *EventRepo) InsertView(ctx context.Context, v *domain.ViewEvent) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO eventlog.views
			(id, reel_id, promoter_id, product_id, viewer_id, session_id,
			 watch_duration_ms, completion_rate, occurred_at, recorded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (reel_id, viewer_id, session_id)
			WHERE viewer_id IS NOT NULL AND session_id IS NOT NULL
		DO NOTHING
	`, v.ID, v.ReelID, v.PromoterID, nullString(v.ProductID), nullString(v.ViewerID), nullString(v.SessionID),
		v.WatchDurationMs, v.CompletionRate, v.OccurredAt, v.RecordedAt)
	if err != nil {
		return false, fmt.Errorf("insert view: %w", err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return true, nil
	}

	err = r.db.QueryRowContext(ctx, `
		SELECT id FROM eventlog.views
		WHERE reel_id = $1 AND viewer_id = $2 AND session_id = $3
	`, v.ReelID, v.ViewerID, v.SessionID).Scan(&v.ID)
	if err != nil {
		return false, fmt.Errorf("lookup duplicate view: %w", err)
	}
	return false, nil
}

func (r *EventRepo) InsertClick(ctx context.Context, c *domain.ClickEvent) error {
	var device []byte
	if len(c.DeviceInfo) > 0 {
		var err error
		if device, err = json.Marshal(c.DeviceInfo); err != nil {
			return fmt.Errorf("encode device info: %w", err)
		}
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO eventlog.clicks
			(click_session_id, reel_id, product_id, promoter_id, viewer_id, device_info, occurred_at, recorded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, c.ClickSessionID, c.ReelID, c.ProductID, c.PromoterID, nullString(c.ViewerID), device, c.OccurredAt, c.RecordedAt)
	if uniqueViolation(err, "clicks_pkey") {
		return domain.ErrDuplicateSession
	}
	if err != nil {
		return fmt.Errorf("insert click: %w", err)
	}
	return nil
}

func (r *EventRepo) InsertConversion(ctx context.Context, c *domain.ConversionEvent) (*domain.ConversionEvent, bool, error) {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO eventlog.conversions (order_id, click_session_id, occurred_at, recorded_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (order_id) DO NOTHING
	`, c.OrderID, c.ClickSessionID, c.OccurredAt, c.RecordedAt)
	if err != nil {
		return nil, false, fmt.Errorf("insert conversion: %w", err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return c, true, nil
	}

	stored := &domain.ConversionEvent{}
	err = r.db.QueryRowContext(ctx, `
		SELECT order_id, click_session_id, occurred_at, recorded_at
		FROM eventlog.conversions WHERE order_id = $1
	`, c.OrderID).Scan(&stored.OrderID, &stored.ClickSessionID, &stored.OccurredAt, &stored.RecordedAt)
	if err != nil {
		return nil, false, fmt.Errorf("lookup stored conversion: %w", err)
	}
	return stored, false, nil
}

func (r *EventRepo) GetClick(ctx context.Context, clickSessionID string) (*domain.ClickEvent, error) {
	c := &domain.ClickEvent{}
	var device []byte
	err := r.db.QueryRowContext(ctx, `
		SELECT click_session_id, reel_id, product_id, promoter_id, COALESCE(viewer_id, ''),
		       device_info, occurred_at, recorded_at
		FROM eventlog.clicks
		WHERE click_session_id = $1
	`, clickSessionID).Scan(&c.ClickSessionID, &c.ReelID, &c.ProductID, &c.PromoterID, &c.ViewerID,
		&device, &c.OccurredAt, &c.RecordedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get click: %w", err)
	}
	if len(device) > 0 {
		if err := json.Unmarshal(device, &c.DeviceInfo); err != nil {
			return nil, fmt.Errorf("decode device info: %w", err)
		}
	}
	return c, nil
}

func (r *EventRepo) ListUnresolvedConversions(ctx context.Context, limit int) ([]domain.ConversionEvent, error) {
	return r.queryConversions(ctx, `
		SELECT c.order_id, c.click_session_id, c.occurred_at, c.recorded_at
		FROM eventlog.conversions c
		LEFT JOIN materialized.affiliate_sales s ON s.order_id = c.order_id
		WHERE s.id IS NULL
		ORDER BY c.recorded_at
		LIMIT $1
	`, limit)
}

func (r *EventRepo) ListDueConversions(ctx context.Context, now time.Time, limit int) ([]domain.ConversionEvent, error) {
	return r.queryConversions(ctx, `
		SELECT c.order_id, c.click_session_id, c.occurred_at, c.recorded_at
		FROM eventlog.conversions c
		LEFT JOIN materialized.affiliate_sales s ON s.order_id = c.order_id
		LEFT JOIN materialized.attribution_failures f ON f.order_id = c.order_id
		WHERE s.id IS NULL AND (f.order_id IS NULL OR f.next_attempt_at <= $2)
		ORDER BY c.recorded_at
		LIMIT $1
	`, limit, now)
}

func (r *EventRepo) queryConversions(ctx context.Context, query string, args ...any) ([]domain.ConversionEvent, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list unresolved conversions: %w", err)
	}
	defer rows.Close()

	var out []domain.ConversionEvent
	for rows.Next() {
		var c domain.ConversionEvent
		if err := rows.Scan(&c.OrderID, &c.ClickSessionID, &c.OccurredAt, &c.RecordedAt); err != nil {
			return nil, fmt.Errorf("scan conversion: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *EventRepo) GetAttributionFailure(ctx context.Context, orderID string) (*domain.AttributionFailure, error) {
	f := &domain.AttributionFailure{}
	err := r.db.QueryRowContext(ctx, `
		SELECT order_id, attempts, last_error, last_attempt_at, next_attempt_at
		FROM materialized.attribution_failures WHERE order_id = $1
	`, orderID).Scan(&f.OrderID, &f.Attempts, &f.LastError, &f.LastAttemptAt, &f.NextAttemptAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get attribution failure: %w", err)
	}
	return f, nil
}

func (r *EventRepo) UpsertAttributionFailure(ctx context.Context, f *domain.AttributionFailure) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO materialized.attribution_failures
			(order_id, attempts, last_error, last_attempt_at, next_attempt_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (order_id) DO UPDATE SET
			attempts = EXCLUDED.attempts,
			last_error = EXCLUDED.last_error,
			last_attempt_at = EXCLUDED.last_attempt_at,
			next_attempt_at = EXCLUDED.next_attempt_at
	`, f.OrderID, f.Attempts, f.LastError, f.LastAttemptAt, f.NextAttemptAt)
	if err != nil {
		return fmt.Errorf("upsert attribution failure: %w", err)
	}
	return nil
}

func (r *EventRepo) CountEngagement(ctx context.Context, promoterID string, since time.Time) (int, int, error) {
	var views, clicks int
	err := r.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM eventlog.views  WHERE promoter_id = $1 AND occurred_at >= $2),
			(SELECT COUNT(*) FROM eventlog.clicks WHERE promoter_id = $1 AND occurred_at >= $2)
	`, promoterID, since).Scan(&views, &clicks)
	if err != nil {
		return 0, 0, fmt.Errorf("count engagement: %w", err)
	}
	return views, clicks, nil
}
