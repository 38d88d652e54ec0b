package recorder

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ignite/affiliate-ledger/internal/domain"
	"github.com/ignite/affiliate-ledger/internal/pkg/logger"
)

// MaxClockSkew is how far in the future a device timestamp may be.
const MaxClockSkew = 5 * time.Minute

// Failed attributions are retried after RetryBaseDelay, doubling per
// attempt up to RetryMaxDelay.
const (
	RetryBaseDelay = time.Minute
	RetryMaxDelay  = 6 * time.Hour
)

// RetryBackoff returns the delay before attempt number attempts+1.
func RetryBackoff(attempts int) time.Duration {
	if attempts < 1 {
		return 0
	}
	d := RetryBaseDelay
	for i := 1; i < attempts; i++ {
		d *= 2
		if d >= RetryMaxDelay {
			return RetryMaxDelay
		}
	}
	return d
}

// Service validates and appends engagement events. It is safe for
// concurrent use; the store alone arbitrates uniqueness.
type Service struct {
	repo Repository
	now  func() time.Time
}

// NewService creates a recorder backed by the given event store.
func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: func() time.Time { return time.Now().UTC() }}
}

// WithClock replaces the time source. Intended for tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

func (s *Service) stamp(occurred *time.Time, recorded *time.Time) error {
	now := s.now()
	if occurred.IsZero() {
		*occurred = now
	}
	if occurred.After(now.Add(MaxClockSkew)) {
		return domain.Invalid("occurred_at", "is in the future")
	}
	*occurred = occurred.UTC()
	*recorded = now
	return nil
}

// RecordView appends a view. Replays of a deduplicable view return the
// stored event id without writing.
func (s *Service) RecordView(ctx context.Context, v domain.ViewEvent) (*domain.ViewEvent, error) {
	if err := v.Validate(); err != nil {
		return nil, err
	}
	if err := s.stamp(&v.OccurredAt, &v.RecordedAt); err != nil {
		return nil, err
	}
	v.ID = uuid.NewString()

	inserted, err := s.repo.InsertView(ctx, &v)
	if err != nil {
		return nil, fmt.Errorf("record view: %w", err)
	}
	if !inserted {
		logger.Debug("[Recorder] duplicate view ignored", "reel_id", v.ReelID, "view_id", v.ID)
	}
	return &v, nil
}

// RecordClick appends a click. A reused click session id fails with
// domain.ErrDuplicateSession.
func (s *Service) RecordClick(ctx context.Context, c domain.ClickEvent) (*domain.ClickEvent, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	if err := s.stamp(&c.OccurredAt, &c.RecordedAt); err != nil {
		return nil, err
	}
	if err := s.repo.InsertClick(ctx, &c); err != nil {
		return nil, fmt.Errorf("record click: %w", err)
	}
	return &c, nil
}

// RecordConversion appends a conversion. A replay naming the same click
// session returns the stored event; a second conversion for the order from
// a different session fails with domain.ErrDuplicateConversion.
func (s *Service) RecordConversion(ctx context.Context, c domain.ConversionEvent) (*domain.ConversionEvent, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	if err := s.stamp(&c.OccurredAt, &c.RecordedAt); err != nil {
		return nil, err
	}

	stored, inserted, err := s.repo.InsertConversion(ctx, &c)
	if err != nil {
		return nil, fmt.Errorf("record conversion: %w", err)
	}
	if inserted {
		return &c, nil
	}
	if stored.ClickSessionID != c.ClickSessionID {
		return nil, fmt.Errorf("record conversion %s: %w", c.OrderID, domain.ErrDuplicateConversion)
	}
	return stored, nil
}

// GetClick returns a recorded click by session id.
func (s *Service) GetClick(ctx context.Context, clickSessionID string) (*domain.ClickEvent, error) {
	return s.repo.GetClick(ctx, clickSessionID)
}

// Unresolved returns up to limit conversions still awaiting attribution.
func (s *Service) Unresolved(ctx context.Context, limit int) ([]domain.ConversionEvent, error) {
	if limit <= 0 {
		limit = 100
	}
	return s.repo.ListUnresolvedConversions(ctx, limit)
}

// DueForAttribution returns up to limit unresolved conversions whose retry
// delay, if any, has passed.
func (s *Service) DueForAttribution(ctx context.Context, limit int) ([]domain.ConversionEvent, error) {
	if limit <= 0 {
		limit = 100
	}
	return s.repo.ListDueConversions(ctx, s.now(), limit)
}

// MarkFailed records a failed attribution attempt for an order and pushes
// its next attempt back.
func (s *Service) MarkFailed(ctx context.Context, orderID string, cause error) (*domain.AttributionFailure, error) {
	attempts := 0
	prev, err := s.repo.GetAttributionFailure(ctx, orderID)
	switch {
	case errors.Is(err, domain.ErrNotFound):
	case err != nil:
		return nil, fmt.Errorf("load attribution failure %s: %w", orderID, err)
	default:
		attempts = prev.Attempts
	}

	now := s.now()
	f := &domain.AttributionFailure{
		OrderID:       orderID,
		Attempts:      attempts + 1,
		LastAttemptAt: now,
		NextAttemptAt: now.Add(RetryBackoff(attempts + 1)),
	}
	if cause != nil {
		f.LastError = cause.Error()
	}
	if err := s.repo.UpsertAttributionFailure(ctx, f); err != nil {
		return nil, fmt.Errorf("record attribution failure %s: %w", orderID, err)
	}
	return f, nil
}

// Engagement counts a promoter's views and clicks over the trailing days.
func (s *Service) Engagement(ctx context.Context, promoterID string, days int) (views, clicks int, err error) {
	since := s.now().AddDate(0, 0, -days)
	return s.repo.CountEngagement(ctx, promoterID, since)
}
