package attribution

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ignite/affiliate-ledger/internal/domain"
)

// DefaultWindow applies when no window is configured.
const DefaultWindow = 7 * 24 * time.Hour

// ClockSkew is how far a conversion may precede its click and still count,
// to absorb device clock drift.
const ClockSkew = 5 * time.Minute

// MissReason explains an unattributed conversion.
type MissReason string

const (
	MissClickNotFound        MissReason = "click_not_found"
	MissOutsideWindow        MissReason = "outside_window"
	MissClickAfterConversion MissReason = "click_after_conversion"
)

// ClickSource looks clicks up by session id.
type ClickSource interface {
	// GetClick returns domain.ErrNotFound when the session is unknown.
	GetClick(ctx context.Context, clickSessionID string) (*domain.ClickEvent, error)
}

// Outcome is the result of resolving one conversion.
type Outcome struct {
	Attributed bool
	Click      *domain.ClickEvent
	Miss       MissReason
	Delay      time.Duration
}

// PromoterID is the credited promoter, or "" on a miss.
func (o Outcome) PromoterID() string {
	if !o.Attributed {
		return ""
	}
	return o.Click.PromoterID
}

// Resolver applies the attribution window to conversions.
type Resolver struct {
	clicks ClickSource
	window time.Duration
}

// NewResolver creates a resolver. A non-positive window uses DefaultWindow.
func NewResolver(clicks ClickSource, window time.Duration) *Resolver {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Resolver{clicks: clicks, window: window}
}

// Window returns the configured attribution window.
func (r *Resolver) Window() time.Duration { return r.window }

// Resolve attributes conv to its click. Store failures are returned as
// errors; every other result is an Outcome.
func (r *Resolver) Resolve(ctx context.Context, conv domain.ConversionEvent) (Outcome, error) {
	click, err := r.clicks.GetClick(ctx, conv.ClickSessionID)
	if errors.Is(err, domain.ErrNotFound) {
		return Outcome{Miss: MissClickNotFound}, nil
	}
	if err != nil {
		return Outcome{}, fmt.Errorf("resolve conversion %s: %w", conv.OrderID, err)
	}

	delay := conv.OccurredAt.Sub(click.OccurredAt)
	switch {
	case delay < -ClockSkew:
		return Outcome{Click: click, Miss: MissClickAfterConversion, Delay: delay}, nil
	case delay > r.window:
		return Outcome{Click: click, Miss: MissOutsideWindow, Delay: delay}, nil
	}
	return Outcome{Attributed: true, Click: click, Delay: delay}, nil
}
