// Package notify delivers promoter-facing notifications. Delivery is
// fire-and-forget: a failed notification is logged and never affects the
// financial operation that produced it.
package notify

import (
	"context"
	"sync"
	"time"

	"github.com/ignite/affiliate-ledger/internal/domain"
	"github.com/ignite/affiliate-ledger/internal/pkg/logger"
)

// Sender delivers one notification synchronously.
type Sender interface {
	Send(ctx context.Context, n domain.Notification) error
}

// LogSender writes notifications to the structured log.
type LogSender struct{}

func (LogSender) Send(_ context.Context, n domain.Notification) error {
	logger.Info("[Notify] notification", "promoter_id", n.PromoterID, "kind", n.Kind,
		"title", n.Title, "reference_id", n.ReferenceID)
	return nil
}

// Async wraps a Sender so callers never block on delivery.
type Async struct {
	sender  Sender
	timeout time.Duration
	wg      sync.WaitGroup
}

// NewAsync creates an async notifier. Each delivery gets its own timeout,
// detached from the caller's context.
func NewAsync(sender Sender, timeout time.Duration) *Async {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Async{sender: sender, timeout: timeout}
}

// Notify schedules delivery and returns immediately.
func (a *Async) Notify(_ context.Context, n domain.Notification) {
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
		defer cancel()
		if err := a.sender.Send(ctx, n); err != nil {
			logger.Warn("[Notify] delivery failed", "promoter_id", n.PromoterID, "kind", n.Kind,
				"reference_id", n.ReferenceID, "error", err)
		}
	}()
}

// Wait blocks until in-flight deliveries finish. Call it on shutdown.
func (a *Async) Wait() { a.wg.Wait() }
