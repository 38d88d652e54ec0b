package worker

import (
	"context"
	"time"

	"github.com/ignite/affiliate-ledger/internal/domain"
	"github.com/ignite/affiliate-ledger/internal/pkg/distlock"
	"github.com/ignite/affiliate-ledger/internal/pkg/logger"
)

// =============================================================================
// ATTRIBUTION WORKER: Turns recorded conversions into affiliate sales
// =============================================================================
// Conversions are recorded synchronously by the intake path; resolving them
// to a click, pricing the commission, and writing the sale happens here.
// Each conversion yields exactly one sale (the commission service upserts on
// order id), so a crash mid-batch is repaired by the next tick. A conversion
// that fails is recorded with a retry delay and sits out the following
// passes, so a run of bad orders never fills every batch.

const (
	// DefaultAttributionInterval is how often pending conversions are drained.
	DefaultAttributionInterval = 15 * time.Second

	// DefaultAttributionBatch caps conversions handled per tick.
	DefaultAttributionBatch = 100
)

// ConversionSource lists conversions that have no sale yet and tracks
// failed attempts.
type ConversionSource interface {
	DueForAttribution(ctx context.Context, limit int) ([]domain.ConversionEvent, error)
	MarkFailed(ctx context.Context, orderID string, cause error) (*domain.AttributionFailure, error)
}

// SaleProcessor attributes and prices one conversion.
type SaleProcessor interface {
	Process(ctx context.Context, conv domain.ConversionEvent) (*domain.AffiliateSale, error)
}

// AttributionWorker drains unresolved conversions in batches.
type AttributionWorker struct {
	source    ConversionSource
	processor SaleProcessor
	lock      distlock.DistLock
	interval  time.Duration
	batchSize int
}

// NewAttributionWorker creates a worker. lock may be nil for a single
// process deployment.
func NewAttributionWorker(source ConversionSource, processor SaleProcessor, lock distlock.DistLock, interval time.Duration, batchSize int) *AttributionWorker {
	if interval <= 0 {
		interval = DefaultAttributionInterval
	}
	if batchSize <= 0 {
		batchSize = DefaultAttributionBatch
	}
	return &AttributionWorker{
		source:    source,
		processor: processor,
		lock:      lock,
		interval:  interval,
		batchSize: batchSize,
	}
}

// Start runs the drain loop. It blocks until ctx is cancelled.
func (w *AttributionWorker) Start(ctx context.Context) {
	periodic(ctx, "Attribution", w.interval, true, w.lock, func(ctx context.Context) {
		w.RunOnce(ctx)
	})
}

// BatchResult counts the outcome of one drain pass.
type BatchResult struct {
	Processed  int
	Attributed int
	Rejected   int
	Failed     int
}

// RunOnce processes a single batch. Failures are logged per conversion and
// left unresolved until their retry delay passes.
func (w *AttributionWorker) RunOnce(ctx context.Context) BatchResult {
	var res BatchResult

	convs, err := w.source.DueForAttribution(ctx, w.batchSize)
	if err != nil {
		logger.Error("[Attribution] list unresolved conversions failed", "error", err)
		return res
	}

	for _, conv := range convs {
		if ctx.Err() != nil {
			break
		}
		sale, err := w.processor.Process(ctx, conv)
		if err != nil {
			res.Failed++
			logger.Error("[Attribution] conversion failed", "order_id", conv.OrderID, "error", err)
			if f, markErr := w.source.MarkFailed(ctx, conv.OrderID, err); markErr != nil {
				logger.Error("[Attribution] record failure failed", "order_id", conv.OrderID, "error", markErr)
			} else {
				logger.Info("[Attribution] retry scheduled", "order_id", conv.OrderID,
					"attempts", f.Attempts, "next_attempt_at", f.NextAttemptAt)
			}
			continue
		}
		res.Processed++
		if sale.CommissionStatus == domain.CommissionRejected {
			res.Rejected++
		} else {
			res.Attributed++
		}
	}

	if len(convs) > 0 {
		logger.Info("[Attribution] batch complete",
			"processed", res.Processed, "attributed", res.Attributed,
			"rejected", res.Rejected, "failed", res.Failed)
	}
	return res
}
