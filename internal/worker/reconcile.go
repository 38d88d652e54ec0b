package worker

import (
	"context"
	"time"

	"github.com/ignite/affiliate-ledger/internal/pkg/distlock"
	"github.com/ignite/affiliate-ledger/internal/pkg/logger"
	"github.com/ignite/affiliate-ledger/internal/service/ledger"
)

// DefaultReconcileInterval is how often every wallet is rebuilt from the log.
const DefaultReconcileInterval = time.Hour

// Reconciler rebuilds cached balances from the ledger.
type Reconciler interface {
	ReconcileAll(ctx context.Context) (ledger.ReconcileReport, error)
}

// ReconcileWorker periodically replays every promoter's ledger, repairing
// cache drift and surfacing invariant violations.
type ReconcileWorker struct {
	reconciler Reconciler
	lock       distlock.DistLock
	interval   time.Duration
}

func NewReconcileWorker(reconciler Reconciler, lock distlock.DistLock, interval time.Duration) *ReconcileWorker {
	if interval <= 0 {
		interval = DefaultReconcileInterval
	}
	return &ReconcileWorker{reconciler: reconciler, lock: lock, interval: interval}
}

// Start blocks until ctx is cancelled.
func (w *ReconcileWorker) Start(ctx context.Context) {
	periodic(ctx, "Reconcile", w.interval, false, w.lock, func(ctx context.Context) {
		w.RunOnce(ctx)
	})
}

func (w *ReconcileWorker) RunOnce(ctx context.Context) (ledger.ReconcileReport, error) {
	start := time.Now()
	report, err := w.reconciler.ReconcileAll(ctx)
	if err != nil {
		logger.Error("[Reconcile] sweep aborted", "checked", report.Checked, "error", err)
		return report, err
	}
	if len(report.Inconsistent) > 0 {
		logger.Error("[Reconcile] ledger invariant violated", "promoters", report.Inconsistent)
	}
	logger.Info("[Reconcile] sweep complete",
		"checked", report.Checked,
		"cache_drifted", report.CacheDrifted,
		"duration", time.Since(start).Round(time.Millisecond).String())
	return report, nil
}
