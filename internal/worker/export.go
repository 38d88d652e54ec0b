package worker

import (
	"context"
	"time"

	"github.com/ignite/affiliate-ledger/internal/audit"
	"github.com/ignite/affiliate-ledger/internal/pkg/distlock"
	"github.com/ignite/affiliate-ledger/internal/pkg/logger"
)

// DefaultExportInterval runs the ledger export once a day.
const DefaultExportInterval = 24 * time.Hour

// DayExporter uploads the previous UTC day of ledger entries.
type DayExporter interface {
	ExportPreviousDay(ctx context.Context) (*audit.Result, error)
}

// ExportWorker ships yesterday's ledger to cold storage. It runs on start
// too; an export overwrites its day's object, so repeats are harmless.
type ExportWorker struct {
	exporter DayExporter
	lock     distlock.DistLock
	interval time.Duration
}

func NewExportWorker(exporter DayExporter, lock distlock.DistLock, interval time.Duration) *ExportWorker {
	if interval <= 0 {
		interval = DefaultExportInterval
	}
	return &ExportWorker{exporter: exporter, lock: lock, interval: interval}
}

func (w *ExportWorker) Start(ctx context.Context) {
	periodic(ctx, "LedgerExport", w.interval, true, w.lock, func(ctx context.Context) {
		if _, err := w.exporter.ExportPreviousDay(ctx); err != nil {
			logger.Error("[LedgerExport] export failed", "error", err)
		}
	})
}
