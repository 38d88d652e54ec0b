package worker

import (
	"context"
	"time"

	"github.com/ignite/affiliate-ledger/internal/pkg/distlock"
	"github.com/ignite/affiliate-ledger/internal/pkg/logger"
)

// =============================================================================
// PERIODIC RUNNER: Shared loop for the singleton background jobs
// =============================================================================
// Every job in this package runs on a ticker and, when a DistLock is
// configured, only on the replica that wins the lock for that tick. Without
// a lock (single-process dev mode) the job always runs.

// periodic drives fn every interval until ctx is cancelled. When runFirst
// is set fn also runs once immediately.
func periodic(ctx context.Context, name string, interval time.Duration, runFirst bool, lock distlock.DistLock, fn func(ctx context.Context)) {
	logger.Info("["+name+"] Starting", "interval", interval.String())

	if runFirst {
		runLocked(ctx, name, lock, fn)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("[" + name + "] Stopping")
			return
		case <-ticker.C:
			runLocked(ctx, name, lock, fn)
		}
	}
}

// runLocked runs fn if this process holds lock for the duration of the call.
func runLocked(ctx context.Context, name string, lock distlock.DistLock, fn func(ctx context.Context)) bool {
	if lock == nil {
		fn(ctx)
		return true
	}

	ok, err := lock.Acquire(ctx)
	if err != nil {
		logger.Error("["+name+"] lock acquire failed", "error", err)
		return false
	}
	if !ok {
		logger.Debug("[" + name + "] another instance holds the lock, skipping")
		return false
	}
	defer func() {
		// Release on a fresh context so a cancelled run still frees the lock.
		relCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := lock.Release(relCtx); err != nil {
			logger.Warn("["+name+"] lock release failed", "error", err)
		}
	}()

	fn(ctx)
	return true
}
