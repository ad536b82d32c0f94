package aggregate

import (
	"context"
	"errors"
	"time"

	"github.com/DEMONNN69/hmpi-map-engine/internal/domain"
)

// Exponential backoff for transient page failures: start at 200ms, double
// each retry, cap at 5s. Keeps retry storms short while avoiding tight loops
// during backend outages.
const (
	initialBackoff  = 200 * time.Millisecond
	maxBackoff      = 5 * time.Second
	maxPageAttempts = 3
)

// RunFullScan fetches every page for the current filter, merging each into
// the aggregate. It returns when the scan completes, fails past its retry
// budget, or is cancelled by a filter change or shutdown. Authentication
// failures are not retried; the credential will not fix itself mid-scan.
func (a *Aggregator) RunFullScan(ctx context.Context) error {
	gen, filter, scanCtx, cancel := a.beginScan(ctx)
	defer cancel()
	defer a.endScan(gen)

	a.metrics.ScanRunning.Set(1)
	defer a.metrics.ScanRunning.Set(0)

	start := time.Now()
	a.logger.Info("full scan started", "year", yearLabel(filter.Year), "page_size", filter.PageSize)

	page := 1
	backoff := initialBackoff
	attempts := 0
	for {
		if scanCtx.Err() != nil {
			a.logger.Info("scan stopping", "reason", scanCtx.Err())
			return nil
		}

		mp, err := a.source.FetchMapPage(scanCtx, filter, page)
		if err != nil {
			if scanCtx.Err() != nil {
				return nil
			}
			if errors.Is(err, domain.ErrAuthRequired) {
				a.failScan(gen, page, err)
				return err
			}
			attempts++
			if attempts < maxPageAttempts {
				a.logger.Warn("page fetch failed, retrying",
					"page", page, "attempt", attempts, "error", err)
				if !sleepWithContext(scanCtx, backoff) {
					return nil
				}
				backoff = nextBackoff(backoff, maxBackoff)
				continue
			}
			a.logger.Error("page fetch failed past retry budget", "page", page, "error", err)
			a.failScan(gen, page, err)
			return err
		}
		a.metrics.PagesFetched.Inc()
		attempts = 0
		backoff = initialBackoff

		added, done, err := a.mergePage(gen, page, mp)
		if errors.Is(err, errStaleScan) {
			return nil
		}
		if err != nil {
			a.failScan(gen, page, err)
			return err
		}
		a.export(scanCtx, added)

		if done {
			a.completeScan(gen)
			a.metrics.ScanDuration.Observe(time.Since(start).Seconds())
			a.logger.Info("full scan complete",
				"year", yearLabel(filter.Year),
				"pages", page,
				"points", len(a.Snapshot().Points),
				"duration", time.Since(start),
			)
			return nil
		}
		page++
	}
}

// beginScan captures the current generation and filter, derives a cancellable
// scan context, and marks the scan in flight.
func (a *Aggregator) beginScan(ctx context.Context) (uint64, domain.MapFilter, context.Context, context.CancelFunc) {
	a.mu.Lock()
	defer a.mu.Unlock()

	gen := a.generation
	filter := a.filterLocked()
	scanCtx, cancel := context.WithCancel(ctx)
	a.scanCancel = cancel
	a.scanActive = true
	a.status = StatusLoading
	return gen, filter, scanCtx, cancel
}

// endScan clears the in-flight flag unless a newer scan already took over.
func (a *Aggregator) endScan(gen uint64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if gen != a.generation {
		return
	}
	a.scanActive = false
	a.scanCancel = nil
}

func nextBackoff(current, ceiling time.Duration) time.Duration {
	next := current * 2
	if next > ceiling {
		return ceiling
	}
	return next
}

func sleepWithContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
