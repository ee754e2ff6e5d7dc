package services

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/elliottgriff/SafeVoice/internal/models"
)

// maxBackoffShift caps the per-report retry delay at interval × 2^5.
const maxBackoffShift = 5

// Reconciler periodically re-derives status for in-flight reports from the
// external status feed. It only ever advances rank: updates at or below the
// current rank are discarded, and resolved reports are never polled.
//
// Fetches within one tick run concurrently, but every apply funnels through
// the store's own lock, so a racing delete or submit on the same id cannot
// interleave with an apply.
type Reconciler struct {
	store    *ReportStore
	source   StatusSource
	interval time.Duration
	timeout  time.Duration

	mu       sync.Mutex
	failures map[string]int
	retryAt  map[string]time.Time

	cancel context.CancelFunc
	done   chan struct{}
}

func NewReconciler(store *ReportStore, source StatusSource, interval, timeout time.Duration) *Reconciler {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	return &Reconciler{
		store:    store,
		source:   source,
		interval: interval,
		timeout:  timeout,
		failures: make(map[string]int),
		retryAt:  make(map[string]time.Time),
	}
}

// Start launches the polling loop. Stop cancels it and waits for any
// in-flight tick (including its applies) to finish.
func (r *Reconciler) Start(ctx context.Context) {
	ctx, r.cancel = context.WithCancel(ctx)
	r.done = make(chan struct{})

	go func() {
		defer close(r.done)
		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()

		slog.Info("reconciler started", "interval", r.interval.String())
		for {
			select {
			case <-ctx.Done():
				slog.Info("reconciler stopped")
				return
			case <-ticker.C:
				r.tick(ctx)
			}
		}
	}()
}

// Stop cancels the loop and blocks until it has fully drained. Safe to call
// without a prior Start.
func (r *Reconciler) Stop() {
	if r.cancel == nil {
		return
	}
	r.cancel()
	<-r.done
}

func (r *Reconciler) tick(ctx context.Context) {
	now := time.Now()
	var wg sync.WaitGroup

	for _, report := range r.store.ListActive() {
		if report.Status == models.StatusResolved {
			continue
		}
		if !r.due(report.ID, now) {
			continue
		}

		wg.Add(1)
		go func(report models.Report) {
			defer wg.Done()
			r.pollOne(ctx, report)
		}(report)
	}

	// Waiting here means Stop never returns with an apply still running.
	wg.Wait()
}

func (r *Reconciler) pollOne(ctx context.Context, report models.Report) {
	fetchCtx := ctx
	if r.timeout > 0 {
		var cancel context.CancelFunc
		fetchCtx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	update, err := r.source.FetchLatestStatus(fetchCtx, report.ID)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		r.recordFailure(report.ID)
		slog.Warn("status fetch failed", "report_id", report.ID, "error", err.Error())
		return
	}
	r.clearFailure(report.ID)

	if update == nil || update.NewStatus.Rank() <= report.Status.Rank() {
		return
	}

	if _, err := r.store.AddStatusUpdate(report.ID, *update); err != nil {
		// A concurrent delete or a faster concurrent update can land first;
		// both are fine to skip until the next tick.
		if errors.Is(err, ErrReportNotFound) || errors.Is(err, ErrInvalidTransition) {
			return
		}
		slog.Error("failed to apply fetched status", "report_id", report.ID, "error", err.Error())
	}
}

// due reports whether the report's backoff window has elapsed.
func (r *Reconciler) due(reportID string, now time.Time) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	at, ok := r.retryAt[reportID]
	return !ok || !now.Before(at)
}

// recordFailure doubles the report's retry delay up to the cap, so a
// persistently failing fetch is not retried every cycle.
func (r *Reconciler) recordFailure(reportID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := r.failures[reportID]
	if n < maxBackoffShift {
		n++
	}
	r.failures[reportID] = n
	r.retryAt[reportID] = time.Now().Add(r.interval * (1 << (n - 1)))
}

func (r *Reconciler) clearFailure(reportID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.failures, reportID)
	delete(r.retryAt, reportID)
}

// backoffDelay is exposed for tests: the delay applied after the n-th
// consecutive failure.
func (r *Reconciler) backoffDelay(n int) time.Duration {
	if n < 1 {
		return 0
	}
	if n > maxBackoffShift {
		n = maxBackoffShift
	}
	return r.interval * (1 << (n - 1))
}
