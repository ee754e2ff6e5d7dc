package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/elliottgriff/SafeVoice/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeStatusSource scripts the remote status feed per report id.
type fakeStatusSource struct {
	mu      sync.Mutex
	updates map[string]*models.StatusUpdate
	err     error
	calls   map[string]int
}

func newFakeStatusSource() *fakeStatusSource {
	return &fakeStatusSource{
		updates: make(map[string]*models.StatusUpdate),
		calls:   make(map[string]int),
	}
}

func (f *fakeStatusSource) FetchLatestStatus(_ context.Context, reportID string) (*models.StatusUpdate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[reportID]++
	if f.err != nil {
		return nil, f.err
	}
	return f.updates[reportID], nil
}

func (f *fakeStatusSource) callCount(reportID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[reportID]
}

func submitTestReport(t *testing.T, store *ReportStore) models.Report {
	t.Helper()
	report, err := store.Submit(context.Background(), models.Report{
		Category: models.CategoryPhysical, Content: "test",
	})
	require.NoError(t, err)
	return report
}

func TestReconcilerAdvancesStatus(t *testing.T) {
	store, _, _ := newTestStore(t)
	report := submitTestReport(t, store)

	source := newFakeStatusSource()
	source.updates[report.ID] = &models.StatusUpdate{
		NewStatus: models.StatusReceived, Message: "case opened",
	}

	r := NewReconciler(store, source, time.Minute, 0)
	r.tick(context.Background())

	got, ok := store.GetReport(report.ID)
	require.True(t, ok)
	assert.Equal(t, models.StatusReceived, got.Status)
	require.Len(t, got.StatusHistory, 2)
	assert.Equal(t, models.StatusSubmitted, got.StatusHistory[1].OldStatus)
}

func TestReconcilerNeverRegresses(t *testing.T) {
	store, _, _ := newTestStore(t)
	report := submitTestReport(t, store)
	_, err := store.AddStatusUpdate(report.ID, models.StatusUpdate{NewStatus: models.StatusInProgress})
	require.NoError(t, err)

	source := newFakeStatusSource()
	source.updates[report.ID] = &models.StatusUpdate{NewStatus: models.StatusReceived}

	r := NewReconciler(store, source, time.Minute, 0)
	r.tick(context.Background())

	got, _ := store.GetReport(report.ID)
	assert.Equal(t, models.StatusInProgress, got.Status)
	assert.Len(t, got.StatusHistory, 2, "stale update must not be appended")
}

func TestReconcilerSkipsResolvedReports(t *testing.T) {
	store, _, _ := newTestStore(t)
	report := submitTestReport(t, store)
	_, err := store.AddStatusUpdate(report.ID, models.StatusUpdate{NewStatus: models.StatusResolved})
	require.NoError(t, err)

	source := newFakeStatusSource()
	r := NewReconciler(store, source, time.Minute, 0)
	r.tick(context.Background())

	assert.Zero(t, source.callCount(report.ID), "resolved reports are never polled")
}

func TestReconcilerNilUpdateIsNoop(t *testing.T) {
	store, _, _ := newTestStore(t)
	report := submitTestReport(t, store)

	source := newFakeStatusSource()
	r := NewReconciler(store, source, time.Minute, 0)
	r.tick(context.Background())

	got, _ := store.GetReport(report.ID)
	assert.Equal(t, models.StatusSubmitted, got.Status)
	assert.Equal(t, 1, source.callCount(report.ID))
}

func TestReconcilerBacksOffAfterFailures(t *testing.T) {
	store, _, _ := newTestStore(t)
	report := submitTestReport(t, store)

	source := newFakeStatusSource()
	source.err = errors.New("feed unreachable")

	r := NewReconciler(store, source, time.Minute, 0)

	// First failing tick polls; the next immediate tick is inside the
	// backoff window and skips the report.
	r.tick(context.Background())
	assert.Equal(t, 1, source.callCount(report.ID))
	r.tick(context.Background())
	assert.Equal(t, 1, source.callCount(report.ID))
}

func TestBackoffDelayMonotonicWithCap(t *testing.T) {
	r := NewReconciler(nil, nil, time.Minute, 0)

	var prev time.Duration
	for n := 1; n <= 10; n++ {
		d := r.backoffDelay(n)
		assert.GreaterOrEqual(t, d, prev, "backoff must be non-decreasing")
		prev = d
	}
	assert.Equal(t, r.backoffDelay(maxBackoffShift), r.backoffDelay(10), "backoff is capped")
}

func TestBackoffClearsOnSuccess(t *testing.T) {
	store, _, _ := newTestStore(t)
	report := submitTestReport(t, store)

	source := newFakeStatusSource()
	source.err = errors.New("feed unreachable")

	r := NewReconciler(store, source, time.Minute, 0)
	r.tick(context.Background())
	require.Equal(t, 1, source.callCount(report.ID))

	// Heal the feed and lift the backoff window manually (the clock is
	// real here).
	source.mu.Lock()
	source.err = nil
	source.mu.Unlock()
	r.clearFailure(report.ID)

	r.tick(context.Background())
	assert.Equal(t, 2, source.callCount(report.ID))
	r.mu.Lock()
	assert.Empty(t, r.failures)
	r.mu.Unlock()
}

func TestReconcilerStartStop(t *testing.T) {
	store, _, _ := newTestStore(t)
	source := newFakeStatusSource()

	r := NewReconciler(store, source, time.Hour, 0)
	r.Start(context.Background())

	done := make(chan struct{})
	go func() {
		r.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return")
	}
}
