package services

import (
	"context"
	"errors"
	"regexp"
	"sync"
	"testing"

	"github.com/elliottgriff/SafeVoice/internal/blobstore"
	"github.com/elliottgriff/SafeVoice/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSubmitter scripts the external intake collaborator.
type fakeSubmitter struct {
	mu     sync.Mutex
	err    error
	result *SubmitResult
	calls  int
	onCall func(report models.Report)
}

func (f *fakeSubmitter) Submit(_ context.Context, report models.Report) (*SubmitResult, error) {
	f.mu.Lock()
	f.calls++
	hook := f.onCall
	f.mu.Unlock()

	if hook != nil {
		hook(report)
	}
	if f.err != nil {
		return nil, f.err
	}
	if f.result != nil {
		return f.result, nil
	}
	return &SubmitResult{Status: "submitted", Message: "accepted"}, nil
}

func newTestStore(t *testing.T) (*ReportStore, *fakeSubmitter, *blobstore.MemoryStore) {
	t.Helper()
	blobs := blobstore.NewMemoryStore()
	submitter := &fakeSubmitter{}
	store := NewReportStore(blobs, submitter)
	require.NoError(t, store.Load(context.Background()))
	return store, submitter, blobs
}

func TestCreateDraft(t *testing.T) {
	store, _, _ := newTestStore(t)

	report, err := store.CreateDraft(models.CategoryBullying, "", true)
	require.NoError(t, err)
	assert.NotEmpty(t, report.ID)
	assert.False(t, report.CreatedAt.IsZero())
	assert.Equal(t, models.StatusDraft, report.Status)
	assert.Nil(t, report.TrackingCode)

	drafts := store.ListDrafts()
	require.Len(t, drafts, 1)
	assert.Equal(t, report.ID, drafts[0].ID)
	assert.Empty(t, store.ListActive())
}

func TestCreateDraftRejectsUnknownCategory(t *testing.T) {
	store, _, _ := newTestStore(t)

	_, err := store.CreateDraft("gossip", "text", true)
	require.ErrorIs(t, err, ErrInvalidCategory)
}

func TestSaveDraftCannotResurrectSubmittedReport(t *testing.T) {
	store, _, _ := newTestStore(t)

	submitted, err := store.Submit(context.Background(), models.Report{
		Category: models.CategoryPhysical, Content: "test", IsAnonymous: true,
	})
	require.NoError(t, err)

	_, err = store.SaveDraft(models.Report{
		ID: submitted.ID, Category: models.CategoryPhysical, Content: "edited",
	})
	require.ErrorIs(t, err, ErrDraftResubmit)
	assert.Empty(t, store.ListDrafts())
}

func TestSubmitAssignsIDAndTrackingCode(t *testing.T) {
	store, _, _ := newTestStore(t)

	report, err := store.Submit(context.Background(), models.Report{
		ID:       "",
		Category: models.CategoryPhysical,
		Content:  "test",
	})
	require.NoError(t, err)

	assert.NotEmpty(t, report.ID)
	assert.Equal(t, models.StatusSubmitted, report.Status)
	require.NotNil(t, report.TrackingCode)
	assert.Regexp(t, regexp.MustCompile(`^[A-Z0-9]{4}-\d{5}$`), *report.TrackingCode)

	require.Len(t, report.StatusHistory, 1)
	assert.Equal(t, models.StatusDraft, report.StatusHistory[0].OldStatus)
	assert.Equal(t, models.StatusSubmitted, report.StatusHistory[0].NewStatus)
}

func TestSubmitDraftMovesBetweenCollections(t *testing.T) {
	store, _, _ := newTestStore(t)

	draft, err := store.CreateDraft(models.CategoryNeglect, "draft body", true)
	require.NoError(t, err)

	submitted, err := store.Submit(context.Background(), draft)
	require.NoError(t, err)
	assert.Equal(t, draft.ID, submitted.ID)

	assert.Empty(t, store.ListDrafts())
	active := store.ListActive()
	require.Len(t, active, 1)
	assert.Equal(t, draft.ID, active[0].ID)
}

func TestSubmitEmptyContentRejected(t *testing.T) {
	store, submitter, _ := newTestStore(t)

	draft, err := store.CreateDraft(models.CategoryBullying, "", true)
	require.NoError(t, err)

	_, err = store.Submit(context.Background(), draft)
	require.ErrorIs(t, err, ErrEmptyContent)
	assert.Zero(t, submitter.calls, "collaborator must not be invoked for an invalid submission")

	// Draft stays a draft.
	got, ok := store.GetReport(draft.ID)
	require.True(t, ok)
	assert.Equal(t, models.StatusDraft, got.Status)
}

func TestSubmitFailureLeavesStateUntouched(t *testing.T) {
	store, submitter, _ := newTestStore(t)
	submitter.err = errors.New("intake endpoint down")

	draft, err := store.CreateDraft(models.CategoryEmotional, "please help", true)
	require.NoError(t, err)

	_, err = store.Submit(context.Background(), draft)
	require.ErrorIs(t, err, ErrSubmitFailed)

	got, ok := store.GetReport(draft.ID)
	require.True(t, ok)
	assert.Equal(t, models.StatusDraft, got.Status)
	assert.Nil(t, got.TrackingCode)
	assert.Empty(t, got.StatusHistory)
	assert.Empty(t, store.ListActive())
}

func TestSubmitFailsWhenDraftDeletedInFlight(t *testing.T) {
	store, submitter, _ := newTestStore(t)

	draft, err := store.CreateDraft(models.CategorySexual, "content", true)
	require.NoError(t, err)

	// Delete the draft while the submission is suspended on the
	// collaborator call.
	submitter.onCall = func(models.Report) {
		store.DeleteReport(draft.ID)
	}

	_, err = store.Submit(context.Background(), draft)
	require.ErrorIs(t, err, ErrReportNotFound)

	_, ok := store.GetReport(draft.ID)
	assert.False(t, ok, "a deleted report must not be resurrected by submit")
}

func TestSubmitTwiceRejected(t *testing.T) {
	store, _, _ := newTestStore(t)

	report, err := store.Submit(context.Background(), models.Report{
		Category: models.CategoryOther, Content: "once",
	})
	require.NoError(t, err)

	_, err = store.Submit(context.Background(), report)
	require.ErrorIs(t, err, ErrAlreadySubmitted)
}

func TestAddStatusUpdateMonotonicRank(t *testing.T) {
	store, _, _ := newTestStore(t)

	report, err := store.Submit(context.Background(), models.Report{
		Category: models.CategoryPhysical, Content: "test",
	})
	require.NoError(t, err)

	updated, err := store.AddStatusUpdate(report.ID, models.StatusUpdate{
		NewStatus: models.StatusReceived, Message: "logged by intake",
	})
	require.NoError(t, err)
	assert.Equal(t, models.StatusReceived, updated.Status)

	// Regression back to submitted is rejected and leaves the report alone.
	_, err = store.AddStatusUpdate(report.ID, models.StatusUpdate{
		NewStatus: models.StatusSubmitted, Message: "stale echo",
	})
	require.ErrorIs(t, err, ErrInvalidTransition)

	got, ok := store.GetReport(report.ID)
	require.True(t, ok)
	assert.Equal(t, models.StatusReceived, got.Status)
	assert.Len(t, got.StatusHistory, 2)
}

func TestStatusAlwaysMatchesLastHistoryEntry(t *testing.T) {
	store, _, _ := newTestStore(t)

	report, err := store.Submit(context.Background(), models.Report{
		Category: models.CategoryNeglect, Content: "test",
	})
	require.NoError(t, err)

	for _, status := range []models.ReportStatus{
		models.StatusReceived, models.StatusInProgress, models.StatusResolved,
	} {
		updated, err := store.AddStatusUpdate(report.ID, models.StatusUpdate{NewStatus: status})
		require.NoError(t, err)
		require.NotEmpty(t, updated.StatusHistory)
		assert.Equal(t, updated.Status, updated.StatusHistory[len(updated.StatusHistory)-1].NewStatus)
	}
}

func TestTrackingCodeImmutableAcrossUpdates(t *testing.T) {
	store, _, _ := newTestStore(t)

	report, err := store.Submit(context.Background(), models.Report{
		Category: models.CategoryPhysical, Content: "test",
	})
	require.NoError(t, err)
	require.NotNil(t, report.TrackingCode)
	code := *report.TrackingCode

	updated, err := store.AddStatusUpdate(report.ID, models.StatusUpdate{NewStatus: models.StatusInProgress})
	require.NoError(t, err)
	require.NotNil(t, updated.TrackingCode)
	assert.Equal(t, code, *updated.TrackingCode)
}

func TestAddStatusUpdateUnknownReport(t *testing.T) {
	store, _, _ := newTestStore(t)

	_, err := store.AddStatusUpdate("missing", models.StatusUpdate{NewStatus: models.StatusReceived})
	require.ErrorIs(t, err, ErrReportNotFound)
}

func TestDeleteReportIdempotent(t *testing.T) {
	store, _, _ := newTestStore(t)

	draft, err := store.CreateDraft(models.CategoryOther, "draft", true)
	require.NoError(t, err)
	active, err := store.Submit(context.Background(), models.Report{
		Category: models.CategoryOther, Content: "active",
	})
	require.NoError(t, err)

	store.DeleteReport(draft.ID)
	store.DeleteReport(active.ID)

	_, ok := store.GetReport(draft.ID)
	assert.False(t, ok)
	_, ok = store.GetReport(active.ID)
	assert.False(t, ok)

	// Second delete of the same ids is a quiet no-op.
	store.DeleteReport(draft.ID)
	store.DeleteReport(active.ID)
	store.DeleteReport("never-existed")
}

func TestListSnapshotsAreCopies(t *testing.T) {
	store, _, _ := newTestStore(t)

	draft, err := store.CreateDraft(models.CategoryBullying, "original", true)
	require.NoError(t, err)

	drafts := store.ListDrafts()
	require.Len(t, drafts, 1)
	drafts[0].Content = "mutated"
	drafts[0].StatusHistory = append(drafts[0].StatusHistory, models.StatusUpdate{})

	got, ok := store.GetReport(draft.ID)
	require.True(t, ok)
	assert.Equal(t, "original", got.Content)
	assert.Empty(t, got.StatusHistory)
}

func TestPersistenceFailureKeepsInMemoryState(t *testing.T) {
	store, _, blobs := newTestStore(t)
	blobs.FailSaves = errors.New("disk full")

	var persistErrs []error
	store.SetPersistErrorHook(func(err error) { persistErrs = append(persistErrs, err) })

	report, err := store.CreateDraft(models.CategoryEmotional, "still saved in memory", true)
	require.NoError(t, err)

	got, ok := store.GetReport(report.ID)
	require.True(t, ok)
	assert.Equal(t, "still saved in memory", got.Content)
	assert.NotEmpty(t, persistErrs, "data loss must be observable through the side channel")
}

func TestStoreStateSurvivesReload(t *testing.T) {
	blobs := blobstore.NewMemoryStore()
	store := NewReportStore(blobs, &fakeSubmitter{})
	require.NoError(t, store.Load(context.Background()))

	draft, err := store.CreateDraft(models.CategoryNeglect, "draft body", true)
	require.NoError(t, err)
	submitted, err := store.Submit(context.Background(), models.Report{
		Category: models.CategoryPhysical, Content: "submitted body",
	})
	require.NoError(t, err)

	reloaded := NewReportStore(blobs, &fakeSubmitter{})
	require.NoError(t, reloaded.Load(context.Background()))

	gotDraft, ok := reloaded.GetReport(draft.ID)
	require.True(t, ok)
	assert.Equal(t, models.StatusDraft, gotDraft.Status)

	gotActive, ok := reloaded.GetReport(submitted.ID)
	require.True(t, ok)
	assert.Equal(t, models.StatusSubmitted, gotActive.Status)
	require.NotNil(t, gotActive.TrackingCode)
	assert.Equal(t, *submitted.TrackingCode, *gotActive.TrackingCode)
}

func TestUpdateHookFiresPerAppliedUpdate(t *testing.T) {
	store, _, _ := newTestStore(t)

	var events []models.StatusUpdate
	store.SetUpdateHook(func(_ models.Report, update models.StatusUpdate) {
		events = append(events, update)
	})

	report, err := store.Submit(context.Background(), models.Report{
		Category: models.CategoryOther, Content: "test",
	})
	require.NoError(t, err)

	_, err = store.AddStatusUpdate(report.ID, models.StatusUpdate{NewStatus: models.StatusReceived})
	require.NoError(t, err)

	// Rejected updates emit nothing.
	_, err = store.AddStatusUpdate(report.ID, models.StatusUpdate{NewStatus: models.StatusSubmitted})
	require.ErrorIs(t, err, ErrInvalidTransition)

	require.Len(t, events, 2)
	assert.Equal(t, models.StatusSubmitted, events[0].NewStatus)
	assert.Equal(t, models.StatusReceived, events[1].NewStatus)
}
