package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/elliottgriff/SafeVoice/internal/blobstore"
	"github.com/elliottgriff/SafeVoice/internal/models"
	"github.com/google/uuid"
)

// UpdateHook receives one event per applied status update. The hook runs
// outside the store lock, after the update has been committed.
type UpdateHook func(report models.Report, update models.StatusUpdate)

// ReportStore is the single source of truth for all reports, partitioned
// into drafts and active (non-draft) reports. A report id lives in at most
// one collection at a time.
//
// All mutations are serialized behind one mutex; in-memory state is
// authoritative and persistence is best-effort (failures are logged and
// reported through the error hook, never rolled back).
type ReportStore struct {
	mu        sync.Mutex
	drafts    map[string]models.Report
	active    map[string]models.Report
	blobs     blobstore.Store
	submitter ReportSubmitter

	onUpdate     UpdateHook
	onPersistErr func(error)
}

func NewReportStore(blobs blobstore.Store, submitter ReportSubmitter) *ReportStore {
	return &ReportStore{
		drafts:    make(map[string]models.Report),
		active:    make(map[string]models.Report),
		blobs:     blobs,
		submitter: submitter,
	}
}

// SetUpdateHook registers the status-update consumer (the notification
// center). Must be called before traffic starts.
func (s *ReportStore) SetUpdateHook(hook UpdateHook) {
	s.onUpdate = hook
}

// SetPersistErrorHook registers an observer for failed snapshot writes.
func (s *ReportStore) SetPersistErrorHook(hook func(error)) {
	s.onPersistErr = hook
}

// Load restores both collections from the blob store. Called once at
// startup before any traffic.
func (s *ReportStore) Load(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.loadCollection(ctx, blobstore.KeyDraftReports, s.drafts); err != nil {
		return err
	}
	return s.loadCollection(ctx, blobstore.KeyActiveReports, s.active)
}

func (s *ReportStore) loadCollection(ctx context.Context, key string, into map[string]models.Report) error {
	raw, err := s.blobs.Load(ctx, key)
	if err != nil {
		return err
	}
	if raw == nil {
		return nil
	}
	var reports []models.Report
	if err := json.Unmarshal(raw, &reports); err != nil {
		return fmt.Errorf("corrupt %s snapshot: %w", key, err)
	}
	for _, r := range reports {
		into[r.ID] = r
	}
	return nil
}

// CreateDraft allocates a new draft report and persists it.
func (s *ReportStore) CreateDraft(category models.ReportCategory, content string, isAnonymous bool) (models.Report, error) {
	if !category.Valid() {
		return models.Report{}, fmt.Errorf("%w: %q", ErrInvalidCategory, category)
	}

	report := models.Report{
		ID:          uuid.NewString(),
		CreatedAt:   time.Now().UTC(),
		Category:    category,
		Content:     content,
		IsAnonymous: isAnonymous,
		Status:      models.StatusDraft,
	}

	s.mu.Lock()
	s.drafts[report.ID] = report
	s.persistDrafts()
	s.mu.Unlock()

	return report, nil
}

// SaveDraft upserts a draft by id. A report that already left draft can
// never move back into the drafts collection.
func (s *ReportStore) SaveDraft(report models.Report) (models.Report, error) {
	if !report.Category.Valid() {
		return models.Report{}, fmt.Errorf("%w: %q", ErrInvalidCategory, report.Category)
	}
	if report.ID == "" {
		report.ID = uuid.NewString()
	}
	if report.CreatedAt.IsZero() {
		report.CreatedAt = time.Now().UTC()
	}
	report.Status = models.StatusDraft
	report.TrackingCode = nil

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.active[report.ID]; exists {
		return models.Report{}, fmt.Errorf("%w: %s", ErrDraftResubmit, report.ID)
	}

	s.drafts[report.ID] = report.Clone()
	s.persistDrafts()
	return report, nil
}

// Submit sends a report to the external intake collaborator and, on
// success, promotes it into the active collection with a tracking code and
// a draft→submitted history entry. On collaborator failure nothing is
// mutated.
//
// Submit suspends on the network call, so it re-validates after resuming:
// a draft deleted mid-flight fails with ErrReportNotFound instead of being
// resurrected, and a duplicate submit of the same id fails with
// ErrAlreadySubmitted.
func (s *ReportStore) Submit(ctx context.Context, report models.Report) (models.Report, error) {
	if !report.Category.Valid() {
		return models.Report{}, fmt.Errorf("%w: %q", ErrInvalidCategory, report.Category)
	}
	if strings.TrimSpace(report.Content) == "" {
		return models.Report{}, ErrEmptyContent
	}

	s.mu.Lock()
	wasDraft := false
	if report.ID != "" {
		if _, exists := s.active[report.ID]; exists {
			s.mu.Unlock()
			return models.Report{}, fmt.Errorf("%w: %s", ErrAlreadySubmitted, report.ID)
		}
		_, wasDraft = s.drafts[report.ID]
	}
	s.mu.Unlock()

	if report.ID == "" {
		report.ID = uuid.NewString()
	}
	if report.CreatedAt.IsZero() {
		report.CreatedAt = time.Now().UTC()
	}
	report.Status = models.StatusDraft

	// Collaborator call happens outside the lock; nothing is committed yet.
	result, err := s.submitter.Submit(ctx, report)
	if err != nil {
		return models.Report{}, fmt.Errorf("%w: %s", ErrSubmitFailed, err)
	}

	s.mu.Lock()
	if wasDraft {
		if _, stillDraft := s.drafts[report.ID]; !stillDraft {
			_, nowActive := s.active[report.ID]
			s.mu.Unlock()
			if nowActive {
				return models.Report{}, fmt.Errorf("%w: %s", ErrAlreadySubmitted, report.ID)
			}
			return models.Report{}, fmt.Errorf("%w: %s deleted during submission", ErrReportNotFound, report.ID)
		}
	}

	update := models.NewStatusUpdate(models.StatusDraft, models.StatusSubmitted, "Report submitted")
	report.Status = models.StatusSubmitted
	report.StatusHistory = append(report.StatusHistory, update)

	code := result.TrackingCode
	if code == "" {
		code = generateTrackingCode(report.ID)
	}
	report.TrackingCode = &code

	delete(s.drafts, report.ID)
	s.active[report.ID] = report.Clone()
	s.persistDrafts()
	s.persistActive()
	s.mu.Unlock()

	s.fireUpdate(report, update)
	return report, nil
}

// AddStatusUpdate appends a lifecycle transition to a report. Updates that
// would lower the report's rank are rejected; equal-rank updates (fresh
// message, same stage) are allowed. The recorded OldStatus is always the
// report's actual current status, regardless of what the caller supplied.
func (s *ReportStore) AddStatusUpdate(reportID string, update models.StatusUpdate) (models.Report, error) {
	if !update.NewStatus.Valid() {
		return models.Report{}, fmt.Errorf("%w: unknown status %q", ErrInvalidTransition, update.NewStatus)
	}

	s.mu.Lock()
	report, inActive := s.active[reportID]
	inDrafts := false
	if !inActive {
		report, inDrafts = s.drafts[reportID]
	}
	if !inActive && !inDrafts {
		s.mu.Unlock()
		return models.Report{}, fmt.Errorf("%w: %s", ErrReportNotFound, reportID)
	}

	if update.NewStatus.Rank() < report.Status.Rank() {
		s.mu.Unlock()
		return models.Report{}, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, report.Status, update.NewStatus)
	}

	if update.ID == "" {
		update.ID = uuid.NewString()
	}
	if update.Timestamp.IsZero() {
		update.Timestamp = time.Now().UTC()
	}
	update.OldStatus = report.Status

	report.StatusHistory = append(report.StatusHistory, update)
	report.Status = update.NewStatus

	if inDrafts && report.Status != models.StatusDraft {
		delete(s.drafts, reportID)
		s.active[reportID] = report
		s.persistDrafts()
	} else if inDrafts {
		s.drafts[reportID] = report
		s.persistDrafts()
	} else {
		s.active[reportID] = report
	}
	if report.Status != models.StatusDraft {
		s.persistActive()
	}
	snapshot := report.Clone()
	s.mu.Unlock()

	s.fireUpdate(snapshot, update)
	return snapshot, nil
}

// DeleteReport removes a report from whichever collection holds it.
// Deleting an unknown id is a successful no-op.
func (s *ReportStore) DeleteReport(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.drafts[id]; ok {
		delete(s.drafts, id)
		s.persistDrafts()
	}
	if _, ok := s.active[id]; ok {
		delete(s.active, id)
		s.persistActive()
	}
}

// GetReport looks up a report by id, checking active then drafts.
func (s *ReportStore) GetReport(id string) (models.Report, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if r, ok := s.active[id]; ok {
		return r.Clone(), true
	}
	if r, ok := s.drafts[id]; ok {
		return r.Clone(), true
	}
	return models.Report{}, false
}

// ListActive returns a snapshot of the active collection, newest first.
func (s *ReportStore) ListActive() []models.Report {
	s.mu.Lock()
	defer s.mu.Unlock()
	return snapshotReports(s.active)
}

// ListDrafts returns a snapshot of the drafts collection, newest first.
func (s *ReportStore) ListDrafts() []models.Report {
	s.mu.Lock()
	defer s.mu.Unlock()
	return snapshotReports(s.drafts)
}

func snapshotReports(src map[string]models.Report) []models.Report {
	out := make([]models.Report, 0, len(src))
	for _, r := range src {
		out = append(out, r.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (s *ReportStore) fireUpdate(report models.Report, update models.StatusUpdate) {
	if s.onUpdate != nil {
		s.onUpdate(report, update)
	}
}

// persistDrafts and persistActive run under the store lock; the lock is
// what keeps whole-collection overwrites from clobbering each other.
func (s *ReportStore) persistDrafts() {
	s.persistCollection(blobstore.KeyDraftReports, s.drafts)
}

func (s *ReportStore) persistActive() {
	s.persistCollection(blobstore.KeyActiveReports, s.active)
}

func (s *ReportStore) persistCollection(key string, src map[string]models.Report) {
	reports := make([]models.Report, 0, len(src))
	for _, r := range src {
		reports = append(reports, r)
	}
	sort.Slice(reports, func(i, j int) bool { return reports[i].ID < reports[j].ID })

	raw, err := json.Marshal(reports)
	if err == nil {
		err = s.blobs.Save(context.Background(), key, raw)
	}
	if err != nil {
		// Durability is best-effort: the in-memory state stays committed
		// and the failure goes out through the side channel.
		slog.Error("report snapshot write failed", "key", key, "action", "persist_reports", "error", err.Error())
		if s.onPersistErr != nil {
			s.onPersistErr(err)
		}
	}
}

// generateTrackingCode builds the user-facing lookup code: first four chars
// of the report id, uppercased, plus a 5-digit random suffix. Uniqueness is
// best-effort; the code is never used as a primary key.
func generateTrackingCode(reportID string) string {
	prefix := strings.ToUpper(reportID)
	if len(prefix) > 4 {
		prefix = prefix[:4]
	}
	return fmt.Sprintf("%s-%05d", prefix, rand.Intn(100000))
}
