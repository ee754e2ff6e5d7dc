package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/elliottgriff/SafeVoice/internal/blobstore"
	"github.com/elliottgriff/SafeVoice/internal/models"
)

// NotificationCenter turns status-update events into deduplicated
// notifications and owns the notification inbox: the pending (unread) and
// read sets, plus the badge count. It also schedules deferred alerts
// (draft reminders, check-ins) and hands fired notifications to the
// platform Deliverer.
type NotificationCenter struct {
	mu      sync.Mutex
	pending map[string]models.Notification
	read    map[string]models.Notification

	// scheduled holds notifications whose timing has not fired yet; they
	// enter the pending inbox at fire time. In-memory only: the persisted
	// state is the two inbox sets.
	scheduled []pendingAlert

	blobs     blobstore.Store
	deliverer Deliverer
	window    time.Duration
	loc       *time.Location

	now          func() time.Time
	onPersistErr func(error)

	// deliveries tracks the goroutines spawned for immediate delivery so
	// Stop can drain them.
	deliveries sync.WaitGroup

	cancel context.CancelFunc
	done   chan struct{}
}

// pendingAlert is one not-yet-fired scheduled or delayed notification.
// For scheduled timing fireAt is zero and the calendar target is
// re-materialized on every sweep so DST shifts move the fire moment.
type pendingAlert struct {
	notification models.Notification
	fireAt       time.Time
}

func NewNotificationCenter(blobs blobstore.Store, deliverer Deliverer, window time.Duration, loc *time.Location) *NotificationCenter {
	if window <= 0 {
		window = 60 * time.Second
	}
	if loc == nil {
		loc = time.Local
	}
	return &NotificationCenter{
		pending:   make(map[string]models.Notification),
		read:      make(map[string]models.Notification),
		blobs:     blobs,
		deliverer: deliverer,
		window:    window,
		loc:       loc,
		now:       time.Now,
	}
}

// SetPersistErrorHook registers an observer for failed snapshot writes.
func (c *NotificationCenter) SetPersistErrorHook(hook func(error)) {
	c.onPersistErr = hook
}

// Load restores both inbox sets from the blob store.
func (c *NotificationCenter) Load(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.loadSet(ctx, blobstore.KeyPendingNotifications, c.pending); err != nil {
		return err
	}
	return c.loadSet(ctx, blobstore.KeyReadNotifications, c.read)
}

func (c *NotificationCenter) loadSet(ctx context.Context, key string, into map[string]models.Notification) error {
	raw, err := c.blobs.Load(ctx, key)
	if err != nil {
		return err
	}
	if raw == nil {
		return nil
	}
	var notifications []models.Notification
	if err := json.Unmarshal(raw, &notifications); err != nil {
		return fmt.Errorf("corrupt %s snapshot: %w", key, err)
	}
	for _, n := range notifications {
		into[n.ID] = n
	}
	return nil
}

// Start launches the scheduler sweep loop. Deferred alerts fire within a
// second of their target.
func (c *NotificationCenter) Start(ctx context.Context) {
	ctx, c.cancel = context.WithCancel(ctx)
	c.done = make(chan struct{})

	go func() {
		defer close(c.done)
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				c.sweep(c.now())
			}
		}
	}()
}

// Stop cancels the sweep loop and waits for in-flight deliveries to
// finish. Safe to call without a prior Start.
func (c *NotificationCenter) Stop() {
	if c.cancel != nil {
		c.cancel()
		<-c.done
	}
	c.deliveries.Wait()
}

// HandleStatusUpdate is the store's update hook. A status change for a
// report that already has a notification inside the dedup window (pending
// or read) is considered covered and produces nothing; this is a coarse
// recency match on the report id, not a per-update match, so rapid distinct
// updates inside the window intentionally collapse into one notification.
func (c *NotificationCenter) HandleStatusUpdate(report models.Report, update models.StatusUpdate) {
	now := c.now()

	c.mu.Lock()
	if update.NewStatus != models.StatusDraft {
		// The report has left draft, so any queued draft reminder for it
		// would now mislead. This runs even when the update itself is
		// suppressed by the dedup window below.
		c.cancelDraftRemindersLocked(report.ID)
	}
	if c.alreadyNotifiedLocked(report.ID, now) {
		c.mu.Unlock()
		return
	}

	title, body := statusNotificationText(update)
	n := models.NewNotification(models.NotifyReportUpdate, title, body, models.Immediate(), report.ID)
	n.CreatedAt = now
	if update.ActionRequired {
		n.Type = models.NotifyActionRequired
	}

	c.pending[n.ID] = n
	c.persistPending()
	c.mu.Unlock()

	c.deliveries.Add(1)
	go func() {
		defer c.deliveries.Done()
		c.deliver(n)
	}()
}

// alreadyNotifiedLocked reports whether either inbox set holds a
// notification for the report created within the trailing dedup window.
func (c *NotificationCenter) alreadyNotifiedLocked(referenceID string, at time.Time) bool {
	cutoff := at.Add(-c.window)
	for _, n := range c.pending {
		if n.ReferenceID == referenceID && !n.CreatedAt.Before(cutoff) {
			return true
		}
	}
	for _, n := range c.read {
		if n.ReferenceID == referenceID && !n.CreatedAt.Before(cutoff) {
			return true
		}
	}
	return false
}

func statusNotificationText(update models.StatusUpdate) (string, string) {
	switch update.NewStatus {
	case models.StatusReceived:
		return "Report Received", "Your report has been received and is under review."
	case models.StatusInProgress:
		return "Report In Progress", "Your report is being handled by a specialist."
	case models.StatusResolved:
		return "Report Resolved", "Your report has been resolved. Thank you for speaking up."
	default:
		return "Report Status Update", update.Message
	}
}

// ScheduleDraftReminder queues a reminder for an unfinished draft at a
// calendar target (reference offset: 24h).
func (c *NotificationCenter) ScheduleDraftReminder(reportID string, after time.Duration) {
	target := c.now().In(c.loc).Add(after)
	n := models.NewNotification(
		models.NotifyDraftReminder,
		"Unfinished Report",
		"You have a draft report waiting to be submitted.",
		models.Scheduled(target),
		reportID,
	)
	c.enqueueAlert(pendingAlert{notification: n})
}

// ScheduleCheckIn queues a wellbeing check-in a relative offset after a
// submission (reference offset: 48h).
func (c *NotificationCenter) ScheduleCheckIn(reportID string, after time.Duration) {
	n := models.NewNotification(
		models.NotifyCheckIn,
		"Checking In",
		"How are you doing? Open the app if you need support or resources.",
		models.Delayed(int(after.Seconds())),
		reportID,
	)
	c.enqueueAlert(pendingAlert{notification: n, fireAt: c.now().Add(after)})
}

func (c *NotificationCenter) enqueueAlert(alert pendingAlert) {
	c.mu.Lock()
	c.scheduled = append(c.scheduled, alert)
	c.mu.Unlock()
}

// CancelScheduled drops not-yet-fired alerts referencing a report, used
// when the report is deleted or submitted before its reminder fires.
func (c *NotificationCenter) CancelScheduled(reportID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	kept := c.scheduled[:0]
	for _, alert := range c.scheduled {
		if alert.notification.ReferenceID != reportID {
			kept = append(kept, alert)
		}
	}
	c.scheduled = kept
}

// cancelDraftRemindersLocked removes queued draft reminders for a report
// while leaving its other deferred alerts (check-ins) in place.
func (c *NotificationCenter) cancelDraftRemindersLocked(reportID string) {
	kept := c.scheduled[:0]
	for _, alert := range c.scheduled {
		if alert.notification.ReferenceID == reportID &&
			alert.notification.Type == models.NotifyDraftReminder {
			continue
		}
		kept = append(kept, alert)
	}
	c.scheduled = kept
}

// sweep fires every due deferred alert: the notification moves into the
// pending inbox and goes out through the deliverer.
func (c *NotificationCenter) sweep(now time.Time) {
	c.mu.Lock()
	var fired []models.Notification
	kept := c.scheduled[:0]
	for _, alert := range c.scheduled {
		if c.alertDue(alert, now) {
			n := alert.notification
			n.CreatedAt = now
			c.pending[n.ID] = n
			fired = append(fired, n)
		} else {
			kept = append(kept, alert)
		}
	}
	c.scheduled = kept
	if len(fired) > 0 {
		c.persistPending()
	}
	c.mu.Unlock()

	for _, n := range fired {
		c.deliver(n)
	}
}

func (c *NotificationCenter) alertDue(alert pendingAlert, now time.Time) bool {
	if alert.notification.Timing.Kind == models.TimingScheduled && alert.notification.Timing.At != nil {
		// Re-derive the wall-clock target on every sweep; a DST change
		// between scheduling and firing shifts the target with the clock.
		return !now.Before(alert.notification.Timing.At.Materialize(c.loc))
	}
	return !now.Before(alert.fireAt)
}

// deliver hands a notification to the platform boundary. An unauthorized
// or failing deliverer degrades silently: the inbox already holds the
// notification, only the external alert is lost.
func (c *NotificationCenter) deliver(n models.Notification) {
	if c.deliverer == nil || !c.deliverer.Authorized() {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := c.deliverer.Deliver(ctx, n); err != nil {
		slog.Warn("notification delivery failed", "notification_id", n.ID, "error", err.Error())
	}
}

// MarkAsRead moves a notification from pending to read and stamps ReadAt.
// Marking an already-read notification again is a no-op.
func (c *NotificationCenter) MarkAsRead(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, already := c.read[id]; already {
		return nil
	}
	n, ok := c.pending[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotificationNotFound, id)
	}

	readAt := c.now()
	n.IsRead = true
	n.ReadAt = &readAt
	delete(c.pending, id)
	c.read[id] = n
	c.persistPending()
	c.persistRead()
	return nil
}

// ClearAll empties both inbox sets and resets the badge to zero.
// Destructive and unconditional; any confirmation belongs to the UI layer.
func (c *NotificationCenter) ClearAll() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.pending = make(map[string]models.Notification)
	c.read = make(map[string]models.Notification)
	c.persistPending()
	c.persistRead()
}

// Pending returns a snapshot of unread notifications, newest first.
func (c *NotificationCenter) Pending() []models.Notification {
	c.mu.Lock()
	defer c.mu.Unlock()
	return snapshotNotifications(c.pending)
}

// Read returns a snapshot of read notifications, newest first.
func (c *NotificationCenter) Read() []models.Notification {
	c.mu.Lock()
	defer c.mu.Unlock()
	return snapshotNotifications(c.read)
}

// Badge is the count of pending notifications. It can never go negative
// because it is derived, not decremented.
func (c *NotificationCenter) Badge() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

func snapshotNotifications(src map[string]models.Notification) []models.Notification {
	out := make([]models.Notification, 0, len(src))
	for _, n := range src {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (c *NotificationCenter) persistPending() {
	c.persistSet(blobstore.KeyPendingNotifications, c.pending)
}

func (c *NotificationCenter) persistRead() {
	c.persistSet(blobstore.KeyReadNotifications, c.read)
}

func (c *NotificationCenter) persistSet(key string, src map[string]models.Notification) {
	notifications := make([]models.Notification, 0, len(src))
	for _, n := range src {
		notifications = append(notifications, n)
	}
	sort.Slice(notifications, func(i, j int) bool { return notifications[i].ID < notifications[j].ID })

	raw, err := json.Marshal(notifications)
	if err == nil {
		err = c.blobs.Save(context.Background(), key, raw)
	}
	if err != nil {
		slog.Error("notification snapshot write failed", "key", key, "action", "persist_notifications", "error", err.Error())
		if c.onPersistErr != nil {
			c.onPersistErr(err)
		}
	}
}
