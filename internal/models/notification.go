package models

import (
	"time"

	"github.com/google/uuid"
)

// NotificationType distinguishes the user-facing notification kinds.
type NotificationType string

const (
	NotifyReportUpdate   NotificationType = "report_update"
	NotifyDraftReminder  NotificationType = "draft_reminder"
	NotifyCheckIn        NotificationType = "check_in"
	NotifyActionRequired NotificationType = "action_required"
	NotifyAppUpdate      NotificationType = "app_update"
	NotifySecurityAlert  NotificationType = "security_alert"
)

// TimingKind selects how a notification's fire moment is computed.
type TimingKind string

const (
	TimingImmediate TimingKind = "immediate"
	TimingDelayed   TimingKind = "delayed"
	TimingScheduled TimingKind = "scheduled"
)

// CalendarTarget is an absolute fire target decomposed into calendar
// components. The wall-clock instant is re-derived in the scheduler's
// timezone at fire time, so a daylight-saving shift between scheduling and
// firing moves the alert with the clock instead of a baked-in offset.
type CalendarTarget struct {
	Year   int `json:"year"`
	Month  int `json:"month"`
	Day    int `json:"day"`
	Hour   int `json:"hour"`
	Minute int `json:"minute"`
}

// Materialize resolves the target to a concrete instant in loc.
func (t CalendarTarget) Materialize(loc *time.Location) time.Time {
	return time.Date(t.Year, time.Month(t.Month), t.Day, t.Hour, t.Minute, 0, 0, loc)
}

// CalendarTargetFor decomposes an instant into calendar components.
func CalendarTargetFor(at time.Time) CalendarTarget {
	return CalendarTarget{
		Year:   at.Year(),
		Month:  int(at.Month()),
		Day:    at.Day(),
		Hour:   at.Hour(),
		Minute: at.Minute(),
	}
}

// Timing describes when the platform-level alert for a notification fires.
type Timing struct {
	Kind         TimingKind      `json:"kind"`
	DelaySeconds int             `json:"delay_seconds,omitempty"`
	At           *CalendarTarget `json:"at,omitempty"`
}

func Immediate() Timing { return Timing{Kind: TimingImmediate} }

func Delayed(seconds int) Timing {
	return Timing{Kind: TimingDelayed, DelaySeconds: seconds}
}

func Scheduled(at time.Time) Timing {
	target := CalendarTargetFor(at)
	return Timing{Kind: TimingScheduled, At: &target}
}

// Notification is one entry in the user's notification inbox. Notifications
// reference reports by id only; they never embed report state that could
// drift from the store.
type Notification struct {
	ID          string           `json:"id"`
	Title       string           `json:"title"`
	Body        string           `json:"body"`
	Type        NotificationType `json:"type"`
	Timing      Timing           `json:"timing"`
	CreatedAt   time.Time        `json:"created_at"`
	ReferenceID string           `json:"reference_id,omitempty"`
	IsRead      bool             `json:"is_read"`
	ReadAt      *time.Time       `json:"read_at,omitempty"`
	Disguised   bool             `json:"disguised"`
}

// NewNotification builds an unread notification stamped now.
func NewNotification(nType NotificationType, title, body string, timing Timing, referenceID string) Notification {
	return Notification{
		ID:          uuid.NewString(),
		Title:       title,
		Body:        body,
		Type:        nType,
		Timing:      timing,
		CreatedAt:   time.Now().UTC(),
		ReferenceID: referenceID,
	}
}
