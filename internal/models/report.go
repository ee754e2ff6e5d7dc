package models

import (
	"time"

	"github.com/google/uuid"
)

// ReportStatus is the lifecycle state of a report. Statuses form a total
// order; a report's status never moves to a lower rank once assigned.
type ReportStatus string

const (
	StatusDraft      ReportStatus = "draft"
	StatusSubmitted  ReportStatus = "submitted"
	StatusReceived   ReportStatus = "received"
	StatusInProgress ReportStatus = "in_progress"
	StatusResolved   ReportStatus = "resolved"
)

var statusRanks = map[ReportStatus]int{
	StatusDraft:      0,
	StatusSubmitted:  1,
	StatusReceived:   2,
	StatusInProgress: 3,
	StatusResolved:   4,
}

// Rank returns the position of the status in the lifecycle order.
// Unknown statuses rank -1 and fail Valid().
func (s ReportStatus) Rank() int {
	if r, ok := statusRanks[s]; ok {
		return r
	}
	return -1
}

func (s ReportStatus) Valid() bool {
	_, ok := statusRanks[s]
	return ok
}

// ReportCategory classifies the kind of incident being reported.
type ReportCategory string

const (
	CategoryPhysical  ReportCategory = "physical"
	CategoryEmotional ReportCategory = "emotional"
	CategoryNeglect   ReportCategory = "neglect"
	CategorySexual    ReportCategory = "sexual"
	CategoryBullying  ReportCategory = "bullying"
	CategoryOther     ReportCategory = "other"
)

var ReportCategories = []ReportCategory{
	CategoryPhysical, CategoryEmotional, CategoryNeglect,
	CategorySexual, CategoryBullying, CategoryOther,
}

func (c ReportCategory) Valid() bool {
	for _, known := range ReportCategories {
		if c == known {
			return true
		}
	}
	return false
}

// ContactInfo is the optional contact record attached to a non-anonymous
// report.
type ContactInfo struct {
	Name            string `json:"name,omitempty"`
	Email           string `json:"email,omitempty"`
	Phone           string `json:"phone,omitempty"`
	PreferredMethod string `json:"preferred_method,omitempty"`
}

// Attachment describes one piece of media attached to a report. The media
// bytes themselves live with the upload pipeline; this is a descriptor only.
type Attachment struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Size int64  `json:"size"`
}

// Location is an optional capture location for a report.
type Location struct {
	Latitude   float64   `json:"latitude"`
	Longitude  float64   `json:"longitude"`
	CapturedAt time.Time `json:"captured_at"`
}

// StatusUpdate is one immutable lifecycle transition for a report.
type StatusUpdate struct {
	ID             string       `json:"id"`
	Timestamp      time.Time    `json:"timestamp"`
	OldStatus      ReportStatus `json:"old_status"`
	NewStatus      ReportStatus `json:"new_status"`
	Message        string       `json:"message"`
	ActionRequired bool         `json:"action_required,omitempty"`
}

// Report is a user-authored incident submission. Reports are persisted as
// whole-collection JSON blobs, so the struct carries json tags only.
//
// Invariants: Status equals the NewStatus of the last history entry whenever
// the history is non-empty, and TrackingCode stays nil until the report
// leaves draft.
type Report struct {
	ID            string         `json:"id"`
	CreatedAt     time.Time      `json:"created_at"`
	Category      ReportCategory `json:"category"`
	Content       string         `json:"content"`
	IsAnonymous   bool           `json:"is_anonymous"`
	Contact       *ContactInfo   `json:"contact,omitempty"`
	Status        ReportStatus   `json:"status"`
	StatusHistory []StatusUpdate `json:"status_history"`
	TrackingCode  *string        `json:"tracking_code,omitempty"`
	Attachments   []Attachment   `json:"attachments,omitempty"`
	Location      *Location      `json:"location,omitempty"`
}

// NewStatusUpdate builds a transition record with a fresh id and timestamp.
func NewStatusUpdate(old, new ReportStatus, message string) StatusUpdate {
	return StatusUpdate{
		ID:        uuid.NewString(),
		Timestamp: time.Now().UTC(),
		OldStatus: old,
		NewStatus: new,
		Message:   message,
	}
}

// Clone returns a deep copy so callers can't mutate store-owned state
// through a returned report.
func (r Report) Clone() Report {
	out := r
	if r.StatusHistory != nil {
		out.StatusHistory = make([]StatusUpdate, len(r.StatusHistory))
		copy(out.StatusHistory, r.StatusHistory)
	}
	if r.Attachments != nil {
		out.Attachments = make([]Attachment, len(r.Attachments))
		copy(out.Attachments, r.Attachments)
	}
	if r.Contact != nil {
		contact := *r.Contact
		out.Contact = &contact
	}
	if r.Location != nil {
		loc := *r.Location
		out.Location = &loc
	}
	if r.TrackingCode != nil {
		code := *r.TrackingCode
		out.TrackingCode = &code
	}
	return out
}
