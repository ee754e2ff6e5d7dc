package services

import "errors"

var (
	// ErrReportNotFound is returned for operations on an unknown report id,
	// including a submit whose draft was deleted while the submission was
	// in flight.
	ErrReportNotFound = errors.New("report not found")

	// ErrInvalidTransition is returned when a status update would regress
	// the report's lifecycle rank.
	ErrInvalidTransition = errors.New("status transition would regress report lifecycle")

	// ErrDraftResubmit is returned when a report that already left draft is
	// saved back into the drafts collection.
	ErrDraftResubmit = errors.New("report already submitted and cannot return to draft")

	// ErrAlreadySubmitted is returned when a report that already lives in
	// the active collection is submitted again.
	ErrAlreadySubmitted = errors.New("report already submitted")

	// ErrEmptyContent is returned when a report with no body is submitted.
	// Empty content is allowed only while a report stays in draft.
	ErrEmptyContent = errors.New("report content is required for submission")

	// ErrInvalidCategory is returned for a category outside the fixed set.
	ErrInvalidCategory = errors.New("unknown report category")

	// ErrSubmitFailed wraps failures from the external submission
	// collaborator. The store commits nothing when it is returned.
	ErrSubmitFailed = errors.New("report submission failed")

	// ErrNotificationNotFound is returned by MarkAsRead for an id that is
	// neither pending nor read.
	ErrNotificationNotFound = errors.New("notification not found")
)
