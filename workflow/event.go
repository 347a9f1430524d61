package workflow

import (
	"infrasee/models"
)

// EventKind names a completed transition for the notification adapter.
type EventKind string

const (
	EventReportCreated       EventKind = "report_created"
	EventClaimed             EventKind = "claimed"
	EventStatusChanged       EventKind = "status_changed"
	EventResolutionRequested EventKind = "resolution_requested"
	EventApproved            EventKind = "approved"
	EventRejected            EventKind = "rejected"
	EventReturned            EventKind = "returned"
)

// Event is what the engine hands to the Notifier after a transition has been
// persisted. Report carries the post-transition state; Prev the status the
// transition actually moved from (never a stale read).
type Event struct {
	Kind   EventKind
	Report models.Report
	Prev   models.Status
	Actor  models.Actor
	Remark string

	// Moderator is the report's assigned moderator at event time, when one
	// exists; recipients of approval/rejection notifications.
	Moderator *models.User

	// SubModerators are the recipients of a resolution request.
	SubModerators []models.User

	// Moderators are the recipients of a new-report notification.
	Moderators []models.User
}
