package models

import (
	"time"
)

// Report is the central workflow entity. All mutable workflow fields are
// written exclusively through workflow transitions; nothing else patches them.
type Report struct {
	Seq           int64      `json:"seq"`
	ReporterName  string     `json:"reporter_name"`
	ReporterPhone string     `json:"reporter_phone"`
	Description   string     `json:"description"`
	ImageURL      string     `json:"image_url,omitempty"`
	Address       string     `json:"address"`
	Latitude      float64    `json:"latitude"`
	Longitude     float64    `json:"longitude"`
	InfraType     InfraType  `json:"infra_type"`
	CreatedAt     time.Time  `json:"created_at"`

	Status            Status     `json:"status"`
	AssignedModerator string     `json:"assigned_moderator,omitempty"` // empty means unassigned
	StatusRemark      string     `json:"status_remark,omitempty"`
	IsNew             bool       `json:"is_new"`
	SubModeratorIsNew bool       `json:"submoderator_is_new"`
	IsApproved        bool       `json:"is_approved"`
	IsRequested       bool       `json:"is_requested"`
	RequestedAt       *time.Time `json:"requested_at,omitempty"`
	ResolvedAt        *time.Time `json:"resolved_at,omitempty"`
	IsHidden          bool       `json:"is_hidden"`
	HiddenAt          *time.Time `json:"hidden_at,omitempty"`
	UnassignedSince   *time.Time `json:"unassigned_since,omitempty"`
}

// Assigned reports whether the report currently has a responsible moderator.
func (r *Report) Assigned() bool {
	return r.AssignedModerator != ""
}

// User carries the role facts the workflow needs about an account.
// Account CRUD lives elsewhere; the workflow only reads these.
type User struct {
	ID                  string    `json:"id"`
	Name                string    `json:"name"`
	Phone               string    `json:"phone,omitempty"`
	IsAdmin             bool      `json:"is_admin"`
	IsModerator         bool      `json:"is_moderator"`
	IsSubModerator      bool      `json:"is_submoderator"`
	InfraType           InfraType `json:"infra_type,omitempty"`          // moderators only
	AssignedModeratorID string    `json:"assigned_moderator,omitempty"` // sub-moderators only
}

// Actor is the already-authenticated identity a request acts as. The HTTP
// layer builds it from token claims; the workflow core never authenticates.
type Actor struct {
	ID                  string
	Name                string
	IsAdmin             bool
	IsModerator         bool
	IsSubModerator      bool
	InfraType           InfraType
	AssignedModeratorID string
}

// NotificationKind tags what produced a notification record.
type NotificationKind string

const (
	NotifyNewReport     NotificationKind = "new_report"
	NotifyStatusChange  NotificationKind = "status_change"
	NotifyApproval      NotificationKind = "approval"
	NotifyRejection     NotificationKind = "rejection"
	NotifyAccountUpdate NotificationKind = "account_update"
)

// Notification is created by the workflow and consumed by the dashboard.
type Notification struct {
	Seq       int64            `json:"seq"`
	UserID    string           `json:"user_id"`
	ReportSeq *int64           `json:"report_seq,omitempty"`
	Message   string           `json:"message"`
	Kind      NotificationKind `json:"kind"`
	IsRead    bool             `json:"is_read"`
	CreatedAt time.Time        `json:"created_at"`
}

// SMSPayload is the outbound message handed to the gateway channel.
// The workflow produces it; delivery is somebody else's problem.
type SMSPayload struct {
	Phone string `json:"phone"`
	Text  string `json:"text"`
}
