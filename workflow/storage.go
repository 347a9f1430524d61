package workflow

import (
	"context"
	"time"

	"infrasee/models"
)

// StatusOpt, StrOpt, BoolOpt and TimeOpt express partial updates without
// pulling database/sql into the core. Set=false leaves the column untouched;
// for StrOpt an empty value and for TimeOpt a nil value write NULL.
type StatusOpt struct {
	Set   bool
	Value models.Status
}

type StrOpt struct {
	Set   bool
	Value string
}

type BoolOpt struct {
	Set   bool
	Value bool
}

type TimeOpt struct {
	Set   bool
	Value *time.Time
}

func setStatus(s models.Status) StatusOpt { return StatusOpt{Set: true, Value: s} }
func setStr(v string) StrOpt              { return StrOpt{Set: true, Value: v} }
func setBool(v bool) BoolOpt              { return BoolOpt{Set: true, Value: v} }
func setTime(t time.Time) TimeOpt         { return TimeOpt{Set: true, Value: &t} }
func clearTime() TimeOpt                  { return TimeOpt{Set: true} }

// ReportPatch is the field set a single transition is allowed to write.
type ReportPatch struct {
	Status            StatusOpt
	AssignedModerator StrOpt
	StatusRemark      StrOpt
	IsNew             BoolOpt
	SubModeratorIsNew BoolOpt
	IsApproved        BoolOpt
	IsRequested       BoolOpt
	RequestedAt       TimeOpt
	ResolvedAt        TimeOpt
	IsHidden          BoolOpt
	HiddenAt          TimeOpt
	UnassignedSince   TimeOpt
}

// ExpectedState is the conditional part of a transition write. The storage
// layer must apply the patch only while every listed condition still holds,
// atomically, so racing transitions serialize per report.
type ExpectedState struct {
	Statuses   []models.Status // current status must be one of these
	Unassigned *bool           // assigned_moderator NULL (true) / NOT NULL (false)
	AssignedTo string          // assigned_moderator equals this user
	Requested  *bool           // is_requested must equal this
}

// Storage is what the engine needs from persistence. The MySQL implementation
// lives in the database package; tests use an in-memory fake.
type Storage interface {
	GetReport(ctx context.Context, seq int64) (*models.Report, error)
	CreateReport(ctx context.Context, r *models.Report) (int64, error)
	DeleteReport(ctx context.Context, seq int64) (bool, error)

	// ApplyTransition atomically applies patch to the report iff expect still
	// holds. Returns false when no row matched (missing report or lost race).
	ApplyTransition(ctx context.Context, seq int64, patch ReportPatch, expect ExpectedState) (bool, error)

	// OpenReportsNear returns non-resolved, non-hidden reports of the given
	// type within radiusMeters of the point (a coarse prefilter is fine; the
	// guard recomputes exact distances).
	OpenReportsNear(ctx context.Context, t models.InfraType, lat, lon, radiusMeters float64) ([]NearbyReport, error)

	GetUser(ctx context.Context, id string) (*models.User, error)
	SubModeratorsOf(ctx context.Context, moderatorID string) ([]models.User, error)
	ModeratorsByInfraType(ctx context.Context, t models.InfraType) ([]models.User, error)
}

// Notifier receives transition events after they are persisted. Dispatch is
// best-effort: implementations log failures and never report them back.
type Notifier interface {
	Dispatch(ctx context.Context, ev Event)
}
