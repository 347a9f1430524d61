package workflow

import (
	"context"
	"time"

	"github.com/apex/log"

	"infrasee/geo"
	"infrasee/models"
)

// Engine executes report lifecycle transitions. Every mutation goes through a
// conditional storage write, so two racing requests on the same report
// serialize: one applies, the other re-reads and fails cleanly. Notifications
// fire only after the write landed and never roll it back.
type Engine struct {
	store  Storage
	notify Notifier
	policy DuplicatePolicy
	now    func() time.Time
}

// NewEngine wires the engine with its storage, notification sink and the
// duplicate-suppression policy from config.
func NewEngine(store Storage, notify Notifier, policy DuplicatePolicy) *Engine {
	return &Engine{
		store:  store,
		notify: notify,
		policy: policy,
		now:    time.Now,
	}
}

// Submission is a citizen's new report, already authenticated at the edge.
type Submission struct {
	ReporterName  string           `json:"reporter_name"`
	ReporterPhone string           `json:"reporter_phone"`
	Description   string           `json:"description"`
	ImageURL      string           `json:"image_url"`
	Address       string           `json:"address"`
	Latitude      float64          `json:"latitude"`
	Longitude     float64          `json:"longitude"`
	InfraType     models.InfraType `json:"infra_type"`
}

// CreateReport screens the submission through the duplicate guard and inserts
// it as Unassigned. Moderators covering the infrastructure type are notified.
func (e *Engine) CreateReport(ctx context.Context, sub Submission) (*models.Report, error) {
	if err := validateSubmission(sub); err != nil {
		return nil, err
	}

	candidate := Candidate{
		Point:     geo.Point{Lat: sub.Latitude, Lon: sub.Longitude},
		InfraType: sub.InfraType,
	}
	nearby, err := e.store.OpenReportsNear(ctx, sub.InfraType, sub.Latitude, sub.Longitude, e.policy.RadiusMeters)
	if err != nil {
		return nil, err
	}
	if verdict := CheckDuplicate(candidate, nearby, e.policy); !verdict.Allowed {
		return nil, errDuplicate("%d unresolved %s reports already within %.0f m",
			verdict.Count, sub.InfraType, e.policy.RadiusMeters)
	}

	now := e.now()
	report := &models.Report{
		ReporterName:    sub.ReporterName,
		ReporterPhone:   sub.ReporterPhone,
		Description:     sub.Description,
		ImageURL:        sub.ImageURL,
		Address:         sub.Address,
		Latitude:        sub.Latitude,
		Longitude:       sub.Longitude,
		InfraType:       sub.InfraType,
		CreatedAt:       now,
		Status:          models.StatusUnassigned,
		IsNew:           true,
		UnassignedSince: &now,
	}
	seq, err := e.store.CreateReport(ctx, report)
	if err != nil {
		return nil, err
	}
	report.Seq = seq
	log.Infof("Report %d created (%s) at %.6f,%.6f", seq, sub.InfraType, sub.Latitude, sub.Longitude)

	moderators, err := e.store.ModeratorsByInfraType(ctx, sub.InfraType)
	if err != nil {
		log.Errorf("Failed to load moderators for new-report notification: %v", err)
		moderators = nil
	}
	e.dispatch(ctx, Event{
		Kind:       EventReportCreated,
		Report:     *report,
		Prev:       models.StatusUnassigned,
		Moderators: moderators,
	})
	return report, nil
}

// Claim assigns an Unassigned report to the acting moderator. The write is a
// compare-and-swap on the assignment column; of two concurrent claims exactly
// one wins.
func (e *Engine) Claim(ctx context.Context, actor models.Actor, seq int64) (*models.Report, error) {
	report, err := e.loadVisible(ctx, actor, seq)
	if err != nil {
		return nil, err
	}
	if !actor.IsModerator {
		return nil, errForbidden("only moderators may claim reports")
	}
	if actor.InfraType != report.InfraType {
		return nil, errForbidden("report %d is a %s report; moderator covers %s",
			seq, report.InfraType, actor.InfraType)
	}
	if report.Status != models.StatusUnassigned || report.Assigned() {
		return nil, errInvalidTransition("report %d is not unassigned (currently %s)", seq, report.Status)
	}

	unassigned := true
	patch := ReportPatch{
		Status:            setStatus(models.StatusPending),
		AssignedModerator: setStr(actor.ID),
		IsNew:             setBool(true),
		UnassignedSince:   clearTime(),
	}
	expect := ExpectedState{
		Statuses:   []models.Status{models.StatusUnassigned},
		Unassigned: &unassigned,
	}
	applied, err := e.store.ApplyTransition(ctx, seq, patch, expect)
	if err != nil {
		return nil, err
	}
	if !applied {
		return nil, e.raceOutcome(ctx, seq)
	}
	log.Infof("Report %d claimed by moderator %s", seq, actor.ID)

	after := e.reload(ctx, seq, report, patch)
	e.dispatch(ctx, Event{
		Kind:      EventClaimed,
		Report:    after,
		Prev:      models.StatusUnassigned,
		Actor:     actor,
		Moderator: e.moderatorFor(ctx, actor),
	})
	return &after, nil
}

// SetStatus is the assigned moderator's status change request. Resolved is
// special: with delegate sub-moderators it parks the report in UnderReview
// pending confirmation; without them it resolves immediately. Unassigned
// returns a Pending report to the open queue.
func (e *Engine) SetStatus(ctx context.Context, actor models.Actor, seq int64, target models.Status, remark string) (*models.Report, error) {
	if !target.Valid() {
		return nil, errValidation("unknown target status")
	}
	report, err := e.loadVisible(ctx, actor, seq)
	if err != nil {
		return nil, err
	}
	if !actor.IsModerator || report.AssignedModerator != actor.ID {
		return nil, errForbidden("report %d is not assigned to actor %s", seq, actor.ID)
	}

	switch target {
	case models.StatusResolved:
		return e.requestResolve(ctx, actor, report, remark)
	case models.StatusUnassigned:
		return e.returnToUnassigned(ctx, actor, report, remark)
	case models.StatusInProgress, models.StatusForRevision, models.StatusDismissed:
		return e.directStatusChange(ctx, actor, report, target, remark)
	default:
		return nil, errInvalidTransition("status %s cannot be requested directly", target)
	}
}

func (e *Engine) directStatusChange(ctx context.Context, actor models.Actor, report *models.Report, target models.Status, remark string) (*models.Report, error) {
	if !fromActive(report.Status) || report.Status == target {
		return nil, errInvalidTransition("no transition %s -> %s", report.Status, target)
	}

	patch := ReportPatch{
		Status:       setStatus(target),
		StatusRemark: setStr(remark),
		IsNew:        setBool(true),
	}
	applied, err := e.store.ApplyTransition(ctx, report.Seq, patch, ExpectedState{
		Statuses:   []models.Status{report.Status},
		AssignedTo: actor.ID,
	})
	if err != nil {
		return nil, err
	}
	if !applied {
		return nil, e.raceOutcome(ctx, report.Seq)
	}
	log.Infof("Report %d: %s -> %s by %s", report.Seq, report.Status, target, actor.ID)

	after := e.reload(ctx, report.Seq, report, patch)
	e.dispatch(ctx, Event{
		Kind:      EventStatusChanged,
		Report:    after,
		Prev:      report.Status,
		Actor:     actor,
		Remark:    remark,
		Moderator: e.moderatorFor(ctx, actor),
	})
	return &after, nil
}

func (e *Engine) requestResolve(ctx context.Context, actor models.Actor, report *models.Report, remark string) (*models.Report, error) {
	if !fromActive(report.Status) {
		return nil, errInvalidTransition("no transition %s -> %s", report.Status, models.StatusResolved)
	}

	subs, err := e.store.SubModeratorsOf(ctx, actor.ID)
	if err != nil {
		return nil, err
	}

	now := e.now()
	if len(subs) == 0 {
		// No delegates: resolve outright.
		patch := ReportPatch{
			Status:       setStatus(models.StatusResolved),
			StatusRemark: setStr(remark),
			IsNew:        setBool(true),
			IsRequested:  setBool(false),
			ResolvedAt:   setTime(now),
		}
		applied, err := e.store.ApplyTransition(ctx, report.Seq, patch, ExpectedState{
			Statuses:   []models.Status{report.Status},
			AssignedTo: actor.ID,
		})
		if err != nil {
			return nil, err
		}
		if !applied {
			return nil, e.raceOutcome(ctx, report.Seq)
		}
		log.Infof("Report %d resolved directly by %s", report.Seq, actor.ID)

		after := e.reload(ctx, report.Seq, report, patch)
		e.dispatch(ctx, Event{
			Kind:      EventStatusChanged,
			Report:    after,
			Prev:      report.Status,
			Actor:     actor,
			Remark:    remark,
			Moderator: e.moderatorFor(ctx, actor),
		})
		return &after, nil
	}

	// Delegates exist: park in UnderReview until a sub-moderator confirms.
	// The reporter hears nothing at this step.
	patch := ReportPatch{
		Status:            setStatus(models.StatusUnderReview),
		StatusRemark:      setStr(remark),
		IsNew:             setBool(true),
		IsRequested:       setBool(true),
		RequestedAt:       setTime(now),
		SubModeratorIsNew: setBool(true),
	}
	applied, err := e.store.ApplyTransition(ctx, report.Seq, patch, ExpectedState{
		Statuses:   []models.Status{report.Status},
		AssignedTo: actor.ID,
	})
	if err != nil {
		return nil, err
	}
	if !applied {
		return nil, e.raceOutcome(ctx, report.Seq)
	}
	log.Infof("Report %d: resolution by %s awaiting confirmation from %d sub-moderators",
		report.Seq, actor.ID, len(subs))

	after := e.reload(ctx, report.Seq, report, patch)
	e.dispatch(ctx, Event{
		Kind:          EventResolutionRequested,
		Report:        after,
		Prev:          report.Status,
		Actor:         actor,
		Remark:        remark,
		Moderator:     e.moderatorFor(ctx, actor),
		SubModerators: subs,
	})
	return &after, nil
}

func (e *Engine) returnToUnassigned(ctx context.Context, actor models.Actor, report *models.Report, remark string) (*models.Report, error) {
	if report.Status != models.StatusPending {
		return nil, errInvalidTransition("no transition %s -> %s", report.Status, models.StatusUnassigned)
	}

	patch := ReportPatch{
		Status:            setStatus(models.StatusUnassigned),
		AssignedModerator: setStr(""),
		StatusRemark:      setStr(remark),
		IsNew:             setBool(true),
		UnassignedSince:   setTime(e.now()),
	}
	applied, err := e.store.ApplyTransition(ctx, report.Seq, patch, ExpectedState{
		Statuses:   []models.Status{models.StatusPending},
		AssignedTo: actor.ID,
	})
	if err != nil {
		return nil, err
	}
	if !applied {
		return nil, e.raceOutcome(ctx, report.Seq)
	}
	log.Infof("Report %d returned to unassigned by %s", report.Seq, actor.ID)

	after := e.reload(ctx, report.Seq, report, patch)
	e.dispatch(ctx, Event{
		Kind:      EventReturned,
		Report:    after,
		Prev:      models.StatusPending,
		Actor:     actor,
		Remark:    remark,
		Moderator: e.moderatorFor(ctx, actor),
	})
	return &after, nil
}

// Approve is the sub-moderator's confirmation of a pending resolution.
func (e *Engine) Approve(ctx context.Context, actor models.Actor, seq int64) (*models.Report, error) {
	report, err := e.reviewTarget(ctx, actor, seq)
	if err != nil {
		return nil, err
	}

	requested := true
	patch := ReportPatch{
		Status:            setStatus(models.StatusResolved),
		IsApproved:        setBool(true),
		IsRequested:       setBool(false),
		ResolvedAt:        setTime(e.now()),
		IsNew:             setBool(true),
		SubModeratorIsNew: setBool(false),
	}
	applied, err := e.store.ApplyTransition(ctx, seq, patch, ExpectedState{
		Statuses:  []models.Status{models.StatusUnderReview},
		Requested: &requested,
	})
	if err != nil {
		return nil, err
	}
	if !applied {
		return nil, e.raceOutcome(ctx, seq)
	}
	log.Infof("Report %d resolution approved by sub-moderator %s", seq, actor.ID)

	after := e.reload(ctx, seq, report, patch)
	e.dispatch(ctx, Event{
		Kind:      EventApproved,
		Report:    after,
		Prev:      models.StatusUnderReview,
		Actor:     actor,
		Moderator: e.userOrNil(ctx, report.AssignedModerator),
	})
	return &after, nil
}

// Reject sends a pending resolution back to the moderator for revision.
// The reporter is not notified.
func (e *Engine) Reject(ctx context.Context, actor models.Actor, seq int64, remark string) (*models.Report, error) {
	report, err := e.reviewTarget(ctx, actor, seq)
	if err != nil {
		return nil, err
	}

	requested := true
	patch := ReportPatch{
		Status:            setStatus(models.StatusForRevision),
		IsApproved:        setBool(false),
		IsRequested:       setBool(false),
		StatusRemark:      setStr(remark),
		IsNew:             setBool(true),
		SubModeratorIsNew: setBool(false),
	}
	applied, err := e.store.ApplyTransition(ctx, seq, patch, ExpectedState{
		Statuses:  []models.Status{models.StatusUnderReview},
		Requested: &requested,
	})
	if err != nil {
		return nil, err
	}
	if !applied {
		return nil, e.raceOutcome(ctx, seq)
	}
	log.Infof("Report %d resolution rejected by sub-moderator %s", seq, actor.ID)

	after := e.reload(ctx, seq, report, patch)
	e.dispatch(ctx, Event{
		Kind:      EventRejected,
		Report:    after,
		Prev:      models.StatusUnderReview,
		Actor:     actor,
		Remark:    remark,
		Moderator: e.userOrNil(ctx, report.AssignedModerator),
	})
	return &after, nil
}

// reviewTarget loads and authorizes the target of an approve/reject call.
func (e *Engine) reviewTarget(ctx context.Context, actor models.Actor, seq int64) (*models.Report, error) {
	report, err := e.loadVisible(ctx, actor, seq)
	if err != nil {
		return nil, err
	}
	if !actor.IsSubModerator {
		return nil, errForbidden("only sub-moderators may confirm resolutions")
	}
	if !report.Assigned() || actor.AssignedModeratorID != report.AssignedModerator {
		return nil, errForbidden("report %d is not handled by actor's moderator", seq)
	}
	if !report.IsRequested || report.Status != models.StatusUnderReview {
		return nil, errInvalidTransition("report %d has no resolution awaiting confirmation", seq)
	}
	return report, nil
}

// MarkSeen toggles the primary-moderator unread flag. Not a transition: no
// notification, no status check.
func (e *Engine) MarkSeen(ctx context.Context, actor models.Actor, seq int64, unread bool) error {
	report, err := e.loadVisible(ctx, actor, seq)
	if err != nil {
		return err
	}
	if !actor.IsAdmin && !(actor.IsModerator && report.AssignedModerator == actor.ID) &&
		!(actor.IsModerator && !report.Assigned() && actor.InfraType == report.InfraType) {
		return errForbidden("actor %s may not toggle flags on report %d", actor.ID, seq)
	}
	applied, err := e.store.ApplyTransition(ctx, seq, ReportPatch{IsNew: setBool(unread)}, ExpectedState{})
	if err != nil {
		return err
	}
	if !applied {
		return errNotFound("report %d not found", seq)
	}
	return nil
}

// MarkSubModeratorSeen toggles the sub-moderator-view unread flag.
func (e *Engine) MarkSubModeratorSeen(ctx context.Context, actor models.Actor, seq int64, unread bool) error {
	report, err := e.loadVisible(ctx, actor, seq)
	if err != nil {
		return err
	}
	if !actor.IsAdmin && !(actor.IsSubModerator && actor.AssignedModeratorID == report.AssignedModerator) {
		return errForbidden("actor %s may not toggle flags on report %d", actor.ID, seq)
	}
	applied, err := e.store.ApplyTransition(ctx, seq, ReportPatch{SubModeratorIsNew: setBool(unread)}, ExpectedState{})
	if err != nil {
		return err
	}
	if !applied {
		return errNotFound("report %d not found", seq)
	}
	return nil
}

// SetHidden archives or restores a report. Hidden reports drop out of all
// active-queue reads and out of duplicate counting.
func (e *Engine) SetHidden(ctx context.Context, actor models.Actor, seq int64, hidden bool) error {
	if !actor.IsAdmin {
		return errForbidden("only admins may archive reports")
	}
	report, err := e.load(ctx, seq)
	if err != nil {
		return err
	}
	if report.IsHidden == hidden {
		return nil
	}
	patch := ReportPatch{IsHidden: setBool(hidden)}
	if hidden {
		patch.HiddenAt = setTime(e.now())
	} else {
		patch.HiddenAt = clearTime()
	}
	applied, err := e.store.ApplyTransition(ctx, seq, patch, ExpectedState{})
	if err != nil {
		return err
	}
	if !applied {
		return errNotFound("report %d not found", seq)
	}
	log.Infof("Report %d hidden=%v by admin %s", seq, hidden, actor.ID)
	return nil
}

// Delete permanently removes a report. Admin action only; TTL expiry of stale
// unassigned reports happens in the service sweep, not here.
func (e *Engine) Delete(ctx context.Context, actor models.Actor, seq int64) error {
	if !actor.IsAdmin {
		return errForbidden("only admins may delete reports")
	}
	deleted, err := e.store.DeleteReport(ctx, seq)
	if err != nil {
		return err
	}
	if !deleted {
		return errNotFound("report %d not found", seq)
	}
	log.Infof("Report %d deleted by admin %s", seq, actor.ID)
	return nil
}

// fromActive reports whether a moderator status change may start from s.
func fromActive(s models.Status) bool {
	return s == models.StatusPending || s == models.StatusInProgress
}

func validateSubmission(sub Submission) error {
	if sub.ReporterName == "" {
		return errValidation("reporter name is required")
	}
	if sub.ReporterPhone == "" {
		return errValidation("reporter contact number is required")
	}
	if sub.Description == "" {
		return errValidation("description is required")
	}
	if !sub.InfraType.Valid() {
		return errValidation("unknown infrastructure type %q", sub.InfraType)
	}
	if !(geo.Point{Lat: sub.Latitude, Lon: sub.Longitude}).Valid() {
		return errValidation("coordinates %v,%v out of range", sub.Latitude, sub.Longitude)
	}
	return nil
}

func (e *Engine) load(ctx context.Context, seq int64) (*models.Report, error) {
	report, err := e.store.GetReport(ctx, seq)
	if err != nil {
		return nil, err
	}
	if report == nil {
		return nil, errNotFound("report %d not found", seq)
	}
	return report, nil
}

// loadVisible hides archived reports from everyone but admins.
func (e *Engine) loadVisible(ctx context.Context, actor models.Actor, seq int64) (*models.Report, error) {
	report, err := e.load(ctx, seq)
	if err != nil {
		return nil, err
	}
	if report.IsHidden && !actor.IsAdmin {
		return nil, errNotFound("report %d not found", seq)
	}
	return report, nil
}

// raceOutcome classifies a conditional write that matched no row.
func (e *Engine) raceOutcome(ctx context.Context, seq int64) error {
	report, err := e.store.GetReport(ctx, seq)
	if err != nil {
		return err
	}
	if report == nil {
		return errNotFound("report %d not found", seq)
	}
	return errInvalidTransition("report %d changed concurrently (now %s)", seq, report.Status)
}

// reload fetches the persisted post-transition state; if the read fails it
// falls back to applying the patch to the pre-image so the event still
// reflects what was written.
func (e *Engine) reload(ctx context.Context, seq int64, before *models.Report, patch ReportPatch) models.Report {
	report, err := e.store.GetReport(ctx, seq)
	if err == nil && report != nil {
		return *report
	}
	if err != nil {
		log.Errorf("Failed to re-read report %d after transition: %v", seq, err)
	}
	after := *before
	applyPatch(&after, patch)
	return after
}

// applyPatch mirrors the storage layer's column writes onto an in-memory copy.
func applyPatch(r *models.Report, p ReportPatch) {
	if p.Status.Set {
		r.Status = p.Status.Value
	}
	if p.AssignedModerator.Set {
		r.AssignedModerator = p.AssignedModerator.Value
	}
	if p.StatusRemark.Set {
		r.StatusRemark = p.StatusRemark.Value
	}
	if p.IsNew.Set {
		r.IsNew = p.IsNew.Value
	}
	if p.SubModeratorIsNew.Set {
		r.SubModeratorIsNew = p.SubModeratorIsNew.Value
	}
	if p.IsApproved.Set {
		r.IsApproved = p.IsApproved.Value
	}
	if p.IsRequested.Set {
		r.IsRequested = p.IsRequested.Value
	}
	if p.RequestedAt.Set {
		r.RequestedAt = p.RequestedAt.Value
	}
	if p.ResolvedAt.Set {
		r.ResolvedAt = p.ResolvedAt.Value
	}
	if p.IsHidden.Set {
		r.IsHidden = p.IsHidden.Value
	}
	if p.HiddenAt.Set {
		r.HiddenAt = p.HiddenAt.Value
	}
	if p.UnassignedSince.Set {
		r.UnassignedSince = p.UnassignedSince.Value
	}
}

func (e *Engine) dispatch(ctx context.Context, ev Event) {
	if e.notify == nil {
		return
	}
	e.notify.Dispatch(ctx, ev)
}

// moderatorFor resolves the acting moderator's user record, falling back to
// the actor's own claims when the read fails.
func (e *Engine) moderatorFor(ctx context.Context, actor models.Actor) *models.User {
	if u := e.userOrNil(ctx, actor.ID); u != nil {
		return u
	}
	return &models.User{
		ID:          actor.ID,
		Name:        actor.Name,
		IsModerator: actor.IsModerator,
		InfraType:   actor.InfraType,
	}
}

func (e *Engine) userOrNil(ctx context.Context, id string) *models.User {
	if id == "" {
		return nil
	}
	u, err := e.store.GetUser(ctx, id)
	if err != nil {
		log.Errorf("Failed to load user %s for notification: %v", id, err)
		return nil
	}
	return u
}
