package database

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"strings"
	"time"

	"infrasee/common"
	"infrasee/models"
	"infrasee/workflow"
)

const reportColumns = `seq, reporter_name, reporter_phone, description, image_url, address,
	latitude, longitude, infra_type, created_at, status, assigned_moderator, status_remark,
	is_new, submoderator_is_new, is_approved, is_requested, requested_at, resolved_at,
	is_hidden, hidden_at, unassigned_since`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanReport(row rowScanner) (*models.Report, error) {
	var (
		r               models.Report
		imageURL        sql.NullString
		infraType       string
		statusSlug      string
		assignedMod     sql.NullString
		statusRemark    sql.NullString
		requestedAt     sql.NullTime
		resolvedAt      sql.NullTime
		hiddenAt        sql.NullTime
		unassignedSince sql.NullTime
	)
	err := row.Scan(&r.Seq, &r.ReporterName, &r.ReporterPhone, &r.Description, &imageURL,
		&r.Address, &r.Latitude, &r.Longitude, &infraType, &r.CreatedAt, &statusSlug,
		&assignedMod, &statusRemark, &r.IsNew, &r.SubModeratorIsNew, &r.IsApproved,
		&r.IsRequested, &requestedAt, &resolvedAt, &r.IsHidden, &hiddenAt, &unassignedSince)
	if err != nil {
		return nil, err
	}

	r.ImageURL = imageURL.String
	r.InfraType = models.InfraType(infraType)
	r.AssignedModerator = assignedMod.String
	r.StatusRemark = statusRemark.String
	if status, err := models.ParseStatus(statusSlug); err == nil {
		r.Status = status
	} else {
		return nil, fmt.Errorf("report %d carries unknown status %q", r.Seq, statusSlug)
	}
	if requestedAt.Valid {
		t := requestedAt.Time
		r.RequestedAt = &t
	}
	if resolvedAt.Valid {
		t := resolvedAt.Time
		r.ResolvedAt = &t
	}
	if hiddenAt.Valid {
		t := hiddenAt.Time
		r.HiddenAt = &t
	}
	if unassignedSince.Valid {
		t := unassignedSince.Time
		r.UnassignedSince = &t
	}
	return &r, nil
}

// GetReport fetches one report; returns nil when it does not exist.
func (d *Database) GetReport(ctx context.Context, seq int64) (*models.Report, error) {
	row := d.db.QueryRowContext(ctx,
		`SELECT `+reportColumns+` FROM reports WHERE seq = ?`, seq)
	report, err := scanReport(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get report %d: %w", seq, err)
	}
	return report, nil
}

// CreateReport inserts a new report and returns its sequence number.
func (d *Database) CreateReport(ctx context.Context, r *models.Report) (int64, error) {
	result, err := d.db.ExecContext(ctx, `INSERT
		INTO reports (reporter_name, reporter_phone, description, image_url, address,
			latitude, longitude, infra_type, status, is_new, unassigned_since)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ReporterName, r.ReporterPhone, r.Description, nullableStr(r.ImageURL), r.Address,
		r.Latitude, r.Longitude, string(r.InfraType), r.Status.Slug(), r.IsNew,
		nullableTime(r.UnassignedSince))
	common.LogResult("createReport", result, err, true)
	if err != nil {
		return 0, fmt.Errorf("failed to insert report: %w", err)
	}
	seq, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get report seq: %w", err)
	}
	return seq, nil
}

// DeleteReport removes a report; false when nothing matched.
func (d *Database) DeleteReport(ctx context.Context, seq int64) (bool, error) {
	result, err := d.db.ExecContext(ctx, "DELETE FROM reports WHERE seq = ?", seq)
	if err != nil {
		return false, fmt.Errorf("failed to delete report %d: %w", seq, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows > 0, nil
}

// ApplyTransition applies a partial update guarded by the expected prior
// state in a single conditional UPDATE. Zero matched rows means the report is
// gone or the condition no longer holds; the caller sorts out which.
func (d *Database) ApplyTransition(ctx context.Context, seq int64, patch workflow.ReportPatch, expect workflow.ExpectedState) (bool, error) {
	set := make([]string, 0, 12)
	args := make([]interface{}, 0, 16)

	if patch.Status.Set {
		set = append(set, "status = ?")
		args = append(args, patch.Status.Value.Slug())
	}
	if patch.AssignedModerator.Set {
		set = append(set, "assigned_moderator = ?")
		args = append(args, nullableStr(patch.AssignedModerator.Value))
	}
	if patch.StatusRemark.Set {
		set = append(set, "status_remark = ?")
		args = append(args, nullableStr(patch.StatusRemark.Value))
	}
	if patch.IsNew.Set {
		set = append(set, "is_new = ?")
		args = append(args, patch.IsNew.Value)
	}
	if patch.SubModeratorIsNew.Set {
		set = append(set, "submoderator_is_new = ?")
		args = append(args, patch.SubModeratorIsNew.Value)
	}
	if patch.IsApproved.Set {
		set = append(set, "is_approved = ?")
		args = append(args, patch.IsApproved.Value)
	}
	if patch.IsRequested.Set {
		set = append(set, "is_requested = ?")
		args = append(args, patch.IsRequested.Value)
	}
	if patch.RequestedAt.Set {
		set = append(set, "requested_at = ?")
		args = append(args, nullableTime(patch.RequestedAt.Value))
	}
	if patch.ResolvedAt.Set {
		set = append(set, "resolved_at = ?")
		args = append(args, nullableTime(patch.ResolvedAt.Value))
	}
	if patch.IsHidden.Set {
		set = append(set, "is_hidden = ?")
		args = append(args, patch.IsHidden.Value)
	}
	if patch.HiddenAt.Set {
		set = append(set, "hidden_at = ?")
		args = append(args, nullableTime(patch.HiddenAt.Value))
	}
	if patch.UnassignedSince.Set {
		set = append(set, "unassigned_since = ?")
		args = append(args, nullableTime(patch.UnassignedSince.Value))
	}
	if len(set) == 0 {
		return false, fmt.Errorf("empty patch for report %d", seq)
	}

	where := []string{"seq = ?"}
	args = append(args, seq)
	if len(expect.Statuses) > 0 {
		placeholders := make([]string, len(expect.Statuses))
		for i, s := range expect.Statuses {
			placeholders[i] = "?"
			args = append(args, s.Slug())
		}
		where = append(where, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ", ")))
	}
	if expect.Unassigned != nil {
		if *expect.Unassigned {
			where = append(where, "assigned_moderator IS NULL")
		} else {
			where = append(where, "assigned_moderator IS NOT NULL")
		}
	}
	if expect.AssignedTo != "" {
		where = append(where, "assigned_moderator = ?")
		args = append(args, expect.AssignedTo)
	}
	if expect.Requested != nil {
		where = append(where, "is_requested = ?")
		args = append(args, *expect.Requested)
	}

	query := fmt.Sprintf("UPDATE reports SET %s WHERE %s",
		strings.Join(set, ", "), strings.Join(where, " AND "))
	result, err := d.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("failed to apply transition on report %d: %w", seq, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows > 0, nil
}

// OpenReportsNear returns the non-resolved, non-hidden reports of one
// infrastructure type inside a bounding box around the point. The box is a
// coarse prefilter; the duplicate guard recomputes exact distances.
func (d *Database) OpenReportsNear(ctx context.Context, t models.InfraType, latitude, longitude, radiusMeters float64) ([]workflow.NearbyReport, error) {
	// 1 degree latitude ~ 111,320 m; longitude shrinks with cos(lat).
	latRadius := radiusMeters / 111320.0
	lonRadius := radiusMeters / (111320.0 * math.Cos(latitude*math.Pi/180.0))

	rows, err := d.db.QueryContext(ctx, `
		SELECT seq, latitude, longitude, infra_type, status
		FROM reports
		WHERE infra_type = ?
			AND status != 'resolved'
			AND is_hidden = FALSE
			AND latitude BETWEEN ? AND ?
			AND longitude BETWEEN ? AND ?`,
		string(t), latitude-latRadius, latitude+latRadius,
		longitude-lonRadius, longitude+lonRadius)
	if err != nil {
		return nil, fmt.Errorf("failed to query nearby reports: %w", err)
	}
	defer rows.Close()

	var nearby []workflow.NearbyReport
	for rows.Next() {
		var (
			n          workflow.NearbyReport
			infraType  string
			statusSlug string
		)
		if err := rows.Scan(&n.Seq, &n.Point.Lat, &n.Point.Lon, &infraType, &statusSlug); err != nil {
			return nil, fmt.Errorf("failed to scan nearby report: %w", err)
		}
		n.InfraType = models.InfraType(infraType)
		status, err := models.ParseStatus(statusSlug)
		if err != nil {
			return nil, err
		}
		n.Status = status
		nearby = append(nearby, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating nearby reports: %w", err)
	}
	return nearby, nil
}

// ExpireUnassignedBefore deletes reports that have sat unassigned since
// before the cutoff. Returns the number of reports removed.
func (d *Database) ExpireUnassignedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := d.db.ExecContext(ctx, `DELETE FROM reports
		WHERE status = 'unassigned'
			AND unassigned_since IS NOT NULL
			AND unassigned_since < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to expire unassigned reports: %w", err)
	}
	return result.RowsAffected()
}

// ListModeratorQueue returns the active queue a moderator sees: reports
// assigned to them plus the unassigned pool of their infrastructure type.
func (d *Database) ListModeratorQueue(ctx context.Context, moderatorID string, t models.InfraType) ([]models.Report, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT `+reportColumns+`
		FROM reports
		WHERE is_hidden = FALSE
			AND (assigned_moderator = ? OR (status = 'unassigned' AND infra_type = ?))
		ORDER BY created_at DESC`,
		moderatorID, string(t))
	if err != nil {
		return nil, fmt.Errorf("failed to query moderator queue: %w", err)
	}
	return collectReports(rows)
}

// ListReviewQueue returns the reports awaiting confirmation by the
// sub-moderators of the given moderator.
func (d *Database) ListReviewQueue(ctx context.Context, moderatorID string) ([]models.Report, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT `+reportColumns+`
		FROM reports
		WHERE is_hidden = FALSE
			AND assigned_moderator = ?
			AND is_requested = TRUE
		ORDER BY requested_at ASC`,
		moderatorID)
	if err != nil {
		return nil, fmt.Errorf("failed to query review queue: %w", err)
	}
	return collectReports(rows)
}

// ListReports returns every report, optionally including archived ones.
func (d *Database) ListReports(ctx context.Context, includeHidden bool) ([]models.Report, error) {
	query := `SELECT ` + reportColumns + ` FROM reports`
	if !includeHidden {
		query += ` WHERE is_hidden = FALSE`
	}
	query += ` ORDER BY created_at DESC`

	rows, err := d.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query reports: %w", err)
	}
	return collectReports(rows)
}

func collectReports(rows *sql.Rows) ([]models.Report, error) {
	defer rows.Close()

	reports := make([]models.Report, 0)
	for rows.Next() {
		report, err := scanReport(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan report: %w", err)
		}
		reports = append(reports, *report)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating reports: %w", err)
	}
	return reports, nil
}
