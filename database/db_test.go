package database

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jknair0/beforeeach"

	"infrasee/models"
	"infrasee/workflow"
)

var (
	db   *sql.DB
	mock sqlmock.Sqlmock
	d    *Database
)

func setUp() {
	db, mock, _ = sqlmock.New()
	d = NewWithDB(db)
}

func tearDown() {
	db.Close()
}

var it = beforeeach.Create(setUp, tearDown)

var reportColumnList = []string{
	"seq", "reporter_name", "reporter_phone", "description", "image_url", "address",
	"latitude", "longitude", "infra_type", "created_at", "status", "assigned_moderator",
	"status_remark", "is_new", "submoderator_is_new", "is_approved", "is_requested",
	"requested_at", "resolved_at", "is_hidden", "hidden_at", "unassigned_since",
}

func reportRow(seq int64, status string, assigned driver.Value) []driver.Value {
	now := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	return []driver.Value{
		seq, "Juan Dela Cruz", "+639171234567", "Broken transformer", nil, "123 Mabini St",
		14.5995, 120.9842, "power", now, status, assigned,
		nil, true, false, false, false,
		nil, nil, false, nil, now,
	}
}

func TestGetReport(t *testing.T) {
	it(func() {
		testCases := []struct {
			name   string
			seq    int64
			exists bool

			expectError bool
		}{
			{name: "Existing report", seq: 42, exists: true, expectError: false},
			{name: "Missing report", seq: 99, exists: false, expectError: false},
		}

		for _, testCase := range testCases {
			rows := sqlmock.NewRows(reportColumnList)
			if testCase.exists {
				rows.AddRow(reportRow(testCase.seq, "unassigned", nil)...)
			}
			mock.ExpectQuery("SELECT (.+) FROM reports WHERE seq = (.+)").
				WithArgs(testCase.seq).
				WillReturnRows(rows)

			report, err := d.GetReport(context.Background(), testCase.seq)
			if testCase.expectError != (err != nil) {
				t.Errorf("%s: expected error: %v, got: %v", testCase.name, testCase.expectError, err)
			}
			if testCase.exists != (report != nil) {
				t.Errorf("%s: expected report: %v, got: %+v", testCase.name, testCase.exists, report)
			}
			if testCase.exists && report.Status != models.StatusUnassigned {
				t.Errorf("%s: expected unassigned, got %s", testCase.name, report.Status)
			}
		}
	})
}

func TestGetReportUnknownStatus(t *testing.T) {
	it(func() {
		row := reportRow(42, "limbo", nil)
		mock.ExpectQuery("SELECT (.+) FROM reports WHERE seq = (.+)").
			WithArgs(int64(42)).
			WillReturnRows(sqlmock.NewRows(reportColumnList).AddRow(row...))

		if _, err := d.GetReport(context.Background(), 42); err == nil {
			t.Errorf("expected error on unknown status slug")
		}
	})
}

func TestCreateReport(t *testing.T) {
	it(func() {
		now := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
		report := &models.Report{
			ReporterName:    "Juan Dela Cruz",
			ReporterPhone:   "+639171234567",
			Description:     "Broken transformer",
			Address:         "123 Mabini St",
			Latitude:        14.5995,
			Longitude:       120.9842,
			InfraType:       models.InfraPower,
			Status:          models.StatusUnassigned,
			IsNew:           true,
			UnassignedSince: &now,
		}

		mock.ExpectExec("INSERT\\s+INTO reports (.+)").
			WithArgs("Juan Dela Cruz", "+639171234567", "Broken transformer", nil, "123 Mabini St",
				14.5995, 120.9842, "power", "unassigned", true, now).
			WillReturnResult(sqlmock.NewResult(42, 1))

		seq, err := d.CreateReport(context.Background(), report)
		if err != nil {
			t.Fatalf("CreateReport: %v", err)
		}
		if seq != 42 {
			t.Errorf("expected seq 42, got %d", seq)
		}
	})
}

func TestApplyTransitionClaim(t *testing.T) {
	it(func() {
		testCases := []struct {
			name         string
			rowsAffected int64

			applied bool
		}{
			{name: "Claim wins", rowsAffected: 1, applied: true},
			{name: "Claim lost the race", rowsAffected: 0, applied: false},
		}

		unassigned := true
		patch := workflow.ReportPatch{
			Status:            workflow.StatusOpt{Set: true, Value: models.StatusPending},
			AssignedModerator: workflow.StrOpt{Set: true, Value: "mod-1"},
			IsNew:             workflow.BoolOpt{Set: true, Value: true},
			UnassignedSince:   workflow.TimeOpt{Set: true},
		}
		expect := workflow.ExpectedState{
			Statuses:   []models.Status{models.StatusUnassigned},
			Unassigned: &unassigned,
		}

		for _, testCase := range testCases {
			mock.ExpectExec("UPDATE reports SET status = (.+), assigned_moderator = (.+), is_new = (.+), unassigned_since = (.+) WHERE seq = (.+) AND status IN (.+) AND assigned_moderator IS NULL").
				WithArgs("pending", "mod-1", true, nil, int64(42), "unassigned").
				WillReturnResult(sqlmock.NewResult(0, testCase.rowsAffected))

			applied, err := d.ApplyTransition(context.Background(), 42, patch, expect)
			if err != nil {
				t.Errorf("%s: unexpected error %v", testCase.name, err)
			}
			if applied != testCase.applied {
				t.Errorf("%s: expected applied=%v, got %v", testCase.name, testCase.applied, applied)
			}
		}
	})
}

func TestApplyTransitionEmptyPatch(t *testing.T) {
	it(func() {
		if _, err := d.ApplyTransition(context.Background(), 42, workflow.ReportPatch{}, workflow.ExpectedState{}); err == nil {
			t.Errorf("expected error on empty patch")
		}
	})
}

func TestOpenReportsNear(t *testing.T) {
	it(func() {
		columns := []string{"seq", "latitude", "longitude", "infra_type", "status"}
		mock.ExpectQuery("SELECT seq, latitude, longitude, infra_type, status\\s+FROM reports\\s+WHERE infra_type = (.+)").
			WillReturnRows(sqlmock.NewRows(columns).
				AddRow(int64(1), 14.5995, 120.9842, "power", "unassigned").
				AddRow(int64(2), 14.5996, 120.9842, "power", "pending"))

		nearby, err := d.OpenReportsNear(context.Background(), models.InfraPower, 14.5995, 120.9842, 10)
		if err != nil {
			t.Fatalf("OpenReportsNear: %v", err)
		}
		if len(nearby) != 2 {
			t.Fatalf("expected 2 nearby reports, got %d", len(nearby))
		}
		if nearby[1].Status != models.StatusPending {
			t.Errorf("expected pending, got %s", nearby[1].Status)
		}
	})
}

func TestExpireUnassignedBefore(t *testing.T) {
	it(func() {
		cutoff := time.Date(2026, 7, 25, 0, 0, 0, 0, time.UTC)
		mock.ExpectExec("DELETE FROM reports\\s+WHERE status = 'unassigned'").
			WithArgs(cutoff).
			WillReturnResult(sqlmock.NewResult(0, 3))

		deleted, err := d.ExpireUnassignedBefore(context.Background(), cutoff)
		if err != nil {
			t.Fatalf("ExpireUnassignedBefore: %v", err)
		}
		if deleted != 3 {
			t.Errorf("expected 3 deleted, got %d", deleted)
		}
	})
}

func TestDeleteReport(t *testing.T) {
	it(func() {
		testCases := []struct {
			name         string
			rowsAffected int64
			deleted      bool
		}{
			{name: "Existing report", rowsAffected: 1, deleted: true},
			{name: "Missing report", rowsAffected: 0, deleted: false},
		}

		for _, testCase := range testCases {
			mock.ExpectExec("DELETE FROM reports WHERE seq = (.+)").
				WithArgs(int64(42)).
				WillReturnResult(sqlmock.NewResult(0, testCase.rowsAffected))

			deleted, err := d.DeleteReport(context.Background(), 42)
			if err != nil {
				t.Errorf("%s: unexpected error %v", testCase.name, err)
			}
			if deleted != testCase.deleted {
				t.Errorf("%s: expected deleted=%v, got %v", testCase.name, testCase.deleted, deleted)
			}
		}
	})
}

func TestGetUser(t *testing.T) {
	it(func() {
		columns := []string{"id", "name", "phone", "is_admin", "is_moderator",
			"is_submoderator", "infra_type", "assigned_moderator"}

		mock.ExpectQuery("SELECT (.+) FROM users WHERE id = (.+)").
			WithArgs("mod-1").
			WillReturnRows(sqlmock.NewRows(columns).
				AddRow("mod-1", "Maria", nil, false, true, false, "power", nil))

		user, err := d.GetUser(context.Background(), "mod-1")
		if err != nil {
			t.Fatalf("GetUser: %v", err)
		}
		if user == nil || !user.IsModerator || user.InfraType != models.InfraPower {
			t.Errorf("unexpected user %+v", user)
		}

		mock.ExpectQuery("SELECT (.+) FROM users WHERE id = (.+)").
			WithArgs("ghost").
			WillReturnRows(sqlmock.NewRows(columns))

		user, err = d.GetUser(context.Background(), "ghost")
		if err != nil {
			t.Fatalf("GetUser missing: %v", err)
		}
		if user != nil {
			t.Errorf("expected nil for missing user, got %+v", user)
		}
	})
}

func TestMarkNotificationRead(t *testing.T) {
	it(func() {
		testCases := []struct {
			name         string
			rowsAffected int64
			updated      bool
		}{
			{name: "Own notification", rowsAffected: 1, updated: true},
			{name: "Somebody else's notification", rowsAffected: 0, updated: false},
		}

		for _, testCase := range testCases {
			mock.ExpectExec("UPDATE notifications\\s+SET is_read = TRUE\\s+WHERE seq = (.+) AND user_id = (.+)").
				WithArgs(int64(7), "mod-1").
				WillReturnResult(sqlmock.NewResult(0, testCase.rowsAffected))

			updated, err := d.MarkNotificationRead(context.Background(), 7, "mod-1")
			if err != nil {
				t.Errorf("%s: unexpected error %v", testCase.name, err)
			}
			if updated != testCase.updated {
				t.Errorf("%s: expected updated=%v, got %v", testCase.name, testCase.updated, updated)
			}
		}
	})
}

func TestListReviewQueue(t *testing.T) {
	it(func() {
		rows := sqlmock.NewRows(reportColumnList).
			AddRow(reportRow(7, "under_review", "mod-1")...)
		mock.ExpectQuery("SELECT (.+)\\s+FROM reports\\s+WHERE is_hidden = FALSE\\s+AND assigned_moderator = (.+)\\s+AND is_requested = TRUE").
			WithArgs("mod-1").
			WillReturnRows(rows)

		reports, err := d.ListReviewQueue(context.Background(), "mod-1")
		if err != nil {
			t.Fatalf("ListReviewQueue: %v", err)
		}
		if len(reports) != 1 || reports[0].Status != models.StatusUnderReview {
			t.Errorf("unexpected queue %+v", reports)
		}
	})
}

func TestQueryError(t *testing.T) {
	it(func() {
		mock.ExpectQuery("SELECT (.+) FROM reports WHERE seq = (.+)").
			WithArgs(int64(42)).
			WillReturnError(fmt.Errorf("connection reset"))

		if _, err := d.GetReport(context.Background(), 42); err == nil {
			t.Errorf("expected propagated query error")
		}
	})
}
