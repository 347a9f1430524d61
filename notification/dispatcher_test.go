package notification

import (
	"context"
	"errors"
	"strings"
	"testing"

	"infrasee/models"
	"infrasee/workflow"
)

func baseReport(status models.Status) models.Report {
	return models.Report{
		Seq:               42,
		ReporterName:      "Juan Dela Cruz",
		ReporterPhone:     "+639171234567",
		Description:       "Broken transformer",
		Address:           "123 Mabini St",
		InfraType:         models.InfraPower,
		Status:            status,
		AssignedModerator: "mod-1",
	}
}

var (
	maria = models.User{ID: "mod-1", Name: "Maria", IsModerator: true, InfraType: models.InfraPower}
	pedro = models.User{ID: "sub-1", Name: "Pedro", IsSubModerator: true, AssignedModeratorID: "mod-1"}
)

func TestTranslateRecords(t *testing.T) {
	testCases := []struct {
		name string
		ev   workflow.Event

		recipients []string
		kind       models.NotificationKind
	}{
		{
			name: "Report created notifies covering moderators",
			ev: workflow.Event{
				Kind:       workflow.EventReportCreated,
				Report:     baseReport(models.StatusUnassigned),
				Moderators: []models.User{maria, {ID: "mod-2", Name: "Jose"}},
			},
			recipients: []string{"mod-1", "mod-2"},
			kind:       models.NotifyNewReport,
		},
		{
			name: "Resolution request notifies delegate sub-moderators",
			ev: workflow.Event{
				Kind:          workflow.EventResolutionRequested,
				Report:        baseReport(models.StatusUnderReview),
				Actor:         models.Actor{ID: "mod-1", Name: "Maria"},
				Moderator:     &maria,
				SubModerators: []models.User{pedro},
			},
			recipients: []string{"sub-1"},
			kind:       models.NotifyStatusChange,
		},
		{
			name: "Approval notifies the assigned moderator",
			ev: workflow.Event{
				Kind:      workflow.EventApproved,
				Report:    baseReport(models.StatusResolved),
				Actor:     models.Actor{ID: "sub-1", Name: "Pedro"},
				Moderator: &maria,
			},
			recipients: []string{"mod-1"},
			kind:       models.NotifyApproval,
		},
		{
			name: "Rejection notifies the assigned moderator",
			ev: workflow.Event{
				Kind:      workflow.EventRejected,
				Report:    baseReport(models.StatusForRevision),
				Actor:     models.Actor{ID: "sub-1", Name: "Pedro"},
				Moderator: &maria,
				Remark:    "photo does not show the fix",
			},
			recipients: []string{"mod-1"},
			kind:       models.NotifyRejection,
		},
		{
			name: "Claim produces no dashboard records",
			ev: workflow.Event{
				Kind:   workflow.EventClaimed,
				Report: baseReport(models.StatusPending),
			},
			recipients: nil,
		},
	}

	for _, testCase := range testCases {
		records, _ := Translate(testCase.ev)
		if len(records) != len(testCase.recipients) {
			t.Errorf("%s: expected %d records, got %d", testCase.name, len(testCase.recipients), len(records))
			continue
		}
		for i, record := range records {
			if record.UserID != testCase.recipients[i] {
				t.Errorf("%s: record %d addressed to %s, expected %s",
					testCase.name, i, record.UserID, testCase.recipients[i])
			}
			if record.Kind != testCase.kind {
				t.Errorf("%s: record %d kind %s, expected %s", testCase.name, i, record.Kind, testCase.kind)
			}
			if record.ReportSeq == nil || *record.ReportSeq != testCase.ev.Report.Seq {
				t.Errorf("%s: record %d must reference report %d", testCase.name, i, testCase.ev.Report.Seq)
			}
		}
	}
}

func TestTranslateRejectionCarriesRemark(t *testing.T) {
	records, _ := Translate(workflow.Event{
		Kind:      workflow.EventRejected,
		Report:    baseReport(models.StatusForRevision),
		Actor:     models.Actor{ID: "sub-1", Name: "Pedro"},
		Moderator: &maria,
		Remark:    "photo does not show the fix",
	})
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	if !strings.Contains(records[0].Message, "photo does not show the fix") {
		t.Errorf("rejection message must carry the remark, got %q", records[0].Message)
	}
}

func TestReporterSMS(t *testing.T) {
	testCases := []struct {
		name string
		ev   workflow.Event

		expectSMS   bool
		mustMention string
	}{
		{
			name: "Claim messages the reporter with the moderator name",
			ev: workflow.Event{
				Kind:      workflow.EventClaimed,
				Report:    baseReport(models.StatusPending),
				Moderator: &maria,
			},
			expectSMS:   true,
			mustMention: "Maria",
		},
		{
			name: "Direct resolution messages the reporter",
			ev: workflow.Event{
				Kind:      workflow.EventStatusChanged,
				Report:    baseReport(models.StatusResolved),
				Moderator: &maria,
			},
			expectSMS:   true,
			mustMention: "resolved",
		},
		{
			name: "Dismissal carries the remark",
			ev: workflow.Event{
				Kind:      workflow.EventStatusChanged,
				Report:    baseReport(models.StatusDismissed),
				Moderator: &maria,
				Remark:    "duplicate of an earlier report",
			},
			expectSMS:   true,
			mustMention: "duplicate of an earlier report",
		},
		{
			name: "Approval concludes the handshake toward the reporter",
			ev: workflow.Event{
				Kind:      workflow.EventApproved,
				Report:    baseReport(models.StatusResolved),
				Moderator: &maria,
			},
			expectSMS:   true,
			mustMention: "resolved",
		},
		{
			name: "Return to queue messages the reporter",
			ev: workflow.Event{
				Kind:   workflow.EventReturned,
				Report: baseReport(models.StatusUnassigned),
			},
			expectSMS:   true,
			mustMention: "unassigned",
		},
		{
			name: "Resolution request is silent toward the reporter",
			ev: workflow.Event{
				Kind:      workflow.EventResolutionRequested,
				Report:    baseReport(models.StatusUnderReview),
				Moderator: &maria,
			},
			expectSMS: false,
		},
		{
			name: "Rejection is silent toward the reporter",
			ev: workflow.Event{
				Kind:      workflow.EventRejected,
				Report:    baseReport(models.StatusForRevision),
				Moderator: &maria,
			},
			expectSMS: false,
		},
		{
			name: "Report creation is silent toward the reporter",
			ev: workflow.Event{
				Kind:   workflow.EventReportCreated,
				Report: baseReport(models.StatusUnassigned),
			},
			expectSMS: false,
		},
	}

	for _, testCase := range testCases {
		_, payload := Translate(testCase.ev)
		if !testCase.expectSMS {
			if payload != nil {
				t.Errorf("%s: expected no SMS, got %q", testCase.name, payload.Text)
			}
			continue
		}
		if payload == nil {
			t.Errorf("%s: expected an SMS payload", testCase.name)
			continue
		}
		if payload.Phone != testCase.ev.Report.ReporterPhone {
			t.Errorf("%s: SMS addressed to %s, expected %s",
				testCase.name, payload.Phone, testCase.ev.Report.ReporterPhone)
		}
		if !strings.Contains(strings.ToLower(payload.Text), strings.ToLower(testCase.mustMention)) {
			t.Errorf("%s: SMS %q must mention %q", testCase.name, payload.Text, testCase.mustMention)
		}
	}
}

func TestReporterSMSWithoutPhone(t *testing.T) {
	report := baseReport(models.StatusPending)
	report.ReporterPhone = ""
	_, payload := Translate(workflow.Event{Kind: workflow.EventClaimed, Report: report, Moderator: &maria})
	if payload != nil {
		t.Errorf("no phone on record: expected no SMS, got %q", payload.Text)
	}
}

type fakeNotificationStore struct {
	created []models.Notification
	fail    bool
}

func (f *fakeNotificationStore) CreateNotification(ctx context.Context, n *models.Notification) error {
	if f.fail {
		return errors.New("insert failed")
	}
	n.Seq = int64(len(f.created) + 1)
	f.created = append(f.created, *n)
	return nil
}

type fakeSMS struct {
	sent []models.SMSPayload
}

func (f *fakeSMS) DispatchSMS(p models.SMSPayload) error {
	f.sent = append(f.sent, p)
	return nil
}

type fakePublisher struct {
	published []interface{}
}

func (f *fakePublisher) Publish(message interface{}) error {
	f.published = append(f.published, message)
	return nil
}

func TestDispatch(t *testing.T) {
	store := &fakeNotificationStore{}
	sms := &fakeSMS{}
	publisher := &fakePublisher{}
	d := NewDispatcher(store, sms, publisher)

	d.Dispatch(context.Background(), workflow.Event{
		Kind:      workflow.EventApproved,
		Report:    baseReport(models.StatusResolved),
		Actor:     models.Actor{ID: "sub-1", Name: "Pedro"},
		Moderator: &maria,
	})

	if len(store.created) != 1 {
		t.Fatalf("expected 1 persisted record, got %d", len(store.created))
	}
	if len(publisher.published) != 1 {
		t.Errorf("expected 1 published record, got %d", len(publisher.published))
	}
	if len(sms.sent) != 1 {
		t.Fatalf("expected exactly one SMS, got %d", len(sms.sent))
	}
	if sms.sent[0].Phone != "+639171234567" {
		t.Errorf("SMS addressed to %s", sms.sent[0].Phone)
	}
}

func TestDispatchSwallowsStoreFailure(t *testing.T) {
	store := &fakeNotificationStore{fail: true}
	sms := &fakeSMS{}
	publisher := &fakePublisher{}
	d := NewDispatcher(store, sms, publisher)

	// Must not panic or publish the record it failed to persist; the SMS
	// still goes out.
	d.Dispatch(context.Background(), workflow.Event{
		Kind:      workflow.EventApproved,
		Report:    baseReport(models.StatusResolved),
		Moderator: &maria,
	})

	if len(publisher.published) != 0 {
		t.Errorf("unpersisted records must not be published, got %d", len(publisher.published))
	}
	if len(sms.sent) != 1 {
		t.Errorf("SMS is independent of record persistence, got %d", len(sms.sent))
	}
}

func TestDispatchWithoutChannels(t *testing.T) {
	store := &fakeNotificationStore{}
	d := NewDispatcher(store, nil, nil)

	// nil SMS channel and publisher are valid deployments.
	d.Dispatch(context.Background(), workflow.Event{
		Kind:      workflow.EventApproved,
		Report:    baseReport(models.StatusResolved),
		Moderator: &maria,
	})

	if len(store.created) != 1 {
		t.Errorf("expected the record to persist regardless of channels, got %d", len(store.created))
	}
}
