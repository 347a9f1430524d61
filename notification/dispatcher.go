package notification

import (
	"context"
	"fmt"
	"time"

	"github.com/apex/log"

	"infrasee/models"
	"infrasee/workflow"
)

// Store persists notification records for the dashboard.
type Store interface {
	CreateNotification(ctx context.Context, n *models.Notification) error
}

// SMSChannel carries outbound reporter messages to the gateway.
// Delivery is fire-and-forget.
type SMSChannel interface {
	DispatchSMS(payload models.SMSPayload) error
}

// EventPublisher pushes change events to the external pub/sub transport.
type EventPublisher interface {
	Publish(message interface{}) error
}

// Dispatcher translates workflow events into notification records and at most
// one outbound SMS per event. It implements workflow.Notifier. Every step is
// best-effort: a failed insert, publish or send is logged and swallowed; the
// triggering transition already happened and stays happened.
type Dispatcher struct {
	store     Store
	sms       SMSChannel
	publisher EventPublisher
	now       func() time.Time
}

// NewDispatcher builds a dispatcher. sms and publisher may be nil when the
// corresponding channel is not configured.
func NewDispatcher(store Store, sms SMSChannel, publisher EventPublisher) *Dispatcher {
	return &Dispatcher{
		store:     store,
		sms:       sms,
		publisher: publisher,
		now:       time.Now,
	}
}

// Dispatch persists the event's notification records and hands the reporter
// SMS, if any, to the gateway channel.
func (d *Dispatcher) Dispatch(ctx context.Context, ev workflow.Event) {
	records, payload := Translate(ev)

	for i := range records {
		records[i].CreatedAt = d.now()
		if err := d.store.CreateNotification(ctx, &records[i]); err != nil {
			log.Errorf("Failed to persist %s notification for user %s: %v",
				records[i].Kind, records[i].UserID, err)
			continue
		}
		d.publish(records[i])
	}

	if payload != nil {
		d.send(*payload)
	}
}

// Translate is the pure translation step: event in, records plus optional SMS
// out. No I/O, so the mapping is testable on its own.
func Translate(ev workflow.Event) ([]models.Notification, *models.SMSPayload) {
	var records []models.Notification
	seq := ev.Report.Seq

	switch ev.Kind {
	case workflow.EventReportCreated:
		for _, m := range ev.Moderators {
			records = append(records, models.Notification{
				UserID:    m.ID,
				ReportSeq: &seq,
				Kind:      models.NotifyNewReport,
				Message: fmt.Sprintf("New %s report #%d near %s.",
					ev.Report.InfraType.Name(), seq, ev.Report.Address),
			})
		}
	case workflow.EventResolutionRequested:
		for _, s := range ev.SubModerators {
			records = append(records, models.Notification{
				UserID:    s.ID,
				ReportSeq: &seq,
				Kind:      models.NotifyStatusChange,
				Message: fmt.Sprintf("%s requested to resolve report #%d; your confirmation is needed.",
					moderatorName(ev), seq),
			})
		}
	case workflow.EventApproved:
		if ev.Moderator != nil {
			records = append(records, models.Notification{
				UserID:    ev.Moderator.ID,
				ReportSeq: &seq,
				Kind:      models.NotifyApproval,
				Message:   fmt.Sprintf("Your resolution of report #%d was approved by %s.", seq, actorName(ev)),
			})
		}
	case workflow.EventRejected:
		if ev.Moderator != nil {
			msg := fmt.Sprintf("Your resolution of report #%d was rejected by %s; the report is back for revision.",
				seq, actorName(ev))
			if ev.Remark != "" {
				msg = fmt.Sprintf("%s Remark: %s", msg, ev.Remark)
			}
			records = append(records, models.Notification{
				UserID:    ev.Moderator.ID,
				ReportSeq: &seq,
				Kind:      models.NotifyRejection,
				Message:   msg,
			})
		}
	}

	return records, reporterSMS(ev)
}

func (d *Dispatcher) send(payload models.SMSPayload) {
	if d.sms == nil {
		log.Warnf("No SMS channel configured, dropping message to %s", payload.Phone)
		return
	}
	if err := d.sms.DispatchSMS(payload); err != nil {
		log.Errorf("Failed to dispatch SMS to %s: %v", payload.Phone, err)
	}
}

func (d *Dispatcher) publish(n models.Notification) {
	if d.publisher == nil {
		return
	}
	if err := d.publisher.Publish(n); err != nil {
		log.Errorf("Failed to publish notification for user %s: %v", n.UserID, err)
	}
}

func actorName(ev workflow.Event) string {
	if ev.Actor.Name != "" {
		return ev.Actor.Name
	}
	return "a sub-moderator"
}
