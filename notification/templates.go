package notification

import (
	"fmt"

	"infrasee/models"
	"infrasee/workflow"
)

// SMS templates for the reporter-facing transitions. Parameterized by
// reporter name, moderator name and the status remark where one was given.

func claimedText(reporter, moderator string, infra models.InfraType) string {
	return fmt.Sprintf("Hi %s, your %s report has been assigned to %s and is now up for review.",
		reporter, infra.Name(), moderator)
}

func inProgressText(reporter, moderator, remark string) string {
	return withRemark(fmt.Sprintf("Hi %s, %s is now working on your report.", reporter, moderator), remark)
}

func forRevisionText(reporter, moderator, remark string) string {
	return withRemark(fmt.Sprintf("Hi %s, your report was put on hold by %s pending revision.", reporter, moderator), remark)
}

func dismissedText(reporter, moderator, remark string) string {
	return withRemark(fmt.Sprintf("Hi %s, your report has been dismissed by %s.", reporter, moderator), remark)
}

func resolvedText(reporter, moderator string) string {
	return fmt.Sprintf("Hi %s, your report has been resolved by %s. Thank you for helping improve your community.",
		reporter, moderator)
}

func returnedText(reporter string) string {
	return fmt.Sprintf("Hi %s, your report was returned to the unassigned queue and will be picked up by another moderator.",
		reporter)
}

func withRemark(text, remark string) string {
	if remark == "" {
		return text
	}
	return fmt.Sprintf("%s Remark: %s", text, remark)
}

// reporterSMS builds the outbound payload for a transition, or nil when the
// transition is not reporter-facing.
func reporterSMS(ev workflow.Event) *models.SMSPayload {
	phone := ev.Report.ReporterPhone
	if phone == "" {
		return nil
	}
	reporter := ev.Report.ReporterName
	moderator := moderatorName(ev)

	var text string
	switch ev.Kind {
	case workflow.EventClaimed:
		text = claimedText(reporter, moderator, ev.Report.InfraType)
	case workflow.EventReturned:
		text = returnedText(reporter)
	case workflow.EventApproved:
		text = resolvedText(reporter, moderator)
	case workflow.EventStatusChanged:
		switch ev.Report.Status {
		case models.StatusInProgress:
			text = inProgressText(reporter, moderator, ev.Remark)
		case models.StatusForRevision:
			text = forRevisionText(reporter, moderator, ev.Remark)
		case models.StatusDismissed:
			text = dismissedText(reporter, moderator, ev.Remark)
		case models.StatusResolved:
			text = resolvedText(reporter, moderator)
		}
	}
	// EventResolutionRequested and EventRejected are moderator-internal:
	// the reporter hears nothing until the handshake concludes.
	if text == "" {
		return nil
	}
	return &models.SMSPayload{Phone: phone, Text: text}
}

func moderatorName(ev workflow.Event) string {
	if ev.Moderator != nil && ev.Moderator.Name != "" {
		return ev.Moderator.Name
	}
	if ev.Actor.Name != "" {
		return ev.Actor.Name
	}
	return "a moderator"
}
