package notify

import (
	"context"
	"fmt"

	"github.com/clearwell-health/patient-portal/internal/appointments"
	"github.com/clearwell-health/patient-portal/pkg/logging"
)

// EmailNotifier mails the clinic scheduling inbox about appointment lifecycle
// events. Like the webhook path, delivery is best effort.
type EmailNotifier struct {
	sender EmailSender
	to     string
	logger *logging.Logger
}

// NewEmailNotifier returns nil when no sender or destination inbox is
// configured.
func NewEmailNotifier(sender EmailSender, to string, logger *logging.Logger) *EmailNotifier {
	if sender == nil || to == "" {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &EmailNotifier{sender: sender, to: to, logger: logger}
}

func (n *EmailNotifier) Notify(ctx context.Context, eventType, appointmentID string) {
	var subject, body string
	switch eventType {
	case appointments.EventBooked:
		subject = "New appointment booked"
		body = fmt.Sprintf("A patient booked appointment %s through the portal.", appointmentID)
	case appointments.EventRescheduled:
		subject = "Appointment rescheduled"
		body = fmt.Sprintf("Appointment %s was moved to a new time through the portal.", appointmentID)
	case appointments.EventCancelled:
		subject = "Appointment cancelled"
		body = fmt.Sprintf("Appointment %s was cancelled through the portal.", appointmentID)
	default:
		subject = "Appointment update"
		body = fmt.Sprintf("Appointment %s changed (%s).", appointmentID, eventType)
	}

	if err := n.sender.Send(ctx, EmailMessage{
		To:      n.to,
		Subject: subject,
		Body:    body,
	}); err != nil {
		n.logger.Error("appointment email failed", "error", err, "event", eventType, "appointment_id", appointmentID)
	}
}

// Multi fans a notification out to every non-nil notifier.
func Multi(notifiers ...appointments.Notifier) appointments.Notifier {
	var active []appointments.Notifier
	for _, n := range notifiers {
		switch v := n.(type) {
		case nil:
		case *WebhookNotifier:
			if v != nil {
				active = append(active, v)
			}
		case *EmailNotifier:
			if v != nil {
				active = append(active, v)
			}
		default:
			active = append(active, n)
		}
	}
	if len(active) == 0 {
		return nil
	}
	if len(active) == 1 {
		return active[0]
	}
	return multiNotifier(active)
}

type multiNotifier []appointments.Notifier

func (m multiNotifier) Notify(ctx context.Context, eventType, appointmentID string) {
	for _, n := range m {
		n.Notify(ctx, eventType, appointmentID)
	}
}

var _ appointments.Notifier = (*WebhookNotifier)(nil)
var _ appointments.Notifier = (*EmailNotifier)(nil)
