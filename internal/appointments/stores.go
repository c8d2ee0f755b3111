package appointments

import (
	"context"
	"errors"
	"time"
)

// ErrDocNotFound indicates an update targeted a document that does not exist.
var ErrDocNotFound = errors.New("appointments: document not found")

// ErrAppointmentNotFound indicates a mutation referenced an appointment the
// reconciled view does not contain.
var ErrAppointmentNotFound = errors.New("appointments: appointment not found")

// LegacyStore is the per-patient appointment collection, the portal's
// original storage model.
type LegacyStore interface {
	ListByUser(ctx context.Context, userID string) ([]Document, error)
	Insert(ctx context.Context, userID, docID string, fields map[string]any) error
	Update(ctx context.Context, userID, docID string, patch map[string]any) error
}

// GlobalStore is the shared appointment collection queryable by the two
// owner-key fields, the newer storage model.
type GlobalStore interface {
	QueryByPatientID(ctx context.Context, patientID string) ([]Document, error)
	QueryByPatientUID(ctx context.Context, patientUID string) ([]Document, error)
	Put(ctx context.Context, docID string, fields map[string]any) error
	Update(ctx context.Context, docID string, patch map[string]any) error
}

// ChangePublisher fans a mutation notice out to the live change feed.
type ChangePublisher interface {
	PublishChange(ctx context.Context, id Identity)
}

// Notifier delivers best-effort provider notifications. Implementations log
// failures and never surface them to callers.
type Notifier interface {
	Notify(ctx context.Context, eventType, appointmentID string)
}

// Notification event types carried on the provider webhook.
const (
	EventBooked      = "appointment_booked"
	EventRescheduled = "appointment_rescheduled"
	EventCancelled   = "appointment_cancelled"
)

const (
	dateLayout = "2006-01-02"
	timeLayout = "15:04"
)

// globalPayload builds the canonical global-collection document for a
// record. The date and time string pair is always derived from the same
// instant as startTime.
func globalPayload(id Identity, rec Record, status string, now time.Time) map[string]any {
	return map[string]any{
		"patientId":    id.PatientID,
		"patientUid":   id.PatientUID,
		"patientName":  id.PatientName,
		"providerId":   rec.ProviderID,
		"providerName": rec.ProviderName,
		"doctor":       rec.ProviderName,
		"date":         rec.Date.Format(dateLayout),
		"time":         rec.Date.Format(timeLayout),
		"startTime":    rec.Date.Format(time.RFC3339),
		"type":         string(rec.Type),
		"service":      string(rec.Type),
		"reason":       rec.Reason,
		"notes":        rec.Reason,
		"status":       status,
		"meetingUrl":   rec.MeetingURL,
		"source":       "patient_portal",
		"createdAt":    now.UTC().Format(time.RFC3339),
		"updatedAt":    now.UTC().Format(time.RFC3339),
	}
}

// legacyPayload builds the legacy-collection document for a newly scheduled
// appointment, cross-referencing the global document.
func legacyPayload(rec Record, globalID string, now time.Time) map[string]any {
	return map[string]any{
		"date":                rec.Date.Format(dateLayout),
		"time":                rec.Date.Format(timeLayout),
		"startTime":           rec.Date.Format(time.RFC3339),
		"providerId":          rec.ProviderID,
		"providerName":        rec.ProviderName,
		"type":                string(rec.Type),
		"status":              string(StatusScheduled),
		"reason":              rec.Reason,
		"meetingUrl":          rec.MeetingURL,
		"globalAppointmentId": globalID,
		"createdAt":           now.UTC().Format(time.RFC3339),
		"updatedAt":           now.UTC().Format(time.RFC3339),
	}
}

// globalReschedulePatch moves the global document to the new instant,
// keeping the string pair and the timestamp consistent.
func globalReschedulePatch(when, now time.Time) map[string]any {
	return map[string]any{
		"date":          when.Format(dateLayout),
		"time":          when.Format(timeLayout),
		"startTime":     when.Format(time.RFC3339),
		"status":        "pending",
		"rescheduledAt": now.UTC().Format(time.RFC3339),
		"updatedAt":     now.UTC().Format(time.RFC3339),
	}
}

func legacyReschedulePatch(when, now time.Time) map[string]any {
	return map[string]any{
		"date":      when.Format(dateLayout),
		"time":      when.Format(timeLayout),
		"startTime": when.Format(time.RFC3339),
		"status":    string(StatusScheduled),
		"updatedAt": now.UTC().Format(time.RFC3339),
	}
}

func globalCancelPatch(reason string, now time.Time) map[string]any {
	return map[string]any{
		"status":             "cancelled",
		"cancellationReason": reason,
		"cancelledAt":        now.UTC().Format(time.RFC3339),
		"updatedAt":          now.UTC().Format(time.RFC3339),
	}
}

func legacyCancelPatch(now time.Time) map[string]any {
	return map[string]any{
		"status":    string(StatusCancelled),
		"updatedAt": now.UTC().Format(time.RFC3339),
	}
}
