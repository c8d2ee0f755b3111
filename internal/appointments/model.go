package appointments

import (
	"strings"
	"time"
	"unicode"
)

// AppointmentType is the visit modality.
type AppointmentType string

const (
	Telehealth AppointmentType = "Telehealth"
	InPerson   AppointmentType = "In-Person"
)

// Status is the canonical patient-facing appointment status. There is no
// unknown status: unparseable source values normalize to scheduled.
type Status string

const (
	StatusScheduled Status = "scheduled"
	StatusCancelled Status = "cancelled"
	StatusCompleted Status = "completed"
)

// Document is a loosely typed appointment document fetched from either store,
// paired with the store-assigned id.
type Document struct {
	ID     string
	Fields map[string]any
}

// Record is the canonical in-memory appointment. Exactly one Record exists
// per logical appointment even when a legacy and a global document both
// represent it.
type Record struct {
	// ID is the resolved identity key: the global document id when one
	// exists, else the legacy document id. Stable for the session once a
	// legacy appointment is matched to a global document.
	ID                  string          `json:"id"`
	GlobalAppointmentID string          `json:"globalAppointmentId"`
	PatientDocID        string          `json:"patientDocId"`
	Date                time.Time       `json:"date"`
	ProviderID          string          `json:"providerId"`
	ProviderName        string          `json:"providerName"`
	Type                AppointmentType `json:"type"`
	Status              Status          `json:"status"`
	Reason              string          `json:"reason"`
	MeetingURL          string          `json:"meetingUrl,omitempty"`
}

// Identity names the signed-in patient across the two stores. UserID keys the
// legacy per-patient collection; PatientID and PatientUID are the two owner
// keys the global collection is queryable by.
type Identity struct {
	UserID      string
	PatientID   string
	PatientUID  string
	PatientName string
}

// Key returns the session key for this identity.
func (id Identity) Key() string {
	return id.UserID
}

const (
	joinOpensBefore = 15 * time.Minute
	joinClosesAfter = 60 * time.Minute
	cancelLeadTime  = 24 * time.Hour
	maxReasonLen    = 500
)

// Joinable reports whether the meeting can be joined at now: the half-open
// window [start-15m, start+60m).
func Joinable(start, now time.Time) bool {
	return !now.Before(start.Add(-joinOpensBefore)) && now.Before(start.Add(joinClosesAfter))
}

// Cancellable reports whether the appointment may still be cancelled or
// rescheduled: strictly more than 24 hours of lead time. Mutually exclusive
// with the join window.
func Cancellable(start, now time.Time) bool {
	return start.Sub(now) > cancelLeadTime
}

// SanitizeReason strips markup delimiters and control characters from
// user-supplied free text before persistence.
func SanitizeReason(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r == '<' || r == '>':
		case unicode.IsControl(r) && r != '\n':
		default:
			b.WriteRune(r)
		}
	}
	out := strings.TrimSpace(b.String())
	if runes := []rune(out); len(runes) > maxReasonLen {
		out = strings.TrimSpace(string(runes[:maxReasonLen]))
	}
	return out
}

// ValidationError marks user-facing input errors caught before any remote
// call.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string {
	return e.Msg
}

func validationErr(msg string) error {
	return &ValidationError{Msg: msg}
}
