package appointments

import (
	"errors"
	"strings"
	"time"
)

// ErrNoDate rejects a document whose date cannot be resolved to an instant.
// Callers skip the document; a Record is never surfaced with a zero date.
var ErrNoDate = errors.New("appointments: document has no parseable date")

var instantLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

var dateTimeLayouts = []string{
	"2006-01-02 15:04",
	"2006-01-02 15:04:05",
}

// Normalize converts a loose source document into a canonical Record. Pure:
// no side effects, no I/O.
func Normalize(doc Document) (Record, error) {
	date, ok := resolveDate(doc.Fields)
	if !ok {
		return Record{}, ErrNoDate
	}
	return Record{
		ID:                  doc.ID,
		GlobalAppointmentID: resolveGlobalID(doc),
		PatientDocID:        doc.ID,
		Date:                date,
		ProviderID:          stringField(doc.Fields, "providerId"),
		ProviderName:        resolveProviderName(doc.Fields),
		Type:                resolveType(doc.Fields),
		Status:              resolveStatus(doc.Fields),
		Reason:              resolveReason(doc.Fields),
		MeetingURL:          stringField(doc.Fields, "meetingUrl"),
	}, nil
}

// resolveDate applies the resolution order: native date, native startTime,
// string date+time, string startTime, string date alone.
func resolveDate(fields map[string]any) (time.Time, bool) {
	if t, ok := nativeTime(fields["date"]); ok {
		return t, true
	}
	if t, ok := nativeTime(fields["startTime"]); ok {
		return t, true
	}

	dateStr := strings.TrimSpace(stringField(fields, "date"))
	timeStr := strings.TrimSpace(stringField(fields, "time"))
	if dateStr != "" && timeStr != "" {
		for _, layout := range dateTimeLayouts {
			if t, err := time.ParseInLocation(layout, dateStr+" "+timeStr, time.Local); err == nil {
				return t, true
			}
		}
	}

	if s := strings.TrimSpace(stringField(fields, "startTime")); s != "" {
		if t, ok := parseInstant(s); ok {
			return t, true
		}
	}

	if dateStr != "" {
		if t, err := time.ParseInLocation("2006-01-02", dateStr, time.Local); err == nil {
			return t, true
		}
	}

	return time.Time{}, false
}

func nativeTime(v any) (time.Time, bool) {
	t, ok := v.(time.Time)
	if !ok || t.IsZero() {
		return time.Time{}, false
	}
	return t, true
}

func parseInstant(s string) (time.Time, bool) {
	for _, layout := range instantLayouts {
		var (
			t   time.Time
			err error
		)
		if strings.Contains(layout, "Z07:00") {
			t, err = time.Parse(layout, s)
		} else {
			t, err = time.ParseInLocation(layout, s, time.Local)
		}
		if err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// resolveProviderName prefers providerName, falls back to the legacy doctor
// field, else the literal "Provider".
func resolveProviderName(fields map[string]any) string {
	if name := strings.TrimSpace(stringField(fields, "providerName")); name != "" {
		return name
	}
	if name := strings.TrimSpace(stringField(fields, "doctor")); name != "" {
		return name
	}
	return "Provider"
}

// ParseType selects In-Person on a case-insensitive "person" substring;
// everything else, including absent, is Telehealth.
func ParseType(s string) AppointmentType {
	if strings.Contains(strings.ToLower(s), "person") {
		return InPerson
	}
	return Telehealth
}

func resolveType(fields map[string]any) AppointmentType {
	return ParseType(stringField(fields, "type"))
}

// resolveStatus maps canceled/cancelled and completed case-insensitively;
// anything else is scheduled.
func resolveStatus(fields map[string]any) Status {
	switch strings.ToLower(strings.TrimSpace(stringField(fields, "status"))) {
	case "cancelled", "canceled":
		return StatusCancelled
	case "completed":
		return StatusCompleted
	default:
		return StatusScheduled
	}
}

func resolveReason(fields map[string]any) string {
	if reason := strings.TrimSpace(stringField(fields, "reason")); reason != "" {
		return reason
	}
	return strings.TrimSpace(stringField(fields, "notes"))
}

// resolveGlobalID returns the document's explicit non-blank
// globalAppointmentId, defaulting to the document's own id.
func resolveGlobalID(doc Document) string {
	if id := strings.TrimSpace(stringField(doc.Fields, "globalAppointmentId")); id != "" {
		return id
	}
	return doc.ID
}

func stringField(fields map[string]any, key string) string {
	s, _ := fields[key].(string)
	return s
}
