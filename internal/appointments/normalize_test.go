package appointments

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeDateResolutionOrder(t *testing.T) {
	nativeDate := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
	nativeStart := time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		fields map[string]any
		want   time.Time
	}{
		{
			name:   "native date wins over everything",
			fields: map[string]any{"date": nativeDate, "startTime": nativeStart, "time": "08:00"},
			want:   nativeDate,
		},
		{
			name:   "native startTime beats string fields",
			fields: map[string]any{"startTime": nativeStart, "date": "2026-03-20", "time": "08:00"},
			want:   nativeStart,
		},
		{
			name:   "string date plus time pair",
			fields: map[string]any{"date": "2026-03-20", "time": "08:15"},
			want:   time.Date(2026, 3, 20, 8, 15, 0, 0, time.Local),
		},
		{
			name:   "string startTime instant",
			fields: map[string]any{"startTime": "2026-03-21T14:00:00Z"},
			want:   time.Date(2026, 3, 21, 14, 0, 0, 0, time.UTC),
		},
		{
			name:   "date alone resolves to local midnight",
			fields: map[string]any{"date": "2026-03-22"},
			want:   time.Date(2026, 3, 22, 0, 0, 0, 0, time.Local),
		},
		{
			name:   "unparseable time falls back to date alone",
			fields: map[string]any{"date": "2026-03-22", "time": "half past nine"},
			want:   time.Date(2026, 3, 22, 0, 0, 0, 0, time.Local),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, err := Normalize(Document{ID: "doc-1", Fields: tt.fields})
			require.NoError(t, err)
			assert.True(t, rec.Date.Equal(tt.want), "got %v, want %v", rec.Date, tt.want)
		})
	}
}

func TestNormalizeNoDate(t *testing.T) {
	_, err := Normalize(Document{ID: "doc-1", Fields: map[string]any{"providerId": "p1"}})
	require.ErrorIs(t, err, ErrNoDate)

	_, err = Normalize(Document{ID: "doc-2", Fields: map[string]any{"date": "next tuesday"}})
	require.ErrorIs(t, err, ErrNoDate)
}

func TestNormalizeStatus(t *testing.T) {
	tests := []struct {
		raw  any
		want Status
	}{
		{"cancelled", StatusCancelled},
		{"Canceled", StatusCancelled},
		{"COMPLETED", StatusCompleted},
		{"pending", StatusScheduled},
		{"confirmed", StatusScheduled},
		{"no-show", StatusScheduled},
		{nil, StatusScheduled},
		{42, StatusScheduled},
	}
	for _, tt := range tests {
		rec, err := Normalize(Document{ID: "d", Fields: map[string]any{
			"date":   "2026-01-10",
			"status": tt.raw,
		}})
		require.NoError(t, err)
		assert.Equal(t, tt.want, rec.Status, "status %v", tt.raw)
	}
}

// Normalizing an already-canonical status must map it to itself.
func TestNormalizeStatusIdempotent(t *testing.T) {
	for _, s := range []Status{StatusScheduled, StatusCancelled, StatusCompleted} {
		rec, err := Normalize(Document{ID: "d", Fields: map[string]any{
			"date":   "2026-01-10",
			"status": string(s),
		}})
		require.NoError(t, err)
		assert.Equal(t, s, rec.Status)
	}
}

func TestNormalizeProviderName(t *testing.T) {
	tests := []struct {
		name   string
		fields map[string]any
		want   string
	}{
		{"providerName preferred", map[string]any{"providerName": "Dr. Okafor", "doctor": "Dr. Lee"}, "Dr. Okafor"},
		{"doctor fallback", map[string]any{"doctor": "Dr. Lee"}, "Dr. Lee"},
		{"blank providerName falls through", map[string]any{"providerName": "  ", "doctor": "Dr. Lee"}, "Dr. Lee"},
		{"placeholder when both absent", map[string]any{}, "Provider"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.fields["date"] = "2026-01-10"
			rec, err := Normalize(Document{ID: "d", Fields: tt.fields})
			require.NoError(t, err)
			assert.Equal(t, tt.want, rec.ProviderName)
		})
	}
}

func TestParseType(t *testing.T) {
	assert.Equal(t, InPerson, ParseType("In-Person"))
	assert.Equal(t, InPerson, ParseType("in person visit"))
	assert.Equal(t, InPerson, ParseType("IN-PERSON"))
	assert.Equal(t, Telehealth, ParseType("telehealth"))
	assert.Equal(t, Telehealth, ParseType("virtual"))
	assert.Equal(t, Telehealth, ParseType(""))
}

func TestNormalizeReasonFallsBackToNotes(t *testing.T) {
	rec, err := Normalize(Document{ID: "d", Fields: map[string]any{
		"date":  "2026-01-10",
		"notes": "follow-up",
	}})
	require.NoError(t, err)
	assert.Equal(t, "follow-up", rec.Reason)

	rec, err = Normalize(Document{ID: "d", Fields: map[string]any{
		"date":   "2026-01-10",
		"reason": "annual physical",
		"notes":  "ignored",
	}})
	require.NoError(t, err)
	assert.Equal(t, "annual physical", rec.Reason)
}

func TestNormalizeGlobalID(t *testing.T) {
	rec, err := Normalize(Document{ID: "legacy-1", Fields: map[string]any{
		"date":                "2026-01-10",
		"globalAppointmentId": "global-9",
	}})
	require.NoError(t, err)
	assert.Equal(t, "global-9", rec.GlobalAppointmentID)
	assert.Equal(t, "legacy-1", rec.PatientDocID)

	rec, err = Normalize(Document{ID: "legacy-2", Fields: map[string]any{
		"date":                "2026-01-10",
		"globalAppointmentId": "   ",
	}})
	require.NoError(t, err)
	assert.Equal(t, "legacy-2", rec.GlobalAppointmentID)
}
