package appointments

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/clearwell-health/patient-portal/internal/http/middleware"
	"github.com/clearwell-health/patient-portal/pkg/logging"
)

// Handler handles HTTP requests for the patient's appointments.
type Handler struct {
	service *Service
	logger  *logging.Logger
	now     func() time.Time
}

// NewHandler creates a new appointments handler.
func NewHandler(service *Service, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{
		service: service,
		logger:  logger,
		now:     time.Now,
	}
}

// WithClock injects a clock for tests.
func (h *Handler) WithClock(now func() time.Time) *Handler {
	if now != nil {
		h.now = now
	}
	return h
}

// RecordResponse is a Record decorated with the action gating the portal
// shows: join within [start-15m, start+60m), cancel/reschedule beyond 24h.
type RecordResponse struct {
	Record
	Joinable    bool `json:"joinable"`
	Cancellable bool `json:"cancellable"`
}

// ListResponse is the response for listing appointments.
type ListResponse struct {
	Appointments []RecordResponse `json:"appointments"`
	Count        int              `json:"count"`
}

func (h *Handler) decorate(recs []Record) []RecordResponse {
	now := h.now()
	out := make([]RecordResponse, 0, len(recs))
	for _, rec := range recs {
		out = append(out, RecordResponse{
			Record:      rec,
			Joinable:    rec.Status == StatusScheduled && Joinable(rec.Date, now),
			Cancellable: rec.Status == StatusScheduled && Cancellable(rec.Date, now),
		})
	}
	return out
}

func identityFrom(r *http.Request) (Identity, bool) {
	claims, ok := middleware.PatientClaimsFromContext(r.Context())
	if !ok {
		return Identity{}, false
	}
	return Identity{
		UserID:      claims.Subject,
		PatientID:   claims.PatientID,
		PatientUID:  claims.PatientUID,
		PatientName: claims.PatientName,
	}, true
}

// List handles GET /appointments requests.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	id, ok := identityFrom(r)
	if !ok {
		http.Error(w, "missing patient context", http.StatusUnauthorized)
		return
	}

	recs, err := h.service.List(r.Context(), id)
	if err != nil {
		h.logger.Error("failed to list appointments", "error", err, "user_id", id.UserID)
		http.Error(w, "failed to load appointments", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, ListResponse{
		Appointments: h.decorate(recs),
		Count:        len(recs),
	})
}

// ScheduleBody is the booking request payload.
type ScheduleBody struct {
	ProviderID   string    `json:"providerId"`
	ProviderName string    `json:"providerName"`
	Date         time.Time `json:"date"`
	Type         string    `json:"type"`
	Reason       string    `json:"reason"`
	MeetingURL   string    `json:"meetingUrl"`
}

// Schedule handles POST /appointments requests.
func (h *Handler) Schedule(w http.ResponseWriter, r *http.Request) {
	id, ok := identityFrom(r)
	if !ok {
		http.Error(w, "missing patient context", http.StatusUnauthorized)
		return
	}

	var body ScheduleBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	rec, err := h.service.Schedule(r.Context(), id, ScheduleRequest{
		ProviderID:   body.ProviderID,
		ProviderName: body.ProviderName,
		Date:         body.Date,
		Type:         ParseType(body.Type),
		Reason:       body.Reason,
		MeetingURL:   body.MeetingURL,
	})
	if err != nil {
		h.writeError(w, "schedule", err)
		return
	}

	h.logger.Info("appointment scheduled", "appointment_id", rec.ID, "user_id", id.UserID)
	writeJSON(w, http.StatusCreated, rec)
}

// RescheduleBody is the reschedule request payload.
type RescheduleBody struct {
	Date time.Time `json:"date"`
}

// Reschedule handles PATCH /appointments/{appointmentID}/reschedule.
func (h *Handler) Reschedule(w http.ResponseWriter, r *http.Request) {
	id, ok := identityFrom(r)
	if !ok {
		http.Error(w, "missing patient context", http.StatusUnauthorized)
		return
	}
	appointmentID := chi.URLParam(r, "appointmentID")

	var body RescheduleBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.service.Reschedule(r.Context(), id, appointmentID, body.Date); err != nil {
		h.writeError(w, "reschedule", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// CancelBody is the cancellation request payload.
type CancelBody struct {
	Reason string `json:"reason"`
}

// Cancel handles POST /appointments/{appointmentID}/cancel.
func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	id, ok := identityFrom(r)
	if !ok {
		http.Error(w, "missing patient context", http.StatusUnauthorized)
		return
	}
	appointmentID := chi.URLParam(r, "appointmentID")

	var body CancelBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.service.Cancel(r.Context(), id, appointmentID, body.Reason); err != nil {
		h.writeError(w, "cancel", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Sync handles POST /appointments/sync, triggering the legacy-to-global
// migration for the signed-in patient.
func (h *Handler) Sync(w http.ResponseWriter, r *http.Request) {
	id, ok := identityFrom(r)
	if !ok {
		http.Error(w, "missing patient context", http.StatusUnauthorized)
		return
	}

	if err := h.service.RunMigration(r.Context(), id); err != nil {
		h.logger.Error("migration sync refresh failed", "error", err, "user_id", id.UserID)
		http.Error(w, "failed to refresh appointments", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (h *Handler) writeError(w http.ResponseWriter, op string, err error) {
	var verr *ValidationError
	switch {
	case errors.As(err, &verr):
		http.Error(w, verr.Msg, http.StatusBadRequest)
	case errors.Is(err, ErrAppointmentNotFound):
		http.Error(w, "appointment not found", http.StatusNotFound)
	default:
		h.logger.Error("appointment "+op+" failed", "error", err)
		http.Error(w, "failed to "+op+" appointment", http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
