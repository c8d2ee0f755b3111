package appointments

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clearwell-health/patient-portal/internal/http/middleware"
)

func testClaims() middleware.PatientClaims {
	return middleware.PatientClaims{
		PatientID:   testIdentity.PatientID,
		PatientUID:  testIdentity.PatientUID,
		PatientName: testIdentity.PatientName,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject: testIdentity.UserID,
		},
	}
}

func newTestRouter(h *Handler, authed bool) http.Handler {
	r := chi.NewRouter()
	if authed {
		r.Use(func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
				ctx := middleware.ContextWithPatientClaims(req.Context(), testClaims())
				next.ServeHTTP(w, req.WithContext(ctx))
			})
		})
	}
	r.Get("/appointments", h.List)
	r.Post("/appointments", h.Schedule)
	r.Patch("/appointments/{appointmentID}/reschedule", h.Reschedule)
	r.Post("/appointments/{appointmentID}/cancel", h.Cancel)
	r.Post("/appointments/sync", h.Sync)
	return r
}

func newTestHandler(legacy *fakeLegacy, global *fakeGlobal) *Handler {
	svc := newTestService(legacy, global)
	return NewHandler(svc, testLogger()).WithClock(func() time.Time { return testNow })
}

func TestHandlerRequiresPatientContext(t *testing.T) {
	h := newTestHandler(&fakeLegacy{}, newFakeGlobal())
	router := newTestRouter(h, false)

	for _, tc := range []struct{ method, path string }{
		{http.MethodGet, "/appointments"},
		{http.MethodPost, "/appointments"},
		{http.MethodPatch, "/appointments/g1/reschedule"},
		{http.MethodPost, "/appointments/g1/cancel"},
		{http.MethodPost, "/appointments/sync"},
	} {
		req := httptest.NewRequest(tc.method, tc.path, bytes.NewBufferString(`{}`))
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		assert.Equal(t, http.StatusUnauthorized, rr.Code, "%s %s", tc.method, tc.path)
	}
}

func TestHandlerListDecoratesActions(t *testing.T) {
	global := newFakeGlobal()
	// Starting in 30 minutes: joinable, not cancellable.
	seedGlobalAppointment(global, "soon", testNow.Add(30*time.Minute), nil)
	// Starting in three days: cancellable, not joinable.
	seedGlobalAppointment(global, "later", testNow.Add(72*time.Hour), nil)
	h := newTestHandler(&fakeLegacy{}, global)
	router := newTestRouter(h, true)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/appointments", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	var resp ListResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	require.Equal(t, 2, resp.Count)

	byID := map[string]RecordResponse{}
	for _, rec := range resp.Appointments {
		byID[rec.ID] = rec
	}
	assert.True(t, byID["soon"].Joinable)
	assert.False(t, byID["soon"].Cancellable)
	assert.False(t, byID["later"].Joinable)
	assert.True(t, byID["later"].Cancellable)
}

func TestHandlerScheduleCreates(t *testing.T) {
	h := newTestHandler(&fakeLegacy{}, newFakeGlobal())
	router := newTestRouter(h, true)

	body, _ := json.Marshal(ScheduleBody{
		ProviderID:   "p1",
		ProviderName: "Dr. Okafor",
		Date:         testNow.Add(72 * time.Hour),
		Type:         "in-person",
		Reason:       "checkup",
	})
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/appointments", bytes.NewReader(body)))
	require.Equal(t, http.StatusCreated, rr.Code)

	var rec Record
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&rec))
	assert.Equal(t, InPerson, rec.Type)
	assert.Equal(t, StatusScheduled, rec.Status)
	assert.NotEmpty(t, rec.GlobalAppointmentID)
}

func TestHandlerScheduleValidation(t *testing.T) {
	h := newTestHandler(&fakeLegacy{}, newFakeGlobal())
	router := newTestRouter(h, true)

	body, _ := json.Marshal(ScheduleBody{Date: testNow.Add(72 * time.Hour), Reason: "checkup"})
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/appointments", bytes.NewReader(body)))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "provider")
}

func TestHandlerScheduleBadJSON(t *testing.T) {
	h := newTestHandler(&fakeLegacy{}, newFakeGlobal())
	router := newTestRouter(h, true)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/appointments", bytes.NewBufferString("{nope")))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestHandlerRescheduleNotFound(t *testing.T) {
	h := newTestHandler(&fakeLegacy{}, newFakeGlobal())
	router := newTestRouter(h, true)

	body := fmt.Sprintf(`{"date":%q}`, testNow.Add(48*time.Hour).Format(time.RFC3339))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPatch, "/appointments/missing/reschedule", bytes.NewBufferString(body)))
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestHandlerReschedule(t *testing.T) {
	global := newFakeGlobal()
	seedGlobalAppointment(global, "g1", testNow.Add(48*time.Hour), nil)
	h := newTestHandler(&fakeLegacy{}, global)
	router := newTestRouter(h, true)

	body := fmt.Sprintf(`{"date":%q}`, testNow.Add(96*time.Hour).Format(time.RFC3339))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPatch, "/appointments/g1/reschedule", bytes.NewBufferString(body)))
	require.Equal(t, http.StatusNoContent, rr.Code)

	item, _ := global.item("g1")
	assert.Equal(t, testNow.Add(96*time.Hour).Format(time.RFC3339), item["startTime"])
}

func TestHandlerCancelTooLate(t *testing.T) {
	global := newFakeGlobal()
	seedGlobalAppointment(global, "g1", testNow.Add(2*time.Hour), nil)
	h := newTestHandler(&fakeLegacy{}, global)
	router := newTestRouter(h, true)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/appointments/g1/cancel", bytes.NewBufferString(`{"reason":"conflict"}`)))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "24 hours")
}

func TestHandlerCancel(t *testing.T) {
	global := newFakeGlobal()
	seedGlobalAppointment(global, "g1", testNow.Add(48*time.Hour), nil)
	h := newTestHandler(&fakeLegacy{}, global)
	router := newTestRouter(h, true)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/appointments/g1/cancel", bytes.NewBufferString(`{"reason":"conflict"}`)))
	require.Equal(t, http.StatusNoContent, rr.Code)

	item, _ := global.item("g1")
	assert.Equal(t, "cancelled", item["status"])
}

func TestHandlerSyncAccepted(t *testing.T) {
	legacy := &fakeLegacy{docs: []Document{
		{ID: "d1", Fields: map[string]any{"date": "2026-05-03", "providerId": "p1"}},
	}}
	global := newFakeGlobal()
	svc := newTestService(legacy, global).
		WithMigration(newTestMigration(legacy, global))
	h := NewHandler(svc, testLogger()).WithClock(func() time.Time { return testNow })
	router := newTestRouter(h, true)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/appointments/sync", nil))
	require.Equal(t, http.StatusAccepted, rr.Code)
	assert.Equal(t, 1, global.size())
}
