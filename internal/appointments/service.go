package appointments

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/clearwell-health/patient-portal/internal/observability/metrics"
	"github.com/clearwell-health/patient-portal/pkg/logging"
)

const tempIDPrefix = "temp-"

// Session is one signed-in patient's live appointment state: the reconciled
// view plus the debounced refresher feeding it.
type Session struct {
	identity  Identity
	view      *View
	refresher *Refresher
}

// View exposes the session's appointment view for snapshot subscribers.
func (s *Session) View() *View {
	return s.view
}

// Identity returns the session's patient identity.
func (s *Session) Identity() Identity {
	return s.identity
}

// Service owns appointment sessions and the three mutation commands. Writes
// go to both stores; the partial-failure policy differs per command:
// schedule rolls back unless both writes land, reschedule and cancel succeed
// when at least one of the two does.
type Service struct {
	legacy    LegacyStore
	global    GlobalStore
	logger    *logging.Logger
	metrics   *metrics.AppointmentMetrics
	publisher ChangePublisher
	feed      *ChangeFeed
	notifier  Notifier
	migration *MigrationSync
	debounce  time.Duration
	now       func() time.Time
	newID     func() string

	mu       sync.Mutex
	sessions map[string]*Session
}

func NewService(legacy LegacyStore, global GlobalStore, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{
		legacy:   legacy,
		global:   global,
		logger:   logger,
		debounce: 75 * time.Millisecond,
		now:      time.Now,
		newID:    uuid.NewString,
		sessions: make(map[string]*Session),
	}
}

func (s *Service) WithMetrics(am *metrics.AppointmentMetrics) *Service {
	s.metrics = am
	return s
}

// WithChangeFeed enables live refresh: mutations publish to the feed and
// each session gets a debounced subscriber.
func (s *Service) WithChangeFeed(feed *ChangeFeed) *Service {
	s.feed = feed
	s.publisher = feed
	return s
}

func (s *Service) WithNotifier(n Notifier) *Service {
	s.notifier = n
	return s
}

func (s *Service) WithMigration(m *MigrationSync) *Service {
	s.migration = m
	return s
}

func (s *Service) WithDebounce(d time.Duration) *Service {
	if d > 0 {
		s.debounce = d
	}
	return s
}

func (s *Service) WithClock(now func() time.Time) *Service {
	if now != nil {
		s.now = now
	}
	return s
}

func (s *Service) WithIDGenerator(newID func() string) *Service {
	if newID != nil {
		s.newID = newID
	}
	return s
}

// SignIn returns the session for the identity, creating it on first use.
// Session creation starts the live refresher and fires the one-shot
// legacy-to-global migration in the background; the caller never waits on
// the migration beyond the refresh that follows it.
func (s *Service) SignIn(ctx context.Context, id Identity) *Session {
	s.mu.Lock()
	sess, ok := s.sessions[id.Key()]
	if !ok {
		sess = &Session{identity: id, view: NewView()}
		if s.feed != nil {
			sess.refresher = NewRefresher(s.feed, ChannelsFor(id), s.debounce, func(ctx context.Context) {
				if _, err := s.refreshSession(ctx, sess); err != nil {
					s.logger.Error("live refresh failed", "error", err, "user_id", id.UserID)
				}
			}, s.logger)
			sess.refresher.Start(context.Background())
		}
		s.sessions[id.Key()] = sess
		s.mu.Unlock()

		if s.migration != nil {
			go func() {
				migCtx := context.WithoutCancel(ctx)
				s.migration.RunOnce(migCtx, id)
				if _, err := s.refreshSession(migCtx, sess); err != nil {
					s.logger.Error("post-migration refresh failed", "error", err, "user_id", id.UserID)
				}
			}()
		}
		return sess
	}
	s.mu.Unlock()
	return sess
}

// SignOut tears the identity's session down.
func (s *Service) SignOut(id Identity) {
	s.mu.Lock()
	sess, ok := s.sessions[id.Key()]
	delete(s.sessions, id.Key())
	s.mu.Unlock()
	if ok && sess.refresher != nil {
		sess.refresher.Stop()
	}
}

// List performs a full fetch-and-reconcile cycle and returns the merged
// appointment list, newest first.
func (s *Service) List(ctx context.Context, id Identity) ([]Record, error) {
	sess := s.SignIn(ctx, id)
	return s.refreshSession(ctx, sess)
}

// ScheduleRequest carries validated booking input.
type ScheduleRequest struct {
	ProviderID   string
	ProviderName string
	Date         time.Time
	Type         AppointmentType
	Reason       string
	MeetingURL   string
}

// Schedule books a new appointment. A provisional record is shown
// immediately; it is removed again once both writes land (the refresh
// rebuilds the real one) or on any write failure.
func (s *Service) Schedule(ctx context.Context, id Identity, req ScheduleRequest) (Record, error) {
	if strings.TrimSpace(req.ProviderID) == "" {
		return Record{}, validationErr("a provider must be selected")
	}
	reason := SanitizeReason(req.Reason)
	if reason == "" {
		return Record{}, validationErr("a reason for the visit is required")
	}
	if req.Date.IsZero() {
		return Record{}, validationErr("an appointment time is required")
	}

	sess := s.SignIn(ctx, id)
	now := s.now()
	globalID := s.newID()

	rec := Record{
		ID:                  globalID,
		GlobalAppointmentID: globalID,
		Date:                req.Date,
		ProviderID:          req.ProviderID,
		ProviderName:        strings.TrimSpace(req.ProviderName),
		Type:                req.Type,
		Status:              StatusScheduled,
		Reason:              reason,
		MeetingURL:          req.MeetingURL,
	}
	if rec.ProviderName == "" {
		rec.ProviderName = "Provider"
	}
	if rec.Type != InPerson {
		rec.Type = Telehealth
	}

	temp := rec
	temp.ID = tempIDPrefix + globalID
	sess.view.ApplyOptimistic(temp)

	if err := s.global.Put(ctx, globalID, globalPayload(id, rec, "pending", now)); err != nil {
		sess.view.RollbackOptimistic(temp.ID)
		s.metrics.ObserveWriteFailure("schedule", "global")
		return Record{}, fmt.Errorf("appointments: schedule global write: %w", err)
	}

	legacyID := s.newID()
	if err := s.legacy.Insert(ctx, id.UserID, legacyID, legacyPayload(rec, globalID, now)); err != nil {
		sess.view.RollbackOptimistic(temp.ID)
		s.metrics.ObserveWriteFailure("schedule", "legacy")
		return Record{}, fmt.Errorf("appointments: schedule legacy write: %w", err)
	}
	rec.PatientDocID = legacyID

	s.notify(ctx, EventBooked, globalID)
	sess.view.RollbackOptimistic(temp.ID)
	s.publishChange(ctx, id)
	if _, err := s.refreshSession(ctx, sess); err != nil {
		s.logger.Error("post-schedule refresh failed", "error", err, "user_id", id.UserID)
	}
	return rec, nil
}

// Reschedule moves an appointment to a future instant. The operation
// succeeds when at least one of the two store updates does; only a double
// failure rolls the optimistic change back.
func (s *Service) Reschedule(ctx context.Context, id Identity, appointmentID string, when time.Time) error {
	sess := s.SignIn(ctx, id)
	now := s.now()
	if !when.After(now) {
		return validationErr("the new appointment time must be in the future")
	}

	rec, err := s.findRecord(ctx, sess, appointmentID)
	if err != nil {
		return err
	}

	prev, _ := sess.view.UpdateRecord(rec.ID, func(r Record) Record {
		r.Date = when
		r.Status = StatusScheduled
		return r
	})

	gErr := s.global.Update(ctx, rec.GlobalAppointmentID, globalReschedulePatch(when, now))
	if gErr != nil {
		s.logger.Error("reschedule global update failed", "error", gErr, "appointment_id", rec.ID)
		s.metrics.ObserveWriteFailure("reschedule", "global")
	}
	lErr := s.legacy.Update(ctx, id.UserID, rec.PatientDocID, legacyReschedulePatch(when, now))
	if lErr != nil {
		s.logger.Error("reschedule legacy update failed", "error", lErr, "appointment_id", rec.ID)
		s.metrics.ObserveWriteFailure("reschedule", "legacy")
	}

	if gErr != nil && lErr != nil {
		sess.view.Restore(prev)
		return fmt.Errorf("appointments: reschedule failed: %w", errors.Join(gErr, lErr))
	}

	s.notify(ctx, EventRescheduled, rec.GlobalAppointmentID)
	s.publishChange(ctx, id)
	return nil
}

// Cancel flips an appointment to cancelled with a required reason. Only
// appointments with more than 24 hours of lead time are cancellable through
// this path. Same one-of-two write tolerance as reschedule.
func (s *Service) Cancel(ctx context.Context, id Identity, appointmentID, reason string) error {
	reason = SanitizeReason(reason)
	if reason == "" {
		return validationErr("a cancellation reason is required")
	}

	sess := s.SignIn(ctx, id)
	rec, err := s.findRecord(ctx, sess, appointmentID)
	if err != nil {
		return err
	}

	now := s.now()
	if !Cancellable(rec.Date, now) {
		return validationErr("appointments can only be cancelled more than 24 hours in advance")
	}

	prev, _ := sess.view.UpdateRecord(rec.ID, func(r Record) Record {
		r.Status = StatusCancelled
		return r
	})

	gErr := s.global.Update(ctx, rec.GlobalAppointmentID, globalCancelPatch(reason, now))
	if gErr != nil {
		s.logger.Error("cancel global update failed", "error", gErr, "appointment_id", rec.ID)
		s.metrics.ObserveWriteFailure("cancel", "global")
	}
	lErr := s.legacy.Update(ctx, id.UserID, rec.PatientDocID, legacyCancelPatch(now))
	if lErr != nil {
		s.logger.Error("cancel legacy update failed", "error", lErr, "appointment_id", rec.ID)
		s.metrics.ObserveWriteFailure("cancel", "legacy")
	}

	if gErr != nil && lErr != nil {
		sess.view.Restore(prev)
		return fmt.Errorf("appointments: cancel failed: %w", errors.Join(gErr, lErr))
	}

	s.notify(ctx, EventCancelled, rec.GlobalAppointmentID)
	s.publishChange(ctx, id)
	return nil
}

// RunMigration triggers the legacy-to-global sync for the identity and
// refreshes the session afterwards.
func (s *Service) RunMigration(ctx context.Context, id Identity) error {
	if s.migration == nil {
		return nil
	}
	sess := s.SignIn(ctx, id)
	s.migration.RunOnce(ctx, id)
	_, err := s.refreshSession(ctx, sess)
	return err
}

// refreshSession performs one full fetch-and-reconcile cycle. The view only
// accepts the result if no newer cycle started in the meantime.
func (s *Service) refreshSession(ctx context.Context, sess *Session) ([]Record, error) {
	start := time.Now()
	gen := sess.view.BeginRefresh()
	id := sess.identity

	legacyDocs, err := s.legacy.ListByUser(ctx, id.UserID)
	if err != nil {
		s.metrics.ObserveRefresh("error", time.Since(start).Seconds())
		return nil, fmt.Errorf("appointments: refresh legacy fetch: %w", err)
	}
	byPatientID, err := s.global.QueryByPatientID(ctx, id.PatientID)
	if err != nil {
		s.metrics.ObserveRefresh("error", time.Since(start).Seconds())
		return nil, fmt.Errorf("appointments: refresh global fetch by patientId: %w", err)
	}
	byPatientUID, err := s.global.QueryByPatientUID(ctx, id.PatientUID)
	if err != nil {
		s.metrics.ObserveRefresh("error", time.Since(start).Seconds())
		return nil, fmt.Errorf("appointments: refresh global fetch by patientUid: %w", err)
	}

	recs, dropped := Reconcile(legacyDocs, byPatientID, byPatientUID)
	s.metrics.ObserveDropped("reconcile", dropped)
	if dropped > 0 {
		s.logger.Warn("reconcile dropped documents without a parseable date", "count", dropped, "user_id", id.UserID)
	}

	if !sess.view.ReplaceWithReconciled(gen, recs) {
		// A newer cycle superseded this one; its result will land instead.
		s.metrics.ObserveRefresh("stale", time.Since(start).Seconds())
		return sess.view.Snapshot(), nil
	}
	s.metrics.ObserveRefresh("ok", time.Since(start).Seconds())
	return recs, nil
}

func (s *Service) findRecord(ctx context.Context, sess *Session, appointmentID string) (Record, error) {
	if rec, ok := sess.view.Find(appointmentID); ok {
		return rec, nil
	}
	if _, err := s.refreshSession(ctx, sess); err != nil {
		return Record{}, err
	}
	if rec, ok := sess.view.Find(appointmentID); ok {
		return rec, nil
	}
	return Record{}, ErrAppointmentNotFound
}

func (s *Service) notify(ctx context.Context, eventType, appointmentID string) {
	if s.notifier == nil {
		return
	}
	go s.notifier.Notify(context.WithoutCancel(ctx), eventType, appointmentID)
}

func (s *Service) publishChange(ctx context.Context, id Identity) {
	if s.publisher == nil {
		return
	}
	s.publisher.PublishChange(ctx, id)
}
