package appointments

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/clearwell-health/patient-portal/internal/observability/metrics"
	"github.com/clearwell-health/patient-portal/pkg/logging"
)

// MigrationSync copies legacy-only appointments into the global collection
// and back-fills the cross-reference key onto the legacy document. Best
// effort and idempotent: documents already carrying a globalAppointmentId are
// skipped, so repeated sign-ins never create duplicates. Failures are logged
// and counted, never surfaced to the patient.
type MigrationSync struct {
	legacy  LegacyStore
	global  GlobalStore
	logger  *logging.Logger
	metrics *metrics.AppointmentMetrics
	now     func() time.Time
	newID   func() string

	// runMu serializes whole runs: a manual sync racing the sign-in run
	// would otherwise migrate the same document twice.
	runMu sync.Mutex
}

func NewMigrationSync(legacy LegacyStore, global GlobalStore, logger *logging.Logger) *MigrationSync {
	if logger == nil {
		logger = logging.Default()
	}
	return &MigrationSync{
		legacy: legacy,
		global: global,
		logger: logger,
		now:    time.Now,
		newID:  uuid.NewString,
	}
}

func (m *MigrationSync) WithMetrics(am *metrics.AppointmentMetrics) *MigrationSync {
	m.metrics = am
	return m
}

func (m *MigrationSync) WithClock(now func() time.Time) *MigrationSync {
	if now != nil {
		m.now = now
	}
	return m
}

func (m *MigrationSync) WithIDGenerator(newID func() string) *MigrationSync {
	if newID != nil {
		m.newID = newID
	}
	return m
}

// RunOnce migrates every eligible legacy document for the identity. All
// per-document migrations run concurrently; one failing never aborts the
// others.
func (m *MigrationSync) RunOnce(ctx context.Context, id Identity) {
	m.runMu.Lock()
	defer m.runMu.Unlock()

	docs, err := m.legacy.ListByUser(ctx, id.UserID)
	if err != nil {
		m.logger.Error("migration: list legacy documents failed", "error", err, "user_id", id.UserID)
		return
	}

	var wg sync.WaitGroup
	for _, doc := range docs {
		if strings.TrimSpace(stringField(doc.Fields, "globalAppointmentId")) != "" {
			continue
		}
		if strings.TrimSpace(stringField(doc.Fields, "providerId")) == "" {
			m.metrics.ObserveMigration("skipped")
			continue
		}
		wg.Add(1)
		go func(doc Document) {
			defer wg.Done()
			m.syncOne(ctx, id, doc)
		}(doc)
	}
	wg.Wait()
}

func (m *MigrationSync) syncOne(ctx context.Context, id Identity, doc Document) {
	rec, err := Normalize(doc)
	if err != nil {
		m.logger.Warn("migration: skipping unparseable legacy document", "doc_id", doc.ID, "error", err)
		m.metrics.ObserveMigration("rejected")
		return
	}

	now := m.now()
	globalID := m.newID()
	payload := globalPayload(id, rec, providerStatus(rec.Status), now)
	if err := m.global.Put(ctx, globalID, payload); err != nil {
		m.logger.Error("migration: global write failed", "error", err, "doc_id", doc.ID)
		m.metrics.ObserveMigration("failed")
		return
	}

	patch := map[string]any{
		"globalAppointmentId": globalID,
		"syncedToGlobalAt":    now.UTC().Format(time.RFC3339),
	}
	if err := m.legacy.Update(ctx, id.UserID, doc.ID, patch); err != nil {
		m.logger.Error("migration: back-fill failed", "error", err, "doc_id", doc.ID, "global_id", globalID)
		m.metrics.ObserveMigration("backfill_failed")
		return
	}

	m.logger.Info("migration: legacy appointment synced", "doc_id", doc.ID, "global_id", globalID)
	m.metrics.ObserveMigration("synced")
}

// providerStatus derives the provider-facing status written to the global
// collection during migration.
func providerStatus(s Status) string {
	switch s {
	case StatusCompleted:
		return "completed"
	case StatusCancelled:
		return "cancelled"
	default:
		return "pending"
	}
}
