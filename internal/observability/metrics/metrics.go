package metrics

import "github.com/prometheus/client_golang/prometheus"

// AppointmentMetrics exposes counters/histograms for the appointment flows.
type AppointmentMetrics struct {
	refreshTotal       *prometheus.CounterVec
	refreshLatency     prometheus.Histogram
	droppedDocsTotal   *prometheus.CounterVec
	migrationTotal     *prometheus.CounterVec
	writeFailuresTotal *prometheus.CounterVec
	notificationsTotal *prometheus.CounterVec
}

func NewAppointmentMetrics(reg prometheus.Registerer) *AppointmentMetrics {
	m := &AppointmentMetrics{
		refreshTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "portal",
			Subsystem: "appointments",
			Name:      "refresh_total",
			Help:      "Total reconcile refresh cycles",
		}, []string{"status"}),
		refreshLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "portal",
			Subsystem: "appointments",
			Name:      "refresh_latency_seconds",
			Help:      "Latency of a full fetch-and-reconcile cycle",
			Buckets:   prometheus.DefBuckets,
		}),
		droppedDocsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "portal",
			Subsystem: "appointments",
			Name:      "dropped_documents_total",
			Help:      "Source documents rejected during normalization",
		}, []string{"source"}),
		migrationTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "portal",
			Subsystem: "appointments",
			Name:      "migration_sync_total",
			Help:      "Legacy-to-global migration outcomes per document",
		}, []string{"outcome"}),
		writeFailuresTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "portal",
			Subsystem: "appointments",
			Name:      "write_failures_total",
			Help:      "Failed remote writes by operation and store",
		}, []string{"operation", "store"}),
		notificationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "portal",
			Subsystem: "appointments",
			Name:      "notifications_total",
			Help:      "Outbound provider notifications by type and status",
		}, []string{"type", "status"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(
		m.refreshTotal,
		m.refreshLatency,
		m.droppedDocsTotal,
		m.migrationTotal,
		m.writeFailuresTotal,
		m.notificationsTotal,
	)
	return m
}

func (m *AppointmentMetrics) ObserveRefresh(status string, seconds float64) {
	if m == nil {
		return
	}
	m.refreshTotal.WithLabelValues(status).Inc()
	m.refreshLatency.Observe(seconds)
}

func (m *AppointmentMetrics) ObserveDropped(source string, count int) {
	if m == nil || count <= 0 {
		return
	}
	m.droppedDocsTotal.WithLabelValues(source).Add(float64(count))
}

func (m *AppointmentMetrics) ObserveMigration(outcome string) {
	if m == nil {
		return
	}
	m.migrationTotal.WithLabelValues(outcome).Inc()
}

func (m *AppointmentMetrics) ObserveWriteFailure(operation, store string) {
	if m == nil {
		return
	}
	m.writeFailuresTotal.WithLabelValues(operation, store).Inc()
}

func (m *AppointmentMetrics) ObserveNotification(notificationType, status string) {
	if m == nil {
		return
	}
	m.notificationsTotal.WithLabelValues(notificationType, status).Inc()
}
