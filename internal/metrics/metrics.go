// Package metrics defines the Prometheus collectors of the brew monitor.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics groups every collector.
type Metrics struct {
	readingsProcessed *prometheus.CounterVec
	readingsSkipped   *prometheus.CounterVec
	alertsFired       *prometheus.CounterVec
	purgeDocuments    *prometheus.CounterVec
	purgeDuration     prometheus.Histogram
	transitions       *prometheus.CounterVec
	rigReadings       *prometheus.CounterVec
	notifications     *prometheus.CounterVec
	monitoredSessions prometheus.Gauge
}

// New registers the collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		// readingsProcessed counts readings fed to the alert debouncer
		readingsProcessed: f.NewCounterVec(prometheus.CounterOpts{
			Name: "brew_readings_processed_total",
			Help: "Readings processed by the ingest pipeline by stream",
		}, []string{"stream"}),

		readingsSkipped: f.NewCounterVec(prometheus.CounterOpts{
			Name: "brew_readings_skipped_total",
			Help: "Readings skipped by the ingest pipeline by stream and reason",
		}, []string{"stream", "reason"}),

		alertsFired: f.NewCounterVec(prometheus.CounterOpts{
			Name: "brew_alerts_fired_total",
			Help: "Alerts fired by kind",
		}, []string{"kind"}),

		purgeDocuments: f.NewCounterVec(prometheus.CounterOpts{
			Name: "brew_purge_documents_total",
			Help: "Reading documents processed by history purges by collection and result",
		}, []string{"collection", "result"}),

		purgeDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "brew_purge_duration_seconds",
			Help:    "History purge duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12), // 5ms to ~10s
		}),

		transitions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "brew_lifecycle_transitions_total",
			Help: "Lifecycle actions by action and outcome",
		}, []string{"action", "outcome"}),

		rigReadings: f.NewCounterVec(prometheus.CounterOpts{
			Name: "brew_rig_readings_total",
			Help: "Raw rig readings by result",
		}, []string{"result"}),

		notifications: f.NewCounterVec(prometheus.CounterOpts{
			Name: "brew_notifications_total",
			Help: "Push notifications by kind and result",
		}, []string{"kind", "result"}),

		monitoredSessions: f.NewGauge(prometheus.GaugeOpts{
			Name: "brew_monitored_sessions",
			Help: "Sessions currently monitored by the ingest pipeline",
		}),
	}
}

func (m *Metrics) ReadingProcessed(stream string) {
	if m == nil {
		return
	}
	m.readingsProcessed.WithLabelValues(stream).Inc()
}

func (m *Metrics) ReadingSkipped(stream, reason string) {
	if m == nil {
		return
	}
	m.readingsSkipped.WithLabelValues(stream, reason).Inc()
}

func (m *Metrics) AlertFired(kind string) {
	if m == nil {
		return
	}
	m.alertsFired.WithLabelValues(kind).Inc()
}

// PurgeDocument records one document delete. ok=false means it failed.
func (m *Metrics) PurgeDocument(collection string, ok bool) {
	if m == nil {
		return
	}
	result := "deleted"
	if !ok {
		result = "failed"
	}
	m.purgeDocuments.WithLabelValues(collection, result).Inc()
}

func (m *Metrics) PurgeFinished(d time.Duration) {
	if m == nil {
		return
	}
	m.purgeDuration.Observe(d.Seconds())
}

func (m *Metrics) Transition(action, outcome string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(action, outcome).Inc()
}

func (m *Metrics) RigReading(result string) {
	if m == nil {
		return
	}
	m.rigReadings.WithLabelValues(result).Inc()
}

func (m *Metrics) Notification(kind, result string) {
	if m == nil {
		return
	}
	m.notifications.WithLabelValues(kind, result).Inc()
}

func (m *Metrics) SetMonitoredSessions(n int) {
	if m == nil {
		return
	}
	m.monitoredSessions.Set(float64(n))
}
