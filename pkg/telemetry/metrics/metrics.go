package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"aegis-hq/sentinel/pkg/config"
)

// Metrics tracks the engine's operational counters.
//
// Metrics:
//   - sentinel_events_total: Accepted events by kind
//   - sentinel_events_rejected_total: Rejected raw events by reason
//   - sentinel_evaluations_total: Policy evaluations by outcome
//   - sentinel_evaluation_duration_seconds: Evaluation duration
//   - sentinel_remediation_attempts_total: Attempts by action and outcome
//   - sentinel_escalations_total: Escalated incidents
//   - sentinel_incidents_active: Incidents not yet closed
//   - sentinel_ledger_appends_total: Evidence records appended by kind
//   - sentinel_ledger_verifications_total: Chain verifications by result
//   - sentinel_bundle_activations_total: Bundles activated
type Metrics struct {
	eventsTotal         *prometheus.CounterVec
	eventsRejectedTotal *prometheus.CounterVec
	evaluationsTotal    *prometheus.CounterVec
	evaluationDuration  prometheus.Histogram
	attemptsTotal       *prometheus.CounterVec
	escalationsTotal    prometheus.Counter
	incidentsActive     prometheus.Gauge
	ledgerAppendsTotal  *prometheus.CounterVec
	verificationsTotal  *prometheus.CounterVec
	bundleActivations   prometheus.Counter
}

// New creates and registers the engine metrics with the provided registry.
func New(cfg *config.MetricsConfig, registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		eventsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Name:      "events_total",
				Help:      "Total number of accepted signal events",
			},
			[]string{"kind"},
		),

		eventsRejectedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Name:      "events_rejected_total",
				Help:      "Total number of rejected raw events",
			},
			[]string{"reason"},
		),

		evaluationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Name:      "evaluations_total",
				Help:      "Total number of policy evaluations",
			},
			[]string{"outcome"},
		),

		evaluationDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Name:      "evaluation_duration_seconds",
				Help:      "Duration of policy evaluation in seconds",
				// Evaluations walk an in-memory snapshot, so sub-millisecond
				Buckets: prometheus.ExponentialBuckets(0.000001, 2, 15),
			},
		),

		attemptsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Name:      "remediation_attempts_total",
				Help:      "Total number of remediation attempts",
			},
			[]string{"action", "outcome"},
		),

		escalationsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Name:      "escalations_total",
				Help:      "Total number of escalated incidents",
			},
		),

		incidentsActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: cfg.Namespace,
				Name:      "incidents_active",
				Help:      "Number of incidents not yet closed",
			},
		),

		ledgerAppendsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Name:      "ledger_appends_total",
				Help:      "Total number of evidence records appended",
			},
			[]string{"kind"},
		),

		verificationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Name:      "ledger_verifications_total",
				Help:      "Total number of ledger chain verifications",
			},
			[]string{"result"},
		),

		bundleActivations: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Name:      "bundle_activations_total",
				Help:      "Total number of policy bundles activated",
			},
		),
	}

	registry.MustRegister(
		m.eventsTotal,
		m.eventsRejectedTotal,
		m.evaluationsTotal,
		m.evaluationDuration,
		m.attemptsTotal,
		m.escalationsTotal,
		m.incidentsActive,
		m.ledgerAppendsTotal,
		m.verificationsTotal,
		m.bundleActivations,
	)

	return m
}

// RecordEvent records an accepted signal event.
func (m *Metrics) RecordEvent(kind string) {
	m.eventsTotal.WithLabelValues(kind).Inc()
}

// RecordEventRejected records a rejected raw event.
func (m *Metrics) RecordEventRejected(reason string) {
	m.eventsRejectedTotal.WithLabelValues(reason).Inc()
}

// RecordEvaluation records one policy evaluation and its duration.
func (m *Metrics) RecordEvaluation(outcome string, duration time.Duration) {
	m.evaluationsTotal.WithLabelValues(outcome).Inc()
	m.evaluationDuration.Observe(duration.Seconds())
}

// RecordAttempt records a remediation attempt.
func (m *Metrics) RecordAttempt(action, outcome string) {
	m.attemptsTotal.WithLabelValues(action, outcome).Inc()
}

// RecordEscalation records an escalated incident.
func (m *Metrics) RecordEscalation() {
	m.escalationsTotal.Inc()
}

// SetActiveIncidents updates the active incident gauge.
func (m *Metrics) SetActiveIncidents(count int) {
	m.incidentsActive.Set(float64(count))
}

// RecordLedgerAppend records an evidence record append.
func (m *Metrics) RecordLedgerAppend(kind string) {
	m.ledgerAppendsTotal.WithLabelValues(kind).Inc()
}

// RecordVerification records a chain verification result ("ok", "corrupt",
// "error").
func (m *Metrics) RecordVerification(result string) {
	m.verificationsTotal.WithLabelValues(result).Inc()
}

// RecordBundleActivation records a policy bundle activation.
func (m *Metrics) RecordBundleActivation() {
	m.bundleActivations.Inc()
}
