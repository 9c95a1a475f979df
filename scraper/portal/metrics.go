package portal

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles Prometheus collectors for the portal scraper.
type Metrics struct {
	Registry        *prometheus.Registry
	UnitsTotal      *prometheus.CounterVec
	AttemptDuration prometheus.Histogram
	RowsExtracted   prometheus.Counter
	RetriesTotal    prometheus.Counter
	ErrorsTotal     *prometheus.CounterVec
}

// NewMetrics constructs and registers all metrics on a dedicated registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	units := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "portal_units_total",
			Help: "Units processed by final outcome.",
		},
		[]string{"outcome"},
	)
	attemptDuration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "portal_unit_attempt_duration_seconds",
			Help:    "Duration of a single unit scrape attempt.",
			Buckets: prometheus.DefBuckets,
		},
	)
	rows := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "portal_rows_extracted_total",
			Help: "Normalized table rows extracted across all units.",
		},
	)
	retries := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "portal_retries_total",
			Help: "Retry attempts scheduled by the orchestrator.",
		},
	)
	errorsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "portal_errors_total",
			Help: "Scrape errors by type.",
		},
		[]string{"error_type"},
	)

	registry.MustRegister(units, attemptDuration, rows, retries, errorsTotal)

	return &Metrics{
		Registry:        registry,
		UnitsTotal:      units,
		AttemptDuration: attemptDuration,
		RowsExtracted:   rows,
		RetriesTotal:    retries,
		ErrorsTotal:     errorsTotal,
	}
}

// IncUnit increments the per-outcome unit counter.
func (m *Metrics) IncUnit(outcome string) {
	if m == nil {
		return
	}
	m.UnitsTotal.WithLabelValues(outcome).Inc()
}

// ObserveAttempt records the duration of one scrape attempt.
func (m *Metrics) ObserveAttempt(d time.Duration) {
	if m == nil {
		return
	}
	m.AttemptDuration.Observe(d.Seconds())
}

// AddRows increments the extracted-row counter.
func (m *Metrics) AddRows(n int) {
	if m == nil {
		return
	}
	m.RowsExtracted.Add(float64(n))
}

// IncRetries increments the retry counter.
func (m *Metrics) IncRetries() {
	if m == nil {
		return
	}
	m.RetriesTotal.Inc()
}

// IncError increments the error counter for a type label.
func (m *Metrics) IncError(err error) {
	if m == nil {
		return
	}
	m.ErrorsTotal.WithLabelValues(errorTypeLabel(err)).Inc()
}
