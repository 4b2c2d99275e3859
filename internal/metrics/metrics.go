// Package metrics holds the Prometheus instruments for scans and the
// upstream clients. A nil *Metrics is valid and records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Outcome labels for a single symbol evaluation.
const (
	OutcomeMatch    = "match"
	OutcomeNoMatch  = "no_match"
	OutcomeError    = "error"
	OutcomeFatal    = "fatal"
	OutcomeCanceled = "canceled"
)

type Metrics struct {
	EvalInFlight prometheus.Gauge
	EvalDuration prometheus.Histogram
	EvalTotal    *prometheus.CounterVec // labels: outcome
	ScansTotal   *prometheus.CounterVec // labels: status
	JobsActive   prometheus.Gauge

	// Circuit breaker around the NSE index API: 0=closed, 1=half-open, 2=open.
	BreakerState prometheus.Gauge
}

// New creates the instruments and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		EvalInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "nse_scanner_evaluations_in_flight",
			Help: "Symbol evaluations currently running",
		}),
		EvalDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "nse_scanner_evaluation_duration_seconds",
			Help:    "Time to fetch and evaluate one symbol",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
		}),
		EvalTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "nse_scanner_evaluations_total",
			Help: "Symbol evaluations by outcome",
		}, []string{"outcome"}),
		ScansTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "nse_scanner_scans_total",
			Help: "Finished scans by terminal status",
		}, []string{"status"}),
		JobsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "nse_scanner_jobs",
			Help: "Jobs currently held in the job store",
		}),
		BreakerState: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "nse_scanner_index_breaker_state",
			Help: "NSE index circuit breaker state (0=closed, 1=half-open, 2=open)",
		}),
	}
	reg.MustRegister(
		m.EvalInFlight,
		m.EvalDuration,
		m.EvalTotal,
		m.ScansTotal,
		m.JobsActive,
		m.BreakerState,
	)
	return m
}

// EvalStarted marks one evaluation in flight and returns a func that
// records its outcome and duration.
func (m *Metrics) EvalStarted() func(outcome string) {
	if m == nil {
		return func(string) {}
	}
	start := time.Now()
	m.EvalInFlight.Inc()
	return func(outcome string) {
		m.EvalInFlight.Dec()
		m.EvalDuration.Observe(time.Since(start).Seconds())
		m.EvalTotal.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) ScanFinished(status string) {
	if m == nil {
		return
	}
	m.ScansTotal.WithLabelValues(status).Inc()
}

func (m *Metrics) SetJobs(n int) {
	if m == nil {
		return
	}
	m.JobsActive.Set(float64(n))
}

func (m *Metrics) SetBreakerState(state int) {
	if m == nil {
		return
	}
	m.BreakerState.Set(float64(state))
}
