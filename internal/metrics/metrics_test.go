package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	if err := c.Write(&m); err != nil {
		t.Fatalf("write metric: %v", err)
	}
	return m.GetCounter().GetValue()
}

func gaugeValue(t *testing.T, g prometheus.Gauge) float64 {
	t.Helper()
	var m dto.Metric
	if err := g.Write(&m); err != nil {
		t.Fatalf("write metric: %v", err)
	}
	return m.GetGauge().GetValue()
}

func TestEvalStarted(t *testing.T) {
	m := New(prometheus.NewRegistry())

	done := m.EvalStarted()
	if got := gaugeValue(t, m.EvalInFlight); got != 1 {
		t.Errorf("in flight = %v, want 1", got)
	}
	done(OutcomeMatch)
	if got := gaugeValue(t, m.EvalInFlight); got != 0 {
		t.Errorf("in flight = %v, want 0", got)
	}
	if got := counterValue(t, m.EvalTotal.WithLabelValues(OutcomeMatch)); got != 1 {
		t.Errorf("match count = %v, want 1", got)
	}
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.EvalStarted()(OutcomeError)
	m.ScanFinished("done")
	m.SetJobs(3)
	m.SetBreakerState(2)
}

func TestRegistersWithGivenRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)
	m.ScanFinished("done")
	m.SetJobs(2)

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	names := make(map[string]bool)
	for _, f := range families {
		names[f.GetName()] = true
	}
	for _, want := range []string{"nse_scanner_scans_total", "nse_scanner_jobs"} {
		if !names[want] {
			t.Errorf("metric %s not gathered", want)
		}
	}
}
