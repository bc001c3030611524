package jobmetrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func gatherValue(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, metric := range mf.GetMetric() {
			if !labelsMatch(metric, labels) {
				continue
			}
			switch {
			case metric.GetCounter() != nil:
				return metric.GetCounter().GetValue()
			case metric.GetGauge() != nil:
				return metric.GetGauge().GetValue()
			}
		}
	}
	t.Fatalf("metric %s %v not found", name, labels)
	return 0
}

func labelsMatch(metric *dto.Metric, labels map[string]string) bool {
	for _, pair := range metric.GetLabel() {
		if want, ok := labels[pair.GetName()]; ok && want != pair.GetValue() {
			return false
		}
	}
	return true
}

func TestTrackerRecordsStatus(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	_ = m.Track("dormancy_scan").End(nil)
	err := m.Track("dormancy_scan").End(errors.New("boom"))
	if err == nil || err.Error() != "boom" {
		t.Fatalf("expected error to pass through, got %v", err)
	}

	if got := gatherValue(t, reg, "closurewatch_jobs_total", map[string]string{"job": "dormancy_scan", "status": "success"}); got != 1 {
		t.Fatalf("expected 1 success, got %v", got)
	}
	if got := gatherValue(t, reg, "closurewatch_jobs_failures_total", map[string]string{"job": "dormancy_scan"}); got != 1 {
		t.Fatalf("expected 1 failure, got %v", got)
	}
}

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics
	if err := m.Track("x").End(nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	m.AddOutcomes("alerted", 3)
	m.SetLatest(1, 10)
}

func TestSetLatestAndOutcomes(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	m.AddOutcomes("alerted", 2)
	m.AddOutcomes("alerted", 0)
	m.SetLatest(2, 125.5)

	if got := gatherValue(t, reg, "closurewatch_scan_account_outcomes_total", map[string]string{"status": "alerted"}); got != 2 {
		t.Fatalf("expected 2 alerted outcomes, got %v", got)
	}
	if got := gatherValue(t, reg, "closurewatch_scan_balance_at_risk", nil); got != 125.5 {
		t.Fatalf("expected balance at risk 125.5, got %v", got)
	}
}
