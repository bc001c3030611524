package jobmetrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exposes Prometheus collectors for dormancy scans.
type Metrics struct {
	runs          *prometheus.CounterVec
	failures      *prometheus.CounterVec
	duration      *prometheus.HistogramVec
	outcomes      *prometheus.CounterVec
	alerts        prometheus.Gauge
	balanceAtRisk prometheus.Gauge
}

var (
	defaultOnce    sync.Once
	defaultMetrics *Metrics
)

// NewMetrics registers the job metrics against the provided registerer. When the
// registerer is nil the default Prometheus registerer is used.
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	if registerer == nil {
		defaultOnce.Do(func() {
			defaultMetrics = buildMetrics(prometheus.DefaultRegisterer)
		})
		return defaultMetrics
	}
	return buildMetrics(registerer)
}

// Tracker provides lifecycle instrumentation helpers for a single job run.
type Tracker struct {
	metrics *Metrics
	job     string
	start   time.Time
}

// Track spawns a tracker for the given job name.
func (m *Metrics) Track(job string) *Tracker {
	if m == nil {
		return &Tracker{job: job, start: time.Now()}
	}
	return &Tracker{metrics: m, job: job, start: time.Now()}
}

// End finalises the tracker, recording duration, success/failure counts and
// returning the provided error untouched.
func (t *Tracker) End(err error) error {
	if t == nil || t.metrics == nil || t.job == "" {
		return err
	}
	status := "success"
	if err != nil {
		status = "failure"
		t.metrics.failures.WithLabelValues(t.job).Inc()
	}
	t.metrics.runs.WithLabelValues(t.job, status).Inc()
	t.metrics.duration.WithLabelValues(t.job).Observe(time.Since(t.start).Seconds())
	return err
}

// AddOutcomes counts per-account outcomes of a scan by status.
func (m *Metrics) AddOutcomes(status string, count int) {
	if m == nil || count <= 0 {
		return
	}
	m.outcomes.WithLabelValues(status).Add(float64(count))
}

// SetLatest records the alert count and the balance at risk, in currency units, of the latest scan.
func (m *Metrics) SetLatest(alerts int, balanceAtRisk float64) {
	if m == nil {
		return
	}
	m.alerts.Set(float64(alerts))
	m.balanceAtRisk.Set(balanceAtRisk)
}

func buildMetrics(registerer prometheus.Registerer) *Metrics {
	runs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "closurewatch_jobs_total",
		Help: "Total job executions partitioned by job name and status.",
	}, []string{"job", "status"})
	failures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "closurewatch_jobs_failures_total",
		Help: "Total failures observed for background jobs.",
	}, []string{"job"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "closurewatch_job_duration_seconds",
		Help:    "Duration in seconds of background job executions.",
		Buckets: prometheus.DefBuckets,
	}, []string{"job"})
	outcomes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "closurewatch_scan_account_outcomes_total",
		Help: "Accounts evaluated by dormancy scans grouped by outcome.",
	}, []string{"status"})
	alerts := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "closurewatch_scan_alerts",
		Help: "Accounts flagged as approaching closure in the latest scan.",
	})
	balanceAtRisk := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "closurewatch_scan_balance_at_risk",
		Help: "Sum of absolute negative balances flagged in the latest scan.",
	})
	registerer.MustRegister(runs, failures, duration, outcomes, alerts, balanceAtRisk)
	return &Metrics{
		runs:          runs,
		failures:      failures,
		duration:      duration,
		outcomes:      outcomes,
		alerts:        alerts,
		balanceAtRisk: balanceAtRisk,
	}
}
