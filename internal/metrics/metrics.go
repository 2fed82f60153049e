// Package metrics exposes the periodic worker's per-callback counters to
// Prometheus. The worker keeps its own metrics table; this package reads
// a snapshot on every scrape instead of duplicating state.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/watzon/metronome/internal/periodic"
)

var (
	runsDesc = prometheus.NewDesc(
		"metronome_callback_runs_total",
		"Completed invocations per callback.",
		[]string{"callback"}, nil,
	)
	failuresDesc = prometheus.NewDesc(
		"metronome_callback_failures_total",
		"Failed invocations per callback.",
		[]string{"callback"}, nil,
	)
	successesDesc = prometheus.NewDesc(
		"metronome_callback_successes_total",
		"Successful invocations per callback.",
		[]string{"callback"}, nil,
	)
	elapsedDesc = prometheus.NewDesc(
		"metronome_callback_elapsed_seconds_total",
		"Cumulative time spent inside each callback body.",
		[]string{"callback"}, nil,
	)
	elapsedWaitingDesc = prometheus.NewDesc(
		"metronome_callback_elapsed_waiting_seconds_total",
		"Cumulative time each callback spent queued before starting.",
		[]string{"callback"}, nil,
	)
	spacingDesc = prometheus.NewDesc(
		"metronome_callback_spacing_seconds",
		"Configured spacing per callback.",
		[]string{"callback"}, nil,
	)
)

// WorkerCollector adapts a periodic.Worker's metrics snapshot to the
// Prometheus collector interface.
type WorkerCollector struct {
	worker *periodic.Worker
}

// NewWorkerCollector creates a collector over the given worker.
func NewWorkerCollector(worker *periodic.Worker) *WorkerCollector {
	return &WorkerCollector{worker: worker}
}

// Describe implements prometheus.Collector.
func (c *WorkerCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- runsDesc
	ch <- failuresDesc
	ch <- successesDesc
	ch <- elapsedDesc
	ch <- elapsedWaitingDesc
	ch <- spacingDesc
}

// Collect implements prometheus.Collector.
func (c *WorkerCollector) Collect(ch chan<- prometheus.Metric) {
	for _, cm := range c.worker.MetricsSnapshot() {
		ch <- prometheus.MustNewConstMetric(
			runsDesc, prometheus.CounterValue, float64(cm.Runs), cm.Name)
		ch <- prometheus.MustNewConstMetric(
			failuresDesc, prometheus.CounterValue, float64(cm.Failures), cm.Name)
		ch <- prometheus.MustNewConstMetric(
			successesDesc, prometheus.CounterValue, float64(cm.Successes), cm.Name)
		ch <- prometheus.MustNewConstMetric(
			elapsedDesc, prometheus.CounterValue, cm.Elapsed.Seconds(), cm.Name)
		ch <- prometheus.MustNewConstMetric(
			elapsedWaitingDesc, prometheus.CounterValue, cm.ElapsedWaiting.Seconds(), cm.Name)
		ch <- prometheus.MustNewConstMetric(
			spacingDesc, prometheus.GaugeValue, cm.Spacing.Seconds(), cm.Name)
	}
}

// Handler returns an HTTP handler serving the given registry.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}

// NewRegistry creates a registry with the worker collector registered.
func NewRegistry(worker *periodic.Worker) (*prometheus.Registry, error) {
	reg := prometheus.NewRegistry()
	if err := reg.Register(NewWorkerCollector(worker)); err != nil {
		return nil, err
	}
	return reg, nil
}
