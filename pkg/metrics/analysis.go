// Package metrics provides Prometheus collectors for the sinus analysis pipeline.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"sinusct/pkg/failure"
)

// AnalysisMetrics contains the Prometheus metrics of the analysis orchestrator.
type AnalysisMetrics struct {
	AnalysesTotal  *prometheus.CounterVec
	RegionFailures *prometheus.CounterVec
	StageDuration  *prometheus.HistogramVec
	CystsDetected  prometheus.Counter
	ActiveAnalyses prometheus.Gauge
}

// NewAnalysisMetrics creates the metrics and registers them on registry.
func NewAnalysisMetrics(registry prometheus.Registerer) (*AnalysisMetrics, error) {
	m := &AnalysisMetrics{}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register analysis metrics: %w", err)
	}
	return m, nil
}

func (m *AnalysisMetrics) initMetrics() {
	m.AnalysesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sinusct_analyses_total",
			Help: "Total number of volume analyses partitioned by outcome.",
		},
		[]string{"status"},
	)

	m.RegionFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sinusct_region_failures_total",
			Help: "Per-region measurements that could not be computed.",
		},
		[]string{"metric", "kind"},
	)

	m.StageDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sinusct_stage_duration_seconds",
			Help:    "Time taken by each analysis stage",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 14), // 1ms to ~8s
		},
		[]string{"stage"},
	)

	m.CystsDetected = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "sinusct_cysts_detected_total",
			Help: "Total number of retention cysts detected.",
		},
	)

	m.ActiveAnalyses = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "sinusct_active_analyses",
			Help: "Number of analyses currently running",
		},
	)
}

// RecordAnalysis counts a finished analysis.
func (m *AnalysisMetrics) RecordAnalysis(err error) {
	if err != nil {
		m.AnalysesTotal.WithLabelValues("error").Inc()
		return
	}
	m.AnalysesTotal.WithLabelValues("success").Inc()
}

// RecordStage observes the duration of one stage.
func (m *AnalysisMetrics) RecordStage(stage string, durationSeconds float64) {
	m.StageDuration.WithLabelValues(stage).Observe(durationSeconds)
}

// RecordRegionFailure counts a measurement reported as not computed.
func (m *AnalysisMetrics) RecordRegionFailure(metric string, err error) {
	m.RegionFailures.WithLabelValues(metric, categorizeError(err)).Inc()
}

// AddCysts counts detected cysts.
func (m *AnalysisMetrics) AddCysts(n int) {
	m.CystsDetected.Add(float64(n))
}

// categorizeError returns the failure kind of err, or "unknown"
func categorizeError(err error) string {
	if err == nil {
		return "none"
	}
	if kind, ok := failure.KindOf(err); ok {
		return string(kind)
	}
	return "unknown"
}

// Describe implements the prometheus.Collector interface.
func (m *AnalysisMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.AnalysesTotal.Describe(ch)
	m.RegionFailures.Describe(ch)
	m.StageDuration.Describe(ch)
	ch <- m.CystsDetected.Desc()
	ch <- m.ActiveAnalyses.Desc()
}

// Collect implements the prometheus.Collector interface.
func (m *AnalysisMetrics) Collect(ch chan<- prometheus.Metric) {
	m.AnalysesTotal.Collect(ch)
	m.RegionFailures.Collect(ch)
	m.StageDuration.Collect(ch)
	ch <- m.CystsDetected
	ch <- m.ActiveAnalyses
}
