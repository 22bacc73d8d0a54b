package metrics

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "goalgraph"

var durationBuckets = []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0, 5.0}

// MetricsCollector records goalgraph operations in its own Prometheus
// registry, so several stores in one process never collide.
type MetricsCollector struct {
	registry *prometheus.Registry

	operationsTotal   *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
	stageDuration     *prometheus.HistogramVec
	errorsTotal       *prometheus.CounterVec
	snapshotsTotal    *prometheus.CounterVec
	goalCount         *prometheus.GaugeVec
}

// NewCollector creates a collector with a fresh registry.
func NewCollector() *MetricsCollector {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &MetricsCollector{
		registry: reg,
		operationsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_total",
			Help:      "Facade operations by name and outcome.",
		}, []string{"operation", "status"}),
		operationDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_duration_seconds",
			Help:      "End-to-end duration of facade operations, lock wait included.",
			Buckets:   durationBuckets,
		}, []string{"operation"}),
		stageDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Duration of one stage (lock, load, snapshot, persist, project, index) of an operation.",
			Buckets:   durationBuckets,
		}, []string{"operation", "stage"}),
		errorsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "errors_total",
			Help:      "Failed facade operations by error class.",
		}, []string{"operation", "error_type"}),
		snapshotsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "snapshots_total",
			Help:      "Snapshots persisted, by trigger.",
		}, []string{"trigger"}),
		goalCount: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "goals",
			Help:      "Goals per status as of the last index rebuild.",
		}, []string{"status"}),
	}
}

func seconds(ms int64) float64 { return float64(ms) / 1000 }

func (m *MetricsCollector) RecordOperation(_ context.Context, operation, status string, durationMs int64) {
	m.operationsTotal.WithLabelValues(operation, status).Inc()
	m.operationDuration.WithLabelValues(operation).Observe(seconds(durationMs))
}

func (m *MetricsCollector) RecordStage(_ context.Context, operation, stage string, durationMs int64) {
	m.stageDuration.WithLabelValues(operation, stage).Observe(seconds(durationMs))
}

func (m *MetricsCollector) RecordError(_ context.Context, operation, errorType string) {
	m.errorsTotal.WithLabelValues(operation, errorType).Inc()
}

func (m *MetricsCollector) RecordSnapshot(_ context.Context, trigger string) {
	m.snapshotsTotal.WithLabelValues(trigger).Inc()
}

func (m *MetricsCollector) SetGoalCount(_ context.Context, status string, count int64) {
	m.goalCount.WithLabelValues(status).Set(float64(count))
}

// Registry exposes the collector's registry, e.g. for promhttp.
func (m *MetricsCollector) Registry() *prometheus.Registry {
	return m.registry
}

// WriteToTextfile writes every metric to path in the text exposition format
// for a node exporter textfile collector. CLI runs end before any scrape.
func (m *MetricsCollector) WriteToTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("failed to write metrics to %s: %w", path, err)
	}
	return nil
}
