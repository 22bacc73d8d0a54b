// Package metrics records operation counts and durations for goalgraph.
package metrics

import "context"

// Collector is the interface for metrics collection.
// Implementations include the Prometheus-backed collector and the no-op
// collector used when no metrics sink is configured.
type Collector interface {
	RecordOperation(ctx context.Context, operation string, status string, durationMs int64)
	RecordStage(ctx context.Context, operation string, stage string, durationMs int64)
	RecordError(ctx context.Context, operation string, errorType string)
	RecordSnapshot(ctx context.Context, trigger string)
	SetGoalCount(ctx context.Context, status string, count int64)
}
