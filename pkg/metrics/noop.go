package metrics

import "context"

// NoopCollector discards everything. It is the default when no collector is configured.
type NoopCollector struct{}

// NewNoopCollector returns a collector that records nothing.
func NewNoopCollector() *NoopCollector {
	return &NoopCollector{}
}

func (*NoopCollector) RecordOperation(context.Context, string, string, int64) {}
func (*NoopCollector) RecordStage(context.Context, string, string, int64)     {}
func (*NoopCollector) RecordError(context.Context, string, string)            {}
func (*NoopCollector) RecordSnapshot(context.Context, string)                 {}
func (*NoopCollector) SetGoalCount(context.Context, string, int64)            {}
