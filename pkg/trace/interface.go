// Package trace exports one record per goalgraph operation: its stages,
// timings and the ids it touched. Records never carry goal text.
package trace

import (
	"context"
	"time"
)

// Exporter receives finished operation records. Implementations must be
// safe for concurrent use.
type Exporter interface {
	Export(ctx context.Context, record *TraceRecord) error
	Close() error
}

// TraceRecord describes one facade operation.
type TraceRecord struct {
	Timestamp   time.Time `json:"timestamp"`
	OperationID string    `json:"operation_id"`
	// Operation is the facade operation: create_goal, merge_branch, end_session, ...
	Operation  string `json:"operation"`
	DurationMs int64  `json:"duration_ms"`
	// Status is "success" or "error".
	Status string `json:"status"`
	// ErrorType is set when Status is "error"; see goalgraph.ClassifyError.
	ErrorType string `json:"error_type,omitempty"`
	// IDs maps an entity kind (goal, snapshot, branch, project, session) to its id.
	IDs   map[string]string `json:"ids,omitempty"`
	Spans []SpanRecord      `json:"spans"`
}

// SpanRecord is one stage of an operation: lock, load, snapshot, persist,
// project or index.
type SpanRecord struct {
	Name       string           `json:"name"`
	DurationMs int64            `json:"duration_ms"`
	OK         bool             `json:"ok"`
	ErrorType  string           `json:"error_type,omitempty"`
	Counters   map[string]int64 `json:"counters,omitempty"`
}
