package goalgraph

import (
	"sort"
	"time"
)

// OperationTrace captures timing data for one mutating operation.
type OperationTrace struct {
	// Operation is the stable operation name, e.g. "create_goal"
	Operation string `json:"operation"`

	// IDs holds the identifiers the operation touched, keyed by kind
	IDs map[string]string `json:"ids,omitempty"`

	// Spans contains timing data for each stage of the operation
	Spans []Span `json:"spans"`

	// TotalDurationMs is the total elapsed time for the operation in milliseconds
	TotalDurationMs int64 `json:"total_duration_ms"`
}

// Span represents a single timed stage within an operation.
// Stage names are stable:
//   - "lock": waiting for the store lock
//   - "load": reading records
//   - "snapshot": writing a snapshot and its branch list
//   - "persist": writing goal, branch and session records
//   - "project": syncing project membership
//   - "index": rebuilding the index
type Span struct {
	// Name identifies the operation stage
	Name string `json:"name"`

	// DurationMs is the elapsed time for this span in milliseconds
	DurationMs int64 `json:"duration_ms"`

	// OK indicates whether the span completed successfully
	OK bool `json:"ok"`

	// ErrorType classifies the error if OK is false
	ErrorType string `json:"error_type,omitempty"`

	// Counters provides additional metrics for the span (optional)
	// Example keys: "goals", "edges", "files"
	Counters map[string]int64 `json:"counters,omitempty"`
}

func newTrace(operation string) *OperationTrace {
	return &OperationTrace{
		Operation: operation,
		IDs:       make(map[string]string),
		Spans:     make([]Span, 0),
	}
}

// setID records an identifier touched by the operation.
func (t *OperationTrace) setID(kind, id string) {
	if id != "" {
		t.IDs[kind] = id
	}
}

func (t *OperationTrace) addSpan(span Span) {
	t.Spans = append(t.Spans, span)
}

// spanTimer is a helper for measuring span duration
type spanTimer struct {
	name  string
	start time.Time
	trace *OperationTrace
}

func newSpanTimer(name string, trace *OperationTrace) *spanTimer {
	return &spanTimer{name: name, start: time.Now(), trace: trace}
}

// finish completes the span and records it to the trace
func (st *spanTimer) finish(err error, counters map[string]int64) {
	if st.trace == nil {
		return
	}
	span := Span{
		Name:       st.name,
		DurationMs: time.Since(st.start).Milliseconds(),
		OK:         err == nil,
		Counters:   counters,
	}
	if err != nil {
		span.ErrorType = ClassifyError(err)
	}
	st.trace.addSpan(span)
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
