package goalgraph

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dan-solli/goalgraph/pkg/store"
)

// captureHandler is a slog.Handler that captures log records for test assertions
type captureHandler struct {
	records []slog.Record
	mu      sync.Mutex
}

func newCaptureHandler() *captureHandler {
	return &captureHandler{
		records: make([]slog.Record, 0),
	}
}

func (h *captureHandler) Enabled(_ context.Context, _ slog.Level) bool {
	return true
}

func (h *captureHandler) Handle(_ context.Context, r slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.records = append(h.records, r.Clone())
	return nil
}

func (h *captureHandler) WithAttrs(_ []slog.Attr) slog.Handler {
	return h
}

func (h *captureHandler) WithGroup(_ string) slog.Handler {
	return h
}

func (h *captureHandler) getRecords() []slog.Record {
	h.mu.Lock()
	defer h.mu.Unlock()
	result := make([]slog.Record, len(h.records))
	copy(result, h.records)
	return result
}

func attrsOf(r slog.Record) map[string]string {
	attrs := make(map[string]string)
	r.Attrs(func(a slog.Attr) bool {
		attrs[a.Key] = a.Value.String()
		return true
	})
	return attrs
}

// TestLogger_NilSafe verifies operations run with no logger configured
func TestLogger_NilSafe(t *testing.T) {
	g := newTestGraph(t, store.BackendFile)
	ctx := context.Background()

	goal, err := g.CreateGoal(ctx, goalInput("quiet"))
	require.NoError(t, err)
	_, err = g.SetProgress(ctx, goal.ID, 0.5)
	require.NoError(t, err)
	_, err = g.RebuildIndex(ctx)
	require.NoError(t, err)
}

// TestLogger_OperationFinished verifies each operation logs ids and timing but no goal text
func TestLogger_OperationFinished(t *testing.T) {
	handler := newCaptureHandler()
	g := newTestGraph(t, store.BackendFile, func(c *Config) { c.Logger = slog.New(handler) })
	ctx := context.Background()

	goal, err := g.CreateGoal(ctx, goalInput("Secret roadmap item"))
	require.NoError(t, err)

	var finished []map[string]string
	for _, r := range handler.getRecords() {
		assert.NotContains(t, r.Message, "Secret")
		attrs := attrsOf(r)
		for _, v := range attrs {
			assert.False(t, strings.Contains(v, "Secret"), "goal text leaked into logs")
		}
		if r.Message == "operation finished" {
			finished = append(finished, attrs)
		}
	}

	require.Len(t, finished, 1)
	assert.Equal(t, "create_goal", finished[0]["operation"])
	assert.Equal(t, "success", finished[0]["status"])
	assert.Equal(t, goal.ID, finished[0]["goal_id"])
	assert.Contains(t, finished[0], "duration_ms")
	assert.Contains(t, finished[0], "snapshot_id")
}

// TestLogger_ErrorType verifies failures carry their classification
func TestLogger_ErrorType(t *testing.T) {
	handler := newCaptureHandler()
	g := newTestGraph(t, store.BackendFile, func(c *Config) { c.Logger = slog.New(handler) })

	_, err := g.SetProgress(context.Background(), "goal_missing", 0.5)
	require.Error(t, err)

	records := handler.getRecords()
	require.NotEmpty(t, records)
	last := attrsOf(records[len(records)-1])
	assert.Equal(t, "error", last["status"])
	assert.Equal(t, ErrTypeNotFound, last["error_type"])
}
