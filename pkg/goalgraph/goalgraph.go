// Package goalgraph is the entry point to a goal store: it wires the record
// store, versioning, the derived index and queries together behind
// operations that each leave the store consistent.
//
// Every mutating operation runs under the store's advisory lock, persists
// its goal and any snapshot it produced, keeps project membership in step
// and rebuilds the index before the lock is released.
package goalgraph

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dan-solli/goalgraph/pkg/index"
	"github.com/dan-solli/goalgraph/pkg/metrics"
	"github.com/dan-solli/goalgraph/pkg/query"
	"github.com/dan-solli/goalgraph/pkg/store"
	"github.com/dan-solli/goalgraph/pkg/trace"
	"github.com/dan-solli/goalgraph/pkg/versioning"
)

// Config holds configuration for a Goalgraph.
type Config struct {
	// Root is the store directory (default: $GOALGRAPH_ROOT, else ~/.goalgraph)
	Root string

	// Backend selects record storage: "file" (default) or "sqlite"
	Backend store.Backend

	// DBPath is the SQLite database path (default: <Root>/goalgraph.db)
	DBPath string

	// BranchCollision decides what happens when two branch names slugify to
	// the same id (default: fail)
	BranchCollision versioning.CollisionPolicy

	// LockTimeout bounds the wait for the store lock (default: 5s)
	LockTimeout time.Duration

	// Actor is recorded as creator/editor on records (default: $USER)
	Actor string

	// TracePath enables JSONL operation traces when Exporter is nil
	TracePath string

	// Logger receives structured logs. Nil discards them.
	Logger *slog.Logger

	// Metrics receives operation metrics. Nil disables metrics.
	Metrics metrics.Collector

	// Exporter receives one trace record per mutating operation.
	// Nil uses TracePath, or disables tracing when that is empty too.
	Exporter trace.Exporter
}

// Goalgraph is the main entry point for the goal store.
type Goalgraph struct {
	config   Config
	store    store.Store
	lock     *store.FileLock
	mu       sync.Mutex
	index    *index.Manager
	query    *query.Engine
	logger   *slog.Logger
	metrics  metrics.Collector
	exporter trace.Exporter

	ownsExporter bool
}

// DefaultRoot returns $GOALGRAPH_ROOT, falling back to ~/.goalgraph.
func DefaultRoot() string {
	if root := os.Getenv("GOALGRAPH_ROOT"); root != "" {
		return root
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".goalgraph"
	}
	return filepath.Join(home, ".goalgraph")
}

// New opens the store described by cfg.
func New(cfg Config) (*Goalgraph, error) {
	// Apply defaults
	if cfg.Root == "" {
		cfg.Root = DefaultRoot()
	}
	if cfg.Backend == "" {
		cfg.Backend = store.BackendFile
	}
	policy, err := versioning.ParseCollisionPolicy(string(cfg.BranchCollision))
	if err != nil {
		return nil, err
	}
	cfg.BranchCollision = policy
	if cfg.LockTimeout == 0 {
		cfg.LockTimeout = 5 * time.Second
	}
	if cfg.Actor == "" {
		cfg.Actor = os.Getenv("USER")
	}
	if cfg.Actor == "" {
		cfg.Actor = "unknown"
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.NewNoopCollector()
	}

	ownsExporter := false
	if cfg.Exporter == nil {
		exporter, err := trace.NewFileExporter(cfg.TracePath, trace.Options{})
		if err != nil {
			return nil, fmt.Errorf("failed to open trace file: %w", err)
		}
		cfg.Exporter = exporter
		ownsExporter = true
	}

	st, err := store.Open(store.Options{Root: cfg.Root, Backend: cfg.Backend, DBPath: cfg.DBPath})
	if err != nil {
		if ownsExporter {
			cfg.Exporter.Close()
		}
		return nil, fmt.Errorf("failed to open store: %w", err)
	}

	mgr := index.NewManager(st, cfg.Logger)
	return &Goalgraph{
		config:       cfg,
		store:        st,
		lock:         store.NewFileLock(cfg.Root),
		index:        mgr,
		query:        query.NewEngine(mgr),
		logger:       cfg.Logger,
		metrics:      cfg.Metrics,
		exporter:     cfg.Exporter,
		ownsExporter: ownsExporter,
	}, nil
}

// Config returns the effective configuration after defaults.
func (g *Goalgraph) Config() Config {
	return g.config
}

// Store exposes the underlying record store for read-only inspection.
func (g *Goalgraph) Store() store.Store {
	return g.store
}

// Query returns the query engine over the current index.
func (g *Goalgraph) Query() *query.Engine {
	return g.query
}

// Close releases the store and any trace file this Goalgraph opened.
func (g *Goalgraph) Close() error {
	var errs []error
	if err := g.store.Close(); err != nil {
		errs = append(errs, err)
	}
	if g.ownsExporter {
		if err := g.exporter.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// mutate runs fn under the store lock and reports the operation to logs,
// metrics and the trace exporter. The lock is released on every path.
func (g *Goalgraph) mutate(ctx context.Context, operation string, fn func(ctx context.Context, tr *OperationTrace) error) error {
	start := time.Now()
	tr := newTrace(operation)

	g.mu.Lock()
	defer g.mu.Unlock()

	g.logger.Debug("operation started", "operation", operation)

	lockTimer := newSpanTimer("lock", tr)
	err := g.lock.Acquire(ctx, g.config.LockTimeout)
	lockTimer.finish(err, nil)
	if err == nil {
		err = fn(ctx, tr)
		if rerr := g.lock.Release(); rerr != nil {
			g.logger.Warn("failed to release store lock", "error", rerr)
		}
	}

	g.report(ctx, tr, start, err)
	return err
}

func (g *Goalgraph) report(ctx context.Context, tr *OperationTrace, start time.Time, err error) {
	tr.TotalDurationMs = time.Since(start).Milliseconds()

	status := "success"
	errType := ""
	if err != nil {
		status = "error"
		errType = ClassifyError(err)
		g.metrics.RecordError(ctx, tr.Operation, errType)
	}
	g.metrics.RecordOperation(ctx, tr.Operation, status, tr.TotalDurationMs)
	for _, span := range tr.Spans {
		g.metrics.RecordStage(ctx, tr.Operation, span.Name, span.DurationMs)
	}

	record := &trace.TraceRecord{
		Timestamp:   start.UTC(),
		OperationID: uuid.NewString(),
		Operation:   tr.Operation,
		DurationMs:  tr.TotalDurationMs,
		Status:      status,
		ErrorType:   errType,
		IDs:         tr.IDs,
		Spans:       make([]trace.SpanRecord, 0, len(tr.Spans)),
	}
	for _, span := range tr.Spans {
		sr := trace.SpanRecord{Name: span.Name, DurationMs: span.DurationMs, OK: span.OK, Counters: span.Counters}
		if !span.OK {
			sr.ErrorType = span.ErrorType
		}
		record.Spans = append(record.Spans, sr)
	}
	if xerr := g.exporter.Export(ctx, record); xerr != nil {
		g.logger.Warn("failed to export trace", "operation", tr.Operation, "error", xerr)
	}

	attrs := []any{"operation", tr.Operation, "status", status, "duration_ms", tr.TotalDurationMs}
	for _, key := range sortedKeys(tr.IDs) {
		attrs = append(attrs, key+"_id", tr.IDs[key])
	}
	if err != nil {
		attrs = append(attrs, "error_type", errType)
	}
	g.logger.Debug("operation finished", attrs...)
}
