package index

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/dan-solli/goalgraph/pkg/model"
	"github.com/dan-solli/goalgraph/pkg/store"
)

// Source is the part of the record store the index is built from and kept in.
type Source interface {
	store.GoalStore
	store.IndexStore
}

// Manager serves the stored index and rebuilds it on request.
type Manager struct {
	src    Source
	logger *slog.Logger
	now    func() time.Time
}

// NewManager creates a manager over src. A nil logger discards output.
func NewManager(src Source, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Manager{src: src, logger: logger, now: model.Now}
}

// Get returns the stored index, building and persisting it first when none
// exists. A stored index is returned as-is even if goals changed since it was
// written; mutation paths call Rebuild. An unreadable or foreign-version
// index is replaced.
func (m *Manager) Get(ctx context.Context) (*model.Index, error) {
	idx, err := m.src.LoadIndex(ctx)
	if err == nil && idx != nil {
		return idx, nil
	}
	if err != nil {
		var schemaErr *model.SchemaError
		var storageErr *model.StorageError
		if !errors.As(err, &schemaErr) && !errors.As(err, &storageErr) {
			return nil, err
		}
		m.logger.Warn("stored index unusable, rebuilding", "error", err)
	}
	return m.Rebuild(ctx)
}

// Rebuild reads every goal, active and archived, builds a fresh index and
// replaces the stored one. On failure the previous index is left in place.
func (m *Manager) Rebuild(ctx context.Context) (*model.Index, error) {
	start := time.Now()

	all, err := m.src.ListGoals(ctx, true)
	if err != nil {
		return nil, fmt.Errorf("failed to list goals: %w", err)
	}
	active, err := m.src.ListGoals(ctx, false)
	if err != nil {
		return nil, fmt.Errorf("failed to list active goals: %w", err)
	}
	isActive := make(map[string]bool, len(active))
	for _, id := range active {
		isActive[id] = true
	}

	goals := make([]*model.Goal, 0, len(all))
	archived := make(map[string]bool)
	for _, id := range all {
		g, err := m.src.LoadGoal(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("failed to load goal %s: %w", id, err)
		}
		if g == nil {
			continue
		}
		goals = append(goals, g)
		if !isActive[id] {
			archived[id] = true
		}
	}

	idx := Build(goals, archived, m.now())
	if err := m.src.SaveIndex(ctx, idx); err != nil {
		return nil, fmt.Errorf("failed to save index: %w", err)
	}

	m.logger.Debug("index rebuilt",
		"goals", len(idx.Goals),
		"edges", len(idx.Edges),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return idx, nil
}
