package goalgraph

import (
	"context"
	"time"

	"github.com/dan-solli/goalgraph/pkg/index"
	"github.com/dan-solli/goalgraph/pkg/model"
	"github.com/dan-solli/goalgraph/pkg/store"
)

// Index returns the stored index, building it if there is none.
func (g *Goalgraph) Index(ctx context.Context) (*model.Index, error) {
	return g.index.Get(ctx)
}

// RebuildIndex rebuilds the index from every stored goal.
func (g *Goalgraph) RebuildIndex(ctx context.Context) (*model.Index, error) {
	err := g.mutate(ctx, "rebuild_index", func(ctx context.Context, tr *OperationTrace) error {
		return g.reindex(ctx, tr)
	})
	if err != nil {
		return nil, err
	}
	return g.index.Get(ctx)
}

// Watch rebuilds the index whenever goal documents are edited on disk, until
// ctx is done. Only the file backend keeps goals on disk.
func (g *Goalgraph) Watch(ctx context.Context, debounce time.Duration) error {
	if g.config.Backend != store.BackendFile {
		return &model.ValidationError{Field: "backend", Reason: "index watch requires the file backend"}
	}
	w, err := index.NewWatcher(g.config.Root, func(ctx context.Context) error {
		_, err := g.RebuildIndex(ctx)
		return err
	}, index.WatcherOptions{Debounce: debounce, Logger: g.logger})
	if err != nil {
		return err
	}
	g.logger.Info("watching goal documents", "root", g.config.Root)
	return w.Run(ctx)
}
