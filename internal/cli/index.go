package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/dan-solli/goalgraph/pkg/goalgraph"
	"github.com/dan-solli/goalgraph/pkg/model"
)

func indexCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "index",
		Short: "Maintain the derived goal index",
	}

	rebuild := &cobra.Command{
		Use:   "rebuild",
		Short: "Rebuild the index from the goal records",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withGraph(func(ctx context.Context, g *goalgraph.Goalgraph) error {
				idx, err := g.RebuildIndex(ctx)
				if err != nil {
					return fmt.Errorf("failed to rebuild index: %w", err)
				}
				return a.printIndexSummary(idx)
			})
		},
	}

	show := &cobra.Command{
		Use:   "show",
		Short: "Show the index",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withGraph(func(ctx context.Context, g *goalgraph.Goalgraph) error {
				idx, err := g.Index(ctx)
				if err != nil {
					return fmt.Errorf("failed to load index: %w", err)
				}
				return a.printIndexSummary(idx)
			})
		},
	}

	watch := &cobra.Command{
		Use:   "watch",
		Short: "Rebuild the index whenever goal files change",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			debounce, _ := cmd.Flags().GetDuration("debounce")
			g, err := a.open()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			a.printf("Watching %s (Ctrl-C to stop)\n", g.Config().Root)
			return g.Watch(ctx, debounce)
		},
	}
	watch.Flags().Duration("debounce", 500*time.Millisecond, "quiet period before rebuilding")

	cmd.AddCommand(rebuild, show, watch)
	return cmd
}

func (a *app) printIndexSummary(idx *model.Index) error {
	if ok, err := a.emit(idx); ok {
		return err
	}
	a.printf("Index generated %s\n", stamp(idx.Generated))
	a.printf("Goals: %d  Edges: %d\n", len(idx.Goals), len(idx.Edges))
	for _, status := range model.Statuses {
		if ids := idx.ByStatus[string(status)]; len(ids) > 0 {
			a.printf("  %-10s %d\n", statusLabel(status), len(ids))
		}
	}
	return nil
}
