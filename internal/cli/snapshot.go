package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dan-solli/goalgraph/pkg/goalgraph"
	"github.com/dan-solli/goalgraph/pkg/model"
)

func snapshotCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Record and inspect goal history",
	}

	create := &cobra.Command{
		Use:   "create <goal-id>",
		Short: "Record a manual snapshot of a goal",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			event, _ := cmd.Flags().GetString("event")
			summary, _ := cmd.Flags().GetString("summary")
			return a.withGraph(func(ctx context.Context, g *goalgraph.Goalgraph) error {
				snap, err := g.Snapshot(ctx, args[0], event, summary)
				if err != nil {
					return fmt.Errorf("failed to create snapshot: %w", err)
				}
				if ok, err := a.emit(snap); ok {
					return err
				}
				a.println(check(fmt.Sprintf("Created snapshot %s on %s", snap.ID, snap.Branch)))
				return nil
			})
		},
	}
	create.Flags().String("event", "checkpoint", "short event name")
	create.Flags().String("summary", "", "what happened")

	list := &cobra.Command{
		Use:   "list <goal-id>",
		Short: "Show a goal's history, oldest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withGraph(func(ctx context.Context, g *goalgraph.Goalgraph) error {
				snaps, err := g.History(ctx, args[0])
				if err != nil {
					return fmt.Errorf("failed to load history: %w", err)
				}
				return a.printSnapshots(snaps)
			})
		},
	}

	show := &cobra.Command{
		Use:   "show <goal-id> <snapshot-id>",
		Short: "Show one snapshot",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withGraph(func(ctx context.Context, g *goalgraph.Goalgraph) error {
				snap, err := g.Store().LoadSnapshot(ctx, args[0], args[1])
				if err != nil {
					return fmt.Errorf("failed to load snapshot: %w", err)
				}
				if snap == nil {
					return &model.NotFoundError{Kind: "snapshot", ID: args[1]}
				}
				if ok, err := a.emit(snap); ok {
					return err
				}
				if err := a.printSnapshots([]*model.Snapshot{snap}); err != nil {
					return err
				}
				a.printf("\nCurrent: %s\nDesired: %s\nStatus: %s\n", snap.CurrentState, snap.DesiredState, statusLabel(snap.Status))
				if snap.PreviousSnapshot != "" {
					a.printf("Previous: %s\n", snap.PreviousSnapshot)
				}
				return nil
			})
		},
	}

	cmd.AddCommand(create, list, show)
	return cmd
}
