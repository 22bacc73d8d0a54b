package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dan-solli/goalgraph/pkg/goalgraph"
)

func branchCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "branch",
		Short: "Explore alternative approaches to a goal",
	}

	create := &cobra.Command{
		Use:   "create <goal-id> <name>",
		Short: "Fork a branch from the goal's current branch",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			description, _ := cmd.Flags().GetString("description")
			switchTo, _ := cmd.Flags().GetBool("switch")
			return a.withGraph(func(ctx context.Context, g *goalgraph.Goalgraph) error {
				b, err := g.CreateBranch(ctx, args[0], goalgraph.BranchOptions{
					Name:        args[1],
					Description: description,
					Switch:      switchTo,
				})
				if err != nil {
					return fmt.Errorf("failed to create branch: %w", err)
				}
				if ok, err := a.emit(b); ok {
					return err
				}
				a.println(check(fmt.Sprintf("Created branch %s from %s", b.ID, b.ParentBranch)))
				return nil
			})
		},
	}
	create.Flags().String("description", "", "what this branch explores")
	create.Flags().Bool("switch", false, "make the new branch current")

	switchCmd := &cobra.Command{
		Use:   "switch <goal-id> <branch-id>",
		Short: "Make a branch current",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withGraph(func(ctx context.Context, g *goalgraph.Goalgraph) error {
				goal, err := g.SwitchBranch(ctx, args[0], args[1])
				if err != nil {
					return fmt.Errorf("failed to switch branch: %w", err)
				}
				a.println(check(fmt.Sprintf("%s is on %s", goal.ID, goal.CurrentBranch())))
				return nil
			})
		},
	}

	abandon := &cobra.Command{
		Use:   "abandon <goal-id> <branch-id>",
		Short: "Close a branch without merging it",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			reason, _ := cmd.Flags().GetString("reason")
			return a.withGraph(func(ctx context.Context, g *goalgraph.Goalgraph) error {
				b, err := g.AbandonBranch(ctx, args[0], args[1], reason)
				if err != nil {
					return fmt.Errorf("failed to abandon branch: %w", err)
				}
				a.println(check(fmt.Sprintf("Abandoned branch %s", b.ID)))
				return nil
			})
		},
	}
	abandon.Flags().String("reason", "", "why the approach was dropped")

	merge := &cobra.Command{
		Use:   "merge <goal-id> <branch-id>",
		Short: "Merge a branch into its parent branch",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			into, _ := cmd.Flags().GetString("into")
			return a.withGraph(func(ctx context.Context, g *goalgraph.Goalgraph) error {
				b, err := g.MergeBranch(ctx, args[0], args[1], into)
				if err != nil {
					return fmt.Errorf("failed to merge branch: %w", err)
				}
				if ok, err := a.emit(b); ok {
					return err
				}
				a.println(check(fmt.Sprintf("Merged %s into %s (%s)", b.ID, b.MergedTo, b.MergeSnapshot)))
				return nil
			})
		},
	}
	merge.Flags().String("into", "", "target branch id (default: the branch's parent)")

	list := &cobra.Command{
		Use:   "list <goal-id>",
		Short: "List a goal's branches",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withGraph(func(ctx context.Context, g *goalgraph.Goalgraph) error {
				branches, err := g.ListBranches(ctx, args[0])
				if err != nil {
					return fmt.Errorf("failed to list branches: %w", err)
				}
				goal, err := g.GetGoal(ctx, args[0])
				if err != nil {
					return fmt.Errorf("failed to load goal: %w", err)
				}
				current := ""
				if goal != nil {
					current = goal.CurrentBranch()
				}
				return a.printBranches(branches, current)
			})
		},
	}

	cmd.AddCommand(create, switchCmd, abandon, merge, list)
	return cmd
}
