package cli

import (
	"context"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/dan-solli/goalgraph/pkg/goalgraph"
	"github.com/dan-solli/goalgraph/pkg/model"
	"github.com/dan-solli/goalgraph/pkg/query"
)

func queryCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "query",
		Short: "Answer questions from the goal index",
	}

	cmd.AddCommand(idQuery(a, "status <status>", "Goals with a status", func(q *query.Engine, ctx context.Context, arg string) ([]string, error) {
		status := model.Status(arg)
		if !status.Valid() {
			return nil, &model.ValidationError{Field: "status", Reason: "unknown status " + arg}
		}
		return q.ByStatus(ctx, status)
	}))
	cmd.AddCommand(idQuery(a, "project <project-id>", "Goals in a project", (*query.Engine).ByProject))
	cmd.AddCommand(idQuery(a, "children <goal-id>", "Direct children of a goal", (*query.Engine).ChildrenOf))
	cmd.AddCommand(idQuery(a, "ancestors <goal-id>", "Parent chain of a goal, nearest first", (*query.Engine).AncestorsOf))
	cmd.AddCommand(idQuery(a, "descendants <goal-id>", "Every goal below a goal", (*query.Engine).DescendantsOf))
	cmd.AddCommand(idQuery(a, "search <text>", "Goals whose title contains text", (*query.Engine).Search))
	cmd.AddCommand(idQuery(a, "parent <goal-id>", "Parent of a goal", func(q *query.Engine, ctx context.Context, id string) ([]string, error) {
		parent, err := q.ParentOf(ctx, id)
		if err != nil || parent == "" {
			return nil, err
		}
		return []string{parent}, nil
	}))
	cmd.AddCommand(queryTagCmd(a))
	cmd.AddCommand(queryStatsCmd(a))
	cmd.AddCommand(queryWhereCmd(a))
	return cmd
}

func idQuery(a *app, use, short string, fn func(*query.Engine, context.Context, string) ([]string, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withGraph(func(ctx context.Context, g *goalgraph.Goalgraph) error {
				ids, err := fn(g.Query(), ctx, args[0])
				if err != nil {
					return fmt.Errorf("query %s failed: %w", cmd.Name(), err)
				}
				entries, err := g.Query().Entries(ctx, ids)
				if err != nil {
					return fmt.Errorf("query %s failed: %w", cmd.Name(), err)
				}
				return a.printEntries(entries)
			})
		},
	}
}

func queryTagCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "tag <tag>...",
		Short: "Goals carrying every given tag",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withGraph(func(ctx context.Context, g *goalgraph.Goalgraph) error {
				ids, err := g.Query().ByTags(ctx, args)
				if err != nil {
					return fmt.Errorf("query tag failed: %w", err)
				}
				entries, err := g.Query().Entries(ctx, ids)
				if err != nil {
					return fmt.Errorf("query tag failed: %w", err)
				}
				return a.printEntries(entries)
			})
		},
	}
}

func queryStatsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Count goals by status and project",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withGraph(func(ctx context.Context, g *goalgraph.Goalgraph) error {
				stats, err := g.Query().Stats(ctx)
				if err != nil {
					return fmt.Errorf("query stats failed: %w", err)
				}
				if ok, err := a.emit(stats); ok {
					return err
				}
				a.printf("Total: %d  Archived: %d\n", stats.Total, stats.Archived)
				for _, status := range model.Statuses {
					if n := stats.ByStatus[string(status)]; n > 0 {
						a.printf("  %-10s %d\n", statusLabel(status), n)
					}
				}
				projects := make([]string, 0, len(stats.ByProject))
				for p := range stats.ByProject {
					projects = append(projects, p)
				}
				sort.Strings(projects)
				for _, p := range projects {
					a.printf("  %-28s %d\n", p, stats.ByProject[p])
				}
				return nil
			})
		},
	}
}

func queryWhereCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "where <expression>",
		Short: "Goals matching a filter expression",
		Long: `Evaluate a boolean expression against every indexed goal.

Available fields: id, title, status, progress, priority, project, tags,
parent, children, branch, archived, updated.

Example:
  goalgraph query where 'status == "active" && progress > 0.5 && "api" in tags'`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withGraph(func(ctx context.Context, g *goalgraph.Goalgraph) error {
				entries, err := g.Query().Where(ctx, args[0])
				if err != nil {
					return fmt.Errorf("query where failed: %w", err)
				}
				return a.printEntries(entries)
			})
		},
	}
}
