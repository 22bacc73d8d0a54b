package cli

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/dan-solli/goalgraph/pkg/goalgraph"
	"github.com/dan-solli/goalgraph/pkg/model"
)

func goalCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "goal",
		Short: "Create and evolve goals",
	}

	cmd.AddCommand(goalCreateCmd(a))
	cmd.AddCommand(goalEvolveCmd(a))
	cmd.AddCommand(goalShowCmd(a))
	cmd.AddCommand(goalListCmd(a))
	cmd.AddCommand(goalUpdateCmd(a))
	cmd.AddCommand(goalProgressCmd(a))
	cmd.AddCommand(goalTransitionCmd(a, "pause", "Pause an active goal", true, (*goalgraph.Goalgraph).PauseGoal))
	cmd.AddCommand(goalTransitionCmd(a, "block", "Mark a goal blocked", true, (*goalgraph.Goalgraph).BlockGoal))
	cmd.AddCommand(goalTransitionCmd(a, "complete", "Complete a goal and archive it", true, (*goalgraph.Goalgraph).CompleteGoal))
	cmd.AddCommand(goalTransitionCmd(a, "abandon", "Abandon a goal and archive it", true, (*goalgraph.Goalgraph).AbandonGoal))
	cmd.AddCommand(goalTransitionCmd(a, "resume", "Resume a paused goal", false,
		func(g *goalgraph.Goalgraph, ctx context.Context, id, _ string) (*model.Goal, error) {
			return g.ResumeGoal(ctx, id)
		}))
	cmd.AddCommand(goalTransitionCmd(a, "unblock", "Unblock a blocked goal", false,
		func(g *goalgraph.Goalgraph, ctx context.Context, id, _ string) (*model.Goal, error) {
			return g.UnblockGoal(ctx, id)
		}))
	cmd.AddCommand(goalArchiveCmd(a))
	cmd.AddCommand(goalPurgeCmd(a))
	cmd.AddCommand(goalLinkCmd(a))
	cmd.AddCommand(goalRelateCmd(a, "depend <goal-id> <depends-on-id>", "Record that a goal depends on another", (*goalgraph.Goalgraph).AddDependency))
	cmd.AddCommand(goalRelateCmd(a, "inform <goal-id> <target-id>", "Record that a goal informs another", (*goalgraph.Goalgraph).AddInforms))
	cmd.AddCommand(goalLearnCmd(a))
	cmd.AddCommand(goalDecideCmd(a))
	cmd.AddCommand(goalFilesCmd(a))

	return cmd
}

func addGoalInputFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("title", "", "goal title (required)")
	f.String("current", "", "where things stand now (required)")
	f.String("desired", "", "where things should end up (required)")
	f.String("project", "", "project id (default: detected from the working directory)")
	f.String("description", "", "longer description")
	f.String("priority", "", "high, medium or low")
	f.StringSlice("tag", nil, "tag (repeatable)")
	f.StringArray("criterion", nil, "verification criterion (repeatable)")
	f.String("method", "", "verification method: manual, automated or hybrid")
	f.StringArray("test-command", nil, "command that verifies the goal (repeatable)")
	f.String("parent", "", "parent goal id")
	f.StringSlice("depends-on", nil, "goal id this goal depends on (repeatable)")
	f.StringSlice("informs", nil, "goal id this goal informs (repeatable)")
	f.StringSlice("file", nil, "primary file (repeatable)")
}

func goalInputFromFlags(cmd *cobra.Command) model.CreateGoalInput {
	f := cmd.Flags()
	str := func(name string) string { v, _ := f.GetString(name); return v }
	slice := func(name string) []string { v, _ := f.GetStringSlice(name); return v }
	array := func(name string) []string { v, _ := f.GetStringArray(name); return v }

	return model.CreateGoalInput{
		Title:        str("title"),
		CurrentState: str("current"),
		DesiredState: str("desired"),
		Project:      str("project"),
		Description:  str("description"),
		Priority:     model.Priority(str("priority")),
		Tags:         slice("tag"),
		Criteria:     array("criterion"),
		Method:       model.VerificationMethod(str("method")),
		TestCommands: array("test-command"),
		Parent:       str("parent"),
		DependsOn:    slice("depends-on"),
		Informs:      slice("informs"),
		Files:        slice("file"),
	}
}

// detectProject fills in the project from the working directory when none
// was given.
func detectProject(ctx context.Context, g *goalgraph.Goalgraph, input *model.CreateGoalInput) error {
	if input.Project != "" {
		return nil
	}
	wd, err := os.Getwd()
	if err != nil {
		return nil
	}
	p, err := g.DetectProject(ctx, wd)
	if err != nil {
		return fmt.Errorf("failed to detect project: %w", err)
	}
	if p != nil {
		input.Project = p.ID
	}
	return nil
}

func goalCreateCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a goal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			input := goalInputFromFlags(cmd)
			return a.withGraph(func(ctx context.Context, g *goalgraph.Goalgraph) error {
				if err := detectProject(ctx, g, &input); err != nil {
					return err
				}
				goal, err := g.CreateGoal(ctx, input)
				if err != nil {
					return fmt.Errorf("failed to create goal: %w", err)
				}
				if ok, err := a.emit(goal); ok {
					return err
				}
				a.println(check(fmt.Sprintf("Created goal %s", goal.ID)))
				return nil
			})
		},
	}
	addGoalInputFlags(cmd)
	return cmd
}

func goalEvolveCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "evolve <from-goal-id>",
		Short: "Create a goal that evolved from an existing one",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			input := goalInputFromFlags(cmd)
			return a.withGraph(func(ctx context.Context, g *goalgraph.Goalgraph) error {
				goal, err := g.EvolveGoal(ctx, args[0], input)
				if err != nil {
					return fmt.Errorf("failed to evolve goal: %w", err)
				}
				if ok, err := a.emit(goal); ok {
					return err
				}
				a.println(check(fmt.Sprintf("Created goal %s (evolved from %s)", goal.ID, args[0])))
				return nil
			})
		},
	}
	addGoalInputFlags(cmd)
	return cmd
}

func goalShowCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show <goal-id>",
		Short: "Show a goal",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withGraph(func(ctx context.Context, g *goalgraph.Goalgraph) error {
				goal, err := g.GetGoal(ctx, args[0])
				if err != nil {
					return fmt.Errorf("failed to load goal: %w", err)
				}
				if goal == nil {
					return &model.NotFoundError{Kind: "goal", ID: args[0]}
				}
				return a.printGoal(goal)
			})
		},
	}
}

func goalListCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List goals",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			all, _ := cmd.Flags().GetBool("all")
			return a.withGraph(func(ctx context.Context, g *goalgraph.Goalgraph) error {
				goals, err := g.ListGoals(ctx, all)
				if err != nil {
					return fmt.Errorf("failed to list goals: %w", err)
				}
				if ok, err := a.emit(goals); ok {
					return err
				}
				if len(goals) == 0 {
					a.println("No goals found")
					return nil
				}
				for _, goal := range goals {
					a.printf("%-32s %-10s %s  %s\n", goal.ID, statusLabel(goal.Status), progressBar(goal.Progress), goal.Title)
				}
				return nil
			})
		},
	}
	cmd.Flags().Bool("all", false, "include archived goals")
	return cmd
}

func goalUpdateCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "update <goal-id>",
		Short: "Update goal fields and record a snapshot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			patch, err := patchFromFlags(cmd)
			if err != nil {
				return err
			}
			summary, _ := cmd.Flags().GetString("summary")
			return a.withGraph(func(ctx context.Context, g *goalgraph.Goalgraph) error {
				if patch.Verification != nil {
					// Keep the method and test commands; only criteria come from flags.
					current, err := g.GetGoal(ctx, args[0])
					if err != nil {
						return fmt.Errorf("failed to load goal: %w", err)
					}
					if current != nil {
						v := current.Verification
						v.Criteria = patch.Verification.Criteria
						patch.Verification = &v
					}
				}
				goal, err := g.UpdateGoal(ctx, args[0], patch, summary)
				if err != nil {
					return fmt.Errorf("failed to update goal: %w", err)
				}
				if ok, err := a.emit(goal); ok {
					return err
				}
				a.println(check(fmt.Sprintf("Updated goal %s", goal.ID)))
				return nil
			})
		},
	}
	f := cmd.Flags()
	f.String("title", "", "new title")
	f.String("current", "", "new current state")
	f.String("desired", "", "new desired state")
	f.String("description", "", "new description")
	f.String("status", "", "new status")
	f.Float64("progress", 0, "new progress between 0 and 1")
	f.String("priority", "", "new priority")
	f.StringSlice("tag", nil, "replace tags (repeatable)")
	f.StringArray("criterion", nil, "replace verification criteria (repeatable)")
	f.String("summary", "", "snapshot summary")
	return cmd
}

// patchFromFlags builds a patch from the flags the user actually set.
func patchFromFlags(cmd *cobra.Command) (model.GoalPatch, error) {
	f := cmd.Flags()
	var patch model.GoalPatch
	strPtr := func(name string) *string {
		if !f.Changed(name) {
			return nil
		}
		v, _ := f.GetString(name)
		return &v
	}

	patch.Title = strPtr("title")
	patch.CurrentState = strPtr("current")
	patch.DesiredState = strPtr("desired")
	patch.Description = strPtr("description")
	if v := strPtr("status"); v != nil {
		s := model.Status(*v)
		if !s.Valid() {
			return patch, &model.ValidationError{Field: "status", Reason: "unknown status " + *v}
		}
		patch.Status = &s
	}
	if f.Changed("progress") {
		v, _ := f.GetFloat64("progress")
		patch.Progress = &v
	}
	if v := strPtr("priority"); v != nil {
		p := model.Priority(*v)
		patch.Priority = &p
	}
	if f.Changed("tag") {
		tags, _ := f.GetStringSlice("tag")
		patch.Tags = &tags
	}
	if f.Changed("criterion") {
		criteria, _ := f.GetStringArray("criterion")
		patch.Verification = &model.Verification{Criteria: criteria}
	}
	return patch, nil
}

func goalProgressCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "progress <goal-id> <value>",
		Short: "Set progress (0 to 1, or a percentage like 40%)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			value, err := parseProgress(args[1])
			if err != nil {
				return err
			}
			return a.withGraph(func(ctx context.Context, g *goalgraph.Goalgraph) error {
				goal, err := g.SetProgress(ctx, args[0], value)
				if err != nil {
					return fmt.Errorf("failed to set progress: %w", err)
				}
				if ok, err := a.emit(goal); ok {
					return err
				}
				a.println(check(fmt.Sprintf("%s %s", goal.ID, progressBar(goal.Progress))))
				return nil
			})
		},
	}
}

func parseProgress(s string) (float64, error) {
	percent := false
	if n := len(s); n > 0 && s[n-1] == '%' {
		percent = true
		s = s[:n-1]
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, &model.ValidationError{Field: "progress", Reason: "not a number: " + s}
	}
	if percent {
		v /= 100
	}
	return v, nil
}

type transitionFunc func(g *goalgraph.Goalgraph, ctx context.Context, id, reason string) (*model.Goal, error)

func goalTransitionCmd(a *app, name, short string, withReason bool, fn transitionFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:   name + " <goal-id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reason := ""
			if withReason {
				reason, _ = cmd.Flags().GetString("reason")
			}
			return a.withGraph(func(ctx context.Context, g *goalgraph.Goalgraph) error {
				goal, err := fn(g, ctx, args[0], reason)
				if err != nil {
					return fmt.Errorf("failed to %s goal: %w", name, err)
				}
				if ok, err := a.emit(goal); ok {
					return err
				}
				a.println(check(fmt.Sprintf("%s is now %s", goal.ID, statusLabel(goal.Status))))
				return nil
			})
		},
	}
	if withReason {
		cmd.Flags().String("reason", "", "snapshot summary")
	}
	return cmd
}

func goalArchiveCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "archive <goal-id>",
		Short: "Move a goal to the archive",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withGraph(func(ctx context.Context, g *goalgraph.Goalgraph) error {
				moved, err := g.ArchiveGoal(ctx, args[0])
				if err != nil {
					return fmt.Errorf("failed to archive goal: %w", err)
				}
				if moved {
					a.println(check(fmt.Sprintf("Archived goal %s", args[0])))
				} else {
					a.printf("Goal %s is already archived\n", args[0])
				}
				return nil
			})
		},
	}
}

func goalPurgeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "purge <goal-id>",
		Short: "Delete a goal and its history permanently",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			force, _ := cmd.Flags().GetBool("force")
			if !force {
				return &model.ValidationError{Field: "force", Reason: "purge deletes history permanently; pass --force"}
			}
			return a.withGraph(func(ctx context.Context, g *goalgraph.Goalgraph) error {
				if err := g.PurgeGoal(ctx, args[0]); err != nil {
					return fmt.Errorf("failed to purge goal: %w", err)
				}
				a.println(check(fmt.Sprintf("Purged goal %s", args[0])))
				return nil
			})
		},
	}
	cmd.Flags().Bool("force", false, "confirm permanent deletion")
	return cmd
}

func goalLinkCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "link <child-id> <parent-id>",
		Short: "Make a goal the child of another",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withGraph(func(ctx context.Context, g *goalgraph.Goalgraph) error {
				if err := g.LinkGoals(ctx, args[0], args[1]); err != nil {
					return fmt.Errorf("failed to link goals: %w", err)
				}
				a.println(check(fmt.Sprintf("%s is now a child of %s", args[0], args[1])))
				return nil
			})
		},
	}
}

func goalRelateCmd(a *app, use, short string, fn func(*goalgraph.Goalgraph, context.Context, string, string) error) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withGraph(func(ctx context.Context, g *goalgraph.Goalgraph) error {
				if err := fn(g, ctx, args[0], args[1]); err != nil {
					return fmt.Errorf("failed to relate goals: %w", err)
				}
				a.println(check(fmt.Sprintf("%s %s %s", args[0], cmd.Name(), args[1])))
				return nil
			})
		},
	}
}

func goalLearnCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "learn <goal-id> <learning>",
		Short: "Record a learning on a goal",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withGraph(func(ctx context.Context, g *goalgraph.Goalgraph) error {
				if err := g.AddLearning(ctx, args[0], args[1]); err != nil {
					return fmt.Errorf("failed to add learning: %w", err)
				}
				a.println(check("Learning recorded"))
				return nil
			})
		},
	}
}

func goalDecideCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "decide <goal-id> <decision>",
		Short: "Record a decision on a goal",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			rationale, _ := cmd.Flags().GetString("rationale")
			reversible, _ := cmd.Flags().GetBool("reversible")
			return a.withGraph(func(ctx context.Context, g *goalgraph.Goalgraph) error {
				d := model.Decision{Decision: args[1], Rationale: rationale, Reversible: reversible}
				if err := g.AddDecision(ctx, args[0], d); err != nil {
					return fmt.Errorf("failed to add decision: %w", err)
				}
				a.println(check("Decision recorded"))
				return nil
			})
		},
	}
	cmd.Flags().String("rationale", "", "why the decision was made")
	cmd.Flags().Bool("reversible", false, "the decision can be undone cheaply")
	return cmd
}

func goalFilesCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "files <goal-id> <path>...",
		Short: "Record files related to a goal",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withGraph(func(ctx context.Context, g *goalgraph.Goalgraph) error {
				added, err := g.AddFiles(ctx, args[0], args[1:])
				if err != nil {
					return fmt.Errorf("failed to add files: %w", err)
				}
				a.println(check(fmt.Sprintf("Added %d file(s)", len(added))))
				return nil
			})
		},
	}
}
