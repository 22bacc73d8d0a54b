package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/dan-solli/goalgraph/pkg/goalgraph"
)

// hookEvent is the JSON payload an agent hook may pipe to session start/end.
type hookEvent struct {
	SessionID string   `json:"session_id"`
	Cwd       string   `json:"cwd"`
	Files     []string `json:"files"`
	Tasks     []string `json:"tasks"`
	Focus     string   `json:"focus"`
	Summary   string   `json:"summary"`
}

func sessionCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Track agent sessions against the active goal",
		Long: `Record where an agent session starts and what it touched when it ends.

start and end are meant to run from agent hooks: they never fail the hook.
Problems are printed as warnings and the exit code stays 0.

Example:
  echo '{"session_id":"abc","cwd":"/src/app"}' | goalgraph session start --stdin`,
	}

	cmd.AddCommand(sessionStartCmd(a))
	cmd.AddCommand(sessionEndCmd(a))
	cmd.AddCommand(sessionFocusCmd(a))
	cmd.AddCommand(sessionShowCmd(a))
	return cmd
}

// readHookEvent decodes the stdin payload when --stdin is set. An unreadable
// payload yields an empty event.
func (a *app) readHookEvent(cmd *cobra.Command) hookEvent {
	var event hookEvent
	useStdin, _ := cmd.Flags().GetBool("stdin")
	if !useStdin || a.stdin == nil {
		return event
	}
	data, err := io.ReadAll(a.stdin)
	if err != nil {
		a.warn("failed to read hook payload: %v", err)
		return event
	}
	if err := json.Unmarshal(data, &event); err != nil {
		a.warn("ignoring invalid hook payload: %v", err)
		return hookEvent{}
	}
	return event
}

// failOpen turns a hook error into a warning.
func (a *app) failOpen(what string, err error) error {
	if err != nil {
		a.warn("%s: %v", what, err)
	}
	return nil
}

func sessionStartCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Record a session start and print the active goal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			event := a.readHookEvent(cmd)
			if id, _ := cmd.Flags().GetString("id"); id != "" {
				event.SessionID = id
			}
			if event.Cwd == "" {
				event.Cwd, _ = os.Getwd()
			}
			err := a.withGraph(func(ctx context.Context, g *goalgraph.Goalgraph) error {
				start, err := g.StartSession(ctx, event.SessionID, event.Cwd)
				if err != nil {
					return err
				}
				if ok, err := a.emit(start); ok {
					return err
				}
				a.printf("Session %s started\n", start.State.SessionID)
				if start.Project != nil {
					a.printf("Project: %s (%s)\n", start.Project.Name, start.Project.ID)
				}
				if start.ActiveGoal != nil {
					goal := start.ActiveGoal
					a.printf("Active goal: %s (%s) %s %s\n", goal.Title, goal.ID, statusLabel(goal.Status), progressBar(goal.Progress))
					a.printf("  Current: %s\n  Desired: %s\n", goal.CurrentState, goal.DesiredState)
				}
				if start.State.Focus != "" {
					a.printf("Focus: %s\n", start.State.Focus)
				}
				for _, task := range start.State.PendingTasks {
					a.printf("Pending: %s\n", task)
				}
				a.printf("Goals: %d total, %d active\n", start.Stats.Total, start.Stats.ByStatus["active"])
				return nil
			})
			return a.failOpen("session start", err)
		},
	}
	cmd.Flags().Bool("stdin", false, "read the hook payload as JSON from stdin")
	cmd.Flags().String("id", "", "session id (default: generated)")
	return cmd
}

func sessionEndCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "end",
		Short: "Record what a session touched on the active goal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			event := a.readHookEvent(cmd)
			f := cmd.Flags()
			if id, _ := f.GetString("id"); id != "" {
				event.SessionID = id
			}
			files, _ := f.GetStringSlice("file")
			tasks, _ := f.GetStringArray("task")
			event.Files = append(event.Files, files...)
			event.Tasks = append(event.Tasks, tasks...)
			if f.Changed("focus") {
				event.Focus, _ = f.GetString("focus")
			}
			if f.Changed("summary") {
				event.Summary, _ = f.GetString("summary")
			}

			err := a.withGraph(func(ctx context.Context, g *goalgraph.Goalgraph) error {
				end, err := g.EndSession(ctx, goalgraph.EndSessionInput{
					SessionID: event.SessionID,
					Files:     event.Files,
					Tasks:     event.Tasks,
					Focus:     event.Focus,
					Summary:   event.Summary,
				})
				if err != nil {
					return err
				}
				if ok, err := a.emit(end); ok {
					return err
				}
				if end.Snapshot != nil {
					a.println(check(fmt.Sprintf("Recorded snapshot %s on %s", end.Snapshot.ID, end.Snapshot.GoalID)))
				} else {
					a.println(check("Session ended"))
				}
				return nil
			})
			return a.failOpen("session end", err)
		},
	}
	f := cmd.Flags()
	f.Bool("stdin", false, "read the hook payload as JSON from stdin")
	f.String("id", "", "session id (default: the started session)")
	f.StringSlice("file", nil, "file touched during the session (repeatable)")
	f.StringArray("task", nil, "task left pending (repeatable)")
	f.String("focus", "", "what to pick up next")
	f.String("summary", "", "what the session accomplished")
	return cmd
}

func sessionFocusCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "focus <goal-id>",
		Short: "Make a goal the session's active goal",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withGraph(func(ctx context.Context, g *goalgraph.Goalgraph) error {
				if _, err := g.FocusGoal(ctx, args[0]); err != nil {
					return fmt.Errorf("failed to focus goal: %w", err)
				}
				a.println(check(fmt.Sprintf("Active goal is %s", args[0])))
				return nil
			})
		},
	}
}

func sessionShowCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the session record",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withGraph(func(ctx context.Context, g *goalgraph.Goalgraph) error {
				state, err := g.Session(ctx)
				if err != nil {
					return fmt.Errorf("failed to load session: %w", err)
				}
				if ok, err := a.emit(state); ok {
					return err
				}
				if state == nil {
					a.println("No session recorded")
					return nil
				}
				a.printf("Session: %s\n", state.SessionID)
				a.printf("Active goal: %s\n", state.ActiveGoal)
				if state.StartedAt != nil {
					a.printf("Started: %s\n", stamp(*state.StartedAt))
				}
				if state.EndedAt != nil {
					a.printf("Ended: %s\n", stamp(*state.EndedAt))
				}
				if state.Focus != "" {
					a.printf("Focus: %s\n", state.Focus)
				}
				for _, task := range state.PendingTasks {
					a.printf("Pending: %s\n", task)
				}
				for _, file := range state.RecentFiles {
					a.printf("Recent: %s\n", file)
				}
				return nil
			})
		},
	}
}
