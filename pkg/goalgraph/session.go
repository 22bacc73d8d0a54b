package goalgraph

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/dan-solli/goalgraph/pkg/model"
	"github.com/dan-solli/goalgraph/pkg/query"
	"github.com/dan-solli/goalgraph/pkg/versioning"
)

// maxRecentFiles bounds the file list kept on the session record.
const maxRecentFiles = 50

// SessionStart is what an agent needs to resume work.
type SessionStart struct {
	State      *model.SessionState
	ActiveGoal *model.Goal
	Project    *model.Project
	Stats      query.Stats
}

// EndSessionInput is the work context reported when a session ends.
type EndSessionInput struct {
	SessionID string
	Files     []string
	Tasks     []string
	Focus     string
	Summary   string
}

// SessionEnd reports what EndSession recorded. Snapshot is nil when the
// session left nothing worth a snapshot.
type SessionEnd struct {
	State    *model.SessionState
	Snapshot *model.Snapshot
	Goal     *model.Goal
}

// StartSession records the start of a session and returns the active goal,
// the project detected for dir and index statistics. An empty sessionID is
// replaced with a generated one.
func (g *Goalgraph) StartSession(ctx context.Context, sessionID, dir string) (*SessionStart, error) {
	if strings.TrimSpace(sessionID) == "" {
		sessionID = uuid.NewString()
	}
	out := &SessionStart{}
	err := g.mutate(ctx, "start_session", func(ctx context.Context, tr *OperationTrace) error {
		tr.setID("session", sessionID)
		state, err := g.loadSession(ctx)
		if err != nil {
			return err
		}
		now := model.Now()
		state.SessionID = sessionID
		state.StartedAt = &now
		state.EndedAt = nil
		state.Updated = now

		timer := newSpanTimer("persist", tr)
		err = g.store.SaveSession(ctx, state)
		timer.finish(err, nil)
		if err != nil {
			return err
		}
		out.State = state

		if state.ActiveGoal != "" {
			if out.ActiveGoal, err = g.store.LoadGoal(ctx, state.ActiveGoal); err != nil {
				return err
			}
			tr.setID("goal", state.ActiveGoal)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if out.Project, err = g.DetectProject(ctx, dir); err != nil {
		return nil, err
	}
	if out.Stats, err = g.query.Stats(ctx); err != nil {
		return nil, err
	}
	return out, nil
}

// FocusGoal makes id the session's active goal.
func (g *Goalgraph) FocusGoal(ctx context.Context, id string) (*model.SessionState, error) {
	var focused *model.SessionState
	err := g.mutate(ctx, "focus_goal", func(ctx context.Context, tr *OperationTrace) error {
		if _, err := g.mustGoal(ctx, tr, id); err != nil {
			return err
		}
		state, err := g.loadSession(ctx)
		if err != nil {
			return err
		}
		state.ActiveGoal = id
		state.Updated = model.Now()

		timer := newSpanTimer("persist", tr)
		err = g.store.SaveSession(ctx, state)
		timer.finish(err, nil)
		if err != nil {
			return err
		}
		focused = state
		return nil
	})
	if err != nil {
		return nil, err
	}
	return focused, nil
}

// EndSession records the end of a session. Files and the session reference
// are merged into the active goal's work context, and a session_end snapshot
// is taken when new files were touched or a summary was given. Goals that
// are completed or abandoned are not modified.
func (g *Goalgraph) EndSession(ctx context.Context, input EndSessionInput) (*SessionEnd, error) {
	out := &SessionEnd{}
	err := g.mutate(ctx, "end_session", func(ctx context.Context, tr *OperationTrace) error {
		state, err := g.loadSession(ctx)
		if err != nil {
			return err
		}
		sessionID := strings.TrimSpace(input.SessionID)
		if sessionID == "" {
			sessionID = state.SessionID
		}
		tr.setID("session", sessionID)

		files := uniqueStrings(input.Files)
		now := model.Now()
		state.SessionID = sessionID
		state.EndedAt = &now
		state.Updated = now
		state.RecentFiles = recentFiles(files, state.RecentFiles)
		state.PendingTasks = uniqueStrings(input.Tasks)
		if focus := strings.TrimSpace(input.Focus); focus != "" {
			state.Focus = focus
		}

		if state.ActiveGoal != "" {
			if out.Goal, out.Snapshot, err = g.recordSessionWork(ctx, tr, state.ActiveGoal, sessionID, files, input.Summary); err != nil {
				return err
			}
		}

		timer := newSpanTimer("persist", tr)
		err = g.store.SaveSession(ctx, state)
		timer.finish(err, nil)
		if err != nil {
			return err
		}
		out.State = state

		if out.Goal != nil {
			return g.reindex(ctx, tr)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// recordSessionWork merges the session into goal id. It returns the goal if
// it was written.
func (g *Goalgraph) recordSessionWork(ctx context.Context, tr *OperationTrace, id, sessionID string, files []string, summary string) (*model.Goal, *model.Snapshot, error) {
	tr.setID("goal", id)
	before, err := g.store.LoadGoal(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if before == nil || before.Status.Terminal() {
		return nil, nil, nil
	}

	after := before.Clone()
	added := after.AddFiles(files...)
	joined := after.AddSession(sessionID)
	summary = strings.TrimSpace(summary)
	if len(added) == 0 && !joined && summary == "" {
		return nil, nil, nil
	}
	after.Touch(g.config.Actor)

	var snap *model.Snapshot
	if len(added) > 0 || summary != "" {
		changes, err := versioning.ComputeChanges(before, after, []string{"files_related"})
		if err != nil {
			return nil, nil, err
		}
		if snap, err = versioning.CreateSnapshot(after, "session ended", summary, model.TriggerSessionEnd, changes, sessionID); err != nil {
			return nil, nil, err
		}
	}
	if err := g.persist(ctx, tr, after, snap); err != nil {
		return nil, nil, err
	}
	return after, snap, nil
}

// loadSession returns the stored session state or a fresh one.
func (g *Goalgraph) loadSession(ctx context.Context) (*model.SessionState, error) {
	state, err := g.store.LoadSession(ctx)
	if err != nil {
		return nil, err
	}
	if state == nil {
		state = model.NewSessionState()
	}
	return state, nil
}

// Session returns the stored session state, or (nil, nil) before the first session.
func (g *Goalgraph) Session(ctx context.Context) (*model.SessionState, error) {
	return g.store.LoadSession(ctx)
}

// recentFiles puts files first, followed by earlier entries not repeated,
// keeping at most maxRecentFiles.
func recentFiles(files, previous []string) []string {
	out := uniqueStrings(append(append([]string(nil), files...), previous...))
	if len(out) > maxRecentFiles {
		out = out[:maxRecentFiles]
	}
	return out
}

func uniqueStrings(in []string) []string {
	var out []string
	seen := make(map[string]bool, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}
