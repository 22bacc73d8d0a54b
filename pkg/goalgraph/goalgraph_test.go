package goalgraph

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dan-solli/goalgraph/pkg/model"
	"github.com/dan-solli/goalgraph/pkg/store"
	"github.com/dan-solli/goalgraph/pkg/trace"
	"github.com/dan-solli/goalgraph/pkg/versioning"
)

// recordingCollector keeps what the facade reports so tests can assert on it.
type recordingCollector struct {
	mu         sync.Mutex
	operations map[string]int
	errors     map[string]int
	snapshots  map[string]int
	goals      map[string]int64
}

func newRecordingCollector() *recordingCollector {
	return &recordingCollector{
		operations: make(map[string]int),
		errors:     make(map[string]int),
		snapshots:  make(map[string]int),
		goals:      make(map[string]int64),
	}
}

func (c *recordingCollector) RecordOperation(_ context.Context, operation, status string, _ int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.operations[operation+"/"+status]++
}

func (c *recordingCollector) RecordStage(context.Context, string, string, int64) {}

func (c *recordingCollector) RecordError(_ context.Context, operation, errorType string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.errors[operation+"/"+errorType]++
}

func (c *recordingCollector) RecordSnapshot(_ context.Context, trigger string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.snapshots[trigger]++
}

func (c *recordingCollector) SetGoalCount(_ context.Context, status string, count int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.goals[status] = count
}

// memoryExporter keeps exported trace records in memory.
type memoryExporter struct {
	mu      sync.Mutex
	records []*trace.TraceRecord
}

func (e *memoryExporter) Export(_ context.Context, record *trace.TraceRecord) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.records = append(e.records, record)
	return nil
}

func (e *memoryExporter) Close() error { return nil }

func (e *memoryExporter) last() *trace.TraceRecord {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.records) == 0 {
		return nil
	}
	return e.records[len(e.records)-1]
}

func newTestGraph(t *testing.T, backend store.Backend, mutate ...func(*Config)) *Goalgraph {
	t.Helper()
	cfg := Config{
		Root:        t.TempDir(),
		Backend:     backend,
		Actor:       "tester",
		LockTimeout: time.Second,
	}
	if backend == store.BackendSQLite {
		cfg.DBPath = ":memory:"
	}
	for _, fn := range mutate {
		fn(&cfg)
	}
	g, err := New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { g.Close() })
	return g
}

func eachBackend(t *testing.T, fn func(t *testing.T, g *Goalgraph)) {
	for _, backend := range []store.Backend{store.BackendFile, store.BackendSQLite} {
		t.Run(string(backend), func(t *testing.T) {
			fn(t, newTestGraph(t, backend))
		})
	}
}

func goalInput(title string) model.CreateGoalInput {
	return model.CreateGoalInput{
		Title:        title,
		CurrentState: "nothing exists",
		DesiredState: "it works",
		Project:      "proj_test",
	}
}

func TestNew_Defaults(t *testing.T) {
	t.Setenv("USER", "alice")
	g, err := New(Config{Root: t.TempDir()})
	require.NoError(t, err)
	defer g.Close()

	cfg := g.Config()
	assert.Equal(t, store.BackendFile, cfg.Backend)
	assert.Equal(t, versioning.CollisionFail, cfg.BranchCollision)
	assert.Equal(t, 5*time.Second, cfg.LockTimeout)
	assert.Equal(t, "alice", cfg.Actor)
	assert.NotNil(t, cfg.Logger)
	assert.NotNil(t, cfg.Metrics)
	assert.NotNil(t, cfg.Exporter)
}

func TestNew_RejectsBadSettings(t *testing.T) {
	_, err := New(Config{Root: t.TempDir(), BranchCollision: "sometimes"})
	assert.True(t, model.IsValidation(err))

	_, err = New(Config{Root: t.TempDir(), Backend: "postgres"})
	assert.True(t, model.IsValidation(err))
}

func TestCreateGoal(t *testing.T) {
	eachBackend(t, func(t *testing.T, g *Goalgraph) {
		ctx := context.Background()
		goal, err := g.CreateGoal(ctx, goalInput("Ship the API"))
		require.NoError(t, err)

		assert.Equal(t, model.StatusActive, goal.Status)
		assert.Equal(t, 0.0, goal.Progress)
		assert.Equal(t, model.MainBranchID, goal.CurrentBranch())
		assert.Equal(t, "tester", goal.CreatedBy)
		require.Len(t, goal.Snapshots, 1)

		stored, err := g.GetGoal(ctx, goal.ID)
		require.NoError(t, err)
		assert.Equal(t, goal.Snapshots, stored.Snapshots)

		history, err := g.History(ctx, goal.ID)
		require.NoError(t, err)
		require.Len(t, history, 1)
		assert.Equal(t, "created", history[0].Event)
		assert.Equal(t, model.TriggerManual, history[0].Trigger)
		assert.Equal(t, model.MainBranchID, history[0].Branch)

		branches, err := g.ListBranches(ctx, goal.ID)
		require.NoError(t, err)
		require.Len(t, branches, 1)
		assert.Equal(t, model.MainBranchID, branches[0].ID)
		assert.Equal(t, goal.Snapshots, branches[0].Snapshots)

		idx, err := g.Index(ctx)
		require.NoError(t, err)
		require.Contains(t, idx.Goals, goal.ID)
		assert.Equal(t, []string{goal.ID}, idx.ByStatus["active"])
	})
}

func TestCreateGoal_ValidationWritesNothing(t *testing.T) {
	g := newTestGraph(t, store.BackendFile)
	ctx := context.Background()

	input := goalInput("  ")
	_, err := g.CreateGoal(ctx, input)
	var verr *model.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "title", verr.Field)

	goals, err := g.ListGoals(ctx, true)
	require.NoError(t, err)
	assert.Empty(t, goals)
}

func TestCreateGoal_UnknownParent(t *testing.T) {
	g := newTestGraph(t, store.BackendFile)
	input := goalInput("Child")
	input.Parent = "goal_missing"

	_, err := g.CreateGoal(context.Background(), input)
	assert.True(t, model.IsNotFound(err))
}

func TestSetProgress_Clamps(t *testing.T) {
	eachBackend(t, func(t *testing.T, g *Goalgraph) {
		ctx := context.Background()
		goal, err := g.CreateGoal(ctx, goalInput("Clamp"))
		require.NoError(t, err)

		for _, tc := range []struct {
			in, want float64
		}{
			{1.7, 1},
			{-0.3, 0},
			{0.5, 0.5},
		} {
			updated, err := g.SetProgress(ctx, goal.ID, tc.in)
			require.NoError(t, err)
			assert.Equal(t, tc.want, updated.Progress)

			stored, err := g.GetGoal(ctx, goal.ID)
			require.NoError(t, err)
			assert.Equal(t, tc.want, stored.Progress)
		}

		history, err := g.History(ctx, goal.ID)
		require.NoError(t, err)
		require.Len(t, history, 4)
		for _, snap := range history[1:] {
			assert.Equal(t, model.TriggerAutoProgress, snap.Trigger)
		}
		assert.Equal(t, 0.5, history[3].Progress)
	})
}

func TestSetProgress_UnchangedWritesNoSnapshot(t *testing.T) {
	g := newTestGraph(t, store.BackendFile)
	ctx := context.Background()
	goal, err := g.CreateGoal(ctx, goalInput("Still"))
	require.NoError(t, err)

	_, err = g.SetProgress(ctx, goal.ID, -2)
	require.NoError(t, err)

	history, err := g.History(ctx, goal.ID)
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestUpdateGoal(t *testing.T) {
	g := newTestGraph(t, store.BackendFile)
	ctx := context.Background()
	goal, err := g.CreateGoal(ctx, goalInput("Update me"))
	require.NoError(t, err)

	state := "schema drafted"
	updated, err := g.UpdateGoal(ctx, goal.ID, model.GoalPatch{CurrentState: &state}, "drafted")
	require.NoError(t, err)
	assert.Equal(t, state, updated.CurrentState)
	require.Len(t, updated.Snapshots, 2)

	history, err := g.History(ctx, goal.ID)
	require.NoError(t, err)
	last := history[len(history)-1]
	assert.Equal(t, "updated", last.Event)
	assert.Equal(t, "drafted", last.Summary)
	require.Len(t, last.Changes, 1)
	assert.Equal(t, "current_state", last.Changes[0].Field)
	assert.Equal(t, history[0].ID, last.PreviousSnapshot)

	// Same value again: nothing to snapshot.
	again, err := g.UpdateGoal(ctx, goal.ID, model.GoalPatch{CurrentState: &state}, "")
	require.NoError(t, err)
	assert.Len(t, again.Snapshots, 2)

	_, err = g.UpdateGoal(ctx, goal.ID, model.GoalPatch{}, "")
	assert.True(t, model.IsValidation(err))

	_, err = g.UpdateGoal(ctx, "goal_missing", model.GoalPatch{CurrentState: &state}, "")
	assert.True(t, model.IsNotFound(err))
}

func TestUpdateGoal_RejectsTerminalStatus(t *testing.T) {
	g := newTestGraph(t, store.BackendFile)
	ctx := context.Background()
	goal, err := g.CreateGoal(ctx, goalInput("Finish through update"))
	require.NoError(t, err)

	for _, status := range []model.Status{model.StatusCompleted, model.StatusAbandoned} {
		_, err := g.UpdateGoal(ctx, goal.ID, model.GoalPatch{Status: &status}, "")
		assert.True(t, model.IsValidation(err), status)
	}

	active, err := g.ListGoals(ctx, false)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, model.StatusActive, active[0].Status)
	assert.Len(t, active[0].Snapshots, 1)

	paused := model.StatusPaused
	updated, err := g.UpdateGoal(ctx, goal.ID, model.GoalPatch{Status: &paused}, "")
	require.NoError(t, err)
	assert.Equal(t, model.StatusPaused, updated.Status)
}

func TestCompleteGoal_Archives(t *testing.T) {
	eachBackend(t, func(t *testing.T, g *Goalgraph) {
		ctx := context.Background()
		project, err := g.CreateProject(ctx, model.ProjectInput{Name: "api", Paths: []string{"/src/api"}})
		require.NoError(t, err)

		input := goalInput("Finish")
		input.Project = project.ID
		goal, err := g.CreateGoal(ctx, input)
		require.NoError(t, err)

		done, err := g.CompleteGoal(ctx, goal.ID, "shipped")
		require.NoError(t, err)
		assert.Equal(t, model.StatusCompleted, done.Status)
		assert.Equal(t, 1.0, done.Progress)

		active, err := g.ListGoals(ctx, false)
		require.NoError(t, err)
		assert.Empty(t, active)
		all, err := g.ListGoals(ctx, true)
		require.NoError(t, err)
		require.Len(t, all, 1)

		idx, err := g.Index(ctx)
		require.NoError(t, err)
		assert.True(t, idx.Goals[goal.ID].Archived)
		assert.Equal(t, model.StatusCompleted, idx.Goals[goal.ID].Status)

		stored, err := g.GetProject(ctx, project.ID)
		require.NoError(t, err)
		assert.Equal(t, []string{goal.ID}, stored.Goals.Completed)
		assert.Empty(t, stored.Goals.Active)

		history, err := g.History(ctx, goal.ID)
		require.NoError(t, err)
		assert.Equal(t, model.TriggerMilestone, history[len(history)-1].Trigger)

		_, err = g.PauseGoal(ctx, goal.ID, "")
		var terr *model.TransitionError
		assert.ErrorAs(t, err, &terr)
	})
}

func TestStatusTransitions(t *testing.T) {
	g := newTestGraph(t, store.BackendFile)
	ctx := context.Background()
	goal, err := g.CreateGoal(ctx, goalInput("Flow"))
	require.NoError(t, err)

	_, err = g.ResumeGoal(ctx, goal.ID)
	var terr *model.TransitionError
	require.ErrorAs(t, err, &terr, "resume of an active goal")

	paused, err := g.PauseGoal(ctx, goal.ID, "waiting on review")
	require.NoError(t, err)
	assert.Equal(t, model.StatusPaused, paused.Status)

	_, err = g.BlockGoal(ctx, goal.ID, "")
	require.ErrorAs(t, err, &terr, "paused goals cannot be blocked")

	resumed, err := g.ResumeGoal(ctx, goal.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusActive, resumed.Status)

	_, err = g.BlockGoal(ctx, goal.ID, "")
	require.NoError(t, err)
	unblocked, err := g.UnblockGoal(ctx, goal.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusActive, unblocked.Status)

	abandoned, err := g.AbandonGoal(ctx, goal.ID, "superseded")
	require.NoError(t, err)
	assert.Equal(t, model.StatusAbandoned, abandoned.Status)

	active, err := g.ListGoals(ctx, false)
	require.NoError(t, err)
	assert.Empty(t, active)
}

func TestArchiveGoal(t *testing.T) {
	g := newTestGraph(t, store.BackendFile)
	ctx := context.Background()
	goal, err := g.CreateGoal(ctx, goalInput("Old"))
	require.NoError(t, err)

	moved, err := g.ArchiveGoal(ctx, goal.ID)
	require.NoError(t, err)
	assert.True(t, moved)

	moved, err = g.ArchiveGoal(ctx, goal.ID)
	require.NoError(t, err)
	assert.False(t, moved)

	_, err = g.ArchiveGoal(ctx, "goal_missing")
	assert.True(t, model.IsNotFound(err))

	// Archived goals stay writable.
	_, err = g.SetProgress(ctx, goal.ID, 0.4)
	require.NoError(t, err)
	stored, err := g.GetGoal(ctx, goal.ID)
	require.NoError(t, err)
	assert.Equal(t, 0.4, stored.Progress)
}

func TestParentLinks(t *testing.T) {
	eachBackend(t, func(t *testing.T, g *Goalgraph) {
		ctx := context.Background()
		root, err := g.CreateGoal(ctx, goalInput("Root"))
		require.NoError(t, err)

		input := goalInput("Child")
		input.Parent = root.ID
		child, err := g.CreateGoal(ctx, input)
		require.NoError(t, err)

		stored, err := g.GetGoal(ctx, root.ID)
		require.NoError(t, err)
		assert.Equal(t, []string{child.ID}, stored.Children)

		grandchild, err := g.CreateGoal(ctx, goalInput("Grandchild"))
		require.NoError(t, err)
		require.NoError(t, g.LinkGoals(ctx, grandchild.ID, child.ID))

		ancestors, err := g.Query().AncestorsOf(ctx, grandchild.ID)
		require.NoError(t, err)
		assert.Equal(t, []string{child.ID, root.ID}, ancestors)

		err = g.LinkGoals(ctx, root.ID, grandchild.ID)
		var cycle *model.CycleDetectedError
		require.ErrorAs(t, err, &cycle)

		assert.True(t, model.IsValidation(g.LinkGoals(ctx, root.ID, root.ID)))

		// Reparent: the old parent forgets the child.
		require.NoError(t, g.LinkGoals(ctx, grandchild.ID, root.ID))
		old, err := g.GetGoal(ctx, child.ID)
		require.NoError(t, err)
		assert.Empty(t, old.Children)
		children, err := g.Query().ChildrenOf(ctx, root.ID)
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{child.ID, grandchild.ID}, children)
	})
}

func TestRelations(t *testing.T) {
	g := newTestGraph(t, store.BackendFile)
	ctx := context.Background()
	a, err := g.CreateGoal(ctx, goalInput("A"))
	require.NoError(t, err)
	b, err := g.CreateGoal(ctx, goalInput("B"))
	require.NoError(t, err)

	require.NoError(t, g.AddDependency(ctx, a.ID, b.ID))
	require.NoError(t, g.AddDependency(ctx, a.ID, b.ID))
	require.NoError(t, g.AddInforms(ctx, b.ID, a.ID))
	assert.True(t, model.IsNotFound(g.AddDependency(ctx, a.ID, "goal_missing")))
	assert.True(t, model.IsValidation(g.AddInforms(ctx, a.ID, a.ID)))

	stored, err := g.GetGoal(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{b.ID}, stored.DependsOn)

	idx, err := g.Index(ctx)
	require.NoError(t, err)
	assert.Contains(t, idx.Edges, model.Edge{From: a.ID, To: b.ID, Type: model.EdgeDependsOn})
	assert.Contains(t, idx.Edges, model.Edge{From: b.ID, To: a.ID, Type: model.EdgeInforms})

	evolved, err := g.EvolveGoal(ctx, a.ID, model.CreateGoalInput{
		Title:        "A, take two",
		CurrentState: "A stalled",
		DesiredState: "A done differently",
	})
	require.NoError(t, err)
	assert.Equal(t, a.ID, evolved.EvolvedFrom)
	assert.Equal(t, a.Project, evolved.Project)
}

func TestWorkContext(t *testing.T) {
	g := newTestGraph(t, store.BackendFile)
	ctx := context.Background()
	goal, err := g.CreateGoal(ctx, goalInput("Context"))
	require.NoError(t, err)

	require.NoError(t, g.AddLearning(ctx, goal.ID, "flock is per open file"))
	assert.True(t, model.IsValidation(g.AddLearning(ctx, goal.ID, " ")))
	require.NoError(t, g.AddDecision(ctx, goal.ID, model.Decision{Decision: "use yaml", Reversible: true}))
	added, err := g.AddFiles(ctx, goal.ID, []string{"a.go", "b.go", "a.go"})
	require.NoError(t, err)
	assert.Equal(t, []string{"a.go", "b.go"}, added)

	stored, err := g.GetGoal(ctx, goal.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"flock is per open file"}, stored.Context.Learnings)
	require.Len(t, stored.Context.Decisions, 1)
	assert.False(t, stored.Context.Decisions[0].Date.IsZero())
	assert.Equal(t, []string{"a.go", "b.go"}, stored.Context.FilesRelated)
	assert.Len(t, stored.Snapshots, 1, "context edits are not snapshotted")

	idx, err := g.Index(ctx)
	require.NoError(t, err)
	entry, ok := idx.Goals[goal.ID]
	require.True(t, ok)
	assert.True(t, entry.Updated.Equal(stored.Updated), "index %s, goal %s", entry.Updated, stored.Updated)
}

func TestManualSnapshot(t *testing.T) {
	g := newTestGraph(t, store.BackendFile)
	ctx := context.Background()
	goal, err := g.CreateGoal(ctx, goalInput("Snap"))
	require.NoError(t, err)

	snap, err := g.Snapshot(ctx, goal.ID, "checkpoint", "before refactor")
	require.NoError(t, err)
	assert.Equal(t, goal.Snapshots[0], snap.PreviousSnapshot)

	_, err = g.Snapshot(ctx, goal.ID, " ", "")
	assert.True(t, model.IsValidation(err))

	history, err := g.History(ctx, goal.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, snap.ID, history[1].ID)

	_, err = g.History(ctx, "goal_missing")
	assert.True(t, model.IsNotFound(err))
}

func TestPurgeGoal(t *testing.T) {
	eachBackend(t, func(t *testing.T, g *Goalgraph) {
		ctx := context.Background()
		project, err := g.CreateProject(ctx, model.ProjectInput{Name: "p", Paths: []string{"/p"}})
		require.NoError(t, err)

		parent, err := g.CreateGoal(ctx, goalInput("Parent"))
		require.NoError(t, err)
		input := goalInput("Doomed")
		input.Parent = parent.ID
		input.Project = project.ID
		doomed, err := g.CreateGoal(ctx, input)
		require.NoError(t, err)
		_, err = g.FocusGoal(ctx, doomed.ID)
		require.NoError(t, err)

		require.NoError(t, g.PurgeGoal(ctx, doomed.ID))

		gone, err := g.GetGoal(ctx, doomed.ID)
		require.NoError(t, err)
		assert.Nil(t, gone)
		snaps, err := g.Store().ListSnapshots(ctx, doomed.ID)
		require.NoError(t, err)
		assert.Empty(t, snaps)

		stored, err := g.GetGoal(ctx, parent.ID)
		require.NoError(t, err)
		assert.Empty(t, stored.Children)

		p, err := g.GetProject(ctx, project.ID)
		require.NoError(t, err)
		assert.False(t, p.Goals.Contains(doomed.ID))

		state, err := g.Session(ctx)
		require.NoError(t, err)
		assert.Empty(t, state.ActiveGoal)

		idx, err := g.Index(ctx)
		require.NoError(t, err)
		assert.NotContains(t, idx.Goals, doomed.ID)

		assert.True(t, model.IsNotFound(g.PurgeGoal(ctx, doomed.ID)))
	})
}

func TestLockContention(t *testing.T) {
	root := t.TempDir()
	collector := newRecordingCollector()
	g := newTestGraph(t, store.BackendFile, func(c *Config) {
		c.Root = root
		c.LockTimeout = 50 * time.Millisecond
		c.Metrics = collector
	})

	other := store.NewFileLock(root)
	require.NoError(t, other.Acquire(context.Background(), 0))

	_, err := g.CreateGoal(context.Background(), goalInput("Blocked"))
	require.ErrorIs(t, err, model.ErrLocked)
	assert.Equal(t, 1, collector.errors["create_goal/lock"])

	require.NoError(t, other.Release())
	_, err = g.CreateGoal(context.Background(), goalInput("Unblocked"))
	require.NoError(t, err)
}

func TestMetricsAndTraceWiring(t *testing.T) {
	collector := newRecordingCollector()
	exporter := &memoryExporter{}
	g := newTestGraph(t, store.BackendFile, func(c *Config) {
		c.Metrics = collector
		c.Exporter = exporter
	})
	ctx := context.Background()

	goal, err := g.CreateGoal(ctx, goalInput("Observed"))
	require.NoError(t, err)
	_, err = g.SetProgress(ctx, goal.ID, 0.25)
	require.NoError(t, err)
	_, err = g.SwitchBranch(ctx, goal.ID, "branch_missing")
	require.Error(t, err)

	assert.Equal(t, 1, collector.operations["create_goal/success"])
	assert.Equal(t, 1, collector.operations["set_progress/success"])
	assert.Equal(t, 1, collector.errors["switch_branch/not_found"])
	assert.Equal(t, 1, collector.snapshots["manual"])
	assert.Equal(t, 1, collector.snapshots["auto_progress"])
	assert.Equal(t, int64(1), collector.goals["active"])
	assert.Equal(t, int64(0), collector.goals["completed"])

	last := exporter.last()
	require.NotNil(t, last)
	assert.Equal(t, "switch_branch", last.Operation)
	assert.Equal(t, "error", last.Status)
	assert.Equal(t, ErrTypeNotFound, last.ErrorType)
	assert.Equal(t, goal.ID, last.IDs["goal"])
	assert.NotEmpty(t, last.OperationID)

	first := exporter.records[0]
	names := make([]string, 0, len(first.Spans))
	for _, span := range first.Spans {
		names = append(names, span.Name)
	}
	assert.Equal(t, "lock", names[0])
	assert.Contains(t, names, "snapshot")
	assert.Contains(t, names, "persist")
	assert.Equal(t, "index", names[len(names)-1])
}

func TestTraceFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trace.jsonl")
	g := newTestGraph(t, store.BackendFile, func(c *Config) { c.TracePath = path })

	_, err := g.CreateGoal(context.Background(), goalInput("Traced"))
	require.NoError(t, err)
	require.NoError(t, g.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"operation":"create_goal"`)
	assert.NotContains(t, string(data), "Traced")
}

func TestRebuildIndex_PicksUpHandEdits(t *testing.T) {
	g := newTestGraph(t, store.BackendFile)
	ctx := context.Background()
	goal, err := g.CreateGoal(ctx, goalInput("Edited"))
	require.NoError(t, err)

	edited := goal.Clone()
	edited.Tags = []string{"hand"}
	require.NoError(t, g.Store().SaveGoal(ctx, edited))

	idx, err := g.Index(ctx)
	require.NoError(t, err)
	assert.Empty(t, idx.ByTag["hand"], "stored index is served until rebuilt")

	idx, err = g.RebuildIndex(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{goal.ID}, idx.ByTag["hand"])
}

func TestWatch_RequiresFileBackend(t *testing.T) {
	g := newTestGraph(t, store.BackendSQLite)
	err := g.Watch(context.Background(), 0)
	assert.True(t, model.IsValidation(err))
}
