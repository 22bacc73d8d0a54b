package store

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dan-solli/goalgraph/pkg/model"
)

// backends runs fn once against each Store implementation.
func backends(t *testing.T, fn func(t *testing.T, s Store)) {
	t.Helper()
	t.Run("file", func(t *testing.T) {
		s, err := NewFileStore(t.TempDir())
		require.NoError(t, err)
		defer s.Close()
		fn(t, s)
	})
	t.Run("sqlite", func(t *testing.T) {
		s, err := NewSQLiteStore(":memory:")
		require.NoError(t, err)
		defer s.Close()
		fn(t, s)
	})
}

func newGoal(t *testing.T, title string) *model.Goal {
	t.Helper()
	g, err := model.CreateGoal(model.CreateGoalInput{
		Title:        title,
		CurrentState: "polling every 5s",
		DesiredState: "server push",
		Project:      "proj_test",
		Tags:         []string{"backend"},
		Files:        []string{"server/events.go"},
	}, "tester")
	require.NoError(t, err)
	return g
}

func newSnapshot(goalID, event string, progress float64) *model.Snapshot {
	return &model.Snapshot{
		ID:           model.NewSnapshotID(),
		GoalID:       goalID,
		Created:      model.Now(),
		Event:        event,
		Trigger:      model.TriggerManual,
		CurrentState: "polling every 5s",
		DesiredState: "server push",
		Progress:     progress,
		Status:       model.StatusActive,
		Branch:       model.MainBranchID,
	}
}

func TestStore_GoalRoundTrip(t *testing.T) {
	backends(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		g := newGoal(t, "Add SSE")
		g.AddDecision(model.Decision{Decision: "use SSE", Rationale: "one-way", Reversible: true})
		g.AddLearning("proxies buffer")

		require.NoError(t, s.SaveGoal(ctx, g))
		loaded, err := s.LoadGoal(ctx, g.ID)
		require.NoError(t, err)
		require.NotNil(t, loaded)
		assert.Equal(t, g, loaded)
	})
}

func TestStore_LoadMissingReturnsNil(t *testing.T) {
	backends(t, func(t *testing.T, s Store) {
		ctx := context.Background()

		g, err := s.LoadGoal(ctx, "goal_missing")
		require.NoError(t, err)
		assert.Nil(t, g)

		snap, err := s.LoadSnapshot(ctx, "goal_missing", "snap_missing")
		require.NoError(t, err)
		assert.Nil(t, snap)

		b, err := s.LoadBranch(ctx, "goal_missing", model.MainBranchID)
		require.NoError(t, err)
		assert.Nil(t, b)

		p, err := s.LoadProject(ctx, "proj_missing")
		require.NoError(t, err)
		assert.Nil(t, p)

		sess, err := s.LoadSession(ctx)
		require.NoError(t, err)
		assert.Nil(t, sess)

		idx, err := s.LoadIndex(ctx)
		require.NoError(t, err)
		assert.Nil(t, idx)

		ids, err := s.ListGoals(ctx, true)
		require.NoError(t, err)
		assert.Empty(t, ids)
	})
}

func TestStore_SaveIsUpsert(t *testing.T) {
	backends(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		g := newGoal(t, "Add SSE")
		require.NoError(t, s.SaveGoal(ctx, g))

		g.Progress = 0.4
		require.NoError(t, s.SaveGoal(ctx, g))

		ids, err := s.ListGoals(ctx, false)
		require.NoError(t, err)
		assert.Equal(t, []string{g.ID}, ids)

		loaded, err := s.LoadGoal(ctx, g.ID)
		require.NoError(t, err)
		assert.Equal(t, 0.4, loaded.Progress)
	})
}

func TestStore_ArchiveScenario(t *testing.T) {
	backends(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		g := newGoal(t, "Retire the poller")
		require.NoError(t, s.SaveGoal(ctx, g))

		ok, err := s.ArchiveGoal(ctx, g.ID)
		require.NoError(t, err)
		assert.True(t, ok)

		loaded, err := s.LoadGoal(ctx, g.ID)
		require.NoError(t, err)
		require.NotNil(t, loaded)
		assert.Equal(t, g.ID, loaded.ID)

		active, err := s.ListGoals(ctx, false)
		require.NoError(t, err)
		assert.NotContains(t, active, g.ID)

		all, err := s.ListGoals(ctx, true)
		require.NoError(t, err)
		assert.Contains(t, all, g.ID)

		// A second archive finds nothing active.
		ok, err = s.ArchiveGoal(ctx, g.ID)
		require.NoError(t, err)
		assert.False(t, ok)

		// Updating an archived goal keeps it archived.
		loaded.Title = "Retired"
		require.NoError(t, s.SaveGoal(ctx, loaded))
		active, err = s.ListGoals(ctx, false)
		require.NoError(t, err)
		assert.NotContains(t, active, g.ID)
	})
}

func TestStore_SnapshotsAreChronologicalAndImmutable(t *testing.T) {
	backends(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		g := newGoal(t, "Add SSE")

		var want []string
		for i, event := range []string{"created", "endpoint stub", "client wired"} {
			snap := newSnapshot(g.ID, event, float64(i)/2)
			require.NoError(t, s.SaveSnapshot(ctx, snap))
			want = append(want, snap.ID)
		}

		ids, err := s.ListSnapshots(ctx, g.ID)
		require.NoError(t, err)
		assert.Equal(t, want, ids)

		loaded, err := s.LoadSnapshot(ctx, g.ID, want[1])
		require.NoError(t, err)
		require.NotNil(t, loaded)
		assert.Equal(t, "endpoint stub", loaded.Event)
		assert.Equal(t, 0.5, loaded.Progress)

		dup := newSnapshot(g.ID, "rewritten", 1)
		dup.ID = want[0]
		err = s.SaveSnapshot(ctx, dup)
		var conflict *model.ConflictError
		require.ErrorAs(t, err, &conflict)

		orig, err := s.LoadSnapshot(ctx, g.ID, want[0])
		require.NoError(t, err)
		assert.Equal(t, "created", orig.Event)
	})
}

func TestStore_BranchAndProjectRoundTrip(t *testing.T) {
	backends(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		g := newGoal(t, "Add SSE")

		mainBranch := model.NewMainBranch(g.ID, "tester", g.Created)
		side := &model.Branch{
			ID:           model.BranchID("try websockets"),
			GoalID:       g.ID,
			Name:         "try websockets",
			Status:       model.BranchAbandoned,
			Created:      model.Now(),
			ParentBranch: model.MainBranchID,
			Resolution: &model.Resolution{
				Status:    model.BranchAbandoned,
				Reason:    "proxy trouble",
				DecidedAt: model.Now(),
			},
		}
		require.NoError(t, s.SaveBranch(ctx, mainBranch))
		require.NoError(t, s.SaveBranch(ctx, side))

		ids, err := s.ListBranches(ctx, g.ID)
		require.NoError(t, err)
		assert.Equal(t, []string{model.MainBranchID, "branch_try_websockets"}, ids)

		loaded, err := s.LoadBranch(ctx, g.ID, side.ID)
		require.NoError(t, err)
		assert.Equal(t, side, loaded)

		ok, err := s.DeleteBranch(ctx, g.ID, side.ID)
		require.NoError(t, err)
		assert.True(t, ok)
		ok, err = s.DeleteBranch(ctx, g.ID, side.ID)
		require.NoError(t, err)
		assert.False(t, ok)

		p, err := model.NewProject(model.ProjectInput{Name: "web", Paths: []string{"/src/web"}})
		require.NoError(t, err)
		model.AddGoalToProject(p, g.ID, model.StatusActive)
		require.NoError(t, s.SaveProject(ctx, p))

		lp, err := s.LoadProject(ctx, p.ID)
		require.NoError(t, err)
		assert.Equal(t, p.Goals, lp.Goals)
		assert.Equal(t, p.Paths, lp.Paths)

		pids, err := s.ListProjects(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{p.ID}, pids)

		ok, err = s.DeleteProject(ctx, p.ID)
		require.NoError(t, err)
		assert.True(t, ok)
	})
}

func TestStore_DeleteGoalRemovesHistory(t *testing.T) {
	backends(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		g := newGoal(t, "Add SSE")
		require.NoError(t, s.SaveGoal(ctx, g))
		require.NoError(t, s.SaveSnapshot(ctx, newSnapshot(g.ID, "created", 0)))
		require.NoError(t, s.SaveBranch(ctx, model.NewMainBranch(g.ID, "tester", g.Created)))

		ok, err := s.DeleteGoal(ctx, g.ID)
		require.NoError(t, err)
		assert.True(t, ok)

		loaded, err := s.LoadGoal(ctx, g.ID)
		require.NoError(t, err)
		assert.Nil(t, loaded)

		snaps, err := s.ListSnapshots(ctx, g.ID)
		require.NoError(t, err)
		assert.Empty(t, snaps)

		branches, err := s.ListBranches(ctx, g.ID)
		require.NoError(t, err)
		assert.Empty(t, branches)

		ok, err = s.DeleteGoal(ctx, g.ID)
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestStore_SessionAndIndex(t *testing.T) {
	backends(t, func(t *testing.T, s Store) {
		ctx := context.Background()

		started := model.Now()
		state := model.NewSessionState()
		state.SessionID = "sess-1"
		state.ActiveGoal = "goal_x"
		state.StartedAt = &started
		require.NoError(t, s.SaveSession(ctx, state))

		loaded, err := s.LoadSession(ctx)
		require.NoError(t, err)
		require.NotNil(t, loaded)
		assert.Equal(t, "goal_x", loaded.ActiveGoal)
		require.NotNil(t, loaded.StartedAt)
		assert.True(t, started.Equal(*loaded.StartedAt))

		idx := &model.Index{
			Generated: model.Now(),
			Goals: map[string]model.IndexEntry{
				"goal_x": {ID: "goal_x", Title: "X", Status: model.StatusActive, Branch: model.MainBranchID},
			},
			ByStatus:  map[string][]string{"active": {"goal_x"}},
			ByProject: map[string][]string{},
			ByTag:     map[string][]string{},
			Edges:     []model.Edge{{From: "goal_x", To: "goal_y", Type: model.EdgeDependsOn}},
		}
		require.NoError(t, s.SaveIndex(ctx, idx))

		li, err := s.LoadIndex(ctx)
		require.NoError(t, err)
		require.NotNil(t, li)
		assert.Equal(t, model.IndexSchemaVersion, li.SchemaVersion)
		assert.Equal(t, idx.Goals, li.Goals)
		assert.Equal(t, idx.Edges, li.Edges)
	})
}

func TestStore_RejectsPathLikeIDs(t *testing.T) {
	backends(t, func(t *testing.T, s Store) {
		g := newGoal(t, "Add SSE")
		g.ID = "../escape"
		err := s.SaveGoal(context.Background(), g)
		assert.True(t, model.IsValidation(err), "got %v", err)
	})
}

func TestFileStore_Layout(t *testing.T) {
	root := t.TempDir()
	s, err := NewFileStore(root)
	require.NoError(t, err)
	ctx := context.Background()

	// Nothing is created until the first write.
	entries, err := os.ReadDir(root)
	require.NoError(t, err)
	assert.Empty(t, entries)

	g := newGoal(t, "Add SSE")
	require.NoError(t, s.SaveGoal(ctx, g))
	snap := newSnapshot(g.ID, "created", 0)
	require.NoError(t, s.SaveSnapshot(ctx, snap))

	assert.FileExists(t, filepath.Join(root, "goals", g.ID+".yaml"))
	assert.FileExists(t, filepath.Join(root, "history", g.ID, "snapshots", snap.ID+".yaml"))

	_, err = s.ArchiveGoal(ctx, g.ID)
	require.NoError(t, err)
	assert.NoFileExists(t, filepath.Join(root, "goals", g.ID+".yaml"))
	assert.FileExists(t, filepath.Join(root, "archive", g.ID+".yaml"))

	// Temporary files never linger.
	tmps, err := filepath.Glob(filepath.Join(root, "*", ".tmp-*"))
	require.NoError(t, err)
	assert.Empty(t, tmps)
}

func TestFileStore_SchemaVersionMismatch(t *testing.T) {
	root := t.TempDir()
	s, err := NewFileStore(root)
	require.NoError(t, err)

	path := filepath.Join(root, "goals", "goal_future.yaml")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("schema_version: 2\nid: goal_future\ntitle: from the future\n"), 0o644))

	_, err = s.LoadGoal(context.Background(), "goal_future")
	var schemaErr *model.SchemaError
	require.ErrorAs(t, err, &schemaErr)
	assert.Equal(t, 2, schemaErr.Version)
}

func TestFileStore_CorruptRecord(t *testing.T) {
	root := t.TempDir()
	s, err := NewFileStore(root)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(root, "index.json"), []byte("{not json"), 0o644))
	_, err = s.LoadIndex(context.Background())
	var storageErr *model.StorageError
	require.ErrorAs(t, err, &storageErr)
}

func TestSQLiteStore_SchemaVersionMismatch(t *testing.T) {
	s, err := NewSQLiteStore(":memory:")
	require.NoError(t, err)
	defer s.Close()

	_, err = s.db.Exec(`INSERT INTO records (kind, owner, id, body) VALUES ('goal', '', 'goal_old', ?)`,
		[]byte("id: goal_old\ntitle: no version\n"))
	require.NoError(t, err)

	_, err = s.LoadGoal(context.Background(), "goal_old")
	var schemaErr *model.SchemaError
	require.ErrorAs(t, err, &schemaErr)
	assert.Equal(t, 0, schemaErr.Version)
}

func TestSQLiteStore_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "goalgraph.db")
	s, err := NewSQLiteStore(path)
	require.NoError(t, err)

	g := newGoal(t, "Add SSE")
	require.NoError(t, s.SaveGoal(context.Background(), g))
	require.NoError(t, s.Close())

	s, err = NewSQLiteStore(path)
	require.NoError(t, err)
	defer s.Close()
	loaded, err := s.LoadGoal(context.Background(), g.ID)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, g.Title, loaded.Title)
}

func TestOpen_SelectsBackend(t *testing.T) {
	root := t.TempDir()

	fileStore, err := Open(Options{Root: root})
	require.NoError(t, err)
	assert.IsType(t, &FileStore{}, fileStore)

	db, err := Open(Options{Root: root, Backend: BackendSQLite})
	require.NoError(t, err)
	defer db.Close()
	assert.IsType(t, &SQLiteStore{}, db)
	assert.FileExists(t, filepath.Join(root, "goalgraph.db"))

	_, err = Open(Options{Root: root, Backend: "etcd"})
	assert.True(t, model.IsValidation(err))
}

func TestFileLock_ExcludesSecondHolder(t *testing.T) {
	root := t.TempDir()
	ctx := context.Background()

	first := NewFileLock(root)
	require.NoError(t, first.Acquire(ctx, time.Second))

	second := NewFileLock(root)
	start := time.Now()
	err := second.Acquire(ctx, 100*time.Millisecond)
	require.ErrorIs(t, err, model.ErrLocked)
	assert.GreaterOrEqual(t, time.Since(start), 100*time.Millisecond)

	require.NoError(t, first.Release())
	require.NoError(t, second.Acquire(ctx, time.Second))
	require.NoError(t, second.Release())

	// Releasing twice is harmless.
	require.NoError(t, second.Release())
}

func TestFileLock_WaitsForRelease(t *testing.T) {
	root := t.TempDir()
	ctx := context.Background()

	first := NewFileLock(root)
	require.NoError(t, first.Acquire(ctx, 0))

	go func() {
		time.Sleep(50 * time.Millisecond)
		first.Release()
	}()

	second := NewFileLock(root)
	require.NoError(t, second.Acquire(ctx, 2*time.Second))
	require.NoError(t, second.Release())
}

func TestSQLiteStore_MigratesOlderSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "old.db")
	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	_, err = db.Exec(`CREATE TABLE records (
		kind TEXT NOT NULL,
		owner TEXT NOT NULL DEFAULT '',
		id TEXT NOT NULL,
		archived INTEGER NOT NULL DEFAULT 0,
		body BLOB NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (kind, owner, id)
	)`)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	s, err := NewSQLiteStore(path)
	require.NoError(t, err)
	defer s.Close()
	assert.True(t, s.columnExists("records", "updated_at"))

	g := newGoal(t, "After migration")
	require.NoError(t, s.SaveGoal(context.Background(), g))
	loaded, err := s.LoadGoal(context.Background(), g.ID)
	require.NoError(t, err)
	require.NotNil(t, loaded)

	fresh, err := NewSQLiteStore(":memory:")
	require.NoError(t, err)
	defer fresh.Close()
	assert.True(t, fresh.columnExists("records", "updated_at"))
}
