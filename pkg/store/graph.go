// Package store provides durable record storage for goalgraph's entities.
//
// Two backends implement Store: FileStore keeps one human-editable YAML
// document per record on a file tree; SQLiteStore keeps one row per record in
// an embedded SQLite database. Both encode records with the same codec, so a
// record's content is independent of where it lives.
package store

import (
	"context"

	"github.com/dan-solli/goalgraph/pkg/model"
)

// GoalStore persists goals in an active area and an archived area.
type GoalStore interface {
	// SaveGoal adds or updates a goal.
	// An archived goal is updated in the archived area.
	SaveGoal(ctx context.Context, goal *model.Goal) error

	// LoadGoal retrieves a goal by its ID, looking in the active area first
	// and then the archived area.
	// Returns (nil, nil) if the goal is not found (no error).
	LoadGoal(ctx context.Context, id string) (*model.Goal, error)

	// ListGoals returns goal IDs sorted lexicographically.
	// Archived goals are only included when includeArchived is set.
	ListGoals(ctx context.Context, includeArchived bool) ([]string, error)

	// ArchiveGoal moves a goal from the active area to the archived area.
	// Returns false (no error) if the goal is not currently active.
	ArchiveGoal(ctx context.Context, id string) (bool, error)

	// DeleteGoal removes a goal and its snapshots and branches from every area.
	// Returns false if nothing was removed.
	DeleteGoal(ctx context.Context, id string) (bool, error)
}

// SnapshotStore persists the snapshot history of each goal.
type SnapshotStore interface {
	// SaveSnapshot persists a new snapshot. Snapshots are immutable: saving
	// an ID that already exists fails with *model.ConflictError.
	SaveSnapshot(ctx context.Context, snap *model.Snapshot) error

	// LoadSnapshot retrieves one snapshot of a goal.
	// Returns (nil, nil) if the snapshot is not found (no error).
	LoadSnapshot(ctx context.Context, goalID, id string) (*model.Snapshot, error)

	// ListSnapshots returns a goal's snapshot IDs in chronological order.
	ListSnapshots(ctx context.Context, goalID string) ([]string, error)
}

// BranchStore persists the branches of each goal.
type BranchStore interface {
	// SaveBranch adds or updates a branch.
	SaveBranch(ctx context.Context, branch *model.Branch) error

	// LoadBranch retrieves one branch of a goal.
	// Returns (nil, nil) if the branch is not found (no error).
	LoadBranch(ctx context.Context, goalID, id string) (*model.Branch, error)

	// ListBranches returns a goal's branch IDs sorted lexicographically.
	ListBranches(ctx context.Context, goalID string) ([]string, error)

	// DeleteBranch removes a branch record. Returns false if it did not exist.
	DeleteBranch(ctx context.Context, goalID, id string) (bool, error)
}

// ProjectStore persists projects.
type ProjectStore interface {
	SaveProject(ctx context.Context, project *model.Project) error
	// LoadProject returns (nil, nil) if the project is not found.
	LoadProject(ctx context.Context, id string) (*model.Project, error)
	ListProjects(ctx context.Context) ([]string, error)
	DeleteProject(ctx context.Context, id string) (bool, error)
}

// SessionStore persists the single session state record.
type SessionStore interface {
	SaveSession(ctx context.Context, state *model.SessionState) error
	// LoadSession returns (nil, nil) if no session has been recorded yet.
	LoadSession(ctx context.Context) (*model.SessionState, error)
}

// IndexStore persists the derived index as one whole document.
type IndexStore interface {
	// SaveIndex replaces the stored index. The previous index stays intact
	// until the new one is fully written.
	SaveIndex(ctx context.Context, idx *model.Index) error

	// LoadIndex returns (nil, nil) if no index has been written yet.
	LoadIndex(ctx context.Context) (*model.Index, error)
}

// Store is the complete record store.
type Store interface {
	GoalStore
	SnapshotStore
	BranchStore
	ProjectStore
	SessionStore
	IndexStore

	// Close releases any resources held by the store (e.g., database connections).
	Close() error
}

// Backend names a Store implementation.
type Backend string

const (
	BackendFile   Backend = "file"
	BackendSQLite Backend = "sqlite"
)

// Options locates a store. It is built once at process start and not
// modified afterwards.
type Options struct {
	// Root is the store directory. FileStore keeps its records here; both
	// backends keep the lock file here.
	Root string

	// Backend selects the implementation (default: file).
	Backend Backend

	// DBPath is the SQLite database path (default: <Root>/goalgraph.db).
	// ":memory:" opens an in-memory database.
	DBPath string
}

// Open constructs the backend selected by opts.
func Open(opts Options) (Store, error) {
	switch opts.Backend {
	case "", BackendFile:
		return NewFileStore(opts.Root)
	case BackendSQLite:
		path := opts.DBPath
		if path == "" {
			path = defaultDBPath(opts.Root)
		}
		return NewSQLiteStore(path)
	default:
		return nil, &model.ValidationError{Field: "backend", Reason: "unknown backend " + string(opts.Backend)}
	}
}
