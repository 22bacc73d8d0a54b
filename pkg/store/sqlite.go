package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/dan-solli/goalgraph/pkg/model"
)

// SQLiteStore implements Store using SQLite as the backend.
//
// Every record is one row of the records table, keyed by (kind, owner, id).
// owner is the goal ID for snapshots and branches and empty otherwise. The
// body column holds the same YAML document FileStore would write, or JSON for
// the index.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite-backed record store.
// The dbPath can be a file path or ":memory:" for an in-memory database.
// Creates tables and indexes if they don't exist.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, &model.StorageError{Op: "mkdir", Path: filepath.Dir(dbPath), Err: err}
		}
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One connection keeps ":memory:" a single database and serializes writers.
	db.SetMaxOpenConns(1)

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

// initSchema creates the database schema if it doesn't exist.
// Also performs schema migrations for new columns.
func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS records (
		kind TEXT NOT NULL,
		owner TEXT NOT NULL DEFAULT '',
		id TEXT NOT NULL,
		archived INTEGER NOT NULL DEFAULT 0,
		body BLOB NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT NULL,
		PRIMARY KEY (kind, owner, id)
	);

	CREATE INDEX IF NOT EXISTS idx_records_owner ON records(owner);
	`

	_, err := s.db.Exec(schema)
	if err != nil {
		return err
	}

	return s.migrateSchema()
}

// migrateSchema adds columns missing from databases created before
// updated_at was part of the records table.
func (s *SQLiteStore) migrateSchema() error {
	if !s.columnExists("records", "updated_at") {
		_, err := s.db.Exec("ALTER TABLE records ADD COLUMN updated_at DATETIME DEFAULT NULL")
		if err != nil {
			return fmt.Errorf("failed to add updated_at column: %w", err)
		}
	}

	return nil
}

// columnExists checks if a column exists in a table.
func (s *SQLiteStore) columnExists(tableName, columnName string) bool {
	query := fmt.Sprintf("PRAGMA table_info(%s)", tableName)
	rows, err := s.db.Query(query)
	if err != nil {
		return false
	}
	defer rows.Close()

	for rows.Next() {
		var cid int
		var name string
		var ctype string
		var notnull int
		var dfltValue sql.NullString
		var pk int

		err := rows.Scan(&cid, &name, &ctype, &notnull, &dfltValue, &pk)
		if err != nil {
			return false
		}

		if name == columnName {
			return true
		}
	}

	return false
}

// upsert writes a record body, preserving the archived flag of an existing row.
func (s *SQLiteStore) upsert(ctx context.Context, kind, owner, id string, body []byte) error {
	query := `
		INSERT INTO records (kind, owner, id, body, updated_at)
		VALUES (?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(kind, owner, id) DO UPDATE SET
			body = excluded.body,
			updated_at = excluded.updated_at
	`
	if _, err := s.db.ExecContext(ctx, query, kind, owner, id, body); err != nil {
		return &model.StorageError{Op: "save " + kind, Path: id, Err: err}
	}
	return nil
}

// body fetches a record body; found is false when the row is absent.
func (s *SQLiteStore) body(ctx context.Context, kind, owner, id string) ([]byte, bool, error) {
	var body []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT body FROM records WHERE kind = ? AND owner = ? AND id = ?`,
		kind, owner, id,
	).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, &model.StorageError{Op: "load " + kind, Path: id, Err: err}
	}
	return body, true, nil
}

func (s *SQLiteStore) load(ctx context.Context, kind, owner, id string, v any) (bool, error) {
	body, found, err := s.body(ctx, kind, owner, id)
	if err != nil || !found {
		return false, err
	}
	if err := decodeRecord(kind, id, body, v); err != nil {
		return false, err
	}
	return true, nil
}

func (s *SQLiteStore) ids(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, &model.StorageError{Op: "list", Err: err}
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, &model.StorageError{Op: "list", Err: err}
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, &model.StorageError{Op: "list", Err: err}
	}
	return ids, nil
}

func (s *SQLiteStore) remove(ctx context.Context, kind, owner, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM records WHERE kind = ? AND owner = ? AND id = ?`, kind, owner, id)
	if err != nil {
		return false, &model.StorageError{Op: "delete " + kind, Path: id, Err: err}
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, &model.StorageError{Op: "delete " + kind, Path: id, Err: err}
	}
	return n > 0, nil
}

// SaveGoal adds or updates a goal. An archived goal stays archived.
func (s *SQLiteStore) SaveGoal(ctx context.Context, goal *model.Goal) error {
	if err := checkID(kindGoal, goal.ID); err != nil {
		return err
	}
	stamp(&goal.SchemaVersion)
	body, err := encodeRecord(kindGoal, goal.ID, goal)
	if err != nil {
		return err
	}
	return s.upsert(ctx, kindGoal, "", goal.ID, body)
}

// LoadGoal retrieves a goal whether active or archived.
func (s *SQLiteStore) LoadGoal(ctx context.Context, id string) (*model.Goal, error) {
	var g model.Goal
	found, err := s.load(ctx, kindGoal, "", id, &g)
	if err != nil || !found {
		return nil, err
	}
	return &g, nil
}

func (s *SQLiteStore) ListGoals(ctx context.Context, includeArchived bool) ([]string, error) {
	if includeArchived {
		return s.ids(ctx, `SELECT id FROM records WHERE kind = ? ORDER BY id`, kindGoal)
	}
	return s.ids(ctx, `SELECT id FROM records WHERE kind = ? AND archived = 0 ORDER BY id`, kindGoal)
}

// ArchiveGoal flags an active goal as archived.
func (s *SQLiteStore) ArchiveGoal(ctx context.Context, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE records SET archived = 1, updated_at = CURRENT_TIMESTAMP
		 WHERE kind = ? AND owner = '' AND id = ? AND archived = 0`, kindGoal, id)
	if err != nil {
		return false, &model.StorageError{Op: "archive goal", Path: id, Err: err}
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, &model.StorageError{Op: "archive goal", Path: id, Err: err}
	}
	return n > 0, nil
}

// DeleteGoal removes the goal row and every row it owns in one transaction.
func (s *SQLiteStore) DeleteGoal(ctx context.Context, id string) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, &model.StorageError{Op: "delete goal", Path: id, Err: err}
	}
	defer tx.Rollback()

	var total int64
	for _, q := range []string{
		`DELETE FROM records WHERE kind = 'goal' AND owner = '' AND id = ?`,
		`DELETE FROM records WHERE owner = ?`,
	} {
		res, err := tx.ExecContext(ctx, q, id)
		if err != nil {
			return false, &model.StorageError{Op: "delete goal", Path: id, Err: err}
		}
		n, _ := res.RowsAffected()
		total += n
	}
	if err := tx.Commit(); err != nil {
		return false, &model.StorageError{Op: "delete goal", Path: id, Err: err}
	}
	return total > 0, nil
}

// SaveSnapshot inserts a snapshot row; an existing ID is a conflict.
func (s *SQLiteStore) SaveSnapshot(ctx context.Context, snap *model.Snapshot) error {
	if err := checkID(kindSnapshot, snap.ID); err != nil {
		return err
	}
	stamp(&snap.SchemaVersion)
	body, err := encodeRecord(kindSnapshot, snap.ID, snap)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO records (kind, owner, id, body, updated_at)
		VALUES (?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(kind, owner, id) DO NOTHING
	`, kindSnapshot, snap.GoalID, snap.ID, body)
	if err != nil {
		return &model.StorageError{Op: "save snapshot", Path: snap.ID, Err: err}
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return &model.ConflictError{Kind: kindSnapshot, ID: snap.ID}
	}
	return nil
}

func (s *SQLiteStore) LoadSnapshot(ctx context.Context, goalID, id string) (*model.Snapshot, error) {
	var snap model.Snapshot
	found, err := s.load(ctx, kindSnapshot, goalID, id, &snap)
	if err != nil || !found {
		return nil, err
	}
	return &snap, nil
}

// ListSnapshots orders by ID, which embeds the creation timestamp.
func (s *SQLiteStore) ListSnapshots(ctx context.Context, goalID string) ([]string, error) {
	return s.ids(ctx, `SELECT id FROM records WHERE kind = ? AND owner = ? ORDER BY id`, kindSnapshot, goalID)
}

func (s *SQLiteStore) SaveBranch(ctx context.Context, branch *model.Branch) error {
	if err := checkID(kindBranch, branch.ID); err != nil {
		return err
	}
	stamp(&branch.SchemaVersion)
	body, err := encodeRecord(kindBranch, branch.ID, branch)
	if err != nil {
		return err
	}
	return s.upsert(ctx, kindBranch, branch.GoalID, branch.ID, body)
}

func (s *SQLiteStore) LoadBranch(ctx context.Context, goalID, id string) (*model.Branch, error) {
	var b model.Branch
	found, err := s.load(ctx, kindBranch, goalID, id, &b)
	if err != nil || !found {
		return nil, err
	}
	return &b, nil
}

func (s *SQLiteStore) ListBranches(ctx context.Context, goalID string) ([]string, error) {
	return s.ids(ctx, `SELECT id FROM records WHERE kind = ? AND owner = ? ORDER BY id`, kindBranch, goalID)
}

func (s *SQLiteStore) DeleteBranch(ctx context.Context, goalID, id string) (bool, error) {
	return s.remove(ctx, kindBranch, goalID, id)
}

func (s *SQLiteStore) SaveProject(ctx context.Context, project *model.Project) error {
	if err := checkID(kindProject, project.ID); err != nil {
		return err
	}
	stamp(&project.SchemaVersion)
	body, err := encodeRecord(kindProject, project.ID, project)
	if err != nil {
		return err
	}
	return s.upsert(ctx, kindProject, "", project.ID, body)
}

func (s *SQLiteStore) LoadProject(ctx context.Context, id string) (*model.Project, error) {
	var p model.Project
	found, err := s.load(ctx, kindProject, "", id, &p)
	if err != nil || !found {
		return nil, err
	}
	return &p, nil
}

func (s *SQLiteStore) ListProjects(ctx context.Context) ([]string, error) {
	return s.ids(ctx, `SELECT id FROM records WHERE kind = ? ORDER BY id`, kindProject)
}

func (s *SQLiteStore) DeleteProject(ctx context.Context, id string) (bool, error) {
	return s.remove(ctx, kindProject, "", id)
}

func (s *SQLiteStore) SaveSession(ctx context.Context, state *model.SessionState) error {
	stamp(&state.SchemaVersion)
	body, err := encodeRecord(kindSession, kindSession, state)
	if err != nil {
		return err
	}
	return s.upsert(ctx, kindSession, "", kindSession, body)
}

func (s *SQLiteStore) LoadSession(ctx context.Context) (*model.SessionState, error) {
	var state model.SessionState
	found, err := s.load(ctx, kindSession, "", kindSession, &state)
	if err != nil || !found {
		return nil, err
	}
	return &state, nil
}

func (s *SQLiteStore) SaveIndex(ctx context.Context, idx *model.Index) error {
	if idx.SchemaVersion == 0 {
		idx.SchemaVersion = model.IndexSchemaVersion
	}
	body, err := encodeIndex(idx)
	if err != nil {
		return err
	}
	return s.upsert(ctx, kindIndex, "", kindIndex, body)
}

func (s *SQLiteStore) LoadIndex(ctx context.Context) (*model.Index, error) {
	body, found, err := s.body(ctx, kindIndex, "", kindIndex)
	if err != nil || !found {
		return nil, err
	}
	return decodeIndex(body)
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
