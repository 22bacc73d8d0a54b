package store

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/dan-solli/goalgraph/pkg/model"
)

const recordExt = ".yaml"

// FileStore implements Store as a tree of YAML documents under a root
// directory:
//
//	goals/<id>.yaml                        active goals
//	archive/<id>.yaml                      archived goals
//	history/<goal>/snapshots/<id>.yaml     snapshots, one file each
//	history/<goal>/branches/<id>.yaml      branches
//	projects/<id>.yaml                     projects
//	session.yaml                           session state
//	index.json                             derived index
//
// Directories are created on first write. Every write goes to a temporary
// file in the target directory and is renamed into place, so a reader never
// sees a partially written record.
type FileStore struct {
	root string
}

// NewFileStore creates a store rooted at root. The directory does not need
// to exist yet.
func NewFileStore(root string) (*FileStore, error) {
	if strings.TrimSpace(root) == "" {
		return nil, &model.ValidationError{Field: "root", Reason: "must not be empty"}
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, &model.StorageError{Op: "resolve root", Path: root, Err: err}
	}
	return &FileStore{root: abs}, nil
}

// Root returns the absolute store directory.
func (s *FileStore) Root() string {
	return s.root
}

func (s *FileStore) activePath(id string) string {
	return filepath.Join(s.root, "goals", id+recordExt)
}

func (s *FileStore) archivePath(id string) string {
	return filepath.Join(s.root, "archive", id+recordExt)
}

func (s *FileStore) historyDir(goalID string) string {
	return filepath.Join(s.root, "history", goalID)
}

func (s *FileStore) snapshotPath(goalID, id string) string {
	return filepath.Join(s.historyDir(goalID), "snapshots", id+recordExt)
}

func (s *FileStore) branchPath(goalID, id string) string {
	return filepath.Join(s.historyDir(goalID), "branches", id+recordExt)
}

func (s *FileStore) projectPath(id string) string {
	return filepath.Join(s.root, "projects", id+recordExt)
}

func (s *FileStore) sessionPath() string {
	return filepath.Join(s.root, "session"+recordExt)
}

func (s *FileStore) indexPath() string {
	return filepath.Join(s.root, "index.json")
}

// SaveGoal adds or updates a goal in whichever area currently holds it.
func (s *FileStore) SaveGoal(ctx context.Context, goal *model.Goal) error {
	if err := checkID(kindGoal, goal.ID); err != nil {
		return err
	}
	stamp(&goal.SchemaVersion)
	data, err := encodeRecord(kindGoal, goal.ID, goal)
	if err != nil {
		return err
	}
	path := s.activePath(goal.ID)
	if exists(s.archivePath(goal.ID)) && !exists(path) {
		path = s.archivePath(goal.ID)
	}
	return writeFileAtomic(path, data)
}

// LoadGoal retrieves a goal from the active area, then the archive.
func (s *FileStore) LoadGoal(ctx context.Context, id string) (*model.Goal, error) {
	if err := checkID(kindGoal, id); err != nil {
		return nil, err
	}
	for _, path := range []string{s.activePath(id), s.archivePath(id)} {
		var g model.Goal
		found, err := readRecord(kindGoal, id, path, &g)
		if err != nil {
			return nil, err
		}
		if found {
			return &g, nil
		}
	}
	return nil, nil
}

// ListGoals returns goal IDs from the active area and optionally the archive.
func (s *FileStore) ListGoals(ctx context.Context, includeArchived bool) ([]string, error) {
	ids, err := listRecords(filepath.Join(s.root, "goals"))
	if err != nil {
		return nil, err
	}
	if !includeArchived {
		return ids, nil
	}
	archived, err := listRecords(filepath.Join(s.root, "archive"))
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		seen[id] = true
	}
	for _, id := range archived {
		if !seen[id] {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// ArchiveGoal moves a goal document from goals/ to archive/.
func (s *FileStore) ArchiveGoal(ctx context.Context, id string) (bool, error) {
	if err := checkID(kindGoal, id); err != nil {
		return false, err
	}
	src := s.activePath(id)
	if !exists(src) {
		return false, nil
	}
	dst := s.archivePath(id)
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return false, &model.StorageError{Op: "archive goal", Path: dst, Err: err}
	}
	if err := os.Rename(src, dst); err != nil {
		return false, &model.StorageError{Op: "archive goal", Path: src, Err: err}
	}
	return true, nil
}

// DeleteGoal removes a goal from both areas along with its history.
func (s *FileStore) DeleteGoal(ctx context.Context, id string) (bool, error) {
	if err := checkID(kindGoal, id); err != nil {
		return false, err
	}
	removed := false
	for _, path := range []string{s.activePath(id), s.archivePath(id)} {
		ok, err := removeFile(path)
		if err != nil {
			return removed, err
		}
		removed = removed || ok
	}
	dir := s.historyDir(id)
	if exists(dir) {
		if err := os.RemoveAll(dir); err != nil {
			return removed, &model.StorageError{Op: "delete history", Path: dir, Err: err}
		}
		removed = true
	}
	return removed, nil
}

// SaveSnapshot writes a new snapshot file. The file is linked into place so
// an existing snapshot is never replaced.
func (s *FileStore) SaveSnapshot(ctx context.Context, snap *model.Snapshot) error {
	if err := checkID(kindGoal, snap.GoalID); err != nil {
		return err
	}
	if err := checkID(kindSnapshot, snap.ID); err != nil {
		return err
	}
	stamp(&snap.SchemaVersion)
	data, err := encodeRecord(kindSnapshot, snap.ID, snap)
	if err != nil {
		return err
	}
	path := s.snapshotPath(snap.GoalID, snap.ID)
	if err := writeFileExclusive(path, data); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return &model.ConflictError{Kind: kindSnapshot, ID: snap.ID}
		}
		return err
	}
	return nil
}

func (s *FileStore) LoadSnapshot(ctx context.Context, goalID, id string) (*model.Snapshot, error) {
	if err := checkID(kindGoal, goalID); err != nil {
		return nil, err
	}
	if err := checkID(kindSnapshot, id); err != nil {
		return nil, err
	}
	var snap model.Snapshot
	found, err := readRecord(kindSnapshot, id, s.snapshotPath(goalID, id), &snap)
	if err != nil || !found {
		return nil, err
	}
	return &snap, nil
}

// ListSnapshots returns snapshot IDs in chronological order. Snapshot IDs
// embed a millisecond timestamp, so name order is creation order.
func (s *FileStore) ListSnapshots(ctx context.Context, goalID string) ([]string, error) {
	if err := checkID(kindGoal, goalID); err != nil {
		return nil, err
	}
	return listRecords(filepath.Join(s.historyDir(goalID), "snapshots"))
}

func (s *FileStore) SaveBranch(ctx context.Context, branch *model.Branch) error {
	if err := checkID(kindGoal, branch.GoalID); err != nil {
		return err
	}
	if err := checkID(kindBranch, branch.ID); err != nil {
		return err
	}
	stamp(&branch.SchemaVersion)
	data, err := encodeRecord(kindBranch, branch.ID, branch)
	if err != nil {
		return err
	}
	return writeFileAtomic(s.branchPath(branch.GoalID, branch.ID), data)
}

func (s *FileStore) LoadBranch(ctx context.Context, goalID, id string) (*model.Branch, error) {
	if err := checkID(kindGoal, goalID); err != nil {
		return nil, err
	}
	if err := checkID(kindBranch, id); err != nil {
		return nil, err
	}
	var b model.Branch
	found, err := readRecord(kindBranch, id, s.branchPath(goalID, id), &b)
	if err != nil || !found {
		return nil, err
	}
	return &b, nil
}

func (s *FileStore) ListBranches(ctx context.Context, goalID string) ([]string, error) {
	if err := checkID(kindGoal, goalID); err != nil {
		return nil, err
	}
	return listRecords(filepath.Join(s.historyDir(goalID), "branches"))
}

func (s *FileStore) DeleteBranch(ctx context.Context, goalID, id string) (bool, error) {
	if err := checkID(kindGoal, goalID); err != nil {
		return false, err
	}
	if err := checkID(kindBranch, id); err != nil {
		return false, err
	}
	return removeFile(s.branchPath(goalID, id))
}

func (s *FileStore) SaveProject(ctx context.Context, project *model.Project) error {
	if err := checkID(kindProject, project.ID); err != nil {
		return err
	}
	stamp(&project.SchemaVersion)
	data, err := encodeRecord(kindProject, project.ID, project)
	if err != nil {
		return err
	}
	return writeFileAtomic(s.projectPath(project.ID), data)
}

func (s *FileStore) LoadProject(ctx context.Context, id string) (*model.Project, error) {
	if err := checkID(kindProject, id); err != nil {
		return nil, err
	}
	var p model.Project
	found, err := readRecord(kindProject, id, s.projectPath(id), &p)
	if err != nil || !found {
		return nil, err
	}
	return &p, nil
}

func (s *FileStore) ListProjects(ctx context.Context) ([]string, error) {
	return listRecords(filepath.Join(s.root, "projects"))
}

func (s *FileStore) DeleteProject(ctx context.Context, id string) (bool, error) {
	if err := checkID(kindProject, id); err != nil {
		return false, err
	}
	return removeFile(s.projectPath(id))
}

func (s *FileStore) SaveSession(ctx context.Context, state *model.SessionState) error {
	stamp(&state.SchemaVersion)
	data, err := encodeRecord(kindSession, kindSession, state)
	if err != nil {
		return err
	}
	return writeFileAtomic(s.sessionPath(), data)
}

func (s *FileStore) LoadSession(ctx context.Context) (*model.SessionState, error) {
	var state model.SessionState
	found, err := readRecord(kindSession, kindSession, s.sessionPath(), &state)
	if err != nil || !found {
		return nil, err
	}
	return &state, nil
}

func (s *FileStore) SaveIndex(ctx context.Context, idx *model.Index) error {
	if idx.SchemaVersion == 0 {
		idx.SchemaVersion = model.IndexSchemaVersion
	}
	data, err := encodeIndex(idx)
	if err != nil {
		return err
	}
	return writeFileAtomic(s.indexPath(), data)
}

func (s *FileStore) LoadIndex(ctx context.Context) (*model.Index, error) {
	data, err := os.ReadFile(s.indexPath())
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, &model.StorageError{Op: "read index", Path: s.indexPath(), Err: err}
	}
	return decodeIndex(data)
}

// Close is a no-op; FileStore holds no open handles between calls.
func (s *FileStore) Close() error {
	return nil
}

// readRecord decodes the document at path into v. A missing file reports
// found=false without error.
func readRecord(kind, id, path string, v any) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, &model.StorageError{Op: "read " + kind, Path: path, Err: err}
	}
	if err := decodeRecord(kind, id, data, v); err != nil {
		return false, err
	}
	return true, nil
}

// listRecords returns the sorted record IDs in dir. A missing directory is empty.
func listRecords(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []string{}, nil
		}
		return nil, &model.StorageError{Op: "list", Path: dir, Err: err}
	}
	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") || !strings.HasSuffix(name, recordExt) {
			continue
		}
		ids = append(ids, strings.TrimSuffix(name, recordExt))
	}
	sort.Strings(ids)
	return ids, nil
}

// writeFileAtomic replaces path with data via a temp file and rename.
func writeFileAtomic(path string, data []byte) error {
	tmp, err := writeTemp(path, data)
	if err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return &model.StorageError{Op: "write", Path: path, Err: err}
	}
	return nil
}

// writeFileExclusive creates path with data, failing with fs.ErrExist if it
// is already present.
func writeFileExclusive(path string, data []byte) error {
	tmp, err := writeTemp(path, data)
	if err != nil {
		return err
	}
	defer os.Remove(tmp)
	if err := os.Link(tmp, path); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return err
		}
		return &model.StorageError{Op: "write", Path: path, Err: err}
	}
	return nil
}

func writeTemp(path string, data []byte) (string, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", &model.StorageError{Op: "mkdir", Path: dir, Err: err}
	}
	f, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return "", &model.StorageError{Op: "write", Path: path, Err: err}
	}
	name := f.Name()
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(name)
		return "", &model.StorageError{Op: "write", Path: path, Err: err}
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(name)
		return "", &model.StorageError{Op: "sync", Path: path, Err: err}
	}
	if err := f.Close(); err != nil {
		os.Remove(name)
		return "", &model.StorageError{Op: "write", Path: path, Err: err}
	}
	return name, nil
}

func removeFile(path string) (bool, error) {
	if err := os.Remove(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, &model.StorageError{Op: "delete", Path: path, Err: err}
	}
	return true, nil
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
