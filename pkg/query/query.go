// Package query answers read-only questions over the goal index.
package query

import (
	"context"
	"sort"
	"strings"

	"github.com/dan-solli/goalgraph/pkg/model"
)

// IndexSource supplies the index each query runs against.
type IndexSource interface {
	Get(ctx context.Context) (*model.Index, error)
}

// Engine runs queries. Every call fetches the index afresh, so results
// follow the latest rebuild.
type Engine struct {
	src IndexSource
}

// NewEngine creates a query engine over src.
func NewEngine(src IndexSource) *Engine {
	return &Engine{src: src}
}

func (e *Engine) index(ctx context.Context) (*model.Index, error) {
	return e.src.Get(ctx)
}

// ByStatus returns the ids of goals with status. Unknown statuses give an empty list.
func (e *Engine) ByStatus(ctx context.Context, status model.Status) ([]string, error) {
	idx, err := e.index(ctx)
	if err != nil {
		return nil, err
	}
	return lookup(idx.ByStatus, string(status)), nil
}

// ByProject returns the ids of goals in project.
func (e *Engine) ByProject(ctx context.Context, project string) ([]string, error) {
	idx, err := e.index(ctx)
	if err != nil {
		return nil, err
	}
	return lookup(idx.ByProject, project), nil
}

// ByTag returns the ids of goals carrying tag.
func (e *Engine) ByTag(ctx context.Context, tag string) ([]string, error) {
	idx, err := e.index(ctx)
	if err != nil {
		return nil, err
	}
	return lookup(idx.ByTag, tag), nil
}

// ByTags returns the ids of goals carrying every one of tags, in the order of
// the first tag's list. No tags selects nothing.
func (e *Engine) ByTags(ctx context.Context, tags []string) ([]string, error) {
	if len(tags) == 0 {
		return []string{}, nil
	}
	idx, err := e.index(ctx)
	if err != nil {
		return nil, err
	}

	result := lookup(idx.ByTag, tags[0])
	for _, tag := range tags[1:] {
		have := make(map[string]bool)
		for _, id := range idx.ByTag[tag] {
			have[id] = true
		}
		kept := result[:0]
		for _, id := range result {
			if have[id] {
				kept = append(kept, id)
			}
		}
		result = kept
	}
	return result, nil
}

// ChildrenOf returns the goals whose parent edge starts at id.
func (e *Engine) ChildrenOf(ctx context.Context, id string) ([]string, error) {
	idx, err := e.index(ctx)
	if err != nil {
		return nil, err
	}
	return childrenOf(idx, id), nil
}

// ParentOf returns the parent recorded on id's index entry, or "" when id
// has none or is unknown.
func (e *Engine) ParentOf(ctx context.Context, id string) (string, error) {
	idx, err := e.index(ctx)
	if err != nil {
		return "", err
	}
	return idx.Goals[id].Parent, nil
}

// AncestorsOf walks parent links from id, nearest first. A parent chain that
// loops back fails with *model.CycleDetectedError.
func (e *Engine) AncestorsOf(ctx context.Context, id string) ([]string, error) {
	idx, err := e.index(ctx)
	if err != nil {
		return nil, err
	}

	ancestors := []string{}
	visited := map[string]bool{id: true}
	for cur := idx.Goals[id].Parent; cur != ""; cur = idx.Goals[cur].Parent {
		if visited[cur] {
			return nil, &model.CycleDetectedError{Start: id, At: cur}
		}
		visited[cur] = true
		ancestors = append(ancestors, cur)
	}
	return ancestors, nil
}

// DescendantsOf expands children breadth-first from id. Reaching a goal a
// second time means the parent links form a cycle and fails with
// *model.CycleDetectedError.
func (e *Engine) DescendantsOf(ctx context.Context, id string) ([]string, error) {
	idx, err := e.index(ctx)
	if err != nil {
		return nil, err
	}

	descendants := []string{}
	visited := map[string]bool{id: true}
	queue := []string{id}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		for _, child := range childrenOf(idx, current) {
			if visited[child] {
				return nil, &model.CycleDetectedError{Start: id, At: child}
			}
			visited[child] = true
			descendants = append(descendants, child)
			queue = append(queue, child)
		}
	}
	return descendants, nil
}

// Search returns the ids of goals whose title contains text, ignoring case,
// sorted by id.
func (e *Engine) Search(ctx context.Context, text string) ([]string, error) {
	idx, err := e.index(ctx)
	if err != nil {
		return nil, err
	}
	needle := strings.ToLower(text)
	ids := []string{}
	for id, entry := range idx.Goals {
		if strings.Contains(strings.ToLower(entry.Title), needle) {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// Stats summarizes the index.
type Stats struct {
	Total     int            `json:"total"`
	Archived  int            `json:"archived"`
	ByStatus  map[string]int `json:"by_status"`
	ByProject map[string]int `json:"by_project"`
}

// Stats counts goals in total and per status and project group.
func (e *Engine) Stats(ctx context.Context) (Stats, error) {
	idx, err := e.index(ctx)
	if err != nil {
		return Stats{}, err
	}
	return statsOf(idx), nil
}

// Entries resolves ids to their index entries, skipping unknown ids.
func (e *Engine) Entries(ctx context.Context, ids []string) ([]model.IndexEntry, error) {
	idx, err := e.index(ctx)
	if err != nil {
		return nil, err
	}
	entries := make([]model.IndexEntry, 0, len(ids))
	for _, id := range ids {
		if entry, ok := idx.Goals[id]; ok {
			entries = append(entries, entry)
		}
	}
	return entries, nil
}

// StatsOf summarizes idx without fetching it.
func StatsOf(idx *model.Index) Stats {
	return statsOf(idx)
}

func statsOf(idx *model.Index) Stats {
	s := Stats{
		Total:     len(idx.Goals),
		ByStatus:  make(map[string]int, len(idx.ByStatus)),
		ByProject: make(map[string]int, len(idx.ByProject)),
	}
	for status, ids := range idx.ByStatus {
		s.ByStatus[status] = len(ids)
	}
	for project, ids := range idx.ByProject {
		s.ByProject[project] = len(ids)
	}
	for _, entry := range idx.Goals {
		if entry.Archived {
			s.Archived++
		}
	}
	return s
}

func childrenOf(idx *model.Index, id string) []string {
	children := []string{}
	for _, edge := range idx.Edges {
		if edge.Type == model.EdgeParent && edge.From == id {
			children = append(children, edge.To)
		}
	}
	return children
}

// lookup copies a group list so callers cannot alias the index.
func lookup(groups map[string][]string, key string) []string {
	return append([]string{}, groups[key]...)
}
