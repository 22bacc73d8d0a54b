// Package index derives the lookup index over all goals and keeps it in the
// record store. The index is a cache: it holds nothing that cannot be rebuilt
// from the goal records.
package index

import (
	"sort"
	"time"

	"github.com/dan-solli/goalgraph/pkg/model"
)

// Build derives an index from goals in one pass. Goals are visited in id
// order, so the same goal set always yields the same index apart from
// Generated. archived marks the ids whose records live in the archived area;
// it may be nil.
//
// Parent and child edges are emitted from each goal's own fields without
// deduplication: a consistent parent/children pair appears once from each end.
func Build(goals []*model.Goal, archived map[string]bool, now time.Time) *model.Index {
	sorted := make([]*model.Goal, 0, len(goals))
	for _, g := range goals {
		if g != nil {
			sorted = append(sorted, g)
		}
	}
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	idx := &model.Index{
		SchemaVersion: model.IndexSchemaVersion,
		Generated:     now,
		Goals:         make(map[string]model.IndexEntry, len(sorted)),
		ByStatus:      make(map[string][]string),
		ByProject:     make(map[string][]string),
		ByTag:         make(map[string][]string),
		Edges:         []model.Edge{},
	}

	for _, g := range sorted {
		idx.Goals[g.ID] = model.IndexEntry{
			ID:       g.ID,
			Title:    g.Title,
			Status:   g.Status,
			Progress: g.Progress,
			Priority: g.Priority,
			Project:  g.Project,
			Tags:     copyList(g.Tags),
			Parent:   g.Parent,
			Children: copyList(g.Children),
			Branch:   g.CurrentBranch(),
			Updated:  g.Updated,
			Archived: archived[g.ID],
		}

		idx.ByStatus[string(g.Status)] = append(idx.ByStatus[string(g.Status)], g.ID)
		if g.Project != "" {
			idx.ByProject[g.Project] = append(idx.ByProject[g.Project], g.ID)
		}
		for _, tag := range g.Tags {
			idx.ByTag[tag] = append(idx.ByTag[tag], g.ID)
		}

		if g.Parent != "" {
			idx.Edges = append(idx.Edges, model.Edge{From: g.Parent, To: g.ID, Type: model.EdgeParent})
		}
		for _, child := range g.Children {
			idx.Edges = append(idx.Edges, model.Edge{From: g.ID, To: child, Type: model.EdgeChild})
		}
		for _, dep := range g.DependsOn {
			idx.Edges = append(idx.Edges, model.Edge{From: g.ID, To: dep, Type: model.EdgeDependsOn})
		}
		for _, target := range g.Informs {
			idx.Edges = append(idx.Edges, model.Edge{From: g.ID, To: target, Type: model.EdgeInforms})
		}
		if g.EvolvedFrom != "" {
			idx.Edges = append(idx.Edges, model.Edge{From: g.EvolvedFrom, To: g.ID, Type: model.EdgeEvolvedFrom})
		}
	}

	return idx
}

func copyList(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	return append([]string(nil), in...)
}
