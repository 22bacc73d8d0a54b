package goalgraph

import (
	"context"
	"path/filepath"

	"github.com/dan-solli/goalgraph/pkg/model"
)

// CreateProject stores a new project.
func (g *Goalgraph) CreateProject(ctx context.Context, input model.ProjectInput) (*model.Project, error) {
	project, err := model.NewProject(input)
	if err != nil {
		return nil, err
	}
	err = g.mutate(ctx, "create_project", func(ctx context.Context, tr *OperationTrace) error {
		tr.setID("project", project.ID)
		timer := newSpanTimer("persist", tr)
		err := g.store.SaveProject(ctx, project)
		timer.finish(err, nil)
		return err
	})
	if err != nil {
		return nil, err
	}
	return project, nil
}

// GetProject returns (nil, nil) if the project does not exist.
func (g *Goalgraph) GetProject(ctx context.Context, id string) (*model.Project, error) {
	return g.store.LoadProject(ctx, id)
}

// ListProjects loads every project, sorted by id.
func (g *Goalgraph) ListProjects(ctx context.Context) ([]*model.Project, error) {
	ids, err := g.store.ListProjects(ctx)
	if err != nil {
		return nil, err
	}
	projects := make([]*model.Project, 0, len(ids))
	for _, id := range ids {
		p, err := g.store.LoadProject(ctx, id)
		if err != nil {
			return nil, err
		}
		if p != nil {
			projects = append(projects, p)
		}
	}
	return projects, nil
}

// DetectProject returns the auto-detect project whose path most specifically
// contains dir, or (nil, nil) when none does.
func (g *Goalgraph) DetectProject(ctx context.Context, dir string) (*model.Project, error) {
	if dir == "" {
		return nil, nil
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, &model.ValidationError{Field: "dir", Reason: err.Error()}
	}
	projects, err := g.ListProjects(ctx)
	if err != nil {
		return nil, err
	}

	var best *model.Project
	bestLen := 0
	for _, p := range projects {
		if !p.AutoDetect {
			continue
		}
		if n := p.MatchLength(abs); n > bestLen {
			best, bestLen = p, n
		}
	}
	return best, nil
}
