package model

import (
	"path/filepath"
	"strings"
	"time"
)

// Project groups goals by codebase.
type Project struct {
	SchemaVersion int       `yaml:"schema_version" json:"schema_version"`
	ID            string    `yaml:"id" json:"id"`
	Name          string    `yaml:"name" json:"name"`
	Paths         []string  `yaml:"paths" json:"paths"`
	Aliases       []string  `yaml:"aliases,omitempty" json:"aliases,omitempty"`
	AutoDetect    bool      `yaml:"auto_detect" json:"auto_detect"`
	Goals         GoalLists `yaml:"goals" json:"goals"`
	DefaultAgents []string  `yaml:"default_agents,omitempty" json:"default_agents,omitempty"`
	TechStack     []string  `yaml:"tech_stack,omitempty" json:"tech_stack,omitempty"`
	Conventions   []string  `yaml:"conventions,omitempty" json:"conventions,omitempty"`
	Created       time.Time `yaml:"created" json:"created"`
	Updated       time.Time `yaml:"updated" json:"updated"`
}

// GoalLists partitions a project's goal ids by status. A goal id appears in at most one list.
type GoalLists struct {
	Active    []string `yaml:"active,omitempty" json:"active,omitempty"`
	Paused    []string `yaml:"paused,omitempty" json:"paused,omitempty"`
	Completed []string `yaml:"completed,omitempty" json:"completed,omitempty"`
	Abandoned []string `yaml:"abandoned,omitempty" json:"abandoned,omitempty"`
}

// ProjectInput is everything a caller supplies to create a project.
type ProjectInput struct {
	Name          string   `yaml:"name" validate:"notblank"`
	Paths         []string `yaml:"paths" validate:"min=1,dive,notblank"`
	Aliases       []string `yaml:"aliases"`
	AutoDetect    bool     `yaml:"auto_detect"`
	DefaultAgents []string `yaml:"default_agents"`
	TechStack     []string `yaml:"tech_stack"`
	Conventions   []string `yaml:"conventions"`
}

// NewProject builds a project from input.
func NewProject(input ProjectInput) (*Project, error) {
	if err := validateStruct(input); err != nil {
		return nil, err
	}
	paths := make([]string, 0, len(input.Paths))
	for _, p := range normalizeList(input.Paths) {
		paths = append(paths, filepath.Clean(p))
	}
	now := Now()
	return &Project{
		SchemaVersion: SchemaVersion,
		ID:            NewProjectID(),
		Name:          strings.TrimSpace(input.Name),
		Paths:         paths,
		Aliases:       normalizeList(input.Aliases),
		AutoDetect:    input.AutoDetect,
		DefaultAgents: normalizeList(input.DefaultAgents),
		TechStack:     normalizeList(input.TechStack),
		Conventions:   normalizeList(input.Conventions),
		Created:       now,
		Updated:       now,
	}, nil
}

// AddGoalToProject removes goalID from every status list and then appends it
// to the list for status. Blocked goals are listed as active. Calling it
// repeatedly with the same arguments leaves the project unchanged.
func AddGoalToProject(p *Project, goalID string, status Status) {
	RemoveGoalFromProject(p, goalID)
	switch status {
	case StatusPaused:
		p.Goals.Paused = append(p.Goals.Paused, goalID)
	case StatusCompleted:
		p.Goals.Completed = append(p.Goals.Completed, goalID)
	case StatusAbandoned:
		p.Goals.Abandoned = append(p.Goals.Abandoned, goalID)
	default:
		p.Goals.Active = append(p.Goals.Active, goalID)
	}
	p.Updated = Now()
}

// RemoveGoalFromProject drops goalID from all four status lists.
func RemoveGoalFromProject(p *Project, goalID string) {
	p.Goals.Active = removeValue(p.Goals.Active, goalID)
	p.Goals.Paused = removeValue(p.Goals.Paused, goalID)
	p.Goals.Completed = removeValue(p.Goals.Completed, goalID)
	p.Goals.Abandoned = removeValue(p.Goals.Abandoned, goalID)
}

// Contains reports whether goalID is listed under any status.
func (l GoalLists) Contains(goalID string) bool {
	return contains(l.Active, goalID) || contains(l.Paused, goalID) ||
		contains(l.Completed, goalID) || contains(l.Abandoned, goalID)
}

// MatchLength returns the length of the longest path of p that contains dir,
// or 0 when none does. Aliases match the base name of dir.
func (p *Project) MatchLength(dir string) int {
	dir = filepath.Clean(dir)
	best := 0
	for _, root := range p.Paths {
		if dir == root || strings.HasPrefix(dir, root+string(filepath.Separator)) {
			if len(root) > best {
				best = len(root)
			}
		}
	}
	if best == 0 {
		base := filepath.Base(dir)
		for _, alias := range p.Aliases {
			if strings.EqualFold(alias, base) {
				return 1
			}
		}
	}
	return best
}
