package model

import (
	"math"
	"strings"
	"time"
)

// Goal is a unit of work expressed as a current-state to desired-state transformation.
type Goal struct {
	SchemaVersion int       `yaml:"schema_version" json:"schema_version"`
	ID            string    `yaml:"id" json:"id"`
	Created       time.Time `yaml:"created" json:"created"`
	Updated       time.Time `yaml:"updated" json:"updated"`
	CreatedBy     string    `yaml:"created_by,omitempty" json:"created_by,omitempty"`
	LastTouchedBy string    `yaml:"last_touched_by,omitempty" json:"last_touched_by,omitempty"`

	Title        string       `yaml:"title" json:"title"`
	Description  string       `yaml:"description,omitempty" json:"description,omitempty"`
	CurrentState string       `yaml:"current_state" json:"current_state"`
	DesiredState string       `yaml:"desired_state" json:"desired_state"`
	Verification Verification `yaml:"verification" json:"verification"`
	Status       Status       `yaml:"status" json:"status"`
	Progress     float64      `yaml:"progress" json:"progress"`
	Priority     Priority     `yaml:"priority" json:"priority"`
	Tags         []string     `yaml:"tags,omitempty" json:"tags,omitempty"`
	Project      string       `yaml:"project" json:"project"`

	// Graph edges. Parent and Children are authored independently; nothing
	// here forces them to agree.
	Parent      string   `yaml:"parent,omitempty" json:"parent,omitempty"`
	Children    []string `yaml:"children,omitempty" json:"children,omitempty"`
	DependsOn   []string `yaml:"depends_on,omitempty" json:"depends_on,omitempty"`
	Informs     []string `yaml:"informs,omitempty" json:"informs,omitempty"`
	EvolvedFrom string   `yaml:"evolved_from,omitempty" json:"evolved_from,omitempty"`

	Context   WorkContext `yaml:"context" json:"context"`
	Branches  []BranchRef `yaml:"branches" json:"branches"`
	Snapshots []string    `yaml:"snapshots,omitempty" json:"snapshots,omitempty"`
}

// Verification describes how completion of a goal is checked.
type Verification struct {
	Criteria     []string           `yaml:"criteria,omitempty" json:"criteria,omitempty"`
	Method       VerificationMethod `yaml:"method" json:"method"`
	TestCommands []string           `yaml:"test_commands,omitempty" json:"test_commands,omitempty"`
}

// WorkContext collects what an agent needs to pick a goal back up.
type WorkContext struct {
	FilesPrimary []string   `yaml:"files_primary,omitempty" json:"files_primary,omitempty"`
	FilesRelated []string   `yaml:"files_related,omitempty" json:"files_related,omitempty"`
	Sessions     []string   `yaml:"sessions,omitempty" json:"sessions,omitempty"`
	Agents       []string   `yaml:"agents,omitempty" json:"agents,omitempty"`
	Learnings    []string   `yaml:"learnings,omitempty" json:"learnings,omitempty"`
	Decisions    []Decision `yaml:"decisions,omitempty" json:"decisions,omitempty"`
}

// Decision is a structured record of a choice made while working a goal.
type Decision struct {
	Decision   string    `yaml:"decision" json:"decision"`
	Rationale  string    `yaml:"rationale,omitempty" json:"rationale,omitempty"`
	Reversible bool      `yaml:"reversible" json:"reversible"`
	Date       time.Time `yaml:"date" json:"date"`
}

// BranchRef is the goal-side reference to a Branch record.
type BranchRef struct {
	ID      string       `yaml:"id" json:"id"`
	Name    string       `yaml:"name" json:"name"`
	Status  BranchStatus `yaml:"status" json:"status"`
	Current bool         `yaml:"current,omitempty" json:"current,omitempty"`
}

// CreateGoalInput is everything a caller supplies to create a goal.
type CreateGoalInput struct {
	Title        string             `yaml:"title" validate:"notblank"`
	CurrentState string             `yaml:"current_state" validate:"notblank"`
	DesiredState string             `yaml:"desired_state" validate:"notblank"`
	Project      string             `yaml:"project" validate:"notblank"`
	Description  string             `yaml:"description"`
	Priority     Priority           `yaml:"priority" validate:"omitempty,oneof=high medium low"`
	Tags         []string           `yaml:"tags"`
	Criteria     []string           `yaml:"criteria"`
	Method       VerificationMethod `yaml:"method" validate:"omitempty,oneof=manual automated hybrid"`
	TestCommands []string           `yaml:"test_commands"`
	Parent       string             `yaml:"parent"`
	DependsOn    []string           `yaml:"depends_on"`
	Informs      []string           `yaml:"informs"`
	EvolvedFrom  string             `yaml:"evolved_from"`
	Files        []string           `yaml:"files"`
}

// CreateGoal builds a new active goal with zero progress on a single current
// main branch. It fails with a *ValidationError before anything is built if a
// required field is blank.
func CreateGoal(input CreateGoalInput, creator string) (*Goal, error) {
	if err := validateStruct(input); err != nil {
		return nil, err
	}

	priority := input.Priority
	if priority == "" {
		priority = PriorityMedium
	}
	method := input.Method
	if method == "" {
		method = VerifyManual
	}

	now := Now()
	return &Goal{
		SchemaVersion: SchemaVersion,
		ID:            NewGoalID(),
		Created:       now,
		Updated:       now,
		CreatedBy:     creator,
		LastTouchedBy: creator,
		Title:         strings.TrimSpace(input.Title),
		Description:   strings.TrimSpace(input.Description),
		CurrentState:  strings.TrimSpace(input.CurrentState),
		DesiredState:  strings.TrimSpace(input.DesiredState),
		Verification: Verification{
			Criteria:     normalizeList(input.Criteria),
			Method:       method,
			TestCommands: normalizeList(input.TestCommands),
		},
		Status:      StatusActive,
		Progress:    0,
		Priority:    priority,
		Tags:        normalizeList(input.Tags),
		Project:     strings.TrimSpace(input.Project),
		Parent:      strings.TrimSpace(input.Parent),
		DependsOn:   normalizeList(input.DependsOn),
		Informs:     normalizeList(input.Informs),
		EvolvedFrom: strings.TrimSpace(input.EvolvedFrom),
		Context: WorkContext{
			FilesPrimary: normalizeList(input.Files),
		},
		Branches: []BranchRef{{
			ID:      MainBranchID,
			Name:    "main",
			Status:  BranchActive,
			Current: true,
		}},
	}, nil
}

// GoalPatch holds partial updates to a goal.
// All fields are pointers to distinguish between "not provided" and "set to zero value".
type GoalPatch struct {
	Title        *string
	CurrentState *string
	DesiredState *string
	Description  *string
	Status       *Status
	Progress     *float64
	Tags         *[]string
	Priority     *Priority
	Verification *Verification
}

// Empty reports whether the patch changes nothing.
func (p GoalPatch) Empty() bool {
	return p.Title == nil && p.CurrentState == nil && p.DesiredState == nil &&
		p.Description == nil && p.Status == nil && p.Progress == nil &&
		p.Tags == nil && p.Priority == nil && p.Verification == nil
}

// UpdateGoal returns a copy of g with the permitted fields of patch merged in
// and updated/last_touched_by refreshed. g itself is not modified. It does
// not create a snapshot.
func UpdateGoal(g *Goal, patch GoalPatch, editor string) (*Goal, error) {
	out := g.Clone()

	if patch.Title != nil {
		if strings.TrimSpace(*patch.Title) == "" {
			return nil, &ValidationError{Field: "title", Reason: "must not be blank"}
		}
		out.Title = strings.TrimSpace(*patch.Title)
	}
	if patch.CurrentState != nil {
		if strings.TrimSpace(*patch.CurrentState) == "" {
			return nil, &ValidationError{Field: "current_state", Reason: "must not be blank"}
		}
		out.CurrentState = strings.TrimSpace(*patch.CurrentState)
	}
	if patch.DesiredState != nil {
		if strings.TrimSpace(*patch.DesiredState) == "" {
			return nil, &ValidationError{Field: "desired_state", Reason: "must not be blank"}
		}
		out.DesiredState = strings.TrimSpace(*patch.DesiredState)
	}
	if patch.Description != nil {
		out.Description = strings.TrimSpace(*patch.Description)
	}
	if patch.Status != nil {
		if err := CheckTransition(out.Status, *patch.Status); err != nil {
			return nil, err
		}
		out.Status = *patch.Status
	}
	if patch.Progress != nil {
		p, err := ClampProgress(*patch.Progress)
		if err != nil {
			return nil, err
		}
		out.Progress = p
	}
	if patch.Tags != nil {
		out.Tags = normalizeList(*patch.Tags)
	}
	if patch.Priority != nil {
		switch *patch.Priority {
		case PriorityHigh, PriorityMedium, PriorityLow:
			out.Priority = *patch.Priority
		default:
			return nil, &ValidationError{Field: "priority", Reason: "must be one of high, medium, low"}
		}
	}
	if patch.Verification != nil {
		v := *patch.Verification
		switch v.Method {
		case "":
			v.Method = VerifyManual
		case VerifyManual, VerifyAutomated, VerifyHybrid:
		default:
			return nil, &ValidationError{Field: "verification.method", Reason: "must be one of manual, automated, hybrid"}
		}
		v.Criteria = normalizeList(v.Criteria)
		v.TestCommands = normalizeList(v.TestCommands)
		out.Verification = v
	}

	out.Touch(editor)
	return out, nil
}

// SetProgress returns a copy of g with progress clamped into [0,1].
func SetProgress(g *Goal, progress float64, editor string) (*Goal, error) {
	return UpdateGoal(g, GoalPatch{Progress: &progress}, editor)
}

// ClampProgress clamps p into [0,1]. NaN is rejected.
func ClampProgress(p float64) (float64, error) {
	if math.IsNaN(p) {
		return 0, &ValidationError{Field: "progress", Reason: "must be a number"}
	}
	return math.Max(0, math.Min(1, p)), nil
}

// Touch refreshes updated and last_touched_by.
func (g *Goal) Touch(editor string) {
	g.Updated = Now()
	if editor != "" {
		g.LastTouchedBy = editor
	}
}

// CurrentBranch returns the id of the branch flagged current, defaulting to main.
func (g *Goal) CurrentBranch() string {
	for _, b := range g.Branches {
		if b.Current {
			return b.ID
		}
	}
	return MainBranchID
}

// LastSnapshot returns the most recent snapshot id, or "" if there is none.
func (g *Goal) LastSnapshot() string {
	if len(g.Snapshots) == 0 {
		return ""
	}
	return g.Snapshots[len(g.Snapshots)-1]
}

// FindBranch returns the branch reference with the given id.
func (g *Goal) FindBranch(id string) (*BranchRef, bool) {
	for i := range g.Branches {
		if g.Branches[i].ID == id {
			return &g.Branches[i], true
		}
	}
	return nil, false
}

// AddChild records id as a child, once.
func (g *Goal) AddChild(id string) { g.Children = appendUnique(g.Children, id) }

// RemoveChild drops id from the children list.
func (g *Goal) RemoveChild(id string) { g.Children = removeValue(g.Children, id) }

// AddDependency records that g depends on id.
func (g *Goal) AddDependency(id string) { g.DependsOn = appendUnique(g.DependsOn, id) }

// AddInforms records that g informs id.
func (g *Goal) AddInforms(id string) { g.Informs = appendUnique(g.Informs, id) }

// AddLearning appends a free-text learning.
func (g *Goal) AddLearning(text string) {
	if text = strings.TrimSpace(text); text != "" {
		g.Context.Learnings = append(g.Context.Learnings, text)
	}
}

// AddDecision appends a structured decision.
func (g *Goal) AddDecision(d Decision) {
	if d.Date.IsZero() {
		d.Date = Now()
	}
	g.Context.Decisions = append(g.Context.Decisions, d)
}

// AddFiles merges paths into the related files, skipping primary files and duplicates.
// Returns the paths that were actually added.
func (g *Goal) AddFiles(paths ...string) []string {
	var added []string
	for _, p := range normalizeList(paths) {
		if contains(g.Context.FilesPrimary, p) || contains(g.Context.FilesRelated, p) {
			continue
		}
		g.Context.FilesRelated = append(g.Context.FilesRelated, p)
		added = append(added, p)
	}
	return added
}

// AddSession records a session reference, once.
func (g *Goal) AddSession(sessionID string) bool {
	if sessionID == "" || contains(g.Context.Sessions, sessionID) {
		return false
	}
	g.Context.Sessions = append(g.Context.Sessions, sessionID)
	return true
}

// Clone returns a deep copy of g.
func (g *Goal) Clone() *Goal {
	out := *g
	out.Tags = cloneStrings(g.Tags)
	out.Children = cloneStrings(g.Children)
	out.DependsOn = cloneStrings(g.DependsOn)
	out.Informs = cloneStrings(g.Informs)
	out.Snapshots = cloneStrings(g.Snapshots)
	out.Verification.Criteria = cloneStrings(g.Verification.Criteria)
	out.Verification.TestCommands = cloneStrings(g.Verification.TestCommands)
	out.Context = WorkContext{
		FilesPrimary: cloneStrings(g.Context.FilesPrimary),
		FilesRelated: cloneStrings(g.Context.FilesRelated),
		Sessions:     cloneStrings(g.Context.Sessions),
		Agents:       cloneStrings(g.Context.Agents),
		Learnings:    cloneStrings(g.Context.Learnings),
	}
	if g.Context.Decisions != nil {
		out.Context.Decisions = append([]Decision(nil), g.Context.Decisions...)
	}
	if g.Branches != nil {
		out.Branches = append([]BranchRef(nil), g.Branches...)
	}
	return &out
}
