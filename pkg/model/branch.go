package model

import "time"

// Branch is an alternative exploration path for a goal, rooted at a snapshot.
type Branch struct {
	SchemaVersion int          `yaml:"schema_version" json:"schema_version"`
	ID            string       `yaml:"id" json:"id"`
	GoalID        string       `yaml:"goal" json:"goal"`
	Name          string       `yaml:"name" json:"name"`
	Description   string       `yaml:"description,omitempty" json:"description,omitempty"`
	Status        BranchStatus `yaml:"status" json:"status"`
	Created       time.Time    `yaml:"created" json:"created"`
	CreatedBy     string       `yaml:"created_by,omitempty" json:"created_by,omitempty"`

	// ParentBranch and BranchPoint are the goal's current branch and latest
	// snapshot at creation time. BranchPoint is empty for a goal with no history.
	ParentBranch string   `yaml:"parent_branch,omitempty" json:"parent_branch,omitempty"`
	BranchPoint  string   `yaml:"branch_point,omitempty" json:"branch_point,omitempty"`
	Snapshots    []string `yaml:"snapshots,omitempty" json:"snapshots,omitempty"`

	// Resolution is set once, on merge or abandon.
	Resolution    *Resolution `yaml:"resolution,omitempty" json:"resolution,omitempty"`
	MergedTo      string      `yaml:"merged_to,omitempty" json:"merged_to,omitempty"`
	MergeSnapshot string      `yaml:"merge_snapshot,omitempty" json:"merge_snapshot,omitempty"`
}

// Resolution records how and why a branch was closed.
type Resolution struct {
	Status    BranchStatus `yaml:"status" json:"status"`
	Reason    string       `yaml:"reason,omitempty" json:"reason,omitempty"`
	DecidedAt time.Time    `yaml:"decided_at" json:"decided_at"`
	DecidedBy string       `yaml:"decided_by,omitempty" json:"decided_by,omitempty"`
}

// NewMainBranch returns the default branch record for a goal.
func NewMainBranch(goalID, creator string, created time.Time) *Branch {
	return &Branch{
		SchemaVersion: SchemaVersion,
		ID:            MainBranchID,
		GoalID:        goalID,
		Name:          "main",
		Status:        BranchActive,
		Created:       created,
		CreatedBy:     creator,
	}
}

// Ref returns the goal-side reference for b.
func (b *Branch) Ref() BranchRef {
	return BranchRef{ID: b.ID, Name: b.Name, Status: b.Status}
}
