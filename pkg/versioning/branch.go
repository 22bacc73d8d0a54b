package versioning

import (
	"fmt"
	"strings"

	"github.com/dan-solli/goalgraph/pkg/model"
)

// CollisionPolicy decides what happens when a new branch name slugifies to
// an id the goal already uses.
type CollisionPolicy string

const (
	// CollisionFail rejects the new branch with *model.ConflictError.
	CollisionFail CollisionPolicy = "fail"
	// CollisionSuffix appends _2, _3, ... until the id is free.
	CollisionSuffix CollisionPolicy = "suffix"
	// CollisionOverwrite replaces the earlier branch record while it is still
	// active. Merged and abandoned branches keep their resolution and are
	// never replaced.
	CollisionOverwrite CollisionPolicy = "overwrite"
)

const maxSuffix = 1000

// ParseCollisionPolicy validates a policy name. Empty selects CollisionFail.
func ParseCollisionPolicy(s string) (CollisionPolicy, error) {
	switch p := CollisionPolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return CollisionFail, nil
	case CollisionFail, CollisionSuffix, CollisionOverwrite:
		return p, nil
	default:
		return "", &model.ValidationError{Field: "branch_collision", Reason: "must be one of fail, suffix, overwrite"}
	}
}

// ResolveBranchID slugifies name and applies policy against the ids taken
// reports as in use. The main branch is never overwritten.
func ResolveBranchID(name string, taken func(id string) bool, policy CollisionPolicy) (string, error) {
	if strings.TrimSpace(name) == "" {
		return "", &model.ValidationError{Field: "name", Reason: "must not be blank"}
	}
	if model.Slugify(name) == "" {
		return "", &model.ValidationError{Field: "name", Reason: fmt.Sprintf("%q has no usable characters", name)}
	}
	id := model.BranchID(name)
	if !taken(id) {
		return id, nil
	}

	switch policy {
	case CollisionSuffix:
		for n := 2; n < maxSuffix; n++ {
			candidate := fmt.Sprintf("%s_%d", id, n)
			if !taken(candidate) {
				return candidate, nil
			}
		}
		return "", &model.ConflictError{Kind: "branch", ID: id}
	case CollisionOverwrite:
		if id == model.MainBranchID {
			return "", &model.ConflictError{Kind: "branch", ID: id}
		}
		return id, nil
	default:
		return "", &model.ConflictError{Kind: "branch", ID: id}
	}
}

// BranchInput describes a new branch.
type BranchInput struct {
	Name        string
	Description string
	Creator     string
	// ID overrides the slug of Name, normally with the result of ResolveBranchID.
	ID string
}

// CreateBranch forks a branch from g's current branch at g's latest snapshot.
// It returns a copy of g carrying a (non-current) reference to the new
// branch, and the new branch record with an empty snapshot list. A reference
// with the same id is replaced.
func CreateBranch(g *model.Goal, input BranchInput) (*model.Goal, *model.Branch, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, nil, &model.ValidationError{Field: "name", Reason: "must not be blank"}
	}
	id := input.ID
	if id == "" {
		if model.Slugify(name) == "" {
			return nil, nil, &model.ValidationError{Field: "name", Reason: fmt.Sprintf("%q has no usable characters", name)}
		}
		id = model.BranchID(name)
	}
	if id == model.MainBranchID {
		return nil, nil, &model.ConflictError{Kind: "branch", ID: id}
	}

	branch := &model.Branch{
		SchemaVersion: model.SchemaVersion,
		ID:            id,
		GoalID:        g.ID,
		Name:          name,
		Description:   strings.TrimSpace(input.Description),
		Status:        model.BranchActive,
		Created:       model.Now(),
		CreatedBy:     input.Creator,
		ParentBranch:  g.CurrentBranch(),
		BranchPoint:   g.LastSnapshot(),
	}

	out := g.Clone()
	if ref, ok := out.FindBranch(id); ok {
		*ref = branch.Ref()
	} else {
		out.Branches = append(out.Branches, branch.Ref())
	}
	out.Touch(input.Creator)
	return out, branch, nil
}

// SwitchBranch returns a copy of g whose current flag is set on exactly the
// branch with branchID. branch is the stored record for that id; nil means it
// does not exist. Only active branches can become current.
func SwitchBranch(g *model.Goal, branchID string, branch *model.Branch, editor string) (*model.Goal, error) {
	if branch == nil || branch.ID != branchID || branch.GoalID != g.ID {
		return nil, &model.NotFoundError{Kind: "branch", ID: branchID}
	}
	if branch.Status != model.BranchActive {
		return nil, &model.TransitionError{Kind: "branch", From: string(branch.Status), To: "current"}
	}

	out := g.Clone()
	if _, ok := out.FindBranch(branchID); !ok {
		out.Branches = append(out.Branches, branch.Ref())
	}
	setCurrent(out, branchID)
	out.Touch(editor)
	return out, nil
}

// AbandonBranch closes an active branch as abandoned. The branch point and
// snapshot list are left untouched. The main branch cannot be abandoned.
func AbandonBranch(b *model.Branch, reason, decider string) (*model.Branch, error) {
	if err := checkClosable(b, model.BranchAbandoned); err != nil {
		return nil, err
	}
	out := cloneBranch(b)
	out.Status = model.BranchAbandoned
	out.Resolution = &model.Resolution{
		Status:    model.BranchAbandoned,
		Reason:    strings.TrimSpace(reason),
		DecidedAt: model.Now(),
		DecidedBy: decider,
	}
	return out, nil
}

// MergeBranch closes an active branch as merged into target, recording the
// snapshot on target that represents the merge.
func MergeBranch(b *model.Branch, target, mergeSnapshot, decider string) (*model.Branch, error) {
	if err := checkClosable(b, model.BranchMerged); err != nil {
		return nil, err
	}
	if target == "" || target == b.ID {
		return nil, &model.ValidationError{Field: "target", Reason: "must name another branch"}
	}
	out := cloneBranch(b)
	out.Status = model.BranchMerged
	out.MergedTo = target
	out.MergeSnapshot = mergeSnapshot
	out.Resolution = &model.Resolution{
		Status:    model.BranchMerged,
		Reason:    "merged into " + target,
		DecidedAt: model.Now(),
		DecidedBy: decider,
	}
	return out, nil
}

// CloseRef returns a copy of g whose reference to b mirrors b's status. If
// b was current, current moves to the nearest active ancestor of b, or main
// when no ancestor known to g is still active. parentOf maps a branch ID to
// the branch it was forked from.
func CloseRef(g *model.Goal, b *model.Branch, parentOf func(id string) string, editor string) *model.Goal {
	out := g.Clone()
	ref, ok := out.FindBranch(b.ID)
	if !ok {
		out.Branches = append(out.Branches, b.Ref())
		ref = &out.Branches[len(out.Branches)-1]
	}
	wasCurrent := ref.Current
	ref.Status = b.Status

	if wasCurrent && b.Status != model.BranchActive {
		setCurrent(out, activeAncestor(out, b.ParentBranch, parentOf))
	}
	out.Touch(editor)
	return out
}

// activeAncestor walks parent links from id to the first active branch ref.
func activeAncestor(g *model.Goal, id string, parentOf func(string) string) string {
	seen := map[string]bool{}
	for id != "" && id != model.MainBranchID && !seen[id] {
		seen[id] = true
		ref, ok := g.FindBranch(id)
		if !ok {
			break
		}
		if ref.Status == model.BranchActive {
			return id
		}
		if parentOf == nil {
			break
		}
		id = parentOf(id)
	}
	return model.MainBranchID
}

func checkClosable(b *model.Branch, to model.BranchStatus) error {
	if b.ID == model.MainBranchID {
		return &model.ValidationError{Field: "branch", Reason: "the main branch cannot be closed"}
	}
	if b.Status != model.BranchActive {
		return &model.TransitionError{Kind: "branch", From: string(b.Status), To: string(to)}
	}
	return nil
}

func setCurrent(g *model.Goal, id string) {
	for i := range g.Branches {
		g.Branches[i].Current = g.Branches[i].ID == id
	}
}

func cloneBranch(b *model.Branch) *model.Branch {
	out := *b
	if b.Snapshots != nil {
		out.Snapshots = append([]string(nil), b.Snapshots...)
	}
	if b.Resolution != nil {
		r := *b.Resolution
		out.Resolution = &r
	}
	return &out
}
