package goalgraph

import (
	"context"

	"github.com/dan-solli/goalgraph/pkg/model"
	"github.com/dan-solli/goalgraph/pkg/versioning"
)

// BranchOptions describes a branch to create.
type BranchOptions struct {
	Name        string
	Description string
	// Switch makes the new branch current.
	Switch bool
}

// CreateBranch forks a branch of the goal. A branch_create snapshot is taken
// on the current branch first and becomes the new branch's branch point.
// Name collisions are resolved with the configured policy.
func (g *Goalgraph) CreateBranch(ctx context.Context, goalID string, opts BranchOptions) (*model.Branch, error) {
	var created *model.Branch
	err := g.mutate(ctx, "create_branch", func(ctx context.Context, tr *OperationTrace) error {
		goal, err := g.mustGoal(ctx, tr, goalID)
		if err != nil {
			return err
		}

		var lookupErr error
		taken := func(id string) bool {
			if _, ok := goal.FindBranch(id); ok {
				return true
			}
			b, err := g.store.LoadBranch(ctx, goalID, id)
			if err != nil {
				lookupErr = err
				return true
			}
			return b != nil
		}
		id, err := versioning.ResolveBranchID(opts.Name, taken, g.config.BranchCollision)
		if lookupErr != nil {
			return lookupErr
		}
		if err != nil {
			return err
		}
		existing, err := g.store.LoadBranch(ctx, goalID, id)
		if err != nil {
			return err
		}
		if existing != nil && existing.Status != model.BranchActive {
			return &model.ConflictError{Kind: "branch", ID: id}
		}
		tr.setID("branch", id)

		snap, err := versioning.CreateSnapshot(goal, "branch created", "branch "+id, model.TriggerBranchCreate, nil, "")
		if err != nil {
			return err
		}
		if err := g.persist(ctx, tr, goal, snap); err != nil {
			return err
		}

		forked, branch, err := versioning.CreateBranch(goal, versioning.BranchInput{
			Name:        opts.Name,
			Description: opts.Description,
			Creator:     g.config.Actor,
			ID:          id,
		})
		if err != nil {
			return err
		}
		if err := g.store.SaveBranch(ctx, branch); err != nil {
			return err
		}
		if opts.Switch {
			if forked, err = versioning.SwitchBranch(forked, branch.ID, branch, g.config.Actor); err != nil {
				return err
			}
		}
		if err := g.persist(ctx, tr, forked, nil); err != nil {
			return err
		}
		created = branch
		return g.reindex(ctx, tr)
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// SwitchBranch makes an existing, active branch the goal's current branch.
func (g *Goalgraph) SwitchBranch(ctx context.Context, goalID, branchID string) (*model.Goal, error) {
	var updated *model.Goal
	err := g.mutate(ctx, "switch_branch", func(ctx context.Context, tr *OperationTrace) error {
		goal, err := g.mustGoal(ctx, tr, goalID)
		if err != nil {
			return err
		}
		tr.setID("branch", branchID)
		branch, err := g.store.LoadBranch(ctx, goalID, branchID)
		if err != nil {
			return err
		}
		switched, err := versioning.SwitchBranch(goal, branchID, branch, g.config.Actor)
		if err != nil {
			return err
		}
		if err := g.persist(ctx, tr, switched, nil); err != nil {
			return err
		}
		updated = switched
		return g.reindex(ctx, tr)
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// AbandonBranch closes a branch as abandoned. If it was current, its nearest
// active ancestor becomes current.
func (g *Goalgraph) AbandonBranch(ctx context.Context, goalID, branchID, reason string) (*model.Branch, error) {
	var closed *model.Branch
	err := g.mutate(ctx, "abandon_branch", func(ctx context.Context, tr *OperationTrace) error {
		goal, branch, err := g.goalBranch(ctx, tr, goalID, branchID)
		if err != nil {
			return err
		}
		abandoned, err := versioning.AbandonBranch(branch, reason, g.config.Actor)
		if err != nil {
			return err
		}
		if err := g.store.SaveBranch(ctx, abandoned); err != nil {
			return err
		}
		parentOf, lookupErr := g.branchParents(ctx, goalID)
		closedGoal := versioning.CloseRef(goal, abandoned, parentOf, g.config.Actor)
		if *lookupErr != nil {
			return *lookupErr
		}
		if err := g.persist(ctx, tr, closedGoal, nil); err != nil {
			return err
		}
		closed = abandoned
		return g.reindex(ctx, tr)
	})
	if err != nil {
		return nil, err
	}
	return closed, nil
}

// MergeBranch closes a branch as merged into target, which defaults to the
// branch it was forked from. A milestone snapshot is recorded on target and
// referenced as the merge snapshot.
func (g *Goalgraph) MergeBranch(ctx context.Context, goalID, branchID, target string) (*model.Branch, error) {
	var closed *model.Branch
	err := g.mutate(ctx, "merge_branch", func(ctx context.Context, tr *OperationTrace) error {
		goal, branch, err := g.goalBranch(ctx, tr, goalID, branchID)
		if err != nil {
			return err
		}
		if target == "" {
			target = branch.ParentBranch
		}
		if target == "" {
			target = model.MainBranchID
		}
		merged, err := versioning.MergeBranch(branch, target, "", g.config.Actor)
		if err != nil {
			return err
		}

		into, err := g.store.LoadBranch(ctx, goalID, target)
		if err != nil {
			return err
		}
		if into == nil {
			return &model.NotFoundError{Kind: "branch", ID: target}
		}
		if into.Status != model.BranchActive {
			return &model.TransitionError{Kind: "branch", From: string(into.Status), To: "merge target"}
		}

		snap, err := versioning.CreateSnapshot(goal, "merged "+branch.Name, "merged "+branchID+" into "+target, model.TriggerMilestone, nil, "")
		if err != nil {
			return err
		}
		snap.Branch = target
		if err := g.persist(ctx, tr, goal, snap); err != nil {
			return err
		}

		merged.MergeSnapshot = snap.ID
		if err := g.store.SaveBranch(ctx, merged); err != nil {
			return err
		}
		parentOf, lookupErr := g.branchParents(ctx, goalID)
		closedGoal := versioning.CloseRef(goal, merged, parentOf, g.config.Actor)
		if *lookupErr != nil {
			return *lookupErr
		}
		if err := g.persist(ctx, tr, closedGoal, nil); err != nil {
			return err
		}
		closed = merged
		return g.reindex(ctx, tr)
	})
	if err != nil {
		return nil, err
	}
	return closed, nil
}

// ListBranches returns the goal's branch records sorted by id.
func (g *Goalgraph) ListBranches(ctx context.Context, goalID string) ([]*model.Branch, error) {
	goal, err := g.store.LoadGoal(ctx, goalID)
	if err != nil {
		return nil, err
	}
	if goal == nil {
		return nil, &model.NotFoundError{Kind: "goal", ID: goalID}
	}
	ids, err := g.store.ListBranches(ctx, goalID)
	if err != nil {
		return nil, err
	}
	branches := make([]*model.Branch, 0, len(ids))
	for _, id := range ids {
		b, err := g.store.LoadBranch(ctx, goalID, id)
		if err != nil {
			return nil, err
		}
		if b != nil {
			branches = append(branches, b)
		}
	}
	return branches, nil
}

func (g *Goalgraph) goalBranch(ctx context.Context, tr *OperationTrace, goalID, branchID string) (*model.Goal, *model.Branch, error) {
	goal, err := g.mustGoal(ctx, tr, goalID)
	if err != nil {
		return nil, nil, err
	}
	tr.setID("branch", branchID)
	branch, err := g.store.LoadBranch(ctx, goalID, branchID)
	if err != nil {
		return nil, nil, err
	}
	if branch == nil {
		return nil, nil, &model.NotFoundError{Kind: "branch", ID: branchID}
	}
	return goal, branch, nil
}

// branchParents returns a lookup from branch ID to the branch it was forked
// from. The first load error is kept in the returned pointer.
func (g *Goalgraph) branchParents(ctx context.Context, goalID string) (func(string) string, *error) {
	var lookupErr error
	return func(id string) string {
		if lookupErr != nil {
			return ""
		}
		b, err := g.store.LoadBranch(ctx, goalID, id)
		if err != nil {
			lookupErr = err
			return ""
		}
		if b == nil {
			return ""
		}
		return b.ParentBranch
	}, &lookupErr
}
