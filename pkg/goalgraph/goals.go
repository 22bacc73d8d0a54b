package goalgraph

import (
	"context"
	"fmt"
	"strings"

	"github.com/dan-solli/goalgraph/pkg/model"
	"github.com/dan-solli/goalgraph/pkg/query"
	"github.com/dan-solli/goalgraph/pkg/versioning"
)

// updateFields are compared when UpdateGoal decides whether to snapshot.
var updateFields = []string{
	"title", "description", "current_state", "desired_state",
	"status", "progress", "priority", "tags", "criteria",
}

// CreateGoal creates an active goal on its main branch, records the initial
// "created" snapshot and files the goal under its project.
func (g *Goalgraph) CreateGoal(ctx context.Context, input model.CreateGoalInput) (*model.Goal, error) {
	var created *model.Goal
	err := g.mutate(ctx, "create_goal", func(ctx context.Context, tr *OperationTrace) error {
		goal, err := g.createGoal(ctx, tr, input)
		created = goal
		return err
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// EvolveGoal creates a goal that supersedes fromID. The original goal is
// left as it is.
func (g *Goalgraph) EvolveGoal(ctx context.Context, fromID string, input model.CreateGoalInput) (*model.Goal, error) {
	input.EvolvedFrom = fromID
	var created *model.Goal
	err := g.mutate(ctx, "evolve_goal", func(ctx context.Context, tr *OperationTrace) error {
		if _, err := g.mustGoal(ctx, tr, fromID); err != nil {
			return err
		}
		if input.Project == "" {
			from, _ := g.store.LoadGoal(ctx, fromID)
			if from != nil {
				input.Project = from.Project
			}
		}
		goal, err := g.createGoal(ctx, tr, input)
		created = goal
		return err
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (g *Goalgraph) createGoal(ctx context.Context, tr *OperationTrace, input model.CreateGoalInput) (*model.Goal, error) {
	goal, err := model.CreateGoal(input, g.config.Actor)
	if err != nil {
		return nil, err
	}
	tr.setID("goal", goal.ID)

	var parent *model.Goal
	if goal.Parent != "" {
		if parent, err = g.mustGoal(ctx, tr, goal.Parent); err != nil {
			return nil, err
		}
	}
	if goal.EvolvedFrom != "" {
		if _, err := g.mustGoal(ctx, tr, goal.EvolvedFrom); err != nil {
			return nil, err
		}
	}

	if err := g.store.SaveBranch(ctx, model.NewMainBranch(goal.ID, g.config.Actor, goal.Created)); err != nil {
		return nil, fmt.Errorf("failed to save main branch: %w", err)
	}
	snap, err := versioning.CreateSnapshot(goal, "created", "", model.TriggerManual, nil, "")
	if err != nil {
		return nil, err
	}
	if err := g.persist(ctx, tr, goal, snap); err != nil {
		return nil, err
	}

	if parent != nil {
		parent.AddChild(goal.ID)
		parent.Touch(g.config.Actor)
		if err := g.persist(ctx, tr, parent, nil); err != nil {
			return nil, err
		}
	}
	if err := g.syncProject(ctx, tr, goal); err != nil {
		return nil, err
	}
	if err := g.reindex(ctx, tr); err != nil {
		return nil, err
	}
	return goal, nil
}

// GetGoal loads a goal from the active or archived area.
// Returns (nil, nil) if the goal does not exist.
func (g *Goalgraph) GetGoal(ctx context.Context, id string) (*model.Goal, error) {
	return g.store.LoadGoal(ctx, id)
}

// ListGoals loads every goal, sorted by id.
func (g *Goalgraph) ListGoals(ctx context.Context, includeArchived bool) ([]*model.Goal, error) {
	ids, err := g.store.ListGoals(ctx, includeArchived)
	if err != nil {
		return nil, err
	}
	goals := make([]*model.Goal, 0, len(ids))
	for _, id := range ids {
		goal, err := g.store.LoadGoal(ctx, id)
		if err != nil {
			return nil, err
		}
		if goal != nil {
			goals = append(goals, goal)
		}
	}
	return goals, nil
}

// UpdateGoal merges patch into the goal. A "updated" snapshot carrying the
// field changes is recorded when anything significant changed; an update
// that changes nothing writes nothing.
func (g *Goalgraph) UpdateGoal(ctx context.Context, id string, patch model.GoalPatch, summary string) (*model.Goal, error) {
	if patch.Empty() {
		return nil, &model.ValidationError{Field: "patch", Reason: "nothing to update"}
	}
	if patch.Status != nil && patch.Status.Terminal() {
		return nil, &model.ValidationError{
			Field:  "status",
			Reason: fmt.Sprintf("%s goals are archived: complete or abandon the goal instead", *patch.Status),
		}
	}
	var updated *model.Goal
	err := g.mutate(ctx, "update_goal", func(ctx context.Context, tr *OperationTrace) error {
		before, err := g.mustGoal(ctx, tr, id)
		if err != nil {
			return err
		}
		after, err := model.UpdateGoal(before, patch, g.config.Actor)
		if err != nil {
			return err
		}
		changes, err := versioning.ComputeChanges(before, after, updateFields)
		if err != nil {
			return err
		}
		if len(changes) == 0 {
			updated = before
			return nil
		}

		snap, err := versioning.CreateSnapshot(after, "updated", summary, model.TriggerManual, changes, "")
		if err != nil {
			return err
		}
		if err := g.persist(ctx, tr, after, snap); err != nil {
			return err
		}
		if before.Status != after.Status {
			if err := g.syncProject(ctx, tr, after); err != nil {
				return err
			}
		}
		updated = after
		return g.reindex(ctx, tr)
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// SetProgress clamps progress into [0,1] and records an auto_progress
// snapshot when the stored value changes.
func (g *Goalgraph) SetProgress(ctx context.Context, id string, progress float64) (*model.Goal, error) {
	var updated *model.Goal
	err := g.mutate(ctx, "set_progress", func(ctx context.Context, tr *OperationTrace) error {
		before, err := g.mustGoal(ctx, tr, id)
		if err != nil {
			return err
		}
		after, err := model.SetProgress(before, progress, g.config.Actor)
		if err != nil {
			return err
		}
		changes, err := versioning.ComputeChanges(before, after, []string{"progress"})
		if err != nil {
			return err
		}
		if len(changes) == 0 {
			updated = before
			return nil
		}
		summary := fmt.Sprintf("progress %s -> %s", changes[0].From, changes[0].To)
		snap, err := versioning.CreateSnapshot(after, "progress updated", summary, model.TriggerAutoProgress, changes, "")
		if err != nil {
			return err
		}
		if err := g.persist(ctx, tr, after, snap); err != nil {
			return err
		}
		updated = after
		return g.reindex(ctx, tr)
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// PauseGoal moves an active goal to paused.
func (g *Goalgraph) PauseGoal(ctx context.Context, id, reason string) (*model.Goal, error) {
	return g.transition(ctx, "pause_goal", id, "", model.StatusPaused, "paused", reason, model.TriggerManual)
}

// ResumeGoal moves a paused goal back to active.
func (g *Goalgraph) ResumeGoal(ctx context.Context, id string) (*model.Goal, error) {
	return g.transition(ctx, "resume_goal", id, model.StatusPaused, model.StatusActive, "resumed", "", model.TriggerManual)
}

// BlockGoal moves an active goal to blocked.
func (g *Goalgraph) BlockGoal(ctx context.Context, id, reason string) (*model.Goal, error) {
	return g.transition(ctx, "block_goal", id, "", model.StatusBlocked, "blocked", reason, model.TriggerManual)
}

// UnblockGoal moves a blocked goal back to active.
func (g *Goalgraph) UnblockGoal(ctx context.Context, id string) (*model.Goal, error) {
	return g.transition(ctx, "unblock_goal", id, model.StatusBlocked, model.StatusActive, "unblocked", "", model.TriggerManual)
}

// CompleteGoal marks the goal completed at full progress, records a
// milestone snapshot and moves it to the archive.
func (g *Goalgraph) CompleteGoal(ctx context.Context, id, summary string) (*model.Goal, error) {
	return g.transition(ctx, "complete_goal", id, "", model.StatusCompleted, "completed", summary, model.TriggerMilestone)
}

// AbandonGoal marks the goal abandoned and moves it to the archive.
func (g *Goalgraph) AbandonGoal(ctx context.Context, id, reason string) (*model.Goal, error) {
	return g.transition(ctx, "abandon_goal", id, "", model.StatusAbandoned, "abandoned", reason, model.TriggerManual)
}

// transition moves a goal to status to. A non-empty from is the only status
// the move is accepted from.
func (g *Goalgraph) transition(ctx context.Context, operation, id string, from, to model.Status, event, summary string, trigger model.Trigger) (*model.Goal, error) {
	var updated *model.Goal
	err := g.mutate(ctx, operation, func(ctx context.Context, tr *OperationTrace) error {
		before, err := g.mustGoal(ctx, tr, id)
		if err != nil {
			return err
		}
		if before.Status == to || (from != "" && before.Status != from) {
			return &model.TransitionError{Kind: "goal", From: string(before.Status), To: string(to)}
		}
		patch := model.GoalPatch{Status: &to}
		if to == model.StatusCompleted {
			full := 1.0
			patch.Progress = &full
		}
		after, err := model.UpdateGoal(before, patch, g.config.Actor)
		if err != nil {
			return err
		}
		changes, err := versioning.ComputeChanges(before, after, nil)
		if err != nil {
			return err
		}
		snap, err := versioning.CreateSnapshot(after, event, summary, trigger, changes, "")
		if err != nil {
			return err
		}
		if err := g.persist(ctx, tr, after, snap); err != nil {
			return err
		}
		if err := g.syncProject(ctx, tr, after); err != nil {
			return err
		}
		if to.Terminal() {
			if _, err := g.store.ArchiveGoal(ctx, id); err != nil {
				return fmt.Errorf("failed to archive goal %s: %w", id, err)
			}
		}
		updated = after
		return g.reindex(ctx, tr)
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// ArchiveGoal moves a goal to the archived area without changing it.
// Returns false if the goal was already archived.
func (g *Goalgraph) ArchiveGoal(ctx context.Context, id string) (bool, error) {
	var moved bool
	err := g.mutate(ctx, "archive_goal", func(ctx context.Context, tr *OperationTrace) error {
		if _, err := g.mustGoal(ctx, tr, id); err != nil {
			return err
		}
		timer := newSpanTimer("persist", tr)
		ok, err := g.store.ArchiveGoal(ctx, id)
		timer.finish(err, nil)
		if err != nil {
			return err
		}
		moved = ok
		return g.reindex(ctx, tr)
	})
	return moved, err
}

// PurgeGoal deletes a goal with its snapshots and branches, and removes
// every reference the store keeps to it: project membership, the parent's
// children and the session's active goal.
func (g *Goalgraph) PurgeGoal(ctx context.Context, id string) error {
	return g.mutate(ctx, "purge_goal", func(ctx context.Context, tr *OperationTrace) error {
		goal, err := g.mustGoal(ctx, tr, id)
		if err != nil {
			return err
		}

		if goal.Project != "" {
			project, err := g.store.LoadProject(ctx, goal.Project)
			if err != nil {
				return err
			}
			if project != nil && project.Goals.Contains(id) {
				model.RemoveGoalFromProject(project, id)
				project.Updated = model.Now()
				if err := g.store.SaveProject(ctx, project); err != nil {
					return err
				}
			}
		}
		if goal.Parent != "" {
			parent, err := g.store.LoadGoal(ctx, goal.Parent)
			if err != nil {
				return err
			}
			if parent != nil {
				parent.RemoveChild(id)
				parent.Touch(g.config.Actor)
				if err := g.persist(ctx, tr, parent, nil); err != nil {
					return err
				}
			}
		}
		state, err := g.store.LoadSession(ctx)
		if err != nil {
			return err
		}
		if state != nil && state.ActiveGoal == id {
			state.ActiveGoal = ""
			state.Updated = model.Now()
			if err := g.store.SaveSession(ctx, state); err != nil {
				return err
			}
		}

		timer := newSpanTimer("persist", tr)
		_, err = g.store.DeleteGoal(ctx, id)
		timer.finish(err, nil)
		if err != nil {
			return err
		}
		return g.reindex(ctx, tr)
	})
}

// LinkGoals makes parentID the parent of childID. The child leaves its
// previous parent's children list. Links that would close a parent cycle
// fail with *model.CycleDetectedError.
func (g *Goalgraph) LinkGoals(ctx context.Context, childID, parentID string) error {
	if childID == parentID {
		return &model.ValidationError{Field: "parent", Reason: "a goal cannot be its own parent"}
	}
	return g.mutate(ctx, "link_goals", func(ctx context.Context, tr *OperationTrace) error {
		child, err := g.mustGoal(ctx, tr, childID)
		if err != nil {
			return err
		}
		parent, err := g.mustGoal(ctx, tr, parentID)
		if err != nil {
			return err
		}
		tr.setID("parent", parentID)
		if err := g.checkAncestry(ctx, childID, parent); err != nil {
			return err
		}

		if old := child.Parent; old != "" && old != parentID {
			previous, err := g.store.LoadGoal(ctx, old)
			if err != nil {
				return err
			}
			if previous != nil {
				previous.RemoveChild(childID)
				previous.Touch(g.config.Actor)
				if err := g.persist(ctx, tr, previous, nil); err != nil {
					return err
				}
			}
		}

		parent.AddChild(childID)
		parent.Touch(g.config.Actor)
		if err := g.persist(ctx, tr, parent, nil); err != nil {
			return err
		}

		after := child.Clone()
		after.Parent = parentID
		after.Touch(g.config.Actor)
		changes, err := versioning.ComputeChanges(child, after, []string{"parent"})
		if err != nil {
			return err
		}
		var snap *model.Snapshot
		if len(changes) > 0 {
			if snap, err = versioning.CreateSnapshot(after, "linked", "parent "+parentID, model.TriggerManual, changes, ""); err != nil {
				return err
			}
		}
		if err := g.persist(ctx, tr, after, snap); err != nil {
			return err
		}
		return g.reindex(ctx, tr)
	})
}

// checkAncestry walks up from start and fails if childID is reached.
func (g *Goalgraph) checkAncestry(ctx context.Context, childID string, start *model.Goal) error {
	seen := map[string]bool{start.ID: true}
	for cur := start; cur != nil && cur.Parent != ""; {
		if cur.Parent == childID {
			return &model.CycleDetectedError{Start: childID, At: start.ID}
		}
		if seen[cur.Parent] {
			return &model.CycleDetectedError{Start: start.ID, At: cur.Parent}
		}
		seen[cur.Parent] = true
		next, err := g.store.LoadGoal(ctx, cur.Parent)
		if err != nil {
			return err
		}
		cur = next
	}
	return nil
}

// AddDependency records that id depends on dependsOn.
func (g *Goalgraph) AddDependency(ctx context.Context, id, dependsOn string) error {
	return g.relate(ctx, "add_dependency", id, dependsOn, (*model.Goal).AddDependency)
}

// AddInforms records that id informs target.
func (g *Goalgraph) AddInforms(ctx context.Context, id, target string) error {
	return g.relate(ctx, "add_informs", id, target, (*model.Goal).AddInforms)
}

func (g *Goalgraph) relate(ctx context.Context, operation, id, target string, add func(*model.Goal, string)) error {
	if id == target {
		return &model.ValidationError{Field: "target", Reason: "a goal cannot relate to itself"}
	}
	return g.mutate(ctx, operation, func(ctx context.Context, tr *OperationTrace) error {
		goal, err := g.mustGoal(ctx, tr, id)
		if err != nil {
			return err
		}
		other, err := g.store.LoadGoal(ctx, target)
		if err != nil {
			return err
		}
		if other == nil {
			return &model.NotFoundError{Kind: "goal", ID: target}
		}
		tr.setID("target", target)
		add(goal, target)
		goal.Touch(g.config.Actor)
		if err := g.persist(ctx, tr, goal, nil); err != nil {
			return err
		}
		return g.reindex(ctx, tr)
	})
}

// AddLearning appends a learning to the goal's work context.
func (g *Goalgraph) AddLearning(ctx context.Context, id, text string) error {
	if strings.TrimSpace(text) == "" {
		return &model.ValidationError{Field: "learning", Reason: "must not be blank"}
	}
	return g.touchContext(ctx, "add_learning", id, func(goal *model.Goal) {
		goal.AddLearning(text)
	})
}

// AddDecision appends a decision to the goal's work context.
func (g *Goalgraph) AddDecision(ctx context.Context, id string, decision model.Decision) error {
	if strings.TrimSpace(decision.Decision) == "" {
		return &model.ValidationError{Field: "decision", Reason: "must not be blank"}
	}
	return g.touchContext(ctx, "add_decision", id, func(goal *model.Goal) {
		goal.AddDecision(decision)
	})
}

// AddFiles adds related files to the goal's work context and returns the
// paths that were new.
func (g *Goalgraph) AddFiles(ctx context.Context, id string, paths []string) ([]string, error) {
	var added []string
	err := g.touchContext(ctx, "add_files", id, func(goal *model.Goal) {
		added = goal.AddFiles(paths...)
	})
	return added, err
}

// touchContext applies a work context edit. Context edits are not snapshotted.
func (g *Goalgraph) touchContext(ctx context.Context, operation, id string, edit func(*model.Goal)) error {
	return g.mutate(ctx, operation, func(ctx context.Context, tr *OperationTrace) error {
		goal, err := g.mustGoal(ctx, tr, id)
		if err != nil {
			return err
		}
		edit(goal)
		goal.Touch(g.config.Actor)
		if err := g.persist(ctx, tr, goal, nil); err != nil {
			return err
		}
		return g.reindex(ctx, tr)
	})
}

// Snapshot records a manual snapshot of the goal's current fields.
func (g *Goalgraph) Snapshot(ctx context.Context, id, event, summary string) (*model.Snapshot, error) {
	var created *model.Snapshot
	err := g.mutate(ctx, "snapshot", func(ctx context.Context, tr *OperationTrace) error {
		goal, err := g.mustGoal(ctx, tr, id)
		if err != nil {
			return err
		}
		snap, err := versioning.CreateSnapshot(goal, event, summary, model.TriggerManual, nil, "")
		if err != nil {
			return err
		}
		goal.Touch(g.config.Actor)
		if err := g.persist(ctx, tr, goal, snap); err != nil {
			return err
		}
		created = snap
		return g.reindex(ctx, tr)
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// History returns the goal's snapshots oldest first, following the
// previous_snapshot chain.
func (g *Goalgraph) History(ctx context.Context, id string) ([]*model.Snapshot, error) {
	goal, err := g.store.LoadGoal(ctx, id)
	if err != nil {
		return nil, err
	}
	if goal == nil {
		return nil, &model.NotFoundError{Kind: "goal", ID: id}
	}
	ids, err := g.store.ListSnapshots(ctx, id)
	if err != nil {
		return nil, err
	}
	snaps := make([]*model.Snapshot, 0, len(ids))
	for _, snapID := range ids {
		snap, err := g.store.LoadSnapshot(ctx, id, snapID)
		if err != nil {
			return nil, err
		}
		if snap != nil {
			snaps = append(snaps, snap)
		}
	}
	return versioning.Chain(snaps), nil
}

// mustGoal loads a goal that an operation requires.
func (g *Goalgraph) mustGoal(ctx context.Context, tr *OperationTrace, id string) (*model.Goal, error) {
	if id == "" {
		return nil, &model.ValidationError{Field: "goal", Reason: "must not be blank"}
	}
	if _, seen := tr.IDs["goal"]; !seen {
		tr.setID("goal", id)
	}
	timer := newSpanTimer("load", tr)
	goal, err := g.store.LoadGoal(ctx, id)
	timer.finish(err, nil)
	if err != nil {
		return nil, err
	}
	if goal == nil {
		return nil, &model.NotFoundError{Kind: "goal", ID: id}
	}
	return goal, nil
}

// persist writes snap (when given) and the branch it was taken on, then the
// goal. The snapshot id is attached to the goal before the goal is written.
func (g *Goalgraph) persist(ctx context.Context, tr *OperationTrace, goal *model.Goal, snap *model.Snapshot) error {
	if snap != nil {
		timer := newSpanTimer("snapshot", tr)
		branch, err := g.store.LoadBranch(ctx, goal.ID, snap.Branch)
		if err == nil {
			versioning.Attach(goal, branch, snap)
			err = g.store.SaveSnapshot(ctx, snap)
		}
		if err == nil && branch != nil {
			err = g.store.SaveBranch(ctx, branch)
		}
		timer.finish(err, nil)
		if err != nil {
			return fmt.Errorf("failed to save snapshot: %w", err)
		}
		tr.setID("snapshot", snap.ID)
		g.metrics.RecordSnapshot(ctx, string(snap.Trigger))
	}

	timer := newSpanTimer("persist", tr)
	err := g.store.SaveGoal(ctx, goal)
	timer.finish(err, nil)
	if err != nil {
		return fmt.Errorf("failed to save goal %s: %w", goal.ID, err)
	}
	return nil
}

// syncProject files the goal under its status in its project. Goals naming a
// project the store does not know are left alone.
func (g *Goalgraph) syncProject(ctx context.Context, tr *OperationTrace, goal *model.Goal) error {
	if goal.Project == "" {
		return nil
	}
	timer := newSpanTimer("project", tr)
	project, err := g.store.LoadProject(ctx, goal.Project)
	if err == nil && project != nil {
		model.AddGoalToProject(project, goal.ID, goal.Status)
		err = g.store.SaveProject(ctx, project)
		tr.setID("project", project.ID)
	}
	timer.finish(err, nil)
	if err != nil {
		return fmt.Errorf("failed to update project %s: %w", goal.Project, err)
	}
	return nil
}

// reindex rebuilds the index and refreshes the goal gauges.
func (g *Goalgraph) reindex(ctx context.Context, tr *OperationTrace) error {
	timer := newSpanTimer("index", tr)
	idx, err := g.index.Rebuild(ctx)
	if err != nil {
		timer.finish(err, nil)
		return err
	}
	timer.finish(nil, map[string]int64{
		"goals": int64(len(idx.Goals)),
		"edges": int64(len(idx.Edges)),
	})

	stats := query.StatsOf(idx)
	for _, status := range model.Statuses {
		g.metrics.SetGoalCount(ctx, string(status), int64(stats.ByStatus[string(status)]))
	}
	return nil
}
