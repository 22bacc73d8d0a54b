// Package versioning records goal history: immutable snapshots chained per
// goal, change detection between goal states, and named branches that fork
// from a snapshot and are later merged or abandoned.
//
// Functions here are pure. They build new records and return modified copies
// of their inputs; persisting the results is the caller's job.
package versioning

import (
	"strings"

	"github.com/dan-solli/goalgraph/pkg/model"
)

// CreateSnapshot captures the core fields of g on its current branch, linked
// to g's latest snapshot. g is not modified: the caller appends the new id
// with Attach and persists both records.
func CreateSnapshot(g *model.Goal, event, summary string, trigger model.Trigger, changes []model.FieldChange, sessionID string) (*model.Snapshot, error) {
	event = strings.TrimSpace(event)
	if event == "" {
		return nil, &model.ValidationError{Field: "event", Reason: "must not be blank"}
	}
	if trigger == "" {
		trigger = model.TriggerManual
	}
	if !trigger.Valid() {
		return nil, &model.ValidationError{Field: "trigger", Reason: "unknown trigger " + string(trigger)}
	}

	var copied []model.FieldChange
	if len(changes) > 0 {
		copied = append(copied, changes...)
	}

	return &model.Snapshot{
		SchemaVersion:    model.SchemaVersion,
		ID:               model.NewSnapshotID(),
		GoalID:           g.ID,
		Created:          model.Now(),
		Event:            event,
		Summary:          strings.TrimSpace(summary),
		Trigger:          trigger,
		CurrentState:     g.CurrentState,
		DesiredState:     g.DesiredState,
		Progress:         g.Progress,
		Status:           g.Status,
		Changes:          copied,
		PreviousSnapshot: g.LastSnapshot(),
		Branch:           g.CurrentBranch(),
		SessionID:        sessionID,
	}, nil
}

// Attach appends snap to the snapshot list of g and, when given, of the
// branch the snapshot was taken on. Both are modified in place.
func Attach(g *model.Goal, branch *model.Branch, snap *model.Snapshot) {
	g.Snapshots = append(g.Snapshots, snap.ID)
	if branch != nil && branch.ID == snap.Branch {
		branch.Snapshots = append(branch.Snapshots, snap.ID)
	}
}

// Chain orders snapshots by following PreviousSnapshot links back from the
// newest one, oldest first. Snapshots not reachable from the newest keep
// their input order and come before the chain, so nothing is dropped when a
// chain was hand-edited.
func Chain(snaps []*model.Snapshot) []*model.Snapshot {
	if len(snaps) < 2 {
		return snaps
	}
	byID := make(map[string]*model.Snapshot, len(snaps))
	for _, s := range snaps {
		byID[s.ID] = s
	}

	var rev []*model.Snapshot
	seen := make(map[string]bool, len(snaps))
	for cur := snaps[len(snaps)-1]; cur != nil && !seen[cur.ID]; cur = byID[cur.PreviousSnapshot] {
		seen[cur.ID] = true
		rev = append(rev, cur)
	}

	out := make([]*model.Snapshot, 0, len(snaps))
	for _, s := range snaps {
		if !seen[s.ID] {
			out = append(out, s)
		}
	}
	for i := len(rev) - 1; i >= 0; i-- {
		out = append(out, rev[i])
	}
	return out
}
