package versioning

import (
	"reflect"
	"strconv"

	"github.com/dan-solli/goalgraph/pkg/model"
)

// DefaultFields are compared when no field set is given.
var DefaultFields = []string{"progress", "status", "current_state", "desired_state"}

type fieldKind int

const (
	scalarField fieldKind = iota
	listField
)

type fieldAccessor struct {
	kind   fieldKind
	scalar func(*model.Goal) string
	list   func(*model.Goal) []string
	raw    func(*model.Goal) any
}

func scalar(get func(*model.Goal) string) fieldAccessor {
	return fieldAccessor{kind: scalarField, scalar: get, raw: func(g *model.Goal) any { return get(g) }}
}

func list(get func(*model.Goal) []string) fieldAccessor {
	return fieldAccessor{kind: listField, list: get, raw: func(g *model.Goal) any { return get(g) }}
}

var goalFields = map[string]fieldAccessor{
	"title":         scalar(func(g *model.Goal) string { return g.Title }),
	"description":   scalar(func(g *model.Goal) string { return g.Description }),
	"current_state": scalar(func(g *model.Goal) string { return g.CurrentState }),
	"desired_state": scalar(func(g *model.Goal) string { return g.DesiredState }),
	"status":        scalar(func(g *model.Goal) string { return string(g.Status) }),
	"priority":      scalar(func(g *model.Goal) string { return string(g.Priority) }),
	"project":       scalar(func(g *model.Goal) string { return g.Project }),
	"parent":        scalar(func(g *model.Goal) string { return g.Parent }),
	"evolved_from":  scalar(func(g *model.Goal) string { return g.EvolvedFrom }),
	"progress": {
		kind:   scalarField,
		scalar: func(g *model.Goal) string { return strconv.FormatFloat(g.Progress, 'f', -1, 64) },
		raw:    func(g *model.Goal) any { return g.Progress },
	},
	"tags":          list(func(g *model.Goal) []string { return g.Tags }),
	"children":      list(func(g *model.Goal) []string { return g.Children }),
	"depends_on":    list(func(g *model.Goal) []string { return g.DependsOn }),
	"informs":       list(func(g *model.Goal) []string { return g.Informs }),
	"files_primary": list(func(g *model.Goal) []string { return g.Context.FilesPrimary }),
	"files_related": list(func(g *model.Goal) []string { return g.Context.FilesRelated }),
	"learnings":     list(func(g *model.Goal) []string { return g.Context.Learnings }),
	"criteria":      list(func(g *model.Goal) []string { return g.Verification.Criteria }),
}

// ComputeChanges compares before and after field by field and returns one
// FieldChange per differing field, in the order fields are given. Values are
// compared structurally, so a nil list equals an empty one. An empty result
// means nothing significant changed and no snapshot is warranted.
func ComputeChanges(before, after *model.Goal, fields []string) ([]model.FieldChange, error) {
	if len(fields) == 0 {
		fields = DefaultFields
	}

	var changes []model.FieldChange
	for _, name := range fields {
		acc, ok := goalFields[name]
		if !ok {
			return nil, &model.ValidationError{Field: "fields", Reason: "unknown goal field " + name}
		}

		switch acc.kind {
		case listField:
			from, to := acc.list(before), acc.list(after)
			if len(from) == 0 && len(to) == 0 {
				continue
			}
			if reflect.DeepEqual(from, to) {
				continue
			}
			added, removed := diffLists(from, to)
			changes = append(changes, model.FieldChange{Field: name, Added: added, Removed: removed})
		default:
			if reflect.DeepEqual(acc.raw(before), acc.raw(after)) {
				continue
			}
			changes = append(changes, model.FieldChange{Field: name, From: acc.scalar(before), To: acc.scalar(after)})
		}
	}
	return changes, nil
}

// diffLists returns the values only in to and the values only in from.
func diffLists(from, to []string) (added, removed []string) {
	inFrom := make(map[string]bool, len(from))
	for _, v := range from {
		inFrom[v] = true
	}
	inTo := make(map[string]bool, len(to))
	for _, v := range to {
		inTo[v] = true
		if !inFrom[v] {
			added = append(added, v)
		}
	}
	for _, v := range from {
		if !inTo[v] {
			removed = append(removed, v)
		}
	}
	return added, removed
}
