package query

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	exprlang "github.com/expr-lang/expr"
	exprvm "github.com/expr-lang/expr/vm"

	"github.com/dan-solli/goalgraph/pkg/model"
)

// whereEnv is the variable set a Where expression sees for each goal.
type whereEnv struct {
	ID       string    `expr:"id"`
	Title    string    `expr:"title"`
	Status   string    `expr:"status"`
	Progress float64   `expr:"progress"`
	Priority string    `expr:"priority"`
	Project  string    `expr:"project"`
	Tags     []string  `expr:"tags"`
	Parent   string    `expr:"parent"`
	Children []string  `expr:"children"`
	Branch   string    `expr:"branch"`
	Archived bool      `expr:"archived"`
	Updated  time.Time `expr:"updated"`
}

func envFor(entry model.IndexEntry) whereEnv {
	tags := entry.Tags
	if tags == nil {
		tags = []string{}
	}
	children := entry.Children
	if children == nil {
		children = []string{}
	}
	return whereEnv{
		ID:       entry.ID,
		Title:    entry.Title,
		Status:   string(entry.Status),
		Progress: entry.Progress,
		Priority: string(entry.Priority),
		Project:  entry.Project,
		Tags:     tags,
		Parent:   entry.Parent,
		Children: children,
		Branch:   entry.Branch,
		Archived: entry.Archived,
		Updated:  entry.Updated,
	}
}

// Compile checks a filter expression such as
//
//	status == "active" && progress > 0.5 && "api" in tags
//
// Unknown variables and non-boolean results are rejected here rather than
// per goal.
func Compile(expression string) (*exprvm.Program, error) {
	if strings.TrimSpace(expression) == "" {
		return nil, &model.ValidationError{Field: "expression", Reason: "must not be empty"}
	}
	program, err := exprlang.Compile(expression,
		exprlang.Env(whereEnv{}),
		exprlang.AsBool(),
	)
	if err != nil {
		return nil, &model.ValidationError{Field: "expression", Reason: err.Error()}
	}
	return program, nil
}

// Where returns the index entries for which expression holds, sorted by id.
func (e *Engine) Where(ctx context.Context, expression string) ([]model.IndexEntry, error) {
	program, err := Compile(expression)
	if err != nil {
		return nil, err
	}
	idx, err := e.index(ctx)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(idx.Goals))
	for id := range idx.Goals {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	matches := []model.IndexEntry{}
	for _, id := range ids {
		entry := idx.Goals[id]
		out, err := exprlang.Run(program, envFor(entry))
		if err != nil {
			return nil, fmt.Errorf("failed to evaluate filter on %s: %w", id, err)
		}
		if ok, _ := out.(bool); ok {
			matches = append(matches, entry)
		}
	}
	return matches, nil
}
