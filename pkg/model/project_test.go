package model

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func countMemberships(p *Project, goalID string) int {
	n := 0
	for _, list := range [][]string{p.Goals.Active, p.Goals.Paused, p.Goals.Completed, p.Goals.Abandoned} {
		for _, id := range list {
			if id == goalID {
				n++
			}
		}
	}
	return n
}

func TestAddGoalToProject_Idempotent(t *testing.T) {
	p, err := NewProject(ProjectInput{Name: "web", Paths: []string{"/src/web"}})
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		AddGoalToProject(p, "goal_1", StatusActive)
	}
	assert.Equal(t, 1, countMemberships(p, "goal_1"))
	assert.Equal(t, []string{"goal_1"}, p.Goals.Active)

	AddGoalToProject(p, "goal_1", StatusPaused)
	AddGoalToProject(p, "goal_1", StatusPaused)
	assert.Equal(t, 1, countMemberships(p, "goal_1"))
	assert.Empty(t, p.Goals.Active)
	assert.Equal(t, []string{"goal_1"}, p.Goals.Paused)

	AddGoalToProject(p, "goal_1", StatusCompleted)
	assert.Equal(t, 1, countMemberships(p, "goal_1"))
	assert.Equal(t, []string{"goal_1"}, p.Goals.Completed)
}

func TestAddGoalToProject_BlockedIsActive(t *testing.T) {
	p, err := NewProject(ProjectInput{Name: "web", Paths: []string{"/src/web"}})
	require.NoError(t, err)

	AddGoalToProject(p, "goal_1", StatusBlocked)
	assert.Equal(t, []string{"goal_1"}, p.Goals.Active)
}

func TestRemoveGoalFromProject(t *testing.T) {
	p, err := NewProject(ProjectInput{Name: "web", Paths: []string{"/src/web"}})
	require.NoError(t, err)

	AddGoalToProject(p, "goal_1", StatusAbandoned)
	AddGoalToProject(p, "goal_2", StatusActive)
	RemoveGoalFromProject(p, "goal_1")

	assert.False(t, p.Goals.Contains("goal_1"))
	assert.True(t, p.Goals.Contains("goal_2"))
}

func TestNewProject_Validation(t *testing.T) {
	_, err := NewProject(ProjectInput{Name: "", Paths: []string{"/x"}})
	assert.True(t, IsValidation(err))

	_, err = NewProject(ProjectInput{Name: "x"})
	assert.True(t, IsValidation(err))
}

func TestProject_MatchLength(t *testing.T) {
	root := filepath.FromSlash("/src/web")
	p, err := NewProject(ProjectInput{Name: "web", Paths: []string{root}, Aliases: []string{"frontend"}})
	require.NoError(t, err)

	assert.Equal(t, len(root), p.MatchLength(root))
	assert.Equal(t, len(root), p.MatchLength(filepath.Join(root, "cmd", "server")))
	assert.Equal(t, 0, p.MatchLength(filepath.FromSlash("/src/webapp")))
	assert.Equal(t, 1, p.MatchLength(filepath.FromSlash("/elsewhere/frontend")))

	p.Aliases = append(p.Aliases, p.ID)
	assert.Equal(t, 0, p.MatchLength(filepath.FromSlash("/elsewhere/unrelated")))
}
