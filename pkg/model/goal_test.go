package model

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validInput() CreateGoalInput {
	return CreateGoalInput{
		Title:        "Realtime updates",
		CurrentState: "Clients poll every 30s",
		DesiredState: "Server pushes changes",
		Project:      "proj_web",
		Tags:         []string{"api", " realtime ", "api", ""},
	}
}

func TestCreateGoal_Defaults(t *testing.T) {
	g, err := CreateGoal(validInput(), "alice")
	require.NoError(t, err)

	assert.Equal(t, StatusActive, g.Status)
	assert.Equal(t, 0.0, g.Progress)
	assert.Equal(t, PriorityMedium, g.Priority)
	assert.Equal(t, VerifyManual, g.Verification.Method)
	assert.Equal(t, SchemaVersion, g.SchemaVersion)
	assert.Equal(t, "alice", g.CreatedBy)
	assert.Equal(t, "alice", g.LastTouchedBy)
	assert.Equal(t, []string{"api", "realtime"}, g.Tags)
	assert.Empty(t, g.Snapshots)

	require.Len(t, g.Branches, 1)
	assert.Equal(t, MainBranchID, g.Branches[0].ID)
	assert.True(t, g.Branches[0].Current)
	assert.Equal(t, MainBranchID, g.CurrentBranch())
}

func TestCreateGoal_UniqueOrderedIDs(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 200; i++ {
		g, err := CreateGoal(validInput(), "alice")
		require.NoError(t, err)
		require.NotEmpty(t, g.ID)
		assert.False(t, seen[g.ID], "duplicate id %s", g.ID)
		seen[g.ID] = true
		assert.Regexp(t, `^goal_\d{8}-\d{6}_[0-9a-f]{8}$`, g.ID)
	}
}

func TestCreateGoal_RequiredFields(t *testing.T) {
	tests := []struct {
		name  string
		edit  func(*CreateGoalInput)
		field string
	}{
		{"blank title", func(in *CreateGoalInput) { in.Title = "   " }, "title"},
		{"missing current state", func(in *CreateGoalInput) { in.CurrentState = "" }, "current_state"},
		{"missing desired state", func(in *CreateGoalInput) { in.DesiredState = "" }, "desired_state"},
		{"missing project", func(in *CreateGoalInput) { in.Project = "" }, "project"},
		{"bad priority", func(in *CreateGoalInput) { in.Priority = "urgent" }, "priority"},
		{"bad method", func(in *CreateGoalInput) { in.Method = "vibes" }, "method"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := validInput()
			tt.edit(&in)
			g, err := CreateGoal(in, "alice")
			assert.Nil(t, g)

			var ve *ValidationError
			require.True(t, errors.As(err, &ve), "expected ValidationError, got %v", err)
			assert.Equal(t, tt.field, ve.Field)
		})
	}
}

func TestUpdateGoal_MergesAndTouches(t *testing.T) {
	g, err := CreateGoal(validInput(), "alice")
	require.NoError(t, err)

	title := "Realtime updates via SSE"
	progress := 0.4
	updated, err := UpdateGoal(g, GoalPatch{Title: &title, Progress: &progress}, "bob")
	require.NoError(t, err)

	assert.Equal(t, title, updated.Title)
	assert.Equal(t, 0.4, updated.Progress)
	assert.Equal(t, "bob", updated.LastTouchedBy)
	assert.False(t, updated.Updated.Before(g.Updated))
	assert.Equal(t, g.ID, updated.ID)

	// The input goal is untouched.
	assert.Equal(t, "Realtime updates", g.Title)
	assert.Equal(t, 0.0, g.Progress)
	assert.Equal(t, "alice", g.LastTouchedBy)
}

func TestUpdateGoal_RejectsInvalid(t *testing.T) {
	g, err := CreateGoal(validInput(), "alice")
	require.NoError(t, err)

	blank := " "
	_, err = UpdateGoal(g, GoalPatch{Title: &blank}, "bob")
	assert.True(t, IsValidation(err))

	completed := StatusCompleted
	done, err := UpdateGoal(g, GoalPatch{Status: &completed}, "bob")
	require.NoError(t, err)

	active := StatusActive
	_, err = UpdateGoal(done, GoalPatch{Status: &active}, "bob")
	var te *TransitionError
	assert.True(t, errors.As(err, &te))
}

func TestSetProgress_Clamps(t *testing.T) {
	g, err := CreateGoal(validInput(), "alice")
	require.NoError(t, err)

	tests := []struct {
		in   float64
		want float64
	}{
		{-0.3, 0},
		{1.7, 1},
		{0.5, 0.5},
		{0, 0},
		{1, 1},
	}
	for _, tt := range tests {
		out, err := SetProgress(g, tt.in, "bob")
		require.NoError(t, err)
		assert.Equal(t, tt.want, out.Progress, "input %v", tt.in)
	}
}

func TestGoal_AddFilesSkipsDuplicates(t *testing.T) {
	in := validInput()
	in.Files = []string{"main.go"}
	g, err := CreateGoal(in, "alice")
	require.NoError(t, err)

	added := g.AddFiles("main.go", "api.go", "api.go", "db.go")
	assert.Equal(t, []string{"api.go", "db.go"}, added)
	assert.Nil(t, g.AddFiles("db.go"))
	assert.Equal(t, []string{"api.go", "db.go"}, g.Context.FilesRelated)
}

func TestGoal_CloneIsDeep(t *testing.T) {
	g, err := CreateGoal(validInput(), "alice")
	require.NoError(t, err)

	c := g.Clone()
	c.Tags[0] = "changed"
	c.Branches[0].Current = false
	c.AddChild("goal_x")

	assert.Equal(t, "api", g.Tags[0])
	assert.True(t, g.Branches[0].Current)
	assert.Empty(t, g.Children)
}
