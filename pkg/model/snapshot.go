package model

import "time"

// Snapshot is an immutable capture of a goal's core fields at one moment.
// Snapshots of one goal form a singly linked chain through PreviousSnapshot.
type Snapshot struct {
	SchemaVersion int       `yaml:"schema_version" json:"schema_version"`
	ID            string    `yaml:"id" json:"id"`
	GoalID        string    `yaml:"goal" json:"goal"`
	Created       time.Time `yaml:"created" json:"created"`
	Event         string    `yaml:"event" json:"event"`
	Summary       string    `yaml:"summary,omitempty" json:"summary,omitempty"`
	Trigger       Trigger   `yaml:"trigger" json:"trigger"`

	CurrentState string  `yaml:"current_state" json:"current_state"`
	DesiredState string  `yaml:"desired_state" json:"desired_state"`
	Progress     float64 `yaml:"progress" json:"progress"`
	Status       Status  `yaml:"status" json:"status"`

	Changes          []FieldChange `yaml:"changes,omitempty" json:"changes,omitempty"`
	PreviousSnapshot string        `yaml:"previous_snapshot,omitempty" json:"previous_snapshot,omitempty"`
	Branch           string        `yaml:"branch" json:"branch"`
	SessionID        string        `yaml:"session,omitempty" json:"session,omitempty"`
}

// FieldChange describes one field that differs between two goal states.
// Scalar fields carry From/To; list fields also carry Added/Removed.
type FieldChange struct {
	Field   string   `yaml:"field" json:"field"`
	From    string   `yaml:"from,omitempty" json:"from,omitempty"`
	To      string   `yaml:"to,omitempty" json:"to,omitempty"`
	Added   []string `yaml:"added,omitempty" json:"added,omitempty"`
	Removed []string `yaml:"removed,omitempty" json:"removed,omitempty"`
}
