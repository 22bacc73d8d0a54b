package model

import "time"

// SessionState is the single record describing the latest agent session.
type SessionState struct {
	SchemaVersion int        `yaml:"schema_version" json:"schema_version"`
	SessionID     string     `yaml:"session_id,omitempty" json:"session_id,omitempty"`
	ActiveGoal    string     `yaml:"active_goal,omitempty" json:"active_goal,omitempty"`
	StartedAt     *time.Time `yaml:"started_at,omitempty" json:"started_at,omitempty"`
	EndedAt       *time.Time `yaml:"ended_at,omitempty" json:"ended_at,omitempty"`
	Focus         string     `yaml:"focus,omitempty" json:"focus,omitempty"`
	RecentFiles   []string   `yaml:"recent_files,omitempty" json:"recent_files,omitempty"`
	PendingTasks  []string   `yaml:"pending_tasks,omitempty" json:"pending_tasks,omitempty"`
	Updated       time.Time  `yaml:"updated" json:"updated"`
}

// NewSessionState returns an empty session record.
func NewSessionState() *SessionState {
	return &SessionState{SchemaVersion: SchemaVersion, Updated: Now()}
}
