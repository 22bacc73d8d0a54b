package model

import "time"

// EdgeType labels an index edge.
type EdgeType string

const (
	EdgeParent      EdgeType = "parent"
	EdgeChild       EdgeType = "child"
	EdgeDependsOn   EdgeType = "depends_on"
	EdgeInforms     EdgeType = "informs"
	EdgeEvolvedFrom EdgeType = "evolved_from"
)

// Index is the derived lookup cache over all goals. It holds no truth of its
// own and can always be rebuilt from the goal records.
type Index struct {
	SchemaVersion int                   `json:"schema_version"`
	Generated     time.Time             `json:"generated"`
	Goals         map[string]IndexEntry `json:"goals"`
	ByStatus      map[string][]string   `json:"by_status"`
	ByProject     map[string][]string   `json:"by_project"`
	ByTag         map[string][]string   `json:"by_tag"`
	Edges         []Edge                `json:"edges"`
}

// IndexEntry is the denormalized summary of one goal.
type IndexEntry struct {
	ID       string    `json:"id"`
	Title    string    `json:"title"`
	Status   Status    `json:"status"`
	Progress float64   `json:"progress"`
	Priority Priority  `json:"priority"`
	Project  string    `json:"project"`
	Tags     []string  `json:"tags,omitempty"`
	Parent   string    `json:"parent,omitempty"`
	Children []string  `json:"children,omitempty"`
	Branch   string    `json:"branch"`
	Updated  time.Time `json:"updated"`
	Archived bool      `json:"archived,omitempty"`
}

// Edge is one typed relationship between two goals.
type Edge struct {
	From string   `json:"from"`
	To   string   `json:"to"`
	Type EdgeType `json:"type"`
}
