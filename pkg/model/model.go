// Package model defines goalgraph's entities and the pure functions that
// construct and mutate them. Nothing in this package performs I/O.
package model

import (
	"strings"
	"time"
)

// SchemaVersion is the only record schema version this build understands.
const SchemaVersion = 1

// IndexSchemaVersion versions the derived index document independently of records.
const IndexSchemaVersion = 1

// Status is the lifecycle state of a Goal.
type Status string

const (
	StatusActive    Status = "active"
	StatusPaused    Status = "paused"
	StatusCompleted Status = "completed"
	StatusAbandoned Status = "abandoned"
	StatusBlocked   Status = "blocked"
)

// Statuses lists every goal status in display order.
var Statuses = []Status{StatusActive, StatusPaused, StatusBlocked, StatusCompleted, StatusAbandoned}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusPaused, StatusCompleted, StatusAbandoned, StatusBlocked:
		return true
	}
	return false
}

// Terminal reports whether no transition leaves s.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusAbandoned
}

// Priority ranks goals.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// VerificationMethod says how a goal's criteria are checked.
type VerificationMethod string

const (
	VerifyManual    VerificationMethod = "manual"
	VerifyAutomated VerificationMethod = "automated"
	VerifyHybrid    VerificationMethod = "hybrid"
)

// Trigger records why a snapshot was taken.
type Trigger string

const (
	TriggerManual       Trigger = "manual"
	TriggerAutoProgress Trigger = "auto_progress"
	TriggerBranchCreate Trigger = "branch_create"
	TriggerMilestone    Trigger = "milestone"
	TriggerSessionEnd   Trigger = "session_end"
)

// Valid reports whether t is a known trigger.
func (t Trigger) Valid() bool {
	switch t {
	case TriggerManual, TriggerAutoProgress, TriggerBranchCreate, TriggerMilestone, TriggerSessionEnd:
		return true
	}
	return false
}

// BranchStatus is the lifecycle state of a Branch.
type BranchStatus string

const (
	BranchActive    BranchStatus = "active"
	BranchMerged    BranchStatus = "merged"
	BranchAbandoned BranchStatus = "abandoned"
)

// MainBranchID is the id of the branch every goal starts on.
const MainBranchID = "branch_main"

// Now returns the current time as stored in records: UTC, millisecond
// precision, no monotonic reading.
func Now() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}

// normalizeList trims entries, drops blanks and duplicates, and keeps first-seen order.
// Returns nil for an empty result so records round-trip through omitempty encoders.
func normalizeList(in []string) []string {
	var out []string
	seen := make(map[string]bool, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}

// appendUnique appends values not already present in list.
func appendUnique(list []string, values ...string) []string {
	for _, v := range values {
		if v == "" || contains(list, v) {
			continue
		}
		list = append(list, v)
	}
	return list
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

func removeValue(list []string, v string) []string {
	var out []string
	for _, s := range list {
		if s != v {
			out = append(out, s)
		}
	}
	return out
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}
