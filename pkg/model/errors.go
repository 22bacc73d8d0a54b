package model

import (
	"errors"
	"fmt"
)

// ErrLocked indicates the store's advisory lock is held by another process.
var ErrLocked = errors.New("store is locked by another process")

// ValidationError reports a missing or invalid input field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// NotFoundError reports a referenced entity that does not exist.
type NotFoundError struct {
	Kind string // goal, snapshot, branch, project, session
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Kind, e.ID)
}

// StorageError wraps a failure of the backing medium.
type StorageError struct {
	Op   string
	Path string
	Err  error
}

func (e *StorageError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("storage %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// SchemaError reports a record whose schema_version this build does not understand.
type SchemaError struct {
	Kind    string
	ID      string
	Version int
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("%s %s has unsupported schema_version %d (supported: %d)", e.Kind, e.ID, e.Version, SchemaVersion)
}

// CycleDetectedError reports a parent/child walk that revisited a goal.
type CycleDetectedError struct {
	Start string
	At    string
}

func (e *CycleDetectedError) Error() string {
	return fmt.Sprintf("cycle detected walking from %s: %s visited twice", e.Start, e.At)
}

// TransitionError reports a state change the state machine does not allow.
type TransitionError struct {
	Kind string
	From string
	To   string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%s cannot move from %s to %s", e.Kind, e.From, e.To)
}

// ConflictError reports an id that is already taken.
type ConflictError struct {
	Kind string
	ID   string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s %s already exists", e.Kind, e.ID)
}

// IsNotFound reports whether err is or wraps a *NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// IsValidation reports whether err is or wraps a *ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
