package goalgraph

import (
	"context"
	"errors"
	"strings"

	"github.com/dan-solli/goalgraph/pkg/model"
)

// Error type constants for classification
const (
	ErrTypeValidation = "validation"
	ErrTypeNotFound   = "not_found"
	ErrTypeStorage    = "storage"
	ErrTypeSchema     = "schema"
	ErrTypeCycle      = "cycle"
	ErrTypeConflict   = "conflict"
	ErrTypeLock       = "lock"
	ErrTypeTimeout    = "timeout"
	ErrTypeUnknown    = "unknown"
)

// ClassifyError inspects an error and returns its type classification.
// This enables grouping errors by category in metrics and traces.
func ClassifyError(err error) string {
	if err == nil {
		return ""
	}

	var (
		validationErr *model.ValidationError
		transitionErr *model.TransitionError
		notFoundErr   *model.NotFoundError
		schemaErr     *model.SchemaError
		cycleErr      *model.CycleDetectedError
		conflictErr   *model.ConflictError
		storageErr    *model.StorageError
	)

	switch {
	case errors.Is(err, model.ErrLocked):
		return ErrTypeLock
	case errors.Is(err, context.DeadlineExceeded):
		return ErrTypeTimeout
	case errors.As(err, &validationErr), errors.As(err, &transitionErr):
		return ErrTypeValidation
	case errors.As(err, &notFoundErr):
		return ErrTypeNotFound
	case errors.As(err, &schemaErr):
		return ErrTypeSchema
	case errors.As(err, &cycleErr):
		return ErrTypeCycle
	case errors.As(err, &conflictErr):
		return ErrTypeConflict
	case errors.As(err, &storageErr):
		return ErrTypeStorage
	}

	errStrLower := strings.ToLower(err.Error())

	if strings.Contains(errStrLower, "timeout") || strings.Contains(errStrLower, "deadline exceeded") {
		return ErrTypeTimeout
	}

	// Database and filesystem failures that escaped StorageError wrapping
	if strings.Contains(errStrLower, "sql") ||
		strings.Contains(errStrLower, "database") ||
		strings.Contains(errStrLower, "permission denied") ||
		strings.Contains(errStrLower, "no space left") {
		return ErrTypeStorage
	}

	return ErrTypeUnknown
}
