package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrSyncFailed marks an ingestion run that could not complete.
	ErrSyncFailed = errors.New("sync failed")
	// ErrMemberNotFound is returned when a member lookup misses.
	ErrMemberNotFound = errors.New("member not found")
	// ErrCachePruneFailed marks a failed best-effort cleanup after the new
	// cache rows were already committed.
	ErrCachePruneFailed = errors.New("cache prune failed")
)

// ValidationError reports invalid caller input.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// StorageWriteError wraps a failed cache or replica write.
type StorageWriteError struct {
	Table string
	Err   error
}

func (e *StorageWriteError) Error() string {
	return fmt.Sprintf("failed to write %s: %v", e.Table, e.Err)
}

func (e *StorageWriteError) Unwrap() error {
	return e.Err
}

// ItemFailure is one failed item of a partially applied batch.
type ItemFailure struct {
	ID  string
	Err error
}

// PartialBatchFailure aggregates item failures that did not abort a run.
type PartialBatchFailure struct {
	Failures []ItemFailure
}

func (e *PartialBatchFailure) Error() string {
	parts := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		parts = append(parts, f.ID+": "+f.Err.Error())
	}
	return fmt.Sprintf("%d items failed: %s", len(e.Failures), strings.Join(parts, "; "))
}

// Unwrap exposes the individual errors to errors.Is and errors.As.
func (e *PartialBatchFailure) Unwrap() []error {
	errs := make([]error, 0, len(e.Failures))
	for _, f := range e.Failures {
		errs = append(errs, f.Err)
	}
	return errs
}

// Add records a failure.
func (e *PartialBatchFailure) Add(id string, err error) {
	e.Failures = append(e.Failures, ItemFailure{ID: id, Err: err})
}

// ErrOrNil returns nil when nothing failed.
func (e *PartialBatchFailure) ErrOrNil() error {
	if e == nil || len(e.Failures) == 0 {
		return nil
	}
	return e
}
