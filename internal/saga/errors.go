package saga

import (
	"errors"
	"fmt"
)

// Stage identifies the step of the dual-store protocol that failed.
type Stage string

const (
	StageExternalCreate Stage = "external_create"
	StageResolveID      Stage = "resolve_external_id"
	StageLocalInsert    Stage = "local_insert"
	StageExternalUpdate Stage = "external_update"
	StageLocalUpdate    Stage = "local_update"
	StageExternalDelete Stage = "external_delete"
	StageLocalDelete    Stage = "local_delete"
)

// Error wraps a failure with the protocol stage and entity kind it occurred
// in. The original cause is always preserved; compensation outcomes never
// replace it.
type Error struct {
	Stage Stage
	Kind  string
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s %s failed: %v", e.Kind, e.Stage, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// StageOf extracts the protocol stage from an error chain.
func StageOf(err error) (Stage, bool) {
	var sagaErr *Error
	if errors.As(err, &sagaErr) {
		return sagaErr.Stage, true
	}
	return "", false
}

// IsStage reports whether err failed at the given stage.
func IsStage(err error, stage Stage) bool {
	s, ok := StageOf(err)
	return ok && s == stage
}

// CompensationError records a best-effort external rollback that did not
// succeed, leaving an orphaned external principal. It is logged and counted
// but never returned to the caller; the triggering failure is the actionable
// one.
type CompensationError struct {
	Kind string
	Ref  string
	Err  error
}

func (e *CompensationError) Error() string {
	return fmt.Sprintf("compensation failed for %s %q, external principal orphaned: %v", e.Kind, e.Ref, e.Err)
}

func (e *CompensationError) Unwrap() error {
	return e.Err
}
