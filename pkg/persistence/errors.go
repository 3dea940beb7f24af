// Package persistence provides standardized error types for persistence operations.
package persistence

import (
	"errors"
	"fmt"
)

// Standard persistence error types that all implementations should use.
var (
	// ErrVersionNotFound indicates a version was not found by the given identifier.
	ErrVersionNotFound = errors.New("version not found")

	// ErrBranchNotFound indicates a branch was not found by the given identifier.
	ErrBranchNotFound = errors.New("branch not found")

	// ErrDefaultBranchNotFound indicates a workflow has no default branch
	// registered. Every workflow must have exactly one, so this is a
	// data-integrity violation.
	ErrDefaultBranchNotFound = errors.New("default branch not found")

	// ErrDuplicateBranchName indicates a branch name collision among the
	// workflow's active branches.
	ErrDuplicateBranchName = errors.New("branch name already exists")

	// ErrConcurrentModification indicates a compare-and-swap on a branch
	// head failed because the head moved since it was read.
	ErrConcurrentModification = errors.New("branch head changed concurrently")

	// ErrCrossWorkflowReference indicates a version and branch belong to
	// different workflows.
	ErrCrossWorkflowReference = errors.New("version belongs to a different workflow")
)

// VersionError wraps version-related errors with additional context.
type VersionError struct {
	Op        string // Operation being performed (e.g., "Create", "GetByID")
	VersionID string // Version ID if applicable
	Err       error  // Underlying error
}

func (e *VersionError) Error() string {
	return fmt.Sprintf("%s operation failed for version %s: %v", e.Op, e.VersionID, e.Err)
}

func (e *VersionError) Unwrap() error {
	return e.Err
}

func (e *VersionError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewVersionError creates a new version error with context.
func NewVersionError(op, versionID string, err error) *VersionError {
	return &VersionError{
		Op:        op,
		VersionID: versionID,
		Err:       err,
	}
}

// BranchError wraps branch-related errors with additional context.
type BranchError struct {
	Op         string // Operation being performed
	BranchID   string // Branch ID if applicable
	WorkflowID string // Workflow ID if applicable
	Err        error  // Underlying error
}

func (e *BranchError) Error() string {
	target := e.BranchID
	if target == "" && e.WorkflowID != "" {
		target = fmt.Sprintf("workflow %s", e.WorkflowID)
	}

	return fmt.Sprintf("%s operation failed for branch %s: %v", e.Op, target, e.Err)
}

func (e *BranchError) Unwrap() error {
	return e.Err
}

func (e *BranchError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewBranchError creates a new branch error with context.
func NewBranchError(op, branchID string, err error) *BranchError {
	return &BranchError{
		Op:       op,
		BranchID: branchID,
		Err:      err,
	}
}

// IsVersionNotFound checks if an error indicates a version was not found.
func IsVersionNotFound(err error) bool {
	return errors.Is(err, ErrVersionNotFound)
}

// IsBranchNotFound checks if an error indicates a branch was not found.
func IsBranchNotFound(err error) bool {
	return errors.Is(err, ErrBranchNotFound) || errors.Is(err, ErrDefaultBranchNotFound)
}

// IsDuplicateBranchName checks if an error indicates a branch name collision.
func IsDuplicateBranchName(err error) bool {
	return errors.Is(err, ErrDuplicateBranchName)
}

// IsConcurrentModification checks if an error indicates an optimistic-lock
// failure on a branch head.
func IsConcurrentModification(err error) bool {
	return errors.Is(err, ErrConcurrentModification)
}
