// Package services provides versioning, branching, and rollback/merge
// operations on top of the persistence layer.
package services

import (
	"errors"
	"fmt"

	"github.com/vergohq/vergo/pkg/models"
	"github.com/vergohq/vergo/pkg/persistence"
)

// Business Logic Errors - These indicate client errors (4xx responses).
var (
	// Validation Errors (400 Bad Request).
	ErrSpecRequired         = errors.New("workflow spec is required")
	ErrBranchNameRequired   = errors.New("branch name is required")
	ErrWorkflowIDRequired   = errors.New("workflow ID is required")
	ErrTagRequired          = errors.New("tag is required")
	ErrUnknownMergeStrategy = errors.New("unknown merge strategy")

	// Business Logic Conflicts (409 Conflict).
	ErrProtectedBranchViolation   = errors.New("operation not allowed on default or protected branch")
	ErrCrossWorkflowViolation     = errors.New("resource belongs to a different workflow")
	ErrNoCommonAncestor           = errors.New("branches share no common ancestor")
	ErrWorkflowAlreadyInitialized = errors.New("workflow already has a default branch")
	ErrBranchNotActive            = errors.New("branch is not active")
)

// ServiceError wraps service-level errors with additional context.
type ServiceError struct {
	Op      string // Operation name
	Code    string // Error code for API responses
	Message string // Human-readable message
	Err     error  // Underlying error
}

func (e *ServiceError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}

	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

func (e *ServiceError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// IsValidationError checks if an error is a validation error that should return HTTP 400.
func IsValidationError(err error) bool {
	return errors.Is(err, models.ErrInvalidChangeType) ||
		errors.Is(err, models.ErrDuplicateNodeID) ||
		errors.Is(err, models.ErrInvalidNodeType) ||
		errors.Is(err, models.ErrDanglingEdge) ||
		errors.Is(err, ErrSpecRequired) ||
		errors.Is(err, ErrBranchNameRequired) ||
		errors.Is(err, ErrWorkflowIDRequired) ||
		errors.Is(err, ErrTagRequired) ||
		errors.Is(err, ErrUnknownMergeStrategy)
}

// IsConflictError checks if an error is a business logic conflict that should return HTTP 409.
func IsConflictError(err error) bool {
	return errors.Is(err, ErrProtectedBranchViolation) ||
		errors.Is(err, ErrCrossWorkflowViolation) ||
		errors.Is(err, ErrNoCommonAncestor) ||
		errors.Is(err, ErrWorkflowAlreadyInitialized) ||
		errors.Is(err, ErrBranchNotActive) ||
		persistence.IsDuplicateBranchName(err) ||
		persistence.IsConcurrentModification(err)
}

// IsNotFoundError checks if an error refers to a missing version or branch.
func IsNotFoundError(err error) bool {
	return persistence.IsVersionNotFound(err) ||
		persistence.IsBranchNotFound(err)
}

// NewValidationError creates a new validation error with context.
func NewValidationError(op, code, message string, err error) *ServiceError {
	return &ServiceError{
		Op:      op,
		Code:    code,
		Message: message,
		Err:     err,
	}
}
