// Package persistence provides the storage abstraction for workflow
// versions and branches.
package persistence

import (
	"context"

	"github.com/vergohq/vergo/pkg/models"
)

// Persistence bundles the repositories of one storage backend.
type Persistence interface {
	VersionRepository() VersionRepository
	BranchRepository() BranchRepository
	HealthCheck(ctx context.Context) error

	Close(ctx context.Context) error
}

// ListVersionsOptions filters and pages a version listing. BranchID empty
// means all branches of the workflow.
type ListVersionsOptions struct {
	BranchID string
	Limit    int
	Offset   int
}

// VersionListResult carries one page of versions, newest first by
// version number.
type VersionListResult struct {
	Versions    []*models.Version `json:"versions"`
	TotalCount  int64             `json:"total_count"`
	HasNextPage bool              `json:"has_next_page"`
}

// VersionRepository stores immutable version snapshots. The contract is
// append-only: there is deliberately no delete or spec-update operation,
// protecting audit integrity.
type VersionRepository interface {
	// Create persists the version and atomically assigns VersionNumber as
	// one greater than the workflow's current maximum. Concurrent creates
	// for the same workflow never produce duplicate numbers.
	Create(ctx context.Context, version *models.Version) error

	GetByID(ctx context.Context, id string) (*models.Version, error)

	// ListByWorkflow returns versions newest first by version number.
	ListByWorkflow(ctx context.Context, workflowID string, opts ListVersionsOptions) (*VersionListResult, error)

	// AppendTag adds a tag to a version. Tagging with an existing tag is a
	// no-op success.
	AppendTag(ctx context.Context, versionID, tag string) (*models.Version, error)
}

// BranchRepository stores the mutable branch pointers of a workflow.
type BranchRepository interface {
	Create(ctx context.Context, branch *models.Branch) error
	GetByID(ctx context.Context, id string) (*models.Branch, error)
	GetDefault(ctx context.Context, workflowID string) (*models.Branch, error)
	ListByWorkflow(ctx context.Context, workflowID string) ([]*models.Branch, error)

	// UpdateHead repoints the branch head if and only if the current head
	// still equals expectedHeadID. On mismatch it fails with
	// ErrConcurrentModification and leaves the branch untouched.
	UpdateHead(ctx context.Context, branchID, expectedHeadID, newHeadID string) (*models.Branch, error)

	UpdateStatus(ctx context.Context, branchID string, status models.BranchStatus) (*models.Branch, error)
}
