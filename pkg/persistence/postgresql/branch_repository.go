package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/vergohq/vergo/pkg/models"
	"github.com/vergohq/vergo/pkg/persistence"
)

// BranchRepository handles branch-related database operations.
type BranchRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewBranchRepository creates a new branch repository.
func NewBranchRepository(db *sql.DB, logger *slog.Logger) *BranchRepository {
	return &BranchRepository{db: db, logger: logger}
}

const branchColumns = `
	id
  , workflow_id
  , name
  , description
  , is_default
  , is_protected
  , base_version_id
  , head_version_id
  , status
  , created_by
  , created_at
  , updated_at
`

// Create inserts a new branch. The partial unique index on
// (workflow_id, name) WHERE status = 'active' enforces name uniqueness
// among active branches; violations map to ErrDuplicateBranchName.
func (r *BranchRepository) Create(ctx context.Context, branch *models.Branch) error {
	now := time.Now().UTC()
	if branch.CreatedAt.IsZero() {
		branch.CreatedAt = now
	}

	branch.UpdatedAt = now

	query := `
		INSERT INTO branches (id, workflow_id, name, description, is_default, is_protected,
			base_version_id, head_version_id, status, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, '')::uuid, NULLIF($8, '')::uuid, $9, $10, $11, $12)
	`

	_, err := r.db.ExecContext(ctx, query,
		branch.ID,
		branch.WorkflowID,
		branch.Name,
		branch.Description,
		branch.IsDefault,
		branch.IsProtected,
		branch.BaseVersionID,
		branch.HeadVersionID,
		branch.Status,
		branch.CreatedBy,
		branch.CreatedAt,
		branch.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err, "idx_branches_active_name") {
			return persistence.NewBranchError("Create", branch.ID, persistence.ErrDuplicateBranchName)
		}

		return fmt.Errorf("failed to insert branch %s: %w", branch.ID, err)
	}

	return nil
}

// GetByID returns a branch by its ID.
func (r *BranchRepository) GetByID(ctx context.Context, id string) (*models.Branch, error) {
	query := `SELECT ` + branchColumns + ` FROM branches WHERE id = $1`

	branch, err := r.scanBranch(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewBranchError("GetByID", id, persistence.ErrBranchNotFound)
		}

		return nil, fmt.Errorf("failed to scan branch: %w", err)
	}

	return branch, nil
}

// GetDefault returns the workflow's single default branch.
func (r *BranchRepository) GetDefault(ctx context.Context, workflowID string) (*models.Branch, error) {
	query := `SELECT ` + branchColumns + ` FROM branches WHERE workflow_id = $1 AND is_default`

	branch, err := r.scanBranch(r.db.QueryRowContext(ctx, query, workflowID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &persistence.BranchError{
				Op:         "GetDefault",
				WorkflowID: workflowID,
				Err:        persistence.ErrDefaultBranchNotFound,
			}
		}

		return nil, fmt.Errorf("failed to scan branch: %w", err)
	}

	return branch, nil
}

// ListByWorkflow returns the workflow's branches, default first.
func (r *BranchRepository) ListByWorkflow(ctx context.Context, workflowID string) ([]*models.Branch, error) {
	query := `
		SELECT ` + branchColumns + `
		FROM branches
		WHERE workflow_id = $1
		ORDER BY is_default DESC, created_at ASC
	`

	rows, err := r.db.QueryContext(ctx, query, workflowID)
	if err != nil {
		return nil, fmt.Errorf("failed to query branches: %w", err)
	}

	defer func(ctx context.Context, r *BranchRepository) {
		err := rows.Close()
		if err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}(ctx, r)

	branches := make([]*models.Branch, 0)

	for rows.Next() {
		branch, err := r.scanBranch(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan branch: %w", err)
		}

		branches = append(branches, branch)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating branches: %w", err)
	}

	return branches, nil
}

// UpdateHead performs a compare-and-swap on the branch head. The WHERE
// clause carries the expected head; zero rows updated means either the
// branch is gone or the head moved.
func (r *BranchRepository) UpdateHead(ctx context.Context, branchID, expectedHeadID, newHeadID string) (*models.Branch, error) {
	query := `
		UPDATE branches
		SET head_version_id = $3, updated_at = $4
		WHERE id = $1 AND head_version_id IS NOT DISTINCT FROM NULLIF($2, '')::uuid
	`

	result, err := r.db.ExecContext(ctx, query, branchID, expectedHeadID, newHeadID, time.Now().UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to update branch head %s: %w", branchID, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to read update result: %w", err)
	}

	if affected == 0 {
		// Distinguish a vanished branch from a moved head.
		if _, getErr := r.GetByID(ctx, branchID); getErr != nil {
			return nil, getErr
		}

		return nil, persistence.NewBranchError("UpdateHead", branchID, persistence.ErrConcurrentModification)
	}

	return r.GetByID(ctx, branchID)
}

// UpdateStatus sets the branch lifecycle status.
func (r *BranchRepository) UpdateStatus(ctx context.Context, branchID string, status models.BranchStatus) (*models.Branch, error) {
	query := `UPDATE branches SET status = $2, updated_at = $3 WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, branchID, status, time.Now().UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to update branch status %s: %w", branchID, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to read update result: %w", err)
	}

	if affected == 0 {
		return nil, persistence.NewBranchError("UpdateStatus", branchID, persistence.ErrBranchNotFound)
	}

	return r.GetByID(ctx, branchID)
}

func (r *BranchRepository) scanBranch(row rowScanner) (*models.Branch, error) {
	var (
		branch        models.Branch
		baseVersionID sql.NullString
		headVersionID sql.NullString
	)

	err := row.Scan(
		&branch.ID,
		&branch.WorkflowID,
		&branch.Name,
		&branch.Description,
		&branch.IsDefault,
		&branch.IsProtected,
		&baseVersionID,
		&headVersionID,
		&branch.Status,
		&branch.CreatedBy,
		&branch.CreatedAt,
		&branch.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if baseVersionID.Valid {
		branch.BaseVersionID = baseVersionID.String
	}

	if headVersionID.Valid {
		branch.HeadVersionID = headVersionID.String
	}

	return &branch, nil
}

func isUniqueViolation(err error, constraint string) bool {
	return err != nil && strings.Contains(err.Error(), constraint)
}
