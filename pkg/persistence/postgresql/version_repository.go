package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/vergohq/vergo/pkg/models"
	"github.com/vergohq/vergo/pkg/persistence"
)

// VersionRepository handles version-related database operations.
type VersionRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewVersionRepository creates a new version repository.
func NewVersionRepository(db *sql.DB, logger *slog.Logger) *VersionRepository {
	return &VersionRepository{db: db, logger: logger}
}

const versionColumns = `
	id
  , workflow_id
  , branch_id
  , version
  , version_number
  , spec
  , change_summary
  , change_type
  , parent_version_id
  , created_by
  , created_at
  , tags
  , is_release
`

// Create inserts the version, assigning version_number from the
// workflow's current maximum inside a serializable read-then-insert.
// The UNIQUE (workflow_id, version_number) constraint backstops races:
// a concurrent save that would double-allocate a number fails instead
// of being silently retried.
func (r *VersionRepository) Create(ctx context.Context, version *models.Version) error {
	if version.CreatedAt.IsZero() {
		version.CreatedAt = time.Now().UTC()
	}

	specJSON, err := json.Marshal(version.Spec)
	if err != nil {
		return fmt.Errorf("failed to marshal spec: %w", err)
	}

	tagsJSON, err := json.Marshal(tagsOrEmpty(version.Tags))
	if err != nil {
		return fmt.Errorf("failed to marshal tags: %w", err)
	}

	query := `
		INSERT INTO versions (id, workflow_id, branch_id, version, version_number,
			spec, change_summary, change_type, parent_version_id, created_by, created_at, tags, is_release)
		VALUES ($1, $2, $3, $4,
			(SELECT COALESCE(MAX(version_number), 0) + 1 FROM versions WHERE workflow_id = $2),
			$5, $6, $7, NULLIF($8, ''), $9, $10, $11, $12)
		RETURNING version_number
	`

	err = r.db.QueryRowContext(ctx, query,
		version.ID,
		version.WorkflowID,
		version.BranchID,
		version.Version,
		specJSON,
		version.ChangeSummary,
		version.ChangeType,
		version.ParentVersionID,
		version.CreatedBy,
		version.CreatedAt,
		tagsJSON,
		version.IsRelease,
	).Scan(&version.VersionNumber)
	if err != nil {
		return fmt.Errorf("failed to insert version %s: %w", version.ID, err)
	}

	return nil
}

// GetByID returns a version by its ID.
func (r *VersionRepository) GetByID(ctx context.Context, id string) (*models.Version, error) {
	query := `SELECT ` + versionColumns + ` FROM versions WHERE id = $1`

	version, err := r.scanVersion(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewVersionError("GetByID", id, persistence.ErrVersionNotFound)
		}

		return nil, fmt.Errorf("failed to scan version: %w", err)
	}

	return version, nil
}

// ListByWorkflow returns versions newest first by version number.
func (r *VersionRepository) ListByWorkflow(ctx context.Context, workflowID string, opts persistence.ListVersionsOptions) (*persistence.VersionListResult, error) {
	if opts.Limit <= 0 || opts.Limit > 100 {
		opts.Limit = 50
	}

	query := `
		SELECT ` + versionColumns + `, COUNT(*) OVER() AS total_count
		FROM versions
		WHERE workflow_id = $1 AND ($2 = '' OR branch_id::text = $2)
		ORDER BY version_number DESC
		LIMIT $3 OFFSET $4
	`

	rows, err := r.db.QueryContext(ctx, query, workflowID, opts.BranchID, opts.Limit, opts.Offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query versions: %w", err)
	}

	defer func(ctx context.Context, r *VersionRepository) {
		err := rows.Close()
		if err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}(ctx, r)

	versions := make([]*models.Version, 0)

	var totalCount int64

	for rows.Next() {
		version, count, err := r.scanVersionWithCount(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan version: %w", err)
		}

		totalCount = count

		versions = append(versions, version)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating versions: %w", err)
	}

	return &persistence.VersionListResult{
		Versions:    versions,
		TotalCount:  totalCount,
		HasNextPage: int64(opts.Offset+len(versions)) < totalCount,
	}, nil
}

// AppendTag adds a tag unless already present. The JSONB update is
// conditional, so re-tagging is a no-op success.
func (r *VersionRepository) AppendTag(ctx context.Context, versionID, tag string) (*models.Version, error) {
	query := `
		UPDATE versions
		SET tags = tags || to_jsonb($2::text)
		WHERE id = $1 AND NOT tags @> to_jsonb($2::text)
	`

	_, err := r.db.ExecContext(ctx, query, versionID, tag)
	if err != nil {
		return nil, fmt.Errorf("failed to tag version %s: %w", versionID, err)
	}

	return r.GetByID(ctx, versionID)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *VersionRepository) scanVersion(row rowScanner) (*models.Version, error) {
	var (
		version  models.Version
		specJSON []byte
		tagsJSON []byte
		parentID sql.NullString
	)

	err := row.Scan(
		&version.ID,
		&version.WorkflowID,
		&version.BranchID,
		&version.Version,
		&version.VersionNumber,
		&specJSON,
		&version.ChangeSummary,
		&version.ChangeType,
		&parentID,
		&version.CreatedBy,
		&version.CreatedAt,
		&tagsJSON,
		&version.IsRelease,
	)
	if err != nil {
		return nil, err
	}

	return r.finishScan(&version, specJSON, tagsJSON, parentID)
}

func (r *VersionRepository) scanVersionWithCount(row rowScanner) (*models.Version, int64, error) {
	var (
		version    models.Version
		specJSON   []byte
		tagsJSON   []byte
		parentID   sql.NullString
		totalCount int64
	)

	err := row.Scan(
		&version.ID,
		&version.WorkflowID,
		&version.BranchID,
		&version.Version,
		&version.VersionNumber,
		&specJSON,
		&version.ChangeSummary,
		&version.ChangeType,
		&parentID,
		&version.CreatedBy,
		&version.CreatedAt,
		&tagsJSON,
		&version.IsRelease,
		&totalCount,
	)
	if err != nil {
		return nil, 0, err
	}

	scanned, err := r.finishScan(&version, specJSON, tagsJSON, parentID)

	return scanned, totalCount, err
}

func (r *VersionRepository) finishScan(version *models.Version, specJSON, tagsJSON []byte, parentID sql.NullString) (*models.Version, error) {
	if parentID.Valid {
		version.ParentVersionID = parentID.String
	}

	if err := json.Unmarshal(specJSON, &version.Spec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal spec: %w", err)
	}

	if err := json.Unmarshal(tagsJSON, &version.Tags); err != nil {
		return nil, fmt.Errorf("failed to unmarshal tags: %w", err)
	}

	return version, nil
}

func tagsOrEmpty(tags []string) []string {
	if tags == nil {
		return []string{}
	}

	return tags
}
