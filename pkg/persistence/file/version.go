package file

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/vergohq/vergo/pkg/models"
	"github.com/vergohq/vergo/pkg/persistence"
)

const versionsDir = "versions"

// VersionRepository handles version-related file operations. Versions are
// append-only: there is no delete and no spec rewrite.
type VersionRepository struct {
	root string
	mu   *sync.Mutex // Shared store lock; guards version number allocation
}

// NewVersionRepository creates a new version repository.
func NewVersionRepository(root string, mu *sync.Mutex) *VersionRepository {
	return &VersionRepository{root: root, mu: mu}
}

// Create persists the version, assigning VersionNumber as one greater
// than the workflow's current maximum under the store lock.
func (vr *VersionRepository) Create(ctx context.Context, version *models.Version) error {
	vr.mu.Lock()
	defer vr.mu.Unlock()

	if err := os.MkdirAll(path.Join(vr.root, versionsDir), 0750); err != nil {
		return fmt.Errorf("failed to create versions directory: %w", err)
	}

	existing, err := vr.loadAll(ctx)
	if err != nil {
		return err
	}

	maxNumber := 0

	for _, other := range existing {
		if other.WorkflowID == version.WorkflowID && other.VersionNumber > maxNumber {
			maxNumber = other.VersionNumber
		}
	}

	version.VersionNumber = maxNumber + 1

	if version.CreatedAt.IsZero() {
		version.CreatedAt = time.Now().UTC()
	}

	return vr.write(version)
}

// GetByID retrieves a version by its ID from the file system.
func (vr *VersionRepository) GetByID(_ context.Context, versionID string) (*models.Version, error) {
	filePath := filepath.Clean(path.Join(vr.root, versionsDir, versionID+".json"))

	body, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, persistence.NewVersionError("GetByID", versionID, persistence.ErrVersionNotFound)
		}

		return nil, fmt.Errorf("failed to fetch version %s: %w", versionID, err)
	}

	var version models.Version

	err = json.Unmarshal(body, &version)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal version %s: %w", versionID, err)
	}

	return &version, nil
}

// ListByWorkflow returns the workflow's versions newest first by version number.
func (vr *VersionRepository) ListByWorkflow(ctx context.Context, workflowID string, opts persistence.ListVersionsOptions) (*persistence.VersionListResult, error) {
	if opts.Limit <= 0 || opts.Limit > 100 {
		opts.Limit = 50
	}

	all, err := vr.loadAll(ctx)
	if err != nil {
		return nil, err
	}

	filtered := make([]*models.Version, 0, len(all))

	for _, version := range all {
		if version.WorkflowID != workflowID {
			continue
		}

		if opts.BranchID != "" && version.BranchID != opts.BranchID {
			continue
		}

		filtered = append(filtered, version)
	}

	sort.Slice(filtered, func(i, j int) bool {
		return filtered[i].VersionNumber > filtered[j].VersionNumber
	})

	totalCount := int64(len(filtered))
	startIdx := opts.Offset

	if startIdx >= len(filtered) {
		return &persistence.VersionListResult{
			Versions:    make([]*models.Version, 0),
			TotalCount:  totalCount,
			HasNextPage: false,
		}, nil
	}

	endIdx := startIdx + opts.Limit
	if endIdx > len(filtered) {
		endIdx = len(filtered)
	}

	return &persistence.VersionListResult{
		Versions:    filtered[startIdx:endIdx],
		TotalCount:  totalCount,
		HasNextPage: endIdx < len(filtered),
	}, nil
}

// AppendTag adds a tag to a version. Re-tagging with an existing tag is a
// no-op success, the only locally-recovered condition in the store.
func (vr *VersionRepository) AppendTag(ctx context.Context, versionID, tag string) (*models.Version, error) {
	vr.mu.Lock()
	defer vr.mu.Unlock()

	version, err := vr.GetByID(ctx, versionID)
	if err != nil {
		return nil, err
	}

	if version.HasTag(tag) {
		return version, nil
	}

	version.Tags = append(version.Tags, tag)

	if err := vr.write(version); err != nil {
		return nil, err
	}

	return version, nil
}

func (vr *VersionRepository) write(version *models.Version) error {
	data, err := json.MarshalIndent(version, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal version %s: %w", version.ID, err)
	}

	filePath := path.Join(vr.root, versionsDir, version.ID+".json")

	return os.WriteFile(filePath, data, 0600)
}

func (vr *VersionRepository) loadAll(ctx context.Context) ([]*models.Version, error) {
	root := os.DirFS(path.Join(vr.root, versionsDir))

	jsonFiles, err := fs.Glob(root, "*.json")
	if err != nil {
		return nil, fmt.Errorf("failed to list version files: %w", err)
	}

	versions := make([]*models.Version, 0, len(jsonFiles))

	for _, file := range jsonFiles {
		versionID := file[:len(file)-5] // Remove .json extension

		version, err := vr.GetByID(ctx, versionID)
		if err != nil {
			if persistence.IsVersionNotFound(err) {
				continue
			}

			return nil, fmt.Errorf("failed to load version %s: %w", versionID, err)
		}

		versions = append(versions, version)
	}

	return versions, nil
}
