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

const branchesDir = "branches"

// BranchRepository handles branch-related file operations.
type BranchRepository struct {
	root string
	mu   *sync.Mutex // Shared store lock; guards name checks and head swaps
}

// NewBranchRepository creates a new branch repository.
func NewBranchRepository(root string, mu *sync.Mutex) *BranchRepository {
	return &BranchRepository{root: root, mu: mu}
}

// Create persists a new branch, rejecting name collisions among the
// workflow's active branches.
func (br *BranchRepository) Create(ctx context.Context, branch *models.Branch) error {
	br.mu.Lock()
	defer br.mu.Unlock()

	if err := os.MkdirAll(path.Join(br.root, branchesDir), 0750); err != nil {
		return fmt.Errorf("failed to create branches directory: %w", err)
	}

	existing, err := br.loadAll(ctx)
	if err != nil {
		return err
	}

	for _, other := range existing {
		if other.WorkflowID == branch.WorkflowID && other.Name == branch.Name && other.IsActive() {
			return persistence.NewBranchError("Create", branch.ID, persistence.ErrDuplicateBranchName)
		}
	}

	now := time.Now().UTC()
	if branch.CreatedAt.IsZero() {
		branch.CreatedAt = now
	}

	branch.UpdatedAt = now

	return br.write(branch)
}

// GetByID retrieves a branch by its ID from the file system.
func (br *BranchRepository) GetByID(_ context.Context, branchID string) (*models.Branch, error) {
	filePath := filepath.Clean(path.Join(br.root, branchesDir, branchID+".json"))

	body, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, persistence.NewBranchError("GetByID", branchID, persistence.ErrBranchNotFound)
		}

		return nil, fmt.Errorf("failed to fetch branch %s: %w", branchID, err)
	}

	var branch models.Branch

	err = json.Unmarshal(body, &branch)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal branch %s: %w", branchID, err)
	}

	return &branch, nil
}

// GetDefault returns the workflow's default branch. A missing default is
// a data-integrity violation, reported as ErrDefaultBranchNotFound.
func (br *BranchRepository) GetDefault(ctx context.Context, workflowID string) (*models.Branch, error) {
	branches, err := br.ListByWorkflow(ctx, workflowID)
	if err != nil {
		return nil, err
	}

	for _, branch := range branches {
		if branch.IsDefault {
			return branch, nil
		}
	}

	return nil, &persistence.BranchError{
		Op:         "GetDefault",
		WorkflowID: workflowID,
		Err:        persistence.ErrDefaultBranchNotFound,
	}
}

// ListByWorkflow returns the workflow's branches, default first, then by
// creation time.
func (br *BranchRepository) ListByWorkflow(ctx context.Context, workflowID string) ([]*models.Branch, error) {
	all, err := br.loadAll(ctx)
	if err != nil {
		return nil, err
	}

	branches := make([]*models.Branch, 0, len(all))

	for _, branch := range all {
		if branch.WorkflowID == workflowID {
			branches = append(branches, branch)
		}
	}

	sort.Slice(branches, func(i, j int) bool {
		if branches[i].IsDefault != branches[j].IsDefault {
			return branches[i].IsDefault
		}

		return branches[i].CreatedAt.Before(branches[j].CreatedAt)
	})

	return branches, nil
}

// UpdateHead repoints the branch head with compare-and-swap semantics.
func (br *BranchRepository) UpdateHead(ctx context.Context, branchID, expectedHeadID, newHeadID string) (*models.Branch, error) {
	br.mu.Lock()
	defer br.mu.Unlock()

	branch, err := br.GetByID(ctx, branchID)
	if err != nil {
		return nil, err
	}

	if branch.HeadVersionID != expectedHeadID {
		return nil, persistence.NewBranchError("UpdateHead", branchID, persistence.ErrConcurrentModification)
	}

	branch.HeadVersionID = newHeadID
	branch.UpdatedAt = time.Now().UTC()

	if err := br.write(branch); err != nil {
		return nil, err
	}

	return branch, nil
}

// UpdateStatus sets the branch lifecycle status.
func (br *BranchRepository) UpdateStatus(ctx context.Context, branchID string, status models.BranchStatus) (*models.Branch, error) {
	br.mu.Lock()
	defer br.mu.Unlock()

	branch, err := br.GetByID(ctx, branchID)
	if err != nil {
		return nil, err
	}

	branch.Status = status
	branch.UpdatedAt = time.Now().UTC()

	if err := br.write(branch); err != nil {
		return nil, err
	}

	return branch, nil
}

func (br *BranchRepository) write(branch *models.Branch) error {
	data, err := json.MarshalIndent(branch, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal branch %s: %w", branch.ID, err)
	}

	filePath := path.Join(br.root, branchesDir, branch.ID+".json")

	return os.WriteFile(filePath, data, 0600)
}

func (br *BranchRepository) loadAll(ctx context.Context) ([]*models.Branch, error) {
	root := os.DirFS(path.Join(br.root, branchesDir))

	jsonFiles, err := fs.Glob(root, "*.json")
	if err != nil {
		return nil, fmt.Errorf("failed to list branch files: %w", err)
	}

	branches := make([]*models.Branch, 0, len(jsonFiles))

	for _, file := range jsonFiles {
		branchID := file[:len(file)-5] // Remove .json extension

		branch, err := br.GetByID(ctx, branchID)
		if err != nil {
			if persistence.IsBranchNotFound(err) {
				continue
			}

			return nil, fmt.Errorf("failed to load branch %s: %w", branchID, err)
		}

		branches = append(branches, branch)
	}

	return branches, nil
}
