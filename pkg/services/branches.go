package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/vergohq/vergo/pkg/eventbus"
	"github.com/vergohq/vergo/pkg/events"
	"github.com/vergohq/vergo/pkg/identity"
	"github.com/vergohq/vergo/pkg/locks"
	"github.com/vergohq/vergo/pkg/models"
	"github.com/vergohq/vergo/pkg/persistence"
)

// Branches manages the named mutable pointers into a workflow's version
// graph. Exactly one default branch exists per workflow at all times.
type Branches struct {
	persistence persistence.Persistence
	identity    identity.Identity
	publisher   eventbus.EventPublisher
	locker      locks.Locker
	logger      *slog.Logger
}

// NewBranches creates a new branch service.
func NewBranches(p persistence.Persistence, id identity.Identity, publisher eventbus.EventPublisher, locker locks.Locker, logger *slog.Logger) *Branches {
	return &Branches{
		persistence: p,
		identity:    id,
		publisher:   publisher,
		locker:      locker,
		logger:      logger.With("module", "branches_service"),
	}
}

// InitWorkflow registers a brand-new workflow in the version store:
// one default branch named "main" plus its first version, fixed at
// 1.0.0. The "first branch is default" rule is enforced here, not left
// to convention.
func (s *Branches) InitWorkflow(ctx context.Context, workflowID string, spec *models.WorkflowSpec, changeSummary string) (*models.Branch, *models.Version, error) {
	if workflowID == "" {
		return nil, nil, NewValidationError("InitWorkflow", "workflow_id_required", "workflow ID is required", ErrWorkflowIDRequired)
	}

	if spec == nil {
		return nil, nil, NewValidationError("InitWorkflow", "spec_required", "workflow spec is required", ErrSpecRequired)
	}

	if err := spec.Validate(); err != nil {
		return nil, nil, NewValidationError("InitWorkflow", "invalid_spec", err.Error(), err)
	}

	release, err := s.locker.Acquire(ctx, workflowID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to acquire workflow lock: %w", err)
	}

	defer release()

	_, err = s.persistence.BranchRepository().GetDefault(ctx, workflowID)
	if err == nil {
		return nil, nil, &ServiceError{Op: "InitWorkflow", Code: "already_initialized", Err: ErrWorkflowAlreadyInitialized}
	}

	if !persistence.IsBranchNotFound(err) {
		return nil, nil, fmt.Errorf("failed to check default branch: %w", err)
	}

	user, err := s.identity.CurrentUser(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to resolve current user: %w", err)
	}

	branch := &models.Branch{
		ID:         uuid.New().String(),
		WorkflowID: workflowID,
		Name:       models.DefaultBranchName,
		IsDefault:  true,
		Status:     models.BranchStatusActive,
		CreatedBy:  user.Email,
	}

	err = s.persistence.BranchRepository().Create(ctx, branch)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create default branch: %w", err)
	}

	version := &models.Version{
		ID:            uuid.New().String(),
		WorkflowID:    workflowID,
		BranchID:      branch.ID,
		Version:       models.FirstSemver,
		Spec:          spec.Clone(),
		ChangeSummary: changeSummary,
		ChangeType:    models.ChangeTypeMajor,
		CreatedBy:     user.Email,
	}

	err = s.persistence.VersionRepository().Create(ctx, version)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create first version: %w", err)
	}

	branch, err = s.persistence.BranchRepository().UpdateHead(ctx, branch.ID, "", version.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to set branch head: %w", err)
	}

	s.publishBranchCreated(ctx, branch)
	s.publishVersionCreated(ctx, version)

	return branch, version, nil
}

// CreateBranchParams carries the inputs for a new branch.
type CreateBranchParams struct {
	WorkflowID    string
	Name          string
	Description   string
	IsProtected   bool
	BaseVersionID string
}

// CreateBranch forks a branch at the given base version. The name must
// be unique (case-sensitive) among the workflow's active branches. New
// branches are never default.
func (s *Branches) CreateBranch(ctx context.Context, params CreateBranchParams) (*models.Branch, error) {
	if params.WorkflowID == "" {
		return nil, NewValidationError("CreateBranch", "workflow_id_required", "workflow ID is required", ErrWorkflowIDRequired)
	}

	if params.Name == "" {
		return nil, NewValidationError("CreateBranch", "name_required", "branch name is required", ErrBranchNameRequired)
	}

	base, err := s.persistence.VersionRepository().GetByID(ctx, params.BaseVersionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load base version: %w", err)
	}

	if base.WorkflowID != params.WorkflowID {
		return nil, &ServiceError{Op: "CreateBranch", Code: "cross_workflow", Err: ErrCrossWorkflowViolation}
	}

	user, err := s.identity.CurrentUser(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve current user: %w", err)
	}

	branch := &models.Branch{
		ID:            uuid.New().String(),
		WorkflowID:    params.WorkflowID,
		Name:          params.Name,
		Description:   params.Description,
		IsProtected:   params.IsProtected,
		BaseVersionID: base.ID,
		HeadVersionID: base.ID,
		Status:        models.BranchStatusActive,
		CreatedBy:     user.Email,
	}

	err = s.persistence.BranchRepository().Create(ctx, branch)
	if err != nil {
		return nil, err
	}

	s.publishBranchCreated(ctx, branch)

	return branch, nil
}

// ArchiveBranch retires a branch. The default branch can never be
// archived.
func (s *Branches) ArchiveBranch(ctx context.Context, branchID string) (*models.Branch, error) {
	branch, err := s.persistence.BranchRepository().GetByID(ctx, branchID)
	if err != nil {
		return nil, err
	}

	if branch.IsDefault {
		return nil, &ServiceError{
			Op:      "ArchiveBranch",
			Code:    "protected_branch",
			Message: "the default branch cannot be archived",
			Err:     ErrProtectedBranchViolation,
		}
	}

	branch, err = s.persistence.BranchRepository().UpdateStatus(ctx, branchID, models.BranchStatusArchived)
	if err != nil {
		return nil, fmt.Errorf("failed to archive branch: %w", err)
	}

	s.publishBranchArchived(ctx, branch)

	return branch, nil
}

// AdvanceHead repoints a branch head to a newer version of the same
// workflow, using compare-and-swap against the head read here.
func (s *Branches) AdvanceHead(ctx context.Context, branchID, newVersionID string) (*models.Branch, error) {
	branch, err := s.persistence.BranchRepository().GetByID(ctx, branchID)
	if err != nil {
		return nil, err
	}

	version, err := s.persistence.VersionRepository().GetByID(ctx, newVersionID)
	if err != nil {
		return nil, err
	}

	if version.WorkflowID != branch.WorkflowID {
		return nil, &ServiceError{Op: "AdvanceHead", Code: "cross_workflow", Err: ErrCrossWorkflowViolation}
	}

	return s.persistence.BranchRepository().UpdateHead(ctx, branchID, branch.HeadVersionID, newVersionID)
}

// GetBranch returns a branch by ID.
func (s *Branches) GetBranch(ctx context.Context, branchID string) (*models.Branch, error) {
	return s.persistence.BranchRepository().GetByID(ctx, branchID)
}

// GetDefaultBranch returns the workflow's default branch. Its absence
// is a data-integrity violation surfaced as not found.
func (s *Branches) GetDefaultBranch(ctx context.Context, workflowID string) (*models.Branch, error) {
	return s.persistence.BranchRepository().GetDefault(ctx, workflowID)
}

// ListBranches returns the workflow's branches, default first.
func (s *Branches) ListBranches(ctx context.Context, workflowID string) ([]*models.Branch, error) {
	if workflowID == "" {
		return nil, NewValidationError("ListBranches", "workflow_id_required", "workflow ID is required", ErrWorkflowIDRequired)
	}

	return s.persistence.BranchRepository().ListByWorkflow(ctx, workflowID)
}

func (s *Branches) publishBranchCreated(ctx context.Context, branch *models.Branch) {
	if s.publisher == nil {
		return
	}

	event := events.BranchCreated{
		BaseEvent:     events.NewBaseEvent(events.BranchCreatedEvent, branch.WorkflowID),
		BranchID:      branch.ID,
		Name:          branch.Name,
		BaseVersionID: branch.BaseVersionID,
	}
	event.Actor = branch.CreatedBy

	err := s.publisher.Publish(ctx, branch.WorkflowID, event)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to publish branch created event", "branch_id", branch.ID, "error", err)
	}
}

func (s *Branches) publishVersionCreated(ctx context.Context, version *models.Version) {
	if s.publisher == nil {
		return
	}

	event := events.VersionCreated{
		BaseEvent:     events.NewBaseEvent(events.VersionCreatedEvent, version.WorkflowID),
		VersionID:     version.ID,
		BranchID:      version.BranchID,
		Version:       version.Version,
		VersionNumber: version.VersionNumber,
		ChangeType:    string(version.ChangeType),
		ChangeSummary: version.ChangeSummary,
	}
	event.Actor = version.CreatedBy

	err := s.publisher.Publish(ctx, version.WorkflowID, event)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to publish version created event", "version_id", version.ID, "error", err)
	}
}

func (s *Branches) publishBranchArchived(ctx context.Context, branch *models.Branch) {
	if s.publisher == nil {
		return
	}

	event := events.BranchArchived{
		BaseEvent: events.NewBaseEvent(events.BranchArchivedEvent, branch.WorkflowID),
		BranchID:  branch.ID,
		Name:      branch.Name,
	}

	err := s.publisher.Publish(ctx, branch.WorkflowID, event)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to publish branch archived event", "branch_id", branch.ID, "error", err)
	}
}
