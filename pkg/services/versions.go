package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/vergohq/vergo/pkg/eventbus"
	"github.com/vergohq/vergo/pkg/events"
	"github.com/vergohq/vergo/pkg/identity"
	"github.com/vergohq/vergo/pkg/models"
	"github.com/vergohq/vergo/pkg/persistence"
)

// Versions implements the version store contract: append-only snapshot
// creation with semver bumping, listing, and idempotent tagging.
type Versions struct {
	persistence persistence.Persistence
	identity    identity.Identity
	publisher   eventbus.EventPublisher
	logger      *slog.Logger
}

// NewVersions creates a new version service.
func NewVersions(p persistence.Persistence, id identity.Identity, publisher eventbus.EventPublisher, logger *slog.Logger) *Versions {
	return &Versions{
		persistence: p,
		identity:    id,
		publisher:   publisher,
		logger:      logger.With("module", "versions_service"),
	}
}

// CreateVersionParams carries the inputs for a new version snapshot.
type CreateVersionParams struct {
	WorkflowID      string
	BranchID        string
	Spec            *models.WorkflowSpec
	ChangeSummary   string
	ChangeType      models.ChangeType
	ParentVersionID string
	IsRelease       bool
}

// CreateVersion persists a new immutable snapshot. The semver string is
// derived from the parent according to the change type; a workflow's
// first version (no parent) is fixed at 1.0.0. A missing or unknown
// change type fails, never defaults.
func (s *Versions) CreateVersion(ctx context.Context, params CreateVersionParams) (*models.Version, error) {
	if params.WorkflowID == "" {
		return nil, NewValidationError("CreateVersion", "workflow_id_required", "workflow ID is required", ErrWorkflowIDRequired)
	}

	if !params.ChangeType.IsValid() {
		return nil, NewValidationError("CreateVersion", "invalid_change_type",
			fmt.Sprintf("change type %q is not one of major, minor, patch", params.ChangeType),
			models.ErrInvalidChangeType)
	}

	if params.Spec == nil {
		return nil, NewValidationError("CreateVersion", "spec_required", "workflow spec is required", ErrSpecRequired)
	}

	if err := params.Spec.Validate(); err != nil {
		return nil, NewValidationError("CreateVersion", "invalid_spec", err.Error(), err)
	}

	semver := models.FirstSemver

	if params.ParentVersionID != "" {
		parent, err := s.persistence.VersionRepository().GetByID(ctx, params.ParentVersionID)
		if err != nil {
			return nil, fmt.Errorf("failed to load parent version: %w", err)
		}

		if parent.WorkflowID != params.WorkflowID {
			return nil, &ServiceError{Op: "CreateVersion", Code: "cross_workflow", Err: ErrCrossWorkflowViolation}
		}

		semver, err = models.NextSemver(parent.Version, params.ChangeType)
		if err != nil {
			return nil, fmt.Errorf("failed to compute next version: %w", err)
		}
	}

	user, err := s.identity.CurrentUser(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve current user: %w", err)
	}

	version := &models.Version{
		ID:              uuid.New().String(),
		WorkflowID:      params.WorkflowID,
		BranchID:        params.BranchID,
		Version:         semver,
		Spec:            params.Spec.Clone(),
		ChangeSummary:   params.ChangeSummary,
		ChangeType:      params.ChangeType,
		ParentVersionID: params.ParentVersionID,
		CreatedBy:       user.Email,
		IsRelease:       params.IsRelease,
	}

	err = s.persistence.VersionRepository().Create(ctx, version)
	if err != nil {
		return nil, fmt.Errorf("failed to create version: %w", err)
	}

	s.publishVersionCreated(ctx, version)

	return version, nil
}

// GetVersion returns a version by ID.
func (s *Versions) GetVersion(ctx context.Context, versionID string) (*models.Version, error) {
	return s.persistence.VersionRepository().GetByID(ctx, versionID)
}

// ListVersions returns the workflow's versions newest first, optionally
// filtered to one branch.
func (s *Versions) ListVersions(ctx context.Context, workflowID string, opts persistence.ListVersionsOptions) (*persistence.VersionListResult, error) {
	if workflowID == "" {
		return nil, NewValidationError("ListVersions", "workflow_id_required", "workflow ID is required", ErrWorkflowIDRequired)
	}

	return s.persistence.VersionRepository().ListByWorkflow(ctx, workflowID, opts)
}

// TagVersion appends a tag to a version. Re-tagging with an existing
// tag is a no-op success.
func (s *Versions) TagVersion(ctx context.Context, versionID, tag string) (*models.Version, error) {
	if tag == "" {
		return nil, NewValidationError("TagVersion", "tag_required", "tag is required", ErrTagRequired)
	}

	version, err := s.persistence.VersionRepository().GetByID(ctx, versionID)
	if err != nil {
		return nil, err
	}

	alreadyTagged := version.HasTag(tag)

	version, err = s.persistence.VersionRepository().AppendTag(ctx, versionID, tag)
	if err != nil {
		return nil, fmt.Errorf("failed to tag version: %w", err)
	}

	if !alreadyTagged {
		s.publishVersionTagged(ctx, version, tag)
	}

	return version, nil
}

func (s *Versions) publishVersionCreated(ctx context.Context, version *models.Version) {
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

func (s *Versions) publishVersionTagged(ctx context.Context, version *models.Version, tag string) {
	if s.publisher == nil {
		return
	}

	event := events.VersionTagged{
		BaseEvent: events.NewBaseEvent(events.VersionTaggedEvent, version.WorkflowID),
		VersionID: version.ID,
		Tag:       tag,
	}

	err := s.publisher.Publish(ctx, version.WorkflowID, event)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to publish version tagged event", "version_id", version.ID, "error", err)
	}
}
