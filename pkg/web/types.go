// Package web provides HTTP request and response types for the versioning API.
package web

import (
	"encoding/json"
	"fmt"

	"github.com/vergohq/vergo/pkg/models"
)

// InitWorkflowRequest registers a workflow with its first spec snapshot.
type InitWorkflowRequest struct {
	Spec          map[string]any `json:"spec"           validate:"required"`
	ChangeSummary string         `json:"change_summary"`
}

// CreateVersionRequest saves a new version on a branch.
type CreateVersionRequest struct {
	BranchID        string         `json:"branch_id"         validate:"required"`
	Spec            map[string]any `json:"spec"              validate:"required"`
	ChangeSummary   string         `json:"change_summary"`
	ChangeType      string         `json:"change_type"       validate:"required,oneof=major minor patch"`
	ParentVersionID string         `json:"parent_version_id"`
	IsRelease       bool           `json:"is_release"`
}

// CreateBranchRequest forks a new branch at a base version.
type CreateBranchRequest struct {
	Name          string `json:"name"            validate:"required,min=1"`
	Description   string `json:"description"`
	IsProtected   bool   `json:"is_protected"`
	BaseVersionID string `json:"base_version_id" validate:"required"`
}

// TagVersionRequest appends a tag to a version.
type TagVersionRequest struct {
	Tag string `json:"tag" validate:"required,min=1"`
}

// AdvanceHeadRequest repoints a branch head.
type AdvanceHeadRequest struct {
	VersionID string `json:"version_id" validate:"required"`
}

// RollbackRequest rolls a branch back to an earlier version.
type RollbackRequest struct {
	TargetVersionID string `json:"target_version_id" validate:"required"`
}

// MergeRequest merges the source branch into the target branch.
type MergeRequest struct {
	TargetBranchID string `json:"target_branch_id" validate:"required"`
	Strategy       string `json:"strategy"         validate:"required,oneof=auto"`
}

// decodeSpec validates a raw spec document against the JSON schema and
// decodes it into the typed model. Schema violations are rejected here,
// at the boundary, before any store interaction.
func decodeSpec(document map[string]any) (*models.WorkflowSpec, error) {
	if err := models.ValidateSpecDocument(document); err != nil {
		return nil, err
	}

	payload, err := json.Marshal(document)
	if err != nil {
		return nil, fmt.Errorf("failed to encode spec document: %w", err)
	}

	var spec models.WorkflowSpec
	if err := json.Unmarshal(payload, &spec); err != nil {
		return nil, fmt.Errorf("failed to decode spec document: %w", err)
	}

	return &spec, nil
}
