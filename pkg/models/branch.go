package models

import "time"

// BranchStatus represents the lifecycle state of a branch.
type BranchStatus string

const (
	BranchStatusActive   BranchStatus = "active"   // Head is mutable, accepts new versions
	BranchStatusMerged   BranchStatus = "merged"   // Merged into another branch, frozen
	BranchStatusArchived BranchStatus = "archived" // Retired without merging
)

// DefaultBranchName is the name given to the default branch created when
// a workflow's history is initialized.
const DefaultBranchName = "main"

// Branch is a named, mutable pointer into a workflow's version graph.
// Exactly one branch per workflow has IsDefault set; that branch can
// never be archived or merged away.
type Branch struct {
	ID            string       `json:"id"              validate:"required"`
	WorkflowID    string       `json:"workflow_id"     validate:"required"`
	Name          string       `json:"name"            validate:"required,min=1"`
	Description   string       `json:"description"`
	IsDefault     bool         `json:"is_default"`
	IsProtected   bool         `json:"is_protected"`
	BaseVersionID string       `json:"base_version_id"`
	HeadVersionID string       `json:"head_version_id"`
	Status        BranchStatus `json:"status"          validate:"required,oneof=active merged archived"`
	CreatedBy     string       `json:"created_by"`
	CreatedAt     time.Time    `json:"created_at"`
	UpdatedAt     time.Time    `json:"updated_at"`
}

// IsActive reports whether the branch still accepts new versions.
func (b *Branch) IsActive() bool {
	return b.Status == BranchStatusActive
}
