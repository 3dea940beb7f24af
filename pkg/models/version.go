package models

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ChangeType is the kind of semantic version bump a save represents.
type ChangeType string

const (
	ChangeTypeMajor ChangeType = "major"
	ChangeTypeMinor ChangeType = "minor"
	ChangeTypePatch ChangeType = "patch"
)

// ErrInvalidChangeType indicates a change type outside major/minor/patch.
// A missing change type is a caller bug to surface, never defaulted.
var ErrInvalidChangeType = errors.New("invalid change type")

// IsValid reports whether the change type is one of the three bump kinds.
func (c ChangeType) IsValid() bool {
	return c == ChangeTypeMajor || c == ChangeTypeMinor || c == ChangeTypePatch
}

// FirstSemver is the version string assigned to a workflow's first version.
const FirstSemver = "1.0.0"

// Version is an immutable snapshot of a workflow spec plus provenance.
// Once created it is never mutated, except to append tags.
type Version struct {
	ID              string        `json:"id"                          validate:"required"`
	WorkflowID      string        `json:"workflow_id"                 validate:"required"`
	BranchID        string        `json:"branch_id"                   validate:"required"`
	Version         string        `json:"version"                     validate:"required"`
	VersionNumber   int           `json:"version_number"              validate:"min=1"`
	Spec            *WorkflowSpec `json:"spec"                        validate:"required"`
	ChangeSummary   string        `json:"change_summary"`
	ChangeType      ChangeType    `json:"change_type"                 validate:"required,oneof=major minor patch"`
	ParentVersionID string        `json:"parent_version_id,omitempty"`
	CreatedBy       string        `json:"created_by"`
	CreatedAt       time.Time     `json:"created_at"`
	Tags            []string      `json:"tags,omitempty"`
	IsRelease       bool          `json:"is_release"`
}

// HasTag reports whether the version already carries the tag.
func (v *Version) HasTag(tag string) bool {
	for _, existing := range v.Tags {
		if existing == tag {
			return true
		}
	}

	return false
}

// NextSemver increments a parent semver string according to the change
// type: major bumps X and zeroes Y.Z, minor bumps Y and zeroes Z, patch
// bumps Z.
func NextSemver(parent string, changeType ChangeType) (string, error) {
	if !changeType.IsValid() {
		return "", fmt.Errorf("%q: %w", changeType, ErrInvalidChangeType)
	}

	major, minor, patch, err := parseSemver(parent)
	if err != nil {
		return "", err
	}

	switch changeType {
	case ChangeTypeMajor:
		major, minor, patch = major+1, 0, 0
	case ChangeTypeMinor:
		minor, patch = minor+1, 0
	case ChangeTypePatch:
		patch++
	}

	return fmt.Sprintf("%d.%d.%d", major, minor, patch), nil
}

func parseSemver(version string) (int, int, int, error) {
	parts := strings.Split(version, ".")
	if len(parts) != 3 {
		return 0, 0, 0, fmt.Errorf("malformed semver %q", version)
	}

	numbers := make([]int, 3)

	for i, part := range parts {
		number, err := strconv.Atoi(part)
		if err != nil || number < 0 {
			return 0, 0, 0, fmt.Errorf("malformed semver %q", version)
		}

		numbers[i] = number
	}

	return numbers[0], numbers[1], numbers[2], nil
}
