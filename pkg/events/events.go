// Package events defines audit event types for version and branch
// lifecycle notifications.
package events

import (
	"time"

	"github.com/google/uuid"
)

type EventType string

// Topic is the stream all versioning audit events are published to.
const Topic = "vergo.events"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	// Version lifecycle events.
	VersionCreatedEvent    EventType = "version.created"
	VersionTaggedEvent     EventType = "version.tagged"
	VersionRolledBackEvent EventType = "version.rolledback"

	// Branch lifecycle events.
	BranchCreatedEvent  EventType = "branch.created"
	BranchArchivedEvent EventType = "branch.archived"
	BranchMergedEvent   EventType = "branch.merged"
)

type BaseEvent struct {
	ID         string         `json:"id"`
	Type       EventType      `json:"type"`
	Timestamp  time.Time      `json:"timestamp"`
	WorkflowID string         `json:"workflow_id"`
	Actor      string         `json:"actor,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

type VersionCreated struct {
	BaseEvent

	VersionID     string `json:"version_id"`
	BranchID      string `json:"branch_id"`
	Version       string `json:"version"`
	VersionNumber int    `json:"version_number"`
	ChangeType    string `json:"change_type"`
	ChangeSummary string `json:"change_summary,omitempty"`
}

func (v VersionCreated) GetType() EventType {
	return VersionCreatedEvent
}

type VersionTagged struct {
	BaseEvent

	VersionID string `json:"version_id"`
	Tag       string `json:"tag"`
}

func (v VersionTagged) GetType() EventType {
	return VersionTaggedEvent
}

type VersionRolledBack struct {
	BaseEvent

	BranchID        string `json:"branch_id"`
	TargetVersionID string `json:"target_version_id"`
	NewVersionID    string `json:"new_version_id"`
	NewVersion      string `json:"new_version"`
}

func (v VersionRolledBack) GetType() EventType {
	return VersionRolledBackEvent
}

type BranchCreated struct {
	BaseEvent

	BranchID      string `json:"branch_id"`
	Name          string `json:"name"`
	BaseVersionID string `json:"base_version_id,omitempty"`
}

func (b BranchCreated) GetType() EventType {
	return BranchCreatedEvent
}

type BranchArchived struct {
	BaseEvent

	BranchID string `json:"branch_id"`
	Name     string `json:"name"`
}

func (b BranchArchived) GetType() EventType {
	return BranchArchivedEvent
}

type BranchMerged struct {
	BaseEvent

	SourceBranchID  string `json:"source_branch_id"`
	TargetBranchID  string `json:"target_branch_id"`
	MergedVersionID string `json:"merged_version_id"`
	MergedVersion   string `json:"merged_version"`
}

func (b BranchMerged) GetType() EventType {
	return BranchMergedEvent
}

func NewBaseEvent(eventType EventType, workflowID string) BaseEvent {
	return BaseEvent{
		ID:         uuid.New().String(),
		Type:       eventType,
		Timestamp:  time.Now().UTC(),
		WorkflowID: workflowID,
		Metadata:   make(map[string]any),
	}
}
