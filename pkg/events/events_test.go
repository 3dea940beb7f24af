package events_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vergohq/vergo/pkg/events"
)

func TestNewBaseEvent(t *testing.T) {
	base := events.NewBaseEvent(events.VersionCreatedEvent, "workflow-1")

	assert.NotEmpty(t, base.ID)
	assert.Equal(t, events.VersionCreatedEvent, base.Type)
	assert.Equal(t, "workflow-1", base.WorkflowID)
	assert.False(t, base.Timestamp.IsZero())
	assert.NotNil(t, base.Metadata)
}

func TestEventTypes(t *testing.T) {
	testCases := []struct {
		name     string
		event    interface{ GetType() events.EventType }
		expected events.EventType
	}{
		{"version created", events.VersionCreated{}, events.VersionCreatedEvent},
		{"version tagged", events.VersionTagged{}, events.VersionTaggedEvent},
		{"version rolled back", events.VersionRolledBack{}, events.VersionRolledBackEvent},
		{"branch created", events.BranchCreated{}, events.BranchCreatedEvent},
		{"branch archived", events.BranchArchived{}, events.BranchArchivedEvent},
		{"branch merged", events.BranchMerged{}, events.BranchMergedEvent},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, tc.event.GetType())
		})
	}
}

func TestVersionCreatedSerialization(t *testing.T) {
	event := events.VersionCreated{
		BaseEvent:     events.NewBaseEvent(events.VersionCreatedEvent, "workflow-1"),
		VersionID:     "version-1",
		BranchID:      "branch-1",
		Version:       "1.0.1",
		VersionNumber: 2,
		ChangeType:    "patch",
		ChangeSummary: "Fixed agent prompt",
	}

	payload, err := json.Marshal(event)
	require.NoError(t, err)

	var decoded events.VersionCreated

	require.NoError(t, json.Unmarshal(payload, &decoded))
	assert.Equal(t, event.VersionID, decoded.VersionID)
	assert.Equal(t, event.VersionNumber, decoded.VersionNumber)
	assert.Equal(t, event.WorkflowID, decoded.WorkflowID)
}
