package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorkflowSpec_Validate_Valid(t *testing.T) {
	spec := &WorkflowSpec{
		Nodes: []*Node{
			{ID: "trigger_1", Type: NodeTypeTrigger, Label: "Start"},
			{ID: "agent_1", Type: NodeTypeAgent, Label: "Agent", Config: map[string]any{"model": "default"}},
		},
		Edges: []*Edge{
			{Source: "trigger_1", Target: "agent_1"},
		},
	}

	assert.NoError(t, spec.Validate())
}

func TestWorkflowSpec_Validate_DanglingEdge(t *testing.T) {
	spec := &WorkflowSpec{
		Nodes: []*Node{
			{ID: "trigger_1", Type: NodeTypeTrigger},
		},
		Edges: []*Edge{
			{Source: "trigger_1", Target: "missing"},
		},
	}

	err := spec.Validate()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDanglingEdge)
}

func TestWorkflowSpec_Validate_DuplicateNodeID(t *testing.T) {
	spec := &WorkflowSpec{
		Nodes: []*Node{
			{ID: "agent_1", Type: NodeTypeAgent},
			{ID: "agent_1", Type: NodeTypeTool},
		},
	}

	err := spec.Validate()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDuplicateNodeID)
}

func TestWorkflowSpec_Validate_UnknownNodeType(t *testing.T) {
	spec := &WorkflowSpec{
		Nodes: []*Node{
			{ID: "n1", Type: "teleport"},
		},
	}

	err := spec.Validate()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidNodeType)
}

func TestWorkflowSpec_Clone_IsDeep(t *testing.T) {
	spec := &WorkflowSpec{
		Nodes: []*Node{
			{
				ID:    "agent_1",
				Type:  NodeTypeAgent,
				Label: "Agent",
				Config: map[string]any{
					"model": "default",
					"limits": map[string]any{
						"max_tokens": 1024,
					},
					"tools": []any{"search", "code"},
				},
				Position: &Position{X: 10, Y: 20},
			},
		},
		Edges: []*Edge{
			{Source: "agent_1", Target: "agent_1", Label: "loop"},
		},
	}

	clone := spec.Clone()
	require.NotNil(t, clone)

	// Mutating the clone must not affect the original.
	clone.Nodes[0].Label = "Changed"
	clone.Nodes[0].Config["model"] = "other"
	clone.Nodes[0].Config["limits"].(map[string]any)["max_tokens"] = 9
	clone.Nodes[0].Position.X = 99
	clone.Edges[0].Label = "changed"

	assert.Equal(t, "Agent", spec.Nodes[0].Label)
	assert.Equal(t, "default", spec.Nodes[0].Config["model"])
	assert.Equal(t, 1024, spec.Nodes[0].Config["limits"].(map[string]any)["max_tokens"])
	assert.InEpsilon(t, 10.0, spec.Nodes[0].Position.X, 0.0001)
	assert.Equal(t, "loop", spec.Edges[0].Label)
}

func TestWorkflowSpec_JSONRoundTrip(t *testing.T) {
	original := &WorkflowSpec{
		Nodes: []*Node{
			{ID: "trigger_1", Type: NodeTypeTrigger, Position: &Position{X: 1, Y: 2}},
		},
		Edges: []*Edge{},
	}

	data, err := json.Marshal(original)
	require.NoError(t, err)

	var decoded WorkflowSpec

	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "trigger_1", decoded.Nodes[0].ID)
	assert.Equal(t, NodeTypeTrigger, decoded.Nodes[0].Type)
}

func TestValidateSpecDocument(t *testing.T) {
	valid := map[string]any{
		"nodes": []any{
			map[string]any{"id": "trigger_1", "type": "trigger"},
		},
		"edges": []any{},
	}
	assert.NoError(t, ValidateSpecDocument(valid))

	unknownType := map[string]any{
		"nodes": []any{
			map[string]any{"id": "n1", "type": "teleport"},
		},
	}
	assert.ErrorIs(t, ValidateSpecDocument(unknownType), ErrSpecSchemaViolation)

	missingID := map[string]any{
		"nodes": []any{
			map[string]any{"type": "agent"},
		},
	}
	assert.ErrorIs(t, ValidateSpecDocument(missingID), ErrSpecSchemaViolation)
}
