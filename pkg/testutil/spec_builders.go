// Package testutil provides test data builders and utilities for testing.
package testutil

import (
	"github.com/google/uuid"

	"github.com/vergohq/vergo/pkg/models"
)

// CreateTestNode creates a test Node with default values that can be overridden.
func CreateTestNode(overrides ...func(*models.Node)) *models.Node {
	node := &models.Node{
		ID:     uuid.New().String(),
		Type:   models.NodeTypeAgent,
		Label:  "Test Node",
		Config: map[string]any{"model": "gpt-4o", "temperature": 0.2},
	}

	for _, override := range overrides {
		override(node)
	}

	return node
}

// WithTriggerNode configures the node as a trigger node.
func WithTriggerNode() func(*models.Node) {
	return func(n *models.Node) {
		n.Type = models.NodeTypeTrigger
		n.Config = map[string]any{
			"path":   "/webhook/test",
			"method": "POST",
		}
	}
}

// WithConfig sets the node configuration.
func WithConfig(config map[string]any) func(*models.Node) {
	return func(n *models.Node) {
		n.Config = config
	}
}

// WithLabel sets the node label.
func WithLabel(label string) func(*models.Node) {
	return func(n *models.Node) {
		n.Label = label
	}
}

// WithType sets the node type.
func WithType(nodeType models.NodeType) func(*models.Node) {
	return func(n *models.Node) {
		n.Type = nodeType
	}
}

// WithPosition sets the node position.
func WithPosition(x, y float64) func(*models.Node) {
	return func(n *models.Node) {
		n.Position = &models.Position{X: x, Y: y}
	}
}

// WithID sets the node ID.
func WithID(id string) func(*models.Node) {
	return func(n *models.Node) {
		n.ID = id
	}
}

// CreateTestSpec creates an empty workflow spec.
func CreateTestSpec() *models.WorkflowSpec {
	return &models.WorkflowSpec{
		Nodes: []*models.Node{},
		Edges: []*models.Edge{},
	}
}

// CreateTestSpecWithNodes creates a spec with a trigger feeding an action.
func CreateTestSpecWithNodes() *models.WorkflowSpec {
	spec := CreateTestSpec()

	triggerNode := CreateTestNode(WithTriggerNode(), WithID("trigger-1"))
	agentNode := CreateTestNode(WithID("agent-1"), WithLabel("Research Agent"))

	spec.Nodes = []*models.Node{triggerNode, agentNode}
	spec.Edges = []*models.Edge{
		CreateTestEdge("trigger-1", "agent-1"),
	}

	return spec
}

// CreateTestEdge creates an edge between two nodes.
func CreateTestEdge(sourceNodeID, targetNodeID string) *models.Edge {
	return &models.Edge{
		Source: sourceNodeID,
		Target: targetNodeID,
	}
}
