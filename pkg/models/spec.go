// Package models defines the core domain models for workflow spec versioning.
package models

import (
	"errors"
	"fmt"
	"maps"
)

// NodeType represents the kind of node in a workflow spec.
type NodeType string

const (
	NodeTypeAgent              NodeType = "agent"
	NodeTypeTool               NodeType = "tool"
	NodeTypeCondition          NodeType = "condition"
	NodeTypeData               NodeType = "data"
	NodeTypeEmail              NodeType = "email"
	NodeTypeWebhook            NodeType = "webhook"
	NodeTypeTrigger            NodeType = "trigger"
	NodeTypeMemoryRead         NodeType = "memory_read"
	NodeTypeMemoryWrite        NodeType = "memory_write"
	NodeTypeAgentCollaboration NodeType = "agent_collaboration"
	NodeTypeHumanInput         NodeType = "human_input"
	NodeTypeLoop               NodeType = "loop"
)

// KnownNodeTypes lists every valid node type tag.
var KnownNodeTypes = []NodeType{
	NodeTypeAgent,
	NodeTypeTool,
	NodeTypeCondition,
	NodeTypeData,
	NodeTypeEmail,
	NodeTypeWebhook,
	NodeTypeTrigger,
	NodeTypeMemoryRead,
	NodeTypeMemoryWrite,
	NodeTypeAgentCollaboration,
	NodeTypeHumanInput,
	NodeTypeLoop,
}

// IsValid reports whether the node type is one of the known tags.
func (t NodeType) IsValid() bool {
	for _, known := range KnownNodeTypes {
		if t == known {
			return true
		}
	}

	return false
}

// Position is a node's 2D placement on the designer canvas.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Node represents a single node in a workflow spec.
type Node struct {
	ID       string         `json:"id"       validate:"required"`
	Type     NodeType       `json:"type"     validate:"required"`
	Label    string         `json:"label"`
	Config   map[string]any `json:"config"`
	Position *Position      `json:"position,omitempty"`
}

// Edge is a directed connection between two nodes. Edges have no
// independent identity; they are addressed by their {source, target} pair.
type Edge struct {
	Source    string `json:"source"              validate:"required"`
	Target    string `json:"target"              validate:"required"`
	Label     string `json:"label,omitempty"`
	Condition string `json:"condition,omitempty"`
}

// WorkflowSpec is a directed graph describing a workflow's behavior at a
// point in time. Versions persist full spec snapshots, never deltas.
type WorkflowSpec struct {
	Nodes []*Node `json:"nodes"`
	Edges []*Edge `json:"edges"`
}

// Spec integrity errors.
var (
	ErrDuplicateNodeID = errors.New("duplicate node id")
	ErrInvalidNodeType = errors.New("invalid node type")
	ErrDanglingEdge    = errors.New("edge references unknown node")
)

// Validate checks the structural integrity of the spec. Edges referencing
// unknown node ids are a data-integrity error, not something to drop.
func (s *WorkflowSpec) Validate() error {
	seen := make(map[string]bool, len(s.Nodes))

	for _, node := range s.Nodes {
		if node.ID == "" {
			return fmt.Errorf("node with empty id: %w", ErrDuplicateNodeID)
		}

		if seen[node.ID] {
			return fmt.Errorf("node %s: %w", node.ID, ErrDuplicateNodeID)
		}

		if !node.Type.IsValid() {
			return fmt.Errorf("node %s has type %q: %w", node.ID, node.Type, ErrInvalidNodeType)
		}

		seen[node.ID] = true
	}

	for _, edge := range s.Edges {
		if !seen[edge.Source] {
			return fmt.Errorf("edge %s->%s source: %w", edge.Source, edge.Target, ErrDanglingEdge)
		}

		if !seen[edge.Target] {
			return fmt.Errorf("edge %s->%s target: %w", edge.Source, edge.Target, ErrDanglingEdge)
		}
	}

	return nil
}

// NodeByID returns the node with the given id, or nil.
func (s *WorkflowSpec) NodeByID(id string) *Node {
	for _, node := range s.Nodes {
		if node.ID == id {
			return node
		}
	}

	return nil
}

// Clone returns a deep copy of the spec. Rollback and merge snapshot specs
// by copy so later mutation of one version never leaks into another.
func (s *WorkflowSpec) Clone() *WorkflowSpec {
	if s == nil {
		return nil
	}

	clone := &WorkflowSpec{
		Nodes: make([]*Node, 0, len(s.Nodes)),
		Edges: make([]*Edge, 0, len(s.Edges)),
	}

	for _, node := range s.Nodes {
		clone.Nodes = append(clone.Nodes, node.Clone())
	}

	for _, edge := range s.Edges {
		edgeCopy := *edge
		clone.Edges = append(clone.Edges, &edgeCopy)
	}

	return clone
}

// Clone returns a deep copy of the node, including its config map.
func (n *Node) Clone() *Node {
	nodeCopy := *n

	if n.Config != nil {
		nodeCopy.Config = deepCopyMap(n.Config)
	}

	if n.Position != nil {
		positionCopy := *n.Position
		nodeCopy.Position = &positionCopy
	}

	return &nodeCopy
}

// deepCopyMap copies a JSON-safe config map, recursing into nested maps
// and slices. Scalar values are copied by assignment.
func deepCopyMap(src map[string]any) map[string]any {
	dst := make(map[string]any, len(src))
	maps.Copy(dst, src)

	for key, value := range src {
		switch typed := value.(type) {
		case map[string]any:
			dst[key] = deepCopyMap(typed)
		case []any:
			sliceCopy := make([]any, len(typed))

			for i, item := range typed {
				if nested, ok := item.(map[string]any); ok {
					sliceCopy[i] = deepCopyMap(nested)
				} else {
					sliceCopy[i] = item
				}
			}

			dst[key] = sliceCopy
		}
	}

	return dst
}
