// Package diff computes structural diffs between two workflow specs.
// Compute is pure and deterministic: it never mutates its inputs and is
// safe to call with unlimited concurrency.
package diff

import (
	"reflect"

	"github.com/vergohq/vergo/pkg/models"
)

type edgeKey struct {
	source string
	target string
}

// Compute compares two specs and reports added, removed, and modified
// nodes plus added and removed edges. Nodes are matched by id and edges
// by {source, target} pair, so node/edge ordering inside each spec does
// not affect the result. Swapping a and b swaps added and removed; the
// total change count is the same in both directions.
func Compute(a, b *models.WorkflowSpec) *models.Diff {
	result := &models.Diff{
		Nodes: models.NodeDiff{
			Added:    []*models.Node{},
			Removed:  []*models.Node{},
			Modified: []models.NodeChange{},
		},
		Edges: models.EdgeDiff{
			Added:   []*models.Edge{},
			Removed: []*models.Edge{},
		},
	}

	nodesA := nodesByID(a)
	nodesB := nodesByID(b)

	for _, node := range b.Nodes {
		if _, exists := nodesA[node.ID]; !exists {
			result.Nodes.Added = append(result.Nodes.Added, node)
		}
	}

	for _, node := range a.Nodes {
		other, exists := nodesB[node.ID]
		if !exists {
			result.Nodes.Removed = append(result.Nodes.Removed, node)

			continue
		}

		changes := compareNodes(node, other)
		if len(changes) > 0 {
			result.Nodes.Modified = append(result.Nodes.Modified, models.NodeChange{
				ID:      node.ID,
				Before:  node,
				After:   other,
				Changes: changes,
			})
		}
	}

	edgesA := edgesByKey(a)
	edgesB := edgesByKey(b)

	for _, edge := range b.Edges {
		if _, exists := edgesA[edgeKey{edge.Source, edge.Target}]; !exists {
			result.Edges.Added = append(result.Edges.Added, edge)
		}
	}

	for _, edge := range a.Edges {
		if _, exists := edgesB[edgeKey{edge.Source, edge.Target}]; !exists {
			result.Edges.Removed = append(result.Edges.Removed, edge)
		}
	}

	result.Summary = models.DiffSummary{
		NodesAdded:    len(result.Nodes.Added),
		NodesRemoved:  len(result.Nodes.Removed),
		NodesModified: len(result.Nodes.Modified),
		EdgesAdded:    len(result.Edges.Added),
		EdgesRemoved:  len(result.Edges.Removed),
	}
	result.Summary.TotalChanges = result.Summary.NodesAdded +
		result.Summary.NodesRemoved +
		result.Summary.NodesModified +
		result.Summary.EdgesAdded +
		result.Summary.EdgesRemoved

	return result
}

// compareNodes lists field-level differences between two nodes with the
// same id. Position is layout metadata, not behavior, so it is ignored.
func compareNodes(before, after *models.Node) []models.FieldChange {
	var changes []models.FieldChange

	if before.Type != after.Type {
		changes = append(changes, models.FieldChange{
			Field:  "type",
			Before: before.Type,
			After:  after.Type,
		})
	}

	if before.Label != after.Label {
		changes = append(changes, models.FieldChange{
			Field:  "label",
			Before: before.Label,
			After:  after.Label,
		})
	}

	if !configsEqual(before.Config, after.Config) {
		changes = append(changes, models.FieldChange{
			Field:  "config",
			Before: before.Config,
			After:  after.Config,
		})
	}

	return changes
}

// NodesEqual reports whether two nodes have identical compared fields.
// The merge controller uses it to decide whether both sides of a merge
// arrived at the same result.
func NodesEqual(a, b *models.Node) bool {
	if a == nil || b == nil {
		return a == b
	}

	return len(compareNodes(a, b)) == 0
}

// configsEqual treats nil and empty config maps as equal so a node saved
// with no config never diffs against one saved with an empty map.
func configsEqual(a, b map[string]any) bool {
	if len(a) == 0 && len(b) == 0 {
		return true
	}

	return reflect.DeepEqual(a, b)
}

func nodesByID(spec *models.WorkflowSpec) map[string]*models.Node {
	index := make(map[string]*models.Node, len(spec.Nodes))
	for _, node := range spec.Nodes {
		index[node.ID] = node
	}

	return index
}

func edgesByKey(spec *models.WorkflowSpec) map[edgeKey]*models.Edge {
	index := make(map[edgeKey]*models.Edge, len(spec.Edges))
	for _, edge := range spec.Edges {
		index[edgeKey{edge.Source, edge.Target}] = edge
	}

	return index
}
