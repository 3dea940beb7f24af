package models

// DiffSummary is the numeric change-count overview of a structural diff.
// TotalChanges is the plain sum of the five counts, unweighted.
type DiffSummary struct {
	TotalChanges  int `json:"total_changes"`
	NodesAdded    int `json:"nodes_added"`
	NodesRemoved  int `json:"nodes_removed"`
	NodesModified int `json:"nodes_modified"`
	EdgesAdded    int `json:"edges_added"`
	EdgesRemoved  int `json:"edges_removed"`
}

// FieldChange records a single field difference on a modified node.
type FieldChange struct {
	Field  string `json:"field"`
	Before any    `json:"before"`
	After  any    `json:"after"`
}

// NodeChange describes a node present in both specs with differing fields.
type NodeChange struct {
	ID      string        `json:"id"`
	Before  *Node         `json:"before"`
	After   *Node         `json:"after"`
	Changes []FieldChange `json:"changes"`
}

// NodeDiff groups node-level changes between two specs.
type NodeDiff struct {
	Added    []*Node      `json:"added"`
	Removed  []*Node      `json:"removed"`
	Modified []NodeChange `json:"modified"`
}

// EdgeDiff groups edge-level changes. Edges are identified by their
// {source, target} pair.
type EdgeDiff struct {
	Added   []*Edge `json:"added"`
	Removed []*Edge `json:"removed"`
}

// Diff is a derived, ephemeral comparison of two workflow specs. It is
// never persisted; callers recompute it from version snapshots on demand.
type Diff struct {
	Summary DiffSummary `json:"summary"`
	Nodes   NodeDiff    `json:"nodes"`
	Edges   EdgeDiff    `json:"edges"`
}

// MergeStatus is the outcome of a merge attempt.
type MergeStatus string

const (
	MergeStatusMerged    MergeStatus = "merged"
	MergeStatusConflicts MergeStatus = "conflicts"
)

// MergeResult reports a merge outcome. On conflicts, Conflicts lists the
// node ids both sides changed differently and no state was mutated.
type MergeResult struct {
	Status    MergeStatus `json:"status"`
	Conflicts []string    `json:"conflicts,omitempty"`
	Version   *Version    `json:"version,omitempty"`
}
