package services

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/vergohq/vergo/pkg/diff"
	"github.com/vergohq/vergo/pkg/eventbus"
	"github.com/vergohq/vergo/pkg/events"
	"github.com/vergohq/vergo/pkg/identity"
	"github.com/vergohq/vergo/pkg/locks"
	"github.com/vergohq/vergo/pkg/models"
	"github.com/vergohq/vergo/pkg/otelhelper"
	"github.com/vergohq/vergo/pkg/persistence"
)

// MergeStrategyAuto fails fast on conflicts instead of resolving them.
const MergeStrategyAuto = "auto"

// Control orchestrates the multi-step operations: rollback, merge, and
// version-to-version diffs. Mutating operations serialize per workflow
// through the locker; the branch head CAS backstops races that slip
// past it.
type Control struct {
	persistence persistence.Persistence
	identity    identity.Identity
	publisher   eventbus.EventPublisher
	locker      locks.Locker
	tracer      trace.Tracer
	logger      *slog.Logger
}

// NewControl creates the rollback/merge controller. A nil tracer
// disables span emission.
func NewControl(p persistence.Persistence, id identity.Identity, publisher eventbus.EventPublisher, locker locks.Locker, tracer trace.Tracer, logger *slog.Logger) *Control {
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer("vergo")
	}

	return &Control{
		persistence: p,
		identity:    id,
		publisher:   publisher,
		locker:      locker,
		tracer:      tracer,
		logger:      logger.With("module", "control_service"),
	}
}

// DiffVersions computes the structural diff between two versions of the
// same workflow. The result is derived, never persisted.
func (s *Control) DiffVersions(ctx context.Context, versionAID, versionBID string) (*models.Diff, error) {
	versionA, err := s.persistence.VersionRepository().GetByID(ctx, versionAID)
	if err != nil {
		return nil, err
	}

	versionB, err := s.persistence.VersionRepository().GetByID(ctx, versionBID)
	if err != nil {
		return nil, err
	}

	if versionA.WorkflowID != versionB.WorkflowID {
		return nil, &ServiceError{Op: "DiffVersions", Code: "cross_workflow", Err: ErrCrossWorkflowViolation}
	}

	return diff.Compute(versionA.Spec, versionB.Spec), nil
}

// Rollback appends a new patch version whose spec copies the target
// version, then repoints the branch head. History is never rewritten;
// the rolled-back-to version stays in the chain untouched.
func (s *Control) Rollback(ctx context.Context, workflowID, branchID, targetVersionID string) (*models.Version, error) {
	ctx, span := otelhelper.StartSpan(ctx, s.tracer, "control.rollback",
		attribute.String(otelhelper.WorkflowIDKey, workflowID),
		attribute.String(otelhelper.BranchIDKey, branchID),
		attribute.String(otelhelper.VersionIDKey, targetVersionID),
	)
	defer span.End()

	release, err := s.locker.Acquire(ctx, workflowID)
	if err != nil {
		otelhelper.SetError(span, err)

		return nil, fmt.Errorf("failed to acquire workflow lock: %w", err)
	}

	defer release()

	version, err := s.rollbackLocked(ctx, workflowID, branchID, targetVersionID)
	if err != nil {
		otelhelper.SetError(span, err)

		return nil, err
	}

	span.SetAttributes(attribute.String(otelhelper.VersionKey, version.Version))

	return version, nil
}

func (s *Control) rollbackLocked(ctx context.Context, workflowID, branchID, targetVersionID string) (*models.Version, error) {
	target, err := s.persistence.VersionRepository().GetByID(ctx, targetVersionID)
	if err != nil {
		return nil, err
	}

	// A version of another workflow is indistinguishable from a missing
	// one to the caller.
	if target.WorkflowID != workflowID {
		return nil, persistence.NewVersionError("Rollback", targetVersionID, persistence.ErrVersionNotFound)
	}

	branch, err := s.persistence.BranchRepository().GetByID(ctx, branchID)
	if err != nil {
		return nil, err
	}

	if branch.WorkflowID != workflowID {
		return nil, &ServiceError{Op: "Rollback", Code: "cross_workflow", Err: ErrCrossWorkflowViolation}
	}

	if branch.Status != models.BranchStatusActive {
		return nil, &ServiceError{
			Op:      "Rollback",
			Code:    "branch_not_active",
			Message: fmt.Sprintf("branch is %s", branch.Status),
			Err:     ErrBranchNotActive,
		}
	}

	head, err := s.persistence.VersionRepository().GetByID(ctx, branch.HeadVersionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load branch head: %w", err)
	}

	semver, err := models.NextSemver(head.Version, models.ChangeTypePatch)
	if err != nil {
		return nil, fmt.Errorf("failed to compute next version: %w", err)
	}

	user, err := s.identity.CurrentUser(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve current user: %w", err)
	}

	version := &models.Version{
		ID:              uuid.New().String(),
		WorkflowID:      workflowID,
		BranchID:        branchID,
		Version:         semver,
		Spec:            target.Spec.Clone(),
		ChangeSummary:   fmt.Sprintf("Rolled back to version %s", target.Version),
		ChangeType:      models.ChangeTypePatch,
		ParentVersionID: head.ID,
		CreatedBy:       user.Email,
	}

	err = s.persistence.VersionRepository().Create(ctx, version)
	if err != nil {
		return nil, fmt.Errorf("failed to create rollback version: %w", err)
	}

	_, err = s.persistence.BranchRepository().UpdateHead(ctx, branchID, head.ID, version.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to advance branch head: %w", err)
	}

	s.publishRolledBack(ctx, version, target)

	return version, nil
}

// Merge combines the source branch's head into the target branch. Both
// heads are diffed against their nearest common ancestor; a node both
// sides changed to different results is a conflict. Under the auto
// strategy conflicts abort the merge with no mutation. Only active
// branches participate, and the default branch is never merged away.
func (s *Control) Merge(ctx context.Context, sourceBranchID, targetBranchID, strategy string) (*models.MergeResult, error) {
	if strategy != MergeStrategyAuto {
		return nil, NewValidationError("Merge", "unknown_strategy",
			fmt.Sprintf("merge strategy %q is not supported", strategy), ErrUnknownMergeStrategy)
	}

	source, err := s.persistence.BranchRepository().GetByID(ctx, sourceBranchID)
	if err != nil {
		return nil, err
	}

	target, err := s.persistence.BranchRepository().GetByID(ctx, targetBranchID)
	if err != nil {
		return nil, err
	}

	if source.WorkflowID != target.WorkflowID {
		return nil, &ServiceError{Op: "Merge", Code: "cross_workflow", Err: ErrCrossWorkflowViolation}
	}

	if source.IsDefault {
		return nil, &ServiceError{
			Op:      "Merge",
			Code:    "protected_branch",
			Message: "the default branch cannot be merged away",
			Err:     ErrProtectedBranchViolation,
		}
	}

	if source.Status != models.BranchStatusActive {
		return nil, &ServiceError{
			Op:      "Merge",
			Code:    "branch_not_active",
			Message: fmt.Sprintf("source branch is %s", source.Status),
			Err:     ErrBranchNotActive,
		}
	}

	if target.Status != models.BranchStatusActive {
		return nil, &ServiceError{
			Op:      "Merge",
			Code:    "branch_not_active",
			Message: fmt.Sprintf("target branch is %s", target.Status),
			Err:     ErrBranchNotActive,
		}
	}

	ctx, span := otelhelper.StartSpan(ctx, s.tracer, "control.merge",
		attribute.String(otelhelper.WorkflowIDKey, source.WorkflowID),
		attribute.String(otelhelper.SourceBranchKey, sourceBranchID),
		attribute.String(otelhelper.TargetBranchKey, targetBranchID),
		attribute.String(otelhelper.MergeStrategyKey, strategy),
	)
	defer span.End()

	release, err := s.locker.Acquire(ctx, source.WorkflowID)
	if err != nil {
		otelhelper.SetError(span, err)

		return nil, fmt.Errorf("failed to acquire workflow lock: %w", err)
	}

	defer release()

	result, err := s.mergeLocked(ctx, source, target)
	if err != nil {
		otelhelper.SetError(span, err)

		return nil, err
	}

	span.SetAttributes(attribute.Int(otelhelper.ConflictCountKey, len(result.Conflicts)))

	return result, nil
}

func (s *Control) mergeLocked(ctx context.Context, source, target *models.Branch) (*models.MergeResult, error) {
	sourceHead, err := s.persistence.VersionRepository().GetByID(ctx, source.HeadVersionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load source head: %w", err)
	}

	targetHead, err := s.persistence.VersionRepository().GetByID(ctx, target.HeadVersionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load target head: %w", err)
	}

	ancestor, err := s.commonAncestor(ctx, sourceHead, targetHead)
	if err != nil {
		return nil, err
	}

	sourceDiff := diff.Compute(ancestor.Spec, sourceHead.Spec)
	targetDiff := diff.Compute(ancestor.Spec, targetHead.Spec)

	conflicts := detectConflicts(sourceDiff, targetDiff)
	if len(conflicts) > 0 {
		return &models.MergeResult{
			Status:    models.MergeStatusConflicts,
			Conflicts: conflicts,
		}, nil
	}

	mergedSpec := applyChanges(targetHead.Spec.Clone(), sourceDiff)

	if err := mergedSpec.Validate(); err != nil {
		return nil, fmt.Errorf("merged spec failed integrity validation: %w", err)
	}

	semver, err := models.NextSemver(targetHead.Version, models.ChangeTypeMinor)
	if err != nil {
		return nil, fmt.Errorf("failed to compute next version: %w", err)
	}

	user, err := s.identity.CurrentUser(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve current user: %w", err)
	}

	version := &models.Version{
		ID:              uuid.New().String(),
		WorkflowID:      target.WorkflowID,
		BranchID:        target.ID,
		Version:         semver,
		Spec:            mergedSpec,
		ChangeSummary:   fmt.Sprintf("Merged branch %q", source.Name),
		ChangeType:      models.ChangeTypeMinor,
		ParentVersionID: targetHead.ID,
		CreatedBy:       user.Email,
	}

	err = s.persistence.VersionRepository().Create(ctx, version)
	if err != nil {
		return nil, fmt.Errorf("failed to create merge version: %w", err)
	}

	_, err = s.persistence.BranchRepository().UpdateHead(ctx, target.ID, targetHead.ID, version.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to advance target head: %w", err)
	}

	_, err = s.persistence.BranchRepository().UpdateStatus(ctx, source.ID, models.BranchStatusMerged)
	if err != nil {
		return nil, fmt.Errorf("failed to mark source branch merged: %w", err)
	}

	s.publishMerged(ctx, source, target, version)

	return &models.MergeResult{
		Status:  models.MergeStatusMerged,
		Version: version,
	}, nil
}

// commonAncestor walks both parent chains for the nearest shared
// version. Chains that never intersect indicate corrupted history.
func (s *Control) commonAncestor(ctx context.Context, a, b *models.Version) (*models.Version, error) {
	seen := make(map[string]bool)

	for current := a; ; {
		seen[current.ID] = true

		if current.ParentVersionID == "" {
			break
		}

		parent, err := s.persistence.VersionRepository().GetByID(ctx, current.ParentVersionID)
		if err != nil {
			return nil, fmt.Errorf("failed to walk version chain: %w", err)
		}

		current = parent
	}

	for current := b; ; {
		if seen[current.ID] {
			return current, nil
		}

		if current.ParentVersionID == "" {
			break
		}

		parent, err := s.persistence.VersionRepository().GetByID(ctx, current.ParentVersionID)
		if err != nil {
			return nil, fmt.Errorf("failed to walk version chain: %w", err)
		}

		current = parent
	}

	return nil, &ServiceError{Op: "Merge", Code: "no_common_ancestor", Err: ErrNoCommonAncestor}
}

// sideOutcome is what one side of a merge did to a node since the
// ancestor: removed it, or modified it into After.
type sideOutcome struct {
	removed bool
	after   *models.Node
}

func outcomesByNode(d *models.Diff) map[string]sideOutcome {
	outcomes := make(map[string]sideOutcome)

	for _, node := range d.Nodes.Removed {
		outcomes[node.ID] = sideOutcome{removed: true}
	}

	for _, change := range d.Nodes.Modified {
		outcomes[change.ID] = sideOutcome{after: change.After}
	}

	return outcomes
}

// detectConflicts lists node ids both sides changed since the ancestor
// with different results. Both sides removing a node, or both modifying
// it identically, is not a conflict.
func detectConflicts(sourceDiff, targetDiff *models.Diff) []string {
	sourceOutcomes := outcomesByNode(sourceDiff)
	targetOutcomes := outcomesByNode(targetDiff)

	var conflicts []string

	for id, src := range sourceOutcomes {
		tgt, both := targetOutcomes[id]
		if !both {
			continue
		}

		if src.removed && tgt.removed {
			continue
		}

		if src.removed != tgt.removed || !diff.NodesEqual(src.after, tgt.after) {
			conflicts = append(conflicts, id)
		}
	}

	sort.Strings(conflicts)

	return conflicts
}

// applyChanges replays one side's node and edge changes onto a spec.
// Used after conflict detection, so replacements are safe.
func applyChanges(spec *models.WorkflowSpec, d *models.Diff) *models.WorkflowSpec {
	removedNodes := make(map[string]bool, len(d.Nodes.Removed))
	for _, node := range d.Nodes.Removed {
		removedNodes[node.ID] = true
	}

	modified := make(map[string]*models.Node, len(d.Nodes.Modified))
	for _, change := range d.Nodes.Modified {
		modified[change.ID] = change.After
	}

	nodes := make([]*models.Node, 0, len(spec.Nodes)+len(d.Nodes.Added))
	present := make(map[string]bool)

	for _, node := range spec.Nodes {
		if removedNodes[node.ID] {
			continue
		}

		if after, ok := modified[node.ID]; ok {
			node = after
		}

		nodes = append(nodes, node)
		present[node.ID] = true
	}

	for _, node := range d.Nodes.Added {
		if !present[node.ID] {
			nodes = append(nodes, node)
			present[node.ID] = true
		}
	}

	type edgePair struct{ source, target string }

	removedEdges := make(map[edgePair]bool, len(d.Edges.Removed))
	for _, edge := range d.Edges.Removed {
		removedEdges[edgePair{edge.Source, edge.Target}] = true
	}

	edges := make([]*models.Edge, 0, len(spec.Edges)+len(d.Edges.Added))
	existing := make(map[edgePair]bool)

	for _, edge := range spec.Edges {
		pair := edgePair{edge.Source, edge.Target}
		if removedEdges[pair] {
			continue
		}

		edges = append(edges, edge)
		existing[pair] = true
	}

	for _, edge := range d.Edges.Added {
		pair := edgePair{edge.Source, edge.Target}
		// An edge is dropped when either endpoint went away with its node.
		if !existing[pair] && present[edge.Source] && present[edge.Target] {
			edges = append(edges, edge)
			existing[pair] = true
		}
	}

	result := &models.WorkflowSpec{Nodes: nodes, Edges: edges}

	return result.Clone()
}

func (s *Control) publishRolledBack(ctx context.Context, version, target *models.Version) {
	if s.publisher == nil {
		return
	}

	event := events.VersionRolledBack{
		BaseEvent:       events.NewBaseEvent(events.VersionRolledBackEvent, version.WorkflowID),
		BranchID:        version.BranchID,
		TargetVersionID: target.ID,
		NewVersionID:    version.ID,
		NewVersion:      version.Version,
	}
	event.Actor = version.CreatedBy

	err := s.publisher.Publish(ctx, version.WorkflowID, event)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to publish rollback event", "version_id", version.ID, "error", err)
	}
}

func (s *Control) publishMerged(ctx context.Context, source, target *models.Branch, version *models.Version) {
	if s.publisher == nil {
		return
	}

	event := events.BranchMerged{
		BaseEvent:       events.NewBaseEvent(events.BranchMergedEvent, version.WorkflowID),
		SourceBranchID:  source.ID,
		TargetBranchID:  target.ID,
		MergedVersionID: version.ID,
		MergedVersion:   version.Version,
	}
	event.Actor = version.CreatedBy

	err := s.publisher.Publish(ctx, version.WorkflowID, event)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to publish merge event", "version_id", version.ID, "error", err)
	}
}
