package services_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vergohq/vergo/pkg/models"
	"github.com/vergohq/vergo/pkg/services"
)

func TestRollback(t *testing.T) {
	env := newTestEnv(t)

	// 1.0.0 holds only trigger_1.
	branch, base, err := env.branches.InitWorkflow(t.Context(), "w1", triggerOnlySpec(), "")
	require.NoError(t, err)

	// Save adds agent_1 as 1.0.1.
	second, err := env.versions.CreateVersion(t.Context(), services.CreateVersionParams{
		WorkflowID:      "w1",
		BranchID:        branch.ID,
		Spec:            triggerAgentSpec(),
		ChangeType:      models.ChangeTypePatch,
		ParentVersionID: base.ID,
	})
	require.NoError(t, err)
	assert.Equal(t, "1.0.1", second.Version)

	_, err = env.branches.AdvanceHead(t.Context(), branch.ID, second.ID)
	require.NoError(t, err)

	// Rolling back to 1.0.0 appends 1.0.2 rather than rewriting history.
	rolled, err := env.control.Rollback(t.Context(), "w1", branch.ID, base.ID)
	require.NoError(t, err)

	assert.Equal(t, "1.0.2", rolled.Version)
	assert.Equal(t, models.ChangeTypePatch, rolled.ChangeType)
	assert.Equal(t, "Rolled back to version 1.0.0", rolled.ChangeSummary)
	assert.Equal(t, second.ID, rolled.ParentVersionID)

	updated, err := env.branches.GetBranch(t.Context(), branch.ID)
	require.NoError(t, err)
	assert.Equal(t, rolled.ID, updated.HeadVersionID)

	// The target version is still in the chain, untouched.
	original, err := env.versions.GetVersion(t.Context(), base.ID)
	require.NoError(t, err)
	assert.Equal(t, "1.0.0", original.Version)
	require.Len(t, original.Spec.Nodes, 1)

	// The new head's spec deep-equals the rollback target.
	delta, err := env.control.DiffVersions(t.Context(), base.ID, rolled.ID)
	require.NoError(t, err)
	assert.Zero(t, delta.Summary.TotalChanges)

	// Diff against the pre-rollback head reports the removed agent.
	delta, err = env.control.DiffVersions(t.Context(), second.ID, rolled.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, delta.Summary.TotalChanges)
	require.Len(t, delta.Nodes.Removed, 1)
	assert.Equal(t, "agent_1", delta.Nodes.Removed[0].ID)
}

func TestRollback_CopiesSpec(t *testing.T) {
	env := newTestEnv(t)

	branch, base, err := env.branches.InitWorkflow(t.Context(), "w1", triggerOnlySpec(), "")
	require.NoError(t, err)

	rolled, err := env.control.Rollback(t.Context(), "w1", branch.ID, base.ID)
	require.NoError(t, err)
	assert.NotSame(t, base.Spec, rolled.Spec)

	rolled.Spec.Nodes[0].Label = "mutated"

	reloaded, err := env.versions.GetVersion(t.Context(), base.ID)
	require.NoError(t, err)
	assert.Equal(t, "Start", reloaded.Spec.Nodes[0].Label)
}

func TestRollback_TargetFromOtherWorkflow(t *testing.T) {
	env := newTestEnv(t)

	branch, _, err := env.branches.InitWorkflow(t.Context(), "w1", triggerOnlySpec(), "")
	require.NoError(t, err)

	_, other, err := env.branches.InitWorkflow(t.Context(), "w2", triggerOnlySpec(), "")
	require.NoError(t, err)

	_, err = env.control.Rollback(t.Context(), "w1", branch.ID, other.ID)
	require.Error(t, err)
	assert.True(t, services.IsNotFoundError(err))
}

func TestRollback_ArchivedBranchRejected(t *testing.T) {
	env := newTestEnv(t)

	_, base, err := env.branches.InitWorkflow(t.Context(), "w1", triggerOnlySpec(), "")
	require.NoError(t, err)

	feature, err := env.branches.CreateBranch(t.Context(), services.CreateBranchParams{
		WorkflowID:    "w1",
		Name:          "feature",
		BaseVersionID: base.ID,
	})
	require.NoError(t, err)

	_, err = env.branches.ArchiveBranch(t.Context(), feature.ID)
	require.NoError(t, err)

	_, err = env.control.Rollback(t.Context(), "w1", feature.ID, base.ID)
	require.Error(t, err)
	assert.ErrorIs(t, err, services.ErrBranchNotActive)
	assert.True(t, services.IsConflictError(err))

	reloaded, err := env.branches.GetBranch(t.Context(), feature.ID)
	require.NoError(t, err)
	assert.Equal(t, base.ID, reloaded.HeadVersionID)
}

func TestDiffVersions_CrossWorkflow(t *testing.T) {
	env := newTestEnv(t)

	_, versionA, err := env.branches.InitWorkflow(t.Context(), "w1", triggerOnlySpec(), "")
	require.NoError(t, err)

	_, versionB, err := env.branches.InitWorkflow(t.Context(), "w2", triggerOnlySpec(), "")
	require.NoError(t, err)

	_, err = env.control.DiffVersions(t.Context(), versionA.ID, versionB.ID)
	require.Error(t, err)
	assert.ErrorIs(t, err, services.ErrCrossWorkflowViolation)
}

func TestMerge_NoConflicts(t *testing.T) {
	env := newTestEnv(t)

	mainBranch, base, err := env.branches.InitWorkflow(t.Context(), "w1", triggerOnlySpec(), "")
	require.NoError(t, err)

	feature, err := env.branches.CreateBranch(t.Context(), services.CreateBranchParams{
		WorkflowID:    "w1",
		Name:          "feature",
		BaseVersionID: base.ID,
	})
	require.NoError(t, err)

	// Feature adds agent_1 and an edge.
	featureVersion, err := env.versions.CreateVersion(t.Context(), services.CreateVersionParams{
		WorkflowID:      "w1",
		BranchID:        feature.ID,
		Spec:            triggerAgentSpec(),
		ChangeType:      models.ChangeTypeMinor,
		ParentVersionID: base.ID,
	})
	require.NoError(t, err)

	_, err = env.branches.AdvanceHead(t.Context(), feature.ID, featureVersion.ID)
	require.NoError(t, err)

	result, err := env.control.Merge(t.Context(), feature.ID, mainBranch.ID, services.MergeStrategyAuto)
	require.NoError(t, err)

	assert.Equal(t, models.MergeStatusMerged, result.Status)
	assert.Empty(t, result.Conflicts)
	require.NotNil(t, result.Version)
	assert.Equal(t, "1.1.0", result.Version.Version)
	assert.Equal(t, mainBranch.ID, result.Version.BranchID)

	// The merged spec carries the feature's additions.
	require.Len(t, result.Version.Spec.Nodes, 2)
	require.Len(t, result.Version.Spec.Edges, 1)

	// Target head advanced, source branch marked merged.
	updatedMain, err := env.branches.GetBranch(t.Context(), mainBranch.ID)
	require.NoError(t, err)
	assert.Equal(t, result.Version.ID, updatedMain.HeadVersionID)

	updatedFeature, err := env.branches.GetBranch(t.Context(), feature.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BranchStatusMerged, updatedFeature.Status)
}

func TestMerge_DefaultSourceBranchRejected(t *testing.T) {
	env := newTestEnv(t)

	mainBranch, base, err := env.branches.InitWorkflow(t.Context(), "w1", triggerOnlySpec(), "")
	require.NoError(t, err)

	feature, err := env.branches.CreateBranch(t.Context(), services.CreateBranchParams{
		WorkflowID:    "w1",
		Name:          "feature",
		BaseVersionID: base.ID,
	})
	require.NoError(t, err)

	// Merging main into a feature branch would freeze the workflow's only
	// default branch.
	_, err = env.control.Merge(t.Context(), mainBranch.ID, feature.ID, services.MergeStrategyAuto)
	require.Error(t, err)
	assert.ErrorIs(t, err, services.ErrProtectedBranchViolation)
	assert.True(t, services.IsConflictError(err))

	reloaded, err := env.branches.GetBranch(t.Context(), mainBranch.ID)
	require.NoError(t, err)
	assert.True(t, reloaded.IsDefault)
	assert.Equal(t, models.BranchStatusActive, reloaded.Status)
}

func TestMerge_SourceAlreadyMerged(t *testing.T) {
	env := newTestEnv(t)

	mainBranch, base, err := env.branches.InitWorkflow(t.Context(), "w1", triggerOnlySpec(), "")
	require.NoError(t, err)

	feature, err := env.branches.CreateBranch(t.Context(), services.CreateBranchParams{
		WorkflowID:    "w1",
		Name:          "feature",
		BaseVersionID: base.ID,
	})
	require.NoError(t, err)

	featureVersion, err := env.versions.CreateVersion(t.Context(), services.CreateVersionParams{
		WorkflowID:      "w1",
		BranchID:        feature.ID,
		Spec:            triggerAgentSpec(),
		ChangeType:      models.ChangeTypeMinor,
		ParentVersionID: base.ID,
	})
	require.NoError(t, err)

	_, err = env.branches.AdvanceHead(t.Context(), feature.ID, featureVersion.ID)
	require.NoError(t, err)

	result, err := env.control.Merge(t.Context(), feature.ID, mainBranch.ID, services.MergeStrategyAuto)
	require.NoError(t, err)
	require.Equal(t, models.MergeStatusMerged, result.Status)

	// The source branch is frozen after the first merge.
	_, err = env.control.Merge(t.Context(), feature.ID, mainBranch.ID, services.MergeStrategyAuto)
	require.Error(t, err)
	assert.ErrorIs(t, err, services.ErrBranchNotActive)
	assert.True(t, services.IsConflictError(err))

	updatedMain, err := env.branches.GetBranch(t.Context(), mainBranch.ID)
	require.NoError(t, err)
	assert.Equal(t, result.Version.ID, updatedMain.HeadVersionID)
}

func TestMerge_ArchivedTargetRejected(t *testing.T) {
	env := newTestEnv(t)

	_, base, err := env.branches.InitWorkflow(t.Context(), "w1", triggerOnlySpec(), "")
	require.NoError(t, err)

	feature, err := env.branches.CreateBranch(t.Context(), services.CreateBranchParams{
		WorkflowID:    "w1",
		Name:          "feature",
		BaseVersionID: base.ID,
	})
	require.NoError(t, err)

	retired, err := env.branches.CreateBranch(t.Context(), services.CreateBranchParams{
		WorkflowID:    "w1",
		Name:          "retired",
		BaseVersionID: base.ID,
	})
	require.NoError(t, err)

	_, err = env.branches.ArchiveBranch(t.Context(), retired.ID)
	require.NoError(t, err)

	_, err = env.control.Merge(t.Context(), feature.ID, retired.ID, services.MergeStrategyAuto)
	require.Error(t, err)
	assert.ErrorIs(t, err, services.ErrBranchNotActive)
}

func TestMerge_ConflictsLeaveHeadsUntouched(t *testing.T) {
	env := newTestEnv(t)

	mainBranch, base, err := env.branches.InitWorkflow(t.Context(), "w1", triggerAgentSpec(), "")
	require.NoError(t, err)

	feature, err := env.branches.CreateBranch(t.Context(), services.CreateBranchParams{
		WorkflowID:    "w1",
		Name:          "feature",
		BaseVersionID: base.ID,
	})
	require.NoError(t, err)

	// Both sides relabel agent_1, differently.
	featureSpec := triggerAgentSpec()
	featureSpec.Nodes[1].Label = "Summarizer"

	featureVersion, err := env.versions.CreateVersion(t.Context(), services.CreateVersionParams{
		WorkflowID:      "w1",
		BranchID:        feature.ID,
		Spec:            featureSpec,
		ChangeType:      models.ChangeTypePatch,
		ParentVersionID: base.ID,
	})
	require.NoError(t, err)

	_, err = env.branches.AdvanceHead(t.Context(), feature.ID, featureVersion.ID)
	require.NoError(t, err)

	mainSpec := triggerAgentSpec()
	mainSpec.Nodes[1].Label = "Planner"

	mainVersion, err := env.versions.CreateVersion(t.Context(), services.CreateVersionParams{
		WorkflowID:      "w1",
		BranchID:        mainBranch.ID,
		Spec:            mainSpec,
		ChangeType:      models.ChangeTypePatch,
		ParentVersionID: base.ID,
	})
	require.NoError(t, err)

	_, err = env.branches.AdvanceHead(t.Context(), mainBranch.ID, mainVersion.ID)
	require.NoError(t, err)

	result, err := env.control.Merge(t.Context(), feature.ID, mainBranch.ID, services.MergeStrategyAuto)
	require.NoError(t, err)

	assert.Equal(t, models.MergeStatusConflicts, result.Status)
	assert.Equal(t, []string{"agent_1"}, result.Conflicts)
	assert.Nil(t, result.Version)

	// No mutation happened on either branch.
	updatedMain, err := env.branches.GetBranch(t.Context(), mainBranch.ID)
	require.NoError(t, err)
	assert.Equal(t, mainVersion.ID, updatedMain.HeadVersionID)

	updatedFeature, err := env.branches.GetBranch(t.Context(), feature.ID)
	require.NoError(t, err)
	assert.Equal(t, featureVersion.ID, updatedFeature.HeadVersionID)
	assert.Equal(t, models.BranchStatusActive, updatedFeature.Status)
}

func TestMerge_IdenticalChangesAreNotConflicts(t *testing.T) {
	env := newTestEnv(t)

	mainBranch, base, err := env.branches.InitWorkflow(t.Context(), "w1", triggerAgentSpec(), "")
	require.NoError(t, err)

	feature, err := env.branches.CreateBranch(t.Context(), services.CreateBranchParams{
		WorkflowID:    "w1",
		Name:          "feature",
		BaseVersionID: base.ID,
	})
	require.NoError(t, err)

	// Both sides arrive at the same label.
	relabeled := triggerAgentSpec()
	relabeled.Nodes[1].Label = "Planner"

	featureVersion, err := env.versions.CreateVersion(t.Context(), services.CreateVersionParams{
		WorkflowID:      "w1",
		BranchID:        feature.ID,
		Spec:            relabeled,
		ChangeType:      models.ChangeTypePatch,
		ParentVersionID: base.ID,
	})
	require.NoError(t, err)

	_, err = env.branches.AdvanceHead(t.Context(), feature.ID, featureVersion.ID)
	require.NoError(t, err)

	mainVersion, err := env.versions.CreateVersion(t.Context(), services.CreateVersionParams{
		WorkflowID:      "w1",
		BranchID:        mainBranch.ID,
		Spec:            relabeled.Clone(),
		ChangeType:      models.ChangeTypePatch,
		ParentVersionID: base.ID,
	})
	require.NoError(t, err)

	_, err = env.branches.AdvanceHead(t.Context(), mainBranch.ID, mainVersion.ID)
	require.NoError(t, err)

	result, err := env.control.Merge(t.Context(), feature.ID, mainBranch.ID, services.MergeStrategyAuto)
	require.NoError(t, err)
	assert.Equal(t, models.MergeStatusMerged, result.Status)
}

func TestMerge_NoCommonAncestor(t *testing.T) {
	env := newTestEnv(t)

	_, base, err := env.branches.InitWorkflow(t.Context(), "w1", triggerOnlySpec(), "")
	require.NoError(t, err)

	// An unrelated root version in the same workflow.
	orphanRoot, err := env.versions.CreateVersion(t.Context(), services.CreateVersionParams{
		WorkflowID: "w1",
		BranchID:   "detached",
		Spec:       triggerOnlySpec(),
		ChangeType: models.ChangeTypeMajor,
	})
	require.NoError(t, err)

	branchA, err := env.branches.CreateBranch(t.Context(), services.CreateBranchParams{
		WorkflowID:    "w1",
		Name:          "from-main",
		BaseVersionID: base.ID,
	})
	require.NoError(t, err)

	branchB, err := env.branches.CreateBranch(t.Context(), services.CreateBranchParams{
		WorkflowID:    "w1",
		Name:          "from-orphan",
		BaseVersionID: orphanRoot.ID,
	})
	require.NoError(t, err)

	_, err = env.control.Merge(t.Context(), branchA.ID, branchB.ID, services.MergeStrategyAuto)
	require.Error(t, err)
	assert.ErrorIs(t, err, services.ErrNoCommonAncestor)
}

func TestMerge_UnknownStrategy(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.control.Merge(t.Context(), "a", "b", "theirs")
	require.Error(t, err)
	assert.ErrorIs(t, err, services.ErrUnknownMergeStrategy)
	assert.True(t, services.IsValidationError(err))
}

func TestMerge_CrossWorkflowBranches(t *testing.T) {
	env := newTestEnv(t)

	branchA, _, err := env.branches.InitWorkflow(t.Context(), "w1", triggerOnlySpec(), "")
	require.NoError(t, err)

	branchB, _, err := env.branches.InitWorkflow(t.Context(), "w2", triggerOnlySpec(), "")
	require.NoError(t, err)

	_, err = env.control.Merge(t.Context(), branchA.ID, branchB.ID, services.MergeStrategyAuto)
	require.Error(t, err)
	assert.ErrorIs(t, err, services.ErrCrossWorkflowViolation)
}
