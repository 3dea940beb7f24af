package services_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vergohq/vergo/pkg/models"
	"github.com/vergohq/vergo/pkg/persistence"
	"github.com/vergohq/vergo/pkg/services"
)

func TestCreateVersion_FirstVersionIsFixed(t *testing.T) {
	env := newTestEnv(t)

	version, err := env.versions.CreateVersion(t.Context(), services.CreateVersionParams{
		WorkflowID: "workflow-1",
		BranchID:   "branch-1",
		Spec:       triggerOnlySpec(),
		ChangeType: models.ChangeTypeMajor,
	})
	require.NoError(t, err)

	assert.Equal(t, "1.0.0", version.Version)
	assert.Equal(t, 1, version.VersionNumber)
	assert.Equal(t, "tester@example.com", version.CreatedBy)
}

func TestCreateVersion_SemverBumps(t *testing.T) {
	env := newTestEnv(t)

	parent, err := env.versions.CreateVersion(t.Context(), services.CreateVersionParams{
		WorkflowID: "workflow-1",
		BranchID:   "branch-1",
		Spec:       triggerOnlySpec(),
		ChangeType: models.ChangeTypeMajor,
	})
	require.NoError(t, err)

	testCases := []struct {
		name       string
		changeType models.ChangeType
		expected   string
	}{
		{"patch", models.ChangeTypePatch, "1.0.1"},
		{"minor", models.ChangeTypeMinor, "1.1.0"},
		{"major", models.ChangeTypeMajor, "2.0.0"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			version, err := env.versions.CreateVersion(t.Context(), services.CreateVersionParams{
				WorkflowID:      "workflow-1",
				BranchID:        "branch-1",
				Spec:            triggerAgentSpec(),
				ChangeType:      tc.changeType,
				ParentVersionID: parent.ID,
			})
			require.NoError(t, err)
			assert.Equal(t, tc.expected, version.Version)
		})
	}
}

func TestCreateVersion_InvalidChangeType(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.versions.CreateVersion(t.Context(), services.CreateVersionParams{
		WorkflowID: "workflow-1",
		BranchID:   "branch-1",
		Spec:       triggerOnlySpec(),
		ChangeType: models.ChangeType("hotfix"),
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrInvalidChangeType)
	assert.True(t, services.IsValidationError(err))

	// Empty is just as invalid; never defaulted to patch.
	_, err = env.versions.CreateVersion(t.Context(), services.CreateVersionParams{
		WorkflowID: "workflow-1",
		BranchID:   "branch-1",
		Spec:       triggerOnlySpec(),
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrInvalidChangeType)
}

func TestCreateVersion_SpecValidation(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.versions.CreateVersion(t.Context(), services.CreateVersionParams{
		WorkflowID: "workflow-1",
		BranchID:   "branch-1",
		ChangeType: models.ChangeTypePatch,
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, services.ErrSpecRequired)

	dangling := &models.WorkflowSpec{
		Nodes: []*models.Node{{ID: "trigger_1", Type: models.NodeTypeTrigger}},
		Edges: []*models.Edge{{Source: "trigger_1", Target: "ghost"}},
	}

	_, err = env.versions.CreateVersion(t.Context(), services.CreateVersionParams{
		WorkflowID: "workflow-1",
		BranchID:   "branch-1",
		Spec:       dangling,
		ChangeType: models.ChangeTypePatch,
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrDanglingEdge)
}

func TestCreateVersion_CrossWorkflowParent(t *testing.T) {
	env := newTestEnv(t)

	parent, err := env.versions.CreateVersion(t.Context(), services.CreateVersionParams{
		WorkflowID: "workflow-1",
		BranchID:   "branch-1",
		Spec:       triggerOnlySpec(),
		ChangeType: models.ChangeTypeMajor,
	})
	require.NoError(t, err)

	_, err = env.versions.CreateVersion(t.Context(), services.CreateVersionParams{
		WorkflowID:      "workflow-2",
		BranchID:        "branch-2",
		Spec:            triggerOnlySpec(),
		ChangeType:      models.ChangeTypePatch,
		ParentVersionID: parent.ID,
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, services.ErrCrossWorkflowViolation)
	assert.True(t, services.IsConflictError(err))
}

func TestCreateVersion_SpecIsCopied(t *testing.T) {
	env := newTestEnv(t)

	spec := triggerOnlySpec()

	version, err := env.versions.CreateVersion(t.Context(), services.CreateVersionParams{
		WorkflowID: "workflow-1",
		BranchID:   "branch-1",
		Spec:       spec,
		ChangeType: models.ChangeTypeMajor,
	})
	require.NoError(t, err)

	spec.Nodes[0].Label = "mutated after save"

	loaded, err := env.versions.GetVersion(t.Context(), version.ID)
	require.NoError(t, err)
	assert.Equal(t, "Start", loaded.Spec.Nodes[0].Label)
}

func TestCreateVersion_ReleaseFlag(t *testing.T) {
	env := newTestEnv(t)

	release, err := env.versions.CreateVersion(t.Context(), services.CreateVersionParams{
		WorkflowID: "workflow-1",
		BranchID:   "branch-1",
		Spec:       triggerOnlySpec(),
		ChangeType: models.ChangeTypeMajor,
		IsRelease:  true,
	})
	require.NoError(t, err)
	assert.True(t, release.IsRelease)

	reloaded, err := env.versions.GetVersion(t.Context(), release.ID)
	require.NoError(t, err)
	assert.True(t, reloaded.IsRelease)

	draft, err := env.versions.CreateVersion(t.Context(), services.CreateVersionParams{
		WorkflowID:      "workflow-1",
		BranchID:        "branch-1",
		Spec:            triggerOnlySpec(),
		ChangeType:      models.ChangeTypePatch,
		ParentVersionID: release.ID,
	})
	require.NoError(t, err)
	assert.False(t, draft.IsRelease)
}

func TestListVersions_NewestFirst(t *testing.T) {
	env := newTestEnv(t)

	first, err := env.versions.CreateVersion(t.Context(), services.CreateVersionParams{
		WorkflowID: "workflow-1",
		BranchID:   "branch-1",
		Spec:       triggerOnlySpec(),
		ChangeType: models.ChangeTypeMajor,
	})
	require.NoError(t, err)

	second, err := env.versions.CreateVersion(t.Context(), services.CreateVersionParams{
		WorkflowID:      "workflow-1",
		BranchID:        "branch-1",
		Spec:            triggerAgentSpec(),
		ChangeType:      models.ChangeTypePatch,
		ParentVersionID: first.ID,
	})
	require.NoError(t, err)

	result, err := env.versions.ListVersions(t.Context(), "workflow-1", persistence.ListVersionsOptions{})
	require.NoError(t, err)
	require.Len(t, result.Versions, 2)
	assert.Equal(t, second.ID, result.Versions[0].ID)
	assert.Equal(t, first.ID, result.Versions[1].ID)
}

func TestTagVersion_Idempotent(t *testing.T) {
	env := newTestEnv(t)

	version, err := env.versions.CreateVersion(t.Context(), services.CreateVersionParams{
		WorkflowID: "workflow-1",
		BranchID:   "branch-1",
		Spec:       triggerOnlySpec(),
		ChangeType: models.ChangeTypeMajor,
	})
	require.NoError(t, err)

	tagged, err := env.versions.TagVersion(t.Context(), version.ID, "stable")
	require.NoError(t, err)
	assert.Equal(t, []string{"stable"}, tagged.Tags)

	tagged, err = env.versions.TagVersion(t.Context(), version.ID, "stable")
	require.NoError(t, err)
	assert.Equal(t, []string{"stable"}, tagged.Tags)
}

func TestTagVersion_NotFound(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.versions.TagVersion(t.Context(), "missing-version", "stable")
	require.Error(t, err)
	assert.True(t, services.IsNotFoundError(err))
}
