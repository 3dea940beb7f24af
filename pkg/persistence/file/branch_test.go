package file

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vergohq/vergo/pkg/models"
	"github.com/vergohq/vergo/pkg/persistence"
)

func newBranch(workflowID, name string, isDefault bool) *models.Branch {
	return &models.Branch{
		ID:            uuid.New().String(),
		WorkflowID:    workflowID,
		Name:          name,
		IsDefault:     isDefault,
		BaseVersionID: "v-base",
		HeadVersionID: "v-base",
		Status:        models.BranchStatusActive,
	}
}

func TestBranchRepository_CreateAndGet(t *testing.T) {
	p := NewPersistence(t.TempDir())
	repo := p.BranchRepository()

	branch := newBranch("w1", "main", true)
	require.NoError(t, repo.Create(t.Context(), branch))

	loaded, err := repo.GetByID(t.Context(), branch.ID)
	require.NoError(t, err)
	assert.Equal(t, "main", loaded.Name)
	assert.True(t, loaded.IsDefault)
	assert.False(t, loaded.CreatedAt.IsZero())
}

func TestBranchRepository_Create_DuplicateName(t *testing.T) {
	p := NewPersistence(t.TempDir())
	repo := p.BranchRepository()

	require.NoError(t, repo.Create(t.Context(), newBranch("w1", "feature-x", false)))

	err := repo.Create(t.Context(), newBranch("w1", "feature-x", false))
	require.Error(t, err)
	assert.True(t, persistence.IsDuplicateBranchName(err))

	// Names are case-sensitive; a different case is a different branch.
	assert.NoError(t, repo.Create(t.Context(), newBranch("w1", "Feature-X", false)))

	// Same name on a different workflow is fine.
	assert.NoError(t, repo.Create(t.Context(), newBranch("w2", "feature-x", false)))
}

func TestBranchRepository_Create_ReusesArchivedName(t *testing.T) {
	p := NewPersistence(t.TempDir())
	repo := p.BranchRepository()

	stale := newBranch("w1", "feature-x", false)
	require.NoError(t, repo.Create(t.Context(), stale))

	_, err := repo.UpdateStatus(t.Context(), stale.ID, models.BranchStatusArchived)
	require.NoError(t, err)

	// Only active branches participate in the uniqueness check.
	assert.NoError(t, repo.Create(t.Context(), newBranch("w1", "feature-x", false)))
}

func TestBranchRepository_GetDefault(t *testing.T) {
	p := NewPersistence(t.TempDir())
	repo := p.BranchRepository()

	require.NoError(t, repo.Create(t.Context(), newBranch("w1", "feature", false)))
	main := newBranch("w1", "main", true)
	require.NoError(t, repo.Create(t.Context(), main))

	found, err := repo.GetDefault(t.Context(), "w1")
	require.NoError(t, err)
	assert.Equal(t, main.ID, found.ID)

	_, err = repo.GetDefault(t.Context(), "w-without-default")
	require.Error(t, err)
	assert.True(t, persistence.IsBranchNotFound(err))
	assert.ErrorIs(t, err, persistence.ErrDefaultBranchNotFound)
}

func TestBranchRepository_ListByWorkflow_DefaultFirst(t *testing.T) {
	p := NewPersistence(t.TempDir())
	repo := p.BranchRepository()

	require.NoError(t, repo.Create(t.Context(), newBranch("w1", "feature-a", false)))
	require.NoError(t, repo.Create(t.Context(), newBranch("w1", "main", true)))
	require.NoError(t, repo.Create(t.Context(), newBranch("w2", "main", true)))

	branches, err := repo.ListByWorkflow(t.Context(), "w1")
	require.NoError(t, err)
	require.Len(t, branches, 2)
	assert.Equal(t, "main", branches[0].Name)
}

func TestBranchRepository_UpdateHead_CAS(t *testing.T) {
	p := NewPersistence(t.TempDir())
	repo := p.BranchRepository()

	branch := newBranch("w1", "main", true)
	require.NoError(t, repo.Create(t.Context(), branch))

	updated, err := repo.UpdateHead(t.Context(), branch.ID, "v-base", "v-2")
	require.NoError(t, err)
	assert.Equal(t, "v-2", updated.HeadVersionID)

	// Stale expected head must fail and leave the branch untouched.
	_, err = repo.UpdateHead(t.Context(), branch.ID, "v-base", "v-3")
	require.Error(t, err)
	assert.True(t, persistence.IsConcurrentModification(err))

	current, err := repo.GetByID(t.Context(), branch.ID)
	require.NoError(t, err)
	assert.Equal(t, "v-2", current.HeadVersionID)
}

func TestBranchRepository_UpdateStatus(t *testing.T) {
	p := NewPersistence(t.TempDir())
	repo := p.BranchRepository()

	branch := newBranch("w1", "feature", false)
	require.NoError(t, repo.Create(t.Context(), branch))

	archived, err := repo.UpdateStatus(t.Context(), branch.ID, models.BranchStatusArchived)
	require.NoError(t, err)
	assert.Equal(t, models.BranchStatusArchived, archived.Status)

	_, err = repo.UpdateStatus(t.Context(), "missing", models.BranchStatusArchived)
	assert.True(t, persistence.IsBranchNotFound(err))
}
