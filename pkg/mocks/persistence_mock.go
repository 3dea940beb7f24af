package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/vergohq/vergo/pkg/models"
	"github.com/vergohq/vergo/pkg/persistence"
)

// MockVersionRepository is a mock implementation of persistence.VersionRepository interface.
type MockVersionRepository struct {
	mock.Mock
}

func (m *MockVersionRepository) Create(ctx context.Context, version *models.Version) error {
	args := m.Called(ctx, version)

	return args.Error(0)
}

func (m *MockVersionRepository) GetByID(ctx context.Context, id string) (*models.Version, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.Version), args.Error(1)
}

func (m *MockVersionRepository) ListByWorkflow(ctx context.Context, workflowID string, opts persistence.ListVersionsOptions) (*persistence.VersionListResult, error) {
	args := m.Called(ctx, workflowID, opts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*persistence.VersionListResult), args.Error(1)
}

func (m *MockVersionRepository) AppendTag(ctx context.Context, versionID, tag string) (*models.Version, error) {
	args := m.Called(ctx, versionID, tag)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.Version), args.Error(1)
}

// MockBranchRepository is a mock implementation of persistence.BranchRepository interface.
type MockBranchRepository struct {
	mock.Mock
}

func (m *MockBranchRepository) Create(ctx context.Context, branch *models.Branch) error {
	args := m.Called(ctx, branch)

	return args.Error(0)
}

func (m *MockBranchRepository) GetByID(ctx context.Context, id string) (*models.Branch, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.Branch), args.Error(1)
}

func (m *MockBranchRepository) GetDefault(ctx context.Context, workflowID string) (*models.Branch, error) {
	args := m.Called(ctx, workflowID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.Branch), args.Error(1)
}

func (m *MockBranchRepository) ListByWorkflow(ctx context.Context, workflowID string) ([]*models.Branch, error) {
	args := m.Called(ctx, workflowID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*models.Branch), args.Error(1)
}

func (m *MockBranchRepository) UpdateHead(ctx context.Context, branchID, expectedHeadID, newHeadID string) (*models.Branch, error) {
	args := m.Called(ctx, branchID, expectedHeadID, newHeadID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.Branch), args.Error(1)
}

func (m *MockBranchRepository) UpdateStatus(ctx context.Context, branchID string, status models.BranchStatus) (*models.Branch, error) {
	args := m.Called(ctx, branchID, status)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.Branch), args.Error(1)
}

// MockPersistence is a mock implementation of persistence.Persistence interface.
type MockPersistence struct {
	mock.Mock

	versionRepo *MockVersionRepository
	branchRepo  *MockBranchRepository
}

// NewMockPersistence creates a new MockPersistence with all mock repositories.
func NewMockPersistence() *MockPersistence {
	return &MockPersistence{
		versionRepo: &MockVersionRepository{},
		branchRepo:  &MockBranchRepository{},
	}
}

// GetMockVersionRepository returns the underlying mock version repository for setting up expectations.
func (m *MockPersistence) GetMockVersionRepository() *MockVersionRepository {
	return m.versionRepo
}

// GetMockBranchRepository returns the underlying mock branch repository for setting up expectations.
func (m *MockPersistence) GetMockBranchRepository() *MockBranchRepository {
	return m.branchRepo
}

func (m *MockPersistence) VersionRepository() persistence.VersionRepository {
	return m.versionRepo
}

func (m *MockPersistence) BranchRepository() persistence.BranchRepository {
	return m.branchRepo
}

func (m *MockPersistence) HealthCheck(ctx context.Context) error {
	args := m.Called(ctx)

	return args.Error(0)
}

func (m *MockPersistence) Close(ctx context.Context) error {
	args := m.Called(ctx)

	return args.Error(0)
}
