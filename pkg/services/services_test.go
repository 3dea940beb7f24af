package services_test

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vergohq/vergo/pkg/identity"
	"github.com/vergohq/vergo/pkg/locks"
	"github.com/vergohq/vergo/pkg/models"
	"github.com/vergohq/vergo/pkg/persistence/file"
	"github.com/vergohq/vergo/pkg/services"
)

type testEnv struct {
	versions *services.Versions
	branches *services.Branches
	control  *services.Control
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	persistence := file.NewPersistence(t.TempDir())

	t.Cleanup(func() {
		require.NoError(t, persistence.Close(t.Context()))
	})

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	resolver := identity.NewContextIdentity(identity.User{Email: "tester@example.com", Role: "admin"})
	locker := locks.NewMemoryLocker()

	return &testEnv{
		versions: services.NewVersions(persistence, resolver, nil, logger),
		branches: services.NewBranches(persistence, resolver, nil, locker, logger),
		control:  services.NewControl(persistence, resolver, nil, locker, nil, logger),
	}
}

func triggerOnlySpec() *models.WorkflowSpec {
	return &models.WorkflowSpec{
		Nodes: []*models.Node{
			{ID: "trigger_1", Type: models.NodeTypeTrigger, Label: "Start"},
		},
		Edges: []*models.Edge{},
	}
}

func triggerAgentSpec() *models.WorkflowSpec {
	return &models.WorkflowSpec{
		Nodes: []*models.Node{
			{ID: "trigger_1", Type: models.NodeTypeTrigger, Label: "Start"},
			{ID: "agent_1", Type: models.NodeTypeAgent, Label: "Researcher"},
		},
		Edges: []*models.Edge{
			{Source: "trigger_1", Target: "agent_1"},
		},
	}
}
