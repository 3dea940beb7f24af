// Package file provides file-based persistence for versions and branches,
// intended for development and tests.
package file

import (
	"context"
	"os"
	"strings"
	"sync"

	"github.com/vergohq/vergo/pkg/persistence"
)

// Persistence implements the persistence.Persistence interface using the
// file system. A single store-level mutex serializes version number
// allocation and branch head swaps, which is enough for one process.
type Persistence struct {
	root        string
	mu          sync.Mutex
	versionRepo *VersionRepository
	branchRepo  *BranchRepository
}

// NewPersistence creates a new instance of Persistence with the specified root directory.
func NewPersistence(root string) *Persistence {
	cleanRoot := strings.Replace(root, "file://", "", 1)

	fp := &Persistence{root: cleanRoot}
	fp.versionRepo = NewVersionRepository(cleanRoot, &fp.mu)
	fp.branchRepo = NewBranchRepository(cleanRoot, &fp.mu)

	return fp
}

// Close performs any necessary cleanup. For file-based persistence, there is nothing to clean up.
func (fp *Persistence) Close(_ context.Context) error {
	return nil
}

// HealthCheck checks if the file persistence layer is healthy by verifying the root directory exists.
func (fp *Persistence) HealthCheck(_ context.Context) error {
	if _, err := os.Stat(fp.root); os.IsNotExist(err) {
		return os.ErrNotExist
	}

	return nil
}

// VersionRepository returns the version repository implementation for file persistence.
func (fp *Persistence) VersionRepository() persistence.VersionRepository {
	return fp.versionRepo
}

// BranchRepository returns the branch repository implementation for file persistence.
func (fp *Persistence) BranchRepository() persistence.BranchRepository {
	return fp.branchRepo
}
