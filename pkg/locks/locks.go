// Package locks provides per-workflow serialization for operations that
// read a branch head and append a version based on it.
package locks

import (
	"context"
	"errors"
	"time"
)

// ErrLockHeld is returned when a lock cannot be acquired because another
// holder owns it.
var ErrLockHeld = errors.New("lock already held")

// DefaultLeaseTTL bounds how long a crashed holder can block a workflow.
const DefaultLeaseTTL = 30 * time.Second

// Locker serializes mutating operations per key. Acquire blocks until
// the lock is obtained or the context is done; the returned release
// function must be called exactly once.
type Locker interface {
	Acquire(ctx context.Context, key string) (release func(), err error)
}
