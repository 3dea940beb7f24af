package cmd

import (
	"context"
	"log/slog"
	"strings"

	"github.com/vergohq/vergo/pkg/locks"
	"github.com/vergohq/vergo/pkg/persistence"
	"github.com/vergohq/vergo/pkg/persistence/file"
	"github.com/vergohq/vergo/pkg/persistence/postgresql"
)

// NewPersistence selects a storage backend by the database URL scheme.
// postgres:// and postgresql:// use PostgreSQL; anything else falls back
// to the file store.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) persistence.Persistence {
	switch parseProvider(databaseURL) {
	case "postgres", "postgresql":
		p, err := postgresql.NewPersistence(ctx, logger, databaseURL)
		if err != nil {
			panic(err)
		}

		return p
	default:
		return file.NewPersistence(databaseURL)
	}
}

// NewLocker selects the per-workflow locker. A redis:// URL enables the
// distributed lease; otherwise locking is in-process.
func NewLocker(ctx context.Context, logger *slog.Logger, redisURL string) locks.Locker {
	if redisURL == "" {
		return locks.NewMemoryLocker()
	}

	addr := strings.TrimPrefix(redisURL, "redis://")

	l, err := locks.NewRedisLocker(ctx, logger, addr, locks.DefaultLeaseTTL)
	if err != nil {
		panic(err)
	}

	return l
}

func parseProvider(databaseURL string) string {
	parts := strings.SplitN(databaseURL, "://", 2)

	return parts[0]
}
