package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/daylog/backend/internal/auth"
	"github.com/daylog/backend/internal/config"
	"github.com/daylog/backend/internal/db"
	"github.com/daylog/backend/internal/handlers"
	"github.com/daylog/backend/internal/journal"
	"github.com/daylog/backend/internal/middleware"
	"github.com/daylog/backend/internal/repositories"
	"github.com/daylog/backend/internal/storage"
)

// journalRegistry adapts the concrete per-owner registry to the handler
// interface.
type journalRegistry struct {
	registry *journal.Registry
}

func (j journalRegistry) For(ownerID string) handlers.Journal {
	return j.registry.For(ownerID)
}

// buildDependencies wires together concrete implementations used by the
// HTTP handlers. The returned cleanup func drains background workers and
// must be called during shutdown.
func buildDependencies(ctx context.Context, pool db.Pool, cfg config.Config) (handlers.Dependencies, func(context.Context) error, error) {
	blobStore, err := storage.NewS3Storage(ctx, cfg.ObjectStore)
	if err != nil {
		return handlers.Dependencies{}, nil, fmt.Errorf("configure object storage: %w", err)
	}

	logStore := repositories.NewPostgresLogRepository(pool)
	sessionStore := repositories.NewPostgresSessionStore(pool)

	cleaner := journal.NewCleaner(blobStore, blobStore.Key, journal.CleanerConfig{
		QueueSize: cfg.CleanupQueue,
		Workers:   cfg.CleanupWorkers,
	}, slog.Default())

	registry := journal.NewRegistry(blobStore, logStore, cleaner, slog.Default())

	deps := handlers.Dependencies{
		Users:         repositories.NewPostgresUserRepository(pool),
		Sessions:      auth.NewManager(cfg.AccessTTL, cfg.RefreshTTL, sessionStore),
		Journals:      journalRegistry{registry: registry},
		Resolver:      storage.NewCachedResolver(blobStore.Client(), cfg.ObjectStore.Bucket, cfg.LocatorTTL),
		AuthLimiter:   middleware.NewIPRateLimiter(10, time.Minute, 5, 10*time.Minute),
		UploadLimiter: middleware.NewIPRateLimiter(6, time.Minute, 3, 10*time.Minute),
	}

	cleanup := func(ctx context.Context) error {
		return cleaner.Shutdown(ctx)
	}

	return deps, cleanup, nil
}
