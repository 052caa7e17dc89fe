package journal

import (
	"log/slog"
	"sync"
)

// Registry hands out one Controller per owner, lazily constructed over a
// shared set of stores. Controllers live for the process lifetime; the
// per-owner cache is what makes repeat listings cheap.
type Registry struct {
	blobs   BlobStore
	logs    LogStore
	cleaner *Cleaner
	logger  *slog.Logger

	mu          sync.Mutex
	controllers map[string]*Controller
}

// NewRegistry constructs a registry over the shared stores.
func NewRegistry(blobs BlobStore, logs LogStore, cleaner *Cleaner, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		blobs:       blobs,
		logs:        logs,
		cleaner:     cleaner,
		logger:      logger,
		controllers: make(map[string]*Controller),
	}
}

// For returns the controller scoped to the owner, creating it on first use.
func (r *Registry) For(ownerID string) *Controller {
	r.mu.Lock()
	defer r.mu.Unlock()

	if c, ok := r.controllers[ownerID]; ok {
		return c
	}

	c := NewController(StaticIdentity(ownerID), r.blobs, r.logs, r.cleaner, r.logger.With("owner", ownerID))
	r.controllers[ownerID] = c
	return c
}
