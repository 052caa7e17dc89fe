package journal

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// CleanerConfig controls the concurrency characteristics of the cleaner.
type CleanerConfig struct {
	QueueSize int
	Workers   int
}

// Cleaner asynchronously deletes binaries whose metadata records are gone.
// Deletion is best-effort: failures are logged and never surfaced, and a
// locator that cannot be mapped back to an object key is skipped.
type Cleaner struct {
	blobs  BlobStore
	mapKey func(locator string) (key string, ok bool)
	logger *slog.Logger

	jobs   chan cleanupJob
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	once   sync.Once

	// mu orders Enqueue sends against the close of jobs during Shutdown.
	mu     sync.Mutex
	closed bool
}

type cleanupJob struct {
	locator string
}

var errCleanerClosed = errors.New("media cleaner closed")

// NewCleaner constructs a background worker pool that removes binaries.
// mapKey translates a stored media locator into the object key to delete.
func NewCleaner(blobs BlobStore, mapKey func(string) (string, bool), cfg CleanerConfig, logger *slog.Logger) *Cleaner {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 16
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if logger == nil {
		logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())

	c := &Cleaner{
		blobs:  blobs,
		mapKey: mapKey,
		logger: logger,
		jobs:   make(chan cleanupJob, cfg.QueueSize),
		ctx:    ctx,
		cancel: cancel,
	}

	c.wg.Add(cfg.Workers)
	for i := 0; i < cfg.Workers; i++ {
		go c.worker()
	}

	return c
}

// Enqueue schedules deletion of the binary behind the supplied locator.
func (c *Cleaner) Enqueue(ctx context.Context, locator string) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return errCleanerClosed
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-c.ctx.Done():
		return errCleanerClosed
	case c.jobs <- cleanupJob{locator: locator}:
		return nil
	}
}

// Shutdown waits for the worker pool to drain outstanding jobs. The
// cancel fires before the mutex is taken so an Enqueue blocked on a full
// queue bails out instead of holding the lock.
func (c *Cleaner) Shutdown(ctx context.Context) error {
	c.once.Do(func() {
		c.cancel()
		c.mu.Lock()
		c.closed = true
		close(c.jobs)
		c.mu.Unlock()
	})

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return nil
	}
}

func (c *Cleaner) worker() {
	defer c.wg.Done()

	for job := range c.jobs {
		c.handleJob(job)
	}
}

func (c *Cleaner) handleJob(job cleanupJob) {
	if c.blobs == nil || c.mapKey == nil {
		c.logger.Error("media cleaner missing dependencies", "hasBlobs", c.blobs != nil, "hasMapKey", c.mapKey != nil)
		return
	}

	key, ok := c.mapKey(job.locator)
	if !ok {
		c.logger.Debug("skipping unmappable media locator", "locator", job.locator)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := c.blobs.Delete(ctx, key); err != nil {
		c.logger.Warn("media cleanup failed", "key", key, "error", err)
	}
}
