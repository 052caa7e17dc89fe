package journal

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/daylog/backend/internal/capture"
	"github.com/daylog/backend/internal/models"
)

// BlobStore persists binary media objects and returns a stable locator.
type BlobStore interface {
	Put(ctx context.Context, key string, r io.Reader) (string, error)
	Delete(ctx context.Context, key string) error
}

// LogStore is the durable, authoritative store of log entry metadata.
type LogStore interface {
	Insert(ctx context.Context, entry models.LogEntry) (models.LogEntry, error)
	ListByOwner(ctx context.Context, ownerID string) ([]models.LogEntry, error)
	DeleteByID(ctx context.Context, ownerID, id string) error
}

// IdentityProvider resolves the identity that scopes every operation.
type IdentityProvider interface {
	// CurrentIdentity returns the owner id, or "" when signed out.
	CurrentIdentity(ctx context.Context) (string, error)
	// OnIdentityChange registers a callback fired whenever the identity
	// changes; the returned func cancels the registration.
	OnIdentityChange(fn func(ownerID string)) (cancel func())
}

// StaticIdentity is an IdentityProvider fixed to one owner, used where the
// identity was already established out of band.
type StaticIdentity string

func (s StaticIdentity) CurrentIdentity(context.Context) (string, error) { return string(s), nil }

func (StaticIdentity) OnIdentityChange(func(ownerID string)) func() { return func() {} }

// Controller bridges finished captures to durable storage and keeps a
// cached, ordered view of the owner's log entries consistent with the
// remote store. Views never mutate the cache; they read snapshots and
// request Submit/Refresh/Remove.
type Controller struct {
	identity IdentityProvider
	blobs    BlobStore
	logs     LogStore
	cleaner  *Cleaner
	logger   *slog.Logger

	// NowFunc overrides the clock in tests.
	NowFunc func() time.Time

	inFlight atomic.Bool

	mu      sync.RWMutex
	entries []models.LogEntry
	subs    map[int]func()
	nextSub int

	cancelIdentity func()
}

// NewController wires a sync controller. The cleaner is optional; without
// one, removed entries simply leave their binaries behind.
func NewController(identity IdentityProvider, blobs BlobStore, logs LogStore, cleaner *Cleaner, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}

	c := &Controller{
		identity: identity,
		blobs:    blobs,
		logs:     logs,
		cleaner:  cleaner,
		logger:   logger,
		subs:     make(map[int]func()),
	}

	// A sign-out or account switch must never leak the previous owner's
	// snapshot through the cache.
	c.cancelIdentity = identity.OnIdentityChange(func(string) {
		c.mu.Lock()
		c.entries = nil
		c.mu.Unlock()
		c.notify()
	})

	return c
}

// Close cancels the identity subscription. It does not shut down the
// cleaner, which is shared across controllers.
func (c *Controller) Close() {
	if c.cancelIdentity != nil {
		c.cancelIdentity()
		c.cancelIdentity = nil
	}
}

// Submit persists a finished recording: binary first, then the metadata
// record referencing it, then a full collection refresh. The returned
// entry carries the store-assigned id. Submissions are single-flight per
// controller.
func (c *Controller) Submit(ctx context.Context, blob capture.Blob, logType models.LogType, dateStr string) (models.LogEntry, error) {
	if !logType.Valid() {
		return models.LogEntry{}, fmt.Errorf("invalid log type %q", logType)
	}
	if _, err := time.Parse(dateFormat, dateStr); err != nil {
		return models.LogEntry{}, fmt.Errorf("invalid date %q: %w", dateStr, err)
	}

	if !c.inFlight.CompareAndSwap(false, true) {
		return models.LogEntry{}, ErrSubmitInFlight
	}
	defer c.inFlight.Store(false)

	owner, err := c.identity.CurrentIdentity(ctx)
	if err != nil || owner == "" {
		return models.LogEntry{}, ErrUnauthenticated
	}

	ts := c.now().UnixMilli()
	key := fmt.Sprintf("%s/%d%s", owner, ts, extensionFor(blob.MIME))

	locator, err := c.blobs.Put(ctx, key, bytes.NewReader(blob.Data))
	if err != nil {
		return models.LogEntry{}, fmt.Errorf("%w: persist media: %w", ErrSyncFailed, err)
	}

	entry := models.LogEntry{
		OwnerID:   owner,
		Type:      logType,
		DateStr:   dateStr,
		Timestamp: ts,
		MediaRef:  locator,
	}

	stored, err := c.logs.Insert(ctx, entry)
	if err != nil {
		// The binary outlives the failed metadata write as an accepted
		// orphan; cleanup is a maintenance concern, not a retry.
		c.logger.Warn("orphaned media object after metadata failure", "key", key, "owner", owner, "error", err)
		return models.LogEntry{}, fmt.Errorf("%w: insert metadata: %w", ErrSyncFailed, err)
	}

	if err := c.Refresh(ctx); err != nil {
		c.logger.Warn("refresh after submit failed", "owner", owner, "error", err)
	}

	return stored, nil
}

// Refresh replaces the cached collection wholesale with the store's
// point-in-time listing, ordered by timestamp descending. On failure the
// last known-good snapshot is preserved.
func (c *Controller) Refresh(ctx context.Context) error {
	owner, err := c.identity.CurrentIdentity(ctx)
	if err != nil || owner == "" {
		return ErrUnauthenticated
	}

	entries, err := c.logs.ListByOwner(ctx, owner)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrRefreshFailed, err)
	}

	c.mu.Lock()
	c.entries = entries
	c.mu.Unlock()
	c.notify()

	return nil
}

// Remove deletes the metadata record by id, then best-effort schedules the
// binary for cleanup. On deletion failure the cached collection is left
// unchanged.
func (c *Controller) Remove(ctx context.Context, id string) error {
	owner, err := c.identity.CurrentIdentity(ctx)
	if err != nil || owner == "" {
		return ErrUnauthenticated
	}

	var mediaRef string
	for _, entry := range c.Snapshot() {
		if entry.ID == id {
			mediaRef = entry.MediaRef
			break
		}
	}

	if err := c.logs.DeleteByID(ctx, owner, id); err != nil {
		return fmt.Errorf("%w: %w", ErrDeleteFailed, err)
	}

	if c.cleaner != nil && mediaRef != "" {
		if err := c.cleaner.Enqueue(ctx, mediaRef); err != nil {
			c.logger.Warn("schedule media cleanup", "owner", owner, "mediaRef", mediaRef, "error", err)
		}
	}

	if err := c.Refresh(ctx); err != nil {
		c.logger.Warn("refresh after remove failed", "owner", owner, "error", err)
	}

	return nil
}

// Snapshot returns a copy of the cached collection.
func (c *Controller) Snapshot() []models.LogEntry {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]models.LogEntry, len(c.entries))
	copy(out, c.entries)
	return out
}

// Subscribe registers a collection-changed callback and returns its
// cancellation func. Callbacks fire after every snapshot replacement.
func (c *Controller) Subscribe(fn func()) (cancel func()) {
	c.mu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = fn
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		delete(c.subs, id)
		c.mu.Unlock()
	}
}

func (c *Controller) notify() {
	c.mu.RLock()
	fns := make([]func(), 0, len(c.subs))
	for _, fn := range c.subs {
		fns = append(fns, fn)
	}
	c.mu.RUnlock()

	for _, fn := range fns {
		fn()
	}
}

func (c *Controller) now() time.Time {
	if c.NowFunc != nil {
		return c.NowFunc()
	}
	return time.Now().UTC()
}

func extensionFor(mime string) string {
	switch mime {
	case "video/webm":
		return ".webm"
	case "video/quicktime":
		return ".mov"
	default:
		return ".mp4"
	}
}
