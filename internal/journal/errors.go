package journal

import "errors"

var (
	// ErrUnauthenticated means no identity was present when an operation
	// requiring one began; nothing was persisted.
	ErrUnauthenticated = errors.New("not authenticated")
	// ErrSyncFailed means the binary or metadata write failed and the log
	// entry was not created. A binary persisted before the failing step is
	// an accepted orphan, logged but never retried.
	ErrSyncFailed = errors.New("sync failed")
	// ErrDeleteFailed means the metadata deletion failed; the local
	// collection is left unchanged until the next refresh.
	ErrDeleteFailed = errors.New("delete failed")
	// ErrRefreshFailed means listing failed; the local collection keeps
	// the last known-good snapshot.
	ErrRefreshFailed = errors.New("refresh failed")
	// ErrSubmitInFlight rejects a submission while another is in flight
	// for the same controller.
	ErrSubmitInFlight = errors.New("submit already in flight")
)
