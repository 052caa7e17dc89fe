package capture

import (
	"context"
	"errors"
)

// Constraints describe the stream requested from a device.
type Constraints struct {
	// Facing selects the camera ("user" or "environment").
	Facing string
	// Audio requests a microphone track alongside video.
	Audio bool
}

// Device grants access to a camera/microphone pipeline.
type Device interface {
	// RequestStream acquires a live stream matching the constraints. A
	// returned error means no device handle is left open.
	RequestStream(ctx context.Context, c Constraints) (Stream, error)
}

// Stream is one live acquisition. Start begins encoded-chunk delivery to
// the sink, Stop halts delivery, and Close releases the underlying
// hardware tracks. Close must be safe to call after Stop and at most once.
type Stream interface {
	Start(sink func(chunk []byte))
	Stop()
	Close()
}

var (
	// ErrAcquisitionFailed reports a device permission or hardware error.
	// It is terminal for the session; re-acquiring is the caller's decision.
	ErrAcquisitionFailed = errors.New("device acquisition failed")
)
