package capture

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// State identifies where a capture session is in its lifecycle.
type State int

const (
	StateIdle State = iota
	StateRequesting
	StateLive
	StateRecording
	StateStopped
	StateFailed
	StateDisposed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRequesting:
		return "requesting"
	case StateLive:
		return "live"
	case StateRecording:
		return "recording"
	case StateStopped:
		return "stopped"
	case StateFailed:
		return "failed"
	case StateDisposed:
		return "disposed"
	}
	return "unknown"
}

// DefaultMIME is assumed for finished clips unless the device says otherwise.
const DefaultMIME = "video/mp4"

// Blob is one finished recording.
type Blob struct {
	Data []byte
	MIME string
}

// Session owns a device stream and the record/stop state machine. It emits
// exactly one Blob per Start/Stop pair on Output, and releases the device
// stream exactly once regardless of the exit path. A Session is not safe
// for use after Dispose.
type Session struct {
	device Device
	logger *slog.Logger

	mu       sync.Mutex
	state    State
	stream   Stream
	chunks   [][]byte
	elapsed  int
	tickStop chan struct{}

	out chan Blob
}

// NewSession constructs a session around the provided device.
func NewSession(device Device, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	return &Session{
		device: device,
		logger: logger,
		state:  StateIdle,
		out:    make(chan Blob, 1),
	}
}

// Output delivers finished recordings. The channel is closed by Dispose;
// a close without a value means the session ended without a finished clip.
// A blob left undrained when the next record/stop pair finishes is
// replaced by the newer clip.
func (s *Session) Output() <-chan Blob {
	return s.out
}

// State reports the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Elapsed reports whole seconds spent in the current or last recording.
func (s *Session) Elapsed() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.elapsed
}

// Acquire requests a live stream from the device. On failure the session
// enters a terminal failed state with no device handle left open, and the
// caller must abandon it. Valid only from the idle state.
func (s *Session) Acquire(ctx context.Context, c Constraints) error {
	s.mu.Lock()
	if s.state != StateIdle {
		state := s.state
		s.mu.Unlock()
		return fmt.Errorf("acquire from %s state", state)
	}
	s.state = StateRequesting
	s.mu.Unlock()

	stream, err := s.device.RequestStream(ctx, c)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateDisposed {
		// Disposed mid-request: release whatever was granted.
		if stream != nil {
			stream.Close()
		}
		return fmt.Errorf("session disposed during acquisition")
	}

	if err != nil {
		if stream != nil {
			stream.Close()
		}
		s.state = StateFailed
		s.logger.Warn("device acquisition failed", "facing", c.Facing, "audio", c.Audio, "error", err)
		return fmt.Errorf("%w: %w", ErrAcquisitionFailed, err)
	}

	s.stream = stream
	s.state = StateLive
	return nil
}

// Start begins accumulating encoded chunks and the one-second elapsed
// counter. A no-op unless the session holds a live, non-recording stream.
func (s *Session) Start() {
	s.mu.Lock()

	// A stopped session still holds the live stream, so a fresh recording
	// may begin until Dispose releases the hardware.
	if s.state != StateLive && s.state != StateStopped {
		s.mu.Unlock()
		return
	}

	s.chunks = nil
	s.elapsed = 0
	s.state = StateRecording
	s.startCounterLocked()
	stream := s.stream
	s.mu.Unlock()

	// Delivery happens on the device's goroutine; starting outside the
	// lock keeps a synchronous first chunk from deadlocking appendChunk.
	stream.Start(s.appendChunk)
}

// Stop finalizes the accumulated chunks into a single blob, halts the
// elapsed counter and emits the blob exactly once. A no-op unless recording.
func (s *Session) Stop() {
	s.mu.Lock()
	if s.state != StateRecording {
		s.mu.Unlock()
		return
	}
	stream := s.stream
	s.mu.Unlock()

	// Halting delivery waits on the device goroutine, which delivers
	// through appendChunk and needs the lock; same ordering as Start.
	stream.Stop()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateRecording {
		// Disposed while delivery was draining.
		return
	}

	s.stopCounterLocked()

	var buf bytes.Buffer
	for _, chunk := range s.chunks {
		buf.Write(chunk)
	}
	s.chunks = nil
	s.state = StateStopped

	s.emitLocked(Blob{Data: buf.Bytes(), MIME: DefaultMIME})
}

// Toggle stops an active recording or starts a new one.
func (s *Session) Toggle() {
	s.mu.Lock()
	recording := s.state == StateRecording
	s.mu.Unlock()

	if recording {
		s.Stop()
	} else {
		s.Start()
	}
}

// Dispose releases the device stream and clears all accumulated state.
// Safe from any state and idempotent; must be called once per acquired
// session, including on cancel and abnormal exit, so the camera and
// microphone are never leaked.
func (s *Session) Dispose() {
	s.mu.Lock()
	if s.state == StateDisposed {
		s.mu.Unlock()
		return
	}

	s.stopCounterLocked()

	stream := s.stream
	wasRecording := s.state == StateRecording
	s.stream = nil
	s.chunks = nil
	s.state = StateDisposed
	close(s.out)
	s.mu.Unlock()

	// Releasing the stream waits on the device goroutine; see Stop.
	if stream != nil {
		if wasRecording {
			stream.Stop()
		}
		stream.Close()
	}
}

// emitLocked hands the finished blob to the consumer. A blob from an
// earlier record/stop pair that was never drained is stale; the fresh
// clip replaces it rather than blocking the state machine.
func (s *Session) emitLocked(blob Blob) {
	for {
		select {
		case s.out <- blob:
			return
		default:
		}
		select {
		case <-s.out:
		default:
		}
	}
}

func (s *Session) appendChunk(chunk []byte) {
	if len(chunk) == 0 {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateRecording {
		return
	}

	buf := make([]byte, len(chunk))
	copy(buf, chunk)
	s.chunks = append(s.chunks, buf)
}

func (s *Session) startCounterLocked() {
	stop := make(chan struct{})
	s.tickStop = stop

	go func() {
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				s.mu.Lock()
				if s.state == StateRecording {
					s.elapsed++
				}
				s.mu.Unlock()
			}
		}
	}()
}

func (s *Session) stopCounterLocked() {
	if s.tickStop != nil {
		close(s.tickStop)
		s.tickStop = nil
	}
}
