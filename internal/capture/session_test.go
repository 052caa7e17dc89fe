package capture

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

type fakeStream struct {
	sink      func([]byte)
	stops     int
	closes    int
	delivered [][]byte
}

func (f *fakeStream) Start(sink func(chunk []byte)) {
	f.sink = sink
	for _, chunk := range f.delivered {
		sink(chunk)
	}
}

func (f *fakeStream) Stop()  { f.stops++ }
func (f *fakeStream) Close() { f.closes++ }

type fakeDevice struct {
	stream *fakeStream
	err    error
	calls  int
}

func (f *fakeDevice) RequestStream(context.Context, Constraints) (Stream, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.stream, nil
}

func TestSessionAcquireStartStopEmitsOneBlob(t *testing.T) {
	stream := &fakeStream{delivered: [][]byte{[]byte("abc"), []byte("def")}}
	device := &fakeDevice{stream: stream}
	session := NewSession(device, nil)

	if err := session.Acquire(context.Background(), Constraints{Facing: "user", Audio: true}); err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if session.State() != StateLive {
		t.Fatalf("expected live state got %v", session.State())
	}

	session.Start()
	if session.State() != StateRecording {
		t.Fatalf("expected recording state got %v", session.State())
	}

	session.Stop()
	if session.State() != StateStopped {
		t.Fatalf("expected stopped state got %v", session.State())
	}

	blob := <-session.Output()
	if string(blob.Data) != "abcdef" {
		t.Fatalf("unexpected blob data %q", blob.Data)
	}
	if blob.MIME != DefaultMIME {
		t.Fatalf("unexpected blob mime %q", blob.MIME)
	}

	session.Dispose()
	if stream.closes != 1 {
		t.Fatalf("expected stream closed once got %d", stream.closes)
	}
	if _, ok := <-session.Output(); ok {
		t.Fatal("expected output closed after dispose")
	}
}

func TestSessionAcquireFailure(t *testing.T) {
	device := &fakeDevice{err: errors.New("permission denied")}
	session := NewSession(device, nil)

	err := session.Acquire(context.Background(), Constraints{})
	if !errors.Is(err, ErrAcquisitionFailed) {
		t.Fatalf("expected ErrAcquisitionFailed got %v", err)
	}
	if session.State() != StateFailed {
		t.Fatalf("expected failed state got %v", session.State())
	}
	if device.calls != 1 {
		t.Fatalf("expected a single acquisition attempt got %d", device.calls)
	}

	// Failure must not leave a blob behind or break dispose.
	session.Dispose()
	if _, ok := <-session.Output(); ok {
		t.Fatal("expected no blob after failed acquisition")
	}
}

func TestSessionStopWithoutStartIsNoOp(t *testing.T) {
	stream := &fakeStream{}
	session := NewSession(&fakeDevice{stream: stream}, nil)

	if err := session.Acquire(context.Background(), Constraints{}); err != nil {
		t.Fatalf("acquire: %v", err)
	}

	session.Stop()
	if session.State() != StateLive {
		t.Fatalf("expected state unchanged got %v", session.State())
	}

	select {
	case blob := <-session.Output():
		t.Fatalf("unexpected blob emitted: %+v", blob)
	default:
	}

	session.Dispose()
	if stream.closes != 1 {
		t.Fatalf("expected stream closed once got %d", stream.closes)
	}
}

func TestSessionStartOutsideLiveIsNoOp(t *testing.T) {
	session := NewSession(&fakeDevice{stream: &fakeStream{}}, nil)

	session.Start()
	if session.State() != StateIdle {
		t.Fatalf("expected idle state got %v", session.State())
	}

	session.Dispose()
}

func TestSessionToggleAlternates(t *testing.T) {
	stream := &fakeStream{delivered: [][]byte{[]byte("x")}}
	session := NewSession(&fakeDevice{stream: stream}, nil)

	if err := session.Acquire(context.Background(), Constraints{}); err != nil {
		t.Fatalf("acquire: %v", err)
	}

	session.Toggle()
	if session.State() != StateRecording {
		t.Fatalf("expected recording got %v", session.State())
	}

	session.Toggle()
	if session.State() != StateStopped {
		t.Fatalf("expected stopped got %v", session.State())
	}
	if blob := <-session.Output(); string(blob.Data) != "x" {
		t.Fatalf("unexpected blob %q", blob.Data)
	}

	// The stream is still held, so a second pair may record.
	session.Toggle()
	if session.State() != StateRecording {
		t.Fatalf("expected recording on second pair got %v", session.State())
	}
	if session.Elapsed() != 0 {
		t.Fatalf("expected counter reset on fresh start got %d", session.Elapsed())
	}

	session.Toggle()
	if blob := <-session.Output(); string(blob.Data) != "x" {
		t.Fatalf("unexpected second blob %q", blob.Data)
	}

	session.Dispose()
	if stream.closes != 1 {
		t.Fatalf("expected stream closed exactly once got %d", stream.closes)
	}
}

func TestSessionDisposeDuringRecordingDiscardsClip(t *testing.T) {
	stream := &fakeStream{delivered: [][]byte{[]byte("partial")}}
	session := NewSession(&fakeDevice{stream: stream}, nil)

	if err := session.Acquire(context.Background(), Constraints{}); err != nil {
		t.Fatalf("acquire: %v", err)
	}
	session.Start()

	session.Dispose()
	if stream.stops != 1 {
		t.Fatalf("expected recording stopped on dispose got %d", stream.stops)
	}
	if stream.closes != 1 {
		t.Fatalf("expected stream closed on dispose got %d", stream.closes)
	}
	if _, ok := <-session.Output(); ok {
		t.Fatal("expected no blob after cancel")
	}

	// Dispose is idempotent.
	session.Dispose()
	if stream.closes != 1 {
		t.Fatalf("expected a single close got %d", stream.closes)
	}
}

// liveStream delivers chunks continuously from its own goroutine until
// stopped, the way a real device pipeline does. Stop blocks until the
// delivery goroutine has exited.
type liveStream struct {
	stops  int
	closes int

	stop chan struct{}
	done chan struct{}
}

func (f *liveStream) Start(sink func(chunk []byte)) {
	f.stop = make(chan struct{})
	f.done = make(chan struct{})
	go func() {
		defer close(f.done)
		for {
			select {
			case <-f.stop:
				return
			default:
				sink([]byte("chunk"))
				time.Sleep(time.Millisecond)
			}
		}
	}()
}

func (f *liveStream) Stop() {
	f.stops++
	if f.stop == nil {
		return
	}
	select {
	case <-f.stop:
	default:
		close(f.stop)
	}
	<-f.done
}

func (f *liveStream) Close() { f.closes++ }

type liveDevice struct {
	stream *liveStream
}

func (d liveDevice) RequestStream(context.Context, Constraints) (Stream, error) {
	return d.stream, nil
}

func TestSessionStopWhileStreamDelivering(t *testing.T) {
	stream := &liveStream{}
	session := NewSession(liveDevice{stream: stream}, nil)

	if err := session.Acquire(context.Background(), Constraints{}); err != nil {
		t.Fatalf("acquire: %v", err)
	}

	session.Start()
	time.Sleep(20 * time.Millisecond)

	stopped := make(chan struct{})
	go func() {
		session.Stop()
		close(stopped)
	}()

	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return while the stream was still delivering")
	}

	blob := <-session.Output()
	if len(blob.Data) == 0 {
		t.Fatal("expected accumulated chunks in the blob")
	}

	session.Dispose()
	if stream.closes != 1 {
		t.Fatalf("expected stream closed once got %d", stream.closes)
	}
}

func TestSessionDisposeWhileStreamDelivering(t *testing.T) {
	stream := &liveStream{}
	session := NewSession(liveDevice{stream: stream}, nil)

	if err := session.Acquire(context.Background(), Constraints{}); err != nil {
		t.Fatalf("acquire: %v", err)
	}

	session.Start()
	time.Sleep(20 * time.Millisecond)

	disposed := make(chan struct{})
	go func() {
		session.Dispose()
		close(disposed)
	}()

	select {
	case <-disposed:
	case <-time.After(2 * time.Second):
		t.Fatal("Dispose did not return while the stream was still delivering")
	}

	if stream.stops != 1 {
		t.Fatalf("expected recording stopped on dispose got %d", stream.stops)
	}
	if stream.closes != 1 {
		t.Fatalf("expected stream closed on dispose got %d", stream.closes)
	}
	if _, ok := <-session.Output(); ok {
		t.Fatal("expected no blob after cancel")
	}
}

func TestSessionUndrainedBlobReplacedByNewerClip(t *testing.T) {
	stream := &fakeStream{delivered: [][]byte{[]byte("first")}}
	session := NewSession(&fakeDevice{stream: stream}, nil)

	if err := session.Acquire(context.Background(), Constraints{}); err != nil {
		t.Fatalf("acquire: %v", err)
	}

	session.Start()
	session.Stop()

	// Nothing drained the first blob; the second pair must still finish.
	stream.delivered = [][]byte{[]byte("second")}
	session.Start()
	session.Stop()

	blob := <-session.Output()
	if string(blob.Data) != "second" {
		t.Fatalf("expected the newer clip got %q", blob.Data)
	}

	select {
	case b := <-session.Output():
		t.Fatalf("unexpected extra blob %q", b.Data)
	default:
	}

	session.Dispose()
}

func TestSessionAcquireTwiceRejected(t *testing.T) {
	session := NewSession(&fakeDevice{stream: &fakeStream{}}, nil)

	if err := session.Acquire(context.Background(), Constraints{}); err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if err := session.Acquire(context.Background(), Constraints{}); err == nil {
		t.Fatal("expected error acquiring an already-live session")
	}

	session.Dispose()
}

func TestFileDeviceStreamsChunks(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "clip.mp4")
	payload := []byte("0123456789abcdef")
	if err := os.WriteFile(path, payload, 0o600); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	device := FileDevice{Path: path, ChunkSize: 4}
	session := NewSession(device, nil)

	if err := session.Acquire(context.Background(), Constraints{}); err != nil {
		t.Fatalf("acquire: %v", err)
	}

	session.Start()

	// Delivery runs on the device goroutine; give the 16-byte fixture
	// ample time to drain before stopping.
	time.Sleep(100 * time.Millisecond)
	session.Stop()

	blob := <-session.Output()
	if string(blob.Data) != string(payload) {
		t.Fatalf("unexpected blob data %q", blob.Data)
	}

	session.Dispose()
}

func TestFileDeviceMissingFile(t *testing.T) {
	session := NewSession(FileDevice{Path: "/nonexistent/clip.mp4"}, nil)

	err := session.Acquire(context.Background(), Constraints{})
	if !errors.Is(err, ErrAcquisitionFailed) {
		t.Fatalf("expected ErrAcquisitionFailed got %v", err)
	}
}
