package recorder

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/daylog/backend/internal/capture"
	"github.com/daylog/backend/internal/models"
)

type fakeStream struct {
	chunks [][]byte
	closes int
}

func (f *fakeStream) Start(sink func(chunk []byte)) {
	for _, chunk := range f.chunks {
		sink(chunk)
	}
}

func (f *fakeStream) Stop()  {}
func (f *fakeStream) Close() { f.closes++ }

type fakeDevice struct {
	stream *fakeStream
	err    error
}

func (f *fakeDevice) RequestStream(context.Context, capture.Constraints) (capture.Stream, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.stream, nil
}

type fakeSubmitter struct {
	entries []models.LogEntry
	err     error
}

func (f *fakeSubmitter) Submit(_ context.Context, blob capture.Blob, logType models.LogType, dateStr string) (models.LogEntry, error) {
	if f.err != nil {
		return models.LogEntry{}, f.err
	}
	entry := models.LogEntry{
		ID:        "log-1",
		OwnerID:   "user-1",
		Type:      logType,
		DateStr:   dateStr,
		Timestamp: time.Now().UnixMilli(),
		MediaRef:  "mem://" + string(blob.Data),
	}
	f.entries = append(f.entries, entry)
	return entry, nil
}

func TestRunRecordsAndSubmits(t *testing.T) {
	stream := &fakeStream{chunks: [][]byte{[]byte("clip")}}
	session := capture.NewSession(&fakeDevice{stream: stream}, nil)
	submitter := &fakeSubmitter{}

	stop := make(chan struct{})
	close(stop)

	entry, err := Run(context.Background(), session, capture.Constraints{Facing: "user", Audio: true}, stop, submitter, models.LogTypeMorning)
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if entry.Type != models.LogTypeMorning {
		t.Fatalf("unexpected entry type %q", entry.Type)
	}
	if len(submitter.entries) != 1 {
		t.Fatalf("expected one submission got %d", len(submitter.entries))
	}
	if _, err := time.Parse(dateFormat, entry.DateStr); err != nil {
		t.Fatalf("expected a valid date string, got %q", entry.DateStr)
	}
	if stream.closes != 1 {
		t.Fatalf("expected device released exactly once got %d", stream.closes)
	}
	if session.State() != capture.StateDisposed {
		t.Fatalf("expected disposed session got %v", session.State())
	}
}

func TestRunCancelBeforeStopNeverSubmits(t *testing.T) {
	stream := &fakeStream{chunks: [][]byte{[]byte("partial")}}
	session := capture.NewSession(&fakeDevice{stream: stream}, nil)
	submitter := &fakeSubmitter{}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	stop := make(chan struct{})
	_, err := Run(ctx, session, capture.Constraints{}, stop, submitter, models.LogTypeNight)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled got %v", err)
	}

	if len(submitter.entries) != 0 {
		t.Fatal("cancelled capture must never submit")
	}
	if stream.closes != 1 {
		t.Fatalf("expected device released on cancel got %d closes", stream.closes)
	}
}

func TestRunAcquisitionFailure(t *testing.T) {
	session := capture.NewSession(&fakeDevice{err: errors.New("no camera")}, nil)
	submitter := &fakeSubmitter{}

	stop := make(chan struct{})
	close(stop)

	_, err := Run(context.Background(), session, capture.Constraints{}, stop, submitter, models.LogTypeMorning)
	if !errors.Is(err, capture.ErrAcquisitionFailed) {
		t.Fatalf("expected ErrAcquisitionFailed got %v", err)
	}
	if len(submitter.entries) != 0 {
		t.Fatal("failed acquisition must never submit")
	}
}

func TestRunSubmitFailureSurfaces(t *testing.T) {
	stream := &fakeStream{chunks: [][]byte{[]byte("clip")}}
	session := capture.NewSession(&fakeDevice{stream: stream}, nil)
	submitter := &fakeSubmitter{err: errors.New("store down")}

	stop := make(chan struct{})
	close(stop)

	if _, err := Run(context.Background(), session, capture.Constraints{}, stop, submitter, models.LogTypeMorning); err == nil {
		t.Fatal("expected submit failure to surface")
	}
	if stream.closes != 1 {
		t.Fatalf("expected device released after failed submit got %d closes", stream.closes)
	}
}
