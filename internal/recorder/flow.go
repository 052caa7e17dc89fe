package recorder

import (
	"context"
	"fmt"
	"time"

	"github.com/daylog/backend/internal/capture"
	"github.com/daylog/backend/internal/models"
)

// Submitter is the slice of the sync controller the recorder needs.
type Submitter interface {
	Submit(ctx context.Context, blob capture.Blob, logType models.LogType, dateStr string) (models.LogEntry, error)
}

const dateFormat = "2006-01-02"

// Run drives one capture session end to end: acquire the device, record
// until stop is signalled, then submit the finished clip dated by the
// local clock. Cancelling ctx before recording finishes disposes the
// session without submitting; once submission begins it cannot be
// cancelled. The device stream is released on every exit path.
func Run(ctx context.Context, session *capture.Session, constraints capture.Constraints, stop <-chan struct{}, submitter Submitter, logType models.LogType) (models.LogEntry, error) {
	defer session.Dispose()

	if err := session.Acquire(ctx, constraints); err != nil {
		return models.LogEntry{}, err
	}

	select {
	case <-ctx.Done():
		return models.LogEntry{}, ctx.Err()
	default:
	}

	session.Start()

	select {
	case <-ctx.Done():
		return models.LogEntry{}, ctx.Err()
	case <-stop:
	}

	session.Stop()

	var blob capture.Blob
	select {
	case <-ctx.Done():
		return models.LogEntry{}, ctx.Err()
	case b, ok := <-session.Output():
		if !ok {
			return models.LogEntry{}, fmt.Errorf("capture session ended without a clip")
		}
		blob = b
	}

	dateStr := time.Now().Format(dateFormat)

	// No cancellation once submission has begun.
	entry, err := submitter.Submit(context.WithoutCancel(ctx), blob, logType, dateStr)
	if err != nil {
		return models.LogEntry{}, err
	}

	return entry, nil
}
