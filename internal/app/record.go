package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"time"

	"github.com/daylog/backend/internal/capture"
	"github.com/daylog/backend/internal/config"
	"github.com/daylog/backend/internal/db"
	"github.com/daylog/backend/internal/journal"
	"github.com/daylog/backend/internal/models"
	"github.com/daylog/backend/internal/recorder"
	"github.com/daylog/backend/internal/repositories"
	"github.com/daylog/backend/internal/storage"
)

// runRecord captures a clip from a local video file and submits it as a
// journal entry, exercising the same pipeline the upload endpoint uses.
// Intended for development and smoke testing against a real bucket.
func runRecord(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("record", flag.ContinueOnError)
	owner := fs.String("owner", "", "owner user id the entry is journaled under")
	logTypeFlag := fs.String("type", "morning", "session type: morning or night")
	file := fs.String("file", "", "path to the video file to stream as the capture source")
	duration := fs.Duration("duration", 2*time.Second, "how long to record before stopping")

	if err := fs.Parse(args); err != nil {
		return err
	}

	if *owner == "" {
		return errors.New("record: --owner is required")
	}
	if *file == "" {
		return errors.New("record: --file is required")
	}

	logType := models.LogType(*logTypeFlag)
	if !logType.Valid() {
		return fmt.Errorf("record: unknown session type %q", *logTypeFlag)
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	pool, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer pool.Close()

	blobStore, err := storage.NewS3Storage(ctx, cfg.ObjectStore)
	if err != nil {
		return fmt.Errorf("configure object storage: %w", err)
	}

	logStore := repositories.NewPostgresLogRepository(pool)
	controller := journal.NewController(journal.StaticIdentity(*owner), blobStore, logStore, nil, slog.Default())
	defer controller.Close()

	device := &capture.FileDevice{Path: *file}
	session := capture.NewSession(device, slog.Default())

	stop := make(chan struct{})
	go func() {
		timer := time.NewTimer(*duration)
		defer timer.Stop()
		select {
		case <-ctx.Done():
		case <-timer.C:
		}
		close(stop)
	}()

	entry, err := recorder.Run(ctx, session, capture.Constraints{Facing: "user", Audio: true}, stop, controller, logType)
	if err != nil {
		return fmt.Errorf("record: %w", err)
	}

	fmt.Printf("recorded %s entry %s for %s (%s)\n", entry.Type, entry.ID, entry.DateStr, entry.MediaRef)
	return nil
}
