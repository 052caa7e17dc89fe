package handlers

import (
	"context"

	"github.com/daylog/backend/internal/capture"
	"github.com/daylog/backend/internal/models"
)

// UserStore captures the persistence operations required by the auth handlers.
type UserStore interface {
	Create(ctx context.Context, user models.User) error
	FindByEmail(ctx context.Context, email string) (models.User, error)
}

// SessionManager issues, refreshes and validates authentication tokens.
type SessionManager interface {
	Issue(ctx context.Context, userID string) (models.SessionTokens, error)
	Refresh(ctx context.Context, refreshToken string) (models.SessionTokens, error)
	Authenticate(ctx context.Context, accessToken string) (string, error)
}

// Journal exposes one owner's log collection and its sync operations.
type Journal interface {
	Submit(ctx context.Context, blob capture.Blob, logType models.LogType, dateStr string) (models.LogEntry, error)
	Refresh(ctx context.Context) error
	Remove(ctx context.Context, id string) error
	Snapshot() []models.LogEntry
}

// JournalRegistry hands out the journal scoped to an authenticated owner.
type JournalRegistry interface {
	For(ownerID string) Journal
}

// MediaResolver turns stored media locators into fetchable URLs.
type MediaResolver interface {
	Resolve(ctx context.Context, locator string) (string, error)
}
