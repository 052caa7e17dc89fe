package repositories

import (
	"context"

	"github.com/daylog/backend/internal/models"
)

// UserRepository defines the data access contract for users.
type UserRepository interface {
	Create(ctx context.Context, user models.User) error
	FindByEmail(ctx context.Context, email string) (models.User, error)
	Update(ctx context.Context, user models.User) error
}

// LogRepository defines the data access contract for log entries.
type LogRepository interface {
	Insert(ctx context.Context, entry models.LogEntry) (models.LogEntry, error)
	ListByOwner(ctx context.Context, ownerID string) ([]models.LogEntry, error)
	DeleteByID(ctx context.Context, ownerID, id string) error
}
