package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/daylog/backend/internal/db"
	"github.com/daylog/backend/internal/journal"
	"github.com/daylog/backend/internal/models"
)

// PostgresUserRepository provides PostgreSQL-backed persistence for users.
type PostgresUserRepository struct {
	pool db.Pool
}

// NewPostgresUserRepository constructs a user repository backed by PostgreSQL.
func NewPostgresUserRepository(pool db.Pool) *PostgresUserRepository {
	return &PostgresUserRepository{pool: pool}
}

// Create persists a new user record.
func (r *PostgresUserRepository) Create(ctx context.Context, user models.User) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	_, err = conn.Exec(ctx, `
        INSERT INTO users (id, email, password_hash, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5)
    `, user.ID, user.Email, user.Password, user.CreatedAt, user.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrConflict
		}
		return fmt.Errorf("insert user: %w", err)
	}

	return nil
}

// FindByEmail fetches a user by their email address.
func (r *PostgresUserRepository) FindByEmail(ctx context.Context, email string) (models.User, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.User{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	row := conn.QueryRow(ctx, `
        SELECT id, email, password_hash, created_at, updated_at
        FROM users
        WHERE email = $1
    `, email)

	var user models.User
	if err := row.Scan(&user.ID, &user.Email, &user.Password, &user.CreatedAt, &user.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.User{}, ErrNotFound
		}
		return models.User{}, fmt.Errorf("select user by email: %w", err)
	}

	return user, nil
}

// Update modifies an existing user record.
func (r *PostgresUserRepository) Update(ctx context.Context, user models.User) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, `
        UPDATE users
        SET email = $2, password_hash = $3, updated_at = $4
        WHERE id = $1
    `, user.ID, user.Email, user.Password, user.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrConflict
		}
		return fmt.Errorf("update user: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

// PostgresLogRepository provides PostgreSQL-backed persistence for log entries.
type PostgresLogRepository struct {
	pool db.Pool
}

// NewPostgresLogRepository constructs a log repository backed by PostgreSQL.
func NewPostgresLogRepository(pool db.Pool) *PostgresLogRepository {
	return &PostgresLogRepository{pool: pool}
}

// Insert stores a new log entry and returns it with the store-assigned id.
func (r *PostgresLogRepository) Insert(ctx context.Context, entry models.LogEntry) (models.LogEntry, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.LogEntry{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	entry.ID = uuid.NewString()
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	_, err = conn.Exec(ctx, `
        INSERT INTO day_logs (id, owner_id, type, date_str, ts, media_ref, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
    `, entry.ID, entry.OwnerID, string(entry.Type), entry.DateStr, entry.Timestamp, entry.MediaRef, entry.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			switch pgErr.Code {
			case "23505":
				return models.LogEntry{}, ErrConflict
			case "23503":
				return models.LogEntry{}, ErrNotFound
			}
		}
		return models.LogEntry{}, fmt.Errorf("insert log entry: %w", err)
	}

	return entry, nil
}

// ListByOwner returns every log entry for the owner, newest first.
func (r *PostgresLogRepository) ListByOwner(ctx context.Context, ownerID string) ([]models.LogEntry, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, `
        SELECT id, owner_id, type, date_str, ts, media_ref, created_at
        FROM day_logs
        WHERE owner_id = $1
        ORDER BY ts DESC
    `, ownerID)
	if err != nil {
		return nil, fmt.Errorf("query log entries: %w", err)
	}
	defer rows.Close()

	var entries []models.LogEntry
	for rows.Next() {
		var (
			entry   models.LogEntry
			logType string
		)

		if err := rows.Scan(&entry.ID, &entry.OwnerID, &logType, &entry.DateStr, &entry.Timestamp, &entry.MediaRef, &entry.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan log entry: %w", err)
		}

		entry.Type = models.LogType(logType)
		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate log entries: %w", err)
	}

	return entries, nil
}

// DeleteByID removes the entry, scoped to its owner so one user can never
// delete another's log.
func (r *PostgresLogRepository) DeleteByID(ctx context.Context, ownerID, id string) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, `
        DELETE FROM day_logs
        WHERE id = $1 AND owner_id = $2
    `, id, ownerID)
	if err != nil {
		return fmt.Errorf("delete log entry: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

var _ UserRepository = (*PostgresUserRepository)(nil)
var _ LogRepository = (*PostgresLogRepository)(nil)
var _ journal.LogStore = (*PostgresLogRepository)(nil)
