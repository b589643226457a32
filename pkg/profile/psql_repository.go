package profile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// PostgresProfileRepository implements ProfileRepository using PostgreSQL
type PostgresProfileRepository struct {
	db DBTX
}

// DBTX is an interface that allows us to use either a database connection or a transaction
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

// NewPostgresProfileRepository creates a new PostgreSQL profile repository
func NewPostgresProfileRepository(db DBTX) *PostgresProfileRepository {
	return &PostgresProfileRepository{
		db: db,
	}
}

// GetProfileByAccount retrieves the profile for an account
func (r *PostgresProfileRepository) GetProfileByAccount(ctx context.Context, accountID uuid.UUID) (Profile, error) {
	query := `
		SELECT id, full_name, role, created_at, updated_at
		FROM profiles
		WHERE id = $1
	`

	row := r.db.QueryRow(ctx, query, accountID)

	var profile Profile
	err := row.Scan(
		&profile.ID,
		&profile.FullName,
		&profile.Role,
		&profile.CreatedAt,
		&profile.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			slog.Debug("Profile not found", "accountID", accountID)
			return Profile{}, ErrProfileNotFound
		}
		slog.Error("Failed to get profile", "err", err, "accountID", accountID)
		return Profile{}, fmt.Errorf("failed to get profile: %w", err)
	}

	return profile, nil
}
