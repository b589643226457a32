package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/trackora/workforce-idm/pkg/deviceid"
)

// uniqueViolation is the PostgreSQL error code raised by the partial unique
// index on (account_id, device_identifier) WHERE is_active.
const uniqueViolation = "23505"

// PostgresDeviceRegistry implements DeviceRegistry using PostgreSQL
type PostgresDeviceRegistry struct {
	db DBTX
}

// DBTX is an interface that allows us to use either a database connection or a transaction
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

// NewPostgresDeviceRegistry creates a new PostgreSQL device registry
func NewPostgresDeviceRegistry(db DBTX) *PostgresDeviceRegistry {
	return &PostgresDeviceRegistry{
		db: db,
	}
}

const recordColumns = "id, account_id, device_identifier, model, os_version, is_active, is_admin_device, created_at, updated_at"

// ListActiveByAccount returns all active records bound to the account
func (r *PostgresDeviceRegistry) ListActiveByAccount(ctx context.Context, accountID uuid.UUID) ([]DeviceRecord, error) {
	query := `
		SELECT ` + recordColumns + `
		FROM devices
		WHERE account_id = $1 AND is_active
		ORDER BY created_at DESC
	`

	rows, err := r.db.Query(ctx, query, accountID)
	if err != nil {
		slog.Error("Failed to list devices by account", "err", err, "accountID", accountID)
		return nil, fmt.Errorf("failed to list devices by account: %w", err)
	}
	defer rows.Close()

	var records []DeviceRecord
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			slog.Error("Failed to scan device record", "err", err)
			return nil, fmt.Errorf("failed to scan device record: %w", err)
		}
		records = append(records, record)
	}

	if err := rows.Err(); err != nil {
		slog.Error("Error iterating over device records", "err", err)
		return nil, fmt.Errorf("error iterating over device records: %w", err)
	}

	slog.Debug("Listed active devices for account", "accountID", accountID, "count", len(records))
	return records, nil
}

// FindActiveAdminByIdentifier returns the active admin-flagged record for the
// identifier, or (nil, nil) when no such record exists
func (r *PostgresDeviceRegistry) FindActiveAdminByIdentifier(ctx context.Context, identifier string) (*DeviceRecord, error) {
	query := `
		SELECT ` + recordColumns + `
		FROM devices
		WHERE device_identifier = $1 AND is_admin_device AND is_active
		LIMIT 1
	`

	row := r.db.QueryRow(ctx, query, identifier)

	record, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			slog.Debug("No admin device for identifier", "identifier", identifier)
			return nil, nil
		}
		slog.Error("Failed to find admin device", "err", err, "identifier", identifier)
		return nil, fmt.Errorf("failed to find admin device: %w", err)
	}

	slog.Debug("Found admin device", "identifier", identifier, "recordID", record.ID)
	return &record, nil
}

// Insert creates a new device record
func (r *PostgresDeviceRegistry) Insert(ctx context.Context, record DeviceRecord) (DeviceRecord, error) {
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}
	if record.UpdatedAt.IsZero() {
		record.UpdatedAt = record.CreatedAt
	}

	query := `
		INSERT INTO devices (
			account_id, device_identifier, model, os_version, is_active, is_admin_device, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8
		) RETURNING ` + recordColumns

	row := r.db.QueryRow(ctx, query,
		record.AccountID,
		record.DeviceIdentifier,
		record.Model,
		record.OSVersion,
		record.IsActive,
		record.IsAdminDevice,
		record.CreatedAt,
		record.UpdatedAt,
	)

	created, err := scanRecord(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			slog.Debug("Duplicate device insert", "identifier", record.DeviceIdentifier, "accountID", record.AccountID)
			return DeviceRecord{}, ErrDuplicateDevice
		}
		slog.Error("Failed to insert device record", "err", err, "identifier", record.DeviceIdentifier)
		return DeviceRecord{}, fmt.Errorf("failed to insert device record: %w", err)
	}

	slog.Debug("Device record created", "recordID", created.ID, "identifier", created.DeviceIdentifier)
	return created, nil
}

// UpdateIdentifier rewrites the record's identifier and refreshable metadata
// in place
func (r *PostgresDeviceRegistry) UpdateIdentifier(ctx context.Context, id uuid.UUID, identity deviceid.Identity) (DeviceRecord, error) {
	model := identity.ModelName
	if model == "" {
		model = identity.DisplayName
	}

	query := `
		UPDATE devices
		SET device_identifier = $2, model = $3, os_version = $4, updated_at = $5
		WHERE id = $1
		RETURNING ` + recordColumns

	row := r.db.QueryRow(ctx, query, id, identity.Identifier, model, identity.Platform, time.Now().UTC())

	updated, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			slog.Debug("Device record not found for identifier update", "recordID", id)
			return DeviceRecord{}, ErrDeviceNotFound
		}
		slog.Error("Failed to update device identifier", "err", err, "recordID", id)
		return DeviceRecord{}, fmt.Errorf("failed to update device identifier: %w", err)
	}

	slog.Debug("Device identifier updated", "recordID", id, "identifier", identity.Identifier)
	return updated, nil
}

// WithTx returns a new registry with the given transaction
func (r *PostgresDeviceRegistry) WithTx(tx interface{}) DeviceRegistry {
	if tx == nil {
		return r
	}

	pgxTx, ok := tx.(pgx.Tx)
	if !ok {
		slog.Warn("Unsupported transaction type", "type", reflect.TypeOf(tx))
		return r
	}

	return NewPostgresDeviceRegistry(pgxTx)
}

func scanRecord(row pgx.Row) (DeviceRecord, error) {
	var record DeviceRecord
	err := row.Scan(
		&record.ID,
		&record.AccountID,
		&record.DeviceIdentifier,
		&record.Model,
		&record.OSVersion,
		&record.IsActive,
		&record.IsAdminDevice,
		&record.CreatedAt,
		&record.UpdatedAt,
	)
	if err != nil {
		return DeviceRecord{}, err
	}
	return record, nil
}
