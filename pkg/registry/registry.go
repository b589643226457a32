package registry

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/trackora/workforce-idm/pkg/deviceid"
)

var (
	// ErrDuplicateDevice is returned by Insert when an active record for the
	// same (account, identifier) pair already exists. Callers treat it as
	// "another check already registered this pairing", not as a failure.
	ErrDuplicateDevice = errors.New("active device record already exists for account and identifier")

	// ErrDeviceNotFound is returned when the referenced record does not exist.
	ErrDeviceNotFound = errors.New("device record not found")
)

// DeviceRecord binds a device identifier to an account. AccountID is null
// only for administratively provisioned rows; this package never inserts one
// with a null account.
type DeviceRecord struct {
	ID               uuid.UUID     `json:"id"`
	AccountID        uuid.NullUUID `json:"account_id"`
	DeviceIdentifier string        `json:"device_identifier"`
	Model            string        `json:"model"`
	OSVersion        string        `json:"os_version"`
	IsActive         bool          `json:"is_active"`
	IsAdminDevice    bool          `json:"is_admin_device"`
	CreatedAt        time.Time     `json:"created_at"`
	UpdatedAt        time.Time     `json:"updated_at"`
}

// DeviceRegistry is the query and mutation surface over the devices table.
// All calls are network round trips and may fail transiently; callers bound
// them with a context deadline.
type DeviceRegistry interface {
	// ListActiveByAccount returns all active records bound to the account,
	// newest first.
	ListActiveByAccount(ctx context.Context, accountID uuid.UUID) ([]DeviceRecord, error)

	// FindActiveAdminByIdentifier returns the active admin-flagged record for
	// the identifier irrespective of account, or (nil, nil) when none exists.
	FindActiveAdminByIdentifier(ctx context.Context, identifier string) (*DeviceRecord, error)

	// Insert creates the record atomically. A uniqueness violation on the
	// active (account, identifier) pair surfaces as ErrDuplicateDevice.
	Insert(ctx context.Context, record DeviceRecord) (DeviceRecord, error)

	// UpdateIdentifier rewrites the record's identifier and refreshable
	// metadata (model, os version, updated_at) in a single atomic update.
	UpdateIdentifier(ctx context.Context, id uuid.UUID, identity deviceid.Identity) (DeviceRecord, error)

	// WithTx returns a registry bound to the given transaction.
	WithTx(tx interface{}) DeviceRegistry
}

// NewRecord builds the active, non-admin record this engine registers for an
// account. Model falls back to the display name when the platform reports no
// model, matching what the mobile client sends.
func NewRecord(accountID uuid.UUID, identity deviceid.Identity) DeviceRecord {
	model := identity.ModelName
	if model == "" {
		model = identity.DisplayName
	}

	now := time.Now().UTC()
	return DeviceRecord{
		AccountID:        uuid.NullUUID{UUID: accountID, Valid: true},
		DeviceIdentifier: identity.Identifier,
		Model:            model,
		OSVersion:        identity.Platform,
		IsActive:         true,
		IsAdminDevice:    false,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}
