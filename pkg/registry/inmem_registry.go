package registry

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/trackora/workforce-idm/pkg/deviceid"
)

// InMemDeviceRegistry implements DeviceRegistry using an in-memory map. It
// enforces the same active (account, identifier) uniqueness the Postgres
// schema does, so engine tests exercise the real conflict behavior.
type InMemDeviceRegistry struct {
	records map[uuid.UUID]DeviceRecord
	mu      sync.Mutex

	// Fail forces every call to return the given error; tests use it to
	// exercise the transient-failure path.
	Fail error
}

// NewInMemDeviceRegistry creates a new in-memory device registry
func NewInMemDeviceRegistry() *InMemDeviceRegistry {
	return &InMemDeviceRegistry{
		records: make(map[uuid.UUID]DeviceRecord),
	}
}

// ListActiveByAccount returns all active records bound to the account
func (r *InMemDeviceRegistry) ListActiveByAccount(ctx context.Context, accountID uuid.UUID) ([]DeviceRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.Fail != nil {
		return nil, r.Fail
	}

	var records []DeviceRecord
	for _, record := range r.records {
		if record.IsActive && record.AccountID.Valid && record.AccountID.UUID == accountID {
			records = append(records, record)
		}
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].CreatedAt.After(records[j].CreatedAt)
	})

	slog.Debug("Listed active devices for account", "accountID", accountID, "count", len(records))
	return records, nil
}

// FindActiveAdminByIdentifier returns the active admin-flagged record for the
// identifier, or (nil, nil) when no such record exists
func (r *InMemDeviceRegistry) FindActiveAdminByIdentifier(ctx context.Context, identifier string) (*DeviceRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.Fail != nil {
		return nil, r.Fail
	}

	for _, record := range r.records {
		if record.IsActive && record.IsAdminDevice && record.DeviceIdentifier == identifier {
			found := record
			slog.Debug("Found admin device", "identifier", identifier, "recordID", found.ID)
			return &found, nil
		}
	}

	slog.Debug("No admin device for identifier", "identifier", identifier)
	return nil, nil
}

// Insert creates a new device record
func (r *InMemDeviceRegistry) Insert(ctx context.Context, record DeviceRecord) (DeviceRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.Fail != nil {
		return DeviceRecord{}, r.Fail
	}

	if record.IsActive && record.AccountID.Valid {
		for _, existing := range r.records {
			if existing.IsActive && existing.AccountID == record.AccountID &&
				existing.DeviceIdentifier == record.DeviceIdentifier {
				slog.Debug("Duplicate device insert", "identifier", record.DeviceIdentifier, "accountID", record.AccountID.UUID)
				return DeviceRecord{}, ErrDuplicateDevice
			}
		}
	}

	record.ID = uuid.New()
	now := time.Now().UTC()
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	if record.UpdatedAt.IsZero() {
		record.UpdatedAt = record.CreatedAt
	}

	r.records[record.ID] = record
	slog.Debug("Device record created", "recordID", record.ID, "identifier", record.DeviceIdentifier)
	return record, nil
}

// UpdateIdentifier rewrites the record's identifier and refreshable metadata
// in place
func (r *InMemDeviceRegistry) UpdateIdentifier(ctx context.Context, id uuid.UUID, identity deviceid.Identity) (DeviceRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.Fail != nil {
		return DeviceRecord{}, r.Fail
	}

	record, exists := r.records[id]
	if !exists {
		slog.Debug("Device record not found for identifier update", "recordID", id)
		return DeviceRecord{}, ErrDeviceNotFound
	}

	model := identity.ModelName
	if model == "" {
		model = identity.DisplayName
	}

	record.DeviceIdentifier = identity.Identifier
	record.Model = model
	record.OSVersion = identity.Platform
	record.UpdatedAt = time.Now().UTC()
	r.records[id] = record

	slog.Debug("Device identifier updated", "recordID", id, "identifier", identity.Identifier)
	return record, nil
}

// All returns every record in the registry. Test helper.
func (r *InMemDeviceRegistry) All() []DeviceRecord {
	r.mu.Lock()
	defer r.mu.Unlock()

	records := make([]DeviceRecord, 0, len(r.records))
	for _, record := range r.records {
		records = append(records, record)
	}
	return records
}

// WithTx returns the registry itself since the in-memory implementation does
// not support transactions
func (r *InMemDeviceRegistry) WithTx(tx interface{}) DeviceRegistry {
	return r
}
