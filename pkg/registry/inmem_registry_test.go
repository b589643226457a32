package registry

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trackora/workforce-idm/pkg/deviceid"
)

func testIdentity(identifier string) deviceid.Identity {
	return deviceid.Identity{
		Identifier:  identifier,
		DisplayName: "Test Phone",
		Platform:    "android",
		ModelName:   "Pixel 8",
	}
}

func TestInMemDeviceRegistry_InsertAndList(t *testing.T) {
	repo := NewInMemDeviceRegistry()
	ctx := context.Background()
	accountID := uuid.New()

	record, err := repo.Insert(ctx, NewRecord(accountID, testIdentity("dev-abc")))
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, record.ID)
	assert.Equal(t, "dev-abc", record.DeviceIdentifier)
	assert.Equal(t, "Pixel 8", record.Model)
	assert.Equal(t, "android", record.OSVersion)
	assert.True(t, record.IsActive)
	assert.False(t, record.IsAdminDevice)

	records, err := repo.ListActiveByAccount(ctx, accountID)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, record.ID, records[0].ID)

	// Another account sees nothing
	records, err = repo.ListActiveByAccount(ctx, uuid.New())
	require.NoError(t, err)
	assert.Len(t, records, 0)
}

func TestInMemDeviceRegistry_DuplicateInsert(t *testing.T) {
	repo := NewInMemDeviceRegistry()
	ctx := context.Background()
	accountID := uuid.New()

	_, err := repo.Insert(ctx, NewRecord(accountID, testIdentity("dev-abc")))
	require.NoError(t, err)

	_, err = repo.Insert(ctx, NewRecord(accountID, testIdentity("dev-abc")))
	assert.ErrorIs(t, err, ErrDuplicateDevice)

	// Same identifier on a different account is fine
	_, err = repo.Insert(ctx, NewRecord(uuid.New(), testIdentity("dev-abc")))
	require.NoError(t, err)
}

func TestInMemDeviceRegistry_FindActiveAdminByIdentifier(t *testing.T) {
	repo := NewInMemDeviceRegistry()
	ctx := context.Background()

	found, err := repo.FindActiveAdminByIdentifier(ctx, "root-tablet")
	require.NoError(t, err)
	assert.Nil(t, found)

	// Admin device binds to an identifier, not an account
	_, err = repo.Insert(ctx, DeviceRecord{
		DeviceIdentifier: "root-tablet",
		Model:            "iPad",
		IsActive:         true,
		IsAdminDevice:    true,
	})
	require.NoError(t, err)

	found, err = repo.FindActiveAdminByIdentifier(ctx, "root-tablet")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, "root-tablet", found.DeviceIdentifier)
	assert.True(t, found.IsAdminDevice)
	assert.False(t, found.AccountID.Valid)
}

func TestInMemDeviceRegistry_InactiveAdminNotReturned(t *testing.T) {
	repo := NewInMemDeviceRegistry()
	ctx := context.Background()

	_, err := repo.Insert(ctx, DeviceRecord{
		DeviceIdentifier: "retired-tablet",
		IsActive:         false,
		IsAdminDevice:    true,
	})
	require.NoError(t, err)

	found, err := repo.FindActiveAdminByIdentifier(ctx, "retired-tablet")
	require.NoError(t, err)
	assert.Nil(t, found)
}

func TestInMemDeviceRegistry_UpdateIdentifier(t *testing.T) {
	repo := NewInMemDeviceRegistry()
	ctx := context.Background()
	accountID := uuid.New()

	record, err := repo.Insert(ctx, NewRecord(accountID, testIdentity("dev-old")))
	require.NoError(t, err)

	time.Sleep(10 * time.Millisecond) // Ensure time difference
	updated, err := repo.UpdateIdentifier(ctx, record.ID, deviceid.Identity{
		Identifier:  "dev-new",
		DisplayName: "New Phone",
		Platform:    "ios",
		ModelName:   "iPhone 15",
	})
	require.NoError(t, err)
	assert.Equal(t, record.ID, updated.ID)
	assert.Equal(t, "dev-new", updated.DeviceIdentifier)
	assert.Equal(t, "iPhone 15", updated.Model)
	assert.Equal(t, "ios", updated.OSVersion)
	assert.True(t, updated.UpdatedAt.After(record.UpdatedAt))

	// Record count stays 1: update is in place, never a second row
	records, err := repo.ListActiveByAccount(ctx, accountID)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "dev-new", records[0].DeviceIdentifier)

	_, err = repo.UpdateIdentifier(ctx, uuid.New(), testIdentity("dev-x"))
	assert.ErrorIs(t, err, ErrDeviceNotFound)
}

func TestNewRecord_ModelFallback(t *testing.T) {
	accountID := uuid.New()

	record := NewRecord(accountID, deviceid.Identity{
		Identifier:  "dev-abc",
		DisplayName: "Someone's Phone",
		Platform:    "android",
	})
	assert.Equal(t, "Someone's Phone", record.Model)

	record = NewRecord(accountID, testIdentity("dev-abc"))
	assert.Equal(t, "Pixel 8", record.Model)
}
