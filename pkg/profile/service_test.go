package profile

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProfileService_GetProfile(t *testing.T) {
	repo := NewInMemProfileRepository()
	service := NewProfileService(repo)
	ctx := context.Background()

	accountID := uuid.New()
	repo.Add(accountID, "Asha Verma", RoleManager)

	profile, err := service.GetProfile(ctx, accountID)
	require.NoError(t, err)
	assert.Equal(t, "Asha Verma", profile.FullName)
	assert.Equal(t, RoleManager, profile.Role)

	_, err = service.GetProfile(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrProfileNotFound)
}

func TestProfileService_GetRole(t *testing.T) {
	repo := NewInMemProfileRepository()
	service := NewProfileService(repo)
	ctx := context.Background()

	accountID := uuid.New()
	repo.Add(accountID, "Asha Verma", RoleAdmin)

	role, err := service.GetRole(ctx, accountID)
	require.NoError(t, err)
	assert.Equal(t, RoleAdmin, role)
}

func TestProfileService_GetRole_MissingProfileDefaultsToStaff(t *testing.T) {
	repo := NewInMemProfileRepository()
	service := NewProfileService(repo)

	role, err := service.GetRole(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Equal(t, RoleStaff, role)
}

func TestProfileService_GetRole_UnknownRoleDefaultsToStaff(t *testing.T) {
	repo := NewInMemProfileRepository()
	service := NewProfileService(repo)

	accountID := uuid.New()
	repo.Add(accountID, "Asha Verma", Role("superuser"))

	role, err := service.GetRole(context.Background(), accountID)
	require.NoError(t, err)
	assert.Equal(t, RoleStaff, role)
}

func TestProfileService_GetRole_PropagatesTransientFailure(t *testing.T) {
	repo := NewInMemProfileRepository()
	repo.Fail = errors.New("connection reset")
	service := NewProfileService(repo)

	_, err := service.GetRole(context.Background(), uuid.New())
	assert.Error(t, err)
}
