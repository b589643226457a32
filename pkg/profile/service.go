package profile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
)

// ProfileService provides profile lookups for the session guard.
type ProfileService struct {
	profileRepository ProfileRepository
}

// NewProfileService creates a new profile service with the given repository
func NewProfileService(profileRepository ProfileRepository) *ProfileService {
	return &ProfileService{
		profileRepository: profileRepository,
	}
}

// GetProfile returns the account's profile.
func (s *ProfileService) GetProfile(ctx context.Context, accountID uuid.UUID) (Profile, error) {
	profile, err := s.profileRepository.GetProfileByAccount(ctx, accountID)
	if err != nil {
		if errors.Is(err, ErrProfileNotFound) {
			return Profile{}, err
		}
		slog.Error("Failed to get profile", "err", err, "accountID", accountID)
		return Profile{}, fmt.Errorf("failed to get profile: %w", err)
	}
	return profile, nil
}

// GetRole returns the account's role. A missing profile defaults to staff:
// profile rows are provisioned asynchronously after signup, and the least
// privileged role is the safe default until one appears.
func (s *ProfileService) GetRole(ctx context.Context, accountID uuid.UUID) (Role, error) {
	profile, err := s.profileRepository.GetProfileByAccount(ctx, accountID)
	if err != nil {
		if errors.Is(err, ErrProfileNotFound) {
			slog.Debug("No profile for account, defaulting to staff role", "accountID", accountID)
			return RoleStaff, nil
		}
		return "", fmt.Errorf("failed to get role: %w", err)
	}

	if !profile.Role.Valid() {
		slog.Warn("Unknown role on profile, defaulting to staff", "accountID", accountID, "role", profile.Role)
		return RoleStaff, nil
	}
	return profile.Role, nil
}
