package profile

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// InMemProfileRepository implements ProfileRepository using an in-memory map
type InMemProfileRepository struct {
	profiles map[uuid.UUID]Profile
	mu       sync.Mutex

	// Fail forces every call to return the given error.
	Fail error
}

// NewInMemProfileRepository creates a new in-memory profile repository
func NewInMemProfileRepository() *InMemProfileRepository {
	return &InMemProfileRepository{
		profiles: make(map[uuid.UUID]Profile),
	}
}

// Add stores a profile for the account. Test and demo helper.
func (r *InMemProfileRepository) Add(accountID uuid.UUID, fullName string, role Role) Profile {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now().UTC()
	profile := Profile{
		ID:        accountID,
		FullName:  fullName,
		Role:      role,
		CreatedAt: now,
		UpdatedAt: now,
	}
	r.profiles[accountID] = profile
	return profile
}

// GetProfileByAccount retrieves the profile for an account
func (r *InMemProfileRepository) GetProfileByAccount(ctx context.Context, accountID uuid.UUID) (Profile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.Fail != nil {
		return Profile{}, r.Fail
	}

	profile, exists := r.profiles[accountID]
	if !exists {
		return Profile{}, ErrProfileNotFound
	}
	return profile, nil
}
