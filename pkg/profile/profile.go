package profile

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrProfileNotFound is returned when no profile row exists for the account.
var ErrProfileNotFound = errors.New("profile not found")

// Role is the account's role attribute, used for role-based landing routes.
type Role string

const (
	RoleStaff   Role = "staff"
	RoleManager Role = "manager"
	RoleAdmin   Role = "admin"
)

// Valid reports whether the role is one of the known values.
func (r Role) Valid() bool {
	switch r {
	case RoleStaff, RoleManager, RoleAdmin:
		return true
	}
	return false
}

// Profile is the account profile row consumed by the session guard.
type Profile struct {
	ID        uuid.UUID `json:"id"`
	FullName  string    `json:"full_name"`
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ProfileRepository defines the interface for profile database operations
type ProfileRepository interface {
	// GetProfileByAccount retrieves the profile for an account. Returns
	// ErrProfileNotFound when no row exists.
	GetProfileByAccount(ctx context.Context, accountID uuid.UUID) (Profile, error)
}
