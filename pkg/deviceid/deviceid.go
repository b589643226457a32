package deviceid

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/trackora/workforce-idm/pkg/apperrors"
)

// Storage keys used by the identity store.
const (
	IdentifierKey = "workflow_device_id"
	VisitedKey    = "workflow_has_visited"
)

// Identity describes one app installation. Identifier is the only field the
// registry keys authorization on; the rest is display metadata refreshed on
// reconciliation.
type Identity struct {
	Identifier  string `json:"identifier"`
	DisplayName string `json:"display_name"`
	Platform    string `json:"platform"`
	ModelName   string `json:"model_name,omitempty"`
}

// KV is the durable local storage contract the identity store persists into.
// Implementations must survive process restarts; an identifier lost to
// storage churn looks like a brand new device to the registry.
type KV interface {
	Get(key string) (string, bool, error)
	Set(key, value string) error
}

// DeviceInfo carries the platform-provided display metadata for the current
// installation. It is collected by the caller (the platform layer knows the
// model name, this package does not).
type DeviceInfo struct {
	DisplayName string
	Platform    string
	ModelName   string
}

// Store resolves and persists the stable per-installation device identity.
type Store struct {
	kv   KV
	info DeviceInfo
}

// NewStore creates an identity store over the given local storage.
func NewStore(kv KV, info DeviceInfo) *Store {
	return &Store{
		kv:   kv,
		info: info,
	}
}

// Identity returns the stable identity for this installation. The persisted
// identifier is returned verbatim when present; it is never regenerated once
// written. A missing identifier is generated from 128 bits of randomness and
// persisted before being returned.
//
// A storage failure makes the device unidentifiable: the caller must refuse
// to proceed with any network-dependent authorization (fail closed).
func (s *Store) Identity() (Identity, error) {
	saved, ok, err := s.kv.Get(IdentifierKey)
	if err != nil {
		return Identity{}, apperrors.Wrap(err, apperrors.ErrCodeIdentityUnavailable, "local storage unavailable")
	}
	if ok {
		return s.identityFor(saved), nil
	}

	identifier := NewIdentifier()
	if err := s.kv.Set(IdentifierKey, identifier); err != nil {
		return Identity{}, apperrors.Wrap(err, apperrors.ErrCodeIdentityUnavailable, "failed to persist device identifier")
	}
	return s.identityFor(identifier), nil
}

// FirstVisit reports whether this installation has never been seen before and
// marks it as visited. The first caller observes true, every later caller
// false. Used to decide between the signup and login landing pages.
func (s *Store) FirstVisit() (bool, error) {
	_, ok, err := s.kv.Get(VisitedKey)
	if err != nil {
		return false, apperrors.Wrap(err, apperrors.ErrCodeIdentityUnavailable, "local storage unavailable")
	}
	if ok {
		return false, nil
	}
	if err := s.kv.Set(VisitedKey, "true"); err != nil {
		return false, apperrors.Wrap(err, apperrors.ErrCodeIdentityUnavailable, "failed to persist visit marker")
	}
	return true, nil
}

func (s *Store) identityFor(identifier string) Identity {
	return Identity{
		Identifier:  identifier,
		DisplayName: s.info.DisplayName,
		Platform:    s.info.Platform,
		ModelName:   s.info.ModelName,
	}
}

// NewIdentifier generates a new device identifier. The "dev-" prefix makes
// registry rows self-describing; the UUID gives 122 random bits, enough that
// collisions are cryptographically negligible.
func NewIdentifier() string {
	return fmt.Sprintf("dev-%s", uuid.New().String())
}
