package authn

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// ErrInvalidCredentials marks a credential rejection, as opposed to a
// transient network failure reaching the provider. The two must stay
// distinguishable: the guard retries transient failures but never retries a
// rejection.
var ErrInvalidCredentials = errors.New("invalid credentials")

// Credentials carries the interactive sign-in input.
type Credentials struct {
	Email    string
	Password string
}

// Principal is the already-validated identity returned by the provider. The
// engine only ever uses AccountID; the token is opaque session state.
type Principal struct {
	AccountID uuid.UUID
	Token     string
}

// Provider is the external authentication collaborator. Implementations talk
// to the hosted auth backend; this package only defines the contract and the
// offline token validator.
type Provider interface {
	// SignIn authenticates the credentials. Returns ErrInvalidCredentials
	// (possibly wrapped) on rejection, any other error on transient failure.
	SignIn(ctx context.Context, credentials Credentials) (Principal, error)

	// SignOut terminates the principal's session at the provider. Must be
	// safe to call on an already-terminated session.
	SignOut(ctx context.Context, principal Principal) error
}

// IsCredentialError reports whether err is a credential rejection rather
// than a transient failure.
func IsCredentialError(err error) bool {
	return errors.Is(err, ErrInvalidCredentials)
}
