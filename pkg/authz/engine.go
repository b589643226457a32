package authz

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"

	"github.com/trackora/workforce-idm/pkg/apperrors"
	"github.com/trackora/workforce-idm/pkg/authn"
	"github.com/trackora/workforce-idm/pkg/deviceid"
	"github.com/trackora/workforce-idm/pkg/registry"
)

// errRecordNotVisible marks a registry read that has not yet caught up with
// a just-completed signup registration.
var errRecordNotVisible = errors.New("device record not yet visible")

// Options tunes the engine's network behavior.
type Options struct {
	// CallTimeout bounds every registry and auth call. A timeout surfaces
	// as a transient check failure, never as a denial.
	CallTimeout time.Duration
	// RetryAttempts is the total number of account-device reads attempted
	// on the post-signup path before falling through to auto-register.
	RetryAttempts uint64
	// RetryDelay is the constant delay between those attempts.
	RetryDelay time.Duration
}

// DefaultOptions returns the engine defaults.
func DefaultOptions() Options {
	return Options{
		CallTimeout:   10 * time.Second,
		RetryAttempts: 3,
		RetryDelay:    500 * time.Millisecond,
	}
}

// SessionTerminator force-terminates an authenticated session at the auth
// provider. authn.Provider satisfies it.
type SessionTerminator interface {
	SignOut(ctx context.Context, principal authn.Principal) error
}

// CheckOptions carries per-check flags.
type CheckOptions struct {
	// AfterSignup marks a check running immediately after a completed
	// signup, where the just-created device record may not be visible yet.
	AfterSignup bool
}

// Engine decides, for every login and resume, whether the current device may
// act as the authenticated account.
type Engine struct {
	registry registry.DeviceRegistry
	sessions SessionTerminator
	locks    *keyedMutex
	options  Options
}

// NewEngine creates an engine with default options.
func NewEngine(reg registry.DeviceRegistry, sessions SessionTerminator) *Engine {
	return NewEngineWithOptions(reg, sessions, DefaultOptions())
}

// NewEngineWithOptions creates an engine with custom options.
func NewEngineWithOptions(reg registry.DeviceRegistry, sessions SessionTerminator, options Options) *Engine {
	if options.CallTimeout <= 0 {
		options.CallTimeout = DefaultOptions().CallTimeout
	}
	if options.RetryAttempts == 0 {
		options.RetryAttempts = DefaultOptions().RetryAttempts
	}
	if options.RetryDelay <= 0 {
		options.RetryDelay = DefaultOptions().RetryDelay
	}
	return &Engine{
		registry: reg,
		sessions: sessions,
		locks:    newKeyedMutex(),
		options:  options,
	}
}

// Check runs the full authorization sequence for the principal and device
// identity: admin lookup first, then the zero/one/many account-device
// classification. At most one registry mutation (insert or update) and at
// most one forced sign-out happen per check.
//
// Any registry I/O failure returns a CHECK_FAILED error; the caller must
// block navigation and allow retry, never grant access. Only an explicit
// policy mismatch produces OutcomeDenied.
func (e *Engine) Check(ctx context.Context, principal authn.Principal, identity deviceid.Identity, opts CheckOptions) (Decision, error) {
	// The whole check-and-mutate sequence is serialized per pair so
	// concurrent triggers cannot double-register.
	unlock := e.locks.lock(principal.AccountID.String() + ":" + identity.Identifier)
	defer unlock()

	// Admin lookup runs and is evaluated before the account query: the
	// bypass must short-circuit so an admin device is never auto-registered
	// against an account.
	admin, err := e.findAdminDevice(ctx, identity.Identifier)
	if err != nil {
		return Decision{}, apperrors.Wrap(err, apperrors.ErrCodeCheckFailed, "admin device lookup failed")
	}
	if admin != nil {
		slog.Info("Admin device detected, bypassing device binding",
			"identifier", identity.Identifier, "accountID", principal.AccountID)
		return Decision{Outcome: OutcomeAdminBypass, Record: admin}, nil
	}

	records, err := e.listAccountDevices(ctx, principal.AccountID, identity.Identifier, opts.AfterSignup)
	if err != nil {
		return Decision{}, apperrors.Wrap(err, apperrors.ErrCodeCheckFailed, "account device lookup failed")
	}

	switch len(records) {
	case 0:
		return e.autoRegister(ctx, principal.AccountID, identity)
	case 1:
		return e.checkSingleDevice(ctx, principal, identity, records[0])
	default:
		return e.checkMultiDevice(ctx, principal, identity, records)
	}
}

// autoRegister binds the current identity as the account's first device. A
// uniqueness conflict means another check already registered this pairing
// and collapses into plain success.
func (e *Engine) autoRegister(ctx context.Context, accountID uuid.UUID, identity deviceid.Identity) (Decision, error) {
	cctx, cancel := context.WithTimeout(ctx, e.options.CallTimeout)
	defer cancel()

	created, err := e.registry.Insert(cctx, registry.NewRecord(accountID, identity))
	if err != nil {
		if errors.Is(err, registry.ErrDuplicateDevice) {
			slog.Info("Concurrent device registration collapsed into success",
				"code", apperrors.ErrCodeConflictCollapsed,
				"accountID", accountID, "identifier", identity.Identifier)
			return Decision{Outcome: OutcomeAllowed}, nil
		}
		return Decision{}, apperrors.Wrap(err, apperrors.ErrCodeCheckFailed, "device registration failed")
	}

	slog.Info("Device auto-registered for account",
		"accountID", accountID, "identifier", identity.Identifier, "recordID", created.ID)
	return Decision{Outcome: OutcomeAutoRegistered, Record: &created}, nil
}

// checkSingleDevice tolerates reinstall-driven identifier churn: a mismatch
// on a single-device account is overwhelmingly a reinstall, not an
// intrusion, so the stored identifier is migrated in place.
func (e *Engine) checkSingleDevice(ctx context.Context, principal authn.Principal, identity deviceid.Identity, record registry.DeviceRecord) (Decision, error) {
	if record.DeviceIdentifier == identity.Identifier {
		return Decision{Outcome: OutcomeAllowed, Record: &record}, nil
	}

	// Admin rows bind to an identifier, not an account; they are sensitive
	// configuration and must never be silently migrated.
	if record.IsAdminDevice {
		return e.deny(ctx, principal, identity)
	}

	cctx, cancel := context.WithTimeout(ctx, e.options.CallTimeout)
	defer cancel()

	updated, err := e.registry.UpdateIdentifier(cctx, record.ID, identity)
	if err != nil {
		return Decision{}, apperrors.Wrap(err, apperrors.ErrCodeCheckFailed, "device reconciliation failed")
	}

	slog.Info("Device identifier reconciled for single-device account",
		"accountID", principal.AccountID, "recordID", record.ID,
		"oldIdentifier", record.DeviceIdentifier, "newIdentifier", identity.Identifier)
	return Decision{Outcome: OutcomeReconciled, Record: &updated}, nil
}

// checkMultiDevice requires an exact identifier match once an account has
// bound two or more devices. Proliferation past that point must be explicit.
func (e *Engine) checkMultiDevice(ctx context.Context, principal authn.Principal, identity deviceid.Identity, records []registry.DeviceRecord) (Decision, error) {
	for i := range records {
		if records[i].DeviceIdentifier == identity.Identifier {
			return Decision{Outcome: OutcomeAllowed, Record: &records[i]}, nil
		}
	}
	return e.deny(ctx, principal, identity)
}

// deny terminates the session and returns the denial. A sign-out failure is
// logged but does not soften the outcome; the guard re-attempts termination.
func (e *Engine) deny(ctx context.Context, principal authn.Principal, identity deviceid.Identity) (Decision, error) {
	slog.Warn("Unrecognized device for multi-device account, terminating session",
		"accountID", principal.AccountID, "identifier", identity.Identifier)

	cctx, cancel := context.WithTimeout(ctx, e.options.CallTimeout)
	defer cancel()

	if err := e.sessions.SignOut(cctx, principal); err != nil {
		slog.Error("Failed to terminate session on denial", "err", err, "accountID", principal.AccountID)
	}

	return Decision{
		Outcome: OutcomeDenied,
		Reason:  DeniedReasonUnrecognizedDevice,
	}, nil
}

// findAdminDevice queries for an active admin-flagged record bound to the
// identifier, irrespective of account.
func (e *Engine) findAdminDevice(ctx context.Context, identifier string) (*registry.DeviceRecord, error) {
	cctx, cancel := context.WithTimeout(ctx, e.options.CallTimeout)
	defer cancel()

	return e.registry.FindActiveAdminByIdentifier(cctx, identifier)
}

// listAccountDevices reads the account's active records. On the post-signup
// path the read is retried with a short constant backoff because the record
// created during signup may not be visible yet; exhausting the retries
// returns an empty list so the caller falls through to auto-register instead
// of denying a caller who just proved account ownership.
func (e *Engine) listAccountDevices(ctx context.Context, accountID uuid.UUID, identifier string, afterSignup bool) ([]registry.DeviceRecord, error) {
	if !afterSignup {
		return e.listOnce(ctx, accountID)
	}

	var records []registry.DeviceRecord
	operation := func() error {
		var err error
		records, err = e.listOnce(ctx, accountID)
		if err != nil {
			return err
		}
		for _, record := range records {
			if record.DeviceIdentifier == identifier {
				return nil
			}
		}
		return errRecordNotVisible
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(e.options.RetryDelay), e.options.RetryAttempts-1),
		ctx,
	)

	if err := backoff.Retry(operation, policy); err != nil {
		if errors.Is(err, errRecordNotVisible) {
			slog.Info("Device record not visible after signup retries, falling through to auto-register",
				"accountID", accountID, "identifier", identifier, "attempts", e.options.RetryAttempts)
			return nil, nil
		}
		return nil, err
	}

	return records, nil
}

func (e *Engine) listOnce(ctx context.Context, accountID uuid.UUID) ([]registry.DeviceRecord, error) {
	cctx, cancel := context.WithTimeout(ctx, e.options.CallTimeout)
	defer cancel()

	return e.registry.ListActiveByAccount(cctx, accountID)
}
