// Package guard wraps the device authorization engine into session
// effects. It owns the full sign-in and session-resume pipelines:
// authenticate, resolve the local device identity, run the device
// check, then either route the session by role, block it with a
// denial, or hand back a retryable state when the check could not be
// completed.
package guard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/trackora/workforce-idm/pkg/authn"
	"github.com/trackora/workforce-idm/pkg/authz"
	"github.com/trackora/workforce-idm/pkg/deviceid"
	"github.com/trackora/workforce-idm/pkg/notification"
	"github.com/trackora/workforce-idm/pkg/profile"
)

// State classifies what the caller should do with the session.
type State string

const (
	// StateProceed means the session is authorized; follow Entry.Route.
	StateProceed State = "proceed"
	// StateBlocked means the session must not proceed. The session has
	// been terminated when the block came from a device denial.
	StateBlocked State = "blocked"
	// StateRetry means the check could not be completed. The session is
	// still valid and the caller may retry.
	StateRetry State = "retry"
)

// Landing routes by role.
const (
	RouteStaff   = "/"
	RouteManager = "/manager"
	RouteAdmin   = "/admin"
)

// RouteForRole maps a profile role to its landing route. Unknown roles
// land on the staff route.
func RouteForRole(role profile.Role) string {
	switch role {
	case profile.RoleManager:
		return RouteManager
	case profile.RoleAdmin:
		return RouteAdmin
	default:
		return RouteStaff
	}
}

// Entry is the result of a guarded sign-in or resume.
type Entry struct {
	State     State
	Route     string
	Outcome   authz.Outcome
	Reason    string
	Role      profile.Role
	Principal authn.Principal
}

type inflightCall struct {
	done  chan struct{}
	entry Entry
	err   error
}

// SessionGuard runs the sign-in and resume pipelines. Rapid repeated
// resumes for the same account and device share a single in-flight
// check.
type SessionGuard struct {
	identity *deviceid.Store
	engine   *authz.Engine
	provider authn.Provider
	profiles *profile.ProfileService
	notifier notification.Notifier

	mu       sync.Mutex
	inflight map[string]*inflightCall
}

func NewSessionGuard(identity *deviceid.Store, engine *authz.Engine, provider authn.Provider, profiles *profile.ProfileService, notifier notification.Notifier) *SessionGuard {
	return &SessionGuard{
		identity: identity,
		engine:   engine,
		provider: provider,
		profiles: profiles,
		notifier: notifier,
		inflight: make(map[string]*inflightCall),
	}
}

// NewHeadlessSessionGuard creates a guard without a local device
// identity store, for server deployments where every caller carries
// its own device identity. Login, Resume, and Landing are unavailable
// on a headless guard; use LoginWithIdentity and CheckDevice.
func NewHeadlessSessionGuard(engine *authz.Engine, provider authn.Provider, profiles *profile.ProfileService, notifier notification.Notifier) *SessionGuard {
	return NewSessionGuard(nil, engine, provider, profiles, notifier)
}

var errNoLocalIdentity = errors.New("no local device identity store")

// Login resolves the local device identity, authenticates the
// credentials, and runs the device check for the resulting principal.
func (g *SessionGuard) Login(ctx context.Context, creds authn.Credentials) (Entry, error) {
	if g.identity == nil {
		return Entry{State: StateBlocked, Reason: "device identity unavailable"}, errNoLocalIdentity
	}
	identity, err := g.identity.Identity()
	if err != nil {
		slog.Error("Device identity unavailable", "err", err)
		return Entry{State: StateBlocked, Reason: "device identity unavailable"}, err
	}
	return g.LoginWithIdentity(ctx, creds, identity)
}

// LoginWithIdentity is Login for callers that carry their own device
// identity, such as the HTTP API. Credential failures are returned
// unwrapped so callers can distinguish them with
// authn.IsCredentialError.
func (g *SessionGuard) LoginWithIdentity(ctx context.Context, creds authn.Credentials, identity deviceid.Identity) (Entry, error) {
	principal, err := g.provider.SignIn(ctx, creds)
	if err != nil {
		if authn.IsCredentialError(err) {
			return Entry{State: StateBlocked, Reason: "invalid credentials"}, err
		}
		return Entry{State: StateRetry, Reason: "sign-in unavailable"}, err
	}
	return g.CheckDevice(ctx, principal, identity, false)
}

// Resume runs the device check for an already-authenticated principal.
// It covers cold start, foreground return, and the first check after
// signup; afterSignup widens the engine's tolerance for a device row
// that is not yet visible.
func (g *SessionGuard) Resume(ctx context.Context, principal authn.Principal, afterSignup bool) (Entry, error) {
	if g.identity == nil {
		return Entry{State: StateBlocked, Reason: "device identity unavailable", Principal: principal}, errNoLocalIdentity
	}
	identity, err := g.identity.Identity()
	if err != nil {
		slog.Error("Device identity unavailable", "accountId", principal.AccountID, "err", err)
		return Entry{State: StateBlocked, Reason: "device identity unavailable", Principal: principal}, err
	}
	return g.CheckDevice(ctx, principal, identity, afterSignup)
}

// CheckDevice runs one guarded device check. Concurrent calls for the
// same account and device share a single in-flight check and receive
// the same Entry.
func (g *SessionGuard) CheckDevice(ctx context.Context, principal authn.Principal, identity deviceid.Identity, afterSignup bool) (Entry, error) {
	key := principal.AccountID.String() + ":" + identity.Identifier
	g.mu.Lock()
	if c, ok := g.inflight[key]; ok {
		g.mu.Unlock()
		select {
		case <-c.done:
			return c.entry, c.err
		case <-ctx.Done():
			return Entry{State: StateRetry, Reason: "check canceled", Principal: principal}, ctx.Err()
		}
	}
	c := &inflightCall{done: make(chan struct{})}
	g.inflight[key] = c
	g.mu.Unlock()

	c.entry, c.err = g.check(ctx, principal, identity, afterSignup)

	g.mu.Lock()
	delete(g.inflight, key)
	g.mu.Unlock()
	close(c.done)

	return c.entry, c.err
}

func (g *SessionGuard) check(ctx context.Context, principal authn.Principal, identity deviceid.Identity, afterSignup bool) (Entry, error) {
	decision, err := g.engine.Check(ctx, principal, identity, authz.CheckOptions{AfterSignup: afterSignup})
	if err != nil {
		slog.Error("Device check failed", "accountId", principal.AccountID, "deviceId", identity.Identifier, "err", err)
		return Entry{State: StateRetry, Reason: "device check unavailable", Principal: principal}, err
	}

	if decision.Outcome == authz.OutcomeDenied {
		g.ensureSignedOut(ctx, principal)
		g.notifyDenial(principal, identity)
		return Entry{
			State:     StateBlocked,
			Outcome:   decision.Outcome,
			Reason:    "this device is not authorized for your account",
			Principal: principal,
		}, nil
	}

	role, err := g.profiles.GetRole(ctx, principal.AccountID)
	if err != nil {
		slog.Error("Role lookup failed", "accountId", principal.AccountID, "err", err)
		return Entry{State: StateRetry, Reason: "profile unavailable", Outcome: decision.Outcome, Principal: principal}, err
	}

	return Entry{
		State:     StateProceed,
		Route:     RouteForRole(role),
		Outcome:   decision.Outcome,
		Role:      role,
		Principal: principal,
	}, nil
}

// ensureSignedOut terminates the session again. The engine already
// signs out on denial; a second call covers the case where that
// attempt failed.
func (g *SessionGuard) ensureSignedOut(ctx context.Context, principal authn.Principal) {
	signOutCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := g.provider.SignOut(signOutCtx, principal); err != nil {
		slog.Error("Sign-out after denial failed", "accountId", principal.AccountID, "err", err)
	}
}

func (g *SessionGuard) notifyDenial(principal authn.Principal, identity deviceid.Identity) {
	if g.notifier == nil {
		return
	}
	alert := notification.DeviceAlert{
		AccountID:        principal.AccountID.String(),
		DeviceIdentifier: identity.Identifier,
		Model:            identity.ModelName,
		Platform:         identity.Platform,
		OccurredAt:       time.Now(),
	}
	go func() {
		if err := g.notifier.SendDeviceAlert(alert); err != nil {
			slog.Error("Device alert delivery failed", "accountId", alert.AccountID, "err", err)
		}
	}()
}

// Landing resolves where an unauthenticated visitor should land based
// on whether this device has opened the app before.
func (g *SessionGuard) Landing() (string, error) {
	if g.identity == nil {
		return "", errNoLocalIdentity
	}
	first, err := g.identity.FirstVisit()
	if err != nil {
		return "", fmt.Errorf("resolve landing: %w", err)
	}
	if first {
		return "/signup", nil
	}
	return "/login", nil
}
