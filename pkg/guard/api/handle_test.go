package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/jwtauth/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/trackora/workforce-idm/pkg/authn"
	"github.com/trackora/workforce-idm/pkg/authz"
	"github.com/trackora/workforce-idm/pkg/deviceid"
	"github.com/trackora/workforce-idm/pkg/guard"
	"github.com/trackora/workforce-idm/pkg/notification"
	"github.com/trackora/workforce-idm/pkg/profile"
	"github.com/trackora/workforce-idm/pkg/ratelimit"
	"github.com/trackora/workforce-idm/pkg/registry"
)

const testSecret = "test-secret"

type apiFixture struct {
	handler  http.Handler
	provider *authn.InMemProvider
	registry *registry.InMemDeviceRegistry
	profiles *profile.InMemProfileRepository
}

func newAPIFixture(t *testing.T) *apiFixture {
	return newAPIFixtureWithLimiter(t, nil)
}

func newAPIFixtureWithLimiter(t *testing.T, limiter *ratelimit.AttemptLimiter) *apiFixture {
	t.Helper()

	identity := deviceid.NewStore(deviceid.NewInMemKV(), deviceid.DeviceInfo{})
	reg := registry.NewInMemDeviceRegistry()
	provider := authn.NewInMemProvider(testSecret)
	profiles := profile.NewInMemProfileRepository()

	engine := authz.NewEngineWithOptions(reg, provider, authz.Options{
		RetryDelay: time.Millisecond,
	})
	g := guard.NewSessionGuard(identity, engine, provider, profile.NewProfileService(profiles), &notification.MockNotifier{})

	auth := jwtauth.New("HS256", []byte(testSecret), nil)
	return &apiFixture{
		handler:  Handler(NewGuardHandler(g, limiter), auth),
		provider: provider,
		registry: reg,
		profiles: profiles,
	}
}

func (f *apiFixture) postLogin(t *testing.T, email, password, deviceID string) *httptest.ResponseRecorder {
	t.Helper()

	body, err := json.Marshal(LoginRequest{Email: email, Password: password})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/login", bytes.NewReader(body))
	if deviceID != "" {
		req.Header.Set(HeaderDeviceID, deviceID)
		req.Header.Set(HeaderDeviceModel, "Pixel 8")
		req.Header.Set(HeaderDevicePlatform, "android")
	}

	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func (f *apiFixture) postCheck(t *testing.T, token, deviceID string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, "/check", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if deviceID != "" {
		req.Header.Set(HeaderDeviceID, deviceID)
		req.Header.Set(HeaderDeviceModel, "Pixel 8")
		req.Header.Set(HeaderDevicePlatform, "android")
	}

	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func decodeEntry(t *testing.T, rec *httptest.ResponseRecorder) EntryResponse {
	t.Helper()
	var resp EntryResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return resp
}

func TestLoginRegistersFirstDevice(t *testing.T) {
	f := newAPIFixture(t)
	accountID := f.provider.AddAccount("staff@example.com", "secret")
	f.profiles.Add(accountID, "Sam Staff", profile.RoleStaff)

	rec := f.postLogin(t, "staff@example.com", "secret", "dev-aaa")

	assert.Equal(t, http.StatusOK, rec.Code)
	resp := decodeEntry(t, rec)
	assert.Equal(t, "success", resp.Status)
	assert.Equal(t, string(guard.StateProceed), resp.State)
	assert.Equal(t, guard.RouteStaff, resp.Route)
	assert.Equal(t, string(authz.OutcomeAutoRegistered), resp.Outcome)
	assert.NotEmpty(t, resp.Token)
	assert.Len(t, f.registry.All(), 1)
}

func TestLoginManagerRoute(t *testing.T) {
	f := newAPIFixture(t)
	accountID := f.provider.AddAccount("mgr@example.com", "secret")
	f.profiles.Add(accountID, "Morgan Manager", profile.RoleManager)

	rec := f.postLogin(t, "mgr@example.com", "secret", "dev-mgr")

	assert.Equal(t, http.StatusOK, rec.Code)
	resp := decodeEntry(t, rec)
	assert.Equal(t, guard.RouteManager, resp.Route)
	assert.Equal(t, string(profile.RoleManager), resp.Role)
}

func TestLoginInvalidCredentials(t *testing.T) {
	f := newAPIFixture(t)
	f.provider.AddAccount("staff@example.com", "secret")

	rec := f.postLogin(t, "staff@example.com", "wrong", "dev-aaa")

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Empty(t, f.registry.All())
}

func TestLoginRequiresDeviceHeader(t *testing.T) {
	f := newAPIFixture(t)
	f.provider.AddAccount("staff@example.com", "secret")

	rec := f.postLogin(t, "staff@example.com", "secret", "")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLoginUnrecognizedDeviceDenied(t *testing.T) {
	f := newAPIFixture(t)
	accountID := f.provider.AddAccount("staff@example.com", "secret")
	f.profiles.Add(accountID, "Sam Staff", profile.RoleStaff)
	for _, id := range []string{"dev-1", "dev-2"} {
		_, err := f.registry.Insert(context.Background(), registry.NewRecord(accountID, deviceid.Identity{
			Identifier: id,
			Platform:   "ios",
		}))
		require.NoError(t, err)
	}

	rec := f.postLogin(t, "staff@example.com", "secret", "dev-3")

	assert.Equal(t, http.StatusForbidden, rec.Code)
	resp := decodeEntry(t, rec)
	assert.Equal(t, "denied", resp.Status)
	assert.Equal(t, string(authz.OutcomeDenied), resp.Outcome)
	assert.Len(t, f.registry.All(), 2)
}

func TestCheckRequiresToken(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.postCheck(t, "", "dev-aaa")

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCheckWithValidToken(t *testing.T) {
	f := newAPIFixture(t)
	accountID := f.provider.AddAccount("staff@example.com", "secret")
	f.profiles.Add(accountID, "Sam Staff", profile.RoleStaff)

	principal, err := f.provider.SignIn(context.Background(), authn.Credentials{
		Email:    "staff@example.com",
		Password: "secret",
	})
	require.NoError(t, err)

	rec := f.postCheck(t, principal.Token, "dev-aaa")

	assert.Equal(t, http.StatusOK, rec.Code)
	resp := decodeEntry(t, rec)
	assert.Equal(t, string(guard.StateProceed), resp.State)
	assert.Equal(t, string(authz.OutcomeAutoRegistered), resp.Outcome)
}

func TestCheckRetryStateOnRegistryOutage(t *testing.T) {
	f := newAPIFixture(t)
	accountID := f.provider.AddAccount("staff@example.com", "secret")
	f.profiles.Add(accountID, "Sam Staff", profile.RoleStaff)

	principal, err := f.provider.SignIn(context.Background(), authn.Credentials{
		Email:    "staff@example.com",
		Password: "secret",
	})
	require.NoError(t, err)

	f.registry.Fail = assert.AnError

	rec := f.postCheck(t, principal.Token, "dev-aaa")

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	resp := decodeEntry(t, rec)
	assert.Equal(t, "retry", resp.Status)
	assert.False(t, f.provider.SignedOut(principal))
}

func TestLoginThrottledAfterRepeatedFailures(t *testing.T) {
	f := newAPIFixtureWithLimiter(t, ratelimit.NewAttemptLimiter(3, 0.001, 0))
	f.provider.AddAccount("staff@example.com", "secret")

	for i := 0; i < 3; i++ {
		rec := f.postLogin(t, "staff@example.com", "wrong", "dev-aaa")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	}

	rec := f.postLogin(t, "staff@example.com", "secret", "dev-aaa")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestLoginSuccessRefundsAttemptBudget(t *testing.T) {
	f := newAPIFixtureWithLimiter(t, ratelimit.NewAttemptLimiter(3, 0.001, 0))
	accountID := f.provider.AddAccount("staff@example.com", "secret")
	f.profiles.Add(accountID, "Sam Staff", profile.RoleStaff)

	rec := f.postLogin(t, "staff@example.com", "wrong", "dev-aaa")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = f.postLogin(t, "staff@example.com", "secret", "dev-aaa")
	assert.Equal(t, http.StatusOK, rec.Code)

	// The successful login refilled the budget, so further attempts
	// are not near the limit.
	for i := 0; i < 2; i++ {
		rec = f.postLogin(t, "staff@example.com", "secret", "dev-aaa")
		assert.Equal(t, http.StatusOK, rec.Code)
	}
}

func TestCheckRejectsGarbageToken(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.postCheck(t, "not-a-jwt", "dev-aaa")

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
