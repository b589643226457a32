// Package main runs the workforce device authorization service without a
// database, backed entirely by in-memory repositories. This is useful for:
// - Quick development and testing
// - Demo/prototype environments
// - Learning the API without database setup
//
// Note: All data is lost when the server stops. For production, use
// cmd/workforce-idm with PostgreSQL.
package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/go-chi/jwtauth/v5"
	"github.com/tendant/chi-demo/app"

	"github.com/trackora/workforce-idm/pkg/authn"
	"github.com/trackora/workforce-idm/pkg/authz"
	"github.com/trackora/workforce-idm/pkg/guard"
	guardapi "github.com/trackora/workforce-idm/pkg/guard/api"
	"github.com/trackora/workforce-idm/pkg/notification"
	"github.com/trackora/workforce-idm/pkg/profile"
	"github.com/trackora/workforce-idm/pkg/ratelimit"
	"github.com/trackora/workforce-idm/pkg/registry"
)

const jwtSecret = "inmem-dev-secret-change-in-production"

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		AddSource: false,
		Level:     slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	slog.Info("Starting in-memory workforce authorization service (no database required)")

	deviceRegistry := registry.NewInMemDeviceRegistry()
	provider := authn.NewInMemProvider(jwtSecret)
	profileRepo := profile.NewInMemProfileRepository()

	seedDemoData(provider, profileRepo, deviceRegistry)

	engine := authz.NewEngine(deviceRegistry, provider)
	profileService := profile.NewProfileService(profileRepo)
	notifier := &notification.MockNotifier{}

	sessionGuard := guard.NewHeadlessSessionGuard(engine, provider, profileService, notifier)
	guardHandle := guardapi.NewGuardHandler(sessionGuard, ratelimit.NewAttemptLimiter(10, 0.2, 0))

	server := app.DefaultApp()
	app.RoutesHealthz(server.R)
	app.RoutesHealthzReady(server.R)

	tokenAuth := jwtauth.New("HS256", []byte(jwtSecret), nil)
	server.R.Mount("/auth", guardapi.Handler(guardHandle, tokenAuth))

	slog.Info("Demo accounts ready",
		"staff", "staff@example.com / password",
		"manager", "manager@example.com / password",
		"admin", "admin@example.com / password")

	server.Run()
}

// seedDemoData provisions demo accounts, their profiles, and one shared
// admin tablet so every authorization outcome can be exercised by hand.
func seedDemoData(provider *authn.InMemProvider, profiles *profile.InMemProfileRepository, devices *registry.InMemDeviceRegistry) {
	staffID := provider.AddAccount("staff@example.com", "password")
	profiles.Add(staffID, "Sam Staff", profile.RoleStaff)

	managerID := provider.AddAccount("manager@example.com", "password")
	profiles.Add(managerID, "Morgan Manager", profile.RoleManager)

	adminID := provider.AddAccount("admin@example.com", "password")
	profiles.Add(adminID, "Avery Admin", profile.RoleAdmin)

	// Shared kiosk tablet; any account may sign in from it. Send the
	// X-Device-ID header "kiosk-tablet-001" to see the bypass.
	_, err := devices.Insert(context.Background(), registry.DeviceRecord{
		DeviceIdentifier: "kiosk-tablet-001",
		Model:            "iPad",
		OSVersion:        "ios",
		IsActive:         true,
		IsAdminDevice:    true,
	})
	if err != nil {
		slog.Error("Failed seeding admin device", "err", err)
		os.Exit(-1)
	}
}
