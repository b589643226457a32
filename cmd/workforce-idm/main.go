package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/go-chi/jwtauth/v5"
	"github.com/ilyakaznacheev/cleanenv"
	"github.com/jinzhu/copier"
	"github.com/tendant/chi-demo/app"
	dbutils "github.com/tendant/db-utils/db"

	"github.com/trackora/workforce-idm/pkg/authn"
	"github.com/trackora/workforce-idm/pkg/authz"
	"github.com/trackora/workforce-idm/pkg/config"
	"github.com/trackora/workforce-idm/pkg/guard"
	guardapi "github.com/trackora/workforce-idm/pkg/guard/api"
	"github.com/trackora/workforce-idm/pkg/notification"
	"github.com/trackora/workforce-idm/pkg/profile"
	"github.com/trackora/workforce-idm/pkg/ratelimit"
	"github.com/trackora/workforce-idm/pkg/registry"
)

type Config struct {
	DbConfig        config.DatabaseConfig
	AppConfig       app.AppConfig
	JwtConfig       config.JWTConfig
	GuardConfig     config.GuardConfig
	EmailConfig     config.EmailConfig
	RateLimitConfig config.RateLimitConfig
}

func main() {

	cfg := Config{}
	cleanenv.ReadEnv(&cfg)

	server := app.DefaultApp()

	app.RoutesHealthz(server.R)
	app.RoutesHealthzReady(server.R)

	dbConfig := cfg.DbConfig.ToDbConfig()
	pool, err := dbutils.NewDbPool(context.Background(), dbConfig)
	if err != nil {
		slog.Error("Failed creating dbpool", "db", dbConfig.Database, "host", dbConfig.Host, "port", dbConfig.Port, "user", dbConfig.User)
		os.Exit(-1)
	}

	deviceRegistry, err := registry.NewDeviceRegistry("postgres", registry.RepositoryConfig{DB: pool})
	if err != nil {
		slog.Error("Failed creating device registry", "err", err)
		os.Exit(-1)
	}

	provider := authn.NewPostgresProvider(pool, cfg.JwtConfig.Secret)

	var engineOptions authz.Options
	copier.Copy(&engineOptions, &cfg.GuardConfig)
	engine := authz.NewEngineWithOptions(deviceRegistry, provider, engineOptions)

	profileService := profile.NewProfileService(profile.NewPostgresProfileRepository(pool))

	var notifier notification.Notifier
	if cfg.EmailConfig.IsConfigured() {
		emailNotifier, err := notification.NewEmailNotifier(cfg.EmailConfig.ToSMTPConfig())
		if err != nil {
			slog.Error("Failed creating email notifier", "err", err)
			os.Exit(-1)
		}
		notifier = emailNotifier
	} else {
		slog.Info("EMAIL_ALERT_TO not set, device alerts disabled")
	}

	sessionGuard := guard.NewHeadlessSessionGuard(engine, provider, profileService, notifier)

	var attempts *ratelimit.AttemptLimiter
	if cfg.RateLimitConfig.Enabled {
		attempts = ratelimit.NewAttemptLimiter(cfg.RateLimitConfig.Burst, cfg.RateLimitConfig.PerSecond, cfg.RateLimitConfig.BucketTTL)
	}

	guardHandle := guardapi.NewGuardHandler(sessionGuard, attempts)

	tokenAuth := jwtauth.New("HS256", []byte(cfg.JwtConfig.Secret), nil)
	server.R.Mount("/auth", guardapi.Handler(guardHandle, tokenAuth))

	server.Run()

}
