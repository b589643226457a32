// Package main provisions a workforce account: a login row with a hashed
// password and a profile row carrying the account's role. Intended for
// bootstrapping the first accounts of a deployment.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/ilyakaznacheev/cleanenv"
	dbutils "github.com/tendant/db-utils/db"

	"github.com/trackora/workforce-idm/pkg/authn"
	"github.com/trackora/workforce-idm/pkg/config"
	"github.com/trackora/workforce-idm/pkg/profile"
)

type Config struct {
	DbConfig  config.DatabaseConfig
	JwtConfig config.JWTConfig
}

func main() {
	email := flag.String("email", "", "Email for the new account (required)")
	password := flag.String("password", "", "Password for the new account (required)")
	fullName := flag.String("name", "", "Full name for the profile (required)")
	roleName := flag.String("role", "staff", "Role to assign: staff, manager, or admin")
	flag.Parse()

	if *email == "" || *password == "" || *fullName == "" {
		fmt.Println("Error: email, password, and name are required")
		flag.Usage()
		os.Exit(1)
	}

	role := profile.Role(*roleName)
	if !role.Valid() {
		fmt.Printf("Error: unknown role %q (expected staff, manager, or admin)\n", *roleName)
		os.Exit(1)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		AddSource: true,
	}))
	slog.SetDefault(logger)

	cfg := Config{}
	cleanenv.ReadEnv(&cfg)

	dbConfig := cfg.DbConfig.ToDbConfig()
	pool, err := dbutils.NewDbPool(context.Background(), dbConfig)
	if err != nil {
		slog.Error("Failed creating dbpool", "db", dbConfig.Database, "host", dbConfig.Host, "port", dbConfig.Port, "user", dbConfig.User)
		os.Exit(1)
	}

	ctx := context.Background()

	tx, err := pool.Begin(ctx)
	if err != nil {
		slog.Error("Failed to start transaction", "error", err)
		os.Exit(1)
	}
	defer tx.Rollback(ctx)

	provider := authn.NewPostgresProvider(tx, cfg.JwtConfig.Secret)
	accountID, err := provider.RegisterLogin(ctx, *email, *password)
	if err != nil {
		slog.Error("Failed to create login", "email", *email, "error", err)
		os.Exit(1)
	}

	insertProfile := `INSERT INTO profiles (id, full_name, role) VALUES ($1, $2, $3)`
	if _, err := tx.Exec(ctx, insertProfile, accountID, *fullName, string(role)); err != nil {
		slog.Error("Failed to create profile", "accountID", accountID, "error", err)
		os.Exit(1)
	}

	if err := tx.Commit(ctx); err != nil {
		slog.Error("Failed to commit transaction", "error", err)
		os.Exit(1)
	}

	slog.Info("Account created", "accountID", accountID, "email", *email, "role", role)
}
