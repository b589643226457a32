package authn

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"golang.org/x/crypto/bcrypt"
)

// DBTX is an interface that allows us to use either a database connection or a transaction
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

// PostgresProvider implements Provider over the logins table. Passwords are
// stored as bcrypt hashes; each sign-in records a session row so sign-out is
// observable.
type PostgresProvider struct {
	db     DBTX
	secret []byte
}

// NewPostgresProvider creates a provider over the given database and token
// signing secret.
func NewPostgresProvider(db DBTX, secret string) *PostgresProvider {
	return &PostgresProvider{
		db:     db,
		secret: []byte(secret),
	}
}

// SignIn verifies the credentials against the logins table and issues a
// session token.
func (p *PostgresProvider) SignIn(ctx context.Context, credentials Credentials) (Principal, error) {
	var (
		accountID uuid.UUID
		hash      string
	)
	query := `SELECT id, password FROM logins WHERE lower(email) = lower($1)`
	err := p.db.QueryRow(ctx, query, strings.TrimSpace(credentials.Email)).Scan(&accountID, &hash)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Principal{}, ErrInvalidCredentials
		}
		slog.Error("Failed to look up login", "err", err)
		return Principal{}, fmt.Errorf("failed to look up login: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(credentials.Password)); err != nil {
		return Principal{}, ErrInvalidCredentials
	}

	token, err := signToken(p.secret, accountID)
	if err != nil {
		return Principal{}, fmt.Errorf("failed to sign session token: %w", err)
	}

	_, err = p.db.Exec(ctx, `INSERT INTO sessions (token, account_id) VALUES ($1, $2)`, token, accountID)
	if err != nil {
		slog.Error("Failed to record session", "err", err, "accountID", accountID)
		return Principal{}, fmt.Errorf("failed to record session: %w", err)
	}

	return Principal{
		AccountID: accountID,
		Token:     token,
	}, nil
}

// SignOut removes the principal's session row. Idempotent.
func (p *PostgresProvider) SignOut(ctx context.Context, principal Principal) error {
	_, err := p.db.Exec(ctx, `DELETE FROM sessions WHERE token = $1`, principal.Token)
	if err != nil {
		slog.Error("Failed to delete session", "err", err, "accountID", principal.AccountID)
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// HasSession reports whether the principal's session row still exists.
func (p *PostgresProvider) HasSession(ctx context.Context, principal Principal) (bool, error) {
	var exists bool
	query := `SELECT EXISTS (SELECT 1 FROM sessions WHERE token = $1)`
	if err := p.db.QueryRow(ctx, query, principal.Token).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check session: %w", err)
	}
	return exists, nil
}

// RegisterLogin creates a login row with a bcrypt-hashed password and
// returns the new account id. Used by provisioning tooling.
func (p *PostgresProvider) RegisterLogin(ctx context.Context, email, password string) (uuid.UUID, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to hash password: %w", err)
	}

	var accountID uuid.UUID
	query := `INSERT INTO logins (email, password) VALUES (lower($1), $2) RETURNING id`
	err = p.db.QueryRow(ctx, query, strings.TrimSpace(email), string(hash)).Scan(&accountID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to create login: %w", err)
	}
	return accountID, nil
}
