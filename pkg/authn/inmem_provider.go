package authn

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// InMemProvider implements Provider with an in-process account table. Used
// by tests and the inmem demo binary in place of the hosted auth backend.
type InMemProvider struct {
	secret   []byte
	accounts map[string]inMemAccount
	revoked  map[string]bool
	mu       sync.Mutex

	// Fail forces SignIn/SignOut to return the given error, simulating a
	// network failure reaching the provider.
	Fail error
}

type inMemAccount struct {
	id       uuid.UUID
	password string
}

// NewInMemProvider creates an empty in-memory auth provider.
func NewInMemProvider(secret string) *InMemProvider {
	return &InMemProvider{
		secret:   []byte(secret),
		accounts: make(map[string]inMemAccount),
		revoked:  make(map[string]bool),
	}
}

// AddAccount registers an account and returns its id.
func (p *InMemProvider) AddAccount(email, password string) uuid.UUID {
	p.mu.Lock()
	defer p.mu.Unlock()

	id := uuid.New()
	p.accounts[strings.ToLower(email)] = inMemAccount{
		id:       id,
		password: password,
	}
	return id
}

// SignIn authenticates the credentials and issues a signed session token.
func (p *InMemProvider) SignIn(ctx context.Context, credentials Credentials) (Principal, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.Fail != nil {
		return Principal{}, p.Fail
	}

	account, ok := p.accounts[strings.ToLower(strings.TrimSpace(credentials.Email))]
	if !ok || account.password != credentials.Password {
		return Principal{}, ErrInvalidCredentials
	}

	token, err := signToken(p.secret, account.id)
	if err != nil {
		return Principal{}, err
	}

	return Principal{
		AccountID: account.id,
		Token:     token,
	}, nil
}

// SignOut revokes the principal's token. Idempotent.
func (p *InMemProvider) SignOut(ctx context.Context, principal Principal) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.Fail != nil {
		return p.Fail
	}

	p.revoked[principal.Token] = true
	return nil
}

// SignedOut reports whether the principal's token has been revoked. Test
// helper.
func (p *InMemProvider) SignedOut(principal Principal) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.revoked[principal.Token]
}
