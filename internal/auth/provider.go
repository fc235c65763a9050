package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	appLog "confprog/internal/log"
	"confprog/internal/store"
)

// Identity is an authenticated user.
type Identity struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
}

// Provider verifies or creates credentials.
type Provider interface {
	Register(ctx context.Context, email, password string) (Identity, error)
	SignIn(ctx context.Context, email, password string) (Identity, error)
}

// Account is the persisted password account.
type Account struct {
	UserID       string    `json:"user_id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"password_hash"`
	CreatedAt    time.Time `json:"created_at"`
}

// DefaultMinPasswordLength is the shortest accepted password.
const DefaultMinPasswordLength = 6

var validate = validator.New(validator.WithRequiredStructEnabled())

// LocalProvider keeps email/password accounts in a document store.
type LocalProvider struct {
	docs      store.DocumentStore
	minLength int
	params    Argon2Params
	now       func() time.Time

	// registrations are check-then-write against a store without CAS.
	regMu sync.Mutex
}

// NewLocalProvider creates a provider. minLength <= 0 selects
// DefaultMinPasswordLength.
func NewLocalProvider(docs store.DocumentStore, minLength int) *LocalProvider {
	if minLength <= 0 {
		minLength = DefaultMinPasswordLength
	}
	return &LocalProvider{
		docs:      docs,
		minLength: minLength,
		params:    DefaultArgon2Params,
		now:       time.Now,
	}
}

// WithArgon2Params overrides hashing cost. Tests use a cheap setting.
func (p *LocalProvider) WithArgon2Params(params Argon2Params) *LocalProvider {
	p.params = params
	return p
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func checkEmail(email string) error {
	if err := validate.Var(email, "required,email"); err != nil {
		return &CredentialError{Code: CodeInvalidEmail, Err: err}
	}
	return nil
}

// Register creates a new account and returns its identity.
func (p *LocalProvider) Register(ctx context.Context, email, password string) (Identity, error) {
	email = normalizeEmail(email)
	if err := checkEmail(email); err != nil {
		return Identity{}, err
	}
	if len([]rune(password)) < p.minLength {
		return Identity{}, credentialError(CodeWeakPassword)
	}

	p.regMu.Lock()
	defer p.regMu.Unlock()

	_, found, err := p.lookup(ctx, email)
	if err != nil {
		return Identity{}, err
	}
	if found {
		return Identity{}, credentialError(CodeEmailInUse)
	}

	hash, err := HashPassword(p.params, password)
	if err != nil {
		return Identity{}, err
	}
	acct := Account{
		UserID:       uuid.NewString(),
		Email:        email,
		PasswordHash: hash,
		CreatedAt:    p.now().UTC(),
	}
	body, err := json.Marshal(acct)
	if err != nil {
		return Identity{}, fmt.Errorf("encode account: %w", err)
	}
	if err := p.docs.Set(ctx, store.AccountKey(email), body); err != nil {
		return Identity{}, fmt.Errorf("store account: %w", err)
	}

	appLog.Info("account registered", "user_id", acct.UserID)
	return Identity{UserID: acct.UserID, Email: acct.Email}, nil
}

// SignIn verifies the password of an existing account.
func (p *LocalProvider) SignIn(ctx context.Context, email, password string) (Identity, error) {
	email = normalizeEmail(email)
	if err := checkEmail(email); err != nil {
		return Identity{}, err
	}

	acct, found, err := p.lookup(ctx, email)
	if err != nil {
		return Identity{}, err
	}
	if !found {
		return Identity{}, credentialError(CodeInvalidCredential)
	}

	ok, err := VerifyPassword(password, acct.PasswordHash)
	if err != nil {
		appLog.Error("stored password hash unreadable", err, "user_id", acct.UserID)
		return Identity{}, credentialError(CodeInvalidCredential)
	}
	if !ok {
		return Identity{}, credentialError(CodeInvalidCredential)
	}
	return Identity{UserID: acct.UserID, Email: acct.Email}, nil
}

func (p *LocalProvider) lookup(ctx context.Context, email string) (Account, bool, error) {
	body, ok, err := p.docs.Get(ctx, store.AccountKey(email))
	if err != nil {
		return Account{}, false, fmt.Errorf("read account: %w", err)
	}
	if !ok {
		return Account{}, false, nil
	}
	var acct Account
	if err := json.Unmarshal(body, &acct); err != nil {
		return Account{}, false, fmt.Errorf("decode account: %w", err)
	}
	return acct, true, nil
}
