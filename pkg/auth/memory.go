package auth

import (
	"context"
	"net/mail"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/polisai/shelf/pkg/domain"
)

// MinPasswordLength is the shortest password MemoryProvider accepts.
const MinPasswordLength = 6

type account struct {
	principal Principal
	hash      []byte
}

// MemoryProvider keeps accounts in memory with bcrypt password hashes.
type MemoryProvider struct {
	mu       sync.RWMutex
	accounts map[string]account
	cost     int
}

// NewMemoryProvider creates an empty provider. A cost of zero uses bcrypt.DefaultCost.
func NewMemoryProvider(cost int) *MemoryProvider {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	return &MemoryProvider{
		accounts: make(map[string]account),
		cost:     cost,
	}
}

// Register creates an account for email.
func (p *MemoryProvider) Register(ctx context.Context, email, password string) (Principal, error) {
	if err := ctx.Err(); err != nil {
		return Principal{}, authError(CodeOperationCancelled)
	}
	key, err := normalizeEmail(email)
	if err != nil {
		return Principal{}, err
	}
	if password == "" {
		return Principal{}, authError(CodeMissingPassword)
	}
	if len(password) < MinPasswordLength {
		return Principal{}, &domain.AuthError{
			Code:    CodeWeakPassword,
			Message: "Password should be at least 6 characters (" + CodeWeakPassword + ").",
		}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), p.cost)
	if err != nil {
		return Principal{}, &domain.AuthError{Code: CodeWeakPassword, Message: err.Error()}
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if _, exists := p.accounts[key]; exists {
		return Principal{}, authError(CodeEmailInUse)
	}
	principal := Principal{
		ID:        uuid.NewString(),
		Email:     key,
		CreatedAt: time.Now().UTC(),
	}
	p.accounts[key] = account{principal: principal, hash: hash}
	return principal, nil
}

// SignIn checks the password for email.
func (p *MemoryProvider) SignIn(ctx context.Context, email, password string) (Principal, error) {
	if err := ctx.Err(); err != nil {
		return Principal{}, authError(CodeOperationCancelled)
	}
	key, err := normalizeEmail(email)
	if err != nil {
		return Principal{}, err
	}
	if password == "" {
		return Principal{}, authError(CodeMissingPassword)
	}

	p.mu.RLock()
	acct, ok := p.accounts[key]
	p.mu.RUnlock()
	if !ok {
		return Principal{}, authError(CodeInvalidCredential)
	}
	if bcrypt.CompareHashAndPassword(acct.hash, []byte(password)) != nil {
		return Principal{}, authError(CodeInvalidCredential)
	}
	return acct.principal, nil
}

// Len returns the number of registered accounts.
func (p *MemoryProvider) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.accounts)
}

func normalizeEmail(email string) (string, error) {
	trimmed := strings.TrimSpace(email)
	addr, err := mail.ParseAddress(trimmed)
	if err != nil || addr.Address != trimmed {
		return "", authError(CodeInvalidEmail)
	}
	return strings.ToLower(addr.Address), nil
}

func authError(code string) *domain.AuthError {
	return &domain.AuthError{Code: code, Message: "Error (" + code + ")."}
}
