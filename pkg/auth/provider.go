// Package auth is the identity boundary: a Provider capability for registering
// and signing in users, an in-memory provider, and the auth form flow that
// turns provider outcomes into user-visible messages.
package auth

import (
	"context"
	"time"
)

// Provider error codes.
const (
	CodeEmailInUse         = "auth/email-already-in-use"
	CodeInvalidEmail       = "auth/invalid-email"
	CodeWeakPassword       = "auth/weak-password"
	CodeInvalidCredential  = "auth/invalid-credential"
	CodeMissingPassword    = "auth/missing-password"
	CodeOperationCancelled = "auth/operation-cancelled"
)

// Principal is an authenticated user.
type Principal struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"createdAt"`
}

// Provider registers and authenticates users. Failures are *domain.AuthError
// values carrying the provider's message.
type Provider interface {
	Register(ctx context.Context, email, password string) (Principal, error)
	SignIn(ctx context.Context, email, password string) (Principal, error)
}
