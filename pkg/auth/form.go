package auth

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/polisai/shelf/pkg/domain"
	"github.com/polisai/shelf/pkg/telemetry"
)

// Mode selects what a form submission does.
type Mode string

const (
	ModeSignIn   Mode = "signin"
	ModeRegister Mode = "register"
)

// Messages shown after a successful submission.
const (
	MessageRegistered = "user registered"
	MessageSignedIn   = "user signed in"
)

// Result is the outcome of a form submission.
type Result struct {
	Mode      Mode       `json:"mode"`
	OK        bool       `json:"ok"`
	Message   string     `json:"message"`
	Code      string     `json:"code,omitempty"`
	Principal *Principal `json:"principal,omitempty"`
}

// Form drives one auth form: a register/sign-in toggle and the last message.
type Form struct {
	provider Provider
	onAuth   func(Principal)
	metrics  *telemetry.Metrics
	logger   *slog.Logger

	mu      sync.Mutex
	mode    Mode
	message string
}

// FormOption configures a Form.
type FormOption func(*Form)

// WithOnAuth sets a callback invoked with the principal after a successful submit.
func WithOnAuth(fn func(Principal)) FormOption {
	return func(f *Form) { f.onAuth = fn }
}

// WithMetrics records submissions.
func WithMetrics(m *telemetry.Metrics) FormOption {
	return func(f *Form) { f.metrics = m }
}

// WithLogger sets the form logger.
func WithLogger(l *slog.Logger) FormOption {
	return func(f *Form) { f.logger = l }
}

// NewForm creates a form in sign-in mode.
func NewForm(provider Provider, opts ...FormOption) *Form {
	f := &Form{
		provider: provider,
		mode:     ModeSignIn,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Mode returns the current mode.
func (f *Form) Mode() Mode {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.mode
}

// Toggle switches between sign-in and register and returns the new mode.
func (f *Form) Toggle() Mode {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.mode == ModeRegister {
		f.mode = ModeSignIn
	} else {
		f.mode = ModeRegister
	}
	return f.mode
}

// SetMode selects a mode explicitly.
func (f *Form) SetMode(m Mode) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.mode = m
}

// Message returns the message of the last submission.
func (f *Form) Message() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.message
}

// Submit runs the current mode against the provider.
func (f *Form) Submit(ctx context.Context, email, password string) Result {
	return f.SubmitAs(ctx, f.Mode(), email, password)
}

// SubmitAs runs mode against the provider without changing the form's mode.
// Provider errors become the result message verbatim.
func (f *Form) SubmitAs(ctx context.Context, mode Mode, email, password string) Result {
	var (
		principal Principal
		err       error
		message   string
	)
	switch mode {
	case ModeRegister:
		principal, err = f.provider.Register(ctx, email, password)
		message = MessageRegistered
	default:
		mode = ModeSignIn
		principal, err = f.provider.SignIn(ctx, email, password)
		message = MessageSignedIn
	}

	f.metrics.RecordAuth(string(mode), err == nil)

	result := Result{Mode: mode}
	if err != nil {
		var authErr *domain.AuthError
		if !errors.As(err, &authErr) {
			authErr = &domain.AuthError{Message: err.Error()}
		}
		result.Message = authErr.Error()
		result.Code = authErr.Code
		f.logger.Info("Auth failed", "mode", mode, "code", authErr.Code)
	} else {
		result.OK = true
		result.Message = message
		result.Principal = &principal
		f.logger.Info("Auth succeeded", "mode", mode, "principal_id", principal.ID)
	}

	f.mu.Lock()
	f.message = result.Message
	f.mu.Unlock()

	if result.OK && f.onAuth != nil {
		f.onAuth(principal)
	}
	return result
}
