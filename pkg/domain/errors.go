package domain

import (
	"errors"
	"fmt"
)

// Common domain errors
var (
	ErrFetchFailed   = errors.New("fetch failed")
	ErrInvalidRecord = errors.New("invalid record")
	ErrAuthFailed    = errors.New("authentication failed")
	ErrConfigInvalid = errors.New("invalid configuration")
)

// FetchStage identifies which step of a read request failed.
type FetchStage string

const (
	// StageTransport covers connection, DNS and body read failures.
	StageTransport FetchStage = "transport"
	// StageStatus covers non-2xx HTTP responses.
	StageStatus FetchStage = "status"
	// StageDecode covers bodies that are not the expected JSON shape.
	StageDecode FetchStage = "decode"
)

// FetchError reports a failed read against a data source.
type FetchError struct {
	Source     string
	Stage      FetchStage
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	switch {
	case e.StatusCode != 0:
		return fmt.Sprintf("fetch %s: %s: unexpected status %d", e.Source, e.Stage, e.StatusCode)
	case e.Err != nil:
		return fmt.Sprintf("fetch %s: %s: %v", e.Source, e.Stage, e.Err)
	default:
		return fmt.Sprintf("fetch %s: %s failed", e.Source, e.Stage)
	}
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

func (e *FetchError) Is(target error) bool {
	return target == ErrFetchFailed
}

// ValidationError describes a record that is missing required fields.
// Projection absorbs these through fallbacks; validators only report them.
type ValidationError struct {
	Record string
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: field %q %s", e.Record, e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidRecord
}

// AuthError carries the identity provider's message verbatim.
type AuthError struct {
	Code    string
	Message string
}

func (e *AuthError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Code
}

func (e *AuthError) Is(target error) bool {
	return target == ErrAuthFailed
}

// IsFetchError checks if the error came from a data source read.
func IsFetchError(err error) bool {
	return errors.Is(err, ErrFetchFailed)
}

// IsValidationError checks if the error reports a malformed record.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidRecord)
}

// IsAuthError checks if the error came from the identity provider.
func IsAuthError(err error) bool {
	return errors.Is(err, ErrAuthFailed)
}

// ErrorResponse is the JSON error model returned by the HTTP API.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
