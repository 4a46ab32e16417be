// Package common defines shared constants and sentinel errors used across
// the backend components. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")

	// Login outcome errors. The HTTP boundary collapses the first two into
	// one generic message so callers cannot probe which accounts exist.
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrAccountInactive    = errors.New("account inactive")

	// Service-level errors (generic/internal flow control).
	ErrInternal = errors.New("internal error")

	// Auth errors (invalid or malformed token).
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
)
