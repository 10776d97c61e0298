package service

import (
	"errors"

	"uptrack/internal/auth"
	"uptrack/internal/model"
)

var (
	ErrInvalidID       = model.ErrInvalidID
	ErrUnauthenticated = auth.ErrUnauthenticated
	ErrMissingIdentity = auth.ErrMissingIdentity

	// ErrNotFound covers both missing todos and todos the caller may not touch.
	ErrNotFound = errors.New("todo not found")

	ErrUserExists               = errors.New("user already exists")
	ErrUserNotFound             = errors.New("user not found")
	ErrAlreadyVerified          = errors.New("email already verified")
	ErrInvalidCredentials       = errors.New("invalid email or password")
	ErrInvalidVerificationToken = errors.New("invalid or expired verification token")
	ErrInvalidRefreshToken      = errors.New("invalid refresh token")
)

// ValidationError reports the first invalid field of a payload. Field is a
// dotted path such as "subtodos.0.title".
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

func invalid(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}
