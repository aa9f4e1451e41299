package model

import "errors"

var (
	// User related errors
	ErrUserNotFound       = errors.New("user not found")
	ErrUserAlreadyExists  = errors.New("user already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")

	// Reset flow errors. Expiry and attempt exhaustion clear the stored
	// reset artifact so a blown flow never leaves a usable token behind.
	ErrNoActiveReset        = errors.New("no active password reset request")
	ErrResetExpired         = errors.New("password reset link expired")
	ErrResetTooManyAttempts = errors.New("too many password reset attempts")

	// Permission/Access related errors
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")

	// Generic errors
	ErrInvalidInput = errors.New("invalid input")
)
