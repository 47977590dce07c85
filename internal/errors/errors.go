package errors

import (
	"errors"
	"fmt"
)

// Common error types for the portal guard
var (
	// Authentication errors
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrProviderUnavailable = errors.New("identity provider unavailable")

	// Hydration errors. A hydration timeout is a defined transition to
	// "unauthenticated", it is only used as a logging and metrics reason.
	ErrHydrationTimeout = errors.New("hydration grace window elapsed")

	// Audit errors
	ErrAuditWriteFailure = errors.New("audit write failure")
	ErrAuditQueueFull    = errors.New("audit queue full")

	// Session errors
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionCorrupt  = errors.New("persisted session corrupt")
	ErrSessionExpired  = errors.New("persisted session expired")

	// General errors
	ErrNotFound    = errors.New("not found")
	ErrInvalidRole = errors.New("invalid role")
)

// Wrapf wraps an error with context using fmt.Errorf
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// Join returns an error that wraps the given errors
func Join(errs ...error) error {
	return errors.Join(errs...)
}
