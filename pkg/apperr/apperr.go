package apperr

import (
	"errors"
	"fmt"
)

// Sentinel error kinds surfaced by the entitlement and credit services.
// Wrapped errors stay errors.Is-compatible with these, so callers can
// branch on the kind without depending on message text.
var (
	// ErrValidation marks caller input failing a precondition.
	ErrValidation = errors.New("validation error")
	// ErrConflict marks a uniqueness or concurrency violation; callers may retry.
	ErrConflict = errors.New("conflict")
	// ErrNotFound marks a missing referenced user or feature.
	ErrNotFound = errors.New("not found")
	// ErrPersistence marks storage failures; the transaction has been rolled back.
	ErrPersistence = errors.New("persistence error")
)

func Validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

func Conflictf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConflict, fmt.Sprintf(format, args...))
}

func NotFoundf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrNotFound, fmt.Sprintf(format, args...))
}

func Persistencef(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrPersistence, fmt.Sprintf(format, args...))
}
