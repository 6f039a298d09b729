package session

import (
	"errors"
	"fmt"

	"github.com/harun/tagbot/internal/tags"
)

var (
	ErrUnsupportedFormat = errors.New("unsupported file format")
	ErrCorruptFile       = errors.New("file could not be parsed")
	ErrValidation        = errors.New("invalid tag value")
	ErrWrite             = errors.New("failed to write tags")
	ErrInvalidImage      = errors.New("invalid image")
	ErrNoActiveSession   = errors.New("no active session")
	ErrInvalidTransition = errors.New("action not allowed in current state")
	ErrFileTooLarge      = errors.New("file too large")
)

// ValidationError rejects a user supplied tag value. It matches
// ErrValidation with errors.Is.
type ValidationError struct {
	Field   tags.Field
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// IsFileError reports whether err means the uploaded file itself was
// rejected. No session survives such an error.
func IsFileError(err error) bool {
	return errors.Is(err, ErrUnsupportedFormat) ||
		errors.Is(err, ErrCorruptFile) ||
		errors.Is(err, ErrFileTooLarge)
}
