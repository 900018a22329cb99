package notes

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrValidation indicates that caller-supplied note fields failed validation.
	ErrValidation = errors.New("notes: validation failed")
	// ErrConflict indicates that a write lost a revision race against a
	// concurrent writer. Retrying is the caller's decision.
	ErrConflict = errors.New("notes: concurrent modification")
	// ErrUnsupported indicates that the selected backend does not implement the
	// requested repository operation.
	ErrUnsupported = errors.New("notes: operation not supported by backend")
)

// Note is a detached snapshot of a persisted note. It carries no reference to
// the backend that produced it.
type Note struct {
	ID        string
	Title     string
	Content   string
	CreatedAt time.Time
	UpdatedAt time.Time
	// DeletedAt is nil while the note is active and records the moment the
	// note entered the recycle bin otherwise.
	DeletedAt *time.Time
}

// Deleted reports whether the note sits in the recycle bin.
func (n Note) Deleted() bool {
	return n.DeletedAt != nil
}

// ValidateInput checks the caller-supplied fields shared by Create and Update.
func ValidateInput(title, content string) error {
	if strings.TrimSpace(title) == "" {
		return fmt.Errorf("%w: title must not be empty", ErrValidation)
	}
	if strings.TrimSpace(content) == "" {
		return fmt.Errorf("%w: content must not be empty", ErrValidation)
	}
	return nil
}
