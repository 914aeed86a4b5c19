package sanitize

import (
	"errors"
	"fmt"
	"unicode"
)

// Validation errors.
var (
	// ErrEmptyName indicates an empty message or module name.
	ErrEmptyName = errors.New("name cannot be empty")

	// ErrInvalidName indicates a name with control characters or one that
	// exceeds MaxNameLength.
	ErrInvalidName = errors.New("invalid name")
)

// MaxNameLength bounds message and module names accepted from outside the
// process.
const MaxNameLength = 256

// ValidateName checks a message or module name received over HTTP or a
// relay: non-empty, at most MaxNameLength bytes and free of control
// characters.
func ValidateName(name string) error {
	if name == "" {
		return ErrEmptyName
	}
	if len(name) > MaxNameLength {
		return fmt.Errorf("%w: longer than %d bytes", ErrInvalidName, MaxNameLength)
	}
	for _, r := range name {
		if unicode.IsControl(r) {
			return fmt.Errorf("%w: contains control character %U", ErrInvalidName, r)
		}
	}
	return nil
}
