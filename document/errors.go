package document

import (
	"errors"
	"fmt"
)

// ErrValidation is matched by every error returned for malformed input.
var ErrValidation = errors.New("document validation failed")

// ValidationError describes why a document or value was rejected.
type ValidationError struct {
	// Path is the dotted location of the offending value ("" for the root).
	Path   string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("%s: %s", ErrValidation, e.Reason)
	}
	return fmt.Sprintf("%s: %s: %s", ErrValidation, e.Path, e.Reason)
}

// Is reports whether target is ErrValidation.
func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

func invalid(path, format string, args ...any) error {
	return &ValidationError{Path: path, Reason: fmt.Sprintf(format, args...)}
}
