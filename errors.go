package wrongodb

import (
	"context"
	"errors"
	"fmt"

	"github.com/hupe1980/wrongodb/backup"
	"github.com/hupe1980/wrongodb/blobstore"
	"github.com/hupe1980/wrongodb/document"
	"github.com/hupe1980/wrongodb/internal/logstore"
)

var (
	// ErrValidation is matched by errors for malformed documents or filters.
	// Such errors are *document.ValidationError and are raised before any I/O.
	ErrValidation = document.ErrValidation

	// ErrStorage is matched by every persistence failure.
	ErrStorage = errors.New("storage error")

	// ErrCorrupt is returned when the log holds a record that cannot be read.
	ErrCorrupt = errors.New("corrupt data")

	// ErrNotFound is returned when no document or backup matches.
	ErrNotFound = errors.New("not found")

	// ErrClosed is returned by every method after Close.
	ErrClosed = errors.New("database closed")
)

func translateError(err error) error {
	if err == nil {
		return nil
	}

	// Already classified.
	for _, sentinel := range []error{ErrValidation, ErrClosed, ErrCorrupt, ErrNotFound, ErrStorage} {
		if errors.Is(err, sentinel) {
			return err
		}
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	if errors.Is(err, logstore.ErrClosed) {
		return fmt.Errorf("%w: %w", ErrClosed, err)
	}
	if errors.Is(err, logstore.ErrCorrupt) {
		return fmt.Errorf("%w: %w", ErrCorrupt, err)
	}
	if errors.Is(err, logstore.ErrStorage) {
		return fmt.Errorf("%w: %w", ErrStorage, err)
	}

	// Backups.
	if errors.Is(err, backup.ErrNoSnapshot) || errors.Is(err, blobstore.ErrNotFound) {
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	}
	if errors.Is(err, backup.ErrChecksum) || errors.Is(err, backup.ErrCorrupt) ||
		errors.Is(err, backup.ErrInvalidMagic) || errors.Is(err, backup.ErrInvalidVersion) {
		return fmt.Errorf("%w: %w", ErrCorrupt, err)
	}

	return fmt.Errorf("%w: %w", ErrStorage, err)
}
