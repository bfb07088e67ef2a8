package blockfile

import (
	"errors"
	"fmt"
)

// ErrStorage is matched by every error returned from this package.
var ErrStorage = errors.New("block file error")

var (
	ErrExists             = fmt.Errorf("%w: file already exists", ErrStorage)
	ErrNotFound           = fmt.Errorf("%w: file not found", ErrStorage)
	ErrShortRead          = fmt.Errorf("%w: short read", ErrStorage)
	ErrBadMagic           = fmt.Errorf("%w: invalid file magic", ErrStorage)
	ErrUnsupportedVersion = fmt.Errorf("%w: unsupported version", ErrStorage)
	ErrPageSizeTooSmall   = fmt.Errorf("%w: page size too small for header", ErrStorage)
	ErrChecksumMismatch   = fmt.Errorf("%w: checksum mismatch", ErrStorage)
	ErrInvalidBlockID     = fmt.Errorf("%w: block id out of range", ErrStorage)
	ErrPayloadTooLarge    = fmt.Errorf("%w: payload too large for page", ErrStorage)
	ErrClosed             = fmt.Errorf("%w: closed", ErrStorage)
)

func ioErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrStorage, op, err)
}
