package logstore

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/hupe1980/wrongodb/document"
	"github.com/hupe1980/wrongodb/internal/fs"
)

// Durability controls when appended records reach stable storage.
type Durability int

const (
	// DurabilityAsync leaves flushing to the OS page cache.
	DurabilityAsync Durability = iota
	// DurabilitySync forces every record to stable storage before Append returns.
	DurabilitySync
)

// TailPolicy controls how replay treats an incomplete final line.
type TailPolicy int

const (
	// TailTruncate ends replay at a torn final line and reports its offset.
	TailTruncate TailPolicy = iota
	// TailStrict reports every undecodable or unterminated line as corruption.
	TailStrict
)

func (p TailPolicy) String() string {
	switch p {
	case TailTruncate:
		return "truncate"
	case TailStrict:
		return "strict"
	default:
		return fmt.Sprintf("TailPolicy(%d)", int(p))
	}
}

var (
	// ErrStorage is matched by every persistence failure.
	ErrStorage = errors.New("log storage error")
	// ErrCorrupt is returned when a line in the middle of the log cannot be decoded.
	ErrCorrupt = errors.New("log corrupt")
	// ErrTornTail is returned by Append while the log ends with an unterminated line.
	ErrTornTail = fmt.Errorf("%w: log ends with a torn record", ErrStorage)
	// ErrClosed is returned after Close.
	ErrClosed = fmt.Errorf("%w: closed", ErrStorage)
)

// Options configures a Storage.
type Options struct {
	Durability Durability
	TailPolicy TailPolicy
	// FS is the file system to use. Nil means the local file system.
	FS fs.FileSystem
}

// DefaultOptions returns options for an unsynced log with torn-tail repair.
func DefaultOptions() Options {
	return Options{
		Durability: DurabilityAsync,
		TailPolicy: TailTruncate,
	}
}

// Storage is an append-only log of JSON documents.
// It is not safe for concurrent use.
type Storage struct {
	fs     fs.FileSystem
	file   fs.File
	path   string
	opts   Options
	buf    []byte
	closed bool

	// tailChecked records that the log is known to end on a record boundary.
	tailChecked bool
}

// Open opens the log at path, creating it and its parent directories if needed.
func Open(path string, opts Options) (*Storage, error) {
	fsys := fs.OrDefault(opts.FS)

	if dir := filepath.Dir(path); dir != "" {
		if err := fsys.MkdirAll(dir, 0o755); err != nil {
			return nil, storageErr("create directory", err)
		}
	}

	f, err := fsys.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, storageErr("open", err)
	}

	return &Storage{
		fs:   fsys,
		file: f,
		path: path,
		opts: opts,
	}, nil
}

// Path returns the log file path.
func (s *Storage) Path() string { return s.path }

// Append writes doc as one line at the end of the log and returns the offset
// of the line's first byte.
//
// If the write fails the log is truncated back to its previous size, so a
// record is either fully present or absent.
func (s *Storage) Append(doc document.Document) (int64, error) {
	if s.closed {
		return 0, ErrClosed
	}

	offset, err := s.file.Seek(0, io.SeekEnd)
	if err != nil {
		return 0, storageErr("seek", err)
	}

	if !s.tailChecked {
		if err := s.checkTail(offset); err != nil {
			return 0, err
		}
	}

	s.buf = document.AppendEncode(s.buf[:0], doc)
	s.buf = append(s.buf, '\n')

	if _, err := s.file.Write(s.buf); err != nil {
		return 0, s.rollback(offset, storageErr("write", err))
	}

	if s.opts.Durability == DurabilitySync {
		if err := fs.SyncData(s.file); err != nil {
			return 0, s.rollback(offset, storageErr("sync", err))
		}
	}

	return offset, nil
}

func (s *Storage) checkTail(size int64) error {
	if size > 0 {
		var last [1]byte
		if _, err := s.file.ReadAt(last[:], size-1); err != nil {
			return storageErr("read tail", err)
		}
		if last[0] != '\n' {
			return fmt.Errorf("%w at offset %d", ErrTornTail, size)
		}
	}
	s.tailChecked = true
	return nil
}

func (s *Storage) rollback(size int64, cause error) error {
	if err := s.file.Truncate(size); err != nil {
		s.tailChecked = false
		return errors.Join(cause, storageErr("rollback", err))
	}
	return cause
}

// Truncate cuts the log to size bytes.
func (s *Storage) Truncate(size int64) error {
	if s.closed {
		return ErrClosed
	}
	s.tailChecked = false
	if err := s.file.Truncate(size); err != nil {
		return storageErr("truncate", err)
	}
	return nil
}

// Sync forces written records to stable storage.
func (s *Storage) Sync() error {
	if s.closed {
		return ErrClosed
	}
	if err := fs.SyncData(s.file); err != nil {
		return storageErr("sync", err)
	}
	return nil
}

// Size returns the current size of the log in bytes.
func (s *Storage) Size() (int64, error) {
	if s.closed {
		return 0, ErrClosed
	}
	fi, err := s.file.Stat()
	if err != nil {
		return 0, storageErr("stat", err)
	}
	return fi.Size(), nil
}

// Close releases the file handle.
func (s *Storage) Close() error {
	if s.closed {
		return ErrClosed
	}
	s.closed = true
	if err := s.file.Close(); err != nil {
		return storageErr("close", err)
	}
	return nil
}

func storageErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrStorage, op, err)
}
