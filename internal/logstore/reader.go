package logstore

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"
	"os"

	"github.com/hupe1980/wrongodb/document"
	"github.com/hupe1980/wrongodb/internal/fs"
)

// Record is a decoded log line and the offset it starts at.
type Record struct {
	Offset int64
	Doc    document.Document
}

// Reader iterates over the records of a log from the beginning.
type Reader struct {
	f        fs.File
	r        *bufio.Reader
	policy   TailPolicy
	offset   int64
	tornTail int64
	err      error
}

// Reader opens an independent reader over the log. A missing log file reads
// as empty. The caller must Close the reader.
func (s *Storage) Reader() (*Reader, error) {
	if s.closed {
		return nil, ErrClosed
	}
	return newReader(s.fs, s.path, s.opts.TailPolicy)
}

func newReader(fsys fs.FileSystem, path string, policy TailPolicy) (*Reader, error) {
	rd := &Reader{policy: policy, tornTail: -1}

	f, err := fsys.OpenFile(path, os.O_RDONLY, 0)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			rd.err = io.EOF
			return rd, nil
		}
		return nil, storageErr("open reader", err)
	}

	rd.f = f
	rd.r = bufio.NewReaderSize(f, 64*1024)
	return rd, nil
}

// Next returns the next record. It returns io.EOF at the end of the log, or at
// a torn tail under TailTruncate.
func (r *Reader) Next() (Record, error) {
	if r.err != nil {
		return Record{}, r.err
	}
	rec, err := r.next()
	if err != nil {
		r.err = err
	}
	return rec, err
}

func (r *Reader) next() (Record, error) {
	for {
		start := r.offset
		line, err := r.r.ReadBytes('\n')
		if err != nil && err != io.EOF {
			return Record{}, storageErr("read", err)
		}
		if len(line) == 0 {
			return Record{}, io.EOF
		}
		r.offset += int64(len(line))

		terminated := err == nil
		content := bytes.TrimSpace(line)

		if terminated && len(content) == 0 {
			continue
		}

		if len(content) > 0 {
			if json.Valid(content) && content[0] != '{' {
				return Record{}, fmt.Errorf("%w: line at offset %d is not an object", ErrCorrupt, start)
			}
			if terminated {
				doc, derr := document.Decode(content)
				if derr == nil {
					return Record{Offset: start, Doc: doc}, nil
				}
				return Record{}, r.badLine(start, derr)
			}
		}

		return Record{}, r.tornLine(start)
	}
}

// badLine handles a terminated line that failed to decode. Under TailTruncate
// it counts as a torn tail when nothing but whitespace follows it.
func (r *Reader) badLine(start int64, cause error) error {
	if r.policy == TailStrict {
		return fmt.Errorf("%w: line at offset %d: %v", ErrCorrupt, start, cause)
	}

	rest, err := r.onlyWhitespaceLeft()
	if err != nil {
		return err
	}
	if !rest {
		return fmt.Errorf("%w: line at offset %d: %v", ErrCorrupt, start, cause)
	}

	r.tornTail = start
	return io.EOF
}

func (r *Reader) tornLine(start int64) error {
	if r.policy == TailStrict {
		return fmt.Errorf("%w: unterminated line at offset %d", ErrCorrupt, start)
	}
	r.tornTail = start
	return io.EOF
}

func (r *Reader) onlyWhitespaceLeft() (bool, error) {
	var buf [4096]byte
	for {
		n, err := r.r.Read(buf[:])
		if len(bytes.TrimSpace(buf[:n])) > 0 {
			return false, nil
		}
		if err == io.EOF {
			return true, nil
		}
		if err != nil {
			return false, storageErr("read", err)
		}
	}
}

// TornTail returns the offset of the torn final line found by the reader.
// It is only meaningful after Next returned io.EOF.
func (r *Reader) TornTail() (int64, bool) {
	return r.tornTail, r.tornTail >= 0
}

// Close releases the reader's file handle.
func (r *Reader) Close() error {
	if r.f == nil {
		return nil
	}
	err := r.f.Close()
	r.f = nil
	return err
}

// ReadAll returns a single-pass sequence over every record in the log. Each
// call opens the file anew. Iteration stops after the first error.
func (s *Storage) ReadAll() iter.Seq2[Record, error] {
	return func(yield func(Record, error) bool) {
		rd, err := s.Reader()
		if err != nil {
			yield(Record{}, err)
			return
		}
		defer func() { _ = rd.Close() }()

		for {
			rec, err := rd.Next()
			if err == io.EOF {
				return
			}
			if err != nil {
				yield(Record{}, err)
				return
			}
			if !yield(rec, nil) {
				return
			}
		}
	}
}
