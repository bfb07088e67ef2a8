// Package compress frames a byte stream into independently compressed chunks.
//
// Each chunk is written as
//
//	[raw length uint32][stored length uint32][stored bytes]
//
// in little endian. A stored length of zero means the chunk is kept
// uncompressed because compression did not pay off.
package compress

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Algorithm selects the chunk compression.
type Algorithm uint8

const (
	// None stores chunks as is.
	None Algorithm = 0
	// LZ4 is fast block compression.
	LZ4 Algorithm = 1
	// ZSTD compresses better at some CPU cost.
	ZSTD Algorithm = 2
)

// DefaultChunkSize is the amount of raw data compressed as one unit.
const DefaultChunkSize = 256 * 1024

const chunkHeaderSize = 8

// ErrCorrupt is returned for malformed chunk streams.
var ErrCorrupt = errors.New("corrupt compressed stream")

func (a Algorithm) String() string {
	switch a {
	case None:
		return "none"
	case LZ4:
		return "lz4"
	case ZSTD:
		return "zstd"
	default:
		return fmt.Sprintf("Algorithm(%d)", uint8(a))
	}
}

// Parse returns the algorithm named s ("none", "lz4" or "zstd").
func Parse(s string) (Algorithm, error) {
	switch strings.ToLower(s) {
	case "", "none":
		return None, nil
	case "lz4":
		return LZ4, nil
	case "zstd":
		return ZSTD, nil
	default:
		return None, fmt.Errorf("unknown compression %q", s)
	}
}

func (a Algorithm) valid() bool { return a <= ZSTD }

var (
	zstdEncoderPool sync.Pool
	zstdDecoderPool sync.Pool
)

func getZstdEncoder() *zstd.Encoder {
	if v := zstdEncoderPool.Get(); v != nil {
		return v.(*zstd.Encoder)
	}
	enc, _ := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	return enc
}

func getZstdDecoder() *zstd.Decoder {
	if v := zstdDecoderPool.Get(); v != nil {
		return v.(*zstd.Decoder)
	}
	dec, _ := zstd.NewReader(nil)
	return dec
}

// compressChunk returns the compressed form of raw, or nil when it would not
// save at least 10%.
func compressChunk(alg Algorithm, raw []byte) ([]byte, error) {
	var out []byte
	switch alg {
	case LZ4:
		buf := make([]byte, lz4.CompressBlockBound(len(raw)))
		n, err := lz4.CompressBlock(raw, buf, nil)
		if err != nil {
			return nil, err
		}
		out = buf[:n]
	case ZSTD:
		enc := getZstdEncoder()
		out = enc.EncodeAll(raw, nil)
		zstdEncoderPool.Put(enc)
	default:
		return nil, nil
	}

	if len(out) == 0 || float64(len(out)) > float64(len(raw))*0.9 {
		return nil, nil
	}
	return out, nil
}

func decompressChunk(alg Algorithm, stored []byte, rawLen int) ([]byte, error) {
	raw := make([]byte, rawLen)
	switch alg {
	case LZ4:
		n, err := lz4.UncompressBlock(stored, raw)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrCorrupt, err)
		}
		if n != rawLen {
			return nil, fmt.Errorf("%w: decompressed %d of %d bytes", ErrCorrupt, n, rawLen)
		}
		return raw, nil
	case ZSTD:
		dec := getZstdDecoder()
		defer zstdDecoderPool.Put(dec)
		out, err := dec.DecodeAll(stored, raw[:0])
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrCorrupt, err)
		}
		if len(out) != rawLen {
			return nil, fmt.Errorf("%w: decompressed %d of %d bytes", ErrCorrupt, len(out), rawLen)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: compressed chunk in %s stream", ErrCorrupt, alg)
	}
}

// Writer compresses everything written to it in chunks. Close flushes the
// final chunk; it does not close the underlying writer.
type Writer struct {
	w         io.Writer
	alg       Algorithm
	chunkSize int
	buf       []byte
	written   int64
	closed    bool
}

// NewWriter returns a Writer. chunkSize <= 0 selects DefaultChunkSize.
func NewWriter(w io.Writer, alg Algorithm, chunkSize int) (*Writer, error) {
	if !alg.valid() {
		return nil, fmt.Errorf("unknown compression %s", alg)
	}
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	return &Writer{
		w:         w,
		alg:       alg,
		chunkSize: chunkSize,
		buf:       make([]byte, 0, chunkSize),
	}, nil
}

// Write buffers p, emitting a chunk whenever the buffer fills.
func (cw *Writer) Write(p []byte) (int, error) {
	if cw.closed {
		return 0, errors.New("compress: write after close")
	}
	total := 0
	for len(p) > 0 {
		n := min(cw.chunkSize-len(cw.buf), len(p))
		cw.buf = append(cw.buf, p[:n]...)
		p = p[n:]
		total += n
		if len(cw.buf) == cw.chunkSize {
			if err := cw.flush(); err != nil {
				return total, err
			}
		}
	}
	return total, nil
}

func (cw *Writer) flush() error {
	if len(cw.buf) == 0 {
		return nil
	}

	stored, err := compressChunk(cw.alg, cw.buf)
	if err != nil {
		return err
	}

	var hdr [chunkHeaderSize]byte
	binary.LittleEndian.PutUint32(hdr[0:4], uint32(len(cw.buf)))
	binary.LittleEndian.PutUint32(hdr[4:8], uint32(len(stored)))
	if stored == nil {
		stored = cw.buf
	}

	if _, err := cw.w.Write(hdr[:]); err != nil {
		return err
	}
	if _, err := cw.w.Write(stored); err != nil {
		return err
	}
	cw.written += int64(chunkHeaderSize + len(stored))
	cw.buf = cw.buf[:0]
	return nil
}

// Close writes any buffered data.
func (cw *Writer) Close() error {
	if cw.closed {
		return nil
	}
	cw.closed = true
	return cw.flush()
}

// BytesWritten returns the number of framed bytes emitted so far.
func (cw *Writer) BytesWritten() int64 { return cw.written }

// Reader decompresses a chunk stream produced by Writer.
type Reader struct {
	r     io.Reader
	alg   Algorithm
	chunk []byte
	err   error
}

// NewReader returns a Reader decoding alg-compressed chunks from r.
func NewReader(r io.Reader, alg Algorithm) *Reader {
	return &Reader{r: r, alg: alg}
}

func (cr *Reader) Read(p []byte) (int, error) {
	for len(cr.chunk) == 0 {
		if cr.err != nil {
			return 0, cr.err
		}
		cr.chunk, cr.err = cr.next()
	}
	n := copy(p, cr.chunk)
	cr.chunk = cr.chunk[n:]
	return n, nil
}

func (cr *Reader) next() ([]byte, error) {
	var hdr [chunkHeaderSize]byte
	if _, err := io.ReadFull(cr.r, hdr[:]); err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("%w: chunk header: %w", ErrCorrupt, err)
	}

	rawLen := binary.LittleEndian.Uint32(hdr[0:4])
	storedLen := binary.LittleEndian.Uint32(hdr[4:8])
	if rawLen == 0 {
		return nil, fmt.Errorf("%w: empty chunk", ErrCorrupt)
	}

	n := storedLen
	if n == 0 {
		n = rawLen
	}
	stored := make([]byte, n)
	if _, err := io.ReadFull(cr.r, stored); err != nil {
		return nil, fmt.Errorf("%w: chunk body: %w", ErrCorrupt, err)
	}

	if storedLen == 0 {
		return stored, nil
	}
	return decompressChunk(cr.alg, stored, int(rawLen))
}
