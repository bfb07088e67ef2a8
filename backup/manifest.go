package backup

import (
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/hupe1980/wrongodb/internal/compress"
	"github.com/hupe1980/wrongodb/internal/hash"
)

const (
	// CurrentName is the blob naming the newest manifest.
	CurrentName = "CURRENT"

	manifestPrefix = "MANIFEST-"
	manifestSuffix = ".bin"

	// manifestMagic identifies manifest blobs (ASCII: "WBK1").
	manifestMagic   = 0x57424B31
	manifestVersion = 1

	// magic | version | payload length | payload CRC32C
	manifestHeaderSize = 16
)

var (
	ErrInvalidMagic   = errors.New("backup: invalid manifest magic")
	ErrInvalidVersion = errors.New("backup: unsupported manifest version")
	ErrCorrupt        = errors.New("backup: corrupt manifest")
	ErrNoSnapshot     = errors.New("backup: no snapshot")
	ErrChecksum       = errors.New("backup: checksum mismatch")
)

// FileInfo describes one file of a snapshot.
type FileInfo struct {
	Name   string // logical name, as passed to Snapshot
	Blob   string // blob holding the chunk stream
	Size   int64  // raw bytes
	Stored int64  // bytes in the blob
	CRC32C uint32 // of the raw bytes
}

// Manifest describes a snapshot.
type Manifest struct {
	ID          string
	Created     time.Time
	Compression Compression
	Files       []FileInfo
}

// File returns the entry for name.
func (m *Manifest) File(name string) (FileInfo, bool) {
	for _, f := range m.Files {
		if f.Name == name {
			return f, true
		}
	}
	return FileInfo{}, false
}

// Size returns the total raw size of the snapshot.
func (m *Manifest) Size() int64 {
	var n int64
	for _, f := range m.Files {
		n += f.Size
	}
	return n
}

func manifestName(id string) string {
	return manifestPrefix + id + manifestSuffix
}

func blobName(id, name string) string {
	return id + "/" + name + ".blob"
}

// MarshalBinary encodes m with a checksummed header.
func (m *Manifest) MarshalBinary() ([]byte, error) {
	var p []byte
	p = appendString(p, m.ID)
	p = binary.AppendVarint(p, m.Created.UnixNano())
	p = append(p, byte(m.Compression))
	p = binary.AppendUvarint(p, uint64(len(m.Files)))
	for _, f := range m.Files {
		p = appendString(p, f.Name)
		p = appendString(p, f.Blob)
		p = binary.AppendUvarint(p, uint64(f.Size))
		p = binary.AppendUvarint(p, uint64(f.Stored))
		p = binary.LittleEndian.AppendUint32(p, f.CRC32C)
	}

	out := make([]byte, manifestHeaderSize, manifestHeaderSize+len(p))
	binary.LittleEndian.PutUint32(out[0:4], manifestMagic)
	binary.LittleEndian.PutUint32(out[4:8], manifestVersion)
	binary.LittleEndian.PutUint32(out[8:12], uint32(len(p)))
	binary.LittleEndian.PutUint32(out[12:16], hash.CRC32C(p))
	return append(out, p...), nil
}

// UnmarshalBinary decodes a manifest written by MarshalBinary.
func (m *Manifest) UnmarshalBinary(data []byte) error {
	if len(data) < manifestHeaderSize {
		return fmt.Errorf("%w: short header", ErrCorrupt)
	}
	if magic := binary.LittleEndian.Uint32(data[0:4]); magic != manifestMagic {
		return fmt.Errorf("%w: got 0x%08x", ErrInvalidMagic, magic)
	}
	if v := binary.LittleEndian.Uint32(data[4:8]); v != manifestVersion {
		return fmt.Errorf("%w: %d", ErrInvalidVersion, v)
	}
	n := binary.LittleEndian.Uint32(data[8:12])
	p := data[manifestHeaderSize:]
	if uint32(len(p)) != n {
		return fmt.Errorf("%w: payload is %d bytes, header says %d", ErrCorrupt, len(p), n)
	}
	if sum := hash.CRC32C(p); sum != binary.LittleEndian.Uint32(data[12:16]) {
		return fmt.Errorf("%w: payload checksum", ErrCorrupt)
	}

	d := decoder{buf: p}
	out := Manifest{
		ID:      d.str(),
		Created: time.Unix(0, d.varint()).UTC(),
	}
	out.Compression = Compression(d.u8())
	count := d.uvarint()
	if d.err == nil && count > uint64(len(p)) {
		d.err = errors.New("file count")
	}
	for i := uint64(0); i < count && d.err == nil; i++ {
		out.Files = append(out.Files, FileInfo{
			Name:   d.str(),
			Blob:   d.str(),
			Size:   int64(d.uvarint()),
			Stored: int64(d.uvarint()),
			CRC32C: d.u32(),
		})
	}
	if d.err == nil && len(d.buf) != 0 {
		d.err = errors.New("trailing bytes")
	}
	if d.err != nil {
		return fmt.Errorf("%w: %w", ErrCorrupt, d.err)
	}
	if out.Compression > compress.ZSTD {
		return fmt.Errorf("%w: unknown compression %d", ErrCorrupt, out.Compression)
	}

	*m = out
	return nil
}

func appendString(p []byte, s string) []byte {
	p = binary.AppendUvarint(p, uint64(len(s)))
	return append(p, s...)
}

// decoder reads manifest fields; the first failure sticks.
type decoder struct {
	buf []byte
	err error
}

func (d *decoder) fail(what string) {
	if d.err == nil {
		d.err = fmt.Errorf("truncated %s", what)
	}
}

func (d *decoder) uvarint() uint64 {
	if d.err != nil {
		return 0
	}
	v, n := binary.Uvarint(d.buf)
	if n <= 0 {
		d.fail("uvarint")
		return 0
	}
	d.buf = d.buf[n:]
	return v
}

func (d *decoder) varint() int64 {
	if d.err != nil {
		return 0
	}
	v, n := binary.Varint(d.buf)
	if n <= 0 {
		d.fail("varint")
		return 0
	}
	d.buf = d.buf[n:]
	return v
}

func (d *decoder) u8() byte {
	if d.err != nil {
		return 0
	}
	if len(d.buf) < 1 {
		d.fail("byte")
		return 0
	}
	b := d.buf[0]
	d.buf = d.buf[1:]
	return b
}

func (d *decoder) u32() uint32 {
	if d.err != nil {
		return 0
	}
	if len(d.buf) < 4 {
		d.fail("uint32")
		return 0
	}
	v := binary.LittleEndian.Uint32(d.buf)
	d.buf = d.buf[4:]
	return v
}

func (d *decoder) str() string {
	n := d.uvarint()
	if d.err != nil {
		return ""
	}
	if n > uint64(len(d.buf)) {
		d.fail("string")
		return ""
	}
	s := string(d.buf[:n])
	d.buf = d.buf[n:]
	return s
}
