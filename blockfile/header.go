package blockfile

import (
	"encoding/binary"
	"fmt"
)

const (
	// Magic identifies the file format and version family.
	Magic = "MMWT0001"
	// Version is the only header version this package reads and writes.
	Version uint16 = 1
	// DefaultPageSize is the page size used when none is given.
	DefaultPageSize = 4096

	// ChecksumSize is the number of bytes at the start of every page holding
	// the page checksum.
	ChecksumSize = 4
	// HeaderRegionSize is the padded size of the header inside block 0.
	HeaderRegionSize = 64
	// MinPageSize is the smallest page that can hold the header.
	MinPageSize = ChecksumSize + HeaderRegionSize

	// headerPackedSize is magic(8) + version(2) + page size(4) + root(8) + free list(8).
	headerPackedSize = 30
)

// Header is the file header stored in block 0.
type Header struct {
	Magic        [8]byte
	Version      uint16
	PageSize     uint32
	RootBlockID  int64
	FreeListHead int64
}

func newHeader(pageSize uint32) Header {
	h := Header{
		Version:      Version,
		PageSize:     pageSize,
		RootBlockID:  -1,
		FreeListHead: -1,
	}
	copy(h.Magic[:], Magic)
	return h
}

// encode returns the header padded to HeaderRegionSize bytes.
func (h Header) encode() []byte {
	buf := make([]byte, HeaderRegionSize)
	copy(buf[0:8], h.Magic[:])
	binary.LittleEndian.PutUint16(buf[8:10], h.Version)
	binary.LittleEndian.PutUint32(buf[10:14], h.PageSize)
	binary.LittleEndian.PutUint64(buf[14:22], uint64(h.RootBlockID))
	binary.LittleEndian.PutUint64(buf[22:30], uint64(h.FreeListHead))
	return buf
}

func decodeHeader(buf []byte) (Header, error) {
	if len(buf) < headerPackedSize {
		return Header{}, fmt.Errorf("%w: header needs %d bytes, have %d", ErrShortRead, headerPackedSize, len(buf))
	}
	var h Header
	copy(h.Magic[:], buf[0:8])
	h.Version = binary.LittleEndian.Uint16(buf[8:10])
	h.PageSize = binary.LittleEndian.Uint32(buf[10:14])
	h.RootBlockID = int64(binary.LittleEndian.Uint64(buf[14:22]))
	h.FreeListHead = int64(binary.LittleEndian.Uint64(buf[22:30]))
	return h, nil
}

func (h Header) validate() error {
	if string(h.Magic[:]) != Magic {
		return fmt.Errorf("%w: %q", ErrBadMagic, h.Magic[:])
	}
	if h.Version != Version {
		return fmt.Errorf("%w: %d", ErrUnsupportedVersion, h.Version)
	}
	if h.PageSize < MinPageSize {
		return fmt.Errorf("%w: corrupt header page size %d", ErrPageSizeTooSmall, h.PageSize)
	}
	return nil
}
