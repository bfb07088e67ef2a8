package blockfile

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"

	"github.com/hupe1980/wrongodb/internal/cache"
	"github.com/hupe1980/wrongodb/internal/fs"
	"github.com/hupe1980/wrongodb/internal/hash"
)

// BlockFile is an open block file. It is not safe for concurrent use.
type BlockFile struct {
	path   string
	file   fs.File
	header Header
	opts   options
	cache  *cache.LRUBlockCache
	closed bool

	// zeroPage is a checksummed page with an all-zero payload, used to fill
	// gaps when the file grows by more than one block.
	zeroPage []byte
}

// Create creates a new block file at path with the given page size, writing
// and syncing the header page. Parent directories are created as needed.
func Create(path string, pageSize int, optFns ...Option) (*BlockFile, error) {
	o := applyOptions(optFns)

	if pageSize < MinPageSize {
		return nil, fmt.Errorf("%w: %d < %d", ErrPageSizeTooSmall, pageSize, MinPageSize)
	}
	if uint64(pageSize) > uint64(^uint32(0)) {
		return nil, fmt.Errorf("%w: page size %d does not fit the header", ErrStorage, pageSize)
	}

	if err := o.fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, ioErr("create directory", err)
	}

	if fi, err := o.fs.Stat(path); err == nil && fi.Size() > 0 {
		return nil, fmt.Errorf("%w: %s", ErrExists, path)
	}

	f, err := o.fs.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, ioErr("create", err)
	}

	bf := newBlockFile(path, f, newHeader(uint32(pageSize)), o)

	if err := bf.writeHeader(); err != nil {
		_ = f.Close()
		return nil, err
	}

	return bf, nil
}

// Open opens an existing block file. The handle adopts the page size stored
// in the file's header.
func Open(path string, optFns ...Option) (*BlockFile, error) {
	o := applyOptions(optFns)

	f, err := o.fs.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, ioErr("open", err)
	}

	h, err := readHeader(f)
	if err != nil {
		_ = f.Close()
		return nil, err
	}

	return newBlockFile(path, f, h, o), nil
}

func newBlockFile(path string, f fs.File, h Header, o options) *BlockFile {
	bf := &BlockFile{
		path:   path,
		file:   f,
		header: h,
		opts:   o,
	}
	if o.cacheBytes > 0 {
		bf.cache = cache.NewLRUBlockCache(o.cacheBytes, nil)
	}
	return bf
}

func readHeader(f fs.File) (Header, error) {
	prefix := make([]byte, MinPageSize)
	n, err := f.ReadAt(prefix, 0)
	if err != nil && err != io.EOF {
		return Header{}, ioErr("read header", err)
	}
	if n < ChecksumSize+headerPackedSize {
		return Header{}, fmt.Errorf("%w: file too small to contain header (%d bytes)", ErrShortRead, n)
	}

	h, err := decodeHeader(prefix[ChecksumSize:n])
	if err != nil {
		return Header{}, err
	}
	if err := h.validate(); err != nil {
		return Header{}, err
	}

	fi, err := f.Stat()
	if err != nil {
		return Header{}, ioErr("stat", err)
	}
	if fi.Size() < int64(h.PageSize) {
		return Header{}, fmt.Errorf("%w: header page needs %d bytes, file has %d", ErrShortRead, h.PageSize, fi.Size())
	}

	page := make([]byte, h.PageSize)
	if err := readFull(f, page, 0); err != nil {
		if errors.Is(err, ErrShortRead) {
			return Header{}, fmt.Errorf("%w: header page", err)
		}
		return Header{}, err
	}
	if !verify(page) {
		return Header{}, fmt.Errorf("%w: header page", ErrChecksumMismatch)
	}

	return h, nil
}

// Path returns the file path.
func (bf *BlockFile) Path() string { return bf.path }

// Header returns a copy of the file header.
func (bf *BlockFile) Header() Header { return bf.header }

// PageSize returns the size of every block in bytes.
func (bf *BlockFile) PageSize() int { return int(bf.header.PageSize) }

// MaxPayload returns the number of payload bytes a block holds.
func (bf *BlockFile) MaxPayload() int { return bf.PageSize() - ChecksumSize }

// ReadBlock returns the payload of block id after verifying its checksum.
// The returned slice is a copy the caller may modify.
func (bf *BlockFile) ReadBlock(id int64) ([]byte, error) {
	if err := bf.checkID(id); err != nil {
		return nil, err
	}

	key := cache.Key{Path: bf.path, Block: id}
	if bf.cache != nil {
		if payload, ok := bf.cache.Get(key); ok {
			return clone(payload), nil
		}
	}

	page, err := bf.readPage(id)
	if err != nil {
		return nil, err
	}
	if !verify(page) {
		return nil, fmt.Errorf("%w: block %d", ErrChecksumMismatch, id)
	}

	payload := page[ChecksumSize:]
	if bf.cache != nil {
		bf.cache.Set(key, clone(payload))
	}
	return payload, nil
}

// ReadBlockUnverified returns the payload of block id without checking its
// checksum. It always reads from the file.
func (bf *BlockFile) ReadBlockUnverified(id int64) ([]byte, error) {
	if err := bf.checkID(id); err != nil {
		return nil, err
	}
	page, err := bf.readPage(id)
	if err != nil {
		return nil, err
	}
	return page[ChecksumSize:], nil
}

// WriteBlock writes payload, zero padded and checksummed, to block id.
// Writing past the end first fills every missing block with a valid
// zero-payload page.
func (bf *BlockFile) WriteBlock(id int64, payload []byte) error {
	if err := bf.checkID(id); err != nil {
		return err
	}
	if len(payload) > bf.MaxPayload() {
		return fmt.Errorf("%w: %d > %d bytes", ErrPayloadTooLarge, len(payload), bf.MaxPayload())
	}

	n, err := bf.NumBlocks()
	if err != nil {
		return err
	}
	for gap := n; gap < id; gap++ {
		if err := bf.writePage(gap, bf.emptyPage()); err != nil {
			return err
		}
	}

	page := make([]byte, bf.PageSize())
	copy(page[ChecksumSize:], payload)
	seal(page)

	if err := bf.writePage(id, page); err != nil {
		return err
	}

	if bf.opts.syncWrites {
		if err := fs.SyncData(bf.file); err != nil {
			return ioErr("sync", err)
		}
	}

	if bf.cache != nil {
		bf.cache.Set(cache.Key{Path: bf.path, Block: id}, clone(page[ChecksumSize:]))
	}
	return nil
}

// NumBlocks returns the number of whole pages in the file, header included.
func (bf *BlockFile) NumBlocks() (int64, error) {
	if bf.closed {
		return 0, ErrClosed
	}
	fi, err := bf.file.Stat()
	if err != nil {
		return 0, ioErr("stat", err)
	}
	return fi.Size() / int64(bf.header.PageSize), nil
}

// SetRootBlockID records the root block id in the header and syncs it.
func (bf *BlockFile) SetRootBlockID(id int64) error {
	if bf.closed {
		return ErrClosed
	}
	prev := bf.header.RootBlockID
	bf.header.RootBlockID = id
	if err := bf.writeHeader(); err != nil {
		bf.header.RootBlockID = prev
		return err
	}
	return nil
}

// Sync forces written pages to stable storage.
func (bf *BlockFile) Sync() error {
	if bf.closed {
		return ErrClosed
	}
	if err := bf.file.Sync(); err != nil {
		return ioErr("sync", err)
	}
	return nil
}

// Close releases the file handle.
func (bf *BlockFile) Close() error {
	if bf.closed {
		return ErrClosed
	}
	bf.closed = true
	if bf.cache != nil {
		bf.cache.Invalidate(func(cache.Key) bool { return true })
	}
	if err := bf.file.Close(); err != nil {
		return ioErr("close", err)
	}
	return nil
}

// CacheStats returns page cache hits and misses. Both are zero without a cache.
func (bf *BlockFile) CacheStats() (hits, misses int64) {
	if bf.cache == nil {
		return 0, 0
	}
	return bf.cache.Stats()
}

func (bf *BlockFile) checkID(id int64) error {
	if bf.closed {
		return ErrClosed
	}
	if id < 0 || id > math.MaxInt64/int64(bf.header.PageSize) {
		return fmt.Errorf("%w: %d", ErrInvalidBlockID, id)
	}
	return nil
}

func (bf *BlockFile) writeHeader() error {
	page := make([]byte, bf.PageSize())
	copy(page[ChecksumSize:], bf.header.encode())
	seal(page)

	if err := bf.writePage(0, page); err != nil {
		return err
	}
	if err := bf.file.Sync(); err != nil {
		return ioErr("sync header", err)
	}
	if bf.cache != nil {
		bf.cache.Set(cache.Key{Path: bf.path, Block: 0}, clone(page[ChecksumSize:]))
	}
	return nil
}

func (bf *BlockFile) readPage(id int64) ([]byte, error) {
	page := make([]byte, bf.PageSize())
	if err := readFull(bf.file, page, id*int64(bf.header.PageSize)); err != nil {
		return nil, fmt.Errorf("%w: block %d", err, id)
	}
	return page, nil
}

func (bf *BlockFile) writePage(id int64, page []byte) error {
	if _, err := bf.file.WriteAt(page, id*int64(bf.header.PageSize)); err != nil {
		return ioErr(fmt.Sprintf("write block %d", id), err)
	}
	return nil
}

func (bf *BlockFile) emptyPage() []byte {
	if bf.zeroPage == nil {
		bf.zeroPage = make([]byte, bf.PageSize())
		seal(bf.zeroPage)
	}
	return bf.zeroPage
}

func readFull(f fs.File, buf []byte, off int64) error {
	n, err := f.ReadAt(buf, off)
	if n == len(buf) {
		return nil
	}
	if err == nil || err == io.EOF {
		return fmt.Errorf("%w: got %d of %d bytes", ErrShortRead, n, len(buf))
	}
	return ioErr("read", err)
}

// seal stores the checksum of page[ChecksumSize:] in the first bytes of page.
func seal(page []byte) {
	binary.LittleEndian.PutUint32(page[:ChecksumSize], hash.Page(page[ChecksumSize:]))
}

func verify(page []byte) bool {
	return binary.LittleEndian.Uint32(page[:ChecksumSize]) == hash.Page(page[ChecksumSize:])
}

func clone(b []byte) []byte {
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
