package blockfile

import "github.com/hupe1980/wrongodb/internal/fs"

type options struct {
	fs         fs.FileSystem
	syncWrites bool
	cacheBytes int64
}

// Option configures a BlockFile.
type Option func(*options)

// WithFileSystem sets the file system the block file lives on.
func WithFileSystem(fsys fs.FileSystem) Option {
	return func(o *options) {
		o.fs = fsys
	}
}

// WithSyncWrites makes WriteBlock force every page to stable storage.
func WithSyncWrites(sync bool) Option {
	return func(o *options) {
		o.syncWrites = sync
	}
}

// WithCacheSize keeps up to n bytes of verified pages in memory.
// Zero disables the cache.
//
// A cached page is returned without touching the file, so damage done to the
// file by another writer after the page was cached goes unnoticed until the
// page is evicted or the file is reopened. Writes through the handle always
// refresh the cache.
func WithCacheSize(n int64) Option {
	return func(o *options) {
		o.cacheBytes = n
	}
}

func applyOptions(optFns []Option) options {
	var o options
	for _, fn := range optFns {
		fn(&o)
	}
	o.fs = fs.OrDefault(o.fs)
	return o
}
