package backup

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hupe1980/wrongodb/blobstore"
	"github.com/hupe1980/wrongodb/internal/compress"
	"github.com/hupe1980/wrongodb/internal/hash"
	"github.com/hupe1980/wrongodb/internal/resource"
	"golang.org/x/sync/errgroup"
)

// Writer takes snapshots into a store.
type Writer struct {
	store blobstore.BlobStore
	opts  options
	rc    *resource.Controller
	now   func() time.Time
}

// New returns a Writer uploading to store.
func New(store blobstore.BlobStore, optFns ...Option) *Writer {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}

	return &Writer{
		store: store,
		opts:  opts,
		rc: resource.NewController(resource.Config{
			Workers:       int64(opts.concurrency),
			IOBytesPerSec: opts.rateLimit,
		}),
		now: time.Now,
	}
}

// Snapshot uploads files, a map from logical name to local path, and makes
// the result the store's current snapshot.
func (w *Writer) Snapshot(ctx context.Context, files map[string]string) (*Manifest, error) {
	if len(files) == 0 {
		return nil, errors.New("backup: no files")
	}

	names := make([]string, 0, len(files))
	for name := range files {
		if !fs.ValidPath(name) || name == "." {
			return nil, fmt.Errorf("backup: invalid file name %q", name)
		}
		names = append(names, name)
	}
	slices.Sort(names)

	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("backup: snapshot id: %w", err)
	}

	m := &Manifest{
		ID:          id.String(),
		Created:     w.now().UTC(),
		Compression: w.opts.compression,
		Files:       make([]FileInfo, len(names)),
	}

	start := time.Now()
	g, gctx := errgroup.WithContext(ctx)
	for i, name := range names {
		g.Go(func() error {
			if err := w.rc.AcquireWorker(gctx); err != nil {
				return err
			}
			defer w.rc.ReleaseWorker()

			info, err := w.upload(gctx, m.ID, name, files[name])
			if err != nil {
				return fmt.Errorf("backup %s: %w", name, err)
			}
			m.Files[i] = info
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		w.discard(context.WithoutCancel(ctx), m.ID, names)
		return nil, err
	}

	data, err := m.MarshalBinary()
	if err != nil {
		return nil, err
	}
	if err := w.store.Put(ctx, manifestName(m.ID), data); err != nil {
		w.discard(context.WithoutCancel(ctx), m.ID, names)
		return nil, fmt.Errorf("backup: write manifest: %w", err)
	}
	if err := w.store.Put(ctx, CurrentName, []byte(manifestName(m.ID))); err != nil {
		return nil, fmt.Errorf("backup: update %s: %w", CurrentName, err)
	}

	w.opts.logger.Info("snapshot complete",
		"id", m.ID,
		"files", len(m.Files),
		"bytes", m.Size(),
		"compression", m.Compression.String(),
		"duration", time.Since(start),
	)
	return m, nil
}

// countingWriter counts bytes passed to w.
type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}

func (w *Writer) upload(ctx context.Context, id, name, path string) (FileInfo, error) {
	f, err := os.Open(path)
	if err != nil {
		return FileInfo{}, err
	}
	defer func() { _ = f.Close() }()

	info := FileInfo{Name: name, Blob: blobName(id, name)}

	blob, err := w.store.Create(ctx, info.Blob)
	if err != nil {
		return FileInfo{}, err
	}

	stored := &countingWriter{w: resource.NewRateLimitedWriter(ctx, blob, w.rc)}
	cw, err := compress.NewWriter(stored, w.opts.compression, w.opts.chunkSize)
	if err != nil {
		_ = blob.Close()
		return FileInfo{}, err
	}

	crc := hash.NewCRC32C()
	raw, err := io.Copy(io.MultiWriter(cw, crc), f)
	if err == nil {
		err = cw.Close()
	}
	if err == nil {
		err = blob.Sync()
	}
	if cerr := blob.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return FileInfo{}, err
	}

	info.Size = raw
	info.Stored = stored.n
	info.CRC32C = crc.Sum32()

	w.opts.logger.Debug("file uploaded",
		"snapshot", id,
		"file", name,
		"bytes", info.Size,
		"stored", info.Stored,
	)
	return info, nil
}

// discard removes the blobs of a snapshot that never became current.
// Stores ignore deletes of blobs that were never written.
func (w *Writer) discard(ctx context.Context, id string, names []string) {
	for _, name := range names {
		if err := w.store.Delete(ctx, blobName(id, name)); err != nil {
			w.opts.logger.Warn("discard blob failed", "blob", blobName(id, name), "error", err)
		}
	}
}

// Latest loads the manifest CURRENT points at.
func Latest(ctx context.Context, store blobstore.BlobStore) (*Manifest, error) {
	target, err := blobstore.ReadAll(ctx, store, CurrentName)
	if err != nil {
		if blobstore.IsNotFound(err) {
			return nil, ErrNoSnapshot
		}
		return nil, fmt.Errorf("backup: read %s: %w", CurrentName, err)
	}

	name := strings.TrimSpace(string(target))
	id, ok := strings.CutPrefix(name, manifestPrefix)
	if ok {
		id, ok = strings.CutSuffix(id, manifestSuffix)
	}
	if !ok || id == "" {
		return nil, fmt.Errorf("%w: %s names %q", ErrCorrupt, CurrentName, name)
	}
	return Load(ctx, store, id)
}

// Load loads the manifest of snapshot id.
func Load(ctx context.Context, store blobstore.BlobStore, id string) (*Manifest, error) {
	data, err := blobstore.ReadAll(ctx, store, manifestName(id))
	if err != nil {
		if blobstore.IsNotFound(err) {
			return nil, fmt.Errorf("%w: %s", ErrNoSnapshot, id)
		}
		return nil, fmt.Errorf("backup: read manifest %s: %w", id, err)
	}

	m := new(Manifest)
	if err := m.UnmarshalBinary(data); err != nil {
		return nil, err
	}
	if m.ID != id {
		return nil, fmt.Errorf("%w: manifest %s holds id %s", ErrCorrupt, id, m.ID)
	}
	return m, nil
}

// List returns the IDs of all snapshots in store, oldest first.
func List(ctx context.Context, store blobstore.BlobStore) ([]string, error) {
	names, err := store.List(ctx, manifestPrefix)
	if err != nil {
		return nil, fmt.Errorf("backup: list: %w", err)
	}

	var ids []string
	for _, name := range names {
		id, ok := strings.CutPrefix(name, manifestPrefix)
		if !ok {
			continue
		}
		if id, ok = strings.CutSuffix(id, manifestSuffix); ok && id != "" {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	return ids, nil
}
