package backup

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/hupe1980/wrongodb/blobstore"
	"github.com/hupe1980/wrongodb/internal/compress"
	"github.com/hupe1980/wrongodb/internal/fs"
	"github.com/hupe1980/wrongodb/internal/hash"
)

// Restore writes every file of m below dir, named by its logical name.
func Restore(ctx context.Context, store blobstore.BlobStore, m *Manifest, dir string) error {
	for _, f := range m.Files {
		if err := RestoreFile(ctx, store, m, f.Name, filepath.Join(dir, filepath.FromSlash(f.Name))); err != nil {
			return err
		}
	}
	return nil
}

// RestoreFile writes file name of m to dst. dst is replaced atomically and
// only after the restored bytes match the recorded size and CRC32C.
func RestoreFile(ctx context.Context, store blobstore.BlobStore, m *Manifest, name, dst string) error {
	info, ok := m.File(name)
	if !ok {
		return fmt.Errorf("backup: snapshot %s has no file %q", m.ID, name)
	}

	blob, err := store.Open(ctx, info.Blob)
	if err != nil {
		return fmt.Errorf("backup: open %s: %w", info.Blob, err)
	}
	defer func() { _ = blob.Close() }()

	rc, err := blob.ReadRange(ctx, 0, blob.Size())
	if err != nil {
		return fmt.Errorf("backup: read %s: %w", info.Blob, err)
	}
	defer func() { _ = rc.Close() }()

	fsys := fs.Default
	if err := fsys.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}

	tmp := tempName(dst)
	out, err := fsys.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = out.Close()
			_ = fsys.Remove(tmp)
		}
	}()

	crc := hash.NewCRC32C()
	n, err := io.Copy(io.MultiWriter(out, crc), compress.NewReader(rc, m.Compression))
	if err != nil {
		return fmt.Errorf("backup: restore %s: %w", name, err)
	}
	if n != info.Size || crc.Sum32() != info.CRC32C {
		return fmt.Errorf("%w: %s: got %d bytes crc %08x, want %d bytes crc %08x",
			ErrChecksum, name, n, crc.Sum32(), info.Size, info.CRC32C)
	}

	if err := out.Sync(); err != nil {
		return err
	}
	if err := out.Close(); err != nil {
		_ = fsys.Remove(tmp)
		committed = true
		return err
	}
	committed = true
	if err := fsys.Rename(tmp, dst); err != nil {
		_ = fsys.Remove(tmp)
		return err
	}
	return fs.SyncDir(fsys, filepath.Dir(dst))
}

var restoreSeq atomic.Uint64

func tempName(dst string) string {
	return fmt.Sprintf("%s.restore-%d.tmp", dst, restoreSeq.Add(1))
}
