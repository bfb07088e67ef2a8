package backup

import (
	"bytes"
	"context"
	"encoding/binary"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/hupe1980/wrongodb/blobstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFiles(t *testing.T, contents map[string][]byte) map[string]string {
	t.Helper()
	dir := t.TempDir()
	files := make(map[string]string, len(contents))
	for name, data := range contents {
		p := filepath.Join(dir, strings.ReplaceAll(name, "/", "_"))
		require.NoError(t, os.WriteFile(p, data, 0o644))
		files[name] = p
	}
	return files
}

func testContents() map[string][]byte {
	return map[string][]byte{
		"log":        bytes.Repeat([]byte(`{"_id":"x","n":1}`+"\n"), 500),
		"blocks/pg":  bytes.Repeat([]byte{0xAB, 0x00, 0x01}, 3000),
		"empty.file": {},
	}
}

func TestSnapshotRestore(t *testing.T) {
	for _, c := range []Compression{CompressionNone, CompressionLZ4, CompressionZSTD} {
		t.Run(c.String(), func(t *testing.T) {
			ctx := context.Background()
			store := blobstore.NewMemoryStore()
			contents := testContents()

			w := New(store, WithCompression(c), WithChunkSize(1024), WithConcurrency(3))
			m, err := w.Snapshot(ctx, writeFiles(t, contents))
			require.NoError(t, err)
			require.Len(t, m.Files, 3)
			assert.Equal(t, c, m.Compression)
			assert.Equal(t, "blocks/pg", m.Files[0].Name)

			latest, err := Latest(ctx, store)
			require.NoError(t, err)
			assert.Equal(t, m.ID, latest.ID)
			assert.Equal(t, m.Files, latest.Files)
			assert.True(t, m.Created.Equal(latest.Created))

			dir := t.TempDir()
			require.NoError(t, Restore(ctx, store, latest, dir))

			for name, want := range contents {
				got, err := os.ReadFile(filepath.Join(dir, filepath.FromSlash(name)))
				require.NoError(t, err, name)
				assert.Equal(t, want, got, name)
			}
		})
	}
}

func TestSnapshot_CompressesRepetitiveData(t *testing.T) {
	store := blobstore.NewMemoryStore()
	w := New(store, WithCompression(CompressionZSTD))

	m, err := w.Snapshot(context.Background(), writeFiles(t, map[string][]byte{
		"log": bytes.Repeat([]byte("abcdefgh"), 10000),
	}))
	require.NoError(t, err)

	f, ok := m.File("log")
	require.True(t, ok)
	assert.Equal(t, int64(80000), f.Size)
	assert.Less(t, f.Stored, f.Size/10)
	assert.Equal(t, int64(80000), m.Size())
}

func TestLatest_NoSnapshot(t *testing.T) {
	_, err := Latest(context.Background(), blobstore.NewMemoryStore())
	assert.ErrorIs(t, err, ErrNoSnapshot)

	_, err = Load(context.Background(), blobstore.NewMemoryStore(), "nope")
	assert.ErrorIs(t, err, ErrNoSnapshot)
}

func TestLatest_BadPointer(t *testing.T) {
	ctx := context.Background()
	store := blobstore.NewMemoryStore()
	require.NoError(t, store.Put(ctx, CurrentName, []byte("garbage")))

	_, err := Latest(ctx, store)
	assert.ErrorIs(t, err, ErrCorrupt)
}

func TestList(t *testing.T) {
	ctx := context.Background()
	store := blobstore.NewMemoryStore()
	w := New(store)
	files := writeFiles(t, map[string][]byte{"log": []byte("{}\n")})

	first, err := w.Snapshot(ctx, files)
	require.NoError(t, err)
	time.Sleep(2 * time.Millisecond)
	second, err := w.Snapshot(ctx, files)
	require.NoError(t, err)

	ids, err := List(ctx, store)
	require.NoError(t, err)
	assert.Equal(t, []string{first.ID, second.ID}, ids)

	latest, err := Latest(ctx, store)
	require.NoError(t, err)
	assert.Equal(t, second.ID, latest.ID)

	old, err := Load(ctx, store, first.ID)
	require.NoError(t, err)
	assert.Equal(t, first.ID, old.ID)
}

func TestSnapshot_FailureKeepsPrevious(t *testing.T) {
	ctx := context.Background()
	store := blobstore.NewMemoryStore()
	w := New(store)

	good, err := w.Snapshot(ctx, writeFiles(t, map[string][]byte{"log": []byte("{}\n")}))
	require.NoError(t, err)

	files := writeFiles(t, map[string][]byte{"a": []byte("x")})
	files["missing"] = filepath.Join(t.TempDir(), "does-not-exist")

	_, err = w.Snapshot(ctx, files)
	require.Error(t, err)

	latest, err := Latest(ctx, store)
	require.NoError(t, err)
	assert.Equal(t, good.ID, latest.ID)

	names, err := store.List(ctx, "")
	require.NoError(t, err)
	for _, name := range names {
		assert.True(t, name == CurrentName || strings.HasPrefix(name, good.ID) || name == manifestName(good.ID), name)
	}
}

func TestSnapshot_InvalidInput(t *testing.T) {
	w := New(blobstore.NewMemoryStore())

	_, err := w.Snapshot(context.Background(), nil)
	require.Error(t, err)

	for _, name := range []string{"", "../escape", "/abs", "."} {
		_, err := w.Snapshot(context.Background(), map[string]string{name: "x"})
		assert.Error(t, err, name)
	}
}

func TestRestoreFile_DetectsCorruption(t *testing.T) {
	ctx := context.Background()
	store := blobstore.NewMemoryStore()
	w := New(store, WithCompression(CompressionNone))

	m, err := w.Snapshot(ctx, writeFiles(t, map[string][]byte{"log": []byte(`{"a":1}` + "\n")}))
	require.NoError(t, err)

	f, _ := m.File("log")
	data, err := blobstore.ReadAll(ctx, store, f.Blob)
	require.NoError(t, err)
	data[len(data)-2] = '2'
	require.NoError(t, store.Put(ctx, f.Blob, data))

	dst := filepath.Join(t.TempDir(), "data.jsonl")
	err = RestoreFile(ctx, store, m, "log", dst)
	assert.ErrorIs(t, err, ErrChecksum)

	_, statErr := os.Stat(dst)
	assert.True(t, os.IsNotExist(statErr))

	entries, err := os.ReadDir(filepath.Dir(dst))
	require.NoError(t, err)
	assert.Empty(t, entries)

	err = RestoreFile(ctx, store, m, "other", dst)
	assert.Error(t, err)
}

func TestRestoreFile_ReplacesExisting(t *testing.T) {
	ctx := context.Background()
	store := blobstore.NewLocalStore(t.TempDir())
	w := New(store, WithRateLimit(1<<20), WithLogger(nil))

	m, err := w.Snapshot(ctx, writeFiles(t, map[string][]byte{"log": []byte("new\n")}))
	require.NoError(t, err)

	dst := filepath.Join(t.TempDir(), "data.jsonl")
	require.NoError(t, os.WriteFile(dst, []byte("old contents\n"), 0o644))

	require.NoError(t, RestoreFile(ctx, store, m, "log", dst))
	got, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "new\n", string(got))
}

func TestManifest_Binary(t *testing.T) {
	m := &Manifest{
		ID:          "0190f3a0-0000-7000-8000-000000000000",
		Created:     time.Unix(1700000000, 123).UTC(),
		Compression: CompressionLZ4,
		Files: []FileInfo{
			{Name: "log", Blob: "x/log.blob", Size: 10, Stored: 18, CRC32C: 0xDEADBEEF},
		},
	}

	data, err := m.MarshalBinary()
	require.NoError(t, err)
	assert.Equal(t, uint32(manifestMagic), binary.LittleEndian.Uint32(data))

	var got Manifest
	require.NoError(t, got.UnmarshalBinary(data))
	assert.Equal(t, *m, got)

	t.Run("payload flip", func(t *testing.T) {
		bad := bytes.Clone(data)
		bad[len(bad)-1] ^= 0xFF
		assert.ErrorIs(t, new(Manifest).UnmarshalBinary(bad), ErrCorrupt)
	})

	t.Run("magic", func(t *testing.T) {
		bad := bytes.Clone(data)
		bad[0] ^= 0xFF
		assert.ErrorIs(t, new(Manifest).UnmarshalBinary(bad), ErrInvalidMagic)
	})

	t.Run("version", func(t *testing.T) {
		bad := bytes.Clone(data)
		binary.LittleEndian.PutUint32(bad[4:8], 9)
		assert.ErrorIs(t, new(Manifest).UnmarshalBinary(bad), ErrInvalidVersion)
	})

	t.Run("truncated", func(t *testing.T) {
		assert.ErrorIs(t, new(Manifest).UnmarshalBinary(data[:len(data)-3]), ErrCorrupt)
		assert.ErrorIs(t, new(Manifest).UnmarshalBinary(data[:5]), ErrCorrupt)
	})
}
