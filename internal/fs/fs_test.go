package fs

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalFS(t *testing.T) {
	tmp := t.TempDir()
	lfs := LocalFS{}

	dir := filepath.Join(tmp, "subdir")
	assert.NoError(t, lfs.MkdirAll(dir, 0755))

	fpath := filepath.Join(dir, "test.log")
	f, err := lfs.OpenFile(fpath, os.O_CREATE|os.O_RDWR, 0644)
	require.NoError(t, err)

	_, err = f.Write([]byte("hello"))
	assert.NoError(t, err)
	assert.NoError(t, SyncData(f))

	info, err := f.Stat()
	require.NoError(t, err)
	assert.Equal(t, int64(5), info.Size())

	require.NoError(t, f.Truncate(3))
	info, err = lfs.Stat(fpath)
	require.NoError(t, err)
	assert.Equal(t, int64(3), info.Size())
	assert.NoError(t, f.Close())

	assert.NoError(t, SyncDir(lfs, dir))

	newPath := filepath.Join(dir, "renamed.log")
	assert.NoError(t, lfs.Rename(fpath, newPath))
	assert.NoError(t, lfs.Remove(newPath))
	_, err = lfs.Stat(newPath)
	assert.True(t, os.IsNotExist(err))
}

func TestOrDefault(t *testing.T) {
	assert.Equal(t, Default, OrDefault(nil))
	ffs := NewFaultyFS(nil)
	assert.Equal(t, FileSystem(ffs), OrDefault(ffs))
}

func TestFaultyFS_TornWrite(t *testing.T) {
	tmp := t.TempDir()
	ffs := NewFaultyFS(LocalFS{})
	ffs.AddRule("faulty", Fault{FailAfterBytes: 5})

	fpath := filepath.Join(tmp, "faulty.log")
	f, err := ffs.OpenFile(fpath, os.O_CREATE|os.O_RDWR, 0644)
	require.NoError(t, err)

	n, err := f.Write([]byte("hel"))
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	// Crosses the limit: the prefix lands, then the write fails.
	n, err = f.Write([]byte("lo world"))
	assert.ErrorIs(t, err, ErrInjected)
	assert.Equal(t, 2, n)
	require.NoError(t, f.Close())

	data, err := os.ReadFile(fpath)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))
}

func TestFaultyFS_SyncCloseTruncate(t *testing.T) {
	tmp := t.TempDir()
	ffs := NewFaultyFS(nil)
	ffs.AddRule("bad", Fault{FailAfterBytes: -1, FailOnSync: true, FailOnClose: true, FailOnTruncate: true})

	f, err := ffs.OpenFile(filepath.Join(tmp, "bad.dat"), os.O_CREATE|os.O_RDWR, 0644)
	require.NoError(t, err)
	assert.ErrorIs(t, f.Sync(), ErrInjected)
	assert.ErrorIs(t, SyncData(f), ErrInjected)
	assert.ErrorIs(t, f.Truncate(0), ErrInjected)
	assert.ErrorIs(t, f.Close(), ErrInjected)

	// Files matching no rule behave normally.
	g, err := ffs.OpenFile(filepath.Join(tmp, "good.dat"), os.O_CREATE|os.O_RDWR, 0644)
	require.NoError(t, err)
	_, err = g.WriteAt([]byte("abc"), 10)
	require.NoError(t, err)
	assert.NoError(t, g.Sync())
	assert.NoError(t, g.Close())
}

func TestFaultyFS_LongestRuleWins(t *testing.T) {
	ffs := NewFaultyFS(nil)
	ffs.AddRule(".log", Fault{FailAfterBytes: -1, FailOnSync: true})
	ffs.AddRule("keep.log", Fault{FailAfterBytes: -1})

	assert.False(t, ffs.faultFor("/tmp/keep.log").FailOnSync)
	assert.True(t, ffs.faultFor("/tmp/other.log").FailOnSync)

	ffs.ClearRules()
	assert.False(t, ffs.faultFor("/tmp/other.log").FailOnSync)
}
