package minio

import (
	"context"
	"io"
	"os"
	"testing"

	"github.com/hupe1980/wrongodb/blobstore"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_Keys(t *testing.T) {
	tests := []struct {
		prefix   string
		name     string
		key      string
		listFrom string
	}{
		{prefix: "", name: "CURRENT", key: "CURRENT", listFrom: "MANIFEST-"},
		{prefix: "db/", name: "CURRENT", key: "db/CURRENT", listFrom: "db/MANIFEST-"},
		{prefix: "/a/b/", name: "x/y.blob", key: "a/b/x/y.blob", listFrom: "a/b/MANIFEST-"},
	}

	for _, tt := range tests {
		t.Run(tt.prefix, func(t *testing.T) {
			s := NewStore(nil, "bucket", tt.prefix)
			assert.Equal(t, tt.key, s.key(tt.name))
			assert.Equal(t, tt.name, s.name(tt.key))
			assert.Equal(t, tt.listFrom, s.listPrefix("MANIFEST-"))
		})
	}
}

func TestBlob_ReadPastEnd(t *testing.T) {
	b := &blob{size: 4}

	n, err := b.ReadAt(context.Background(), make([]byte, 2), 4)
	assert.Zero(t, n)
	assert.ErrorIs(t, err, io.EOF)

	rc, err := b.ReadRange(context.Background(), 10, 5)
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Empty(t, data)

	assert.Equal(t, int64(3), b.span(1, 100))
}

// TestStore_Integration runs against a live server named by
// WRONGODB_MINIO_ENDPOINT, with minioadmin credentials.
func TestStore_Integration(t *testing.T) {
	endpoint := os.Getenv("WRONGODB_MINIO_ENDPOINT")
	if endpoint == "" {
		t.Skip("WRONGODB_MINIO_ENDPOINT not set")
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4("minioadmin", "minioadmin", ""),
		Secure: false,
	})
	require.NoError(t, err)

	ctx := context.Background()
	bucket := "wrongodb-test"

	exists, err := client.BucketExists(ctx, bucket)
	require.NoError(t, err)
	if !exists {
		require.NoError(t, client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}))
	}

	store := NewStore(client, bucket, "it/")

	data := []byte("hello minio")
	require.NoError(t, store.Put(ctx, "a.txt", data))

	got, err := blobstore.ReadAll(ctx, store, "a.txt")
	require.NoError(t, err)
	assert.Equal(t, data, got)

	b, err := store.Open(ctx, "a.txt")
	require.NoError(t, err)
	buf := make([]byte, 5)
	n, err := b.ReadAt(ctx, buf, 6)
	require.NoError(t, err)
	assert.Equal(t, "minio", string(buf[:n]))

	wb, err := store.Create(ctx, "b.txt")
	require.NoError(t, err)
	_, err = wb.Write([]byte("streamed"))
	require.NoError(t, err)
	require.NoError(t, wb.Close())

	names, err := store.List(ctx, "")
	require.NoError(t, err)
	assert.Contains(t, names, "a.txt")
	assert.Contains(t, names, "b.txt")

	require.NoError(t, store.Delete(ctx, "a.txt"))
	require.NoError(t, store.Delete(ctx, "b.txt"))
	require.NoError(t, store.Delete(ctx, "b.txt"))

	_, err = store.Open(ctx, "a.txt")
	assert.ErrorIs(t, err, blobstore.ErrNotFound)
}
