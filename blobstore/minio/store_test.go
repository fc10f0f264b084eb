package minio

import (
	"context"
	"io"
	"os"
	"testing"

	"github.com/hupe1980/idxdeploy/blobstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ blobstore.BlobStore = (*Store)(nil)

func TestStore_Key(t *testing.T) {
	s := &Store{prefix: "table/partition_0_65535/"}
	assert.Equal(t, "table/partition_0_65535/version.1", s.key("version.1"))
	assert.Equal(t, "table/partition_0_65535/segment_0_level_0/", s.key("segment_0_level_0/"))
	assert.Equal(t, "table/partition_0_65535", s.key(""))

	bare := &Store{}
	assert.Equal(t, "version.1", bare.key("version.1"))
}

func TestStore_Name(t *testing.T) {
	s := NewStore(nil, "b", "/table/partition_0_65535/")
	assert.Equal(t, "version.1", s.name("table/partition_0_65535/version.1"))
	assert.Equal(t, "segment_0_level_0/data", s.name("table/partition_0_65535/segment_0_level_0/data"))
	assert.Empty(t, s.name("table/partition_0_655350/version.1"))
	assert.Equal(t, "x", NewStore(nil, "b", "").name("x"))
}

func TestNew_InvalidConfig(t *testing.T) {
	_, err := New(Config{Endpoint: "localhost:9000"})
	assert.ErrorIs(t, err, ErrNoBucket)

	_, err = New(Config{Endpoint: "http://not a host", Bucket: "b"})
	assert.Error(t, err)
}

func TestObject_DirectoryMarker(t *testing.T) {
	var o object
	n, err := o.ReadAt(context.Background(), make([]byte, 4), 0)
	assert.Zero(t, n)
	assert.ErrorIs(t, err, io.EOF)

	rc, err := o.ReadRange(context.Background(), 0, 10)
	require.NoError(t, err)
	got, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Empty(t, got)
}

// TestMinioStore_Integration requires a running MinIO instance (MINIO_ENDPOINT).
func TestMinioStore_Integration(t *testing.T) {
	endpoint := os.Getenv("MINIO_ENDPOINT")
	if endpoint == "" {
		t.Skip("Skipping MinIO integration test: MINIO_ENDPOINT not set")
	}

	bucket := "test-idxdeploy"
	store, err := New(Config{
		Endpoint:  endpoint,
		AccessKey: "minioadmin",
		SecretKey: "minioadmin",
		Bucket:    bucket,
		Prefix:    "test-prefix/",
	})
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, store.EnsureBucket(ctx))

	data := []byte("hello minio world")
	require.NoError(t, store.Put(ctx, "segment_0_level_0/data", data))

	blob, err := store.Open(ctx, "segment_0_level_0/data")
	require.NoError(t, err)
	require.Equal(t, int64(len(data)), blob.Size())

	buf := make([]byte, len(data))
	n, err := blob.ReadAt(ctx, buf, 0)
	require.NoError(t, err)
	require.Equal(t, data, buf[:n])

	rc, err := blob.ReadRange(ctx, 6, 5)
	require.NoError(t, err)
	part, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "minio", string(part))
	require.NoError(t, rc.Close())
	require.NoError(t, blob.Close())

	ok, err := blobstore.Exists(ctx, store, "segment_0_level_0/")
	require.NoError(t, err)
	assert.True(t, ok)

	names, err := store.List(ctx, "")
	require.NoError(t, err)
	assert.Contains(t, names, "segment_0_level_0/data")

	require.NoError(t, store.Delete(ctx, "segment_0_level_0/data"))
	_, err = store.Open(ctx, "segment_0_level_0/data")
	require.ErrorIs(t, err, blobstore.ErrNotFound)

	wb, err := store.Create(ctx, "stream.txt")
	require.NoError(t, err)
	_, err = wb.Write([]byte("streamed data"))
	require.NoError(t, err)
	require.NoError(t, wb.Close())

	size, err := blobstore.Stat(ctx, store, "stream.txt")
	require.NoError(t, err)
	assert.Equal(t, int64(13), size)

	_ = store.Delete(ctx, "stream.txt")
}
