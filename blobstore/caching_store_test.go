package blobstore

import (
	"context"
	"io"
	"testing"

	"github.com/hupe1980/idxdeploy/internal/cache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingBlob struct {
	Blob
	reads     int
	readBytes int
}

func (b *countingBlob) ReadAt(ctx context.Context, p []byte, off int64) (int, error) {
	b.reads++
	n, err := b.Blob.ReadAt(ctx, p, off)
	b.readBytes += n
	return n, err
}

type countingStore struct {
	*MemoryStore
	blobs map[string]*countingBlob
}

func (s *countingStore) Open(ctx context.Context, name string) (Blob, error) {
	if b, ok := s.blobs[name]; ok {
		return b, nil
	}
	b, err := s.MemoryStore.Open(ctx, name)
	if err != nil {
		return nil, err
	}
	cb := &countingBlob{Blob: b}
	s.blobs[name] = cb
	return cb, nil
}

func newCountingStore(t *testing.T, name string, data []byte) *countingStore {
	t.Helper()
	s := &countingStore{MemoryStore: NewMemoryStore(), blobs: map[string]*countingBlob{}}
	require.NoError(t, s.Put(context.Background(), name, data))
	return s
}

func TestCachingStore_ReadAt(t *testing.T) {
	ctx := context.Background()
	data := make([]byte, 1024)
	for i := range data {
		data[i] = byte(i % 255)
	}

	inner := newCountingStore(t, "test", data)
	c := cache.NewLRU(1<<20, nil)
	store := NewCachingStore(inner, c, 256)

	blob, err := store.Open(ctx, "test")
	require.NoError(t, err)
	defer blob.Close()

	// First block (bytes 0-100)
	buf := make([]byte, 100)
	n, err := blob.ReadAt(ctx, buf, 0)
	require.NoError(t, err)
	assert.Equal(t, 100, n)
	assert.Equal(t, data[:100], buf)

	cb := inner.blobs["test"]
	assert.Equal(t, 1, cb.reads)
	assert.Equal(t, 256, cb.readBytes)

	// Same range again hits the cache.
	_, err = blob.ReadAt(ctx, buf, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, cb.reads)

	// Spanning block 0 (cached) and block 1 (missing).
	buf2 := make([]byte, 100)
	n, err = blob.ReadAt(ctx, buf2, 200)
	require.NoError(t, err)
	assert.Equal(t, 100, n)
	assert.Equal(t, data[200:300], buf2)
	assert.Equal(t, 2, cb.reads)
	assert.Equal(t, 512, cb.readBytes)
}

func TestCachingStore_SmallFile(t *testing.T) {
	ctx := context.Background()
	inner := newCountingStore(t, "small", []byte("hello"))
	store := NewCachingStore(inner, cache.NewLRU(1024, nil), 256)

	blob, err := store.Open(ctx, "small")
	require.NoError(t, err)

	buf := make([]byte, 10)
	n, err := blob.ReadAt(ctx, buf, 0)
	assert.ErrorIs(t, err, io.EOF)
	assert.Equal(t, 5, n)
	assert.Equal(t, "hello", string(buf[:n]))
}

func TestCachingStore_Prefetch(t *testing.T) {
	ctx := context.Background()
	data := make([]byte, 1000)
	inner := newCountingStore(t, "segment_0_level_0/data", data)
	c := cache.NewLRU(1<<20, nil)
	store := NewCachingStore(inner, c, 256)

	n, err := store.Prefetch(ctx, "segment_0_level_0/data", 0, -1)
	require.NoError(t, err)
	assert.Equal(t, int64(1000), n)

	for blk := range int64(4) {
		_, ok := c.Get(cache.BlockKey{File: "segment_0_level_0/data", Block: blk})
		assert.True(t, ok, "block %d", blk)
	}
	assert.Equal(t, int64(1000), store.Cached("segment_0_level_0/data"))

	// Clamped to the blob size.
	n, err = store.Prefetch(ctx, "segment_0_level_0/data", 900, 500)
	require.NoError(t, err)
	assert.Equal(t, int64(100), n)

	n, err = store.Prefetch(ctx, "segment_0_level_0/data", 2000, 10)
	require.NoError(t, err)
	assert.Zero(t, n)

	_, err = store.Prefetch(ctx, "missing", 0, 10)
	assert.ErrorIs(t, err, ErrNotFound)

	// Overwriting invalidates cached blocks.
	require.NoError(t, store.Put(ctx, "segment_0_level_0/data", []byte("x")))
	_, ok := c.Get(cache.BlockKey{File: "segment_0_level_0/data", Block: 1})
	assert.False(t, ok)
	assert.Zero(t, store.Cached("segment_0_level_0/data"))
}

func TestCachingStore_ReadRange(t *testing.T) {
	ctx := context.Background()
	inner := newCountingStore(t, "f", []byte("0123456789"))
	store := NewCachingStore(inner, cache.NewLRU(1024, nil), 4)

	blob, err := store.Open(ctx, "f")
	require.NoError(t, err)

	rc, err := blob.ReadRange(ctx, 3, 5)
	require.NoError(t, err)
	got, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "34567", string(got))

	rc, err = blob.ReadRange(ctx, 6, 10)
	require.NoError(t, err)
	got, err = io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "6789", string(got))
}
