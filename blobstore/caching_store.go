package blobstore

import (
	"context"
	"errors"
	"io"

	"github.com/hupe1980/idxdeploy/internal/cache"
	"golang.org/x/sync/errgroup"
)

// DefaultBlockSize is the cache block size used when none is given.
const DefaultBlockSize = 64 << 10

// maxRunFetches bounds the parallel backend reads of one fill.
const maxRunFetches = 8

// CachingStore serves reads of a remote-tier store through a block cache.
// Writes pass through and drop the cached blocks of the written file.
type CachingStore struct {
	inner     BlobStore
	cache     cache.BlockCache
	blockSize int64
}

// NewCachingStore wraps inner. blockSize defaults to DefaultBlockSize.
func NewCachingStore(inner BlobStore, c cache.BlockCache, blockSize int64) *CachingStore {
	if blockSize <= 0 {
		blockSize = DefaultBlockSize
	}
	return &CachingStore{inner: inner, cache: c, blockSize: blockSize}
}

// Open implements BlobStore.
func (s *CachingStore) Open(ctx context.Context, name string) (Blob, error) {
	b, err := s.inner.Open(ctx, name)
	if err != nil {
		return nil, err
	}
	return &cachedBlob{Blob: b, store: s, name: name}, nil
}

// Create implements BlobStore.
func (s *CachingStore) Create(ctx context.Context, name string) (WritableBlob, error) {
	s.cache.EvictFile(name)
	return s.inner.Create(ctx, name)
}

// Put implements BlobStore.
func (s *CachingStore) Put(ctx context.Context, name string, data []byte) error {
	s.cache.EvictFile(name)
	return s.inner.Put(ctx, name, data)
}

// Delete implements BlobStore.
func (s *CachingStore) Delete(ctx context.Context, name string) error {
	s.cache.EvictFile(name)
	return s.inner.Delete(ctx, name)
}

// List implements BlobStore.
func (s *CachingStore) List(ctx context.Context, prefix string) ([]string, error) {
	return s.inner.List(ctx, prefix)
}

// MkdirAll forwards to the inner store if it materializes directories.
func (s *CachingStore) MkdirAll(ctx context.Context, name string) error {
	if dm, ok := s.inner.(DirMaker); ok {
		return dm.MkdirAll(ctx, name)
	}
	return nil
}

// Prefetch loads [off, off+length) of name into the cache, clamped to the
// file size, and returns the number of bytes covered. A negative length
// prefetches to the end of the file.
func (s *CachingStore) Prefetch(ctx context.Context, name string, off, length int64) (int64, error) {
	b, err := s.inner.Open(ctx, name)
	if err != nil {
		return 0, err
	}
	defer b.Close()

	size := b.Size()
	off = max(off, 0)
	if length < 0 || off+length > size {
		length = size - off
	}
	if length <= 0 {
		return 0, nil
	}
	if _, err := s.fill(ctx, b, name, s.blockOf(off), s.blockOf(off+length-1)); err != nil {
		return 0, err
	}
	return length, nil
}

// Cached returns the bytes of name currently held in the cache.
func (s *CachingStore) Cached(name string) int64 {
	return s.cache.FileBytes(name)
}

func (s *CachingStore) blockOf(off int64) int64 { return off / s.blockSize }

// run is a contiguous range of uncached blocks.
type run struct {
	first, count int64
}

// missing returns the uncached runs in [first, last] together with the
// blocks already cached.
func (s *CachingStore) missing(name string, first, last int64) ([]run, map[int64][]byte) {
	var runs []run
	cached := make(map[int64][]byte)
	for blk := first; blk <= last; blk++ {
		if data, ok := s.cache.Get(cache.BlockKey{File: name, Block: blk}); ok {
			cached[blk] = data
			continue
		}
		if n := len(runs); n > 0 && runs[n-1].first+runs[n-1].count == blk {
			runs[n-1].count++
			continue
		}
		runs = append(runs, run{first: blk, count: 1})
	}
	return runs, cached
}

// fill reads the uncached blocks of [first, last] with one backend read per
// run and returns every block of the range. Blocks past the end of the file
// are absent.
func (s *CachingStore) fill(ctx context.Context, b Blob, name string, first, last int64) (map[int64][]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	runs, blocks := s.missing(name, first, last)
	if len(runs) == 0 {
		return blocks, nil
	}

	fetched := make([][][]byte, len(runs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxRunFetches)
	for i, r := range runs {
		g.Go(func() error {
			chunks, err := s.readRun(gctx, b, r)
			fetched[i] = chunks
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for i, r := range runs {
		for j, chunk := range fetched[i] {
			blk := r.first + int64(j)
			s.cache.Put(cache.BlockKey{File: name, Block: blk}, chunk)
			blocks[blk] = chunk
		}
	}
	return blocks, nil
}

// readRun reads r from the backend and splits it into block-sized copies,
// so a cached block never pins the whole run buffer.
func (s *CachingStore) readRun(ctx context.Context, b Blob, r run) ([][]byte, error) {
	start := r.first * s.blockSize
	size := b.Size()
	if start >= size {
		return nil, nil
	}
	end := min(start+r.count*s.blockSize, size)

	buf := make([]byte, end-start)
	n, err := b.ReadAt(ctx, buf, start)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	buf = buf[:n]

	var chunks [][]byte
	for off := int64(0); off < int64(len(buf)); off += s.blockSize {
		hi := min(off+s.blockSize, int64(len(buf)))
		chunks = append(chunks, append([]byte(nil), buf[off:hi]...))
	}
	return chunks, nil
}

// cachedBlob reads through the block cache of its store.
type cachedBlob struct {
	Blob
	store *CachingStore
	name  string
}

func (b *cachedBlob) ReadAt(ctx context.Context, p []byte, off int64) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	bs := b.store.blockSize
	first, last := b.store.blockOf(off), b.store.blockOf(off+int64(len(p))-1)
	blocks, err := b.store.fill(ctx, b.Blob, b.name, first, last)
	if err != nil {
		return 0, err
	}

	n := 0
	for blk := first; blk <= last; blk++ {
		data, ok := blocks[blk]
		if !ok {
			break
		}
		from := max(off+int64(n)-blk*bs, 0)
		if from >= int64(len(data)) {
			break
		}
		n += copy(p[n:], data[from:])
		if int64(len(data)) < bs {
			// Short block: end of file.
			break
		}
	}
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

func (b *cachedBlob) ReadRange(ctx context.Context, off, length int64) (io.ReadCloser, error) {
	return io.NopCloser(&rangeReader{ctx: ctx, blob: b, off: off, end: off + length}), nil
}

type rangeReader struct {
	ctx  context.Context
	blob *cachedBlob
	off  int64
	end  int64
}

func (r *rangeReader) Read(p []byte) (int, error) {
	if r.off >= r.end {
		return 0, io.EOF
	}
	if rest := r.end - r.off; int64(len(p)) > rest {
		p = p[:rest]
	}
	n, err := r.blob.ReadAt(r.ctx, p, r.off)
	r.off += int64(n)
	if errors.Is(err, io.EOF) && n > 0 {
		err = nil
	}
	return n, err
}
