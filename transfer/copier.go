package transfer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"

	"github.com/hupe1980/idxdeploy/blobstore"
	"github.com/hupe1980/idxdeploy/internal/diskspace"
	"github.com/hupe1980/idxdeploy/internal/resource"
	"github.com/hupe1980/idxdeploy/model"
	"golang.org/x/sync/errgroup"
)

// Options configures a Copier.
type Options struct {
	// Resources bounds concurrent copies and bandwidth. Nil means unbounded
	// bandwidth and Concurrency workers.
	Resources *resource.Controller
	// Concurrency is the worker count when Resources is nil.
	Concurrency int
	// BufferSize is the copy buffer size per worker.
	BufferSize int
	// LocalRoot enables the free-space check before copying.
	LocalRoot string
	// DiskReserve is the free space that must remain after the transfer.
	DiskReserve uint64
	Logger      *slog.Logger
}

// Stats are cumulative copier counters.
type Stats struct {
	Copied  int64
	Skipped int64
	Bytes   int64
}

// Copier copies files from src to dst.
type Copier struct {
	src  blobstore.BlobStore
	dst  blobstore.BlobStore
	opts Options

	copied  atomic.Int64
	skipped atomic.Int64
	bytes   atomic.Int64
}

var _ Transferer = (*Copier)(nil)

// NewCopier creates a Copier.
func NewCopier(src, dst blobstore.BlobStore, optFns ...func(*Options)) *Copier {
	opts := Options{
		Concurrency: 4,
		BufferSize:  1 << 20,
		Logger:      slog.New(slog.DiscardHandler),
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Resources != nil {
		opts.Concurrency = opts.Resources.MaxConcurrentTransfers()
	}
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	if opts.BufferSize < 4096 {
		opts.BufferSize = 4096
	}
	return &Copier{src: src, dst: dst, opts: opts}
}

// Stats returns the counters accumulated over all transfers.
func (c *Copier) Stats() Stats {
	return Stats{Copied: c.copied.Load(), Skipped: c.skipped.Load(), Bytes: c.bytes.Load()}
}

// Deploy copies the Files of every manifest, then calls onDone.
func (c *Copier) Deploy(ctx context.Context, manifests []*model.FileManifest, isDone DoneFunc, onDone CompleteFunc) (Status, error) {
	if err := ctx.Err(); err != nil {
		return StatusCancelled, err
	}
	if isDone != nil && isDone(ctx) {
		return StatusDone, nil
	}

	var files []model.FileEntry
	for _, m := range manifests {
		if m != nil {
			files = append(files, m.Files...)
		}
	}

	pending, err := c.pending(ctx, files)
	if err != nil {
		return c.status(ctx, err)
	}
	if err := c.checkSpace(pending); err != nil {
		return StatusFailed, err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.opts.Concurrency)
	for _, f := range pending {
		g.Go(func() error {
			if err := c.opts.Resources.AcquireTransfer(gctx); err != nil {
				return err
			}
			defer c.opts.Resources.ReleaseTransfer()
			return c.CopyFile(gctx, f)
		})
	}
	if err := g.Wait(); err != nil {
		return c.status(ctx, err)
	}

	c.opts.Logger.DebugContext(ctx, "transfer finished",
		slog.Int("files", len(files)),
		slog.Int("copied", len(pending)),
		slog.Int("skipped", len(files)-len(pending)))

	if onDone != nil {
		if err := onDone(ctx); err != nil {
			return c.status(ctx, fmt.Errorf("complete transfer: %w", err))
		}
	}
	return StatusDone, nil
}

func (c *Copier) status(ctx context.Context, err error) (Status, error) {
	if ctx.Err() != nil || errors.Is(err, context.Canceled) {
		return StatusCancelled, err
	}
	return StatusFailed, err
}

// pending drops the files already materialized at dst.
func (c *Copier) pending(ctx context.Context, files []model.FileEntry) ([]model.FileEntry, error) {
	out := make([]model.FileEntry, 0, len(files))
	for _, f := range files {
		ok, err := c.materialized(ctx, f)
		if err != nil {
			return nil, err
		}
		if ok {
			c.skipped.Add(1)
			continue
		}
		out = append(out, f)
	}
	return out, nil
}

func (c *Copier) materialized(ctx context.Context, f model.FileEntry) (bool, error) {
	if f.IsDir() {
		if _, ok := c.dst.(blobstore.DirMaker); !ok {
			// Stores without directories create them implicitly.
			return true, nil
		}
		return blobstore.Exists(ctx, c.dst, f.Path)
	}
	if f.Length < 0 {
		return false, nil
	}
	size, err := blobstore.Stat(ctx, c.dst, f.Path)
	if err != nil {
		if errors.Is(err, blobstore.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return size == f.Length, nil
}

func (c *Copier) checkSpace(files []model.FileEntry) error {
	if c.opts.LocalRoot == "" {
		return nil
	}
	var need uint64
	for _, f := range files {
		if f.Length > 0 {
			need += uint64(f.Length)
		}
	}
	return diskspace.Check(c.opts.LocalRoot, need, c.opts.DiskReserve)
}

// CopyFile materializes one entry at dst. Directory markers are created with
// MkdirAll where the store supports it. A file becomes visible only once it
// was completely written.
func (c *Copier) CopyFile(ctx context.Context, f model.FileEntry) error {
	if f.IsDir() {
		if dm, ok := c.dst.(blobstore.DirMaker); ok {
			if err := dm.MkdirAll(ctx, f.Path); err != nil {
				return fmt.Errorf("mkdir %s: %w", f.Path, err)
			}
		}
		c.copied.Add(1)
		return nil
	}

	src, err := c.src.Open(ctx, f.Path)
	if err != nil {
		return fmt.Errorf("open %s: %w", f.Path, err)
	}
	defer src.Close()

	size := src.Size()
	if f.Length >= 0 && size != f.Length {
		return fmt.Errorf("%s: %w: planned %d, source %d", f.Path, ErrSizeMismatch, f.Length, size)
	}

	rc, err := src.ReadRange(ctx, 0, size)
	if err != nil {
		return fmt.Errorf("read %s: %w", f.Path, err)
	}
	defer rc.Close()

	w, err := c.dst.Create(ctx, f.Path)
	if err != nil {
		return fmt.Errorf("create %s: %w", f.Path, err)
	}

	buf := make([]byte, c.opts.BufferSize)
	n, err := io.CopyBuffer(w, resource.NewRateLimitedReader(ctx, rc, c.opts.Resources), buf)
	if err == nil && n != size {
		err = fmt.Errorf("%w: copied %d of %d bytes", ErrSizeMismatch, n, size)
	}
	if err != nil {
		abort(w)
		return fmt.Errorf("copy %s: %w", f.Path, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("commit %s: %w", f.Path, err)
	}

	c.copied.Add(1)
	c.bytes.Add(n)
	return nil
}

func abort(w blobstore.WritableBlob) {
	if a, ok := w.(blobstore.Aborter); ok {
		_ = a.Abort()
		return
	}
	_ = w.Close()
}
