// Package warmup preloads remote-tier files into the block cache.
//
// Warm-up is best effort: callers log its errors and never fail a deployment
// because of them.
package warmup

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// HintSeparator separates path and length in a warm-up hint.
const HintSeparator = ":::"

// ErrInvalidHint is returned for hints not of the form "path:::length".
var ErrInvalidHint = errors.New("invalid warm-up hint")

// CacheWarmer accepts "path:::length" hints.
type CacheWarmer interface {
	WarmUp(ctx context.Context, hints []string) error
}

// Hint is a decoded warm-up hint.
type Hint struct {
	Path   string
	Length int64
}

// String encodes h as "path:::length".
func (h Hint) String() string {
	return h.Path + HintSeparator + strconv.FormatInt(h.Length, 10)
}

// ParseHint decodes "path:::length". The separator is searched from the right
// so paths may contain it.
func ParseHint(s string) (Hint, error) {
	i := strings.LastIndex(s, HintSeparator)
	if i <= 0 {
		return Hint{}, fmt.Errorf("%w: %q", ErrInvalidHint, s)
	}
	n, err := strconv.ParseInt(s[i+len(HintSeparator):], 10, 64)
	if err != nil || n < 0 {
		return Hint{}, fmt.Errorf("%w: %q", ErrInvalidHint, s)
	}
	return Hint{Path: s[:i], Length: n}, nil
}

// Prefetcher loads a byte range of a blob into a cache.
// blobstore.CachingStore implements it.
type Prefetcher interface {
	Prefetch(ctx context.Context, name string, off, length int64) (int64, error)
}

// Options configures a Warmer.
type Options struct {
	// Concurrency bounds parallel prefetches.
	Concurrency int
	// RequestsPerSecond throttles prefetch requests. Zero means unlimited.
	RequestsPerSecond float64
	Logger            *slog.Logger
}

// Warmer prefetches hinted files through a Prefetcher.
type Warmer struct {
	prefetcher Prefetcher
	limiter    *rate.Limiter
	opts       Options
}

var _ CacheWarmer = (*Warmer)(nil)

// New creates a Warmer.
func New(p Prefetcher, optFns ...func(*Options)) *Warmer {
	opts := Options{
		Concurrency: 8,
		Logger:      slog.New(slog.DiscardHandler),
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if opts.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), max(1, opts.Concurrency))
	}
	return &Warmer{prefetcher: p, limiter: limiter, opts: opts}
}

// WarmUp prefetches every hinted file. Invalid hints and failed prefetches
// do not stop the remaining ones; all errors are returned joined.
func (w *Warmer) WarmUp(ctx context.Context, hints []string) error {
	var (
		mu   sync.Mutex
		errs []error
	)
	record := func(err error) {
		mu.Lock()
		errs = append(errs, err)
		mu.Unlock()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(w.opts.Concurrency)
	for _, s := range hints {
		h, err := ParseHint(s)
		if err != nil {
			record(err)
			continue
		}
		g.Go(func() error {
			if err := w.limiter.Wait(gctx); err != nil {
				// Only cancellation stops the remaining hints.
				return err
			}
			n, err := w.prefetcher.Prefetch(gctx, h.Path, 0, h.Length)
			if err != nil {
				record(fmt.Errorf("warm up %s: %w", h.Path, err))
				return nil
			}
			w.opts.Logger.DebugContext(gctx, "warmed up", slog.String("path", h.Path), slog.Int64("bytes", n))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		record(err)
	}
	return errors.Join(errs...)
}
