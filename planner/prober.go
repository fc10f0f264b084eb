package planner

import (
	"context"

	"github.com/hupe1980/idxdeploy/blobstore"
)

// Prober determines the size of a file at the source location.
type Prober interface {
	Probe(ctx context.Context, path string) (int64, error)
}

// ProberFunc adapts a function to Prober.
type ProberFunc func(ctx context.Context, path string) (int64, error)

// Probe calls f.
func (f ProberFunc) Probe(ctx context.Context, path string) (int64, error) {
	return f(ctx, path)
}

// StoreProber probes sizes with blobstore.Stat.
type StoreProber struct {
	Store blobstore.BlobStore
}

// Probe returns the size of path in the store.
func (p StoreProber) Probe(ctx context.Context, path string) (int64, error) {
	return blobstore.Stat(ctx, p.Store, path)
}
