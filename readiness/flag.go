package readiness

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hupe1980/idxdeploy/blobstore"
	"github.com/hupe1980/idxdeploy/model"
)

// VersionPlaceholder in a flag name is replaced by the version id.
const VersionPlaceholder = "{version}"

// FlagGate waits for a flag file in the raw store.
type FlagGate struct {
	store    blobstore.BlobStore
	name     string
	interval time.Duration
	logger   *slog.Logger
}

var _ Gate = (*FlagGate)(nil)

// FlagOption configures a FlagGate.
type FlagOption func(*FlagGate)

// WithFlagInterval sets the poll interval.
func WithFlagInterval(d time.Duration) FlagOption {
	return func(g *FlagGate) { g.interval = d }
}

// WithFlagLogger sets the logger.
func WithFlagLogger(l *slog.Logger) FlagOption {
	return func(g *FlagGate) {
		if l != nil {
			g.logger = l
		}
	}
}

// NewFlagGate creates a gate waiting for name, which may contain
// VersionPlaceholder (e.g. "version.{version}.published").
func NewFlagGate(store blobstore.BlobStore, name string, optFns ...FlagOption) *FlagGate {
	g := &FlagGate{
		store:    store,
		name:     name,
		interval: DefaultPollInterval,
		logger:   slog.New(slog.DiscardHandler),
	}
	for _, fn := range optFns {
		fn(g)
	}
	return g
}

// FlagName returns the flag file name of version.
func (g *FlagGate) FlagName(version model.VersionID) string {
	return strings.ReplaceAll(g.name, VersionPlaceholder, version.String())
}

// Wait blocks until the flag file of version exists.
func (g *FlagGate) Wait(ctx context.Context, version model.VersionID) error {
	name := g.FlagName(version)
	attempts := 0
	err := poll(ctx, g.interval, func(ctx context.Context) (bool, error) {
		attempts++
		ok, err := blobstore.Exists(ctx, g.store, name)
		if err != nil {
			return false, fmt.Errorf("probe readiness flag %s: %w", name, err)
		}
		if !ok && attempts == 1 {
			g.logger.InfoContext(ctx, "waiting for readiness flag", slog.String("flag", name))
		}
		return ok, nil
	})
	return err
}
