package idxdeploy

import (
	"log/slog"
	"time"

	"github.com/hupe1980/idxdeploy/description"
	"github.com/hupe1980/idxdeploy/internal/resource"
	"github.com/hupe1980/idxdeploy/readiness"
	"github.com/hupe1980/idxdeploy/transfer"
	"github.com/hupe1980/idxdeploy/warmup"
)

type options struct {
	manifestReader   ManifestReader
	segmentReader    SegmentReader
	transferer       transfer.Transferer
	warmer           warmup.CacheWarmer
	gate             readiness.Gate
	resources        *resource.Controller
	probeConcurrency int
	diskReserve      uint64
	disabledFeatures []description.Feature
	metricsCollector MetricsCollector
	logger           *Logger
	now              func() time.Time
}

// Option configures a Deployer.
type Option func(*options)

// WithManifestReader overrides the raw manifest reader.
// The default reads version files and entry tables from the raw store.
func WithManifestReader(r ManifestReader) Option {
	return func(o *options) {
		o.manifestReader = r
	}
}

// WithSegmentReader overrides the source of segment statistics.
func WithSegmentReader(r SegmentReader) Option {
	return func(o *options) {
		o.segmentReader = r
	}
}

// WithTransferer overrides the default transfer.Copier.
func WithTransferer(t transfer.Transferer) Option {
	return func(o *options) {
		o.transferer = t
	}
}

// WithCacheWarmer enables warm-up of remote files served by the caching tier
// (see loadconfig.Config.CacheTierPrefixes).
func WithCacheWarmer(w warmup.CacheWarmer) Option {
	return func(o *options) {
		o.warmer = w
	}
}

// WithReadinessGate makes Deploy wait until the target version is published.
func WithReadinessGate(g readiness.Gate) Option {
	return func(o *options) {
		o.gate = g
	}
}

// WithResources bounds the default transferer's concurrency and bandwidth.
// A controller may be shared by the Deployers of several partitions.
func WithResources(rc *resource.Controller) Option {
	return func(o *options) {
		o.resources = rc
	}
}

// WithProbeConcurrency bounds the number of parallel size probes.
func WithProbeConcurrency(n int) Option {
	return func(o *options) {
		o.probeConcurrency = n
	}
}

// WithDiskReserve sets the free space that must remain on the local disk after
// a transfer. Only used when the local store is a blobstore.LocalStore.
func WithDiskReserve(bytes uint64) Option {
	return func(o *options) {
		o.diskReserve = bytes
	}
}

// WithDisabledFeatures writes markers without the given description features.
// Disabling any feature falls back to legacy markers, which peers that only
// speak the legacy protocol understand during a rolling upgrade.
func WithDisabledFeatures(features ...description.Feature) Option {
	return func(o *options) {
		o.disabledFeatures = append(o.disabledFeatures, features...)
	}
}

// WithMetricsCollector configures a metrics collector for monitoring operations.
// Pass nil to disable metrics collection.
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		if mc == nil {
			mc = NoopMetricsCollector{}
		}
		o.metricsCollector = mc
	}
}

// WithLogger configures structured logging for operations.
// Pass nil to disable logging.
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		if logger == nil {
			logger = NoopLogger()
		}
		o.logger = logger
	}
}

// WithLogLevel creates a text logger with the specified level and sets it.
// Convenience wrapper for WithLogger(NewTextLogger(level)).
func WithLogLevel(level slog.Level) Option {
	return func(o *options) {
		o.logger = NewTextLogger(level)
	}
}

// WithClock overrides the time source for lifecycle anchors and deploy times.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

func applyOptions(optFns []Option) options {
	o := options{
		metricsCollector: NoopMetricsCollector{},
		logger:           NoopLogger(),
		now:              time.Now,
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	return o
}
