package idxdeploy

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/hupe1980/idxdeploy/blobstore"
	"github.com/hupe1980/idxdeploy/description"
	"github.com/hupe1980/idxdeploy/lifecycle"
	"github.com/hupe1980/idxdeploy/loadconfig"
	"github.com/hupe1980/idxdeploy/model"
	"github.com/hupe1980/idxdeploy/planner"
	"github.com/hupe1980/idxdeploy/rawmanifest"
	"github.com/hupe1980/idxdeploy/transfer"
	"github.com/hupe1980/idxdeploy/warmup"
)

// ManifestReader returns the complete file manifest of a raw version.
type ManifestReader interface {
	ReadManifest(ctx context.Context, rawPath string, version model.VersionID) ([]model.FileEntry, error)
}

// SegmentReader returns the segment statistics of a raw version.
type SegmentReader interface {
	ReadSegments(ctx context.Context, rawPath string, version model.VersionID) ([]lifecycle.Segment, error)
}

// Outcome is the result of a successful or cancelled Deploy call.
type Outcome int

const (
	// OutcomeDeployed means files were transferred and the marker was written.
	OutcomeDeployed Outcome = iota
	// OutcomeAlreadyDone means the existing marker records the same plan.
	OutcomeAlreadyDone
	// OutcomeSkipped means the configuration needs no local index.
	OutcomeSkipped
	// OutcomeCancelled means the context was cancelled.
	OutcomeCancelled
)

func (o Outcome) String() string {
	switch o {
	case OutcomeDeployed:
		return "deployed"
	case OutcomeAlreadyDone:
		return "already-done"
	case OutcomeSkipped:
		return "skipped"
	case OutcomeCancelled:
		return "cancelled"
	default:
		return fmt.Sprintf("Outcome(%d)", int(o))
	}
}

// Request names one version transition of a partition.
//
// The paths describe the partition roots for markers and diagnostics; data is
// accessed through the stores given to New.
type Request struct {
	RawPath    string
	LocalPath  string
	RemotePath string
	ConfigPath string

	BaseVersion   model.VersionID
	TargetVersion model.VersionID

	// Config is the target version's deployment configuration. Nil deploys
	// every file locally.
	Config *loadconfig.Config
}

// Result describes a finished Deploy call.
type Result struct {
	Outcome Outcome
	// Description is the target description; nil for cancellations before planning.
	Description *description.Description
	// Added and Removed count local files relative to the base marker.
	Added    int
	Removed  int
	Duration time.Duration
}

// Deployer deploys the versions of one partition. Deployments are serialized;
// use one Deployer per partition.
type Deployer struct {
	mu    sync.Mutex
	raw   blobstore.BlobStore
	local blobstore.BlobStore
	opts  options
}

// New creates a Deployer copying from raw (rooted at the raw partition) to
// local (rooted at the local partition).
func New(raw, local blobstore.BlobStore, optFns ...Option) *Deployer {
	opts := applyOptions(optFns)

	if opts.manifestReader == nil || opts.segmentReader == nil {
		r := rawmanifest.NewReader(raw, rawmanifest.WithLogger(opts.logger.Logger))
		if opts.manifestReader == nil {
			opts.manifestReader = r
		}
		if opts.segmentReader == nil {
			opts.segmentReader = r
		}
	}
	if opts.transferer == nil {
		opts.transferer = transfer.NewCopier(raw, local, func(o *transfer.Options) {
			o.Resources = opts.resources
			o.DiskReserve = opts.diskReserve
			o.Logger = opts.logger.Logger
			if ls, ok := local.(*blobstore.LocalStore); ok {
				o.LocalRoot = ls.Root()
			}
		})
	}

	return &Deployer{raw: raw, local: local, opts: opts}
}

// Deploy runs one deployment. Failures are returned as *DeployError; a
// cancelled deployment returns OutcomeCancelled and a nil error.
func (d *Deployer) Deploy(ctx context.Context, req Request) (Result, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	start := d.opts.now()
	log := d.opts.logger.
		WithPartition(req.RawPath, req.LocalPath, req.RemotePath).
		WithVersions(req.BaseVersion, req.TargetVersion)

	res, err := d.deploy(ctx, req, log)
	if err != nil && ctx.Err() != nil {
		log.InfoContext(ctx, "deploy cancelled", "error", err)
		res, err = Result{Outcome: OutcomeCancelled, Description: res.Description}, nil
	}
	res.Duration = d.opts.now().Sub(start)

	log.LogDeploy(ctx, res.Outcome, res.Duration, err)
	d.opts.metricsCollector.RecordDeploy(res.Outcome, res.Duration, err)
	return res, err
}

func (d *Deployer) deploy(ctx context.Context, req Request, log *Logger) (Result, error) {
	cfg := req.Config
	if cfg == nil {
		cfg = loadconfig.Default()
	}

	base := d.loadBase(ctx, req.BaseVersion, log)

	planStart := d.opts.now()
	target, err := d.plan(ctx, req, cfg)
	d.opts.metricsCollector.RecordPlan(localCount(target), remoteCount(target), d.opts.now().Sub(planStart), err)
	if err != nil {
		log.LogPlan(ctx, 0, 0, 0, 0, err)
		return Result{}, newDeployError("plan", req, err)
	}
	res := Result{Description: target}
	res.Added, res.Removed = target.DiffLocal(base)
	log.LogPlan(ctx, remoteCount(target), localCount(target), res.Added, res.Removed, nil)

	if !cfg.DeployIndex() {
		res.Outcome = OutcomeSkipped
		return res, nil
	}

	if d.opts.gate != nil {
		if err := d.opts.gate.Wait(ctx, req.TargetVersion); err != nil {
			return res, newDeployError("readiness", req, fmt.Errorf("%w: %w", ErrNotReady, err))
		}
	}

	isDone := func(ctx context.Context) bool {
		return d.isDone(ctx, req.TargetVersion, target, log)
	}
	if isDone(ctx) {
		res.Outcome = OutcomeAlreadyDone
		return res, nil
	}

	warmDone := d.startWarmUp(ctx, req, cfg, target, log)

	status, err := d.opts.transferer.Deploy(ctx, target.LocalManifests, isDone, func(ctx context.Context) error {
		return d.complete(ctx, req, cfg, target)
	})
	<-warmDone

	switch status {
	case transfer.StatusDone:
		res.Outcome = OutcomeDeployed
		return res, nil
	case transfer.StatusCancelled:
		res.Outcome = OutcomeCancelled
		return res, nil
	default:
		if err == nil {
			err = errors.New(status.String())
		}
		return res, newDeployError("transfer", req, fmt.Errorf("%w: %w", ErrTransfer, err))
	}
}

// loadBase reads the base marker. Missing or corrupt markers degrade to an
// empty description.
func (d *Deployer) loadBase(ctx context.Context, version model.VersionID, log *Logger) *description.Description {
	empty := &description.Description{}
	if !version.IsValid() {
		return empty
	}
	data, err := blobstore.ReadAll(ctx, d.local, model.DoneFileName(version))
	if err != nil {
		log.WarnContext(ctx, "base done marker unavailable", "error", err)
		return empty
	}
	base, err := description.Deserialize(data)
	if err != nil {
		log.WarnContext(ctx, "base done marker corrupt", "error", err)
		return empty
	}
	return base
}

// plan builds the target description.
func (d *Deployer) plan(ctx context.Context, req Request, cfg *loadconfig.Config) (*description.Description, error) {
	rules, err := cfg.Rules()
	if err != nil {
		return nil, err
	}
	classifier, err := lifecycle.NewClassifier(cfg.Lifecycle, lifecycle.WithClock(d.opts.now))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	segments, err := d.opts.segmentReader.ReadSegments(ctx, req.RawPath, req.TargetVersion)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrManifestUnavailable, err)
	}
	table := classifier.Classify(segments)

	manifest, err := d.opts.manifestReader.ReadManifest(ctx, req.RawPath, req.TargetVersion)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrManifestUnavailable, err)
	}

	p := planner.New(planner.StoreProber{Store: d.raw}, func(o *planner.Options) {
		if d.opts.probeConcurrency > 0 {
			o.ProbeConcurrency = d.opts.probeConcurrency
		}
		o.Logger = d.opts.logger.Logger
	})
	plan, err := p.Plan(ctx, manifest, rules, table)
	if err != nil {
		return nil, err
	}

	versionFile := model.VersionFileName(req.TargetVersion)
	size, err := blobstore.Stat(ctx, d.raw, versionFile)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrManifestUnavailable, versionFile, err)
	}

	target := description.New(req.RawPath, req.RemotePath, req.ConfigPath)
	target.LocalManifests = []*model.FileManifest{{
		Files:      plan.Local,
		FinalFiles: []model.FileEntry{model.NewFileEntry(versionFile, size)},
	}}
	target.RemoteManifests = []*model.FileManifest{{
		Files: plan.Remote,
	}}
	target.LifecycleTable = table
	for _, f := range d.opts.disabledFeatures {
		target.DisableFeature(f)
	}
	return target, nil
}

// isDone reports whether the local partition holds the target version and a
// marker recording the same plan. Markers are re-read on every call.
func (d *Deployer) isDone(ctx context.Context, version model.VersionID, target *description.Description, log *Logger) bool {
	ok, err := blobstore.Exists(ctx, d.local, model.VersionFileName(version))
	if err != nil || !ok {
		return false
	}
	data, err := blobstore.ReadAll(ctx, d.local, model.DoneFileName(version))
	if err != nil {
		if !errors.Is(err, blobstore.ErrNotFound) {
			log.WarnContext(ctx, "read done marker", "error", err)
		}
		return false
	}
	done, err := target.CheckDeployDone(data)
	if err != nil {
		log.WarnContext(ctx, "done marker unusable, redeploying", "error", err)
		return false
	}
	return done
}

// complete runs after every planned file was transferred: sidecars first,
// then the version file, and the done marker last.
func (d *Deployer) complete(ctx context.Context, req Request, cfg *loadconfig.Config, target *description.Description) error {
	for _, name := range cfg.Sidecars() {
		if err := d.copySmall(ctx, name, true); err != nil {
			return err
		}
	}
	for _, m := range target.LocalManifests {
		for _, f := range m.FinalFiles {
			if err := d.copySmall(ctx, f.Path, false); err != nil {
				return err
			}
		}
	}

	marker := model.DoneFileName(req.TargetVersion)
	if err := d.local.Delete(ctx, marker); err != nil {
		return fmt.Errorf("remove stale %s: %w", marker, err)
	}
	if target.SupportsFeature(description.FeatureDeployTime) {
		target.DeployTime = d.opts.now().Unix()
	}
	data, err := target.Marshal()
	if err != nil {
		return err
	}
	if err := d.local.Put(ctx, marker, data); err != nil {
		return fmt.Errorf("write %s: %w", marker, err)
	}
	return nil
}

// copySmall copies a small file from raw to local in one Put.
func (d *Deployer) copySmall(ctx context.Context, name string, optional bool) error {
	data, err := blobstore.ReadAll(ctx, d.raw, name)
	if err != nil {
		if optional && errors.Is(err, blobstore.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("read %s: %w", name, err)
	}
	if err := d.local.Put(ctx, name, data); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	return nil
}

// startWarmUp sends warm-up hints for the remote set when the remote root is
// served by the caching tier. The returned channel closes when warm-up ended.
func (d *Deployer) startWarmUp(ctx context.Context, req Request, cfg *loadconfig.Config, target *description.Description, log *Logger) <-chan struct{} {
	done := make(chan struct{})
	if d.opts.warmer == nil || !cfg.IsCacheTier(req.RemotePath) {
		close(done)
		return done
	}

	var hints []string
	for _, m := range target.RemoteManifests {
		for _, f := range m.Files {
			if f.IsDir() {
				continue
			}
			hints = append(hints, warmup.Hint{Path: f.Path, Length: f.Length}.String())
		}
	}
	if len(hints) == 0 {
		close(done)
		return done
	}

	go func() {
		defer close(done)
		err := d.opts.warmer.WarmUp(ctx, hints)
		log.LogWarmUp(ctx, len(hints), err)
		d.opts.metricsCollector.RecordWarmUp(len(hints), err)
	}()
	return done
}

func localCount(d *description.Description) int {
	if d == nil {
		return 0
	}
	return len(d.LocalPaths())
}

func remoteCount(d *description.Description) int {
	if d == nil {
		return 0
	}
	var n int
	for _, m := range d.RemoteManifests {
		n += len(m.Paths())
	}
	return n
}
