package planner

import (
	"context"
	"errors"
	"log/slog"
	"runtime"
	"sort"
	"strings"
	"sync"

	"github.com/hupe1980/idxdeploy/lifecycle"
	"github.com/hupe1980/idxdeploy/loadconfig"
	"github.com/hupe1980/idxdeploy/model"
	"golang.org/x/sync/errgroup"
)

// Plan is the outcome of planning one version.
type Plan struct {
	Remote []model.FileEntry
	Local  []model.FileEntry
}

// Options configures a Planner.
type Options struct {
	// ProbeConcurrency bounds the number of concurrent size probes.
	ProbeConcurrency int
	Logger           *slog.Logger
}

// Planner builds deploy plans. It holds no state between calls and is safe
// for concurrent use.
type Planner struct {
	prober Prober
	opts   Options
}

// New creates a Planner. prober may be nil if every manifest entry carries a
// known length.
func New(prober Prober, optFns ...func(*Options)) *Planner {
	opts := Options{
		ProbeConcurrency: runtime.GOMAXPROCS(0) * 2,
		Logger:           slog.New(slog.DiscardHandler),
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.ProbeConcurrency < 1 {
		opts.ProbeConcurrency = 1
	}
	return &Planner{prober: prober, opts: opts}
}

// Plan classifies every manifest entry under rules and the lifecycle table,
// de-duplicates both sets and completes unknown sizes. A failed probe fails
// the whole call.
func (p *Planner) Plan(ctx context.Context, manifest []model.FileEntry, rules *loadconfig.RuleSet, table *lifecycle.Table) (*Plan, error) {
	plan := &Plan{
		Remote: []model.FileEntry{},
		Local:  []model.FileEntry{},
	}
	for _, f := range manifest {
		remote, deploy := rules.Classify(f.Path, table.GetLifecycle(f.Path))
		if remote {
			plan.Remote = append(plan.Remote, f)
		}
		if deploy {
			plan.Local = append(plan.Local, f)
		}
	}

	plan.Remote = Dedup(plan.Remote)
	plan.Local = Dedup(plan.Local)

	if err := p.completeSizes(ctx, plan.Remote, plan.Local); err != nil {
		return nil, err
	}

	p.opts.Logger.DebugContext(ctx, "plan built",
		slog.Int("manifest", len(manifest)),
		slog.Int("remote", len(plan.Remote)),
		slog.Int("local", len(plan.Local)))
	return plan, nil
}

// Dedup sorts files by path and drops redundant entries: duplicates of the
// same path (the later one is kept) and directory markers followed by one of
// their descendants. The last entry is always kept so that a trailing empty
// directory is still materialized.
func Dedup(files []model.FileEntry) []model.FileEntry {
	if len(files) == 0 {
		return files
	}
	sorted := make([]model.FileEntry, len(files))
	copy(sorted, files)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Path < sorted[j].Path })

	out := sorted[:0]
	for i := 0; i < len(sorted)-1; i++ {
		cur, next := sorted[i], sorted[i+1]
		if next.Path == cur.Path {
			continue
		}
		if cur.IsDir() && strings.HasPrefix(next.Path, cur.Path) {
			continue
		}
		out = append(out, cur)
	}
	return append(out, sorted[len(sorted)-1])
}

// completeSizes fixes directory markers at length 0 and probes the unknown
// lengths of files. Each distinct path is probed once.
func (p *Planner) completeSizes(ctx context.Context, lists ...[]model.FileEntry) error {
	var pending []string
	seen := make(map[string]struct{})
	for _, list := range lists {
		for i := range list {
			f := &list[i]
			if f.IsDir() {
				f.Length = 0
				continue
			}
			if f.Length >= 0 {
				continue
			}
			if _, ok := seen[f.Path]; !ok {
				seen[f.Path] = struct{}{}
				pending = append(pending, f.Path)
			}
		}
	}
	if len(pending) == 0 {
		return nil
	}
	if p.prober == nil {
		return &ProbeError{Path: pending[0], Err: errors.New("no prober configured")}
	}

	var mu sync.Mutex
	sizes := make(map[string]int64, len(pending))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.opts.ProbeConcurrency)
	for _, path := range pending {
		g.Go(func() error {
			size, err := p.prober.Probe(gctx, path)
			if err != nil {
				return &ProbeError{Path: path, Err: err}
			}
			if size < 0 {
				return &ProbeError{Path: path, Err: errors.New("negative size")}
			}
			mu.Lock()
			sizes[path] = size
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for _, list := range lists {
		for i := range list {
			if size, ok := sizes[list[i].Path]; ok && list[i].Length < 0 {
				list[i].Length = size
			}
		}
	}
	p.opts.Logger.DebugContext(ctx, "probed unknown sizes", slog.Int("files", len(pending)))
	return nil
}
