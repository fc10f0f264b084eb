package idxdeploy

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/hupe1980/idxdeploy/blobstore"
	"github.com/hupe1980/idxdeploy/description"
	"github.com/hupe1980/idxdeploy/model"
)

// RetainFunc reports whether the done marker of a version must be kept.
type RetainFunc func(model.VersionID) bool

// RetainVersions keeps exactly the given versions.
func RetainVersions(versions ...model.VersionID) RetainFunc {
	keep := roaring.New()
	for _, v := range versions {
		if v.IsValid() {
			keep.Add(uint32(v))
		}
	}
	return func(v model.VersionID) bool {
		return v.IsValid() && keep.Contains(uint32(v))
	}
}

// RetainFrom keeps every version >= min.
func RetainFrom(min model.VersionID) RetainFunc {
	return func(v model.VersionID) bool { return v >= min }
}

// doneVersions scans the local partition root for done markers.
func (d *Deployer) doneVersions(ctx context.Context) (*roaring.Bitmap, error) {
	names, err := d.local.List(ctx, model.VersionFilePrefix)
	if err != nil {
		return nil, fmt.Errorf("list done markers: %w", err)
	}
	found := roaring.New()
	for _, name := range names {
		if strings.Contains(name, "/") {
			continue
		}
		if v, ok := model.ParseDoneFileName(name); ok {
			found.Add(uint32(v))
		}
	}
	return found, nil
}

// CleanDoneFiles deletes the done markers of every version retain rejects and
// returns the removed versions in ascending order.
func (d *Deployer) CleanDoneFiles(ctx context.Context, retain RetainFunc) ([]model.VersionID, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	removed, err := d.cleanDoneFiles(ctx, retain)
	d.opts.logger.LogClean(ctx, removed, err)
	d.opts.metricsCollector.RecordClean(len(removed), err)
	return removed, err
}

func (d *Deployer) cleanDoneFiles(ctx context.Context, retain RetainFunc) ([]model.VersionID, error) {
	found, err := d.doneVersions(ctx)
	if err != nil {
		return nil, err
	}

	var removed []model.VersionID
	it := found.Iterator()
	for it.HasNext() {
		v := model.VersionID(it.Next())
		if retain != nil && retain(v) {
			continue
		}
		if err := d.local.Delete(ctx, model.DoneFileName(v)); err != nil {
			return removed, fmt.Errorf("delete %s: %w", model.DoneFileName(v), err)
		}
		removed = append(removed, v)
	}
	return removed, nil
}

// NeedKeepDeployFiles returns the sorted local paths recorded by the markers of
// every version >= minVersion. Markers without manifest support are skipped,
// so the list is best effort: files deployed under such markers are missing.
func (d *Deployer) NeedKeepDeployFiles(ctx context.Context, minVersion model.VersionID) ([]string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	found, err := d.doneVersions(ctx)
	if err != nil {
		return nil, err
	}

	keep := make(map[string]struct{})
	it := found.Iterator()
	if minVersion.IsValid() {
		it.AdvanceIfNeeded(uint32(minVersion))
	}
	for it.HasNext() {
		v := model.VersionID(it.Next())
		data, err := blobstore.ReadAll(ctx, d.local, model.DoneFileName(v))
		if err != nil {
			if errors.Is(err, blobstore.ErrNotFound) {
				continue
			}
			return nil, fmt.Errorf("read %s: %w", model.DoneFileName(v), err)
		}
		desc, err := description.Deserialize(data)
		if err != nil {
			d.opts.logger.WarnContext(ctx, "skip corrupt done marker", "version", int64(v), "error", err)
			continue
		}
		if !desc.SupportsFeature(description.FeatureManifestCheck) {
			continue
		}
		for _, p := range desc.LocalPaths() {
			keep[p] = struct{}{}
		}
	}

	paths := make([]string, 0, len(keep))
	for p := range keep {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths, nil
}
