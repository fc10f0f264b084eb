package planner

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/hupe1980/idxdeploy/blobstore"
	"github.com/hupe1980/idxdeploy/lifecycle"
	"github.com/hupe1980/idxdeploy/loadconfig"
	"github.com/hupe1980/idxdeploy/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func entries(lengths map[string]int64, paths ...string) []model.FileEntry {
	out := make([]model.FileEntry, 0, len(paths))
	for _, p := range paths {
		l, ok := lengths[p]
		if !ok {
			l = 1
		}
		out = append(out, model.NewFileEntry(p, l))
	}
	return out
}

func paths(files []model.FileEntry) []string {
	out := make([]string, 0, len(files))
	for _, f := range files {
		out = append(out, f.Path)
	}
	return out
}

func TestPlan_RemoteAndLocalSets(t *testing.T) {
	manifest := entries(nil,
		"r1d1-r1d1", "r1d1-r1d0", "r1d1-r0d1",
		"r1d0-r1d1", "r1d0-r1d0", "r1d0-r0d1",
		"r0d1-r1d1", "r0d1-r1d0", "r0d1-r0d1",
	)
	rules := loadconfig.MustCompile([]loadconfig.Rule{
		{FilePatterns: []string{"^r1d1-.*"}, Remote: true, Deploy: true},
		{FilePatterns: []string{"^r1d0-.*"}, Remote: true, Deploy: false},
		{FilePatterns: []string{"^r0d1-.*"}, Remote: false, Deploy: true},
	})

	plan, err := New(nil).Plan(context.Background(), manifest, rules, lifecycle.NewTable())
	require.NoError(t, err)

	assert.Equal(t, []string{
		"r1d0-r0d1", "r1d0-r1d0", "r1d0-r1d1",
		"r1d1-r0d1", "r1d1-r1d0", "r1d1-r1d1",
	}, paths(plan.Remote))
	assert.Equal(t, []string{
		"r0d1-r0d1", "r0d1-r1d0", "r0d1-r1d1",
		"r1d1-r0d1", "r1d1-r1d0", "r1d1-r1d1",
	}, paths(plan.Local))
}

func TestPlan_UnmatchedFilesAreExcluded(t *testing.T) {
	rules := loadconfig.MustCompile([]loadconfig.Rule{
		{FilePatterns: []string{"^keep"}, Deploy: true},
	})
	plan, err := New(nil).Plan(context.Background(), entries(nil, "keep", "drop"), rules, nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"keep"}, paths(plan.Local))
	assert.NotNil(t, plan.Remote)
	assert.Empty(t, plan.Remote)
}

func TestPlan_LifecycleQualifiedRules(t *testing.T) {
	table := lifecycle.NewTable()
	table.AddDirectory("segment_0_level_0", "hot")
	table.AddDirectory("segment_1_level_0", "cold")

	rules := loadconfig.MustCompile([]loadconfig.Rule{
		{FilePatterns: []string{"_INDEX_"}, Lifecycle: "hot", Remote: true, Deploy: true},
		{FilePatterns: []string{"_INDEX_"}, Lifecycle: "cold", Remote: true},
		{FilePatterns: []string{".*"}, Deploy: true},
	})

	manifest := entries(nil,
		"segment_0_level_0/index/pk/data",
		"segment_1_level_0/index/pk/data",
		"segment_1_level_0/attribute/price/data",
	)
	plan, err := New(nil).Plan(context.Background(), manifest, rules, table)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"segment_0_level_0/index/pk/data",
		"segment_1_level_0/index/pk/data",
	}, paths(plan.Remote))
	assert.Equal(t, []string{
		"segment_0_level_0/index/pk/data",
		"segment_1_level_0/attribute/price/data",
	}, paths(plan.Local))
}

func TestDedup(t *testing.T) {
	t.Run("drops ancestors of listed descendants", func(t *testing.T) {
		got := Dedup(entries(nil, "seg/a/", "seg/", "seg/a/data", "other"))
		assert.Equal(t, []string{"other", "seg/a/data"}, paths(got))
	})

	t.Run("keeps trailing directory", func(t *testing.T) {
		got := Dedup(entries(nil, "seg/data", "tail/"))
		assert.Equal(t, []string{"seg/data", "tail/"}, paths(got))
	})

	t.Run("keeps directory without descendants", func(t *testing.T) {
		got := Dedup(entries(nil, "a/", "b/x"))
		assert.Equal(t, []string{"a/", "b/x"}, paths(got))
	})

	t.Run("sibling prefix is not a descendant", func(t *testing.T) {
		got := Dedup(entries(nil, "seg", "segment"))
		assert.Equal(t, []string{"seg", "segment"}, paths(got))
	})

	t.Run("duplicate paths keep the later entry", func(t *testing.T) {
		in := []model.FileEntry{model.NewFileEntry("f", 1), model.NewFileEntry("f", 2)}
		assert.Equal(t, []model.FileEntry{model.NewFileEntry("f", 2)}, Dedup(in))
	})

	t.Run("does not modify input", func(t *testing.T) {
		in := entries(nil, "b", "a/", "a/x")
		_ = Dedup(in)
		assert.Equal(t, []string{"b", "a/", "a/x"}, paths(in))
	})

	t.Run("law holds for every last element", func(t *testing.T) {
		in := entries(nil, "z/", "a/", "a/b/", "a/b/c", "m/n/")
		got := Dedup(in)
		assert.Equal(t, "z/", got[len(got)-1].Path)
		assert.NotContains(t, paths(got), "a/")
		assert.NotContains(t, paths(got), "a/b/")
	})

	t.Run("empty", func(t *testing.T) {
		assert.Empty(t, Dedup(nil))
	})
}

func TestPlan_CompletesSizes(t *testing.T) {
	ctx := context.Background()
	store := blobstore.NewMemoryStore()
	require.NoError(t, store.Put(ctx, "seg/data", []byte("12345")))
	require.NoError(t, store.Put(ctx, "seg/offsets", []byte("12")))

	manifest := []model.FileEntry{
		model.NewFileEntry("empty/", model.UnknownLength),
		model.NewFileEntry("seg/data", model.UnknownLength),
		model.NewFileEntry("seg/offsets", model.UnknownLength),
		model.NewFileEntry("seg/known", 9),
	}
	rules := loadconfig.MustCompile([]loadconfig.Rule{{FilePatterns: []string{".*"}, Remote: true, Deploy: true}})

	plan, err := New(StoreProber{Store: store}, func(o *Options) { o.ProbeConcurrency = 2 }).
		Plan(ctx, manifest, rules, nil)
	require.NoError(t, err)

	want := []model.FileEntry{
		model.NewFileEntry("empty/", 0),
		model.NewFileEntry("seg/data", 5),
		model.NewFileEntry("seg/known", 9),
		model.NewFileEntry("seg/offsets", 2),
	}
	assert.Equal(t, want, plan.Local)
	assert.Equal(t, want, plan.Remote)
	for _, f := range plan.Local {
		assert.True(t, f.IsValid())
	}
}

func TestPlan_ProbesEachPathOnce(t *testing.T) {
	var calls atomic.Int32
	prober := ProberFunc(func(context.Context, string) (int64, error) {
		calls.Add(1)
		return 3, nil
	})
	rules := loadconfig.MustCompile([]loadconfig.Rule{{FilePatterns: []string{".*"}, Remote: true, Deploy: true}})

	_, err := New(prober).Plan(context.Background(),
		[]model.FileEntry{model.NewFileEntry("x", model.UnknownLength)}, rules, nil)
	require.NoError(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestPlan_ProbeFailure(t *testing.T) {
	rules := loadconfig.MustCompile([]loadconfig.Rule{{FilePatterns: []string{".*"}, Deploy: true}})
	manifest := []model.FileEntry{model.NewFileEntry("missing", model.UnknownLength)}

	t.Run("missing file", func(t *testing.T) {
		_, err := New(StoreProber{Store: blobstore.NewMemoryStore()}).Plan(context.Background(), manifest, rules, nil)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrProbe)
		assert.ErrorIs(t, err, blobstore.ErrNotFound)

		var pe *ProbeError
		require.True(t, errors.As(err, &pe))
		assert.Equal(t, "missing", pe.Path)
	})

	t.Run("no prober", func(t *testing.T) {
		_, err := New(nil).Plan(context.Background(), manifest, rules, nil)
		assert.ErrorIs(t, err, ErrProbe)
	})

	t.Run("excluded files are not probed", func(t *testing.T) {
		none := loadconfig.MustCompile([]loadconfig.Rule{{FilePatterns: []string{"^other$"}, Deploy: true}})
		_, err := New(nil).Plan(context.Background(), manifest, none, nil)
		assert.NoError(t, err)
	})
}
