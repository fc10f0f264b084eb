package description

import (
	"testing"

	"github.com/hupe1980/idxdeploy/lifecycle"
	"github.com/hupe1980/idxdeploy/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sample() *Description {
	table := lifecycle.NewTable()
	table.AddDirectory("segment_0_level_0", "hot")

	d := New("hdfs://raw/p0", "dfs://remote/p0", "config/3")
	d.LocalManifests = []*model.FileManifest{{
		Files:      []model.FileEntry{model.NewFileEntry("segment_0_level_0/data", 10)},
		FinalFiles: []model.FileEntry{model.NewFileEntry("version.3", 2)},
	}}
	d.RemoteManifests = []*model.FileManifest{{
		Files: []model.FileEntry{model.NewFileEntry("segment_0_level_0/index", 5)},
	}}
	d.LifecycleTable = table
	return d
}

func TestIsLegacy(t *testing.T) {
	assert.True(t, IsLegacy([]byte("raw:remote")))
	assert.True(t, IsLegacy([]byte("")))
	assert.True(t, IsLegacy([]byte(" {")))
	assert.False(t, IsLegacy([]byte(`{"edition_id":1}`)))
}

func TestCheckDeployDoneLegacy(t *testing.T) {
	expected := New("raw", "remote", "config")

	for _, form := range []string{"remote", "raw:remote", "raw:remote:config"} {
		assert.True(t, CheckDeployDoneLegacy([]byte(form), expected), form)
		ok, err := expected.CheckDeployDone([]byte(form))
		require.NoError(t, err)
		assert.True(t, ok, form)
	}

	for _, other := range []*Description{
		New("raw2", "remote", "config"),
		New("raw", "remote2", "config"),
		New("raw", "remote", "config2"),
	} {
		assert.False(t, CheckDeployDoneLegacy([]byte("raw:remote:config"), other))
	}
	assert.False(t, CheckDeployDoneLegacy([]byte("garbage"), expected))
}

func TestDeserialize(t *testing.T) {
	t.Run("legacy", func(t *testing.T) {
		d, err := Deserialize([]byte("anything: at all"))
		require.NoError(t, err)
		assert.Equal(t, &Description{EditionID: EditionLegacy}, d)
	})

	t.Run("malformed json", func(t *testing.T) {
		d, err := Deserialize([]byte(`{"edition_id":1,"local_deploy_index_metas":[{`))
		assert.ErrorIs(t, err, ErrMalformed)
		assert.Nil(t, d)
	})

	t.Run("round trip", func(t *testing.T) {
		want := sample()
		want.DeployTime = 1700000000
		data, err := want.Marshal()
		require.NoError(t, err)

		got, err := Deserialize(data)
		require.NoError(t, err)
		assert.Equal(t, want.EditionID, got.EditionID)
		assert.Equal(t, want.DeployTime, got.DeployTime)
		assert.Equal(t, want.RawPath, got.RawPath)
		assert.True(t, EqualManifests(want.LocalManifests, got.LocalManifests))
		assert.True(t, EqualManifests(want.RemoteManifests, got.RemoteManifests))
		assert.True(t, want.LifecycleTable.Equal(got.LifecycleTable))
	})

	t.Run("field names", func(t *testing.T) {
		data, err := sample().Marshal()
		require.NoError(t, err)
		for _, key := range []string{"edition_id", "deploy_time", "raw_path", "remote_path", "config_path",
			"local_deploy_index_metas", "remote_deploy_index_metas", "lifecycle_table"} {
			assert.Contains(t, string(data), `"`+key+`"`)
		}
	})
}

func TestFeatureGating(t *testing.T) {
	d := sample()
	assert.True(t, d.SupportsFeature(FeatureManifestCheck))
	assert.True(t, d.SupportsFeature(FeatureDeployTime))
	assert.False(t, d.SupportsFeature(Feature(99)))

	d.DisableFeature(FeatureManifestCheck)
	assert.Equal(t, EditionLegacy, d.EditionID)
	assert.False(t, d.SupportsFeature(FeatureManifestCheck))
	assert.False(t, d.SupportsFeature(FeatureDeployTime))

	data, err := d.Marshal()
	require.NoError(t, err)
	assert.Equal(t, "hdfs://raw/p0:dfs://remote/p0:config/3", string(data))

	ok, err := sample().CheckDeployDone(data)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestCheckDeployDone(t *testing.T) {
	marker, err := sample().Marshal()
	require.NoError(t, err)

	t.Run("same plan", func(t *testing.T) {
		ok, err := sample().CheckDeployDone(marker)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("deploy time is ignored", func(t *testing.T) {
		d := sample()
		d.DeployTime = 42
		ok, err := d.CheckDeployDone(marker)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("changed local files", func(t *testing.T) {
		d := sample()
		d.LocalManifests[0].Files = append(d.LocalManifests[0].Files, model.NewFileEntry("extra", 1))
		ok, err := d.CheckDeployDone(marker)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("changed remote files", func(t *testing.T) {
		d := sample()
		d.RemoteManifests = nil
		ok, err := d.CheckDeployDone(marker)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("changed lifecycle", func(t *testing.T) {
		d := sample()
		d.LifecycleTable.AddDirectory("segment_0_level_0", "cold")
		ok, err := d.CheckDeployDone(marker)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("edition 0 json", func(t *testing.T) {
		ok, err := sample().CheckDeployDone([]byte(`{"edition_id":0,"raw_path":"hdfs://raw/p0"}`))
		assert.ErrorIs(t, err, ErrLegacyEdition)
		assert.False(t, ok)
	})

	t.Run("unknown edition", func(t *testing.T) {
		ok, err := sample().CheckDeployDone([]byte(`{"edition_id":7}`))
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("corrupt marker", func(t *testing.T) {
		ok, err := sample().CheckDeployDone([]byte(`{"edition_id":`))
		assert.ErrorIs(t, err, ErrMalformed)
		assert.False(t, ok)
	})
}

func TestEqualManifests(t *testing.T) {
	m := &model.FileManifest{Files: []model.FileEntry{model.NewFileEntry("a", 1)}}
	assert.True(t, EqualManifests(nil, nil))
	assert.True(t, EqualManifests([]*model.FileManifest{nil, m}, []*model.FileManifest{nil, m}))
	assert.False(t, EqualManifests([]*model.FileManifest{nil}, []*model.FileManifest{m}))
	assert.False(t, EqualManifests([]*model.FileManifest{m}, nil))
	assert.False(t, EqualManifests(
		[]*model.FileManifest{m},
		[]*model.FileManifest{{Files: []model.FileEntry{model.NewFileEntry("a", 2)}}},
	))
}

func TestDiffLocal(t *testing.T) {
	base := sample()
	target := sample()
	target.LocalManifests[0].Files = []model.FileEntry{
		model.NewFileEntry("segment_1_level_0/data", 3),
	}

	added, removed := target.DiffLocal(base)
	assert.Equal(t, 1, added)
	assert.Equal(t, 1, removed)

	added, removed = target.DiffLocal(&Description{})
	assert.Equal(t, 2, added)
	assert.Equal(t, 0, removed)
}
