package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFileEntry_Validity(t *testing.T) {
	assert.True(t, NewFileEntry("segment_0_level_0/", UnknownLength).IsValid())
	assert.True(t, NewFileEntry("segment_0_level_0/", UnknownLength).IsDir())
	assert.False(t, NewFileEntry("segment_0_level_0/data", UnknownLength).IsValid())
	assert.True(t, NewFileEntry("segment_0_level_0/data", 0).IsValid())
}

func TestDoneFileName_RoundTrip(t *testing.T) {
	assert.Equal(t, "version.7", VersionFileName(7))
	assert.Equal(t, "version.7.done", DoneFileName(7))

	v, ok := ParseDoneFileName("version.42.done")
	assert.True(t, ok)
	assert.Equal(t, VersionID(42), v)

	for _, name := range []string{"version.42", "version..done", "version.-1.done", "version.x.done", "foo.1.done"} {
		_, ok := ParseDoneFileName(name)
		assert.False(t, ok, name)
	}
}

func TestFileManifest_Equal(t *testing.T) {
	a := &FileManifest{Files: []FileEntry{NewFileEntry("a", 1)}}
	b := &FileManifest{Files: []FileEntry{NewFileEntry("a", 1)}}
	assert.True(t, a.Equal(b))

	b.FinalFiles = []FileEntry{NewFileEntry("version.1", 10)}
	assert.False(t, a.Equal(b))

	var nilManifest *FileManifest
	assert.True(t, nilManifest.Equal(nil))
	assert.False(t, nilManifest.Equal(a))
	assert.Equal(t, []string{"a", "version.1"}, b.Paths())
	assert.Equal(t, int64(11), b.TotalLength())
}
