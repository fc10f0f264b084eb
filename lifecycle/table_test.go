package lifecycle

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTable_AddDirectory_Normalizes(t *testing.T) {
	table := NewTable()

	require.True(t, table.AddDirectory("segment_0_level_0", "hot"))
	require.True(t, table.AddDirectory("/segment_1_level_0/", "cold"))
	require.True(t, table.AddDirectory("./segment_2_level_0//sub/../", "warm"))

	assert.Equal(t, []Entry{
		{Path: "segment_0_level_0/", Lifecycle: "hot"},
		{Path: "segment_1_level_0/", Lifecycle: "cold"},
		{Path: "segment_2_level_0/", Lifecycle: "warm"},
	}, table.Entries())
}

func TestTable_AddDirectory_RootAndInvalid(t *testing.T) {
	table := NewTable()

	assert.True(t, table.AddDirectory("/", "hot"))
	assert.True(t, table.AddDirectory("", "hot"))
	assert.Equal(t, 0, table.Len())

	assert.False(t, table.AddDirectory("../escape", "hot"))
	assert.False(t, table.AddDirectory("a\x00b", "hot"))
	assert.Equal(t, 0, table.Len())
}

func TestTable_GetLifecycle_NestedPaths(t *testing.T) {
	table := NewTable()
	table.AddDirectory("segment_0_level_0", "hot")
	table.AddDirectory("segment_0_level_0/index/pk", "cold")
	table.AddDirectory("segment_1_level_0", "")

	cases := map[string]string{
		"segment_0_level_0/":                        "hot",
		"segment_0_level_0/data":                    "hot",
		"segment_0_level_0/attribute/price/data":    "hot",
		"segment_0_level_0/a/b/c/d/e/f":             "hot",
		"segment_0_level_0/index/pk/data":           "cold",
		"segment_0_level_0/index/pk/":               "cold",
		"segment_0_level_0/index/pk":                "hot",
		"segment_0_level_0/index/other/data":        "hot",
		"/segment_0_level_0/./attribute/../summary": "hot",
		"segment_1_level_0/data":                    "",
		"segment_10_level_0/data":                   "",
		"segment_0_level_00/data":                   "",
		"version.1":                                 "",
		"":                                          "",
	}
	for p, want := range cases {
		assert.Equal(t, want, table.GetLifecycle(p), p)
	}
}

func TestTable_Remove(t *testing.T) {
	table := NewTable()
	table.AddDirectory("segment_0_level_0", "hot")
	table.AddDirectory("segment_1_level_0", "cold")

	table.RemoveDirectory("/segment_0_level_0")
	assert.Equal(t, "", table.GetLifecycle("segment_0_level_0/data"))

	// File form does not match a directory key.
	table.RemoveFile("segment_1_level_0")
	assert.Equal(t, "cold", table.GetLifecycle("segment_1_level_0/data"))

	table.RemoveFile("segment_1_level_0/")
	assert.Equal(t, 0, table.Len())

	table.RemoveDirectory("missing")
	assert.Equal(t, 0, table.Len())
}

func TestTable_Equal(t *testing.T) {
	a := NewTable()
	a.AddDirectory("s0", "hot")
	a.AddDirectory("s1", "")

	b := NewTable()
	b.AddDirectory("s1/", "")
	b.AddDirectory("/s0", "hot")
	assert.True(t, a.Equal(b))

	b.AddDirectory("s1", "cold")
	assert.False(t, a.Equal(b))

	var nilTable *Table
	assert.True(t, nilTable.Equal(NewTable()))
	assert.False(t, nilTable.Equal(a))
}

func TestTable_JSON(t *testing.T) {
	table := NewTable()
	table.AddDirectory("segment_1_level_0", "cold")
	table.AddDirectory("segment_0_level_0", "hot")

	data, err := json.Marshal(table)
	require.NoError(t, err)
	assert.JSONEq(t, `[
		{"path":"segment_0_level_0/","lifecycle":"hot"},
		{"path":"segment_1_level_0/","lifecycle":"cold"}
	]`, string(data))

	var decoded Table
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.True(t, table.Equal(&decoded))

	again, err := json.Marshal(&decoded)
	require.NoError(t, err)
	assert.Equal(t, string(data), string(again))
}
