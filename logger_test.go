package idxdeploy

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/hupe1980/idxdeploy/blobstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogger_DeployRecords(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))

	_, err := New(fixtureRaw(t), blobstore.NewMemoryStore(), WithLogger(logger)).
		Deploy(context.Background(), fixtureRequest())
	require.NoError(t, err)

	var records []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		var rec map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &rec))
		records = append(records, rec)
	}
	require.NotEmpty(t, records)

	last := records[len(records)-1]
	assert.Equal(t, "deploy finished", last["msg"])
	assert.Equal(t, "deployed", last["outcome"])
	assert.Equal(t, "raw/p0", last["raw_path"])
	assert.Equal(t, float64(1), last["target_version"])

	var plan map[string]any
	for _, rec := range records {
		if rec["msg"] == "plan built" {
			plan = rec
		}
	}
	require.NotNil(t, plan)
	assert.Equal(t, float64(6), plan["remote_files"])
	assert.Equal(t, float64(7), plan["local_files"])
}

func TestNoopLogger(t *testing.T) {
	l := NoopLogger()
	assert.False(t, l.Enabled(context.Background(), slog.LevelError))
	l.LogClean(context.Background(), nil, nil)
}
