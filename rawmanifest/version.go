package rawmanifest

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/hupe1980/idxdeploy/lifecycle"
	"github.com/hupe1980/idxdeploy/model"
)

// EntryTablePrefix is the name prefix of entry tables.
const EntryTablePrefix = "entry_table."

// EntryTableName returns "entry_table.<N>".
func EntryTableName(v model.VersionID) string {
	return EntryTablePrefix + v.String()
}

// SegmentDir returns the directory marker of segment id, e.g. "segment_3_level_0/".
func SegmentDir(id int64) string {
	return fmt.Sprintf("segment_%d_level_0/", id)
}

// VersionFile is the decoded content of "version.<N>".
type VersionFile struct {
	VersionID  model.VersionID     `json:"versionid"`
	Segments   []int64             `json:"segments"`
	Statistics []SegmentStatistics `json:"segment_statistics,omitempty"`
}

// SegmentStatistics holds the per-segment attribute statistics used for
// lifecycle tagging.
type SegmentStatistics struct {
	SegmentID    int64                      `json:"segment_id"`
	IntegerStats map[string]lifecycle.Range `json:"integer_stats,omitempty"`
	StringStats  map[string]string          `json:"string_stats,omitempty"`
}

// LifecycleSegments converts the version's segments into classifier input.
// Segments without statistics are still returned so they get an explicit tag.
func (vf *VersionFile) LifecycleSegments() []lifecycle.Segment {
	stats := make(map[int64]SegmentStatistics, len(vf.Statistics))
	for _, s := range vf.Statistics {
		stats[s.SegmentID] = s
	}

	ids := append([]int64(nil), vf.Segments...)
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	out := make([]lifecycle.Segment, 0, len(ids))
	for _, id := range ids {
		s := stats[id]
		out = append(out, lifecycle.Segment{
			Directory:    SegmentDir(id),
			IntegerStats: s.IntegerStats,
			StringStats:  s.StringStats,
		})
	}
	return out
}

func parseVersionFile(data []byte) (*VersionFile, error) {
	vf := &VersionFile{}
	if err := json.Unmarshal(data, vf); err != nil {
		return nil, fmt.Errorf("%w: version file: %v", ErrCorrupt, err)
	}
	return vf, nil
}

type entryTable struct {
	Files []model.FileEntry `json:"files"`
}

func parseEntryTable(data []byte) ([]model.FileEntry, error) {
	raw, err := decode(data)
	if err != nil {
		return nil, err
	}
	var et entryTable
	if err := json.Unmarshal(raw, &et); err != nil {
		return nil, fmt.Errorf("%w: entry table: %v", ErrCorrupt, err)
	}
	for i, f := range et.Files {
		if f.Path == "" {
			return nil, fmt.Errorf("%w: entry table: empty path at %d", ErrCorrupt, i)
		}
	}
	return et.Files, nil
}
