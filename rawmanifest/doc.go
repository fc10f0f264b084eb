// Package rawmanifest reads the manifest of a built index version from the
// raw partition.
//
// A version is described by two files at the partition root:
//
//	version.<N>      JSON: version id, segment ids, per-segment statistics
//	entry_table.<N>  JSON file list, optionally zstd or lz4 (frame) compressed
//
// The entry table lists every file and directory marker of the version with
// its length. When it is missing, Reader lists the segment directories named
// by the version file instead and reports lengths as unknown, leaving them to
// the planner's size probes.
package rawmanifest
