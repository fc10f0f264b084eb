// Package model defines the core types shared by the deployment packages.
//
// # Identity Types
//
//   - VersionID: index version identifier (int32); InvalidVersion marks "no version"
//
// # File Types
//
//   - FileEntry: one file or directory marker of an index version
//   - FileManifest: the files of one deploy target root ("deploy index meta")
//
// Paths are partition-relative and use forward slashes. A path ending in "/"
// is a directory marker.
package model
