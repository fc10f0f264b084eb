// Package lifecycle assigns lifecycle tags (hot, warm, cold, ...) to segment
// directories and resolves the tag of any file path.
//
// # Table
//
// A Table maps normalized directory paths to tags. GetLifecycle returns the tag
// of the deepest tagged ancestor of a path, so a file several levels below a
// segment directory resolves to the segment's tag. Tables serialize to JSON as
// a path-ordered list of {path, lifecycle} pairs.
//
// # Strategies
//
//   - static: a segment's string statistic must be one of the pattern's values
//   - dynamic: a segment's [min, max] statistic must intersect the pattern's
//     range; with offset_base CURRENT_TIME and is_offset the range is taken
//     relative to now (Unix seconds)
//
// Patterns are evaluated in order and the first hit wins. Segments matching no
// pattern, or lacking the statistic, get the empty tag.
package lifecycle
