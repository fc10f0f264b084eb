// Package planner turns a version manifest into the remote and local file
// sets of a deployment.
//
// Every call recomputes the full file sets of the target version under the
// target rules; there is no delta against a previous plan. Segment file sets
// are cumulative across versions and rules may change between versions, so a
// delta could keep stale classifications alive.
package planner
