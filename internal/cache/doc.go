// Package cache holds the block cache filled by cache warm-up.
//
// Files of the remote tier are split into fixed-size blocks keyed by
// partition-relative path and block index. Blocks of one file always live in
// the same shard, so evicting a superseded file touches a single lock.
package cache
