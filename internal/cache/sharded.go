package cache

import (
	"hash/maphash"

	"github.com/hupe1980/idxdeploy/internal/resource"
)

// DefaultShards is the shard count of NewSharded when shards <= 0.
const DefaultShards = 32

// Sharded spreads files over independent LRU shards so that parallel warm-up
// workers rarely share a lock. All blocks of a file map to one shard.
type Sharded struct {
	seed   maphash.Seed
	shards []*LRU
}

// NewSharded splits capacity evenly over shards LRU caches.
func NewSharded(capacity int64, shards int, rc *resource.Controller) *Sharded {
	if shards <= 0 {
		shards = DefaultShards
	}
	per := max(capacity/int64(shards), 1)

	s := &Sharded{seed: maphash.MakeSeed(), shards: make([]*LRU, shards)}
	for i := range s.shards {
		s.shards[i] = NewLRU(per, rc)
	}
	return s
}

func (s *Sharded) shard(file string) *LRU {
	return s.shards[maphash.String(s.seed, file)%uint64(len(s.shards))]
}

// Get implements BlockCache.
func (s *Sharded) Get(key BlockKey) ([]byte, bool) { return s.shard(key.File).Get(key) }

// Put implements BlockCache.
func (s *Sharded) Put(key BlockKey, b []byte) bool { return s.shard(key.File).Put(key, b) }

// EvictFile implements BlockCache.
func (s *Sharded) EvictFile(file string) int { return s.shard(file).EvictFile(file) }

// FileBytes implements BlockCache.
func (s *Sharded) FileBytes(file string) int64 { return s.shard(file).FileBytes(file) }

// Stats implements BlockCache by summing all shards.
func (s *Sharded) Stats() Stats {
	var total Stats
	for _, sh := range s.shards {
		total = total.add(sh.Stats())
	}
	return total
}

// ShardStats returns the counters of each shard.
func (s *Sharded) ShardStats() []Stats {
	out := make([]Stats, len(s.shards))
	for i, sh := range s.shards {
		out[i] = sh.Stats()
	}
	return out
}
