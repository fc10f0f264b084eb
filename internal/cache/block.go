package cache

// BlockKey identifies one block of a partition file.
type BlockKey struct {
	File  string
	Block int64
}

// Stats is a snapshot of cache counters.
type Stats struct {
	Hits      int64
	Misses    int64
	Evictions int64
	Blocks    int
	Bytes     int64
}

func (s Stats) add(o Stats) Stats {
	return Stats{
		Hits:      s.Hits + o.Hits,
		Misses:    s.Misses + o.Misses,
		Evictions: s.Evictions + o.Evictions,
		Blocks:    s.Blocks + o.Blocks,
		Bytes:     s.Bytes + o.Bytes,
	}
}

// BlockCache caches immutable file blocks. Returned slices are read-only.
type BlockCache interface {
	// Get returns the cached block.
	Get(key BlockKey) ([]byte, bool)
	// Put caches a block and reports whether it was admitted.
	Put(key BlockKey, b []byte) bool
	// EvictFile drops every block of file and returns the number removed.
	EvictFile(file string) int
	// FileBytes returns the cached bytes of file.
	FileBytes(file string) int64
	// Stats returns the current counters.
	Stats() Stats
}
