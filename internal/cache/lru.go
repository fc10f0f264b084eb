package cache

import (
	"container/list"
	"sync"

	"github.com/hupe1980/idxdeploy/internal/resource"
)

type block struct {
	key  BlockKey
	data []byte
}

// LRU is a byte-bounded least-recently-used BlockCache.
//
// Cached bytes are reserved against the memory budget of rc when rc is
// non-nil; a denied reservation rejects the block instead of blocking.
type LRU struct {
	mu       sync.Mutex
	capacity int64
	rc       *resource.Controller

	order  *list.List
	blocks map[BlockKey]*list.Element
	files  map[string]map[int64]*list.Element
	bytes  int64
	stats  Stats
}

// NewLRU creates a cache holding at most capacity bytes.
func NewLRU(capacity int64, rc *resource.Controller) *LRU {
	return &LRU{
		capacity: capacity,
		rc:       rc,
		order:    list.New(),
		blocks:   make(map[BlockKey]*list.Element),
		files:    make(map[string]map[int64]*list.Element),
	}
}

// Get implements BlockCache.
func (c *LRU) Get(key BlockKey) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.blocks[key]
	if !ok {
		c.stats.Misses++
		return nil, false
	}
	c.stats.Hits++
	c.order.MoveToFront(el)
	return el.Value.(*block).data, true
}

// Put implements BlockCache. Blocks larger than the whole cache are never
// admitted; replacing a block with a larger one may be refused by rc, in
// which case the old block stays.
func (c *LRU) Put(key BlockKey, b []byte) bool {
	size := int64(len(b))
	if size > c.capacity {
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.blocks[key]; ok {
		blk := el.Value.(*block)
		old := int64(len(blk.data))
		if size > old && !c.rc.TryAcquireMemory(size-old) {
			return false
		}
		if size < old {
			c.rc.ReleaseMemory(old - size)
		}
		blk.data = b
		c.bytes += size - old
		c.order.MoveToFront(el)
		c.shrink(el)
		return true
	}

	c.shrinkTo(c.capacity - size)
	if !c.rc.TryAcquireMemory(size) {
		return false
	}

	el := c.order.PushFront(&block{key: key, data: b})
	c.blocks[key] = el
	byBlock := c.files[key.File]
	if byBlock == nil {
		byBlock = make(map[int64]*list.Element)
		c.files[key.File] = byBlock
	}
	byBlock[key.Block] = el
	c.bytes += size
	return true
}

// EvictFile implements BlockCache.
func (c *LRU) EvictFile(file string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	byBlock := c.files[file]
	n := len(byBlock)
	for _, el := range byBlock {
		c.remove(el)
	}
	return n
}

// FileBytes implements BlockCache.
func (c *LRU) FileBytes(file string) int64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	var total int64
	for _, el := range c.files[file] {
		total += int64(len(el.Value.(*block).data))
	}
	return total
}

// Stats implements BlockCache.
func (c *LRU) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.stats
	s.Blocks = len(c.blocks)
	s.Bytes = c.bytes
	return s
}

// shrink evicts from the tail, never evicting keep, until the cache fits.
func (c *LRU) shrink(keep *list.Element) {
	for c.bytes > c.capacity {
		el := c.order.Back()
		if el == nil || el == keep {
			return
		}
		c.remove(el)
		c.stats.Evictions++
	}
}

func (c *LRU) shrinkTo(limit int64) {
	for c.bytes > limit {
		el := c.order.Back()
		if el == nil {
			return
		}
		c.remove(el)
		c.stats.Evictions++
	}
}

func (c *LRU) remove(el *list.Element) {
	blk := c.order.Remove(el).(*block)
	delete(c.blocks, blk.key)
	if byBlock := c.files[blk.key.File]; byBlock != nil {
		delete(byBlock, blk.key.Block)
		if len(byBlock) == 0 {
			delete(c.files, blk.key.File)
		}
	}
	size := int64(len(blk.data))
	c.bytes -= size
	c.rc.ReleaseMemory(size)
}
