package resource

import (
	"context"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// Config holds the process-wide deployment limits.
type Config struct {
	// MemoryLimitBytes caps the bytes held by block caches. Zero tracks usage
	// without a limit.
	MemoryLimitBytes int64

	// MaxConcurrentTransfers caps the file copies in flight across every
	// deployment sharing the controller. Zero means one.
	MaxConcurrentTransfers int64

	// IOLimitBytesPerSec caps copy and warm-up throughput. Zero is unlimited.
	IOLimitBytesPerSec int64
}

// Stats is a point-in-time view of a Controller.
type Stats struct {
	MemoryBytes       int64
	MemoryLimitBytes  int64
	TransfersInFlight int64
	ThrottledBytes    int64
}

// Controller arbitrates memory, transfer slots and IO bandwidth between
// concurrent deployments. A nil *Controller imposes no limits.
type Controller struct {
	cfg Config

	mem     *semaphore.Weighted // nil when unlimited
	memUsed atomic.Int64

	slots    *semaphore.Weighted
	inFlight atomic.Int64

	io        *rate.Limiter // nil when unlimited
	throttled atomic.Int64
}

// NewController creates a controller enforcing cfg.
func NewController(cfg Config) *Controller {
	if cfg.MaxConcurrentTransfers <= 0 {
		cfg.MaxConcurrentTransfers = 1
	}
	c := &Controller{cfg: cfg, slots: semaphore.NewWeighted(cfg.MaxConcurrentTransfers)}
	if cfg.MemoryLimitBytes > 0 {
		c.mem = semaphore.NewWeighted(cfg.MemoryLimitBytes)
	}
	if cfg.IOLimitBytesPerSec > 0 {
		// One second of bandwidth is the largest single wait.
		c.io = rate.NewLimiter(rate.Limit(cfg.IOLimitBytesPerSec), int(cfg.IOLimitBytesPerSec))
	}
	return c
}

// TryAcquireMemory reserves n bytes, reporting false when the limit would be
// exceeded. It never blocks.
func (c *Controller) TryAcquireMemory(n int64) bool {
	if c == nil || n <= 0 {
		return true
	}
	if c.mem != nil && !c.mem.TryAcquire(n) {
		return false
	}
	c.memUsed.Add(n)
	return true
}

// ReleaseMemory returns n bytes reserved by TryAcquireMemory.
func (c *Controller) ReleaseMemory(n int64) {
	if c == nil || n <= 0 {
		return
	}
	if c.mem != nil {
		c.mem.Release(n)
	}
	c.memUsed.Add(-n)
}

// MemoryUsage returns the reserved bytes.
func (c *Controller) MemoryUsage() int64 {
	if c == nil {
		return 0
	}
	return c.memUsed.Load()
}

// MaxConcurrentTransfers returns the number of transfer slots.
func (c *Controller) MaxConcurrentTransfers() int {
	if c == nil {
		return 1
	}
	return int(c.cfg.MaxConcurrentTransfers)
}

// AcquireTransfer blocks until a transfer slot is free or ctx is done.
func (c *Controller) AcquireTransfer(ctx context.Context) error {
	if c == nil {
		return nil
	}
	if err := c.slots.Acquire(ctx, 1); err != nil {
		return err
	}
	c.inFlight.Add(1)
	return nil
}

// TryAcquireTransfer takes a transfer slot if one is free.
func (c *Controller) TryAcquireTransfer() bool {
	if c == nil {
		return true
	}
	if !c.slots.TryAcquire(1) {
		return false
	}
	c.inFlight.Add(1)
	return true
}

// ReleaseTransfer frees a slot taken by AcquireTransfer or TryAcquireTransfer.
func (c *Controller) ReleaseTransfer() {
	if c == nil {
		return
	}
	c.inFlight.Add(-1)
	c.slots.Release(1)
}

// AcquireIO waits until n bytes may be moved. Large requests are charged in
// burst-sized steps so they cannot exceed the limiter's burst.
func (c *Controller) AcquireIO(ctx context.Context, n int) error {
	if c == nil || c.io == nil || n <= 0 {
		return nil
	}
	for rest := n; rest > 0; {
		step := min(rest, c.io.Burst())
		if err := c.io.WaitN(ctx, step); err != nil {
			return err
		}
		c.throttled.Add(int64(step))
		rest -= step
	}
	return nil
}

// Stats returns the current usage.
func (c *Controller) Stats() Stats {
	if c == nil {
		return Stats{}
	}
	return Stats{
		MemoryBytes:       c.memUsed.Load(),
		MemoryLimitBytes:  c.cfg.MemoryLimitBytes,
		TransfersInFlight: c.inFlight.Load(),
		ThrottledBytes:    c.throttled.Load(),
	}
}
