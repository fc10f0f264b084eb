package resource

import (
	"bytes"
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestController_MemoryBudget(t *testing.T) {
	c := NewController(Config{MemoryLimitBytes: 100})

	require.True(t, c.TryAcquireMemory(64))
	require.True(t, c.TryAcquireMemory(36))
	assert.False(t, c.TryAcquireMemory(1))
	assert.Equal(t, int64(100), c.MemoryUsage())

	c.ReleaseMemory(64)
	assert.True(t, c.TryAcquireMemory(10))

	st := c.Stats()
	assert.Equal(t, int64(46), st.MemoryBytes)
	assert.Equal(t, int64(100), st.MemoryLimitBytes)

	// Non-positive sizes are free.
	assert.True(t, c.TryAcquireMemory(0))
	c.ReleaseMemory(-5)
	assert.Equal(t, int64(46), c.MemoryUsage())
}

func TestController_MemoryTrackingOnly(t *testing.T) {
	c := NewController(Config{})
	require.True(t, c.TryAcquireMemory(1 << 40))
	c.ReleaseMemory(1 << 39)
	assert.Equal(t, int64(1<<39), c.MemoryUsage())
	assert.Zero(t, c.Stats().MemoryLimitBytes)
}

func TestController_TransferSlots(t *testing.T) {
	c := NewController(Config{MaxConcurrentTransfers: 2})
	assert.Equal(t, 2, c.MaxConcurrentTransfers())
	assert.Equal(t, 1, NewController(Config{}).MaxConcurrentTransfers())

	require.NoError(t, c.AcquireTransfer(t.Context()))
	require.True(t, c.TryAcquireTransfer())
	assert.False(t, c.TryAcquireTransfer())
	assert.Equal(t, int64(2), c.Stats().TransfersInFlight)

	ctx, cancel := context.WithTimeout(t.Context(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, c.AcquireTransfer(ctx), context.DeadlineExceeded)
	assert.Equal(t, int64(2), c.Stats().TransfersInFlight)

	c.ReleaseTransfer()
	c.ReleaseTransfer()
	assert.Zero(t, c.Stats().TransfersInFlight)
}

func TestController_TransferSlotsBoundConcurrency(t *testing.T) {
	c := NewController(Config{MaxConcurrentTransfers: 3})

	var (
		mu   sync.Mutex
		cur  int
		peak int
		wg   sync.WaitGroup
	)
	for range 12 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if !assert.NoError(t, c.AcquireTransfer(context.Background())) {
				return
			}
			defer c.ReleaseTransfer()

			mu.Lock()
			cur++
			peak = max(peak, cur)
			mu.Unlock()

			time.Sleep(2 * time.Millisecond)

			mu.Lock()
			cur--
			mu.Unlock()
		}()
	}
	wg.Wait()
	assert.LessOrEqual(t, peak, 3)
}

func TestController_IO(t *testing.T) {
	c := NewController(Config{IOLimitBytesPerSec: 1000})
	ctx := context.Background()

	require.NoError(t, c.AcquireIO(ctx, 100))
	assert.Equal(t, int64(100), c.Stats().ThrottledBytes)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	assert.Error(t, c.AcquireIO(cancelled, 5000))

	unlimited := NewController(Config{})
	assert.NoError(t, unlimited.AcquireIO(ctx, 1<<30))
	assert.Zero(t, unlimited.Stats().ThrottledBytes)
}

func TestController_Nil(t *testing.T) {
	var c *Controller

	assert.True(t, c.TryAcquireMemory(100))
	c.ReleaseMemory(100)
	assert.Zero(t, c.MemoryUsage())

	assert.NoError(t, c.AcquireTransfer(context.Background()))
	assert.True(t, c.TryAcquireTransfer())
	c.ReleaseTransfer()
	assert.Equal(t, 1, c.MaxConcurrentTransfers())

	assert.NoError(t, c.AcquireIO(context.Background(), 100))
	assert.Equal(t, Stats{}, c.Stats())
}

func TestRateLimitedReader(t *testing.T) {
	c := NewController(Config{IOLimitBytesPerSec: 1 << 20})
	r := NewRateLimitedReader(context.Background(), bytes.NewReader([]byte("segment data")), c)

	data, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "segment data", string(data))
	assert.Equal(t, int64(len(data)), c.Stats().ThrottledBytes)

	// A nil controller still honours cancellation.
	ctx, cancel := context.WithCancel(context.Background())
	plain := NewRateLimitedReader(ctx, bytes.NewReader([]byte("x")), nil)
	cancel()
	_, err = plain.Read(make([]byte, 1))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRateLimitedReader_ContextCanceled(t *testing.T) {
	c := NewController(Config{IOLimitBytesPerSec: 1})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := NewRateLimitedReader(ctx, bytes.NewReader([]byte("hello world")), c)
	_, err := r.Read(make([]byte, 1000))
	assert.ErrorIs(t, err, context.Canceled)
}
