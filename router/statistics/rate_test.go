package statistics_test

import (
	"sync"
	"testing"
	"time"

	"github.com/pg-sharding/dataplane/router/statistics"
	"github.com/stretchr/testify/assert"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestRateHolderSlidingWindow(t *testing.T) {
	assert := assert.New(t)

	clock := &fakeClock{now: time.Unix(1700000000, 0)}
	h := statistics.NewRateHolderWithClock(clock)

	for range 5 {
		h.OnCall("Write")
	}
	clock.Advance(500 * time.Millisecond)
	for range 3 {
		h.OnCall("Write")
	}
	h.OnCall("SqlQuery")

	snap := h.Snapshot()
	assert.Len(snap, 2)
	assert.Equal("SqlQuery", snap[0].Method)
	assert.Equal("Write", snap[1].Method)
	assert.Equal(8.0, snap[1].Current)
	assert.Equal(8.0, snap[1].Peak)
	assert.Equal(int64(8), snap[1].Total)
	assert.InDelta(16.0, snap[1].Avg, 0.001)

	// the first five calls leave the window
	clock.Advance(600 * time.Millisecond)
	snap = h.Snapshot()
	assert.Equal(3.0, snap[1].Current)
	assert.Equal(8.0, snap[1].Peak)
	assert.Equal(int64(8), snap[1].Total)

	clock.Advance(2 * time.Second)
	snap = h.Snapshot()
	assert.Equal(0.0, snap[1].Current)
	assert.Equal(int64(8), snap[1].Total)
}

func TestRateHolderEmpty(t *testing.T) {
	h := statistics.NewRateHolder()
	assert.Empty(t, h.Snapshot())
}

func TestRateHolderConcurrent(t *testing.T) {
	h := statistics.NewRateHolder()

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 100 {
				h.OnCall("Write")
			}
		}()
	}
	wg.Wait()

	snap := h.Snapshot()
	assert.Len(t, snap, 1)
	assert.Equal(t, int64(800), snap[0].Total)
}
