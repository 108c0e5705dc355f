package statistics

import (
	"sort"
	"sync"
	"time"

	"go.uber.org/atomic"
)

const (
	rateWindow  = time.Second
	rateBuckets = 10
)

// Clock is injected by tests.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// rateWindowCounter counts calls over a one second sliding window split into
// ten buckets.
type rateWindowCounter struct {
	mu         sync.Mutex
	buckets    [rateBuckets]int64
	bucketDur  time.Duration
	lastBucket int
	lastTime   time.Time
	inWindow   int64
	peak       float64

	total atomic.Int64
	start time.Time
}

func newRateWindowCounter(now time.Time) *rateWindowCounter {
	return &rateWindowCounter{
		bucketDur: rateWindow / rateBuckets,
		lastTime:  now,
		start:     now,
	}
}

// advance rotates out buckets older than the window. Callers hold mu.
func (c *rateWindowCounter) advance(now time.Time) {
	elapsed := now.Sub(c.lastTime)
	if elapsed < c.bucketDur {
		return
	}

	steps := int(elapsed / c.bucketDur)
	if steps >= rateBuckets {
		c.buckets = [rateBuckets]int64{}
		c.inWindow = 0
		c.lastBucket = 0
	} else {
		for range steps {
			next := (c.lastBucket + 1) % rateBuckets
			c.inWindow -= c.buckets[next]
			c.buckets[next] = 0
			c.lastBucket = next
		}
	}
	c.lastTime = c.lastTime.Add(time.Duration(steps) * c.bucketDur)
}

func (c *rateWindowCounter) inc(now time.Time) {
	c.total.Inc()

	c.mu.Lock()
	defer c.mu.Unlock()

	c.advance(now)
	c.buckets[c.lastBucket]++
	c.inWindow++
	if cur := float64(c.inWindow) / rateWindow.Seconds(); cur > c.peak {
		c.peak = cur
	}
}

// RateSnapshot describes the call rate of one method.
type RateSnapshot struct {
	Method  string
	Current float64
	Avg     float64
	Peak    float64
	Total   int64
}

func (c *rateWindowCounter) snapshot(method string, now time.Time) RateSnapshot {
	total := c.total.Load()

	c.mu.Lock()
	defer c.mu.Unlock()

	c.advance(now)
	s := RateSnapshot{
		Method:  method,
		Current: float64(c.inWindow) / rateWindow.Seconds(),
		Peak:    c.peak,
		Total:   total,
	}
	if elapsed := now.Sub(c.start).Seconds(); elapsed > 0 {
		s.Avg = float64(total) / elapsed
	}
	return s
}

// RateHolder tracks logical calls per second by method.
type RateHolder struct {
	clock Clock

	mu       sync.Mutex
	counters map[string]*rateWindowCounter
}

func NewRateHolder() *RateHolder {
	return NewRateHolderWithClock(realClock{})
}

func NewRateHolderWithClock(clock Clock) *RateHolder {
	return &RateHolder{
		clock:    clock,
		counters: map[string]*rateWindowCounter{},
	}
}

func (h *RateHolder) counter(method string, now time.Time) *rateWindowCounter {
	h.mu.Lock()
	defer h.mu.Unlock()

	c, ok := h.counters[method]
	if !ok {
		c = newRateWindowCounter(now)
		h.counters[method] = c
	}
	return c
}

// OnCall records one call of method.
func (h *RateHolder) OnCall(method string) {
	now := h.clock.Now()
	h.counter(method, now).inc(now)
}

// Snapshot returns the rates of every method seen so far, sorted by method.
func (h *RateHolder) Snapshot() []RateSnapshot {
	now := h.clock.Now()

	h.mu.Lock()
	methods := make([]string, 0, len(h.counters))
	for m := range h.counters {
		methods = append(methods, m)
	}
	h.mu.Unlock()
	sort.Strings(methods)

	res := make([]RateSnapshot, 0, len(methods))
	for _, m := range methods {
		res = append(res, h.counter(m, now).snapshot(m, now))
	}
	return res
}
