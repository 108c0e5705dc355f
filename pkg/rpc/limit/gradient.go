package limit

import (
	"math"
	"sync"
	"time"
)

const (
	gradientTolerance   = 1.5
	gradientMinLimit    = 1
	gradientWarmup      = 10
	gradientDriftFactor = 0.95
)

// Gradient adjusts the limit by the ratio of a long term RTT average to the
// latest RTT. When the latest RTT grows above the long term baseline the ratio
// drops below one and the limit shrinks.
type Gradient struct {
	mu sync.Mutex

	estimated float64
	maxLimit  int
	smoothing float64
	queueSize func(limit int) int
	longRtt   *expAvg
	lastRtt   float64
}

var _ Limit = &Gradient{}

func NewGradient(initial, maxLimit, longRttWindow int, smoothing float64) *Gradient {
	return &Gradient{
		estimated: float64(initial),
		maxLimit:  maxLimit,
		smoothing: smoothing,
		queueSize: func(limit int) int {
			return max(4, int(math.Sqrt(float64(limit))))
		},
		longRtt: newExpAvg(longRttWindow, gradientWarmup),
	}
}

func (g *Gradient) Limit() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return int(g.estimated)
}

func (g *Gradient) Update(rtt time.Duration, inflight int, dropped bool) int {
	g.mu.Lock()
	defer g.mu.Unlock()

	queueSize := float64(g.queueSize(int(g.estimated)))

	shortRtt := float64(rtt.Nanoseconds())
	if shortRtt <= 0 {
		shortRtt = 1
	}
	g.lastRtt = shortRtt
	longRtt := g.longRtt.add(shortRtt)

	// recover faster after a sustained RTT drop
	if longRtt/shortRtt > 2 {
		g.longRtt.update(func(v float64) float64 { return v * gradientDriftFactor })
	}

	// the limit cannot be judged while most of it is unused
	if float64(inflight) < g.estimated/2 && !dropped {
		return int(g.estimated)
	}

	gradient := math.Max(0.5, math.Min(1.0, gradientTolerance*longRtt/shortRtt))
	if dropped {
		gradient = 0.5
	}
	newLimit := g.estimated*gradient + queueSize
	// smoothing damps shrinkage only, growth is taken as is
	if newLimit < g.estimated {
		newLimit = g.estimated*(1-g.smoothing) + newLimit*g.smoothing
	}
	newLimit = math.Max(gradientMinLimit, math.Min(float64(g.maxLimit), newLimit))

	g.estimated = newLimit
	return int(g.estimated)
}
