package limit

import (
	"math"
	"sync"
	"time"
)

// Vegas follows TCP Vegas: the queue is estimated from how much the RTT exceeds
// the lowest RTT seen. A short queue grows the limit, a long one shrinks it.
type Vegas struct {
	mu sync.Mutex

	estimated float64
	maxLimit  int
	smoothing float64
	rttNoLoad time.Duration
}

var _ Limit = &Vegas{}

func NewVegas(initial, maxLimit int, smoothing float64) *Vegas {
	return &Vegas{
		estimated: float64(initial),
		maxLimit:  maxLimit,
		smoothing: smoothing,
	}
}

func (v *Vegas) Limit() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return int(v.estimated)
}

func log10Root(limit int) float64 {
	return math.Max(1, math.Floor(math.Log10(float64(limit))))
}

func (v *Vegas) Update(rtt time.Duration, inflight int, dropped bool) int {
	v.mu.Lock()
	defer v.mu.Unlock()

	if rtt <= 0 {
		return int(v.estimated)
	}
	if v.rttNoLoad == 0 || rtt < v.rttNoLoad {
		v.rttNoLoad = rtt
		return int(v.estimated)
	}

	current := int(v.estimated)
	queueSize := math.Ceil(v.estimated * (1 - float64(v.rttNoLoad)/float64(rtt)))

	step := log10Root(current)
	alpha := 3 * step
	beta := 6 * step
	threshold := step

	var newLimit float64
	switch {
	case dropped:
		newLimit = v.estimated - step
	case float64(inflight)*2 < v.estimated:
		return current
	case queueSize <= threshold:
		newLimit = v.estimated + beta
	case queueSize < alpha:
		newLimit = v.estimated + step
	case queueSize > beta:
		newLimit = v.estimated - step
	default:
		return current
	}

	newLimit = math.Max(1, math.Min(float64(v.maxLimit), newLimit))
	v.estimated = (1-v.smoothing)*v.estimated + v.smoothing*newLimit
	return int(v.estimated)
}
