// Package limit estimates how many calls a storage node can take at once and
// admits calls within that estimate.
package limit

import (
	"time"
)

// Limit is a concurrency limit algorithm. Update feeds one sample and returns the
// new estimate.
type Limit interface {
	Limit() int
	Update(rtt time.Duration, inflight int, dropped bool) int
}

// Fixed never changes its estimate.
type Fixed struct {
	limit int
}

var _ Limit = &Fixed{}

func NewFixed(limit int) *Fixed {
	return &Fixed{limit: max(1, limit)}
}

func (f *Fixed) Limit() int {
	return f.limit
}

func (f *Fixed) Update(time.Duration, int, bool) int {
	return f.limit
}

// expAvg is an exponential moving average that behaves as a plain mean for its
// first warmup samples.
type expAvg struct {
	window int
	warmup int
	count  int
	sum    float64
	value  float64
	factor float64
}

func newExpAvg(window, warmup int) *expAvg {
	return &expAvg{
		window: window,
		warmup: warmup,
		factor: 2.0 / float64(window+1),
	}
}

func (a *expAvg) add(sample float64) float64 {
	if a.count < a.warmup {
		a.count++
		a.sum += sample
		a.value = a.sum / float64(a.count)
		return a.value
	}
	a.value = a.value*(1-a.factor) + sample*a.factor
	return a.value
}

func (a *expAvg) update(f func(float64) float64) {
	a.value = f(a.value)
}
