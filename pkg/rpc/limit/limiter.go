package limit

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/pg-sharding/dataplane/pkg/config"
	"github.com/pg-sharding/dataplane/pkg/dplog"
	"github.com/pg-sharding/dataplane/pkg/models/dperror"
	"github.com/pg-sharding/dataplane/router/statistics"
)

type partition struct {
	name     string
	percent  float64
	inflight int
}

func (p *partition) limit(total int) int {
	// the epsilon keeps 10*0.3 from rounding up to 4
	return max(1, int(math.Ceil(float64(total)*p.percent-1e-9)))
}

// Limiter admits calls while the inflight count stays under the estimate of its
// Limit. Methods with a budget share get their own partition which must also
// have room.
type Limiter struct {
	name        string
	limit       Limit
	block       bool
	logOnChange bool

	mu         sync.Mutex
	inflight   int
	current    int
	partitions map[string]*partition
	// closed and replaced on every release to wake blocked acquirers
	released chan struct{}
}

// New builds a limiter from the rpc options. It returns nil for LimitNone, and a
// nil *Limiter admits everything.
func New(name string, opts config.RpcOptions, percents map[string]float64) *Limiter {
	initial := config.ValueOrDefaultInt(opts.InitialLimit, config.DefaultInitialLimit)
	maxLimit := config.ValueOrDefaultInt(opts.MaxLimit, config.DefaultMaxLimit)
	smoothing := config.ValueOrDefaultFloat(opts.Smoothing, config.DefaultSmoothing)

	var algo Limit
	switch opts.LimitKind {
	case config.LimitNone:
		return nil
	case config.LimitVegas:
		algo = NewVegas(initial, maxLimit, smoothing)
	default:
		algo = NewGradient(initial, maxLimit, config.ValueOrDefaultInt(opts.LongRttWindow, config.DefaultLongRttWindow), smoothing)
	}
	return NewLimiter(name, algo, opts.BlockOnLimit, opts.LogOnLimitChange, percents)
}

func NewLimiter(name string, algo Limit, block, logOnChange bool, percents map[string]float64) *Limiter {
	l := &Limiter{
		name:        name,
		limit:       algo,
		block:       block,
		logOnChange: logOnChange,
		current:     algo.Limit(),
		partitions:  map[string]*partition{},
		released:    make(chan struct{}),
	}
	for method, percent := range percents {
		if percent > 0 {
			l.partitions[method] = &partition{name: method, percent: percent}
		}
	}
	statistics.SetLimiterLimit(name, l.current)
	return l
}

// Listener reports how an admitted call ended. Exactly one of its methods
// should be called; later calls are ignored.
type Listener struct {
	l        *Limiter
	p        *partition
	start    time.Time
	inflight int
	once     sync.Once
}

// OnSuccess feeds the call RTT to the limit algorithm.
func (ls *Listener) OnSuccess() {
	if ls == nil {
		return
	}
	ls.once.Do(func() { ls.l.release(ls, true, false) })
}

// OnDropped reports a call rejected or timed out by the server.
func (ls *Listener) OnDropped() {
	if ls == nil {
		return
	}
	ls.once.Do(func() { ls.l.release(ls, true, true) })
}

// OnIgnore releases the slot without a sample, for calls that failed for
// reasons unrelated to load.
func (ls *Listener) OnIgnore() {
	if ls == nil {
		return
	}
	ls.once.Do(func() { ls.l.release(ls, false, false) })
}

func (l *Limiter) tryAcquire(method string) (*Listener, chan struct{}) {
	l.mu.Lock()
	defer l.mu.Unlock()

	p := l.partitions[method]
	if l.inflight >= l.current || (p != nil && p.inflight >= p.limit(l.current)) {
		return nil, l.released
	}

	l.inflight++
	if p != nil {
		p.inflight++
	}
	statistics.SetLimiterInflight(l.name, l.inflight)
	return &Listener{l: l, p: p, start: time.Now(), inflight: l.inflight}, nil
}

// Acquire admits a call of the given method. Without BlockOnLimit a full limiter
// fails fast with DP_LIMIT_EXCEEDED; with it, Acquire waits for a release or
// for ctx to end.
func (l *Limiter) Acquire(ctx context.Context, method string) (*Listener, error) {
	if l == nil {
		return nil, nil
	}
	for {
		ls, wait := l.tryAcquire(method)
		if ls != nil {
			return ls, nil
		}
		if !l.block {
			statistics.LimiterRejected(l.name, method)
			return nil, dperror.Newf(dperror.DP_LIMIT_EXCEEDED, "%s: limit reached for %s", l.name, method)
		}
		select {
		case <-wait:
		case <-ctx.Done():
			statistics.LimiterRejected(l.name, method)
			return nil, dperror.Wrap(dperror.DP_LIMIT_EXCEEDED, ctx.Err())
		}
	}
}

func (l *Limiter) release(ls *Listener, sample, dropped bool) {
	var newLimit int
	if sample {
		newLimit = l.limit.Update(time.Since(ls.start), ls.inflight, dropped)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.inflight--
	if ls.p != nil {
		ls.p.inflight--
	}
	if sample && newLimit != l.current {
		if l.logOnChange {
			dplog.Zero.Info().
				Str("limiter", l.name).
				Int("old-limit", l.current).
				Int("limit", newLimit).
				Msg("limiter: limit changed")
		}
		l.current = newLimit
		statistics.SetLimiterLimit(l.name, newLimit)
	}
	statistics.SetLimiterInflight(l.name, l.inflight)

	close(l.released)
	l.released = make(chan struct{})
}

func (l *Limiter) Limit() int {
	if l == nil {
		return math.MaxInt
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.current
}

func (l *Limiter) Inflight() int {
	if l == nil {
		return 0
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.inflight
}
