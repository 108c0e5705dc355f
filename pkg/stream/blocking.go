// Package stream bridges push-style streaming responses into pull-style
// iterators with a deadline.
package stream

import (
	"iter"
	"sync"
	"time"

	"github.com/pg-sharding/dataplane/pkg/models/dperror"
	"go.uber.org/atomic"
)

const DefaultCapacity = 64

// BlockingIterator is fed through its Observer by a producer goroutine and read
// by one consumer through HasNext/Next. HasNext waits at most timeout for the
// next item. Once the consumer gives up (timeout or Close) the producer is never
// blocked again and its remaining items are dropped.
type BlockingIterator[T any] struct {
	timeout time.Duration

	items  chan T
	done   chan struct{}
	closed chan struct{}

	terminated atomic.Bool
	termErr    error

	closeOnce sync.Once
	timedOut  bool
	discarded atomic.Int64

	peeked    T
	hasPeeked bool
}

func NewBlockingIterator[T any](timeout time.Duration, capacity int) *BlockingIterator[T] {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &BlockingIterator[T]{
		timeout: timeout,
		items:   make(chan T, capacity),
		done:    make(chan struct{}),
		closed:  make(chan struct{}),
	}
}

// Observer returns the push side of the bridge.
func (it *BlockingIterator[T]) Observer() Observer[T] {
	return (*bridgeObserver[T])(it)
}

// HasNext blocks until an item is available, the stream ends, or the timeout
// elapses. It returns (false, nil) on normal completion, the producer's error on
// failure and a DP_TIMEOUT error when the deadline passes first.
func (it *BlockingIterator[T]) HasNext() (bool, error) {
	if it.hasPeeked {
		return true, nil
	}
	if it.timedOut {
		return false, dperror.New(dperror.DP_TIMEOUT, "blocking stream timed out")
	}
	select {
	case <-it.closed:
		return false, dperror.New(dperror.DP_STREAM_CLOSED, "blocking stream is closed")
	default:
	}

	select {
	case v := <-it.items:
		return it.peek(v)
	default:
	}

	timer := time.NewTimer(it.timeout)
	defer timer.Stop()

	select {
	case v := <-it.items:
		return it.peek(v)
	case <-it.done:
		select {
		case v := <-it.items:
			return it.peek(v)
		default:
		}
		if it.termErr != nil {
			return false, it.termErr
		}
		return false, nil
	case <-timer.C:
		it.timedOut = true
		it.Close()
		return false, dperror.Newf(dperror.DP_TIMEOUT, "no stream item within %s", it.timeout)
	}
}

func (it *BlockingIterator[T]) peek(v T) (bool, error) {
	it.peeked = v
	it.hasPeeked = true
	return true, nil
}

// Next returns the item found by the preceding successful HasNext.
func (it *BlockingIterator[T]) Next() (T, error) {
	if !it.hasPeeked {
		var zero T
		return zero, dperror.New(dperror.DP_NO_SUCH_ELEMENT, "Next called without a successful HasNext")
	}
	v := it.peeked
	var zero T
	it.peeked = zero
	it.hasPeeked = false
	return v, nil
}

// All ranges over the remaining items. A non-nil error is yielded once, last.
func (it *BlockingIterator[T]) All() iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		for {
			ok, err := it.HasNext()
			if err != nil {
				var zero T
				yield(zero, err)
				return
			}
			if !ok {
				return
			}
			v, _ := it.Next()
			if !yield(v, nil) {
				return
			}
		}
	}
}

// Close stops the consumer side; pending and future items are discarded.
func (it *BlockingIterator[T]) Close() {
	it.closeOnce.Do(func() {
		close(it.closed)
	})
}

// Discarded reports how many items arrived after the consumer gave up.
func (it *BlockingIterator[T]) Discarded() int64 {
	return it.discarded.Load()
}

type bridgeObserver[T any] BlockingIterator[T]

func (o *bridgeObserver[T]) OnNext(value T) {
	if o.terminated.Load() {
		return
	}
	// a free buffer slot must not win over a closed consumer
	select {
	case <-o.closed:
		o.discarded.Inc()
		return
	default:
	}
	select {
	case <-o.closed:
		o.discarded.Inc()
	case o.items <- value:
	}
}

func (o *bridgeObserver[T]) OnError(err error) {
	if !o.terminated.CompareAndSwap(false, true) {
		return
	}
	o.termErr = err
	close(o.done)
}

func (o *bridgeObserver[T]) OnCompleted() {
	if !o.terminated.CompareAndSwap(false, true) {
		return
	}
	close(o.done)
}
