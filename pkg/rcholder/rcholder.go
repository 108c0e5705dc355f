// Package rcholder shares one instance of an expensive resource between all of
// its users and closes it when the last user lets go.
package rcholder

import (
	"fmt"
	"sync"

	"github.com/pg-sharding/dataplane/pkg/dplog"
	"github.com/pg-sharding/dataplane/pkg/models/dperror"
	"go.uber.org/atomic"
)

// Handle identifies a resource descriptor inside a Holder.
type Handle uint64

var handleSeq atomic.Uint64

// Resource describes how to create and close one shared instance.
type Resource[T any] struct {
	handle Handle
	name   string
	create func() (T, error)
	close  func(T) error
}

func NewResource[T any](name string, create func() (T, error), close func(T) error) *Resource[T] {
	return &Resource[T]{
		handle: Handle(handleSeq.Inc()),
		name:   name,
		create: create,
		close:  close,
	}
}

func (r *Resource[T]) Handle() Handle {
	return r.handle
}

func (r *Resource[T]) String() string {
	return fmt.Sprintf("%s#%d", r.name, r.handle)
}

type instance[T any] struct {
	payload     T
	refCount    int
	maxRefCount int
}

func (i *instance[T]) inc() {
	i.refCount++
	i.maxRefCount = max(i.maxRefCount, i.refCount)
}

// Holder keeps at most one live instance per resource handle. Acquire, Release and
// the create/close side effects run under one lock, so an instance is never
// created twice nor closed while someone is acquiring it.
type Holder[T comparable] struct {
	mu        sync.Mutex
	instances map[Handle]*instance[T]
}

func NewHolder[T comparable]() *Holder[T] {
	return &Holder[T]{
		instances: map[Handle]*instance[T]{},
	}
}

// Acquire returns the shared instance for res, creating it on first use.
func (h *Holder[T]) Acquire(res *Resource[T]) (T, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	ins, ok := h.instances[res.handle]
	if !ok {
		payload, err := res.create()
		if err != nil {
			var zero T
			return zero, err
		}
		ins = &instance[T]{payload: payload}
		h.instances[res.handle] = ins

		dplog.Zero.Info().
			Str("resource", res.String()).
			Uint("instance", dplog.GetPointer(ins)).
			Msg("rcholder: create instance")
	}
	ins.inc()
	return ins.payload, nil
}

// Release gives back an instance obtained from Acquire. Releasing an instance
// that is not the cached one, or releasing more often than acquiring, is a bug in
// the caller and panics.
func (h *Holder[T]) Release(res *Resource[T], returned T) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	cached, ok := h.instances[res.handle]
	if !ok {
		panic(dperror.Newf(dperror.DP_RESOURCE_HOLDER_VIOLATION, "no cached instance found for %s", res))
	}
	if cached.payload != returned {
		panic(dperror.Newf(dperror.DP_RESOURCE_HOLDER_VIOLATION,
			"releasing the wrong instance of %s, expected=%v, actual=%v", res, cached.payload, returned))
	}
	if cached.refCount <= 0 {
		panic(dperror.Newf(dperror.DP_RESOURCE_HOLDER_VIOLATION, "refcount of %s has already reached zero", res))
	}

	cached.refCount--
	if cached.refCount > 0 {
		return nil
	}

	delete(h.instances, res.handle)
	dplog.Zero.Info().
		Str("resource", res.String()).
		Int("max-ref-count", cached.maxRefCount).
		Msg("rcholder: close instance")
	return res.close(cached.payload)
}

// RefCount reports the live references to res, 0 when no instance exists.
func (h *Holder[T]) RefCount(res *Resource[T]) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	if ins, ok := h.instances[res.handle]; ok {
		return ins.refCount
	}
	return 0
}

func (h *Holder[T]) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.instances)
}
