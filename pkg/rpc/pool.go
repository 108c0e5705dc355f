package rpc

import (
	"sync"

	"github.com/pg-sharding/dataplane/pkg/endpoint"
	"github.com/pg-sharding/dataplane/pkg/models/dperror"
	"github.com/pg-sharding/dataplane/pkg/rcholder"
)

//go:generate mockgen -source=pool.go -destination=../mock/rpc/pool_mock.go -package=mock_rpc

type ChannelFactory func(ep endpoint.Endpoint) (Channel, error)

// ChannelPool shares one Channel per endpoint between all its users. The
// channel is closed when the last user releases it.
type ChannelPool struct {
	factory ChannelFactory
	holder  *rcholder.Holder[Channel]

	mu        sync.Mutex
	resources map[endpoint.Endpoint]*rcholder.Resource[Channel]
}

func NewChannelPool(factory ChannelFactory) *ChannelPool {
	return &ChannelPool{
		factory:   factory,
		holder:    rcholder.NewHolder[Channel](),
		resources: map[endpoint.Endpoint]*rcholder.Resource[Channel]{},
	}
}

// NewGrpcChannelPool dials GrpcChannels with the given options.
func NewGrpcChannelPool(opts ChannelOptions) *ChannelPool {
	return NewChannelPool(func(ep endpoint.Endpoint) (Channel, error) {
		return NewGrpcChannel(ep, opts)
	})
}

func (p *ChannelPool) resource(ep endpoint.Endpoint) *rcholder.Resource[Channel] {
	p.mu.Lock()
	defer p.mu.Unlock()

	res, ok := p.resources[ep]
	if !ok {
		res = rcholder.NewResource(
			"channel-"+ep.String(),
			func() (Channel, error) { return p.factory(ep) },
			func(ch Channel) error { return ch.Close() },
		)
		p.resources[ep] = res
	}
	return res
}

func (p *ChannelPool) Acquire(ep endpoint.Endpoint) (Channel, error) {
	return p.holder.Acquire(p.resource(ep))
}

func (p *ChannelPool) Release(ep endpoint.Endpoint, ch Channel) error {
	return p.holder.Release(p.resource(ep), ch)
}

func (p *ChannelPool) RefCount(ep endpoint.Endpoint) int {
	return p.holder.RefCount(p.resource(ep))
}

// Lease returns a ChannelProvider holding at most one reference per endpoint.
func (p *ChannelPool) Lease() *Lease {
	return &Lease{
		pool:     p,
		channels: map[endpoint.Endpoint]Channel{},
	}
}

// ChannelProvider hands out channels by endpoint.
type ChannelProvider interface {
	Channel(ep endpoint.Endpoint) (Channel, error)
	Close() error
}

// Lease is one user's view of a ChannelPool.
type Lease struct {
	pool *ChannelPool

	mu       sync.Mutex
	channels map[endpoint.Endpoint]Channel
	closed   bool
}

var _ ChannelProvider = &Lease{}

func (l *Lease) Channel(ep endpoint.Endpoint) (Channel, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil, errLeaseClosed
	}
	if ch, ok := l.channels[ep]; ok {
		return ch, nil
	}
	ch, err := l.pool.Acquire(ep)
	if err != nil {
		return nil, err
	}
	l.channels[ep] = ch
	return ch, nil
}

func (l *Lease) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil
	}
	l.closed = true

	var firstErr error
	for ep, ch := range l.channels {
		if err := l.pool.Release(ep, ch); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	clear(l.channels)
	return firstErr
}

var errLeaseClosed = dperror.New(dperror.DP_RPC_ERROR, "channel lease is closed")
