package rpc_test

import (
	"errors"
	"sync"
	"testing"

	"github.com/pg-sharding/dataplane/pkg/endpoint"
	mock "github.com/pg-sharding/dataplane/pkg/mock/rpc"
	"github.com/pg-sharding/dataplane/pkg/rpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/atomic"
	"go.uber.org/mock/gomock"
)

func TestChannelPoolSharesChannels(t *testing.T) {
	assert := assert.New(t)
	ctrl := gomock.NewController(t)
	t.Cleanup(ctrl.Finish)

	ep := endpoint.New("node-1", 8831)
	ch := mock.NewMockChannel(ctrl)
	ch.EXPECT().Close().Return(nil).Times(1)

	var created atomic.Int32
	pool := rpc.NewChannelPool(func(e endpoint.Endpoint) (rpc.Channel, error) {
		assert.Equal(ep, e)
		created.Inc()
		return ch, nil
	})

	leases := make([]*rpc.Lease, 8)
	var wg sync.WaitGroup
	for i := range leases {
		leases[i] = pool.Lease()
		wg.Add(1)
		go func(l *rpc.Lease) {
			defer wg.Done()
			got, err := l.Channel(ep)
			assert.NoError(err)
			assert.Equal(ch, got)

			/* repeated lookups do not take more references */
			_, err = l.Channel(ep)
			assert.NoError(err)
		}(leases[i])
	}
	wg.Wait()

	assert.Equal(int32(1), created.Load())
	assert.Equal(8, pool.RefCount(ep))

	for _, l := range leases {
		require.NoError(t, l.Close())
		require.NoError(t, l.Close())
	}
	assert.Equal(0, pool.RefCount(ep))

	_, err := leases[0].Channel(ep)
	assert.Error(err)
}

func TestChannelPoolFactoryError(t *testing.T) {
	assert := assert.New(t)

	ep := endpoint.New("node-1", 8831)
	pool := rpc.NewChannelPool(func(endpoint.Endpoint) (rpc.Channel, error) {
		return nil, errors.New("dial failed")
	})

	_, err := pool.Acquire(ep)
	assert.Error(err)
	assert.Equal(0, pool.RefCount(ep))
}

func TestChannelPoolWrongRelease(t *testing.T) {
	ctrl := gomock.NewController(t)
	t.Cleanup(ctrl.Finish)

	ep := endpoint.New("node-1", 8831)
	pool := rpc.NewChannelPool(func(endpoint.Endpoint) (rpc.Channel, error) {
		return mock.NewMockChannel(ctrl), nil
	})

	_, err := pool.Acquire(ep)
	require.NoError(t, err)

	assert.Panics(t, func() {
		_ = pool.Release(ep, mock.NewMockChannel(ctrl))
	})
}
