package limit

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/pg-sharding/dataplane/pkg/config"
	"github.com/pg-sharding/dataplane/pkg/models/dperror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGradientShrinksOnLatencyGrowth(t *testing.T) {
	assert := assert.New(t)

	g := NewGradient(20, 100, 100, 0.2)
	for i := 0; i < 20; i++ {
		g.Update(10*time.Millisecond, g.Limit(), false)
	}
	grown := g.Limit()
	assert.Greater(grown, 20)
	assert.LessOrEqual(grown, 100)

	for i := 0; i < 20; i++ {
		g.Update(200*time.Millisecond, g.Limit(), false)
	}
	assert.Less(g.Limit(), grown)
	assert.GreaterOrEqual(g.Limit(), 1)
}

func TestGradientSmoothingDampsShrinkOnly(t *testing.T) {
	assert := assert.New(t)

	g := NewGradient(20, 100, 100, 0.01)
	// equal short and long RTT: the limit grows by the queue size undamped
	assert.Equal(24, g.Update(10*time.Millisecond, 20, false))

	// a drop halves the target, smoothing keeps most of the old limit
	assert.Equal(23, g.Update(10*time.Millisecond, 24, true))
}

func TestGradientRespectsBounds(t *testing.T) {
	assert := assert.New(t)

	g := NewGradient(8, 10, 100, 1.0)
	for i := 0; i < 100; i++ {
		g.Update(time.Millisecond, g.Limit(), false)
	}
	assert.Equal(10, g.Limit())

	for i := 0; i < 100; i++ {
		g.Update(time.Second, g.Limit(), true)
	}
	assert.GreaterOrEqual(g.Limit(), 1)
}

func TestGradientIgnoresAppLimitedSamples(t *testing.T) {
	g := NewGradient(50, 100, 100, 0.2)
	for i := 0; i < 30; i++ {
		g.Update(time.Second, 1, false)
	}
	assert.Equal(t, 50, g.Limit())
}

func TestVegas(t *testing.T) {
	assert := assert.New(t)

	v := NewVegas(10, 100, 1.0)
	v.Update(10*time.Millisecond, 10, false)
	assert.Equal(10, v.Limit())

	v.Update(10*time.Millisecond, 10, false)
	assert.Equal(16, v.Limit())

	v.Update(100*time.Millisecond, 16, false)
	assert.Equal(15, v.Limit())

	v.Update(10*time.Millisecond, 15, true)
	assert.Equal(14, v.Limit())

	/* app limited */
	v.Update(100*time.Millisecond, 1, false)
	assert.Equal(14, v.Limit())
}

func TestLimiterFailFast(t *testing.T) {
	assert := assert.New(t)

	l := NewLimiter("test", NewFixed(2), false, false, nil)
	ctx := context.Background()

	a, err := l.Acquire(ctx, "m")
	require.NoError(t, err)
	_, err = l.Acquire(ctx, "m")
	require.NoError(t, err)

	_, err = l.Acquire(ctx, "m")
	assert.Error(err)
	assert.True(dperror.IsCode(err, dperror.DP_LIMIT_EXCEEDED))

	a.OnSuccess()
	a.OnSuccess()
	assert.Equal(1, l.Inflight())

	_, err = l.Acquire(ctx, "m")
	assert.NoError(err)
}

func TestLimiterBlocks(t *testing.T) {
	assert := assert.New(t)

	l := NewLimiter("test", NewFixed(1), true, false, nil)
	first, err := l.Acquire(context.Background(), "m")
	require.NoError(t, err)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		ls, err := l.Acquire(context.Background(), "m")
		assert.NoError(err)
		ls.OnIgnore()
	}()

	time.Sleep(20 * time.Millisecond)
	first.OnSuccess()
	wg.Wait()
	assert.Equal(0, l.Inflight())

	blocker, err := l.Acquire(context.Background(), "m")
	require.NoError(t, err)
	defer blocker.OnIgnore()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = l.Acquire(ctx, "m")
	assert.True(dperror.IsCode(err, dperror.DP_LIMIT_EXCEEDED))
}

func TestLimiterPartitions(t *testing.T) {
	assert := assert.New(t)

	l := NewLimiter("test", NewFixed(10), false, false, map[string]float64{
		"write": 0.7,
		"query": 0.3,
	})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := l.Acquire(ctx, "query")
		require.NoError(t, err)
	}
	_, err := l.Acquire(ctx, "query")
	assert.Error(err)

	for i := 0; i < 7; i++ {
		_, err := l.Acquire(ctx, "write")
		require.NoError(t, err)
	}
	_, err = l.Acquire(ctx, "route")
	assert.Error(err)
}

func TestNewFromOptions(t *testing.T) {
	assert := assert.New(t)

	opts := config.NewDefaultRpcOptions()
	l := New("gradient", opts, nil)
	assert.Equal(config.DefaultInitialLimit, l.Limit())

	opts.LimitKind = config.LimitVegas
	assert.IsType(&Vegas{}, New("vegas", opts, nil).limit)

	opts.LimitKind = config.LimitNone
	none := New("none", opts, nil)
	assert.Nil(none)

	ls, err := none.Acquire(context.Background(), "m")
	assert.NoError(err)
	assert.NotPanics(ls.OnSuccess)
}
