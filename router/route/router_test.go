package route_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/pg-sharding/dataplane/pkg/config"
	"github.com/pg-sharding/dataplane/pkg/endpoint"
	mock "github.com/pg-sharding/dataplane/pkg/mock/route"
	"github.com/pg-sharding/dataplane/router/route"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func routerOptions() config.RouterOptions {
	opts := config.NewDefaultRouterOptions()
	opts.ClusterAddress = "127.0.0.9:8831"
	opts.GcPeriod = 0
	opts.RefreshPeriod = 0
	return opts
}

func TestRouterCachesAuthorityAnswers(t *testing.T) {
	assert := assert.New(t)
	ctrl := gomock.NewController(t)
	t.Cleanup(ctrl.Finish)

	authority := mock.NewMockAuthority(ctrl)
	authority.EXPECT().Resolve(gomock.Any(), []string{"cpu", "mem"}).Return(map[string]route.Route{
		"cpu": route.NewRoute("cpu", epA),
		"mem": route.NewRoute("mem", epB),
	}, nil).Times(1)
	authority.EXPECT().Resolve(gomock.Any(), []string{"disk"}).Return(map[string]route.Route{}, nil).Times(1)

	r, err := route.NewClusterRouter(routerOptions(), authority)
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })

	routes, err := r.RouteFor(context.Background(), []string{"cpu", "mem"})
	assert.NoError(err)
	assert.Len(routes, 2)

	/* second lookup is served from the cache, unknown table is left out */
	routes, err = r.RouteFor(context.Background(), []string{"mem", "cpu", "disk"})
	assert.NoError(err)
	assert.Equal(map[string]route.Route{
		"cpu": route.NewRoute("cpu", epA),
		"mem": route.NewRoute("mem", epB),
	}, routes)
}

func TestRouterResolvesRepeatedTableOnce(t *testing.T) {
	ctrl := gomock.NewController(t)
	t.Cleanup(ctrl.Finish)

	authority := mock.NewMockAuthority(ctrl)
	authority.EXPECT().Resolve(gomock.Any(), []string{"cpu", "mem"}).Return(map[string]route.Route{
		"cpu": route.NewRoute("cpu", epA),
		"mem": route.NewRoute("mem", epB),
	}, nil).Times(1)

	r, err := route.NewClusterRouter(routerOptions(), authority)
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })

	routes, err := r.RouteFor(context.Background(), []string{"cpu", "mem", "cpu", "mem"})
	assert.NoError(t, err)
	assert.Len(t, routes, 2)
}

func TestRouterClearRoutes(t *testing.T) {
	assert := assert.New(t)
	ctrl := gomock.NewController(t)
	t.Cleanup(ctrl.Finish)

	authority := mock.NewMockAuthority(ctrl)
	authority.EXPECT().Resolve(gomock.Any(), []string{"cpu"}).Return(map[string]route.Route{
		"cpu": route.NewRoute("cpu", epA),
	}, nil).Times(2)

	r, err := route.NewClusterRouter(routerOptions(), authority)
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })

	_, err = r.RouteFor(context.Background(), []string{"cpu"})
	assert.NoError(err)
	r.ClearRoutes("cpu")
	_, err = r.RouteFor(context.Background(), []string{"cpu"})
	assert.NoError(err)
}

func TestRouterAuthorityError(t *testing.T) {
	ctrl := gomock.NewController(t)
	t.Cleanup(ctrl.Finish)

	authority := mock.NewMockAuthority(ctrl)
	authority.EXPECT().Resolve(gomock.Any(), gomock.Any()).Return(nil, errors.New("unreachable"))

	r, err := route.NewClusterRouter(routerOptions(), authority)
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })

	_, err = r.RouteFor(context.Background(), []string{"cpu"})
	assert.Error(t, err)
}

func TestRouterProxyMode(t *testing.T) {
	assert := assert.New(t)
	ctrl := gomock.NewController(t)
	t.Cleanup(ctrl.Finish)

	opts := routerOptions()
	opts.RouteMode = config.RouteModeProxy

	r, err := route.NewClusterRouter(opts, mock.NewMockAuthority(ctrl))
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })

	cluster := endpoint.MustParse("127.0.0.9:8831")
	routes, err := r.RouteFor(context.Background(), []string{"cpu", "mem"})
	assert.NoError(err)
	assert.Equal(cluster, routes["cpu"].Endpoint)
	assert.Equal(cluster, routes["mem"].Endpoint)
	assert.Equal(cluster, r.ClusterAddress())
}

func TestRouterRejectsBadOptions(t *testing.T) {
	_, err := route.NewClusterRouter(config.NewDefaultRouterOptions(), nil)
	assert.Error(t, err)
}

// movingAuthority moves cpu to another node after the first lookup.
type movingAuthority struct {
	mu    sync.Mutex
	calls int
}

func (a *movingAuthority) Resolve(_ context.Context, tables []string) (map[string]route.Route, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls++

	ep := epA
	if a.calls > 1 {
		ep = epB
	}
	res := map[string]route.Route{}
	for _, t := range tables {
		res[t] = route.NewRoute(t, ep)
	}
	return res, nil
}

func TestRouterRefreshLoop(t *testing.T) {
	assert := assert.New(t)

	opts := routerOptions()
	opts.RefreshPeriod = 10 * time.Millisecond

	r, err := route.NewClusterRouter(opts, &movingAuthority{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })

	routes, err := r.RouteFor(context.Background(), []string{"cpu"})
	require.NoError(t, err)
	assert.Equal(epA, routes["cpu"].Endpoint)

	assert.Eventually(func() bool {
		routes, err := r.RouteFor(context.Background(), []string{"cpu"})
		return err == nil && routes["cpu"].Endpoint == epB
	}, time.Second, 5*time.Millisecond)
}

func TestRouterGcLoop(t *testing.T) {
	assert := assert.New(t)

	opts := routerOptions()
	opts.GcPeriod = 10 * time.Millisecond

	authority := &movingAuthority{}
	r, err := route.NewClusterRouter(opts, authority)
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })

	_, err = r.RouteFor(context.Background(), []string{"cpu"})
	require.NoError(t, err)

	/* once collected, the next lookup has to go to the authority again */
	time.Sleep(50 * time.Millisecond)
	routes, err := r.RouteFor(context.Background(), []string{"cpu"})
	assert.NoError(err)
	assert.Equal(epB, routes["cpu"].Endpoint)
}
