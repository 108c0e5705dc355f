package route

import (
	"context"
	"sync"
	"time"

	"github.com/pg-sharding/dataplane/pkg/config"
	"github.com/pg-sharding/dataplane/pkg/dplog"
	"github.com/pg-sharding/dataplane/pkg/endpoint"
	"golang.org/x/sync/errgroup"
)

//go:generate mockgen -source=router.go -destination=../../pkg/mock/route/router_mock.go -package=mock_route

// Router resolves tables to routes for request paths.
type Router interface {
	// RouteFor returns the routes it could resolve; unresolved tables are
	// missing from the map.
	RouteFor(ctx context.Context, tables []string) (map[string]Route, error)
	// ClearRoutes forgets cached routes, forcing the next lookup to ask the
	// authority.
	ClearRoutes(tables ...string)
	ClusterAddress() endpoint.Endpoint
	Close() error
}

const (
	refreshBatchSize   = 256
	refreshParallelism = 4
)

// ClusterRouter caches authority answers. In proxy mode every table routes to
// the cluster address and the cache is not used.
type ClusterRouter struct {
	opts      config.RouterOptions
	cluster   endpoint.Endpoint
	authority Authority
	cache     *Cache

	loopCtx    context.Context
	loopCancel context.CancelFunc
	wg         sync.WaitGroup
	closeOnce  sync.Once
}

var _ Router = &ClusterRouter{}

// NewClusterRouter starts the GC and refresh loops for every positive period.
func NewClusterRouter(opts config.RouterOptions, authority Authority) (*ClusterRouter, error) {
	opts = opts.Copy()
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	cluster, err := endpoint.Parse(opts.ClusterAddress)
	if err != nil {
		return nil, err
	}
	cache, err := NewCache(config.ValueOrDefaultInt(opts.MaxCachedSize, config.DefaultMaxCachedSize))
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	r := &ClusterRouter{
		opts:       opts,
		cluster:    cluster,
		authority:  authority,
		cache:      cache,
		loopCtx:    ctx,
		loopCancel: cancel,
	}
	if opts.RouteMode != config.RouteModeProxy {
		if opts.GcPeriod > 0 {
			r.startLoop("gc", opts.GcPeriod, r.gc)
		}
		if opts.RefreshPeriod > 0 {
			r.startLoop("refresh", opts.RefreshPeriod, r.refresh)
		}
	}
	return r, nil
}

func (r *ClusterRouter) startLoop(name string, period time.Duration, tick func(ctx context.Context)) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()

		ticker := time.NewTicker(period)
		defer ticker.Stop()

		for {
			select {
			case <-r.loopCtx.Done():
				dplog.Zero.Debug().Str("loop", name).Msg("route: loop stopped")
				return
			case <-ticker.C:
				tick(r.loopCtx)
			}
		}
	}()
}

func (r *ClusterRouter) ClusterAddress() endpoint.Endpoint {
	return r.cluster
}

func (r *ClusterRouter) RouteFor(ctx context.Context, tables []string) (map[string]Route, error) {
	res := make(map[string]Route, len(tables))
	if r.opts.RouteMode == config.RouteModeProxy {
		for _, t := range tables {
			res[t] = NewRoute(t, r.cluster)
		}
		return res, nil
	}

	var misses []string
	missed := map[string]struct{}{}
	for _, t := range tables {
		if _, ok := res[t]; ok {
			continue
		}
		if _, ok := missed[t]; ok {
			continue
		}
		if rt, ok := r.cache.Get(t); ok {
			res[t] = rt
			continue
		}
		missed[t] = struct{}{}
		misses = append(misses, t)
	}
	if len(misses) == 0 {
		return res, nil
	}

	fetched, err := r.authority.Resolve(ctx, misses)
	if err != nil {
		return nil, err
	}
	for t, rt := range fetched {
		r.cache.Put(rt)
		res[t] = rt
	}

	dplog.Zero.Debug().
		Int("requested", len(misses)).
		Int("resolved", len(fetched)).
		Msg("route: resolved cache misses")
	return res, nil
}

func (r *ClusterRouter) ClearRoutes(tables ...string) {
	r.cache.Remove(tables...)
}

// gc evicts routes nobody asked for during the last GC period.
func (r *ClusterRouter) gc(context.Context) {
	removed := r.cache.EvictIdle(r.opts.GcPeriod)
	if removed > 0 {
		dplog.Zero.Info().
			Int("removed", removed).
			Int("remaining", r.cache.Len()).
			Msg("route: evicted idle routes")
	}
}

// refresh asks the authority again for every cached table. Only tables that
// are still cached and got an answer are updated, and a failed batch keeps the
// old routes.
func (r *ClusterRouter) refresh(ctx context.Context) {
	tables := r.cache.Tables()
	if len(tables) == 0 {
		return
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(refreshParallelism)

	var mu sync.Mutex
	changed := 0
	for _, batch := range Chunk(tables, refreshBatchSize) {
		g.Go(func() error {
			fetched, err := r.authority.Resolve(gctx, batch)
			if err != nil {
				dplog.Zero.Warn().Err(err).Int("tables", len(batch)).Msg("route: refresh failed")
				return nil
			}
			for _, rt := range fetched {
				old, ok := r.cache.peek(rt.Table)
				if ok && old.Endpoint == rt.Endpoint {
					continue
				}
				if r.cache.Update(rt) {
					mu.Lock()
					changed++
					mu.Unlock()
					dplog.Zero.Info().
						Str("table", rt.Table).
						Str("old", old.Endpoint.String()).
						Str("new", rt.Endpoint.String()).
						Msg("route: route changed")
				}
			}
			return nil
		})
	}
	_ = g.Wait()

	dplog.Zero.Debug().Int("tables", len(tables)).Int("changed", changed).Msg("route: refreshed")
}

// Close stops the background loops. It is safe to call more than once.
func (r *ClusterRouter) Close() error {
	r.closeOnce.Do(func() {
		r.loopCancel()
		r.wg.Wait()
	})
	return nil
}
