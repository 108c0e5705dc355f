package route

import (
	"context"
	"fmt"
	"path"

	"github.com/pg-sharding/dataplane/pkg/endpoint"
	"github.com/pg-sharding/dataplane/pkg/models/dperror"
	"github.com/pg-sharding/dataplane/pkg/protocol"
	"github.com/pg-sharding/dataplane/pkg/rpc"
	"github.com/pkg/errors"
	clientv3 "go.etcd.io/etcd/client/v3"
)

//go:generate mockgen -source=authority.go -destination=../../pkg/mock/route/authority_mock.go -package=mock_route

// Authority knows the current owner of every table. Tables it cannot
// resolve are left out of the result.
type Authority interface {
	Resolve(ctx context.Context, tables []string) (map[string]Route, error)
}

// StaticAuthority serves a fixed table to endpoint mapping.
type StaticAuthority struct {
	routes map[string]Route
}

var _ Authority = &StaticAuthority{}

// NewStaticAuthority parses a table -> "host:port" map.
func NewStaticAuthority(routes map[string]string) (*StaticAuthority, error) {
	a := &StaticAuthority{routes: map[string]Route{}}
	for table, addr := range routes {
		ep, err := endpoint.Parse(addr)
		if err != nil {
			return nil, errors.Wrapf(err, "static route for %q", table)
		}
		a.routes[table] = NewRoute(table, ep)
	}
	return a, nil
}

func (a *StaticAuthority) Resolve(_ context.Context, tables []string) (map[string]Route, error) {
	res := make(map[string]Route, len(tables))
	for _, t := range tables {
		if r, ok := a.routes[t]; ok {
			res[t] = r
		}
	}
	return res, nil
}

// RpcAuthority asks the cluster address through the storage Route method.
type RpcAuthority struct {
	cluster  endpoint.Endpoint
	channels rpc.ChannelProvider
}

var _ Authority = &RpcAuthority{}

func NewRpcAuthority(cluster endpoint.Endpoint, channels rpc.ChannelProvider) *RpcAuthority {
	return &RpcAuthority{cluster: cluster, channels: channels}
}

func (a *RpcAuthority) Resolve(ctx context.Context, tables []string) (map[string]Route, error) {
	ch, err := a.channels.Channel(a.cluster)
	if err != nil {
		return nil, err
	}

	resp := &protocol.RouteResponse{}
	if err := ch.Unary(ctx, rpc.MethodRoute.FullMethod(), &protocol.RouteRequest{Tables: tables}, resp); err != nil {
		return nil, dperror.Wrap(dperror.DP_RPC_ERROR, err)
	}
	if !resp.Header.IsOk() {
		return nil, dperror.Newf(dperror.DP_ROUTING_ERROR, "route request failed with %s: %s", resp.Header.Code, resp.Header.Error)
	}

	res := make(map[string]Route, len(resp.Routes))
	for _, e := range resp.Routes {
		res[e.Table] = NewRoute(e.Table, endpoint.New(e.Host, e.Port))
	}
	return res, nil
}

const DefaultEtcdPrefix = "/routes"

// EtcdAuthority reads routes stored as "host:port" values under
// <prefix>/<table>.
type EtcdAuthority struct {
	cli    *clientv3.Client
	prefix string
}

var _ Authority = &EtcdAuthority{}

func NewEtcdAuthority(cli *clientv3.Client, prefix string) *EtcdAuthority {
	if prefix == "" {
		prefix = DefaultEtcdPrefix
	}
	return &EtcdAuthority{cli: cli, prefix: prefix}
}

func (a *EtcdAuthority) key(table string) string {
	return path.Join(a.prefix, table)
}

// etcd rejects transactions with more operations than this by default
const etcdMaxTxnOps = 128

func (a *EtcdAuthority) Resolve(ctx context.Context, tables []string) (map[string]Route, error) {
	res := make(map[string]Route, len(tables))
	if len(tables) == 0 {
		return res, nil
	}
	for _, batch := range Chunk(tables, etcdMaxTxnOps) {
		ops := make([]clientv3.Op, 0, len(batch))
		for _, t := range batch {
			ops = append(ops, clientv3.OpGet(a.key(t)))
		}
		resp, err := a.cli.Txn(ctx).Then(ops...).Commit()
		if err != nil {
			return nil, dperror.Wrap(dperror.DP_ROUTING_ERROR, err)
		}

		for i, r := range resp.Responses {
			get := r.GetResponseRange()
			if get == nil || len(get.Kvs) == 0 {
				continue
			}
			ep, err := endpoint.Parse(string(get.Kvs[0].Value))
			if err != nil {
				return nil, errors.Wrapf(err, "bad route stored for %q", batch[i])
			}
			res[batch[i]] = NewRoute(batch[i], ep)
		}
	}
	return res, nil
}

// Store publishes a route, used by tooling and tests.
func (a *EtcdAuthority) Store(ctx context.Context, r Route) error {
	_, err := a.cli.Put(ctx, a.key(r.Table), r.Endpoint.String())
	if err != nil {
		return fmt.Errorf("failed to store route for %q: %w", r.Table, err)
	}
	return nil
}
