package route_test

import (
	"context"
	"testing"

	"github.com/pg-sharding/dataplane/pkg/config"
	"github.com/pg-sharding/dataplane/pkg/endpoint"
	"github.com/pg-sharding/dataplane/pkg/models/dperror"
	"github.com/pg-sharding/dataplane/pkg/protocol"
	"github.com/pg-sharding/dataplane/pkg/rpc"
	"github.com/pg-sharding/dataplane/pkg/rpc/rpctest"
	"github.com/pg-sharding/dataplane/router/route"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rpcAuthority(t *testing.T, funcs rpctest.Funcs) *route.RpcAuthority {
	t.Helper()

	cluster := endpoint.New("cluster", 8831)
	network := rpctest.NewNetwork()
	network.Serve(cluster, funcs)
	t.Cleanup(network.Close)

	channels := rpc.NewGrpcChannelPool(network.ChannelOptions(config.NewDefaultRpcOptions())).Lease()
	t.Cleanup(func() { _ = channels.Close() })
	return route.NewRpcAuthority(cluster, channels)
}

func TestRpcAuthorityResolve(t *testing.T) {
	assert := assert.New(t)

	a := rpcAuthority(t, rpctest.Funcs{
		RouteFunc: func(_ context.Context, req *protocol.RouteRequest) (*protocol.RouteResponse, error) {
			resp := &protocol.RouteResponse{Header: protocol.ResponseHeader{Code: protocol.CodeOk}}
			for _, table := range req.Tables {
				if table == "unknown" {
					continue
				}
				resp.Routes = append(resp.Routes, protocol.RouteEntry{Table: table, Host: "node-" + table, Port: 8831})
			}
			return resp, nil
		},
	})

	routes, err := a.Resolve(context.Background(), []string{"cpu", "mem", "unknown"})
	require.NoError(t, err)
	assert.Len(routes, 2)
	assert.Equal(endpoint.New("node-cpu", 8831), routes["cpu"].Endpoint)
	assert.Equal(endpoint.New("node-mem", 8831), routes["mem"].Endpoint)
}

func TestRpcAuthorityBadHeader(t *testing.T) {
	a := rpcAuthority(t, rpctest.Funcs{
		RouteFunc: func(context.Context, *protocol.RouteRequest) (*protocol.RouteResponse, error) {
			return &protocol.RouteResponse{Header: protocol.ResponseHeader{Code: protocol.CodeInternal, Error: "meta unavailable"}}, nil
		},
	})

	_, err := a.Resolve(context.Background(), []string{"cpu"})
	assert.True(t, dperror.IsCode(err, dperror.DP_ROUTING_ERROR))
}
