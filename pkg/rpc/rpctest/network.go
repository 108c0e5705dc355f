package rpctest

import (
	"context"
	"net"
	"sync"

	"github.com/pg-sharding/dataplane/pkg/config"
	"github.com/pg-sharding/dataplane/pkg/endpoint"
	"github.com/pg-sharding/dataplane/pkg/rpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/test/bufconn"
)

const bufSize = 1 << 20

// Network routes dials of host:port to in-process storage nodes.
type Network struct {
	mu        sync.Mutex
	listeners map[string]*bufconn.Listener
	servers   []*grpc.Server
}

func NewNetwork() *Network {
	return &Network{
		listeners: map[string]*bufconn.Listener{},
	}
}

// Serve starts a storage node answering at ep.
func (n *Network) Serve(ep endpoint.Endpoint, impl StorageServer, opts ...grpc.ServerOption) {
	lis := bufconn.Listen(bufSize)
	srv := grpc.NewServer(opts...)
	srv.RegisterService(&serviceDesc, impl)

	n.mu.Lock()
	n.listeners[ep.String()] = lis
	n.servers = append(n.servers, srv)
	n.mu.Unlock()

	go func() {
		_ = srv.Serve(lis)
	}()
}

func (n *Network) dial(ctx context.Context, addr string) (net.Conn, error) {
	n.mu.Lock()
	lis, ok := n.listeners[addr]
	n.mu.Unlock()
	if !ok {
		return nil, &net.OpError{Op: "dial", Net: "bufconn", Err: net.UnknownNetworkError(addr)}
	}
	return lis.DialContext(ctx)
}

func (n *Network) ChannelOptions(opts config.RpcOptions) rpc.ChannelOptions {
	return rpc.ChannelOptions{
		Rpc:          opts,
		DialOptions:  []grpc.DialOption{grpc.WithContextDialer(n.dial)},
		TargetScheme: "passthrough",
	}
}

func (n *Network) Close() {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, srv := range n.servers {
		srv.Stop()
	}
}
