// Package client turns logical writes and queries into physical calls against
// the storage nodes owning the touched tables.
package client

import (
	"errors"
	"io"
	"sync"
	"time"

	"github.com/pg-sharding/dataplane/pkg/config"
	"github.com/pg-sharding/dataplane/pkg/dplog"
	"github.com/pg-sharding/dataplane/pkg/endpoint"
	"github.com/pg-sharding/dataplane/pkg/protocol"
	"github.com/pg-sharding/dataplane/pkg/rpc"
	"github.com/pg-sharding/dataplane/pkg/sqlparse"
	"github.com/pg-sharding/dataplane/router/route"
	"github.com/pg-sharding/dataplane/router/statistics"
	clientv3 "go.etcd.io/etcd/client/v3"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	defaultEtcdDialTimeout = 5 * time.Second
	retryBackoff           = 100 * time.Millisecond
)

// Options carries the collaborators of a Client. Unset ones are built from
// Config.
type Options struct {
	Config config.ClientCfg

	Router   route.Router
	Channels rpc.ChannelProvider
	Parser   sqlparse.Parser
	Latency  *statistics.LatencyHolder

	// extra dial options for channels the client creates itself
	DialOptions  []grpc.DialOption
	TargetScheme string
}

type Client struct {
	cfg      config.ClientCfg
	router   route.Router
	channels rpc.ChannelProvider
	parser   sqlparse.Parser
	latency  *statistics.LatencyHolder
	rates    *statistics.RateHolder
	registry *rpc.Registry

	// closed together with the client, nil for injected ones
	ownedRouter   route.Router
	ownedChannels rpc.ChannelProvider
	etcd          *clientv3.Client

	closeOnce sync.Once
}

func New(opts Options) (*Client, error) {
	cfg := opts.Config.Copy()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	c := &Client{
		cfg:      cfg,
		router:   opts.Router,
		channels: opts.Channels,
		parser:   opts.Parser,
		latency:  opts.Latency,
		rates:    statistics.NewRateHolder(),
		registry: rpc.DefaultRegistry(),
	}
	if c.latency == nil {
		c.latency = statistics.NewLatencyHolder()
	}
	if c.parser == nil {
		c.parser = sqlparse.NewLyxParser(0)
	}
	if c.channels == nil {
		pool := rpc.NewGrpcChannelPool(rpc.ChannelOptions{
			Rpc:          cfg.Rpc,
			Registry:     c.registry,
			Latency:      c.latency,
			DialOptions:  opts.DialOptions,
			TargetScheme: opts.TargetScheme,
		})
		c.channels = pool.Lease()
		c.ownedChannels = c.channels
	}
	if c.router == nil {
		authority, err := c.newAuthority()
		if err != nil {
			_ = c.Close()
			return nil, err
		}
		r, err := route.NewClusterRouter(cfg.Router, authority)
		if err != nil {
			_ = c.Close()
			return nil, err
		}
		c.router = r
		c.ownedRouter = r
	}

	dplog.Zero.Info().
		Str("cluster", c.router.ClusterAddress().String()).
		Str("route mode", string(cfg.Router.RouteMode)).
		Str("limit", string(cfg.Rpc.LimitKind)).
		Msg("client: created")
	return c, nil
}

// newAuthority prefers static routes, then etcd, then the cluster's route
// service.
func (c *Client) newAuthority() (route.Authority, error) {
	switch {
	case len(c.cfg.StaticRoutes) > 0:
		return route.NewStaticAuthority(c.cfg.StaticRoutes)
	case len(c.cfg.Etcd.Endpoints) > 0:
		cli, err := clientv3.New(clientv3.Config{
			Endpoints:   c.cfg.Etcd.Endpoints,
			DialTimeout: config.ValueOrDefaultDuration(c.cfg.Etcd.DialTimeout, defaultEtcdDialTimeout),
		})
		if err != nil {
			return nil, err
		}
		c.etcd = cli
		return route.NewEtcdAuthority(cli, c.cfg.Etcd.Prefix), nil
	default:
		cluster, err := endpoint.Parse(c.cfg.Router.ClusterAddress)
		if err != nil {
			return nil, err
		}
		return route.NewRpcAuthority(cluster, c.channels), nil
	}
}

func (c *Client) Router() route.Router {
	return c.router
}

// Latency exposes per-endpoint latency digests of channels the client dialed.
func (c *Client) Latency() *statistics.LatencyHolder {
	return c.latency
}

// Rates exposes logical calls per second by operation.
func (c *Client) Rates() *statistics.RateHolder {
	return c.rates
}

func (c *Client) method(req any, typ rpc.MethodType) string {
	name, ok := c.registry.MethodName(req, typ)
	if !ok {
		panic("client: no method registered for request")
	}
	return name
}

func (c *Client) channel(ep endpoint.Endpoint) (rpc.Channel, error) {
	return c.channels.Channel(ep)
}

// Close stops router loops and releases every channel the client created.
func (c *Client) Close() error {
	var errs []error
	c.closeOnce.Do(func() {
		if c.ownedRouter != nil {
			errs = append(errs, c.ownedRouter.Close())
		}
		if c.ownedChannels != nil {
			errs = append(errs, c.ownedChannels.Close())
		}
		if c.etcd != nil {
			errs = append(errs, c.etcd.Close())
		}
		dplog.Zero.Debug().Msg("client: closed")
	})
	return errors.Join(errs...)
}

// codeOf maps a transport failure to the response code reported in Err nodes.
func codeOf(err error) protocol.Code {
	switch status.Code(err) {
	case codes.Unavailable, codes.ResourceExhausted:
		return protocol.CodeFlowControl
	case codes.InvalidArgument:
		return protocol.CodeBadRequest
	default:
		return protocol.CodeInternal
	}
}

func isEOF(err error) bool {
	return errors.Is(err, io.EOF)
}
