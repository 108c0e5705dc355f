package rpc

import (
	"context"
	"sync"
	"time"

	"github.com/pg-sharding/dataplane/pkg/config"
	"github.com/pg-sharding/dataplane/pkg/dplog"
	"github.com/pg-sharding/dataplane/pkg/endpoint"
	"github.com/pg-sharding/dataplane/pkg/models/dperror"
	"github.com/pg-sharding/dataplane/pkg/rpc/limit"
	"github.com/pg-sharding/dataplane/router/statistics"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/keepalive"
)

//go:generate mockgen -source=channel.go -destination=../mock/rpc/channel_mock.go -package=mock_rpc

// ClientStream sends many requests and receives one response.
type ClientStream interface {
	Send(req any) error
	CloseAndRecv(resp any) error
}

// ServerStream receives responses until io.EOF.
type ServerStream interface {
	Recv(resp any) error
}

// Channel is a connection to one storage node.
type Channel interface {
	Endpoint() endpoint.Endpoint
	Unary(ctx context.Context, method string, req, resp any) error
	ClientStreaming(ctx context.Context, method string) (ClientStream, error)
	ServerStreaming(ctx context.Context, method string, req any) (ServerStream, error)
	Close() error
}

var (
	clientStreamDesc = &grpc.StreamDesc{ClientStreams: true}
	serverStreamDesc = &grpc.StreamDesc{ServerStreams: true}
)

// GrpcChannel is a Channel over a gRPC client connection. With
// ConnectionMaxAge set the connection is replaced once it gets too old; the old
// one is closed after DefaultRpcTimeout so calls on it can finish.
type GrpcChannel struct {
	ep      endpoint.Endpoint
	target  string
	opts    config.RpcOptions
	dialOpt []grpc.DialOption
	timeout time.Duration

	mu      sync.Mutex
	conn    *grpc.ClientConn
	created time.Time
	closed  bool
}

var _ Channel = &GrpcChannel{}

type ChannelOptions struct {
	Rpc      config.RpcOptions
	Registry *Registry
	Latency  *statistics.LatencyHolder
	// extra dial options, bufconn dialers in tests
	DialOptions []grpc.DialOption
	// resolver scheme prepended to the endpoint, "passthrough" skips DNS
	TargetScheme string
}

func NewGrpcChannel(ep endpoint.Endpoint, copts ChannelOptions) (*GrpcChannel, error) {
	opts := copts.Rpc
	registry := copts.Registry
	if registry == nil {
		registry = DefaultRegistry()
	}

	unary := []grpc.UnaryClientInterceptor{ContextToHeadersUnary(), statsUnary(ep, copts.Latency)}
	stream := []grpc.StreamClientInterceptor{ContextToHeadersStream()}
	if l := limit.New(ep.String(), opts, registry.AllMethodsLimitPercent()); l != nil {
		unary = append(unary, l.UnaryClientInterceptor())
		stream = append(stream, l.StreamClientInterceptor())
	}

	dialOpts := []grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(
			grpc.ForceCodec(Codec()),
			grpc.MaxCallRecvMsgSize(config.ValueOrDefaultInt(opts.MaxInboundMessageSize, config.DefaultMaxInboundMessageSize)),
		),
		grpc.WithIdleTimeout(config.ValueOrDefaultDuration(opts.IdleTimeout, config.DefaultIdleTimeout)),
		grpc.WithChainUnaryInterceptor(unary...),
		grpc.WithChainStreamInterceptor(stream...),
	}
	if opts.FlowControlWindow > 0 {
		dialOpts = append(dialOpts,
			grpc.WithInitialWindowSize(opts.FlowControlWindow),
			grpc.WithInitialConnWindowSize(opts.FlowControlWindow))
	}
	if opts.KeepAliveTime > 0 {
		dialOpts = append(dialOpts, grpc.WithKeepaliveParams(keepalive.ClientParameters{
			Time:                opts.KeepAliveTime,
			Timeout:             config.ValueOrDefaultDuration(opts.KeepAliveTimeout, config.DefaultKeepAliveTimeout),
			PermitWithoutStream: opts.KeepAliveWithoutCalls,
		}))
	}
	if opts.User != "" {
		dialOpts = append(dialOpts, grpc.WithPerRPCCredentials(newBasicAuth(opts.User, opts.Password)))
	}
	dialOpts = append(dialOpts, copts.DialOptions...)

	target := ep.String()
	if copts.TargetScheme != "" {
		target = copts.TargetScheme + ":///" + target
	}

	ch := &GrpcChannel{
		ep:      ep,
		target:  target,
		opts:    opts,
		dialOpt: dialOpts,
		timeout: config.ValueOrDefaultDuration(opts.DefaultRpcTimeout, config.DefaultRpcTimeout),
	}
	conn, err := ch.dial()
	if err != nil {
		return nil, err
	}
	ch.conn = conn
	ch.created = time.Now()

	dplog.Zero.Debug().
		Str("endpoint", ep.String()).
		Uint("channel", dplog.GetPointer(ch)).
		Msg("rpc: channel created")
	return ch, nil
}

func (c *GrpcChannel) dial() (*grpc.ClientConn, error) {
	conn, err := grpc.NewClient(c.target, c.dialOpt...)
	if err != nil {
		return nil, dperror.Wrap(dperror.DP_RPC_ERROR, err)
	}
	return conn, nil
}

func (c *GrpcChannel) clientConn() (*grpc.ClientConn, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, dperror.Newf(dperror.DP_RPC_ERROR, "channel to %s is closed", c.ep)
	}
	if c.opts.ConnectionMaxAge > 0 && time.Since(c.created) > c.opts.ConnectionMaxAge {
		conn, err := c.dial()
		if err != nil {
			return nil, err
		}
		old := c.conn
		time.AfterFunc(c.timeout, func() {
			_ = old.Close()
		})
		c.conn = conn
		c.created = time.Now()
		dplog.Zero.Info().Str("endpoint", c.ep.String()).Msg("rpc: connection reached max age, reconnected")
	}
	return c.conn, nil
}

func (c *GrpcChannel) Endpoint() endpoint.Endpoint {
	return c.ep
}

func (c *GrpcChannel) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, c.timeout)
}

func (c *GrpcChannel) Unary(ctx context.Context, method string, req, resp any) error {
	conn, err := c.clientConn()
	if err != nil {
		return err
	}
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	return conn.Invoke(ctx, method, req, resp)
}

type grpcClientStream struct {
	cs grpc.ClientStream
}

func (s *grpcClientStream) Send(req any) error {
	return s.cs.SendMsg(req)
}

func (s *grpcClientStream) CloseAndRecv(resp any) error {
	if err := s.cs.CloseSend(); err != nil {
		return err
	}
	return s.cs.RecvMsg(resp)
}

// ClientStreaming opens a stream that lives as long as ctx; no default timeout
// is applied.
func (c *GrpcChannel) ClientStreaming(ctx context.Context, method string) (ClientStream, error) {
	conn, err := c.clientConn()
	if err != nil {
		return nil, err
	}
	cs, err := conn.NewStream(ctx, clientStreamDesc, method)
	if err != nil {
		return nil, err
	}
	return &grpcClientStream{cs: cs}, nil
}

type grpcServerStream struct {
	cs grpc.ClientStream
}

func (s *grpcServerStream) Recv(resp any) error {
	return s.cs.RecvMsg(resp)
}

func (c *GrpcChannel) ServerStreaming(ctx context.Context, method string, req any) (ServerStream, error) {
	conn, err := c.clientConn()
	if err != nil {
		return nil, err
	}
	cs, err := conn.NewStream(ctx, serverStreamDesc, method)
	if err != nil {
		return nil, err
	}
	if err := cs.SendMsg(req); err != nil {
		return nil, err
	}
	if err := cs.CloseSend(); err != nil {
		return nil, err
	}
	return &grpcServerStream{cs: cs}, nil
}

func (c *GrpcChannel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	dplog.Zero.Debug().
		Str("endpoint", c.ep.String()).
		Uint("channel", dplog.GetPointer(c)).
		Msg("rpc: channel closed")
	return c.conn.Close()
}

func statsUnary(ep endpoint.Endpoint, latency *statistics.LatencyHolder) grpc.UnaryClientInterceptor {
	return func(ctx context.Context, method string, req, reply any, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
		start := time.Now()
		err := invoker(ctx, method, req, reply, cc, opts...)
		d := time.Since(start)
		statistics.RecordCall(statistics.StatisticsTypePhysical, method, d, err)
		if latency != nil {
			latency.Record(statistics.StatisticsTypePhysical, ep.String(), d)
		}
		return err
	}
}
