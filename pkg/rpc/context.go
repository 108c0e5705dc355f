package rpc

import (
	"context"
	"maps"
	"strings"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
)

const RequestIDKey = "x-request-id"

// Context is a set of key/value pairs sent as headers with every call made
// under it. It is never modified in place.
type Context map[string]string

func NewContext() Context {
	return Context{}
}

// With returns a copy of c with key set to value. Keys are lower-cased as gRPC
// metadata requires.
func (c Context) With(key, value string) Context {
	cp := maps.Clone(c)
	if cp == nil {
		cp = Context{}
	}
	cp[strings.ToLower(key)] = value
	return cp
}

func (c Context) Get(key string) (string, bool) {
	v, ok := c[strings.ToLower(key)]
	return v, ok
}

type callContextKey struct{}

func WithCallContext(ctx context.Context, c Context) context.Context {
	return context.WithValue(ctx, callContextKey{}, c)
}

func CallContextFrom(ctx context.Context) (Context, bool) {
	c, ok := ctx.Value(callContextKey{}).(Context)
	return c, ok
}

// WithRequestID attaches a fresh request id to the call context of ctx unless
// one is already set.
func WithRequestID(ctx context.Context) context.Context {
	c, _ := CallContextFrom(ctx)
	if _, ok := c.Get(RequestIDKey); ok {
		return ctx
	}
	return WithCallContext(ctx, c.With(RequestIDKey, uuid.NewString()))
}

func outgoing(ctx context.Context) context.Context {
	c, ok := CallContextFrom(ctx)
	if !ok || len(c) == 0 {
		return ctx
	}
	kv := make([]string, 0, len(c)*2)
	for k, v := range c {
		kv = append(kv, k, v)
	}
	return metadata.AppendToOutgoingContext(ctx, kv...)
}

// ContextToHeadersUnary copies the call context into outgoing metadata.
func ContextToHeadersUnary() grpc.UnaryClientInterceptor {
	return func(ctx context.Context, method string, req, reply any, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
		return invoker(outgoing(ctx), method, req, reply, cc, opts...)
	}
}

func ContextToHeadersStream() grpc.StreamClientInterceptor {
	return func(ctx context.Context, desc *grpc.StreamDesc, cc *grpc.ClientConn, method string, streamer grpc.Streamer, opts ...grpc.CallOption) (grpc.ClientStream, error) {
		return streamer(outgoing(ctx), desc, cc, method, opts...)
	}
}
