// Package rpctest runs in-process storage nodes over bufconn.
package rpctest

import (
	"context"
	"io"

	"github.com/pg-sharding/dataplane/pkg/protocol"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type StorageServer interface {
	Route(ctx context.Context, req *protocol.RouteRequest) (*protocol.RouteResponse, error)
	Write(ctx context.Context, req *protocol.WriteRequest) (*protocol.WriteResponse, error)
	StreamWrite(ctx context.Context, recv func() (*protocol.WriteRequest, error)) (*protocol.WriteResponse, error)
	SqlQuery(ctx context.Context, req *protocol.SqlQueryRequest) (*protocol.SqlQueryResponse, error)
	StreamSqlQuery(ctx context.Context, req *protocol.SqlQueryRequest, send func(*protocol.SqlQueryResponse) error) error
}

// Funcs implements StorageServer with optional callbacks; unset ones answer
// Unimplemented.
type Funcs struct {
	RouteFunc          func(ctx context.Context, req *protocol.RouteRequest) (*protocol.RouteResponse, error)
	WriteFunc          func(ctx context.Context, req *protocol.WriteRequest) (*protocol.WriteResponse, error)
	StreamWriteFunc    func(ctx context.Context, recv func() (*protocol.WriteRequest, error)) (*protocol.WriteResponse, error)
	SqlQueryFunc       func(ctx context.Context, req *protocol.SqlQueryRequest) (*protocol.SqlQueryResponse, error)
	StreamSqlQueryFunc func(ctx context.Context, req *protocol.SqlQueryRequest, send func(*protocol.SqlQueryResponse) error) error
}

var _ StorageServer = Funcs{}

func unimplemented(method string) error {
	return status.Errorf(codes.Unimplemented, "method %s not implemented", method)
}

func (f Funcs) Route(ctx context.Context, req *protocol.RouteRequest) (*protocol.RouteResponse, error) {
	if f.RouteFunc == nil {
		return nil, unimplemented("Route")
	}
	return f.RouteFunc(ctx, req)
}

func (f Funcs) Write(ctx context.Context, req *protocol.WriteRequest) (*protocol.WriteResponse, error) {
	if f.WriteFunc == nil {
		return nil, unimplemented("Write")
	}
	return f.WriteFunc(ctx, req)
}

func (f Funcs) StreamWrite(ctx context.Context, recv func() (*protocol.WriteRequest, error)) (*protocol.WriteResponse, error) {
	if f.StreamWriteFunc == nil {
		return nil, unimplemented("StreamWrite")
	}
	return f.StreamWriteFunc(ctx, recv)
}

func (f Funcs) SqlQuery(ctx context.Context, req *protocol.SqlQueryRequest) (*protocol.SqlQueryResponse, error) {
	if f.SqlQueryFunc == nil {
		return nil, unimplemented("SqlQuery")
	}
	return f.SqlQueryFunc(ctx, req)
}

func (f Funcs) StreamSqlQuery(ctx context.Context, req *protocol.SqlQueryRequest, send func(*protocol.SqlQueryResponse) error) error {
	if f.StreamSqlQueryFunc == nil {
		return unimplemented("StreamSqlQuery")
	}
	return f.StreamSqlQueryFunc(ctx, req, send)
}

func unaryHandler[Req any, Resp any](call func(StorageServer, context.Context, *Req) (*Resp, error)) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		return call(srv.(StorageServer), ctx, in)
	}
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: "storage.StorageService",
	HandlerType: (*StorageServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Route",
			Handler:    unaryHandler(StorageServer.Route),
		},
		{
			MethodName: "Write",
			Handler:    unaryHandler(StorageServer.Write),
		},
		{
			MethodName: "SqlQuery",
			Handler:    unaryHandler(StorageServer.SqlQuery),
		},
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "StreamWrite",
			ClientStreams: true,
			Handler: func(srv any, stream grpc.ServerStream) error {
				recv := func() (*protocol.WriteRequest, error) {
					in := new(protocol.WriteRequest)
					if err := stream.RecvMsg(in); err != nil {
						return nil, err
					}
					return in, nil
				}
				resp, err := srv.(StorageServer).StreamWrite(stream.Context(), recv)
				if err != nil {
					return err
				}
				return stream.SendMsg(resp)
			},
		},
		{
			StreamName:    "StreamSqlQuery",
			ServerStreams: true,
			Handler: func(srv any, stream grpc.ServerStream) error {
				in := new(protocol.SqlQueryRequest)
				if err := stream.RecvMsg(in); err != nil {
					return err
				}
				return srv.(StorageServer).StreamSqlQuery(stream.Context(), in, func(resp *protocol.SqlQueryResponse) error {
					return stream.SendMsg(resp)
				})
			},
		},
	},
}

// DrainWrites reads a client stream to the end.
func DrainWrites(recv func() (*protocol.WriteRequest, error)) ([]*protocol.WriteRequest, error) {
	var res []*protocol.WriteRequest
	for {
		req, err := recv()
		if err == io.EOF {
			return res, nil
		}
		if err != nil {
			return res, err
		}
		res = append(res, req)
	}
}
