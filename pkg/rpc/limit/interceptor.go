package limit

import (
	"context"
	"errors"
	"io"
	"sync"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// finish classifies a call error for the limit algorithm. Only overload
// symptoms count as drops.
func finish(ls *Listener, err error) {
	if err == nil || errors.Is(err, io.EOF) {
		ls.OnSuccess()
		return
	}
	switch status.Code(err) {
	case codes.DeadlineExceeded, codes.ResourceExhausted, codes.Unavailable:
		ls.OnDropped()
	default:
		ls.OnIgnore()
	}
}

func (l *Limiter) UnaryClientInterceptor() grpc.UnaryClientInterceptor {
	return func(ctx context.Context, method string, req, reply any, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
		ls, err := l.Acquire(ctx, method)
		if err != nil {
			return status.Error(codes.Unavailable, err.Error())
		}
		err = invoker(ctx, method, req, reply, cc, opts...)
		finish(ls, err)
		return err
	}
}

func (l *Limiter) StreamClientInterceptor() grpc.StreamClientInterceptor {
	return func(ctx context.Context, desc *grpc.StreamDesc, cc *grpc.ClientConn, method string, streamer grpc.Streamer, opts ...grpc.CallOption) (grpc.ClientStream, error) {
		ls, err := l.Acquire(ctx, method)
		if err != nil {
			return nil, status.Error(codes.Unavailable, err.Error())
		}
		cs, err := streamer(ctx, desc, cc, method, opts...)
		if err != nil {
			finish(ls, err)
			return nil, err
		}
		s := &limitedStream{ClientStream: cs, ls: ls, single: !desc.ServerStreams, done: make(chan struct{})}
		go func() {
			select {
			case <-ctx.Done():
				s.finish(ctx.Err())
			case <-s.done:
			}
		}()
		return s, nil
	}
}

// limitedStream holds its limiter slot until the stream ends.
type limitedStream struct {
	grpc.ClientStream
	ls *Listener
	// a client-streaming call ends with its only response
	single bool
	once   sync.Once
	done   chan struct{}
}

func (s *limitedStream) finish(err error) {
	s.once.Do(func() {
		finish(s.ls, err)
		close(s.done)
	})
}

func (s *limitedStream) RecvMsg(m any) error {
	err := s.ClientStream.RecvMsg(m)
	if err != nil || s.single {
		s.finish(err)
	}
	return err
}
