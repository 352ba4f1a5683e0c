package api

import (
	"context"

	"google.golang.org/grpc"
)

const servicePrefix = "nightvibe.v1."

// FullMethod returns the gRPC method path of service.method.
func FullMethod(service, method string) string {
	return "/" + servicePrefix + service + "/" + method
}

// unary builds the method descriptor of a request/response call served by
// fn on the service implementation S.
func unary[S, Req, Resp any](service, method string, fn func(S, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: method,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return fn(srv.(S), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: FullMethod(service, method)}
			return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
				return fn(srv.(S), ctx, req.(*Req))
			})
		},
	}
}

// ServerStream is the send side of a server-streaming call.
type ServerStream[Resp any] interface {
	Send(*Resp) error
	Context() context.Context
}

type serverStream[Resp any] struct {
	grpc.ServerStream
}

func (s serverStream[Resp]) Send(m *Resp) error { return s.ServerStream.SendMsg(m) }

// serverStreaming builds the descriptor of a call with one request and a
// stream of responses.
func serverStreaming[S, Req, Resp any](method string, fn func(S, *Req, ServerStream[Resp]) error) grpc.StreamDesc {
	return grpc.StreamDesc{
		StreamName:    method,
		ServerStreams: true,
		Handler: func(srv any, stream grpc.ServerStream) error {
			in := new(Req)
			if err := stream.RecvMsg(in); err != nil {
				return err
			}
			return fn(srv.(S), in, serverStream[Resp]{stream})
		},
	}
}
