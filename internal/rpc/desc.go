// Package rpc exposes core.Service over gRPC as ruya.v1.DreamCore. Messages
// are protobuf well-known types, so no generated code is needed.
package rpc

import (
	"context"

	"github.com/dmitrijs2005/ruya/internal/core"
	"google.golang.org/grpc"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

const ServiceName = "ruya.v1.DreamCore"

const (
	methodBalance     = "Balance"
	methodPackages    = "Packages"
	methodPurchase    = "Purchase"
	methodRestore     = "Restore"
	methodHistory     = "History"
	methodDelete      = "Delete"
	methodOfflineLogs = "OfflineLogs"
	methodInterpret   = "Interpret"
	methodGenerate    = "Generate"
)

func fullMethod(name string) string { return "/" + ServiceName + "/" + name }

// dreamCoreServer is the handler type checked by grpc.RegisterService.
type dreamCoreServer interface {
	service() core.Service
}

var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*dreamCoreServer)(nil),
	Methods: []grpc.MethodDesc{
		unary(methodBalance, (*Server).balance),
		unary(methodPackages, (*Server).packages),
		unary(methodPurchase, (*Server).purchase),
		unary(methodRestore, (*Server).restore),
		unary(methodHistory, (*Server).history),
		unary(methodDelete, (*Server).delete),
		unary(methodOfflineLogs, (*Server).offlineLogs),
		unary(methodInterpret, (*Server).interpret),
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    methodGenerate,
			ServerStreams: true,
			Handler: func(srv any, stream grpc.ServerStream) error {
				in := new(wrapperspb.StringValue)
				if err := stream.RecvMsg(in); err != nil {
					return err
				}
				return srv.(*Server).generate(in, stream)
			},
		},
	},
	Metadata: "ruya/v1/dreamcore.proto",
}

// unary builds the method descriptor for fn, decoding the request into a
// fresh Req and honoring the server's interceptor chain.
func unary[Req any, PReq interface {
	*Req
	proto.Message
}, Resp proto.Message](name string, fn func(*Server, context.Context, PReq) (Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := PReq(new(Req))
			if err := dec(in); err != nil {
				return nil, err
			}
			s := srv.(*Server)
			if interceptor == nil {
				return fn(s, ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod(name)}
			return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
				return fn(s, ctx, req.(PReq))
			})
		},
	}
}
