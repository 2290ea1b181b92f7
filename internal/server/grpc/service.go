package grpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "docdelivery.v1.DeliveryService"

const (
	MethodCreateDelivery  = "/" + ServiceName + "/CreateDelivery"
	MethodResolveDelivery = "/" + ServiceName + "/ResolveDelivery"
	MethodGetAnalytics    = "/" + ServiceName + "/GetAnalytics"
	MethodSetBlocked      = "/" + ServiceName + "/SetBlocked"
)

// DeliveryServer is the server-side contract of the delivery service.
type DeliveryServer interface {
	CreateDelivery(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ResolveDelivery(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetAnalytics(context.Context, *structpb.Struct) (*structpb.Struct, error)
	SetBlocked(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

type unaryMethod func(DeliveryServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*DeliveryServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "CreateDelivery", Handler: unaryHandler(MethodCreateDelivery, DeliveryServer.CreateDelivery)},
		{MethodName: "ResolveDelivery", Handler: unaryHandler(MethodResolveDelivery, DeliveryServer.ResolveDelivery)},
		{MethodName: "GetAnalytics", Handler: unaryHandler(MethodGetAnalytics, DeliveryServer.GetAnalytics)},
		{MethodName: "SetBlocked", Handler: unaryHandler(MethodSetBlocked, DeliveryServer.SetBlocked)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "docdelivery/v1/delivery.proto",
}

// RegisterDeliveryServer registers srv on r.
func RegisterDeliveryServer(r grpc.ServiceRegistrar, srv DeliveryServer) {
	r.RegisterService(&serviceDesc, srv)
}

func unaryHandler(fullMethod string, fn unaryMethod) func(any, context.Context, func(any) error, grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		req := &structpb.Struct{}
		if err := dec(req); err != nil {
			return nil, err
		}
		svc := srv.(DeliveryServer)
		if interceptor == nil {
			return fn(svc, ctx, req)
		}
		info := &grpc.UnaryServerInfo{
			Server:     srv,
			FullMethod: fullMethod,
		}
		handler := func(ctx context.Context, req any) (any, error) {
			typed, ok := req.(*structpb.Struct)
			if !ok {
				return nil, status.Error(codes.InvalidArgument, "invalid request type")
			}
			return fn(svc, ctx, typed)
		}
		return interceptor(ctx, req, info, handler)
	}
}
