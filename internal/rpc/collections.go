// Package rpc describes the portal.v1.Collections gRPC service. Requests and
// responses are google.protobuf.Struct messages carrying the same JSON
// objects the REST API exchanges, so both transports share one record shape.
package rpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully-qualified gRPC service name.
const ServiceName = "portal.v1.Collections"

// Method names of the Collections service.
const (
	MethodList         = "List"
	MethodGet          = "Get"
	MethodCreate       = "Create"
	MethodUpdate       = "Update"
	MethodUpdateStatus = "UpdateStatus"
	MethodDelete       = "Delete"
	MethodStats        = "Stats"
	MethodHealth       = "Health"
)

// FullMethod returns the "/service/method" path of a Collections method.
func FullMethod(method string) string {
	return "/" + ServiceName + "/" + method
}

// CollectionsServer is the server API for the Collections service.
//
// Every request carries a "resource" key naming the collection. List takes
// page, limit, search, filters, sort_by and sort_order and answers with
// items and pagination; the single-record methods answer with record.
type CollectionsServer interface {
	List(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Get(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Create(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Update(context.Context, *structpb.Struct) (*structpb.Struct, error)
	UpdateStatus(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Delete(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Stats(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Health(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

type serverCall func(CollectionsServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unaryHandler(method string, call serverCall) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(CollectionsServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: FullMethod(method)}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(CollectionsServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// CollectionsServiceDesc is the grpc.ServiceDesc for the Collections service.
var CollectionsServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*CollectionsServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: MethodList, Handler: unaryHandler(MethodList, CollectionsServer.List)},
		{MethodName: MethodGet, Handler: unaryHandler(MethodGet, CollectionsServer.Get)},
		{MethodName: MethodCreate, Handler: unaryHandler(MethodCreate, CollectionsServer.Create)},
		{MethodName: MethodUpdate, Handler: unaryHandler(MethodUpdate, CollectionsServer.Update)},
		{MethodName: MethodUpdateStatus, Handler: unaryHandler(MethodUpdateStatus, CollectionsServer.UpdateStatus)},
		{MethodName: MethodDelete, Handler: unaryHandler(MethodDelete, CollectionsServer.Delete)},
		{MethodName: MethodStats, Handler: unaryHandler(MethodStats, CollectionsServer.Stats)},
		{MethodName: MethodHealth, Handler: unaryHandler(MethodHealth, CollectionsServer.Health)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "portal/v1/collections.proto",
}

// RegisterCollectionsServer registers srv on s.
func RegisterCollectionsServer(s grpc.ServiceRegistrar, srv CollectionsServer) {
	s.RegisterService(&CollectionsServiceDesc, srv)
}

// CollectionsClient is the client API for the Collections service.
type CollectionsClient struct {
	cc grpc.ClientConnInterface
}

// NewCollectionsClient wraps a connection.
func NewCollectionsClient(cc grpc.ClientConnInterface) *CollectionsClient {
	return &CollectionsClient{cc: cc}
}

// Call invokes method with in and returns the response struct.
func (c *CollectionsClient) Call(ctx context.Context, method string, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, FullMethod(method), in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
