package grpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

// Fully qualified method names of the admin service.
const (
	ServiceName                = "timevault.admin.v1.AdminService"
	PingMethod                 = "/" + ServiceName + "/Ping"
	IssueCapabilityTokenMethod = "/" + ServiceName + "/IssueCapabilityToken"
	RunSweepMethod             = "/" + ServiceName + "/RunSweep"
)

// AdminServer is the server side of the admin API. Messages are well-known
// protobuf types so no generated code is needed.
type AdminServer interface {
	Ping(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	IssueCapabilityToken(context.Context, *structpb.Struct) (*structpb.Struct, error)
	RunSweep(context.Context, *emptypb.Empty) (*structpb.Struct, error)
}

func RegisterAdminServer(s grpc.ServiceRegistrar, srv AdminServer) {
	s.RegisterService(&adminServiceDesc, srv)
}

var adminServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*AdminServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Ping", Handler: pingHandler},
		{MethodName: "IssueCapabilityToken", Handler: issueCapabilityTokenHandler},
		{MethodName: "RunSweep", Handler: runSweepHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "timevault/admin/v1/admin.proto",
}

func pingHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(AdminServer).Ping(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: PingMethod}
	return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
		return srv.(AdminServer).Ping(ctx, req.(*emptypb.Empty))
	})
}

func issueCapabilityTokenHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(AdminServer).IssueCapabilityToken(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: IssueCapabilityTokenMethod}
	return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
		return srv.(AdminServer).IssueCapabilityToken(ctx, req.(*structpb.Struct))
	})
}

func runSweepHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(AdminServer).RunSweep(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: RunSweepMethod}
	return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
		return srv.(AdminServer).RunSweep(ctx, req.(*emptypb.Empty))
	})
}

// AdminClient calls the admin API over an established connection.
type AdminClient struct {
	cc grpc.ClientConnInterface
}

func NewAdminClient(cc grpc.ClientConnInterface) *AdminClient {
	return &AdminClient{cc: cc}
}

func (c *AdminClient) Ping(ctx context.Context, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, PingMethod, &emptypb.Empty{}, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *AdminClient) IssueCapabilityToken(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, IssueCapabilityTokenMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *AdminClient) RunSweep(ctx context.Context, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, RunSweepMethod, &emptypb.Empty{}, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
