package gameserver

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully-qualified gRPC service name. Requests and
// responses are google.protobuf.Struct messages.
const ServiceName = "game2048.v1.EnvironmentService"

// EnvironmentServiceServer is the server API for the environment service.
type EnvironmentServiceServer interface {
	CreateGame(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Step(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetState(context.Context, *structpb.Struct) (*structpb.Struct, error)
	CopyGame(context.Context, *structpb.Struct) (*structpb.Struct, error)
	RestoreGame(context.Context, *structpb.Struct) (*structpb.Struct, error)
	CloseGame(context.Context, *structpb.Struct) (*structpb.Struct, error)
	SampleExperiences(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

type unaryMethod func(EnvironmentServiceServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unaryHandler(method string, call unaryMethod) func(interface{}, context.Context, func(interface{}) error, grpc.UnaryServerInterceptor) (interface{}, error) {
	return func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(EnvironmentServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{
			Server:     srv,
			FullMethod: "/" + ServiceName + "/" + method,
		}
		handler := func(ctx context.Context, req interface{}) (interface{}, error) {
			return call(srv.(EnvironmentServiceServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// EnvironmentService_ServiceDesc describes the environment service for grpc.Server.
var EnvironmentService_ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*EnvironmentServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "CreateGame", Handler: unaryHandler("CreateGame", EnvironmentServiceServer.CreateGame)},
		{MethodName: "Step", Handler: unaryHandler("Step", EnvironmentServiceServer.Step)},
		{MethodName: "GetState", Handler: unaryHandler("GetState", EnvironmentServiceServer.GetState)},
		{MethodName: "CopyGame", Handler: unaryHandler("CopyGame", EnvironmentServiceServer.CopyGame)},
		{MethodName: "RestoreGame", Handler: unaryHandler("RestoreGame", EnvironmentServiceServer.RestoreGame)},
		{MethodName: "CloseGame", Handler: unaryHandler("CloseGame", EnvironmentServiceServer.CloseGame)},
		{MethodName: "SampleExperiences", Handler: unaryHandler("SampleExperiences", EnvironmentServiceServer.SampleExperiences)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "game2048/v1/environment.proto",
}

func RegisterEnvironmentServiceServer(s grpc.ServiceRegistrar, srv EnvironmentServiceServer) {
	s.RegisterService(&EnvironmentService_ServiceDesc, srv)
}

// EnvironmentServiceClient calls the environment service over cc.
type EnvironmentServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewEnvironmentServiceClient(cc grpc.ClientConnInterface) *EnvironmentServiceClient {
	return &EnvironmentServiceClient{cc: cc}
}

func (c *EnvironmentServiceClient) invoke(ctx context.Context, method string, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, "/"+ServiceName+"/"+method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *EnvironmentServiceClient) CreateGame(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, "CreateGame", in, opts...)
}

func (c *EnvironmentServiceClient) Step(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, "Step", in, opts...)
}

func (c *EnvironmentServiceClient) GetState(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, "GetState", in, opts...)
}

func (c *EnvironmentServiceClient) CopyGame(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, "CopyGame", in, opts...)
}

func (c *EnvironmentServiceClient) RestoreGame(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, "RestoreGame", in, opts...)
}

func (c *EnvironmentServiceClient) CloseGame(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, "CloseGame", in, opts...)
}

func (c *EnvironmentServiceClient) SampleExperiences(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, "SampleExperiences", in, opts...)
}
