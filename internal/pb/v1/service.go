package v1

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "alarmdetector.v1.DetectorService"

const (
	// DetectorService_GetDetectorState_FullMethodName is the unary state query.
	DetectorService_GetDetectorState_FullMethodName = "/" + ServiceName + "/GetDetectorState" //nolint:revive,stylecheck // Mirrors protoc-gen-go-grpc naming.
	// DetectorService_WatchDetectorState_FullMethodName is the server streaming state feed.
	DetectorService_WatchDetectorState_FullMethodName = "/" + ServiceName + "/WatchDetectorState" //nolint:revive,stylecheck // Mirrors protoc-gen-go-grpc naming.
)

// DetectorServiceClient is the client API for DetectorService.
type DetectorServiceClient interface {
	// GetDetectorState returns the current detector state.
	GetDetectorState(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*structpb.Struct, error)
	// WatchDetectorState streams the current state followed by every change.
	WatchDetectorState(
		ctx context.Context,
		in *emptypb.Empty,
		opts ...grpc.CallOption,
	) (grpc.ServerStreamingClient[structpb.Struct], error)
}

type detectorServiceClient struct {
	cc grpc.ClientConnInterface
}

// NewDetectorServiceClient wraps a connection into a DetectorServiceClient.
func NewDetectorServiceClient(cc grpc.ClientConnInterface) DetectorServiceClient {
	return &detectorServiceClient{cc: cc}
}

func (c *detectorServiceClient) GetDetectorState(
	ctx context.Context,
	in *emptypb.Empty,
	opts ...grpc.CallOption,
) (*structpb.Struct, error) {
	out := new(structpb.Struct)

	if err := c.cc.Invoke(ctx, DetectorService_GetDetectorState_FullMethodName, in, out, opts...); err != nil {
		return nil, err
	}

	return out, nil
}

func (c *detectorServiceClient) WatchDetectorState(
	ctx context.Context,
	in *emptypb.Empty,
	opts ...grpc.CallOption,
) (grpc.ServerStreamingClient[structpb.Struct], error) {
	stream, err := c.cc.NewStream(
		ctx,
		&DetectorService_ServiceDesc.Streams[0],
		DetectorService_WatchDetectorState_FullMethodName,
		opts...,
	)
	if err != nil {
		return nil, err
	}

	x := &grpc.GenericClientStream[emptypb.Empty, structpb.Struct]{ClientStream: stream}
	if err = x.ClientStream.SendMsg(in); err != nil {
		return nil, err
	}

	if err = x.ClientStream.CloseSend(); err != nil {
		return nil, err
	}

	return x, nil
}

// DetectorServiceServer is the server API for DetectorService.
// Implementations must embed UnimplementedDetectorServiceServer.
type DetectorServiceServer interface {
	GetDetectorState(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	WatchDetectorState(*emptypb.Empty, grpc.ServerStreamingServer[structpb.Struct]) error
	mustEmbedUnimplementedDetectorServiceServer()
}

// UnimplementedDetectorServiceServer answers every call with codes.Unimplemented.
type UnimplementedDetectorServiceServer struct{}

// GetDetectorState is not implemented.
func (UnimplementedDetectorServiceServer) GetDetectorState(context.Context, *emptypb.Empty) (*structpb.Struct, error) {
	return nil, status.Error(codes.Unimplemented, "method GetDetectorState not implemented")
}

// WatchDetectorState is not implemented.
func (UnimplementedDetectorServiceServer) WatchDetectorState(
	*emptypb.Empty,
	grpc.ServerStreamingServer[structpb.Struct],
) error {
	return status.Error(codes.Unimplemented, "method WatchDetectorState not implemented")
}

func (UnimplementedDetectorServiceServer) mustEmbedUnimplementedDetectorServiceServer() {}

// RegisterDetectorServiceServer registers srv on the given registrar.
func RegisterDetectorServiceServer(s grpc.ServiceRegistrar, srv DetectorServiceServer) {
	s.RegisterService(&DetectorService_ServiceDesc, srv)
}

func _DetectorService_GetDetectorState_Handler( //nolint:revive // Mirrors protoc-gen-go-grpc naming.
	srv any,
	ctx context.Context,
	dec func(any) error,
	interceptor grpc.UnaryServerInterceptor,
) (any, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}

	if interceptor == nil {
		return srv.(DetectorServiceServer).GetDetectorState(ctx, in)
	}

	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: DetectorService_GetDetectorState_FullMethodName,
	}

	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(DetectorServiceServer).GetDetectorState(ctx, req.(*emptypb.Empty))
	}

	return interceptor(ctx, in, info, handler)
}

func _DetectorService_WatchDetectorState_Handler(srv any, stream grpc.ServerStream) error { //nolint:revive // Mirrors protoc-gen-go-grpc naming.
	in := new(emptypb.Empty)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}

	return srv.(DetectorServiceServer).WatchDetectorState(
		in,
		&grpc.GenericServerStream[emptypb.Empty, structpb.Struct]{ServerStream: stream},
	)
}

// DetectorService_ServiceDesc describes DetectorService for grpc.RegisterService.
//
//nolint:gochecknoglobals,revive,stylecheck // Service descriptors are package level by convention.
var DetectorService_ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*DetectorServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "GetDetectorState",
			Handler:    _DetectorService_GetDetectorState_Handler,
		},
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "WatchDetectorState",
			Handler:       _DetectorService_WatchDetectorState_Handler,
			ServerStreams: true,
		},
	},
	Metadata: "alarmdetector/v1/detector.proto",
}
