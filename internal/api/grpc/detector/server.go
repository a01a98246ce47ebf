package detector

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/h0tp-ftw/alarm-audio-detector/internal/domain/alarm"
	"github.com/h0tp-ftw/alarm-audio-detector/internal/logger"
	pb "github.com/h0tp-ftw/alarm-audio-detector/internal/pb/v1"
)

// Service abstracts the business operations the transport layer depends on.
type Service interface {
	// GetDetectorState returns a snapshot of the current state.
	GetDetectorState(ctx context.Context) *alarm.State
	// Subscribe delivers every subsequent state change until cancel is called.
	// The channel is closed when the subscription ends.
	Subscribe(ctx context.Context) (updates <-chan *alarm.State, cancel func())
}

// Server implements the DetectorService gRPC API.
type Server struct {
	pb.UnimplementedDetectorServiceServer

	// service provides the detector state.
	service Service
}

// NewServer wires the provided service implementation into a gRPC handler.
func NewServer(service Service) *Server {
	return &Server{
		service: service,
	}
}

// GetDetectorState returns the current detector state.
func (s *Server) GetDetectorState(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	ctx = withCaller(ctx)

	state := s.service.GetDetectorState(ctx)

	logger.DebugKV(ctx, "Detector state requested", "active", state != nil && state.Active)

	return pb.StateToStruct(state), nil
}

// WatchDetectorState sends the current state, then every change until the client goes away.
func (s *Server) WatchDetectorState(_ *emptypb.Empty, stream grpc.ServerStreamingServer[structpb.Struct]) error {
	ctx := withCaller(stream.Context())

	// Subscribe before taking the snapshot so that no change can slip in between.
	updates, cancel := s.service.Subscribe(ctx)
	defer cancel()

	if err := stream.Send(pb.StateToStruct(s.service.GetDetectorState(ctx))); err != nil {
		return err
	}

	logger.DebugKV(ctx, "State watcher attached")

	for {
		select {
		case <-ctx.Done():
			return status.FromContextError(ctx.Err()).Err()
		case state, ok := <-updates:
			if !ok {
				return status.Error(codes.Unavailable, "detector is shutting down")
			}

			if err := stream.Send(pb.StateToStruct(state)); err != nil {
				return err
			}
		}
	}
}

// withCaller adds the caller identity sent by the client to the context logger.
func withCaller(ctx context.Context) context.Context {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ctx
	}

	hostname := md.Get(pb.MetadataActorHostname)
	username := md.Get(pb.MetadataActorUsername)

	if len(hostname) == 0 || len(username) == 0 {
		return ctx
	}

	return logger.WithFields(ctx, "caller_host", hostname[0], "caller_user", username[0])
}
