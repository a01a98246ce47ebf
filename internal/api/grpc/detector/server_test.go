package detector

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/emptypb"

	"github.com/h0tp-ftw/alarm-audio-detector/internal/domain/alarm"
	pb "github.com/h0tp-ftw/alarm-audio-detector/internal/pb/v1"
)

// fakeService implements the detector Service interface for unit testing the transport.
type fakeService struct {
	mu sync.Mutex
	// state is returned by GetDetectorState.
	state *alarm.State
	// updates is handed to the single subscriber.
	updates chan *alarm.State
	// subscribed is closed once Subscribe has been called.
	subscribed chan struct{}
	once       sync.Once
}

func newFakeService(state *alarm.State) *fakeService {
	return &fakeService{
		state:      state,
		updates:    make(chan *alarm.State, 4),
		subscribed: make(chan struct{}),
	}
}

// GetDetectorState returns the current state stored in the fake service.
func (f *fakeService) GetDetectorState(context.Context) *alarm.State {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.state.Clone()
}

// Subscribe hands out the shared updates channel.
func (f *fakeService) Subscribe(context.Context) (<-chan *alarm.State, func()) {
	f.once.Do(func() { close(f.subscribed) })

	return f.updates, func() {}
}

// dial starts an in-memory gRPC server for svc and returns a connected client.
func dial(t *testing.T, svc Service) pb.DetectorServiceClient {
	t.Helper()

	lis := bufconn.Listen(1 << 16)
	srv := grpc.NewServer()
	pb.RegisterDetectorServiceServer(srv, NewServer(svc))

	go func() {
		_ = srv.Serve(lis) //nolint:errcheck // Serve returns once the test stops the server.
	}()

	conn, err := grpc.NewClient(
		"passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = conn.Close()
		srv.Stop()
	})

	return pb.NewDetectorServiceClient(conn)
}

// TestServer_GetDetectorState ensures the unary call carries every state field.
func TestServer_GetDetectorState(t *testing.T) {
	t.Parallel()

	timestamp := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	client := dial(t, newFakeService(&alarm.State{
		Timestamp:   timestamp,
		Profile:     "smoke",
		DetectionID: "id-1",
		CycleCount:  2,
		Active:      true,
	}))

	response, err := client.GetDetectorState(context.Background(), new(emptypb.Empty))
	require.NoError(t, err)

	state, err := pb.StateFromStruct(response)
	require.NoError(t, err)
	require.True(t, state.Active)
	require.Equal(t, "smoke", state.Profile)
	require.Equal(t, "id-1", state.DetectionID)
	require.Equal(t, 2, state.CycleCount)
	require.True(t, timestamp.Equal(state.Timestamp))
}

// TestServer_GetDetectorState_Empty ensures a detector that never fired reports an inactive state.
func TestServer_GetDetectorState_Empty(t *testing.T) {
	t.Parallel()

	server := NewServer(newFakeService(nil))

	response, err := server.GetDetectorState(context.Background(), new(emptypb.Empty))
	require.NoError(t, err)
	require.False(t, response.GetFields()[pb.KeyActive].GetBoolValue())
}

// TestServer_WatchDetectorState streams the snapshot followed by pushed changes.
func TestServer_WatchDetectorState(t *testing.T) {
	t.Parallel()

	svc := newFakeService(&alarm.State{Profile: "co"})
	client := dial(t, svc)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	stream, err := client.WatchDetectorState(ctx, new(emptypb.Empty))
	require.NoError(t, err)

	first, err := stream.Recv()
	require.NoError(t, err)
	require.Equal(t, "co", first.GetFields()[pb.KeyProfile].GetStringValue())
	require.False(t, first.GetFields()[pb.KeyActive].GetBoolValue())

	<-svc.subscribed
	svc.updates <- &alarm.State{Profile: "co", Active: true, DetectionID: "id-2", CycleCount: 2}

	second, err := stream.Recv()
	require.NoError(t, err)

	state, err := pb.StateFromStruct(second)
	require.NoError(t, err)
	require.True(t, state.Active)
	require.Equal(t, "id-2", state.DetectionID)
}

// TestServer_WatchDetectorState_Closed ends the stream with Unavailable when the service shuts down.
func TestServer_WatchDetectorState_Closed(t *testing.T) {
	t.Parallel()

	svc := newFakeService(new(alarm.State))
	client := dial(t, svc)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	stream, err := client.WatchDetectorState(ctx, new(emptypb.Empty))
	require.NoError(t, err)

	_, err = stream.Recv()
	require.NoError(t, err)

	<-svc.subscribed
	close(svc.updates)

	_, err = stream.Recv()
	require.Equal(t, codes.Unavailable, status.Code(err))
}
