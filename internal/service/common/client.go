//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"

	"github.com/h0tp-ftw/alarm-audio-detector/internal/config"
	"github.com/h0tp-ftw/alarm-audio-detector/internal/domain/alarm"
	pb "github.com/h0tp-ftw/alarm-audio-detector/internal/pb/v1"
)

// Client wraps the gRPC DetectorService client with convenience helpers.
type Client struct {
	// conn is the underlying gRPC connection to the detector.
	conn *grpc.ClientConn
	// api is the DetectorService client interface.
	api pb.DetectorServiceClient
	// actor is attached to every call when set.
	actor *Actor

	// callTimeout is the default timeout for unary calls.
	callTimeout time.Duration
	// dialOptions are appended to the default transport options.
	dialOptions []grpc.DialOption
}

// Option configures client behaviour.
type Option func(*Client)

// WithCallTimeout sets a default timeout for unary calls. Streams are not affected.
func WithCallTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.callTimeout = timeout
		}
	}
}

// WithActor identifies the caller to the server.
func WithActor(actor *Actor) Option {
	return func(c *Client) {
		c.actor = actor
	}
}

// WithDialOptions appends raw gRPC dial options, e.g. a custom dialer in tests.
func WithDialOptions(options ...grpc.DialOption) Option {
	return func(c *Client) {
		c.dialOptions = append(c.dialOptions, options...)
	}
}

// errAddressRequired is returned when a required address value is missing.
var errAddressRequired = errors.New("address must be provided")

// Dial establishes a gRPC connection to the detector.
// Note: this uses insecure transport credentials; deploy on a trusted network
// or terminate TLS in a proxy until native TLS is added.
func Dial(_ context.Context, address string, opts ...Option) (*Client, error) {
	if address == "" {
		return nil, errAddressRequired
	}

	client := &Client{
		callTimeout: config.DefaultTimeout,
	}

	for _, opt := range opts {
		opt(client)
	}

	dialOptions := append(
		[]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())},
		client.dialOptions...,
	)

	// Use the non-context NewClient API recommended by grpc-go
	// (DialContext is deprecated as of grpc-go v1.60+).
	conn, err := grpc.NewClient(address, dialOptions...)
	if err != nil {
		return nil, fmt.Errorf("dial detector: %w", err)
	}

	client.conn = conn
	client.api = pb.NewDetectorServiceClient(conn)

	return client, nil
}

// Close releases the underlying gRPC connection.
func (c *Client) Close() error {
	if c == nil || c.conn == nil {
		return nil
	}

	return c.conn.Close()
}

// GetDetectorState retrieves the current detector state.
func (c *Client) GetDetectorState(ctx context.Context) (*alarm.State, error) {
	callCtx, cancel := c.callContext(ctx)
	defer cancel()

	response, err := c.api.GetDetectorState(c.actor.outgoing(callCtx), new(emptypb.Empty))
	if err != nil {
		return nil, fmt.Errorf("get detector state: %w", err)
	}

	state, err := pb.StateFromStruct(response)
	if err != nil {
		return nil, fmt.Errorf("get detector state: %w", err)
	}

	return state, nil
}

// WatchDetectorState streams states into onState until the context is done
// or the server ends the stream. A canceled context is not an error.
func (c *Client) WatchDetectorState(ctx context.Context, onState func(*alarm.State)) error {
	stream, err := c.api.WatchDetectorState(c.actor.outgoing(ctx), new(emptypb.Empty))
	if err != nil {
		return fmt.Errorf("watch detector state: %w", err)
	}

	for {
		response, err := stream.Recv()
		if err != nil {
			if errors.Is(err, io.EOF) || ctx.Err() != nil || status.Code(err) == codes.Canceled {
				return nil
			}

			return fmt.Errorf("watch detector state: %w", err)
		}

		state, err := pb.StateFromStruct(response)
		if err != nil {
			return fmt.Errorf("watch detector state: %w", err)
		}

		onState(state)
	}
}

// callContext returns a context with the client's call timeout if configured,
// otherwise a cancellable child context without a deadline.
func (c *Client) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.callTimeout <= 0 {
		return context.WithCancel(ctx)
	}

	return context.WithTimeout(ctx, c.callTimeout)
}
