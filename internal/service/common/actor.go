//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common

import (
	"context"
	"fmt"
	"os"
	"os/user"

	"google.golang.org/grpc/metadata"

	pb "github.com/h0tp-ftw/alarm-audio-detector/internal/pb/v1"
)

// Actor identifies the host and user running a client, for the server's logs.
type Actor struct {
	Hostname string
	Username string
}

// DetectActor gathers host and user information of the current process.
func DetectActor() (*Actor, error) {
	hostname, err := os.Hostname()
	if err != nil {
		return nil, fmt.Errorf("hostname: %w", err)
	}

	currentUser, err := user.Current()
	if err != nil {
		return nil, fmt.Errorf("current user: %w", err)
	}

	return &Actor{
		Hostname: hostname,
		Username: currentUser.Username,
	}, nil
}

// outgoing attaches the actor to the outgoing gRPC metadata.
func (a *Actor) outgoing(ctx context.Context) context.Context {
	if a == nil {
		return ctx
	}

	return metadata.AppendToOutgoingContext(ctx,
		pb.MetadataActorHostname, a.Hostname,
		pb.MetadataActorUsername, a.Username,
	)
}
