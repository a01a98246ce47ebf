//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/metadata"

	pb "github.com/h0tp-ftw/alarm-audio-detector/internal/pb/v1"
)

// TestDetectActor ensures hostname and username are detected and non-empty.
func TestDetectActor(t *testing.T) {
	t.Parallel()

	a, err := DetectActor()
	require.NoError(t, err)
	require.NotEmpty(t, a.Hostname)
	require.NotEmpty(t, a.Username)
}

// TestActor_outgoing verifies the actor travels as outgoing metadata.
func TestActor_outgoing(t *testing.T) {
	t.Parallel()

	ctx := (&Actor{Hostname: "kitchen-pi", Username: "pi"}).outgoing(context.Background())

	md, ok := metadata.FromOutgoingContext(ctx)
	require.True(t, ok)
	require.Equal(t, []string{"kitchen-pi"}, md.Get(pb.MetadataActorHostname))
	require.Equal(t, []string{"pi"}, md.Get(pb.MetadataActorUsername))

	var nilActor *Actor
	require.Equal(t, context.Background(), nilActor.outgoing(context.Background()))
}
