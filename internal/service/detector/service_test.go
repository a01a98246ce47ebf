package detector

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/h0tp-ftw/alarm-audio-detector/internal/domain/alarm"
	repo "github.com/h0tp-ftw/alarm-audio-detector/internal/repository/state"
)

var (
	errTestLoad = errors.New("test load error")
	errTestSave = errors.New("test save error")
)

// memoryRepository is a minimal in-memory Repository implementation for tests.
type memoryRepository struct {
	mu sync.Mutex
	// state is the detection state to return from Load operations.
	state *alarm.State
	// loadErr is the error to return from Load operations.
	loadErr error
	// saveErr is the error to return from Save operations.
	saveErr error
	// saved stores every state passed to Save.
	saved []*alarm.State
}

// Load returns the configured state and error.
func (m *memoryRepository) Load(context.Context) (*alarm.State, error) {
	return m.state, m.loadErr
}

// Save records the provided state and returns the configured error.
func (m *memoryRepository) Save(_ context.Context, s *alarm.State) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.saved = append(m.saved, s.Clone())

	return m.saveErr
}

// TestNewService_LoadsState verifies restore, not-found and failure paths.
func TestNewService_LoadsState(t *testing.T) {
	t.Parallel()

	old := &alarm.State{
		Timestamp:   time.Now().Add(-time.Minute),
		Profile:     "smoke",
		DetectionID: "previous",
		CycleCount:  2,
		Active:      true,
	}

	s, err := newService(context.Background(), &memoryRepository{state: old})
	require.NoError(t, err)
	require.Equal(t, "previous", s.state.DetectionID)
	require.False(t, s.state.Active, "a restored state must not be active")

	// Not found -> default.
	s, err = newService(context.Background(), &memoryRepository{loadErr: repo.ErrNotFound})
	require.NoError(t, err)
	require.False(t, s.state.Active)
	require.Empty(t, s.state.DetectionID)

	// Other error.
	s, err = newService(context.Background(), &memoryRepository{loadErr: errTestLoad})
	require.Error(t, err)
	require.Nil(t, s)
}

// TestService_UpdateAndGet verifies Update persists a copy and GetDetectorState returns the latest state.
func TestService_UpdateAndGet(t *testing.T) {
	t.Parallel()

	repository := new(memoryRepository)
	s, err := newService(context.Background(), repository)
	require.NoError(t, err)

	update := &alarm.State{Profile: "co", DetectionID: "d1", CycleCount: 2, Active: true}
	s.Update(context.Background(), update)

	current := s.GetDetectorState(context.Background())
	require.True(t, current.Active)
	require.Equal(t, "d1", current.DetectionID)
	require.NotSame(t, update, current)
	require.Len(t, repository.saved, 1)
}

// TestService_Update_PersistFailure keeps serving the new state when saving fails.
func TestService_Update_PersistFailure(t *testing.T) {
	t.Parallel()

	s, err := newService(context.Background(), &memoryRepository{saveErr: errTestSave})
	require.NoError(t, err)

	s.Update(context.Background(), &alarm.State{Active: true})
	require.True(t, s.GetDetectorState(context.Background()).Active)
}

// TestService_Subscribe delivers changes, skips a full watcher and closes on cancel.
func TestService_Subscribe(t *testing.T) {
	t.Parallel()

	s, err := newService(context.Background(), nil)
	require.NoError(t, err)

	updates, cancel := s.Subscribe(context.Background())

	s.Update(context.Background(), &alarm.State{Active: true, DetectionID: "first"})

	state := <-updates
	require.Equal(t, "first", state.DetectionID)

	// Overfill: the service must not block on a watcher that does not read.
	for range subscriberBuffer + 3 {
		s.Update(context.Background(), &alarm.State{DetectionID: "burst"})
	}

	require.Len(t, updates, subscriberBuffer)

	cancel()
	cancel()

	drained := 0
	for range updates {
		drained++
	}

	require.Equal(t, subscriberBuffer, drained)
}

// TestService_Close ends subscriptions and rejects new ones.
func TestService_Close(t *testing.T) {
	t.Parallel()

	s, err := newService(context.Background(), nil)
	require.NoError(t, err)

	updates, cancel := s.Subscribe(context.Background())
	defer cancel()

	s.Close()

	_, ok := <-updates
	require.False(t, ok)

	late, _ := s.Subscribe(context.Background())
	_, ok = <-late
	require.False(t, ok)

	s.Update(context.Background(), &alarm.State{Active: true})
	require.False(t, s.GetDetectorState(context.Background()).Active)
}
