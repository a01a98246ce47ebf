package detector

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/h0tp-ftw/alarm-audio-detector/internal/domain/alarm"
	"github.com/h0tp-ftw/alarm-audio-detector/internal/logger"
	repo "github.com/h0tp-ftw/alarm-audio-detector/internal/repository/state"
)

// subscriberBuffer is how many pending states a slow watcher may lag behind.
const subscriberBuffer = 4

// service keeps the current detection state, persists it and fans it out to watchers.
// It is unexported to keep the transport decoupled from the implementation.
type service struct {
	// repo handles persistent storage of the detection state.
	repo repo.Repository
	// state is the current in-memory detection state.
	state *alarm.State
	// subscribers receive every state change.
	subscribers map[chan *alarm.State]struct{}
	closed      bool
	// mu protects the fields above.
	mu sync.RWMutex
}

// newService creates a service backed by the provided repository.
// A persisted state is restored for reference but never as active:
// the dwell window that raised it did not survive the restart.
func newService(ctx context.Context, repository repo.Repository) (*service, error) {
	s := &service{
		repo:        repository,
		state:       new(alarm.State),
		subscribers: make(map[chan *alarm.State]struct{}),
	}

	if repository == nil {
		return s, nil
	}

	state, err := repository.Load(ctx)
	switch {
	case err == nil:
		if state != nil {
			s.state = state
			s.state.Active = false
		}
	case errors.Is(err, repo.ErrNotFound):
		// Keep default state.
	default:
		return nil, fmt.Errorf("load state: %w", err)
	}

	return s, nil
}

// Update records a new state. Persistence failures are logged and do not stop detection.
func (s *service) Update(ctx context.Context, state *alarm.State) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}

	s.state = state.Clone()

	if s.repo != nil {
		if err := s.repo.Save(ctx, s.state); err != nil {
			logger.ErrorKV(ctx, "Failed to persist detection state", "error", err)
		}
	}

	for subscriber := range s.subscribers {
		select {
		case subscriber <- s.state.Clone():
		default:
			logger.DebugKV(ctx, "Slow state watcher skipped a change", "detection_id", s.state.DetectionID)
		}
	}
}

// GetDetectorState returns the current detection state.
func (s *service) GetDetectorState(context.Context) *alarm.State {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.state.Clone()
}

// Subscribe registers a watcher. The returned channel is closed by cancel or Close.
func (s *service) Subscribe(context.Context) (<-chan *alarm.State, func()) {
	updates := make(chan *alarm.State, subscriberBuffer)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		close(updates)

		return updates, func() {}
	}

	s.subscribers[updates] = struct{}{}

	var once sync.Once

	return updates, func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()

			if _, ok := s.subscribers[updates]; ok {
				delete(s.subscribers, updates)
				close(updates)
			}
		})
	}
}

// Close ends every subscription and ignores later updates.
func (s *service) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true

	for subscriber := range s.subscribers {
		delete(s.subscribers, subscriber)
		close(subscriber)
	}
}
