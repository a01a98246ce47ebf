package integration

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/h0tp-ftw/alarm-audio-detector/internal/audio/audiotest"
	"github.com/h0tp-ftw/alarm-audio-detector/internal/config"
	"github.com/h0tp-ftw/alarm-audio-detector/internal/domain/alarm"
	"github.com/h0tp-ftw/alarm-audio-detector/internal/repository/profile"
	repository "github.com/h0tp-ftw/alarm-audio-detector/internal/repository/state"
	"github.com/h0tp-ftw/alarm-audio-detector/internal/service/common"
	"github.com/h0tp-ftw/alarm-audio-detector/internal/service/detector"
	"github.com/h0tp-ftw/alarm-audio-detector/internal/service/status"
)

// reservePort returns a free loopback address.
func reservePort(t *testing.T) string {
	t.Helper()

	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	addr := l.Addr().String()
	require.NoError(t, l.Close())

	return addr
}

// fixture writes settings, a profiles file and a raw PCM capture with the given beep count.
type fixture struct {
	addr       string
	configPath string
	statePath  string
	inputPath  string
}

func newFixture(t *testing.T, beeps int, dwell time.Duration) *fixture {
	t.Helper()

	dir := t.TempDir()

	smoke, err := profile.Preset(profile.PresetSmoke)
	require.NoError(t, err)

	smoke.Name = "hallway"
	profilesPath := filepath.Join(dir, "profiles.yaml")
	require.NoError(t, profile.Save(profilesPath, []alarm.Profile{smoke}))

	f := &fixture{
		addr:       reservePort(t),
		configPath: filepath.Join(dir, "settings.yaml"),
		statePath:  filepath.Join(dir, "state.json"),
		inputPath:  filepath.Join(dir, "capture.pcm"),
	}

	settings := config.Default()
	settings.ServerAddress = f.addr
	settings.StateFile = f.statePath
	settings.ProfilesFile = profilesPath
	settings.Timeout = 2 * time.Second
	settings.Detection.Dwell = dwell
	require.NoError(t, config.Save(f.configPath, settings))

	samples := audiotest.Cadence(config.DefaultSampleRate, 3150, 0.5, 0.5, 0.5, beeps, 1.0)
	require.NoError(t, os.WriteFile(f.inputPath, audiotest.PCM(samples), 0o600))

	return f
}

// start runs the detector in the background and waits until it accepts connections.
func (f *fixture) start(t *testing.T) (stop func() error) {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	ready := make(chan struct{})
	done := make(chan error, 1)

	go func() {
		done <- detector.Run(ctx, &detector.Options{
			ConfigPath:  f.configPath,
			Input:       f.inputPath,
			KeepServing: true,
			Ready:       func(string) { close(ready) },
		})
	}()

	select {
	case <-ready:
	case err := <-done:
		cancel()
		require.NoError(t, err)
		require.FailNow(t, "detector stopped before serving")
	case <-time.After(10 * time.Second):
		cancel()
		require.FailNow(t, "detector did not start")
	}

	return func() error {
		cancel()

		return <-done
	}
}

// TestDetector_WatchSeesDetectionAndClear streams the state of a detector analysing
// two cadence cycles and expects the detection to be raised and cleared after the dwell.
func TestDetector_WatchSeesDetectionAndClear(t *testing.T) {
	t.Parallel()

	f := newFixture(t, 6, 500*time.Millisecond)
	stop := f.start(t)

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	client, err := common.Dial(ctx, f.addr)
	require.NoError(t, err)

	defer func() {
		_ = client.Close()
	}()

	var (
		mu      sync.Mutex
		cleared *alarm.State
	)

	// The stream starts with a snapshot, so a detection that is already over is seen as cleared.
	err = client.WatchDetectorState(ctx, func(state *alarm.State) {
		if state.DetectionID == "" || state.Active {
			return
		}

		mu.Lock()
		cleared = state
		mu.Unlock()

		cancel()
	})
	require.NoError(t, err)

	mu.Lock()
	require.NotNil(t, cleared, "no cleared detection observed")
	require.Equal(t, "hallway", cleared.Profile)
	require.Equal(t, 2, cleared.CycleCount)
	mu.Unlock()

	require.NoError(t, stop())

	persisted, err := repository.NewFileRepository(f.statePath).Load(context.Background())
	require.NoError(t, err)
	require.Equal(t, cleared.DetectionID, persisted.DetectionID)
	require.False(t, persisted.Active)
}

// TestDetector_StatusPollsActiveState runs alarm-status against a detector whose
// dwell outlasts the test and checks the reported state.
func TestDetector_StatusPollsActiveState(t *testing.T) {
	t.Parallel()

	f := newFixture(t, 6, time.Minute)
	stop := f.start(t)

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	var active *alarm.State

	err := status.Run(ctx, &status.Options{
		ConfigPath:   f.configPath,
		PollInterval: 50 * time.Millisecond,
		OnState: func(state *alarm.State) {
			if state.Active && active == nil {
				active = state
				cancel()
			}
		},
	})
	require.NoError(t, err)
	require.NotNil(t, active)
	require.Equal(t, "hallway", active.Profile)

	require.NoError(t, stop())
}

// TestDetector_QuietInputNeverDetects keeps the state empty for a cadence that is too short.
func TestDetector_QuietInputNeverDetects(t *testing.T) {
	t.Parallel()

	f := newFixture(t, 3, time.Minute)
	stop := f.start(t)

	client, err := common.Dial(context.Background(), f.addr)
	require.NoError(t, err)

	defer func() {
		_ = client.Close()
	}()

	// Give the analysis time to finish; the whole capture is a few seconds of audio.
	time.Sleep(500 * time.Millisecond)

	state, err := client.GetDetectorState(context.Background())
	require.NoError(t, err)
	require.False(t, state.Active)
	require.Empty(t, state.DetectionID)

	require.NoError(t, stop())

	_, err = os.Stat(f.statePath)
	require.ErrorIs(t, err, os.ErrNotExist)
}
