package profile

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/h0tp-ftw/alarm-audio-detector/internal/domain/alarm"
)

// TestWatcher_Run delivers valid edits and skips broken ones.
func TestWatcher_Run(t *testing.T) {
	t.Parallel()

	var (
		dir  = t.TempDir()
		path = filepath.Join(dir, "profiles.yaml")
	)

	smoke, err := Preset(PresetSmoke)
	require.NoError(t, err)
	require.NoError(t, Save(path, []alarm.Profile{smoke}))

	changes := make(chan []alarm.Profile, 4)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)

	go func() {
		done <- NewWatcher(path, func(p []alarm.Profile) { changes <- p }).
			WithSettleDelay(20 * time.Millisecond).
			Run(ctx)
	}()

	// Give the watcher time to register the directory.
	time.Sleep(200 * time.Millisecond)

	co, err := Preset(PresetCO)
	require.NoError(t, err)
	require.NoError(t, Save(path, []alarm.Profile{co}))

	select {
	case profiles := <-changes:
		require.Len(t, profiles, 1)
		require.Equal(t, PresetCO, profiles[0].Name)
	case <-time.After(5 * time.Second):
		t.Fatal("profile change was not delivered")
	}

	// A broken file and an unrelated file are not delivered.
	require.NoError(t, os.WriteFile(path, []byte("name: ["), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.yaml"), []byte("x: 1"), 0o600))

	select {
	case profiles := <-changes:
		t.Fatalf("unexpected reload: %v", profiles)
	case <-time.After(300 * time.Millisecond):
	}

	cancel()
	require.NoError(t, <-done)
}

// TestWatcher_MissingDirectory fails fast.
func TestWatcher_MissingDirectory(t *testing.T) {
	t.Parallel()

	err := Watch(context.Background(), filepath.Join(t.TempDir(), "missing", "profiles.yaml"), func([]alarm.Profile) {})
	require.Error(t, err)
}
