package tune

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/h0tp-ftw/alarm-audio-detector/internal/audio/audiotest"
	"github.com/h0tp-ftw/alarm-audio-detector/internal/config"
	"github.com/h0tp-ftw/alarm-audio-detector/internal/detect/tuner"
	"github.com/h0tp-ftw/alarm-audio-detector/internal/repository/profile"
)

func writeFile(t *testing.T, name string, data []byte) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, data, 0o600))

	return path
}

// recording holds two cycles of a three-beep cadence.
func recording() []int16 {
	cycle := audiotest.Cadence(config.DefaultSampleRate, 3150, 0.5, 0.5, 0.5, 3, 1.0)

	return audiotest.Concat(cycle, cycle)
}

// TestRun_SavesProfile writes a loadable profiles file named after the recording.
func TestRun_SavesProfile(t *testing.T) {
	t.Parallel()

	output := filepath.Join(t.TempDir(), "hallway.yaml")

	result, err := Run(context.Background(), &Options{
		ConfigPath: filepath.Join(t.TempDir(), "missing.yaml"),
		Input:      writeFile(t, "hallway.wav", audiotest.WAV(config.DefaultSampleRate, recording())),
		OutputPath: output,
	})
	require.NoError(t, err)
	require.Equal(t, 3, result.Period)

	profiles, err := profile.Load(output)
	require.NoError(t, err)
	require.Len(t, profiles, 1)
	require.Equal(t, "hallway", profiles[0].Name)
	require.Len(t, profiles[0].Segments, 6)
	require.Equal(t, 2, profiles[0].ConfirmationCycles)
}

// TestRun_WritesYAML prints the proposal when no output file is given.
func TestRun_WritesYAML(t *testing.T) {
	t.Parallel()

	var output bytes.Buffer

	result, err := Run(context.Background(), &Options{
		ConfigPath: filepath.Join(t.TempDir(), "missing.yaml"),
		Input:      writeFile(t, "capture.pcm", audiotest.PCM(recording())),
		Name:       "kitchen",
		Output:     &output,
	})
	require.NoError(t, err)

	profiles, err := profile.Parse(output.Bytes())
	require.NoError(t, err)
	require.Len(t, profiles, 1)
	require.Equal(t, "kitchen", profiles[0].Name)
	require.Equal(t, result.Profile, profiles[0])
}

// TestRun_Errors reports unreadable inputs, silent recordings and cancellation.
func TestRun_Errors(t *testing.T) {
	t.Parallel()

	missing := filepath.Join(t.TempDir(), "missing.yaml")

	_, err := Run(context.Background(), &Options{ConfigPath: missing, Input: filepath.Join(t.TempDir(), "none.pcm")})
	require.ErrorIs(t, err, os.ErrNotExist)

	silent := writeFile(t, "silent.pcm", audiotest.PCM(audiotest.Silence(config.DefaultSampleRate, 2)))
	_, err = Run(context.Background(), &Options{ConfigPath: missing, Input: silent})
	require.ErrorIs(t, err, tuner.ErrNoTones)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = Run(ctx, &Options{ConfigPath: missing, Input: silent})
	require.ErrorIs(t, err, context.Canceled)
}

// TestProfileName derives the name from the input file.
func TestProfileName(t *testing.T) {
	t.Parallel()

	cases := map[string]struct {
		opts Options
		want string
	}{
		"explicit":   {opts: Options{Name: " garage ", Input: "x.wav"}, want: "garage"},
		"file":       {opts: Options{Input: "/tmp/smoke-hall.wav"}, want: "smoke-hall"},
		"stdin":      {opts: Options{Input: "-"}, want: DefaultName},
		"empty":      {opts: Options{}, want: DefaultName},
		"dot prefix": {opts: Options{Input: "/tmp/.wav"}, want: DefaultName},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			require.Equal(t, tc.want, profileName(&tc.opts))
		})
	}
}
