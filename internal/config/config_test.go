package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestValidate checks required fields, defaults and field constraints.
func TestValidate(t *testing.T) {
	t.Parallel()

	// Missing socket.
	settings := new(Config)

	err := Validate(settings)
	require.Error(t, err)

	// Bad socket.
	settings = &Config{
		ServerAddress: "bad:address",
	}

	err = Validate(settings)
	require.Error(t, err)

	// Defaults are filled in.
	settings = &Config{
		ServerAddress: "127.0.0.1:0",
	}

	require.NoError(t, Validate(settings))
	require.Equal(t, DefaultTimeout, settings.Timeout)
	require.Equal(t, DefaultStateFilename, settings.StateFile)
	require.Equal(t, DefaultSampleRate, settings.Audio.SampleRate)
	require.Equal(t, DefaultChunkSize, settings.Audio.ChunkSize)
	require.Equal(t, DefaultDwell, settings.Detection.Dwell)

	// Constraints are reported by their YAML path.
	settings = &Config{
		ServerAddress: "127.0.0.1:0",
		LogLevel:      "verbose",
		Audio:         Audio{ChunkSize: 8},
		Quality:       Quality{MinEnergyRatio: 1.5},
	}

	err = Validate(settings)
	require.ErrorIs(t, err, ErrInvalidSettings)
	require.ErrorContains(t, err, "log_level must be one of")
	require.ErrorContains(t, err, "audio.chunk_size must be greater than or equal to 16")
	require.ErrorContains(t, err, "quality.min_energy_ratio must be less than 1")
}

// TestDefault returns valid settings for the local detector.
func TestDefault(t *testing.T) {
	t.Parallel()

	settings := Default()
	require.Equal(t, DefaultServerAddress, settings.ServerAddress)
	require.NoError(t, Validate(settings))
}

// TestSaveLoadRoundtrip ensures settings are persisted and loaded back correctly.
func TestSaveLoadRoundtrip(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "settings.yaml")

	settings := &Config{
		ServerAddress: "127.0.0.1:50051",
		ProfilesFile:  "profiles.yaml",
		LogLevel:      "debug",
		Audio:         Audio{SampleRate: 48000, ChunkSize: 2048},
		Detection:     Detection{HighPrecision: true, WatchProfiles: true},
		Events:        Events{DropoutTolerance: 0.2},
	}

	require.NoError(t, Save(path, settings))

	loaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, settings, loaded)

	// File exists with restricted permissions.
	info, err := os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(DefaultFilePermissions), info.Mode().Perm())
}

// TestLoadOrDefault falls back to defaults only for a missing file.
func TestLoadOrDefault(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	settings, err := LoadOrDefault(filepath.Join(dir, "missing.yaml"))
	require.NoError(t, err)
	require.Equal(t, Default(), settings)

	broken := filepath.Join(dir, "broken.yaml")
	require.NoError(t, os.WriteFile(broken, []byte("server_addr: [\n"), DefaultFilePermissions))

	_, err = LoadOrDefault(broken)
	require.Error(t, err)
}

// TestSave_Nil rejects a missing configuration.
func TestSave_Nil(t *testing.T) {
	t.Parallel()

	require.Error(t, Save(filepath.Join(t.TempDir(), "x.yaml"), nil))
}
