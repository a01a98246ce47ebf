//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/h0tp-ftw/alarm-audio-detector/internal/audio"
	"github.com/h0tp-ftw/alarm-audio-detector/internal/config"
	"github.com/h0tp-ftw/alarm-audio-detector/internal/detect/generator"
	"github.com/h0tp-ftw/alarm-audio-detector/internal/domain/alarm"
	"github.com/h0tp-ftw/alarm-audio-detector/internal/dsp/quality"
	"github.com/h0tp-ftw/alarm-audio-detector/internal/dsp/spectral"
	"github.com/h0tp-ftw/alarm-audio-detector/internal/engine"
	"github.com/h0tp-ftw/alarm-audio-detector/internal/repository/profile"
)

// StdinInput selects standard input as the PCM source.
const StdinInput = "-"

// LoadProfiles resolves a profile reference: empty selects the smoke preset,
// a preset name selects that preset, anything else is a YAML file path.
func LoadProfiles(ref string) ([]alarm.Profile, error) {
	if ref == "" {
		ref = profile.PresetSmoke
	}

	if profile.IsPreset(ref) {
		preset, err := profile.Preset(ref)
		if err != nil {
			return nil, err
		}

		return []alarm.Profile{preset}, nil
	}

	return profile.Load(ref)
}

// Input is an opened PCM source.
type Input struct {
	Reader audio.ChunkReader
	// SampleRate is the effective sample rate, taken from the WAV header when there is one.
	SampleRate int
	closer     io.Closer
}

// Close releases the underlying file. Standard input is left open.
func (i *Input) Close() error {
	if i.closer == nil {
		return nil
	}

	return i.closer.Close()
}

// OpenInput opens path (or stdin for "" and "-") as a chunked PCM source.
// WAV parsing is used when wav is set or the file has a .wav extension.
func OpenInput(path string, wav bool, settings *config.Config) (*Input, error) {
	var (
		src    io.Reader = os.Stdin
		closer io.Closer
	)

	if path != "" && path != StdinInput {
		file, err := os.Open(filepath.Clean(path))
		if err != nil {
			return nil, err
		}

		src, closer = file, file
		wav = wav || strings.EqualFold(filepath.Ext(path), ".wav")
	}

	input := &Input{
		SampleRate: settings.Audio.SampleRate,
		closer:     closer,
	}

	if !wav {
		reader, err := audio.NewReader(src, settings.Audio.ChunkSize)
		if err != nil {
			input.Close() //nolint:errcheck,gosec // The reader error is more relevant.

			return nil, err
		}

		input.Reader = reader

		return input, nil
	}

	reader, err := audio.NewWAVReader(src, settings.Audio.ChunkSize)
	if err != nil {
		input.Close() //nolint:errcheck,gosec // The header error is more relevant.

		return nil, err
	}

	input.Reader = reader
	input.SampleRate = reader.SampleRate()

	return input, nil
}

// EngineOptions translates settings into engine options for the given sample rate.
// Zero-valued thresholds in the settings keep the stage defaults.
func EngineOptions(settings *config.Config, sampleRate int) engine.Options {
	chunkSize := settings.Audio.ChunkSize

	spectralConfig := spectral.DefaultConfig(sampleRate, chunkSize)
	override(&spectralConfig.MinMagnitude, settings.Spectral.MinMagnitude)
	override(&spectralConfig.MinSharpness, settings.Spectral.MinSharpness)
	override(&spectralConfig.MaxPeaks, settings.Spectral.MaxPeaks)
	override(&spectralConfig.NoiseFloor, settings.Spectral.NoiseFloor)

	eventsConfig := generator.DefaultConfig(sampleRate, chunkSize)
	override(&eventsConfig.FrequencyTolerance, settings.Events.FrequencyTolerance)
	override(&eventsConfig.MinToneDuration, settings.Events.MinToneDuration)
	override(&eventsConfig.DropoutTolerance, settings.Events.DropoutTolerance)

	qualityConfig := quality.DefaultConfig()
	override(&qualityConfig.MinEnergyRatio, settings.Quality.MinEnergyRatio)
	override(&qualityConfig.MinPeakSharpness, settings.Quality.MinPeakSharpness)
	override(&qualityConfig.MaxFrequencyDeviation, settings.Quality.MaxFrequencyDeviation)
	override(&qualityConfig.MinMagnitudeConsistency, settings.Quality.MinMagnitudeConsistency)

	return engine.Options{
		Spectral:      spectralConfig,
		Events:        eventsConfig,
		Quality:       qualityConfig,
		SampleRate:    sampleRate,
		ChunkSize:     chunkSize,
		Dwell:         settings.Detection.Dwell,
		HighPrecision: settings.Detection.HighPrecision,
	}
}

func override[T int | float64](target *T, value T) {
	if value != 0 {
		*target = value
	}
}
