package replay

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/h0tp-ftw/alarm-audio-detector/internal/config"
	"github.com/h0tp-ftw/alarm-audio-detector/internal/domain/alarm"
	"github.com/h0tp-ftw/alarm-audio-detector/internal/engine"
	"github.com/h0tp-ftw/alarm-audio-detector/internal/logger"
	"github.com/h0tp-ftw/alarm-audio-detector/internal/service/common"
)

// Options controls a replay run.
type Options struct {
	// ConfigPath specifies the path to settings YAML file.
	ConfigPath string
	// Profiles overrides the profiles file from the settings (a path or a preset name).
	Profiles string
	// Input is the recording path; "-" reads standard input.
	Input string
	// WAV forces RIFF/WAVE parsing of the input.
	WAV bool
	// HighPrecision enables the quality gate regardless of the settings.
	HighPrecision bool
	// Output receives one line per match. Nil discards them.
	Output io.Writer
}

// Result summarises a replay run.
type Result struct {
	// Matches lists every confirmed profile in stream order.
	Matches []alarm.PatternMatchEvent
	// Duration is the analysed stream time in seconds.
	Duration float64
	// Chunks is the number of analysed chunks.
	Chunks int
}

// Run analyses the whole input and returns the matches.
// Signal content never produces an error; only settings, profiles and I/O do.
func Run(ctx context.Context, opts *Options) (*Result, error) {
	ctx = logger.WithName(ctx, "replay")

	settings, err := config.LoadOrDefault(opts.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}

	profilesRef := settings.ProfilesFile
	if opts.Profiles != "" {
		profilesRef = opts.Profiles
	}

	profiles, err := common.LoadProfiles(profilesRef)
	if err != nil {
		return nil, fmt.Errorf("load profiles: %w", err)
	}

	input, err := common.OpenInput(opts.Input, opts.WAV, settings)
	if err != nil {
		return nil, fmt.Errorf("open input: %w", err)
	}

	defer input.Close() //nolint:errcheck // Read-only source.

	engineOptions := common.EngineOptions(settings, input.SampleRate)
	engineOptions.HighPrecision = engineOptions.HighPrecision || opts.HighPrecision

	eng, err := engine.New(profiles, engineOptions)
	if err != nil {
		return nil, fmt.Errorf("initialise engine: %w", err)
	}

	defer eng.Close()

	output := opts.Output
	if output == nil {
		output = io.Discard
	}

	result := new(Result)

	report := func(matches []alarm.PatternMatchEvent) error {
		for i := range matches {
			if _, err := fmt.Fprintf(output, "%.3f\t%s\tcycles=%d\n",
				matches[i].Timestamp, matches[i].Profile, matches[i].CycleCount); err != nil {
				return fmt.Errorf("write match: %w", err)
			}
		}

		result.Matches = append(result.Matches, matches...)

		return nil
	}

	for {
		if err = ctx.Err(); err != nil {
			return nil, err
		}

		chunk, err := input.Reader.ReadChunk()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				return nil, fmt.Errorf("read input: %w", err)
			}

			break
		}

		result.Chunks++

		if err = report(eng.Ingest(ctx, chunk)); err != nil {
			return nil, err
		}
	}

	if err = report(eng.Flush(ctx)); err != nil {
		return nil, err
	}

	result.Duration = eng.Clock()

	logger.InfoKV(ctx, "Replay finished",
		"stream_time", result.Duration, "chunks", result.Chunks, "matches", len(result.Matches))

	return result, nil
}
