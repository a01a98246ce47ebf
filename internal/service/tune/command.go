package tune

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/h0tp-ftw/alarm-audio-detector/internal/config"
	"github.com/h0tp-ftw/alarm-audio-detector/internal/detect/tuner"
	"github.com/h0tp-ftw/alarm-audio-detector/internal/domain/alarm"
	"github.com/h0tp-ftw/alarm-audio-detector/internal/logger"
	"github.com/h0tp-ftw/alarm-audio-detector/internal/repository/profile"
	"github.com/h0tp-ftw/alarm-audio-detector/internal/service/common"
)

// DefaultName names the profile proposed from standard input.
const DefaultName = "tuned"

// Options controls a tuning run.
type Options struct {
	// ConfigPath specifies the path to settings YAML file.
	ConfigPath string
	// Input is the recording path; "-" reads standard input.
	Input string
	// WAV forces RIFF/WAVE parsing of the input.
	WAV bool
	// Name is the proposed profile name. Empty derives it from the input file name.
	Name string
	// OutputPath receives the profiles file. Empty writes the YAML to Output instead.
	OutputPath string
	// Output receives the YAML when OutputPath is empty. Nil discards it.
	Output io.Writer
}

// Run analyses the whole recording and proposes a profile.
func Run(ctx context.Context, opts *Options) (*tuner.Result, error) {
	ctx = logger.WithName(ctx, "tune")

	settings, err := config.LoadOrDefault(opts.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}

	input, err := common.OpenInput(opts.Input, opts.WAV, settings)
	if err != nil {
		return nil, fmt.Errorf("open input: %w", err)
	}

	defer input.Close() //nolint:errcheck // Read-only source.

	engineOptions := common.EngineOptions(settings, input.SampleRate)

	cfg := tuner.DefaultConfig(input.SampleRate, settings.Audio.ChunkSize)
	cfg.Spectral = engineOptions.Spectral
	cfg.Events = engineOptions.Events

	t, err := tuner.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("initialise tuner: %w", err)
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

		t.Ingest(ctx, chunk)
	}

	result, err := t.Propose(ctx, profileName(opts))
	if err != nil {
		return nil, err
	}

	for _, warning := range result.Warnings {
		logger.WarnKV(ctx, "Tuning warning", "warning", warning, "confidence", result.Confidence)
	}

	if err = write(opts, &result.Profile); err != nil {
		return nil, err
	}

	logger.InfoKV(ctx, "Tuning finished",
		"stream_time", t.Clock(), "profile", result.Profile.Name, "confidence", result.Confidence)

	return result, nil
}

func write(opts *Options, p *alarm.Profile) error {
	profiles := []alarm.Profile{*p}

	if opts.OutputPath != "" {
		return profile.Save(opts.OutputPath, profiles)
	}

	if opts.Output == nil {
		return nil
	}

	data, err := profile.Marshal(profiles)
	if err != nil {
		return err
	}

	if _, err = opts.Output.Write(data); err != nil {
		return fmt.Errorf("write profile: %w", err)
	}

	return nil
}

func profileName(opts *Options) string {
	if name := strings.TrimSpace(opts.Name); name != "" {
		return name
	}

	if opts.Input == "" || opts.Input == common.StdinInput {
		return DefaultName
	}

	base := filepath.Base(opts.Input)

	if name := strings.TrimSuffix(base, filepath.Ext(base)); name != "" {
		return name
	}

	return DefaultName
}
