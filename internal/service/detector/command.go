package detector

import (
	"context"
	"errors"
	"fmt"
	"net"

	"google.golang.org/grpc"

	api "github.com/h0tp-ftw/alarm-audio-detector/internal/api/grpc/detector"
	"github.com/h0tp-ftw/alarm-audio-detector/internal/audio"
	"github.com/h0tp-ftw/alarm-audio-detector/internal/config"
	"github.com/h0tp-ftw/alarm-audio-detector/internal/domain/alarm"
	"github.com/h0tp-ftw/alarm-audio-detector/internal/engine"
	"github.com/h0tp-ftw/alarm-audio-detector/internal/logger"
	pb "github.com/h0tp-ftw/alarm-audio-detector/internal/pb/v1"
	"github.com/h0tp-ftw/alarm-audio-detector/internal/repository/profile"
	repository "github.com/h0tp-ftw/alarm-audio-detector/internal/repository/state"
	"github.com/h0tp-ftw/alarm-audio-detector/internal/service/common"
)

// Options controls the alarm-detector process and configuration.
type Options struct {
	// ConfigPath specifies the path to settings YAML file.
	ConfigPath string
	// Profiles overrides the profiles file from the settings (a path or a preset name).
	Profiles string
	// Input is the PCM source path; empty or "-" reads standard input.
	Input string
	// WAV forces RIFF/WAVE parsing of the input.
	WAV bool
	// ListenAddress provides an optional listen address override for the gRPC server.
	ListenAddress string
	// StateFile specifies the path to persist the detection state JSON.
	StateFile string
	// KeepServing keeps the gRPC server up after the input ends until the context is canceled.
	KeepServing bool
	// Ready, when set, receives the bound listen address once the server accepts connections.
	Ready func(address string)
}

// readAheadChunks bounds how far capture may run ahead of analysis.
const readAheadChunks = 8

// ErrNoServerAddress indicates missing server configuration.
var ErrNoServerAddress = errors.New("no server address configured")

// Run starts the gRPC server and analyses the input until it ends or the context is canceled.
//
//nolint:funlen // Linear setup of the process reads best in one place.
func Run(ctx context.Context, opts *Options) error {
	// Set context with logger name for tracking.
	ctx = logger.WithName(ctx, "alarm-detector")

	settings, err := config.LoadOrDefault(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}

	if err = logger.Configure(settings.LogLevel); err != nil {
		return err
	}

	// Use StateFile from config unless overridden by command line option.
	stateFile := settings.StateFile
	if opts.StateFile != "" {
		stateFile = opts.StateFile
	}

	profilesRef := settings.ProfilesFile
	if opts.Profiles != "" {
		profilesRef = opts.Profiles
	}

	profiles, err := common.LoadProfiles(profilesRef)
	if err != nil {
		return fmt.Errorf("load profiles: %w", err)
	}

	listenAddress, err := resolveListenAddress(settings.ServerAddress, opts.ListenAddress)
	if err != nil {
		return fmt.Errorf("resolve listen address: %w", err)
	}

	input, err := common.OpenInput(opts.Input, opts.WAV, settings)
	if err != nil {
		return fmt.Errorf("open input: %w", err)
	}

	defer input.Close() //nolint:errcheck // Read-only source.

	svc, err := newService(ctx, repository.NewFileRepository(stateFile))
	if err != nil {
		return fmt.Errorf("initialise service: %w", err)
	}

	engineOptions := common.EngineOptions(settings, input.SampleRate)
	engineOptions.OnStateChange = func(state *alarm.State) {
		svc.Update(ctx, state)
	}

	eng, err := engine.New(profiles, engineOptions)
	if err != nil {
		return fmt.Errorf("initialise engine: %w", err)
	}

	// Setup TCP listener for gRPC server.
	lc := net.ListenConfig{}

	lis, err := lc.Listen(ctx, "tcp", listenAddress)
	if err != nil {
		eng.Close()

		return fmt.Errorf("listen on %s: %w", listenAddress, err)
	}

	grpcServer := grpc.NewServer()
	pb.RegisterDetectorServiceServer(grpcServer, api.NewServer(svc))

	serveErr := make(chan error, 1)

	go func() {
		if err := grpcServer.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			serveErr <- err
		}

		close(serveErr)
	}()

	logger.InfoKV(ctx, "Alarm detector listening",
		"listen_address", lis.Addr().String(),
		"state_file", stateFile,
		"sample_rate", input.SampleRate,
		"chunk_size", settings.Audio.ChunkSize,
		"profiles", profileNames(profiles))

	if opts.Ready != nil {
		opts.Ready(lis.Addr().String())
	}

	reloads := make(chan []alarm.Profile, 1)
	if settings.Detection.WatchProfiles && profilesRef != "" && !profile.IsPreset(profilesRef) {
		go watchProfiles(ctx, profilesRef, reloads)
	}

	err = analyse(ctx, eng, input.Reader, reloads, serveErr)
	if err == nil && opts.KeepServing {
		logger.Info(ctx, "Input finished, serving state until interrupted")

		select {
		case <-ctx.Done():
		case err = <-serveErr:
		}
	}

	logger.Info(ctx, "Shutting down gRPC server")

	eng.Close()
	svc.Close()
	grpcServer.GracefulStop()

	logger.Info(ctx, "GRPC server stopped")

	return err
}

// analyse feeds chunks to the engine until the input ends or the context is canceled.
func analyse(
	ctx context.Context,
	eng *engine.Engine,
	reader audio.ChunkReader,
	reloads <-chan []alarm.Profile,
	serveErr <-chan error,
) error {
	chunks, readErr := audio.Stream(ctx, reader, readAheadChunks)

	for {
		select {
		case <-ctx.Done():
			logger.Info(ctx, "Context canceled, stopping analysis")

			return nil
		case err, ok := <-serveErr:
			if !ok {
				serveErr = nil

				continue
			}

			return fmt.Errorf("serve gRPC: %w", err)
		case profiles := <-reloads:
			if err := eng.SetProfiles(ctx, profiles); err != nil {
				logger.ErrorKV(ctx, "Reloaded profiles rejected", "error", err)
			}
		case chunk, ok := <-chunks:
			if !ok {
				eng.Flush(ctx)

				if err := <-readErr; err != nil {
					return fmt.Errorf("read input: %w", err)
				}

				logger.InfoKV(ctx, "Input finished", "stream_time", eng.Clock())

				return nil
			}

			eng.Ingest(ctx, chunk)
		}
	}
}

// watchProfiles forwards reloaded profiles, keeping only the latest pending set.
func watchProfiles(ctx context.Context, path string, reloads chan []alarm.Profile) {
	err := profile.Watch(ctx, path, func(profiles []alarm.Profile) {
		select {
		case <-reloads:
		default:
		}

		reloads <- profiles
	})
	if err != nil {
		logger.ErrorKV(ctx, "Profile watcher stopped", "path", path, "error", err)
	}
}

// resolveListenAddress determines the listen address for the gRPC server.
// The override wins over the configured address.
func resolveListenAddress(configAddr, override string) (string, error) {
	if override != "" {
		return override, nil
	}

	if configAddr == "" {
		return "", ErrNoServerAddress
	}

	if _, _, err := net.SplitHostPort(configAddr); err != nil {
		return "", fmt.Errorf("invalid server address format %q: %w", configAddr, err)
	}

	return configAddr, nil
}

func profileNames(profiles []alarm.Profile) []string {
	names := make([]string, 0, len(profiles))
	for i := range profiles {
		names = append(names, profiles[i].Name)
	}

	return names
}
