package status

import (
	"context"
	"fmt"
	"time"

	"github.com/h0tp-ftw/alarm-audio-detector/internal/config"
	"github.com/h0tp-ftw/alarm-audio-detector/internal/domain/alarm"
	"github.com/h0tp-ftw/alarm-audio-detector/internal/logger"
	"github.com/h0tp-ftw/alarm-audio-detector/internal/service/common"
)

// Options controls the status polling behavior and configuration.
type Options struct {
	// ConfigPath specifies the path to the settings YAML file.
	ConfigPath string
	// ServerAddress provides an optional gRPC server address override.
	ServerAddress string
	// PollInterval defines the interval between state checks, and between reconnects in watch mode.
	PollInterval time.Duration
	// Timeout overrides the per-RPC timeout from the settings.
	Timeout time.Duration
	// Watch follows the state stream instead of polling.
	Watch bool
	// OnState, when set, is called with every received state after it is logged.
	OnState func(state *alarm.State)
}

// DefaultPollInterval defines the fixed polling interval for state checks.
const DefaultPollInterval = 5 * time.Second

// Run reports the detector state until the context is canceled.
func Run(ctx context.Context, opts *Options) error {
	// Set context with logger name for tracking.
	ctx = logger.WithName(ctx, "alarm-status")

	cfg, err := config.LoadOrDefault(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}

	timeout := cfg.Timeout
	if opts.Timeout > 0 {
		timeout = opts.Timeout
	}

	// Determine server address: command line argument overrides config.
	serverAddress := cfg.ServerAddress
	if opts.ServerAddress != "" {
		serverAddress = opts.ServerAddress
	}

	dialOptions := []common.Option{common.WithCallTimeout(timeout)}

	actor, err := common.DetectActor()
	if err != nil {
		logger.DebugKV(ctx, "Caller identity unavailable", "error", err)
	} else {
		dialOptions = append(dialOptions, common.WithActor(actor))
	}

	client, err := common.Dial(ctx, serverAddress, dialOptions...)
	if err != nil {
		return fmt.Errorf("dial detector: %w", err)
	}

	// Ensure connection cleanup on function exit.
	defer func() {
		_ = client.Close()
	}()

	report := func(state *alarm.State) {
		logState(ctx, state)

		if opts.OnState != nil {
			opts.OnState(state)
		}
	}

	if opts.Watch {
		return watch(ctx, client, serverAddress, opts.PollInterval, report)
	}

	return poll(ctx, client, serverAddress, opts.PollInterval, report)
}

func poll(
	ctx context.Context,
	client *common.Client,
	serverAddress string,
	interval time.Duration,
	report func(*alarm.State),
) error {
	logger.InfoKV(ctx, "Polling detector state", "server_address", serverAddress, "interval", interval.String())

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		state, err := client.GetDetectorState(ctx)
		if err != nil {
			logger.ErrorKV(ctx, "Check state failed", "error", err)
		} else {
			report(state)
		}

		select {
		case <-ctx.Done():
			logger.Info(ctx, "Context canceled, exiting")

			return nil
		case <-ticker.C:
		}
	}
}

func watch(
	ctx context.Context,
	client *common.Client,
	serverAddress string,
	retry time.Duration,
	report func(*alarm.State),
) error {
	logger.InfoKV(ctx, "Watching detector state", "server_address", serverAddress)

	for {
		if err := client.WatchDetectorState(ctx, report); err != nil {
			logger.ErrorKV(ctx, "State stream failed", "error", err, "retry_in", retry.String())
		}

		select {
		case <-ctx.Done():
			logger.Info(ctx, "Context canceled, exiting")

			return nil
		case <-time.After(retry):
		}
	}
}

// logState writes one line describing the state.
func logState(ctx context.Context, state *alarm.State) {
	if state.Active {
		logger.InfoKV(ctx, "Alarm detected",
			"profile", state.Profile,
			"detection_id", state.DetectionID,
			"cycles", state.CycleCount,
			"since", formatTimestamp(state.Timestamp))

		return
	}

	if state.DetectionID == "" {
		logger.Info(ctx, "No alarm detected yet")

		return
	}

	logger.InfoKV(ctx, "No alarm",
		"last_profile", state.Profile,
		"last_detection_id", state.DetectionID,
		"cleared", formatTimestamp(state.Timestamp))
}

func formatTimestamp(timestamp time.Time) string {
	if timestamp.IsZero() {
		return "unknown"
	}

	return timestamp.Local().Format(time.RFC3339)
}
