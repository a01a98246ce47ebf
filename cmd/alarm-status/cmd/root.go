package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/h0tp-ftw/alarm-audio-detector/internal/config"
	"github.com/h0tp-ftw/alarm-audio-detector/internal/service/status"
	"github.com/h0tp-ftw/alarm-audio-detector/internal/version"
)

var (
	// configPath stores the path to the configuration YAML file.
	configPath string
	// watch follows the state stream instead of polling.
	watch bool
	// interval between polls.
	interval = status.DefaultPollInterval

	// rootCmd represents the base command for reporting the detector state.
	rootCmd = &cobra.Command{
		Use:   "alarm-status [server-address]",
		Short: "Report the alarm detector state.",
		Long: `Connects to a running alarm-detector and logs its detection state.

By default the state is polled at a fixed interval. With --watch the detector
pushes every change as it happens and the stream is reopened if it drops.
Server address can be provided as argument or loaded from configuration file.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			// Use server address argument if provided, otherwise rely on config.
			var serverAddress string
			if len(args) > 0 {
				serverAddress = args[0]
			}

			return status.Run(ctx, &status.Options{
				ConfigPath:    configPath,
				ServerAddress: serverAddress,
				PollInterval:  interval,
				Watch:         watch,
			})
		},
	}
)

// Execute runs the alarm-status CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	rootCmd.Flags().StringVarP(&configPath, "config", "c", config.DefaultConfigFilename, "path to configuration file")
	rootCmd.Flags().BoolVarP(&watch, "watch", "w", false, "stream state changes instead of polling")
	rootCmd.Flags().DurationVar(&interval, "interval", status.DefaultPollInterval, "polling interval")
}
