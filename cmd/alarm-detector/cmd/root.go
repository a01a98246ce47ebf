package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/h0tp-ftw/alarm-audio-detector/internal/config"
	"github.com/h0tp-ftw/alarm-audio-detector/internal/service/common"
	"github.com/h0tp-ftw/alarm-audio-detector/internal/service/detector"
	"github.com/h0tp-ftw/alarm-audio-detector/internal/version"
)

var (
	// configPath to the configuration YAML file.
	configPath string
	// profilesRef overrides the profiles file from the settings.
	profilesRef string
	// inputPath is the PCM source.
	inputPath string
	// stateFile path where the detection state is persisted.
	stateFile string
	// wav forces WAV header parsing.
	wav bool
	// keepServing keeps the API up after the input ends.
	keepServing bool

	// rootCmd represents the base command for running the detector.
	rootCmd = &cobra.Command{
		Use:   "alarm-detector [listen-address]",
		Short: "Detect smoke and CO alarm cadences in a PCM audio stream.",
		Long: `Reads 16-bit mono PCM from a file or standard input and reports when a
configured alarm cadence (such as the temporal-three smoke alarm pattern) is heard.

Audio is analysed chunk by chunk: narrowband peaks become tone events, and tone
events are matched against every alarm profile. A confirmed match raises the
detection flag for the configured dwell time. Every change is written to the state
file and served over gRPC (alarmdetector.v1.DetectorService).

Raw PCM uses the sample rate from the settings; WAV input (--wav or a .wav file)
uses the rate from its header. Listen address can be provided as argument to
override config (e.g., :50051, 0.0.0.0:50051).

Example:
  arecord -q -f S16_LE -c 1 -r 44100 -t raw | alarm-detector -i - -p smoke`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			// Use listen address argument if provided, otherwise rely on config.
			var listenAddress string
			if len(args) > 0 {
				listenAddress = args[0]
			}

			options := &detector.Options{
				ConfigPath:    configPath,
				Profiles:      profilesRef,
				Input:         inputPath,
				WAV:           wav,
				ListenAddress: listenAddress,
				StateFile:     stateFile,
				KeepServing:   keepServing,
			}

			return detector.Run(ctx, options)
		},
	}
)

// Execute runs the alarm-detector CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	rootCmd.PersistentFlags().
		StringVarP(&configPath, "config", "c", config.DefaultConfigFilename, "path to configuration file")
	rootCmd.PersistentFlags().
		StringVarP(&profilesRef, "profiles", "p", "", "profiles file or preset name (smoke, co); overrides the settings")

	rootCmd.Flags().StringVarP(&inputPath, "input", "i", common.StdinInput, "PCM source file, - for standard input")
	rootCmd.Flags().
		StringVarP(&stateFile, "state-file", "s", "", "path to persist the detection state (default from settings)")
	rootCmd.Flags().BoolVar(&wav, "wav", false, "parse a RIFF/WAVE header before the samples")
	rootCmd.Flags().BoolVar(&keepServing, "keep-serving", false, "keep serving the state after the input ends")

	rootCmd.AddCommand(newReplayCommand(), newProfilesCommand())
}
