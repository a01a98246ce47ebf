package cmd

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/h0tp-ftw/alarm-audio-detector/internal/service/replay"
)

func newReplayCommand() *cobra.Command {
	var (
		wav           bool
		highPrecision bool
	)

	command := &cobra.Command{
		Use:   "replay <file>",
		Short: "Run the detector over a recording and print every match.",
		Long: `Analyses a recording as fast as it can be read and prints one line per
confirmed alarm: stream time in seconds, profile name and cycle count.

The same recording always yields the same matches. The exit status reflects
errors only; a recording without alarms is not an error. Use - for standard input.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			_, err := replay.Run(ctx, &replay.Options{
				ConfigPath:    configPath,
				Profiles:      profilesRef,
				Input:         args[0],
				WAV:           wav,
				HighPrecision: highPrecision,
				Output:        cmd.OutOrStdout(),
			})

			return err
		},
	}

	command.Flags().BoolVar(&wav, "wav", false, "parse a RIFF/WAVE header before the samples")
	command.Flags().BoolVar(&highPrecision, "high-precision", false, "gate peaks through the quality analyzer")

	return command
}
