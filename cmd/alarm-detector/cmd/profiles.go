package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/h0tp-ftw/alarm-audio-detector/internal/domain/alarm"
	"github.com/h0tp-ftw/alarm-audio-detector/internal/repository/profile"
	"github.com/h0tp-ftw/alarm-audio-detector/internal/service/tune"
)

func newProfilesCommand() *cobra.Command {
	command := &cobra.Command{
		Use:   "profiles",
		Short: "Validate alarm profiles, export the built-in presets or tune one from a recording.",
	}

	command.AddCommand(newProfilesCheckCommand(), newProfilesPresetCommand(), newProfilesTuneCommand())

	return command
}

func newProfilesCheckCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "check <file>",
		Short: "Validate a profiles file and describe every profile.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			profiles, err := profile.Load(args[0])
			if err != nil {
				return err
			}

			for i := range profiles {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), describe(&profiles[i]))
			}

			return nil
		},
	}
}

func newProfilesPresetCommand() *cobra.Command {
	var output string

	command := &cobra.Command{
		Use:       "preset <" + strings.Join(profile.Presets(), "|") + ">",
		Short:     "Print a built-in profile as YAML, or write it to a file.",
		Args:      cobra.ExactArgs(1),
		ValidArgs: profile.Presets(),
		RunE: func(cmd *cobra.Command, args []string) error {
			preset, err := profile.Preset(args[0])
			if err != nil {
				return err
			}

			profiles := []alarm.Profile{preset}

			if output != "" {
				return profile.Save(output, profiles)
			}

			data, err := profile.Marshal(profiles)
			if err != nil {
				return err
			}

			_, err = cmd.OutOrStdout().Write(data)

			return err
		},
	}

	command.Flags().StringVarP(&output, "output", "o", "", "write the preset to this file instead of standard output")

	return command
}

func newProfilesTuneCommand() *cobra.Command {
	var (
		output string
		name   string
		wav    bool
	)

	command := &cobra.Command{
		Use:   "tune <file>",
		Short: "Propose a profile from a recording of the alarm.",
		Long: `Measures the tones of a recording the way the detector does, finds the
shortest repeating cycle and proposes a profile with ±5% frequency and ±20%
duration tolerances. Record at least two full cycles of the alarm.

The proposal is printed as YAML, or written to the file given with --output.
Use - for standard input.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			opts := &tune.Options{
				ConfigPath: configPath,
				Input:      args[0],
				WAV:        wav,
				Name:       name,
				OutputPath: output,
				Output:     cmd.OutOrStdout(),
			}

			result, err := tune.Run(ctx, opts)
			if err != nil {
				return err
			}

			if output != "" {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s (confidence %.2f)\n", describe(&result.Profile), result.Confidence)
			}

			for _, warning := range result.Warnings {
				_, _ = fmt.Fprintln(cmd.ErrOrStderr(), "warning:", warning)
			}

			return nil
		},
	}

	command.Flags().StringVarP(&output, "output", "o", "", "write the proposed profile to this file instead of standard output")
	command.Flags().StringVarP(&name, "name", "n", "", "profile name (defaults to the recording file name)")
	command.Flags().BoolVar(&wav, "wav", false, "parse a RIFF/WAVE header before the samples")

	return command
}

func describe(p *alarm.Profile) string {
	segments := make([]string, 0, len(p.Segments))
	for i := range p.Segments {
		segments = append(segments, p.Segments[i].String())
	}

	return fmt.Sprintf("%s: %d cycle(s), reset after %gs: %s",
		p.Name, p.ConfirmationCycles, p.ResetTimeout, strings.Join(segments, " "))
}
