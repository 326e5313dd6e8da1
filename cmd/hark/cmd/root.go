package cmd

import (
	"github.com/spf13/cobra"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "hark",
	Short: "Voice-activated command dispatcher for coding agents",
	Long: `hark listens for a wake word, records the spoken command that follows,
transcribes it and hands the text to a coding agent running in a terminal.

Say the wake word, speak a command, and finish with the end keyword
(default "over") or simply stop talking.

Run it in the foreground:
  hark run

Or install it as a user service that starts at login:
  hark install && hark start`,
	SilenceUsage: true,
}

// Execute runs the CLI. Cobra has already printed the error when one is
// returned; main only maps it to the exit code.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "config.yaml", "path to the YAML configuration file")
}
