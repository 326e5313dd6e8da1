package cmd

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/MrWong99/hark/internal/config"
	"github.com/MrWong99/hark/internal/service"
)

var (
	logsFollow bool
	logsLines  int
)

var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "Print the daemon log tail",
	Long: `Print the last lines of the daemon's diagnostic log.

The file location comes from log.file in the configuration. With --follow
the command keeps streaming new lines until interrupted.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return err
		}
		if cfg.Log.File == "" {
			return errors.New("log.file is not configured; the daemon logs to stderr only")
		}

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		err = service.Tail(ctx, afero.NewOsFs(), cfg.Log.File, os.Stdout, logsLines, logsFollow)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	},
}

func init() {
	rootCmd.AddCommand(logsCmd)
	logsCmd.Flags().BoolVarP(&logsFollow, "follow", "f", false, "keep streaming new log lines")
	logsCmd.Flags().IntVarP(&logsLines, "lines", "n", 50, "number of trailing lines to print")
}
