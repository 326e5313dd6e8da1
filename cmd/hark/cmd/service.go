package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/MrWong99/hark/internal/service"
)

var installCmd = &cobra.Command{
	Use:   "install",
	Short: "Install hark as a user service",
	Long: `Install hark as a user-level service that starts at login.

The installed unit runs "hark run --config <path>" with the config path
resolved at install time, so later invocations from other directories keep
using the same file. On macOS this is a launchd user agent, on Linux a
systemd user unit; user scope is required for microphone access.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		// The unit execs from the service manager's cwd, not ours.
		absCfg, err := filepath.Abs(cfgFile)
		if err != nil {
			return fmt.Errorf("resolve config path: %w", err)
		}
		m, err := service.NewManager(absCfg)
		if err != nil {
			return err
		}
		if err := m.Install(); err != nil {
			return err
		}
		fmt.Printf("installed hark service (%s), config %s\n", m.Platform(), absCfg)
		fmt.Println("start it with: hark start")
		return nil
	},
}

var uninstallCmd = &cobra.Command{
	Use:   "uninstall",
	Short: "Remove the hark service",
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := service.NewManager("")
		if err != nil {
			return err
		}
		if err := m.Uninstall(); err != nil {
			return err
		}
		fmt.Println("uninstalled hark service")
		return nil
	},
}

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the installed service",
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := service.NewManager("")
		if err != nil {
			return err
		}
		if err := m.Start(); err != nil {
			return err
		}
		fmt.Println("hark started")
		return nil
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running service",
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := service.NewManager("")
		if err != nil {
			return err
		}
		if err := m.Stop(); err != nil {
			return err
		}
		fmt.Println("hark stopped")
		return nil
	},
}

var restartCmd = &cobra.Command{
	Use:   "restart",
	Short: "Restart the running service",
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := service.NewManager("")
		if err != nil {
			return err
		}
		if err := m.Restart(); err != nil {
			return err
		}
		fmt.Println("hark restarted")
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show whether the service is running",
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := service.NewManager("")
		if err != nil {
			return err
		}
		state, err := m.Status()
		if err != nil {
			return err
		}
		fmt.Printf("hark: %s\n", state)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(installCmd, uninstallCmd, startCmd, stopCmd, restartCmd, statusCmd)
}
