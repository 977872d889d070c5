package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

func main() {
	root := buildRoot()
	if err := root.Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// GlobalFlags holds persistent flags shared by all commands
type GlobalFlags struct {
	ConfigPath string
}

// LaunchFlags holds flags for the one-shot launch command
type LaunchFlags struct {
	AppID   string
	Path    string
	WorkDir string
}

// QueryFlags holds flags for commands that talk to a running daemon
type QueryFlags struct {
	APIUrl     string
	APITimeout time.Duration
}

// CleanupFlags holds flags for the cleanup-logs command
type CleanupFlags struct {
	Days int
}

// ServeFlags holds flags for the serve command
type ServeFlags struct {
	ConfigPath string
	Daemonize  bool
	PidFile    string
	LogFile    string
}

func buildRoot() *cobra.Command {
	globalFlags := &GlobalFlags{}
	launchFlags := &LaunchFlags{}
	queryFlags := &QueryFlags{}
	cleanupFlags := &CleanupFlags{}

	root := createRootCommand(globalFlags)

	root.AddCommand(
		createServeCommand(globalFlags),
		createLaunchCommand(globalFlags, launchFlags),
		createActiveCommand(queryFlags),
		createHistoryCommand(queryFlags),
		createLogsCommand(queryFlags),
		createTerminateCommand(queryFlags),
		createKillCommand(queryFlags),
		createCleanupLogsCommand(globalFlags, cleanupFlags),
	)

	return root
}

func createRootCommand(flags *GlobalFlags) *cobra.Command {
	root := &cobra.Command{
		Use:   "gamelaunchd",
		Short: "FEX game launch supervisor",
		Long: `Gamelaunchd supervises x86 game processes running under FEX emulation.
It launches games on request, captures their output, enforces an
admission policy, and answers file-based launch requests from the
frontend.

Examples:
  gamelaunchd serve --config=gamelaunchd.toml
  gamelaunchd launch --appid=440
  gamelaunchd active --api-url=http://127.0.0.1:8749/api
  gamelaunchd cleanup-logs --days=7`,
	}

	root.PersistentFlags().StringVar(&flags.ConfigPath, "config", "", "path to TOML config file")

	return root
}

func createLaunchCommand(globalFlags *GlobalFlags, launchFlags *LaunchFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "launch",
		Short: "Launch a game and wait for it to exit",
		Long: `Launch a single game directly, without going through a daemon, and
block until it exits. The game is resolved against the configured
library by app id or by executable path.

Examples:
  gamelaunchd launch --config=gamelaunchd.toml --appid=440
  gamelaunchd launch --config=gamelaunchd.toml --path=/games/hl2/hl2.exe`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLaunchCommand(globalFlags, launchFlags)
		},
	}

	cmd.Flags().StringVar(&launchFlags.AppID, "appid", "", "app id of the game to launch")
	cmd.Flags().StringVar(&launchFlags.Path, "path", "", "executable path of the game to launch")

	return cmd
}

func createActiveCommand(flags *QueryFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "active",
		Short: "List games currently running under the daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runActiveCommand(flags)
		},
	}
	addQueryFlags(cmd, flags)
	return cmd
}

func createHistoryCommand(flags *QueryFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent game execution records",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistoryCommand(flags)
		},
	}
	addQueryFlags(cmd, flags)
	return cmd
}

func createLogsCommand(flags *QueryFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show the daemon's aggregated launch log",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLogsCommand(flags)
		},
	}
	addQueryFlags(cmd, flags)
	return cmd
}

func createTerminateCommand(flags *QueryFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "terminate <game-id>",
		Short: "Gracefully terminate a running game (SIGTERM)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSignalCommand(flags, args[0], "terminate")
		},
	}
	addQueryFlags(cmd, flags)
	return cmd
}

func createKillCommand(flags *QueryFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "kill <game-id>",
		Short: "Forcibly kill a running game (SIGKILL)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSignalCommand(flags, args[0], "kill")
		},
	}
	addQueryFlags(cmd, flags)
	return cmd
}

func createCleanupLogsCommand(globalFlags *GlobalFlags, cleanupFlags *CleanupFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cleanup-logs",
		Short: "Delete per-run game logs older than N days",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCleanupLogsCommand(globalFlags, cleanupFlags)
		},
	}
	cmd.Flags().IntVar(&cleanupFlags.Days, "days", 7, "delete logs older than this many days")
	return cmd
}

func addQueryFlags(cmd *cobra.Command, flags *QueryFlags) {
	cmd.Flags().StringVar(&flags.APIUrl, "api-url", "", "daemon URL (e.g. http://127.0.0.1:8749/api)")
	cmd.Flags().DurationVar(&flags.APITimeout, "api-timeout", 10*time.Second, "request timeout")
}
