package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/fexdroid/gamelaunchd"
	"github.com/fexdroid/gamelaunchd/internal/logger"
)

func runLaunchCommand(globalFlags *GlobalFlags, flags *LaunchFlags) error {
	if globalFlags.ConfigPath == "" {
		return fmt.Errorf("config file required. Use --config=gamelaunchd.toml")
	}
	if (flags.AppID == "") == (flags.Path == "") {
		return fmt.Errorf("exactly one of --appid or --path is required")
	}

	cfg, err := gamelaunchd.LoadConfig(globalFlags.ConfigPath)
	if err != nil {
		return fmt.Errorf("error loading config: %w", err)
	}

	log, closer := logger.New(logger.Config{Level: cfg.Log.Level})
	if closer != nil {
		defer func() { _ = closer.Close() }()
	}
	slog.SetDefault(log)

	lib, closeLib, err := openLibrary(cfg)
	if err != nil {
		return err
	}
	if closeLib != nil {
		defer func() { _ = closeLib() }()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var game gamelaunchd.Installation
	if flags.AppID != "" {
		game, err = lib.ByID(ctx, flags.AppID)
	} else {
		game, err = lib.ByExecutable(ctx, flags.Path)
	}
	if err != nil {
		return fmt.Errorf("error resolving game: %w", err)
	}

	launcher := gamelaunchd.New(gamelaunchd.Options{
		RootDir:       cfg.Runtime.RootDir,
		Binary:        cfg.Runtime.Binary,
		LogDir:        cfg.Runtime.LogDir,
		SystemLibDirs: cfg.Runtime.SystemLibDirs,
		FexArgs:       cfg.Runtime.FexArgs,
		Policy:        cfg.PoolPolicy(),
		MaxConcurrent: cfg.Pool.MaxConcurrent,
		Logger:        log,
	})

	// Forward Ctrl-C to the game instead of dying with it attached.
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sig
		launcher.Terminate(game.ID)
	}()
	defer signal.Stop(sig)

	fmt.Printf("Launching %s (%s)\n", game.Name, game.ID)
	switch res := launcher.Launch(ctx, game, nil).(type) {
	case gamelaunchd.Success:
		fmt.Printf("Game exited normally after %s (exit code %d)\n", res.Duration, res.ExitCode)
		return nil
	case gamelaunchd.Crashed:
		return fmt.Errorf("%s (exit code %d, ran %s)", res.Message, res.ExitCode, res.Duration)
	case gamelaunchd.Error:
		return fmt.Errorf("launch failed: %s", res.Message)
	default:
		return fmt.Errorf("unexpected launch outcome")
	}
}

func runCleanupLogsCommand(globalFlags *GlobalFlags, flags *CleanupFlags) error {
	if globalFlags.ConfigPath == "" {
		return fmt.Errorf("config file required. Use --config=gamelaunchd.toml")
	}
	cfg, err := gamelaunchd.LoadConfig(globalFlags.ConfigPath)
	if err != nil {
		return fmt.Errorf("error loading config: %w", err)
	}

	launcher := gamelaunchd.New(gamelaunchd.Options{
		RootDir: cfg.Runtime.RootDir,
		Binary:  cfg.Runtime.Binary,
		LogDir:  cfg.Runtime.LogDir,
	})
	n, err := launcher.CleanupOldLogs(flags.Days)
	if err != nil {
		return fmt.Errorf("error cleaning logs: %w", err)
	}
	fmt.Printf("Removed %d log file(s) older than %d day(s)\n", n, flags.Days)
	return nil
}
