package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/fexdroid/gamelaunchd"
	"github.com/fexdroid/gamelaunchd/internal/config"
	"github.com/fexdroid/gamelaunchd/internal/logger"
)

func createServeCommand(globalFlags *GlobalFlags) *cobra.Command {
	serveFlags := &ServeFlags{}

	cmd := &cobra.Command{
		Use:   "serve [config.toml]",
		Short: "Start the gamelaunchd daemon",
		Long: `Start the daemon: poll the launch request file, expose the HTTP state
API, and supervise launched games until shutdown.

Examples:
  gamelaunchd serve --config=gamelaunchd.toml
  gamelaunchd serve gamelaunchd.toml
  gamelaunchd serve gamelaunchd.toml --daemonize --pidfile=/run/gamelaunchd.pid`,
		RunE: func(cmd *cobra.Command, args []string) error {
			serveFlags.ConfigPath = globalFlags.ConfigPath
			return runServeCommand(serveFlags, args)
		},
	}

	cmd.Flags().BoolVar(&serveFlags.Daemonize, "daemonize", false, "run in the background")
	cmd.Flags().StringVar(&serveFlags.PidFile, "pidfile", "", "write the daemon PID to this file")
	cmd.Flags().StringVar(&serveFlags.LogFile, "logfile", "", "redirect daemon output to this file")

	return cmd
}

func runServeCommand(flags *ServeFlags, args []string) error {
	configPath := flags.ConfigPath
	if len(args) > 0 {
		configPath = args[0]
	}
	if configPath == "" {
		return fmt.Errorf("config file required. Use --config=gamelaunchd.toml or provide as argument")
	}

	cfg, err := gamelaunchd.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("error loading config: %w", err)
	}

	if flags.Daemonize {
		return daemonize(flags.PidFile, flags.LogFile)
	}

	log, closer := logger.New(logger.Config{
		Level:      cfg.Log.Level,
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
		Compress:   cfg.Log.Compress,
	})
	if closer != nil {
		defer func() { _ = closer.Close() }()
	}
	slog.SetDefault(log)

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

	lib, closeLib, err := openLibrary(cfg)
	if err != nil {
		return err
	}
	if closeLib != nil {
		defer func() { _ = closeLib() }()
	}

	sinks, err := openHistorySinks(cfg)
	if err != nil {
		return err
	}
	defer func() {
		for _, s := range sinks {
			_ = s.Close()
		}
	}()
	launcher.SetHistorySinks(sinks...)

	if err := gamelaunchd.RegisterMetricsDefault(); err != nil {
		log.Warn("failed to register metrics", "err", err)
	}

	srv, err := gamelaunchd.NewHTTPServer(cfg.Server.Listen, cfg.Server.BasePath, launcher)
	if err != nil {
		return fmt.Errorf("error starting HTTP server: %w", err)
	}
	log.Info("http server listening", "addr", cfg.Server.Listen)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Bridge.RequestPath != "" {
		br := launcher.NewBridge(lib, cfg.Bridge.RequestPath, cfg.Bridge.ResponsePath, cfg.Bridge.PollInterval)
		go br.Run(ctx)
		log.Info("launch request bridge running",
			"request", cfg.Bridge.RequestPath, "interval", cfg.Bridge.PollInterval)
	}

	go retentionSweep(ctx, launcher, cfg.Log.RetentionDays, log)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	s := <-sig
	log.Info("shutting down", "signal", s.String())

	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("http server shutdown", "err", err)
	}
	return nil
}

// retentionSweep deletes aged per-run game logs once a day, and once at
// startup so a long-stopped daemon catches up immediately.
func retentionSweep(ctx context.Context, l *gamelaunchd.Launcher, days int, log *slog.Logger) {
	sweep := func() {
		n, err := l.CleanupOldLogs(days)
		if err != nil {
			log.Warn("log cleanup failed", "err", err)
			return
		}
		if n > 0 {
			log.Info("removed aged game logs", "count", n, "older_than_days", days)
		}
	}
	sweep()
	t := time.NewTicker(24 * time.Hour)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			sweep()
		}
	}
}

func openLibrary(cfg *config.Config) (gamelaunchd.Library, func() error, error) {
	switch cfg.Library.Type {
	case "sqlite":
		db, err := gamelaunchd.OpenSQLiteLibrary(cfg.Library.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("error opening game library: %w", err)
		}
		return db, db.Close, nil
	default:
		return gamelaunchd.NewStaticLibrary(cfg.Library.Games), nil, nil
	}
}

func openHistorySinks(cfg *config.Config) ([]gamelaunchd.HistorySink, error) {
	var sinks []gamelaunchd.HistorySink
	for _, sc := range cfg.History {
		var (
			s   gamelaunchd.HistorySink
			err error
		)
		switch sc.Type {
		case "postgres":
			s, err = gamelaunchd.NewPostgresHistorySink(sc.DSN)
		case "clickhouse":
			s, err = gamelaunchd.NewClickHouseHistorySink(sc.DSN, sc.Table)
		}
		if err != nil {
			for _, prev := range sinks {
				_ = prev.Close()
			}
			return nil, fmt.Errorf("error connecting %s history sink: %w", sc.Type, err)
		}
		if s != nil {
			sinks = append(sinks, s)
		}
	}
	return sinks, nil
}
