package gamelaunchd

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/fexdroid/gamelaunchd/internal/bridge"
	cfg "github.com/fexdroid/gamelaunchd/internal/config"
	"github.com/fexdroid/gamelaunchd/internal/executor"
	"github.com/fexdroid/gamelaunchd/internal/fexenv"
	"github.com/fexdroid/gamelaunchd/internal/history"
	chhist "github.com/fexdroid/gamelaunchd/internal/history/clickhouse"
	pghist "github.com/fexdroid/gamelaunchd/internal/history/postgres"
	"github.com/fexdroid/gamelaunchd/internal/library"
	"github.com/fexdroid/gamelaunchd/internal/metrics"
	"github.com/fexdroid/gamelaunchd/internal/pool"
	iapi "github.com/fexdroid/gamelaunchd/internal/server"
)

// Re-export core types for external consumers.
// These are aliases so conversions are zero-cost.

type Installation = library.Installation

type Library = library.Library

type LaunchState = executor.LaunchState

type Result = executor.Result

// Concrete launch outcomes; type-switch over Result.
type (
	Success = executor.Success
	Crashed = executor.Crashed
	Error   = executor.Error
)

type ActiveGame = pool.ActiveGame

type ExecutionRecord = history.ExecutionRecord

type HistorySink = history.Sink

type Policy = pool.Policy

const (
	PolicySerial     = pool.PolicySerial
	PolicyConcurrent = pool.PolicyConcurrent
)

// Launcher is a thin facade over the internal pool manager. It provides
// a stable public API for embedding.
type Launcher struct {
	env   *fexenv.Provider
	inner *pool.Pool
}

// Options configures a Launcher.
type Options struct {
	RootDir       string
	Binary        string
	LogDir        string
	SystemLibDirs []string
	FexArgs       []string
	Policy        Policy
	MaxConcurrent int
	Logger        *slog.Logger
}

func New(o Options) *Launcher {
	env := fexenv.New(fexenv.Config{
		RootDir:       o.RootDir,
		BinaryPath:    o.Binary,
		LogDir:        o.LogDir,
		SystemLibDirs: o.SystemLibDirs,
	})
	p := pool.New(env, pool.Config{
		Policy:        o.Policy,
		MaxConcurrent: o.MaxConcurrent,
		FexArgs:       o.FexArgs,
		Logger:        o.Logger,
	})
	return &Launcher{env: env, inner: p}
}

func (l *Launcher) Launch(ctx context.Context, game Installation, extraEnv map[string]string) Result {
	return l.inner.Launch(ctx, game, extraEnv)
}
func (l *Launcher) Terminate(id string) bool         { return l.inner.Terminate(id) }
func (l *Launcher) Kill(id string) bool              { return l.inner.Kill(id) }
func (l *Launcher) Active() []ActiveGame             { return l.inner.Active() }
func (l *Launcher) History() []ExecutionRecord       { return l.inner.History() }
func (l *Launcher) Logs() []string                   { return l.inner.Logs() }
func (l *Launcher) SetHistorySinks(s ...HistorySink) { l.inner.SetHistorySinks(s...) }
func (l *Launcher) CleanupOldLogs(days int) (int, error) {
	return l.inner.CleanupOldLogs(days)
}

// NewBridge wires a file-based launch request bridge against this launcher.
func (l *Launcher) NewBridge(lib Library, requestPath, responsePath string, interval time.Duration) *Bridge {
	return &Bridge{inner: bridge.New(l.inner, lib, bridge.Config{
		RequestPath:  requestPath,
		ResponsePath: responsePath,
		PollInterval: interval,
	})}
}

// Bridge facade
type Bridge struct{ inner *bridge.Bridge }

func (b *Bridge) Run(ctx context.Context) { b.inner.Run(ctx) }

// NewPostgresHistorySink connects a PostgreSQL execution-history sink.
func NewPostgresHistorySink(dsn string) (HistorySink, error) { return pghist.New(dsn) }

// NewClickHouseHistorySink connects a ClickHouse execution-history sink.
// Table may be empty to use the default.
func NewClickHouseHistorySink(addr, table string) (HistorySink, error) {
	return chhist.New(addr, table)
}

// NewStaticLibrary builds an in-memory game library from a fixed set of
// installations.
func NewStaticLibrary(games []Installation) Library { return library.NewStatic(games) }

// OpenSQLiteLibrary opens (and if needed initializes) a SQLite game
// library database.
func OpenSQLiteLibrary(path string) (*library.DB, error) { return library.Open(path) }

// LoadConfig reads the TOML daemon configuration.
func LoadConfig(path string) (*cfg.Config, error) { return cfg.Load(path) }

// NewHTTPServer starts an HTTP server exposing the launcher state API.
func NewHTTPServer(addr, basePath string, l *Launcher) (*http.Server, error) {
	return iapi.NewServer(addr, basePath, l.inner)
}

// Metrics helpers (public facade)

func RegisterMetrics(r prometheus.Registerer) error { return metrics.Register(r) }
func RegisterMetricsDefault() error                 { return metrics.Register(prometheus.DefaultRegisterer) }

// ServeMetrics starts an HTTP server on addr exposing /metrics.
func ServeMetrics(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	return srv.ListenAndServe()
}
