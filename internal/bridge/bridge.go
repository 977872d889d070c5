package bridge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fexdroid/gamelaunchd/internal/executor"
	"github.com/fexdroid/gamelaunchd/internal/library"
	"github.com/fexdroid/gamelaunchd/internal/pool"
)

const defaultPollInterval = time.Second

// Config locates the file-based request/response channel.
type Config struct {
	RequestPath  string
	ResponsePath string
	PollInterval time.Duration
	Logger       *slog.Logger
}

// Bridge polls the request file written by an external caller (a shell
// script with its own timeout), resolves the request against the game
// library, drives the pool, and answers through the response file.
// Exactly one request is serviced at a time.
type Bridge struct {
	pool     *pool.Pool
	lib      library.Library
	reqPath  string
	respPath string
	interval time.Duration
	logger   *slog.Logger
}

func New(p *pool.Pool, lib library.Library, cfg Config) *Bridge {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Bridge{
		pool:     p,
		lib:      lib,
		reqPath:  cfg.RequestPath,
		respPath: cfg.ResponsePath,
		interval: cfg.PollInterval,
		logger:   cfg.Logger,
	}
}

// Run polls until ctx is canceled. A request picked up mid-launch blocks
// the loop until that launch returns, so a second request file written in
// the meantime is consumed only afterwards.
func (b *Bridge) Run(ctx context.Context) {
	t := time.NewTicker(b.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			b.PollOnce(ctx)
		}
	}
}

// PollOnce consumes at most one pending request. The request file is
// deleted before parsing, so a request is never processed twice even if
// handling fails afterwards.
func (b *Bridge) PollOnce(ctx context.Context) {
	data, err := os.ReadFile(b.reqPath)
	if err != nil {
		if !os.IsNotExist(err) {
			b.logger.Warn("request file unreadable", "path", b.reqPath, "err", err)
		}
		return
	}
	if err := os.Remove(b.reqPath); err != nil {
		b.logger.Warn("failed to claim request file", "path", b.reqPath, "err", err)
		return
	}

	request := strings.TrimSpace(string(data))
	b.logger.Info("launch request received", "request", request)

	response := b.handle(ctx, request)
	if err := b.writeResponse(response); err != nil {
		b.logger.Error("failed to write response", "err", err)
	}
}

// handle turns one request line into one response line. Every failure
// path, panics included, still yields an ERROR response so the external
// caller is never left waiting.
func (b *Bridge) handle(ctx context.Context, request string) (response string) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("panic while handling launch request", "panic", r)
			response = fmt.Sprintf("ERROR:unknown:internal error: %v", r)
		}
	}()

	game, errResp := b.resolve(ctx, request)
	if errResp != "" {
		return errResp
	}

	switch res := b.pool.Launch(ctx, game, nil).(type) {
	case executor.Success:
		return fmt.Sprintf("SUCCESS:%s:%d", game.ID, res.ExitCode)
	case executor.Crashed:
		return fmt.Sprintf("CRASHED:%s:%d:%s", game.ID, res.ExitCode, res.Message)
	case executor.Error:
		return fmt.Sprintf("ERROR:%s:%s", game.ID, res.Message)
	default:
		return fmt.Sprintf("ERROR:%s:unexpected launch outcome", game.ID)
	}
}

// resolve parses the request grammar and looks the game up. The second
// return value is a ready ERROR response when resolution fails.
func (b *Bridge) resolve(ctx context.Context, request string) (library.Installation, string) {
	switch {
	case strings.HasPrefix(request, "PATH:"):
		path := strings.TrimPrefix(request, "PATH:")
		game, err := b.resolvePath(ctx, path)
		if errors.Is(err, library.ErrNotFound) {
			b.logger.Warn("no library entry for requested path", "path", path)
			return library.Installation{}, "ERROR:unknown:Game not found"
		}
		if err != nil {
			return library.Installation{}, "ERROR:unknown:" + err.Error()
		}
		return game, ""
	case strings.HasPrefix(request, "APPID:"):
		id := strings.TrimPrefix(request, "APPID:")
		game, err := b.lib.ByID(ctx, id)
		if errors.Is(err, library.ErrNotFound) {
			b.logger.Warn("no library entry for requested id", "id", id)
			return library.Installation{}, fmt.Sprintf("ERROR:%s:Game not found", id)
		}
		if err != nil {
			return library.Installation{}, fmt.Sprintf("ERROR:%s:%s", id, err.Error())
		}
		return game, ""
	default:
		b.logger.Warn("malformed launch request", "request", request)
		return library.Installation{}, "ERROR:unknown:malformed request"
	}
}

// resolvePath tries an exact executable match, then falls back to matching
// the parent directory against each game's install dir or name.
func (b *Bridge) resolvePath(ctx context.Context, path string) (library.Installation, error) {
	game, err := b.lib.ByExecutable(ctx, path)
	if err == nil {
		return game, nil
	}
	if !errors.Is(err, library.ErrNotFound) {
		return library.Installation{}, err
	}

	games, err := b.lib.List(ctx)
	if err != nil {
		return library.Installation{}, err
	}
	parent := filepath.Dir(path)
	for _, g := range games {
		if g.InstallDir == parent || strings.EqualFold(g.Name, filepath.Base(parent)) {
			return g, nil
		}
	}
	return library.Installation{}, library.ErrNotFound
}

// writeResponse writes the single response line through a temp file and
// an atomic rename, so the external reader never observes a truncated
// response.
func (b *Bridge) writeResponse(line string) error {
	if err := os.MkdirAll(filepath.Dir(b.respPath), 0o750); err != nil {
		return err
	}
	tmp := b.respPath + ".tmp"
	if err := os.WriteFile(tmp, []byte(line+"\n"), 0o640); err != nil {
		return err
	}
	if err := os.Rename(tmp, b.respPath); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	b.logger.Info("launch response written", "response", line)
	return nil
}
