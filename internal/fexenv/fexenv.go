package fexenv

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// ErrRuntimeNotInitialized reports a missing or non-executable emulation
// binary. The environment installer stages the binary; this package only
// validates it.
var ErrRuntimeNotInitialized = errors.New("fex runtime not initialized")

// Config describes where the staged FEX runtime lives and which fixed
// values are handed to spawned games.
type Config struct {
	RootDir       string   // FEXDROID_ROOT; base of the staged runtime
	BinaryPath    string   // emulation binary; default <RootDir>/usr/bin/FEXInterpreter
	LogDir        string   // per-run game logs; default <RootDir>/logs
	SystemLibDirs []string // appended to the library search path when present

	XDGRuntimeDir string
	PulseServer   string
	PulseCookie   string
	SteamRuntime  string
}

// RuntimeEnv is the resolved, read-only runtime configuration. It is
// computed fresh on every PrepareRuntime call and never persisted.
type RuntimeEnv struct {
	BinaryPath  string
	BinDir      string
	RootDir     string
	LogDir      string
	LibraryPath string
}

// Provider resolves the emulation runtime and builds process environments.
type Provider struct {
	cfg Config
}

var defaultSystemLibDirs = []string{
	"/usr/lib/x86_64-linux-gnu",
	"/lib/x86_64-linux-gnu",
	"/usr/lib",
	"/system/lib64",
}

func New(cfg Config) *Provider {
	if cfg.BinaryPath == "" {
		cfg.BinaryPath = filepath.Join(cfg.RootDir, "usr", "bin", "FEXInterpreter")
	}
	if cfg.LogDir == "" {
		cfg.LogDir = filepath.Join(cfg.RootDir, "logs")
	}
	if cfg.SystemLibDirs == nil {
		cfg.SystemLibDirs = defaultSystemLibDirs
	}
	if cfg.XDGRuntimeDir == "" {
		cfg.XDGRuntimeDir = filepath.Join(cfg.RootDir, "run")
	}
	if cfg.PulseServer == "" {
		cfg.PulseServer = "unix:" + filepath.Join(cfg.RootDir, "run", "pulse", "native")
	}
	if cfg.PulseCookie == "" {
		cfg.PulseCookie = filepath.Join(cfg.RootDir, "run", "pulse", "cookie")
	}
	if cfg.SteamRuntime == "" {
		cfg.SteamRuntime = "0"
	}
	return &Provider{cfg: cfg}
}

// LogDir returns the directory holding per-run game logs.
func (p *Provider) LogDir() string { return p.cfg.LogDir }

// PrepareRuntime verifies the emulation binary and composes the library
// search path. Earlier path entries take precedence.
func (p *Provider) PrepareRuntime() (RuntimeEnv, error) {
	info, err := os.Stat(p.cfg.BinaryPath)
	if err != nil || !info.Mode().IsRegular() {
		return RuntimeEnv{}, fmt.Errorf("%w: %s", ErrRuntimeNotInitialized, p.cfg.BinaryPath)
	}
	if info.Mode().Perm()&0o111 == 0 {
		return RuntimeEnv{}, fmt.Errorf("%w: %s is not executable", ErrRuntimeNotInitialized, p.cfg.BinaryPath)
	}
	return RuntimeEnv{
		BinaryPath:  p.cfg.BinaryPath,
		BinDir:      filepath.Dir(p.cfg.BinaryPath),
		RootDir:     p.cfg.RootDir,
		LogDir:      p.cfg.LogDir,
		LibraryPath: p.libraryPath(),
	}, nil
}

// libraryPath composes LD_LIBRARY_PATH: the binary's own directory first,
// then the runtime lib dir when staged, then existing system lib dirs.
func (p *Provider) libraryPath() string {
	dirs := []string{filepath.Dir(p.cfg.BinaryPath)}
	runtimeLib := filepath.Join(p.cfg.RootDir, "usr", "lib")
	if isDir(runtimeLib) {
		dirs = append(dirs, runtimeLib)
	}
	for _, d := range p.cfg.SystemLibDirs {
		if isDir(d) {
			dirs = append(dirs, d)
		}
	}
	return strings.Join(dirs, ":")
}

// LaunchEnv builds the environment map for a spawned game. Caller-supplied
// extra variables are applied last so they override any fixed key.
func (p *Provider) LaunchEnv(exePath, gameName, appID, workDir string, extra map[string]string) map[string]string {
	home := workDir
	if home == "" {
		home = filepath.Dir(exePath)
	}
	env := map[string]string{
		"HOME":            home,
		"LD_LIBRARY_PATH": p.libraryPath(),
		"FEXDROID_ROOT":   p.cfg.RootDir,
		"STEAM_RUNTIME":   p.cfg.SteamRuntime,
		"DISPLAY":         ":0",
		"XDG_RUNTIME_DIR": p.cfg.XDGRuntimeDir,
		"PULSE_SERVER":    p.cfg.PulseServer,
		"PULSE_COOKIE":    p.cfg.PulseCookie,
		"GAME_NAME":       gameName,
		"GAME_APP_ID":     appID,
	}
	for k, v := range extra {
		if k == "" {
			continue
		}
		env[k] = v
	}
	return env
}

// LogFile returns the deterministic per-run log path for a game. The file
// is not created here.
func (p *Provider) LogFile(gameName string, ts time.Time) string {
	return filepath.Join(p.cfg.LogDir,
		fmt.Sprintf("%s_%s.log", sanitizeName(gameName), ts.Format("20060102_150405")))
}

// CleanupOldLogs deletes regular files in the log directory strictly older
// than maxAgeDays and returns the number deleted. A failed individual
// delete does not abort the sweep.
func (p *Provider) CleanupOldLogs(maxAgeDays int) (int, error) {
	entries, err := os.ReadDir(p.cfg.LogDir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, err
	}
	cutoff := time.Now().AddDate(0, 0, -maxAgeDays)
	deleted := 0
	for _, e := range entries {
		info, err := e.Info()
		if err != nil || !info.Mode().IsRegular() {
			continue
		}
		if !info.ModTime().Before(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(p.cfg.LogDir, e.Name())); err == nil {
			deleted++
		}
	}
	return deleted, nil
}

func sanitizeName(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
