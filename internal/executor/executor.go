package executor

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/fexdroid/gamelaunchd/internal/fexenv"
	"github.com/fexdroid/gamelaunchd/internal/library"
	"github.com/fexdroid/gamelaunchd/internal/logring"
)

const (
	liveLogCapacity   = 500
	heartbeatInterval = 5 * time.Second
)

// ProcessStatus is the coarse status carried by a GameProcess record.
type ProcessStatus string

const (
	StatusRunning    ProcessStatus = "running"
	StatusCompleted  ProcessStatus = "completed"
	StatusCrashed    ProcessStatus = "crashed"
	StatusTerminated ProcessStatus = "terminated"
)

// GameProcess pairs an installation with its OS-level process handle. It
// exists only while the executor's slot is occupied.
type GameProcess struct {
	Game      library.Installation
	PID       int // best effort; 0 means unknown
	StartedAt time.Time
	Status    ProcessStatus

	cmd *exec.Cmd
}

// Executor supervises at most one active game process through the
// Idle -> Preparing -> Launching -> Running -> {Completed|Failed} lifecycle.
// Terminal states clear the slot.
type Executor struct {
	env     *fexenv.Provider
	fexArgs []string
	logger  *slog.Logger

	mu        sync.Mutex
	game      *library.Installation
	proc      *GameProcess
	state     LaunchState
	stateSubs []func(LaunchState)
	logSubs   []func(string)
	cancelMon context.CancelFunc

	logs *logring.Buffer[string]
}

// Option configures an Executor.
type Option func(*Executor)

// WithFexArgs sets fixed arguments inserted between the emulation binary
// and the game executable.
func WithFexArgs(args ...string) Option {
	return func(e *Executor) { e.fexArgs = args }
}

func WithLogger(l *slog.Logger) Option {
	return func(e *Executor) { e.logger = l }
}

func New(env *fexenv.Provider, opts ...Option) *Executor {
	e := &Executor{
		env:    env,
		state:  Idle{},
		logs:   logring.New[string](liveLogCapacity),
		logger: slog.Default(),
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// OnState registers a state subscription. Subscribers are invoked on every
// transition for the executor's lifetime, terminal states included.
// Register before Launch.
func (e *Executor) OnState(fn func(LaunchState)) {
	e.mu.Lock()
	e.stateSubs = append(e.stateSubs, fn)
	e.mu.Unlock()
}

// OnLog registers a subscriber for captured output lines. Register before Launch.
func (e *Executor) OnLog(fn func(string)) {
	e.mu.Lock()
	e.logSubs = append(e.logSubs, fn)
	e.mu.Unlock()
}

// CurrentGame returns the game occupying the slot, if any.
func (e *Executor) CurrentGame() (library.Installation, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.game == nil {
		return library.Installation{}, false
	}
	return *e.game, true
}

// State returns the current lifecycle state.
func (e *Executor) State() LaunchState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Logs returns a snapshot of the live log ring, oldest first.
func (e *Executor) Logs() []string { return e.logs.Snapshot() }

// Launch runs a single game to completion and returns its outcome. The
// call blocks until the process exits or the launch fails earlier. A call
// while the slot is occupied returns Error with no other side effect.
func (e *Executor) Launch(ctx context.Context, game library.Installation, extraEnv map[string]string) Result {
	e.mu.Lock()
	if e.game != nil {
		e.mu.Unlock()
		return Error{Message: "a game is already running on this executor"}
	}
	e.game = &game
	e.mu.Unlock()

	e.setState(Preparing{Message: "validating " + game.Name})

	info, err := os.Stat(game.Executable)
	if err != nil || !info.Mode().IsRegular() {
		return e.fail(Failed{Reason: "executable not found: " + game.Executable},
			Error{Message: "executable not found: " + game.Executable})
	}

	rt, err := e.env.PrepareRuntime()
	if err != nil {
		return e.fail(Failed{Reason: err.Error()}, Error{Message: err.Error()})
	}

	workDir := game.InstallDir
	if !isDir(workDir) {
		// fallback: the executable's own directory
		workDir = filepath.Dir(game.Executable)
	}

	args := append(append([]string{}, e.fexArgs...), game.Executable)
	// #nosec G204 binary path was validated by PrepareRuntime
	cmd := exec.CommandContext(ctx, rt.BinaryPath, args...)
	cmd.Dir = workDir
	cmd.Env = envSlice(e.env.LaunchEnv(game.Executable, game.Name, game.ID, workDir, extraEnv))
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error { return signalGroup(cmd, syscall.SIGTERM) }

	start := time.Now()
	logPath := e.env.LogFile(game.Name, start)
	if err := os.MkdirAll(filepath.Dir(logPath), 0o750); err != nil {
		return e.fail(Failed{Reason: "log directory: " + err.Error()},
			Error{Message: "failed to prepare log file: " + err.Error()})
	}
	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o640)
	if err != nil {
		return e.fail(Failed{Reason: "log file: " + err.Error()},
			Error{Message: "failed to prepare log file: " + err.Error()})
	}

	pr, pw, err := os.Pipe()
	if err != nil {
		_ = logFile.Close()
		return e.fail(Failed{Reason: "pipe: " + err.Error()},
			Error{Message: "failed to capture output: " + err.Error()})
	}
	cmd.Stdout = pw
	cmd.Stderr = pw

	e.setState(Launching{})

	if err := cmd.Start(); err != nil {
		_ = pw.Close()
		_ = pr.Close()
		_ = logFile.Close()
		return e.fail(Failed{Reason: "spawn failed: " + err.Error()},
			Error{Message: "failed to start process: " + err.Error()})
	}
	// child holds its own copy of the write end
	_ = pw.Close()

	pid := 0
	if cmd.Process != nil {
		pid = cmd.Process.Pid
	}
	proc := &GameProcess{Game: game, PID: pid, StartedAt: start, Status: StatusRunning, cmd: cmd}

	monCtx, cancelMon := context.WithCancel(context.Background())
	e.mu.Lock()
	e.proc = proc
	e.cancelMon = cancelMon
	e.mu.Unlock()

	e.setState(Running{PID: pid, StartedAt: start})
	e.logger.Info("game started", "game", game.Name, "pid", pidLabel(pid), "log", logPath)

	drained := make(chan struct{})
	go e.drainOutput(pr, logFile, drained)
	go e.heartbeat(monCtx, game.Name, start)

	waitErr := cmd.Wait()
	<-drained
	_ = logFile.Close()
	cancelMon()

	duration := time.Since(start)
	code := exitCode(cmd)

	e.mu.Lock()
	terminated := e.proc != nil && e.proc.Status == StatusTerminated
	e.mu.Unlock()

	if code == 0 {
		e.finishProc(StatusCompleted, terminated)
		e.setState(Completed{ExitCode: 0, Duration: duration})
		e.clearSlot()
		e.logger.Info("game completed", "game", game.Name, "duration", duration)
		return Success{ExitCode: 0, Duration: duration}
	}

	e.finishProc(StatusCrashed, terminated)
	e.setState(Failed{Reason: "exited with error", ExitCode: code, HasExitCode: true})
	e.clearSlot()
	e.logger.Warn("game exited abnormally",
		"game", game.Name, "exit_code", code, "duration", duration, "wait_err", waitErr)
	return Crashed{
		ExitCode: code,
		Message:  fmt.Sprintf("game exited with code %d", code),
		Duration: duration,
	}
}

// Terminate sends SIGTERM to the active process group and marks the record
// terminated. The monitor observes the exit and clears the slot. No-op
// when the slot is empty.
func (e *Executor) Terminate() { e.signal(syscall.SIGTERM) }

// Kill is Terminate with SIGKILL.
func (e *Executor) Kill() { e.signal(syscall.SIGKILL) }

func (e *Executor) signal(sig syscall.Signal) {
	e.mu.Lock()
	proc := e.proc
	cancel := e.cancelMon
	e.mu.Unlock()
	if proc == nil || proc.cmd == nil || proc.cmd.Process == nil {
		return
	}
	e.mu.Lock()
	proc.Status = StatusTerminated
	e.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	_ = signalGroup(proc.cmd, sig)
	e.logger.Info("termination signal sent", "game", proc.Game.Name, "signal", sig.String())
}

// drainOutput copies combined stdout/stderr line by line into the per-run
// log file and the live ring. Each write hits the file immediately. The
// pipe stays open until the child closes it: an oversized line stops the
// scanner, but closing our read end would SIGPIPE a healthy game, so on
// scanner failure the remaining bytes are streamed raw into the log file.
func (e *Executor) drainOutput(r *os.File, logFile *os.File, done chan<- struct{}) {
	defer close(done)
	defer func() { _ = r.Close() }()
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := fmt.Sprintf("[%s] %s", time.Now().Format("15:04:05"), sc.Text())
		_, _ = logFile.WriteString(line + "\n")
		e.appendLine(line)
	}
	if err := sc.Err(); err != nil {
		e.appendLine(fmt.Sprintf("[%s] output capture degraded: %v",
			time.Now().Format("15:04:05"), err))
		_, _ = io.Copy(logFile, r)
	}
}

func (e *Executor) heartbeat(ctx context.Context, name string, start time.Time) {
	t := time.NewTicker(heartbeatInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			elapsed := time.Since(start).Milliseconds()
			e.appendLine(fmt.Sprintf("[%s] %s running for %dms",
				time.Now().Format("15:04:05"), name, elapsed))
		}
	}
}

func (e *Executor) appendLine(line string) {
	e.logs.Append(line)
	e.mu.Lock()
	subs := e.logSubs
	e.mu.Unlock()
	for _, fn := range subs {
		fn(line)
	}
}

func (e *Executor) setState(s LaunchState) {
	e.mu.Lock()
	e.state = s
	subs := e.stateSubs
	e.mu.Unlock()
	for _, fn := range subs {
		fn(s)
	}
}

// fail transitions to a terminal Failed state, clears the slot, and
// returns the Error result for the caller.
func (e *Executor) fail(st Failed, res Error) Result {
	e.setState(st)
	e.clearSlot()
	e.logger.Warn("launch failed", "reason", st.Reason)
	return res
}

func (e *Executor) clearSlot() {
	e.mu.Lock()
	e.game = nil
	e.proc = nil
	e.cancelMon = nil
	e.mu.Unlock()
}

// finishProc records the coarse final status; a requested termination
// takes precedence over the exit classification.
func (e *Executor) finishProc(status ProcessStatus, terminated bool) {
	if terminated {
		return
	}
	e.mu.Lock()
	if e.proc != nil {
		e.proc.Status = status
	}
	e.mu.Unlock()
}

func signalGroup(cmd *exec.Cmd, sig syscall.Signal) error {
	if cmd.Process == nil {
		return nil
	}
	return syscall.Kill(-cmd.Process.Pid, sig)
}

// exitCode extracts the exit code, mapping signal deaths to 128+signal so
// a SIGKILL surfaces as 137.
func exitCode(cmd *exec.Cmd) int {
	ps := cmd.ProcessState
	if ps == nil {
		return -1
	}
	if ws, ok := ps.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
		return 128 + int(ws.Signal())
	}
	return ps.ExitCode()
}

func envSlice(m map[string]string) []string {
	out := make([]string, 0, len(m))
	for k, v := range m {
		out = append(out, k+"="+v)
	}
	return out
}

func pidLabel(pid int) string {
	if pid == 0 {
		return "unknown"
	}
	return fmt.Sprintf("%d", pid)
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
