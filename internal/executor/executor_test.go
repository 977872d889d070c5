package executor

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/fexdroid/gamelaunchd/internal/fexenv"
	"github.com/fexdroid/gamelaunchd/internal/library"
)

// newTestEnv stages a runtime whose "emulation binary" is a shell wrapper
// that simply executes the game script it is handed.
func newTestEnv(t *testing.T) *fexenv.Provider {
	t.Helper()
	root := t.TempDir()
	binDir := filepath.Join(root, "usr", "bin")
	if err := os.MkdirAll(binDir, 0o755); err != nil {
		t.Fatal(err)
	}
	interp := filepath.Join(binDir, "FEXInterpreter")
	if err := os.WriteFile(interp, []byte("#!/bin/sh\nexec /bin/sh \"$@\"\n"), 0o755); err != nil {
		t.Fatal(err)
	}
	return fexenv.New(fexenv.Config{RootDir: root})
}

// writeGame writes a shell-script "game executable" and returns its installation.
func writeGame(t *testing.T, id, name, script string) library.Installation {
	t.Helper()
	dir := t.TempDir()
	exe := filepath.Join(dir, name+".sh")
	if err := os.WriteFile(exe, []byte("#!/bin/sh\n"+script+"\n"), 0o755); err != nil {
		t.Fatal(err)
	}
	return library.Installation{ID: id, Name: name, Executable: exe, InstallDir: dir}
}

func TestLaunchSuccess(t *testing.T) {
	env := newTestEnv(t)
	ex := New(env)
	game := writeGame(t, "1", "ok", "echo hello; exit 0")

	res := ex.Launch(context.Background(), game, nil)
	s, ok := res.(Success)
	if !ok {
		t.Fatalf("result = %#v, want Success", res)
	}
	if s.ExitCode != 0 || s.Duration < 0 {
		t.Fatalf("Success = %+v", s)
	}
	st, ok := ex.State().(Completed)
	if !ok || st.ExitCode != 0 {
		t.Fatalf("state = %#v, want Completed(0)", ex.State())
	}
	if _, occupied := ex.CurrentGame(); occupied {
		t.Fatal("terminal state must clear the slot")
	}
}

func TestLaunchCapturesOutput(t *testing.T) {
	env := newTestEnv(t)
	ex := New(env)
	game := writeGame(t, "2", "chatty", "echo line-one; echo line-two 1>&2")

	if _, ok := ex.Launch(context.Background(), game, nil).(Success); !ok {
		t.Fatal("expected Success")
	}

	logs := strings.Join(ex.Logs(), "\n")
	if !strings.Contains(logs, "line-one") || !strings.Contains(logs, "line-two") {
		t.Fatalf("live log missing combined output:\n%s", logs)
	}

	// per-run log file exists and carries timestamp-prefixed lines
	entries, err := os.ReadDir(env.LogDir())
	if err != nil || len(entries) != 1 {
		t.Fatalf("log dir entries = %v, %v", entries, err)
	}
	data, err := os.ReadFile(filepath.Join(env.LogDir(), entries[0].Name()))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "] line-one") {
		t.Fatalf("log file content = %q", string(data))
	}
}

func TestLaunchSurvivesOversizedOutputLine(t *testing.T) {
	env := newTestEnv(t)
	ex := New(env)
	// one 2MB line without a newline blows past the scanner cap; the game
	// must still run to its clean exit
	game := writeGame(t, "11", "verbose",
		"head -c 2097152 /dev/zero | tr '\\0' x; echo; echo survived; exit 0")

	res := ex.Launch(context.Background(), game, nil)
	s, ok := res.(Success)
	if !ok {
		t.Fatalf("result = %#v, want Success", res)
	}
	if s.ExitCode != 0 {
		t.Fatalf("exit code = %d, want 0", s.ExitCode)
	}

	logs := strings.Join(ex.Logs(), "\n")
	if !strings.Contains(logs, "output capture degraded") {
		t.Fatalf("live log missing capture-degraded marker:\n%s", logs[:min(len(logs), 500)])
	}

	// the raw fallback keeps writing the remaining output to the log file
	entries, err := os.ReadDir(env.LogDir())
	if err != nil || len(entries) != 1 {
		t.Fatalf("log dir entries = %v, %v", entries, err)
	}
	data, err := os.ReadFile(filepath.Join(env.LogDir(), entries[0].Name()))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "survived") {
		t.Fatal("log file missing output written after the oversized line")
	}
}

func TestLaunchNonzeroExitIsCrashed(t *testing.T) {
	env := newTestEnv(t)
	ex := New(env)
	game := writeGame(t, "3", "broken", "exit 3")

	res := ex.Launch(context.Background(), game, nil)
	c, ok := res.(Crashed)
	if !ok {
		t.Fatalf("result = %#v, want Crashed", res)
	}
	if c.ExitCode != 3 {
		t.Fatalf("exit code = %d, want 3", c.ExitCode)
	}
	st, ok := ex.State().(Failed)
	if !ok || !st.HasExitCode || st.ExitCode != 3 {
		t.Fatalf("state = %#v, want Failed(exit 3)", ex.State())
	}
}

func TestLaunchMissingExecutable(t *testing.T) {
	env := newTestEnv(t)
	ex := New(env)
	game := library.Installation{ID: "4", Name: "ghost", Executable: "/nonexistent/game.bin"}

	res := ex.Launch(context.Background(), game, nil)
	if _, ok := res.(Error); !ok {
		t.Fatalf("result = %#v, want Error", res)
	}
	if _, occupied := ex.CurrentGame(); occupied {
		t.Fatal("failed prepare must clear the slot")
	}
	// no per-run log file for a launch that never spawned
	if entries, _ := os.ReadDir(env.LogDir()); len(entries) != 0 {
		t.Fatalf("unexpected log files: %v", entries)
	}
}

func TestLaunchUninitializedRuntime(t *testing.T) {
	env := fexenv.New(fexenv.Config{RootDir: t.TempDir()})
	ex := New(env)
	game := writeGame(t, "5", "anygame", "exit 0")

	res := ex.Launch(context.Background(), game, nil)
	e, ok := res.(Error)
	if !ok {
		t.Fatalf("result = %#v, want Error", res)
	}
	if !strings.Contains(e.Message, "not initialized") {
		t.Fatalf("message = %q", e.Message)
	}
}

func TestLaunchWhileOccupied(t *testing.T) {
	env := newTestEnv(t)
	ex := New(env)
	long := writeGame(t, "6", "long", "sleep 5")

	done := make(chan Result, 1)
	go func() { done <- ex.Launch(context.Background(), long, nil) }()

	waitForRunning(t, ex)

	if _, ok := ex.Launch(context.Background(), long, nil).(Error); !ok {
		t.Fatal("second launch on occupied slot must return Error")
	}

	ex.Kill()
	<-done
}

func TestKillReportsSignalExitCode(t *testing.T) {
	env := newTestEnv(t)
	ex := New(env)
	game := writeGame(t, "7", "victim", "sleep 30")

	done := make(chan Result, 1)
	go func() { done <- ex.Launch(context.Background(), game, nil) }()

	waitForRunning(t, ex)
	ex.Kill()

	res := <-done
	c, ok := res.(Crashed)
	if !ok {
		t.Fatalf("result = %#v, want Crashed", res)
	}
	if c.ExitCode != 137 {
		t.Fatalf("exit code = %d, want 137 (128+SIGKILL)", c.ExitCode)
	}
}

func TestTerminateEmptySlotIsNoop(t *testing.T) {
	ex := New(newTestEnv(t))
	ex.Terminate()
	ex.Kill()
	if _, ok := ex.State().(Idle); !ok {
		t.Fatalf("state = %#v, want Idle", ex.State())
	}
}

func TestStateSubscriptionSeesOrderedLifecycle(t *testing.T) {
	env := newTestEnv(t)
	ex := New(env)

	var seen []string
	ex.OnState(func(s LaunchState) {
		switch s.(type) {
		case Preparing:
			seen = append(seen, "preparing")
		case Launching:
			seen = append(seen, "launching")
		case Running:
			seen = append(seen, "running")
		case Completed:
			seen = append(seen, "completed")
		case Failed:
			seen = append(seen, "failed")
		}
	})

	game := writeGame(t, "8", "seq", "exit 0")
	if _, ok := ex.Launch(context.Background(), game, nil).(Success); !ok {
		t.Fatal("expected Success")
	}

	want := []string{"preparing", "launching", "running", "completed"}
	if len(seen) != len(want) {
		t.Fatalf("transitions = %v, want %v", seen, want)
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Fatalf("transitions = %v, want %v", seen, want)
		}
	}
}

func waitForRunning(t *testing.T, ex *Executor) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if _, ok := ex.State().(Running); ok {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("process never reached Running, state = %#v", ex.State())
}
