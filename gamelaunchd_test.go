package gamelaunchd

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func requireUnix(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("requires Unix-like environment")
	}
}

// stageRuntime lays out a minimal runtime root with a shell standing in
// for the emulation binary.
func stageRuntime(t *testing.T) string {
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
	return root
}

func stageGame(t *testing.T, root, id, name, script string) Installation {
	t.Helper()
	dir := filepath.Join(root, "games", id)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	exe := filepath.Join(dir, "game.sh")
	if err := os.WriteFile(exe, []byte(script), 0o755); err != nil {
		t.Fatal(err)
	}
	return Installation{ID: id, Name: name, Executable: exe, InstallDir: dir}
}

func TestLauncherFacadeLaunchAndHistory(t *testing.T) {
	requireUnix(t)
	root := stageRuntime(t)
	l := New(Options{RootDir: root, Policy: PolicySerial})
	game := stageGame(t, root, "100", "Quick Game", "#!/bin/sh\nexit 0\n")

	res := l.Launch(context.Background(), game, nil)
	s, ok := res.(Success)
	if !ok {
		t.Fatalf("expected Success, got %T: %+v", res, res)
	}
	if s.ExitCode != 0 {
		t.Fatalf("unexpected exit code %d", s.ExitCode)
	}

	hist := l.History()
	if len(hist) != 1 || hist[0].GameID != "100" || !hist[0].Success {
		t.Fatalf("unexpected history: %+v", hist)
	}
	if len(l.Active()) != 0 {
		t.Fatalf("no games should remain active")
	}
}

func TestLauncherFacadeTerminateUnknown(t *testing.T) {
	root := stageRuntime(t)
	l := New(Options{RootDir: root})
	if l.Terminate("nope") {
		t.Fatal("terminating an unknown game should report false")
	}
	if l.Kill("nope") {
		t.Fatal("killing an unknown game should report false")
	}
}

func TestStaticLibraryFacade(t *testing.T) {
	lib := NewStaticLibrary([]Installation{
		{ID: "1", Name: "A", Executable: "/g/a/a.exe", InstallDir: "/g/a"},
	})
	if _, err := lib.ByID(context.Background(), "1"); err != nil {
		t.Fatalf("ByID: %v", err)
	}
	if _, err := lib.ByID(context.Background(), "2"); err == nil {
		t.Fatal("expected lookup miss for unknown id")
	}
}

func TestRegisterMetricsTwice(t *testing.T) {
	r := prometheus.NewRegistry()
	if err := RegisterMetrics(r); err != nil {
		t.Fatalf("first register: %v", err)
	}
	if err := RegisterMetrics(r); err != nil {
		t.Fatalf("second register should be a no-op: %v", err)
	}
}

func TestHTTPServerFacade(t *testing.T) {
	requireUnix(t)
	root := stageRuntime(t)
	l := New(Options{RootDir: root})

	srv, err := NewHTTPServer("127.0.0.1:0", "/api", l)
	if err != nil {
		t.Fatalf("NewHTTPServer: %v", err)
	}
	ts := httptest.NewServer(srv.Handler)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/healthz")
	if err != nil {
		t.Fatalf("healthz: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status %d", resp.StatusCode)
	}
}
