package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/fexdroid/gamelaunchd/internal/pool"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "gamelaunchd.toml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadFullConfig(t *testing.T) {
	path := writeConfig(t, `
[runtime]
root_dir = "/data/fexdroid"
binary = "/data/fexdroid/usr/bin/FEXInterpreter"
fex_args = ["--no-jit"]

[pool]
policy = "concurrent"
max_concurrent = 2

[bridge]
request_path = "/data/local/tmp/launch_request.txt"
response_path = "/data/local/tmp/launch_response.txt"
poll_interval = "500ms"

[library]
type = "static"

[[library.games]]
id = "100"
name = "Foo"
executable = "/games/Foo/foo.bin"
install_dir = "/games/Foo"

[log]
level = "debug"
file = "/data/fexdroid/gamelaunchd.log"
retention_days = 14

[server]
listen = "127.0.0.1:9000"

[[history_sinks]]
type = "postgres"
dsn = "postgres://u:p@localhost/fexdroid"
`)
	c, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.PoolPolicy() != pool.PolicyConcurrent || c.Pool.MaxConcurrent != 2 {
		t.Fatalf("pool = %+v", c.Pool)
	}
	if c.Bridge.PollInterval != 500*time.Millisecond {
		t.Fatalf("poll interval = %v", c.Bridge.PollInterval)
	}
	if len(c.Library.Games) != 1 || c.Library.Games[0].ID != "100" {
		t.Fatalf("games = %+v", c.Library.Games)
	}
	if c.Log.RetentionDays != 14 {
		t.Fatalf("retention = %d", c.Log.RetentionDays)
	}
	if len(c.History) != 1 || c.History[0].Type != "postgres" {
		t.Fatalf("history sinks = %+v", c.History)
	}
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
[runtime]
root_dir = "/data/fexdroid"
`)
	c, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.PoolPolicy() != pool.PolicySerial {
		t.Fatalf("default policy = %q", c.Pool.Policy)
	}
	if c.Pool.MaxConcurrent != 3 {
		t.Fatalf("default cap = %d", c.Pool.MaxConcurrent)
	}
	if c.Bridge.PollInterval != time.Second {
		t.Fatalf("default poll interval = %v", c.Bridge.PollInterval)
	}
	if c.Log.RetentionDays != 7 {
		t.Fatalf("default retention = %d", c.Log.RetentionDays)
	}
	if c.Library.Type != "static" {
		t.Fatalf("default library type = %q", c.Library.Type)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{
			name: "missing root dir",
			body: "[pool]\npolicy = \"serial\"\n",
			want: "root_dir",
		},
		{
			name: "bad policy",
			body: "[runtime]\nroot_dir = \"/r\"\n[pool]\npolicy = \"parallel\"\n",
			want: "pool.policy",
		},
		{
			name: "sqlite library without path",
			body: "[runtime]\nroot_dir = \"/r\"\n[library]\ntype = \"sqlite\"\n",
			want: "library.path",
		},
		{
			name: "unknown sink type",
			body: "[runtime]\nroot_dir = \"/r\"\n[[history_sinks]]\ntype = \"kafka\"\ndsn = \"x\"\n",
			want: "history_sinks",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("err = %v, want mention of %q", err, tt.want)
			}
		})
	}
}
