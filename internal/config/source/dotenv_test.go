package source

import (
	"os"
	"path/filepath"
	"testing"
)

func TestParseEnvLine(t *testing.T) {
	tests := []struct {
		line      string
		key, val  string
		wantFound bool
	}{
		{"ROWSYNC_LOG_LEVEL=debug", "ROWSYNC_LOG_LEVEL", "debug", true},
		{"  export ROWSYNC_API_LISTEN = :9000 ", "ROWSYNC_API_LISTEN", ":9000", true},
		{`ROWSYNC_POSTGRES_DSN="postgres://u:p@h/db"`, "ROWSYNC_POSTGRES_DSN", "postgres://u:p@h/db", true},
		{"ROWSYNC_REDIS_PASSWORD='s3cret'", "ROWSYNC_REDIS_PASSWORD", "s3cret", true},
		{"# comment", "", "", false},
		{"", "", "", false},
		{"NOEQUALS", "", "", false},
		{"=value", "", "value", false},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			key, val, ok := parseEnvLine(tt.line)
			if ok != tt.wantFound {
				t.Fatalf("parseEnvLine(%q) ok = %v, want %v", tt.line, ok, tt.wantFound)
			}
			if ok && (key != tt.key || val != tt.val) {
				t.Errorf("parseEnvLine(%q) = (%q, %q), want (%q, %q)", tt.line, key, val, tt.key, tt.val)
			}
		})
	}
}

func TestDotEnvSource_LoadInto(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, ".env"), `
ROWSYNC_LOG_LEVEL=debug
ROWSYNC_API_LISTEN=:7000
OTHER_VAR=ignored
`)
	writeFile(t, filepath.Join(dir, ".env.local"), "ROWSYNC_SYNC_JITTER=0.3\n")

	// Already set variables win over .env files.
	t.Setenv("ROWSYNC_API_LISTEN", ":8000")
	for _, key := range []string{"ROWSYNC_LOG_LEVEL", "ROWSYNC_SYNC_JITTER", "OTHER_VAR"} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}

	if err := NewDotEnvSource("ROWSYNC", []string{dir}).LoadInto(GetDefaultConfig()); err != nil {
		t.Fatalf("LoadInto() error = %v", err)
	}

	if got := os.Getenv("ROWSYNC_LOG_LEVEL"); got != "debug" {
		t.Errorf("ROWSYNC_LOG_LEVEL = %q", got)
	}
	if got := os.Getenv("ROWSYNC_SYNC_JITTER"); got != "0.3" {
		t.Errorf(".env.local not loaded: ROWSYNC_SYNC_JITTER = %q", got)
	}
	if got := os.Getenv("ROWSYNC_API_LISTEN"); got != ":8000" {
		t.Errorf("existing variable replaced: ROWSYNC_API_LISTEN = %q", got)
	}
	if _, set := os.LookupEnv("OTHER_VAR"); set {
		t.Error("variables without the prefix must be skipped")
	}

	cfg := GetDefaultConfig()
	if err := NewEnvSource("ROWSYNC").LoadInto(cfg); err != nil {
		t.Fatal(err)
	}
	if cfg.Log.Level != "debug" || cfg.Sync.Jitter != 0.3 {
		t.Errorf("env source should see .env values, got level=%q jitter=%v", cfg.Log.Level, cfg.Sync.Jitter)
	}
}

func TestFindDotEnvDirs(t *testing.T) {
	dirs := FindDotEnvDirs("/etc/rowsync/config.yaml")
	if len(dirs) == 0 || dirs[0] != "/etc/rowsync" {
		t.Errorf("FindDotEnvDirs() = %v", dirs)
	}
}
