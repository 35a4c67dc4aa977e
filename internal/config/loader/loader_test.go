package loader

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"rowsync-core/internal/config/schema"
	"rowsync-core/internal/config/source"
)

func TestLoader_NewLoader(t *testing.T) {
	l := NewLoader()
	if l == nil {
		t.Fatal("NewLoader() returned nil")
	}
	if len(l.sources) != 0 {
		t.Errorf("NewLoader() sources = %d, want 0", len(l.sources))
	}
}

func TestLoader_Load_NoSources(t *testing.T) {
	l := NewLoader()
	if _, err := l.Load(); err == nil {
		t.Error("Load() should error when no sources are registered")
	}
}

func TestLoader_Load_DefaultsOnly(t *testing.T) {
	l := NewLoader()
	l.AddSource(source.NewDefaultSource())

	cfg, err := l.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Sync.BaseDelay != time.Second {
		t.Errorf("Sync.BaseDelay = %v, want 1s", cfg.Sync.BaseDelay)
	}
	if cfg.Sync.MaxDelay != 30*time.Second {
		t.Errorf("Sync.MaxDelay = %v, want 30s", cfg.Sync.MaxDelay)
	}
	if cfg.Broker.Type != schema.BrokerTypeMemory {
		t.Errorf("Broker.Type = %q, want memory", cfg.Broker.Type)
	}
}

func TestLoader_Load_PriorityOrder(t *testing.T) {
	dir := t.TempDir()
	configFile := filepath.Join(dir, "rowsync.yaml")
	yamlContent := `
sync:
  base_delay: 2s
  max_delay: 1m
  topics: [posts, comments]
broker:
  type: redis
  redis:
    addrs: ["redis-a:6379"]
`
	if err := os.WriteFile(configFile, []byte(yamlContent), 0o644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("ROWSYNC_SYNC_MAX_DELAY", "45s")

	l := NewLoader()
	// Added out of order on purpose.
	l.AddSource(source.NewEnvSource(EnvPrefix))
	l.AddSource(source.NewYAMLSource(configFile))
	l.AddSource(source.NewDefaultSource())

	cfg, err := l.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Sync.BaseDelay != 2*time.Second {
		t.Errorf("yaml should override defaults: BaseDelay = %v", cfg.Sync.BaseDelay)
	}
	if cfg.Sync.MaxDelay != 45*time.Second {
		t.Errorf("env should override yaml: MaxDelay = %v", cfg.Sync.MaxDelay)
	}
	if len(cfg.Sync.Topics) != 2 || cfg.Sync.Topics[0] != "posts" {
		t.Errorf("Topics = %v", cfg.Sync.Topics)
	}
	if cfg.Broker.Type != schema.BrokerTypeRedis || cfg.Broker.Redis.Addrs[0] != "redis-a:6379" {
		t.Errorf("Broker = %+v", cfg.Broker)
	}
	if cfg.API.Listen != source.DefaultListen {
		t.Errorf("untouched defaults must survive: Listen = %q", cfg.API.Listen)
	}
}

func TestLoader_Load_ValidationFails(t *testing.T) {
	t.Setenv("ROWSYNC_SYNC_JITTER", "1.5")

	l := NewLoader()
	l.AddSource(source.NewDefaultSource())
	l.AddSource(source.NewEnvSource(EnvPrefix))

	if _, err := l.Load(); err == nil {
		t.Error("Load() should reject jitter outside [0, 1)")
	}

	l.SetSkipValidation(true)
	cfg, err := l.Load()
	if err != nil {
		t.Fatalf("Load() with validation skipped error = %v", err)
	}
	if cfg.Sync.Jitter != 1.5 {
		t.Errorf("Jitter = %v, want 1.5", cfg.Sync.Jitter)
	}
}

func TestLoader_Load_InvalidYAML(t *testing.T) {
	configFile := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(configFile, []byte("sync: [unclosed"), 0o644); err != nil {
		t.Fatal(err)
	}

	l := NewLoader()
	l.AddSource(source.NewDefaultSource())
	l.AddSource(source.NewYAMLSource(configFile))
	if _, err := l.Load(); err == nil {
		t.Error("Load() should fail on malformed YAML")
	}
}

func TestLoaderBuilder_Build(t *testing.T) {
	dir := t.TempDir()
	configFile := filepath.Join(dir, "rowsync.yaml")
	if err := os.WriteFile(configFile, []byte("api:\n  listen: 127.0.0.1:9999\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("ROWSYNC_SYNC_TOPICS=posts,users\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("ROWSYNC_SYNC_TOPICS", "")
	os.Unsetenv("ROWSYNC_SYNC_TOPICS")

	cfg, err := NewLoaderBuilder().
		WithConfigFile(configFile).
		Build().
		Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.API.Listen != "127.0.0.1:9999" {
		t.Errorf("Listen = %q", cfg.API.Listen)
	}
	if len(cfg.Sync.Topics) != 2 || cfg.Sync.Topics[1] != "users" {
		t.Errorf("Topics from .env = %v", cfg.Sync.Topics)
	}
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("a missing file is skipped, got error %v", err)
	}
	if cfg.Sync.Transport != schema.TransportBroker {
		t.Errorf("Transport = %q", cfg.Sync.Transport)
	}
}
