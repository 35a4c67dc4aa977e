package source

import (
	"time"

	"rowsync-core/internal/config/schema"
)

// Default values. The backoff defaults mirror backoff.DefaultBase/DefaultMax.
const (
	DefaultBaseDelay        = 1000 * time.Millisecond
	DefaultMaxDelay         = 30000 * time.Millisecond
	DefaultSubscribeTimeout = 10 * time.Second
	DefaultBufferSize       = 256
	DefaultListen           = "127.0.0.1:8080"
)

// DefaultSource provides default configuration values
type DefaultSource struct{}

// NewDefaultSource creates a new DefaultSource
func NewDefaultSource() *DefaultSource {
	return &DefaultSource{}
}

// Name returns the source name
func (s *DefaultSource) Name() string {
	return "defaults"
}

// Priority returns the source priority
func (s *DefaultSource) Priority() int {
	return PriorityDefaults
}

// LoadInto loads default values into the configuration
func (s *DefaultSource) LoadInto(cfg *schema.Root) error {
	cfg.Log.Level = schema.LogLevelInfo
	cfg.Log.Format = schema.LogFormatText
	cfg.Log.Output = "stderr"

	cfg.Broker.Type = schema.BrokerTypeMemory
	cfg.Broker.Redis.Addrs = []string{"localhost:6379"}
	cfg.Broker.Redis.PoolSize = 20

	cfg.Postgres.MaxConns = 20
	cfg.Postgres.OrderColumn = "id"

	cfg.Sync.Transport = schema.TransportBroker
	cfg.Sync.BaseDelay = DefaultBaseDelay
	cfg.Sync.MaxDelay = DefaultMaxDelay
	cfg.Sync.Jitter = 0
	cfg.Sync.SubscribeTimeout = DefaultSubscribeTimeout
	cfg.Sync.BufferSize = DefaultBufferSize
	cfg.Sync.ResyncInterval = 5 * time.Second

	cfg.API.Listen = DefaultListen
	cfg.API.WatchBuffer = 64

	return nil
}

// GetDefaultConfig returns a new configuration filled with defaults
func GetDefaultConfig() *schema.Root {
	cfg := &schema.Root{}
	_ = NewDefaultSource().LoadInto(cfg)
	return cfg
}
