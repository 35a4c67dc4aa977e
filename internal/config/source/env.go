package source

import (
	"os"
	"strconv"
	"strings"
	"time"

	"rowsync-core/internal/config/schema"
)

// EnvSource loads configuration from environment variables
type EnvSource struct {
	prefix string
}

// NewEnvSource creates a new EnvSource with the specified prefix
func NewEnvSource(prefix string) *EnvSource {
	return &EnvSource{
		prefix: prefix,
	}
}

// Name returns the source name
func (s *EnvSource) Name() string {
	return "env"
}

// Priority returns the source priority
func (s *EnvSource) Priority() int {
	return PriorityEnv
}

// LoadInto loads environment variables into the config structure
func (s *EnvSource) LoadInto(cfg *schema.Root) error {
	// Log
	s.loadString("LOG_LEVEL", &cfg.Log.Level)
	s.loadString("LOG_FORMAT", &cfg.Log.Format)
	s.loadString("LOG_OUTPUT", &cfg.Log.Output)
	s.loadString("LOG_FILE", &cfg.Log.File)

	// Broker
	s.loadString("BROKER_TYPE", &cfg.Broker.Type)
	s.loadString("BROKER_NODE_ID", &cfg.Broker.NodeID)
	s.loadStringSlice("REDIS_ADDRS", &cfg.Broker.Redis.Addrs)
	s.loadSecret("REDIS_PASSWORD", &cfg.Broker.Redis.Password)
	s.loadInt("REDIS_DB", &cfg.Broker.Redis.DB)
	s.loadInt("REDIS_POOL_SIZE", &cfg.Broker.Redis.PoolSize)
	s.loadBool("REDIS_CLUSTER_MODE", &cfg.Broker.Redis.ClusterMode)

	// Postgres
	s.loadSecret("POSTGRES_DSN", &cfg.Postgres.DSN)
	s.loadInt32("POSTGRES_MAX_CONNS", &cfg.Postgres.MaxConns)
	s.loadString("POSTGRES_ORDER_COLUMN", &cfg.Postgres.OrderColumn)

	// Sync
	s.loadString("SYNC_TRANSPORT", &cfg.Sync.Transport)
	s.loadDuration("SYNC_BASE_DELAY", &cfg.Sync.BaseDelay)
	s.loadDuration("SYNC_MAX_DELAY", &cfg.Sync.MaxDelay)
	s.loadFloat("SYNC_JITTER", &cfg.Sync.Jitter)
	s.loadDuration("SYNC_SUBSCRIBE_TIMEOUT", &cfg.Sync.SubscribeTimeout)
	s.loadInt("SYNC_BUFFER_SIZE", &cfg.Sync.BufferSize)
	s.loadInt("SYNC_TOMBSTONE_SIZE", &cfg.Sync.TombstoneSize)
	s.loadBool("SYNC_RESYNC", &cfg.Sync.Resync)
	s.loadDuration("SYNC_RESYNC_INTERVAL", &cfg.Sync.ResyncInterval)
	s.loadStringSlice("SYNC_TOPICS", &cfg.Sync.Topics)

	// API
	s.loadString("API_LISTEN", &cfg.API.Listen)
	s.loadInt("API_WATCH_BUFFER", &cfg.API.WatchBuffer)
	s.loadStringSlice("API_ALLOW_ORIGINS", &cfg.API.AllowOrigins)

	return nil
}

// getEnv gets environment variable with the configured prefix
func (s *EnvSource) getEnv(key string) (string, bool) {
	prefixedKey := s.prefix + "_" + key
	if v := os.Getenv(prefixedKey); v != "" {
		return v, true
	}
	return "", false
}

func (s *EnvSource) loadString(key string, target *string) {
	if v, ok := s.getEnv(key); ok {
		*target = v
	}
}

func (s *EnvSource) loadSecret(key string, target *schema.Secret) {
	if v, ok := s.getEnv(key); ok {
		*target = schema.Secret(v)
	}
}

func (s *EnvSource) loadBool(key string, target *bool) {
	if v, ok := s.getEnv(key); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			*target = b
		}
	}
}

func (s *EnvSource) loadInt(key string, target *int) {
	if v, ok := s.getEnv(key); ok {
		if i, err := strconv.Atoi(v); err == nil {
			*target = i
		}
	}
}

func (s *EnvSource) loadInt32(key string, target *int32) {
	if v, ok := s.getEnv(key); ok {
		if i, err := strconv.ParseInt(v, 10, 32); err == nil {
			*target = int32(i)
		}
	}
}

func (s *EnvSource) loadFloat(key string, target *float64) {
	if v, ok := s.getEnv(key); ok {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*target = f
		}
	}
}

// loadDuration accepts Go durations ("1.5s") or bare milliseconds ("1500").
func (s *EnvSource) loadDuration(key string, target *time.Duration) {
	if v, ok := s.getEnv(key); ok {
		if d, err := time.ParseDuration(v); err == nil {
			*target = d
		} else if ms, err := strconv.ParseInt(v, 10, 64); err == nil {
			*target = time.Duration(ms) * time.Millisecond
		}
	}
}

func (s *EnvSource) loadStringSlice(key string, target *[]string) {
	if v, ok := s.getEnv(key); ok {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, part := range parts {
			trimmed := strings.TrimSpace(part)
			if trimmed != "" {
				result = append(result, trimmed)
			}
		}
		if len(result) > 0 {
			*target = result
		}
	}
}
