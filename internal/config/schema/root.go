// Package schema defines configuration structure types
package schema

import "time"

// Root is the top-level configuration structure
type Root struct {
	Log      LogConfig      `yaml:"log" json:"log"`
	Broker   BrokerConfig   `yaml:"broker" json:"broker"`
	Postgres PostgresConfig `yaml:"postgres" json:"postgres"`
	Sync     SyncConfig     `yaml:"sync" json:"sync"`
	API      APIConfig      `yaml:"api" json:"api"`
}

// Transport names accepted in sync.transport.
const (
	TransportBroker   = "broker"
	TransportPostgres = "postgres"
)

// Broker types accepted in broker.type.
const (
	BrokerTypeMemory = "memory"
	BrokerTypeRedis  = "redis"
)

// BrokerConfig selects the pub/sub backend.
type BrokerConfig struct {
	Type   string      `yaml:"type" json:"type"` // memory/redis
	NodeID string      `yaml:"node_id" json:"node_id"`
	Redis  RedisConfig `yaml:"redis" json:"redis"`
}

// RedisConfig contains Redis connection settings
type RedisConfig struct {
	Addrs       []string `yaml:"addrs" json:"addrs"`
	Password    Secret   `yaml:"password" json:"password"`
	DB          int      `yaml:"db" json:"db"`
	PoolSize    int      `yaml:"pool_size" json:"pool_size"`
	ClusterMode bool     `yaml:"cluster_mode" json:"cluster_mode"`
}

// PostgresConfig is used by the postgres transport and the resync loader.
type PostgresConfig struct {
	DSN         Secret `yaml:"dsn" json:"dsn"`
	MaxConns    int32  `yaml:"max_conns" json:"max_conns"`
	OrderColumn string `yaml:"order_column" json:"order_column"` // newest first by this column
}

// SyncConfig tunes the realtime supervisors.
type SyncConfig struct {
	Transport        string        `yaml:"transport" json:"transport"` // broker/postgres
	BaseDelay        time.Duration `yaml:"base_delay" json:"base_delay"`
	MaxDelay         time.Duration `yaml:"max_delay" json:"max_delay"`
	Jitter           float64       `yaml:"jitter" json:"jitter"`
	SubscribeTimeout time.Duration `yaml:"subscribe_timeout" json:"subscribe_timeout"`
	BufferSize       int           `yaml:"buffer_size" json:"buffer_size"`
	TombstoneSize    int           `yaml:"tombstone_size" json:"tombstone_size"`
	Resync           bool          `yaml:"resync" json:"resync"`
	ResyncInterval   time.Duration `yaml:"resync_interval" json:"resync_interval"`
	Topics           []string      `yaml:"topics" json:"topics"` // kept subscribed for the process lifetime
}

// APIConfig contains the HTTP listener settings
type APIConfig struct {
	Listen       string   `yaml:"listen" json:"listen"`
	WatchBuffer  int      `yaml:"watch_buffer" json:"watch_buffer"`
	AllowOrigins []string `yaml:"allow_origins" json:"allow_origins"`
}
