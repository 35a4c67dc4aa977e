package app

import (
	"context"

	"rowsync-core/internal/api"
	"rowsync-core/internal/backoff"
	"rowsync-core/internal/broker"
	"rowsync-core/internal/config/schema"
	coreerrors "rowsync-core/internal/core/errors"
	corelog "rowsync-core/internal/core/log"
	"rowsync-core/internal/core/metrics"
	"rowsync-core/internal/core/storage/postgres"
	"rowsync-core/internal/health"
	"rowsync-core/internal/projection"
	"rowsync-core/internal/realtime"
	"rowsync-core/internal/transport"
	"rowsync-core/internal/version"
)

// ============================================================================
// BrokerComponent
// ============================================================================

// BrokerComponent 消息代理组件
type BrokerComponent struct {
	*BaseComponent
}

func NewBrokerComponent() *BrokerComponent {
	return &BrokerComponent{BaseComponent: NewBaseComponent("Broker")}
}

func (c *BrokerComponent) Initialize(ctx context.Context, deps *Dependencies) error {
	cfg := deps.Config.Broker
	brokerCfg := broker.DefaultBrokerConfig(deps.NodeID)
	brokerCfg.BufferSize = deps.Config.Sync.BufferSize
	if cfg.Type == schema.BrokerTypeRedis {
		brokerCfg.Type = broker.BrokerTypeRedis
		brokerCfg.Redis = &broker.RedisBrokerConfig{
			Addrs:       cfg.Redis.Addrs,
			Password:    cfg.Redis.Password.Value(),
			DB:          cfg.Redis.DB,
			ClusterMode: cfg.Redis.ClusterMode,
			PoolSize:    cfg.Redis.PoolSize,
		}
	}

	b, err := broker.NewMessageBroker(ctx, brokerCfg)
	if err != nil {
		return err
	}
	deps.Broker = b
	deps.Logger.Infof("Broker initialized: type=%s, node=%s", brokerCfg.Type, deps.NodeID)
	return deps.register("broker", b.Close)
}

// ============================================================================
// PostgresComponent
// ============================================================================

// PostgresComponent PostgreSQL 组件，配置了 DSN 时打开连接池
type PostgresComponent struct {
	*BaseComponent
}

func NewPostgresComponent() *PostgresComponent {
	return &PostgresComponent{BaseComponent: NewBaseComponent("Postgres")}
}

func (c *PostgresComponent) Initialize(ctx context.Context, deps *Dependencies) error {
	cfg := deps.Config.Postgres
	if cfg.DSN.IsEmpty() {
		return nil
	}

	db, err := postgres.New(ctx, &postgres.Config{DSN: cfg.DSN.Value(), MaxConns: cfg.MaxConns})
	if err != nil {
		return err
	}
	deps.Postgres = db
	deps.Logger.Infof("Postgres initialized: dsn=%s", cfg.DSN)
	return deps.register("postgres", db.Close)
}

// ============================================================================
// MetricsComponent
// ============================================================================

// MetricsComponent 指标组件（/metrics 使用的内存指标）
type MetricsComponent struct {
	*BaseComponent
}

func NewMetricsComponent() *MetricsComponent {
	return &MetricsComponent{BaseComponent: NewBaseComponent("Metrics")}
}

func (c *MetricsComponent) Initialize(ctx context.Context, deps *Dependencies) error {
	deps.Metrics = metrics.NewMemoryMetrics(ctx)
	return deps.register("metrics", deps.Metrics.Close)
}

// ============================================================================
// TransportComponent
// ============================================================================

// TransportComponent 选择上游传输和重新同步加载器
type TransportComponent struct {
	*BaseComponent
}

func NewTransportComponent() *TransportComponent {
	return &TransportComponent{BaseComponent: NewBaseComponent("Transport")}
}

func (c *TransportComponent) Initialize(ctx context.Context, deps *Dependencies) error {
	sync := deps.Config.Sync
	opts := transport.Options{
		SubscribeTimeout: sync.SubscribeTimeout,
		BufferSize:       sync.BufferSize,
	}

	switch sync.Transport {
	case schema.TransportBroker, "":
		if deps.Broker == nil {
			return coreerrors.New(coreerrors.CodeConfigError, "broker transport requires a broker")
		}
		deps.Transport = transport.NewBrokerTransport(deps.Broker, opts, deps.Logger)
	case schema.TransportPostgres:
		if deps.Postgres == nil {
			return coreerrors.New(coreerrors.CodeConfigError, "postgres transport requires postgres.dsn")
		}
		deps.Transport = transport.NewPostgresTransport(deps.Postgres, opts, deps.Logger)
	default:
		return coreerrors.Newf(coreerrors.CodeConfigError, "unsupported transport: %s", sync.Transport)
	}

	if sync.Resync {
		if deps.Postgres == nil {
			return coreerrors.New(coreerrors.CodeConfigError, "resync requires postgres.dsn")
		}
		deps.Loader = transport.NewPostgresLoader(deps.Postgres, deps.Config.Postgres.OrderColumn)
	}

	deps.Logger.Infof("Transport initialized: %s, resync=%v", sync.Transport, sync.Resync)
	return nil
}

// ============================================================================
// RegistryComponent
// ============================================================================

// RegistryComponent 主题注册表组件
type RegistryComponent struct {
	*BaseComponent
}

func NewRegistryComponent() *RegistryComponent {
	return &RegistryComponent{BaseComponent: NewBaseComponent("Registry")}
}

func (c *RegistryComponent) Initialize(ctx context.Context, deps *Dependencies) error {
	if deps.Transport == nil {
		return coreerrors.New(coreerrors.CodeMissingParam, "registry requires a transport")
	}
	var m metrics.Metrics
	if deps.Metrics != nil {
		m = deps.Metrics
	}
	factory, err := NewSupervisorFactory(deps.Config.Sync, deps.Transport, deps.Loader, m, deps.Logger)
	if err != nil {
		return err
	}
	deps.Registry = realtime.NewRegistry(ctx, factory, deps.Logger)
	return deps.register("registry", deps.Registry.Close)
}

// NewSupervisorFactory 按同步配置创建订阅监督器工厂
// loader 和 m 可为 nil
func NewSupervisorFactory(
	cfg schema.SyncConfig,
	tr transport.Transport,
	loader transport.Loader,
	m metrics.Metrics,
	logger corelog.Logger,
) (realtime.Factory, error) {
	policy, err := backoff.NewPolicy(cfg.BaseDelay, cfg.MaxDelay, cfg.Jitter)
	if err != nil {
		return nil, err
	}
	logger = corelog.OrDefault(logger)

	return func(ctx context.Context, topic string) (*realtime.Supervisor, error) {
		store, err := projection.NewStore(projection.Options{
			TombstoneSize: cfg.TombstoneSize,
			Logger:        logger.WithField("topic", topic),
		})
		if err != nil {
			return nil, err
		}
		return realtime.NewSupervisor(ctx, realtime.Options{
			Topic:          topic,
			Transport:      tr,
			Store:          store,
			Policy:         &policy,
			Loader:         loader,
			ResyncInterval: cfg.ResyncInterval,
			Metrics:        m,
			Logger:         logger,
		})
	}, nil
}

// ============================================================================
// TopicsComponent
// ============================================================================

// TopicsComponent 进程运行期间保持配置的主题订阅
type TopicsComponent struct {
	*BaseComponent
	deps *Dependencies
}

func NewTopicsComponent() *TopicsComponent {
	return &TopicsComponent{BaseComponent: NewBaseComponent("Topics")}
}

func (c *TopicsComponent) Initialize(ctx context.Context, deps *Dependencies) error {
	if deps.Registry == nil {
		return coreerrors.New(coreerrors.CodeMissingParam, "topics require a registry")
	}
	c.deps = deps
	return nil
}

func (c *TopicsComponent) Run(ctx context.Context) error {
	var releases []func()
	defer func() {
		for _, release := range releases {
			release()
		}
	}()

	for _, topic := range c.deps.Config.Sync.Topics {
		_, release, err := c.deps.Registry.Acquire(topic)
		if err != nil {
			return coreerrors.Wrapf(err, coreerrors.CodeInternal, "failed to pin topic %s", topic)
		}
		releases = append(releases, release)
		c.deps.Logger.Infof("Topic pinned: %s", topic)
	}

	<-ctx.Done()
	return nil
}

// ============================================================================
// HealthComponent
// ============================================================================

// HealthComponent 健康管理组件
type HealthComponent struct {
	*BaseComponent
}

func NewHealthComponent() *HealthComponent {
	return &HealthComponent{BaseComponent: NewBaseComponent("Health")}
}

func (c *HealthComponent) Initialize(ctx context.Context, deps *Dependencies) error {
	deps.HealthManager = health.NewHealthManager(ctx, deps.NodeID, version.GetShortVersion())
	deps.HealthManager.SetDetail("transport", deps.Config.Sync.Transport)
	return deps.register("health", deps.HealthManager.CloseWithError)
}

// ============================================================================
// APIComponent
// ============================================================================

// APIComponent HTTP API 组件
type APIComponent struct {
	*BaseComponent
	server *api.Server
}

func NewAPIComponent() *APIComponent {
	return &APIComponent{BaseComponent: NewBaseComponent("API")}
}

func (c *APIComponent) Initialize(ctx context.Context, deps *Dependencies) error {
	if deps.Registry == nil {
		return coreerrors.New(coreerrors.CodeMissingParam, "api requires a registry")
	}
	cfg := deps.Config.API
	var source api.MetricsSource
	if deps.Metrics != nil {
		source = deps.Metrics
	}

	c.server = api.NewServer(ctx, api.Config{
		Listen:       cfg.Listen,
		WatchBuffer:  cfg.WatchBuffer,
		AllowOrigins: cfg.AllowOrigins,
	}, deps.Registry, source, deps.HealthManager, deps.Logger)

	if deps.Broker != nil {
		c.server.RegisterChecker("broker", health.NewPingHealthChecker("broker", deps.Broker))
	}
	if deps.Postgres != nil {
		c.server.RegisterChecker("postgres", health.NewPingHealthChecker("postgres", deps.Postgres))
	}

	deps.API = c.server
	return deps.register("api", c.server.Close)
}

func (c *APIComponent) Run(ctx context.Context) error {
	if err := c.server.Start(); err != nil {
		return err
	}
	<-ctx.Done()
	return nil
}
