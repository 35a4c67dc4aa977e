// Package app 按组件装配并运行同步守护进程
package app

import (
	"context"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"rowsync-core/internal/config/schema"
	"rowsync-core/internal/core/dispose"
	coreerrors "rowsync-core/internal/core/errors"
	corelog "rowsync-core/internal/core/log"
)

// DefaultShutdownTimeout 资源释放超时时间
const DefaultShutdownTimeout = 15 * time.Second

// Builder 按顺序由组件构建 App
type Builder struct {
	config     *schema.Root
	logger     corelog.Logger
	components []Component
}

// NewBuilder 创建构建器
func NewBuilder(cfg *schema.Root) *Builder {
	return &Builder{config: cfg}
}

// WithLogger 设置日志器
func (b *Builder) WithLogger(logger corelog.Logger) *Builder {
	b.logger = logger
	return b
}

// With 追加组件
func (b *Builder) With(c Component) *Builder {
	b.components = append(b.components, c)
	return b
}

// WithSync 添加跟踪主题所需的组件（不提供 API）
func (b *Builder) WithSync() *Builder {
	return b.
		With(NewBrokerComponent()).
		With(NewPostgresComponent()).
		With(NewMetricsComponent()).
		With(NewTransportComponent()).
		With(NewRegistryComponent())
}

// WithDefaults 添加完整守护进程所需的全部组件
func (b *Builder) WithDefaults() *Builder {
	return b.WithSync().
		With(NewTopicsComponent()).
		With(NewHealthComponent()).
		With(NewAPIComponent())
}

// Build 按顺序初始化所有组件，失败时释放已初始化的资源。
// 取消 ctx 会同时关闭所有组件，
// 应通过 Run 停止进程
func (b *Builder) Build(ctx context.Context) (*App, error) {
	if b.config == nil {
		return nil, coreerrors.New(coreerrors.CodeMissingParam, "config is required")
	}

	nodeID := b.config.Broker.NodeID
	if nodeID == "" {
		nodeID = uuid.NewString()
	}
	deps := &Dependencies{
		Config:    b.config,
		NodeID:    nodeID,
		Logger:    corelog.OrDefault(b.logger),
		Resources: dispose.NewResourceManager(),
	}

	for _, c := range b.components {
		deps.Logger.Debugf("Initializing component: %s", c.Name())
		if err := c.Initialize(ctx, deps); err != nil {
			deps.Resources.DisposeAll()
			return nil, NewComponentError(c.Name(), err)
		}
	}

	return &App{
		deps:            deps,
		components:      b.components,
		ShutdownTimeout: DefaultShutdownTimeout,
	}, nil
}

// App 已装配的守护进程
type App struct {
	deps       *Dependencies
	components []Component

	ShutdownTimeout time.Duration
}

// Deps 获取已装配的组件
func (a *App) Deps() *Dependencies { return a.deps }

// Run 运行所有 Runner，直到 ctx 取消或某个 Runner 失败，
// 然后进入 draining 并释放所有资源
func (a *App) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, c := range a.components {
		r, ok := c.(Runner)
		if !ok {
			continue
		}
		name := c.Name()
		g.Go(func() error {
			if err := r.Run(gctx); err != nil {
				return NewComponentError(name, err)
			}
			return nil
		})
	}

	err := g.Wait()
	if err != nil {
		a.deps.Logger.Errorf("Stopping after failure: %v", err)
	}
	if closeErr := a.Close(); closeErr != nil && err == nil {
		err = closeErr
	}
	return err
}

// Close 标记 draining 并释放所有资源（API 最先释放）
func (a *App) Close() error {
	if a.deps.HealthManager != nil {
		a.deps.HealthManager.MarkDraining()
	}
	a.deps.Logger.Info("Shutting down...")

	result := a.deps.Resources.DisposeWithTimeout(a.ShutdownTimeout)
	if result.HasErrors() {
		a.deps.Logger.Warnf("Shutdown finished with errors: %s", result.Error())
		return coreerrors.New(coreerrors.CodeInternal, result.Error())
	}
	a.deps.Logger.Info("Shutdown completed")
	return nil
}
