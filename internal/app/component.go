package app

import (
	"context"
	"fmt"

	"rowsync-core/internal/api"
	"rowsync-core/internal/broker"
	"rowsync-core/internal/config/schema"
	"rowsync-core/internal/core/dispose"
	corelog "rowsync-core/internal/core/log"
	"rowsync-core/internal/core/metrics"
	"rowsync-core/internal/core/storage/postgres"
	"rowsync-core/internal/health"
	"rowsync-core/internal/realtime"
	"rowsync-core/internal/transport"
)

// Component 组件接口
// Initialize 从 deps 读取依赖，并将产出写回 deps
type Component interface {
	Name() string
	Initialize(ctx context.Context, deps *Dependencies) error
}

// Runner 进程运行期间需要执行任务的组件
// Run 阻塞至 ctx 取消，返回错误会停止其他 Runner
type Runner interface {
	Run(ctx context.Context) error
}

// Dependencies 组件依赖容器
type Dependencies struct {
	Config *schema.Root
	NodeID string
	Logger corelog.Logger

	// 关闭时按注册逆序释放
	Resources *dispose.ResourceManager

	Broker    broker.MessageBroker
	Postgres  *postgres.Storage
	Metrics   *metrics.MemoryMetrics
	Transport transport.Transport
	Loader    transport.Loader
	Registry  *realtime.Registry

	HealthManager *health.HealthManager
	API           *api.Server
}

// register 将关闭函数注册到资源管理器
func (d *Dependencies) register(name string, closeFn func() error) error {
	return d.Resources.Register(name, dispose.DisposableFunc(closeFn))
}

// BaseComponent 组件基类
type BaseComponent struct {
	name string
}

// NewBaseComponent 创建组件基类
func NewBaseComponent(name string) *BaseComponent {
	return &BaseComponent{name: name}
}

func (c *BaseComponent) Name() string { return c.name }

// ComponentError 组件初始化或启动错误
type ComponentError struct {
	ComponentName string
	Err           error
}

func (e *ComponentError) Error() string {
	return fmt.Sprintf("component %s failed: %v", e.ComponentName, e.Err)
}

func (e *ComponentError) Unwrap() error {
	return e.Err
}

// NewComponentError 创建组件错误
func NewComponentError(name string, err error) *ComponentError {
	return &ComponentError{ComponentName: name, Err: err}
}
