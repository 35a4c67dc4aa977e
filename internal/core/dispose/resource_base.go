package dispose

import (
	"context"

	corelog "rowsync-core/internal/core/log"
)

// ResourceBase 带名称的资源基类
type ResourceBase struct {
	Dispose
	name string
}

// NewResourceBase 创建未初始化的资源
func NewResourceBase(name string) *ResourceBase {
	return &ResourceBase{name: name}
}

// Initialize 绑定父上下文
func (r *ResourceBase) Initialize(parentCtx context.Context) {
	r.SetCtx(parentCtx, r.onClose)
}

func (r *ResourceBase) onClose() error {
	corelog.Debugf("%s resources cleaned up", r.name)
	return nil
}

// GetName 获取资源名称
func (r *ResourceBase) GetName() string {
	return r.name
}

// ServiceBase 长期运行服务的基类（消息代理、订阅监督器）
type ServiceBase struct {
	*ResourceBase
}

// NewService 创建服务基类
func NewService(name string, parentCtx context.Context) *ServiceBase {
	s := &ServiceBase{ResourceBase: NewResourceBase(name)}
	s.Initialize(parentCtx)
	return s
}

// ManagerBase 管理其他资源的组件基类
type ManagerBase struct {
	*ResourceBase
}

// NewManager 创建管理器基类
func NewManager(name string, parentCtx context.Context) *ManagerBase {
	m := &ManagerBase{ResourceBase: NewResourceBase(name)}
	m.Initialize(parentCtx)
	return m
}
