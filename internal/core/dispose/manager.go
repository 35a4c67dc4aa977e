package dispose

import (
	"context"
	"fmt"
	"sync"
	"time"

	corelog "rowsync-core/internal/core/log"
)

// ResourceManager 资源管理器，按注册的逆序释放资源
type ResourceManager struct {
	resources map[string]Disposable
	mu        sync.Mutex
	order     []string
}

// NewResourceManager 创建资源管理器
func NewResourceManager() *ResourceManager {
	return &ResourceManager{
		resources: make(map[string]Disposable),
		order:     make([]string, 0),
	}
}

// Register 注册资源，名称唯一
func (rm *ResourceManager) Register(name string, resource Disposable) error {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	if _, exists := rm.resources[name]; exists {
		return fmt.Errorf("resource %s already registered", name)
	}
	rm.resources[name] = resource
	rm.order = append(rm.order, name)
	corelog.Debugf("dispose: registered resource %s", name)
	return nil
}

// Count 获取已注册资源数量
func (rm *ResourceManager) Count() int {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	return len(rm.resources)
}

// DisposeAll 释放所有资源，后注册的先释放
func (rm *ResourceManager) DisposeAll() *DisposeResult {
	rm.mu.Lock()
	resources := rm.resources
	order := rm.order
	rm.resources = make(map[string]Disposable)
	rm.order = make([]string, 0)
	rm.mu.Unlock()

	result := &DisposeResult{Errors: make([]*DisposeError, 0)}
	for i := len(order) - 1; i >= 0; i-- {
		name := order[i]
		if err := resources[name].Dispose(); err != nil {
			result.Errors = append(result.Errors, &DisposeError{
				HandlerIndex: len(order) - 1 - i,
				ResourceName: name,
				Err:          err,
			})
			corelog.Errorf("dispose: failed to dispose resource %s: %v", name, err)
			continue
		}
		corelog.Debugf("dispose: disposed resource %s", name)
	}
	return result
}

// DisposeWithTimeout 带超时的 DisposeAll
func (rm *ResourceManager) DisposeWithTimeout(timeout time.Duration) *DisposeResult {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	resultChan := make(chan *DisposeResult, 1)
	go func() {
		resultChan <- rm.DisposeAll()
	}()

	select {
	case result := <-resultChan:
		return result
	case <-ctx.Done():
		return &DisposeResult{
			Errors: []*DisposeError{{
				HandlerIndex: -1,
				ResourceName: "timeout",
				Err:          fmt.Errorf("dispose timeout after %v", timeout),
			}},
		}
	}
}

// DisposableFunc 将普通函数适配为 Disposable
type DisposableFunc func() error

// Dispose 实现 Disposable 接口
func (f DisposableFunc) Dispose() error { return f() }
