// Package dispose 提供绑定上下文的幂等资源释放
//
// Dispose 持有从父上下文派生的可取消上下文。
// 关闭它或取消父上下文时，会取消该上下文并只执行一次
// 已注册的清理处理器
package dispose

import (
	"context"
	"fmt"
	"sync"

	corelog "rowsync-core/internal/core/log"
)

// DisposeError 清理过程中的错误信息
type DisposeError struct {
	HandlerIndex int
	ResourceName string
	Err          error
}

func (e *DisposeError) Error() string {
	if e.ResourceName != "" {
		return fmt.Sprintf("cleanup resource[%s] handler[%d] failed: %v", e.ResourceName, e.HandlerIndex, e.Err)
	}
	return fmt.Sprintf("cleanup handler[%d] failed: %v", e.HandlerIndex, e.Err)
}

// DisposeResult 清理结果
type DisposeResult struct {
	Errors []*DisposeError
}

func (r *DisposeResult) HasErrors() bool {
	return len(r.Errors) > 0
}

func (r *DisposeResult) Error() string {
	if !r.HasErrors() {
		return ""
	}
	return fmt.Sprintf("dispose cleanup failed with %d errors", len(r.Errors))
}

// Disposable 统一的资源释放接口
type Disposable interface {
	Dispose() error
}

// Dispose 资源管理结构体
type Dispose struct {
	mu       sync.Mutex
	closed   bool
	ctx      context.Context
	cancel   context.CancelFunc
	handlers []func() error

	once   sync.Once
	result *DisposeResult
}

// NewDispose 创建绑定到 parent 的 Dispose，onClose 为第一个清理处理器
func NewDispose(parent context.Context, onClose func() error) *Dispose {
	d := &Dispose{}
	d.SetCtx(parent, onClose)
	return d
}

// Ctx 返回资源上下文，Close 时取消
func (d *Dispose) Ctx() context.Context {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.ctx
}

// IsClosed 是否已关闭（或父上下文已取消）
func (d *Dispose) IsClosed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed
}

// SetCtx 绑定父上下文，仅首次调用生效
func (d *Dispose) SetCtx(parent context.Context, onClose func() error) {
	if parent == nil {
		parent = context.Background()
	}

	d.mu.Lock()
	if d.ctx != nil {
		d.mu.Unlock()
		corelog.Warn("dispose: ctx already set")
		return
	}
	d.ctx, d.cancel = context.WithCancel(parent)
	if onClose != nil {
		d.handlers = append(d.handlers, onClose)
	}
	ctx := d.ctx
	d.mu.Unlock()

	go func() {
		<-ctx.Done()
		d.runOnce()
	}()
}

// AddCleanHandler 添加返回错误的清理处理器，按注册顺序执行
func (d *Dispose) AddCleanHandler(f func() error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers = append(d.handlers, f)
}

// Close 关闭并返回清理结果
// 重复调用返回首次的结果
func (d *Dispose) Close() *DisposeResult {
	d.mu.Lock()
	cancel := d.cancel
	d.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	d.runOnce()
	return d.result
}

// CloseWithError 关闭并返回第一个清理错误
func (d *Dispose) CloseWithError() error {
	result := d.Close()
	if result.HasErrors() {
		return result.Errors[0].Err
	}
	return nil
}

func (d *Dispose) runOnce() {
	d.once.Do(func() {
		d.mu.Lock()
		d.closed = true
		handlers := make([]func() error, len(d.handlers))
		copy(handlers, d.handlers)
		d.mu.Unlock()

		result := &DisposeResult{Errors: make([]*DisposeError, 0)}
		for i, handler := range handlers {
			if err := handler(); err != nil {
				result.Errors = append(result.Errors, &DisposeError{HandlerIndex: i, Err: err})
				corelog.Errorf("dispose: cleanup handler[%d] failed: %v", i, err)
			}
		}
		d.result = result
	})
}
