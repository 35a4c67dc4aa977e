// Package health 提供同步守护进程及其依赖的健康检查
package health

import (
	"context"
	"sync"
	"time"
)

// ComponentStatus 组件状态
type ComponentStatus string

const (
	ComponentStatusHealthy   ComponentStatus = "healthy"
	ComponentStatusDegraded  ComponentStatus = "degraded"  // usable, some topics reconnecting
	ComponentStatusUnhealthy ComponentStatus = "unhealthy" // unusable
)

// ComponentHealth 组件健康信息
type ComponentHealth struct {
	Name      string          `json:"name"`
	Status    ComponentStatus `json:"status"`
	Message   string          `json:"message,omitempty"`
	LastCheck time.Time       `json:"last_check"`
}

// HealthChecker 健康检查器接口
type HealthChecker interface {
	Check(ctx context.Context) (*ComponentHealth, error)
}

// CompositeHealthChecker 组合健康检查器，每个检查器单独超时
type CompositeHealthChecker struct {
	mu       sync.RWMutex
	checkers map[string]HealthChecker
	timeout  time.Duration
}

// NewCompositeHealthChecker 创建组合健康检查器
func NewCompositeHealthChecker(timeout time.Duration) *CompositeHealthChecker {
	return &CompositeHealthChecker{
		checkers: make(map[string]HealthChecker),
		timeout:  timeout,
	}
}

// RegisterChecker 注册健康检查器，同名覆盖
func (c *CompositeHealthChecker) RegisterChecker(name string, checker HealthChecker) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.checkers[name] = checker
}

// CheckAll 并发检查所有注册的组件
// 出错或超时的检查器视为 unhealthy
func (c *CompositeHealthChecker) CheckAll(ctx context.Context) map[string]*ComponentHealth {
	c.mu.RLock()
	checkers := make(map[string]HealthChecker, len(c.checkers))
	for name, checker := range c.checkers {
		checkers[name] = checker
	}
	c.mu.RUnlock()

	var (
		mu      sync.Mutex
		wg      sync.WaitGroup
		results = make(map[string]*ComponentHealth, len(checkers))
	)
	for name, checker := range checkers {
		wg.Add(1)
		go func(name string, checker HealthChecker) {
			defer wg.Done()
			checkCtx, cancel := context.WithTimeout(ctx, c.timeout)
			health, err := checker.Check(checkCtx)
			cancel()

			if err != nil {
				health = &ComponentHealth{
					Name:      name,
					Status:    ComponentStatusUnhealthy,
					Message:   err.Error(),
					LastCheck: time.Now(),
				}
			}
			if health == nil {
				return
			}
			mu.Lock()
			results[name] = health
			mu.Unlock()
		}(name, checker)
	}
	wg.Wait()

	return results
}

// GetOverallStatus 获取整体健康状态
func (c *CompositeHealthChecker) GetOverallStatus(ctx context.Context) ComponentStatus {
	return Overall(c.CheckAll(ctx))
}

// Overall 汇总组件结果：有 unhealthy 则 unhealthy，其次 degraded
func Overall(results map[string]*ComponentHealth) ComponentStatus {
	hasDegraded := false
	for _, health := range results {
		switch health.Status {
		case ComponentStatusUnhealthy:
			return ComponentStatusUnhealthy
		case ComponentStatusDegraded:
			hasDegraded = true
		}
	}
	if hasDegraded {
		return ComponentStatusDegraded
	}
	return ComponentStatusHealthy
}
