package health

import (
	"context"
	"fmt"
	"strings"
	"time"

	"rowsync-core/internal/realtime"
)

// Pinger 由消息代理和 postgres 存储实现
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingHealthChecker 基于 Ping 的依赖检查器
type PingHealthChecker struct {
	name   string
	target Pinger
}

// NewPingHealthChecker 创建 Ping 检查器
func NewPingHealthChecker(name string, target Pinger) *PingHealthChecker {
	return &PingHealthChecker{name: name, target: target}
}

// Check 执行 Ping 检查
func (c *PingHealthChecker) Check(ctx context.Context) (*ComponentHealth, error) {
	if c.target == nil {
		return &ComponentHealth{
			Name:      c.name,
			Status:    ComponentStatusUnhealthy,
			Message:   c.name + " not configured",
			LastCheck: time.Now(),
		}, nil
	}

	if err := c.target.Ping(ctx); err != nil {
		return &ComponentHealth{
			Name:      c.name,
			Status:    ComponentStatusUnhealthy,
			Message:   err.Error(),
			LastCheck: time.Now(),
		}, nil
	}

	return &ComponentHealth{
		Name:      c.name,
		Status:    ComponentStatusHealthy,
		LastCheck: time.Now(),
	}, nil
}

// TopicStatusProvider 提供所有主题的状态
type TopicStatusProvider interface {
	Statuses() []realtime.Status
}

// TopicsHealthChecker 主题检查器，有已启动主题等待重连时为 degraded
type TopicsHealthChecker struct {
	topics TopicStatusProvider
}

// NewTopicsHealthChecker 创建主题检查器
func NewTopicsHealthChecker(topics TopicStatusProvider) *TopicsHealthChecker {
	return &TopicsHealthChecker{topics: topics}
}

// Check 检查主题状态
func (c *TopicsHealthChecker) Check(ctx context.Context) (*ComponentHealth, error) {
	var reconnecting []string
	subscribed := 0
	for _, st := range c.topics.Statuses() {
		if !st.Started {
			continue
		}
		switch {
		case st.State == realtime.StateSubscribed:
			subscribed++
		case st.State.Reconnecting():
			reconnecting = append(reconnecting, fmt.Sprintf("%s(%s, attempt %d)", st.Topic, st.State, st.Attempt))
		}
	}

	if len(reconnecting) > 0 {
		return &ComponentHealth{
			Name:      "topics",
			Status:    ComponentStatusDegraded,
			Message:   "reconnecting: " + strings.Join(reconnecting, ", "),
			LastCheck: time.Now(),
		}, nil
	}

	return &ComponentHealth{
		Name:      "topics",
		Status:    ComponentStatusHealthy,
		Message:   fmt.Sprintf("%d subscribed", subscribed),
		LastCheck: time.Now(),
	}, nil
}
