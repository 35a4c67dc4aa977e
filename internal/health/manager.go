package health

import (
	"context"
	"sync"
	"time"

	"rowsync-core/internal/core/dispose"
)

// HealthStatus 进程健康状态（供负载均衡器使用）
type HealthStatus string

const (
	HealthStatusHealthy   HealthStatus = "healthy"
	HealthStatusDraining  HealthStatus = "draining" // shutting down, still serving current watchers
	HealthStatusUnhealthy HealthStatus = "unhealthy"
)

// HealthInfo 进程健康信息
type HealthInfo struct {
	Status           HealthStatus      `json:"status"`
	ActiveTopics     int               `json:"active_topics"`
	ActiveWatchers   int               `json:"active_watchers"`
	Uptime           int64             `json:"uptime_seconds"`
	NodeID           string            `json:"node_id,omitempty"`
	Version          string            `json:"version,omitempty"`
	Details          map[string]string `json:"details,omitempty"`
	LastStatusChange time.Time         `json:"last_status_change"`
	AcceptingWatches bool              `json:"accepting_watches"`
}

// StatsProvider 提供 HealthInfo 中的实时计数
type StatsProvider interface {
	ActiveTopics() int
	ActiveWatchers() int
}

// HealthManager 健康状态管理器
// 关闭时先标记为 draining，监听器关闭前即拒绝新的订阅
type HealthManager struct {
	*dispose.ServiceBase

	mu               sync.RWMutex
	status           HealthStatus
	startTime        time.Time
	lastStatusChange time.Time
	nodeID           string
	version          string
	details          map[string]string
	statsProvider    StatsProvider
}

// NewHealthManager 创建健康状态管理器
func NewHealthManager(parentCtx context.Context, nodeID, version string) *HealthManager {
	now := time.Now()
	return &HealthManager{
		ServiceBase:      dispose.NewService("HealthManager", parentCtx),
		status:           HealthStatusHealthy,
		startTime:        now,
		lastStatusChange: now,
		nodeID:           nodeID,
		version:          version,
		details:          make(map[string]string),
	}
}

// SetStatsProvider 设置统计信息提供者
func (m *HealthManager) SetStatsProvider(provider StatsProvider) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statsProvider = provider
}

// GetStatus 获取当前状态
func (m *HealthManager) GetStatus() HealthStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status
}

// SetStatus 设置状态并记录变更时间
func (m *HealthManager) SetStatus(status HealthStatus) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.status != status {
		m.status = status
		m.lastStatusChange = time.Now()
	}
}

func (m *HealthManager) IsHealthy() bool  { return m.GetStatus() == HealthStatusHealthy }
func (m *HealthManager) IsDraining() bool { return m.GetStatus() == HealthStatusDraining }

// IsAcceptingWatches 是否接受新的订阅
func (m *HealthManager) IsAcceptingWatches() bool {
	return m.GetStatus() == HealthStatusHealthy
}

// MarkDraining 优雅关闭开始时标记为 draining
func (m *HealthManager) MarkDraining() {
	m.SetStatus(HealthStatusDraining)
}

// MarkUnhealthy 标记为不健康，原因记入 unhealthy_reason
func (m *HealthManager) MarkUnhealthy(reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.status = HealthStatusUnhealthy
	m.lastStatusChange = time.Now()
	m.details["unhealthy_reason"] = reason
}

// SetDetail 设置 HealthInfo 中的详情
func (m *HealthManager) SetDetail(key, value string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.details[key] = value
}

// GetHealthInfo 获取健康信息
func (m *HealthManager) GetHealthInfo() *HealthInfo {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var topics, watchers int
	if m.statsProvider != nil {
		topics = m.statsProvider.ActiveTopics()
		watchers = m.statsProvider.ActiveWatchers()
	}

	details := make(map[string]string, len(m.details))
	for k, v := range m.details {
		details[k] = v
	}

	return &HealthInfo{
		Status:           m.status,
		ActiveTopics:     topics,
		ActiveWatchers:   watchers,
		Uptime:           int64(time.Since(m.startTime).Seconds()),
		NodeID:           m.nodeID,
		Version:          m.version,
		Details:          details,
		LastStatusChange: m.lastStatusChange,
		AcceptingWatches: m.status == HealthStatusHealthy,
	}
}
