package metrics

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
	"sync/atomic"

	"rowsync-core/internal/core/dispose"
)

// MemoryMetrics 内存指标实现
type MemoryMetrics struct {
	*dispose.ResourceBase

	counters map[string]*uint64 // float64 bits
	gauges   map[string]float64
	mu       sync.RWMutex
}

// NewMemoryMetrics 创建内存指标收集器
func NewMemoryMetrics(parentCtx context.Context) *MemoryMetrics {
	m := &MemoryMetrics{
		ResourceBase: dispose.NewResourceBase("MemoryMetrics"),
		counters:     make(map[string]*uint64),
		gauges:       make(map[string]float64),
	}
	m.ResourceBase.Initialize(parentCtx)
	return m
}

// IncrementCounter 计数器加一
func (m *MemoryMetrics) IncrementCounter(name string, labels map[string]string) error {
	return m.AddCounter(name, 1, labels)
}

// AddCounter 计数器增加 value，计数器只增不减
func (m *MemoryMetrics) AddCounter(name string, value float64, labels map[string]string) error {
	if value < 0 {
		return fmt.Errorf("counter %s cannot decrease", name)
	}
	key := buildKey(name, labels)
	m.mu.Lock()
	counter, exists := m.counters[key]
	if !exists {
		counter = new(uint64)
		m.counters[key] = counter
	}
	m.mu.Unlock()

	for {
		old := atomic.LoadUint64(counter)
		next := math.Float64bits(math.Float64frombits(old) + value)
		if atomic.CompareAndSwapUint64(counter, old, next) {
			return nil
		}
	}
}

// GetCounter 获取计数器值，不存在时为 0
func (m *MemoryMetrics) GetCounter(name string, labels map[string]string) (float64, error) {
	key := buildKey(name, labels)
	m.mu.RLock()
	defer m.mu.RUnlock()
	if counter, exists := m.counters[key]; exists {
		return math.Float64frombits(atomic.LoadUint64(counter)), nil
	}
	return 0, nil
}

// SetGauge 设置仪表值
func (m *MemoryMetrics) SetGauge(name string, value float64, labels map[string]string) error {
	key := buildKey(name, labels)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gauges[key] = value
	return nil
}

// GetGauge 获取仪表值，不存在时为 0
func (m *MemoryMetrics) GetGauge(name string, labels map[string]string) (float64, error) {
	key := buildKey(name, labels)
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.gauges[key], nil
}

// Snapshot 复制所有指标，键为名称加排序后的标签
func (m *MemoryMetrics) Snapshot() map[string]float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string]float64, len(m.counters)+len(m.gauges))
	for k, c := range m.counters {
		out[k] = math.Float64frombits(atomic.LoadUint64(c))
	}
	for k, g := range m.gauges {
		out[k] = g
	}
	return out
}

// Close 关闭指标收集器
func (m *MemoryMetrics) Close() error {
	return m.ResourceBase.CloseWithError()
}

// buildKey 生成 name{k=v,...}，标签排序后相同标签集共用一个键
func buildKey(name string, labels map[string]string) string {
	if len(labels) == 0 {
		return name
	}
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	key := name + "{"
	for i, k := range keys {
		if i > 0 {
			key += ","
		}
		key += k + "=" + labels[k]
	}
	return key + "}"
}
