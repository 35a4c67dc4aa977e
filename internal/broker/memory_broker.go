package broker

import (
	"context"
	"sync"
	"time"

	"rowsync-core/internal/core/dispose"
	coreerrors "rowsync-core/internal/core/errors"
	corelog "rowsync-core/internal/core/log"
)

// MemoryBroker 内存消息代理（单节点，无持久化）
type MemoryBroker struct {
	*dispose.ServiceBase
	subscribers map[string]map[*Subscription]struct{} // topic -> subscriptions
	mu          sync.RWMutex
	nodeID      string
	bufferSize  int
	closed      bool
}

// NewMemoryBroker 创建内存消息代理
func NewMemoryBroker(parentCtx context.Context, nodeID string, bufferSize int) *MemoryBroker {
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	broker := &MemoryBroker{
		ServiceBase: dispose.NewService("MemoryBroker", parentCtx),
		subscribers: make(map[string]map[*Subscription]struct{}),
		nodeID:      nodeID,
		bufferSize:  bufferSize,
	}
	broker.AddCleanHandler(broker.shutdown)

	corelog.Infof("MemoryBroker initialized for node: %s", nodeID)
	return broker
}

// Publish 发布消息到指定主题
func (m *MemoryBroker) Publish(ctx context.Context, topic string, message []byte) error {
	if err := ctx.Err(); err != nil {
		return coreerrors.Wrap(err, coreerrors.CodeCancelled, "publish cancelled")
	}

	msg := &Message{
		Topic:     topic,
		Payload:   message,
		Timestamp: time.Now(),
		NodeID:    m.nodeID,
	}

	m.mu.RLock()
	if m.closed {
		m.mu.RUnlock()
		return coreerrors.ErrResourceClosed
	}
	subs := make([]*Subscription, 0, len(m.subscribers[topic]))
	for sub := range m.subscribers[topic] {
		subs = append(subs, sub)
	}
	m.mu.RUnlock()

	if len(subs) == 0 {
		// 没有订阅者，消息丢弃（符合 Pub/Sub 语义）
		corelog.Debugf("MemoryBroker: no subscribers for topic %s, message dropped", topic)
		return nil
	}

	sent := 0
	for _, sub := range subs {
		if sub.offer(msg) {
			sent++
		} else {
			corelog.Warnf("MemoryBroker: subscriber for topic %s could not keep up, subscription ended", topic)
		}
	}

	corelog.Debugf("MemoryBroker: published message to topic %s, sent to %d/%d subscribers",
		topic, sent, len(subs))
	return nil
}

// Subscribe 订阅主题
func (m *MemoryBroker) Subscribe(ctx context.Context, topic string) (*Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, coreerrors.Wrap(err, coreerrors.CodeCancelled, "subscribe cancelled")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, coreerrors.ErrResourceClosed
	}

	var sub *Subscription
	sub = newSubscription(topic, m.bufferSize, func() { m.remove(topic, sub) })
	if m.subscribers[topic] == nil {
		m.subscribers[topic] = make(map[*Subscription]struct{})
	}
	m.subscribers[topic][sub] = struct{}{}

	corelog.Infof("MemoryBroker: new subscriber for topic %s (total: %d)",
		topic, len(m.subscribers[topic]))
	return sub, nil
}

func (m *MemoryBroker) remove(topic string, sub *Subscription) {
	m.mu.Lock()
	defer m.mu.Unlock()

	subs := m.subscribers[topic]
	delete(subs, sub)
	if len(subs) == 0 {
		delete(m.subscribers, topic)
	}
}

// Ping 检查内存消息代理状态（仅关闭后失败）
func (m *MemoryBroker) Ping(ctx context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return coreerrors.ErrResourceClosed
	}
	return nil
}

// Close 关闭消息代理，结束所有订阅
func (m *MemoryBroker) Close() error {
	return m.CloseWithError()
}

func (m *MemoryBroker) shutdown() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true

	var subs []*Subscription
	for _, set := range m.subscribers {
		for sub := range set {
			subs = append(subs, sub)
		}
	}
	m.mu.Unlock()

	// end() 会回调 remove()，因此在锁外执行
	for _, sub := range subs {
		sub.end(nil)
	}

	corelog.Infof("MemoryBroker closed for node: %s", m.nodeID)
	return nil
}

// GetSubscriberCount 获取订阅者数量（用于测试）
func (m *MemoryBroker) GetSubscriberCount(topic string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.subscribers[topic])
}
