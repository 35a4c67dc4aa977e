// Package broker 提供基于主题的发布订阅，
// 在写入方和同步客户端之间传递变更记录
package broker

import (
	"context"
	"sync"
	"time"

	coreerrors "rowsync-core/internal/core/errors"
)

// DefaultBufferSize 默认的订阅缓冲区大小
const DefaultBufferSize = 100

// MessageBroker 消息代理接口
type MessageBroker interface {
	// Publish 发布消息到指定主题
	Publish(ctx context.Context, topic string, message []byte) error

	// Subscribe 订阅主题，每次调用返回独立的订阅
	Subscribe(ctx context.Context, topic string) (*Subscription, error)

	// Ping 检查消息代理状态
	Ping(ctx context.Context) error

	// Close 结束所有订阅并释放连接
	Close() error
}

// Message 消息结构
type Message struct {
	Topic     string    `json:"topic"`
	Payload   []byte    `json:"payload"`
	Timestamp time.Time `json:"timestamp"`
	NodeID    string    `json:"node_id"`
}

// Subscription 主题订阅
// 消息按发布顺序到达 C，直到 Done 关闭；之后 Err 给出结束原因
// （Close 或正常关闭时为 nil）
//
// C 不会被关闭，消费者同时 select C 和 Done，Done 后仍可读完 C
type Subscription struct {
	topic string
	ch    chan *Message
	done  chan struct{}

	mu      sync.Mutex
	err     error
	ended   bool
	onClose func()
}

func newSubscription(topic string, buffer int, onClose func()) *Subscription {
	if buffer <= 0 {
		buffer = DefaultBufferSize
	}
	return &Subscription{
		topic:   topic,
		ch:      make(chan *Message, buffer),
		done:    make(chan struct{}),
		onClose: onClose,
	}
}

// Topic 获取订阅的主题
func (s *Subscription) Topic() string { return s.topic }

// C 获取消息通道
func (s *Subscription) C() <-chan *Message { return s.ch }

// Done 订阅结束时关闭
func (s *Subscription) Done() <-chan struct{} { return s.done }

// Err 获取订阅结束原因
// 订阅中或正常关闭时为 nil
func (s *Subscription) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Close 结束订阅（幂等）
func (s *Subscription) Close() error {
	s.end(nil)
	return nil
}

// offer 非阻塞投递消息，缓冲区满时以 ErrSlowConsumer 结束订阅
// 返回值表示消息是否入队
func (s *Subscription) offer(msg *Message) bool {
	select {
	case <-s.done:
		return false
	default:
	}
	select {
	case s.ch <- msg:
		return true
	default:
		s.end(coreerrors.Wrapf(coreerrors.ErrSlowConsumer, coreerrors.CodeSlowConsumer,
			"subscriber for topic %s fell behind (buffer %d)", s.topic, cap(s.ch)))
		return false
	}
}

func (s *Subscription) end(err error) {
	s.mu.Lock()
	if s.ended {
		s.mu.Unlock()
		return
	}
	s.ended = true
	s.err = err
	onClose := s.onClose
	s.mu.Unlock()

	close(s.done)
	if onClose != nil {
		onClose()
	}
}
