package broker

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"rowsync-core/internal/core/dispose"
	coreerrors "rowsync-core/internal/core/errors"
	corelog "rowsync-core/internal/core/log"
	"rowsync-core/internal/core/safe"
)

// ChannelPrefix Redis 频道前缀
const ChannelPrefix = "rowsync:"

// RedisBrokerConfig Redis 消息代理配置
type RedisBrokerConfig struct {
	Addrs       []string
	Password    string
	DB          int // ignored in cluster mode
	ClusterMode bool
	PoolSize    int
}

// RedisBroker 基于 Redis Pub/Sub 的消息代理
//
// 每个订阅独占一个 PubSub 连接，
// 单个订阅慢或失败不影响其他订阅
type RedisBroker struct {
	*dispose.ServiceBase
	client     redis.UniversalClient
	subs       map[*Subscription]*redis.PubSub
	mu         sync.RWMutex
	nodeID     string
	bufferSize int
	closed     bool
}

// NewRedisBroker 创建 Redis 消息代理并检查连接
func NewRedisBroker(parentCtx context.Context, config *RedisBrokerConfig, nodeID string, bufferSize int) (*RedisBroker, error) {
	if config == nil {
		return nil, coreerrors.New(coreerrors.CodeMissingParam, "redis broker config is required")
	}

	poolSize := config.PoolSize
	if poolSize <= 0 {
		poolSize = 100
	}
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}

	var client redis.UniversalClient
	if config.ClusterMode {
		client = redis.NewClusterClient(&redis.ClusterOptions{
			Addrs:    config.Addrs,
			Password: config.Password,
			PoolSize: poolSize,
		})
	} else {
		addr := "localhost:6379"
		if len(config.Addrs) > 0 {
			addr = config.Addrs[0]
		}
		client = redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: config.Password,
			DB:       config.DB,
			PoolSize: poolSize,
		})
	}

	pingCtx, pingCancel := context.WithTimeout(parentCtx, 5*time.Second)
	defer pingCancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, coreerrors.Wrap(err, coreerrors.CodeTransportError, "failed to connect to Redis")
	}

	broker := &RedisBroker{
		ServiceBase: dispose.NewService("RedisBroker", parentCtx),
		client:      client,
		subs:        make(map[*Subscription]*redis.PubSub),
		nodeID:      nodeID,
		bufferSize:  bufferSize,
	}
	broker.AddCleanHandler(broker.shutdown)

	corelog.Infof("RedisBroker initialized for node: %s (cluster_mode: %v)", nodeID, config.ClusterMode)
	return broker, nil
}

func (r *RedisBroker) isClosed() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.closed
}

// Publish 发布消息到指定主题
func (r *RedisBroker) Publish(ctx context.Context, topic string, message []byte) error {
	if r.isClosed() {
		return coreerrors.ErrResourceClosed
	}

	msg := &Message{
		Topic:     topic,
		Payload:   message,
		Timestamp: time.Now(),
		NodeID:    r.nodeID,
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return coreerrors.Wrap(err, coreerrors.CodeInvalidParam, "failed to marshal message")
	}

	if err := r.client.Publish(ctx, ChannelPrefix+topic, data).Err(); err != nil {
		corelog.Errorf("RedisBroker: failed to publish to %s: %v", topic, err)
		return coreerrors.Wrap(err, coreerrors.CodeTransportError, "failed to publish to Redis")
	}

	corelog.Debugf("RedisBroker: published message to topic %s", topic)
	return nil
}

// Subscribe 订阅主题并等待 Redis 确认，
// 保证返回后发布的消息不会丢失
func (r *RedisBroker) Subscribe(ctx context.Context, topic string) (*Subscription, error) {
	if r.isClosed() {
		return nil, coreerrors.ErrResourceClosed
	}

	pubsub := r.client.Subscribe(r.Ctx(), ChannelPrefix+topic)
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		if ctx.Err() != nil {
			return nil, coreerrors.Wrapf(err, coreerrors.CodeTimeout, "subscribe to %s timed out", topic)
		}
		return nil, coreerrors.Wrapf(err, coreerrors.CodeChannelError, "failed to subscribe to %s", topic)
	}

	var sub *Subscription
	sub = newSubscription(topic, r.bufferSize, func() {
		r.mu.Lock()
		delete(r.subs, sub)
		r.mu.Unlock()
		if err := pubsub.Close(); err != nil {
			corelog.Debugf("RedisBroker: close pubsub for %s: %v", topic, err)
		}
	})

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		pubsub.Close()
		return nil, coreerrors.ErrResourceClosed
	}
	r.subs[sub] = pubsub
	count := len(r.subs)
	r.mu.Unlock()

	safe.Go("redis:"+topic, func() { r.receiveLoop(sub, pubsub) })

	corelog.Infof("RedisBroker: subscribed to topic %s (active subscriptions: %d)", topic, count)
	return sub, nil
}

// receiveLoop 将 PubSub 连接的消息转入订阅
func (r *RedisBroker) receiveLoop(sub *Subscription, pubsub *redis.PubSub) {
	ctx := r.Ctx()
	for {
		msg, err := pubsub.ReceiveMessage(ctx)
		if err != nil {
			select {
			case <-sub.Done():
				// 消费者已关闭
			case <-ctx.Done():
				sub.end(nil)
			default:
				corelog.Warnf("RedisBroker: receive on topic %s failed: %v", sub.Topic(), err)
				sub.end(coreerrors.Wrapf(err, coreerrors.CodeChannelError, "receive on topic %s", sub.Topic()))
			}
			return
		}

		var message Message
		if err := json.Unmarshal([]byte(msg.Payload), &message); err != nil {
			corelog.Errorf("RedisBroker: failed to unmarshal message: %v", err)
			continue
		}

		if !sub.offer(&message) {
			corelog.Warnf("RedisBroker: subscriber for topic %s could not keep up, subscription ended", sub.Topic())
			return
		}
	}
}

// Ping 检查 Redis 连接
func (r *RedisBroker) Ping(ctx context.Context) error {
	if r.isClosed() {
		return coreerrors.ErrResourceClosed
	}
	return r.client.Ping(ctx).Err()
}

// Close 关闭消息代理，结束所有订阅
func (r *RedisBroker) Close() error {
	return r.CloseWithError()
}

func (r *RedisBroker) shutdown() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	subs := make([]*Subscription, 0, len(r.subs))
	for sub := range r.subs {
		subs = append(subs, sub)
	}
	r.mu.Unlock()

	for _, sub := range subs {
		sub.end(nil)
	}

	if err := r.client.Close(); err != nil {
		corelog.Warnf("RedisBroker: failed to close Redis client: %v", err)
	}

	corelog.Infof("RedisBroker closed for node: %s", r.nodeID)
	return nil
}

// GetSubscriberCount 获取订阅者数量（用于测试）
func (r *RedisBroker) GetSubscriberCount(topic string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := 0
	for sub := range r.subs {
		if sub.Topic() == topic {
			n++
		}
	}
	return n
}
