package broker

import (
	"context"

	"github.com/google/uuid"

	coreerrors "rowsync-core/internal/core/errors"
)

// BrokerType 消息代理类型
type BrokerType string

const (
	BrokerTypeMemory BrokerType = "memory"
	BrokerTypeRedis  BrokerType = "redis"
)

// BrokerConfig 消息代理配置
type BrokerConfig struct {
	Type       BrokerType
	NodeID     string // generated when empty
	BufferSize int    // per-subscription buffer

	Redis *RedisBrokerConfig
}

// NewMessageBroker 根据配置创建消息代理
func NewMessageBroker(ctx context.Context, config *BrokerConfig) (MessageBroker, error) {
	if config == nil {
		return nil, coreerrors.New(coreerrors.CodeMissingParam, "broker config is required")
	}
	nodeID := config.NodeID
	if nodeID == "" {
		nodeID = uuid.NewString()
	}

	switch config.Type {
	case BrokerTypeMemory, "":
		return NewMemoryBroker(ctx, nodeID, config.BufferSize), nil

	case BrokerTypeRedis:
		if config.Redis == nil {
			return nil, coreerrors.New(coreerrors.CodeMissingParam, "redis config is required for redis broker")
		}
		return NewRedisBroker(ctx, config.Redis, nodeID, config.BufferSize)

	default:
		return nil, coreerrors.Newf(coreerrors.CodeConfigError, "unsupported broker type: %s", config.Type)
	}
}

// DefaultBrokerConfig 默认配置（单节点内存消息代理）
func DefaultBrokerConfig(nodeID string) *BrokerConfig {
	return &BrokerConfig{
		Type:       BrokerTypeMemory,
		NodeID:     nodeID,
		BufferSize: DefaultBufferSize,
	}
}
