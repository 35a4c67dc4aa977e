package transport

import (
	"context"

	"rowsync-core/internal/core/dispose"
)

// pumpChannel 各传输共用的 Channel 实现，
// 生产者 goroutine 持有 out 并在退出时关闭
type pumpChannel struct {
	*dispose.Dispose
	out chan Delivery
}

func newPumpChannel(parent context.Context, buffer int, onClose func() error) *pumpChannel {
	return &pumpChannel{
		Dispose: dispose.NewDispose(parent, onClose),
		out:     make(chan Delivery, buffer),
	}
}

func (c *pumpChannel) Deliveries() <-chan Delivery {
	return c.out
}

func (c *pumpChannel) Close() error {
	return c.CloseWithError()
}

// emit 投递 d（通道已关闭时忽略），缓冲区满时阻塞
func (c *pumpChannel) emit(d Delivery) bool {
	ctx := c.Ctx()
	if ctx.Err() != nil {
		return false
	}
	select {
	case c.out <- d:
		return true
	case <-ctx.Done():
		return false
	}
}
