package transport

import (
	"context"

	"rowsync-core/internal/broker"
	coreerrors "rowsync-core/internal/core/errors"
	corelog "rowsync-core/internal/core/log"
	"rowsync-core/internal/core/safe"
)

// BrokerTransport 基于 MessageBroker 的传输，
// 消息负载为 JSON 变更记录
type BrokerTransport struct {
	broker broker.MessageBroker
	opts   Options
	logger corelog.Logger
}

// NewBrokerTransport 创建消息代理传输
func NewBrokerTransport(b broker.MessageBroker, opts Options, logger corelog.Logger) *BrokerTransport {
	return &BrokerTransport{
		broker: b,
		opts:   opts.withDefaults(),
		logger: corelog.OrDefault(logger),
	}
}

// Subscribe 订阅消息代理主题，
// 成功后首个投递为 StatusSubscribed
func (t *BrokerTransport) Subscribe(ctx context.Context, topic string) (Channel, error) {
	subCtx, cancel := context.WithTimeout(ctx, t.opts.SubscribeTimeout)
	defer cancel()

	sub, err := t.broker.Subscribe(subCtx, topic)
	if err != nil {
		return nil, subscribeError(err, topic)
	}

	ch := newPumpChannel(ctx, t.opts.BufferSize, sub.Close)
	safe.Go("transport:broker:"+topic, func() { t.run(ch, sub) })
	return ch, nil
}

func (t *BrokerTransport) run(ch *pumpChannel, sub *broker.Subscription) {
	defer close(ch.out)
	ctx := ch.Ctx()

	if !ch.emit(StatusDelivery(StatusSubscribed, nil)) {
		return
	}
	for {
		select {
		case msg := <-sub.C():
			if !ch.emit(PayloadDelivery(msg.Payload)) {
				return
			}
		case <-sub.Done():
			t.drain(ch, sub)
			err := sub.Err()
			status := StatusForError(err)
			if err != nil && !coreerrors.IsTransportError(err) {
				err = coreerrors.Wrap(err, coreerrors.CodeChannelError, "subscription ended")
			}
			t.logger.Debugf("transport: subscription to %s ended with %s", sub.Topic(), status)
			ch.emit(StatusDelivery(status, err))
			return
		case <-ctx.Done():
			return
		}
	}
}

// drain 转发订阅结束前缓冲的消息
func (t *BrokerTransport) drain(ch *pumpChannel, sub *broker.Subscription) {
	for {
		select {
		case msg := <-sub.C():
			if !ch.emit(PayloadDelivery(msg.Payload)) {
				return
			}
		default:
			return
		}
	}
}
