package broker

import (
	"context"

	"rowsync-core/internal/changefeed"
	coreerrors "rowsync-core/internal/core/errors"
)

// PublishChange 编码变更记录并发布到 topic
func PublishChange(ctx context.Context, b MessageBroker, topic string, rec changefeed.Record) error {
	data, err := changefeed.Encode(rec)
	if err != nil {
		return err
	}
	if err := b.Publish(ctx, topic, data); err != nil {
		return coreerrors.Wrapf(err, coreerrors.CodeTransportError, "publish change to %s", topic)
	}
	return nil
}
