// Package transport 实时订阅服务抽象。
// Channel 投递一个有序流，包含变更记录和状态通知
package transport

import (
	"context"
	"time"

	"rowsync-core/internal/changefeed"
	coreerrors "rowsync-core/internal/core/errors"
)

// Status 通道状态通知
type Status int

const (
	StatusSubscribed Status = iota + 1
	StatusChannelError
	StatusTimedOut
	StatusClosed
)

// String 返回线上名称
func (s Status) String() string {
	switch s {
	case StatusSubscribed:
		return "subscribed"
	case StatusChannelError:
		return "channel_error"
	case StatusTimedOut:
		return "timed_out"
	case StatusClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// ParseStatus 解析线上名称
func ParseStatus(s string) (Status, error) {
	switch s {
	case "subscribed", "SUBSCRIBED":
		return StatusSubscribed, nil
	case "channel_error", "CHANNEL_ERROR":
		return StatusChannelError, nil
	case "timed_out", "TIMED_OUT":
		return StatusTimedOut, nil
	case "closed", "CLOSED":
		return StatusClosed, nil
	default:
		return 0, coreerrors.Newf(coreerrors.CodeInvalidParam, "unknown channel status %q", s)
	}
}

// Failed 状态是否终止通道
func (s Status) Failed() bool {
	return s == StatusChannelError || s == StatusTimedOut || s == StatusClosed
}

// StatusForError 对订阅或接收失败分类
func StatusForError(err error) Status {
	switch {
	case err == nil:
		return StatusClosed
	case coreerrors.IsTimeout(err), coreerrors.Is(err, context.DeadlineExceeded):
		return StatusTimedOut
	default:
		return StatusChannelError
	}
}

// Delivery 一条记录或一个状态。记录无法解码时设置 Err，
// 失败状态时 Err 为原因
type Delivery struct {
	IsStatus bool
	Record   changefeed.Record
	Status   Status
	Err      error
}

// RecordDelivery 包装已解码的记录
func RecordDelivery(rec changefeed.Record) Delivery {
	return Delivery{Record: rec}
}

// PayloadDelivery 解码原始 JSON 变更负载
func PayloadDelivery(data []byte) Delivery {
	rec, err := changefeed.Decode(data)
	return Delivery{Record: rec, Err: err}
}

// StatusDelivery 包装状态通知
func StatusDelivery(s Status, err error) Delivery {
	return Delivery{IsStatus: true, Status: s, Err: err}
}

// Channel 一个活动订阅。通道结束后关闭 Deliveries，
// 没有失败状态就关闭的流视为 StatusClosed
type Channel interface {
	Deliveries() <-chan Delivery
	// Close 释放订阅（幂等）
	Close() error
}

// Transport 打开通道。Subscribe 失败视为 StatusChannelError，
// 超时错误视为 StatusTimedOut
type Transport interface {
	Subscribe(ctx context.Context, topic string) (Channel, error)
}

// Loader 加载权威数据集（最新在前）
type Loader interface {
	Load(ctx context.Context, topic string) ([]changefeed.Entity, error)
}

// Options 传输实现共用的选项
type Options struct {
	SubscribeTimeout time.Duration
	BufferSize       int
}

// DefaultSubscribeTimeout Subscribe 等待确认的超时时间
const DefaultSubscribeTimeout = 10 * time.Second

func (o Options) withDefaults() Options {
	if o.SubscribeTimeout <= 0 {
		o.SubscribeTimeout = DefaultSubscribeTimeout
	}
	if o.BufferSize <= 0 {
		o.BufferSize = 64
	}
	return o
}

func subscribeError(err error, topic string) error {
	if StatusForError(err) == StatusTimedOut {
		return coreerrors.Wrapf(err, coreerrors.CodeTimeout, "subscribe to %s timed out", topic)
	}
	return coreerrors.Wrapf(err, coreerrors.CodeChannelError, "subscribe to %s failed", topic)
}

// LoaderFunc 将函数适配为 Loader
type LoaderFunc func(ctx context.Context, topic string) ([]changefeed.Entity, error)

// Load 实现 Loader
func (f LoaderFunc) Load(ctx context.Context, topic string) ([]changefeed.Entity, error) {
	return f(ctx, topic)
}
