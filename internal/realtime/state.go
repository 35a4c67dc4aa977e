// Package realtime 通过不可靠的订阅将本地投影与远端集合保持同步，
// 失败时指数退避重连
package realtime

import (
	"time"

	coreerrors "rowsync-core/internal/core/errors"
	"rowsync-core/internal/transport"
)

// ChannelState 主题订阅状态
type ChannelState int

const (
	StateIdle ChannelState = iota
	StateConnecting
	StateSubscribed
	StateErrored
	StateTimedOut
	StateClosed
)

func (s ChannelState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateSubscribed:
		return "subscribed"
	case StateErrored:
		return "errored"
	case StateTimedOut:
		return "timed_out"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// MarshalText JSON 中输出状态名称
func (s ChannelState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText 解析状态名称
func (s *ChannelState) UnmarshalText(text []byte) error {
	for c := StateIdle; c <= StateClosed; c++ {
		if c.String() == string(text) {
			*s = c
			return nil
		}
	}
	return coreerrors.Newf(coreerrors.CodeInvalidParam, "unknown channel state %q", text)
}

// Reconnecting 是否有待执行的重连
func (s ChannelState) Reconnecting() bool {
	return s == StateErrored || s == StateTimedOut || s == StateClosed
}

func stateFor(st transport.Status) ChannelState {
	switch st {
	case transport.StatusSubscribed:
		return StateSubscribed
	case transport.StatusChannelError:
		return StateErrored
	case transport.StatusTimedOut:
		return StateTimedOut
	default:
		return StateClosed
	}
}

// Status 监督器状态快照
type Status struct {
	Topic      string        `json:"topic"`
	State      ChannelState  `json:"state"`
	Started    bool          `json:"started"`
	Attempt    int           `json:"attempt"`
	NextDelay  time.Duration `json:"next_delay_ns"`
	Generation uint64        `json:"generation"`
	HandleID   string        `json:"handle_id,omitempty"`
	Version    uint64        `json:"version"`
}
