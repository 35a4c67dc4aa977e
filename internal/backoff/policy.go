// Package backoff 计算重连延迟：从基础延迟开始指数增长，
// 不超过上限，每次订阅成功后重置
package backoff

import (
	"math/rand"
	"time"

	coreerrors "rowsync-core/internal/core/errors"
)

const (
	DefaultBase = 1000 * time.Millisecond
	DefaultMax  = 30000 * time.Millisecond
)

// State 重试进度，零值为初始状态
type State struct {
	Attempt      int
	CurrentDelay time.Duration
	MaxDelay     time.Duration
}

// Policy 不可变，Next 和 Reset 返回新的状态而不修改原值
type Policy struct {
	Base   time.Duration
	Max    time.Duration
	Jitter float64 // 0 disables; otherwise the delay is spread by ±Jitter

	rand func() float64
}

// NewPolicy 创建退避策略，base 必须为正且 max >= base
func NewPolicy(base, max time.Duration, jitter float64) (Policy, error) {
	p := Policy{Base: base, Max: max, Jitter: jitter}
	return p, p.Validate()
}

// DefaultPolicy 默认策略（基础 1s，上限 30s，无抖动）
func DefaultPolicy() Policy {
	return Policy{Base: DefaultBase, Max: DefaultMax}
}

// Validate 校验参数
func (p Policy) Validate() error {
	if p.Base <= 0 {
		return coreerrors.Newf(coreerrors.CodeInvalidParam, "backoff base must be positive, got %v", p.Base)
	}
	if p.Max < p.Base {
		return coreerrors.Newf(coreerrors.CodeInvalidParam, "backoff max %v is below base %v", p.Max, p.Base)
	}
	if p.Jitter < 0 || p.Jitter >= 1 {
		return coreerrors.Newf(coreerrors.CodeInvalidParam, "backoff jitter must be in [0,1), got %v", p.Jitter)
	}
	return nil
}

// WithRand 返回使用 rnd（取值 [0,1)）作为抖动源的副本
func (p Policy) WithRand(rnd func() float64) Policy {
	p.rand = rnd
	return p
}

// Reset 返回订阅成功后的状态
func (p Policy) Reset() State {
	return State{Attempt: 0, CurrentDelay: p.Base, MaxDelay: p.Max}
}

// DelayFor 返回 min(Base*2^attempt, Max)，不含抖动
func (p Policy) DelayFor(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	delay := p.Base
	for i := 0; i < attempt; i++ {
		if delay >= p.Max/2 {
			return p.Max
		}
		delay *= 2
	}
	if delay > p.Max {
		return p.Max
	}
	return delay
}

// Next 返回下次重试前的等待时间和推进后的状态
// 延迟总在 [0, Max] 内
func (p Policy) Next(s State) (time.Duration, State) {
	delay := p.DelayFor(s.Attempt)
	next := State{
		Attempt:      s.Attempt + 1,
		CurrentDelay: p.DelayFor(s.Attempt + 1),
		MaxDelay:     p.Max,
	}
	return p.addJitter(delay), next
}

func (p Policy) addJitter(delay time.Duration) time.Duration {
	if p.Jitter <= 0 {
		return delay
	}
	rnd := p.rand
	if rnd == nil {
		rnd = rand.Float64
	}
	// 在 [delay*(1-j), delay*(1+j)] 内抖动后截断
	jitter := float64(delay) * p.Jitter * (2*rnd() - 1)
	out := time.Duration(float64(delay) + jitter)
	if out < 0 {
		return 0
	}
	if out > p.Max {
		return p.Max
	}
	return out
}
