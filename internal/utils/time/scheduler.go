// Package time 提供重连调度使用的可取消定时器抽象，
// 导入时命名为 timeutil
package time

import (
	"sort"
	"sync"
	"time"
)

// Timer 待执行的回调，Stop 返回是否阻止了调用
type Timer interface {
	Stop() bool
}

// Scheduler 延迟执行回调
type Scheduler interface {
	AfterFunc(d time.Duration, f func()) Timer
	Now() time.Time
}

// RealScheduler 基于运行时定时器的调度器
type RealScheduler struct{}

// AfterFunc 封装 time.AfterFunc
func (RealScheduler) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// Now 返回当前时间
func (RealScheduler) Now() time.Time {
	return time.Now()
}

// ============================================================================
// ManualScheduler
// ============================================================================

// ManualScheduler 手动调度器，仅在测试推进时钟时触发回调
type ManualScheduler struct {
	mu     sync.Mutex
	now    time.Time
	seq    int
	timers []*manualTimer
}

type manualTimer struct {
	s       *ManualScheduler
	due     time.Time
	delay   time.Duration
	seq     int
	f       func()
	stopped bool
	fired   bool
}

// NewManualScheduler 创建手动调度器，时钟从 start 开始
func NewManualScheduler(start time.Time) *ManualScheduler {
	return &ManualScheduler{now: start}
}

// AfterFunc 注册回调，时钟到达 now+d 时触发
func (s *ManualScheduler) AfterFunc(d time.Duration, f func()) Timer {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	t := &manualTimer{s: s, due: s.now.Add(d), delay: d, seq: s.seq, f: f}
	s.timers = append(s.timers, t)
	return t
}

// Now 返回模拟时钟
func (s *ManualScheduler) Now() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.now
}

func (t *manualTimer) Stop() bool {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	t.s.removeLocked(t)
	return true
}

func (s *ManualScheduler) removeLocked(t *manualTimer) {
	for i, p := range s.timers {
		if p == t {
			s.timers = append(s.timers[:i], s.timers[i+1:]...)
			return
		}
	}
}

func (s *ManualScheduler) sortLocked() {
	sort.SliceStable(s.timers, func(i, j int) bool {
		if s.timers[i].due.Equal(s.timers[j].due) {
			return s.timers[i].seq < s.timers[j].seq
		}
		return s.timers[i].due.Before(s.timers[j].due)
	})
}

// Pending 按到期顺序返回待触发定时器的原始延迟
func (s *ManualScheduler) Pending() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sortLocked()
	out := make([]time.Duration, 0, len(s.timers))
	for _, t := range s.timers {
		out = append(out, t.delay)
	}
	return out
}

// FireNext 将时钟推进到最早的定时器并执行
// 没有待触发定时器时返回 false
func (s *ManualScheduler) FireNext() bool {
	s.mu.Lock()
	if len(s.timers) == 0 {
		s.mu.Unlock()
		return false
	}
	s.sortLocked()
	t := s.timers[0]
	s.timers = s.timers[1:]
	t.fired = true
	if t.due.After(s.now) {
		s.now = t.due
	}
	s.mu.Unlock()

	t.f()
	return true
}

// Advance 时钟前进 d，执行所有到期的定时器
func (s *ManualScheduler) Advance(d time.Duration) {
	s.mu.Lock()
	target := s.now.Add(d)
	s.mu.Unlock()

	for {
		s.mu.Lock()
		s.sortLocked()
		if len(s.timers) == 0 || s.timers[0].due.After(target) {
			s.now = target
			s.mu.Unlock()
			return
		}
		t := s.timers[0]
		s.timers = s.timers[1:]
		t.fired = true
		s.now = t.due
		s.mu.Unlock()

		t.f()
	}
}
