package realtime

import (
	"context"
	"time"

	"github.com/google/uuid"

	"rowsync-core/internal/core/dispose"
	"rowsync-core/internal/transport"
)

// handle 一次通道尝试，只属于一个代次，
// 最多释放一次；释放时取消上下文并关闭通道
type handle struct {
	*dispose.Dispose
	id  string
	gen uint64
}

func newHandle(parent context.Context, gen uint64) *handle {
	return &handle{
		Dispose: dispose.NewDispose(parent, nil),
		id:      uuid.NewString(),
		gen:     gen,
	}
}

// attach 将 ch 绑定到 handle 的生命周期，
// handle 已释放时关闭 ch 并返回 false
func (h *handle) attach(ch transport.Channel) bool {
	h.AddCleanHandler(ch.Close)
	if h.IsClosed() {
		ch.Close()
		return false
	}
	return true
}

// run handle goroutine 主体：先订阅，再将投递转交给监督器，
// 直到流结束或 handle 被释放
func (s *Supervisor) run(h *handle) {
	ctx := h.Ctx()

	ch, err := s.transport.Subscribe(ctx, s.topic)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		s.logger.Warnf("realtime: subscribe to %s failed: %v", s.topic, err)
		s.handleStatus(h.gen, transport.StatusForError(err), err)
		return
	}
	if !s.isCurrent(h.gen) {
		ch.Close()
		return
	}
	if !h.attach(ch) {
		return
	}

	for d := range ch.Deliveries() {
		if !d.IsStatus {
			s.handleRecord(h.gen, d)
			continue
		}
		if s.handleStatus(h.gen, d.Status, d.Err) {
			s.resync(ctx, h.gen)
		}
		if d.Status.Failed() {
			return
		}
	}

	if ctx.Err() == nil {
		s.handleStatus(h.gen, transport.StatusClosed, nil)
	}
}

// resync 用 loader 的快照替换投影。
// 失败只记录日志，实时流照常更新投影
func (s *Supervisor) resync(ctx context.Context, gen uint64) {
	if s.loader == nil {
		return
	}
	if s.limiter != nil && !s.limiter.Allow() {
		s.logger.Debugf("realtime: resync of %s skipped by rate limit", s.topic)
		return
	}

	loadCtx, cancel := context.WithTimeout(ctx, s.loadTimeout)
	defer cancel()
	start := time.Now()
	entities, err := s.loader.Load(loadCtx, s.topic)
	if err != nil {
		if ctx.Err() == nil {
			s.logger.Warnf("realtime: resync of %s failed: %v", s.topic, err)
		}
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.currentLocked(gen) {
		return
	}
	s.store.Replace(entities)
	s.recorder.Resynced()
	s.logger.Infof("realtime: resynced %s with %d entities in %s", s.topic, len(entities), time.Since(start))
}
