package realtime

import (
	"context"
	"sort"
	"sync"

	"rowsync-core/internal/core/dispose"
	coreerrors "rowsync-core/internal/core/errors"
	corelog "rowsync-core/internal/core/log"
)

// Factory 为主题创建监督器
type Factory func(ctx context.Context, topic string) (*Supervisor, error)

type registryEntry struct {
	sup  *Supervisor
	refs int
}

// Registry 每个主题一个监督器，由多个使用方共享。
// 首次 Acquire 启动主题；最后一次释放关闭监督器并移除主题，
// 之后的 Acquire 从空投影开始，
// 只有已挂载的主题占用内存
type Registry struct {
	*dispose.ManagerBase

	factory Factory
	logger  corelog.Logger

	mu      sync.Mutex
	entries map[string]*registryEntry
	closed  bool
}

// NewRegistry 创建主题注册表
func NewRegistry(parentCtx context.Context, factory Factory, logger corelog.Logger) *Registry {
	r := &Registry{
		ManagerBase: dispose.NewManager("Registry", parentCtx),
		factory:     factory,
		logger:      corelog.OrDefault(logger),
		entries:     make(map[string]*registryEntry),
	}
	r.AddCleanHandler(r.shutdown)
	return r
}

// Acquire 获取已启动的主题监督器及释放函数
// 释放函数幂等
func (r *Registry) Acquire(topic string) (*Supervisor, func(), error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, nil, coreerrors.ErrResourceClosed
	}

	e, ok := r.entries[topic]
	if !ok {
		sup, err := r.factory(r.Ctx(), topic)
		if err != nil {
			return nil, nil, err
		}
		e = &registryEntry{sup: sup}
		r.entries[topic] = e
	}
	if e.refs == 0 {
		if err := e.sup.Start(); err != nil {
			delete(r.entries, topic)
			_ = e.sup.Close()
			return nil, nil, err
		}
	}
	e.refs++
	r.logger.Debugf("realtime: acquired %s (refs %d)", topic, e.refs)

	var once sync.Once
	release := func() {
		once.Do(func() { r.release(topic, e) })
	}
	return e.sup, release, nil
}

func (r *Registry) release(topic string, e *registryEntry) {
	r.mu.Lock()
	if r.closed || e.refs == 0 {
		r.mu.Unlock()
		return
	}
	e.refs--
	r.logger.Debugf("realtime: released %s (refs %d)", topic, e.refs)
	if e.refs > 0 {
		r.mu.Unlock()
		return
	}
	if r.entries[topic] == e {
		delete(r.entries, topic)
	}
	e.sup.Stop()
	r.mu.Unlock()

	if err := e.sup.Close(); err != nil {
		r.logger.Warnf("realtime: close %s: %v", topic, err)
	}
}

// Lookup 查找已挂载主题的监督器（不增加引用）
func (r *Registry) Lookup(topic string) (*Supervisor, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[topic]
	if !ok {
		return nil, false
	}
	return e.sup, true
}

// Refs 获取主题的引用数
func (r *Registry) Refs(topic string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.entries[topic]; ok {
		return e.refs
	}
	return 0
}

// Topics 按名称列出已挂载的主题
func (r *Registry) Topics() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.entries))
	for t := range r.entries {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// Statuses 按名称返回已挂载主题的状态
func (r *Registry) Statuses() []Status {
	r.mu.Lock()
	sups := make([]*Supervisor, 0, len(r.entries))
	for _, e := range r.entries {
		sups = append(sups, e.sup)
	}
	r.mu.Unlock()

	out := make([]Status, 0, len(sups))
	for _, sup := range sups {
		out = append(out, sup.Status())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Topic < out[j].Topic })
	return out
}

// Active 获取有引用的主题数量
func (r *Registry) Active() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.entries {
		if e.refs > 0 {
			n++
		}
	}
	return n
}

// Close 停止并释放所有监督器
func (r *Registry) Close() error {
	return r.CloseWithError()
}

func (r *Registry) shutdown() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	entries := r.entries
	r.entries = make(map[string]*registryEntry)
	r.mu.Unlock()

	for topic, e := range entries {
		if err := e.sup.Close(); err != nil {
			r.logger.Warnf("realtime: close %s: %v", topic, err)
		}
	}
	return nil
}
