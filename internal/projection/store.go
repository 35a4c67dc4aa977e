// Package projection 维护同步集合的本地有序副本
//
// Store 是变更事件的归约器，不做 I/O 也不做调度。
// 实体按最新在前排列，id 唯一
package projection

import (
	"container/list"
	"reflect"
	"sync"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"

	"rowsync-core/internal/changefeed"
	coreerrors "rowsync-core/internal/core/errors"
	corelog "rowsync-core/internal/core/log"
)

// Options 存储配置
type Options struct {
	// TombstoneSize > 0 时记住最近删除的 id，
	// 忽略这些 id 迟到的插入
	TombstoneSize int
	Logger        corelog.Logger
}

// Change 每次状态变更后推送给订阅者
type Change struct {
	Event   changefeed.Event `json:"event"`
	Reset   bool             `json:"reset,omitempty"`
	Version uint64           `json:"version"`
}

// Store 并发安全
type Store struct {
	mu         sync.RWMutex
	order      *list.List // of changefeed.Entity, newest first
	index      map[string]*list.Element
	tombstones *lru.Cache[string, struct{}]
	version    uint64

	watchers map[string]chan Change
	logger   corelog.Logger
}

// NewStore 创建空存储
func NewStore(opts Options) (*Store, error) {
	s := &Store{
		order:    list.New(),
		index:    make(map[string]*list.Element),
		watchers: make(map[string]chan Change),
		logger:   corelog.OrDefault(opts.Logger),
	}
	if opts.TombstoneSize < 0 {
		return nil, coreerrors.Newf(coreerrors.CodeInvalidParam, "tombstone size must not be negative, got %d", opts.TombstoneSize)
	}
	if opts.TombstoneSize > 0 {
		cache, err := lru.New[string, struct{}](opts.TombstoneSize)
		if err != nil {
			return nil, coreerrors.Wrap(err, coreerrors.CodeInvalidParam, "create tombstone cache")
		}
		s.tombstones = cache
	}
	return s, nil
}

// MustNewStore 选项确定有效时使用的 NewStore
func MustNewStore(opts Options) *Store {
	s, err := NewStore(opts)
	if err != nil {
		panic(err)
	}
	return s
}

// Apply 归约一个事件，返回状态是否改变
//
// 插入：置于最前，id 已存在时原位替换；
// 更新：原位替换，未知 id 忽略；
// 删除：移除，未知 id 忽略
//
// 同一事件重复应用与应用一次结果相同
func (s *Store) Apply(ev changefeed.Event) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	changed := false
	switch ev.Kind {
	case changefeed.KindInsert:
		if s.isTombstoned(ev.EntityID) {
			s.logger.Debugf("projection: ignoring insert of deleted entity %s", ev.EntityID)
			return false
		}
		if elem, ok := s.index[ev.EntityID]; ok {
			changed = s.replaceLocked(elem, ev.Payload)
		} else {
			s.index[ev.EntityID] = s.order.PushFront(ev.Payload.Clone())
			changed = true
		}
	case changefeed.KindUpdate:
		if elem, ok := s.index[ev.EntityID]; ok {
			changed = s.replaceLocked(elem, ev.Payload)
		}
	case changefeed.KindDelete:
		if s.tombstones != nil {
			s.tombstones.Add(ev.EntityID, struct{}{})
		}
		if elem, ok := s.index[ev.EntityID]; ok {
			s.order.Remove(elem)
			delete(s.index, ev.EntityID)
			changed = true
		}
	default:
		s.logger.Warnf("projection: ignoring event with unknown kind %d", int(ev.Kind))
	}

	if changed {
		s.version++
		s.publishLocked(Change{Event: ev, Version: s.version})
	}
	return changed
}

func (s *Store) replaceLocked(elem *list.Element, payload changefeed.Entity) bool {
	if reflect.DeepEqual(elem.Value.(changefeed.Entity), payload) {
		return false
	}
	elem.Value = payload.Clone()
	return true
}

func (s *Store) isTombstoned(id string) bool {
	return s.tombstones != nil && s.tombstones.Contains(id)
}

// Replace 用 entities（最新在前）整体替换内容，
// 用于重连后从权威数据源加载。没有 id 的实体跳过，
// 重复 id 以首次出现为准
func (s *Store) Replace(entities []changefeed.Entity) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.order.Init()
	s.index = make(map[string]*list.Element, len(entities))
	if s.tombstones != nil {
		s.tombstones.Purge()
	}
	for _, e := range entities {
		id, ok := e.ID()
		if !ok {
			s.logger.Warnf("projection: skipping snapshot entity without id")
			continue
		}
		if _, dup := s.index[id]; dup {
			continue
		}
		s.index[id] = s.order.PushBack(e.Clone())
	}
	s.version++
	s.publishLocked(Change{Reset: true, Version: s.version})
}

// Snapshot 返回实体副本（最新在前）
func (s *Store) Snapshot() []changefeed.Entity {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]changefeed.Entity, 0, s.order.Len())
	for e := s.order.Front(); e != nil; e = e.Next() {
		out = append(out, e.Value.(changefeed.Entity).Clone())
	}
	return out
}

// SnapshotWithVersion 返回快照及其对应版本
func (s *Store) SnapshotWithVersion() ([]changefeed.Entity, uint64) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]changefeed.Entity, 0, s.order.Len())
	for e := s.order.Front(); e != nil; e = e.Next() {
		out = append(out, e.Value.(changefeed.Entity).Clone())
	}
	return out, s.version
}

// Get 获取单个实体的副本
func (s *Store) Get(id string) (changefeed.Entity, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	elem, ok := s.index[id]
	if !ok {
		return nil, false
	}
	return elem.Value.(changefeed.Entity).Clone(), true
}

// Len 获取实体数量
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.order.Len()
}

// Version 版本号，每次状态变更加一
func (s *Store) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// Watch 订阅变更，推送不会阻塞存储：
// 缓冲区满时丢弃变更，订阅者会看到 Version 不连续。
// cancel 关闭通道，可重复调用
func (s *Store) Watch(buffer int) (<-chan Change, func()) {
	if buffer <= 0 {
		buffer = 1
	}
	id := uuid.NewString()
	ch := make(chan Change, buffer)

	s.mu.Lock()
	s.watchers[id] = ch
	s.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.watchers, id)
			s.mu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}

func (s *Store) publishLocked(c Change) {
	for id, ch := range s.watchers {
		select {
		case ch <- c:
		default:
			s.logger.Warnf("projection: watcher %s is full, dropping change version %d", id, c.Version)
		}
	}
}
