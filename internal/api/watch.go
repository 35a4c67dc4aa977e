package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"rowsync-core/internal/changefeed"
	corelog "rowsync-core/internal/core/log"
	"rowsync-core/internal/core/safe"
	"rowsync-core/internal/projection"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

// 订阅流的帧类型
const (
	FrameSnapshot = "snapshot"
	FrameChange   = "change"
)

// WatchFrame 一条 websocket 文本消息
// 首帧总是快照；重新同步或客户端落后后，
// 后续快照替换客户端状态
type WatchFrame struct {
	Type    string              `json:"type"`
	Topic   string              `json:"topic"`
	Version uint64              `json:"version"`
	Items   []changefeed.Entity `json:"items,omitempty"`
	Event   *changefeed.Event   `json:"event,omitempty"`
}

func (s *Server) handleWatch(w http.ResponseWriter, r *http.Request) {
	topic := mux.Vars(r)["topic"]

	if s.healthManager != nil && !s.healthManager.IsAcceptingWatches() {
		s.resp.Error(w, http.StatusServiceUnavailable, "not accepting watchers")
		return
	}
	if !s.beginSession() {
		s.resp.Error(w, http.StatusServiceUnavailable, "server is shutting down")
		return
	}
	defer s.sessions.Done()

	sup, release, err := s.registry.Acquire(topic)
	if err != nil {
		s.resp.Error(w, statusForError(err), err.Error())
		return
	}
	defer release()

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade 已响应客户端
		s.logger.Debugf("api: watch %s: upgrade: %v", topic, err)
		return
	}

	s.watchers.Add(1)
	defer s.watchers.Add(-1)

	ws := &watchSession{
		conn:   conn,
		topic:  topic,
		store:  sup.Store(),
		buffer: s.config.WatchBuffer,
		logger: s.logger.WithField("topic", topic),
	}
	ws.run(s.Ctx())
}

type watchSession struct {
	conn   *websocket.Conn
	topic  string
	store  *projection.Store
	buffer int
	logger corelog.Logger

	sent uint64 // version of the last frame written
}

func (ws *watchSession) run(parent context.Context) {
	defer ws.conn.Close()

	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	// 先订阅再发送首个快照，避免遗漏变更
	changes, unwatch := ws.store.Watch(ws.buffer)
	defer unwatch()

	safe.Go("api:watch:"+ws.topic, func() { ws.readLoop(cancel) })

	if err := ws.writeSnapshot(); err != nil {
		ws.logger.Debugf("api: watch: write snapshot: %v", err)
		return
	}

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			if parent.Err() != nil {
				ws.writeClose(websocket.CloseGoingAway, "server shutting down")
			}
			return
		case <-ticker.C:
			if err := ws.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		case c, ok := <-changes:
			if !ok {
				return
			}
			if err := ws.forward(c); err != nil {
				ws.logger.Debugf("api: watch: write: %v", err)
				return
			}
		}
	}
}

// forward 写入变更 c；c 为重置或之前有变更被丢弃时，
// 改为发送新快照
func (ws *watchSession) forward(c projection.Change) error {
	switch {
	case c.Version <= ws.sent:
		return nil
	case c.Reset || c.Version > ws.sent+1:
		return ws.writeSnapshot()
	default:
		ev := c.Event
		if err := ws.write(WatchFrame{Type: FrameChange, Topic: ws.topic, Version: c.Version, Event: &ev}); err != nil {
			return err
		}
		ws.sent = c.Version
		return nil
	}
}

func (ws *watchSession) writeSnapshot() error {
	items, version := ws.store.SnapshotWithVersion()
	if err := ws.write(WatchFrame{Type: FrameSnapshot, Topic: ws.topic, Version: version, Items: items}); err != nil {
		return err
	}
	ws.sent = version
	return nil
}

func (ws *watchSession) write(f WatchFrame) error {
	if err := ws.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return ws.conn.WriteJSON(f)
}

func (ws *watchSession) writeClose(code int, text string) {
	msg := websocket.FormatCloseMessage(code, text)
	_ = ws.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
}

// readLoop 读取客户端消息以处理控制帧，
// 客户端断开时取消会话
func (ws *watchSession) readLoop(cancel context.CancelFunc) {
	defer cancel()
	ws.conn.SetReadLimit(4096)
	_ = ws.conn.SetReadDeadline(time.Now().Add(pongWait))
	ws.conn.SetPongHandler(func(string) error {
		return ws.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := ws.conn.ReadMessage(); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				ws.logger.Debugf("api: watch: read: %v", err)
			}
			return
		}
	}
}
