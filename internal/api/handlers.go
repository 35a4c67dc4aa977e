package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"rowsync-core/internal/changefeed"
	"rowsync-core/internal/core/safe"
	"rowsync-core/internal/realtime"
)

// SnapshotResponse GET /topics/{topic}/snapshot 的响应体
type SnapshotResponse struct {
	Topic   string              `json:"topic"`
	Version uint64              `json:"version"`
	Items   []changefeed.Entity `json:"items"`
}

// handleSnapshot 返回已挂载主题的投影
// 未挂载的主题没有实时投影，返回 409 和 idle 状态
func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	topic := mux.Vars(r)["topic"]

	sup, ok := s.registry.Lookup(topic)
	if !ok {
		s.resp.ErrorWithData(w, http.StatusConflict, "topic "+topic+" is not mounted",
			realtime.Status{Topic: topic, State: realtime.StateIdle})
		return
	}

	items, version := sup.Store().SnapshotWithVersion()
	s.resp.Raw(w, http.StatusOK, SnapshotResponse{Topic: topic, Version: version, Items: items})
}

// handleStatus 查询主题状态，不挂载主题
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	topic := mux.Vars(r)["topic"]

	sup, ok := s.registry.Lookup(topic)
	if !ok {
		s.resp.Error(w, http.StatusNotFound, "unknown topic "+topic)
		return
	}
	s.resp.Success(w, http.StatusOK, sup.Status())
}

func (s *Server) handleListTopics(w http.ResponseWriter, r *http.Request) {
	s.resp.Success(w, http.StatusOK, s.registry.Statuses())
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	snapshot := map[string]float64{}
	if s.metrics != nil {
		snapshot = s.metrics.Snapshot()
	}
	goroutines := safe.GetStats()
	snapshot["goroutines_active"] = float64(goroutines.Active)
	snapshot["goroutine_panics_total"] = float64(goroutines.PanicCount)
	s.resp.Raw(w, http.StatusOK, snapshot)
}
