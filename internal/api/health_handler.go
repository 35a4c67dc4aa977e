package api

import (
	"context"
	"net/http"
	"time"

	"rowsync-core/internal/health"
)

// HealthHandler 健康检查处理器（/healthz 和 /ready）
type HealthHandler struct {
	healthManager    *health.HealthManager
	compositeChecker *health.CompositeHealthChecker
	resp             *ResponseHelper
}

// NewHealthHandler 创建健康检查处理器，单组件超时 5s
// healthManager 可为 nil
func NewHealthHandler(healthManager *health.HealthManager, resp *ResponseHelper) *HealthHandler {
	return &HealthHandler{
		healthManager:    healthManager,
		compositeChecker: health.NewCompositeHealthChecker(5 * time.Second),
		resp:             resp,
	}
}

// RegisterChecker 注册组件检查器
func (h *HealthHandler) RegisterChecker(name string, checker health.HealthChecker) {
	h.compositeChecker.RegisterChecker(name, checker)
}

// HealthzResponse /healthz 响应
type HealthzResponse struct {
	Status     string                             `json:"status"`
	Timestamp  time.Time                          `json:"timestamp"`
	Process    *health.HealthInfo                 `json:"process,omitempty"`
	Components map[string]ComponentStatusResponse `json:"components"`
}

// ComponentStatusResponse 组件状态响应
type ComponentStatusResponse struct {
	Status    string    `json:"status"`
	Message   string    `json:"message,omitempty"`
	LastCheck time.Time `json:"last_check"`
}

// HandleHealthz 检查所有组件，degraded 仍返回 200
func (h *HealthHandler) HandleHealthz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	components := h.compositeChecker.CheckAll(ctx)
	overall := health.Overall(components)

	response := HealthzResponse{
		Status:     string(overall),
		Timestamp:  time.Now(),
		Components: make(map[string]ComponentStatusResponse, len(components)),
	}
	if h.healthManager != nil {
		response.Process = h.healthManager.GetHealthInfo()
		if response.Process.Status != health.HealthStatusHealthy && overall == health.ComponentStatusHealthy {
			response.Status = string(response.Process.Status)
		}
	}
	for name, comp := range components {
		response.Components[name] = ComponentStatusResponse{
			Status:    string(comp.Status),
			Message:   comp.Message,
			LastCheck: comp.LastCheck,
		}
	}

	statusCode := http.StatusOK
	if overall == health.ComponentStatusUnhealthy ||
		(h.healthManager != nil && !h.healthManager.IsHealthy()) {
		statusCode = http.StatusServiceUnavailable
	}
	h.resp.Raw(w, statusCode, response)
}

// HandleReady 接受新订阅时返回 200
func (h *HealthHandler) HandleReady(w http.ResponseWriter, r *http.Request) {
	if h.healthManager == nil || h.healthManager.IsAcceptingWatches() {
		h.resp.Success(w, http.StatusOK, map[string]interface{}{"ready": true})
		return
	}
	h.resp.Raw(w, http.StatusServiceUnavailable, ResponseData{
		Success: false,
		Data:    map[string]interface{}{"ready": false, "status": h.healthManager.GetStatus()},
		Error:   "not accepting watchers",
	})
}
