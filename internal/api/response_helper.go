package api

import (
	"encoding/json"
	"net/http"

	corelog "rowsync-core/internal/core/log"
)

// ResponseData 统一响应格式（非流式 JSON）
type ResponseData struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// ResponseHelper 响应辅助工具
type ResponseHelper struct {
	logger corelog.Logger
}

// NewResponseHelper 创建响应辅助工具
func NewResponseHelper(logger corelog.Logger) *ResponseHelper {
	return &ResponseHelper{logger: corelog.OrDefault(logger)}
}

// Success 写入成功响应
func (h *ResponseHelper) Success(w http.ResponseWriter, statusCode int, data interface{}) {
	h.write(w, statusCode, ResponseData{Success: true, Data: data})
}

// Error 写入错误响应
func (h *ResponseHelper) Error(w http.ResponseWriter, statusCode int, message string) {
	h.write(w, statusCode, ResponseData{Success: false, Error: message})
}

// ErrorWithData 写入带数据的错误响应
func (h *ResponseHelper) ErrorWithData(w http.ResponseWriter, statusCode int, message string, data interface{}) {
	h.write(w, statusCode, ResponseData{Success: false, Data: data, Error: message})
}

// Raw 直接写入 v，不使用统一格式
func (h *ResponseHelper) Raw(w http.ResponseWriter, statusCode int, v interface{}) {
	h.write(w, statusCode, v)
}

func (h *ResponseHelper) write(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Debugf("api: encode response: %v", err)
	}
}
