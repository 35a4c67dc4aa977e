// Package api 通过 HTTP 暴露主题：JSON 快照和状态，
// 以及投影变更的 websocket 推送
package api

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"rowsync-core/internal/core/dispose"
	coreerrors "rowsync-core/internal/core/errors"
	corelog "rowsync-core/internal/core/log"
	"rowsync-core/internal/health"
	"rowsync-core/internal/realtime"
)

// DefaultWatchBuffer Config.WatchBuffer 未设置时的默认值
const DefaultWatchBuffer = 64

// Config API 服务配置
type Config struct {
	Listen       string
	WatchBuffer  int      // per-watcher change buffer
	AllowOrigins []string // "*" allows any origin; empty allows same-origin only
}

// MetricsSource 由 metrics.MemoryMetrics 实现
type MetricsSource interface {
	Snapshot() map[string]float64
}

// Server 下游 HTTP API 服务
type Server struct {
	*dispose.ManagerBase

	config        Config
	registry      *realtime.Registry
	metrics       MetricsSource
	healthManager *health.HealthManager
	health        *HealthHandler
	resp          *ResponseHelper
	logger        corelog.Logger

	router   *mux.Router
	server   *http.Server
	upgrader websocket.Upgrader

	mu       sync.Mutex
	listener net.Listener
	closing  bool
	sessions sync.WaitGroup
	watchers atomic.Int64
}

// NewServer 创建 API 服务，metrics 和 healthManager 可为 nil
func NewServer(
	ctx context.Context,
	config Config,
	registry *realtime.Registry,
	metrics MetricsSource,
	healthManager *health.HealthManager,
	logger corelog.Logger,
) *Server {
	if config.WatchBuffer <= 0 {
		config.WatchBuffer = DefaultWatchBuffer
	}
	logger = corelog.OrDefault(logger).WithField("component", "api")
	resp := NewResponseHelper(logger)

	s := &Server{
		ManagerBase:   dispose.NewManager("APIServer", ctx),
		config:        config,
		registry:      registry,
		metrics:       metrics,
		healthManager: healthManager,
		health:        NewHealthHandler(healthManager, resp),
		resp:          resp,
		logger:        logger,
		router:        mux.NewRouter(),
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin:     s.originAllowed,
	}
	if healthManager != nil {
		healthManager.SetStatsProvider(s)
	}
	s.health.RegisterChecker("topics", health.NewTopicsHealthChecker(registry))

	s.registerRoutes()

	s.server = &http.Server{
		Addr:              config.Listen,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	s.AddCleanHandler(s.shutdown)
	return s
}

// RegisterChecker 注册依赖检查器
func (s *Server) RegisterChecker(name string, checker health.HealthChecker) {
	s.health.RegisterChecker(name, checker)
}

// Handler 返回路由
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start 绑定监听地址并在后台服务
func (s *Server) Start() error {
	l, err := net.Listen("tcp", s.config.Listen)
	if err != nil {
		return coreerrors.Wrapf(err, coreerrors.CodeConfigError, "failed to listen on %s", s.config.Listen)
	}

	s.mu.Lock()
	s.listener = l
	s.mu.Unlock()

	s.logger.Infof("api: listening on http://%s", l.Addr())
	go func() {
		if err := s.server.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Errorf("api: serve: %v", err)
		}
	}()
	return nil
}

// Addr 返回实际监听地址
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Close 停止监听并断开所有订阅
func (s *Server) Close() error {
	return s.CloseWithError()
}

func (s *Server) shutdown() error {
	s.mu.Lock()
	s.closing = true
	s.mu.Unlock()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := s.server.Shutdown(shutdownCtx)

	// Shutdown 不跟踪被劫持的 websocket 连接，
	// 它们随服务上下文取消而结束
	s.sessions.Wait()
	s.logger.Infof("api: stopped")
	return err
}

// ActiveTopics 实现 health.StatsProvider
func (s *Server) ActiveTopics() int {
	return s.registry.Active()
}

// ActiveWatchers 实现 health.StatsProvider
func (s *Server) ActiveWatchers() int {
	return int(s.watchers.Load())
}

func (s *Server) registerRoutes() {
	s.router.HandleFunc("/healthz", s.health.HandleHealthz).Methods(http.MethodGet)
	s.router.HandleFunc("/ready", s.health.HandleReady).Methods(http.MethodGet)

	// OPTIONS 需要匹配路由，CORS 中间件才能响应预检请求
	api := s.router.NewRoute().Subrouter()
	api.Use(s.loggingMiddleware)
	api.Use(s.corsMiddleware)

	api.HandleFunc("/metrics", s.handleMetrics).Methods(http.MethodGet, http.MethodOptions)
	api.HandleFunc("/topics", s.handleListTopics).Methods(http.MethodGet, http.MethodOptions)
	api.HandleFunc("/topics/{topic:"+topicPattern+"}/snapshot", s.handleSnapshot).Methods(http.MethodGet, http.MethodOptions)
	api.HandleFunc("/topics/{topic:"+topicPattern+"}/status", s.handleStatus).Methods(http.MethodGet, http.MethodOptions)
	api.HandleFunc("/topics/{topic:"+topicPattern+"}/watch", s.handleWatch).Methods(http.MethodGet, http.MethodOptions)
}

// topicPattern 匹配表名以及用点或冒号分隔的频道名
const topicPattern = `[A-Za-z0-9_.:\-]+`

// beginSession 注册订阅会话，服务关闭中时拒绝
func (s *Server) beginSession() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closing {
		return false
	}
	s.sessions.Add(1)
	return true
}

func (s *Server) originAllowed(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range s.config.AllowOrigins {
		if allowed == "*" || strings.EqualFold(allowed, origin) {
			return true
		}
	}
	// 同源请求总是允许
	host := strings.TrimPrefix(strings.TrimPrefix(origin, "http://"), "https://")
	return strings.EqualFold(host, r.Host)
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debugf("api: %s %s - %s", r.Method, r.RequestURI, time.Since(start))
	})
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if origin := r.Header.Get("Origin"); origin != "" && len(s.config.AllowOrigins) > 0 && s.originAllowed(r) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
			w.Header().Set("Vary", "Origin")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// statusForError 将错误映射为 HTTP 状态码
func statusForError(err error) int {
	switch {
	case coreerrors.IsCode(err, coreerrors.CodeResourceClosed):
		return http.StatusServiceUnavailable
	case coreerrors.IsCode(err, coreerrors.CodeInvalidParam):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
