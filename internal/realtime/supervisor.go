package realtime

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"rowsync-core/internal/backoff"
	"rowsync-core/internal/changefeed"
	"rowsync-core/internal/core/dispose"
	coreerrors "rowsync-core/internal/core/errors"
	corelog "rowsync-core/internal/core/log"
	"rowsync-core/internal/core/metrics"
	"rowsync-core/internal/core/safe"
	"rowsync-core/internal/projection"
	"rowsync-core/internal/transport"
	timeutil "rowsync-core/internal/utils/time"
)

// DefaultLoadTimeout 重新同步加载超时时间
const DefaultLoadTimeout = 30 * time.Second

// Options 监督器配置，Transport 必填
type Options struct {
	Topic     string
	Transport transport.Transport

	// Store 接收事件，为 nil 时新建
	Store *projection.Store
	// Policy 默认为 backoff.DefaultPolicy
	Policy    *backoff.Policy
	Scheduler timeutil.Scheduler

	// Loader 设置后，每次订阅成功都会重新加载投影
	Loader         transport.Loader
	ResyncInterval time.Duration // minimum spacing between resyncs, 0 for none
	LoadTimeout    time.Duration

	Metrics metrics.Metrics
	Logger  corelog.Logger
}

// Supervisor 单个主题的订阅监督器：打开通道，
// 将记录写入投影，失败时退避重连。
//
// 所有状态由 mu 保护。每个传输和定时器回调都带有创建时的代次，
// 代次过期的回调直接丢弃，
// 因此 Stop 返回后不会再有事件写入存储
type Supervisor struct {
	*dispose.ServiceBase

	topic       string
	transport   transport.Transport
	store       *projection.Store
	policy      backoff.Policy
	scheduler   timeutil.Scheduler
	loader      transport.Loader
	limiter     *rate.Limiter
	loadTimeout time.Duration
	recorder    *metrics.TopicRecorder
	logger      corelog.Logger

	mu         sync.Mutex
	started    bool
	generation uint64
	handle     *handle
	backoff    backoff.State
	state      ChannelState
	retry      timeutil.Timer
	retryGen   uint64
	nextDelay  time.Duration
}

// NewSupervisor 创建未启动的监督器
func NewSupervisor(parentCtx context.Context, opts Options) (*Supervisor, error) {
	if opts.Topic == "" {
		return nil, coreerrors.New(coreerrors.CodeMissingParam, "topic is required")
	}
	if opts.Transport == nil {
		return nil, coreerrors.New(coreerrors.CodeMissingParam, "transport is required")
	}

	policy := backoff.DefaultPolicy()
	if opts.Policy != nil {
		if err := opts.Policy.Validate(); err != nil {
			return nil, err
		}
		policy = *opts.Policy
	}

	logger := corelog.OrDefault(opts.Logger).WithField("topic", opts.Topic)

	store := opts.Store
	if store == nil {
		var err error
		if store, err = projection.NewStore(projection.Options{Logger: logger}); err != nil {
			return nil, err
		}
	}

	scheduler := opts.Scheduler
	if scheduler == nil {
		scheduler = timeutil.RealScheduler{}
	}

	loadTimeout := opts.LoadTimeout
	if loadTimeout <= 0 {
		loadTimeout = DefaultLoadTimeout
	}

	s := &Supervisor{
		ServiceBase: dispose.NewService("Supervisor:"+opts.Topic, parentCtx),
		topic:       opts.Topic,
		transport:   opts.Transport,
		store:       store,
		policy:      policy,
		scheduler:   scheduler,
		loader:      opts.Loader,
		loadTimeout: loadTimeout,
		recorder:    metrics.ForTopic(opts.Metrics, opts.Topic),
		logger:      logger,
		backoff:     policy.Reset(),
		state:       StateIdle,
	}
	if opts.ResyncInterval > 0 {
		s.limiter = rate.NewLimiter(rate.Every(opts.ResyncInterval), 1)
	}
	s.AddCleanHandler(func() error {
		s.Stop()
		return nil
	})
	return s, nil
}

// Topic 获取主题
func (s *Supervisor) Topic() string { return s.topic }

// Store 获取投影存储
func (s *Supervisor) Store() *projection.Store { return s.store }

// Start 打开第一个通道，已启动时不做任何事
func (s *Supervisor) Start() error {
	if s.IsClosed() {
		return coreerrors.ErrResourceClosed
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return nil
	}
	s.started = true
	s.backoff = s.policy.Reset()
	s.nextDelay = 0
	s.logger.Infof("realtime: starting %s", s.topic)
	s.createLocked()
	return nil
}

// Stop 释放通道并取消待执行的重连。
// 返回后不再有事件写入存储，重复调用无副作用
func (s *Supervisor) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return
	}
	s.started = false
	s.generation++
	if s.retry != nil {
		s.retry.Stop()
		s.retry = nil
	}
	if s.handle != nil {
		s.handle.Close()
		s.handle = nil
	}
	s.state = StateIdle
	s.backoff = s.policy.Reset()
	s.nextDelay = 0
	s.logger.Infof("realtime: stopped %s", s.topic)
}

// Close 永久停止监督器
func (s *Supervisor) Close() error {
	return s.CloseWithError()
}

// Status 获取当前状态，Attempt 和 NextDelay 描述待执行的重连
func (s *Supervisor) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := Status{
		Topic:      s.topic,
		State:      s.state,
		Started:    s.started,
		Attempt:    s.backoff.Attempt,
		NextDelay:  s.nextDelay,
		Generation: s.generation,
		Version:    s.store.Version(),
	}
	if s.handle != nil {
		st.HandleID = s.handle.id
	}
	return st
}

// createLocked 以新 handle 开始新的代次
func (s *Supervisor) createLocked() {
	s.generation++
	h := newHandle(s.Ctx(), s.generation)
	s.handle = h
	s.state = StateConnecting
	s.logger.Debugf("realtime: opening channel %s for %s (generation %d)", h.id, s.topic, h.gen)
	safe.Go("supervisor:"+s.topic, func() { s.run(h) })
}

func (s *Supervisor) currentLocked(gen uint64) bool {
	return s.started && gen == s.generation
}

func (s *Supervisor) isCurrent(gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentLocked(gen)
}

// handleRecord 规范化并应用一条记录，错误记录丢弃
func (s *Supervisor) handleRecord(gen uint64, d transport.Delivery) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.currentLocked(gen) {
		return
	}

	if d.Err != nil {
		s.logger.WithError(d.Err).Warnf("realtime: dropping undecodable record on %s", s.topic)
		s.recorder.Dropped("decode")
		return
	}
	ev, err := changefeed.NormalizeRecord(d.Record)
	if err != nil {
		s.logger.WithError(err).Warnf("realtime: dropping malformed record on %s", s.topic)
		s.recorder.Dropped("malformed")
		return
	}
	if s.store.Apply(ev) {
		s.recorder.Applied()
	}
}

// handleStatus 驱动状态机，返回是否需要重新同步
func (s *Supervisor) handleStatus(gen uint64, st transport.Status, cause error) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.currentLocked(gen) {
		return false
	}
	s.recorder.Status(st.String())

	if st == transport.StatusSubscribed {
		s.state = StateSubscribed
		s.backoff = s.policy.Reset()
		s.nextDelay = 0
		s.logger.Infof("realtime: subscribed to %s", s.topic)
		return true
	}

	s.state = stateFor(st)
	s.scheduleRetryLocked(gen, st, cause)
	return false
}

// scheduleRetryLocked 每个代次只设置一个重连定时器
func (s *Supervisor) scheduleRetryLocked(gen uint64, st transport.Status, cause error) {
	if s.retryGen == gen {
		return
	}
	s.retryGen = gen

	delay, next := s.policy.Next(s.backoff)
	s.backoff = next
	s.nextDelay = delay
	s.retry = s.scheduler.AfterFunc(delay, func() { s.fireRetry(gen) })
	s.recorder.Reconnect(float64(delay) / float64(time.Millisecond))

	log := s.logger
	if cause != nil {
		log = log.WithError(cause)
	}
	log.Warnf("realtime: channel for %s %s, reconnecting in %s (attempt %d)", s.topic, st, delay, next.Attempt)
}

// fireRetry 用新 handle 替换失败的 handle
func (s *Supervisor) fireRetry(gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.currentLocked(gen) {
		return
	}
	s.retry = nil
	if s.handle != nil {
		s.handle.Close()
		s.handle = nil
	}
	s.createLocked()
}
