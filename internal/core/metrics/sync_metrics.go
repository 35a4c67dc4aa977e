package metrics

// 订阅监督器记录的指标名称
const (
	EventsApplied  = "sync_events_applied_total"
	EventsDropped  = "sync_events_dropped_total"
	Reconnects     = "sync_reconnects_total"
	StatusReceived = "sync_status_total"
	Resyncs        = "sync_resyncs_total"
	BackoffDelayMs = "sync_backoff_delay_ms"
)

// TopicRecorder 单个主题的同步指标记录器
// 忽略底层收集器的错误，指标不影响同步行为
type TopicRecorder struct {
	m     Metrics
	topic string
}

// ForTopic 创建以 topic 为标签的记录器
// collector 为 nil 时丢弃所有指标
func ForTopic(m Metrics, topic string) *TopicRecorder {
	if m == nil {
		m = NopMetrics{}
	}
	return &TopicRecorder{m: m, topic: topic}
}

func (r *TopicRecorder) labels() map[string]string {
	return map[string]string{"topic": r.topic}
}

// Applied 记录一次写入投影的事件
func (r *TopicRecorder) Applied() {
	_ = r.m.IncrementCounter(EventsApplied, r.labels())
}

// Dropped 记录一次因 reason 丢弃的事件
func (r *TopicRecorder) Dropped(reason string) {
	_ = r.m.IncrementCounter(EventsDropped, map[string]string{"topic": r.topic, "reason": reason})
}

// Status 记录一次传输状态通知
func (r *TopicRecorder) Status(status string) {
	_ = r.m.IncrementCounter(StatusReceived, map[string]string{"topic": r.topic, "status": status})
}

// Reconnect 记录一次重连调度及其延迟
func (r *TopicRecorder) Reconnect(delayMs float64) {
	_ = r.m.IncrementCounter(Reconnects, r.labels())
	_ = r.m.SetGauge(BackoffDelayMs, delayMs, r.labels())
}

// Resynced 记录一次快照重载
func (r *TopicRecorder) Resynced() {
	_ = r.m.IncrementCounter(Resyncs, r.labels())
}
