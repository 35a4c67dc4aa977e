package metrics

// Metrics 指标收集接口（计数器与仪表）
// 单进程使用内存实现，接口保留接入 Prometheus 的可能
type Metrics interface {
	IncrementCounter(name string, labels map[string]string) error
	AddCounter(name string, value float64, labels map[string]string) error
	GetCounter(name string, labels map[string]string) (float64, error)

	SetGauge(name string, value float64, labels map[string]string) error
	GetGauge(name string, labels map[string]string) (float64, error)

	Close() error
}

// NopMetrics 空实现，丢弃所有指标
type NopMetrics struct{}

func (NopMetrics) IncrementCounter(string, map[string]string) error      { return nil }
func (NopMetrics) AddCounter(string, float64, map[string]string) error   { return nil }
func (NopMetrics) GetCounter(string, map[string]string) (float64, error) { return 0, nil }
func (NopMetrics) SetGauge(string, float64, map[string]string) error     { return nil }
func (NopMetrics) GetGauge(string, map[string]string) (float64, error)   { return 0, nil }
func (NopMetrics) Close() error                                          { return nil }
