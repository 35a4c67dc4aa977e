package metrics

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryMetrics_Counters(t *testing.T) {
	m := NewMemoryMetrics(context.Background())
	defer m.Close()

	require.NoError(t, m.IncrementCounter("c", nil))
	require.NoError(t, m.AddCounter("c", 2.5, nil))

	v, err := m.GetCounter("c", nil)
	require.NoError(t, err)
	assert.Equal(t, 3.5, v)

	assert.Error(t, m.AddCounter("c", -1, nil), "counters cannot decrease")
}

func TestMemoryMetrics_LabelsOrderIndependent(t *testing.T) {
	m := NewMemoryMetrics(context.Background())
	defer m.Close()

	require.NoError(t, m.IncrementCounter("c", map[string]string{"a": "1", "b": "2"}))
	v, err := m.GetCounter("c", map[string]string{"b": "2", "a": "1"})
	require.NoError(t, err)
	assert.Equal(t, 1.0, v)

	assert.Contains(t, m.Snapshot(), "c{a=1,b=2}")
}

func TestMemoryMetrics_ConcurrentIncrements(t *testing.T) {
	m := NewMemoryMetrics(context.Background())
	defer m.Close()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				_ = m.IncrementCounter("c", nil)
			}
		}()
	}
	wg.Wait()

	v, _ := m.GetCounter("c", nil)
	assert.Equal(t, 5000.0, v)
}

func TestMemoryMetrics_Gauge(t *testing.T) {
	m := NewMemoryMetrics(context.Background())
	defer m.Close()

	v, err := m.GetGauge("g", nil)
	require.NoError(t, err)
	assert.Zero(t, v)

	require.NoError(t, m.SetGauge("g", 4000, nil))
	require.NoError(t, m.SetGauge("g", 1000, nil))
	v, _ = m.GetGauge("g", nil)
	assert.Equal(t, 1000.0, v)
}

func TestTopicRecorder(t *testing.T) {
	m := NewMemoryMetrics(context.Background())
	defer m.Close()

	r := ForTopic(m, "posts")
	r.Applied()
	r.Applied()
	r.Dropped("malformed")
	r.Status("channel_error")
	r.Reconnect(2000)
	r.Resynced()

	snap := m.Snapshot()
	assert.Equal(t, 2.0, snap["sync_events_applied_total{topic=posts}"])
	assert.Equal(t, 1.0, snap["sync_events_dropped_total{reason=malformed,topic=posts}"])
	assert.Equal(t, 1.0, snap["sync_status_total{status=channel_error,topic=posts}"])
	assert.Equal(t, 1.0, snap["sync_reconnects_total{topic=posts}"])
	assert.Equal(t, 2000.0, snap["sync_backoff_delay_ms{topic=posts}"])
	assert.Equal(t, 1.0, snap["sync_resyncs_total{topic=posts}"])

	ForTopic(nil, "posts").Applied()
}
