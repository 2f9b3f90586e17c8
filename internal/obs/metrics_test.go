package obs

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMetricsSnapshot(t *testing.T) {
	m := NewMetrics()
	m.AddCaptured(3)
	m.AddPersisted(2)
	m.AddPersisted(0)
	m.IncDelivered()
	m.IncSentinel()
	m.ObserveFlush(2 * time.Millisecond)
	m.ObserveFlush(4 * time.Millisecond)

	s := m.Snapshot()
	assert.Equal(t, uint64(3), s.Captured)
	assert.Equal(t, uint64(2), s.Persisted)
	assert.Equal(t, uint64(1), s.Delivered)
	assert.Equal(t, uint64(1), s.Sentinels)
	assert.Equal(t, uint64(2), s.FlushLatency.Count)
	assert.Equal(t, 2*time.Millisecond, s.FlushLatency.Min)
	assert.Equal(t, 4*time.Millisecond, s.FlushLatency.Max)
	assert.Equal(t, 3*time.Millisecond, s.FlushLatency.Avg)
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.AddCaptured(1)
	m.IncDelivered()
	assert.Equal(t, Snapshot{}, m.Snapshot())
}
