package obs

import (
	"sync/atomic"
	"time"
)

// Metrics collects lightweight pipeline counters and latency stats.
type Metrics struct {
	captured         uint64
	statusEvents     uint64
	dropped          uint64
	persisted        uint64
	secondaryRecords uint64
	writerCycles     uint64
	loaded           uint64
	filtered         uint64
	delivered        uint64
	sentinels        uint64
	missingFiles     uint64

	flushLatency LatencyStats
	pacingLag    LatencyStats
}

// LatencyStats aggregates duration samples in nanoseconds.
type LatencyStats struct {
	count uint64
	sum   uint64
	min   uint64
	max   uint64
}

// LatencySnapshot is a point-in-time view of latency stats.
type LatencySnapshot struct {
	Count uint64
	Min   time.Duration
	Max   time.Duration
	Avg   time.Duration
}

// Snapshot captures the current metrics values.
type Snapshot struct {
	Captured         uint64
	StatusEvents     uint64
	Dropped          uint64
	Persisted        uint64
	SecondaryRecords uint64
	WriterCycles     uint64
	Loaded           uint64
	Filtered         uint64
	Delivered        uint64
	Sentinels        uint64
	MissingFiles     uint64
	FlushLatency     LatencySnapshot
	PacingLag        LatencySnapshot
}

// NewMetrics allocates a metrics container.
func NewMetrics() *Metrics {
	return &Metrics{}
}

func (m *Metrics) add(p *uint64, n int) {
	if m == nil || n <= 0 {
		return
	}
	atomic.AddUint64(p, uint64(n))
}

// AddCaptured counts envelopes pushed onto the capture queue.
func (m *Metrics) AddCaptured(n int) {
	if m == nil {
		return
	}
	m.add(&m.captured, n)
}

// IncStatusEvent counts feed status notifications.
func (m *Metrics) IncStatusEvent() {
	if m == nil {
		return
	}
	m.add(&m.statusEvents, 1)
}

// IncDropped counts envelopes that could not be enqueued.
func (m *Metrics) IncDropped() {
	if m == nil {
		return
	}
	m.add(&m.dropped, 1)
}

// AddPersisted counts envelopes appended to the consolidated log.
func (m *Metrics) AddPersisted(n int) {
	if m == nil {
		return
	}
	m.add(&m.persisted, n)
}

// AddSecondary counts envelopes appended to hour bucket files.
func (m *Metrics) AddSecondary(n int) {
	if m == nil {
		return
	}
	m.add(&m.secondaryRecords, n)
}

// IncWriterCycle counts non-empty writer cycles.
func (m *Metrics) IncWriterCycle() {
	if m == nil {
		return
	}
	m.add(&m.writerCycles, 1)
}

// IncLoaded counts records decoded by the replay loader.
func (m *Metrics) IncLoaded() {
	if m == nil {
		return
	}
	m.add(&m.loaded, 1)
}

// IncFiltered counts decoded records rejected by the window or retain set.
func (m *Metrics) IncFiltered() {
	if m == nil {
		return
	}
	m.add(&m.filtered, 1)
}

// IncDelivered counts envelopes handed to the replay receiver.
func (m *Metrics) IncDelivered() {
	if m == nil {
		return
	}
	m.add(&m.delivered, 1)
}

// IncSentinel counts end-of-stream markers emitted.
func (m *Metrics) IncSentinel() {
	if m == nil {
		return
	}
	m.add(&m.sentinels, 1)
}

// IncMissingFile counts dated partitions that were not found.
func (m *Metrics) IncMissingFile() {
	if m == nil {
		return
	}
	m.add(&m.missingFiles, 1)
}

// ObserveFlush measures one writer cycle's write time.
func (m *Metrics) ObserveFlush(d time.Duration) {
	if m == nil {
		return
	}
	m.flushLatency.Observe(d)
}

// ObservePacingLag measures how late a paced delivery was.
func (m *Metrics) ObservePacingLag(d time.Duration) {
	if m == nil {
		return
	}
	m.pacingLag.Observe(d)
}

// Snapshot returns a copy of the current metrics values.
func (m *Metrics) Snapshot() Snapshot {
	if m == nil {
		return Snapshot{}
	}
	return Snapshot{
		Captured:         atomic.LoadUint64(&m.captured),
		StatusEvents:     atomic.LoadUint64(&m.statusEvents),
		Dropped:          atomic.LoadUint64(&m.dropped),
		Persisted:        atomic.LoadUint64(&m.persisted),
		SecondaryRecords: atomic.LoadUint64(&m.secondaryRecords),
		WriterCycles:     atomic.LoadUint64(&m.writerCycles),
		Loaded:           atomic.LoadUint64(&m.loaded),
		Filtered:         atomic.LoadUint64(&m.filtered),
		Delivered:        atomic.LoadUint64(&m.delivered),
		Sentinels:        atomic.LoadUint64(&m.sentinels),
		MissingFiles:     atomic.LoadUint64(&m.missingFiles),
		FlushLatency:     m.flushLatency.Snapshot(),
		PacingLag:        m.pacingLag.Snapshot(),
	}
}

// Observe records a duration sample.
func (l *LatencyStats) Observe(d time.Duration) {
	if d < 0 {
		return
	}
	nanos := uint64(d)
	atomic.AddUint64(&l.count, 1)
	atomic.AddUint64(&l.sum, nanos)

	for {
		min := atomic.LoadUint64(&l.min)
		if min != 0 && nanos >= min {
			break
		}
		if atomic.CompareAndSwapUint64(&l.min, min, nanos) {
			break
		}
	}

	for {
		max := atomic.LoadUint64(&l.max)
		if nanos <= max {
			break
		}
		if atomic.CompareAndSwapUint64(&l.max, max, nanos) {
			break
		}
	}
}

// Snapshot returns the aggregated latency stats.
func (l *LatencyStats) Snapshot() LatencySnapshot {
	count := atomic.LoadUint64(&l.count)
	if count == 0 {
		return LatencySnapshot{}
	}
	sum := atomic.LoadUint64(&l.sum)
	min := atomic.LoadUint64(&l.min)
	max := atomic.LoadUint64(&l.max)
	return LatencySnapshot{
		Count: count,
		Min:   time.Duration(min),
		Max:   time.Duration(max),
		Avg:   time.Duration(sum / count),
	}
}
