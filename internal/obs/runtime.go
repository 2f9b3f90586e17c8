package obs

import (
	"context"
	"runtime"
	"strconv"
	"time"

	"github.com/yanun0323/logs"
)

// MemReport summarizes heap and GC activity between two samples.
type MemReport struct {
	At         time.Time
	Elapsed    time.Duration
	HeapAlloc  uint64
	HeapInuse  uint64
	AllocGrow  uint64
	AllocRate  float64 // bytes per second
	GCCount    uint32
	GCPause    time.Duration
	LiveObject int64
}

func (r MemReport) String() string {
	line := make([]byte, 0, 160)
	line = append(line, "heap="...)
	line = appendBytes(line, float64(r.HeapAlloc))
	line = append(line, " inuse="...)
	line = appendBytes(line, float64(r.HeapInuse))
	line = append(line, " grow="...)
	line = appendBytes(line, float64(r.AllocGrow))
	line = append(line, " rate="...)
	line = appendBytes(line, r.AllocRate)
	line = append(line, "/s gc="...)
	line = strconv.AppendUint(line, uint64(r.GCCount), 10)
	line = append(line, " stw="...)
	line = append(line, r.GCPause.String()...)
	line = append(line, " live="...)
	line = strconv.AppendInt(line, r.LiveObject, 10)
	return string(line)
}

// MemSampler diffs consecutive runtime.MemStats reads.
type MemSampler struct {
	prev, curr     runtime.MemStats
	prevAt, currAt time.Time
}

// Sample reads the runtime stats and reports the change since the previous
// call. The first call reports totals since process start.
func (s *MemSampler) Sample() MemReport {
	s.prev, s.curr = s.curr, s.prev
	s.prevAt = s.currAt
	s.currAt = time.Now()
	runtime.ReadMemStats(&s.curr)
	if s.prevAt.IsZero() {
		s.prevAt = s.currAt
	}

	elapsed := s.currAt.Sub(s.prevAt)
	secs := elapsed.Seconds()
	if secs <= 0 {
		secs = 1
	}
	grow := s.curr.TotalAlloc - s.prev.TotalAlloc
	return MemReport{
		At:         s.currAt,
		Elapsed:    elapsed,
		HeapAlloc:  s.curr.HeapAlloc,
		HeapInuse:  s.curr.HeapInuse,
		AllocGrow:  grow,
		AllocRate:  float64(grow) / secs,
		GCCount:    s.curr.NumGC - s.prev.NumGC,
		GCPause:    time.Duration(s.curr.PauseTotalNs - s.prev.PauseTotalNs),
		LiveObject: int64(s.curr.Mallocs) - int64(s.curr.Frees),
	}
}

// ReportMemory logs a MemReport every interval until ctx ends.
func ReportMemory(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	var s MemSampler
	s.Sample()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			logs.Infof("runtime memory: %s", s.Sample())
		}
	}
}

const carryThreshold = 1 << 15

func appendBytes(dst []byte, v float64) []byte {
	units := [...]string{"B", "KB", "MB", "GB"}
	i := 0
	for v >= carryThreshold && i < len(units)-1 {
		v /= 1024
		i++
	}
	if i == 0 {
		dst = strconv.AppendUint(dst, uint64(v), 10)
	} else {
		dst = strconv.AppendFloat(dst, v, 'f', 1, 64)
	}
	return append(dst, units[i]...)
}
