package obs

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAppendBytes(t *testing.T) {
	assert.Equal(t, "512B", string(appendBytes(nil, 512)))
	assert.Equal(t, "32.0KB", string(appendBytes(nil, 32*1024)))
	assert.Equal(t, "48.0MB", string(appendBytes(nil, 48*1024*1024)))
	assert.Equal(t, "40960.0GB", string(appendBytes(nil, 40*1024*1024*1024*1024)))
}

func TestMemSampler(t *testing.T) {
	var s MemSampler
	first := s.Sample()
	assert.Zero(t, first.Elapsed)
	assert.NotZero(t, first.HeapAlloc)

	sink := make([][]byte, 0, 64)
	for i := 0; i < 64; i++ {
		sink = append(sink, make([]byte, 4096))
	}
	assert.Len(t, sink, 64)

	second := s.Sample()
	assert.True(t, second.At.After(first.At) || second.At.Equal(first.At))
	assert.GreaterOrEqual(t, second.AllocGrow, uint64(64*4096))
	assert.Contains(t, second.String(), "heap=")
}

func TestReportMemoryStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		ReportMemory(ctx, time.Millisecond)
		close(done)
	}()
	time.Sleep(5 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("reporter did not stop")
	}

	ReportMemory(context.Background(), 0)
}
