package simfeed

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tickrec/internal/feed"
	"tickrec/internal/model"
	"tickrec/pkg/exception"
)

func TestGeneratorCyclesKeys(t *testing.T) {
	g := NewGenerator([]string{"A", "B"}, 10000, 5, 1)
	now := time.Date(2024, time.March, 7, 14, 3, 22, 125000000, time.UTC)

	k1, f1 := g.Next(now)
	k2, _ := g.Next(now)
	k3, _ := g.Next(now)
	assert.Equal(t, []string{"A", "B", "A"}, []string{k1, k2, k3})
	assert.Equal(t, []string{model.FieldEventTime, "LAST_PRICE", "BID", "ASK", "SIZE_LAST_TRADE"}, f1.Names())

	et, _ := f1.Get(model.FieldEventTime)
	s, _ := et.Str()
	assert.Equal(t, "14:03:22.125", s)
}

func TestCents(t *testing.T) {
	assert.Equal(t, "100.05", cents(10005))
	assert.Equal(t, "0.10", cents(10))
	assert.Equal(t, "-1.50", cents(-150))
}

func TestSessionEmitsData(t *testing.T) {
	var (
		mu     sync.Mutex
		data   []feed.DataEvent
		status []feed.StatusEvent
	)
	handler := func(ev feed.Event) {
		mu.Lock()
		defer mu.Unlock()
		switch e := ev.(type) {
		case feed.DataEvent:
			data = append(data, e)
		case feed.StatusEvent:
			status = append(status, e)
		}
	}

	cfg := DefaultConfig()
	cfg.Interval = 2 * time.Millisecond
	s, err := New(0, cfg, handler)
	require.NoError(t, err)

	assert.ErrorIs(t, s.Subscribe(t.Context(), []string{"A"}), exception.ErrFeedNotOpen)
	require.NoError(t, s.Open(t.Context()))
	require.NoError(t, s.Subscribe(t.Context(), []string{"A", "B"}))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(data) >= 4
	}, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, s.Stop())
	require.NoError(t, s.Stop())

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, feed.StatusSessionStarted, status[0].Kind)
	assert.Equal(t, feed.StatusSessionTerminated, status[len(status)-1].Kind)
}
