package feed

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tickrec/internal/model"
	"tickrec/internal/obs"
)

func TestAdapterDataEvent(t *testing.T) {
	now := time.Date(2024, time.March, 7, 10, 0, 0, 0, time.UTC)
	a := NewAdapter(func() time.Time { return now }, nil)

	out := a.Translate(nil, DataEvent{
		Key: "IBM US Equity",
		Fields: model.NewFields(
			model.Field{Name: "BID", Value: model.Float(1)},
			model.Field{Name: model.FieldReceivedTS, Value: model.Int(5)},
			model.Field{Name: "ASK", Value: model.Float(2)},
		),
	})
	require.Len(t, out, 1)
	assert.Equal(t, now.UnixMilli(), out[0].ReceivedTS)
	assert.Equal(t, "IBM US Equity", out[0].InstrumentKey)
	assert.Equal(t, "", out[0].ResolvedID)
	assert.Equal(t, []string{"BID", "ASK"}, out[0].Fields.Names())
}

func TestAdapterKeepsEventReceiveTime(t *testing.T) {
	received := time.Date(2024, time.March, 7, 10, 0, 0, 0, time.UTC)
	a := NewAdapter(nil, nil)
	out := a.Translate(nil, DataEvent{
		Key:        "K",
		ReceivedAt: received,
		Fields:     model.NewFields(model.Field{Name: "X", Value: model.Int(1)}),
	})
	require.Len(t, out, 1)
	assert.Equal(t, received.UnixMilli(), out[0].ReceivedTS)
}

func TestAdapterStatusAndOtherProduceNothing(t *testing.T) {
	m := obs.NewMetrics()
	a := NewAdapter(nil, m)

	out := a.Translate(nil, StatusEvent{Session: 1, Key: "K", Kind: StatusSubscriptionFailure, Message: "bad security"})
	out = a.Translate(out, OtherEvent{Session: 1, Description: "heartbeat"})
	out = a.Translate(out, DataEvent{Key: "K"})
	assert.Empty(t, out)
	assert.Equal(t, uint64(1), m.Snapshot().StatusEvents)
}

func TestStatusKindTerminal(t *testing.T) {
	assert.True(t, StatusSubscriptionFailure.Terminal())
	assert.True(t, StatusSessionTerminated.Terminal())
	assert.False(t, StatusSubscriptionStarted.Terminal())
}

func TestPartitionRoundRobin(t *testing.T) {
	got := Partition([]string{"a", "b", "c", "d", "e"}, 2)
	assert.Equal(t, [][]string{{"a", "c", "e"}, {"b", "d"}}, got)

	got = Partition([]string{"a"}, 3)
	assert.Equal(t, [][]string{{"a"}, nil, nil}, got)

	assert.Nil(t, Partition([]string{"a"}, 0))
}
