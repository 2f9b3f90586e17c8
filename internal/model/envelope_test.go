package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yanun0323/decimal"
)

func TestFieldsKeepInsertionOrder(t *testing.T) {
	var f Fields
	f.Set("BID", Float(1.5))
	f.Set("ASK", Float(1.6))
	f.Set("LAST_PRICE", DecimalString("1.55"))
	f.Set("BID", Float(1.45))

	assert.Equal(t, []string{"BID", "ASK", "LAST_PRICE"}, f.Names())
	v, ok := f.Get("BID")
	require.True(t, ok)
	bid, ok := v.Float()
	require.True(t, ok)
	assert.Equal(t, 1.45, bid)
}

func TestFieldsCloneIsIndependent(t *testing.T) {
	f := NewFields(Field{Name: "A", Value: Int(1)})
	cp := f.Clone()
	cp.Set("A", Int(2))

	v, _ := f.Get("A")
	i, _ := v.Int()
	assert.Equal(t, int64(1), i)
}

func TestResolvedIDAssignedOnce(t *testing.T) {
	e := NewTick(time.UnixMilli(1000), "AAPL US Equity", Fields{})
	e = e.WithResolvedID("EQ0010169500001000")
	e = e.WithResolvedID("other")
	assert.Equal(t, "EQ0010169500001000", e.ResolvedID)
}

func TestSentinel(t *testing.T) {
	s := Sentinel()
	assert.True(t, s.IsSentinel())
	assert.Equal(t, 0, s.Fields.Len())
	assert.False(t, s.WithResolvedID("x").ResolvedID != "")

	batch := []TickEnvelope{
		NewTick(time.UnixMilli(1), "A", Fields{}),
		Sentinel(),
		NewTick(time.UnixMilli(2), "B", Fields{}),
	}
	out, found := SplitSentinels(batch)
	assert.True(t, found)
	require.Len(t, out, 2)
	assert.Equal(t, "A", out[0].InstrumentKey)
	assert.Equal(t, "B", out[1].InstrumentKey)
}

func TestReservedNames(t *testing.T) {
	assert.True(t, IsReserved(FieldReceivedTS))
	assert.True(t, IsReserved(FieldSentinel))
	assert.False(t, IsReserved(FieldEventTime))

	names := ReservedNames()
	names[0] = "mutated"
	assert.True(t, IsReserved(FieldReceivedTS))
}

func TestValueKinds(t *testing.T) {
	b, ok := Bool(true).Bool()
	assert.True(t, ok)
	assert.True(t, b)

	_, ok = String("x").Int()
	assert.False(t, ok)

	assert.Equal(t, "12", Int(12).String())
	assert.False(t, Value{}.IsValid())
	assert.True(t, Bytes([]byte{1, 2}).Equal(Bytes([]byte{1, 2})))
	assert.False(t, Bytes([]byte{1, 2}).Equal(Bytes([]byte{1, 3})))
}

func TestValueDecimal(t *testing.T) {
	d, ok := DecimalString("71.5200").Decimal()
	require.True(t, ok)
	assert.True(t, d.Equal(decimal.Require("71.52")))

	_, ok = DecimalString("not a number").Decimal()
	assert.False(t, ok)

	_, ok = String("1.5").Decimal()
	assert.False(t, ok)
}
