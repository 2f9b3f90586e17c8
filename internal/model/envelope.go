package model

import "time"

// TickEnvelope is a single captured market-data update.
type TickEnvelope struct {
	// ReceivedTS is the capture time in UTC epoch milliseconds.
	ReceivedTS int64
	// InstrumentKey is the subscription key as requested from the feed.
	InstrumentKey string
	// ResolvedID is the stable vendor id. Empty until enrichment.
	ResolvedID string
	Fields     Fields

	sentinel bool
}

// NewTick builds a data envelope stamped with receivedAt.
func NewTick(receivedAt time.Time, instrumentKey string, fields Fields) TickEnvelope {
	return TickEnvelope{
		ReceivedTS:    receivedAt.UTC().UnixMilli(),
		InstrumentKey: instrumentKey,
		Fields:        fields,
	}
}

// Sentinel returns the end-of-stream control envelope. It carries no payload
// and is never persisted.
func Sentinel() TickEnvelope {
	return TickEnvelope{sentinel: true}
}

func (e TickEnvelope) IsSentinel() bool { return e.sentinel }

// WithResolvedID assigns id only when the envelope has none yet.
func (e TickEnvelope) WithResolvedID(id string) TickEnvelope {
	if e.sentinel || e.ResolvedID != "" {
		return e
	}
	e.ResolvedID = id
	return e
}

// ReceivedAt returns ReceivedTS as a UTC time.
func (e TickEnvelope) ReceivedAt() time.Time {
	return time.UnixMilli(e.ReceivedTS).UTC()
}

// Equal compares every persisted attribute.
func (e TickEnvelope) Equal(o TickEnvelope) bool {
	return e.sentinel == o.sentinel &&
		e.ReceivedTS == o.ReceivedTS &&
		e.InstrumentKey == o.InstrumentKey &&
		e.ResolvedID == o.ResolvedID &&
		e.Fields.Equal(o.Fields)
}

// SplitSentinels removes sentinels from batch in place and reports whether
// any were present.
func SplitSentinels(batch []TickEnvelope) ([]TickEnvelope, bool) {
	found := false
	out := batch[:0]
	for _, e := range batch {
		if e.sentinel {
			found = true
			continue
		}
		out = append(out, e)
	}
	return out, found
}
