package persist

import (
	"time"

	"tickrec/internal/model"
)

var eventTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// HourBucket picks the hour-of-day file for e: the payload event time first,
// then the raw time field, then the capture time.
func HourBucket(e model.TickEnvelope) int {
	for _, name := range []string{model.FieldEventTime, model.FieldRawTime} {
		v, ok := e.Fields.Get(name)
		if !ok {
			continue
		}
		if h, ok := hourOf(v); ok {
			return h
		}
	}
	return e.ReceivedAt().Hour()
}

func hourOf(v model.Value) (int, bool) {
	if ms, ok := v.Int(); ok {
		if ms <= 0 {
			return 0, false
		}
		return time.UnixMilli(ms).UTC().Hour(), true
	}
	s, ok := v.Str()
	if !ok || s == "" {
		return 0, false
	}
	for _, layout := range eventTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC().Hour(), true
		}
	}
	// Clock strings: "H:MM", "HH:MM:SS", "HH:MM:SS.fff".
	h, i := 0, 0
	for ; i < len(s) && i < 2 && s[i] >= '0' && s[i] <= '9'; i++ {
		h = h*10 + int(s[i]-'0')
	}
	if i == 0 || i >= len(s) || s[i] != ':' || h > 23 {
		return 0, false
	}
	return h, true
}
