package feed

import (
	"time"

	"github.com/yanun0323/logs"

	"tickrec/internal/model"
	"tickrec/internal/obs"
)

// Adapter turns feed events into envelopes. Status and other events only
// produce log lines.
type Adapter struct {
	now     func() time.Time
	metrics *obs.Metrics
}

// NewAdapter creates an adapter. now stamps events without a receive time.
func NewAdapter(now func() time.Time, metrics *obs.Metrics) *Adapter {
	if now == nil {
		now = time.Now
	}
	return &Adapter{now: now, metrics: metrics}
}

// Translate appends the envelopes produced by ev to dst.
func (a *Adapter) Translate(dst []model.TickEnvelope, ev Event) []model.TickEnvelope {
	switch e := ev.(type) {
	case DataEvent:
		if e.Key == "" || e.Fields.Len() == 0 {
			return dst
		}
		received := e.ReceivedAt
		if received.IsZero() {
			received = a.now()
		}
		return append(dst, model.NewTick(received, e.Key, payloadFields(e.Key, e.Fields)))
	case StatusEvent:
		a.metrics.IncStatusEvent()
		if e.Kind.Terminal() {
			logs.Warnf("feed session %d: %s, key: %q, message: %s", e.Session, e.Kind, e.Key, e.Message)
		} else {
			logs.Infof("feed session %d: %s, key: %q, message: %s", e.Session, e.Kind, e.Key, e.Message)
		}
		return dst
	case OtherEvent:
		logs.Infof("feed session %d: %s", e.Session, e.Description)
		return dst
	default:
		logs.Warnf("feed: unhandled event type %T", ev)
		return dst
	}
}

// payloadFields drops names reserved by the record layout.
func payloadFields(key string, fields model.Fields) model.Fields {
	clean := true
	fields.Range(func(name string, _ model.Value) bool {
		if model.IsReserved(name) {
			clean = false
		}
		return clean
	})
	if clean {
		return fields
	}

	var out model.Fields
	fields.Range(func(name string, v model.Value) bool {
		if model.IsReserved(name) {
			logs.Warnf("feed: drop reserved field %q from %s", name, key)
			return true
		}
		out.Append(name, v)
		return true
	})
	return out
}
