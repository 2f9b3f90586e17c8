package replay

import "tickrec/internal/model"

// Receiver consumes replayed envelopes. OnTick runs on the player goroutine;
// a slow receiver slows the whole replay.
type Receiver interface {
	OnTick(e model.TickEnvelope)
}

// ReceiverFunc adapts a function to Receiver.
type ReceiverFunc func(e model.TickEnvelope)

func (f ReceiverFunc) OnTick(e model.TickEnvelope) { f(e) }
