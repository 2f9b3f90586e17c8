package feed

import (
	"time"

	"tickrec/internal/model"
)

// Event is a notification delivered by a feed session. It is one of
// DataEvent, StatusEvent or OtherEvent.
type Event interface {
	isEvent()
}

// DataEvent carries field updates for one subscription.
type DataEvent struct {
	Key        string
	ReceivedAt time.Time
	Fields     model.Fields
}

// StatusKind classifies a StatusEvent.
type StatusKind uint8

const (
	StatusUnknown StatusKind = iota
	StatusSessionStarted
	StatusSessionTerminated
	StatusSubscriptionStarted
	StatusSubscriptionFailure
	StatusSubscriptionTerminated
)

func (k StatusKind) String() string {
	switch k {
	case StatusSessionStarted:
		return "SessionStarted"
	case StatusSessionTerminated:
		return "SessionTerminated"
	case StatusSubscriptionStarted:
		return "SubscriptionStarted"
	case StatusSubscriptionFailure:
		return "SubscriptionFailure"
	case StatusSubscriptionTerminated:
		return "SubscriptionTerminated"
	default:
		return "Unknown"
	}
}

// Terminal reports whether the status ends a subscription or the session.
func (k StatusKind) Terminal() bool {
	return k == StatusSessionTerminated || k == StatusSubscriptionFailure || k == StatusSubscriptionTerminated
}

// StatusEvent reports session or subscription state. Key is empty for
// session level events.
type StatusEvent struct {
	Session int
	Key     string
	Kind    StatusKind
	Message string
}

// OtherEvent is any vendor notification without capture meaning.
type OtherEvent struct {
	Session     int
	Description string
}

func (DataEvent) isEvent()   {}
func (StatusEvent) isEvent() {}
func (OtherEvent) isEvent()  {}
