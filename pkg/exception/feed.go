package exception

import "github.com/yanun0323/errors"

// Feed errors
var (
	ErrFeedNilHandler         = errors.New("feed: nil handler")
	ErrFeedNotOpen            = errors.New("feed: session not open")
	ErrFeedAlreadyOpen        = errors.New("feed: session already open")
	ErrFeedSubscribeRejected  = errors.New("feed: subscription rejected")
	ErrFeedUnsupportedPayload = errors.New("feed: unsupported payload")
)

// Reference data errors
var (
	ErrRefDataUnresolved = errors.New("refdata: instrument not resolved")
	ErrRefDataNoSnapshot = errors.New("refdata: snapshot missing")
)
