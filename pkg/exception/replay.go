package exception

import "github.com/yanun0323/errors"

// Replay errors
var (
	ErrReplayInvalidWindow  = errors.New("replay: start is after end")
	ErrReplayNilReceiver    = errors.New("replay: nil receiver")
	ErrReplayPacingMode     = errors.New("replay: unknown pacing mode")
	ErrReplayAlreadyStarted = errors.New("replay: already started")
	ErrReplayNotStarted     = errors.New("replay: not started")
	ErrReplayJoinTimeout    = errors.New("replay: worker did not stop in time")
	ErrReplayWorkerPanicked = errors.New("replay: worker panicked")
)
