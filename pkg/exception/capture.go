package exception

import "github.com/yanun0323/errors"

// Capture errors
var (
	ErrStorageRootMissing     = errors.New("capture: storage root does not exist")
	ErrStorageRootNotDir      = errors.New("capture: storage root is not a directory")
	ErrStorageRootPermission  = errors.New("capture: storage root is not read/write/execute-able")
	ErrCaptureInvalidSessions = errors.New("capture: session count must be > 0")
	ErrCaptureEmptyWatchList  = errors.New("capture: watch list is empty")
	ErrCaptureStorageMode     = errors.New("capture: unknown storage mode")
	ErrCaptureAlreadyStarted  = errors.New("capture: already started")
	ErrCaptureNotStarted      = errors.New("capture: not started")
	ErrWriterAlreadyStarted   = errors.New("persist: writer already started")
	ErrWriterStopTimeout      = errors.New("persist: writer did not stop in time")
	ErrQueueClosed            = errors.New("queue: closed")
	ErrQueueFull              = errors.New("queue: full")
)
