package replay

import (
	"fmt"
	"time"

	"github.com/yanun0323/errors"

	"tickrec/internal/codec"
	"tickrec/internal/layout"
	"tickrec/pkg/exception"
)

// Pacing selects how the player spaces deliveries.
type Pacing string

const (
	// PacingFast delivers as fast as the receiver accepts.
	PacingFast Pacing = "fast"
	// PacingOriginal reproduces the captured inter-arrival spacing.
	PacingOriginal Pacing = "original"
)

// ParsePacing maps a config string to a Pacing. Empty means fast.
func ParsePacing(s string) (Pacing, error) {
	switch Pacing(s) {
	case "", PacingFast:
		return PacingFast, nil
	case PacingOriginal:
		return PacingOriginal, nil
	default:
		return "", errors.Wrapf(exception.ErrReplayPacingMode, "pacing: %q", s)
	}
}

const (
	defaultQueueSize    = 8192
	defaultWarmUp       = 50 * time.Millisecond
	defaultJoinTimeout  = 5 * time.Second
	defaultLoopInterval = time.Second
)

// Config controls a replay run.
type Config struct {
	Root string
	// Start and End bound ReceivedTS, both inclusive.
	Start time.Time
	End   time.Time
	// Retain lists the resolved ids to deliver. Empty delivers everything.
	Retain []string
	Loop   bool
	// LoopInterval is the pause after a looping pass that delivered nothing.
	LoopInterval time.Duration

	Pacing Pacing
	// Speed scales original pacing; 2 plays twice as fast. Zero means 1.
	Speed float64
	// MaxGap caps a single original-pacing wait before scaling. Zero means
	// uncapped.
	MaxGap time.Duration

	QueueSize   int
	WarmUp      time.Duration
	JoinTimeout time.Duration

	Codec    codec.Codec
	Calendar layout.Calendar
}

// DefaultConfig returns a fast, non-looping replay of [start, end].
func DefaultConfig(root string, start, end time.Time) Config {
	return Config{
		Root:         root,
		Start:        start,
		End:          end,
		Pacing:       PacingFast,
		Speed:        1,
		QueueSize:    defaultQueueSize,
		WarmUp:       defaultWarmUp,
		JoinTimeout:  defaultJoinTimeout,
		LoopInterval: defaultLoopInterval,
		Codec:        codec.Default,
		Calendar:     layout.WeekdayCalendar{},
	}
}

func (c Config) withDefaults() Config {
	if c.Pacing == "" {
		c.Pacing = PacingFast
	}
	if c.Speed == 0 {
		c.Speed = 1
	}
	if c.QueueSize == 0 {
		c.QueueSize = defaultQueueSize
	}
	if c.JoinTimeout == 0 {
		c.JoinTimeout = defaultJoinTimeout
	}
	if c.LoopInterval == 0 {
		c.LoopInterval = defaultLoopInterval
	}
	if c.Codec == nil {
		c.Codec = codec.Default
	}
	if c.Calendar == nil {
		c.Calendar = layout.WeekdayCalendar{}
	}
	return c
}

// Validate checks if the configuration is usable.
func (c Config) Validate() error {
	if c.Root == "" {
		return fmt.Errorf("invalid replay config: Root is empty")
	}
	if c.Start.After(c.End) {
		return errors.Wrapf(exception.ErrReplayInvalidWindow, "start: %s, end: %s", c.Start, c.End)
	}
	if c.Pacing != PacingFast && c.Pacing != PacingOriginal {
		return errors.Wrapf(exception.ErrReplayPacingMode, "pacing: %q", c.Pacing)
	}
	if c.Speed < 0 {
		return fmt.Errorf("invalid replay config: Speed must be >= 0")
	}
	if c.MaxGap < 0 {
		return fmt.Errorf("invalid replay config: MaxGap must be >= 0")
	}
	if c.QueueSize < 0 {
		return fmt.Errorf("invalid replay config: QueueSize must be >= 0")
	}
	if c.LoopInterval < 0 {
		return fmt.Errorf("invalid replay config: LoopInterval must be >= 0")
	}
	if c.WarmUp < 0 || c.JoinTimeout < 0 {
		return fmt.Errorf("invalid replay config: WarmUp and JoinTimeout must be >= 0")
	}
	return nil
}
