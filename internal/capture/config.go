package capture

import (
	"fmt"
	"time"

	"tickrec/internal/codec"
	"tickrec/internal/persist"
)

const (
	defaultQueueSize   = 65536
	defaultStopTimeout = 10 * time.Second
)

// Config controls a capture run.
type Config struct {
	Root      string
	Sessions  int
	Mode      persist.Mode
	WatchList []string
	// QueueSize bounds the capture queue. Feed callbacks block while it is full.
	QueueSize int
	// StopTimeout bounds the wait for the writer during Stop and rollback.
	StopTimeout  time.Duration
	PollInterval time.Duration
	Codec        codec.Codec
}

// DefaultConfig returns a single session, single mode configuration.
func DefaultConfig(root string) Config {
	return Config{
		Root:        root,
		Sessions:    1,
		Mode:        persist.ModeSingle,
		QueueSize:   defaultQueueSize,
		StopTimeout: defaultStopTimeout,
		Codec:       codec.Default,
	}
}

func (c Config) withDefaults() Config {
	if c.Mode == "" {
		c.Mode = persist.ModeSingle
	}
	if c.QueueSize == 0 {
		c.QueueSize = defaultQueueSize
	}
	if c.StopTimeout == 0 {
		c.StopTimeout = defaultStopTimeout
	}
	if c.Codec == nil {
		c.Codec = codec.Default
	}
	return c
}

// Validate checks if the configuration is usable. The storage root itself is
// checked by New.
func (c Config) Validate() error {
	if c.QueueSize < 0 {
		return fmt.Errorf("invalid capture config: QueueSize must be >= 0")
	}
	if c.StopTimeout < 0 {
		return fmt.Errorf("invalid capture config: StopTimeout must be >= 0")
	}
	if c.PollInterval < 0 {
		return fmt.Errorf("invalid capture config: PollInterval must be >= 0")
	}
	return nil
}

func (c Config) writerConfig(lookup map[string]string) persist.Config {
	wc := persist.DefaultConfig(c.Root)
	wc.Mode = c.Mode
	wc.Lookup = lookup
	wc.Codec = c.Codec
	if c.PollInterval > 0 {
		wc.PollInterval = c.PollInterval
	}
	return wc
}
