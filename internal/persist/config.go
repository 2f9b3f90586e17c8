package persist

import (
	"fmt"
	"time"

	"tickrec/internal/codec"
)

// Mode selects which files the writer produces.
type Mode string

const (
	// ModeSingle writes the consolidated daily log only.
	ModeSingle Mode = "single"
	// ModeMulti also writes per-instrument hour bucket files.
	ModeMulti Mode = "multi"
)

// ParseMode maps a config string to a Mode. Empty means single.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case "", ModeSingle:
		return ModeSingle, nil
	case ModeMulti:
		return ModeMulti, nil
	default:
		return "", fmt.Errorf("unknown storage mode: %q", s)
	}
}

const (
	defaultPollInterval = 5 * time.Millisecond
	defaultBufferSize   = 256 * 1024
	defaultMaxBatch     = 0
)

// Config controls the persistence writer.
type Config struct {
	Root string
	Mode Mode
	// Lookup maps instrument keys to resolved ids. Built once at startup and
	// never modified afterwards.
	Lookup map[string]string
	Codec  codec.Codec
	// PollInterval is how long an idle cycle waits before draining again.
	PollInterval time.Duration
	BufferSize   int
	// MaxBatch bounds a single drain. Zero drains everything queued.
	MaxBatch int
}

// DefaultConfig returns a baseline configuration for root.
func DefaultConfig(root string) Config {
	return Config{
		Root:         root,
		Mode:         ModeSingle,
		Codec:        codec.Default,
		PollInterval: defaultPollInterval,
		BufferSize:   defaultBufferSize,
		MaxBatch:     defaultMaxBatch,
	}
}

func (c Config) withDefaults() Config {
	if c.Mode == "" {
		c.Mode = ModeSingle
	}
	if c.Codec == nil {
		c.Codec = codec.Default
	}
	if c.PollInterval == 0 {
		c.PollInterval = defaultPollInterval
	}
	if c.BufferSize == 0 {
		c.BufferSize = defaultBufferSize
	}
	if c.Lookup == nil {
		c.Lookup = map[string]string{}
	}
	return c
}

// Validate checks if the configuration is usable.
func (c Config) Validate() error {
	if c.Root == "" {
		return fmt.Errorf("invalid writer config: Root is empty")
	}
	if c.Mode != ModeSingle && c.Mode != ModeMulti {
		return fmt.Errorf("invalid writer config: unknown Mode %q", c.Mode)
	}
	if c.PollInterval < 0 {
		return fmt.Errorf("invalid writer config: PollInterval must be >= 0")
	}
	if c.BufferSize <= 0 {
		return fmt.Errorf("invalid writer config: BufferSize must be > 0")
	}
	if c.MaxBatch < 0 {
		return fmt.Errorf("invalid writer config: MaxBatch must be >= 0")
	}
	return nil
}
