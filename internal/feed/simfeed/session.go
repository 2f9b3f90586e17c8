package simfeed

import (
	"context"
	"sync"
	"time"

	"github.com/yanun0323/errors"

	"tickrec/internal/feed"
	"tickrec/pkg/exception"
)

// Config controls the synthetic session.
type Config struct {
	Interval  time.Duration
	BasePrice int64
	BaseSize  int64
	Spread    int64
}

// DefaultConfig emits one update every 100ms around 100.00.
func DefaultConfig() Config {
	return Config{
		Interval:  100 * time.Millisecond,
		BasePrice: 10000,
		BaseSize:  100,
		Spread:    1,
	}
}

// Session produces synthetic updates for its subscriptions. It stands in for
// a vendor session in demos and tests.
type Session struct {
	index   int
	cfg     Config
	handler feed.Handler

	mu     sync.Mutex
	open   bool
	keys   []string
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewFactory returns a feed.Factory creating synthetic sessions.
func NewFactory(cfg Config) feed.Factory {
	return func(index int, handler feed.Handler) (feed.Session, error) {
		return New(index, cfg, handler)
	}
}

// New creates a closed session.
func New(index int, cfg Config, handler feed.Handler) (*Session, error) {
	if handler == nil {
		return nil, exception.ErrFeedNilHandler
	}
	if cfg.Interval <= 0 {
		return nil, errors.Wrap(exception.ErrInvalidArgument, "simfeed interval must be > 0")
	}
	return &Session{index: index, cfg: cfg, handler: handler}, nil
}

func (s *Session) Open(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.open {
		return exception.ErrFeedAlreadyOpen
	}
	s.open = true
	s.handler(feed.StatusEvent{Session: s.index, Kind: feed.StatusSessionStarted, Message: "simulated session"})
	return nil
}

func (s *Session) Subscribe(ctx context.Context, keys []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.open {
		return exception.ErrFeedNotOpen
	}
	if s.cancel != nil {
		s.cancel()
		s.wg.Wait()
	}
	s.keys = append(s.keys, keys...)
	for _, key := range keys {
		s.handler(feed.StatusEvent{Session: s.index, Key: key, Kind: feed.StatusSubscriptionStarted})
	}

	runCtx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	gen := NewGenerator(s.keys, s.cfg.BasePrice, s.cfg.BaseSize, s.cfg.Spread)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.emit(runCtx, gen)
	}()
	return nil
}

func (s *Session) emit(ctx context.Context, gen *Generator) {
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			key, fields := gen.Next(now)
			s.handler(feed.DataEvent{Key: key, ReceivedAt: now, Fields: fields})
		}
	}
}

func (s *Session) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.open {
		return nil
	}
	s.open = false
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.wg.Wait()
	s.handler(feed.StatusEvent{Session: s.index, Kind: feed.StatusSessionTerminated, Message: "stopped"})
	return nil
}
