package binance

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"
	"github.com/yanun0323/pkg/ws"

	"tickrec/internal/feed"
	"tickrec/pkg/exception"
)

const _binanceBaseWsUrl = "wss://stream.binance.com:9443/ws"

// Config selects the endpoint and the streams subscribed per key.
type Config struct {
	URL     string
	Streams []string
}

func DefaultConfig() Config {
	return Config{
		URL:     _binanceBaseWsUrl,
		Streams: []string{"trade", "bookTicker"},
	}
}

// Session is a Binance public market data websocket.
type Session struct {
	index   int
	cfg     Config
	handler feed.Handler
	now     func() time.Time

	mu     sync.Mutex
	wss    *ws.WebSocket
	cancel context.CancelFunc
	wg     sync.WaitGroup
	nextID int64
}

// NewFactory returns a feed.Factory creating Binance sessions.
func NewFactory(cfg Config) feed.Factory {
	return func(index int, handler feed.Handler) (feed.Session, error) {
		return New(index, cfg, handler)
	}
}

func New(index int, cfg Config, handler feed.Handler) (*Session, error) {
	if handler == nil {
		return nil, exception.ErrFeedNilHandler
	}
	if cfg.URL == "" {
		cfg.URL = _binanceBaseWsUrl
	}
	if len(cfg.Streams) == 0 {
		cfg.Streams = DefaultConfig().Streams
	}
	return &Session{index: index, cfg: cfg, handler: handler, now: time.Now}, nil
}

func (s *Session) Open(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.wss != nil {
		return exception.ErrFeedAlreadyOpen
	}

	runCtx, cancel := context.WithCancel(context.Background())
	wss := ws.New(runCtx, s.cfg.URL)
	if err := wss.Start(ctx); err != nil {
		cancel()
		return errors.Wrap(err, "start wss").With("url", s.cfg.URL)
	}

	ch, unsubscribe := wss.Subscribe()
	s.wss = wss
	s.cancel = cancel
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer unsubscribe()
		s.observe(runCtx, ch)
	}()

	s.handler(feed.StatusEvent{Session: s.index, Kind: feed.StatusSessionStarted, Message: s.cfg.URL})
	return nil
}

func (s *Session) observe(ctx context.Context, ch <-chan ws.Message) {
	for {
		select {
		case <-ctx.Done():
			return
		case m, ok := <-ch:
			if !ok {
				s.handler(feed.StatusEvent{Session: s.index, Kind: feed.StatusSessionTerminated, Message: exception.ErrConnectionClose.Error()})
				return
			}

			var msg streamMessage
			if err := m.Unmarshal(&msg); err != nil {
				s.handler(feed.OtherEvent{Session: s.index, Description: "undecodable message"})
				continue
			}
			if ev, ok := toEvent(msg, s.now()); ok {
				s.handler(ev)
			} else if msg.EventType != "" {
				s.handler(feed.OtherEvent{Session: s.index, Description: exception.ErrFeedUnsupportedPayload.Error() + ": " + msg.EventType})
			}
		}
	}
}

func (s *Session) Subscribe(ctx context.Context, keys []string) error {
	s.mu.Lock()
	wss := s.wss
	s.mu.Unlock()
	if wss == nil {
		return exception.ErrFeedNotOpen
	}

	for _, key := range keys {
		if err := s.subscribe(ctx, wss, key); err != nil {
			s.handler(feed.StatusEvent{Session: s.index, Key: key, Kind: feed.StatusSubscriptionFailure, Message: err.Error()})
			return errors.Wrap(exception.ErrFeedSubscribeRejected, err.Error()).With("key", key)
		}
		s.handler(feed.StatusEvent{Session: s.index, Key: key, Kind: feed.StatusSubscriptionStarted})
	}
	return nil
}

func (s *Session) subscribe(ctx context.Context, wss *ws.WebSocket, key string) error {
	id := atomic.AddInt64(&s.nextID, 1)
	appendIntoRegister := true
	if err := wss.SendAndWait(ctx, ws.Sidecar{
		Sender: func(ctx context.Context, ws *ws.WebSocket) error {
			payload := subscribeRequest{
				Method: "SUBSCRIBE",
				Params: streamNames(key, s.cfg.Streams),
				ID:     id,
			}

			if err := ws.WriteJSON(payload); err != nil {
				return errors.Wrap(err, "write subscribe payload").With("payload", payload)
			}

			return nil
		},
		Waiter: func(ctx context.Context, m ws.Message) (bool, error) {
			var resp subscribeResponse
			if err := m.Unmarshal(&resp); err != nil || resp.ID != id {
				return false, nil
			}

			if resp.Result != nil {
				return false, errors.Wrapf(exception.ErrInResponseError, "result: %+v", resp.Result)
			}
			return true, nil
		},
	}, appendIntoRegister); err != nil {
		return errors.Wrap(err, "send and wait")
	}

	return nil
}

func (s *Session) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.wss == nil {
		return nil
	}
	s.cancel()
	s.wss.Close()
	s.wg.Wait()
	s.wss = nil
	s.cancel = nil
	logs.Infof("binance session %d stopped", s.index)
	s.handler(feed.StatusEvent{Session: s.index, Kind: feed.StatusSessionTerminated, Message: "stopped"})
	return nil
}
