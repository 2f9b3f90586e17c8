package capture

import (
	"context"
	"sync"
	"time"

	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"

	"tickrec/internal/bus"
	"tickrec/internal/feed"
	"tickrec/internal/layout"
	"tickrec/internal/model"
	"tickrec/internal/obs"
	"tickrec/internal/persist"
	"tickrec/internal/refdata"
	"tickrec/pkg/exception"
)

// Service subscribes the watch list across feed sessions and persists every
// update through a single writer. A Service runs once: after Stop it cannot
// be started again.
type Service struct {
	cfg     Config
	refs    refdata.Provider
	factory feed.Factory
	now     func() time.Time
	metrics *obs.Metrics

	queue   *bus.Queue
	adapter *feed.Adapter

	mu       sync.Mutex
	started  bool
	running  bool
	sessions []feed.Session
	writer   *persist.Writer

	ingestCtx    context.Context
	cancelIngest context.CancelFunc
	cancelWriter context.CancelFunc
}

// Option customizes a Service.
type Option func(*Service)

// WithClock replaces the wall clock used for snapshots and the writer date.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithMetrics attaches counters shared with the writer.
func WithMetrics(m *obs.Metrics) Option {
	return func(s *Service) {
		if m != nil {
			s.metrics = m
		}
	}
}

// New validates the configuration and collaborators.
func New(cfg Config, refs refdata.Provider, factory feed.Factory, opts ...Option) (*Service, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := layout.CheckRoot(cfg.Root); err != nil {
		return nil, err
	}
	if cfg.Sessions <= 0 {
		return nil, errors.Wrapf(exception.ErrCaptureInvalidSessions, "sessions: %d", cfg.Sessions)
	}
	if len(cfg.WatchList) == 0 {
		return nil, exception.ErrCaptureEmptyWatchList
	}
	if cfg.Mode != persist.ModeSingle && cfg.Mode != persist.ModeMulti {
		return nil, errors.Wrapf(exception.ErrCaptureStorageMode, "mode: %q", cfg.Mode)
	}
	if refs == nil {
		return nil, errors.Wrap(exception.ErrNilInstance, "reference data provider")
	}
	if factory == nil {
		return nil, errors.Wrap(exception.ErrNilInstance, "feed session factory")
	}

	s := &Service{
		cfg:     cfg,
		refs:    refs,
		factory: factory,
		now:     time.Now,
		metrics: obs.NewMetrics(),
		queue:   bus.NewQueue(cfg.QueueSize),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.adapter = feed.NewAdapter(s.now, s.metrics)
	return s, nil
}

// Start resolves the watch list, enqueues the initial snapshots, starts the
// writer and brings every session up. Any failure undoes what was started
// and is returned.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return exception.ErrCaptureAlreadyStarted
	}
	s.started = true

	ids, err := s.refs.Resolve(ctx, s.cfg.WatchList)
	if err != nil {
		return errors.Wrap(err, "resolve watch list")
	}
	snapshots, err := s.refs.Snapshot(ctx, s.cfg.WatchList)
	if err != nil {
		return errors.Wrap(err, "snapshot watch list")
	}

	writer, err := persist.NewWriter(s.cfg.writerConfig(ids), s.queue,
		persist.WithClock(s.now), persist.WithMetrics(s.metrics))
	if err != nil {
		return err
	}
	writerCtx, cancelWriter := context.WithCancel(context.Background())
	if err := writer.Start(writerCtx); err != nil {
		cancelWriter()
		return err
	}
	s.writer = writer
	s.cancelWriter = cancelWriter

	// Callbacks blocked on a full queue give up once the writer is gone.
	s.ingestCtx, s.cancelIngest = context.WithCancel(context.Background())
	go func() {
		<-writer.Done()
		s.cancelIngest()
	}()

	if err := s.enqueueSnapshots(ctx, ids, snapshots); err != nil {
		s.rollback()
		return err
	}

	parts := feed.Partition(s.cfg.WatchList, s.cfg.Sessions)
	for i, keys := range parts {
		session, err := s.factory(i, s.onEvent)
		if err != nil {
			s.rollback()
			return errors.Wrapf(err, "create session %d", i)
		}
		if err := session.Open(ctx); err != nil {
			s.rollback()
			return errors.Wrapf(err, "open session %d", i)
		}
		s.sessions = append(s.sessions, session)

		if len(keys) == 0 {
			continue
		}
		if err := session.Subscribe(ctx, keys); err != nil {
			s.rollback()
			return errors.Wrapf(err, "subscribe session %d", i)
		}
	}

	s.running = true
	logs.Infof("capture started, root: %s, sessions: %d, instruments: %d", s.cfg.Root, s.cfg.Sessions, len(s.cfg.WatchList))
	return nil
}

func (s *Service) enqueueSnapshots(ctx context.Context, ids map[string]string, snapshots map[string]model.Fields) error {
	now := s.now()
	for _, key := range s.cfg.WatchList {
		fields, ok := snapshots[key]
		if !ok {
			logs.Warnf("capture: %s, key: %s", exception.ErrRefDataNoSnapshot, key)
			continue
		}
		e := model.NewTick(now, key, fields).WithResolvedID(ids[key])
		if err := s.queue.Publish(ctx, e); err != nil {
			return errors.Wrapf(err, "enqueue snapshot: %s", key)
		}
		s.metrics.AddCaptured(1)
	}
	return nil
}

func (s *Service) onEvent(ev feed.Event) {
	envelopes := s.adapter.Translate(nil, ev)
	for _, e := range envelopes {
		if err := s.queue.Publish(s.ingestCtx, e); err != nil {
			s.metrics.IncDropped()
			logs.Warnf("capture: drop update for %s, err: %+v", e.InstrumentKey, err)
			continue
		}
		s.metrics.AddCaptured(1)
	}
}

// rollback stops whatever Start brought up. The caller holds mu.
func (s *Service) rollback() {
	s.stopSessions()
	if err := s.stopWriter(); err != nil {
		logs.Errorf("capture: rollback writer, err: %+v", err)
	}
}

func (s *Service) stopSessions() {
	for i, session := range s.sessions {
		if err := session.Stop(); err != nil {
			logs.Errorf("capture: stop session %d, err: %+v", i, err)
		}
	}
	s.sessions = nil
}

func (s *Service) stopWriter() error {
	if s.writer == nil {
		return nil
	}
	defer func() {
		s.cancelIngest()
		s.cancelWriter()
	}()

	if s.writer.Alive() {
		ctx, cancel := context.WithTimeout(context.Background(), s.cfg.StopTimeout)
		err := s.queue.Publish(ctx, model.Sentinel())
		cancel()
		if err != nil {
			logs.Warnf("capture: enqueue sentinel, err: %+v", err)
		}
	}
	s.queue.Close()

	return s.writer.Wait(s.cfg.StopTimeout)
}

// Stop stops every session, then lets the writer drain the queue and exit.
// Session errors are logged. The writer failure, if any, is returned.
func (s *Service) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return exception.ErrCaptureNotStarted
	}
	if !s.running {
		return nil
	}
	s.running = false

	s.stopSessions()
	err := s.stopWriter()
	if err != nil {
		logs.Errorf("capture stopped, err: %+v", err)
		return err
	}
	logs.Info("capture stopped")
	return nil
}

// IsRunning reports whether sessions are up and the writer is alive.
func (s *Service) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running && s.writer != nil && s.writer.Alive()
}

// Err returns the writer failure, if any.
func (s *Service) Err() error {
	s.mu.Lock()
	w := s.writer
	s.mu.Unlock()
	if w == nil {
		return nil
	}
	return w.Err()
}

// Watch polls writer liveness every interval and stops the service when the
// writer has died. It returns the writer failure, or nil when ctx ends or
// the service was stopped elsewhere.
func (s *Service) Watch(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		s.mu.Lock()
		running, w := s.running, s.writer
		s.mu.Unlock()
		if !running {
			return nil
		}
		if w.Alive() {
			continue
		}

		logs.Errorf("capture: writer died, err: %+v", w.Err())
		_ = s.Stop()
		if err := w.Err(); err != nil {
			return err
		}
		return errors.New("capture: writer stopped unexpectedly")
	}
}

// Metrics returns the capture counters.
func (s *Service) Metrics() obs.Snapshot {
	return s.metrics.Snapshot()
}
