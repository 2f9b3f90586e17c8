package replay

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"

	"tickrec/internal/bus"
	"tickrec/internal/obs"
	"tickrec/pkg/exception"
)

// Replayer runs a Loader and a Player over one replay queue.
type Replayer struct {
	cfg      Config
	receiver Receiver
	clock    Clock
	metrics  *obs.Metrics

	mu         sync.Mutex
	started    bool
	cancel     context.CancelFunc
	loaderDone chan struct{}
	playerDone chan struct{}
	firstErr   error
}

// Option customizes a Replayer.
type Option func(*Replayer)

// WithReplayClock swaps the clock used for pacing and warm-up.
func WithReplayClock(clock Clock) Option {
	return func(r *Replayer) {
		if clock != nil {
			r.clock = clock
		}
	}
}

// WithMetrics attaches counters.
func WithMetrics(m *obs.Metrics) Option {
	return func(r *Replayer) {
		if m != nil {
			r.metrics = m
		}
	}
}

func New(cfg Config, receiver Receiver, opts ...Option) (*Replayer, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if receiver == nil {
		return nil, exception.ErrReplayNilReceiver
	}
	r := &Replayer{
		cfg:      cfg,
		receiver: receiver,
		clock:    realClock{},
		metrics:  obs.NewMetrics(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Start lists the window's files, starts the loader, waits the warm-up delay
// and starts the player.
func (r *Replayer) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started {
		return exception.ErrReplayAlreadyStarted
	}

	queue := bus.NewQueue(r.cfg.QueueSize)
	loader, err := NewLoader(r.cfg, queue, r.metrics)
	if err != nil {
		return err
	}
	player := NewPlayer(r.cfg, queue, r.receiver, r.clock, r.metrics)

	runCtx, cancel := context.WithCancel(context.Background())
	r.started = true
	r.cancel = cancel
	r.loaderDone = make(chan struct{})
	r.playerDone = make(chan struct{})

	logs.Infof("replay started, root: %s, files: %d, window: [%s, %s], pacing: %s",
		r.cfg.Root, len(loader.Files()), r.cfg.Start.UTC().Format(time.RFC3339), r.cfg.End.UTC().Format(time.RFC3339), r.cfg.Pacing)

	go r.runWorker("loader", r.loaderDone, func() error {
		return loader.Run(runCtx)
	})

	if err := r.clock.Sleep(ctx, r.cfg.WarmUp); err != nil {
		close(r.playerDone)
		cancel()
		return err
	}

	go r.runWorker("player", r.playerDone, func() error {
		return player.Run(runCtx, r.loaderDone)
	})
	return nil
}

func (r *Replayer) runWorker(name string, done chan struct{}, fn func() error) {
	defer close(done)
	defer func() {
		if rec := recover(); rec != nil {
			r.recordErr(errors.Wrap(exception.ErrReplayWorkerPanicked, fmt.Sprintf("%s: %v", name, rec)))
		}
	}()
	if err := fn(); err != nil {
		r.recordErr(errors.Wrapf(err, "replay %s", name))
	}
}

func (r *Replayer) recordErr(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.firstErr == nil {
		r.firstErr = err
		logs.Errorf("replay failed, err: %+v", err)
	}
}

// Stop cancels both workers and joins the loader, then the player, each
// within JoinTimeout.
func (r *Replayer) Stop() error {
	r.mu.Lock()
	if !r.started {
		r.mu.Unlock()
		return exception.ErrReplayNotStarted
	}
	cancel, loaderDone, playerDone := r.cancel, r.loaderDone, r.playerDone
	r.mu.Unlock()

	cancel()
	if err := join(loaderDone, r.cfg.JoinTimeout); err != nil {
		return errors.Wrap(err, "join loader")
	}
	if err := join(playerDone, r.cfg.JoinTimeout); err != nil {
		return errors.Wrap(err, "join player")
	}
	logs.Info("replay stopped")
	return nil
}

func join(done <-chan struct{}, timeout time.Duration) error {
	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case <-done:
		return nil
	case <-t.C:
		return exception.ErrReplayJoinTimeout
	}
}

// Wait blocks until the player has finished or ctx ends, then returns Err.
func (r *Replayer) Wait(ctx context.Context) error {
	r.mu.Lock()
	if !r.started {
		r.mu.Unlock()
		return exception.ErrReplayNotStarted
	}
	done := r.playerDone
	r.mu.Unlock()

	select {
	case <-done:
		return r.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Err returns the first failure of either worker, including recovered panics.
func (r *Replayer) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.firstErr
}

// IsRunning reports whether both workers are alive.
func (r *Replayer) IsRunning() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.started {
		return false
	}
	return !closed(r.loaderDone) && !closed(r.playerDone)
}

func closed(ch <-chan struct{}) bool {
	select {
	case <-ch:
		return true
	default:
		return false
	}
}

// Metrics returns the replay counters.
func (r *Replayer) Metrics() obs.Snapshot {
	return r.metrics.Snapshot()
}
