package replay

import (
	"context"
	"time"

	"github.com/yanun0323/logs"

	"tickrec/internal/bus"
	"tickrec/internal/model"
	"tickrec/internal/obs"
)

// Player delivers queued envelopes to the receiver until a sentinel arrives,
// the loader has died with nothing left queued, or ctx ends.
type Player struct {
	cfg      Config
	queue    *bus.Queue
	receiver Receiver
	clock    Clock
	metrics  *obs.Metrics

	prevTS   int64
	prevWall time.Time
}

func NewPlayer(cfg Config, queue *bus.Queue, receiver Receiver, clock Clock, metrics *obs.Metrics) *Player {
	if clock == nil {
		clock = realClock{}
	}
	return &Player{
		cfg:      cfg.withDefaults(),
		queue:    queue,
		receiver: receiver,
		clock:    clock,
		metrics:  metrics,
	}
}

// Run plays until the stream ends. loaderDone closes when the loader exits.
func (p *Player) Run(ctx context.Context, loaderDone <-chan struct{}) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case e := <-p.queue.C():
			if e.IsSentinel() {
				return nil
			}
			if err := p.play(ctx, e); err != nil {
				return nil
			}
		case <-loaderDone:
			e, ok := p.queue.TryTake()
			if !ok {
				logs.Warnf("replay: loader gone and queue empty, stop player")
				return nil
			}
			if e.IsSentinel() {
				return nil
			}
			if err := p.play(ctx, e); err != nil {
				return nil
			}
		}
	}
}

func (p *Player) play(ctx context.Context, e model.TickEnvelope) error {
	if p.cfg.Pacing == PacingOriginal && !p.prevWall.IsZero() {
		if err := p.pace(ctx, e.ReceivedTS-p.prevTS); err != nil {
			return err
		}
	}

	p.receiver.OnTick(e)
	p.metrics.IncDelivered()

	p.prevTS = e.ReceivedTS
	p.prevWall = p.clock.Now()
	return nil
}

func (p *Player) pace(ctx context.Context, deltaMillis int64) error {
	if deltaMillis <= 0 {
		return nil
	}
	gap := time.Duration(deltaMillis) * time.Millisecond
	if p.cfg.MaxGap > 0 && gap > p.cfg.MaxGap {
		gap = p.cfg.MaxGap
	}
	gap = time.Duration(float64(gap) / p.cfg.Speed)

	target := p.prevWall.Add(gap)
	if err := p.clock.Sleep(ctx, target.Sub(p.clock.Now())); err != nil {
		return err
	}
	if lag := p.clock.Now().Sub(target); lag > 0 {
		p.metrics.ObservePacingLag(lag)
	}
	return nil
}
