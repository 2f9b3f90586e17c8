package replay

import (
	"context"
	"io"
	"os"

	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"

	"tickrec/internal/bus"
	"tickrec/internal/layout"
	"tickrec/internal/model"
	"tickrec/internal/obs"
)

// Loader streams consolidated logs of the replay window onto the replay
// queue.
//
// Once a record newer than End is read the remaining files are skipped. This
// relies on ReceivedTS never decreasing within and across daily files, which
// holds for a single capture writer per root. Several writers sharing a root
// can therefore truncate a replay.
type Loader struct {
	cfg     Config
	queue   *bus.Queue
	metrics *obs.Metrics
	clock   Clock

	files  []string
	retain map[string]struct{}
	start  int64
	end    int64
}

// NewLoader lists the existing daily files of the window. Missing dates are
// logged and skipped.
func NewLoader(cfg Config, queue *bus.Queue, metrics *obs.Metrics) (*Loader, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	l := &Loader{
		cfg:     cfg,
		queue:   queue,
		metrics: metrics,
		clock:   realClock{},
		start:   cfg.Start.UTC().UnixMilli(),
		end:     cfg.End.UTC().UnixMilli(),
	}
	if len(cfg.Retain) > 0 {
		l.retain = make(map[string]struct{}, len(cfg.Retain))
		for _, id := range cfg.Retain {
			l.retain[id] = struct{}{}
		}
	}

	for _, day := range layout.BusinessDays(cfg.Calendar, cfg.Start, cfg.End) {
		path := layout.ConsolidatedPath(cfg.Root, day)
		if _, err := os.Stat(path); err != nil {
			logs.Warnf("replay: no log for %s, path: %s", day.Format("2006-01-02"), path)
			l.metrics.IncMissingFile()
			continue
		}
		l.files = append(l.files, path)
	}
	return l, nil
}

// Files returns the daily logs that will be read, oldest first.
func (l *Loader) Files() []string {
	out := make([]string, len(l.files))
	copy(out, l.files)
	return out
}

// Run performs one pass, or passes until ctx ends when looping. A sentinel
// follows every non-looping pass and the last pass of a looping run, whether
// the pass completed, was cancelled or failed. A looping pass that delivers
// nothing waits LoopInterval before the next one.
func (l *Loader) Run(ctx context.Context) error {
	for {
		delivered, err := l.pass(ctx)
		if err == nil && l.cfg.Loop && delivered == 0 && ctx.Err() == nil {
			err = l.clock.Sleep(ctx, l.cfg.LoopInterval)
		}
		if !l.cfg.Loop || err != nil || ctx.Err() != nil {
			l.endOfStream(ctx)
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			return err
		}
	}
}

func (l *Loader) endOfStream(ctx context.Context) {
	var err error
	if ctx.Err() != nil {
		err = l.queue.TryPublish(model.Sentinel())
	} else {
		err = l.queue.Publish(ctx, model.Sentinel())
	}
	if err != nil {
		logs.Warnf("replay: enqueue sentinel, err: %+v", err)
		return
	}
	l.metrics.IncSentinel()
}

// pass returns the number of envelopes enqueued.
func (l *Loader) pass(ctx context.Context) (int, error) {
	delivered := 0
	for _, path := range l.files {
		more, err := l.loadFile(ctx, path, &delivered)
		if err != nil {
			return delivered, err
		}
		if !more {
			return delivered, nil
		}
	}
	return delivered, nil
}

// loadFile reports false once the end of the window was passed.
func (l *Loader) loadFile(ctx context.Context, path string, delivered *int) (bool, error) {
	file, err := os.Open(path)
	if err != nil {
		return false, errors.Wrapf(err, "open replay log: %s", path)
	}
	defer file.Close()

	dec := l.cfg.Codec.NewDecoder(file)
	for {
		if err := ctx.Err(); err != nil {
			return false, err
		}

		e, err := dec.Decode()
		if err != nil {
			if err == io.EOF {
				return true, nil
			}
			logs.Warnf("replay: stop reading %s, err: %+v", path, err)
			return true, nil
		}
		l.metrics.IncLoaded()

		if e.ReceivedTS > l.end {
			return false, nil
		}
		if !l.accept(e) {
			l.metrics.IncFiltered()
			continue
		}
		if err := l.queue.Publish(ctx, e); err != nil {
			logs.Warnf("replay: enqueue interrupted, err: %+v", err)
			return false, err
		}
		*delivered++
	}
}

func (l *Loader) accept(e model.TickEnvelope) bool {
	if e.ReceivedTS < l.start {
		return false
	}
	if l.retain == nil {
		return true
	}
	_, ok := l.retain[e.ResolvedID]
	return ok
}
