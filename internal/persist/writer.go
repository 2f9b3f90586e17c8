package persist

import (
	"bufio"
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"

	"tickrec/internal/bus"
	"tickrec/internal/codec"
	"tickrec/internal/layout"
	"tickrec/internal/model"
	"tickrec/internal/obs"
	"tickrec/pkg/exception"
)

// Writer is the single consumer of the capture queue. Every cycle it drains
// the queue without blocking, appends the batch to the consolidated log of the
// current day and, in multi mode, to per-instrument hour bucket files.
type Writer struct {
	cfg     Config
	queue   *bus.Queue
	now     func() time.Time
	metrics *obs.Metrics

	done    chan struct{}
	err     atomic.Value
	started uint32

	// owned by the run goroutine
	daily   *dailyLog
	pending map[string][]model.TickEnvelope
	order   []string
}

// Option customizes a Writer.
type Option func(*Writer)

// WithClock replaces the wall clock used to pick the processing date.
func WithClock(now func() time.Time) Option {
	return func(w *Writer) {
		if now != nil {
			w.now = now
		}
	}
}

// WithMetrics attaches counters.
func WithMetrics(m *obs.Metrics) Option {
	return func(w *Writer) { w.metrics = m }
}

// NewWriter validates the config. The storage root must already exist.
func NewWriter(cfg Config, queue *bus.Queue, opts ...Option) (*Writer, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if queue == nil {
		return nil, errors.Wrap(exception.ErrNilInstance, "capture queue")
	}
	w := &Writer{
		cfg:     cfg,
		queue:   queue,
		now:     time.Now,
		done:    make(chan struct{}),
		pending: make(map[string][]model.TickEnvelope),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Start runs the writer loop in a new goroutine. Cancelling ctx stops the
// loop at the next cycle boundary; queued envelopes may then be dropped.
// A sentinel on the queue stops it after the cycle that drained it.
func (w *Writer) Start(ctx context.Context) error {
	if !atomic.CompareAndSwapUint32(&w.started, 0, 1) {
		return exception.ErrWriterAlreadyStarted
	}
	go func() {
		defer close(w.done)
		w.run(ctx)
	}()
	return nil
}

// Alive reports whether the loop goroutine is running.
func (w *Writer) Alive() bool {
	if atomic.LoadUint32(&w.started) == 0 {
		return false
	}
	select {
	case <-w.done:
		return false
	default:
		return true
	}
}

// Done is closed when the loop exits.
func (w *Writer) Done() <-chan struct{} {
	return w.done
}

// Wait blocks until the loop exits or timeout elapses.
func (w *Writer) Wait(timeout time.Duration) error {
	if atomic.LoadUint32(&w.started) == 0 {
		return nil
	}
	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case <-w.done:
		return w.Err()
	case <-t.C:
		return exception.ErrWriterStopTimeout
	}
}

// Err returns the failure that ended the loop, if any.
func (w *Writer) Err() error {
	if v := w.err.Load(); v != nil {
		return v.(error)
	}
	return nil
}

func (w *Writer) setErr(err error) {
	if err == nil || w.err.Load() != nil {
		return
	}
	w.err.Store(err)
}

func (w *Writer) run(ctx context.Context) {
	logs.Infof("tick writer started, root: %s, mode: %s", w.cfg.Root, w.cfg.Mode)
	defer func() {
		if err := w.daily.close(); err != nil {
			w.setErr(err)
		}
		w.daily = nil
		if err := w.Err(); err != nil {
			logs.Errorf("tick writer stopped, err: %+v", err)
			return
		}
		logs.Info("tick writer stopped")
	}()

	var batch []model.TickEnvelope
	for {
		if ctx.Err() != nil {
			return
		}

		batch = w.queue.Drain(batch[:0], w.cfg.MaxBatch)
		var shutdown bool
		batch, shutdown = model.SplitSentinels(batch)

		if len(batch) > 0 {
			if err := w.writeCycle(batch); err != nil {
				w.setErr(err)
				return
			}
		}
		if shutdown {
			return
		}
		if len(batch) == 0 {
			w.idle(ctx)
		}
	}
}

func (w *Writer) idle(ctx context.Context) {
	if w.cfg.PollInterval <= 0 {
		return
	}
	t := time.NewTimer(w.cfg.PollInterval)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

func (w *Writer) writeCycle(batch []model.TickEnvelope) error {
	start := time.Now()
	day := w.now().UTC()

	for i := range batch {
		batch[i] = w.enrich(batch[i])
	}

	if err := w.appendConsolidated(day, batch); err != nil {
		return err
	}
	w.metrics.AddPersisted(len(batch))

	if w.cfg.Mode == ModeMulti {
		w.fanOut(batch)
		if err := w.flushPending(); err != nil {
			return err
		}
	}

	w.metrics.IncWriterCycle()
	w.metrics.ObserveFlush(time.Since(start))
	return nil
}

func (w *Writer) enrich(e model.TickEnvelope) model.TickEnvelope {
	if id, ok := w.cfg.Lookup[e.InstrumentKey]; ok && id != "" {
		return e.WithResolvedID(id)
	}
	return e.WithResolvedID(e.InstrumentKey)
}

func (w *Writer) appendConsolidated(day time.Time, batch []model.TickEnvelope) error {
	path := layout.ConsolidatedPath(w.cfg.Root, day)
	if w.daily == nil || w.daily.path != path {
		if err := w.daily.close(); err != nil {
			return err
		}
		w.daily = nil
		d, err := openDaily(path, w.cfg.Codec, w.cfg.BufferSize)
		if err != nil {
			return err
		}
		w.daily = d
	}

	for _, e := range batch {
		if err := w.daily.enc.Encode(e); err != nil {
			return errors.Wrapf(err, "append consolidated log: %s", path)
		}
	}
	if err := w.daily.buf.Flush(); err != nil {
		return errors.Wrapf(err, "flush consolidated log: %s", path)
	}
	return nil
}

func (w *Writer) fanOut(batch []model.TickEnvelope) {
	for _, e := range batch {
		q := w.pending[e.InstrumentKey]
		if len(q) == 0 {
			w.order = append(w.order, e.InstrumentKey)
		}
		w.pending[e.InstrumentKey] = append(q, e)
	}
}

func (w *Writer) flushPending() error {
	for _, key := range w.order {
		q := w.pending[key]
		if len(q) == 0 {
			continue
		}
		first := q[0]
		path := layout.SecondaryPath(w.cfg.Root, first.ResolvedID, first.ReceivedAt(), HourBucket(first))
		if err := appendFile(path, w.cfg.Codec, q); err != nil {
			return err
		}
		w.metrics.AddSecondary(len(q))

		clear(q)
		w.pending[key] = q[:0]
	}
	w.order = w.order[:0]
	return nil
}

type dailyLog struct {
	path string
	file *os.File
	buf  *bufio.Writer
	enc  codec.Encoder
}

func openDaily(path string, c codec.Codec, bufferSize int) (*dailyLog, error) {
	file, err := openAppend(path)
	if err != nil {
		return nil, err
	}
	buf := bufio.NewWriterSize(file, bufferSize)
	logs.Infof("tick writer opened consolidated log: %s", path)
	return &dailyLog{
		path: path,
		file: file,
		buf:  buf,
		enc:  c.NewEncoder(buf),
	}, nil
}

func (d *dailyLog) close() error {
	if d == nil {
		return nil
	}
	if err := d.buf.Flush(); err != nil {
		_ = d.file.Close()
		return errors.Wrapf(err, "flush consolidated log: %s", d.path)
	}
	if err := d.file.Sync(); err != nil {
		_ = d.file.Close()
		return errors.Wrapf(err, "sync consolidated log: %s", d.path)
	}
	return d.file.Close()
}

func appendFile(path string, c codec.Codec, batch []model.TickEnvelope) error {
	file, err := openAppend(path)
	if err != nil {
		return err
	}
	buf := bufio.NewWriter(file)
	enc := c.NewEncoder(buf)
	for _, e := range batch {
		if err := enc.Encode(e); err != nil {
			_ = file.Close()
			return errors.Wrapf(err, "append secondary file: %s", path)
		}
	}
	if err := buf.Flush(); err != nil {
		_ = file.Close()
		return errors.Wrapf(err, "flush secondary file: %s", path)
	}
	return file.Close()
}

func openAppend(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, errors.Wrapf(err, "create partition dir: %s", filepath.Dir(path))
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, errors.Wrapf(err, "open for append: %s", path)
	}
	return file, nil
}
