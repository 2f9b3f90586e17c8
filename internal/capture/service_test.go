package capture

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tickrec/internal/codec"
	"tickrec/internal/feed"
	"tickrec/internal/layout"
	"tickrec/internal/model"
	"tickrec/internal/persist"
	"tickrec/internal/refdata"
	"tickrec/pkg/exception"
)

var processingDay = time.Date(2024, time.March, 7, 15, 30, 0, 0, time.UTC)

func fixedClock() time.Time { return processingDay }

type fakeSession struct {
	index   int
	handler feed.Handler
	openErr error

	mu      sync.Mutex
	opened  bool
	stopped bool
	keys    []string
}

func (s *fakeSession) Open(ctx context.Context) error {
	if s.openErr != nil {
		return s.openErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.opened = true
	return nil
}

func (s *fakeSession) Subscribe(ctx context.Context, keys []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keys = append(s.keys, keys...)
	return nil
}

func (s *fakeSession) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
	return nil
}

func (s *fakeSession) emit(key string, at time.Time, fields ...model.Field) {
	s.handler(feed.DataEvent{Key: key, ReceivedAt: at, Fields: model.NewFields(fields...)})
}

type fakeFeed struct {
	mu       sync.Mutex
	failOpen map[int]error
	sessions []*fakeSession
}

func (f *fakeFeed) factory(index int, handler feed.Handler) (feed.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s := &fakeSession{index: index, handler: handler, openErr: f.failOpen[index]}
	f.sessions = append(f.sessions, s)
	return s, nil
}

func readAll(t *testing.T, path string) []model.TickEnvelope {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var out []model.TickEnvelope
	dec := codec.Default.NewDecoder(f)
	for {
		e, err := dec.Decode()
		if err == io.EOF {
			return out
		}
		require.NoError(t, err)
		out = append(out, e)
	}
}

func testConfig(root string, watch ...string) Config {
	cfg := DefaultConfig(root)
	cfg.Sessions = 2
	cfg.WatchList = watch
	cfg.QueueSize = 16
	cfg.StopTimeout = 5 * time.Second
	cfg.PollInterval = time.Millisecond
	return cfg
}

func TestNewValidation(t *testing.T) {
	root := t.TempDir()
	refs := refdata.NewStatic(nil, nil)
	ff := &fakeFeed{}

	_, err := New(testConfig(filepath.Join(root, "missing"), "A"), refs, ff.factory)
	assert.ErrorIs(t, err, exception.ErrStorageRootMissing)

	cfg := testConfig(root, "A")
	cfg.Sessions = 0
	_, err = New(cfg, refs, ff.factory)
	assert.ErrorIs(t, err, exception.ErrCaptureInvalidSessions)

	_, err = New(testConfig(root), refs, ff.factory)
	assert.ErrorIs(t, err, exception.ErrCaptureEmptyWatchList)

	cfg = testConfig(root, "A")
	cfg.Mode = "fanout"
	_, err = New(cfg, refs, ff.factory)
	assert.ErrorIs(t, err, exception.ErrCaptureStorageMode)

	_, err = New(testConfig(root, "A"), nil, ff.factory)
	assert.ErrorIs(t, err, exception.ErrNilInstance)

	_, err = New(testConfig(root, "A"), refs, nil)
	assert.ErrorIs(t, err, exception.ErrNilInstance)
}

func TestServiceCapturesSnapshotsThenUpdates(t *testing.T) {
	root := t.TempDir()
	refs := refdata.NewStatic(
		map[string]string{"A": "ID-A", "B": "ID-B", "C": "ID-C"},
		map[string]model.Fields{
			"A": model.NewFields(model.Field{Name: "LAST_PRICE", Value: model.Float(10)}),
			"C": model.NewFields(model.Field{Name: "LAST_PRICE", Value: model.Float(30)}),
		},
	)
	ff := &fakeFeed{}

	svc, err := New(testConfig(root, "A", "B", "C"), refs, ff.factory, WithClock(fixedClock))
	require.NoError(t, err)
	require.NoError(t, svc.Start(t.Context()))
	assert.True(t, svc.IsRunning())
	assert.ErrorIs(t, svc.Start(t.Context()), exception.ErrCaptureAlreadyStarted)

	require.Len(t, ff.sessions, 2)
	assert.Equal(t, []string{"A", "C"}, ff.sessions[0].keys)
	assert.Equal(t, []string{"B"}, ff.sessions[1].keys)

	at := processingDay.Add(time.Second)
	ff.sessions[1].emit("B", at, model.Field{Name: "BID", Value: model.Float(20)})
	ff.sessions[0].emit("A", at.Add(time.Millisecond), model.Field{Name: "BID", Value: model.Float(11)})
	ff.sessions[0].handler(feed.StatusEvent{Session: 0, Key: "A", Kind: feed.StatusSubscriptionStarted})

	require.NoError(t, svc.Stop())
	require.NoError(t, svc.Stop())
	assert.False(t, svc.IsRunning())
	for _, s := range ff.sessions {
		assert.True(t, s.stopped)
	}

	got := readAll(t, layout.ConsolidatedPath(root, processingDay))
	require.Len(t, got, 4)
	assert.Equal(t, []string{"A", "C", "B", "A"}, []string{got[0].InstrumentKey, got[1].InstrumentKey, got[2].InstrumentKey, got[3].InstrumentKey})
	assert.Equal(t, []string{"ID-A", "ID-C", "ID-B", "ID-A"}, []string{got[0].ResolvedID, got[1].ResolvedID, got[2].ResolvedID, got[3].ResolvedID})
	assert.Equal(t, at.UnixMilli(), got[2].ReceivedTS)

	m := svc.Metrics()
	assert.Equal(t, uint64(4), m.Captured)
	assert.Equal(t, uint64(4), m.Persisted)
	assert.Equal(t, uint64(1), m.StatusEvents)
	assert.NoError(t, svc.Err())
}

func TestServiceMultiModeWritesSecondaryFiles(t *testing.T) {
	root := t.TempDir()
	refs := refdata.NewStatic(map[string]string{"A": "ID-A"}, nil)
	ff := &fakeFeed{}

	cfg := testConfig(root, "A")
	cfg.Sessions = 1
	cfg.Mode = persist.ModeMulti
	svc, err := New(cfg, refs, ff.factory, WithClock(fixedClock))
	require.NoError(t, err)
	require.NoError(t, svc.Start(t.Context()))

	at := time.Date(2024, time.March, 7, 9, 15, 0, 0, time.UTC)
	ff.sessions[0].emit("A", at, model.Field{Name: "BID", Value: model.Float(1)})
	require.NoError(t, svc.Stop())

	got := readAll(t, layout.SecondaryPath(root, "ID-A", at, 9))
	require.Len(t, got, 1)
	assert.Equal(t, "ID-A", got[0].ResolvedID)
}

func TestServiceStartRollsBackOnSessionFailure(t *testing.T) {
	root := t.TempDir()
	boom := assert.AnError
	ff := &fakeFeed{failOpen: map[int]error{1: boom}}

	svc, err := New(testConfig(root, "A", "B"), refdata.NewStatic(nil, nil), ff.factory, WithClock(fixedClock))
	require.NoError(t, err)

	err = svc.Start(t.Context())
	require.ErrorIs(t, err, boom)
	assert.False(t, svc.IsRunning())

	require.Len(t, ff.sessions, 2)
	assert.True(t, ff.sessions[0].stopped, "opened sessions are stopped on rollback")
	assert.Nil(t, svc.Stop())
}

type failingRefs struct{}

func (failingRefs) Resolve(ctx context.Context, keys []string) (map[string]string, error) {
	return nil, exception.ErrRefDataUnresolved
}

func (failingRefs) Snapshot(ctx context.Context, keys []string) (map[string]model.Fields, error) {
	return nil, nil
}

func TestServiceStartFailsOnResolve(t *testing.T) {
	ff := &fakeFeed{}
	svc, err := New(testConfig(t.TempDir(), "A"), failingRefs{}, ff.factory)
	require.NoError(t, err)

	assert.ErrorIs(t, svc.Start(t.Context()), exception.ErrRefDataUnresolved)
	assert.Empty(t, ff.sessions)
	assert.False(t, svc.IsRunning())
}

func TestServiceStopBeforeStart(t *testing.T) {
	ff := &fakeFeed{}
	svc, err := New(testConfig(t.TempDir(), "A"), refdata.NewStatic(nil, nil), ff.factory)
	require.NoError(t, err)
	assert.ErrorIs(t, svc.Stop(), exception.ErrCaptureNotStarted)
}

func TestWatchStopsServiceWhenWriterDies(t *testing.T) {
	root := t.TempDir()
	// A regular file where the year directory belongs makes every append fail.
	require.NoError(t, os.WriteFile(filepath.Join(root, "2024"), []byte("x"), 0o644))

	ff := &fakeFeed{}
	cfg := testConfig(root, "A")
	cfg.Sessions = 1
	svc, err := New(cfg, refdata.NewStatic(nil, nil), ff.factory, WithClock(fixedClock))
	require.NoError(t, err)
	require.NoError(t, svc.Start(t.Context()))

	ff.sessions[0].emit("A", processingDay, model.Field{Name: "BID", Value: model.Float(1)})

	ctx, cancel := context.WithTimeout(t.Context(), 5*time.Second)
	defer cancel()
	err = svc.Watch(ctx, 5*time.Millisecond)
	require.Error(t, err)
	assert.Equal(t, svc.Err(), err)
	assert.False(t, svc.IsRunning())
	assert.True(t, ff.sessions[0].stopped)
}
