package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tickrec/internal/codec"
	"tickrec/internal/model"
	"tickrec/internal/ops"
	"tickrec/internal/replay"
)

func writeLog(t *testing.T, n int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ticks.tck")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	enc := codec.Default.NewEncoder(f)
	at := time.Date(2024, time.March, 7, 9, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		e := model.NewTick(at.Add(time.Duration(i)*time.Millisecond), "A", model.NewFields(
			model.Field{Name: "BID", Value: model.Int(int64(i))},
		)).WithResolvedID("ID-A")
		require.NoError(t, enc.Encode(e))
	}
	return path
}

func TestDumpFile(t *testing.T) {
	path := writeLog(t, 3)

	var buf bytes.Buffer
	n, err := dumpFile(path, codec.Default, &buf, 0)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[2], `"fields":{"BID":2}`)

	buf.Reset()
	n, err = dumpFile(path, codec.Default, &buf, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestDumpFileTornTail(t *testing.T) {
	path := writeLog(t, 2)
	info, err := os.Stat(path)
	require.NoError(t, err)
	require.NoError(t, os.Truncate(path, info.Size()-3))

	var buf bytes.Buffer
	n, err := dumpFile(path, codec.Default, &buf, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestReplayFlagsOverrideConfig(t *testing.T) {
	fc := ops.Default()
	require.NoError(t, replayCmd.Flags().Set("start", "2024-03-04"))
	require.NoError(t, replayCmd.Flags().Set("end", "2024-03-05 12:00:00"))
	require.NoError(t, replayCmd.Flags().Set("pacing", "original"))
	require.NoError(t, replayCmd.Flags().Set("retain", "ID-A,ID-B"))
	require.NoError(t, rootCmd.PersistentFlags().Set("root", "/tmp/ticks"))

	require.NoError(t, applyOverrides(replayCmd, &fc))
	l, err := fc.Resolve()
	require.NoError(t, err)

	assert.Equal(t, "/tmp/ticks", l.Replay.Root)
	assert.Equal(t, replay.PacingOriginal, l.Replay.Pacing)
	assert.Equal(t, []string{"ID-A", "ID-B"}, l.Replay.Retain)
	assert.Equal(t, time.Date(2024, time.March, 5, 12, 0, 0, 0, time.UTC), l.Replay.End)
}
