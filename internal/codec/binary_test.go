package codec

import (
	"bytes"
	"encoding/binary"
	"io"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tickrec/internal/model"
	"tickrec/pkg/exception"
)

func sampleTick(ts int64) model.TickEnvelope {
	e := model.NewTick(time.UnixMilli(ts), "VOD LN Equity", model.NewFields(
		model.Field{Name: "LAST_PRICE", Value: model.DecimalString("71.52")},
		model.Field{Name: "BID", Value: model.Float(71.5)},
		model.Field{Name: "VOLUME", Value: model.Int(1200)},
		model.Field{Name: "EVENT_TIME", Value: model.String("14:03:22.125")},
		model.Field{Name: "IS_DELAYED", Value: model.Bool(true)},
		model.Field{Name: "RAW", Value: model.Bytes([]byte{0, 1, 2, 255})},
	))
	return e.WithResolvedID("EQ0010160500001000")
}

func TestBinaryRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	enc := Binary{}.NewEncoder(&buf)

	in := []model.TickEnvelope{sampleTick(1700000000000), sampleTick(1700000000001)}
	in[1].Fields.Set("BID", model.Float(-0.25))
	for _, e := range in {
		require.NoError(t, enc.Encode(e))
	}

	dec := Binary{}.NewDecoder(&buf)
	for _, want := range in {
		got, err := dec.Decode()
		require.NoError(t, err)
		assert.Truef(t, want.Equal(got), "round-trip mismatch: got %+v want %+v", got, want)
		assert.Equal(t, want.Fields.Names(), got.Fields.Names())
	}
	_, err := dec.Decode()
	assert.Equal(t, io.EOF, err)
}

func TestBinaryEmptyFields(t *testing.T) {
	var buf bytes.Buffer
	e := model.NewTick(time.UnixMilli(5), "K", model.Fields{})
	require.NoError(t, Binary{}.NewEncoder(&buf).Encode(e))

	got, err := Binary{}.NewDecoder(&buf).Decode()
	require.NoError(t, err)
	assert.True(t, e.Equal(got))
	assert.Equal(t, "", got.ResolvedID)
}

func TestBinaryAppendToExistingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ticks.tck")

	for i := 0; i < 2; i++ {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		require.NoError(t, err)
		require.NoError(t, Binary{}.NewEncoder(f).Encode(sampleTick(int64(i))))
		require.NoError(t, f.Close())
	}

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	dec := Binary{}.NewDecoder(f)
	for i := 0; i < 2; i++ {
		got, err := dec.Decode()
		require.NoError(t, err)
		assert.Equal(t, int64(i), got.ReceivedTS)
	}
	_, err = dec.Decode()
	assert.Equal(t, io.EOF, err)
}

func TestBinaryRejectsSentinel(t *testing.T) {
	var buf bytes.Buffer
	err := Binary{}.NewEncoder(&buf).Encode(model.Sentinel())
	assert.ErrorIs(t, err, exception.ErrSentinelNotPersistable)
	assert.Equal(t, 0, buf.Len())
}

func TestBinaryTornTail(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Binary{}.NewEncoder(&buf).Encode(sampleTick(1)))
	torn := buf.Bytes()[:buf.Len()-3]

	_, err := Binary{}.NewDecoder(bytes.NewReader(torn)).Decode()
	assert.Equal(t, io.ErrUnexpectedEOF, err)
}

func TestBinaryChecksum(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Binary{}.NewEncoder(&buf).Encode(sampleTick(1)))
	data := buf.Bytes()
	data[recordHeaderSize+2] ^= 0xff

	_, err := Binary{}.NewDecoder(bytes.NewReader(data)).Decode()
	assert.ErrorIs(t, err, exception.ErrCodecChecksumMismatch)
}

func TestBinaryMaxBodySize(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Binary{}.NewEncoder(&buf).Encode(sampleTick(1)))

	_, err := Binary{MaxBodySize: 8}.NewDecoder(&buf).Decode()
	assert.ErrorIs(t, err, exception.ErrCodecBodyTooLarge)
}

func TestBinaryCorruptLengthRejectedByDefault(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Binary{}.NewEncoder(&buf).Encode(sampleTick(1)))
	data := buf.Bytes()
	binary.LittleEndian.PutUint32(data[12:16], math.MaxUint32)

	_, err := Binary{}.NewDecoder(bytes.NewReader(data)).Decode()
	assert.ErrorIs(t, err, exception.ErrCodecBodyTooLarge)
}

func TestBinaryUnlimitedBodyReadsInChunks(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Binary{}.NewEncoder(&buf).Encode(sampleTick(1)))
	data := buf.Bytes()
	binary.LittleEndian.PutUint32(data[12:16], 64<<20)

	dec := Binary{MaxBodySize: -1}.NewDecoder(bytes.NewReader(data)).(*binaryDecoder)
	_, err := dec.Decode()
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
	assert.LessOrEqual(t, cap(dec.body), 4*bodyReadChunk)
}

func TestBinaryInvalidMagic(t *testing.T) {
	data := make([]byte, recordHeaderSize)
	copy(data, "NOPE")
	_, err := Binary{}.NewDecoder(bytes.NewReader(data)).Decode()
	assert.ErrorIs(t, err, exception.ErrCodecInvalidMagic)
}
