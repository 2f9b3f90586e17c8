package codec

import (
	"bufio"
	"encoding/binary"
	"io"
	"math"
	"slices"

	"tickrec/internal/model"
	"tickrec/pkg/exception"
)

// Binary is the length-framed, checksummed record format.
//
// Record layout (little endian):
//
//	magic "TCK1" | version u16 | header size u16 | flags u16 | field count u16 |
//	body length u32 | receivedTS i64 | body | crc32c(header+body) u32
//
// The body holds the instrument key, the resolved id and every field as
// name, kind tag and value, in payload order.
type Binary struct {
	// DisableChecksum skips crc verification on decode.
	DisableChecksum bool
	// MaxBodySize rejects larger records on decode. Zero means
	// DefaultMaxBodySize, negative means unlimited.
	MaxBodySize int
}

// DefaultMaxBodySize bounds a decoded record body when no limit is set.
const DefaultMaxBodySize = 16 << 20

// bodyReadChunk bounds each allocation step while a body is read.
const bodyReadChunk = 1 << 20

func (c Binary) maxBody() int {
	if c.MaxBodySize == 0 {
		return DefaultMaxBodySize
	}
	return c.MaxBodySize
}

func (Binary) Name() string { return "binary/v1" }

func (c Binary) NewEncoder(w io.Writer) Encoder {
	return &binaryEncoder{w: w, header: make([]byte, recordHeaderSize)}
}

func (c Binary) NewDecoder(r io.Reader) Decoder {
	br, ok := r.(*bufio.Reader)
	if !ok {
		br = bufio.NewReader(r)
	}
	return &binaryDecoder{r: br, opts: c, header: make([]byte, recordHeaderSize)}
}

type binaryEncoder struct {
	w      io.Writer
	header []byte
	buf    []byte
}

func (enc *binaryEncoder) Encode(e model.TickEnvelope) error {
	if e.IsSentinel() {
		return exception.ErrSentinelNotPersistable
	}
	if e.Fields.Len() > math.MaxUint16 {
		return exception.ErrCodecBodyTooLarge
	}

	buf := enc.buf[:0]
	buf = append(buf, enc.header...)
	buf, err := appendBody(buf, e)
	if err != nil {
		return err
	}
	bodyLen := len(buf) - recordHeaderSize
	if uint64(bodyLen) > maxBodyLen {
		return exception.ErrCodecBodyTooLarge
	}

	encodeHeader(buf[:recordHeaderSize], recordHeader{
		fieldCount: uint16(e.Fields.Len()),
		bodyLen:    uint32(bodyLen),
		receivedTS: e.ReceivedTS,
	})
	buf = binary.LittleEndian.AppendUint32(buf, checksum(buf[:recordHeaderSize], buf[recordHeaderSize:]))
	enc.buf = buf

	_, err = enc.w.Write(buf)
	return err
}

type binaryDecoder struct {
	r      *bufio.Reader
	opts   Binary
	header []byte
	body   []byte
}

func (dec *binaryDecoder) Decode() (model.TickEnvelope, error) {
	n, err := io.ReadFull(dec.r, dec.header)
	if err != nil {
		if err == io.EOF && n == 0 {
			return model.TickEnvelope{}, io.EOF
		}
		return model.TickEnvelope{}, io.ErrUnexpectedEOF
	}

	h, err := decodeHeader(dec.header)
	if err != nil {
		return model.TickEnvelope{}, err
	}
	if limit := dec.opts.maxBody(); limit > 0 && uint64(h.bodyLen) > uint64(limit) {
		return model.TickEnvelope{}, exception.ErrCodecBodyTooLarge
	}
	if err := dec.readBody(int(h.bodyLen)); err != nil {
		return model.TickEnvelope{}, io.ErrUnexpectedEOF
	}

	var sum [recordChecksumSize]byte
	if _, err := io.ReadFull(dec.r, sum[:]); err != nil {
		return model.TickEnvelope{}, io.ErrUnexpectedEOF
	}
	if !dec.opts.DisableChecksum {
		if binary.LittleEndian.Uint32(sum[:]) != checksum(dec.header, dec.body) {
			return model.TickEnvelope{}, exception.ErrCodecChecksumMismatch
		}
	}

	return decodeBody(h, dec.body)
}

func (dec *binaryDecoder) readBody(n int) error {
	dec.body = dec.body[:0]
	for len(dec.body) < n {
		step := min(n-len(dec.body), bodyReadChunk)
		start := len(dec.body)
		dec.body = slices.Grow(dec.body, step)[:start+step]
		if _, err := io.ReadFull(dec.r, dec.body[start:]); err != nil {
			return err
		}
	}
	return nil
}
