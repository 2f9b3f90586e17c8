package codec

import (
	"encoding/binary"
	"math"

	"tickrec/internal/model"
	"tickrec/pkg/exception"
)

// appendBody serializes key, resolved id and fields after dst.
func appendBody(dst []byte, e model.TickEnvelope) ([]byte, error) {
	dst = appendString(dst, e.InstrumentKey)
	dst = appendString(dst, e.ResolvedID)
	for i := 0; i < e.Fields.Len(); i++ {
		f := e.Fields.At(i)
		dst = appendString(dst, f.Name)
		dst = append(dst, byte(f.Value.Kind()))
		switch f.Value.Kind() {
		case model.KindString:
			s, _ := f.Value.Str()
			dst = appendString(dst, s)
		case model.KindDecimal:
			s, _ := f.Value.DecimalText()
			dst = appendString(dst, s)
		case model.KindInt, model.KindFloat:
			dst = binary.LittleEndian.AppendUint64(dst, uint64(f.Value.Bits()))
		case model.KindBool:
			b, _ := f.Value.Bool()
			if b {
				dst = append(dst, 1)
			} else {
				dst = append(dst, 0)
			}
		case model.KindBytes:
			raw, _ := f.Value.Raw()
			dst = binary.AppendUvarint(dst, uint64(len(raw)))
			dst = append(dst, raw...)
		default:
			return dst, exception.ErrCodecInvalidValue
		}
	}
	return dst, nil
}

func appendString(dst []byte, s string) []byte {
	dst = binary.AppendUvarint(dst, uint64(len(s)))
	return append(dst, s...)
}

type bodyReader struct {
	buf []byte
	off int
}

func (r *bodyReader) readBytes() ([]byte, error) {
	n, size := binary.Uvarint(r.buf[r.off:])
	if size <= 0 {
		return nil, exception.ErrCodecCorruptBody
	}
	r.off += size
	if uint64(len(r.buf)-r.off) < n {
		return nil, exception.ErrCodecCorruptBody
	}
	out := r.buf[r.off : r.off+int(n)]
	r.off += int(n)
	return out, nil
}

func (r *bodyReader) readString() (string, error) {
	b, err := r.readBytes()
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (r *bodyReader) readByte() (byte, error) {
	if r.off >= len(r.buf) {
		return 0, exception.ErrCodecCorruptBody
	}
	b := r.buf[r.off]
	r.off++
	return b, nil
}

func (r *bodyReader) readUint64() (uint64, error) {
	if len(r.buf)-r.off < 8 {
		return 0, exception.ErrCodecCorruptBody
	}
	v := binary.LittleEndian.Uint64(r.buf[r.off:])
	r.off += 8
	return v, nil
}

func (r *bodyReader) value(kind model.Kind) (model.Value, error) {
	switch kind {
	case model.KindString:
		s, err := r.readString()
		return model.String(s), err
	case model.KindDecimal:
		s, err := r.readString()
		return model.DecimalString(s), err
	case model.KindInt:
		v, err := r.readUint64()
		return model.Int(int64(v)), err
	case model.KindFloat:
		v, err := r.readUint64()
		return model.Float(math.Float64frombits(v)), err
	case model.KindBool:
		b, err := r.readByte()
		return model.Bool(b != 0), err
	case model.KindBytes:
		raw, err := r.readBytes()
		return model.Bytes(raw), err
	default:
		return model.Value{}, exception.ErrCodecInvalidValue
	}
}

func decodeBody(h recordHeader, body []byte) (model.TickEnvelope, error) {
	r := bodyReader{buf: body}
	e := model.TickEnvelope{ReceivedTS: h.receivedTS}
	var err error
	if e.InstrumentKey, err = r.readString(); err != nil {
		return model.TickEnvelope{}, err
	}
	if e.ResolvedID, err = r.readString(); err != nil {
		return model.TickEnvelope{}, err
	}
	for i := 0; i < int(h.fieldCount); i++ {
		name, err := r.readString()
		if err != nil {
			return model.TickEnvelope{}, err
		}
		kind, err := r.readByte()
		if err != nil {
			return model.TickEnvelope{}, err
		}
		v, err := r.value(model.Kind(kind))
		if err != nil {
			return model.TickEnvelope{}, err
		}
		e.Fields.Append(name, v)
	}
	if r.off != len(body) {
		return model.TickEnvelope{}, exception.ErrCodecCorruptBody
	}
	return e, nil
}
