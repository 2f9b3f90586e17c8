package sink

import (
	"strconv"

	"github.com/bytedance/sonic"
	"github.com/yanun0323/errors"

	"tickrec/internal/model"
)

// MarshalRecord renders an envelope as one JSON object. Payload fields keep
// their captured order:
//
//	{"receivedTS":1709805802125,"security":"IBM US Equity","buid":"BBG000BLNNH6","fields":{"BID":1.5}}
func MarshalRecord(e model.TickEnvelope) ([]byte, error) {
	buf := make([]byte, 0, 128+32*e.Fields.Len())
	buf = append(buf, '{')
	buf = appendKey(buf, model.FieldReceivedTS)
	buf = strconv.AppendInt(buf, e.ReceivedTS, 10)
	buf = append(buf, ',')
	buf = appendKey(buf, model.FieldSecurity)
	buf = strconv.AppendQuote(buf, e.InstrumentKey)
	buf = append(buf, ',')
	buf = appendKey(buf, model.FieldBUID)
	buf = strconv.AppendQuote(buf, e.ResolvedID)
	buf = append(buf, ',')
	buf = appendKey(buf, model.FieldPayload)
	buf = append(buf, '{')

	var err error
	first := true
	e.Fields.Range(func(name string, v model.Value) bool {
		var data []byte
		data, err = sonic.ConfigFastest.Marshal(v.Any())
		if err != nil {
			err = errors.Wrapf(err, "marshal field %s", name)
			return false
		}
		if !first {
			buf = append(buf, ',')
		}
		first = false
		buf = appendKey(buf, name)
		buf = append(buf, data...)
		return true
	})
	if err != nil {
		return nil, err
	}

	buf = append(buf, '}', '}')
	return buf, nil
}

func appendKey(buf []byte, key string) []byte {
	buf = strconv.AppendQuote(buf, key)
	return append(buf, ':')
}
