package codec

import (
	"io"

	"tickrec/internal/model"
)

// Encoder appends envelopes to an underlying stream.
type Encoder interface {
	// Encode writes one record. Sentinels are rejected.
	Encode(e model.TickEnvelope) error
}

// Decoder reads envelopes forward-only from a stream.
type Decoder interface {
	// Decode returns io.EOF at a clean end of stream and
	// io.ErrUnexpectedEOF when the last record is torn.
	Decode() (model.TickEnvelope, error)
}

// Codec builds encoders and decoders for one on-disk format.
type Codec interface {
	Name() string
	NewEncoder(w io.Writer) Encoder
	NewDecoder(r io.Reader) Decoder
}

// Default is the codec used by the writer and the loader unless configured otherwise.
var Default Codec = Binary{}
