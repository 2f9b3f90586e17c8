package sink

import (
	"bufio"
	"io"
	"sync"

	"github.com/yanun0323/logs"

	"tickrec/internal/model"
)

// JSONLines writes one JSON record per line.
type JSONLines struct {
	mu  sync.Mutex
	buf *bufio.Writer
	err error
}

func NewJSONLines(w io.Writer) *JSONLines {
	return &JSONLines{buf: bufio.NewWriter(w)}
}

func (s *JSONLines) OnTick(e model.TickEnvelope) {
	if err := s.Write(e); err != nil {
		logs.Errorf("json sink: write %s, err: %+v", e.InstrumentKey, err)
	}
}

// Write renders e. The first write error sticks and fails later writes.
func (s *JSONLines) Write(e model.TickEnvelope) error {
	data, err := MarshalRecord(e)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	if _, err := s.buf.Write(data); err != nil {
		s.err = err
		return err
	}
	if err := s.buf.WriteByte('\n'); err != nil {
		s.err = err
		return err
	}
	return nil
}

// Flush writes buffered records.
func (s *JSONLines) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	return s.buf.Flush()
}

// Tee hands every envelope to each receiver in order.
type Tee []interface{ OnTick(model.TickEnvelope) }

func (t Tee) OnTick(e model.TickEnvelope) {
	for _, r := range t {
		r.OnTick(e)
	}
}
