package sink

import (
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"

	"tickrec/internal/model"
)

const defaultSubjectPrefix = "ticks"

// NATS publishes each envelope as JSON on <prefix>.<resolved id>.
type NATS struct {
	conn   *nats.Conn
	prefix string
}

// NewNATS connects to url with automatic reconnection.
func NewNATS(url, prefix string, opts ...nats.Option) (*NATS, error) {
	defaults := []nats.Option{
		nats.Name("tickrec-replay"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(time.Second),
	}
	nc, err := nats.Connect(url, append(defaults, opts...)...)
	if err != nil {
		return nil, errors.Wrapf(err, "connect nats: %s", url)
	}
	if prefix == "" {
		prefix = defaultSubjectPrefix
	}
	return &NATS{conn: nc, prefix: prefix}, nil
}

// Subject returns the subject an envelope is published on.
func (s *NATS) Subject(e model.TickEnvelope) string {
	id := e.ResolvedID
	if id == "" {
		id = e.InstrumentKey
	}
	return s.prefix + "." + subjectToken(id)
}

func (s *NATS) OnTick(e model.TickEnvelope) {
	if err := s.Publish(e); err != nil {
		logs.Errorf("nats sink: publish %s, err: %+v", e.InstrumentKey, err)
	}
}

func (s *NATS) Publish(e model.TickEnvelope) error {
	data, err := MarshalRecord(e)
	if err != nil {
		return err
	}
	return s.conn.Publish(s.Subject(e), data)
}

// Close flushes pending messages and closes the connection.
func (s *NATS) Close() error {
	err := s.conn.Flush()
	s.conn.Close()
	return err
}

var subjectReplacer = strings.NewReplacer(".", "_", " ", "_", "*", "_", ">", "_", "\t", "_")

func subjectToken(id string) string {
	if id == "" {
		return "unknown"
	}
	return subjectReplacer.Replace(id)
}
