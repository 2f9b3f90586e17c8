package sink

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"

	"tickrec/internal/model"
	"tickrec/pkg/exception"
)

// Kafka produces each envelope keyed by resolved id, so one instrument stays
// on one partition. Writes are asynchronous; delivery failures are logged and
// counted by the completion hook.
type Kafka struct {
	writer  *kafka.Writer
	timeout time.Duration
	failed  atomic.Uint64
}

// KafkaConfig selects brokers and topic.
type KafkaConfig struct {
	Brokers      []string
	Topic        string
	BatchTimeout time.Duration
	WriteTimeout time.Duration
}

func NewKafka(cfg KafkaConfig) (*Kafka, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.Wrap(exception.ErrInvalidArgument, "kafka brokers are empty")
	}
	if cfg.Topic == "" {
		return nil, errors.Wrap(exception.ErrInvalidArgument, "kafka topic is empty")
	}
	if cfg.BatchTimeout <= 0 {
		cfg.BatchTimeout = 10 * time.Millisecond
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 5 * time.Second
	}
	k := &Kafka{timeout: cfg.WriteTimeout}
	k.writer = &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		Async:        true,
		BatchTimeout: cfg.BatchTimeout,
		WriteTimeout: cfg.WriteTimeout,
		Completion:   k.completed,
	}
	return k, nil
}

func (s *Kafka) completed(messages []kafka.Message, err error) {
	if err == nil {
		return
	}
	s.failed.Add(uint64(len(messages)))
	logs.Errorf("kafka sink: deliver %d messages to %s, err: %+v", len(messages), s.writer.Topic, err)
}

// Failed returns the number of messages the brokers did not accept.
func (s *Kafka) Failed() uint64 {
	return s.failed.Load()
}

func (s *Kafka) OnTick(e model.TickEnvelope) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	if err := s.Send(ctx, e); err != nil {
		logs.Errorf("kafka sink: send %s, err: %+v", e.InstrumentKey, err)
	}
}

func (s *Kafka) Send(ctx context.Context, e model.TickEnvelope) error {
	msg, err := kafkaMessage(e)
	if err != nil {
		return err
	}
	return s.writer.WriteMessages(ctx, msg)
}

// Close flushes buffered messages.
func (s *Kafka) Close() error {
	return s.writer.Close()
}

func kafkaMessage(e model.TickEnvelope) (kafka.Message, error) {
	value, err := MarshalRecord(e)
	if err != nil {
		return kafka.Message{}, err
	}
	key := e.ResolvedID
	if key == "" {
		key = e.InstrumentKey
	}
	return kafka.Message{
		Key:   []byte(key),
		Value: value,
		Time:  e.ReceivedAt(),
	}, nil
}
