package ops

import (
	"context"
	"io"

	"github.com/yanun0323/errors"

	"tickrec/internal/capture"
	"tickrec/internal/codec"
	"tickrec/internal/feed"
	"tickrec/internal/feed/binance"
	"tickrec/internal/feed/simfeed"
	"tickrec/internal/model"
	"tickrec/internal/persist"
	"tickrec/internal/refdata"
	"tickrec/internal/replay"
	"tickrec/internal/sink"
	"tickrec/pkg/conn"
)

const (
	FeedSim     = "sim"
	FeedBinance = "binance"

	SinkJSON  = "json"
	SinkNATS  = "nats"
	SinkKafka = "kafka"
)

// Loaded is the resolved configuration ready for use.
type Loaded struct {
	File    FileConfig
	Codec   codec.Codec
	Mode    persist.Mode
	Pacing  replay.Pacing
	Static  *refdata.Static
	Capture capture.Config
	Replay  replay.Config
}

// Resolve validates enumerations and builds component configs.
func (cfg FileConfig) Resolve() (Loaded, error) {
	if cfg.Storage.Root == "" {
		return Loaded{}, errors.New("storage root is empty")
	}
	mode, err := persist.ParseMode(cfg.Storage.Mode)
	if err != nil {
		return Loaded{}, err
	}
	pacing, err := replay.ParsePacing(cfg.Replay.Pacing)
	if err != nil {
		return Loaded{}, err
	}
	switch cfg.Feed.Kind {
	case "", FeedSim, FeedBinance:
	default:
		return Loaded{}, errors.Errorf("unknown feed kind: %q", cfg.Feed.Kind)
	}
	switch cfg.Sink.Kind {
	case "", SinkJSON, SinkNATS, SinkKafka:
	default:
		return Loaded{}, errors.Errorf("unknown sink kind: %q", cfg.Sink.Kind)
	}
	static, err := buildStatic(cfg.RefData.Instruments)
	if err != nil {
		return Loaded{}, err
	}

	checksum := true
	if cfg.Storage.Checksum != nil {
		checksum = *cfg.Storage.Checksum
	}
	c := codec.Binary{DisableChecksum: !checksum, MaxBodySize: cfg.Storage.MaxBodySize}

	l := Loaded{File: cfg, Codec: c, Mode: mode, Pacing: pacing, Static: static}
	l.Capture = l.captureConfig()
	l.Replay = l.replayConfig()
	return l, nil
}

func buildStatic(instruments []InstrumentConfig) (*refdata.Static, error) {
	ids := make(map[string]string, len(instruments))
	snapshots := make(map[string]model.Fields)
	for _, inst := range instruments {
		if inst.Key == "" {
			return nil, errors.New("instrument key is empty")
		}
		if inst.ResolvedID != "" {
			ids[inst.Key] = inst.ResolvedID
		}
		if len(inst.Snapshot) == 0 {
			continue
		}
		var fields model.Fields
		for _, f := range inst.Snapshot {
			v, err := refdata.ParseValue(f.Kind, f.Value)
			if err != nil {
				return nil, errors.Wrapf(err, "snapshot field %s.%s", inst.Key, f.Name)
			}
			fields.Set(f.Name, v)
		}
		snapshots[inst.Key] = fields
	}
	return refdata.NewStatic(ids, snapshots), nil
}

// WatchList returns the configured watch list, or the static instrument keys
// when none is given.
func (l Loaded) WatchList() []string {
	if len(l.File.Capture.WatchList) > 0 {
		return l.File.Capture.WatchList
	}
	keys := make([]string, 0, len(l.File.RefData.Instruments))
	for _, inst := range l.File.RefData.Instruments {
		keys = append(keys, inst.Key)
	}
	return keys
}

func (l Loaded) captureConfig() capture.Config {
	c := l.File.Capture
	cfg := capture.DefaultConfig(l.File.Storage.Root)
	cfg.Mode = l.Mode
	cfg.Codec = l.Codec
	cfg.WatchList = l.WatchList()
	if c.Sessions != 0 {
		cfg.Sessions = c.Sessions
	}
	if c.QueueSize != 0 {
		cfg.QueueSize = c.QueueSize
	}
	if c.StopTimeout != 0 {
		cfg.StopTimeout = c.StopTimeout.Std()
	}
	cfg.PollInterval = c.PollInterval.Std()
	return cfg
}

func (l Loaded) replayConfig() replay.Config {
	r := l.File.Replay
	cfg := replay.DefaultConfig(l.File.Storage.Root, r.Start.Std(), r.End.Std())
	cfg.Codec = l.Codec
	cfg.Pacing = l.Pacing
	cfg.Retain = r.Retain
	cfg.Loop = r.Loop
	cfg.MaxGap = r.MaxGap.Std()
	if r.Speed != 0 {
		cfg.Speed = r.Speed
	}
	if r.QueueSize != 0 {
		cfg.QueueSize = r.QueueSize
	}
	if r.WarmUp != 0 {
		cfg.WarmUp = r.WarmUp.Std()
	}
	if r.JoinTimeout != 0 {
		cfg.JoinTimeout = r.JoinTimeout.Std()
	}
	if r.LoopInterval != 0 {
		cfg.LoopInterval = r.LoopInterval.Std()
	}
	return cfg
}

// NewProvider returns the Postgres provider when configured, else the static
// one. The returned close func releases the connection.
func (l Loaded) NewProvider(ctx context.Context) (refdata.Provider, func() error, error) {
	pg := l.File.RefData.Postgres
	if pg == nil {
		return l.Static, func() error { return nil }, nil
	}

	client, err := conn.New(conn.Option{
		Host:            pg.Host,
		Port:            pg.Port,
		User:            pg.User,
		Password:        pg.Password,
		Database:        pg.Database,
		SSLMode:         pg.SSLMode,
		Params:          pg.Params,
		ConnString:      pg.DSN,
		MaxOpenConns:    pg.MaxOpenConns,
		ConnMaxLifetime: pg.ConnMaxLifetime.Std(),
	})
	if err != nil {
		return nil, nil, err
	}
	if err := client.Ping(ctx); err != nil {
		_ = client.Close()
		return nil, nil, errors.Wrap(err, "ping postgres")
	}
	provider, err := refdata.NewPostgres(client.DB())
	if err != nil {
		_ = client.Close()
		return nil, nil, err
	}
	return provider, client.Close, nil
}

// NewFeedFactory builds the configured session factory.
func (l Loaded) NewFeedFactory() feed.Factory {
	f := l.File.Feed
	switch f.Kind {
	case FeedBinance:
		cfg := binance.DefaultConfig()
		if f.Binance.URL != "" {
			cfg.URL = f.Binance.URL
		}
		if len(f.Binance.Streams) != 0 {
			cfg.Streams = f.Binance.Streams
		}
		return binance.NewFactory(cfg)
	default:
		cfg := simfeed.DefaultConfig()
		if f.Sim.Interval != 0 {
			cfg.Interval = f.Sim.Interval.Std()
		}
		if f.Sim.BasePrice != 0 {
			cfg.BasePrice = f.Sim.BasePrice
		}
		if f.Sim.BaseSize != 0 {
			cfg.BaseSize = f.Sim.BaseSize
		}
		if f.Sim.Spread != 0 {
			cfg.Spread = f.Sim.Spread
		}
		return simfeed.NewFactory(cfg)
	}
}

// NewReceiver builds the configured replay receiver. JSON output goes to out.
func (l Loaded) NewReceiver(out io.Writer) (replay.Receiver, func() error, error) {
	s := l.File.Sink
	switch s.Kind {
	case SinkNATS:
		r, err := sink.NewNATS(s.NATS.URL, s.NATS.Prefix)
		if err != nil {
			return nil, nil, err
		}
		return r, r.Close, nil
	case SinkKafka:
		r, err := sink.NewKafka(sink.KafkaConfig{
			Brokers:      s.Kafka.Brokers,
			Topic:        s.Kafka.Topic,
			BatchTimeout: s.Kafka.BatchTimeout.Std(),
		})
		if err != nil {
			return nil, nil, err
		}
		return r, r.Close, nil
	default:
		r := sink.NewJSONLines(out)
		return r, r.Flush, nil
	}
}
