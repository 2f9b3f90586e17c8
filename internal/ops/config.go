package ops

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/bytedance/sonic"
	"github.com/yanun0323/errors"
)

// FileConfig mirrors the TOML and JSON config layout.
type FileConfig struct {
	Storage   StorageConfig   `toml:"storage" json:"storage"`
	Capture   CaptureConfig   `toml:"capture" json:"capture"`
	Feed      FeedConfig      `toml:"feed" json:"feed"`
	RefData   RefDataConfig   `toml:"refdata" json:"refdata"`
	Replay    ReplayConfig    `toml:"replay" json:"replay"`
	Sink      SinkConfig      `toml:"sink" json:"sink"`
	Profiling ProfilingConfig `toml:"profiling" json:"profiling"`
}

// StorageConfig locates the log and selects its format options.
type StorageConfig struct {
	Root        string `toml:"root" json:"root"`
	Mode        string `toml:"mode" json:"mode"`
	Checksum    *bool  `toml:"checksum" json:"checksum"`
	MaxBodySize int    `toml:"max_body_size" json:"maxBodySize"`
}

// CaptureConfig describes a capture run.
type CaptureConfig struct {
	Sessions      int      `toml:"sessions" json:"sessions"`
	WatchList     []string `toml:"watch_list" json:"watchList"`
	QueueSize     int      `toml:"queue_size" json:"queueSize"`
	StopTimeout   Duration `toml:"stop_timeout" json:"stopTimeout"`
	PollInterval  Duration `toml:"poll_interval" json:"pollInterval"`
	WatchInterval Duration `toml:"watch_interval" json:"watchInterval"`
}

// FeedConfig selects the feed session implementation.
type FeedConfig struct {
	Kind    string            `toml:"kind" json:"kind"`
	Sim     SimFeedConfig     `toml:"sim" json:"sim"`
	Binance BinanceFeedConfig `toml:"binance" json:"binance"`
}

type SimFeedConfig struct {
	Interval  Duration `toml:"interval" json:"interval"`
	BasePrice int64    `toml:"base_price" json:"basePrice"`
	BaseSize  int64    `toml:"base_size" json:"baseSize"`
	Spread    int64    `toml:"spread" json:"spread"`
}

type BinanceFeedConfig struct {
	URL     string   `toml:"url" json:"url"`
	Streams []string `toml:"streams" json:"streams"`
}

// RefDataConfig is either a static instrument list or a Postgres source.
type RefDataConfig struct {
	Instruments []InstrumentConfig `toml:"instruments" json:"instruments"`
	Postgres    *PostgresConfig    `toml:"postgres" json:"postgres"`
}

type InstrumentConfig struct {
	Key        string        `toml:"key" json:"key"`
	ResolvedID string        `toml:"resolved_id" json:"resolvedId"`
	Snapshot   []FieldConfig `toml:"snapshot" json:"snapshot"`
}

type FieldConfig struct {
	Name  string `toml:"name" json:"name"`
	Kind  string `toml:"kind" json:"kind"`
	Value string `toml:"value" json:"value"`
}

type PostgresConfig struct {
	DSN             string            `toml:"dsn" json:"dsn"`
	Host            string            `toml:"host" json:"host"`
	Port            int               `toml:"port" json:"port"`
	User            string            `toml:"user" json:"user"`
	Password        string            `toml:"password" json:"password"`
	Database        string            `toml:"database" json:"database"`
	SSLMode         string            `toml:"sslmode" json:"sslmode"`
	Params          map[string]string `toml:"params" json:"params"`
	MaxOpenConns    int               `toml:"max_open_conns" json:"maxOpenConns"`
	ConnMaxLifetime Duration          `toml:"conn_max_lifetime" json:"connMaxLifetime"`
}

// ReplayConfig describes a replay run.
type ReplayConfig struct {
	Start        Time     `toml:"start" json:"start"`
	End          Time     `toml:"end" json:"end"`
	Retain       []string `toml:"retain" json:"retain"`
	Loop         bool     `toml:"loop" json:"loop"`
	LoopInterval Duration `toml:"loop_interval" json:"loopInterval"`
	Pacing       string   `toml:"pacing" json:"pacing"`
	Speed        float64  `toml:"speed" json:"speed"`
	MaxGap       Duration `toml:"max_gap" json:"maxGap"`
	QueueSize    int      `toml:"queue_size" json:"queueSize"`
	WarmUp       Duration `toml:"warm_up" json:"warmUp"`
	JoinTimeout  Duration `toml:"join_timeout" json:"joinTimeout"`
}

// SinkConfig selects where replayed envelopes go.
type SinkConfig struct {
	Kind  string          `toml:"kind" json:"kind"`
	NATS  NATSSinkConfig  `toml:"nats" json:"nats"`
	Kafka KafkaSinkConfig `toml:"kafka" json:"kafka"`
}

type NATSSinkConfig struct {
	URL    string `toml:"url" json:"url"`
	Prefix string `toml:"prefix" json:"prefix"`
}

type KafkaSinkConfig struct {
	Brokers      []string `toml:"brokers" json:"brokers"`
	Topic        string   `toml:"topic" json:"topic"`
	BatchTimeout Duration `toml:"batch_timeout" json:"batchTimeout"`
}

// ProfilingConfig enables continuous profiling when Server is set.
type ProfilingConfig struct {
	Server      string `toml:"server" json:"server"`
	Application string `toml:"application" json:"application"`
}

// Duration reads Go duration strings such as "250ms".
type Duration time.Duration

func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return errors.Wrapf(err, "parse duration %q", string(text))
	}
	*d = Duration(v)
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.000",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.000",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// Time reads an instant. Values without a zone are UTC.
type Time time.Time

func (t Time) Std() time.Time { return time.Time(t) }

// ParseTime accepts RFC3339 and the zone-less layouts used in config files.
func ParseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, errors.Errorf("unrecognized time %q", s)
}

func (t *Time) UnmarshalText(text []byte) error {
	v, err := ParseTime(string(text))
	if err != nil {
		return err
	}
	*t = Time(v)
	return nil
}

func (t Time) MarshalText() ([]byte, error) {
	return []byte(time.Time(t).UTC().Format(time.RFC3339Nano)), nil
}

// Default returns the configuration used when no file is given.
func Default() FileConfig {
	return FileConfig{
		Storage: StorageConfig{Root: "./data", Mode: "single"},
		Capture: CaptureConfig{
			Sessions:      1,
			QueueSize:     65536,
			StopTimeout:   Duration(10 * time.Second),
			WatchInterval: Duration(time.Second),
		},
		Feed: FeedConfig{Kind: FeedSim},
		Replay: ReplayConfig{
			Pacing:      "fast",
			Speed:       1,
			QueueSize:   8192,
			WarmUp:      Duration(50 * time.Millisecond),
			JoinTimeout: Duration(5 * time.Second),
		},
		Sink:      SinkConfig{Kind: SinkJSON},
		Profiling: ProfilingConfig{Application: "tickrec"},
	}
}

// Decode reads a config file on top of Default. The format follows the
// extension: .toml or .json.
func Decode(path string) (FileConfig, error) {
	cfg := Default()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return FileConfig{}, errors.Wrapf(err, "decode toml config: %s", path)
		}
	case ".json":
		data, err := os.ReadFile(path)
		if err != nil {
			return FileConfig{}, errors.Wrapf(err, "read config: %s", path)
		}
		if err := sonic.Unmarshal(data, &cfg); err != nil {
			return FileConfig{}, errors.Wrapf(err, "decode json config: %s", path)
		}
	default:
		return FileConfig{}, errors.Errorf("unsupported config format: %s", path)
	}
	return cfg, nil
}

// Load decodes and resolves a config file.
func Load(path string) (Loaded, error) {
	cfg, err := Decode(path)
	if err != nil {
		return Loaded{}, err
	}
	return cfg.Resolve()
}
