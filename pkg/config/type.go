package config

import (
	"time"

	"github.com/NotCoffee418/weather_telemetry/pkg/frame"
)

// Duration reads Go duration strings ("10s", "1h") from TOML.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

type Logging struct {
	Level  string `toml:"log_level"`
	Format string `toml:"log_format"`
}

type IngestConfig struct {
	DeviceID string `toml:"device_id"`

	// Serial sensor
	SerialDevice    string       `toml:"serial_device"`
	Baudrate        uint         `toml:"baudrate"`
	ReadTimeout     Duration     `toml:"read_timeout"`
	FrameLength     int          `toml:"frame_length"`
	InitCommand     string       `toml:"init_command"`
	HandshakeLength int          `toml:"handshake_length"`
	Layout          frame.Layout `toml:"layout"`

	// Loop behaviour
	WarmupDiscard     int      `toml:"warmup_discard"`
	MaxDecodeRetries  int      `toml:"max_decode_retries"`
	StartupDelay      Duration `toml:"startup_delay"`
	DeviceRetryDelay  Duration `toml:"device_retry_delay"`
	NetworkRetryDelay Duration `toml:"network_retry_delay"`
	DecodeRetryDelay  Duration `toml:"decode_retry_delay"`
	SettleDelay       Duration `toml:"settle_delay"`

	// Network
	IPLookupURL    string   `toml:"ip_lookup_url"`
	OriginIP       string   `toml:"origin_ip"`
	PingHost       string   `toml:"ping_host"`
	CollectorURL   string   `toml:"collector_url"`
	ForwardTimeout Duration `toml:"forward_timeout"`
	MQTTBroker     string   `toml:"mqtt_broker"`
	MQTTTopic      string   `toml:"mqtt_topic"`

	// Durable log
	DataDir       string `toml:"data_dir"`
	LogLayout     string `toml:"log_layout"`
	RetentionDays int    `toml:"retention_days"`
	RowsPerDay    int    `toml:"rows_per_day"`

	// Renderer
	StaticDir  string `toml:"static_dir"`
	PlotWindow int    `toml:"plot_window"`

	Logging
}

type CollectorConfig struct {
	ListenAddress        string   `toml:"listen_address"`
	ListenPort           int      `toml:"listen_port"`
	DataDir              string   `toml:"data_dir"`
	DbPath               string   `toml:"db_path"`
	HistoryRetentionDays int      `toml:"history_retention_days"`
	AggregateInterval    Duration `toml:"aggregate_interval"`

	Logging
}

type MonitorConfig struct {
	CollectorHost string `toml:"collector_host"`
	DeviceID      string `toml:"device_id"`

	Logging
}
