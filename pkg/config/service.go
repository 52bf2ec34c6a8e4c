package config

import (
	"errors"
	"fmt"
	"net/netip"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/NotCoffee418/weather_telemetry/pkg/frame"
	"github.com/NotCoffee418/weather_telemetry/pkg/pathing"
	"github.com/NotCoffee418/weather_telemetry/pkg/port_reader"
)

var ErrInvalidConfig = errors.New("invalid config")

func DefaultIngestConfigPath() string {
	return filepath.Join(pathing.GetConfigDir(), "sensor_ingest.toml")
}

func DefaultCollectorConfigPath() string {
	return filepath.Join(pathing.GetConfigDir(), "collector_api.toml")
}

func DefaultMonitorConfigPath() string {
	return filepath.Join(pathing.GetConfigDir(), "reading_monitor.toml")
}

func DefaultIngestConfig() *IngestConfig {
	return &IngestConfig{
		DeviceID:          "dev_01",
		SerialDevice:      "/dev/ttyUSB0",
		Baudrate:          9600,
		ReadTimeout:       Duration{2 * time.Second},
		FrameLength:       43,
		InitCommand:       "AT+AutoSend=60",
		HandshakeLength:   100,
		Layout:            frame.WeatherLayout(),
		WarmupDiscard:     2,
		MaxDecodeRetries:  100,
		StartupDelay:      Duration{5 * time.Second},
		DeviceRetryDelay:  Duration{10 * time.Second},
		NetworkRetryDelay: Duration{10 * time.Second},
		DecodeRetryDelay:  Duration{3 * time.Second},
		SettleDelay:       Duration{3 * time.Second},
		IPLookupURL:       "http://api64.ipify.org",
		CollectorURL:      "http://localhost:4465",
		ForwardTimeout:    Duration{5 * time.Second},
		DataDir:           pathing.GetSensorLogDir(),
		LogLayout:         "daily",
		RetentionDays:     90,
		RowsPerDay:        1440,
		StaticDir:         pathing.GetStaticDir(),
		PlotWindow:        180,
		Logging:           Logging{Level: "info", Format: "text"},
	}
}

func DefaultCollectorConfig() *CollectorConfig {
	return &CollectorConfig{
		ListenAddress:        "127.0.0.1",
		ListenPort:           4465,
		DataDir:              pathing.GetCollectorDataDir(),
		DbPath:               pathing.GetReadingDbPath(),
		HistoryRetentionDays: 90,
		AggregateInterval:    Duration{time.Hour},
		Logging:              Logging{Level: "info", Format: "text"},
	}
}

func DefaultMonitorConfig() *MonitorConfig {
	return &MonitorConfig{
		CollectorHost: "localhost:4465",
		DeviceID:      "dev_01",
		Logging:       Logging{Level: "info", Format: "text"},
	}
}

func LoadIngestConfig(configPath string) (*IngestConfig, error) {
	cfg := DefaultIngestConfig()
	if err := loadOrCreate(configPath, cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func LoadCollectorConfig(configPath string) (*CollectorConfig, error) {
	cfg := DefaultCollectorConfig()
	if err := loadOrCreate(configPath, cfg); err != nil {
		return nil, err
	}
	if cfg.ListenPort <= 0 {
		return nil, fmt.Errorf("%w: listen_port must be positive", ErrInvalidConfig)
	}
	return cfg, nil
}

func LoadMonitorConfig(configPath string) (*MonitorConfig, error) {
	cfg := DefaultMonitorConfig()
	if err := loadOrCreate(configPath, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *IngestConfig) Validate() error {
	if !strings.HasPrefix(c.DeviceID, "dev_") {
		return fmt.Errorf("%w: device_id %q must start with dev_", ErrInvalidConfig, c.DeviceID)
	}
	if c.FrameLength != c.Layout.Length {
		return fmt.Errorf("%w: frame_length %d does not match layout length %d", ErrInvalidConfig, c.FrameLength, c.Layout.Length)
	}
	if err := c.Layout.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if c.ReadTimeout.Duration <= 0 || c.ReadTimeout.Duration > port_reader.MaxReadTimeout {
		return fmt.Errorf("%w: read_timeout %s must be in (0, %s]", ErrInvalidConfig, c.ReadTimeout, port_reader.MaxReadTimeout)
	}
	if c.OriginIP != "" {
		if _, err := netip.ParseAddr(c.OriginIP); err != nil {
			return fmt.Errorf("%w: origin_ip: %w", ErrInvalidConfig, err)
		}
	}
	if c.WarmupDiscard < 0 || c.MaxDecodeRetries < 0 {
		return fmt.Errorf("%w: warmup_discard and max_decode_retries must not be negative", ErrInvalidConfig)
	}
	if c.RetentionDays <= 0 || c.RowsPerDay <= 0 {
		return fmt.Errorf("%w: retention_days and rows_per_day must be positive", ErrInvalidConfig)
	}
	switch c.LogLayout {
	case "daily", "single":
	default:
		return fmt.Errorf("%w: log_layout %q (allowed: daily, single)", ErrInvalidConfig, c.LogLayout)
	}
	return nil
}

// RotationCeiling is the number of log lines kept before the oldest day is dropped.
func (c *IngestConfig) RotationCeiling() int {
	return c.RowsPerDay * c.RetentionDays
}

// loadOrCreate writes cfg (holding defaults) to configPath when the file does
// not exist yet, otherwise decodes the file on top of the defaults.
func loadOrCreate(configPath string, cfg any) error {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		if err := pathing.EnsureDir(filepath.Dir(configPath)); err != nil {
			return err
		}
		cfgFile, err := os.Create(configPath)
		if err != nil {
			return err
		}
		defer cfgFile.Close()
		return toml.NewEncoder(cfgFile).Encode(cfg)
	}

	if _, err := toml.DecodeFile(configPath, cfg); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrInvalidConfig, configPath, err)
	}
	return nil
}
