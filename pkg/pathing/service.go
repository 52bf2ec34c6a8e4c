package pathing

import (
	"os"
	"path/filepath"
)

// EnsureDir creates dir and its parents when missing.
func EnsureDir(dir string) error {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return os.MkdirAll(dir, 0755)
	}
	return nil
}

func GetDataDir() string {
	return "/var/lib/weather_telemetry"
}

func GetConfigDir() string {
	return "/etc/weather_telemetry"
}

// Per-device CSV logs written by sensor_ingest.
func GetSensorLogDir() string {
	return filepath.Join(GetDataDir(), "sensor_data")
}

// Snapshots consumed by the display server.
func GetStaticDir() string {
	return filepath.Join(GetDataDir(), "static")
}

// Collector side storage.
func GetCollectorDataDir() string {
	return filepath.Join(GetDataDir(), "collector")
}

func GetReadingDbPath() string {
	return filepath.Join(GetCollectorDataDir(), "wt-readings.db")
}
