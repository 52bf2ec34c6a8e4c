package collector

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/NotCoffee418/weather_telemetry/pkg/livefeed"
	"github.com/NotCoffee418/weather_telemetry/pkg/readingdb"
	"github.com/NotCoffee418/weather_telemetry/pkg/types"
)

const DevicePrefix = "dev_"

var (
	ErrInvalidDevice  = errors.New("invalid device id")
	ErrInvalidPayload = errors.New("invalid payload")
	ErrNoReading      = errors.New("no reading stored")
)

// SchemaError names the key that broke the payload schema.
type SchemaError struct {
	Key    string
	Reason string
}

func (e *SchemaError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("%s: %s", ErrInvalidPayload, e.Reason)
	}
	return fmt.Sprintf("%s: %s: %s", ErrInvalidPayload, e.Key, e.Reason)
}

func (e *SchemaError) Unwrap() error {
	return ErrInvalidPayload
}

// Store keeps each device's readings in monthly CSV files under dataDir.
type Store struct {
	dataDir string
	now     func() time.Time

	mu     sync.Mutex
	latest map[string]*types.Reading
}

// Server serves the collector's HTTP API.
type Server struct {
	store *Store
	db    *readingdb.DB
	hub   *livefeed.Hub
	log   *slog.Logger
}
