package livefeed

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/NotCoffee418/weather_telemetry/pkg/types"
	"github.com/gorilla/websocket"
)

var ErrRetriesExhausted = errors.New("live feed: max reconnect attempts reached")

// LatestFunc returns the newest stored reading of a device, nil if none.
type LatestFunc func(deviceID string) *types.Reading

// Hub fans readings out to the websocket clients subscribed to each device.
type Hub struct {
	latest   LatestFunc
	upgrader websocket.Upgrader
	log      *slog.Logger

	mu      sync.RWMutex
	clients map[string]map[*client]struct{}
}

type client struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
}

// Listener follows one device's feed on a collector. Zero fields take the defaults below.
type Listener struct {
	Host     string
	DeviceID string

	MaxRetries     int
	BaseRetryDelay time.Duration
	MaxRetryDelay  time.Duration
	ReadTimeout    time.Duration
	PingInterval   time.Duration

	Logger *slog.Logger
}

const (
	defaultMaxRetries     = 10
	defaultBaseRetryDelay = 2 * time.Second
	defaultMaxRetryDelay  = 60 * time.Second
	defaultPingInterval   = 30 * time.Second
	// readings arrive once a minute, pongs keep the deadline moving in between
	defaultReadTimeout    = 75 * time.Second
)
