package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/NotCoffee418/weather_telemetry/pkg/csvlog"
	"github.com/NotCoffee418/weather_telemetry/pkg/netinfo"
	"github.com/NotCoffee418/weather_telemetry/pkg/port_reader"
)

// SerialConnector opens the sensor port and sends the auto-send command.
type SerialConnector struct {
	Options         port_reader.Options
	InitCommand     string
	HandshakeLength int
	Logger          *slog.Logger

	// open defaults to port_reader.Open
	open func(port_reader.Options) (*port_reader.SensorPort, error)
}

func (c *SerialConnector) Connect(ctx context.Context) (FrameSource, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	log := c.Logger
	if log == nil {
		log = slog.Default()
	}
	open := c.open
	if open == nil {
		open = port_reader.Open
	}

	port, err := open(c.Options)
	if err != nil {
		return nil, err
	}
	reply, err := port.Handshake(c.InitCommand, c.HandshakeLength)
	if err != nil {
		port.Close()
		return nil, fmt.Errorf("handshake: %w", err)
	}
	log.Debug("sensor handshake", "port", c.Options.PortName, "reply", string(reply))
	return port, nil
}

// PublicIPResolver optionally pings PingHost, then asks the lookup service
// for the public address.
type PublicIPResolver struct {
	Client      *http.Client
	LookupURL   string
	PingHost    string
	PingTimeout time.Duration
}

func (r *PublicIPResolver) Resolve(ctx context.Context) (string, error) {
	if r.PingHost != "" {
		rtt, err := netinfo.Ping(r.PingHost, r.PingTimeout)
		if err != nil {
			return "", fmt.Errorf("ping %s: %w", r.PingHost, err)
		}
		slog.Debug("ping ok", "host", r.PingHost, "rtt", rtt)
	}

	client := r.Client
	if client == nil {
		client = http.DefaultClient
	}
	return netinfo.PublicIP(ctx, client, r.LookupURL)
}

// StaticResolver skips discovery, for stations without internet access.
type StaticResolver string

func (s StaticResolver) Resolve(context.Context) (string, error) {
	if s == "" {
		return "", errors.New("empty static origin")
	}
	return string(s), nil
}

// CSVLogOpener picks the log file for a capture time.
func CSVLogOpener(dataDir, deviceID, layout string) func(time.Time) ReadingLog {
	return func(t time.Time) ReadingLog {
		return csvlog.Open(csvlog.PathFor(dataDir, deviceID, layout, t))
	}
}
