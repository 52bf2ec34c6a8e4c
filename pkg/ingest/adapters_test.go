package ingest

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/NotCoffee418/weather_telemetry/pkg/port_reader"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// replyLine answers every read with the same bytes and records writes.
type replyLine struct {
	reply   []byte
	sent    bytes.Buffer
	replied bool
	closed  bool
}

func (l *replyLine) Read(p []byte) (int, error) {
	if l.replied {
		return 0, io.EOF
	}
	l.replied = true
	return copy(p, l.reply), nil
}

func (l *replyLine) Write(p []byte) (int, error) { return l.sent.Write(p) }

func (l *replyLine) Close() error {
	l.closed = true
	return nil
}

func TestSerialConnectorHandshake(t *testing.T) {
	var logs bytes.Buffer
	line := &replyLine{reply: []byte("OK\r\n")}
	c := &SerialConnector{
		Options:         port_reader.Options{PortName: "/dev/ttyUSB0", FrameLength: 43},
		InitCommand:     "AT+AutoSend=60",
		HandshakeLength: 100,
		Logger:          slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug})),
		open: func(opts port_reader.Options) (*port_reader.SensorPort, error) {
			return port_reader.NewSensorPort(line, opts.FrameLength), nil
		},
	}

	src, err := c.Connect(context.Background())
	require.NoError(t, err)
	require.NotNil(t, src)
	assert.Equal(t, "AT+AutoSend=60", line.sent.String())
	assert.Contains(t, logs.String(), "sensor handshake")
	assert.Contains(t, logs.String(), "/dev/ttyUSB0")
}

func TestSerialConnectorHandshakeFailureClosesPort(t *testing.T) {
	line := &replyLine{}
	c := &SerialConnector{
		Options:         port_reader.Options{FrameLength: 43},
		InitCommand:     "AT+AutoSend=60",
		HandshakeLength: 100,
		open: func(opts port_reader.Options) (*port_reader.SensorPort, error) {
			return port_reader.NewSensorPort(line, opts.FrameLength), nil
		},
	}

	_, err := c.Connect(context.Background())
	assert.ErrorIs(t, err, port_reader.ErrNoResponse)
	assert.True(t, line.closed)
}

func TestSerialConnectorCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	opened := false
	c := &SerialConnector{
		open: func(port_reader.Options) (*port_reader.SensorPort, error) {
			opened = true
			return nil, errors.New("should not open")
		},
	}

	_, err := c.Connect(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, opened)
}

func TestStaticResolver(t *testing.T) {
	ip, err := StaticResolver("203.0.113.7").Resolve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "203.0.113.7", ip)

	_, err = StaticResolver("").Resolve(context.Background())
	assert.Error(t, err)
}
