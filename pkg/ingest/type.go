package ingest

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/NotCoffee418/weather_telemetry/pkg/forwarder"
	"github.com/NotCoffee418/weather_telemetry/pkg/frame"
	"github.com/NotCoffee418/weather_telemetry/pkg/render"
	"github.com/NotCoffee418/weather_telemetry/pkg/types"
)

var (
	ErrDeviceUnreachable      = errors.New("device unreachable")
	ErrNetworkUnreachable     = errors.New("network unreachable")
	ErrDecodeRetriesExhausted = errors.New("decode retries exhausted")
	ErrLogIO                  = errors.New("durable log failure")
)

type State int32

const (
	StateIdle State = iota
	StateDiscoveringNetwork
	StateConnectingDevice
	StateWarmup
	StateSteady
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateDiscoveringNetwork:
		return "DISCOVERING_NETWORK"
	case StateConnectingDevice:
		return "CONNECTING_DEVICE"
	case StateWarmup:
		return "WARMUP"
	case StateSteady:
		return "STEADY_STATE"
	case StateStopped:
		return "STOPPED"
	default:
		return "UNKNOWN"
	}
}

// FrameSource yields raw windows from a connected device. ReadFrame blocks
// for at most the device's own read timeout.
type FrameSource interface {
	ReadFrame() ([]byte, error)
	Close() error
}

// Connector opens and initialises the device.
type Connector interface {
	Connect(ctx context.Context) (FrameSource, error)
}

// IPResolver finds the origin identifier stamped on every reading.
type IPResolver interface {
	Resolve(ctx context.Context) (string, error)
}

// ReadingLog is the durable log a reading is appended to.
type ReadingLog interface {
	Rotate(ceiling, chunk int) (bool, error)
	Append(r *types.Reading) error
	Tail(n int) ([]*types.Reading, error)
}

type Config struct {
	DeviceID string
	Layout   frame.Layout

	WarmupDiscard    int
	MaxDecodeRetries int // 0 retries malformed frames forever

	StartupDelay      time.Duration
	DeviceRetryDelay  time.Duration
	NetworkRetryDelay time.Duration
	DecodeRetryDelay  time.Duration
	SettleDelay       time.Duration

	RotationCeiling int
	RotationChunk   int
	TailSize        int
}

type Deps struct {
	Resolver   IPResolver
	Connector  Connector
	OpenLog    func(capturedAt time.Time) ReadingLog
	Renderer   render.Renderer
	Forwarders []forwarder.Forwarder
	Logger     *slog.Logger

	// Optional, for tests and status reporting.
	Now           func() time.Time
	Sleep         func(ctx context.Context, d time.Duration) error
	OnStateChange func(State)
}

// ForwardResult is the outcome of handing one reading to one sink.
type ForwardResult struct {
	Sink string
	Err  error
}

// Cycle is the outcome of one steady-state iteration.
type Cycle struct {
	Reading   *types.Reading
	Rotated   bool
	RenderErr error
	Forwarded []ForwardResult
}

// NetworkFailed reports whether any sink was unreachable. Encoding failures
// do not count, waiting would not fix them.
func (c Cycle) NetworkFailed() bool {
	for _, f := range c.Forwarded {
		if errors.Is(f.Err, ErrNetworkUnreachable) {
			return true
		}
	}
	return false
}
