package port_reader

import (
	"errors"
	"io"
	"time"
)

var (
	ErrNotConnected = errors.New("serial port not connected")
	ErrNoResponse   = errors.New("device did not answer the init command")
)

// MaxReadTimeout is the longest silence termios VTIME can express (255 deciseconds).
const MaxReadTimeout = 25500 * time.Millisecond

type Options struct {
	PortName    string
	Baudrate    uint
	ReadTimeout time.Duration
	FrameLength int
}

// SensorPort reads fixed-size windows from the sensor's serial line.
// It is owned by a single goroutine.
type SensorPort struct {
	port        string
	serialPort  io.ReadWriteCloser
	frameLength int
}
