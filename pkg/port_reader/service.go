package port_reader

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/jacobsa/go-serial/serial"
)

// Open the sensor's serial port. Reads return after ReadTimeout of line silence.
func Open(opts Options) (*SensorPort, error) {
	options := serial.OpenOptions{
		PortName:              opts.PortName,
		BaudRate:              opts.Baudrate,
		DataBits:              8,
		StopBits:              1,
		ParityMode:            serial.PARITY_NONE,
		MinimumReadSize:       0,
		InterCharacterTimeout: interCharacterTimeout(opts.ReadTimeout),
	}

	port, err := serial.Open(options)
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port: %w", err)
	}

	slog.Info("connected to sensor port", "port", opts.PortName, "baudrate", opts.Baudrate)
	p := NewSensorPort(port, opts.FrameLength)
	p.port = opts.PortName
	return p, nil
}

// NewSensorPort wraps an already open transport.
func NewSensorPort(rwc io.ReadWriteCloser, frameLength int) *SensorPort {
	return &SensorPort{
		port:        "custom",
		serialPort:  rwc,
		frameLength: frameLength,
	}
}

// Handshake sends the init command (e.g. AT+AutoSend=60) and waits for any reply.
func (p *SensorPort) Handshake(command string, replyLength int) ([]byte, error) {
	if p.serialPort == nil {
		return nil, ErrNotConnected
	}
	if _, err := p.serialPort.Write([]byte(command)); err != nil {
		return nil, fmt.Errorf("write init command: %w", err)
	}

	reply, err := p.read(replyLength)
	if err != nil {
		return nil, err
	}
	if len(reply) == 0 {
		return nil, ErrNoResponse
	}
	return reply, nil
}

// ReadFrame returns up to one frame length of bytes. A short or empty
// window means the line went quiet before the frame completed.
func (p *SensorPort) ReadFrame() ([]byte, error) {
	if p.serialPort == nil {
		return nil, ErrNotConnected
	}
	return p.read(p.frameLength)
}

func (p *SensorPort) Close() error {
	if p.serialPort == nil {
		return nil
	}
	err := p.serialPort.Close()
	p.serialPort = nil
	slog.Info("disconnected from sensor port", "port", p.port)
	return err
}

func (p *SensorPort) read(n int) ([]byte, error) {
	buf := make([]byte, n)
	got := 0
	for got < n {
		c, err := p.serialPort.Read(buf[got:])
		got += c
		if errors.Is(err, io.EOF) || (err == nil && c == 0) {
			// read timeout on a quiet line
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read serial port: %w", err)
		}
	}
	return buf[:got], nil
}

// go-serial takes the timeout in milliseconds and the driver rounds to 100ms
// steps, refusing anything past MaxReadTimeout.
func interCharacterTimeout(d time.Duration) uint {
	ms := d.Milliseconds()
	if ms < 100 {
		ms = 100
	}
	if limit := MaxReadTimeout.Milliseconds(); ms > limit {
		ms = limit
	}
	return uint(ms)
}
