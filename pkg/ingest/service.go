package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/NotCoffee418/weather_telemetry/pkg/forwarder"
	"github.com/NotCoffee418/weather_telemetry/pkg/frame"
	"github.com/NotCoffee418/weather_telemetry/pkg/render"
	"github.com/NotCoffee418/weather_telemetry/pkg/types"
)

// Loop polls one sensor, logs every reading and forwards it.
// Everything runs on the goroutine that called Run.
type Loop struct {
	cfg  Config
	deps Deps
	log  *slog.Logger

	state atomic.Int32
	ip    string
}

func New(cfg Config, deps Deps) *Loop {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Renderer == nil {
		deps.Renderer = render.Nop{}
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Sleep == nil {
		deps.Sleep = sleep
	}
	return &Loop{
		cfg:  cfg,
		deps: deps,
		log:  deps.Logger.With("device", cfg.DeviceID),
	}
}

func (l *Loop) State() State {
	return State(l.state.Load())
}

func (l *Loop) setState(s State) {
	if State(l.state.Swap(int32(s))) == s {
		return
	}
	l.log.Debug("state change", "state", s.String())
	if l.deps.OnStateChange != nil {
		l.deps.OnStateChange(s)
	}
}

// Run returns when ctx is cancelled or the durable log fails.
// Device and network failures are retried after a fixed delay.
func (l *Loop) Run(ctx context.Context) error {
	defer l.setState(StateStopped)

	l.log.Info("initializing")
	if err := l.deps.Sleep(ctx, l.cfg.StartupDelay); err != nil {
		return err
	}

	ip, err := l.discoverNetwork(ctx)
	if err != nil {
		return err
	}
	l.ip = ip

	for {
		src, err := l.connectDevice(ctx)
		if err != nil {
			return err
		}

		err = l.runDevice(ctx, src)
		if closeErr := src.Close(); closeErr != nil {
			l.log.Warn("close device", "error", closeErr)
		}
		if !errors.Is(err, ErrDeviceUnreachable) {
			return err
		}

		l.log.Warn("sensor not reachable", "error", err)
		if err := l.deps.Sleep(ctx, l.cfg.DeviceRetryDelay); err != nil {
			return err
		}
	}
}

func (l *Loop) discoverNetwork(ctx context.Context) (string, error) {
	l.setState(StateDiscoveringNetwork)
	for {
		ip, err := l.deps.Resolver.Resolve(ctx)
		if err == nil {
			l.log.Info("network available", "ip", ip)
			return ip, nil
		}
		if ctx.Err() != nil {
			return "", ctx.Err()
		}

		l.log.Warn("no internet connection", "error", errors.Join(ErrNetworkUnreachable, err))
		if err := l.deps.Sleep(ctx, l.cfg.NetworkRetryDelay); err != nil {
			return "", err
		}
	}
}

func (l *Loop) connectDevice(ctx context.Context) (FrameSource, error) {
	l.setState(StateConnectingDevice)
	for {
		l.log.Info("connecting to sensor")
		src, err := l.deps.Connector.Connect(ctx)
		if err == nil {
			l.log.Info("connected")
			return src, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		l.log.Warn("sensor not reachable", "error", errors.Join(ErrDeviceUnreachable, err))
		if err := l.deps.Sleep(ctx, l.cfg.DeviceRetryDelay); err != nil {
			return nil, err
		}
	}
}

func (l *Loop) runDevice(ctx context.Context, src FrameSource) error {
	if err := l.deps.Sleep(ctx, l.cfg.SettleDelay); err != nil {
		return err
	}
	if err := l.warmup(ctx, src); err != nil {
		return err
	}

	l.setState(StateSteady)
	for {
		cycle, err := l.Step(ctx, src)
		switch {
		case errors.Is(err, ErrDecodeRetriesExhausted):
			l.log.Warn("no valid frame", "error", err)
			if err := l.deps.Sleep(ctx, l.cfg.DecodeRetryDelay); err != nil {
				return err
			}
			continue
		case err != nil:
			return err
		}

		if cycle.NetworkFailed() {
			if err := l.deps.Sleep(ctx, l.cfg.NetworkRetryDelay); err != nil {
				return err
			}
		}
	}
}

// warmup drops the first readings, the sensor replays stale buffered data after connecting.
func (l *Loop) warmup(ctx context.Context, src FrameSource) error {
	l.setState(StateWarmup)
	for i := 0; i < l.cfg.WarmupDiscard; i++ {
		_, err := l.Next(ctx, src)
		if err == nil {
			l.log.Debug("discarded warm-up reading", "n", i+1)
			continue
		}
		if errors.Is(err, ErrDeviceUnreachable) || ctx.Err() != nil {
			return err
		}
		if err := l.deps.Sleep(ctx, l.cfg.DecodeRetryDelay); err != nil {
			return err
		}
	}
	return nil
}

// Next reads windows until one decodes. Past MaxDecodeRetries reads it gives
// up with ErrDecodeRetriesExhausted wrapping the last decode error.
func (l *Loop) Next(ctx context.Context, src FrameSource) (*types.Reading, error) {
	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		raw, err := src.ReadFrame()
		if err != nil {
			return nil, errors.Join(ErrDeviceUnreachable, err)
		}

		reading, err := frame.DecodeReading(raw, l.cfg.Layout, l.deps.Now(), l.ip)
		if err == nil {
			return reading, nil
		}
		if len(raw) > 0 {
			l.log.Debug("rejected frame", "attempt", attempt, "error", err)
		}

		if l.cfg.MaxDecodeRetries > 0 && attempt >= l.cfg.MaxDecodeRetries {
			return nil, fmt.Errorf("%w after %d reads: %w", ErrDecodeRetriesExhausted, attempt, err)
		}
	}
}

// Step runs one steady-state iteration: acquire, decode, log, render, forward.
// Only decode, device and log failures are returned as errors.
func (l *Loop) Step(ctx context.Context, src FrameSource) (Cycle, error) {
	reading, err := l.Next(ctx, src)
	if err != nil {
		return Cycle{}, err
	}
	cycle := Cycle{Reading: reading}

	readingLog := l.deps.OpenLog(reading.Timestamp)
	cycle.Rotated, err = readingLog.Rotate(l.cfg.RotationCeiling, l.cfg.RotationChunk)
	if err != nil {
		return cycle, fmt.Errorf("%w: rotate: %w", ErrLogIO, err)
	}
	if cycle.Rotated {
		l.log.Info("dropped oldest day from log", "rows", l.cfg.RotationChunk)
	}
	if err := readingLog.Append(reading); err != nil {
		return cycle, fmt.Errorf("%w: append: %w", ErrLogIO, err)
	}

	cycle.RenderErr = l.render(readingLog)
	if cycle.RenderErr != nil {
		l.log.Warn("render failed", "error", cycle.RenderErr)
	}

	l.log.Info("reading", "data", string(reading.ToJsonBytes()))

	for _, f := range l.deps.Forwarders {
		err := f.Forward(ctx, reading)
		switch {
		case err == nil:
		case errors.Is(err, forwarder.ErrEncode):
			l.log.Error("reading not forwardable", "sink", f.Name(), "error", err)
		default:
			err = errors.Join(ErrNetworkUnreachable, err)
			l.log.Warn("destination not reachable", "sink", f.Name(), "error", err)
		}
		cycle.Forwarded = append(cycle.Forwarded, ForwardResult{Sink: f.Name(), Err: err})
	}
	return cycle, nil
}

func (l *Loop) render(readingLog ReadingLog) error {
	tail, err := readingLog.Tail(l.cfg.TailSize)
	if err != nil {
		return err
	}
	return l.deps.Renderer.Render(l.cfg.DeviceID, tail)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
