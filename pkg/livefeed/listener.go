package livefeed

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/NotCoffee418/weather_telemetry/pkg/types"
	"github.com/gorilla/websocket"
)

// Run follows ws://host/ws/{deviceID} and calls fn for each reading.
// It returns nil once ctx is cancelled, or ErrRetriesExhausted.
func (l *Listener) Run(ctx context.Context, fn func(reading *types.Reading)) error {
	l.applyDefaults()
	log := l.Logger.With("device", l.DeviceID)

	// WebSocket server URL
	u := url.URL{Scheme: "ws", Host: l.Host, Path: "/ws/" + url.PathEscape(l.DeviceID)}

	dialer := *websocket.DefaultDialer
	dialer.HandshakeTimeout = 10 * time.Second

	retryCount := 0
	for {
		if retryCount > 0 {
			// Calculate retry delay with exponential backoff
			retryDelay := l.BaseRetryDelay << (retryCount - 1)
			if retryDelay > l.MaxRetryDelay || retryDelay <= 0 {
				retryDelay = l.MaxRetryDelay
			}
			log.Info("retrying connection", "in", retryDelay, "attempt", retryCount+1, "max", l.MaxRetries)
			select {
			case <-time.After(retryDelay):
			case <-ctx.Done():
				return nil
			}
		}

		log.Info("connecting", "url", u.String())
		c, _, err := dialer.DialContext(ctx, u.String(), nil)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			log.Warn("connection failed", "error", err)
			retryCount++
			if retryCount >= l.MaxRetries {
				return fmt.Errorf("%w (%d): %w", ErrRetriesExhausted, l.MaxRetries, err)
			}
			continue
		}

		log.Info("connected, accepting readings")
		retryCount = 0

		connectionBroken := l.handleConnection(ctx, c, fn, log)
		c.Close()
		if !connectionBroken {
			return nil
		}
		log.Warn("connection lost, will retry")
		retryCount = 1
	}
}

func (l *Listener) applyDefaults() {
	if l.MaxRetries <= 0 {
		l.MaxRetries = defaultMaxRetries
	}
	if l.BaseRetryDelay <= 0 {
		l.BaseRetryDelay = defaultBaseRetryDelay
	}
	if l.MaxRetryDelay <= 0 {
		l.MaxRetryDelay = defaultMaxRetryDelay
	}
	if l.ReadTimeout <= 0 {
		l.ReadTimeout = defaultReadTimeout
	}
	if l.PingInterval <= 0 {
		l.PingInterval = defaultPingInterval
	}
	if l.Logger == nil {
		l.Logger = slog.Default()
	}
}

// handleConnection reads until the connection breaks (true) or ctx ends (false).
func (l *Listener) handleConnection(
	ctx context.Context,
	c *websocket.Conn,
	fn func(reading *types.Reading),
	log *slog.Logger,
) bool {
	done := make(chan struct{})

	c.SetReadDeadline(time.Now().Add(l.ReadTimeout))
	c.SetPongHandler(func(string) error {
		return c.SetReadDeadline(time.Now().Add(l.ReadTimeout))
	})

	go func() {
		defer close(done)
		for {
			messageType, message, err := c.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					log.Warn("websocket error", "error", err)
				} else {
					log.Debug("connection closed", "error", err)
				}
				return
			}

			c.SetReadDeadline(time.Now().Add(l.ReadTimeout))

			if messageType != websocket.TextMessage {
				log.Debug("unexpected message type", "type", messageType)
				continue
			}
			if reading := types.ReadingFromJsonBytes(message); reading != nil {
				fn(reading)
			} else {
				log.Warn("failed to parse reading", "message", string(message))
			}
		}
	}()

	ticker := time.NewTicker(l.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return true
		case <-ticker.C:
			if err := c.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout)); err != nil {
				log.Debug("failed to send ping", "error", err)
			}
		case <-ctx.Done():
			err := c.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			if err != nil {
				log.Debug("error sending close message", "error", err)
			}

			// Wait for close confirmation or timeout
			select {
			case <-done:
			case <-time.After(time.Second):
			}
			return false
		}
	}
}
