package forwarder

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/NotCoffee418/weather_telemetry/pkg/types"
)

var (
	ErrRejected     = errors.New("collector rejected reading")
	ErrNotConnected = errors.New("broker not connected")
	ErrEncode       = errors.New("reading cannot be encoded")
)

// Forwarder hands a reading to a remote consumer.
type Forwarder interface {
	Name() string
	Forward(ctx context.Context, reading *types.Reading) error
}

func encode(reading *types.Reading) ([]byte, error) {
	payload, err := json.Marshal(reading)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEncode, err)
	}
	return payload, nil
}

// RejectedError carries the collector's status code.
type RejectedError struct {
	StatusCode int
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("%s: status %d", ErrRejected, e.StatusCode)
}

func (e *RejectedError) Unwrap() error {
	return ErrRejected
}
