package forwarder

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/NotCoffee418/weather_telemetry/pkg/types"
)

// HTTPForwarder posts readings to a collector at {base}/api/{device}.
type HTTPForwarder struct {
	endpoint string
	client   *http.Client
}

func NewHTTPForwarder(collectorURL, deviceID string, timeout time.Duration) *HTTPForwarder {
	return &HTTPForwarder{
		endpoint: strings.TrimRight(collectorURL, "/") + "/api/" + url.PathEscape(deviceID),
		client:   &http.Client{Timeout: timeout},
	}
}

func (f *HTTPForwarder) Name() string {
	return "http " + f.endpoint
}

func (f *HTTPForwarder) Forward(ctx context.Context, reading *types.Reading) error {
	body, err := encode(reading)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/plain")

	resp, err := f.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode/100 != 2 {
		return &RejectedError{StatusCode: resp.StatusCode}
	}
	return nil
}
