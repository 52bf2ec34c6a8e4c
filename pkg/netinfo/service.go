package netinfo

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	probing "github.com/prometheus-community/pro-bing"
)

var ErrEmptyAddress = errors.New("lookup service returned an empty address")

// PublicIP asks a plain-text lookup service (ipify style) for our public address.
func PublicIP(ctx context.Context, client *http.Client, lookupURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, lookupURL, nil)
	if err != nil {
		return "", err
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return "", fmt.Errorf("ip lookup: unexpected status %s", resp.Status)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 256))
	if err != nil {
		return "", err
	}
	ip := strings.TrimSpace(string(body))
	if ip == "" {
		return "", ErrEmptyAddress
	}
	return ip, nil
}

// Ping sends a single unprivileged (UDP) ping to host.
func Ping(host string, timeout time.Duration) (time.Duration, error) {
	pinger, err := probing.NewPinger(host)
	if err != nil {
		return 0, err
	}

	pinger.Count = 1
	pinger.Timeout = timeout
	pinger.SetPrivileged(false)

	if err := pinger.Run(); err != nil {
		return 0, err
	}

	stats := pinger.Statistics()
	if stats.PacketsRecv > 0 {
		return stats.AvgRtt, nil
	}
	return 0, fmt.Errorf("no response from %s", host)
}
