package netinfo

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublicIP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("203.0.113.7\n"))
	}))
	defer srv.Close()

	ip, err := PublicIP(context.Background(), srv.Client(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "203.0.113.7", ip)
}

func TestPublicIPErrors(t *testing.T) {
	empty := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer empty.Close()
	_, err := PublicIP(context.Background(), empty.Client(), empty.URL)
	assert.ErrorIs(t, err, ErrEmptyAddress)

	failing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer failing.Close()
	_, err = PublicIP(context.Background(), failing.Client(), failing.URL)
	assert.ErrorContains(t, err, "503")

	failing.Close()
	_, err = PublicIP(context.Background(), http.DefaultClient, failing.URL)
	assert.Error(t, err)
}
