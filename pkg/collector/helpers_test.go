package collector

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/NotCoffee418/weather_telemetry/pkg/aggregator"
	"github.com/NotCoffee418/weather_telemetry/pkg/csvlog"
	"github.com/NotCoffee418/weather_telemetry/pkg/types"
	"github.com/stretchr/testify/require"
)

func csvTail(path string) ([]*types.Reading, error) {
	return csvlog.Open(path).Tail(0)
}

func relPath(t *testing.T, s *Store, deviceID string) string {
	t.Helper()
	rel, err := filepath.Rel(s.dataDir, s.PathFor(deviceID, storeNow))
	require.NoError(t, err)
	return rel
}

func aggregatorRun(s *Server, now time.Time) (aggregator.RunSummary, error) {
	return aggregator.AggregateAndCleanup(s.db, now, 0)
}
