package csvlog

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/NotCoffee418/weather_telemetry/pkg/frame"
	"github.com/NotCoffee418/weather_telemetry/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readingAt(t time.Time, temp float64) *types.Reading {
	return &types.Reading{
		Timestamp:           t,
		IP:                  "203.0.113.7",
		Temp:                types.Float(temp),
		Humidity:            40.5,
		WindSpeed:           1.5,
		WindDirection:       90,
		NorthDirection:      3.0,
		AtmosphericPressure: 1008.4,
		Rainfall:            0.2,
		Voltage:             12.4,
	}
}

func TestPathFor(t *testing.T) {
	ts := time.Date(2024, time.October, 30, 12, 0, 0, 0, time.UTC)
	assert.Equal(t,
		filepath.Join("data", "dev_04", "2024-10", "dev_04_2024-10-30.csv"),
		PathFor("data", "dev_04", LayoutDaily, ts))
	assert.Equal(t,
		filepath.Join("data", "dev_06.csv"),
		PathFor("data", "dev_06", LayoutSingle, ts))
}

func TestAppendToEmptyLogWritesHeaderAndRow(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dev_01", "2024-10", "dev_01_2024-10-30.csv")
	log := Open(path)

	captured := time.Date(2024, time.October, 30, 9, 15, 42, 0, time.Local)
	r, err := frame.DecodeReading([]byte("$12345123451234123451234512345123451234"), frame.WeatherLayout(), captured, "198.51.100.4")
	require.NoError(t, err)
	require.NoError(t, log.Append(r))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSuffix(string(data), "\n"), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, types.Header, lines[0])
	assert.Equal(t, "2024-10-30 09:15:42,198.51.100.4,12345.0,12345.0,1234.0,123,45123.0,451234.0,5123451.0,234.0", lines[1])
}

func TestLastRoundTrip(t *testing.T) {
	log := Open(filepath.Join(t.TempDir(), "dev_01.csv"))
	_, err := log.Last()
	assert.True(t, os.IsNotExist(err))

	require.NoError(t, log.EnsureHeader())
	_, err = log.Last()
	assert.ErrorIs(t, err, ErrEmptyLog)

	base := time.Date(2024, time.October, 30, 0, 0, 0, 0, time.Local)
	for i := 0; i < 3; i++ {
		require.NoError(t, log.Append(readingAt(base.Add(time.Duration(i)*time.Minute), 20+float64(i))))
	}

	last, err := log.Last()
	require.NoError(t, err)
	assert.Equal(t, *readingAt(base.Add(2*time.Minute), 22), *last)
}

func TestTail(t *testing.T) {
	log := Open(filepath.Join(t.TempDir(), "dev_01.csv"))
	base := time.Date(2024, time.October, 30, 0, 0, 0, 0, time.Local)
	for i := 0; i < 10; i++ {
		require.NoError(t, log.Append(readingAt(base.Add(time.Duration(i)*time.Minute), float64(i))))
	}

	tail, err := log.Tail(4)
	require.NoError(t, err)
	require.Len(t, tail, 4)
	assert.EqualValues(t, 6, tail[0].Temp)
	assert.EqualValues(t, 9, tail[3].Temp)

	all, err := log.Tail(0)
	require.NoError(t, err)
	assert.Len(t, all, 10)
}

func TestRotateDropsOldestChunkAndKeepsHeader(t *testing.T) {
	const (
		rowsPerDay = 1440
		days       = 2
		ceiling    = rowsPerDay * days
	)
	path := filepath.Join(t.TempDir(), "dev_01.csv")
	var b strings.Builder
	b.WriteString(types.Header + "\n")
	for i := 0; i < ceiling; i++ {
		fmt.Fprintf(&b, "row-%d\n", i)
	}
	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0644))
	log := Open(path)

	// header + ceiling rows exceeds the ceiling by one line
	rotated, err := log.Rotate(ceiling, rowsPerDay)
	require.NoError(t, err)
	assert.True(t, rotated)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSuffix(string(data), "\n"), "\n")
	require.Len(t, lines, 1+ceiling-rowsPerDay)
	assert.Equal(t, types.Header, lines[0])
	assert.Equal(t, fmt.Sprintf("row-%d", rowsPerDay), lines[1])
	assert.Equal(t, fmt.Sprintf("row-%d", ceiling-1), lines[len(lines)-1])

	rotated, err = log.Rotate(ceiling, rowsPerDay)
	require.NoError(t, err)
	assert.False(t, rotated)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp file left behind")
}

func TestRotateMissingFile(t *testing.T) {
	rotated, err := Open(filepath.Join(t.TempDir(), "missing.csv")).Rotate(10, 5)
	require.NoError(t, err)
	assert.False(t, rotated)
}

func TestLineCount(t *testing.T) {
	log := Open(filepath.Join(t.TempDir(), "dev_01.csv"))
	require.NoError(t, log.Append(readingAt(time.Now().Truncate(time.Second), 1)))
	n, err := log.lineCount()
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}
