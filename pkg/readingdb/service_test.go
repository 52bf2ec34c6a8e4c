package readingdb

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/NotCoffee418/weather_telemetry/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "history", "wt-readings.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func sample(ts time.Time, temp float64) *types.Reading {
	return &types.Reading{
		Timestamp:           ts,
		IP:                  "198.51.100.20",
		Temp:                types.Float(temp),
		Humidity:            55.4,
		WindSpeed:           3.2,
		WindDirection:       270,
		NorthDirection:      12.5,
		AtmosphericPressure: 1013.2,
		Rainfall:            0.4,
		Voltage:             12.1,
	}
}

var base = time.Date(2024, time.November, 2, 14, 0, 0, 0, time.UTC)

func TestInsertAndLatest(t *testing.T) {
	db := openTestDB(t)

	for i := 0; i < 5; i++ {
		require.NoError(t, db.InsertReading("dev_01", sample(base.Add(time.Duration(i)*time.Minute), 20+float64(i))))
	}
	require.NoError(t, db.InsertReading("dev_02", sample(base, 5)))

	latest, err := db.LatestReadings("dev_01", 3)
	require.NoError(t, err)
	require.Len(t, latest, 3)
	assert.EqualValues(t, 22, latest[0].Temp)
	assert.EqualValues(t, 24, latest[2].Temp)
	assert.Equal(t, base.Add(4*time.Minute).Unix(), latest[2].Timestamp.Unix())
	assert.Equal(t, 270, latest[2].WindDirection)
	assert.Equal(t, "198.51.100.20", latest[2].IP)

	none, err := db.LatestReadings("dev_99", 3)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestInsertReplacesSameSecond(t *testing.T) {
	db := openTestDB(t)

	require.NoError(t, db.InsertReading("dev_01", sample(base, 20)))
	require.NoError(t, db.InsertReading("dev_01", sample(base, 21)))

	latest, err := db.LatestReadings("dev_01", 10)
	require.NoError(t, err)
	require.Len(t, latest, 1)
	assert.EqualValues(t, 21, latest[0].Temp)
}

func TestReadingsBetweenAndDevices(t *testing.T) {
	db := openTestDB(t)

	require.NoError(t, db.InsertReading("dev_01", sample(base.Add(-time.Minute), 1)))
	require.NoError(t, db.InsertReading("dev_01", sample(base, 2)))
	require.NoError(t, db.InsertReading("dev_02", sample(base.Add(59*time.Minute), 3)))
	require.NoError(t, db.InsertReading("dev_03", sample(base.Add(time.Hour), 4)))

	readings, err := db.ReadingsBetween("dev_01", base, base.Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, readings, 1)
	assert.EqualValues(t, 2, readings[0].Temp)

	devices, err := db.DevicesBetween(base, base.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, []string{"dev_01", "dev_02"}, devices)
}

func TestDeleteReadingsBefore(t *testing.T) {
	db := openTestDB(t)

	require.NoError(t, db.InsertReading("dev_01", sample(base.Add(-48*time.Hour), 1)))
	require.NoError(t, db.InsertReading("dev_01", sample(base, 2)))

	n, err := db.DeleteReadingsBefore(base.Add(-time.Hour))
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	left, err := db.LatestReadings("dev_01", 10)
	require.NoError(t, err)
	assert.Len(t, left, 1)
}

func TestHourlyUpsert(t *testing.T) {
	db := openTestDB(t)

	last, err := db.LastAggregatedHour()
	require.NoError(t, err)
	assert.Zero(t, last)

	agg := &HourlyAggregate{
		DeviceID:    "dev_01",
		HourStart:   base.Unix(),
		AvgTemp:     20.5,
		SampleCount: 60,
	}
	require.NoError(t, db.UpsertHourly(agg))
	agg.AvgTemp = 21
	require.NoError(t, db.UpsertHourly(agg))
	require.NoError(t, db.UpsertHourly(&HourlyAggregate{DeviceID: "dev_01", HourStart: base.Add(-time.Hour).Unix(), SampleCount: 1}))

	rows, err := db.HourlyAggregates("dev_01", base.Add(-2*time.Hour))
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, base.Add(-time.Hour).Unix(), rows[0].HourStart)
	assert.Equal(t, 21.0, rows[1].AvgTemp)
	assert.EqualValues(t, 60, rows[1].SampleCount)

	last, err = db.LastAggregatedHour()
	require.NoError(t, err)
	assert.Equal(t, base.Unix(), last)
}

func TestOpenIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wt-readings.db")

	db, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, db.InsertReading("dev_01", sample(base, 20)))
	require.NoError(t, db.Close())

	db, err = Open(path)
	require.NoError(t, err)
	defer db.Close()

	latest, err := db.LatestReadings("dev_01", 1)
	require.NoError(t, err)
	assert.Len(t, latest, 1)
}
