package aggregator

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/NotCoffee418/weather_telemetry/pkg/readingdb"
)

// roundToHourStart returns the Unix timestamp of the start of the hour for the given time
func roundToHourStart(t time.Time) int64 {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), 0, 0, 0, time.UTC).Unix()
}

// getHourEnd returns the Unix timestamp of the last second of the hour (next hour start - 1)
func getHourEnd(hourStart int64) int64 {
	return time.Unix(hourStart, 0).Add(time.Hour).Unix() - 1
}

// AggregateHour summarises one device's readings for the hour starting at hourStart.
// It reports false when the hour has no readings, in which case nothing is written.
func AggregateHour(db *readingdb.DB, deviceID string, hourStart int64) (bool, error) {
	hourEnd := getHourEnd(hourStart)

	query := `
		SELECT
			COUNT(*),
			COALESCE(AVG(temp), 0),
			COALESCE(AVG(humidity), 0),
			COALESCE(AVG(ws), 0),
			COALESCE(MAX(ws), 0),
			COALESCE(AVG(atmospheric_pressure), 0),
			COALESCE(AVG(voltage), 0),
			COALESCE(MAX(rainfall) - MIN(rainfall), 0)
		FROM readings
		WHERE device_id = ? AND timestamp >= ? AND timestamp <= ?
	`

	agg := readingdb.HourlyAggregate{
		DeviceID:  deviceID,
		HourStart: hourStart,
	}
	err := db.QueryRow(query, deviceID, hourStart, hourEnd).Scan(
		&agg.SampleCount,
		&agg.AvgTemp,
		&agg.AvgHumidity,
		&agg.AvgWindSpeed,
		&agg.MaxWindSpeed,
		&agg.AvgAtmosphericPressure,
		&agg.AvgVoltage,
		&agg.RainfallDelta,
	)
	if err != nil {
		return false, err
	}

	// Only insert if we have data
	if agg.SampleCount == 0 {
		return false, nil
	}

	return true, db.UpsertHourly(&agg)
}

// AggregateAndCleanup aggregates the previous hour for every device that
// reported in it, then drops raw readings older than retention once the
// aggregates have caught up past that point.
func AggregateAndCleanup(db *readingdb.DB, now time.Time, retention time.Duration) (RunSummary, error) {
	// Aggregate the previous hour (current hour is still ongoing)
	hourStart := roundToHourStart(now.Add(-time.Hour))
	summary := RunSummary{HourStart: time.Unix(hourStart, 0).UTC()}

	slog.Info("aggregating readings", "hour", summary.HourStart.Format(time.RFC3339))

	devices, err := db.DevicesBetween(summary.HourStart, summary.HourStart.Add(time.Hour))
	if err != nil {
		return summary, fmt.Errorf("list devices: %w", err)
	}
	summary.Devices = devices

	for _, dev := range devices {
		written, err := AggregateHour(db, dev, hourStart)
		if err != nil {
			return summary, fmt.Errorf("aggregate %s: %w", dev, err)
		}
		if written {
			summary.Aggregated++
		}
	}

	if err := cleanupOldData(db, now, retention, &summary); err != nil {
		return summary, fmt.Errorf("cleanup: %w", err)
	}

	slog.Info("aggregation finished", "devices", len(devices), "aggregated", summary.Aggregated, "deleted", summary.Deleted)
	return summary, nil
}

// cleanupOldData removes raw readings older than retention if we have aggregated past it
func cleanupOldData(db *readingdb.DB, now time.Time, retention time.Duration, summary *RunSummary) error {
	if retention <= 0 {
		return nil
	}
	cutoff := now.Add(-retention)

	lastAggregateHour, err := db.LastAggregatedHour()
	if err != nil {
		return err
	}
	if lastAggregateHour < cutoff.Unix() {
		// We haven't aggregated enough data yet, don't clean up
		return nil
	}

	deleted, err := db.DeleteReadingsBefore(cutoff)
	if err != nil {
		return err
	}
	summary.Deleted = deleted
	summary.CleanedUp = true

	slog.Debug("cleaned up raw readings", "before", cutoff.UTC().Format(time.RFC3339), "rows", deleted)
	return nil
}
