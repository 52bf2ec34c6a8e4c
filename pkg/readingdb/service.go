// Package readingdb holds the collector's reading history.
// Only collector_api writes to it; other processes may read it.
package readingdb

import (
	"database/sql"
	"embed"
	"fmt"
	"path/filepath"
	"time"

	"github.com/NotCoffee418/dbmigrator"
	"github.com/NotCoffee418/weather_telemetry/pkg/pathing"
	"github.com/NotCoffee418/weather_telemetry/pkg/types"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

type DB struct {
	db *sql.DB
}

// Open creates the database file if needed and applies pending migrations.
func Open(path string) (*DB, error) {
	if err := pathing.EnsureDir(filepath.Dir(path)); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// sqlite allows one writer at a time
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		db.Close()
		return nil, err
	}

	dbmigrator.SetDatabaseType(dbmigrator.SQLite)
	<-dbmigrator.MigrateUpCh(
		db,
		migrationFS,
		"migrations",
	)

	// the migrator reports failures through its own log, so check the schema here
	if _, err := db.Exec("SELECT 1 FROM readings LIMIT 1;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("readings schema missing after migration: %w", err)
	}
	if _, err := db.Exec("SELECT 1 FROM aggregate_readings_hourly LIMIT 1;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("aggregate schema missing after migration: %w", err)
	}

	return &DB{db: db}, nil
}

func (d *DB) Close() error {
	return d.db.Close()
}

// InsertReading stores a reading. A second reading for the same device and
// second replaces the first.
func (d *DB) InsertReading(deviceID string, r *types.Reading) error {
	_, err := d.db.Exec(
		"INSERT OR REPLACE INTO readings "+
			"(device_id, timestamp, ip, temp, humidity, ws, wd, north_direction, atmospheric_pressure, rainfall, voltage) "+
			"VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)",
		deviceID,
		r.Timestamp.Unix(),
		r.IP,
		float64(r.Temp),
		float64(r.Humidity),
		float64(r.WindSpeed),
		int64(r.WindDirection),
		float64(r.NorthDirection),
		float64(r.AtmosphericPressure),
		float64(r.Rainfall),
		float64(r.Voltage),
	)
	return err
}

const readingColumns = "timestamp, ip, temp, humidity, ws, wd, north_direction, atmospheric_pressure, rainfall, voltage"

// LatestReadings returns up to n readings for a device, oldest first.
func (d *DB) LatestReadings(deviceID string, n int) ([]*types.Reading, error) {
	rows, err := d.db.Query(
		"SELECT "+readingColumns+" FROM ("+
			"SELECT "+readingColumns+" FROM readings WHERE device_id = ? ORDER BY timestamp DESC LIMIT ?"+
			") ORDER BY timestamp ASC",
		deviceID, int64(n),
	)
	if err != nil {
		return nil, err
	}
	return scanReadings(rows)
}

// ReadingsBetween returns a device's readings with from <= timestamp < to, oldest first.
func (d *DB) ReadingsBetween(deviceID string, from, to time.Time) ([]*types.Reading, error) {
	rows, err := d.db.Query(
		"SELECT "+readingColumns+" FROM readings "+
			"WHERE device_id = ? AND timestamp >= ? AND timestamp < ? ORDER BY timestamp ASC",
		deviceID, from.Unix(), to.Unix(),
	)
	if err != nil {
		return nil, err
	}
	return scanReadings(rows)
}

// DevicesBetween lists devices that reported with from <= timestamp < to.
func (d *DB) DevicesBetween(from, to time.Time) ([]string, error) {
	rows, err := d.db.Query(
		"SELECT DISTINCT device_id FROM readings WHERE timestamp >= ? AND timestamp < ? ORDER BY device_id",
		from.Unix(), to.Unix(),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var devices []string
	for rows.Next() {
		var dev string
		if err := rows.Scan(&dev); err != nil {
			return nil, err
		}
		devices = append(devices, dev)
	}
	return devices, rows.Err()
}

// DeleteReadingsBefore removes raw readings older than ts and reports how many went.
func (d *DB) DeleteReadingsBefore(ts time.Time) (int64, error) {
	res, err := d.db.Exec("DELETE FROM readings WHERE timestamp < ?", ts.Unix())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (d *DB) UpsertHourly(a *HourlyAggregate) error {
	_, err := d.db.Exec(
		"INSERT OR REPLACE INTO aggregate_readings_hourly "+
			"(device_id, hour_start, avg_temp, avg_humidity, avg_ws, max_ws, avg_atmospheric_pressure, avg_voltage, rainfall_delta, sample_count) "+
			"VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)",
		a.DeviceID,
		a.HourStart,
		a.AvgTemp,
		a.AvgHumidity,
		a.AvgWindSpeed,
		a.MaxWindSpeed,
		a.AvgAtmosphericPressure,
		a.AvgVoltage,
		a.RainfallDelta,
		int64(a.SampleCount),
	)
	return err
}

// HourlyAggregates returns a device's hourly rows starting at or after since, oldest first.
func (d *DB) HourlyAggregates(deviceID string, since time.Time) ([]HourlyAggregate, error) {
	rows, err := d.db.Query(
		"SELECT device_id, hour_start, avg_temp, avg_humidity, avg_ws, max_ws, avg_atmospheric_pressure, avg_voltage, rainfall_delta, sample_count "+
			"FROM aggregate_readings_hourly WHERE device_id = ? AND hour_start >= ? ORDER BY hour_start ASC",
		deviceID, since.Unix(),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var aggregates []HourlyAggregate
	for rows.Next() {
		var a HourlyAggregate
		if err := rows.Scan(
			&a.DeviceID,
			&a.HourStart,
			&a.AvgTemp,
			&a.AvgHumidity,
			&a.AvgWindSpeed,
			&a.MaxWindSpeed,
			&a.AvgAtmosphericPressure,
			&a.AvgVoltage,
			&a.RainfallDelta,
			&a.SampleCount,
		); err != nil {
			return nil, err
		}
		aggregates = append(aggregates, a)
	}
	return aggregates, rows.Err()
}

// LastAggregatedHour returns the newest hour_start across all devices, 0 when none exist.
func (d *DB) LastAggregatedHour() (int64, error) {
	var last sql.NullInt64
	if err := d.db.QueryRow("SELECT MAX(hour_start) FROM aggregate_readings_hourly").Scan(&last); err != nil {
		return 0, err
	}
	return last.Int64, nil
}

// QueryRow runs an ad-hoc single-row query, used by the aggregator.
func (d *DB) QueryRow(query string, args ...any) *sql.Row {
	return d.db.QueryRow(query, args...)
}

func scanReadings(rows *sql.Rows) ([]*types.Reading, error) {
	defer rows.Close()

	var readings []*types.Reading
	for rows.Next() {
		var (
			r  types.Reading
			ts int64
		)
		if err := rows.Scan(
			&ts,
			&r.IP,
			(*float64)(&r.Temp),
			(*float64)(&r.Humidity),
			(*float64)(&r.WindSpeed),
			&r.WindDirection,
			(*float64)(&r.NorthDirection),
			(*float64)(&r.AtmosphericPressure),
			(*float64)(&r.Rainfall),
			(*float64)(&r.Voltage),
		); err != nil {
			return nil, err
		}
		r.Timestamp = time.Unix(ts, 0)
		readings = append(readings, &r)
	}
	return readings, rows.Err()
}
