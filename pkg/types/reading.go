package types

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// TimestampLayout is the capture time format used in CSV logs.
const TimestampLayout = "2006-01-02 15:04:05"

// Keys is the ordered field list shared by the CSV header and the JSON payload.
var Keys = []string{
	"timestamp",
	"ip",
	"temp",
	"humidity",
	"ws",
	"wd",
	"north_direction",
	"atmospheric_pressure",
	"rainfall",
	"voltage",
}

// Header is the first line of every reading log.
var Header = strings.Join(Keys, ",")

type Reading struct {
	Timestamp time.Time
	IP        string

	Temp                Float
	Humidity            Float
	WindSpeed           Float
	WindDirection       int
	NorthDirection      Float
	AtmosphericPressure Float
	Rainfall            Float
	Voltage             Float
}

// Wire shape of a reading. Field order follows Keys.
type readingJSON struct {
	Timestamp           int64  `json:"timestamp"`
	IP                  string `json:"ip"`
	Temp                Float  `json:"temp"`
	Humidity            Float  `json:"humidity"`
	WindSpeed           Float  `json:"ws"`
	WindDirection       int    `json:"wd"`
	NorthDirection      Float  `json:"north_direction"`
	AtmosphericPressure Float  `json:"atmospheric_pressure"`
	Rainfall            Float  `json:"rainfall"`
	Voltage             Float  `json:"voltage"`
}

func (r Reading) MarshalJSON() ([]byte, error) {
	return json.Marshal(readingJSON{
		Timestamp:           r.Timestamp.Unix(),
		IP:                  r.IP,
		Temp:                r.Temp,
		Humidity:            r.Humidity,
		WindSpeed:           r.WindSpeed,
		WindDirection:       r.WindDirection,
		NorthDirection:      r.NorthDirection,
		AtmosphericPressure: r.AtmosphericPressure,
		Rainfall:            r.Rainfall,
		Voltage:             r.Voltage,
	})
}

func (r *Reading) UnmarshalJSON(data []byte) error {
	var w readingJSON
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*r = Reading{
		Timestamp:           time.Unix(w.Timestamp, 0),
		IP:                  w.IP,
		Temp:                w.Temp,
		Humidity:            w.Humidity,
		WindSpeed:           w.WindSpeed,
		WindDirection:       w.WindDirection,
		NorthDirection:      w.NorthDirection,
		AtmosphericPressure: w.AtmosphericPressure,
		Rainfall:            w.Rainfall,
		Voltage:             w.Voltage,
	}
	return nil
}

func (r *Reading) ToJsonBytes() []byte {
	b, err := json.Marshal(r)
	if err != nil {
		return nil
	}
	return b
}

func ReadingFromJsonBytes(data []byte) *Reading {
	var r Reading
	if err := json.Unmarshal(data, &r); err != nil {
		return nil
	}
	return &r
}

// ToRecord returns the CSV row for the reading in Keys order.
func (r *Reading) ToRecord() []string {
	return []string{
		r.Timestamp.Format(TimestampLayout),
		r.IP,
		r.Temp.String(),
		r.Humidity.String(),
		r.WindSpeed.String(),
		strconv.Itoa(r.WindDirection),
		r.NorthDirection.String(),
		r.AtmosphericPressure.String(),
		r.Rainfall.String(),
		r.Voltage.String(),
	}
}

// ReadingFromRecord parses a CSV row written by ToRecord.
// Timestamps are interpreted in the local time zone.
func ReadingFromRecord(record []string) (*Reading, error) {
	if len(record) != len(Keys) {
		return nil, fmt.Errorf("expected %d columns, got %d", len(Keys), len(record))
	}

	ts, err := time.ParseInLocation(TimestampLayout, strings.TrimSpace(record[0]), time.Local)
	if err != nil {
		return nil, fmt.Errorf("timestamp: %w", err)
	}
	wd, err := strconv.Atoi(strings.TrimSpace(record[5]))
	if err != nil {
		return nil, fmt.Errorf("wd: %w", err)
	}

	r := &Reading{
		Timestamp:     ts,
		IP:            record[1],
		WindDirection: wd,
	}

	floats := map[int]*Float{
		2: &r.Temp,
		3: &r.Humidity,
		4: &r.WindSpeed,
		6: &r.NorthDirection,
		7: &r.AtmosphericPressure,
		8: &r.Rainfall,
		9: &r.Voltage,
	}
	for idx, dst := range floats {
		v, err := ParseFloat(record[idx])
		if err != nil {
			return nil, fmt.Errorf("%s: %w", Keys[idx], err)
		}
		*dst = v
	}
	return r, nil
}
