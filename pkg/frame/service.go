package frame

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/NotCoffee418/weather_telemetry/pkg/types"
	"github.com/sigurn/crc16"
)

// Field names used by the weather station layout.
const (
	FieldTemp                = "temp"
	FieldHumidity            = "humidity"
	FieldWindSpeed           = "ws"
	FieldWindDirection       = "wd"
	FieldNorthDirection      = "north_direction"
	FieldAtmosphericPressure = "atmospheric_pressure"
	FieldRainfall            = "rainfall"
	FieldVoltage             = "voltage"
)

// WeatherLayout is the 43 character frame sent by the weather/battery sensor.
func WeatherLayout() Layout {
	return Layout{
		Name:   "weather",
		Length: 43,
		Marker: "$",
		Fields: []Field{
			{Name: FieldTemp, Start: 1, End: 6, Kind: KindFloat},
			{Name: FieldHumidity, Start: 6, End: 11, Kind: KindFloat},
			{Name: FieldWindSpeed, Start: 11, End: 15, Kind: KindFloat},
			{Name: FieldWindDirection, Start: 15, End: 18, Kind: KindInt},
			{Name: FieldNorthDirection, Start: 18, End: 23, Kind: KindFloat},
			{Name: FieldAtmosphericPressure, Start: 23, End: 29, Kind: KindFloat},
			{Name: FieldRainfall, Start: 29, End: 36, Kind: KindFloat},
			{Name: FieldVoltage, Start: 36, End: 40, Kind: KindFloat},
		},
	}
}

var crcTables = map[string]*crc16.Table{
	"arc":    crc16.MakeTable(crc16.CRC16_ARC),
	"modbus": crc16.MakeTable(crc16.CRC16_MODBUS),
	"xmodem": crc16.MakeTable(crc16.CRC16_XMODEM),
}

func (l Layout) Validate() error {
	if l.Length <= 0 {
		return fmt.Errorf("%w: length must be positive", ErrInvalidLayout)
	}
	if len(l.Marker) != 1 {
		return fmt.Errorf("%w: marker must be a single character", ErrInvalidLayout)
	}
	if len(l.Fields) == 0 {
		return fmt.Errorf("%w: no fields", ErrInvalidLayout)
	}

	seen := make(map[string]bool, len(l.Fields))
	for i, f := range l.Fields {
		if f.Name == "" {
			return fmt.Errorf("%w: field %d has no name", ErrInvalidLayout, i)
		}
		if seen[f.Name] {
			return fmt.Errorf("%w: duplicate field %s", ErrInvalidLayout, f.Name)
		}
		seen[f.Name] = true
		if f.Start < len(l.Marker) || f.End <= f.Start || f.End > l.Length {
			return fmt.Errorf("%w: field %s has range [%d,%d)", ErrInvalidLayout, f.Name, f.Start, f.End)
		}
		if f.Kind != KindFloat && f.Kind != KindInt {
			return fmt.Errorf("%w: field %s has unknown kind %q", ErrInvalidLayout, f.Name, f.Kind)
		}
		for _, other := range l.Fields[:i] {
			if f.Start < other.End && other.Start < f.End {
				return fmt.Errorf("%w: fields %s and %s overlap", ErrInvalidLayout, other.Name, f.Name)
			}
		}
	}

	if c := l.Checksum; c != nil {
		if _, ok := crcTables[c.Algorithm]; !ok {
			return fmt.Errorf("%w: unknown checksum algorithm %q", ErrInvalidLayout, c.Algorithm)
		}
		if c.End-c.Start != 4 || c.End > l.Length {
			return fmt.Errorf("%w: checksum range [%d,%d)", ErrInvalidLayout, c.Start, c.End)
		}
		for _, f := range l.Fields {
			if f.End > c.Start {
				return fmt.Errorf("%w: field %s is not covered by the checksum", ErrInvalidLayout, f.Name)
			}
		}
	}
	return nil
}

// Decode converts one raw window. It never returns partial values:
// any failing field rejects the whole frame.
func Decode(raw []byte, layout Layout) (Values, error) {
	if len(raw) == 0 {
		return Values{}, ErrEmptyFrame
	}
	if !strings.HasPrefix(string(raw), layout.Marker) {
		return Values{}, ErrMissingMarker
	}
	if layout.Checksum != nil {
		if err := verifyChecksum(raw, *layout.Checksum); err != nil {
			return Values{}, err
		}
	}

	values := Values{
		floats: make(map[string]float64),
		ints:   make(map[string]int),
	}
	for _, f := range layout.Fields {
		text := strings.TrimSpace(slice(raw, f.Start, f.End))
		switch f.Kind {
		case KindInt:
			v, err := strconv.Atoi(text)
			if err != nil {
				return Values{}, &FieldError{Field: f.Name, Raw: text, Err: err}
			}
			values.ints[f.Name] = v
		default:
			v, err := parseDecimal(text)
			if err != nil {
				return Values{}, &FieldError{Field: f.Name, Raw: text, Err: err}
			}
			values.floats[f.Name] = v
		}
	}
	return values, nil
}

// DecodeReading decodes raw with layout and maps the weather fields onto a Reading.
func DecodeReading(raw []byte, layout Layout, capturedAt time.Time, ip string) (*types.Reading, error) {
	v, err := Decode(raw, layout)
	if err != nil {
		return nil, err
	}
	return &types.Reading{
		Timestamp:           capturedAt.Truncate(time.Second),
		IP:                  ip,
		Temp:                types.Float(v.Float(FieldTemp)),
		Humidity:            types.Float(v.Float(FieldHumidity)),
		WindSpeed:           types.Float(v.Float(FieldWindSpeed)),
		WindDirection:       v.Int(FieldWindDirection),
		NorthDirection:      types.Float(v.Float(FieldNorthDirection)),
		AtmosphericPressure: types.Float(v.Float(FieldAtmosphericPressure)),
		Rainfall:            types.Float(v.Float(FieldRainfall)),
		Voltage:             types.Float(v.Float(FieldVoltage)),
	}, nil
}

func (v Values) Float(name string) float64 {
	if f, ok := v.floats[name]; ok {
		return f
	}
	return float64(v.ints[name])
}

func (v Values) Int(name string) int {
	if i, ok := v.ints[name]; ok {
		return i
	}
	return int(v.floats[name])
}

// parseDecimal accepts literals like "+21.3", "-4" or "1.5e3" and nothing
// ParseFloat would additionally take (nan, inf, 0x1p3).
func parseDecimal(text string) (float64, error) {
	for _, c := range text {
		if !strings.ContainsRune("0123456789+-.eE", c) {
			return 0, ErrNotDecimal
		}
	}
	v, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, ErrNotDecimal
	}
	return v, nil
}

// slice clamps [start,end) to the window, a short window yields a shorter or empty substring.
func slice(raw []byte, start, end int) string {
	if start >= len(raw) {
		return ""
	}
	if end > len(raw) {
		end = len(raw)
	}
	return string(raw[start:end])
}

func verifyChecksum(raw []byte, c Checksum) error {
	table, ok := crcTables[c.Algorithm]
	if !ok {
		return fmt.Errorf("%w: unknown algorithm %q", ErrInvalidLayout, c.Algorithm)
	}
	if len(raw) < c.End {
		return fmt.Errorf("%w: window too short for trailer", ErrChecksum)
	}
	given := strings.ToUpper(string(raw[c.Start:c.End]))
	calc := fmt.Sprintf("%04X", crc16.Checksum(raw[:c.Start], table))
	if given != calc {
		return fmt.Errorf("%w: got %s, want %s", ErrChecksum, given, calc)
	}
	return nil
}
