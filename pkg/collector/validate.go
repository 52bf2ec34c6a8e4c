package collector

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/NotCoffee418/weather_telemetry/pkg/types"
)

type valueKind int

const (
	kindInt valueKind = iota
	kindString
	kindFloat
)

var schema = map[string]valueKind{
	"timestamp":            kindInt,
	"ip":                   kindString,
	"temp":                 kindFloat,
	"humidity":             kindFloat,
	"ws":                   kindFloat,
	"wd":                   kindInt,
	"north_direction":      kindFloat,
	"atmospheric_pressure": kindFloat,
	"rainfall":             kindFloat,
	"voltage":              kindFloat,
}

// ValidateDeviceID accepts ids of the form dev_<name>.
func ValidateDeviceID(deviceID string) error {
	if !strings.HasPrefix(deviceID, DevicePrefix) || len(deviceID) == len(DevicePrefix) {
		return fmt.Errorf("%w: %q", ErrInvalidDevice, deviceID)
	}
	if strings.ContainsAny(deviceID, `/\.`) {
		return fmt.Errorf("%w: %q", ErrInvalidDevice, deviceID)
	}
	return nil
}

// ValidatePayload checks the device id and that body is a JSON object with
// exactly the reading keys, each holding a literal of its declared type.
// Numbers are not coerced: 21 is not a float and 270.0 is not an int.
func ValidatePayload(deviceID string, body []byte) (*types.Reading, error) {
	if err := ValidateDeviceID(deviceID); err != nil {
		return nil, err
	}

	var fields map[string]json.RawMessage
	dec := json.NewDecoder(bytes.NewReader(body))
	if err := dec.Decode(&fields); err != nil {
		return nil, &SchemaError{Reason: "body is not a JSON object"}
	}
	if fields == nil {
		return nil, &SchemaError{Reason: "body is not a JSON object"}
	}
	if dec.More() {
		return nil, &SchemaError{Reason: "trailing data after object"}
	}

	for _, key := range types.Keys {
		if _, ok := fields[key]; !ok {
			return nil, &SchemaError{Key: key, Reason: "missing"}
		}
	}
	if len(fields) != len(types.Keys) {
		for key := range fields {
			if _, ok := schema[key]; !ok {
				return nil, &SchemaError{Key: key, Reason: "unexpected key"}
			}
		}
	}

	for key, raw := range fields {
		if reason := checkKind(schema[key], raw); reason != "" {
			return nil, &SchemaError{Key: key, Reason: reason}
		}
	}

	var reading types.Reading
	if err := json.Unmarshal(body, &reading); err != nil {
		return nil, &SchemaError{Reason: err.Error()}
	}
	return &reading, nil
}

// checkKind returns a reason when raw is not a literal of kind.
func checkKind(kind valueKind, raw json.RawMessage) string {
	lit := string(bytes.TrimSpace(raw))
	if lit == "" {
		return "empty value"
	}

	switch kind {
	case kindString:
		if lit[0] != '"' {
			return "expected string"
		}
		return ""
	case kindInt:
		if !isNumber(lit) || strings.ContainsAny(lit, ".eE") {
			return "expected int"
		}
		if _, err := strconv.ParseInt(lit, 10, 64); err != nil {
			return "int out of range"
		}
		return ""
	case kindFloat:
		if !isNumber(lit) || !strings.ContainsAny(lit, ".eE") {
			return "expected float"
		}
		return ""
	}
	return "unknown key"
}

func isNumber(lit string) bool {
	c := lit[0]
	return c == '-' || (c >= '0' && c <= '9')
}
