package collector

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validBody = `{"timestamp": 1730538000, "ip": "192.0.2.1", "temp": 21.3, "humidity": 55.4,
"ws": 3.2, "wd": 270, "north_direction": 12.5, "atmospheric_pressure": 1013.2,
"rainfall": 0.0, "voltage": 12.1}`

func TestValidatePayloadAccepts(t *testing.T) {
	r, err := ValidatePayload("dev_01", []byte(validBody))
	require.NoError(t, err)
	assert.Equal(t, int64(1730538000), r.Timestamp.Unix())
	assert.Equal(t, "192.0.2.1", r.IP)
	assert.EqualValues(t, 21.3, r.Temp)
	assert.Equal(t, 270, r.WindDirection)
	assert.EqualValues(t, 12.1, r.Voltage)
}

func TestValidatePayloadKeyOrderIrrelevant(t *testing.T) {
	body := `{"voltage": 12.1, "rainfall": 1e-1, "atmospheric_pressure": 1013.2, "north_direction": -2.5,
"wd": 0, "ws": 0.0, "humidity": 55.4, "temp": -4.0, "ip": "", "timestamp": 0}`
	r, err := ValidatePayload("dev_garden", []byte(body))
	require.NoError(t, err)
	assert.EqualValues(t, 0.1, r.Rainfall)
	assert.EqualValues(t, -4.0, r.Temp)
}

func TestValidatePayloadRejects(t *testing.T) {
	tests := []struct {
		name   string
		device string
		body   string
		key    string
	}{
		{"renamed key", "dev_01", strings.Replace(validBody, `"voltage": 12.1`, `"volt": 12.1`, 1), "voltage"},
		{"missing last key", "dev_01", strings.Replace(validBody, `, "voltage": 12.1`, ``, 1), "voltage"},
		{"missing first key", "dev_01", strings.Replace(validBody, `"timestamp": 1730538000, `, ``, 1), "timestamp"},
		{"extra key", "dev_01", strings.Replace(validBody, `"voltage": 12.1}`, `"voltage": 12.1, "battery": 80.0}`, 1), "battery"},
		{"temp as string", "dev_01", strings.Replace(validBody, `"temp": 21.3`, `"temp": "21.3"`, 1), "temp"},
		{"temp as int", "dev_01", strings.Replace(validBody, `"temp": 21.3`, `"temp": 21`, 1), "temp"},
		{"wd as float", "dev_01", strings.Replace(validBody, `"wd": 270`, `"wd": 270.0`, 1), "wd"},
		{"wd as exponent", "dev_01", strings.Replace(validBody, `"wd": 270`, `"wd": 2.7e2`, 1), "wd"},
		{"timestamp as bool", "dev_01", strings.Replace(validBody, `"timestamp": 1730538000`, `"timestamp": true`, 1), "timestamp"},
		{"timestamp as string", "dev_01", strings.Replace(validBody, `"timestamp": 1730538000`, `"timestamp": "1730538000"`, 1), "timestamp"},
		{"ip as number", "dev_01", strings.Replace(validBody, `"ip": "192.0.2.1"`, `"ip": 3221225985`, 1), "ip"},
		{"null value", "dev_01", strings.Replace(validBody, `"humidity": 55.4`, `"humidity": null`, 1), "humidity"},
		{"array body", "dev_01", `[1, 2, 3]`, ""},
		{"null body", "dev_01", `null`, ""},
		{"not json", "dev_01", `timestamp=1`, ""},
		{"trailing data", "dev_01", validBody + `{}`, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ValidatePayload(tt.device, []byte(tt.body))
			require.ErrorIs(t, err, ErrInvalidPayload)
			var schemaErr *SchemaError
			require.ErrorAs(t, err, &schemaErr)
			assert.Equal(t, tt.key, schemaErr.Key)
		})
	}
}

func TestValidatePayloadNineKeys(t *testing.T) {
	body := strings.Replace(validBody, `"ws": 3.2, `, ``, 1)
	var decoded map[string]any
	require.NoError(t, json.Unmarshal([]byte(body), &decoded))
	require.Len(t, decoded, 9)

	_, err := ValidatePayload("dev_01", []byte(body))
	require.ErrorIs(t, err, ErrInvalidPayload)
	var schemaErr *SchemaError
	require.ErrorAs(t, err, &schemaErr)
	assert.Equal(t, "ws", schemaErr.Key)
	assert.Equal(t, "missing", schemaErr.Reason)
}

func TestValidatePayloadDeviceID(t *testing.T) {
	for _, id := range []string{"01", "device_01", "dev_", "DEV_01", "dev_../etc", "dev_a/b"} {
		_, err := ValidatePayload(id, []byte(validBody))
		assert.ErrorIs(t, err, ErrInvalidDevice, id)
	}
}
