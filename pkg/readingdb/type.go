package readingdb

// HourlyAggregate summarises one device's readings over one hour.
type HourlyAggregate struct {
	DeviceID               string  `db:"device_id" json:"device_id"`
	HourStart              int64   `db:"hour_start" json:"hour_start"`
	AvgTemp                float64 `db:"avg_temp" json:"avg_temp"`
	AvgHumidity            float64 `db:"avg_humidity" json:"avg_humidity"`
	AvgWindSpeed           float64 `db:"avg_ws" json:"avg_ws"`
	MaxWindSpeed           float64 `db:"max_ws" json:"max_ws"`
	AvgAtmosphericPressure float64 `db:"avg_atmospheric_pressure" json:"avg_atmospheric_pressure"`
	AvgVoltage             float64 `db:"avg_voltage" json:"avg_voltage"`
	RainfallDelta          float64 `db:"rainfall_delta" json:"rainfall_delta"`
	SampleCount            uint32  `db:"sample_count" json:"sample_count"`
}
