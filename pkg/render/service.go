// Package render prepares what the display server draws. Charting itself
// happens outside this repository; the snapshot holds the series it plots.
package render

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/NotCoffee418/weather_telemetry/pkg/pathing"
	"github.com/NotCoffee418/weather_telemetry/pkg/types"
	"github.com/NotCoffee418/weather_telemetry/pkg/wxutils"
)

type Renderer interface {
	Render(deviceID string, tail []*types.Reading) error
}

type Nop struct{}

func (Nop) Render(string, []*types.Reading) error { return nil }

type Snapshot struct {
	LastUpdate      string     `json:"last_update"`
	DeviceID        string     `json:"device_id"`
	Timestamps      []string   `json:"timestamps"`
	Temp            []float64  `json:"temp"`
	Humidity        []float64  `json:"humidity"`
	WindSpeed       []float64  `json:"ws"`
	WindDirection   []int      `json:"wd"`
	Pressure        []float64  `json:"atmospheric_pressure"`
	Rainfall        []float64  `json:"rainfall"`
	RainfallRange   [2]float64 `json:"rainfall_range"`
	PowerGeneration []float64  `json:"power_generation_wh"`
}

// SnapshotRenderer writes {dir}/{device}.json with the last Window rows.
type SnapshotRenderer struct {
	Dir    string
	Window int
	Now    func() time.Time
}

func NewSnapshotRenderer(dir string, window int) *SnapshotRenderer {
	return &SnapshotRenderer{Dir: dir, Window: window, Now: time.Now}
}

func (s *SnapshotRenderer) Render(deviceID string, tail []*types.Reading) error {
	if s.Window > 0 && len(tail) > s.Window {
		tail = tail[len(tail)-s.Window:]
	}
	snap := BuildSnapshot(deviceID, tail, s.Now())

	if err := pathing.EnsureDir(s.Dir); err != nil {
		return err
	}
	data, err := json.Marshal(snap)
	if err != nil {
		return err
	}

	path := filepath.Join(s.Dir, deviceID+".json")
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func BuildSnapshot(deviceID string, tail []*types.Reading, now time.Time) *Snapshot {
	n := len(tail)
	snap := &Snapshot{
		LastUpdate:      now.Format("2006-01-02 15:04"),
		DeviceID:        deviceID,
		Timestamps:      make([]string, 0, n),
		Temp:            make([]float64, 0, n),
		Humidity:        make([]float64, 0, n),
		WindSpeed:       make([]float64, 0, n),
		WindDirection:   make([]int, 0, n),
		Pressure:        make([]float64, 0, n),
		Rainfall:        make([]float64, 0, n),
		PowerGeneration: make([]float64, 0, n),
	}
	for _, r := range tail {
		snap.Timestamps = append(snap.Timestamps, r.Timestamp.Format(types.TimestampLayout))
		snap.Temp = append(snap.Temp, float64(r.Temp))
		snap.Humidity = append(snap.Humidity, float64(r.Humidity))
		snap.WindSpeed = append(snap.WindSpeed, float64(r.WindSpeed))
		snap.WindDirection = append(snap.WindDirection, r.WindDirection)
		snap.Pressure = append(snap.Pressure, float64(r.AtmosphericPressure))
		snap.Rainfall = append(snap.Rainfall, float64(r.Rainfall))
		snap.PowerGeneration = append(snap.PowerGeneration, wxutils.PowerGenerationWh(float64(r.WindSpeed)))
	}
	lo, hi := wxutils.PaddedRange(snap.Rainfall)
	snap.RainfallRange = [2]float64{lo, hi}
	return snap
}
