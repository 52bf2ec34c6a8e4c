package collector

import (
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/NotCoffee418/weather_telemetry/pkg/csvlog"
	"github.com/NotCoffee418/weather_telemetry/pkg/types"
)

func NewStore(dataDir string) *Store {
	return &Store{
		dataDir: dataDir,
		now:     time.Now,
		latest:  make(map[string]*types.Reading),
	}
}

// PathFor returns {dataDir}/{YYYY-MM}/{deviceID}.csv for the month of t.
func (s *Store) PathFor(deviceID string, t time.Time) string {
	return filepath.Join(s.dataDir, t.Format("2006-01"), deviceID+".csv")
}

// Save appends the reading to the device's file for the current month.
func (s *Store) Save(deviceID string, r *types.Reading) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := csvlog.Open(s.PathFor(deviceID, s.now())).Append(r); err != nil {
		return err
	}
	s.latest[deviceID] = r
	return nil
}

// Latest returns the newest reading of a device. After a restart it is read
// back from this month's file, or last month's early in a month.
func (s *Store) Latest(deviceID string) (*types.Reading, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if r, ok := s.latest[deviceID]; ok {
		return r, nil
	}

	now := s.now()
	firstOfMonth := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	for _, month := range []time.Time{now, firstOfMonth.AddDate(0, -1, 0)} {
		r, err := csvlog.Open(s.PathFor(deviceID, month)).Last()
		switch {
		case err == nil:
			s.latest[deviceID] = r
			return r, nil
		case errors.Is(err, os.ErrNotExist), errors.Is(err, csvlog.ErrEmptyLog):
			continue
		default:
			return nil, err
		}
	}
	return nil, ErrNoReading
}

// LatestOrNil adapts Latest for the live feed.
func (s *Store) LatestOrNil(deviceID string) *types.Reading {
	r, err := s.Latest(deviceID)
	if err != nil {
		return nil
	}
	return r
}
