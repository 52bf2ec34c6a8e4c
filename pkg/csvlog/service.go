// Package csvlog keeps the append-only CSV reading log of one device.
// A Log is not safe for concurrent writers: every write goes through
// the single process that owns it.
package csvlog

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/NotCoffee418/weather_telemetry/pkg/pathing"
	"github.com/NotCoffee418/weather_telemetry/pkg/types"
)

var ErrEmptyLog = errors.New("log has no readings")

const (
	LayoutDaily  = "daily"
	LayoutSingle = "single"
)

// PathFor returns the log file a reading captured at t belongs to.
func PathFor(dataDir, deviceID, layout string, t time.Time) string {
	if layout == LayoutSingle {
		return filepath.Join(dataDir, deviceID+".csv")
	}
	return filepath.Join(
		dataDir,
		deviceID,
		t.Format("2006-01"),
		fmt.Sprintf("%s_%s.csv", deviceID, t.Format("2006-01-02")),
	)
}

type Log struct {
	path string
}

func Open(path string) *Log {
	return &Log{path: path}
}

// EnsureHeader creates the file with its header row when it does not exist.
func (l *Log) EnsureHeader() error {
	if _, err := os.Stat(l.path); err == nil {
		return nil
	} else if !os.IsNotExist(err) {
		return err
	}
	if err := pathing.EnsureDir(filepath.Dir(l.path)); err != nil {
		return err
	}
	return os.WriteFile(l.path, []byte(types.Header+"\n"), 0644)
}

// Append writes one reading as a new row.
func (l *Log) Append(r *types.Reading) error {
	if err := l.EnsureHeader(); err != nil {
		return err
	}
	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}

	w := csv.NewWriter(f)
	if err := w.Write(r.ToRecord()); err != nil {
		f.Close()
		return err
	}
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Rotate drops the oldest chunk rows (keeping the header) once the file
// holds more than ceiling lines. It reports whether anything was dropped.
func (l *Log) Rotate(ceiling, chunk int) (bool, error) {
	lines, err := l.readLines()
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	if len(lines) <= ceiling {
		return false, nil
	}

	end := 1 + chunk
	if end > len(lines) {
		end = len(lines)
	}
	kept := append([]string{lines[0]}, lines[end:]...)

	tmp, err := os.CreateTemp(filepath.Dir(l.path), filepath.Base(l.path)+".rotate-*")
	if err != nil {
		return false, err
	}
	w := bufio.NewWriter(tmp)
	for _, line := range kept {
		w.WriteString(line)
		w.WriteByte('\n')
	}
	if err := w.Flush(); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return false, err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return false, err
	}
	if err := os.Rename(tmp.Name(), l.path); err != nil {
		os.Remove(tmp.Name())
		return false, err
	}
	return true, nil
}

// lineCount includes the header.
func (l *Log) lineCount() (int, error) {
	lines, err := l.readLines()
	if err != nil {
		return 0, err
	}
	return len(lines), nil
}

// Tail returns up to the last n readings, oldest first.
func (l *Log) Tail(n int) ([]*types.Reading, error) {
	f, err := os.Open(l.path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	if _, err := r.Read(); err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, err
	}

	var ring []*types.Reading
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		reading, err := types.ReadingFromRecord(record)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", l.path, err)
		}
		ring = append(ring, reading)
		if n > 0 && len(ring) > n {
			ring = ring[1:]
		}
	}
	return ring, nil
}

func (l *Log) Last() (*types.Reading, error) {
	tail, err := l.Tail(1)
	if err != nil {
		return nil, err
	}
	if len(tail) == 0 {
		return nil, ErrEmptyLog
	}
	return tail[0], nil
}

func (l *Log) readLines() ([]string, error) {
	data, err := os.ReadFile(l.path)
	if err != nil {
		return nil, err
	}
	text := strings.TrimSuffix(string(data), "\n")
	if text == "" {
		return nil, nil
	}
	return strings.Split(text, "\n"), nil
}
