package types

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Float is a sensor value that always renders with a fractional part,
// so 21 is written as 21.0 in both CSV rows and JSON payloads.
// The collector tells integers and floats apart by their literal form.
type Float float64

func (f Float) String() string {
	s := strconv.FormatFloat(float64(f), 'f', -1, 64)
	if math.IsInf(float64(f), 0) || math.IsNaN(float64(f)) {
		return s
	}
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

func (f Float) MarshalJSON() ([]byte, error) {
	if math.IsInf(float64(f), 0) || math.IsNaN(float64(f)) {
		return nil, fmt.Errorf("unsupported float value: %v", float64(f))
	}
	return []byte(f.String()), nil
}

func ParseFloat(s string) (Float, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, err
	}
	return Float(v), nil
}
