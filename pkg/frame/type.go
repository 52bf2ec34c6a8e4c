package frame

import (
	"errors"
	"fmt"
)

var (
	ErrMalformedFrame = errors.New("malformed frame")
	ErrEmptyFrame     = fmt.Errorf("%w: empty window", ErrMalformedFrame)
	ErrMissingMarker  = fmt.Errorf("%w: missing start marker", ErrMalformedFrame)
	ErrChecksum       = fmt.Errorf("%w: checksum mismatch", ErrMalformedFrame)
	ErrInvalidLayout  = errors.New("invalid frame layout")

	// ErrNotDecimal rejects NaN, Inf, hex floats and anything else that is
	// not a plain finite decimal literal.
	ErrNotDecimal = errors.New("not a finite decimal number")
)

type Kind string

const (
	KindFloat Kind = "float"
	KindInt   Kind = "int"
)

// Field is one fixed-offset value inside a frame. Start is inclusive, End exclusive.
type Field struct {
	Name  string `toml:"name"`
	Start int    `toml:"start"`
	End   int    `toml:"end"`
	Kind  Kind   `toml:"kind"`
}

// Checksum declares a hex encoded CRC16 trailer covering raw[:Start].
type Checksum struct {
	Start     int    `toml:"start"`
	End       int    `toml:"end"`
	Algorithm string `toml:"algorithm"`
}

// Layout describes the fixed-width frame emitted by one device family.
type Layout struct {
	Name     string    `toml:"name"`
	Length   int       `toml:"length"`
	Marker   string    `toml:"marker"`
	Fields   []Field   `toml:"fields"`
	Checksum *Checksum `toml:"checksum"`
}

// FieldError reports the field whose substring could not be converted.
type FieldError struct {
	Field string
	Raw   string
	Err   error
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: field %s: cannot convert %q: %v", ErrMalformedFrame, e.Field, e.Raw, e.Err)
}

func (e *FieldError) Unwrap() []error {
	return []error{ErrMalformedFrame, e.Err}
}

// Values holds the converted fields of one decoded frame.
type Values struct {
	floats map[string]float64
	ints   map[string]int
}
