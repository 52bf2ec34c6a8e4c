package wxutils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPowerGenerationWh(t *testing.T) {
	assert.Equal(t, 64.0, PowerGenerationWh(3.2))
	assert.Equal(t, 0.0, PowerGenerationWh(-1))
}

func TestPaddedRange(t *testing.T) {
	lo, hi := PaddedRange([]float64{1, 3, 2})
	assert.InDelta(t, 1-0.1005, lo, 1e-9)
	assert.InDelta(t, 3+0.1005, hi, 1e-9)

	lo, hi = PaddedRange([]float64{0, 0})
	assert.InDelta(t, -0.0005, lo, 1e-9)
	assert.InDelta(t, 0.0005, hi, 1e-9)

	lo, hi = PaddedRange(nil)
	assert.Zero(t, lo)
	assert.Zero(t, hi)
}
