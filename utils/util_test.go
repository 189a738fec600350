package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRoundToTick(t *testing.T) {
	assert.InDelta(t, 0.62, RoundToTick(0.62, 0.01), 1e-12)
	assert.InDelta(t, 0.62, RoundToTick(0.6199999999, 0.01), 1e-12)
	assert.InDelta(t, 0.65, RoundToTick(0.6471, 0.05), 1e-12)
	assert.Equal(t, 0.615, RoundToTick(0.615, 0))
	assert.Equal(t, 0.615, RoundToTick(0.615, -1))
}
