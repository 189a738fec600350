package utils

import "math"

// RoundToTick snaps a price onto the tick grid. Prices that already sit on
// the grid only lose float noise.
func RoundToTick(price, tickSize float64) float64 {
	if tickSize <= 0 {
		return price
	}
	return math.Round(price/tickSize) * tickSize
}
