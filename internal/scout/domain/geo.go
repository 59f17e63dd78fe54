package domain

import "math"

func cosDegrees(deg float64) float64 {
	return math.Cos(deg * math.Pi / 180.0)
}
