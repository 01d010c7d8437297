package compat

import "math"

const (
	maxScore         = 100
	similarityFloor  = 40
	heartRateSlope   = 2
	temperatureSlope = 30.0
	plateauExact     = 100
	plateauClose     = 85
	plateauNear      = 70
	plateauFar       = 55
)

// HeartRateSimilarity maps an absolute heart-rate difference in bpm to a
// 0-100 similarity score. Negative input is treated as its magnitude.
func HeartRateSimilarity(diff int) int {
	if diff < 0 {
		diff = -diff
	}
	if diff < 0 { // math.MinInt has no magnitude
		diff = math.MaxInt
	}
	switch {
	case diff <= 5:
		return plateauExact
	case diff <= 10:
		return plateauClose
	case diff <= 15:
		return plateauNear
	case diff <= 20:
		return plateauFar
	default:
		return max(similarityFloor, maxScore-heartRateSlope*min(diff, maxScore))
	}
}

// TemperatureSimilarity maps an absolute body-temperature difference in
// degrees Celsius to a 0-100 similarity score. The sloped tail is
// truncated toward zero.
func TemperatureSimilarity(diff float64) int {
	diff = math.Abs(diff)
	switch {
	case diff <= 0.3:
		return plateauExact
	case diff <= 0.6:
		return plateauClose
	case diff <= 1.0:
		return plateauNear
	case diff <= 1.5:
		return plateauFar
	default:
		return int(math.Max(similarityFloor, maxScore-float64(diff*temperatureSlope)))
	}
}
