package sensor

import (
	"math"
	"time"

	"github.com/okian/reachyou/internal/domain/compat"
	"github.com/okian/reachyou/internal/domain/model"
)

// minBeatGap suppresses double counting of one pulse.
const minBeatGap = 300 * time.Millisecond

// DetectBPM estimates beats per minute from evenly spaced pulse samples. A
// beat is a rising crossing of mean + 0.5*stddev at least minBeatGap after
// the previous one. It reports false when fewer than two beats are found.
func DetectBPM(samples []float64, interval time.Duration) (int, bool) {
	if len(samples) < 2 || interval <= 0 {
		return 0, false
	}

	mean, std := meanStd(samples)
	threshold := mean + std*0.5
	step := interval.Seconds()
	gap := minBeatGap.Seconds()

	beats := 0
	last := 0.0
	var intervals []float64
	for i := 1; i < len(samples); i++ {
		if samples[i-1] >= threshold || samples[i] < threshold {
			continue
		}
		now := float64(i) * step
		if now-last <= gap {
			continue
		}
		beats++
		if last > 0 {
			intervals = append(intervals, now-last)
		}
		last = now
	}

	if beats < 2 || len(intervals) == 0 {
		return 0, false
	}
	avg, _ := meanStd(intervals)
	if avg <= 0 {
		return 0, false
	}
	return int(60 / avg), true
}

// AverageTemperature averages the valid samples and rounds to 0.1. With no
// valid samples it falls back to the default body temperature.
func AverageTemperature(samples []float64) float64 {
	sum, n := 0.0, 0
	for _, s := range samples {
		if math.IsNaN(s) || s < model.MinTemperature || s > model.MaxTemperature {
			continue
		}
		sum += s
		n++
	}
	if n == 0 {
		return compat.DefaultTemperature
	}
	return model.RoundTemperature(sum / float64(n))
}

func meanStd(values []float64) (float64, float64) {
	if len(values) == 0 {
		return 0, 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(len(values))

	variance := 0.0
	for _, v := range values {
		variance += (v - mean) * (v - mean)
	}
	return mean, math.Sqrt(variance / float64(len(values)))
}
