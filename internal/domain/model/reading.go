package model

import (
	"fmt"
	"math"
	"time"
)

// Plausible measurement bounds. Readings outside them are sensor faults.
const (
	MinHeartRate   = 20
	MaxHeartRate   = 250
	MinTemperature = 30.0
	MaxTemperature = 45.0
)

// Reading is one heart-rate and body-temperature measurement.
type Reading struct {
	ReadingID   string    `json:"reading_id"`  // unique id for idempotency
	ProfileID   string    `json:"profile_id"`  // measured profile
	HeartRate   int       `json:"heart_rate"`  // bpm
	Temperature float64   `json:"temperature"` // degrees Celsius
	TS          time.Time `json:"ts"`
}

// Validate checks ids and measurement bounds.
func (r Reading) Validate() error {
	switch {
	case r.ReadingID == "":
		return fmt.Errorf("%w: reading_id is required", ErrInvalidReading)
	case r.ProfileID == "":
		return fmt.Errorf("%w: profile_id is required", ErrInvalidReading)
	}
	if err := CheckHeartRate(r.HeartRate); err != nil {
		return err
	}
	return CheckTemperature(r.Temperature)
}

// CheckHeartRate reports ErrInvalidReading for a bpm outside the plausible
// bounds.
func CheckHeartRate(bpm int) error {
	if bpm < MinHeartRate || bpm > MaxHeartRate {
		return fmt.Errorf("%w: heart_rate %d outside [%d, %d]", ErrInvalidReading, bpm, MinHeartRate, MaxHeartRate)
	}
	return nil
}

// CheckTemperature reports ErrInvalidReading for NaN or a temperature
// outside the plausible bounds.
func CheckTemperature(celsius float64) error {
	if math.IsNaN(celsius) || celsius < MinTemperature || celsius > MaxTemperature {
		return fmt.Errorf("%w: temperature %.2f outside [%.1f, %.1f]", ErrInvalidReading, celsius, MinTemperature, MaxTemperature)
	}
	return nil
}

// RoundTemperature rounds t to one decimal place, the resolution stored
// for body temperature.
func RoundTemperature(t float64) float64 {
	return math.Round(t*10) / 10
}
