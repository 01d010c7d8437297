package model

import "errors"

// Validation errors for domain records.
var (
	ErrInvalidProfile = errors.New("invalid profile")
	ErrInvalidReading = errors.New("invalid reading")
	ErrInvalidCouple  = errors.New("invalid couple")
	ErrInvalidRating  = errors.New("invalid rating")
)
