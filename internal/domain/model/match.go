package model

import "time"

// FatedMatch is one persisted entry of a profile's top-K list. Rank starts
// at 1.
type FatedMatch struct {
	ProfileID        string    `json:"profile_id"`
	MatchedProfileID string    `json:"matched_profile_id"`
	Rank             int       `json:"rank"`
	Score            int       `json:"score"`
	TypeScore        int       `json:"type_score"`
	HeartRateScore   int       `json:"heart_rate_score"`
	TemperatureScore int       `json:"temperature_score"`
	CreatedAt        time.Time `json:"created_at"`
}
