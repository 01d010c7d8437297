// Package simulation drives a running reachyou service with generated
// profiles, readings and couples, then checks what it serves back.
package simulation

import (
	"runtime"
	"time"
)

// Config holds the load and verification settings.
type Config struct {
	BaseURL            string        // Base URL of the service
	Profiles           int           // Profiles to create
	ReadingsPerProfile int           // Readings submitted per profile
	Couples            int           // Couples to register
	RatingsPerCouple   int           // Ratings submitted per couple
	Workers            int           // Concurrent requests
	Timeout            time.Duration // HTTP request timeout
	SettleTimeout      time.Duration // How long to wait for the reading queue to drain
	Seed               uint64        // Generator seed
	OutputFile         string        // Optional JSON dump of the generated data
	Verbose            bool
}

// DefaultConfig returns settings suited to a local run.
func DefaultConfig() Config {
	return Config{
		BaseURL:            "http://localhost:9080",
		Profiles:           200,
		ReadingsPerProfile: 3,
		Couples:            50,
		RatingsPerCouple:   4,
		Workers:            runtime.NumCPU() * 2,
		Timeout:            10 * time.Second,
		SettleTimeout:      2 * time.Minute,
		Seed:               42,
	}
}

// Stats summarizes one run.
type Stats struct {
	ProfilesCreated  int           `json:"profiles_created"`
	ReadingsAccepted int           `json:"readings_accepted"`
	ReadingsDup      int           `json:"readings_duplicate"`
	ReadingsRejected int           `json:"readings_rejected"`
	CouplesCreated   int           `json:"couples_created"`
	RatingsSent      int           `json:"ratings_sent"`
	MatchesVerified  int           `json:"matches_verified"`
	Duration         time.Duration `json:"duration"`
}

// profileRequest is the POST /profiles body.
type profileRequest struct {
	Username string `json:"username"`
	TypeCode string `json:"type_code"`
}

// readingRequest is the POST /readings body.
type readingRequest struct {
	ReadingID   string  `json:"reading_id"`
	ProfileID   string  `json:"profile_id"`
	HeartRate   int     `json:"heart_rate"`
	Temperature float64 `json:"temperature"`
	TS          string  `json:"ts"`
}

type ratingRequest struct {
	Rating   int    `json:"rating"`
	Nickname string `json:"nickname"`
}
