// Package repository persists profiles, fated matches and the couple
// leaderboard.
package repository

import (
	"context"
	"time"

	"github.com/okian/reachyou/internal/domain/compat"
	"github.com/okian/reachyou/internal/domain/model"
)

// ProfileStore provides read/write access to profile records.
type ProfileStore interface {
	// CreateProfile stores a new profile. Returns ErrProfileExists when the
	// id is taken.
	CreateProfile(ctx context.Context, p model.Profile) error
	// GetProfile returns ErrNotFound if the profile is unknown.
	GetProfile(ctx context.Context, id string) (model.Profile, error)
	// ListProfiles returns profiles ordered by creation time then id. An
	// empty typeCode lists every profile.
	ListProfiles(ctx context.Context, typeCode compat.TypeCode) ([]model.Profile, error)
	// UpdateProfile overwrites username, type code and image url.
	UpdateProfile(ctx context.Context, p model.Profile) error
	// UpdateVitals stores a reading on the profile and returns the result.
	UpdateVitals(ctx context.Context, id string, heartRate int, temperature float64, at time.Time) (model.Profile, error)
	// DeleteProfile removes the profile, its fated matches and every match
	// entry pointing at it.
	DeleteProfile(ctx context.Context, id string) error
	CountProfiles(ctx context.Context) (int, error)
	CountByType(ctx context.Context) (map[compat.TypeCode]int, error)
}

// MatchStore persists each profile's fated match list.
type MatchStore interface {
	// ReplaceMatches swaps the whole list for profileID. Readers see either
	// the old or the new list, never a mix.
	ReplaceMatches(ctx context.Context, profileID string, matches []model.FatedMatch) error
	// Matches returns the stored list ordered by rank. An unknown profile
	// yields an empty list.
	Matches(ctx context.Context, profileID string) ([]model.FatedMatch, error)
}

// Store combines profile and match persistence behind one backend.
type Store interface {
	ProfileStore
	MatchStore
	Close() error
}

// Entry represents a leaderboard row.
type Entry struct {
	Rank   int
	Couple model.Couple
}

// CoupleStore tracks registered couples ordered by score.
type CoupleStore interface {
	// CreateCouple registers c. Returns ErrDuplicateCouple if the pair
	// already exists.
	CreateCouple(ctx context.Context, c model.Couple) (model.Couple, error)
	GetCouple(ctx context.Context, id string) (model.Couple, error)
	// AddRating records r and rescores the couple.
	AddRating(ctx context.Context, coupleID string, r model.Rating) (model.Couple, error)
	// Ratings returns the couple's ratings, newest first.
	Ratings(ctx context.Context, coupleID string) ([]model.Rating, error)
	// Rank returns the couple's competition rank: one plus the number of
	// couples with a strictly higher score.
	Rank(ctx context.Context, coupleID string) (Entry, error)
	// Page returns up to limit entries starting at offset, ordered by score
	// desc then id asc.
	Page(ctx context.Context, offset, limit int) ([]Entry, error)
	Count(ctx context.Context) int
	Close() error
}
