package model

import (
	"fmt"
	"strings"
	"time"
)

// Rating bounds and the nickname used when a rater leaves none.
const (
	MinRating       = 1
	MaxRating       = 5
	DefaultNickname = "anonymous"
)

// Weights of the rating-adjusted couple score.
const (
	baseScoreWeight = 0.8
	ratingBonus     = 4.0
)

// Couple is a registered pair. ProfileA < ProfileB always holds.
type Couple struct {
	ID          string    `json:"id"`
	ProfileA    string    `json:"profile_a"`
	ProfileB    string    `json:"profile_b"`
	Name        string    `json:"name"`
	BaseScore   int       `json:"base_score"`
	Score       float64   `json:"score"`
	RatingSum   int       `json:"-"`
	RatingCount int       `json:"rating_count"`
	CreatedAt   time.Time `json:"created_at"`
}

// NormalizePair orders two profile ids so a couple has one canonical key.
func NormalizePair(a, b string) (string, string, error) {
	if a == "" || b == "" {
		return "", "", fmt.Errorf("%w: both profile ids are required", ErrInvalidCouple)
	}
	if a == b {
		return "", "", fmt.Errorf("%w: a profile cannot pair with itself", ErrInvalidCouple)
	}
	if b < a {
		a, b = b, a
	}
	return a, b, nil
}

// CoupleName is the default display name for two usernames.
func CoupleName(a, b string) string {
	return strings.TrimSpace(a) + " & " + strings.TrimSpace(b)
}

// AverageRating is the mean rating, 0 when unrated.
func (c Couple) AverageRating() float64 {
	if c.RatingCount == 0 {
		return 0
	}
	return float64(c.RatingSum) / float64(c.RatingCount)
}

// AddRating folds one rating into the aggregate and rescores from the
// original base score.
func (c Couple) AddRating(rating int) Couple {
	c.RatingSum += rating
	c.RatingCount++
	c.Score = AdjustedScore(c.BaseScore, c.AverageRating())
	return c
}

// AdjustedScore is base*0.8 + average*4. An unrated couple keeps its base.
func AdjustedScore(base int, average float64) float64 {
	if average == 0 {
		return float64(base)
	}
	return float64(base)*baseScoreWeight + average*ratingBonus
}

// Rating is one visitor's opinion of a couple.
type Rating struct {
	CoupleID  string    `json:"couple_id"`
	Rating    int       `json:"rating"`
	Comment   string    `json:"comment,omitempty"`
	Nickname  string    `json:"nickname"`
	CreatedAt time.Time `json:"created_at"`
}

// Normalize validates the rating and fills the default nickname.
func (r Rating) Normalize() (Rating, error) {
	if r.Rating < MinRating || r.Rating > MaxRating {
		return Rating{}, fmt.Errorf("%w: rating %d outside [%d, %d]", ErrInvalidRating, r.Rating, MinRating, MaxRating)
	}
	r.Nickname = strings.TrimSpace(r.Nickname)
	if r.Nickname == "" {
		r.Nickname = DefaultNickname
	}
	return r, nil
}
