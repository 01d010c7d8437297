// Package types contains request and response shapes shared by the service
// and transport layers.
package types

import "github.com/okian/reachyou/internal/domain/model"

// Entry represents a couple leaderboard row.
type Entry struct {
	Rank          int     `json:"rank"`
	CoupleID      string  `json:"couple_id"`
	Name          string  `json:"name"`
	ProfileA      string  `json:"profile_a"`
	ProfileB      string  `json:"profile_b"`
	Score         float64 `json:"score"`
	BaseScore     int     `json:"base_score"`
	AverageRating float64 `json:"average_rating"`
	RatingCount   int     `json:"rating_count"`
}

// CoupleInput registers a couple. An empty Name defaults to "A & B".
type CoupleInput struct {
	ProfileA string `json:"profile_a"`
	ProfileB string `json:"profile_b"`
	Name     string `json:"name"`
}

// CoupleView is one couple with its rank, members and ratings.
type CoupleView struct {
	Entry
	MemberA *model.Profile `json:"member_a,omitempty"`
	MemberB *model.Profile `json:"member_b,omitempty"`
	Ratings []model.Rating `json:"ratings"`
}

// Page is one window of an ordered listing.
type Page[T any] struct {
	Total  int `json:"total"`
	Offset int `json:"offset"`
	Limit  int `json:"limit"`
	Items  []T `json:"items"`
}

// HasMore reports whether items exist past this page.
func (p Page[T]) HasMore() bool {
	return p.Offset+len(p.Items) < p.Total
}
