package types

import "github.com/okian/reachyou/internal/domain/model"

// ProfileInput is the payload for creating a profile.
type ProfileInput struct {
	Username string `json:"username"`
	TypeCode string `json:"type_code"`
	ImageURL string `json:"image_url"`
}

// ProfileUpdate carries optional profile changes. Nil fields are kept.
type ProfileUpdate struct {
	Username *string `json:"username"`
	TypeCode *string `json:"type_code"`
	ImageURL *string `json:"image_url"`
}

// MatchView is a stored fated match joined with the matched profile.
type MatchView struct {
	model.FatedMatch
	Profile *model.Profile `json:"profile,omitempty"`
}

// RecomputeSummary reports a population recompute.
type RecomputeSummary struct {
	Profiles int `json:"profiles"`
	Matches  int `json:"matches"`
	Skipped  int `json:"skipped,omitempty"` // deleted during the run
}
