// Package model contains domain records passed between layers.
package model

import (
	"time"

	"github.com/okian/reachyou/internal/domain/compat"
)

// Profile is a stored person. HeartRate and Temperature stay nil until the
// first reading arrives.
type Profile struct {
	ID          string          `json:"id"`
	Username    string          `json:"username"`
	TypeCode    compat.TypeCode `json:"type_code"`
	ImageURL    string          `json:"image_url,omitempty"`
	HeartRate   *int            `json:"heart_rate,omitempty"`
	Temperature *float64        `json:"temperature,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// Compat returns the engine view of p with missing readings defaulted.
func (p Profile) Compat() compat.Profile {
	return compat.NewProfile(p.TypeCode, p.HeartRate, p.Temperature)
}

// WithVitals returns a copy of p carrying the given reading.
func (p Profile) WithVitals(heartRate int, temperature float64, at time.Time) Profile {
	p.HeartRate = &heartRate
	p.Temperature = &temperature
	p.UpdatedAt = at
	return p
}

// ProfilePatch carries a partial profile update. Nil fields are left as is.
type ProfilePatch struct {
	Username *string          `json:"username,omitempty"`
	TypeCode *compat.TypeCode `json:"type_code,omitempty"`
	ImageURL *string          `json:"image_url,omitempty"`
}

// Apply returns p with the patch applied.
func (pp ProfilePatch) Apply(p Profile, at time.Time) Profile {
	if pp.Username != nil {
		p.Username = *pp.Username
	}
	if pp.TypeCode != nil {
		p.TypeCode = *pp.TypeCode
	}
	if pp.ImageURL != nil {
		p.ImageURL = *pp.ImageURL
	}
	p.UpdatedAt = at
	return p
}

// Empty reports whether the patch changes nothing.
func (pp ProfilePatch) Empty() bool {
	return pp.Username == nil && pp.TypeCode == nil && pp.ImageURL == nil
}
