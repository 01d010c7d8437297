package types

import (
	"github.com/okian/reachyou/internal/domain/compat"
	"github.com/okian/reachyou/internal/domain/model"
)

// PairScore is the compatibility of two stored profiles, scored in the
// order they were requested.
type PairScore struct {
	ProfileA model.Profile `json:"profile_a"`
	ProfileB model.Profile `json:"profile_b"`
	Score    compat.Result `json:"compatibility"`
}

// ManualInput is a score request over raw values. Nil readings default.
type ManualInput struct {
	TypeA        string   `json:"type_a"`
	TypeB        string   `json:"type_b"`
	HeartRateA   *int     `json:"heart_rate_a"`
	HeartRateB   *int     `json:"heart_rate_b"`
	TemperatureA *float64 `json:"temperature_a"`
	TemperatureB *float64 `json:"temperature_b"`
}

// ManualScore echoes the defaulted inputs next to the result.
type ManualScore struct {
	A     compat.Profile `json:"profile_a"`
	B     compat.Profile `json:"profile_b"`
	Score compat.Result  `json:"compatibility"`
}

// TypeScore is the categorical score of two type codes with its band.
type TypeScore struct {
	A           compat.TypeCode `json:"type_a"`
	B           compat.TypeCode `json:"type_b"`
	Score       int             `json:"score"`
	Band        compat.Band     `json:"band"`
	Description string          `json:"description"`
}

// TypeChart is the full type table in display order.
type TypeChart struct {
	Types       []compat.TypeCode                           `json:"types"`
	Chart       map[compat.TypeCode]map[compat.TypeCode]int `json:"chart"`
	Asymmetries []compat.Asymmetry                          `json:"asymmetries"`
}
