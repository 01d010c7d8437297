package service

import (
	"context"
	"fmt"

	"github.com/okian/reachyou/internal/domain/compat"
	"github.com/okian/reachyou/internal/domain/model"
	"github.com/okian/reachyou/internal/domain/types"
	"github.com/okian/reachyou/pkg/metrics"
)

// CalculatePair scores two stored profiles.
func (s *Service) CalculatePair(ctx context.Context, aID, bID string) (types.PairScore, error) {
	if err := s.ready(); err != nil {
		return types.PairScore{}, err
	}
	a, err := s.store.GetProfile(ctx, aID)
	if err != nil {
		return types.PairScore{}, err
	}
	b, err := s.store.GetProfile(ctx, bID)
	if err != nil {
		return types.PairScore{}, err
	}

	metrics.RecordComputation(metrics.ModePairwise)
	return types.PairScore{ProfileA: a, ProfileB: b, Score: s.engine.Score(a.Compat(), b.Compat())}, nil
}

// Manual scores raw inputs without touching the store. Supplied readings
// must be within the bounds accepted for stored readings.
func (s *Service) Manual(in types.ManualInput) (types.ManualScore, error) {
	ta, err := compat.ParseTypeCode(in.TypeA)
	if err != nil {
		return types.ManualScore{}, err
	}
	tb, err := compat.ParseTypeCode(in.TypeB)
	if err != nil {
		return types.ManualScore{}, err
	}

	if err := checkVitals("a", in.HeartRateA, in.TemperatureA); err != nil {
		return types.ManualScore{}, err
	}
	if err := checkVitals("b", in.HeartRateB, in.TemperatureB); err != nil {
		return types.ManualScore{}, err
	}

	a := compat.NewProfile(ta, in.HeartRateA, in.TemperatureA)
	b := compat.NewProfile(tb, in.HeartRateB, in.TemperatureB)
	metrics.RecordComputation(metrics.ModeManual)
	return types.ManualScore{A: a, B: b, Score: s.engine.Score(a, b)}, nil
}

func checkVitals(side string, heartRate *int, temperature *float64) error {
	if heartRate != nil {
		if err := model.CheckHeartRate(*heartRate); err != nil {
			return fmt.Errorf("profile %s: %w", side, err)
		}
	}
	if temperature != nil {
		if err := model.CheckTemperature(*temperature); err != nil {
			return fmt.Errorf("profile %s: %w", side, err)
		}
	}
	return nil
}

// TypeInfo returns the directional type score for (a, b).
func (s *Service) TypeInfo(a, b string) (types.TypeScore, error) {
	ta, err := compat.ParseTypeCode(a)
	if err != nil {
		return types.TypeScore{}, err
	}
	tb, err := compat.ParseTypeCode(b)
	if err != nil {
		return types.TypeScore{}, err
	}

	score := s.engine.Table().Lookup(ta, tb)
	band, desc := compat.Describe(score)
	return types.TypeScore{A: ta, B: tb, Score: score, Band: band, Description: desc}, nil
}

// Chart returns the whole type table.
func (s *Service) Chart() types.TypeChart {
	t := s.engine.Table()
	return types.TypeChart{
		Types:       compat.TypeCodes(),
		Chart:       t.Chart(),
		Asymmetries: t.Asymmetries(),
	}
}
