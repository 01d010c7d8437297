package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/okian/reachyou/internal/adapters/repository"
	"github.com/okian/reachyou/internal/domain/model"
	"github.com/okian/reachyou/internal/domain/types"
	"github.com/okian/reachyou/pkg/logger"
	"github.com/okian/reachyou/pkg/metrics"
)

// RegisterCouple scores the pair in request order and adds it to the
// leaderboard with that total as its base score.
func (s *Service) RegisterCouple(ctx context.Context, in types.CoupleInput) (types.Entry, error) {
	if err := s.ready(); err != nil {
		return types.Entry{}, err
	}
	if _, _, err := model.NormalizePair(in.ProfileA, in.ProfileB); err != nil {
		return types.Entry{}, err
	}

	a, err := s.store.GetProfile(ctx, in.ProfileA)
	if err != nil {
		return types.Entry{}, err
	}
	b, err := s.store.GetProfile(ctx, in.ProfileB)
	if err != nil {
		return types.Entry{}, err
	}

	score := s.engine.Score(a.Compat(), b.Compat())
	metrics.RecordComputation(metrics.ModePairwise)

	name := strings.TrimSpace(in.Name)
	if name == "" {
		name = model.CoupleName(a.Username, b.Username)
	}

	c, err := s.couples.CreateCouple(ctx, model.Couple{
		ID:        uuid.NewString(),
		ProfileA:  a.ID,
		ProfileB:  b.ID,
		Name:      name,
		BaseScore: score.Total,
		CreatedAt: s.timestamp(),
	})
	if err != nil {
		return types.Entry{}, fmt.Errorf("register couple: %w", err)
	}
	metrics.UpdateCouplesTotal(s.couples.Count(ctx))
	s.logger.Debug(ctx, "couple registered",
		logger.String("couple_id", c.ID),
		logger.Int("base_score", c.BaseScore),
	)

	entry, err := s.couples.Rank(ctx, c.ID)
	if err != nil {
		return types.Entry{}, err
	}
	return toEntry(entry), nil
}

// CoupleRanking returns one page of the leaderboard. limit must be in
// [1, max ranking limit] and offset non-negative.
func (s *Service) CoupleRanking(ctx context.Context, offset, limit int) (types.Page[types.Entry], error) {
	if err := s.ready(); err != nil {
		return types.Page[types.Entry]{}, err
	}
	if limit < 1 || limit > s.maxRankingLimit || offset < 0 {
		return types.Page[types.Entry]{}, fmt.Errorf("%w: limit must be 1..%d and offset >= 0",
			repository.ErrInvalidLimit, s.maxRankingLimit)
	}

	entries, err := s.couples.Page(ctx, offset, limit)
	if err != nil {
		return types.Page[types.Entry]{}, err
	}
	items := make([]types.Entry, len(entries))
	for i, e := range entries {
		items[i] = toEntry(e)
	}
	return types.Page[types.Entry]{
		Total:  s.couples.Count(ctx),
		Offset: offset,
		Limit:  limit,
		Items:  items,
	}, nil
}

// CoupleDetail returns a couple with its current rank and ratings, newest
// first. Members deleted since registration are omitted.
func (s *Service) CoupleDetail(ctx context.Context, id string) (types.CoupleView, error) {
	if err := s.ready(); err != nil {
		return types.CoupleView{}, err
	}
	entry, err := s.couples.Rank(ctx, id)
	if err != nil {
		return types.CoupleView{}, err
	}
	ratings, err := s.couples.Ratings(ctx, id)
	if err != nil {
		return types.CoupleView{}, err
	}

	d := types.CoupleView{Entry: toEntry(entry), Ratings: ratings}
	if p, err := s.store.GetProfile(ctx, entry.Couple.ProfileA); err == nil {
		d.MemberA = &p
	}
	if p, err := s.store.GetProfile(ctx, entry.Couple.ProfileB); err == nil {
		d.MemberB = &p
	}
	return d, nil
}

// RateCouple records a 1-5 rating and returns the rescored entry.
func (s *Service) RateCouple(ctx context.Context, id string, r model.Rating) (types.Entry, error) {
	if err := s.ready(); err != nil {
		return types.Entry{}, err
	}
	r.Comment = strings.TrimSpace(r.Comment)
	r.CreatedAt = s.timestamp()

	if _, err := s.couples.AddRating(ctx, id, r); err != nil {
		return types.Entry{}, err
	}
	metrics.RecordRating()

	entry, err := s.couples.Rank(ctx, id)
	if err != nil {
		return types.Entry{}, err
	}
	return toEntry(entry), nil
}

func toEntry(e repository.Entry) types.Entry {
	c := e.Couple
	return types.Entry{
		Rank:          e.Rank,
		CoupleID:      c.ID,
		Name:          c.Name,
		ProfileA:      c.ProfileA,
		ProfileB:      c.ProfileB,
		Score:         c.Score,
		BaseScore:     c.BaseScore,
		AverageRating: c.AverageRating(),
		RatingCount:   c.RatingCount,
	}
}
