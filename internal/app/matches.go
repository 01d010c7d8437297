package service

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/okian/reachyou/internal/adapters/repository"
	"github.com/okian/reachyou/internal/domain/matching"
	"github.com/okian/reachyou/internal/domain/model"
	"github.com/okian/reachyou/internal/domain/types"
	"github.com/okian/reachyou/pkg/logger"
	"github.com/okian/reachyou/pkg/metrics"
)

// FatedMatches ranks profileID against every other profile, replaces its
// stored list and returns the new one. At least two other profiles must
// exist.
func (s *Service) FatedMatches(ctx context.Context, profileID string) ([]types.MatchView, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	return s.refreshMatches(ctx, profileID)
}

// StoredMatches returns the persisted list for profileID without ranking.
// Matched profiles deleted since the list was written are left out.
func (s *Service) StoredMatches(ctx context.Context, profileID string) ([]types.MatchView, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	if _, err := s.store.GetProfile(ctx, profileID); err != nil {
		return nil, err
	}
	stored, err := s.store.Matches(ctx, profileID)
	if err != nil {
		return nil, fmt.Errorf("load matches: %w", err)
	}

	views := make([]types.MatchView, 0, len(stored))
	for _, m := range stored {
		v := types.MatchView{FatedMatch: m}
		if p, err := s.store.GetProfile(ctx, m.MatchedProfileID); err == nil {
			v.Profile = &p
		}
		views = append(views, v)
	}
	return views, nil
}

// RecomputeAll ranks the whole population and persists every profile's
// list in parallel, bounded by the worker count. Profiles deleted while it
// runs are skipped.
func (s *Service) RecomputeAll(ctx context.Context) (types.RecomputeSummary, error) {
	if err := s.ready(); err != nil {
		return types.RecomputeSummary{}, err
	}

	profiles, err := s.store.ListProfiles(ctx, "")
	if err != nil {
		return types.RecomputeSummary{}, fmt.Errorf("list profiles: %w", err)
	}

	start := time.Now()
	ranked, err := s.ranker.RankAll(candidates(profiles), s.matchCount)
	if err != nil {
		return types.RecomputeSummary{}, err
	}
	metrics.RecordRankingDuration(float64(time.Since(start).Microseconds()) / 1000)
	metrics.RecordComputations(metrics.ModeRanking, len(profiles)*(len(profiles)-1))

	at := s.timestamp()
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workerCount)

	var written, total, skipped atomic.Int64
	for _, p := range profiles {
		list := toFated(p.ID, ranked[p.ID], at)
		g.Go(func() error {
			err := s.store.ReplaceMatches(gctx, p.ID, list)
			if errors.Is(err, repository.ErrNotFound) {
				// Deleted after the population was read.
				skipped.Add(1)
				return nil
			}
			if err != nil {
				return fmt.Errorf("replace matches for %s: %w", p.ID, err)
			}
			written.Add(1)
			total.Add(int64(len(list)))
			metrics.RecordMatchWrite()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		metrics.RecordErrorByComponent("service", "recompute")
		return types.RecomputeSummary{}, err
	}

	summary := types.RecomputeSummary{
		Profiles: int(written.Load()),
		Matches:  int(total.Load()),
		Skipped:  int(skipped.Load()),
	}
	s.logger.Info(ctx, "fated matches recomputed",
		logger.Int("profiles", summary.Profiles),
		logger.Int("matches", summary.Matches),
		logger.Int("skipped", summary.Skipped),
		logger.Duration("elapsed", time.Since(start)),
	)
	return summary, nil
}

// refreshMatches recomputes and stores profileID's list.
func (s *Service) refreshMatches(ctx context.Context, profileID string) ([]types.MatchView, error) {
	subject, err := s.store.GetProfile(ctx, profileID)
	if err != nil {
		return nil, err
	}
	profiles, err := s.store.ListProfiles(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("list profiles: %w", err)
	}

	others := make([]model.Profile, 0, len(profiles))
	byID := make(map[string]model.Profile, len(profiles))
	for _, p := range profiles {
		if p.ID == subject.ID {
			continue
		}
		others = append(others, p)
		byID[p.ID] = p
	}
	if len(others) < 2 {
		return nil, fmt.Errorf("%w: profile %s has %d other profiles, need 2",
			matching.ErrInsufficientPopulation, profileID, len(others))
	}

	start := time.Now()
	ranked := s.ranker.RankMatches(subject.Compat(), candidates(others), s.matchCount)
	metrics.RecordRankingDuration(float64(time.Since(start).Microseconds()) / 1000)
	metrics.RecordComputations(metrics.ModeRanking, len(others))

	list := toFated(subject.ID, ranked, s.timestamp())
	if err := s.store.ReplaceMatches(ctx, subject.ID, list); err != nil {
		return nil, fmt.Errorf("replace matches: %w", err)
	}
	metrics.RecordMatchWrite()

	views := make([]types.MatchView, len(list))
	for i, m := range list {
		p := byID[m.MatchedProfileID]
		views[i] = types.MatchView{FatedMatch: m, Profile: &p}
	}
	return views, nil
}

func candidates(profiles []model.Profile) []matching.Candidate {
	out := make([]matching.Candidate, len(profiles))
	for i, p := range profiles {
		out[i] = matching.Candidate{ID: p.ID, Profile: p.Compat()}
	}
	return out
}

func toFated(owner string, ranked []matching.Match, at time.Time) []model.FatedMatch {
	out := make([]model.FatedMatch, len(ranked))
	for i, m := range ranked {
		out[i] = model.FatedMatch{
			ProfileID:        owner,
			MatchedProfileID: m.CandidateID,
			Rank:             i + 1,
			Score:            m.Score.Total,
			TypeScore:        m.Score.Type,
			HeartRateScore:   m.Score.HeartRate,
			TemperatureScore: m.Score.Temperature,
			CreatedAt:        at,
		}
	}
	return out
}
