package simulation

import (
	"errors"
	"fmt"

	"github.com/okian/reachyou/internal/domain/matching"
	"github.com/okian/reachyou/internal/domain/model"
	"github.com/okian/reachyou/internal/domain/types"
)

// ErrMismatch reports served data that disagrees with a local computation.
var ErrMismatch = errors.New("verification mismatch")

// expectedMatches ranks subject against every other profile with the
// local engine.
func expectedMatches(ranker *matching.Ranker, subject model.Profile, population []model.Profile, k int) []matching.Match {
	candidates := make([]matching.Candidate, 0, len(population))
	for _, p := range population {
		if p.ID == subject.ID {
			continue
		}
		candidates = append(candidates, matching.Candidate{ID: p.ID, Profile: p.Compat()})
	}
	return ranker.RankMatches(subject.Compat(), candidates, k)
}

// verifyMatches compares served fated matches with the local ranking.
// Candidates with equal totals may legitimately swap, so only the score
// sequence and rank numbering are compared.
func verifyMatches(profileID string, want []matching.Match, got []model.FatedMatch) error {
	if len(want) != len(got) {
		return fmt.Errorf("%w: profile %s: %d matches served, %d expected", ErrMismatch, profileID, len(got), len(want))
	}
	for i := range want {
		if got[i].Rank != i+1 {
			return fmt.Errorf("%w: profile %s: match %d has rank %d", ErrMismatch, profileID, i, got[i].Rank)
		}
		if got[i].Score != want[i].Score.Total {
			return fmt.Errorf("%w: profile %s: rank %d scored %d, expected %d",
				ErrMismatch, profileID, i+1, got[i].Score, want[i].Score.Total)
		}
	}
	return nil
}

// verifyRanking checks a leaderboard window starting at offset: scores
// never increase and ranks follow competition numbering.
func verifyRanking(offset int, items []types.Entry) error {
	for i, e := range items {
		if i == 0 {
			if offset == 0 && e.Rank != 1 {
				return fmt.Errorf("%w: leaderboard starts at rank %d", ErrMismatch, e.Rank)
			}
			continue
		}
		prev := items[i-1]
		switch {
		case e.Score > prev.Score:
			return fmt.Errorf("%w: %s (%.2f) ranked below %s (%.2f)", ErrMismatch, e.CoupleID, e.Score, prev.CoupleID, prev.Score)
		case e.Score == prev.Score && e.Rank != prev.Rank:
			return fmt.Errorf("%w: tied couples %s and %s ranked %d and %d", ErrMismatch, prev.CoupleID, e.CoupleID, prev.Rank, e.Rank)
		case e.Score < prev.Score && e.Rank != offset+i+1:
			return fmt.Errorf("%w: %s at position %d has rank %d", ErrMismatch, e.CoupleID, offset+i+1, e.Rank)
		}
	}
	return nil
}

// expectedCoupleScore is the leaderboard score for a base and its ratings.
func expectedCoupleScore(base int, ratings []int) float64 {
	if len(ratings) == 0 {
		return float64(base)
	}
	sum := 0
	for _, r := range ratings {
		sum += r
	}
	return model.AdjustedScore(base, float64(sum)/float64(len(ratings)))
}
