// Package matching selects the top-K most compatible partners ("fated
// matches") for one subject or for a whole population.
package matching

import (
	"sort"

	"github.com/okian/reachyou/internal/domain/compat"
)

// DefaultK is the number of fated matches kept per subject.
const DefaultK = 2

// minPopulation is the smallest population for which every subject has at
// least one candidate.
const minPopulation = 2

// Candidate is an identified profile offered to the ranker.
type Candidate struct {
	ID      string
	Profile compat.Profile
}

// Match is one ranked candidate with its score breakdown.
type Match struct {
	CandidateID string         `json:"candidate_id"`
	Profile     compat.Profile `json:"profile"`
	Score       compat.Result  `json:"score"`
}

// Option applies a configuration option to the Ranker.
type Option func(*Ranker)

// WithEngine sets the engine candidates are scored with.
func WithEngine(e *compat.Engine) Option {
	return func(r *Ranker) {
		if e != nil {
			r.engine = e
		}
	}
}

// Ranker orders candidates by composite score. It holds no mutable state
// and is safe for concurrent use.
type Ranker struct {
	engine *compat.Engine
}

// NewRanker creates a ranker scoring with the canonical engine unless
// overridden.
func NewRanker(opts ...Option) *Ranker {
	r := &Ranker{engine: compat.NewEngine()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RankMatches scores every candidate against subject and returns the best
// min(k, len(candidates)) in descending total order. Equal totals keep
// their input order. k <= 0 yields an empty result.
func (r *Ranker) RankMatches(subject compat.Profile, candidates []Candidate, k int) []Match {
	if k <= 0 || len(candidates) == 0 {
		return []Match{}
	}

	matches := make([]Match, len(candidates))
	for i, c := range candidates {
		matches[i] = Match{
			CandidateID: c.ID,
			Profile:     c.Profile,
			Score:       r.engine.Score(subject, c.Profile),
		}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score.Total > matches[j].Score.Total
	})

	if k < len(matches) {
		matches = matches[:k]
	}
	return matches
}

// RankAll ranks every member of population against the others. Repeated
// ids collapse to their first occurrence, and candidates for each subject
// keep population order. Fewer than two distinct ids is an error.
func (r *Ranker) RankAll(population []Candidate, k int) (map[string][]Match, error) {
	distinct := make([]Candidate, 0, len(population))
	seen := make(map[string]struct{}, len(population))
	for _, c := range population {
		if _, ok := seen[c.ID]; ok {
			continue
		}
		seen[c.ID] = struct{}{}
		distinct = append(distinct, c)
	}
	if len(distinct) < minPopulation {
		return nil, ErrInsufficientPopulation
	}

	out := make(map[string][]Match, len(distinct))
	others := make([]Candidate, 0, len(distinct)-1)
	for i, subject := range distinct {
		others = others[:0]
		others = append(others, distinct[:i]...)
		others = append(others, distinct[i+1:]...)
		out[subject.ID] = r.RankMatches(subject.Profile, others, k)
	}
	return out, nil
}

var defaultRanker = NewRanker()

// RankMatches ranks candidates with the canonical engine.
func RankMatches(subject compat.Profile, candidates []Candidate, k int) []Match {
	return defaultRanker.RankMatches(subject, candidates, k)
}

// RankAll ranks a population with the canonical engine.
func RankAll(population []Candidate, k int) (map[string][]Match, error) {
	return defaultRanker.RankAll(population, k)
}
