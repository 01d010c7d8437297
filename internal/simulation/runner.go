package simulation

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/okian/reachyou/internal/domain/matching"
	"github.com/okian/reachyou/internal/domain/model"
	"github.com/okian/reachyou/internal/domain/types"
	"github.com/okian/reachyou/pkg/logger"
)

const (
	backpressureRetries = 50
	backpressureBackoff = 20 * time.Millisecond
	settlePollInterval  = 50 * time.Millisecond
	rankingPageSize     = 100
	verifySampleSize    = 25
	outputPermission    = 0o600
	directoryPermission = 0o750
)

// Runner drives one simulation against a service.
type Runner struct {
	cfg    Config
	client *Client
	gen    *generator
	ranker *matching.Ranker
	log    logger.Logger
}

// NewRunner creates a runner. A nil log discards output.
func NewRunner(cfg Config, log logger.Logger) *Runner {
	if log == nil {
		log = logger.Nop()
	}
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	return &Runner{
		cfg:    cfg,
		client: NewClient(cfg.BaseURL, cfg.Timeout),
		gen:    newGenerator(cfg.Seed),
		ranker: matching.NewRanker(),
		log:    log,
	}
}

// Run executes every phase and returns the collected statistics. The first
// verification failure stops the run.
func (r *Runner) Run(ctx context.Context) (Stats, error) {
	start := time.Now()
	var stats Stats

	r.log.Info(ctx, "starting simulation",
		logger.String("baseURL", r.cfg.BaseURL),
		logger.Int("profiles", r.cfg.Profiles),
		logger.Int("readingsPerProfile", r.cfg.ReadingsPerProfile),
		logger.Int("couples", r.cfg.Couples),
		logger.Int("workers", r.cfg.Workers))

	if err := r.checkHealth(ctx); err != nil {
		return stats, fmt.Errorf("service health check failed: %w", err)
	}

	profiles := r.gen.profiles(r.cfg.Profiles)
	ids, err := r.createProfiles(ctx, profiles)
	if err != nil {
		return stats, fmt.Errorf("profile creation failed: %w", err)
	}
	stats.ProfilesCreated = len(ids)

	readings := r.gen.readings(ids, r.cfg.ReadingsPerProfile)
	if err := r.submitReadings(ctx, readings, &stats); err != nil {
		return stats, fmt.Errorf("reading submission failed: %w", err)
	}
	if err := r.waitSettled(ctx); err != nil {
		return stats, err
	}

	if len(ids) >= 2 {
		var sum types.RecomputeSummary
		if _, err := r.client.Do(ctx, http.MethodPost, "/fated-matches/recompute", nil, &sum, http.StatusOK); err != nil {
			return stats, fmt.Errorf("recompute failed: %w", err)
		}
		r.log.Info(ctx, "fated matches recomputed", logger.Int("profiles", sum.Profiles), logger.Int("matches", sum.Matches))

		n, err := r.verifyMatches(ctx, ids)
		if err != nil {
			return stats, err
		}
		stats.MatchesVerified = n
	}

	pairs := r.gen.pairs(ids, r.cfg.Couples)
	if err := r.exerciseCouples(ctx, pairs, &stats); err != nil {
		return stats, err
	}
	if err := r.verifyLeaderboard(ctx); err != nil {
		return stats, err
	}

	if r.cfg.OutputFile != "" {
		if err := saveRun(r.cfg.OutputFile, profiles, readings, pairs); err != nil {
			r.log.Warn(ctx, "failed to save generated data", logger.Error(err))
		}
	}

	stats.Duration = time.Since(start)
	r.log.Info(ctx, "simulation completed",
		logger.Int("profilesCreated", stats.ProfilesCreated),
		logger.Int("readingsAccepted", stats.ReadingsAccepted),
		logger.Int("readingsDuplicate", stats.ReadingsDup),
		logger.Int("readingsRejected", stats.ReadingsRejected),
		logger.Int("couplesCreated", stats.CouplesCreated),
		logger.Int("ratingsSent", stats.RatingsSent),
		logger.Int("matchesVerified", stats.MatchesVerified),
		logger.Duration("duration", stats.Duration))
	return stats, nil
}

func (r *Runner) checkHealth(ctx context.Context) error {
	_, err := r.client.Do(ctx, http.MethodGet, "/healthz", nil, nil, http.StatusOK)
	return err
}

func (r *Runner) createProfiles(ctx context.Context, reqs []profileRequest) ([]string, error) {
	ids := make([]string, len(reqs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.Workers)
	for i, req := range reqs {
		g.Go(func() error {
			var p model.Profile
			if _, err := r.client.Do(gctx, http.MethodPost, "/profiles", req, &p, http.StatusCreated); err != nil {
				return err
			}
			ids[i] = p.ID
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	r.log.Info(ctx, "profiles created", logger.Int("count", len(ids)))
	return ids, nil
}

// submitReadings posts every reading, retrying on backpressure. A 4xx
// other than 429 counts as rejected rather than failing the run.
func (r *Runner) submitReadings(ctx context.Context, readings []readingRequest, stats *Stats) error {
	var accepted, duplicate, rejected atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.Workers)
	for _, reading := range readings {
		g.Go(func() error {
			for attempt := 0; ; attempt++ {
				status, err := r.client.Do(gctx, http.MethodPost, "/readings", reading, nil,
					http.StatusAccepted, http.StatusOK)
				switch {
				case err == nil && status == http.StatusAccepted:
					accepted.Add(1)
					return nil
				case err == nil:
					duplicate.Add(1)
					return nil
				case status == http.StatusTooManyRequests && attempt < backpressureRetries:
					select {
					case <-gctx.Done():
						return gctx.Err()
					case <-time.After(backpressureBackoff):
					}
				case status >= http.StatusBadRequest && status < http.StatusInternalServerError:
					rejected.Add(1)
					if r.cfg.Verbose {
						r.log.Warn(gctx, "reading rejected", logger.String("reading_id", reading.ReadingID), logger.Error(err))
					}
					return nil
				default:
					return err
				}
			}
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	stats.ReadingsAccepted = int(accepted.Load())
	stats.ReadingsDup = int(duplicate.Load())
	stats.ReadingsRejected = int(rejected.Load())
	r.log.Info(ctx, "readings submitted",
		logger.Int("accepted", stats.ReadingsAccepted),
		logger.Int("duplicate", stats.ReadingsDup),
		logger.Int("rejected", stats.ReadingsRejected))
	return nil
}

// waitSettled polls /stats until the reading queue and the workers have
// stayed idle for two consecutive polls.
func (r *Runner) waitSettled(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.SettleTimeout)
	defer cancel()

	empty := 0
	for {
		var stats struct {
			QueueLength   int `json:"queueLength"`
			ActiveWorkers int `json:"activeWorkers"`
		}
		if _, err := r.client.Do(ctx, http.MethodGet, "/stats", nil, &stats, http.StatusOK); err != nil {
			return fmt.Errorf("poll stats: %w", err)
		}
		if stats.QueueLength == 0 && stats.ActiveWorkers == 0 {
			empty++
		} else {
			empty = 0
		}
		if empty >= 2 {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("reading queue did not drain: %w", ctx.Err())
		case <-time.After(settlePollInterval):
		}
	}
}

// verifyMatches recomputes a sample of fated-match lists locally from the
// served profiles and compares them with the stored lists.
func (r *Runner) verifyMatches(ctx context.Context, ids []string) (int, error) {
	var settings struct {
		MatchCount int `json:"matchCount"`
	}
	if _, err := r.client.Do(ctx, http.MethodGet, "/stats", nil, &settings, http.StatusOK); err != nil {
		return 0, err
	}
	var list struct {
		Profiles []model.Profile `json:"profiles"`
	}
	if _, err := r.client.Do(ctx, http.MethodGet, "/profiles", nil, &list, http.StatusOK); err != nil {
		return 0, err
	}
	byID := make(map[string]model.Profile, len(list.Profiles))
	for _, p := range list.Profiles {
		byID[p.ID] = p
	}

	sample := ids
	if len(sample) > verifySampleSize {
		sample = sample[:verifySampleSize]
	}
	for _, id := range sample {
		if _, ok := byID[id]; !ok {
			return 0, fmt.Errorf("%w: profile %s missing from listing", ErrMismatch, id)
		}
	}

	var verified atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.Workers)
	for _, id := range sample {
		subject := byID[id]
		g.Go(func() error {
			var served struct {
				Matches []types.MatchView `json:"matches"`
			}
			if _, err := r.client.Do(gctx, http.MethodGet, "/fated-matches/"+id+"/stored", nil, &served, http.StatusOK); err != nil {
				return err
			}
			got := make([]model.FatedMatch, len(served.Matches))
			for i, m := range served.Matches {
				got[i] = m.FatedMatch
			}
			want := expectedMatches(r.ranker, subject, list.Profiles, settings.MatchCount)
			if err := verifyMatches(id, want, got); err != nil {
				return err
			}
			verified.Add(int64(len(got)))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}
	r.log.Info(ctx, "fated matches verified", logger.Int("profiles", len(sample)))
	return int(verified.Load()), nil
}

// exerciseCouples registers pairs, rates each couple and checks the
// served score against the local formula.
func (r *Runner) exerciseCouples(ctx context.Context, pairs [][2]string, stats *Stats) error {
	var created, rated atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.Workers)
	for i, pair := range pairs {
		scores := make([]int, r.cfg.RatingsPerCouple)
		for j := range scores {
			scores[j] = r.gen.rating()
		}

		g.Go(func() error {
			var entry types.Entry
			status, err := r.client.Do(gctx, http.MethodPost, "/couples",
				map[string]string{"profile_a": pair[0], "profile_b": pair[1]}, &entry,
				http.StatusCreated, http.StatusConflict)
			if err != nil {
				return err
			}
			if status == http.StatusConflict {
				return nil
			}
			created.Add(1)

			for _, score := range scores {
				req := ratingRequest{Rating: score, Nickname: "sim-" + strconv.Itoa(i)}
				if _, err := r.client.Do(gctx, http.MethodPut, "/couples/"+entry.CoupleID+"/rating", req, nil, http.StatusOK); err != nil {
					return err
				}
				rated.Add(1)
			}

			var view types.CoupleView
			if _, err := r.client.Do(gctx, http.MethodGet, "/couples/"+entry.CoupleID, nil, &view, http.StatusOK); err != nil {
				return err
			}
			want := expectedCoupleScore(view.BaseScore, scores)
			if math.Abs(view.Score-want) > 1e-9 {
				return fmt.Errorf("%w: couple %s scored %.4f, expected %.4f", ErrMismatch, entry.CoupleID, view.Score, want)
			}
			if len(view.Ratings) != len(scores) {
				return fmt.Errorf("%w: couple %s has %d ratings, sent %d", ErrMismatch, entry.CoupleID, len(view.Ratings), len(scores))
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	stats.CouplesCreated = int(created.Load())
	stats.RatingsSent = int(rated.Load())
	r.log.Info(ctx, "couples exercised",
		logger.Int("created", stats.CouplesCreated),
		logger.Int("ratings", stats.RatingsSent))
	return nil
}

// verifyLeaderboard walks the whole ranking page by page.
func (r *Runner) verifyLeaderboard(ctx context.Context) error {
	for offset := 0; ; offset += rankingPageSize {
		var page types.Page[types.Entry]
		path := fmt.Sprintf("/couples/ranking?limit=%d&offset=%d", rankingPageSize, offset)
		if _, err := r.client.Do(ctx, http.MethodGet, path, nil, &page, http.StatusOK); err != nil {
			return err
		}
		if err := verifyRanking(offset, page.Items); err != nil {
			return err
		}
		if !page.HasMore() {
			r.log.Info(ctx, "leaderboard verified", logger.Int("couples", page.Total))
			return nil
		}
	}
}

// saveRun writes the generated data as one JSON document.
func saveRun(path string, profiles []profileRequest, readings []readingRequest, pairs [][2]string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, directoryPermission); err != nil {
			return fmt.Errorf("create directory: %w", err)
		}
	}
	data, err := json.MarshalIndent(map[string]any{
		"profiles": profiles,
		"readings": readings,
		"couples":  pairs,
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal run: %w", err)
	}
	if err := os.WriteFile(path, data, outputPermission); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
