package simulation

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/okian/reachyou/internal/adapters/http/api"
	service "github.com/okian/reachyou/internal/app"
	"github.com/okian/reachyou/internal/domain/compat"
	"github.com/okian/reachyou/internal/domain/matching"
	"github.com/okian/reachyou/internal/domain/model"
	"github.com/okian/reachyou/internal/domain/types"
	. "github.com/smartystreets/goconvey/convey"
)

func TestGenerator(t *testing.T) {
	Convey("Given two generators with the same seed", t, func() {
		a, b := newGenerator(7), newGenerator(7)

		Convey("Profiles are reproducible and use canonical codes", func() {
			pa, pb := a.profiles(30), b.profiles(30)
			So(pa, ShouldResemble, pb)
			for _, p := range pa {
				_, err := compat.ParseTypeCode(p.TypeCode)
				So(err, ShouldBeNil)
			}
		})

		Convey("Readings stay valid and every third one is a replay", func() {
			ids := []string{"p1", "p2", "p3", "p4"}
			rs := a.readings(ids, 3)
			So(len(rs), ShouldEqual, 12)
			for i, r := range rs {
				err := model.Reading{
					ReadingID:   r.ReadingID,
					ProfileID:   r.ProfileID,
					HeartRate:   r.HeartRate,
					Temperature: r.Temperature,
				}.Validate()
				So(err, ShouldBeNil)
				if i%3 == 2 {
					So(r, ShouldResemble, rs[i-1])
				}
			}
		})

		Convey("Pairs are distinct and never self-paired", func() {
			ids := []string{"a", "b", "c", "d", "e"}
			pairs := a.pairs(ids, 10)
			So(len(pairs), ShouldEqual, 10)
			seen := map[[2]string]bool{}
			for _, p := range pairs {
				So(p[0], ShouldNotEqual, p[1])
				key := [2]string{min(p[0], p[1]), max(p[0], p[1])}
				So(seen[key], ShouldBeFalse)
				seen[key] = true
			}
			So(a.pairs([]string{"solo"}, 3), ShouldBeEmpty)
		})

		Convey("Ratings are within 1..5", func() {
			for i := 0; i < 100; i++ {
				r := a.rating()
				So(r, ShouldBeBetweenOrEqual, 1, 5)
			}
		})
	})
}

func TestVerifyRanking(t *testing.T) {
	Convey("Given leaderboard windows", t, func() {
		entry := func(id string, rank int, score float64) types.Entry {
			return types.Entry{CoupleID: id, Rank: rank, Score: score}
		}

		cases := []struct {
			name   string
			offset int
			items  []types.Entry
			ok     bool
		}{
			{"competition ranks", 0, []types.Entry{entry("a", 1, 90), entry("b", 2, 80), entry("c", 2, 80), entry("d", 4, 70)}, true},
			{"later window", 2, []types.Entry{entry("c", 2, 80), entry("d", 4, 70)}, true},
			{"empty", 0, nil, true},
			{"rising score", 0, []types.Entry{entry("a", 1, 80), entry("b", 2, 90)}, false},
			{"split tie", 0, []types.Entry{entry("a", 1, 80), entry("b", 2, 80)}, false},
			{"dense ranks", 0, []types.Entry{entry("a", 1, 90), entry("b", 1, 90), entry("c", 2, 80)}, false},
			{"not starting at one", 0, []types.Entry{entry("a", 2, 90)}, false},
		}
		for _, tc := range cases {
			err := verifyRanking(tc.offset, tc.items)
			if tc.ok {
				So(err, ShouldBeNil)
			} else {
				So(errors.Is(err, ErrMismatch), ShouldBeTrue)
			}
		}
	})
}

func TestVerifyMatches(t *testing.T) {
	Convey("Given a local ranking", t, func() {
		hr := 70
		subject := model.Profile{ID: "s", TypeCode: compat.INFJ}
		population := []model.Profile{
			subject,
			{ID: "best", TypeCode: compat.ENFP},
			{ID: "low", TypeCode: compat.ISFJ, HeartRate: &hr},
			{ID: "second", TypeCode: compat.ENTP},
		}
		want := expectedMatches(matching.NewRanker(), subject, population, 2)
		So(len(want), ShouldEqual, 2)
		So(want[0].CandidateID, ShouldEqual, "best")

		Convey("Matching scores pass", func() {
			got := []model.FatedMatch{
				{Rank: 1, MatchedProfileID: "best", Score: want[0].Score.Total},
				{Rank: 2, MatchedProfileID: "second", Score: want[1].Score.Total},
			}
			So(verifyMatches("s", want, got), ShouldBeNil)
		})

		Convey("A wrong score or length fails", func() {
			got := []model.FatedMatch{
				{Rank: 1, Score: want[0].Score.Total},
				{Rank: 2, Score: want[1].Score.Total - 1},
			}
			So(errors.Is(verifyMatches("s", want, got), ErrMismatch), ShouldBeTrue)
			So(errors.Is(verifyMatches("s", want, got[:1]), ErrMismatch), ShouldBeTrue)
		})
	})
}

func TestExpectedCoupleScore(t *testing.T) {
	Convey("Couple scores follow the rating formula", t, func() {
		So(expectedCoupleScore(90, nil), ShouldEqual, 90.0)
		So(expectedCoupleScore(100, []int{5}), ShouldEqual, 100.0)
		So(expectedCoupleScore(100, []int{5, 1}), ShouldEqual, 92.0)
	})
}

func TestClient(t *testing.T) {
	Convey("Given a server with fixed answers", t, func() {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.URL.Path {
			case "/ok":
				w.Header().Set("Content-Type", "application/json")
				_, _ = w.Write([]byte(`{"status":"accepted"}`))
			default:
				w.WriteHeader(http.StatusTeapot)
				_, _ = w.Write([]byte(`{"code":"teapot"}`))
			}
		}))
		Reset(srv.Close)
		c := NewClient(srv.URL, time.Second)
		ctx := context.Background()

		Convey("A wanted status decodes the body", func() {
			var out struct {
				Status string `json:"status"`
			}
			status, err := c.Do(ctx, http.MethodPost, "/ok", map[string]int{"n": 1}, &out, http.StatusOK)
			So(err, ShouldBeNil)
			So(status, ShouldEqual, http.StatusOK)
			So(out.Status, ShouldEqual, "accepted")
		})

		Convey("An unwanted status is reported with its code", func() {
			status, err := c.Do(ctx, http.MethodGet, "/other", nil, nil)
			So(status, ShouldEqual, http.StatusTeapot)
			So(errors.Is(err, ErrUnexpectedStatus), ShouldBeTrue)
			So(err.Error(), ShouldContainSubstring, "teapot")
		})
	})
}

func TestRunner_AgainstService(t *testing.T) {
	if testing.Short() {
		t.Skip("end-to-end simulation")
	}

	Convey("Given a running service behind an HTTP server", t, func() {
		ctx := context.Background()
		svc := service.New(
			service.WithWorkerCount(4),
			service.WithQueueSize(16),
			service.WithDedupeSize(1000),
			service.WithSensorLatencyRange(time.Millisecond, 2*time.Millisecond),
		)
		So(svc.Start(ctx), ShouldBeNil)

		mux := http.NewServeMux()
		api.NewServer(svc).Register(mux)
		srv := httptest.NewServer(mux)
		Reset(func() {
			srv.Close()
			_ = svc.Stop(ctx)
		})

		out := filepath.Join(t.TempDir(), "run", "data.json")
		cfg := DefaultConfig()
		cfg.BaseURL = srv.URL
		cfg.Profiles = 30
		cfg.ReadingsPerProfile = 3
		cfg.Couples = 12
		cfg.RatingsPerCouple = 3
		cfg.Workers = 8
		cfg.Timeout = 5 * time.Second
		cfg.SettleTimeout = 10 * time.Second
		cfg.OutputFile = out

		Convey("The simulation completes and every check passes", func() {
			stats, err := NewRunner(cfg, nil).Run(ctx)
			So(err, ShouldBeNil)
			So(stats.ProfilesCreated, ShouldEqual, 30)
			So(stats.ReadingsAccepted+stats.ReadingsDup, ShouldEqual, 90)
			So(stats.ReadingsDup, ShouldEqual, 30)
			So(stats.ReadingsRejected, ShouldEqual, 0)
			So(stats.CouplesCreated, ShouldEqual, 12)
			So(stats.RatingsSent, ShouldEqual, 36)
			So(stats.MatchesVerified, ShouldEqual, 25*2)

			data, err := os.ReadFile(out)
			So(err, ShouldBeNil)
			var doc map[string]json.RawMessage
			So(json.Unmarshal(data, &doc), ShouldBeNil)
			So(doc, ShouldContainKey, "readings")
		})
	})
}
