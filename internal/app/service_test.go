package service_test

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync/atomic"
	"testing"
	"time"

	service "github.com/okian/reachyou/internal/app"
	"github.com/okian/reachyou/internal/adapters/repository"
	"github.com/okian/reachyou/internal/domain/compat"
	"github.com/okian/reachyou/internal/domain/matching"
	"github.com/okian/reachyou/internal/domain/model"
	"github.com/okian/reachyou/internal/domain/types"
	. "github.com/smartystreets/goconvey/convey"
)

var fixedNow = time.Date(2024, 2, 14, 18, 0, 0, 0, time.UTC)

func newService(opts ...service.Option) *service.Service {
	base := []service.Option{
		service.WithWorkerCount(2),
		service.WithQueueSize(100),
		service.WithDedupeSize(100),
		service.WithSensorLatencyRange(time.Millisecond, 2*time.Millisecond),
		service.WithClock(func() time.Time { return fixedNow }),
	}
	return service.New(append(base, opts...)...)
}

func mustProfile(svc *service.Service, username, code string) model.Profile {
	p, err := svc.CreateProfile(context.Background(), types.ProfileInput{Username: username, TypeCode: code})
	So(err, ShouldBeNil)
	return p
}

func ptr[T any](v T) *T { return &v }

// waitFor polls cond until it holds or the deadline passes.
func waitFor(cond func() bool) bool {
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return cond()
}

func TestService_Lifecycle(t *testing.T) {
	Convey("Given a new service", t, func() {
		ctx := context.Background()
		svc := newService()

		Convey("Operations before Start report ErrNotStarted", func() {
			_, err := svc.ListProfiles(ctx, "")
			So(errors.Is(err, service.ErrNotStarted), ShouldBeTrue)
			So(svc.GetStats(ctx)["started"], ShouldEqual, false)
		})

		Convey("When started", func() {
			So(svc.Start(ctx), ShouldBeNil)
			So(svc.Start(ctx), ShouldBeNil)

			stats := svc.GetStats(ctx)
			So(stats["started"], ShouldEqual, true)
			So(stats["storeDriver"], ShouldEqual, "memory")
			So(stats["totalProfiles"], ShouldEqual, 0)

			Convey("Then Stop is idempotent and closes the service", func() {
				So(svc.Stop(ctx), ShouldBeNil)
				So(svc.Stop(ctx), ShouldBeNil)
				_, err := svc.CreateProfile(ctx, types.ProfileInput{Username: "x", TypeCode: "INFJ"})
				So(errors.Is(err, service.ErrNotStarted), ShouldBeTrue)
			})
		})
	})
}

func TestService_Profiles(t *testing.T) {
	Convey("Given a started service", t, func() {
		ctx := context.Background()
		svc := newService()
		So(svc.Start(ctx), ShouldBeNil)
		defer svc.Stop(ctx)

		Convey("Creating a profile normalizes the type code", func() {
			p := mustProfile(svc, "  alice ", "infj")
			So(p.ID, ShouldNotBeEmpty)
			So(p.Username, ShouldEqual, "alice")
			So(p.TypeCode, ShouldEqual, compat.INFJ)
			So(p.HeartRate, ShouldBeNil)
			So(p.CreatedAt, ShouldEqual, fixedNow)
		})

		Convey("Invalid input is rejected", func() {
			_, err := svc.CreateProfile(ctx, types.ProfileInput{Username: " ", TypeCode: "INFJ"})
			So(errors.Is(err, model.ErrInvalidProfile), ShouldBeTrue)

			_, err = svc.CreateProfile(ctx, types.ProfileInput{Username: "bob", TypeCode: "ABCD"})
			So(errors.Is(err, compat.ErrUnknownType), ShouldBeTrue)
		})

		Convey("Profiles can be listed, filtered and counted by type", func() {
			mustProfile(svc, "a", "INFJ")
			mustProfile(svc, "b", "ENFP")
			mustProfile(svc, "c", "infj")

			all, err := svc.ListProfiles(ctx, "")
			So(err, ShouldBeNil)
			So(len(all), ShouldEqual, 3)

			infj, err := svc.ListProfiles(ctx, "infj")
			So(err, ShouldBeNil)
			So(len(infj), ShouldEqual, 2)

			_, err = svc.ListProfiles(ctx, "nope")
			So(errors.Is(err, compat.ErrUnknownType), ShouldBeTrue)

			counts, err := svc.TypeCounts(ctx)
			So(err, ShouldBeNil)
			So(len(counts), ShouldEqual, 16)
			So(counts[compat.INFJ], ShouldEqual, 2)
			So(counts[compat.ESTP], ShouldEqual, 0)
		})

		Convey("Profiles can be updated partially", func() {
			p := mustProfile(svc, "alice", "INFJ")

			got, err := svc.UpdateProfile(ctx, p.ID, types.ProfileUpdate{TypeCode: ptr("entp")})
			So(err, ShouldBeNil)
			So(got.TypeCode, ShouldEqual, compat.ENTP)
			So(got.Username, ShouldEqual, "alice")

			_, err = svc.UpdateProfile(ctx, p.ID, types.ProfileUpdate{})
			So(errors.Is(err, model.ErrInvalidProfile), ShouldBeTrue)

			_, err = svc.UpdateProfile(ctx, p.ID, types.ProfileUpdate{Username: ptr("")})
			So(errors.Is(err, model.ErrInvalidProfile), ShouldBeTrue)

			_, err = svc.UpdateProfile(ctx, "missing", types.ProfileUpdate{Username: ptr("x")})
			So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
		})

		Convey("Deleted profiles are gone", func() {
			p := mustProfile(svc, "alice", "INFJ")
			So(svc.DeleteProfile(ctx, p.ID), ShouldBeNil)

			_, err := svc.GetProfile(ctx, p.ID)
			So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
			So(errors.Is(svc.DeleteProfile(ctx, p.ID), repository.ErrNotFound), ShouldBeTrue)
		})
	})
}

func TestService_Compatibility(t *testing.T) {
	Convey("Given a started service", t, func() {
		ctx := context.Background()
		svc := newService()
		So(svc.Start(ctx), ShouldBeNil)
		defer svc.Stop(ctx)

		Convey("Two stored profiles without readings score with defaults", func() {
			a := mustProfile(svc, "alice", "INFJ")
			b := mustProfile(svc, "bob", "ENFP")

			res, err := svc.CalculatePair(ctx, a.ID, b.ID)
			So(err, ShouldBeNil)
			So(res.Score, ShouldResemble, compat.Result{Total: 100, Type: 100, HeartRate: 100, Temperature: 100})
			So(res.ProfileA.ID, ShouldEqual, a.ID)

			_, err = svc.CalculatePair(ctx, a.ID, "missing")
			So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
		})

		Convey("Manual scoring defaults missing readings", func() {
			res, err := svc.Manual(types.ManualInput{
				TypeA: "infj", TypeB: "ENFP",
				HeartRateA: ptr(70), HeartRateB: ptr(82),
				TemperatureB: ptr(36.9),
			})
			So(err, ShouldBeNil)
			So(res.A.Temperature, ShouldEqual, compat.DefaultTemperature)
			So(res.B.HeartRate, ShouldEqual, 82)
			// 100*0.5 + 70*0.3 + 85*0.2 = 88
			So(res.Score, ShouldResemble, compat.Result{Total: 88, Type: 100, HeartRate: 70, Temperature: 85})

			_, err = svc.Manual(types.ManualInput{TypeA: "INFJ", TypeB: "XXXX"})
			So(errors.Is(err, compat.ErrUnknownType), ShouldBeTrue)
		})

		Convey("Manual scoring rejects readings outside the stored bounds", func() {
			cases := []types.ManualInput{
				{TypeA: "INFJ", TypeB: "ENFP", HeartRateA: ptr(6917529027641081856), HeartRateB: ptr(0)},
				{TypeA: "INFJ", TypeB: "ENFP", HeartRateA: ptr(-1000), HeartRateB: ptr(5000)},
				{TypeA: "INFJ", TypeB: "ENFP", HeartRateB: ptr(model.MaxHeartRate + 1)},
				{TypeA: "INFJ", TypeB: "ENFP", TemperatureA: ptr(math.NaN())},
				{TypeA: "INFJ", TypeB: "ENFP", TemperatureB: ptr(model.MinTemperature - 0.1)},
			}
			for _, in := range cases {
				_, err := svc.Manual(in)
				So(errors.Is(err, model.ErrInvalidReading), ShouldBeTrue)
			}

			res, err := svc.Manual(types.ManualInput{
				TypeA: "INFJ", TypeB: "ENFP",
				HeartRateA: ptr(model.MinHeartRate), HeartRateB: ptr(model.MaxHeartRate),
				TemperatureA: ptr(model.MinTemperature), TemperatureB: ptr(model.MaxTemperature),
			})
			So(err, ShouldBeNil)
			So(res.Score.HeartRate, ShouldEqual, 40)
			So(res.Score.Temperature, ShouldEqual, 40)
			So(res.Score.Total, ShouldBeBetweenOrEqual, 0, 100)
		})

		Convey("Type lookups keep direction", func() {
			fwd, err := svc.TypeInfo("enfj", "entj")
			So(err, ShouldBeNil)
			So(fwd.Score, ShouldEqual, 60)
			So(fwd.Band, ShouldEqual, compat.BandAverage)

			rev, err := svc.TypeInfo("ENTJ", "ENFJ")
			So(err, ShouldBeNil)
			So(rev.Score, ShouldEqual, 100)
			So(rev.Band, ShouldEqual, compat.BandBest)
		})

		Convey("The chart covers every type", func() {
			chart := svc.Chart()
			So(len(chart.Types), ShouldEqual, 16)
			So(len(chart.Chart), ShouldEqual, 16)
			So(chart.Chart[compat.INFJ][compat.INFJ], ShouldEqual, compat.DefaultSameTypeScore)
			So(len(chart.Asymmetries), ShouldEqual, 9)
		})
	})
}

func TestService_FatedMatches(t *testing.T) {
	Convey("Given a started service", t, func() {
		ctx := context.Background()
		svc := newService()
		So(svc.Start(ctx), ShouldBeNil)
		defer svc.Stop(ctx)

		subject := mustProfile(svc, "subject", "INFJ")

		Convey("A lookup needs at least two other profiles", func() {
			mustProfile(svc, "only", "ENFP")
			_, err := svc.FatedMatches(ctx, subject.ID)
			So(errors.Is(err, matching.ErrInsufficientPopulation), ShouldBeTrue)
		})

		Convey("With enough profiles the best two are stored", func() {
			enfp := mustProfile(svc, "enfp", "ENFP")
			entp := mustProfile(svc, "entp", "ENTP")
			mustProfile(svc, "isfj", "ISFJ")

			matches, err := svc.FatedMatches(ctx, subject.ID)
			So(err, ShouldBeNil)
			So(len(matches), ShouldEqual, 2)
			So(matches[0].MatchedProfileID, ShouldEqual, enfp.ID)
			So(matches[0].Score, ShouldEqual, 100)
			So(matches[0].Rank, ShouldEqual, 1)
			So(matches[1].MatchedProfileID, ShouldEqual, entp.ID)
			So(matches[1].Score, ShouldEqual, 94)
			So(matches[1].Profile.Username, ShouldEqual, "entp")

			stored, err := svc.StoredMatches(ctx, subject.ID)
			So(err, ShouldBeNil)
			So(len(stored), ShouldEqual, 2)
			So(stored[0].MatchedProfileID, ShouldEqual, enfp.ID)

			Convey("and a deleted match disappears from the stored list", func() {
				So(svc.DeleteProfile(ctx, enfp.ID), ShouldBeNil)
				stored, err := svc.StoredMatches(ctx, subject.ID)
				So(err, ShouldBeNil)
				So(len(stored), ShouldEqual, 1)
				So(stored[0].MatchedProfileID, ShouldEqual, entp.ID)
			})
		})

		Convey("Population recompute needs two profiles", func() {
			_, err := svc.RecomputeAll(ctx)
			So(errors.Is(err, matching.ErrInsufficientPopulation), ShouldBeTrue)
		})

		Convey("Population recompute stores a list for everyone", func() {
			ids := []string{subject.ID}
			for _, code := range []string{"ENFP", "ESTJ", "ISFP", "ENTJ"} {
				ids = append(ids, mustProfile(svc, code, code).ID)
			}

			sum, err := svc.RecomputeAll(ctx)
			So(err, ShouldBeNil)
			So(sum.Profiles, ShouldEqual, 5)
			So(sum.Matches, ShouldEqual, 10)

			for _, id := range ids {
				stored, err := svc.StoredMatches(ctx, id)
				So(err, ShouldBeNil)
				So(len(stored), ShouldEqual, 2)
				So(stored[0].Score, ShouldBeGreaterThanOrEqualTo, stored[1].Score)
				So(stored[0].MatchedProfileID, ShouldNotEqual, id)
			}
		})
	})
}

func TestService_Readings(t *testing.T) {
	Convey("Given a started service with three profiles", t, func() {
		ctx := context.Background()
		svc := newService()
		So(svc.Start(ctx), ShouldBeNil)
		defer svc.Stop(ctx)

		a := mustProfile(svc, "a", "INFJ")
		mustProfile(svc, "b", "ENFP")
		mustProfile(svc, "c", "ENTP")

		reading := model.Reading{ReadingID: "r-1", ProfileID: a.ID, HeartRate: 88, Temperature: 36.94, TS: fixedNow}

		Convey("A valid reading is applied asynchronously", func() {
			dup, err := svc.IngestReading(ctx, reading)
			So(err, ShouldBeNil)
			So(dup, ShouldBeFalse)

			applied := waitFor(func() bool {
				p, err := svc.GetProfile(ctx, a.ID)
				return err == nil && p.HeartRate != nil
			})
			So(applied, ShouldBeTrue)

			p, err := svc.GetProfile(ctx, a.ID)
			So(err, ShouldBeNil)
			So(*p.HeartRate, ShouldEqual, 88)
			So(*p.Temperature, ShouldAlmostEqual, 36.9, 1e-9)

			refreshed := waitFor(func() bool {
				m, err := svc.StoredMatches(ctx, a.ID)
				return err == nil && len(m) == 2
			})
			So(refreshed, ShouldBeTrue)

			Convey("and the same reading id is a duplicate", func() {
				dup, err := svc.IngestReading(ctx, reading)
				So(err, ShouldBeNil)
				So(dup, ShouldBeTrue)
			})
		})

		Convey("Invalid readings are rejected", func() {
			bad := reading
			bad.HeartRate = 400
			_, err := svc.IngestReading(ctx, bad)
			So(errors.Is(err, model.ErrInvalidReading), ShouldBeTrue)

			unknown := reading
			unknown.ProfileID = "missing"
			_, err = svc.IngestReading(ctx, unknown)
			So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
		})

		Convey("A measurement is stored synchronously", func() {
			p, r, err := svc.Measure(ctx, a.ID)
			So(err, ShouldBeNil)
			So(r.ProfileID, ShouldEqual, a.ID)
			So(p.HeartRate, ShouldNotBeNil)
			So(*p.HeartRate, ShouldEqual, r.HeartRate)
			So(*p.Temperature, ShouldAlmostEqual, r.Temperature, 1e-9)

			dup, err := svc.IngestReading(ctx, r)
			So(err, ShouldBeNil)
			So(dup, ShouldBeTrue)

			_, _, err = svc.Measure(ctx, "missing")
			So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
		})
	})
}

// slowStore delays every vitals write so readings pile up in the queue.
type slowStore struct {
	*repository.MemoryStore
	applied atomic.Int64
}

func (s *slowStore) UpdateVitals(ctx context.Context, id string, hr int, temp float64, at time.Time) (model.Profile, error) {
	time.Sleep(5 * time.Millisecond)
	p, err := s.MemoryStore.UpdateVitals(ctx, id, hr, temp, at)
	if err == nil {
		s.applied.Add(1)
	}
	return p, err
}

func TestService_StopDrainsQueuedReadings(t *testing.T) {
	Convey("Given a service started on a context that is later cancelled", t, func() {
		store := &slowStore{MemoryStore: repository.NewMemoryStore()}
		svc := newService(service.WithWorkerCount(1), service.WithStore(store, "memory"))

		startCtx, cancel := context.WithCancel(context.Background())
		So(svc.Start(startCtx), ShouldBeNil)

		ctx := context.Background()
		a := mustProfile(svc, "a", "INFJ")
		mustProfile(svc, "b", "ENFP")
		mustProfile(svc, "c", "ENTP")

		const total = 50
		for i := 0; i < total; i++ {
			dup, err := svc.IngestReading(ctx, model.Reading{
				ReadingID: fmt.Sprintf("r-%d", i), ProfileID: a.ID,
				HeartRate: 60 + i%40, Temperature: 36.5, TS: fixedNow,
			})
			So(err, ShouldBeNil)
			So(dup, ShouldBeFalse)
		}

		Convey("When the start context is cancelled before Stop", func() {
			cancel()
			So(svc.Stop(ctx), ShouldBeNil)

			Convey("Then every accepted reading has been applied", func() {
				So(int(store.applied.Load()), ShouldEqual, total)
			})
		})
	})
}

// vanishingStore deletes one profile just before its match list is
// written, as a concurrent DELETE would.
type vanishingStore struct {
	*repository.MemoryStore
	gone string
}

func (s *vanishingStore) ReplaceMatches(ctx context.Context, id string, matches []model.FatedMatch) error {
	if id == s.gone {
		_ = s.MemoryStore.DeleteProfile(ctx, id)
	}
	return s.MemoryStore.ReplaceMatches(ctx, id, matches)
}

func TestService_RecomputeSkipsDeletedProfiles(t *testing.T) {
	Convey("Given a profile that disappears during a population recompute", t, func() {
		ctx := context.Background()
		store := &vanishingStore{MemoryStore: repository.NewMemoryStore()}
		svc := newService(service.WithStore(store, "memory"))
		So(svc.Start(ctx), ShouldBeNil)
		defer svc.Stop(ctx)

		keep := mustProfile(svc, "a", "INFJ")
		mustProfile(svc, "b", "ENFP")
		store.gone = mustProfile(svc, "c", "ENTP").ID

		Convey("Then the others are written and the deleted one is skipped", func() {
			sum, err := svc.RecomputeAll(ctx)
			So(err, ShouldBeNil)
			So(sum, ShouldResemble, types.RecomputeSummary{Profiles: 2, Matches: 4, Skipped: 1})

			stored, err := svc.StoredMatches(ctx, keep.ID)
			So(err, ShouldBeNil)
			So(stored, ShouldNotBeEmpty)

			_, err = svc.GetProfile(ctx, store.gone)
			So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
		})
	})
}

func TestService_Couples(t *testing.T) {
	Convey("Given a started service with profiles", t, func() {
		ctx := context.Background()
		svc := newService(service.WithMaxRankingLimit(10))
		So(svc.Start(ctx), ShouldBeNil)
		defer svc.Stop(ctx)

		alice := mustProfile(svc, "alice", "INFJ")
		bob := mustProfile(svc, "bob", "ENFP")
		carol := mustProfile(svc, "carol", "ISFJ")

		Convey("Registering scores the pair and names it", func() {
			entry, err := svc.RegisterCouple(ctx, types.CoupleInput{ProfileA: alice.ID, ProfileB: bob.ID})
			So(err, ShouldBeNil)
			So(entry.Name, ShouldEqual, "alice & bob")
			So(entry.BaseScore, ShouldEqual, 100)
			So(entry.Score, ShouldEqual, 100.0)
			So(entry.Rank, ShouldEqual, 1)

			Convey("the reversed pair is a duplicate", func() {
				_, err := svc.RegisterCouple(ctx, types.CoupleInput{ProfileA: bob.ID, ProfileB: alice.ID})
				So(errors.Is(err, repository.ErrDuplicateCouple), ShouldBeTrue)
			})

			Convey("ratings rescore from the base", func() {
				rated, err := svc.RateCouple(ctx, entry.CoupleID, model.Rating{Rating: 5, Comment: " lovely "})
				So(err, ShouldBeNil)
				So(rated.Score, ShouldEqual, 100.0)
				So(rated.RatingCount, ShouldEqual, 1)

				rated, err = svc.RateCouple(ctx, entry.CoupleID, model.Rating{Rating: 1})
				So(err, ShouldBeNil)
				// 100*0.8 + 3*4
				So(rated.Score, ShouldEqual, 92.0)
				So(rated.AverageRating, ShouldEqual, 3.0)

				_, err = svc.RateCouple(ctx, entry.CoupleID, model.Rating{Rating: 9})
				So(errors.Is(err, model.ErrInvalidRating), ShouldBeTrue)

				detail, err := svc.CoupleDetail(ctx, entry.CoupleID)
				So(err, ShouldBeNil)
				So(detail.MemberA, ShouldNotBeNil)
				So(len(detail.Ratings), ShouldEqual, 2)
				So(detail.Ratings[1].Comment, ShouldEqual, "lovely")
				So(detail.Ratings[0].Nickname, ShouldEqual, model.DefaultNickname)
			})
		})

		Convey("Invalid couples are rejected", func() {
			_, err := svc.RegisterCouple(ctx, types.CoupleInput{ProfileA: alice.ID, ProfileB: alice.ID})
			So(errors.Is(err, model.ErrInvalidCouple), ShouldBeTrue)

			_, err = svc.RegisterCouple(ctx, types.CoupleInput{ProfileA: alice.ID, ProfileB: "missing"})
			So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)

			_, err = svc.CoupleDetail(ctx, "missing")
			So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
		})

		Convey("The ranking pages by score", func() {
			_, err := svc.RegisterCouple(ctx, types.CoupleInput{ProfileA: alice.ID, ProfileB: carol.ID, Name: "odd pair"})
			So(err, ShouldBeNil)
			_, err = svc.RegisterCouple(ctx, types.CoupleInput{ProfileA: alice.ID, ProfileB: bob.ID})
			So(err, ShouldBeNil)

			page, err := svc.CoupleRanking(ctx, 0, 10)
			So(err, ShouldBeNil)
			So(page.Total, ShouldEqual, 2)
			So(page.HasMore(), ShouldBeFalse)
			So(page.Items[0].Name, ShouldEqual, "alice & bob")
			So(page.Items[1].Name, ShouldEqual, "odd pair")
			So(page.Items[1].Rank, ShouldEqual, 2)

			second, err := svc.CoupleRanking(ctx, 1, 1)
			So(err, ShouldBeNil)
			So(len(second.Items), ShouldEqual, 1)
			So(second.Items[0].Name, ShouldEqual, "odd pair")

			for _, w := range [][2]int{{0, 0}, {0, 11}, {-1, 5}} {
				_, err := svc.CoupleRanking(ctx, w[0], w[1])
				So(errors.Is(err, repository.ErrInvalidLimit), ShouldBeTrue)
			}
		})
	})
}
