package api_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/okian/reachyou/internal/adapters/http/api"
	"github.com/okian/reachyou/internal/adapters/mq/queue"
	service "github.com/okian/reachyou/internal/app"
	"github.com/okian/reachyou/internal/domain/compat"
	"github.com/okian/reachyou/internal/domain/model"
	"github.com/okian/reachyou/internal/domain/types"
	. "github.com/smartystreets/goconvey/convey"
)

func newMux(svc *service.Service) *http.ServeMux {
	mux := http.NewServeMux()
	api.NewServer(svc).Register(mux)
	return mux
}

func startedService() *service.Service {
	svc := service.New(
		service.WithWorkerCount(2),
		service.WithQueueSize(100),
		service.WithDedupeSize(100),
		service.WithSensorLatencyRange(time.Millisecond, 2*time.Millisecond),
	)
	So(svc.Start(context.Background()), ShouldBeNil)
	return svc
}

func do(mux http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	return w
}

func decode[T any](w *httptest.ResponseRecorder) T {
	var v T
	So(json.Unmarshal(w.Body.Bytes(), &v), ShouldBeNil)
	return v
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func createProfile(mux http.Handler, username, code string) model.Profile {
	w := do(mux, http.MethodPost, "/profiles", fmt.Sprintf(`{"username":%q,"type_code":%q}`, username, code))
	So(w.Code, ShouldEqual, http.StatusCreated)
	return decode[model.Profile](w)
}

func TestServer_Health(t *testing.T) {
	Convey("Given a registered server", t, func() {
		svc := startedService()
		mux := newMux(svc)
		Reset(func() { _ = svc.Stop(context.Background()) })

		Convey("healthz serves the metrics exposition", func() {
			w := do(mux, http.MethodGet, "/healthz", "")
			So(w.Code, ShouldEqual, http.StatusOK)
		})

		Convey("stats reports a started service", func() {
			w := do(mux, http.MethodGet, "/stats", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			stats := decode[map[string]any](w)
			So(stats["started"], ShouldEqual, true)
			So(stats["storeDriver"], ShouldEqual, "memory")
		})

		Convey("unknown methods are rejected by the mux", func() {
			w := do(mux, http.MethodDelete, "/stats", "")
			So(w.Code, ShouldEqual, http.StatusMethodNotAllowed)
		})
	})
}

func TestServer_Profiles(t *testing.T) {
	Convey("Given a registered server", t, func() {
		svc := startedService()
		mux := newMux(svc)
		Reset(func() { _ = svc.Stop(context.Background()) })

		Convey("Creating a profile normalizes the type code", func() {
			p := createProfile(mux, "alice", "infj")
			So(p.ID, ShouldNotBeEmpty)
			So(p.TypeCode, ShouldEqual, compat.TypeCode("INFJ"))
			So(p.HeartRate, ShouldBeNil)

			Convey("and it can be fetched, updated and deleted", func() {
				w := do(mux, http.MethodGet, "/profiles/"+p.ID, "")
				So(w.Code, ShouldEqual, http.StatusOK)
				So(decode[model.Profile](w).Username, ShouldEqual, "alice")

				w = do(mux, http.MethodPut, "/profiles/"+p.ID, `{"username":"alicia"}`)
				So(w.Code, ShouldEqual, http.StatusOK)
				updated := decode[model.Profile](w)
				So(updated.Username, ShouldEqual, "alicia")
				So(updated.TypeCode, ShouldEqual, compat.TypeCode("INFJ"))

				w = do(mux, http.MethodDelete, "/profiles/"+p.ID, "")
				So(w.Code, ShouldEqual, http.StatusNoContent)

				w = do(mux, http.MethodGet, "/profiles/"+p.ID, "")
				So(w.Code, ShouldEqual, http.StatusNotFound)
				So(decode[errorBody](w).Code, ShouldEqual, "not_found")
			})
		})

		Convey("Invalid input is a 400", func() {
			cases := []struct {
				name string
				body string
			}{
				{"unknown type", `{"username":"bob","type_code":"ABCD"}`},
				{"blank username", `{"username":"  ","type_code":"ENFP"}`},
				{"malformed json", `{"username":`},
				{"unknown field", `{"username":"bob","type_code":"ENFP","age":30}`},
				{"empty body", ``},
			}
			for _, tc := range cases {
				req := httptest.NewRequest(http.MethodPost, "/profiles", strings.NewReader(tc.body))
				w := httptest.NewRecorder()
				mux.ServeHTTP(w, req)
				So(w.Code, ShouldEqual, http.StatusBadRequest)
				So(decode[errorBody](w).Code, ShouldEqual, "bad_request")
			}
		})

		Convey("Listing filters by type and type stats count every type", func() {
			createProfile(mux, "a", "INFJ")
			createProfile(mux, "b", "ENFP")
			createProfile(mux, "c", "ENFP")

			w := do(mux, http.MethodGet, "/profiles?type_code=ENFP", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			list := decode[struct {
				Profiles []model.Profile `json:"profiles"`
				Count    int             `json:"count"`
			}](w)
			So(list.Count, ShouldEqual, 2)

			w = do(mux, http.MethodGet, "/profiles/stats/types", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			counts := decode[map[string]int](w)
			So(len(counts), ShouldEqual, 16)
			So(counts["ENFP"], ShouldEqual, 2)
			So(counts["ISTJ"], ShouldEqual, 0)
		})
	})
}

func TestServer_Readings(t *testing.T) {
	Convey("Given a registered server with one profile", t, func() {
		svc := startedService()
		mux := newMux(svc)
		Reset(func() { _ = svc.Stop(context.Background()) })
		p := createProfile(mux, "alice", "INFJ")

		body := fmt.Sprintf(`{"reading_id":"r-1","profile_id":%q,"heart_rate":72,"temperature":36.64,"ts":"2024-02-14T18:00:00Z"}`, p.ID)

		Convey("A new reading is accepted and applied", func() {
			w := do(mux, http.MethodPost, "/readings", body)
			So(w.Code, ShouldEqual, http.StatusAccepted)
			So(decode[map[string]any](w)["status"], ShouldEqual, "accepted")

			Convey("and a replay is acknowledged as duplicate", func() {
				w := do(mux, http.MethodPost, "/readings", body)
				So(w.Code, ShouldEqual, http.StatusOK)
				So(decode[map[string]any](w)["duplicate"], ShouldEqual, true)
			})

			applied := false
			deadline := time.Now().Add(3 * time.Second)
			for time.Now().Before(deadline) {
				got, err := svc.GetProfile(context.Background(), p.ID)
				So(err, ShouldBeNil)
				if got.HeartRate != nil {
					So(*got.HeartRate, ShouldEqual, 72)
					So(*got.Temperature, ShouldEqual, 36.6)
					applied = true
					break
				}
				time.Sleep(5 * time.Millisecond)
			}
			So(applied, ShouldBeTrue)
		})

		Convey("Rejected readings map to client errors", func() {
			cases := []struct {
				name   string
				body   string
				status int
			}{
				{"bad ts", fmt.Sprintf(`{"reading_id":"r-2","profile_id":%q,"heart_rate":72,"temperature":36.5,"ts":"yesterday"}`, p.ID), http.StatusBadRequest},
				{"heart rate out of range", fmt.Sprintf(`{"reading_id":"r-3","profile_id":%q,"heart_rate":500,"temperature":36.5}`, p.ID), http.StatusBadRequest},
				{"missing reading id", fmt.Sprintf(`{"profile_id":%q,"heart_rate":72,"temperature":36.5}`, p.ID), http.StatusBadRequest},
				{"unknown profile", `{"reading_id":"r-4","profile_id":"ghost","heart_rate":72,"temperature":36.5}`, http.StatusNotFound},
			}
			for _, tc := range cases {
				w := do(mux, http.MethodPost, "/readings", tc.body)
				So(w.Code, ShouldEqual, tc.status)
			}
		})

		Convey("Measuring stores a sensor reading synchronously", func() {
			w := do(mux, http.MethodPost, "/profiles/"+p.ID+"/measure", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			res := decode[struct {
				Profile model.Profile `json:"profile"`
				Reading model.Reading `json:"reading"`
			}](w)
			So(res.Reading.ProfileID, ShouldEqual, p.ID)
			So(res.Profile.HeartRate, ShouldNotBeNil)
			So(*res.Profile.HeartRate, ShouldEqual, res.Reading.HeartRate)

			w = do(mux, http.MethodPost, "/profiles/ghost/measure", "")
			So(w.Code, ShouldEqual, http.StatusNotFound)
		})
	})
}

func TestServer_Compatibility(t *testing.T) {
	Convey("Given a registered server", t, func() {
		svc := startedService()
		mux := newMux(svc)
		Reset(func() { _ = svc.Stop(context.Background()) })

		Convey("Two stored profiles score through calculate", func() {
			a := createProfile(mux, "alice", "INFJ")
			b := createProfile(mux, "bob", "ENFP")
			w := do(mux, http.MethodPost, "/compatibility/calculate",
				fmt.Sprintf(`{"profile_a":%q,"profile_b":%q}`, a.ID, b.ID))
			So(w.Code, ShouldEqual, http.StatusOK)
			res := decode[types.PairScore](w)
			So(res.Score.Total, ShouldEqual, 100)

			w = do(mux, http.MethodPost, "/compatibility/calculate",
				fmt.Sprintf(`{"profile_a":%q,"profile_b":"ghost"}`, a.ID))
			So(w.Code, ShouldEqual, http.StatusNotFound)
		})

		Convey("Manual scoring defaults missing readings", func() {
			w := do(mux, http.MethodPost, "/compatibility/manual",
				`{"type_a":"INFJ","type_b":"ENFP","heart_rate_a":70,"heart_rate_b":82,"temperature_b":36.9}`)
			So(w.Code, ShouldEqual, http.StatusOK)
			res := decode[types.ManualScore](w)
			So(res.Score.Total, ShouldEqual, 88)
			So(res.A.Temperature, ShouldEqual, 36.5)

			w = do(mux, http.MethodPost, "/compatibility/manual", `{"type_a":"INFJ","type_b":"NOPE"}`)
			So(w.Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("Manual readings outside the plausible bounds are a bad request", func() {
			for _, body := range []string{
				`{"type_a":"INFJ","type_b":"ENFP","heart_rate_a":6917529027641081856,"heart_rate_b":0}`,
				`{"type_a":"INFJ","type_b":"ENFP","heart_rate_a":-1000,"heart_rate_b":5000}`,
				`{"type_a":"INFJ","type_b":"ENFP","temperature_a":12.5}`,
			} {
				w := do(mux, http.MethodPost, "/compatibility/manual", body)
				So(w.Code, ShouldEqual, http.StatusBadRequest)
				So(w.Body.String(), ShouldContainSubstring, `"code":"bad_request"`)
			}
		})

		Convey("Type lookups keep direction", func() {
			w := do(mux, http.MethodGet, "/compatibility/types/ENFJ/ENTJ", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(decode[types.TypeScore](w).Score, ShouldEqual, 60)

			w = do(mux, http.MethodGet, "/compatibility/types/entj/enfj", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(decode[types.TypeScore](w).Score, ShouldEqual, 100)
		})

		Convey("The chart has sixteen rows", func() {
			w := do(mux, http.MethodGet, "/compatibility/chart", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			chart := decode[types.TypeChart](w)
			So(len(chart.Types), ShouldEqual, 16)
			So(len(chart.Chart), ShouldEqual, 16)
			So(len(chart.Asymmetries), ShouldEqual, 9)
		})
	})
}

func TestServer_FatedMatches(t *testing.T) {
	Convey("Given a registered server", t, func() {
		svc := startedService()
		mux := newMux(svc)
		Reset(func() { _ = svc.Stop(context.Background()) })
		subject := createProfile(mux, "alice", "INFJ")

		Convey("A lone profile has insufficient population", func() {
			w := do(mux, http.MethodGet, "/fated-matches/"+subject.ID, "")
			So(w.Code, ShouldEqual, http.StatusBadRequest)
			So(decode[errorBody](w).Code, ShouldEqual, "insufficient_population")

			w = do(mux, http.MethodPost, "/fated-matches/recompute", "")
			So(w.Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("With candidates the best two are returned and stored", func() {
			best := createProfile(mux, "bob", "ENFP")
			createProfile(mux, "carol", "ISFJ")
			second := createProfile(mux, "dave", "ENTP")

			w := do(mux, http.MethodGet, "/fated-matches/"+subject.ID, "")
			So(w.Code, ShouldEqual, http.StatusOK)
			list := decode[struct {
				ProfileID string            `json:"profile_id"`
				Matches   []types.MatchView `json:"matches"`
			}](w)
			So(list.ProfileID, ShouldEqual, subject.ID)
			So(len(list.Matches), ShouldEqual, 2)
			So(list.Matches[0].MatchedProfileID, ShouldEqual, best.ID)
			So(list.Matches[1].MatchedProfileID, ShouldEqual, second.ID)

			w = do(mux, http.MethodGet, "/fated-matches/"+subject.ID+"/stored", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, best.ID)

			w = do(mux, http.MethodPost, "/fated-matches/recompute", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			sum := decode[types.RecomputeSummary](w)
			So(sum.Profiles, ShouldEqual, 4)
			So(sum.Matches, ShouldEqual, 8)
		})
	})
}

func TestServer_Couples(t *testing.T) {
	Convey("Given a registered server with two profiles", t, func() {
		svc := startedService()
		mux := newMux(svc)
		Reset(func() { _ = svc.Stop(context.Background()) })
		a := createProfile(mux, "alice", "INFJ")
		b := createProfile(mux, "bob", "ENFP")

		w := do(mux, http.MethodPost, "/couples", fmt.Sprintf(`{"profile_a":%q,"profile_b":%q}`, a.ID, b.ID))
		So(w.Code, ShouldEqual, http.StatusCreated)
		entry := decode[types.Entry](w)

		Convey("Registration scores the pair and names it", func() {
			So(entry.Rank, ShouldEqual, 1)
			So(entry.BaseScore, ShouldEqual, 100)
			So(entry.Name, ShouldEqual, "alice & bob")
		})

		Convey("The same pair cannot register twice", func() {
			w := do(mux, http.MethodPost, "/couples", fmt.Sprintf(`{"profile_a":%q,"profile_b":%q}`, b.ID, a.ID))
			So(w.Code, ShouldEqual, http.StatusConflict)
		})

		Convey("Ratings rescore the couple", func() {
			w := do(mux, http.MethodPut, "/couples/"+entry.CoupleID+"/rating", `{"rating":1,"nickname":"fan"}`)
			So(w.Code, ShouldEqual, http.StatusOK)
			So(decode[types.Entry](w).Score, ShouldEqual, 84.0)

			w = do(mux, http.MethodPut, "/couples/"+entry.CoupleID+"/rating", `{"rating":9}`)
			So(w.Code, ShouldEqual, http.StatusBadRequest)

			w = do(mux, http.MethodGet, "/couples/"+entry.CoupleID, "")
			So(w.Code, ShouldEqual, http.StatusOK)
			view := decode[types.CoupleView](w)
			So(len(view.Ratings), ShouldEqual, 1)
			So(view.Ratings[0].Nickname, ShouldEqual, "fan")
			So(view.MemberA, ShouldNotBeNil)
		})

		Convey("The ranking validates its window", func() {
			w := do(mux, http.MethodGet, "/couples/ranking?limit=5", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			page := decode[types.Page[types.Entry]](w)
			So(page.Total, ShouldEqual, 1)
			So(page.Items[0].CoupleID, ShouldEqual, entry.CoupleID)

			for _, q := range []string{"limit=0", "limit=1000", "offset=-1", "limit=abc"} {
				w := do(mux, http.MethodGet, "/couples/ranking?"+q, "")
				So(w.Code, ShouldEqual, http.StatusBadRequest)
			}
		})

		Convey("Unknown couples are a 404", func() {
			So(do(mux, http.MethodGet, "/couples/ghost", "").Code, ShouldEqual, http.StatusNotFound)
			So(do(mux, http.MethodPut, "/couples/ghost/rating", `{"rating":3}`).Code, ShouldEqual, http.StatusNotFound)
		})
	})
}

func TestServer_Unavailable(t *testing.T) {
	Convey("Given a server over a service that was never started", t, func() {
		mux := newMux(service.New())

		Convey("Requests report 503", func() {
			w := do(mux, http.MethodGet, "/profiles", "")
			So(w.Code, ShouldEqual, http.StatusServiceUnavailable)
			So(decode[errorBody](w).Code, ShouldEqual, "unavailable")
		})
	})
}

type fullQueue struct{}

func (fullQueue) IngestReading(context.Context, model.Reading) (bool, error) {
	return false, fmt.Errorf("enqueue reading r-1: %w", queue.ErrFull)
}

func (fullQueue) Measure(context.Context, string) (model.Profile, model.Reading, error) {
	return model.Profile{}, model.Reading{}, nil
}

func TestReadingsHandler_Backpressure(t *testing.T) {
	Convey("Given a readings handler whose queue is full", t, func() {
		h := api.NewReadingsHandler(fullQueue{})

		Convey("Posting a reading answers 429", func() {
			req := httptest.NewRequest(http.MethodPost, "/readings",
				strings.NewReader(`{"reading_id":"r-1","profile_id":"p","heart_rate":70,"temperature":36.5}`))
			w := httptest.NewRecorder()
			h.HandlePostReading(w, req)
			So(w.Code, ShouldEqual, http.StatusTooManyRequests)
			So(w.Body.String(), ShouldContainSubstring, "backpressure")
		})
	})
}
