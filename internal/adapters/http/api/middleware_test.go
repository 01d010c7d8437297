package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

type fixedStats map[string]any

func (f fixedStats) GetStats(context.Context) map[string]any { return f }

func TestInstrument(t *testing.T) {
	Convey("Given an instrumented handler", t, func() {
		ops := NewOpsHandler(fixedStats{"started": true})

		scrape := func() string {
			rec := httptest.NewRecorder()
			ops.HandleHealth(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
			body, _ := io.ReadAll(rec.Body)
			return string(body)
		}

		Convey("When it writes an API error", func() {
			h := instrument("booking", func(w http.ResponseWriter, _ *http.Request) {
				writeError(w, http.StatusConflict, "slot_conflict", errors.New("taken"))
			})
			rec := httptest.NewRecorder()
			h(rec, httptest.NewRequest(http.MethodPost, "/booking", nil))

			Convey("Then the status passes through and the error code labels the counter", func() {
				So(rec.Code, ShouldEqual, http.StatusConflict)
				body := scrape()
				So(body, ShouldContainSubstring, `component="http",error_type="slot_conflict"`)
				So(body, ShouldContainSubstring, `endpoint="booking"`)
			})
		})

		Convey("When it fails without an API error body", func() {
			h := instrument("plain", func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusTeapot)
			})
			h(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/plain", nil))

			Convey("Then the status code labels the counter", func() {
				So(scrape(), ShouldContainSubstring, `error_type="status_418"`)
			})
		})

		Convey("When stats are requested", func() {
			rec := httptest.NewRecorder()
			ops.HandleStats(rec, httptest.NewRequest(http.MethodGet, "/stats", nil))

			Convey("Then the provider's map is returned as JSON", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)
				So(rec.Body.String(), ShouldContainSubstring, `"started":true`)
			})
		})
	})
}
