package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/okian/reachyou/pkg/metrics"
)

// statusRecorder keeps what a handler wrote so the request can be labelled
// once it returns.
type statusRecorder struct {
	http.ResponseWriter
	status int
	code   string // set by writeError
}

func (rec *statusRecorder) WriteHeader(status int) {
	rec.status = status
	rec.ResponseWriter.WriteHeader(status)
}

// instrument records request count and latency for endpoint. Failed
// requests are also counted under their API error code.
func instrument(endpoint string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next(rec, r)
		elapsedMs := float64(time.Since(start).Microseconds()) / 1000

		status := strconv.Itoa(rec.status)
		metrics.RecordHTTPRequest(endpoint, r.Method, status)
		metrics.RecordHTTPRequestDuration(endpoint, r.Method, status, elapsedMs)

		if rec.status < http.StatusBadRequest {
			return
		}
		code := rec.code
		if code == "" {
			code = "status_" + status
		}
		metrics.RecordErrorByComponent("http", code)
	}
}
