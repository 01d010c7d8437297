package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/okian/reachyou/internal/domain/model"
)

// ReadingDependencies covers sensor reading intake.
type ReadingDependencies interface {
	// IngestReading queues r for async processing. duplicate is true when
	// the reading id was already seen.
	IngestReading(ctx context.Context, r model.Reading) (duplicate bool, err error)
	Measure(ctx context.Context, profileID string) (model.Profile, model.Reading, error)
}

// ReadingsHandler handles reading intake and on-demand measurement.
type ReadingsHandler struct {
	deps ReadingDependencies
}

// NewReadingsHandler creates a new readings handler.
func NewReadingsHandler(deps ReadingDependencies) *ReadingsHandler {
	return &ReadingsHandler{deps: deps}
}

// readingRequest mirrors the OpenAPI schema for POST /readings. ts is
// optional and defaults to the receive time.
type readingRequest struct {
	ReadingID   string  `json:"reading_id"`
	ProfileID   string  `json:"profile_id"`
	HeartRate   int     `json:"heart_rate"`
	Temperature float64 `json:"temperature"`
	TS          string  `json:"ts"`
}

func (req readingRequest) toReading() (model.Reading, error) {
	r := model.Reading{
		ReadingID:   strings.TrimSpace(req.ReadingID),
		ProfileID:   strings.TrimSpace(req.ProfileID),
		HeartRate:   req.HeartRate,
		Temperature: req.Temperature,
	}
	if req.TS != "" {
		ts, err := time.Parse(time.RFC3339, req.TS)
		if err != nil {
			return model.Reading{}, fmt.Errorf("%w: invalid ts; must be RFC3339", ErrBadRequest)
		}
		r.TS = ts.UTC()
	}
	return r, nil
}

type ackResponse struct {
	Status    string `json:"status"`
	Duplicate bool   `json:"duplicate"`
}

type measureResponse struct {
	Profile model.Profile `json:"profile"`
	Reading model.Reading `json:"reading"`
}

// HandlePostReading handles POST /readings.
func (h *ReadingsHandler) HandlePostReading(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_reading"
	var req readingRequest
	if err := decodeJSON(r, &req); err != nil {
		writeFailure(w, r, op, err)
		return
	}
	reading, err := req.toReading()
	if err != nil {
		writeFailure(w, r, op, err)
		return
	}

	dup, err := h.deps.IngestReading(r.Context(), reading)
	if err != nil {
		writeFailure(w, r, op, err)
		return
	}
	if dup {
		writeJSON(w, http.StatusOK, ackResponse{Status: "duplicate", Duplicate: true})
		return
	}
	writeJSON(w, http.StatusAccepted, ackResponse{Status: "accepted"})
}

// HandleMeasure handles POST /profiles/{id}/measure.
func (h *ReadingsHandler) HandleMeasure(w http.ResponseWriter, r *http.Request) {
	const op = "api.measure"
	p, reading, err := h.deps.Measure(r.Context(), r.PathValue("id"))
	if err != nil {
		writeFailure(w, r, op, err)
		return
	}
	writeJSON(w, http.StatusOK, measureResponse{Profile: p, Reading: reading})
}
