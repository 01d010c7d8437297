// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/okian/reachyou/pkg/logger"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 1 << 20

// Dependencies required by HTTP handlers. Each handler only sees its own
// slice of this bundle.
type Dependencies interface {
	StatsProvider
	ProfileDependencies
	ReadingDependencies
	CompatibilityDependencies
	MatchDependencies
	CoupleDependencies
}

// Server wires HTTP routes for the business API.
type Server struct {
	opsHandler           *OpsHandler
	profilesHandler      *ProfilesHandler
	readingsHandler      *ReadingsHandler
	compatibilityHandler *CompatibilityHandler
	matchesHandler       *MatchesHandler
	couplesHandler       *CouplesHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies) *Server {
	return &Server{
		opsHandler:           NewOpsHandler(deps),
		profilesHandler:      NewProfilesHandler(deps),
		readingsHandler:      NewReadingsHandler(deps),
		compatibilityHandler: NewCompatibilityHandler(deps),
		matchesHandler:       NewMatchesHandler(deps),
		couplesHandler:       NewCouplesHandler(deps),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(mux *http.ServeMux) {
	if mux == nil {
		panic("mux is nil")
	}
	handle := func(pattern, endpoint string, h http.HandlerFunc) {
		mux.HandleFunc(pattern, instrument(endpoint, h))
	}

	handle("GET /healthz", "healthz", s.opsHandler.HandleHealth)
	handle("GET /stats", "stats", s.opsHandler.HandleStats)

	handle("POST /profiles", "profiles", s.profilesHandler.HandleCreate)
	handle("GET /profiles", "profiles", s.profilesHandler.HandleList)
	handle("GET /profiles/stats/types", "profile_types", s.profilesHandler.HandleTypeCounts)
	handle("GET /profiles/{id}", "profile", s.profilesHandler.HandleGet)
	handle("PUT /profiles/{id}", "profile", s.profilesHandler.HandleUpdate)
	handle("DELETE /profiles/{id}", "profile", s.profilesHandler.HandleDelete)

	handle("POST /readings", "readings", s.readingsHandler.HandlePostReading)
	handle("POST /profiles/{id}/measure", "measure", s.readingsHandler.HandleMeasure)

	handle("POST /compatibility/calculate", "compatibility_calculate", s.compatibilityHandler.HandleCalculate)
	handle("POST /compatibility/manual", "compatibility_manual", s.compatibilityHandler.HandleManual)
	handle("GET /compatibility/types/{a}/{b}", "compatibility_types", s.compatibilityHandler.HandleTypes)
	handle("GET /compatibility/chart", "compatibility_chart", s.compatibilityHandler.HandleChart)

	handle("GET /fated-matches/{id}", "fated_matches", s.matchesHandler.HandleGet)
	handle("GET /fated-matches/{id}/stored", "fated_matches_stored", s.matchesHandler.HandleStored)
	handle("POST /fated-matches/recompute", "fated_matches_recompute", s.matchesHandler.HandleRecompute)

	handle("POST /couples", "couples", s.couplesHandler.HandleRegister)
	handle("GET /couples/ranking", "couples_ranking", s.couplesHandler.HandleRanking)
	handle("GET /couples/{id}", "couple", s.couplesHandler.HandleGet)
	handle("PUT /couples/{id}/rating", "couple_rating", s.couplesHandler.HandleRate)
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	if rec, ok := w.(*statusRecorder); ok {
		rec.code = code
	}
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// writeFailure classifies err and writes it. Server errors are logged
// because their message never reaches a dashboard otherwise.
func writeFailure(w http.ResponseWriter, r *http.Request, op string, err error) {
	status, code := classify(err)
	if status >= http.StatusInternalServerError {
		logger.Get().Error(r.Context(), "request failed",
			logger.String("op", op),
			logger.Int("status", status),
			logger.Error(err))
	}
	writeError(w, status, code, err)
}

// decodeJSON reads one JSON document from the request body into v.
// Unknown fields are rejected.
func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: empty body", ErrBadRequest)
		}
		return fmt.Errorf("%w: %w", ErrBadRequest, err)
	}
	return nil
}

// queryInt parses an optional integer query parameter.
func queryInt(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be an integer", ErrBadRequest, name)
	}
	return v, nil
}
