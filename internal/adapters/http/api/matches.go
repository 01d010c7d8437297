package api

import (
	"context"
	"net/http"

	"github.com/okian/reachyou/internal/domain/types"
)

// MatchDependencies covers fated-match lookups.
type MatchDependencies interface {
	FatedMatches(ctx context.Context, profileID string) ([]types.MatchView, error)
	StoredMatches(ctx context.Context, profileID string) ([]types.MatchView, error)
	RecomputeAll(ctx context.Context) (types.RecomputeSummary, error)
}

// MatchesHandler handles /fated-matches.
type MatchesHandler struct {
	deps MatchDependencies
}

// NewMatchesHandler creates a new matches handler.
func NewMatchesHandler(deps MatchDependencies) *MatchesHandler {
	return &MatchesHandler{deps: deps}
}

type matchList struct {
	ProfileID string            `json:"profile_id"`
	Matches   []types.MatchView `json:"matches"`
}

// HandleGet handles GET /fated-matches/{id}. The list is recomputed and
// stored before it is returned.
func (h *MatchesHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	const op = "api.fated_matches"
	id := r.PathValue("id")
	list, err := h.deps.FatedMatches(r.Context(), id)
	if err != nil {
		writeFailure(w, r, op, err)
		return
	}
	writeJSON(w, http.StatusOK, matchList{ProfileID: id, Matches: list})
}

// HandleStored handles GET /fated-matches/{id}/stored.
func (h *MatchesHandler) HandleStored(w http.ResponseWriter, r *http.Request) {
	const op = "api.stored_matches"
	id := r.PathValue("id")
	list, err := h.deps.StoredMatches(r.Context(), id)
	if err != nil {
		writeFailure(w, r, op, err)
		return
	}
	writeJSON(w, http.StatusOK, matchList{ProfileID: id, Matches: list})
}

// HandleRecompute handles POST /fated-matches/recompute.
func (h *MatchesHandler) HandleRecompute(w http.ResponseWriter, r *http.Request) {
	const op = "api.recompute"
	sum, err := h.deps.RecomputeAll(r.Context())
	if err != nil {
		writeFailure(w, r, op, err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}
