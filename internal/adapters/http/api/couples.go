package api

import (
	"context"
	"net/http"

	"github.com/okian/reachyou/internal/domain/model"
	"github.com/okian/reachyou/internal/domain/types"
)

// defaultRankingLimit is used when the ranking request has no limit.
const defaultRankingLimit = 10

// CoupleDependencies covers the couple leaderboard.
type CoupleDependencies interface {
	RegisterCouple(ctx context.Context, in types.CoupleInput) (types.Entry, error)
	CoupleRanking(ctx context.Context, offset, limit int) (types.Page[types.Entry], error)
	CoupleDetail(ctx context.Context, id string) (types.CoupleView, error)
	RateCouple(ctx context.Context, id string, r model.Rating) (types.Entry, error)
}

// CouplesHandler handles /couples.
type CouplesHandler struct {
	deps CoupleDependencies
}

// NewCouplesHandler creates a new couples handler.
func NewCouplesHandler(deps CoupleDependencies) *CouplesHandler {
	return &CouplesHandler{deps: deps}
}

type ratingRequest struct {
	Rating   int    `json:"rating"`
	Comment  string `json:"comment"`
	Nickname string `json:"nickname"`
}

// HandleRegister handles POST /couples.
func (h *CouplesHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	const op = "api.register_couple"
	var req types.CoupleInput
	if err := decodeJSON(r, &req); err != nil {
		writeFailure(w, r, op, err)
		return
	}
	entry, err := h.deps.RegisterCouple(r.Context(), req)
	if err != nil {
		writeFailure(w, r, op, err)
		return
	}
	writeJSON(w, http.StatusCreated, entry)
}

// HandleRanking handles GET /couples/ranking?limit=&offset=.
func (h *CouplesHandler) HandleRanking(w http.ResponseWriter, r *http.Request) {
	const op = "api.couple_ranking"
	limit, err := queryInt(r, "limit", defaultRankingLimit)
	if err != nil {
		writeFailure(w, r, op, err)
		return
	}
	offset, err := queryInt(r, "offset", 0)
	if err != nil {
		writeFailure(w, r, op, err)
		return
	}
	page, err := h.deps.CoupleRanking(r.Context(), offset, limit)
	if err != nil {
		writeFailure(w, r, op, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

// HandleGet handles GET /couples/{id}.
func (h *CouplesHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	const op = "api.couple_detail"
	view, err := h.deps.CoupleDetail(r.Context(), r.PathValue("id"))
	if err != nil {
		writeFailure(w, r, op, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// HandleRate handles PUT /couples/{id}/rating.
func (h *CouplesHandler) HandleRate(w http.ResponseWriter, r *http.Request) {
	const op = "api.rate_couple"
	var req ratingRequest
	if err := decodeJSON(r, &req); err != nil {
		writeFailure(w, r, op, err)
		return
	}
	entry, err := h.deps.RateCouple(r.Context(), r.PathValue("id"), model.Rating{
		Rating:   req.Rating,
		Comment:  req.Comment,
		Nickname: req.Nickname,
	})
	if err != nil {
		writeFailure(w, r, op, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}
