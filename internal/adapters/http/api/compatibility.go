package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/okian/reachyou/internal/domain/types"
)

// CompatibilityDependencies covers scoring endpoints.
type CompatibilityDependencies interface {
	CalculatePair(ctx context.Context, aID, bID string) (types.PairScore, error)
	Manual(in types.ManualInput) (types.ManualScore, error)
	TypeInfo(a, b string) (types.TypeScore, error)
	Chart() types.TypeChart
}

// CompatibilityHandler handles /compatibility.
type CompatibilityHandler struct {
	deps CompatibilityDependencies
}

// NewCompatibilityHandler creates a new compatibility handler.
func NewCompatibilityHandler(deps CompatibilityDependencies) *CompatibilityHandler {
	return &CompatibilityHandler{deps: deps}
}

type pairRequest struct {
	ProfileA string `json:"profile_a"`
	ProfileB string `json:"profile_b"`
}

// HandleCalculate handles POST /compatibility/calculate.
func (h *CompatibilityHandler) HandleCalculate(w http.ResponseWriter, r *http.Request) {
	const op = "api.calculate"
	var req pairRequest
	if err := decodeJSON(r, &req); err != nil {
		writeFailure(w, r, op, err)
		return
	}
	res, err := h.deps.CalculatePair(r.Context(), strings.TrimSpace(req.ProfileA), strings.TrimSpace(req.ProfileB))
	if err != nil {
		writeFailure(w, r, op, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// HandleManual handles POST /compatibility/manual.
func (h *CompatibilityHandler) HandleManual(w http.ResponseWriter, r *http.Request) {
	const op = "api.manual"
	var req types.ManualInput
	if err := decodeJSON(r, &req); err != nil {
		writeFailure(w, r, op, err)
		return
	}
	res, err := h.deps.Manual(req)
	if err != nil {
		writeFailure(w, r, op, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// HandleTypes handles GET /compatibility/types/{a}/{b}.
func (h *CompatibilityHandler) HandleTypes(w http.ResponseWriter, r *http.Request) {
	const op = "api.type_info"
	res, err := h.deps.TypeInfo(r.PathValue("a"), r.PathValue("b"))
	if err != nil {
		writeFailure(w, r, op, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// HandleChart handles GET /compatibility/chart.
func (h *CompatibilityHandler) HandleChart(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.deps.Chart())
}
