package api

import (
	"context"
	"net/http"

	"github.com/okian/reachyou/internal/domain/compat"
	"github.com/okian/reachyou/internal/domain/model"
	"github.com/okian/reachyou/internal/domain/types"
)

// ProfileDependencies covers profile CRUD.
type ProfileDependencies interface {
	CreateProfile(ctx context.Context, in types.ProfileInput) (model.Profile, error)
	GetProfile(ctx context.Context, id string) (model.Profile, error)
	ListProfiles(ctx context.Context, typeCode string) ([]model.Profile, error)
	UpdateProfile(ctx context.Context, id string, in types.ProfileUpdate) (model.Profile, error)
	DeleteProfile(ctx context.Context, id string) error
	TypeCounts(ctx context.Context) (map[compat.TypeCode]int, error)
}

// ProfilesHandler handles /profiles.
type ProfilesHandler struct {
	deps ProfileDependencies
}

// NewProfilesHandler creates a new profiles handler.
func NewProfilesHandler(deps ProfileDependencies) *ProfilesHandler {
	return &ProfilesHandler{deps: deps}
}

type profileList struct {
	Profiles []model.Profile `json:"profiles"`
	Count    int             `json:"count"`
}

// HandleCreate handles POST /profiles.
func (h *ProfilesHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	const op = "api.create_profile"
	var req types.ProfileInput
	if err := decodeJSON(r, &req); err != nil {
		writeFailure(w, r, op, err)
		return
	}
	p, err := h.deps.CreateProfile(r.Context(), req)
	if err != nil {
		writeFailure(w, r, op, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

// HandleList handles GET /profiles with an optional type_code filter.
func (h *ProfilesHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	const op = "api.list_profiles"
	list, err := h.deps.ListProfiles(r.Context(), r.URL.Query().Get("type_code"))
	if err != nil {
		writeFailure(w, r, op, err)
		return
	}
	writeJSON(w, http.StatusOK, profileList{Profiles: list, Count: len(list)})
}

// HandleGet handles GET /profiles/{id}.
func (h *ProfilesHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_profile"
	p, err := h.deps.GetProfile(r.Context(), r.PathValue("id"))
	if err != nil {
		writeFailure(w, r, op, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// HandleUpdate handles PUT /profiles/{id}. Absent fields are kept.
func (h *ProfilesHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	const op = "api.update_profile"
	var req types.ProfileUpdate
	if err := decodeJSON(r, &req); err != nil {
		writeFailure(w, r, op, err)
		return
	}
	p, err := h.deps.UpdateProfile(r.Context(), r.PathValue("id"), req)
	if err != nil {
		writeFailure(w, r, op, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// HandleDelete handles DELETE /profiles/{id}.
func (h *ProfilesHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	const op = "api.delete_profile"
	if err := h.deps.DeleteProfile(r.Context(), r.PathValue("id")); err != nil {
		writeFailure(w, r, op, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleTypeCounts handles GET /profiles/stats/types.
func (h *ProfilesHandler) HandleTypeCounts(w http.ResponseWriter, r *http.Request) {
	const op = "api.type_counts"
	counts, err := h.deps.TypeCounts(r.Context())
	if err != nil {
		writeFailure(w, r, op, err)
		return
	}
	writeJSON(w, http.StatusOK, counts)
}
