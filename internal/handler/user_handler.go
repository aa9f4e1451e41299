package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"callcenter-ops/internal/model"
	"callcenter-ops/internal/service"
	"callcenter-ops/pkg/apierror"
)

// UserHandler exposes the manager-only team-leader lifecycle.
type UserHandler struct {
	users *service.UserService
}

func NewUserHandler(users *service.UserService) *UserHandler {
	return &UserHandler{users: users}
}

func (h *UserHandler) ListTeamLeaders(w http.ResponseWriter, r *http.Request) {
	leaders, err := h.users.ListTeamLeaders(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, leaders)
}

func (h *UserHandler) CreateTeamLeader(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	var payload model.CreateTeamLeaderRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, apierror.BadRequest("invalid JSON body", ""))
		return
	}

	leader, err := h.users.CreateTeamLeader(r.Context(), payload.Name, payload.Email)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusCreated, leader)
}

func (h *UserHandler) DeleteTeamLeader(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, apierror.BadRequest("invalid user id", "id"))
		return
	}

	if err := h.users.DeleteTeamLeader(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, map[string]any{"deleted": true})
}
