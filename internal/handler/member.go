package handler

import (
	"net/http"

	"github.com/templui/docvault/internal/model"
	"github.com/templui/docvault/internal/service"
)

type MemberHandler struct {
	membershipService *service.MembershipService
}

func NewMemberHandler(membershipService *service.MembershipService) *MemberHandler {
	return &MemberHandler{
		membershipService: membershipService,
	}
}

func (h *MemberHandler) List(w http.ResponseWriter, r *http.Request) {
	members, err := h.membershipService.ListMembers(r.Context(), actorID(r))
	if err != nil {
		HandleError(w, r, err)
		return
	}
	if members == nil {
		members = []*model.Membership{}
	}
	writeJSON(w, http.StatusOK, members)
}

// Add enrolls a user by email, creating the user on first sight.
func (h *MemberHandler) Add(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string     `json:"email"`
		Role  model.Role `json:"role"`
	}
	if err := decodeJSON(r, &req); err != nil {
		HandleError(w, r, err)
		return
	}

	m, err := h.membershipService.AddMember(r.Context(), actorID(r), req.Email, req.Role)
	if err != nil {
		HandleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, m)
}

func (h *MemberHandler) SetRole(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Role model.Role `json:"role"`
	}
	if err := decodeJSON(r, &req); err != nil {
		HandleError(w, r, err)
		return
	}

	if err := h.membershipService.SetRole(r.Context(), actorID(r), r.PathValue("user"), req.Role); err != nil {
		HandleError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *MemberHandler) Remove(w http.ResponseWriter, r *http.Request) {
	if err := h.membershipService.RemoveMember(r.Context(), actorID(r), r.PathValue("user")); err != nil {
		HandleError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *MemberHandler) ListGroups(w http.ResponseWriter, r *http.Request) {
	groups, err := h.membershipService.ListGroups(r.Context(), actorID(r))
	if err != nil {
		HandleError(w, r, err)
		return
	}
	if groups == nil {
		groups = []*model.Group{}
	}
	writeJSON(w, http.StatusOK, groups)
}

func (h *MemberHandler) CreateGroup(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if err := decodeJSON(r, &req); err != nil {
		HandleError(w, r, err)
		return
	}

	g, err := h.membershipService.CreateGroup(r.Context(), actorID(r), req.Name)
	if err != nil {
		HandleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, g)
}

func (h *MemberHandler) AddToGroup(w http.ResponseWriter, r *http.Request) {
	if err := h.membershipService.AddToGroup(r.Context(), actorID(r), r.PathValue("id"), r.PathValue("user")); err != nil {
		HandleError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *MemberHandler) RemoveFromGroup(w http.ResponseWriter, r *http.Request) {
	if err := h.membershipService.RemoveFromGroup(r.Context(), actorID(r), r.PathValue("id"), r.PathValue("user")); err != nil {
		HandleError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
