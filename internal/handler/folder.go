package handler

import (
	"net/http"

	"github.com/templui/docvault/internal/model"
	"github.com/templui/docvault/internal/service"
)

type FolderHandler struct {
	folderService *service.FolderService
}

func NewFolderHandler(folderService *service.FolderService) *FolderHandler {
	return &FolderHandler{
		folderService: folderService,
	}
}

type folderRequest struct {
	ParentID string `json:"parent_id"`
	Name     string `json:"name"`
}

// List returns the children of ?parent=, or the root folders when it is absent.
func (h *FolderHandler) List(w http.ResponseWriter, r *http.Request) {
	folders, err := h.folderService.Children(r.Context(), actorID(r), r.URL.Query().Get("parent"))
	if err != nil {
		HandleError(w, r, err)
		return
	}
	if folders == nil {
		folders = []*model.Folder{}
	}
	writeJSON(w, http.StatusOK, folders)
}

func (h *FolderHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req folderRequest
	if err := decodeJSON(r, &req); err != nil {
		HandleError(w, r, err)
		return
	}

	folder, err := h.folderService.Create(r.Context(), actorID(r), req.ParentID, req.Name)
	if err != nil {
		HandleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, folder)
}

func (h *FolderHandler) Get(w http.ResponseWriter, r *http.Request) {
	folder, err := h.folderService.Get(r.Context(), actorID(r), r.PathValue("id"))
	if err != nil {
		HandleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, folder)
}

func (h *FolderHandler) Rename(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if err := decodeJSON(r, &req); err != nil {
		HandleError(w, r, err)
		return
	}

	if err := h.folderService.Rename(r.Context(), actorID(r), r.PathValue("id"), req.Name); err != nil {
		HandleError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Move reparents a folder. An empty parent_id moves it to the root.
func (h *FolderHandler) Move(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ParentID string `json:"parent_id"`
	}
	if err := decodeJSON(r, &req); err != nil {
		HandleError(w, r, err)
		return
	}

	if err := h.folderService.Move(r.Context(), actorID(r), r.PathValue("id"), req.ParentID); err != nil {
		HandleError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *FolderHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.folderService.Delete(r.Context(), actorID(r), r.PathValue("id")); err != nil {
		HandleError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *FolderHandler) ACL(w http.ResponseWriter, r *http.Request) {
	entries, err := h.folderService.ACL(r.Context(), actorID(r), r.PathValue("id"))
	if err != nil {
		HandleError(w, r, err)
		return
	}
	writeACL(w, entries)
}

func (h *FolderHandler) Grant(w http.ResponseWriter, r *http.Request) {
	var req grantRequest
	if err := decodeJSON(r, &req); err != nil {
		HandleError(w, r, err)
		return
	}

	entry, err := h.folderService.Grant(r.Context(), actorID(r), r.PathValue("id"), req.principal(), req.Capability)
	if err != nil {
		HandleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, entry)
}

func (h *FolderHandler) Revoke(w http.ResponseWriter, r *http.Request) {
	if err := h.folderService.Revoke(r.Context(), actorID(r), r.PathValue("id"), r.PathValue("entry")); err != nil {
		HandleError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// grantRequest names exactly one of user_id or group_id.
type grantRequest struct {
	UserID     string           `json:"user_id"`
	GroupID    string           `json:"group_id"`
	Capability model.Capability `json:"capability"`
}

func (g grantRequest) principal() model.Principal {
	return model.Principal{UserID: g.UserID, GroupID: g.GroupID}
}

func writeACL(w http.ResponseWriter, entries []*model.ACLEntry) {
	if entries == nil {
		entries = []*model.ACLEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}
