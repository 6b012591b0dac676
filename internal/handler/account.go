package handler

import (
	"net/http"

	"github.com/templui/docvault/internal/ctxkeys"
	"github.com/templui/docvault/internal/model"
)

type AccountHandler struct{}

func NewAccountHandler() *AccountHandler {
	return &AccountHandler{}
}

// Me returns the authenticated user and the tenant the request resolved to.
func (h *AccountHandler) Me(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, struct {
		User   *model.User   `json:"user"`
		Tenant *model.Tenant `json:"tenant"`
	}{ctxkeys.User(r.Context()), ctxkeys.Tenant(r.Context())})
}
