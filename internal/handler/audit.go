package handler

import (
	"fmt"
	"net/http"
	"time"

	"github.com/templui/docvault/internal/model"
	"github.com/templui/docvault/internal/repository"
	"github.com/templui/docvault/internal/service"
)

type AuditHandler struct {
	auditService *service.AuditService
}

func NewAuditHandler(auditService *service.AuditService) *AuditHandler {
	return &AuditHandler{
		auditService: auditService,
	}
}

// List filters the tenant's audit trail by ?actor=, ?action=, ?target=, ?outcome=,
// ?since= (RFC 3339) and ?limit=.
func (h *AuditHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, err := queryInt(r, "limit")
	if err != nil {
		HandleError(w, r, err)
		return
	}
	filter := repository.AuditFilter{
		ActorID:  q.Get("actor"),
		Action:   q.Get("action"),
		TargetID: q.Get("target"),
		Outcome:  q.Get("outcome"),
		Limit:    uint64(limit),
	}
	if since := q.Get("since"); since != "" {
		t, err := time.Parse(time.RFC3339, since)
		if err != nil {
			HandleError(w, r, fmt.Errorf("%w: since must be RFC 3339", errBadRequest))
			return
		}
		filter.Since = t
	}

	logs, err := h.auditService.List(r.Context(), actorID(r), filter)
	if err != nil {
		HandleError(w, r, err)
		return
	}
	if logs == nil {
		logs = []*model.AuditLog{}
	}
	writeJSON(w, http.StatusOK, logs)
}
