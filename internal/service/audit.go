package service

import (
	"context"

	"github.com/templui/docvault/internal/audit"
	"github.com/templui/docvault/internal/model"
	"github.com/templui/docvault/internal/permission"
	"github.com/templui/docvault/internal/repository"
)

// AuditService exposes the tenant's audit trail to admins. Reading it is itself audited.
type AuditService struct {
	guard
}

func NewAuditService(store *repository.Store, eval *permission.Evaluator, recorder *audit.Recorder) *AuditService {
	return &AuditService{guard: newGuard(store, eval, recorder)}
}

func (s *AuditService) List(ctx context.Context, actorID string, filter repository.AuditFilter) ([]*model.AuditLog, error) {
	entry := &audit.Entry{ActorID: actorID, Action: model.ActionAuditView, TargetType: model.TargetTenant}
	var logs []*model.AuditLog
	err := s.run(ctx, entry, func(ctx context.Context, r *repository.Repos) error {
		m, err := s.eval.AuthorizeRole(ctx, r, actorID, model.RoleAdmin)
		if err != nil {
			return err
		}
		entry.TargetID = m.TenantID
		logs, err = r.AuditLogs.List(ctx, filter)
		return err
	})
	if err != nil {
		return nil, err
	}
	return logs, nil
}
