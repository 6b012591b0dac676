package repository

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/templui/docvault/internal/model"
	"github.com/templui/docvault/internal/tenancy"
)

var auditLogColumns = []string{"audit_logs.id", "audit_logs.tenant_id", "audit_logs.actor_id", "audit_logs.action", "audit_logs.target_type", "audit_logs.target_id", "audit_logs.outcome", "audit_logs.detail", "audit_logs.ip_address", "audit_logs.created_at"}

type AuditFilter struct {
	ActorID  string
	Action   string
	TargetID string
	Outcome  string
	Since    time.Time
	Limit    uint64
}

// AuditLogRepository is append-only. There is no update or delete.
type AuditLogRepository interface {
	Create(ctx context.Context, e *model.AuditLog) error
	List(ctx context.Context, filter AuditFilter) ([]*model.AuditLog, error)
}

type auditLogRepository struct {
	q     DBTX
	scope tenancy.Scope
}

func (r *auditLogRepository) Create(ctx context.Context, e *model.AuditLog) error {
	_, err := exec(ctx, r.q, r.scope.Insert(tenancy.TableAuditLogs, map[string]any{
		"id":          e.ID,
		"actor_id":    e.ActorID,
		"action":      e.Action,
		"target_type": e.TargetType,
		"target_id":   e.TargetID,
		"outcome":     e.Outcome,
		"detail":      e.Detail,
		"ip_address":  e.IPAddress,
		"created_at":  e.CreatedAt,
	}))
	if err != nil {
		return err
	}
	e.TenantID = r.scope.Tenant().ID
	return nil
}

func (r *auditLogRepository) List(ctx context.Context, f AuditFilter) ([]*model.AuditLog, error) {
	query := r.scope.Select(tenancy.TableAuditLogs, auditLogColumns...)

	eq := sq.Eq{}
	if f.ActorID != "" {
		eq["actor_id"] = f.ActorID
	}
	if f.Action != "" {
		eq["action"] = f.Action
	}
	if f.TargetID != "" {
		eq["target_id"] = f.TargetID
	}
	if f.Outcome != "" {
		eq["outcome"] = f.Outcome
	}
	if len(eq) > 0 {
		query = query.Where(eq)
	}
	if !f.Since.IsZero() {
		query = query.Where(sq.GtOrEq{"created_at": f.Since})
	}

	limit := f.Limit
	if limit == 0 || limit > 1000 {
		limit = 100
	}
	query = query.OrderBy("created_at DESC", "id").Limit(limit)

	var out []*model.AuditLog
	err := selectAll(ctx, r.q, &out, query)
	return out, err
}
