// Package tenancy implements the two tenant isolation strategies. A Scope builds every
// query against tenant-owned tables, so callers above the store never see which strategy
// is in effect.
package tenancy

import (
	"context"
	"errors"

	sq "github.com/Masterminds/squirrel"
	"github.com/templui/docvault/internal/model"
)

var ErrNoScope = errors.New("no tenant scope in context")

// Tables owned by a tenant. Everything else lives in the default namespace.
const (
	TableMemberships  = "memberships"
	TableGroups       = "user_groups"
	TableGroupMembers = "group_members"
	TableFolders      = "folders"
	TableFolderACLs   = "folder_acls"
	TableDocuments    = "documents"
	TableDocumentACLs = "document_acls"
	TableAuditLogs    = "audit_logs"
)

var TenantTables = []string{
	TableMemberships,
	TableGroups,
	TableGroupMembers,
	TableFolders,
	TableFolderACLs,
	TableDocuments,
	TableDocumentACLs,
	TableAuditLogs,
}

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// Scope builds tenant-scoped statements. Rows always carry tenant_id, whatever the strategy.
type Scope interface {
	Tenant() *model.Tenant
	// Table returns the physical name of a tenant-owned table.
	Table(table string) string
	Select(table string, columns ...string) sq.SelectBuilder
	Insert(table string, row map[string]any) sq.InsertBuilder
	Update(table string) sq.UpdateBuilder
	Delete(table string) sq.DeleteBuilder
}

// New picks the strategy configured on the tenant.
func New(tenant *model.Tenant, dialect Dialect) Scope {
	if tenant.IsolationMode == model.IsolationSchema {
		return &schemaScope{tenant: tenant, dialect: dialect}
	}
	return &filterScope{tenant: tenant}
}

func withTenant(tenantID string, row map[string]any) map[string]any {
	out := make(map[string]any, len(row)+1)
	for k, v := range row {
		out[k] = v
	}
	out["tenant_id"] = tenantID
	return out
}

// filterScope shares tables with every other filter-mode tenant and injects a
// tenant_id predicate into every statement.
type filterScope struct {
	tenant *model.Tenant
}

func (s *filterScope) Tenant() *model.Tenant { return s.tenant }

func (s *filterScope) Table(table string) string { return table }

func (s *filterScope) Select(table string, columns ...string) sq.SelectBuilder {
	return psql.Select(columns...).From(table).Where(sq.Eq{table + ".tenant_id": s.tenant.ID})
}

func (s *filterScope) Insert(table string, row map[string]any) sq.InsertBuilder {
	return psql.Insert(table).SetMap(withTenant(s.tenant.ID, row))
}

func (s *filterScope) Update(table string) sq.UpdateBuilder {
	return psql.Update(table).Where(sq.Eq{"tenant_id": s.tenant.ID})
}

func (s *filterScope) Delete(table string) sq.DeleteBuilder {
	return psql.Delete(table).Where(sq.Eq{"tenant_id": s.tenant.ID})
}

// schemaScope points every statement at the tenant's own namespace.
type schemaScope struct {
	tenant  *model.Tenant
	dialect Dialect
}

func (s *schemaScope) Tenant() *model.Tenant { return s.tenant }

func (s *schemaScope) Table(table string) string {
	return s.dialect.Qualify(s.tenant.SchemaName, table)
}

func (s *schemaScope) Select(table string, columns ...string) sq.SelectBuilder {
	return psql.Select(columns...).From(s.Table(table) + " AS " + table)
}

func (s *schemaScope) Insert(table string, row map[string]any) sq.InsertBuilder {
	return psql.Insert(s.Table(table)).SetMap(withTenant(s.tenant.ID, row))
}

func (s *schemaScope) Update(table string) sq.UpdateBuilder {
	return psql.Update(s.Table(table))
}

func (s *schemaScope) Delete(table string) sq.DeleteBuilder {
	return psql.Delete(s.Table(table))
}

type scopeKey struct{}

// WithScope returns a context carrying scope for the rest of the operation.
func WithScope(ctx context.Context, scope Scope) context.Context {
	return context.WithValue(ctx, scopeKey{}, scope)
}

// FromContext returns the scope established for this operation.
func FromContext(ctx context.Context) (Scope, error) {
	scope, ok := ctx.Value(scopeKey{}).(Scope)
	if !ok || scope == nil {
		return nil, ErrNoScope
	}
	return scope, nil
}
