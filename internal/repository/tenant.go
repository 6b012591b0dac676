package repository

import (
	"context"
	"errors"
	"strings"

	sq "github.com/Masterminds/squirrel"

	"github.com/templui/docvault/internal/db"
	"github.com/templui/docvault/internal/model"
)

var (
	ErrTenantNotFound  = errors.New("tenant not found")
	ErrDuplicateTenant = errors.New("tenant name, slug or schema already exists")
)

var tenantColumns = []string{"id", "name", "slug", "schema_name", "isolation_mode", "active", "created_at"}

type TenantRepository interface {
	Create(ctx context.Context, tenant *model.Tenant) error
	ByID(ctx context.Context, id string) (*model.Tenant, error)
	BySlug(ctx context.Context, slug string) (*model.Tenant, error)
	List(ctx context.Context) ([]*model.Tenant, error)
	SetActive(ctx context.Context, id string, active bool) error
}

type tenantRepository struct {
	q DBTX
}

func NewTenantRepository(q DBTX) TenantRepository {
	return &tenantRepository{q: q}
}

func (r *tenantRepository) Create(ctx context.Context, t *model.Tenant) error {
	_, err := exec(ctx, r.q, psql.Insert("tenants").Columns(tenantColumns...).
		Values(t.ID, t.Name, strings.ToLower(t.Slug), t.SchemaName, t.IsolationMode, t.Active, t.CreatedAt))
	if db.IsUniqueViolation(err) {
		return ErrDuplicateTenant
	}
	return err
}

func (r *tenantRepository) ByID(ctx context.Context, id string) (*model.Tenant, error) {
	tenant := &model.Tenant{}
	err := get(ctx, r.q, tenant, psql.Select(tenantColumns...).From("tenants").Where(sq.Eq{"id": id}))
	if err != nil {
		return nil, notFound(err, ErrTenantNotFound)
	}
	return tenant, nil
}

// BySlug matches case-insensitively. Slugs are stored lowercased.
func (r *tenantRepository) BySlug(ctx context.Context, slug string) (*model.Tenant, error) {
	tenant := &model.Tenant{}
	err := get(ctx, r.q, tenant, psql.Select(tenantColumns...).From("tenants").
		Where(sq.Eq{"slug": strings.ToLower(slug)}))
	if err != nil {
		return nil, notFound(err, ErrTenantNotFound)
	}
	return tenant, nil
}

func (r *tenantRepository) List(ctx context.Context) ([]*model.Tenant, error) {
	var tenants []*model.Tenant
	err := selectAll(ctx, r.q, &tenants, psql.Select(tenantColumns...).From("tenants").OrderBy("slug"))
	return tenants, err
}

func (r *tenantRepository) SetActive(ctx context.Context, id string, active bool) error {
	n, err := exec(ctx, r.q, psql.Update("tenants").Set("active", active).Where(sq.Eq{"id": id}))
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrTenantNotFound
	}
	return nil
}
