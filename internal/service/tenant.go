package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/templui/docvault/internal/audit"
	"github.com/templui/docvault/internal/db"
	"github.com/templui/docvault/internal/model"
	"github.com/templui/docvault/internal/repository"
	"github.com/templui/docvault/internal/tenancy"
	"github.com/templui/docvault/internal/validation"
)

var (
	ErrTenantNotFound       = errors.New("tenant not found")
	ErrInvalidIsolationMode = errors.New("isolation mode must be schema or filter")
)

// SystemActor is recorded as the actor of operations run by provisioning tooling.
const SystemActor = "system"

type TenantService struct {
	store       *repository.Store
	audit       *audit.Recorder
	hostSuffix  string
	defaultMode model.IsolationMode
	now         func() time.Time
}

func NewTenantService(store *repository.Store, recorder *audit.Recorder, hostSuffix string, defaultMode model.IsolationMode) *TenantService {
	if !defaultMode.Valid() {
		defaultMode = model.IsolationFilter
	}
	return &TenantService{
		store:       store,
		audit:       recorder,
		hostSuffix:  strings.ToLower(hostSuffix),
		defaultMode: defaultMode,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// RoutingKey reduces a host name, header value or path segment to a tenant slug. The port
// and the configured environment suffix are dropped and the first label is kept.
func (s *TenantService) RoutingKey(identifier string) string {
	key := strings.ToLower(strings.TrimSpace(identifier))
	if host, _, err := net.SplitHostPort(key); err == nil {
		key = host
	}
	key = strings.TrimSuffix(key, ".")
	if s.hostSuffix != "" {
		key = strings.TrimSuffix(key, s.hostSuffix)
	}
	key = strings.TrimPrefix(key, "www.")
	if i := strings.IndexByte(key, '.'); i >= 0 {
		key = key[:i]
	}
	return key
}

// Resolve returns the active tenant for identifier. Unknown and inactive tenants are
// indistinguishable to the caller.
func (s *TenantService) Resolve(ctx context.Context, identifier string) (*model.Tenant, error) {
	key := s.RoutingKey(identifier)
	if key == "" || key == "localhost" || key == "www" {
		return nil, ErrTenantNotFound
	}

	tenant, err := s.store.Tenants().BySlug(ctx, key)
	if errors.Is(err, repository.ErrTenantNotFound) {
		return nil, ErrTenantNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to resolve tenant: %w", err)
	}
	if !tenant.Active {
		slog.Debug("inactive tenant requested", "tenant", tenant.Slug)
		return nil, ErrTenantNotFound
	}
	return tenant, nil
}

// Establish returns a context whose data access is confined to tenant.
func (s *TenantService) Establish(ctx context.Context, tenant *model.Tenant) context.Context {
	return tenancy.WithScope(ctx, tenancy.New(tenant, s.store.Dialect()))
}

// Enter resolves identifier and establishes the tenant's scope.
func (s *TenantService) Enter(ctx context.Context, identifier string) (context.Context, *model.Tenant, error) {
	tenant, err := s.Resolve(ctx, identifier)
	if err != nil {
		return ctx, nil, err
	}
	return s.Establish(ctx, tenant), tenant, nil
}

type ProvisionRequest struct {
	Name       string
	Slug       string
	Mode       model.IsolationMode // empty uses the deployment default
	AdminEmail string              // optional first admin
}

// Provision creates a tenant, its namespace in schema mode, and optionally its first admin.
func (s *TenantService) Provision(ctx context.Context, req ProvisionRequest) (*model.Tenant, error) {
	slug := strings.ToLower(strings.TrimSpace(req.Slug))
	if err := validation.ValidateSlug(slug); err != nil {
		return nil, err
	}
	if err := validation.ValidateName(req.Name); err != nil {
		return nil, err
	}
	mode := req.Mode
	if mode == "" {
		mode = s.defaultMode
	}
	if !mode.Valid() {
		return nil, ErrInvalidIsolationMode
	}
	if req.AdminEmail != "" {
		if err := validation.ValidateEmail(req.AdminEmail); err != nil {
			return nil, err
		}
	}

	tenant := &model.Tenant{
		ID:            uuid.NewString(),
		Name:          strings.TrimSpace(req.Name),
		Slug:          slug,
		SchemaName:    "t_" + strings.ReplaceAll(slug, "-", "_"),
		IsolationMode: mode,
		Active:        true,
		CreatedAt:     s.now(),
	}

	if mode == model.IsolationSchema {
		if err := db.CreateNamespace(ctx, s.store.DB(), tenant.SchemaName); err != nil {
			return nil, fmt.Errorf("failed to create tenant namespace: %w", err)
		}
	}
	if err := s.store.Tenants().Create(ctx, tenant); err != nil {
		return nil, fmt.Errorf("failed to create tenant: %w", err)
	}

	scoped := s.Establish(ctx, tenant)
	if req.AdminEmail != "" {
		if err := s.bootstrapAdmin(scoped, req.AdminEmail); err != nil {
			return nil, err
		}
	}

	s.audit.Record(scoped, audit.Entry{
		ActorID:    SystemActor,
		Action:     model.ActionTenantProvision,
		TargetType: model.TargetTenant,
		TargetID:   tenant.ID,
		Detail:     fmt.Sprintf("slug=%s mode=%s", tenant.Slug, tenant.IsolationMode),
	})
	slog.Info("tenant provisioned", "tenant", tenant.Slug, "mode", tenant.IsolationMode)
	return tenant, nil
}

func (s *TenantService) bootstrapAdmin(ctx context.Context, email string) error {
	return s.store.InTx(ctx, func(ctx context.Context, r *repository.Repos) error {
		user, err := findOrCreateUser(ctx, r, email, s.now())
		if err != nil {
			return err
		}
		return r.Memberships.Create(ctx, &model.Membership{
			ID:        uuid.NewString(),
			UserID:    user.ID,
			Role:      model.RoleAdmin,
			CreatedAt: s.now(),
		})
	})
}

// Deactivate hides a tenant from resolution. Tenants are never deleted.
func (s *TenantService) Deactivate(ctx context.Context, slug string) (*model.Tenant, error) {
	return s.setActive(ctx, slug, false)
}

func (s *TenantService) Activate(ctx context.Context, slug string) (*model.Tenant, error) {
	return s.setActive(ctx, slug, true)
}

func (s *TenantService) setActive(ctx context.Context, slug string, active bool) (*model.Tenant, error) {
	tenant, err := s.store.Tenants().BySlug(ctx, strings.ToLower(slug))
	if errors.Is(err, repository.ErrTenantNotFound) {
		return nil, ErrTenantNotFound
	}
	if err != nil {
		return nil, err
	}
	entry := audit.Entry{
		ActorID:    SystemActor,
		Action:     model.ActionTenantDeactivate,
		TargetType: model.TargetTenant,
		TargetID:   tenant.ID,
		Detail:     "slug=" + tenant.Slug,
	}
	if active {
		entry.Action = model.ActionTenantActivate
	}
	err = s.store.Tenants().SetActive(ctx, tenant.ID, active)
	s.audit.RecordResult(s.Establish(ctx, tenant), entry, err)
	if err != nil {
		return nil, err
	}
	tenant.Active = active
	slog.Info("tenant activation changed", "tenant", tenant.Slug, "active", active)
	return tenant, nil
}

func (s *TenantService) List(ctx context.Context) ([]*model.Tenant, error) {
	return s.store.Tenants().List(ctx)
}

func findOrCreateUser(ctx context.Context, r *repository.Repos, email string, now time.Time) (*model.User, error) {
	user, err := r.Users.ByEmail(ctx, email)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, repository.ErrUserNotFound) {
		return nil, err
	}
	user = &model.User{ID: uuid.NewString(), Email: email, CreatedAt: now}
	if err := r.Users.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}
