package repository

import (
	"context"
	"errors"

	sq "github.com/Masterminds/squirrel"

	"github.com/templui/docvault/internal/db"
	"github.com/templui/docvault/internal/model"
	"github.com/templui/docvault/internal/tenancy"
)

var (
	ErrMembershipNotFound  = errors.New("membership not found")
	ErrDuplicateMembership = errors.New("user is already a member of this tenant")
)

var membershipColumns = []string{"memberships.id", "memberships.tenant_id", "memberships.user_id", "memberships.role", "memberships.created_at"}

type MembershipRepository interface {
	Create(ctx context.Context, m *model.Membership) error
	ByUser(ctx context.Context, userID string) (*model.Membership, error)
	List(ctx context.Context) ([]*model.Membership, error)
	SetRole(ctx context.Context, userID string, role model.Role) error
	Delete(ctx context.Context, userID string) error
}

type membershipRepository struct {
	q     DBTX
	scope tenancy.Scope
	lock  bool
}

func (r *membershipRepository) Create(ctx context.Context, m *model.Membership) error {
	_, err := exec(ctx, r.q, r.scope.Insert(tenancy.TableMemberships, map[string]any{
		"id":         m.ID,
		"user_id":    m.UserID,
		"role":       m.Role,
		"created_at": m.CreatedAt,
	}))
	if db.IsUniqueViolation(err) {
		return ErrDuplicateMembership
	}
	if err != nil {
		return err
	}
	m.TenantID = r.scope.Tenant().ID
	return nil
}

func (r *membershipRepository) ByUser(ctx context.Context, userID string) (*model.Membership, error) {
	query := r.scope.Select(tenancy.TableMemberships, membershipColumns...).Where(sq.Eq{"user_id": userID})
	if r.lock {
		query = query.Suffix("FOR SHARE")
	}

	m := &model.Membership{}
	if err := get(ctx, r.q, m, query); err != nil {
		return nil, notFound(err, ErrMembershipNotFound)
	}
	return m, nil
}

func (r *membershipRepository) List(ctx context.Context) ([]*model.Membership, error) {
	var out []*model.Membership
	err := selectAll(ctx, r.q, &out, r.scope.Select(tenancy.TableMemberships, membershipColumns...).OrderBy("created_at"))
	return out, err
}

func (r *membershipRepository) SetRole(ctx context.Context, userID string, role model.Role) error {
	n, err := exec(ctx, r.q, r.scope.Update(tenancy.TableMemberships).Set("role", role).Where(sq.Eq{"user_id": userID}))
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrMembershipNotFound
	}
	return nil
}

func (r *membershipRepository) Delete(ctx context.Context, userID string) error {
	n, err := exec(ctx, r.q, r.scope.Delete(tenancy.TableMemberships).Where(sq.Eq{"user_id": userID}))
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrMembershipNotFound
	}
	// Group memberships go with the tenant membership.
	_, err = exec(ctx, r.q, r.scope.Delete(tenancy.TableGroupMembers).Where(sq.Eq{"user_id": userID}))
	return err
}
