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
	ErrGroupNotFound  = errors.New("group not found")
	ErrDuplicateGroup = errors.New("group name already exists")
)

var groupColumns = []string{"user_groups.id", "user_groups.tenant_id", "user_groups.name", "user_groups.created_at"}

type GroupRepository interface {
	Create(ctx context.Context, g *model.Group) error
	ByID(ctx context.Context, id string) (*model.Group, error)
	List(ctx context.Context) ([]*model.Group, error)
	AddMember(ctx context.Context, groupID, userID string) error
	RemoveMember(ctx context.Context, groupID, userID string) error
	// GroupIDsOf returns the ids of every group userID belongs to.
	GroupIDsOf(ctx context.Context, userID string) ([]string, error)
	Members(ctx context.Context, groupID string) ([]string, error)
}

type groupRepository struct {
	q     DBTX
	scope tenancy.Scope
}

func (r *groupRepository) Create(ctx context.Context, g *model.Group) error {
	_, err := exec(ctx, r.q, r.scope.Insert(tenancy.TableGroups, map[string]any{
		"id":         g.ID,
		"name":       g.Name,
		"created_at": g.CreatedAt,
	}))
	if db.IsUniqueViolation(err) {
		return ErrDuplicateGroup
	}
	if err != nil {
		return err
	}
	g.TenantID = r.scope.Tenant().ID
	return nil
}

func (r *groupRepository) ByID(ctx context.Context, id string) (*model.Group, error) {
	g := &model.Group{}
	err := get(ctx, r.q, g, r.scope.Select(tenancy.TableGroups, groupColumns...).Where(sq.Eq{"id": id}))
	if err != nil {
		return nil, notFound(err, ErrGroupNotFound)
	}
	return g, nil
}

func (r *groupRepository) List(ctx context.Context) ([]*model.Group, error) {
	var out []*model.Group
	err := selectAll(ctx, r.q, &out, r.scope.Select(tenancy.TableGroups, groupColumns...).OrderBy("name"))
	return out, err
}

// AddMember is idempotent.
func (r *groupRepository) AddMember(ctx context.Context, groupID, userID string) error {
	_, err := exec(ctx, r.q, r.scope.Insert(tenancy.TableGroupMembers, map[string]any{
		"group_id": groupID,
		"user_id":  userID,
	}))
	if db.IsUniqueViolation(err) {
		return nil
	}
	return err
}

func (r *groupRepository) RemoveMember(ctx context.Context, groupID, userID string) error {
	_, err := exec(ctx, r.q, r.scope.Delete(tenancy.TableGroupMembers).
		Where(sq.Eq{"group_id": groupID, "user_id": userID}))
	return err
}

func (r *groupRepository) GroupIDsOf(ctx context.Context, userID string) ([]string, error) {
	var ids []string
	err := selectAll(ctx, r.q, &ids, r.scope.Select(tenancy.TableGroupMembers, "group_id").
		Where(sq.Eq{"user_id": userID}).OrderBy("group_id"))
	return ids, err
}

func (r *groupRepository) Members(ctx context.Context, groupID string) ([]string, error) {
	var ids []string
	err := selectAll(ctx, r.q, &ids, r.scope.Select(tenancy.TableGroupMembers, "user_id").
		Where(sq.Eq{"group_id": groupID}).OrderBy("user_id"))
	return ids, err
}
