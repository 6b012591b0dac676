package repository

import (
	"context"
	"errors"

	sq "github.com/Masterminds/squirrel"

	"github.com/templui/docvault/internal/model"
	"github.com/templui/docvault/internal/tenancy"
)

var ErrACLEntryNotFound = errors.New("acl entry not found")

// ACLRepository serves folder_acls and document_acls; only the target column differs.
type ACLRepository interface {
	Grant(ctx context.Context, e *model.ACLEntry) error
	Revoke(ctx context.Context, targetID, entryID string) error
	ForTarget(ctx context.Context, targetID string) ([]*model.ACLEntry, error)
	// Grants reports whether any entry on targetIDs gives capability to userID or to
	// one of groupIDs.
	Grants(ctx context.Context, targetIDs []string, userID string, groupIDs []string, capability model.Capability) (bool, error)
	DeleteForTargets(ctx context.Context, targetIDs []string) error
}

type aclRepository struct {
	q            DBTX
	scope        tenancy.Scope
	table        string
	targetColumn string
}

func (r *aclRepository) columns() []string {
	t := r.table
	return []string{t + ".id", t + ".tenant_id", t + "." + r.targetColumn + " AS target_id", t + ".user_id", t + ".group_id", t + ".permission", t + ".granted_by", t + ".granted_at"}
}

func (r *aclRepository) Grant(ctx context.Context, e *model.ACLEntry) error {
	_, err := exec(ctx, r.q, r.scope.Insert(r.table, map[string]any{
		"id":           e.ID,
		r.targetColumn: e.TargetID,
		"user_id":      e.UserID,
		"group_id":     e.GroupID,
		"permission":   e.Capability,
		"granted_by":   e.GrantedBy,
		"granted_at":   e.GrantedAt,
	}))
	if err != nil {
		return err
	}
	e.TenantID = r.scope.Tenant().ID
	return nil
}

func (r *aclRepository) Revoke(ctx context.Context, targetID, entryID string) error {
	n, err := exec(ctx, r.q, r.scope.Delete(r.table).Where(sq.Eq{"id": entryID, r.targetColumn: targetID}))
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrACLEntryNotFound
	}
	return nil
}

func (r *aclRepository) ForTarget(ctx context.Context, targetID string) ([]*model.ACLEntry, error) {
	var out []*model.ACLEntry
	err := selectAll(ctx, r.q, &out, r.scope.Select(r.table, r.columns()...).
		Where(sq.Eq{r.targetColumn: targetID}).OrderBy("granted_at"))
	return out, err
}

func (r *aclRepository) Grants(ctx context.Context, targetIDs []string, userID string, groupIDs []string, capability model.Capability) (bool, error) {
	if len(targetIDs) == 0 {
		return false, nil
	}
	grantee := sq.Or{sq.Eq{"user_id": userID}}
	if len(groupIDs) > 0 {
		grantee = append(grantee, sq.Eq{"group_id": groupIDs})
	}

	var n int
	err := get(ctx, r.q, &n, r.scope.Select(r.table, "COUNT(*)").
		Where(sq.Eq{r.targetColumn: targetIDs, "permission": capability}).
		Where(grantee))
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *aclRepository) DeleteForTargets(ctx context.Context, targetIDs []string) error {
	if len(targetIDs) == 0 {
		return nil
	}
	_, err := exec(ctx, r.q, r.scope.Delete(r.table).Where(sq.Eq{r.targetColumn: targetIDs}))
	return err
}
