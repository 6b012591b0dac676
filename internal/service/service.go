package service

import (
	"context"
	"errors"
	"time"

	"github.com/templui/docvault/internal/audit"
	"github.com/templui/docvault/internal/model"
	"github.com/templui/docvault/internal/permission"
	"github.com/templui/docvault/internal/repository"
)

var (
	ErrInvalidCapability = errors.New("capability does not apply to this target")
	ErrInvalidPrincipal  = errors.New("grant needs exactly one of user or group")
	ErrNotMember         = errors.New("user is not a member of this tenant")
)

// guard is shared by the tenant-scoped services: it runs a check-then-act unit of work in
// one transaction and records exactly one audit entry once the transaction has resolved.
type guard struct {
	store *repository.Store
	eval  *permission.Evaluator
	audit *audit.Recorder
	now   func() time.Time
}

func newGuard(store *repository.Store, eval *permission.Evaluator, recorder *audit.Recorder) guard {
	return guard{
		store: store,
		eval:  eval,
		audit: recorder,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// run executes fn in a transaction. fn may fill in entry.TargetID or entry.Detail.
func (g *guard) run(ctx context.Context, entry *audit.Entry, fn func(ctx context.Context, r *repository.Repos) error) error {
	err := g.store.InTx(ctx, fn)
	g.audit.RecordResult(ctx, *entry, err)
	return err
}

// requireGrantor allows ACL changes by the target's owner or a tenant admin.
func (g *guard) requireGrantor(ctx context.Context, r *repository.Repos, actorID, ownerID string) error {
	if actorID == ownerID {
		if _, err := g.eval.AuthorizeRole(ctx, r, actorID, model.RoleViewer); err != nil {
			return err
		}
		return nil
	}
	_, err := g.eval.AuthorizeRole(ctx, r, actorID, model.RoleAdmin)
	return err
}

// checkPrincipal verifies that a grantee exists in the tenant.
func checkPrincipal(ctx context.Context, r *repository.Repos, p model.Principal) error {
	if !p.Valid() {
		return ErrInvalidPrincipal
	}
	if p.UserID != "" {
		if _, err := r.Memberships.ByUser(ctx, p.UserID); err != nil {
			if errors.Is(err, repository.ErrMembershipNotFound) {
				return ErrNotMember
			}
			return err
		}
		return nil
	}
	_, err := r.Groups.ByID(ctx, p.GroupID)
	return err
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
