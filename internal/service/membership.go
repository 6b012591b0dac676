package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/templui/docvault/internal/audit"
	"github.com/templui/docvault/internal/model"
	"github.com/templui/docvault/internal/permission"
	"github.com/templui/docvault/internal/repository"
	"github.com/templui/docvault/internal/validation"
)

var (
	ErrInvalidRole = errors.New("role must be admin, editor or viewer")
	ErrLastAdmin   = errors.New("tenant must keep at least one admin")
)

// MembershipService manages who belongs to a tenant and with which role. Every operation
// requires the admin role.
type MembershipService struct {
	guard
}

func NewMembershipService(store *repository.Store, eval *permission.Evaluator, recorder *audit.Recorder) *MembershipService {
	return &MembershipService{guard: newGuard(store, eval, recorder)}
}

// AddMember adds the user with email to the tenant, creating the account if needed.
func (s *MembershipService) AddMember(ctx context.Context, actorID, email string, role model.Role) (*model.Membership, error) {
	entry := &audit.Entry{ActorID: actorID, Action: model.ActionMemberAdd, TargetType: model.TargetMembership, Detail: "role=" + string(role)}
	if err := validation.ValidateEmail(email); err != nil {
		s.audit.RecordResult(ctx, *entry, err)
		return nil, err
	}
	if !role.Valid() {
		s.audit.RecordResult(ctx, *entry, ErrInvalidRole)
		return nil, ErrInvalidRole
	}

	m := &model.Membership{ID: uuid.NewString(), Role: role, CreatedAt: s.now()}
	err := s.run(ctx, entry, func(ctx context.Context, r *repository.Repos) error {
		if _, err := s.eval.AuthorizeRole(ctx, r, actorID, model.RoleAdmin); err != nil {
			return err
		}
		user, err := findOrCreateUser(ctx, r, email, s.now())
		if err != nil {
			return err
		}
		m.UserID = user.ID
		entry.TargetID = user.ID
		return r.Memberships.Create(ctx, m)
	})
	if err != nil {
		return nil, err
	}
	return m, nil
}

func (s *MembershipService) SetRole(ctx context.Context, actorID, userID string, role model.Role) error {
	entry := &audit.Entry{ActorID: actorID, Action: model.ActionMemberRole, TargetType: model.TargetMembership, TargetID: userID, Detail: "role=" + string(role)}
	if !role.Valid() {
		s.audit.RecordResult(ctx, *entry, ErrInvalidRole)
		return ErrInvalidRole
	}
	return s.run(ctx, entry, func(ctx context.Context, r *repository.Repos) error {
		if _, err := s.eval.AuthorizeRole(ctx, r, actorID, model.RoleAdmin); err != nil {
			return err
		}
		if role != model.RoleAdmin {
			if err := keepsAnAdmin(ctx, r, userID); err != nil {
				return err
			}
		}
		return r.Memberships.SetRole(ctx, userID, role)
	})
}

func (s *MembershipService) RemoveMember(ctx context.Context, actorID, userID string) error {
	entry := &audit.Entry{ActorID: actorID, Action: model.ActionMemberRemove, TargetType: model.TargetMembership, TargetID: userID}
	return s.run(ctx, entry, func(ctx context.Context, r *repository.Repos) error {
		if _, err := s.eval.AuthorizeRole(ctx, r, actorID, model.RoleAdmin); err != nil {
			return err
		}
		if err := keepsAnAdmin(ctx, r, userID); err != nil {
			return err
		}
		return r.Memberships.Delete(ctx, userID)
	})
}

// keepsAnAdmin fails when userID is the tenant's only admin.
func keepsAnAdmin(ctx context.Context, r *repository.Repos, userID string) error {
	members, err := r.Memberships.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to list members: %w", err)
	}
	admins, target := 0, false
	for _, m := range members {
		if m.Role == model.RoleAdmin {
			admins++
			if m.UserID == userID {
				target = true
			}
		}
	}
	if target && admins == 1 {
		return ErrLastAdmin
	}
	return nil
}

func (s *MembershipService) ListMembers(ctx context.Context, actorID string) ([]*model.Membership, error) {
	entry := &audit.Entry{ActorID: actorID, Action: model.ActionMemberList, TargetType: model.TargetTenant}
	var members []*model.Membership
	err := s.run(ctx, entry, func(ctx context.Context, r *repository.Repos) error {
		m, err := s.eval.AuthorizeRole(ctx, r, actorID, model.RoleAdmin)
		if err != nil {
			return err
		}
		entry.TargetID = m.TenantID
		members, err = r.Memberships.List(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}
	return members, nil
}

func (s *MembershipService) CreateGroup(ctx context.Context, actorID, name string) (*model.Group, error) {
	entry := &audit.Entry{ActorID: actorID, Action: model.ActionGroupCreate, TargetType: model.TargetGroup, Detail: "name=" + name}
	if err := validation.ValidateName(name); err != nil {
		s.audit.RecordResult(ctx, *entry, err)
		return nil, err
	}

	g := &model.Group{ID: uuid.NewString(), Name: name, CreatedAt: s.now()}
	entry.TargetID = g.ID
	err := s.run(ctx, entry, func(ctx context.Context, r *repository.Repos) error {
		if _, err := s.eval.AuthorizeRole(ctx, r, actorID, model.RoleAdmin); err != nil {
			return err
		}
		return r.Groups.Create(ctx, g)
	})
	if err != nil {
		return nil, err
	}
	return g, nil
}

// AddToGroup adds a tenant member to a group. Adding twice is a no-op.
func (s *MembershipService) AddToGroup(ctx context.Context, actorID, groupID, userID string) error {
	entry := &audit.Entry{ActorID: actorID, Action: model.ActionGroupAdd, TargetType: model.TargetGroup, TargetID: groupID, Detail: "user=" + userID}
	return s.run(ctx, entry, func(ctx context.Context, r *repository.Repos) error {
		if _, err := s.eval.AuthorizeRole(ctx, r, actorID, model.RoleAdmin); err != nil {
			return err
		}
		if _, err := r.Groups.ByID(ctx, groupID); err != nil {
			return err
		}
		if err := checkPrincipal(ctx, r, model.Principal{UserID: userID}); err != nil {
			return err
		}
		return r.Groups.AddMember(ctx, groupID, userID)
	})
}

func (s *MembershipService) RemoveFromGroup(ctx context.Context, actorID, groupID, userID string) error {
	entry := &audit.Entry{ActorID: actorID, Action: model.ActionGroupRemove, TargetType: model.TargetGroup, TargetID: groupID, Detail: "user=" + userID}
	return s.run(ctx, entry, func(ctx context.Context, r *repository.Repos) error {
		if _, err := s.eval.AuthorizeRole(ctx, r, actorID, model.RoleAdmin); err != nil {
			return err
		}
		if _, err := r.Groups.ByID(ctx, groupID); err != nil {
			return err
		}
		return r.Groups.RemoveMember(ctx, groupID, userID)
	})
}

func (s *MembershipService) ListGroups(ctx context.Context, actorID string) ([]*model.Group, error) {
	entry := &audit.Entry{ActorID: actorID, Action: model.ActionGroupList, TargetType: model.TargetTenant}
	var groups []*model.Group
	err := s.run(ctx, entry, func(ctx context.Context, r *repository.Repos) error {
		m, err := s.eval.AuthorizeRole(ctx, r, actorID, model.RoleAdmin)
		if err != nil {
			return err
		}
		entry.TargetID = m.TenantID
		groups, err = r.Groups.List(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}
	return groups, nil
}
