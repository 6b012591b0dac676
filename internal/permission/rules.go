package permission

import (
	"context"

	"github.com/templui/docvault/internal/model"
	"github.com/templui/docvault/internal/repository"
)

type Verdict int

const (
	Abstain Verdict = iota
	Allow
	Deny
)

// Facts is what the rules see about one (actor, target, capability) question.
type Facts struct {
	ActorID    string
	Membership *model.Membership
	GroupIDs   []string

	Kind       model.TargetKind
	TargetID   string
	OwnerID    string
	Capability model.Capability

	// ACLTargets is the target followed by its ancestors, for folders. Documents do not
	// inherit folder grants, so for them it is the document alone.
	ACLTargets []string
	ACLs       repository.ACLRepository
}

// Rule is one step of the precedence chain. Rules that have no opinion abstain.
type Rule interface {
	Name() string
	Evaluate(ctx context.Context, f *Facts) (Verdict, error)
}

type ownerRule struct{}

func (ownerRule) Name() string { return "owner" }

func (ownerRule) Evaluate(_ context.Context, f *Facts) (Verdict, error) {
	if f.OwnerID != "" && f.OwnerID == f.ActorID {
		return Allow, nil
	}
	return Abstain, nil
}

type adminRule struct{}

func (adminRule) Name() string { return "admin" }

func (adminRule) Evaluate(_ context.Context, f *Facts) (Verdict, error) {
	if f.Membership.Role == model.RoleAdmin {
		return Allow, nil
	}
	return Abstain, nil
}

type aclRule struct{}

func (aclRule) Name() string { return "acl" }

func (aclRule) Evaluate(ctx context.Context, f *Facts) (Verdict, error) {
	ok, err := f.ACLs.Grants(ctx, f.ACLTargets, f.ActorID, f.GroupIDs, f.Capability)
	if err != nil {
		return Abstain, err
	}
	if ok {
		return Allow, nil
	}
	return Abstain, nil
}

// roleDefaultRule allows the capabilities a role carries without any grant.
type roleDefaultRule struct {
	role         model.Role
	capabilities []model.Capability
}

func (r roleDefaultRule) Name() string { return string(r.role) + "-default" }

func (r roleDefaultRule) Evaluate(_ context.Context, f *Facts) (Verdict, error) {
	if f.Membership.Role != r.role {
		return Abstain, nil
	}
	for _, c := range r.capabilities {
		if c == f.Capability {
			return Allow, nil
		}
	}
	return Abstain, nil
}

// DefaultRules is the precedence chain, first definitive verdict wins.
func DefaultRules() []Rule {
	return []Rule{
		ownerRule{},
		adminRule{},
		aclRule{},
		roleDefaultRule{role: model.RoleEditor, capabilities: []model.Capability{model.CapRead, model.CapDownload, model.CapEdit}},
		roleDefaultRule{role: model.RoleViewer, capabilities: []model.Capability{model.CapRead}},
	}
}
