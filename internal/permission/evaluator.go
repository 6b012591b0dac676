// Package permission decides whether an actor may exercise a capability on a folder or
// document of the current tenant.
package permission

import (
	"context"
	"errors"
	"fmt"

	"github.com/templui/docvault/internal/model"
	"github.com/templui/docvault/internal/repository"
)

const (
	ReasonInsufficient   = "InsufficientPermission"
	ReasonNotMember      = "actor is not a member of the tenant"
	ReasonNotApplicable  = "capability does not apply to target"
	ReasonRoleTooLow     = "role does not allow this operation"
	ReasonSubtreeBlocked = "a descendant cannot be deleted by the actor"
	ReasonFolderNotRead  = "containing folder is not readable"
)

type Decision struct {
	Allowed bool
	Rule    string
	Reason  string
}

// Request names one target: Folder or Document.
type Request struct {
	ActorID    string
	Folder     *model.Folder
	Document   *model.Document
	Capability model.Capability
}

type Evaluator struct {
	rules []Rule
}

func NewEvaluator(rules ...Rule) *Evaluator {
	if len(rules) == 0 {
		rules = DefaultRules()
	}
	return &Evaluator{rules: rules}
}

// actor is loaded once per question and reused across a subtree sweep.
type actor struct {
	id         string
	membership *model.Membership
	groupIDs   []string
}

func (e *Evaluator) loadActor(ctx context.Context, r *repository.Repos, actorID string) (*actor, error) {
	m, err := r.Memberships.ByUser(ctx, actorID)
	if errors.Is(err, repository.ErrMembershipNotFound) {
		return &actor{id: actorID}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load membership: %w", err)
	}
	groups, err := r.Groups.GroupIDsOf(ctx, actorID)
	if err != nil {
		return nil, fmt.Errorf("failed to load groups: %w", err)
	}
	return &actor{id: actorID, membership: m, groupIDs: groups}, nil
}

// Evaluate answers req against the state visible through r. Run it with repositories bound
// to the transaction that performs the act.
func (e *Evaluator) Evaluate(ctx context.Context, r *repository.Repos, req Request) (Decision, error) {
	a, err := e.loadActor(ctx, r, req.ActorID)
	if err != nil {
		return Decision{}, err
	}
	return e.evaluate(ctx, r, a, req)
}

func (e *Evaluator) evaluate(ctx context.Context, r *repository.Repos, a *actor, req Request) (Decision, error) {
	if a.membership == nil {
		return Decision{Rule: "membership", Reason: ReasonNotMember}, nil
	}

	switch {
	case req.Document != nil:
		d, err := e.chain(ctx, r, a, req.Capability, model.TargetDocument, req.Document.ID, req.Document.OwnerID, []string{req.Document.ID}, r.DocumentACLs)
		if err != nil || !d.Allowed || req.Document.FolderID == nil {
			return d, err
		}
		// The containing folder must be readable too; either denial denies.
		folder, err := r.Folders.ByID(ctx, *req.Document.FolderID)
		if err != nil {
			return Decision{}, fmt.Errorf("failed to load containing folder: %w", err)
		}
		fd, err := e.evaluate(ctx, r, a, Request{ActorID: a.id, Folder: folder, Capability: model.CapRead})
		if err != nil {
			return Decision{}, err
		}
		if !fd.Allowed {
			return Decision{Rule: "folder-" + fd.Rule, Reason: ReasonFolderNotRead}, nil
		}
		return d, nil

	case req.Folder != nil:
		targets := []string{req.Folder.ID}
		if req.Folder.ParentID != nil {
			ancestors, err := r.Folders.Ancestors(ctx, req.Folder.ID)
			if err != nil {
				return Decision{}, fmt.Errorf("failed to walk ancestors: %w", err)
			}
			for _, f := range ancestors {
				targets = append(targets, f.ID)
			}
		}
		return e.chain(ctx, r, a, req.Capability, model.TargetFolder, req.Folder.ID, req.Folder.OwnerID, targets, r.FolderACLs)
	}

	return Decision{}, errors.New("permission request has no target")
}

func (e *Evaluator) chain(ctx context.Context, r *repository.Repos, a *actor, c model.Capability, kind model.TargetKind, id, owner string, aclTargets []string, acls repository.ACLRepository) (Decision, error) {
	if !c.ValidFor(kind) {
		return Decision{Rule: "capability", Reason: ReasonNotApplicable}, nil
	}

	facts := &Facts{
		ActorID:    a.id,
		Membership: a.membership,
		GroupIDs:   a.groupIDs,
		Kind:       kind,
		TargetID:   id,
		OwnerID:    owner,
		Capability: c,
		ACLTargets: aclTargets,
		ACLs:       acls,
	}
	for _, rule := range e.rules {
		v, err := rule.Evaluate(ctx, facts)
		if err != nil {
			return Decision{}, fmt.Errorf("rule %s: %w", rule.Name(), err)
		}
		switch v {
		case Allow:
			return Decision{Allowed: true, Rule: rule.Name()}, nil
		case Deny:
			return Decision{Rule: rule.Name(), Reason: ReasonInsufficient}, nil
		}
	}
	return Decision{Rule: "default", Reason: ReasonInsufficient}, nil
}

// Authorize is Evaluate that turns a denial into a *DeniedError.
func (e *Evaluator) Authorize(ctx context.Context, r *repository.Repos, req Request) error {
	d, err := e.Evaluate(ctx, r, req)
	if err != nil {
		return err
	}
	if !d.Allowed {
		return denied(req, d)
	}
	return nil
}

// AuthorizeRole checks a tenant-level operation that needs at least minRole.
func (e *Evaluator) AuthorizeRole(ctx context.Context, r *repository.Repos, actorID string, minRole model.Role) (*model.Membership, error) {
	a, err := e.loadActor(ctx, r, actorID)
	if err != nil {
		return nil, err
	}
	if a.membership == nil {
		return nil, &DeniedError{ActorID: actorID, TargetType: model.TargetTenant, Rule: "membership", Reason: ReasonNotMember}
	}
	if rank(a.membership.Role) < rank(minRole) {
		return nil, &DeniedError{ActorID: actorID, TargetType: model.TargetTenant, Rule: "role", Reason: ReasonRoleTooLow}
	}
	return a.membership, nil
}

func rank(r model.Role) int {
	switch r {
	case model.RoleAdmin:
		return 3
	case model.RoleEditor:
		return 2
	case model.RoleViewer:
		return 1
	}
	return 0
}

// Subtree is everything a folder deletion removes, the folder itself first.
type Subtree struct {
	Folders   []*model.Folder
	Documents []*model.Document
}

func (s *Subtree) FolderIDs() []string {
	ids := make([]string, len(s.Folders))
	for i, f := range s.Folders {
		ids[i] = f.ID
	}
	return ids
}

func (s *Subtree) DocumentIDs() []string {
	ids := make([]string, len(s.Documents))
	for i, d := range s.Documents {
		ids[i] = d.ID
	}
	return ids
}

// AuthorizeFolderDelete requires delete on folder and on every folder and document below it.
// It returns the subtree it checked so the caller deletes exactly that.
func (e *Evaluator) AuthorizeFolderDelete(ctx context.Context, r *repository.Repos, actorID string, folder *model.Folder) (*Subtree, error) {
	a, err := e.loadActor(ctx, r, actorID)
	if err != nil {
		return nil, err
	}

	req := Request{ActorID: actorID, Folder: folder, Capability: model.CapDelete}
	d, err := e.evaluate(ctx, r, a, req)
	if err != nil {
		return nil, err
	}
	if !d.Allowed {
		return nil, denied(req, d)
	}

	descendants, err := r.Folders.Descendants(ctx, folder.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load subtree: %w", err)
	}
	tree := &Subtree{Folders: append([]*model.Folder{folder}, descendants...)}

	for _, f := range descendants {
		d, err := e.evaluate(ctx, r, a, Request{ActorID: actorID, Folder: f, Capability: model.CapDelete})
		if err != nil {
			return nil, err
		}
		if !d.Allowed {
			return nil, denied(req, Decision{Rule: d.Rule, Reason: ReasonSubtreeBlocked + ": folder " + f.ID})
		}
	}

	tree.Documents, err = r.Documents.InFolders(ctx, tree.FolderIDs())
	if err != nil {
		return nil, fmt.Errorf("failed to load subtree documents: %w", err)
	}
	for _, doc := range tree.Documents {
		d, err := e.evaluate(ctx, r, a, Request{ActorID: actorID, Document: doc, Capability: model.CapDelete})
		if err != nil {
			return nil, err
		}
		if !d.Allowed {
			return nil, denied(req, Decision{Rule: d.Rule, Reason: ReasonSubtreeBlocked + ": document " + doc.ID})
		}
	}
	return tree, nil
}

func denied(req Request, d Decision) *DeniedError {
	err := &DeniedError{ActorID: req.ActorID, Capability: req.Capability, Rule: d.Rule, Reason: d.Reason}
	switch {
	case req.Document != nil:
		err.TargetType, err.TargetID = model.TargetDocument, req.Document.ID
	case req.Folder != nil:
		err.TargetType, err.TargetID = model.TargetFolder, req.Folder.ID
	}
	return err
}
