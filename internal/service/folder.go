package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"

	"github.com/templui/docvault/internal/audit"
	"github.com/templui/docvault/internal/model"
	"github.com/templui/docvault/internal/permission"
	"github.com/templui/docvault/internal/repository"
	"github.com/templui/docvault/internal/validation"
)

var (
	ErrCyclicFolderMove = errors.New("folder cannot be moved into itself or a descendant")
	ErrSubtreeChanged   = errors.New("folder subtree changed during delete")
)

type FolderService struct {
	guard
	deleteAttempts uint64
	deleteBackoff  time.Duration
}

func NewFolderService(store *repository.Store, eval *permission.Evaluator, recorder *audit.Recorder) *FolderService {
	return &FolderService{
		guard:          newGuard(store, eval, recorder),
		deleteAttempts: 3,
		deleteBackoff:  20 * time.Millisecond,
	}
}

// Create adds a folder under parentID, or a root folder when parentID is empty. A child
// needs write on the parent; a root folder needs at least the editor role.
func (s *FolderService) Create(ctx context.Context, actorID, parentID, name string) (*model.Folder, error) {
	now := s.now()
	f := &model.Folder{ID: uuid.NewString(), ParentID: optional(parentID), Name: name, OwnerID: actorID, CreatedAt: now, UpdatedAt: now}
	entry := &audit.Entry{ActorID: actorID, Action: model.ActionFolderCreate, TargetType: model.TargetFolder, TargetID: f.ID, Detail: "name=" + name}
	if err := validation.ValidateFolderName(name); err != nil {
		s.audit.RecordResult(ctx, *entry, err)
		return nil, err
	}

	err := s.run(ctx, entry, func(ctx context.Context, r *repository.Repos) error {
		if err := s.authorizeDestination(ctx, r, actorID, f.ParentID); err != nil {
			return err
		}
		return r.Folders.Create(ctx, f)
	})
	if err != nil {
		return nil, err
	}
	return f, nil
}

// authorizeDestination checks that actorID may place a folder under parentID.
func (s *FolderService) authorizeDestination(ctx context.Context, r *repository.Repos, actorID string, parentID *string) error {
	if parentID == nil {
		_, err := s.eval.AuthorizeRole(ctx, r, actorID, model.RoleEditor)
		return err
	}
	parent, err := r.Folders.ByID(ctx, *parentID)
	if err != nil {
		return err
	}
	return s.eval.Authorize(ctx, r, permission.Request{ActorID: actorID, Folder: parent, Capability: model.CapWrite})
}

func (s *FolderService) Get(ctx context.Context, actorID, id string) (*model.Folder, error) {
	entry := &audit.Entry{ActorID: actorID, Action: model.ActionFolderView, TargetType: model.TargetFolder, TargetID: id}
	var folder *model.Folder
	err := s.run(ctx, entry, func(ctx context.Context, r *repository.Repos) error {
		f, err := r.Folders.ByID(ctx, id)
		if err != nil {
			return err
		}
		if err := s.eval.Authorize(ctx, r, permission.Request{ActorID: actorID, Folder: f, Capability: model.CapRead}); err != nil {
			return err
		}
		folder = f
		return nil
	})
	return folder, err
}

// Children lists the readable folders directly under parentID, or the readable root folders
// when parentID is empty.
func (s *FolderService) Children(ctx context.Context, actorID, parentID string) ([]*model.Folder, error) {
	entry := &audit.Entry{ActorID: actorID, Action: model.ActionFolderView, TargetType: model.TargetFolder, TargetID: parentID, Detail: "children"}
	var visible []*model.Folder
	err := s.run(ctx, entry, func(ctx context.Context, r *repository.Repos) error {
		if parentID != "" {
			parent, err := r.Folders.ByID(ctx, parentID)
			if err != nil {
				return err
			}
			if err := s.eval.Authorize(ctx, r, permission.Request{ActorID: actorID, Folder: parent, Capability: model.CapRead}); err != nil {
				return err
			}
		} else if _, err := s.eval.AuthorizeRole(ctx, r, actorID, model.RoleViewer); err != nil {
			return err
		}

		children, err := r.Folders.Children(ctx, optional(parentID))
		if err != nil {
			return err
		}
		for _, c := range children {
			d, err := s.eval.Evaluate(ctx, r, permission.Request{ActorID: actorID, Folder: c, Capability: model.CapRead})
			if err != nil {
				return err
			}
			if d.Allowed {
				visible = append(visible, c)
			}
		}
		return nil
	})
	return visible, err
}

// Move reparents a folder. It needs write on the folder and on the destination (editor role
// for the root). Moving a folder into its own subtree fails before anything changes.
func (s *FolderService) Move(ctx context.Context, actorID, id, newParentID string) error {
	entry := &audit.Entry{ActorID: actorID, Action: model.ActionFolderMove, TargetType: model.TargetFolder, TargetID: id, Detail: "parent=" + newParentID}
	return s.run(ctx, entry, func(ctx context.Context, r *repository.Repos) error {
		f, err := r.Folders.ByID(ctx, id)
		if err != nil {
			return err
		}
		if err := s.eval.Authorize(ctx, r, permission.Request{ActorID: actorID, Folder: f, Capability: model.CapWrite}); err != nil {
			return err
		}

		dest := optional(newParentID)
		if dest != nil {
			if *dest == f.ID {
				return ErrCyclicFolderMove
			}
			ancestors, err := r.Folders.Ancestors(ctx, *dest)
			if err != nil {
				return err
			}
			for _, a := range ancestors {
				if a.ID == f.ID {
					return ErrCyclicFolderMove
				}
			}
		}
		if err := s.authorizeDestination(ctx, r, actorID, dest); err != nil {
			return err
		}
		return r.Folders.Move(ctx, f.ID, dest, s.now())
	})
}

func (s *FolderService) Rename(ctx context.Context, actorID, id, name string) error {
	entry := &audit.Entry{ActorID: actorID, Action: model.ActionFolderRename, TargetType: model.TargetFolder, TargetID: id, Detail: "name=" + name}
	if err := validation.ValidateFolderName(name); err != nil {
		s.audit.RecordResult(ctx, *entry, err)
		return err
	}
	return s.run(ctx, entry, func(ctx context.Context, r *repository.Repos) error {
		f, err := r.Folders.ByID(ctx, id)
		if err != nil {
			return err
		}
		if err := s.eval.Authorize(ctx, r, permission.Request{ActorID: actorID, Folder: f, Capability: model.CapWrite}); err != nil {
			return err
		}
		return r.Folders.Rename(ctx, f.ID, name, s.now())
	})
}

// Delete removes a folder with everything below it. The actor needs delete on every folder
// and document in the subtree. If the subtree grows while the transaction runs, the whole
// sweep is retried.
func (s *FolderService) Delete(ctx context.Context, actorID, id string) error {
	entry := &audit.Entry{ActorID: actorID, Action: model.ActionFolderDelete, TargetType: model.TargetFolder, TargetID: id}

	backoff := retry.WithMaxRetries(s.deleteAttempts-1, retry.NewExponential(s.deleteBackoff))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := s.store.InTx(ctx, func(ctx context.Context, r *repository.Repos) error {
			return s.deleteSubtree(ctx, r, actorID, id, entry)
		})
		if errors.Is(err, ErrSubtreeChanged) {
			slog.Debug("folder subtree changed, retrying delete", "folder", id)
			return retry.RetryableError(err)
		}
		return err
	})
	s.audit.RecordResult(ctx, *entry, err)
	return err
}

func (s *FolderService) deleteSubtree(ctx context.Context, r *repository.Repos, actorID, id string, entry *audit.Entry) error {
	f, err := r.Folders.ByID(ctx, id)
	if err != nil {
		return err
	}
	tree, err := s.eval.AuthorizeFolderDelete(ctx, r, actorID, f)
	if err != nil {
		return err
	}

	folderIDs, docIDs := tree.FolderIDs(), tree.DocumentIDs()
	if err := r.DocumentACLs.DeleteForTargets(ctx, docIDs); err != nil {
		return fmt.Errorf("failed to delete document grants: %w", err)
	}
	if err := r.Documents.Delete(ctx, docIDs); err != nil {
		return fmt.Errorf("failed to delete documents: %w", err)
	}
	if err := r.FolderACLs.DeleteForTargets(ctx, folderIDs); err != nil {
		return fmt.Errorf("failed to delete folder grants: %w", err)
	}
	if err := r.Folders.Delete(ctx, folderIDs); err != nil {
		return fmt.Errorf("failed to delete folders: %w", err)
	}

	// Anything still pointing into the removed folders was added after the sweep.
	left, err := r.Documents.InFolders(ctx, folderIDs)
	if err != nil {
		return err
	}
	if len(left) > 0 {
		return ErrSubtreeChanged
	}
	for _, fid := range folderIDs {
		children, err := r.Folders.Children(ctx, &fid)
		if err != nil {
			return err
		}
		if len(children) > 0 {
			return ErrSubtreeChanged
		}
	}

	entry.Detail = fmt.Sprintf("folders=%d documents=%d", len(folderIDs), len(docIDs))
	return nil
}

// Grant adds an ACL entry on a folder. Only the folder's owner or an admin may grant.
func (s *FolderService) Grant(ctx context.Context, actorID, folderID string, p model.Principal, c model.Capability) (*model.ACLEntry, error) {
	e := &model.ACLEntry{ID: uuid.NewString(), TargetID: folderID, UserID: optional(p.UserID), GroupID: optional(p.GroupID), Capability: c, GrantedBy: actorID, GrantedAt: s.now()}
	entry := &audit.Entry{ActorID: actorID, Action: model.ActionFolderGrant, TargetType: model.TargetFolder, TargetID: folderID, Detail: grantDetail(p, c)}
	if !c.ValidFor(model.TargetFolder) {
		s.audit.RecordResult(ctx, *entry, ErrInvalidCapability)
		return nil, ErrInvalidCapability
	}

	err := s.run(ctx, entry, func(ctx context.Context, r *repository.Repos) error {
		f, err := r.Folders.ByID(ctx, folderID)
		if err != nil {
			return err
		}
		if err := s.requireGrantor(ctx, r, actorID, f.OwnerID); err != nil {
			return err
		}
		if err := checkPrincipal(ctx, r, p); err != nil {
			return err
		}
		return r.FolderACLs.Grant(ctx, e)
	})
	if err != nil {
		return nil, err
	}
	return e, nil
}

func (s *FolderService) Revoke(ctx context.Context, actorID, folderID, entryID string) error {
	entry := &audit.Entry{ActorID: actorID, Action: model.ActionFolderRevoke, TargetType: model.TargetFolder, TargetID: folderID, Detail: "entry=" + entryID}
	return s.run(ctx, entry, func(ctx context.Context, r *repository.Repos) error {
		f, err := r.Folders.ByID(ctx, folderID)
		if err != nil {
			return err
		}
		if err := s.requireGrantor(ctx, r, actorID, f.OwnerID); err != nil {
			return err
		}
		return r.FolderACLs.Revoke(ctx, folderID, entryID)
	})
}

// ACL lists the entries set directly on a folder, not the inherited ones.
func (s *FolderService) ACL(ctx context.Context, actorID, folderID string) ([]*model.ACLEntry, error) {
	entry := &audit.Entry{ActorID: actorID, Action: model.ActionFolderACL, TargetType: model.TargetFolder, TargetID: folderID}
	var entries []*model.ACLEntry
	err := s.run(ctx, entry, func(ctx context.Context, r *repository.Repos) error {
		f, err := r.Folders.ByID(ctx, folderID)
		if err != nil {
			return err
		}
		if err := s.requireGrantor(ctx, r, actorID, f.OwnerID); err != nil {
			return err
		}
		entries, err = r.FolderACLs.ForTarget(ctx, folderID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

func grantDetail(p model.Principal, c model.Capability) string {
	if p.GroupID != "" {
		return "group=" + p.GroupID + " capability=" + string(c)
	}
	return "user=" + p.UserID + " capability=" + string(c)
}
