package repository

import (
	"context"
	"errors"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/templui/docvault/internal/db"
	"github.com/templui/docvault/internal/model"
	"github.com/templui/docvault/internal/tenancy"
)

// MaxFolderDepth bounds every walk over the folder tree.
const MaxFolderDepth = 64

var (
	ErrFolderNotFound      = errors.New("folder not found")
	ErrDuplicateFolderName = errors.New("a folder with this name already exists here")
	ErrFolderTooDeep       = errors.New("folder tree exceeds maximum depth")
)

var folderColumns = []string{"folders.id", "folders.tenant_id", "folders.parent_id", "folders.name", "folders.owner_id", "folders.created_at", "folders.updated_at"}

type FolderRepository interface {
	Create(ctx context.Context, f *model.Folder) error
	ByID(ctx context.Context, id string) (*model.Folder, error)
	Children(ctx context.Context, parentID *string) ([]*model.Folder, error)
	// Ancestors returns the parent chain of id, nearest first, excluding the folder itself.
	Ancestors(ctx context.Context, id string) ([]*model.Folder, error)
	// Descendants returns every folder below id, breadth first, excluding the folder itself.
	Descendants(ctx context.Context, id string) ([]*model.Folder, error)
	Move(ctx context.Context, id string, parentID *string, at time.Time) error
	Rename(ctx context.Context, id, name string, at time.Time) error
	Delete(ctx context.Context, ids []string) error
}

type folderRepository struct {
	q     DBTX
	scope tenancy.Scope
}

func (r *folderRepository) Create(ctx context.Context, f *model.Folder) error {
	_, err := exec(ctx, r.q, r.scope.Insert(tenancy.TableFolders, map[string]any{
		"id":         f.ID,
		"parent_id":  f.ParentID,
		"name":       f.Name,
		"owner_id":   f.OwnerID,
		"created_at": f.CreatedAt,
		"updated_at": f.UpdatedAt,
	}))
	if db.IsUniqueViolation(err) {
		return ErrDuplicateFolderName
	}
	if err != nil {
		return err
	}
	f.TenantID = r.scope.Tenant().ID
	return nil
}

func (r *folderRepository) ByID(ctx context.Context, id string) (*model.Folder, error) {
	f := &model.Folder{}
	err := get(ctx, r.q, f, r.scope.Select(tenancy.TableFolders, folderColumns...).Where(sq.Eq{"id": id}))
	if err != nil {
		return nil, notFound(err, ErrFolderNotFound)
	}
	return f, nil
}

// Children lists the direct children of parentID, or the root folders when it is nil.
func (r *folderRepository) Children(ctx context.Context, parentID *string) ([]*model.Folder, error) {
	var out []*model.Folder
	err := selectAll(ctx, r.q, &out, r.scope.Select(tenancy.TableFolders, folderColumns...).
		Where(sq.Eq{"parent_id": parentID}).OrderBy("name"))
	return out, err
}

func (r *folderRepository) Ancestors(ctx context.Context, id string) ([]*model.Folder, error) {
	f, err := r.ByID(ctx, id)
	if err != nil {
		return nil, err
	}

	var chain []*model.Folder
	seen := map[string]bool{f.ID: true}
	for f.ParentID != nil {
		if len(chain) >= MaxFolderDepth {
			return nil, ErrFolderTooDeep
		}
		f, err = r.ByID(ctx, *f.ParentID)
		if err != nil {
			return nil, err
		}
		if seen[f.ID] {
			return nil, ErrFolderTooDeep
		}
		seen[f.ID] = true
		chain = append(chain, f)
	}
	return chain, nil
}

func (r *folderRepository) Descendants(ctx context.Context, id string) ([]*model.Folder, error) {
	var out []*model.Folder
	level := []string{id}
	for depth := 0; len(level) > 0; depth++ {
		if depth >= MaxFolderDepth {
			return nil, ErrFolderTooDeep
		}
		var children []*model.Folder
		err := selectAll(ctx, r.q, &children, r.scope.Select(tenancy.TableFolders, folderColumns...).
			Where(sq.Eq{"parent_id": level}).OrderBy("name"))
		if err != nil {
			return nil, err
		}
		level = level[:0:0]
		for _, c := range children {
			out = append(out, c)
			level = append(level, c.ID)
		}
	}
	return out, nil
}

func (r *folderRepository) Move(ctx context.Context, id string, parentID *string, at time.Time) error {
	n, err := exec(ctx, r.q, r.scope.Update(tenancy.TableFolders).
		Set("parent_id", parentID).
		Set("updated_at", at).
		Where(sq.Eq{"id": id}))
	if db.IsUniqueViolation(err) {
		return ErrDuplicateFolderName
	}
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrFolderNotFound
	}
	return nil
}

func (r *folderRepository) Rename(ctx context.Context, id, name string, at time.Time) error {
	n, err := exec(ctx, r.q, r.scope.Update(tenancy.TableFolders).
		Set("name", name).
		Set("updated_at", at).
		Where(sq.Eq{"id": id}))
	if db.IsUniqueViolation(err) {
		return ErrDuplicateFolderName
	}
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrFolderNotFound
	}
	return nil
}

func (r *folderRepository) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := exec(ctx, r.q, r.scope.Delete(tenancy.TableFolders).Where(sq.Eq{"id": ids}))
	return err
}
