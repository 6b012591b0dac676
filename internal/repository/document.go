package repository

import (
	"context"
	"errors"
	"strings"

	sq "github.com/Masterminds/squirrel"

	"github.com/templui/docvault/internal/model"
	"github.com/templui/docvault/internal/tenancy"
)

var ErrDocumentNotFound = errors.New("document not found")

var documentColumns = []string{"documents.id", "documents.tenant_id", "documents.folder_id", "documents.stored_file_id", "documents.title", "documents.description", "documents.tags", "documents.original_filename", "documents.owner_id", "documents.uploaded_at", "documents.updated_at"}

// DocumentFilter narrows a document listing. Zero values mean no restriction.
type DocumentFilter struct {
	FolderID *string
	Root     bool   // only documents outside any folder
	Query    string // substring of title, description or original filename
	Tags     []string
	Limit    uint64
	Offset   uint64
}

type DocumentRepository interface {
	Create(ctx context.Context, d *model.Document) error
	ByID(ctx context.Context, id string) (*model.Document, error)
	Update(ctx context.Context, d *model.Document) error
	Delete(ctx context.Context, ids []string) error
	InFolders(ctx context.Context, folderIDs []string) ([]*model.Document, error)
	List(ctx context.Context, filter DocumentFilter) ([]*model.Document, error)
}

type documentRepository struct {
	q     DBTX
	scope tenancy.Scope
}

func (r *documentRepository) Create(ctx context.Context, d *model.Document) error {
	_, err := exec(ctx, r.q, r.scope.Insert(tenancy.TableDocuments, map[string]any{
		"id":                d.ID,
		"folder_id":         d.FolderID,
		"stored_file_id":    d.StoredFileID,
		"title":             d.Title,
		"description":       d.Description,
		"tags":              d.Tags,
		"original_filename": d.OriginalFilename,
		"owner_id":          d.OwnerID,
		"uploaded_at":       d.UploadedAt,
		"updated_at":        d.UpdatedAt,
	}))
	if err != nil {
		return err
	}
	d.TenantID = r.scope.Tenant().ID
	return nil
}

func (r *documentRepository) ByID(ctx context.Context, id string) (*model.Document, error) {
	d := &model.Document{}
	err := get(ctx, r.q, d, r.scope.Select(tenancy.TableDocuments, documentColumns...).Where(sq.Eq{"id": id}))
	if err != nil {
		return nil, notFound(err, ErrDocumentNotFound)
	}
	return d, nil
}

// Update writes the mutable metadata: title, description, tags, folder and updated_at.
func (r *documentRepository) Update(ctx context.Context, d *model.Document) error {
	n, err := exec(ctx, r.q, r.scope.Update(tenancy.TableDocuments).
		Set("title", d.Title).
		Set("description", d.Description).
		Set("tags", d.Tags).
		Set("folder_id", d.FolderID).
		Set("updated_at", d.UpdatedAt).
		Where(sq.Eq{"id": d.ID}))
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrDocumentNotFound
	}
	return nil
}

func (r *documentRepository) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := exec(ctx, r.q, r.scope.Delete(tenancy.TableDocuments).Where(sq.Eq{"id": ids}))
	return err
}

func (r *documentRepository) InFolders(ctx context.Context, folderIDs []string) ([]*model.Document, error) {
	if len(folderIDs) == 0 {
		return nil, nil
	}
	var out []*model.Document
	err := selectAll(ctx, r.q, &out, r.scope.Select(tenancy.TableDocuments, documentColumns...).
		Where(sq.Eq{"folder_id": folderIDs}).OrderBy("title"))
	return out, err
}

func (r *documentRepository) List(ctx context.Context, f DocumentFilter) ([]*model.Document, error) {
	query := r.scope.Select(tenancy.TableDocuments, documentColumns...)

	switch {
	case f.FolderID != nil:
		query = query.Where(sq.Eq{"folder_id": *f.FolderID})
	case f.Root:
		query = query.Where(sq.Eq{"folder_id": nil})
	}

	if q := strings.TrimSpace(f.Query); q != "" {
		like := "%" + escapeLike(strings.ToLower(q)) + "%"
		query = query.Where(sq.Or{
			sq.Expr(`LOWER(title) LIKE ? ESCAPE '\'`, like),
			sq.Expr(`LOWER(description) LIKE ? ESCAPE '\'`, like),
			sq.Expr(`LOWER(original_filename) LIKE ? ESCAPE '\'`, like),
		})
	}

	// Tags are stored comma-separated; wrapping in commas matches whole tags only.
	for _, tag := range f.Tags {
		if tag = strings.TrimSpace(tag); tag != "" {
			query = query.Where(sq.Expr(`(',' || tags || ',') LIKE ? ESCAPE '\'`, "%,"+escapeLike(tag)+",%"))
		}
	}

	query = query.OrderBy("uploaded_at DESC", "id")
	if f.Limit > 0 {
		query = query.Limit(f.Limit).Offset(f.Offset)
	}

	var out []*model.Document
	err := selectAll(ctx, r.q, &out, query)
	return out, err
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
