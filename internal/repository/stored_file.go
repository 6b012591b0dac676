package repository

import (
	"context"
	"errors"

	sq "github.com/Masterminds/squirrel"

	"github.com/templui/docvault/internal/db"
	"github.com/templui/docvault/internal/model"
)

var (
	ErrStoredFileNotFound = errors.New("stored file not found")
	ErrStoredFileExists   = errors.New("stored file already exists for checksum")
)

var storedFileColumns = []string{"id", "checksum", "scope_key", "size", "mime_type", "storage_key", "created_at"}

// StoredFileRepository works on the global stored_files table, whatever the tenant's
// isolation mode, so global deduplication can see every tenant's content.
type StoredFileRepository interface {
	Create(ctx context.Context, file *model.StoredFile) error
	ByID(ctx context.Context, id string) (*model.StoredFile, error)
	ByChecksum(ctx context.Context, scopeKey, checksum string) (*model.StoredFile, error)
	Count(ctx context.Context) (int, error)
}

type storedFileRepository struct {
	q DBTX
}

func NewStoredFileRepository(q DBTX) StoredFileRepository {
	return &storedFileRepository{q: q}
}

// Create returns ErrStoredFileExists when (scope_key, checksum) is already taken.
func (r *storedFileRepository) Create(ctx context.Context, f *model.StoredFile) error {
	_, err := exec(ctx, r.q, psql.Insert("stored_files").Columns(storedFileColumns...).
		Values(f.ID, f.Checksum, f.ScopeKey, f.Size, f.MimeType, f.StorageKey, f.CreatedAt))
	if db.IsUniqueViolation(err) {
		return ErrStoredFileExists
	}
	return err
}

func (r *storedFileRepository) ByID(ctx context.Context, id string) (*model.StoredFile, error) {
	file := &model.StoredFile{}
	err := get(ctx, r.q, file, psql.Select(storedFileColumns...).From("stored_files").Where(sq.Eq{"id": id}))
	if err != nil {
		return nil, notFound(err, ErrStoredFileNotFound)
	}
	return file, nil
}

func (r *storedFileRepository) ByChecksum(ctx context.Context, scopeKey, checksum string) (*model.StoredFile, error) {
	file := &model.StoredFile{}
	err := get(ctx, r.q, file, psql.Select(storedFileColumns...).From("stored_files").
		Where(sq.Eq{"scope_key": scopeKey, "checksum": checksum}))
	if err != nil {
		return nil, notFound(err, ErrStoredFileNotFound)
	}
	return file, nil
}

func (r *storedFileRepository) Count(ctx context.Context) (int, error) {
	var n int
	err := get(ctx, r.q, &n, psql.Select("COUNT(*)").From("stored_files"))
	return n, err
}
