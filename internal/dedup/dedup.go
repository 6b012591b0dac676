// Package dedup turns an upload stream into a content-addressed stored file, reusing an
// existing one when the same bytes were already stored in the policy's scope.
package dedup

import (
	"bufio"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/templui/docvault/internal/config"
	"github.com/templui/docvault/internal/model"
	"github.com/templui/docvault/internal/repository"
	"github.com/templui/docvault/internal/storage"
	"github.com/templui/docvault/internal/validation"
)

var (
	ErrStorageWriteFailure = errors.New("storage write failure")
	// ErrDuplicateRaceLost means a concurrent ingest stored the same content first.
	// Ingest recovers from it and never returns it.
	ErrDuplicateRaceLost = errors.New("duplicate race lost")
)

type Policy string

const (
	PolicyGlobal    Policy = config.UniquenessGlobal
	PolicyPerTenant Policy = config.UniquenessPerTenant
)

// ScopeKey is the uniqueness scope of a checksum under p.
func (p Policy) ScopeKey(tenant *model.Tenant) string {
	if p == PolicyPerTenant {
		return tenant.ID
	}
	return model.ScopeGlobal
}

type Upload struct {
	Filename    string
	ContentType string // as declared by the client, may be empty
	Body        io.Reader
}

type Result struct {
	StoredFile   *model.StoredFile
	WasDuplicate bool
}

// stagedFile is the scratch copy of an upload while it is being hashed.
type stagedFile interface {
	io.Writer
	Reader() (io.ReadSeeker, error)
	Discard()
}

type Engine struct {
	files       repository.StoredFileRepository
	blobs       storage.Storage
	stage       func() (stagedFile, error)
	constraints validation.FileConstraints
	now         func() time.Time
}

func NewEngine(files repository.StoredFileRepository, blobs storage.Storage, staging *storage.Staging, constraints validation.FileConstraints) *Engine {
	return &Engine{
		files:       files,
		blobs:       blobs,
		stage:       func() (stagedFile, error) { return staging.Create() },
		constraints: constraints,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// stageWriter keeps the error of a failed staging write apart from upload read errors.
type stageWriter struct {
	w   io.Writer
	err error
}

func (sw *stageWriter) Write(p []byte) (int, error) {
	n, err := sw.w.Write(p)
	if err != nil {
		sw.err = err
	}
	return n, err
}

// Constraints returns the upload limits the engine enforces.
func (e *Engine) Constraints() validation.FileConstraints { return e.constraints }

// Ingest hashes the upload in one streamed pass while staging it, then links it to an
// existing stored file or commits it as a new one.
func (e *Engine) Ingest(ctx context.Context, tenant *model.Tenant, up Upload, policy Policy) (*Result, error) {
	if err := e.constraints.CheckExtension(up.Filename); err != nil {
		return nil, err
	}

	body := bufio.NewReaderSize(up.Body, 512)
	head, err := body.Peek(512)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to read upload: %w", err)
	}
	mimeType := validation.DetectMimeType(up.Filename, up.ContentType, head)
	if err := e.constraints.CheckMimeType(mimeType); err != nil {
		return nil, err
	}

	staged, err := e.stage()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStorageWriteFailure, err)
	}
	defer staged.Discard()

	hasher := sha256.New()
	limit := e.constraints.MaxSize
	src := io.Reader(body)
	if limit > 0 {
		// One byte over the limit is enough to know it is too large.
		src = io.LimitReader(body, limit+1)
	}
	sw := &stageWriter{w: staged}
	size, err := io.Copy(io.MultiWriter(sw, hasher), src)
	if err != nil {
		if sw.err != nil {
			return nil, fmt.Errorf("%w: staging: %w", ErrStorageWriteFailure, err)
		}
		return nil, fmt.Errorf("failed to read upload: %w", err)
	}
	if err := e.constraints.CheckSize(size); err != nil {
		return nil, err
	}

	checksum := hex.EncodeToString(hasher.Sum(nil))
	scopeKey := policy.ScopeKey(tenant)

	existing, err := e.files.ByChecksum(ctx, scopeKey, checksum)
	if err == nil {
		slog.Debug("dedup hit", "checksum", checksum, "scope", scopeKey, "tenant", tenant.Slug)
		return &Result{StoredFile: existing, WasDuplicate: true}, nil
	}
	if !errors.Is(err, repository.ErrStoredFileNotFound) {
		return nil, fmt.Errorf("failed to look up checksum: %w", err)
	}

	file := &model.StoredFile{
		ID:         uuid.NewString(),
		Checksum:   checksum,
		ScopeKey:   scopeKey,
		Size:       size,
		MimeType:   mimeType,
		StorageKey: StorageKey(scopeKey, checksum),
		CreatedAt:  e.now(),
	}

	reader, err := staged.Reader()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStorageWriteFailure, err)
	}
	if err := e.blobs.Save(ctx, file.StorageKey, reader, size, mimeType); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStorageWriteFailure, err)
	}

	err = e.files.Create(ctx, file)
	if errors.Is(err, repository.ErrStoredFileExists) {
		return e.reuseAfterRace(ctx, scopeKey, checksum)
	}
	if err != nil {
		// The key is content-addressed: a concurrent ingest of the same bytes may own it
		// and still be about to insert its record, so the blob stays.
		slog.Warn("stored blob has no record", "key", file.StorageKey, "checksum", checksum, "error", err)
		return nil, fmt.Errorf("failed to record stored file: %w", err)
	}

	slog.Info("stored new file", "checksum", checksum, "scope", scopeKey, "size", size, "tenant", tenant.Slug)
	return &Result{StoredFile: file, WasDuplicate: false}, nil
}

// reuseAfterRace handles losing the insert to a concurrent ingest of the same bytes. The
// winner's blob lives under the same content-addressed key, so nothing is deleted.
func (e *Engine) reuseAfterRace(ctx context.Context, scopeKey, checksum string) (*Result, error) {
	slog.Debug("dedup race lost, reusing winner", "checksum", checksum, "scope", scopeKey, "reason", ErrDuplicateRaceLost)
	existing, err := e.files.ByChecksum(ctx, scopeKey, checksum)
	if err != nil {
		return nil, fmt.Errorf("failed to load winning stored file: %w", err)
	}
	return &Result{StoredFile: existing, WasDuplicate: true}, nil
}

// StorageKey is the blob location of content: blobs/{scope}/{first two hex chars}/{checksum}.
func StorageKey(scopeKey, checksum string) string {
	dir := scopeKey
	if scopeKey == model.ScopeGlobal {
		dir = "global"
	}
	return fmt.Sprintf("blobs/%s/%s/%s", dir, checksum[:2], checksum)
}
