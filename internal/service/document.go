package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/templui/docvault/internal/audit"
	"github.com/templui/docvault/internal/dedup"
	"github.com/templui/docvault/internal/model"
	"github.com/templui/docvault/internal/permission"
	"github.com/templui/docvault/internal/repository"
	"github.com/templui/docvault/internal/storage"
	"github.com/templui/docvault/internal/tenancy"
	"github.com/templui/docvault/internal/validation"
)

var ErrPresignUnsupported = errors.New("storage backend cannot issue download links")

type DocumentService struct {
	guard
	engine *dedup.Engine
	blobs  storage.Storage
	policy dedup.Policy
	expiry time.Duration
}

func NewDocumentService(store *repository.Store, eval *permission.Evaluator, recorder *audit.Recorder, engine *dedup.Engine, blobs storage.Storage, policy dedup.Policy, linkExpiry time.Duration) *DocumentService {
	return &DocumentService{
		guard:  newGuard(store, eval, recorder),
		engine: engine,
		blobs:  blobs,
		policy: policy,
		expiry: linkExpiry,
	}
}

type UploadRequest struct {
	FolderID    string // empty for an unfiled document
	Title       string // defaults to the file name
	Description string
	Tags        []string
	Filename    string
	ContentType string
	Body        io.Reader
}

type UploadResult struct {
	Document     *model.Document
	StoredFile   *model.StoredFile
	WasDuplicate bool
}

// Upload stores the file content once per uniqueness scope and creates a document for it.
// The uploader needs write on the target folder, checked before the bytes are read and again
// in the transaction that creates the document. The uploader is granted download.
func (s *DocumentService) Upload(ctx context.Context, actorID string, req UploadRequest) (*UploadResult, error) {
	now := s.now()
	doc := &model.Document{
		ID:               uuid.NewString(),
		FolderID:         optional(req.FolderID),
		Title:            strings.TrimSpace(req.Title),
		Description:      req.Description,
		Tags:             model.JoinTags(req.Tags),
		OriginalFilename: req.Filename,
		OwnerID:          actorID,
		UploadedAt:       now,
		UpdatedAt:        now,
	}
	if doc.Title == "" {
		doc.Title = req.Filename
	}
	entry := &audit.Entry{ActorID: actorID, Action: model.ActionUpload, TargetType: model.TargetDocument, TargetID: doc.ID, Detail: "filename=" + req.Filename}

	res, err := s.upload(ctx, actorID, doc, req)
	if res != nil {
		entry.Detail += fmt.Sprintf(" checksum=%s duplicate=%t", res.StoredFile.Checksum, res.WasDuplicate)
	}
	s.audit.RecordResult(ctx, *entry, err)
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (s *DocumentService) upload(ctx context.Context, actorID string, doc *model.Document, req UploadRequest) (*UploadResult, error) {
	if err := validation.ValidateName(doc.Title); err != nil {
		return nil, err
	}
	scope, err := tenancy.FromContext(ctx)
	if err != nil {
		return nil, err
	}

	// Refuse before reading any bytes; the transaction below checks again.
	r, err := s.store.Scoped(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.authorizeFolderWrite(ctx, r, actorID, doc.FolderID); err != nil {
		return nil, err
	}

	ingested, err := s.engine.Ingest(ctx, scope.Tenant(), dedup.Upload{
		Filename:    req.Filename,
		ContentType: req.ContentType,
		Body:        req.Body,
	}, s.policy)
	if err != nil {
		return nil, err
	}
	doc.StoredFileID = ingested.StoredFile.ID

	err = s.store.InTx(ctx, func(ctx context.Context, r *repository.Repos) error {
		if err := s.authorizeFolderWrite(ctx, r, actorID, doc.FolderID); err != nil {
			return err
		}
		if err := r.Documents.Create(ctx, doc); err != nil {
			return err
		}
		return r.DocumentACLs.Grant(ctx, &model.ACLEntry{
			ID:         uuid.NewString(),
			TargetID:   doc.ID,
			UserID:     &actorID,
			Capability: model.CapDownload,
			GrantedBy:  actorID,
			GrantedAt:  doc.UploadedAt,
		})
	})
	if err != nil {
		return nil, err
	}
	return &UploadResult{Document: doc, StoredFile: ingested.StoredFile, WasDuplicate: ingested.WasDuplicate}, nil
}

func (s *DocumentService) authorizeFolderWrite(ctx context.Context, r *repository.Repos, actorID string, folderID *string) error {
	if folderID == nil {
		_, err := s.eval.AuthorizeRole(ctx, r, actorID, model.RoleEditor)
		return err
	}
	folder, err := r.Folders.ByID(ctx, *folderID)
	if err != nil {
		return err
	}
	return s.eval.Authorize(ctx, r, permission.Request{ActorID: actorID, Folder: folder, Capability: model.CapWrite})
}

// load fetches a document and authorizes capability on it.
func (s *DocumentService) load(ctx context.Context, r *repository.Repos, actorID, id string, c model.Capability) (*model.Document, error) {
	doc, err := r.Documents.ByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.eval.Authorize(ctx, r, permission.Request{ActorID: actorID, Document: doc, Capability: c}); err != nil {
		return nil, err
	}
	return doc, nil
}

func (s *DocumentService) Get(ctx context.Context, actorID, id string) (*model.Document, error) {
	entry := &audit.Entry{ActorID: actorID, Action: model.ActionView, TargetType: model.TargetDocument, TargetID: id}
	var doc *model.Document
	err := s.run(ctx, entry, func(ctx context.Context, r *repository.Repos) (err error) {
		doc, err = s.load(ctx, r, actorID, id, model.CapRead)
		return err
	})
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// DocumentUpdate changes only the fields that are set.
type DocumentUpdate struct {
	Title       *string
	Description *string
	Tags        []string // nil keeps the tags, empty clears them
}

func (s *DocumentService) Update(ctx context.Context, actorID, id string, u DocumentUpdate) (*model.Document, error) {
	entry := &audit.Entry{ActorID: actorID, Action: model.ActionEdit, TargetType: model.TargetDocument, TargetID: id}
	if u.Title != nil {
		if err := validation.ValidateName(strings.TrimSpace(*u.Title)); err != nil {
			s.audit.RecordResult(ctx, *entry, err)
			return nil, err
		}
	}

	var doc *model.Document
	err := s.run(ctx, entry, func(ctx context.Context, r *repository.Repos) (err error) {
		doc, err = s.load(ctx, r, actorID, id, model.CapEdit)
		if err != nil {
			return err
		}
		var changed []string
		if u.Title != nil {
			doc.Title = strings.TrimSpace(*u.Title)
			changed = append(changed, "title")
		}
		if u.Description != nil {
			doc.Description = *u.Description
			changed = append(changed, "description")
		}
		if u.Tags != nil {
			doc.Tags = model.JoinTags(u.Tags)
			changed = append(changed, "tags")
		}
		entry.Detail = "fields=" + strings.Join(changed, ",")
		doc.UpdatedAt = s.now()
		return r.Documents.Update(ctx, doc)
	})
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// Download is an open document body. The caller must close Body.
type Download struct {
	Document   *model.Document
	StoredFile *model.StoredFile
	MimeType   string
	Body       io.ReadCloser
}

// Open authorizes download and streams the stored content. Read alone is not enough.
func (s *DocumentService) Open(ctx context.Context, actorID, id string) (*Download, error) {
	entry := &audit.Entry{ActorID: actorID, Action: model.ActionDownload, TargetType: model.TargetDocument, TargetID: id}
	var out *Download
	err := s.run(ctx, entry, func(ctx context.Context, r *repository.Repos) error {
		doc, file, err := s.downloadable(ctx, r, actorID, id)
		if err != nil {
			return err
		}
		body, err := s.blobs.Open(ctx, file.StorageKey)
		if err != nil {
			return fmt.Errorf("failed to open stored file: %w", err)
		}
		out = &Download{Document: doc, StoredFile: file, MimeType: file.MimeType, Body: body}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Link returns a time-limited URL for the stored content when the backend supports it.
func (s *DocumentService) Link(ctx context.Context, actorID, id string) (string, error) {
	entry := &audit.Entry{ActorID: actorID, Action: model.ActionDownload, TargetType: model.TargetDocument, TargetID: id, Detail: "link"}
	var url string
	err := s.run(ctx, entry, func(ctx context.Context, r *repository.Repos) error {
		presigner, ok := s.blobs.(storage.Presigner)
		if !ok {
			return ErrPresignUnsupported
		}
		_, file, err := s.downloadable(ctx, r, actorID, id)
		if err != nil {
			return err
		}
		url, err = presigner.PresignedURL(ctx, file.StorageKey, s.expiry)
		return err
	})
	return url, err
}

func (s *DocumentService) downloadable(ctx context.Context, r *repository.Repos, actorID, id string) (*model.Document, *model.StoredFile, error) {
	doc, err := s.load(ctx, r, actorID, id, model.CapDownload)
	if err != nil {
		return nil, nil, err
	}
	file, err := r.StoredFiles.ByID(ctx, doc.StoredFileID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load stored file: %w", err)
	}
	return doc, file, nil
}

// Delete removes the document and its grants. The stored file stays: other documents may
// share it.
func (s *DocumentService) Delete(ctx context.Context, actorID, id string) error {
	entry := &audit.Entry{ActorID: actorID, Action: model.ActionDelete, TargetType: model.TargetDocument, TargetID: id}
	return s.run(ctx, entry, func(ctx context.Context, r *repository.Repos) error {
		doc, err := s.load(ctx, r, actorID, id, model.CapDelete)
		if err != nil {
			return err
		}
		if err := r.DocumentACLs.DeleteForTargets(ctx, []string{doc.ID}); err != nil {
			return err
		}
		return r.Documents.Delete(ctx, []string{doc.ID})
	})
}

// Grant adds an ACL entry on a document. Only the document's owner or an admin may grant.
func (s *DocumentService) Grant(ctx context.Context, actorID, docID string, p model.Principal, c model.Capability) (*model.ACLEntry, error) {
	e := &model.ACLEntry{ID: uuid.NewString(), TargetID: docID, UserID: optional(p.UserID), GroupID: optional(p.GroupID), Capability: c, GrantedBy: actorID, GrantedAt: s.now()}
	entry := &audit.Entry{ActorID: actorID, Action: model.ActionDocumentGrant, TargetType: model.TargetDocument, TargetID: docID, Detail: grantDetail(p, c)}
	if !c.ValidFor(model.TargetDocument) {
		s.audit.RecordResult(ctx, *entry, ErrInvalidCapability)
		return nil, ErrInvalidCapability
	}

	err := s.run(ctx, entry, func(ctx context.Context, r *repository.Repos) error {
		doc, err := r.Documents.ByID(ctx, docID)
		if err != nil {
			return err
		}
		if err := s.requireGrantor(ctx, r, actorID, doc.OwnerID); err != nil {
			return err
		}
		if err := checkPrincipal(ctx, r, p); err != nil {
			return err
		}
		return r.DocumentACLs.Grant(ctx, e)
	})
	if err != nil {
		return nil, err
	}
	return e, nil
}

func (s *DocumentService) Revoke(ctx context.Context, actorID, docID, entryID string) error {
	entry := &audit.Entry{ActorID: actorID, Action: model.ActionDocumentRevoke, TargetType: model.TargetDocument, TargetID: docID, Detail: "entry=" + entryID}
	return s.run(ctx, entry, func(ctx context.Context, r *repository.Repos) error {
		doc, err := r.Documents.ByID(ctx, docID)
		if err != nil {
			return err
		}
		if err := s.requireGrantor(ctx, r, actorID, doc.OwnerID); err != nil {
			return err
		}
		return r.DocumentACLs.Revoke(ctx, docID, entryID)
	})
}

func (s *DocumentService) ACL(ctx context.Context, actorID, docID string) ([]*model.ACLEntry, error) {
	entry := &audit.Entry{ActorID: actorID, Action: model.ActionDocumentACL, TargetType: model.TargetDocument, TargetID: docID}
	var entries []*model.ACLEntry
	err := s.run(ctx, entry, func(ctx context.Context, r *repository.Repos) error {
		doc, err := r.Documents.ByID(ctx, docID)
		if err != nil {
			return err
		}
		if err := s.requireGrantor(ctx, r, actorID, doc.OwnerID); err != nil {
			return err
		}
		entries, err = r.DocumentACLs.ForTarget(ctx, docID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// SearchRequest narrows a listing. FolderID limits it to one folder, Root to unfiled documents.
type SearchRequest struct {
	FolderID string
	Root     bool
	Query    string
	Tags     []string
	Limit    int
	Offset   int
}

// List returns the documents the actor can read that match req, newest first.
func (s *DocumentService) List(ctx context.Context, actorID string, req SearchRequest) ([]*model.Document, error) {
	entry := &audit.Entry{ActorID: actorID, Action: model.ActionDocumentList, TargetType: model.TargetFolder, TargetID: req.FolderID, Detail: searchDetail(req)}
	var visible []*model.Document
	err := s.run(ctx, entry, func(ctx context.Context, r *repository.Repos) error {
		if _, err := s.eval.AuthorizeRole(ctx, r, actorID, model.RoleViewer); err != nil {
			return err
		}
		filter := repository.DocumentFilter{FolderID: optional(req.FolderID), Root: req.Root, Query: req.Query, Tags: req.Tags}
		if filter.FolderID != nil {
			folder, err := r.Folders.ByID(ctx, *filter.FolderID)
			if err != nil {
				return err
			}
			if err := s.eval.Authorize(ctx, r, permission.Request{ActorID: actorID, Folder: folder, Capability: model.CapRead}); err != nil {
				return err
			}
		}

		docs, err := r.Documents.List(ctx, filter)
		if err != nil {
			return err
		}
		for _, d := range docs {
			dec, err := s.eval.Evaluate(ctx, r, permission.Request{ActorID: actorID, Document: d, Capability: model.CapRead})
			if err != nil {
				return err
			}
			if dec.Allowed {
				visible = append(visible, d)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return page(visible, req.Offset, req.Limit), nil
}

func page(docs []*model.Document, offset, limit int) []*model.Document {
	if offset > 0 {
		if offset >= len(docs) {
			return nil
		}
		docs = docs[offset:]
	}
	if limit > 0 && limit < len(docs) {
		docs = docs[:limit]
	}
	return docs
}

func searchDetail(req SearchRequest) string {
	var parts []string
	if req.Query != "" {
		parts = append(parts, "query="+req.Query)
	}
	if len(req.Tags) > 0 {
		parts = append(parts, "tags="+strings.Join(req.Tags, ","))
	}
	if req.Root {
		parts = append(parts, "root")
	}
	return strings.Join(parts, " ")
}
