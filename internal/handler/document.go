package handler

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/templui/docvault/internal/ctxkeys"
	"github.com/templui/docvault/internal/model"
	"github.com/templui/docvault/internal/service"
)

// Room for the multipart framing and the metadata fields around the file part.
const multipartOverhead = 1 << 20

type DocumentHandler struct {
	documentService *service.DocumentService
}

func NewDocumentHandler(documentService *service.DocumentService) *DocumentHandler {
	return &DocumentHandler{
		documentService: documentService,
	}
}

// documentView exposes tags as a list.
type documentView struct {
	*model.Document
	Tags []string `json:"tags"`
}

func viewOf(doc *model.Document) documentView {
	tags := doc.TagList()
	if tags == nil {
		tags = []string{}
	}
	return documentView{Document: doc, Tags: tags}
}

// List searches documents: ?folder_id= or ?root=true, ?q=, repeated ?tag=, ?limit=, ?offset=.
func (h *DocumentHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, err := queryInt(r, "limit")
	if err != nil {
		HandleError(w, r, err)
		return
	}
	offset, err := queryInt(r, "offset")
	if err != nil {
		HandleError(w, r, err)
		return
	}
	root, _ := strconv.ParseBool(q.Get("root"))

	docs, err := h.documentService.List(r.Context(), actorID(r), service.SearchRequest{
		FolderID: q.Get("folder_id"),
		Root:     root,
		Query:    q.Get("q"),
		Tags:     q["tag"],
		Limit:    limit,
		Offset:   offset,
	})
	if err != nil {
		HandleError(w, r, err)
		return
	}

	views := make([]documentView, 0, len(docs))
	for _, d := range docs {
		views = append(views, viewOf(d))
	}
	writeJSON(w, http.StatusOK, views)
}

// Upload streams a multipart/form-data body. Metadata fields (folder_id, title,
// description, tags) must precede the "file" part; the file is never buffered in memory.
func (h *DocumentHandler) Upload(w http.ResponseWriter, r *http.Request) {
	if cfg := ctxkeys.Config(r.Context()); cfg != nil && cfg.MaxUploadSize > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, cfg.MaxUploadSize+multipartOverhead)
	}
	mr, err := r.MultipartReader()
	if err != nil {
		HandleError(w, r, fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}

	req := service.UploadRequest{}
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			HandleError(w, r, fmt.Errorf("%w: missing file part", errBadRequest))
			return
		}
		if err != nil {
			HandleError(w, r, fmt.Errorf("%w: %w", errBadRequest, err))
			return
		}

		if part.FormName() == "file" {
			req.Filename = part.FileName()
			req.ContentType = part.Header.Get("Content-Type")
			req.Body = part
			break
		}

		value, err := io.ReadAll(io.LimitReader(part, 64<<10))
		part.Close()
		if err != nil {
			HandleError(w, r, fmt.Errorf("%w: %w", errBadRequest, err))
			return
		}
		switch part.FormName() {
		case "folder_id":
			req.FolderID = string(value)
		case "title":
			req.Title = string(value)
		case "description":
			req.Description = string(value)
		case "tags":
			req.Tags = append(req.Tags, strings.Split(string(value), ",")...)
		}
	}

	res, err := h.documentService.Upload(r.Context(), actorID(r), req)
	if err != nil {
		HandleError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, struct {
		Document     documentView      `json:"document"`
		StoredFile   *model.StoredFile `json:"stored_file"`
		WasDuplicate bool              `json:"was_duplicate"`
	}{viewOf(res.Document), res.StoredFile, res.WasDuplicate})
}

func (h *DocumentHandler) Get(w http.ResponseWriter, r *http.Request) {
	doc, err := h.documentService.Get(r.Context(), actorID(r), r.PathValue("id"))
	if err != nil {
		HandleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, viewOf(doc))
}

// Update patches title, description and tags. Absent fields are kept; "tags": [] clears them.
func (h *DocumentHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Title       *string   `json:"title"`
		Description *string   `json:"description"`
		Tags        *[]string `json:"tags"`
	}
	if err := decodeJSON(r, &req); err != nil {
		HandleError(w, r, err)
		return
	}

	update := service.DocumentUpdate{Title: req.Title, Description: req.Description}
	if req.Tags != nil {
		update.Tags = *req.Tags
		if update.Tags == nil {
			update.Tags = []string{}
		}
	}

	doc, err := h.documentService.Update(r.Context(), actorID(r), r.PathValue("id"), update)
	if err != nil {
		HandleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, viewOf(doc))
}

// Content streams the stored bytes as an attachment.
func (h *DocumentHandler) Content(w http.ResponseWriter, r *http.Request) {
	dl, err := h.documentService.Open(r.Context(), actorID(r), r.PathValue("id"))
	if err != nil {
		HandleError(w, r, err)
		return
	}
	defer dl.Body.Close()

	w.Header().Set("Content-Type", dl.MimeType)
	w.Header().Set("Content-Length", strconv.FormatInt(dl.StoredFile.Size, 10))
	if disposition := mime.FormatMediaType("attachment", map[string]string{"filename": dl.Document.OriginalFilename}); disposition != "" {
		w.Header().Set("Content-Disposition", disposition)
	}
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, dl.Body); err != nil {
		slog.Warn("download interrupted", "error", err, "document_id", dl.Document.ID)
	}
}

func (h *DocumentHandler) Link(w http.ResponseWriter, r *http.Request) {
	url, err := h.documentService.Link(r.Context(), actorID(r), r.PathValue("id"))
	if err != nil {
		HandleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"url": url})
}

func (h *DocumentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.documentService.Delete(r.Context(), actorID(r), r.PathValue("id")); err != nil {
		HandleError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *DocumentHandler) ACL(w http.ResponseWriter, r *http.Request) {
	entries, err := h.documentService.ACL(r.Context(), actorID(r), r.PathValue("id"))
	if err != nil {
		HandleError(w, r, err)
		return
	}
	writeACL(w, entries)
}

func (h *DocumentHandler) Grant(w http.ResponseWriter, r *http.Request) {
	var req grantRequest
	if err := decodeJSON(r, &req); err != nil {
		HandleError(w, r, err)
		return
	}

	entry, err := h.documentService.Grant(r.Context(), actorID(r), r.PathValue("id"), req.principal(), req.Capability)
	if err != nil {
		HandleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, entry)
}

func (h *DocumentHandler) Revoke(w http.ResponseWriter, r *http.Request) {
	if err := h.documentService.Revoke(r.Context(), actorID(r), r.PathValue("id"), r.PathValue("entry")); err != nil {
		HandleError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
