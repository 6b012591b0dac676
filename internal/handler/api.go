package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/templui/docvault/internal/ctxkeys"
	"github.com/templui/docvault/internal/dedup"
	"github.com/templui/docvault/internal/permission"
	"github.com/templui/docvault/internal/repository"
	"github.com/templui/docvault/internal/service"
	"github.com/templui/docvault/internal/storage"
	"github.com/templui/docvault/internal/validation"
)

// Error codes returned in the JSON error body.
const (
	ECodeNotFound    = "not_found"
	ECodeForbidden   = "forbidden"
	ECodeInvalid     = "invalid"
	ECodeConflict    = "conflict"
	ECodeTooLarge    = "too_large"
	ECodeUnsupported = "unsupported_media_type"
	ECodeStorage     = "storage_unavailable"
	ECodeInternal    = "internal"
)

var statusByCode = map[string]int{
	ECodeNotFound:    http.StatusNotFound,
	ECodeForbidden:   http.StatusForbidden,
	ECodeInvalid:     http.StatusBadRequest,
	ECodeConflict:    http.StatusConflict,
	ECodeTooLarge:    http.StatusRequestEntityTooLarge,
	ECodeUnsupported: http.StatusUnsupportedMediaType,
	ECodeStorage:     http.StatusBadGateway,
	ECodeInternal:    http.StatusInternalServerError,
}

var errorCodes = []struct {
	err  error
	code string
}{
	{permission.ErrInsufficientPermission, ECodeForbidden},
	{service.ErrTenantNotFound, ECodeNotFound},
	{repository.ErrFolderNotFound, ECodeNotFound},
	{repository.ErrDocumentNotFound, ECodeNotFound},
	{repository.ErrGroupNotFound, ECodeNotFound},
	{repository.ErrMembershipNotFound, ECodeNotFound},
	{repository.ErrACLEntryNotFound, ECodeNotFound},
	{repository.ErrUserNotFound, ECodeNotFound},
	{storage.ErrObjectNotFound, ECodeNotFound},
	{validation.ErrFileTooLarge, ECodeTooLarge},
	{validation.ErrDisallowedFileType, ECodeUnsupported},
	{dedup.ErrStorageWriteFailure, ECodeStorage},
	{service.ErrCyclicFolderMove, ECodeConflict},
	{service.ErrLastAdmin, ECodeConflict},
	{service.ErrSubtreeChanged, ECodeConflict},
	{repository.ErrDuplicateFolderName, ECodeConflict},
	{repository.ErrDuplicateMembership, ECodeConflict},
	{repository.ErrDuplicateGroup, ECodeConflict},
	{repository.ErrFolderTooDeep, ECodeConflict},
	{validation.ErrInvalid, ECodeInvalid},
	{service.ErrInvalidRole, ECodeInvalid},
	{service.ErrInvalidCapability, ECodeInvalid},
	{service.ErrInvalidPrincipal, ECodeInvalid},
	{service.ErrNotMember, ECodeInvalid},
	{service.ErrPresignUnsupported, ECodeInvalid},
	{errBadRequest, ECodeInvalid},
}

var errBadRequest = errors.New("bad request")

// ErrorCode maps an operation error to its API error code.
func ErrorCode(err error) string {
	for _, e := range errorCodes {
		if errors.Is(err, e.err) {
			return e.code
		}
	}
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return ECodeTooLarge
	}
	return ECodeInternal
}

// HandleError writes err as a JSON error body with the matching status code. Internal
// errors are logged and their message is not exposed.
func HandleError(w http.ResponseWriter, r *http.Request, err error) {
	code := ErrorCode(err)
	message := err.Error()
	if code == ECodeInternal {
		slog.Error("request failed", "error", err, "method", r.Method, "path", r.URL.Path)
		message = "an internal error has occurred"
	}

	var denied *permission.DeniedError
	if errors.As(err, &denied) {
		message = denied.Reason
	}

	writeJSON(w, statusByCode[code], struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}{code, message})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("failed to encode response", "error", err)
	}
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return nil
}

// actorID is the authenticated user; routes are registered behind RequireAuth.
func actorID(r *http.Request) string {
	if u := ctxkeys.User(r.Context()); u != nil {
		return u.ID
	}
	return ""
}

func queryInt(r *http.Request, key string) (int, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%w: %s must be a non-negative integer", errBadRequest, key)
	}
	return n, nil
}
