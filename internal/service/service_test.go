package service

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/templui/docvault/internal/audit"
	"github.com/templui/docvault/internal/dedup"
	"github.com/templui/docvault/internal/model"
	"github.com/templui/docvault/internal/permission"
	"github.com/templui/docvault/internal/repository"
	"github.com/templui/docvault/internal/storage"
	"github.com/templui/docvault/internal/testutil"
	"github.com/templui/docvault/internal/validation"
)

type harness struct {
	store   *repository.Store
	tenants *TenantService
	members *MembershipService
	folders *FolderService
	docs    *DocumentService
	audits  *AuditService
	auth    *AuthService
}

func newHarness(t *testing.T, policy dedup.Policy) *harness {
	t.Helper()
	s := testutil.NewStore(t)

	blobs, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	staging, err := storage.NewStaging(t.TempDir())
	require.NoError(t, err)
	engine := dedup.NewEngine(s.StoredFiles(), blobs, staging,
		validation.NewFileConstraints([]string{"pdf", "txt"}, nil, 50<<20))

	eval := permission.NewEvaluator()
	recorder := audit.NewRecorder(audit.StoreSink(s))

	return &harness{
		store:   s,
		tenants: NewTenantService(s, recorder, ".docvault.local", model.IsolationFilter),
		members: NewMembershipService(s, eval, recorder),
		folders: NewFolderService(s, eval, recorder),
		docs:    NewDocumentService(s, eval, recorder, engine, blobs, policy, time.Minute),
		audits:  NewAuditService(s, eval, recorder),
		auth:    NewAuthService(s.Users(), "test-secret", time.Hour),
	}
}

// tenant provisions slug with a first admin and returns the scoped context and the admin id.
func (h *harness) tenant(t *testing.T, slug string, mode model.IsolationMode) (context.Context, string) {
	t.Helper()
	ctx := context.Background()
	tenant, err := h.tenants.Provision(ctx, ProvisionRequest{
		Name:       strings.ToUpper(slug),
		Slug:       slug,
		Mode:       mode,
		AdminEmail: "admin@" + slug + ".test",
	})
	require.NoError(t, err)
	admin, err := h.store.Users().ByEmail(ctx, "admin@"+slug+".test")
	require.NoError(t, err)
	return h.tenants.Establish(ctx, tenant), admin.ID
}

func (h *harness) member(t *testing.T, ctx context.Context, adminID, email string, role model.Role) string {
	t.Helper()
	m, err := h.members.AddMember(ctx, adminID, email, role)
	require.NoError(t, err)
	return m.UserID
}

func (h *harness) trail(t *testing.T, ctx context.Context, action string) []*model.AuditLog {
	t.Helper()
	return h.trailOf(t, ctx, repository.AuditFilter{Action: action})
}

func (h *harness) trailOf(t *testing.T, ctx context.Context, f repository.AuditFilter) []*model.AuditLog {
	t.Helper()
	r, err := h.store.Scoped(ctx)
	require.NoError(t, err)
	logs, err := r.AuditLogs.List(ctx, f)
	require.NoError(t, err)
	return logs
}

func (h *harness) upload(t *testing.T, ctx context.Context, actorID, folderID, filename, content string) *UploadResult {
	t.Helper()
	res, err := h.docs.Upload(ctx, actorID, UploadRequest{FolderID: folderID, Filename: filename, Body: strings.NewReader(content)})
	require.NoError(t, err)
	return res
}

func readAll(t *testing.T, rc io.ReadCloser) string {
	t.Helper()
	defer rc.Close()
	b, err := io.ReadAll(rc)
	require.NoError(t, err)
	return string(b)
}

func outcomes(logs []*model.AuditLog) []string {
	out := make([]string, len(logs))
	for i, l := range logs {
		out[i] = l.Outcome
	}
	return out
}

var modes = []model.IsolationMode{model.IsolationFilter, model.IsolationSchema}
