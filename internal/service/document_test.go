package service

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/templui/docvault/internal/dedup"
	"github.com/templui/docvault/internal/model"
	"github.com/templui/docvault/internal/permission"
	"github.com/templui/docvault/internal/repository"
	"github.com/templui/docvault/internal/validation"
)

func TestDocuments_ViewerNeedsGrantToDownload(t *testing.T) {
	for _, mode := range modes {
		t.Run(string(mode), func(t *testing.T) {
			h := newHarness(t, dedup.PolicyGlobal)
			ctx, admin := h.tenant(t, "acme", mode)
			viewer := h.member(t, ctx, admin, "v@acme.test", model.RoleViewer)

			reports, err := h.folders.Create(ctx, admin, "", "reports")
			require.NoError(t, err)
			q3 := h.upload(t, ctx, admin, reports.ID, "q3.pdf", "%PDF-1.4 q3 numbers")

			_, err = h.folders.Get(ctx, viewer, reports.ID)
			require.NoError(t, err)
			doc, err := h.docs.Get(ctx, viewer, q3.Document.ID)
			require.NoError(t, err)
			assert.Equal(t, "q3.pdf", doc.Title)

			_, err = h.docs.Open(ctx, viewer, q3.Document.ID)
			require.ErrorIs(t, err, permission.ErrInsufficientPermission)
			var denied *permission.DeniedError
			require.ErrorAs(t, err, &denied)
			assert.Equal(t, permission.ReasonInsufficient, denied.Reason)

			_, err = h.docs.Grant(ctx, admin, q3.Document.ID, model.Principal{UserID: viewer}, model.CapDownload)
			require.NoError(t, err)

			dl, err := h.docs.Open(ctx, viewer, q3.Document.ID)
			require.NoError(t, err)
			assert.Equal(t, "application/pdf", dl.MimeType)
			assert.Equal(t, "%PDF-1.4 q3 numbers", readAll(t, dl.Body))

			downloads := h.trailOf(t, ctx, repository.AuditFilter{ActorID: viewer, Action: model.ActionDownload})
			assert.ElementsMatch(t, []string{model.OutcomeDenied, model.OutcomeSuccess}, outcomes(downloads))
			for _, l := range downloads {
				assert.Equal(t, q3.Document.ID, l.TargetID)
			}
		})
	}
}

func TestDocuments_GlobalPolicySharesContentAcrossTenants(t *testing.T) {
	h := newHarness(t, dedup.PolicyGlobal)
	a, adminA := h.tenant(t, "acme", model.IsolationFilter)
	b, adminB := h.tenant(t, "globex", model.IsolationSchema)

	content := "%PDF-1.4\n" + strings.Repeat("0123456789", 1<<20)
	first, err := h.docs.Upload(a, adminA, UploadRequest{Filename: "a.pdf", Body: strings.NewReader(content)})
	require.NoError(t, err)
	assert.False(t, first.WasDuplicate)

	second, err := h.docs.Upload(b, adminB, UploadRequest{Filename: "b.pdf", Body: strings.NewReader(content)})
	require.NoError(t, err)
	assert.True(t, second.WasDuplicate)
	assert.Equal(t, first.StoredFile.ID, second.StoredFile.ID)
	assert.NotEqual(t, first.Document.ID, second.Document.ID)
	assert.Equal(t, "b.pdf", second.Document.OriginalFilename)

	n, err := h.store.StoredFiles().Count(a)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	dl, err := h.docs.Open(b, adminB, second.Document.ID)
	require.NoError(t, err)
	assert.Equal(t, len(content), len(readAll(t, dl.Body)))
}

func TestDocuments_PerTenantPolicyStoresContentPerTenant(t *testing.T) {
	h := newHarness(t, dedup.PolicyPerTenant)
	a, adminA := h.tenant(t, "acme", model.IsolationFilter)
	b, adminB := h.tenant(t, "globex", model.IsolationFilter)

	first := h.upload(t, a, adminA, "", "a.txt", "same words")
	again := h.upload(t, a, adminA, "", "copy.txt", "same words")
	other := h.upload(t, b, adminB, "", "b.txt", "same words")

	assert.True(t, again.WasDuplicate)
	assert.Equal(t, first.StoredFile.ID, again.StoredFile.ID)
	assert.False(t, other.WasDuplicate)
	assert.NotEqual(t, first.StoredFile.ID, other.StoredFile.ID)
}

func TestDocuments_UploadRejections(t *testing.T) {
	h := newHarness(t, dedup.PolicyGlobal)
	ctx, admin := h.tenant(t, "acme", model.IsolationFilter)
	viewer := h.member(t, ctx, admin, "v@acme.test", model.RoleViewer)

	_, err := h.docs.Upload(ctx, admin, UploadRequest{Filename: "run.exe", Body: strings.NewReader("MZ")})
	assert.ErrorIs(t, err, validation.ErrDisallowedFileType)

	_, err = h.docs.Upload(ctx, viewer, UploadRequest{Filename: "notes.txt", Body: strings.NewReader("hello")})
	assert.ErrorIs(t, err, permission.ErrInsufficientPermission)

	// Nothing was stored for either attempt.
	n, err := h.store.StoredFiles().Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	uploads := h.trail(t, ctx, model.ActionUpload)
	assert.ElementsMatch(t, []string{model.OutcomeFailure, model.OutcomeDenied}, outcomes(uploads))
}

// hookReader runs hook before the first byte is read.
type hookReader struct {
	r    io.Reader
	once sync.Once
	hook func()
}

func (h *hookReader) Read(p []byte) (int, error) {
	h.once.Do(h.hook)
	return h.r.Read(p)
}

func TestDocuments_UploadRechecksPermissionWhenActing(t *testing.T) {
	h := newHarness(t, dedup.PolicyGlobal)
	ctx, admin := h.tenant(t, "acme", model.IsolationFilter)
	editor := h.member(t, ctx, admin, "e@acme.test", model.RoleEditor)

	body := &hookReader{r: strings.NewReader("draft"), hook: func() {
		// The editor is demoted after the upload was admitted but before it is recorded.
		require.NoError(t, h.members.SetRole(ctx, admin, editor, model.RoleViewer))
	}}
	_, err := h.docs.Upload(ctx, editor, UploadRequest{Filename: "draft.txt", Body: body})
	require.ErrorIs(t, err, permission.ErrInsufficientPermission)

	docs, err := h.docs.List(ctx, admin, SearchRequest{})
	require.NoError(t, err)
	assert.Empty(t, docs)

	uploads := h.trailOf(t, ctx, repository.AuditFilter{ActorID: editor, Action: model.ActionUpload})
	require.Len(t, uploads, 1)
	assert.Equal(t, model.OutcomeDenied, uploads[0].Outcome)
	assert.Contains(t, uploads[0].Detail, "filename=draft.txt")
	assert.Contains(t, uploads[0].Detail, "error=insufficient permission")
}

func TestDocuments_UpdateNeedsEdit(t *testing.T) {
	h := newHarness(t, dedup.PolicyGlobal)
	ctx, admin := h.tenant(t, "acme", model.IsolationFilter)
	viewer := h.member(t, ctx, admin, "v@acme.test", model.RoleViewer)
	editor := h.member(t, ctx, admin, "e@acme.test", model.RoleEditor)
	doc := h.upload(t, ctx, admin, "", "plan.txt", "plan").Document

	title := "Q4 plan"
	_, err := h.docs.Update(ctx, viewer, doc.ID, DocumentUpdate{Title: &title})
	assert.ErrorIs(t, err, permission.ErrInsufficientPermission)

	updated, err := h.docs.Update(ctx, editor, doc.ID, DocumentUpdate{Title: &title, Tags: []string{"finance", " q4 "}})
	require.NoError(t, err)
	assert.Equal(t, "Q4 plan", updated.Title)
	assert.Equal(t, []string{"finance", "q4"}, updated.TagList())

	got, err := h.docs.Get(ctx, viewer, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, "Q4 plan", got.Title)
	assert.Equal(t, "finance,q4", got.Tags)

	empty := "  "
	_, err = h.docs.Update(ctx, editor, doc.ID, DocumentUpdate{Title: &empty})
	assert.Error(t, err)
}

func TestDocuments_ListAndSearch(t *testing.T) {
	h := newHarness(t, dedup.PolicyGlobal)
	ctx, admin := h.tenant(t, "acme", model.IsolationSchema)
	viewer := h.member(t, ctx, admin, "v@acme.test", model.RoleViewer)

	reports, err := h.folders.Create(ctx, admin, "", "reports")
	require.NoError(t, err)
	q3, err := h.docs.Upload(ctx, admin, UploadRequest{FolderID: reports.ID, Title: "Q3 results", Tags: []string{"finance"}, Filename: "q3.txt", Body: strings.NewReader("q3")})
	require.NoError(t, err)
	_, err = h.docs.Upload(ctx, admin, UploadRequest{FolderID: reports.ID, Title: "Team offsite", Tags: []string{"hr"}, Filename: "offsite.txt", Body: strings.NewReader("offsite")})
	require.NoError(t, err)
	_, err = h.docs.Upload(ctx, admin, UploadRequest{Title: "Unfiled memo", Filename: "memo.txt", Body: strings.NewReader("memo")})
	require.NoError(t, err)

	all, err := h.docs.List(ctx, viewer, SearchRequest{})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	inFolder, err := h.docs.List(ctx, viewer, SearchRequest{FolderID: reports.ID})
	require.NoError(t, err)
	assert.Len(t, inFolder, 2)

	root, err := h.docs.List(ctx, viewer, SearchRequest{Root: true})
	require.NoError(t, err)
	require.Len(t, root, 1)
	assert.Equal(t, "Unfiled memo", root[0].Title)

	found, err := h.docs.List(ctx, viewer, SearchRequest{Query: "RESULTS", Tags: []string{"finance"}})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, q3.Document.ID, found[0].ID)

	paged, err := h.docs.List(ctx, viewer, SearchRequest{Limit: 2, Offset: 2})
	require.NoError(t, err)
	assert.Len(t, paged, 1)

	_, err = h.docs.List(ctx, "stranger", SearchRequest{})
	assert.ErrorIs(t, err, permission.ErrInsufficientPermission)
}

func TestDocuments_DeleteKeepsSharedContent(t *testing.T) {
	h := newHarness(t, dedup.PolicyGlobal)
	ctx, admin := h.tenant(t, "acme", model.IsolationFilter)
	editor := h.member(t, ctx, admin, "e@acme.test", model.RoleEditor)

	first := h.upload(t, ctx, admin, "", "a.txt", "shared")
	second := h.upload(t, ctx, admin, "", "b.txt", "shared")

	err := h.docs.Delete(ctx, editor, first.Document.ID)
	assert.ErrorIs(t, err, permission.ErrInsufficientPermission)

	require.NoError(t, h.docs.Delete(ctx, admin, first.Document.ID))
	_, err = h.docs.Get(ctx, admin, first.Document.ID)
	assert.ErrorIs(t, err, repository.ErrDocumentNotFound)

	dl, err := h.docs.Open(ctx, admin, second.Document.ID)
	require.NoError(t, err)
	assert.Equal(t, "shared", readAll(t, dl.Body))
}

func TestDocuments_GrantRules(t *testing.T) {
	h := newHarness(t, dedup.PolicyGlobal)
	ctx, admin := h.tenant(t, "acme", model.IsolationFilter)
	editor := h.member(t, ctx, admin, "e@acme.test", model.RoleEditor)
	viewer := h.member(t, ctx, admin, "v@acme.test", model.RoleViewer)
	doc := h.upload(t, ctx, editor, "", "mine.txt", "mine").Document

	_, err := h.docs.Grant(ctx, admin, doc.ID, model.Principal{UserID: viewer}, model.CapWrite)
	assert.ErrorIs(t, err, ErrInvalidCapability)

	_, err = h.docs.Grant(ctx, admin, doc.ID, model.Principal{}, model.CapRead)
	assert.ErrorIs(t, err, ErrInvalidPrincipal)

	_, err = h.docs.Grant(ctx, admin, doc.ID, model.Principal{UserID: "outsider"}, model.CapRead)
	assert.ErrorIs(t, err, ErrNotMember)

	_, err = h.docs.Grant(ctx, viewer, doc.ID, model.Principal{UserID: viewer}, model.CapDownload)
	assert.ErrorIs(t, err, permission.ErrInsufficientPermission)

	// The owner may grant without being an admin.
	entry, err := h.docs.Grant(ctx, editor, doc.ID, model.Principal{UserID: viewer}, model.CapDownload)
	require.NoError(t, err)

	acl, err := h.docs.ACL(ctx, editor, doc.ID)
	require.NoError(t, err)
	assert.Len(t, acl, 2) // uploader download + viewer download

	dl, err := h.docs.Open(ctx, viewer, doc.ID)
	require.NoError(t, err)
	readAll(t, dl.Body)

	require.NoError(t, h.docs.Revoke(ctx, editor, doc.ID, entry.ID))
	_, err = h.docs.Open(ctx, viewer, doc.ID)
	assert.ErrorIs(t, err, permission.ErrInsufficientPermission)

	err = h.docs.Revoke(ctx, editor, doc.ID, entry.ID)
	assert.ErrorIs(t, err, repository.ErrACLEntryNotFound)
}

func TestDocuments_GroupGrant(t *testing.T) {
	h := newHarness(t, dedup.PolicyGlobal)
	ctx, admin := h.tenant(t, "acme", model.IsolationSchema)
	viewer := h.member(t, ctx, admin, "v@acme.test", model.RoleViewer)
	doc := h.upload(t, ctx, admin, "", "budget.txt", "budget").Document

	group, err := h.members.CreateGroup(ctx, admin, "finance")
	require.NoError(t, err)
	require.NoError(t, h.members.AddToGroup(ctx, admin, group.ID, viewer))
	_, err = h.docs.Grant(ctx, admin, doc.ID, model.Principal{GroupID: group.ID}, model.CapDownload)
	require.NoError(t, err)

	dl, err := h.docs.Open(ctx, viewer, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, "budget", readAll(t, dl.Body))

	require.NoError(t, h.members.RemoveFromGroup(ctx, admin, group.ID, viewer))
	_, err = h.docs.Open(ctx, viewer, doc.ID)
	assert.ErrorIs(t, err, permission.ErrInsufficientPermission)
}

func TestDocuments_LinkNeedsPresigningBackend(t *testing.T) {
	h := newHarness(t, dedup.PolicyGlobal)
	ctx, admin := h.tenant(t, "acme", model.IsolationFilter)
	doc := h.upload(t, ctx, admin, "", "a.txt", "a").Document

	_, err := h.docs.Link(ctx, admin, doc.ID)
	assert.True(t, errors.Is(err, ErrPresignUnsupported))
}

func TestDocuments_TooLargeUploadIsRejected(t *testing.T) {
	h := newHarness(t, dedup.PolicyGlobal)
	ctx, admin := h.tenant(t, "acme", model.IsolationFilter)

	big := bytes.NewReader(bytes.Repeat([]byte("x"), 50<<20+1))
	_, err := h.docs.Upload(ctx, admin, UploadRequest{Filename: "big.txt", Body: big})
	assert.ErrorIs(t, err, validation.ErrFileTooLarge)
}
