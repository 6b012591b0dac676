package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/templui/docvault/internal/dedup"
	"github.com/templui/docvault/internal/model"
	"github.com/templui/docvault/internal/permission"
	"github.com/templui/docvault/internal/repository"
)

func TestFolders_DeniedCreateIsAuditedOnceAndChangesNothing(t *testing.T) {
	for _, mode := range modes {
		t.Run(string(mode), func(t *testing.T) {
			h := newHarness(t, dedup.PolicyGlobal)
			ctx, admin := h.tenant(t, "acme", mode)
			viewer := h.member(t, ctx, admin, "v@acme.test", model.RoleViewer)
			reports, err := h.folders.Create(ctx, admin, "", "reports")
			require.NoError(t, err)

			_, err = h.folders.Create(ctx, viewer, reports.ID, "drafts")
			require.ErrorIs(t, err, permission.ErrInsufficientPermission)

			children, err := h.folders.Children(ctx, admin, reports.ID)
			require.NoError(t, err)
			assert.Empty(t, children)

			creates := h.trailOf(t, ctx, repository.AuditFilter{ActorID: viewer, Action: model.ActionFolderCreate})
			require.Len(t, creates, 1)
			assert.Equal(t, model.OutcomeDenied, creates[0].Outcome)
		})
	}
}

func TestFolders_CreateRules(t *testing.T) {
	h := newHarness(t, dedup.PolicyGlobal)
	ctx, admin := h.tenant(t, "acme", model.IsolationFilter)
	editor := h.member(t, ctx, admin, "e@acme.test", model.RoleEditor)
	viewer := h.member(t, ctx, admin, "v@acme.test", model.RoleViewer)

	_, err := h.folders.Create(ctx, viewer, "", "mine")
	assert.ErrorIs(t, err, permission.ErrInsufficientPermission)

	own, err := h.folders.Create(ctx, editor, "", "projects")
	require.NoError(t, err)
	assert.Equal(t, editor, own.OwnerID)

	// The owner writes inside their folder; others need a grant.
	_, err = h.folders.Create(ctx, editor, own.ID, "alpha")
	require.NoError(t, err)
	_, err = h.folders.Create(ctx, viewer, own.ID, "beta")
	assert.ErrorIs(t, err, permission.ErrInsufficientPermission)

	_, err = h.folders.Grant(ctx, editor, own.ID, model.Principal{UserID: viewer}, model.CapWrite)
	require.NoError(t, err)
	_, err = h.folders.Create(ctx, viewer, own.ID, "beta")
	require.NoError(t, err)

	_, err = h.folders.Create(ctx, editor, own.ID, "alpha")
	assert.ErrorIs(t, err, repository.ErrDuplicateFolderName)

	_, err = h.folders.Create(ctx, editor, own.ID, "a/b")
	assert.Error(t, err)

	_, err = h.folders.Create(ctx, admin, "missing", "x")
	assert.ErrorIs(t, err, repository.ErrFolderNotFound)
}

func TestFolders_InheritedGrantReachesDescendants(t *testing.T) {
	h := newHarness(t, dedup.PolicyGlobal)
	ctx, admin := h.tenant(t, "acme", model.IsolationSchema)
	viewer := h.member(t, ctx, admin, "v@acme.test", model.RoleViewer)

	top, err := h.folders.Create(ctx, admin, "", "top")
	require.NoError(t, err)
	mid, err := h.folders.Create(ctx, admin, top.ID, "mid")
	require.NoError(t, err)

	_, err = h.folders.Create(ctx, viewer, mid.ID, "leaf")
	require.ErrorIs(t, err, permission.ErrInsufficientPermission)

	_, err = h.folders.Grant(ctx, admin, top.ID, model.Principal{UserID: viewer}, model.CapWrite)
	require.NoError(t, err)
	_, err = h.folders.Create(ctx, viewer, mid.ID, "leaf")
	require.NoError(t, err)

	// A grant lower down does not flow up.
	_, err = h.folders.Grant(ctx, admin, mid.ID, model.Principal{UserID: viewer}, model.CapDelete)
	require.NoError(t, err)
	err = h.folders.Delete(ctx, viewer, top.ID)
	assert.ErrorIs(t, err, permission.ErrInsufficientPermission)
}

func TestFolders_MoveRejectsCycles(t *testing.T) {
	h := newHarness(t, dedup.PolicyGlobal)
	ctx, admin := h.tenant(t, "acme", model.IsolationFilter)

	a, err := h.folders.Create(ctx, admin, "", "a")
	require.NoError(t, err)
	b, err := h.folders.Create(ctx, admin, a.ID, "b")
	require.NoError(t, err)
	c, err := h.folders.Create(ctx, admin, b.ID, "c")
	require.NoError(t, err)

	assert.ErrorIs(t, h.folders.Move(ctx, admin, a.ID, c.ID), ErrCyclicFolderMove)
	assert.ErrorIs(t, h.folders.Move(ctx, admin, a.ID, a.ID), ErrCyclicFolderMove)

	got, err := h.folders.Get(ctx, admin, a.ID)
	require.NoError(t, err)
	assert.True(t, got.IsRoot())

	require.NoError(t, h.folders.Move(ctx, admin, c.ID, ""))
	got, err = h.folders.Get(ctx, admin, c.ID)
	require.NoError(t, err)
	assert.True(t, got.IsRoot())

	require.NoError(t, h.folders.Move(ctx, admin, c.ID, a.ID))
	children, err := h.folders.Children(ctx, admin, a.ID)
	require.NoError(t, err)
	assert.Len(t, children, 2)

	moves := h.trail(t, ctx, model.ActionFolderMove)
	assert.ElementsMatch(t, []string{model.OutcomeFailure, model.OutcomeFailure, model.OutcomeSuccess, model.OutcomeSuccess}, outcomes(moves))
}

func TestFolders_Rename(t *testing.T) {
	h := newHarness(t, dedup.PolicyGlobal)
	ctx, admin := h.tenant(t, "acme", model.IsolationFilter)
	viewer := h.member(t, ctx, admin, "v@acme.test", model.RoleViewer)
	f, err := h.folders.Create(ctx, admin, "", "old")
	require.NoError(t, err)

	assert.ErrorIs(t, h.folders.Rename(ctx, viewer, f.ID, "new"), permission.ErrInsufficientPermission)
	require.NoError(t, h.folders.Rename(ctx, admin, f.ID, "new"))

	got, err := h.folders.Get(ctx, viewer, f.ID)
	require.NoError(t, err)
	assert.Equal(t, "new", got.Name)
}

func TestFolders_DeleteSweepsSubtree(t *testing.T) {
	for _, mode := range modes {
		t.Run(string(mode), func(t *testing.T) {
			h := newHarness(t, dedup.PolicyGlobal)
			ctx, admin := h.tenant(t, "acme", mode)

			top, err := h.folders.Create(ctx, admin, "", "top")
			require.NoError(t, err)
			mid, err := h.folders.Create(ctx, admin, top.ID, "mid")
			require.NoError(t, err)
			keep, err := h.folders.Create(ctx, admin, "", "keep")
			require.NoError(t, err)
			inTop := h.upload(t, ctx, admin, top.ID, "a.txt", "a").Document
			inMid := h.upload(t, ctx, admin, mid.ID, "b.txt", "b").Document
			kept := h.upload(t, ctx, admin, keep.ID, "c.txt", "c").Document

			require.NoError(t, h.folders.Delete(ctx, admin, top.ID))

			for _, id := range []string{top.ID, mid.ID} {
				_, err := h.folders.Get(ctx, admin, id)
				assert.ErrorIs(t, err, repository.ErrFolderNotFound)
			}
			for _, id := range []string{inTop.ID, inMid.ID} {
				_, err := h.docs.Get(ctx, admin, id)
				assert.ErrorIs(t, err, repository.ErrDocumentNotFound)
			}
			_, err = h.docs.Get(ctx, admin, kept.ID)
			assert.NoError(t, err)

			deletes := h.trail(t, ctx, model.ActionFolderDelete)
			require.Len(t, deletes, 1)
			assert.Equal(t, model.OutcomeSuccess, deletes[0].Outcome)
			assert.Equal(t, "folders=2 documents=2", deletes[0].Detail)
		})
	}
}

func TestFolders_DeleteBlockedByUndeletableDescendant(t *testing.T) {
	h := newHarness(t, dedup.PolicyGlobal)
	ctx, admin := h.tenant(t, "acme", model.IsolationFilter)
	editor := h.member(t, ctx, admin, "e@acme.test", model.RoleEditor)

	top, err := h.folders.Create(ctx, editor, "", "top")
	require.NoError(t, err)
	adminDoc := h.upload(t, ctx, admin, top.ID, "theirs.txt", "theirs").Document

	err = h.folders.Delete(ctx, editor, top.ID)
	require.ErrorIs(t, err, permission.ErrInsufficientPermission)
	var denied *permission.DeniedError
	require.ErrorAs(t, err, &denied)
	assert.Contains(t, denied.Reason, permission.ReasonSubtreeBlocked)

	_, err = h.folders.Get(ctx, editor, top.ID)
	assert.NoError(t, err)
	_, err = h.docs.Get(ctx, admin, adminDoc.ID)
	assert.NoError(t, err)
}

func TestFolders_ChildrenListsByName(t *testing.T) {
	h := newHarness(t, dedup.PolicyGlobal)
	ctx, admin := h.tenant(t, "acme", model.IsolationFilter)
	viewer := h.member(t, ctx, admin, "v@acme.test", model.RoleViewer)

	_, err := h.folders.Create(ctx, admin, "", "b")
	require.NoError(t, err)
	_, err = h.folders.Create(ctx, admin, "", "a")
	require.NoError(t, err)

	roots, err := h.folders.Children(ctx, viewer, "")
	require.NoError(t, err)
	require.Len(t, roots, 2)
	assert.Equal(t, "a", roots[0].Name)

	_, err = h.folders.Children(ctx, "stranger", "")
	assert.ErrorIs(t, err, permission.ErrInsufficientPermission)
}

func TestFolders_GrantAndRevoke(t *testing.T) {
	h := newHarness(t, dedup.PolicyGlobal)
	ctx, admin := h.tenant(t, "acme", model.IsolationFilter)
	viewer := h.member(t, ctx, admin, "v@acme.test", model.RoleViewer)
	f, err := h.folders.Create(ctx, admin, "", "shared")
	require.NoError(t, err)

	_, err = h.folders.Grant(ctx, admin, f.ID, model.Principal{UserID: viewer}, model.CapDownload)
	assert.ErrorIs(t, err, ErrInvalidCapability)

	entry, err := h.folders.Grant(ctx, admin, f.ID, model.Principal{UserID: viewer}, model.CapWrite)
	require.NoError(t, err)

	acl, err := h.folders.ACL(ctx, admin, f.ID)
	require.NoError(t, err)
	require.Len(t, acl, 1)
	assert.Equal(t, model.CapWrite, acl[0].Capability)

	_, err = h.folders.ACL(ctx, viewer, f.ID)
	assert.ErrorIs(t, err, permission.ErrInsufficientPermission)

	require.NoError(t, h.folders.Revoke(ctx, admin, f.ID, entry.ID))
	_, err = h.folders.Create(ctx, viewer, f.ID, "x")
	assert.ErrorIs(t, err, permission.ErrInsufficientPermission)

	grants := h.trail(t, ctx, model.ActionFolderGrant)
	assert.ElementsMatch(t, []string{model.OutcomeFailure, model.OutcomeSuccess}, outcomes(grants))
}
