// Package testutil builds migrated throwaway databases and tenants for package tests.
package testutil

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/templui/docvault/internal/db"
	"github.com/templui/docvault/internal/model"
	"github.com/templui/docvault/internal/repository"
	"github.com/templui/docvault/internal/tenancy"
)

// NewStore opens a migrated SQLite database in a temp dir. WAL and busy_timeout let
// concurrent tests share it.
func NewStore(t *testing.T) *repository.Store {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "test.db") + "?_pragma=busy_timeout(10000)&_pragma=journal_mode(WAL)"
	conn, err := db.Init("sqlite", dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close(conn) })
	require.NoError(t, db.RunMigrations(context.Background(), conn.DB, "sqlite"))
	return repository.NewStore(conn)
}

// NewTenant creates an active tenant and returns a context scoped to it.
func NewTenant(t *testing.T, s *repository.Store, slug string, mode model.IsolationMode) (context.Context, *model.Tenant) {
	t.Helper()
	ctx := context.Background()
	tenant := &model.Tenant{
		ID:            uuid.NewString(),
		Name:          slug,
		Slug:          slug,
		SchemaName:    slug,
		IsolationMode: mode,
		Active:        true,
		CreatedAt:     time.Now().UTC(),
	}
	require.NoError(t, s.Tenants().Create(ctx, tenant))
	if mode == model.IsolationSchema {
		require.NoError(t, db.CreateNamespace(ctx, s.DB(), tenant.SchemaName))
	}
	return tenancy.WithScope(ctx, tenancy.New(tenant, s.Dialect())), tenant
}

// Member adds userID to the scoped tenant with role.
func Member(t *testing.T, ctx context.Context, s *repository.Store, userID string, role model.Role) {
	t.Helper()
	r, err := s.Scoped(ctx)
	require.NoError(t, err)
	require.NoError(t, r.Memberships.Create(ctx, &model.Membership{
		ID: uuid.NewString(), UserID: userID, Role: role, CreatedAt: time.Now().UTC(),
	}))
}

// Folder creates a folder owned by ownerID under parent (nil for a root folder).
func Folder(t *testing.T, ctx context.Context, s *repository.Store, parent *model.Folder, name, ownerID string) *model.Folder {
	t.Helper()
	r, err := s.Scoped(ctx)
	require.NoError(t, err)
	now := time.Now().UTC()
	f := &model.Folder{ID: uuid.NewString(), Name: name, OwnerID: ownerID, CreatedAt: now, UpdatedAt: now}
	if parent != nil {
		f.ParentID = &parent.ID
	}
	require.NoError(t, r.Folders.Create(ctx, f))
	return f
}

// Document creates a document row in folder (nil for none) without stored content.
func Document(t *testing.T, ctx context.Context, s *repository.Store, folder *model.Folder, title, ownerID string) *model.Document {
	t.Helper()
	r, err := s.Scoped(ctx)
	require.NoError(t, err)
	now := time.Now().UTC()
	d := &model.Document{
		ID: uuid.NewString(), StoredFileID: "sf-" + title, Title: title, OriginalFilename: title + ".pdf",
		OwnerID: ownerID, UploadedAt: now, UpdatedAt: now,
	}
	if folder != nil {
		d.FolderID = &folder.ID
	}
	require.NoError(t, r.Documents.Create(ctx, d))
	return d
}

// Grant adds an ACL entry on a folder or document for a user (or a group when groupID is set).
func Grant(t *testing.T, ctx context.Context, s *repository.Store, kind model.TargetKind, targetID, userID, groupID string, c model.Capability) {
	t.Helper()
	r, err := s.Scoped(ctx)
	require.NoError(t, err)
	e := &model.ACLEntry{ID: uuid.NewString(), TargetID: targetID, Capability: c, GrantedBy: "test", GrantedAt: time.Now().UTC()}
	if groupID != "" {
		e.GroupID = &groupID
	} else {
		e.UserID = &userID
	}
	acls := r.FolderACLs
	if kind == model.TargetDocument {
		acls = r.DocumentACLs
	}
	require.NoError(t, acls.Grant(ctx, e))
}
