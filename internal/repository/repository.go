// Package repository persists the domain model. Global tables are reached through plain
// repositories; tenant-owned tables only through a Repos value bound to a tenancy.Scope.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"

	"github.com/templui/docvault/internal/db"
	"github.com/templui/docvault/internal/tenancy"
)

// DBTX is implemented by both *sqlx.DB and *sqlx.Tx.
type DBTX = sqlx.ExtContext

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

func get(ctx context.Context, q DBTX, dest any, b sq.Sqlizer) error {
	query, args, err := b.ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}
	return sqlx.GetContext(ctx, q, dest, query, args...)
}

func selectAll(ctx context.Context, q DBTX, dest any, b sq.Sqlizer) error {
	query, args, err := b.ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}
	return sqlx.SelectContext(ctx, q, dest, query, args...)
}

func exec(ctx context.Context, q DBTX, b sq.Sqlizer) (int64, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return 0, fmt.Errorf("build query: %w", err)
	}
	result, err := q.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// notFound maps sql.ErrNoRows to the repository's sentinel.
func notFound(err, sentinel error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return sentinel
	}
	return err
}

// Repos bundles the repositories of one unit of work: either the pool or a transaction,
// with tenant-owned tables reached through Scope.
type Repos struct {
	Scope tenancy.Scope

	Tenants     TenantRepository
	Users       UserRepository
	StoredFiles StoredFileRepository

	Memberships  MembershipRepository
	Groups       GroupRepository
	Folders      FolderRepository
	FolderACLs   ACLRepository
	Documents    DocumentRepository
	DocumentACLs ACLRepository
	AuditLogs    AuditLogRepository
}

type Store struct {
	db      *sqlx.DB
	dialect tenancy.Dialect
}

func NewStore(conn *sqlx.DB) *Store {
	return &Store{db: conn, dialect: tenancy.DialectFor(conn.DriverName())}
}

func (s *Store) DB() *sqlx.DB { return s.db }

func (s *Store) Dialect() tenancy.Dialect { return s.dialect }

func (s *Store) Tenants() TenantRepository { return NewTenantRepository(s.db) }

func (s *Store) Users() UserRepository { return NewUserRepository(s.db) }

func (s *Store) StoredFiles() StoredFileRepository { return NewStoredFileRepository(s.db) }

// Scoped returns repositories bound to the pool and to the scope carried by ctx.
func (s *Store) Scoped(ctx context.Context) (*Repos, error) {
	scope, err := tenancy.FromContext(ctx)
	if err != nil {
		return nil, err
	}
	return s.bind(s.db, scope, false), nil
}

// InTx runs fn in one transaction with repositories bound to it. Membership reads take a
// share lock on postgres, so a role change cannot commit between a check and the act.
func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context, r *Repos) error) error {
	scope, err := tenancy.FromContext(ctx)
	if err != nil {
		return err
	}
	return db.WithTx(ctx, s.db, nil, func(ctx context.Context, tx *sqlx.Tx) error {
		return fn(ctx, s.bind(tx, scope, s.dialect == tenancy.DialectPostgres))
	})
}

func (s *Store) bind(q DBTX, scope tenancy.Scope, lock bool) *Repos {
	return &Repos{
		Scope:        scope,
		Tenants:      NewTenantRepository(q),
		Users:        NewUserRepository(q),
		StoredFiles:  NewStoredFileRepository(q),
		Memberships:  &membershipRepository{q: q, scope: scope, lock: lock},
		Groups:       &groupRepository{q: q, scope: scope},
		Folders:      &folderRepository{q: q, scope: scope},
		FolderACLs:   &aclRepository{q: q, scope: scope, table: tenancy.TableFolderACLs, targetColumn: "folder_id"},
		Documents:    &documentRepository{q: q, scope: scope},
		DocumentACLs: &aclRepository{q: q, scope: scope, table: tenancy.TableDocumentACLs, targetColumn: "document_id"},
		AuditLogs:    &auditLogRepository{q: q, scope: scope},
	}
}
