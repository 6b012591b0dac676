package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"text/template"

	"github.com/jmoiron/sqlx"
	"github.com/pressly/goose/v3"

	"github.com/templui/docvault/internal/tenancy"
)

// Tenant-owned tables. Rendered once into the default namespace by migration 00002 and
// once per schema-isolated tenant at provisioning time.
// TODO: re-render into existing tenant namespaces when a later migration changes these tables.
const tenantTablesDDL = `
CREATE TABLE IF NOT EXISTS {{t "memberships"}} (
    id TEXT PRIMARY KEY,
    tenant_id TEXT NOT NULL,
    user_id TEXT NOT NULL,
    role TEXT NOT NULL CHECK (role IN ('admin', 'editor', 'viewer')),
    created_at TIMESTAMP NOT NULL,
    UNIQUE (tenant_id, user_id)
);

CREATE TABLE IF NOT EXISTS {{t "user_groups"}} (
    id TEXT PRIMARY KEY,
    tenant_id TEXT NOT NULL,
    name TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL,
    UNIQUE (tenant_id, name)
);

CREATE TABLE IF NOT EXISTS {{t "group_members"}} (
    group_id TEXT NOT NULL,
    user_id TEXT NOT NULL,
    tenant_id TEXT NOT NULL,
    PRIMARY KEY (group_id, user_id)
);

CREATE INDEX IF NOT EXISTS {{i "group_members_user_idx"}} ON {{t "group_members"}} (tenant_id, user_id);

CREATE TABLE IF NOT EXISTS {{t "folders"}} (
    id TEXT PRIMARY KEY,
    tenant_id TEXT NOT NULL,
    parent_id TEXT,
    name TEXT NOT NULL,
    owner_id TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL
);

CREATE UNIQUE INDEX IF NOT EXISTS {{i "folders_sibling_name_idx"}} ON {{t "folders"}} (tenant_id, COALESCE(parent_id, ''), name);
CREATE INDEX IF NOT EXISTS {{i "folders_parent_idx"}} ON {{t "folders"}} (parent_id);

CREATE TABLE IF NOT EXISTS {{t "folder_acls"}} (
    id TEXT PRIMARY KEY,
    tenant_id TEXT NOT NULL,
    folder_id TEXT NOT NULL,
    user_id TEXT,
    group_id TEXT,
    permission TEXT NOT NULL CHECK (permission IN ('read', 'write', 'delete')),
    granted_by TEXT NOT NULL,
    granted_at TIMESTAMP NOT NULL,
    CHECK ((user_id IS NULL) <> (group_id IS NULL))
);

CREATE INDEX IF NOT EXISTS {{i "folder_acls_folder_idx"}} ON {{t "folder_acls"}} (folder_id);

CREATE TABLE IF NOT EXISTS {{t "documents"}} (
    id TEXT PRIMARY KEY,
    tenant_id TEXT NOT NULL,
    folder_id TEXT,
    stored_file_id TEXT NOT NULL,
    title TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    tags TEXT NOT NULL DEFAULT '',
    original_filename TEXT NOT NULL,
    owner_id TEXT NOT NULL,
    uploaded_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS {{i "documents_folder_idx"}} ON {{t "documents"}} (folder_id);
CREATE INDEX IF NOT EXISTS {{i "documents_stored_file_idx"}} ON {{t "documents"}} (stored_file_id);

CREATE TABLE IF NOT EXISTS {{t "document_acls"}} (
    id TEXT PRIMARY KEY,
    tenant_id TEXT NOT NULL,
    document_id TEXT NOT NULL,
    user_id TEXT,
    group_id TEXT,
    permission TEXT NOT NULL CHECK (permission IN ('read', 'download', 'edit', 'delete')),
    granted_by TEXT NOT NULL,
    granted_at TIMESTAMP NOT NULL,
    CHECK ((user_id IS NULL) <> (group_id IS NULL))
);

CREATE INDEX IF NOT EXISTS {{i "document_acls_document_idx"}} ON {{t "document_acls"}} (document_id);

CREATE TABLE IF NOT EXISTS {{t "audit_logs"}} (
    id TEXT PRIMARY KEY,
    tenant_id TEXT NOT NULL,
    actor_id TEXT NOT NULL,
    action TEXT NOT NULL,
    target_type TEXT NOT NULL,
    target_id TEXT NOT NULL,
    outcome TEXT NOT NULL CHECK (outcome IN ('success', 'denied', 'failure')),
    detail TEXT NOT NULL DEFAULT '',
    ip_address TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS {{i "audit_logs_created_idx"}} ON {{t "audit_logs"}} (tenant_id, created_at);
`

var tenantTablesTemplate = template.Must(template.New("tenant_tables").Funcs(template.FuncMap{
	// Placeholders, replaced per render.
	"t": func(string) string { return "" },
	"i": func(string) string { return "" },
}).Parse(tenantTablesDDL))

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// TenantTablesDDL renders the tenant-owned tables for namespace. The empty namespace is
// the shared one used by filter-isolated tenants.
func TenantTablesDDL(dialect tenancy.Dialect, namespace string) ([]string, error) {
	if namespace != "" {
		if err := tenancy.ValidateNamespace(namespace); err != nil {
			return nil, err
		}
	}

	tmpl, err := tenantTablesTemplate.Clone()
	if err != nil {
		return nil, err
	}
	tmpl.Funcs(template.FuncMap{
		"t": func(table string) string { return dialect.Qualify(namespace, table) },
		"i": func(name string) string { return dialect.IndexName(namespace, name) },
	})

	var b strings.Builder
	if err := tmpl.Execute(&b, nil); err != nil {
		return nil, fmt.Errorf("failed to render tenant tables: %w", err)
	}

	var stmts []string
	for _, stmt := range strings.Split(b.String(), ";") {
		if stmt = strings.TrimSpace(stmt); stmt != "" {
			stmts = append(stmts, stmt)
		}
	}
	return stmts, nil
}

func createTenantTables(ctx context.Context, exec execer, dialect tenancy.Dialect, namespace string) error {
	stmts, err := TenantTablesDDL(dialect, namespace)
	if err != nil {
		return err
	}
	for _, stmt := range stmts {
		if _, err := exec.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create tenant table: %w", err)
		}
	}
	return nil
}

// CreateNamespace provisions a dedicated namespace for a schema-isolated tenant.
// Safe to call again for an existing namespace.
func CreateNamespace(ctx context.Context, db *sqlx.DB, namespace string) error {
	if err := tenancy.ValidateNamespace(namespace); err != nil {
		return err
	}
	dialect := tenancy.DialectFor(db.DriverName())

	return WithTx(ctx, db, nil, func(ctx context.Context, tx *sqlx.Tx) error {
		if dialect == tenancy.DialectPostgres {
			_, err := tx.ExecContext(ctx, `CREATE SCHEMA IF NOT EXISTS "`+namespace+`"`)
			if err != nil {
				return fmt.Errorf("failed to create schema: %w", err)
			}
		}
		return createTenantTables(ctx, tx, dialect, namespace)
	})
}

func init() {
	// The default namespace needs no qualification, so the rendered DDL is the same
	// for every dialect and can run as a plain Go migration.
	goose.AddNamedMigrationContext("00002_tenant_tables.go",
		func(ctx context.Context, tx *sql.Tx) error {
			return createTenantTables(ctx, tx, tenancy.DialectSQLite, "")
		},
		func(ctx context.Context, tx *sql.Tx) error {
			for i := len(tenancy.TenantTables) - 1; i >= 0; i-- {
				if _, err := tx.ExecContext(ctx, "DROP TABLE IF EXISTS "+tenancy.TenantTables[i]); err != nil {
					return err
				}
			}
			return nil
		},
	)
}
