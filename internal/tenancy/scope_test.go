package tenancy

import (
	"context"
	"testing"

	sq "github.com/Masterminds/squirrel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/templui/docvault/internal/model"
)

func filterTenant() *model.Tenant {
	return &model.Tenant{ID: "t1", Slug: "acme", SchemaName: "acme", IsolationMode: model.IsolationFilter}
}

func schemaTenant() *model.Tenant {
	return &model.Tenant{ID: "t1", Slug: "acme", SchemaName: "acme", IsolationMode: model.IsolationSchema}
}

func TestNew_SelectsStrategyFromTenant(t *testing.T) {
	assert.IsType(t, &filterScope{}, New(filterTenant(), DialectSQLite))
	assert.IsType(t, &schemaScope{}, New(schemaTenant(), DialectSQLite))
}

func TestFilterScope_InjectsTenantPredicate(t *testing.T) {
	s := New(filterTenant(), DialectSQLite)

	query, args, err := s.Select(TableFolders, "id", "name").Where(sq.Eq{"parent_id": nil}).ToSql()
	require.NoError(t, err)
	assert.Equal(t, "SELECT id, name FROM folders WHERE folders.tenant_id = $1 AND parent_id IS NULL", query)
	assert.Equal(t, []any{"t1"}, args)

	query, args, err = s.Update(TableFolders).Set("name", "x").Where(sq.Eq{"id": "f1"}).ToSql()
	require.NoError(t, err)
	assert.Equal(t, "UPDATE folders SET name = $1 WHERE tenant_id = $2 AND id = $3", query)
	assert.Equal(t, []any{"x", "t1", "f1"}, args)

	query, args, err = s.Delete(TableFolders).Where(sq.Eq{"id": "f1"}).ToSql()
	require.NoError(t, err)
	assert.Equal(t, "DELETE FROM folders WHERE tenant_id = $1 AND id = $2", query)
	assert.Equal(t, []any{"t1", "f1"}, args)
}

func TestScopes_InsertAlwaysCarriesTenantID(t *testing.T) {
	for _, tenant := range []*model.Tenant{filterTenant(), schemaTenant()} {
		s := New(tenant, DialectSQLite)
		query, args, err := s.Insert(TableFolders, map[string]any{"id": "f1", "name": "reports"}).ToSql()
		require.NoError(t, err)
		assert.Contains(t, query, "(id,name,tenant_id)")
		assert.Equal(t, []any{"f1", "reports", "t1"}, args)
	}
}

func TestSchemaScope_QualifiesTables(t *testing.T) {
	sqlite := New(schemaTenant(), DialectSQLite)
	query, args, err := sqlite.Select(TableFolders, "id").ToSql()
	require.NoError(t, err)
	assert.Equal(t, "SELECT id FROM acme__folders AS folders", query)
	assert.Empty(t, args)

	pg := New(schemaTenant(), DialectPostgres)
	query, _, err = pg.Delete(TableDocuments).Where(sq.Eq{"id": "d1"}).ToSql()
	require.NoError(t, err)
	assert.Equal(t, `DELETE FROM "acme".documents WHERE id = $1`, query)
}

func TestDialect_IndexName(t *testing.T) {
	assert.Equal(t, "folders_parent_idx", DialectSQLite.IndexName("", "folders_parent_idx"))
	assert.Equal(t, "acme__folders_parent_idx", DialectSQLite.IndexName("acme", "folders_parent_idx"))
	assert.Equal(t, "folders_parent_idx", DialectPostgres.IndexName("acme", "folders_parent_idx"))
}

func TestValidateNamespace(t *testing.T) {
	require.NoError(t, ValidateNamespace("acme"))
	require.NoError(t, ValidateNamespace("tenant_42"))

	for _, bad := range []string{"", "Acme", "1acme", "ac-me", `acme"; drop`, "a__b", "public", "pg_temp"} {
		assert.Error(t, ValidateNamespace(bad), bad)
	}
}

func TestContext_RoundTrip(t *testing.T) {
	_, err := FromContext(context.Background())
	require.ErrorIs(t, err, ErrNoScope)

	s := New(filterTenant(), DialectSQLite)
	got, err := FromContext(WithScope(context.Background(), s))
	require.NoError(t, err)
	assert.Equal(t, "t1", got.Tenant().ID)
}
