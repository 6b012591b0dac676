package tenancy

import (
	"fmt"
	"regexp"
	"strings"
)

// Dialect decides how a namespace-qualified table name is spelled.
// SQLite has no schemas, so a namespace becomes a table name prefix there.
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "pgx"
)

func DialectFor(driver string) Dialect {
	if driver == string(DialectPostgres) || driver == "postgres" {
		return DialectPostgres
	}
	return DialectSQLite
}

var namespacePattern = regexp.MustCompile(`^[a-z][a-z0-9_]{0,47}$`)

// ValidateNamespace rejects names that could not be used verbatim as an identifier.
// Namespaces are interpolated into SQL, so this is the only gate.
func ValidateNamespace(ns string) error {
	if !namespacePattern.MatchString(ns) || strings.Contains(ns, "__") {
		return fmt.Errorf("invalid namespace %q", ns)
	}
	if ns == "public" || strings.HasPrefix(ns, "pg_") {
		return fmt.Errorf("reserved namespace %q", ns)
	}
	return nil
}

// Qualify returns the name of table inside namespace. The empty namespace is the default one.
func (d Dialect) Qualify(namespace, table string) string {
	if namespace == "" {
		return table
	}
	if d == DialectPostgres {
		return `"` + namespace + `".` + table
	}
	return namespace + "__" + table
}

// IndexName returns an index name that is unique for the namespace. Postgres scopes
// index names to the table's schema, SQLite scopes them to the database.
func (d Dialect) IndexName(namespace, name string) string {
	if namespace == "" || d == DialectPostgres {
		return name
	}
	return namespace + "__" + name
}
