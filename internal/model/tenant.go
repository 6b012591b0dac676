package model

import (
	"time"
)

type IsolationMode string

const (
	// IsolationSchema keeps the tenant's tables in a dedicated namespace.
	IsolationSchema IsolationMode = "schema"
	// IsolationFilter keeps the tenant's rows in shared tables, filtered by tenant_id.
	IsolationFilter IsolationMode = "filter"
)

func (m IsolationMode) Valid() bool {
	return m == IsolationSchema || m == IsolationFilter
}

type Tenant struct {
	ID            string        `db:"id" json:"id"`
	Name          string        `db:"name" json:"name"`
	Slug          string        `db:"slug" json:"slug"`               // Routing key: subdomain, header value or /t/{slug}
	SchemaName    string        `db:"schema_name" json:"schema_name"` // Namespace used in schema isolation mode
	IsolationMode IsolationMode `db:"isolation_mode" json:"isolation_mode"`
	Active        bool          `db:"active" json:"active"`
	CreatedAt     time.Time     `db:"created_at" json:"created_at"`
}
