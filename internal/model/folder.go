package model

import (
	"time"
)

type Folder struct {
	ID        string    `db:"id" json:"id"`
	TenantID  string    `db:"tenant_id" json:"tenant_id"`
	ParentID  *string   `db:"parent_id" json:"parent_id"` // nil for root folders
	Name      string    `db:"name" json:"name"`
	OwnerID   string    `db:"owner_id" json:"owner_id"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

func (f *Folder) IsRoot() bool {
	return f.ParentID == nil
}
