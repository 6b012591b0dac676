package model

import (
	"time"
)

// ACLEntry grants one capability on a folder or document to either a user or a group.
// Folder and document grants live in separate tables; TargetID is the folder or document id.
type ACLEntry struct {
	ID         string     `db:"id" json:"id"`
	TenantID   string     `db:"tenant_id" json:"tenant_id"`
	TargetID   string     `db:"target_id" json:"target_id"`
	UserID     *string    `db:"user_id" json:"user_id"`
	GroupID    *string    `db:"group_id" json:"group_id"`
	Capability Capability `db:"permission" json:"capability"`
	GrantedBy  string     `db:"granted_by" json:"granted_by"`
	GrantedAt  time.Time  `db:"granted_at" json:"granted_at"`
}

// Principal names exactly one grantee: a user or a group.
type Principal struct {
	UserID  string
	GroupID string
}

func (p Principal) Valid() bool {
	return (p.UserID == "") != (p.GroupID == "")
}
