package model

import (
	"time"
)

const (
	ActionTenantProvision  = "tenant.provision"
	ActionTenantActivate   = "tenant.activate"
	ActionTenantDeactivate = "tenant.deactivate"
	ActionMemberAdd        = "member.add"
	ActionMemberRole       = "member.role"
	ActionMemberRemove     = "member.remove"
	ActionMemberList       = "member.list"
	ActionGroupCreate      = "group.create"
	ActionGroupAdd         = "group.add"
	ActionGroupRemove      = "group.remove"
	ActionGroupList        = "group.list"
	ActionFolderCreate     = "folder.create"
	ActionFolderView       = "folder.view"
	ActionFolderMove       = "folder.move"
	ActionFolderRename     = "folder.rename"
	ActionFolderDelete     = "folder.delete"
	ActionFolderGrant      = "folder.grant"
	ActionFolderRevoke     = "folder.revoke"
	ActionFolderACL        = "folder.acl"
	ActionUpload           = "document.upload"
	ActionView             = "document.view"
	ActionDownload         = "document.download"
	ActionEdit             = "document.edit"
	ActionDelete           = "document.delete"
	ActionDocumentGrant    = "document.grant"
	ActionDocumentRevoke   = "document.revoke"
	ActionDocumentACL      = "document.acl"
	ActionDocumentList     = "document.list"
	ActionAuditView        = "audit.view"
)

const (
	OutcomeSuccess = "success"
	OutcomeDenied  = "denied"
	OutcomeFailure = "failure"
)

// AuditLog is append-only: rows are inserted and never updated or deleted.
type AuditLog struct {
	ID         string    `db:"id" json:"id"`
	TenantID   string    `db:"tenant_id" json:"tenant_id"`
	ActorID    string    `db:"actor_id" json:"actor_id"`
	Action     string    `db:"action" json:"action"`
	TargetType string    `db:"target_type" json:"target_type"`
	TargetID   string    `db:"target_id" json:"target_id"`
	Outcome    string    `db:"outcome" json:"outcome"`
	Detail     string    `db:"detail" json:"detail"`
	IPAddress  string    `db:"ip_address" json:"ip_address"` // Empty for operator CLI actions
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}
