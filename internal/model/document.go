package model

import (
	"strings"
	"time"
)

// ScopeGlobal is the stored file scope key used under the global uniqueness policy.
const ScopeGlobal = "*"

// StoredFile is the physical, content-addressed unit. Documents point at it.
type StoredFile struct {
	ID         string    `db:"id" json:"id"`
	Checksum   string    `db:"checksum" json:"checksum"`   // SHA-256, hex
	ScopeKey   string    `db:"scope_key" json:"scope_key"` // ScopeGlobal or the owning tenant id
	Size       int64     `db:"size" json:"size"`
	MimeType   string    `db:"mime_type" json:"mime_type"`
	StorageKey string    `db:"storage_key" json:"-"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

type Document struct {
	ID               string    `db:"id" json:"id"`
	TenantID         string    `db:"tenant_id" json:"tenant_id"`
	FolderID         *string   `db:"folder_id" json:"folder_id"`
	StoredFileID     string    `db:"stored_file_id" json:"stored_file_id"`
	Title            string    `db:"title" json:"title"`
	Description      string    `db:"description" json:"description"`
	Tags             string    `db:"tags" json:"tags"` // Comma-separated
	OriginalFilename string    `db:"original_filename" json:"original_filename"`
	OwnerID          string    `db:"owner_id" json:"owner_id"`
	UploadedAt       time.Time `db:"uploaded_at" json:"uploaded_at"`
	UpdatedAt        time.Time `db:"updated_at" json:"updated_at"`
}

// TagList returns the trimmed, non-empty tags.
func (d *Document) TagList() []string {
	var tags []string
	for _, t := range strings.Split(d.Tags, ",") {
		t = strings.TrimSpace(t)
		if t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}

// JoinTags normalizes a tag list into the stored comma-separated form.
func JoinTags(tags []string) string {
	var clean []string
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t != "" {
			clean = append(clean, t)
		}
	}
	return strings.Join(clean, ",")
}
