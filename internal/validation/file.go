package validation

import (
	"errors"
	"fmt"
	"mime"
	"net/http"
	"path/filepath"
	"strings"
)

var (
	ErrFileTooLarge       = errors.New("file too large")
	ErrDisallowedFileType = errors.New("file type not allowed")
)

// FileConstraints defines validation rules for file uploads
type FileConstraints struct {
	AllowedMimeTypes  map[string]bool // empty allows any MIME type
	AllowedExtensions map[string]bool // without the leading dot
	MaxSize           int64
}

// NewFileConstraints builds constraints from configured lists.
func NewFileConstraints(extensions, mimeTypes []string, maxSize int64) FileConstraints {
	c := FileConstraints{
		AllowedMimeTypes:  map[string]bool{},
		AllowedExtensions: map[string]bool{},
		MaxSize:           maxSize,
	}
	for _, ext := range extensions {
		c.AllowedExtensions[strings.TrimPrefix(strings.ToLower(ext), ".")] = true
	}
	for _, m := range mimeTypes {
		c.AllowedMimeTypes[strings.ToLower(m)] = true
	}
	return c
}

// Extension returns the lowercased extension of filename without the dot.
func Extension(filename string) string {
	return strings.TrimPrefix(strings.ToLower(filepath.Ext(filename)), ".")
}

// CheckExtension rejects filenames whose extension is not allowed.
func (c FileConstraints) CheckExtension(filename string) error {
	ext := Extension(filename)
	if ext == "" || !c.AllowedExtensions[ext] {
		return fmt.Errorf("%w: extension %q", ErrDisallowedFileType, ext)
	}
	return nil
}

// CheckMimeType rejects a MIME type outside the allow-list, when one is configured.
func (c FileConstraints) CheckMimeType(mimeType string) error {
	if len(c.AllowedMimeTypes) == 0 {
		return nil
	}
	base, _, _ := mime.ParseMediaType(mimeType)
	if base == "" {
		base = mimeType
	}
	if !c.AllowedMimeTypes[strings.ToLower(base)] {
		return fmt.Errorf("%w: mime type %q", ErrDisallowedFileType, base)
	}
	return nil
}

// CheckSize rejects a known size over the limit.
func (c FileConstraints) CheckSize(size int64) error {
	if c.MaxSize > 0 && size > c.MaxSize {
		return fmt.Errorf("%w: maximum size is %d bytes", ErrFileTooLarge, c.MaxSize)
	}
	return nil
}

// DetectMimeType picks the declared content type when it is specific, then the type
// registered for the extension, then sniffs head (at most 512 bytes are used).
func DetectMimeType(filename, declared string, head []byte) string {
	if declared != "" && declared != "application/octet-stream" {
		if base, _, err := mime.ParseMediaType(declared); err == nil {
			return base
		}
	}
	if ext := filepath.Ext(filename); ext != "" {
		if t := mime.TypeByExtension(strings.ToLower(ext)); t != "" {
			base, _, _ := mime.ParseMediaType(t)
			return base
		}
	}
	if len(head) > 0 {
		base, _, _ := mime.ParseMediaType(http.DetectContentType(head))
		return base
	}
	return "application/octet-stream"
}
