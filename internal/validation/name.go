package validation

import (
	"strings"
)

// ValidateName validates a display name: group names, tenant names, document titles.
func ValidateName(name string) error {
	trimmed := strings.TrimSpace(name)

	if trimmed == "" {
		return invalid("name is required")
	}

	if len(trimmed) > 255 {
		return invalid("name is too long (max 255 characters)")
	}

	return nil
}

// ValidateFolderName additionally rejects path separators and dot names.
func ValidateFolderName(name string) error {
	if err := ValidateName(name); err != nil {
		return err
	}
	trimmed := strings.TrimSpace(name)
	if strings.ContainsAny(trimmed, `/\`) {
		return invalid("folder name cannot contain slashes")
	}
	if trimmed == "." || trimmed == ".." {
		return invalid("invalid folder name")
	}
	return nil
}

// ValidateSlug validates a tenant routing key: lowercase letters, digits and hyphens,
// starting with a letter.
func ValidateSlug(slug string) error {
	if slug == "" {
		return invalid("slug is required")
	}
	if len(slug) > 48 {
		return invalid("slug is too long (max 48 characters)")
	}
	for i, r := range slug {
		switch {
		case r >= 'a' && r <= 'z':
		case (r >= '0' && r <= '9') || r == '-':
			if i == 0 {
				return invalid("slug must start with a letter")
			}
		default:
			return invalid("slug may only contain lowercase letters, digits and hyphens")
		}
	}
	if strings.HasSuffix(slug, "-") {
		return invalid("slug cannot end with a hyphen")
	}
	return nil
}
