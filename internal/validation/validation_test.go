package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileConstraints_Extension(t *testing.T) {
	c := NewFileConstraints([]string{"pdf", ".TXT"}, nil, 10)

	require.NoError(t, c.CheckExtension("a.pdf"))
	require.NoError(t, c.CheckExtension("NOTES.txt"))
	assert.ErrorIs(t, c.CheckExtension("run.exe"), ErrDisallowedFileType)
	assert.ErrorIs(t, c.CheckExtension("README"), ErrDisallowedFileType)
}

func TestFileConstraints_MimeType(t *testing.T) {
	open := NewFileConstraints([]string{"pdf"}, nil, 10)
	require.NoError(t, open.CheckMimeType("anything/at-all"))

	strict := NewFileConstraints([]string{"pdf"}, []string{"application/pdf"}, 10)
	require.NoError(t, strict.CheckMimeType("application/pdf"))
	require.NoError(t, strict.CheckMimeType("Application/PDF; charset=binary"))
	assert.ErrorIs(t, strict.CheckMimeType("text/html"), ErrDisallowedFileType)
}

func TestFileConstraints_Size(t *testing.T) {
	c := NewFileConstraints(nil, nil, 10)
	require.NoError(t, c.CheckSize(10))
	assert.ErrorIs(t, c.CheckSize(11), ErrFileTooLarge)
}

func TestDetectMimeType(t *testing.T) {
	assert.Equal(t, "application/pdf", DetectMimeType("a.bin", "application/pdf", nil))
	assert.Equal(t, "application/pdf", DetectMimeType("a.pdf", "", nil))
	assert.Equal(t, "application/pdf", DetectMimeType("a.pdf", "application/octet-stream", nil))
	assert.Equal(t, "image/png", DetectMimeType("noext", "", []byte("\x89PNG\r\n\x1a\n")))
	assert.Equal(t, "application/octet-stream", DetectMimeType("noext", "", nil))
}

func TestValidateFolderName(t *testing.T) {
	require.NoError(t, ValidateFolderName("reports"))
	assert.Error(t, ValidateFolderName("  "))
	assert.Error(t, ValidateFolderName("a/b"))
	assert.Error(t, ValidateFolderName(".."))
}

func TestValidateSlug(t *testing.T) {
	require.NoError(t, ValidateSlug("acme"))
	require.NoError(t, ValidateSlug("acme-2"))
	for _, bad := range []string{"", "2acme", "-acme", "acme-", "Acme", "ac_me", "ac.me"} {
		assert.Error(t, ValidateSlug(bad), bad)
	}
}

func TestValidateEmail(t *testing.T) {
	require.NoError(t, ValidateEmail("ann@example.com"))
	assert.Error(t, ValidateEmail(""))
	assert.Error(t, ValidateEmail("not-an-email"))
}

func TestValidationErrorsMatchErrInvalid(t *testing.T) {
	assert.ErrorIs(t, ValidateName(""), ErrInvalid)
	assert.ErrorIs(t, ValidateSlug("Bad"), ErrInvalid)
	assert.ErrorIs(t, ValidateEmail("nope"), ErrInvalid)
	assert.Equal(t, "name is required", ValidateName(" ").Error())
}
