package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("APP_ENV", "development")
	t.Setenv("JWT_SECRET", "secret")

	cfg := Load()
	require.NotNil(t, cfg)

	assert.Equal(t, "sqlite", cfg.DBDriver)
	assert.True(t, cfg.AutoMigrate)
	assert.Equal(t, int64(50<<20), cfg.MaxUploadSize)
	assert.Equal(t, UniquenessGlobal, cfg.UniquenessPolicy)
	assert.Equal(t, StorageDriverLocal, cfg.StorageDriver)
	assert.Equal(t, 24*time.Hour, cfg.JWTExpiry)
	assert.Contains(t, cfg.AllowedFileTypes, "pdf")
	assert.Empty(t, cfg.AllowedMimeTypes)
	assert.True(t, cfg.IsDevelopment())
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("APP_ENV", "development")
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("MAX_UPLOAD_SIZE", "1024")
	t.Setenv("ALLOWED_FILE_TYPES", " .PDF, txt ,,")
	t.Setenv("UNIQUENESS_POLICY", "PER_TENANT")
	t.Setenv("DB_AUTO_MIGRATE", "false")

	cfg := Load()

	assert.Equal(t, int64(1024), cfg.MaxUploadSize)
	assert.Equal(t, []string{"pdf", "txt"}, cfg.AllowedFileTypes)
	assert.Equal(t, UniquenessPerTenant, cfg.UniquenessPolicy)
	assert.False(t, cfg.AutoMigrate)
}

func TestLoad_InvalidValuesFallBack(t *testing.T) {
	t.Setenv("APP_ENV", "development")
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("MAX_UPLOAD_SIZE", "-3")
	t.Setenv("UNIQUENESS_POLICY", "sometimes")
	t.Setenv("STORAGE_DRIVER", "floppy")
	t.Setenv("JWT_EXPIRY", "soon")

	cfg := Load()

	assert.Equal(t, int64(50<<20), cfg.MaxUploadSize)
	assert.Equal(t, UniquenessGlobal, cfg.UniquenessPolicy)
	assert.Equal(t, StorageDriverLocal, cfg.StorageDriver)
	assert.Equal(t, 24*time.Hour, cfg.JWTExpiry)
}

func TestSanitized_DropsSecrets(t *testing.T) {
	cfg := &Config{
		AppName:     "DocVault",
		JWTSecret:   "top-secret",
		S3SecretKey: "s3-secret",
		S3AccessKey: "s3-access",
		SentryDSN:   "https://dsn",
	}

	s := cfg.Sanitized()

	assert.Equal(t, "DocVault", s.AppName)
	assert.Empty(t, s.JWTSecret)
	assert.Empty(t, s.S3SecretKey)
	assert.Empty(t, s.S3AccessKey)
	assert.Empty(t, s.SentryDSN)
}
