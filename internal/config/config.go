package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	UniquenessGlobal    = "global"
	UniquenessPerTenant = "per_tenant"

	StorageDriverLocal = "local"
	StorageDriverS3    = "s3"
)

type Config struct {
	// Application
	AppName string
	AppEnv  string
	Port    string

	// Database (optional driver switch via ENV, default: sqlite)
	DBDriver     string
	DBConnection string
	AutoMigrate  bool

	// Security
	JWTSecret string
	JWTExpiry time.Duration

	// Tenancy
	TenantHostSuffix     string // Stripped from Host before slug lookup, e.g. ".docvault.local"
	DefaultIsolationMode string // "filter" or "schema" for newly provisioned tenants

	// Uploads
	MaxUploadSize    int64
	AllowedFileTypes []string // Extensions without dot
	AllowedMimeTypes []string // Optional, empty = any
	UniquenessPolicy string   // "global" or "per_tenant", deployment-wide

	// Observability (optional)
	SentryDSN string

	// Storage
	StorageDriver   string
	StoragePath     string // Local driver root
	StagingPath     string // Temp area for in-flight uploads
	S3Region        string
	S3Bucket        string
	S3AccessKey     string
	S3SecretKey     string
	S3Endpoint      string        // Optional: for S3-compatible services (MinIO, R2, etc.)
	S3PresignExpiry time.Duration // Expiry for download links
}

func Load() *Config {
	// Load .env file if it exists
	err := godotenv.Load()
	if err != nil {
		slog.Info("no .env file found, using environment variables")
	}

	cfg := &Config{
		// Application
		AppName: envString("APP_NAME", "DocVault"),
		AppEnv:  envRequired("APP_ENV"), // Required: 'development' or 'production'
		Port:    envString("PORT", "8090"),

		// Database
		DBDriver:     envString("DB_DRIVER", "sqlite"),
		DBConnection: envString("DB_CONNECTION", "./data/docvault.db?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"),
		AutoMigrate:  envBool("DB_AUTO_MIGRATE", true),

		// Security
		JWTSecret: envRequired("JWT_SECRET"),
		JWTExpiry: envDuration("JWT_EXPIRY", 24*time.Hour),

		// Tenancy
		TenantHostSuffix:     envString("TENANT_HOST_SUFFIX", ".localhost"),
		DefaultIsolationMode: envOneOf("DEFAULT_ISOLATION_MODE", "filter", "filter", "schema"),

		// Uploads
		MaxUploadSize:    envInt64("MAX_UPLOAD_SIZE", 50<<20), // 50MB
		AllowedFileTypes: envList("ALLOWED_FILE_TYPES", []string{"pdf", "doc", "docx", "xls", "xlsx", "ppt", "pptx", "txt", "csv", "md", "png", "jpg", "jpeg", "gif"}),
		AllowedMimeTypes: envList("ALLOWED_MIME_TYPES", nil),
		UniquenessPolicy: envOneOf("UNIQUENESS_POLICY", UniquenessGlobal, UniquenessGlobal, UniquenessPerTenant),

		// Observability
		SentryDSN: envString("SENTRY_DSN", ""),

		// Storage
		StorageDriver:   envOneOf("STORAGE_DRIVER", StorageDriverLocal, StorageDriverLocal, StorageDriverS3),
		StoragePath:     envString("STORAGE_PATH", "./data/blobs"),
		StagingPath:     envString("STAGING_PATH", os.TempDir()),
		S3Region:        envString("S3_REGION", "us-east-1"),
		S3Bucket:        envString("S3_BUCKET", "docvault"),
		S3AccessKey:     envString("S3_ACCESS_KEY", ""),
		S3SecretKey:     envString("S3_SECRET_KEY", ""),
		S3Endpoint:      envString("S3_ENDPOINT", ""),
		S3PresignExpiry: envDuration("S3_PRESIGN_EXPIRY", 15*time.Minute),
	}

	if cfg.IsProduction() {
		validateProduction(cfg)
	}

	return cfg
}

// validateProduction ensures production deployments don't run on development defaults.
func validateProduction(cfg *Config) {
	if cfg.StorageDriver == StorageDriverS3 && (cfg.S3AccessKey == "" || cfg.S3SecretKey == "") {
		slog.Error("production deployment with s3 storage requires S3_ACCESS_KEY and S3_SECRET_KEY")
		os.Exit(1)
	}
	if len(cfg.JWTSecret) < 32 {
		slog.Error("production deployment requires JWT_SECRET of at least 32 characters")
		os.Exit(1)
	}
}

func envString(key, def string) string {
	value := os.Getenv(key)
	if value == "" {
		value = def
	}
	return value
}

func envBool(key string, def bool) bool {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		slog.Warn("config invalid bool, using default", "key", key, "value", v, "default", def)
		return def
	}
	return b
}

func envInt64(key string, def int64) int64 {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n <= 0 {
		slog.Warn("config invalid size, using default", "key", key, "value", v, "default", def)
		return def
	}
	return n
}

func envDuration(key string, def time.Duration) time.Duration {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		slog.Warn("config invalid duration, using default", "key", key, "value", v, "default", def)
		return def
	}
	return d
}

// envList reads a comma-separated list, lowercased and trimmed. Leading dots are dropped
// so ".pdf" and "pdf" are equivalent.
func envList(key string, def []string) []string {
	v, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(v) == "" {
		return def
	}
	var out []string
	for _, item := range strings.Split(v, ",") {
		item = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(item)), ".")
		if item != "" {
			out = append(out, item)
		}
	}
	return out
}

func envOneOf(key, def string, allowed ...string) string {
	v := strings.ToLower(envString(key, def))
	for _, a := range allowed {
		if v == a {
			return v
		}
	}
	slog.Warn("config invalid value, using default", "key", key, "value", v, "default", def, "allowed", allowed)
	return def
}

func envRequired(key string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	slog.Error("config required env var missing", "key", key)
	os.Exit(1)
	return ""
}

func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// Sanitized returns a copy of the config with only public/safe fields.
// All secrets and credentials are excluded.
func (c *Config) Sanitized() *Config {
	return &Config{
		AppName:          c.AppName,
		AppEnv:           c.AppEnv,
		Port:             c.Port,
		TenantHostSuffix: c.TenantHostSuffix,
		MaxUploadSize:    c.MaxUploadSize,
		AllowedFileTypes: c.AllowedFileTypes,
		AllowedMimeTypes: c.AllowedMimeTypes,
		UniquenessPolicy: c.UniquenessPolicy,
		StorageDriver:    c.StorageDriver,
		S3Endpoint:       c.S3Endpoint,
	}
}
