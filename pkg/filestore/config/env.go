package config

import (
	"fmt"
	"strings"

	"github.com/ilyakaznacheev/cleanenv"
)

// FromEnv reads a ServerConfig from environment variables, falling back to
// the env-default tag of each field.
//
// Server:
//
//	PORT, ENVIRONMENT, LOG_LEVEL, SHUTDOWN_TIMEOUT
//
// Database:
//
//	DATABASE_TYPE (memory|postgres), DATABASE_URL, DB_SCHEMA, RUN_MIGRATIONS
//
// Storage:
//
//	STORAGE_TYPE (fs|memory|s3, default fs), UPLOAD_DIR, BLOB_KEY_LAYOUT (flat|sharded|hashed)
//	S3_REGION, S3_BUCKET, S3_PREFIX, S3_ENDPOINT, S3_ACCESS_KEY_ID, ...
//
// Uploads:
//
//	UPLOAD_CHUNK_SIZE, CONTENT_SNIFF_LIMIT, MAX_UPLOAD_BYTES
//
// A postgres:// or postgresql:// DATABASE_URL implies DATABASE_TYPE=postgres.
func FromEnv() (*ServerConfig, error) {
	var cfg ServerConfig
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("failed to read environment: %w", err)
	}

	if cfg.DatabaseType == "memory" && isPostgresURL(cfg.DatabaseURL) {
		cfg.DatabaseType = "postgres"
	}
	cfg.StorageType = strings.ToLower(strings.TrimSpace(cfg.StorageType))

	return &cfg, nil
}

// Usage describes every environment variable the server reads
func Usage() (string, error) {
	var cfg ServerConfig
	return cleanenv.GetDescription(&cfg, nil)
}

func isPostgresURL(url string) bool {
	return strings.HasPrefix(url, "postgres://") || strings.HasPrefix(url, "postgresql://")
}
