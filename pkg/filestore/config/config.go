package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tendant/simple-filestore/pkg/filestore"
	"github.com/tendant/simple-filestore/pkg/filestore/objectkey"
	memoryrepo "github.com/tendant/simple-filestore/pkg/filestore/repo/memory"
	repopg "github.com/tendant/simple-filestore/pkg/filestore/repo/postgres"
	fsstorage "github.com/tendant/simple-filestore/pkg/filestore/storage/fs"
	memorystorage "github.com/tendant/simple-filestore/pkg/filestore/storage/memory"
	s3storage "github.com/tendant/simple-filestore/pkg/filestore/storage/s3"
)

// Option applies configuration to a ServerConfig instance.
type Option func(*ServerConfig) error

// ServerConfig represents server configuration for the filestore service
type ServerConfig struct {
	Port            string        `env:"PORT" env-default:"8080"`
	Environment     string        `env:"ENVIRONMENT" env-default:"development"` // development, production, testing
	LogLevel        string        `env:"LOG_LEVEL" env-default:"info"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" env-default:"15s"`

	// Database configuration
	DatabaseType  string `env:"DATABASE_TYPE" env-default:"memory"` // "memory", "postgres"
	DatabaseURL   string `env:"DATABASE_URL"`
	DBSchema      string `env:"DB_SCHEMA" env-default:"filestore"` // Postgres schema to use
	RunMigrations bool   `env:"RUN_MIGRATIONS" env-default:"false"`

	// Storage configuration
	StorageType string   `env:"STORAGE_TYPE" env-default:"fs"` // "memory", "fs", "s3"
	UploadDir   string   `env:"UPLOAD_DIR" env-default:"./data/uploads"`
	KeyLayout   string   `env:"BLOB_KEY_LAYOUT" env-default:"flat"`
	S3          S3Config `env-prefix:"S3_"`

	// Upload options
	ChunkSize      int   `env:"UPLOAD_CHUNK_SIZE" env-default:"5242880"`
	SniffLimit     int   `env:"CONTENT_SNIFF_LIMIT" env-default:"20000"`
	MaxUploadBytes int64 `env:"MAX_UPLOAD_BYTES" env-default:"0"`

	// Server options
	EnableEventLogging bool `env:"ENABLE_EVENT_LOGGING" env-default:"true"`
	EnableMetrics      bool `env:"ENABLE_METRICS" env-default:"true"`
}

// S3Config is read from S3_* variables
type S3Config struct {
	Region                 string `env:"REGION" env-default:"us-east-1"`
	Bucket                 string `env:"BUCKET"`
	Prefix                 string `env:"PREFIX"`
	AccessKeyID            string `env:"ACCESS_KEY_ID"`
	SecretAccessKey        string `env:"SECRET_ACCESS_KEY"`
	Endpoint               string `env:"ENDPOINT"`
	UsePathStyle           bool   `env:"USE_PATH_STYLE" env-default:"false"`
	PartSize               int64  `env:"PART_SIZE" env-default:"0"`
	EnableSSE              bool   `env:"ENABLE_SSE" env-default:"false"`
	SSEAlgorithm           string `env:"SSE_ALGORITHM" env-default:"AES256"`
	SSEKMSKeyID            string `env:"SSE_KMS_KEY_ID"`
	CreateBucketIfNotExist bool   `env:"CREATE_BUCKET" env-default:"false"`
}

// Load reads the environment, applies opts on top and validates the result.
func Load(opts ...Option) (*ServerConfig, error) {
	cfg, err := FromEnv()
	if err != nil {
		return nil, err
	}

	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate validates the server configuration
func (c *ServerConfig) Validate() error {
	if c.Port == "" {
		return errors.New("port is required")
	}

	if c.DatabaseType != "memory" && c.DatabaseType != "postgres" {
		return errors.New("database_type must be 'memory' or 'postgres'")
	}

	if c.DatabaseType == "postgres" && c.DatabaseURL == "" {
		return errors.New("database_url is required when using postgres")
	}

	switch c.StorageType {
	case "memory":
	case "fs":
		if c.UploadDir == "" {
			return errors.New("upload_dir is required when using fs storage")
		}
	case "s3":
		if c.S3.Bucket == "" {
			return errors.New("s3 bucket is required when using s3 storage")
		}
	default:
		return fmt.Errorf("unsupported storage type: %s", c.StorageType)
	}

	if _, err := objectkey.New(c.KeyLayout); err != nil {
		return err
	}
	if c.ChunkSize <= 0 {
		return fmt.Errorf("upload chunk size must be positive, got: %d", c.ChunkSize)
	}
	if c.SniffLimit <= 0 {
		return fmt.Errorf("content sniff limit must be positive, got: %d", c.SniffLimit)
	}
	if _, err := c.SlogLevel(); err != nil {
		return err
	}

	return nil
}

// IsProduction reports whether the environment is production
func (c *ServerConfig) IsProduction() bool {
	return strings.EqualFold(c.Environment, "production")
}

// SlogLevel parses LogLevel
func (c *ServerConfig) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if c.LogLevel == "" {
		return slog.LevelInfo, nil
	}
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid log level: %s", c.LogLevel)
	}
	return level, nil
}

// Backends are the storage components a ServerConfig describes.
type Backends struct {
	Repository filestore.Repository
	BlobStore  filestore.BlobStore
	Keys       filestore.KeyGenerator
}

// BuildBackends opens the repository and blob store and resolves the key
// layout. The returned cleanup releases database connections.
func (c *ServerConfig) BuildBackends(ctx context.Context, logger *slog.Logger) (*Backends, func(), error) {
	if logger == nil {
		logger = slog.Default()
	}
	cleanup := func() {}

	repo, closeRepo, err := c.buildRepository(ctx, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build repository: %w", err)
	}
	if closeRepo != nil {
		cleanup = closeRepo
	}

	store, err := c.buildStorageBackend(ctx)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("failed to build storage backend %s: %w", c.StorageType, err)
	}

	keys, err := objectkey.New(c.KeyLayout)
	if err != nil {
		cleanup()
		return nil, nil, err
	}

	return &Backends{Repository: repo, BlobStore: store, Keys: keys}, cleanup, nil
}

// BuildService creates a Service from the configuration. extra options are
// applied last, so callers can attach their own event sinks. The returned
// cleanup releases database connections.
func (c *ServerConfig) BuildService(ctx context.Context, logger *slog.Logger, extra ...filestore.Option) (filestore.Service, func(), error) {
	if logger == nil {
		logger = slog.Default()
	}

	backends, cleanup, err := c.BuildBackends(ctx, logger)
	if err != nil {
		return nil, nil, err
	}

	options := []filestore.Option{
		filestore.WithRepository(backends.Repository),
		filestore.WithBlobStore(backends.BlobStore),
		filestore.WithKeyGenerator(backends.Keys),
		filestore.WithDetector(filestore.NewMimeDetector(c.SniffLimit)),
		filestore.WithChunkSize(c.ChunkSize),
		filestore.WithLogger(logger),
	}
	if c.EnableEventLogging {
		options = append(options, filestore.WithEventSink(filestore.NewLoggingEventSink(logger)))
	}
	options = append(options, extra...)

	svc, err := filestore.New(options...)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	return svc, cleanup, nil
}

// buildRepository creates a Repository based on the configuration
func (c *ServerConfig) buildRepository(ctx context.Context, logger *slog.Logger) (filestore.Repository, func(), error) {
	switch c.DatabaseType {
	case "memory":
		return memoryrepo.New(), nil, nil
	case "postgres":
		pool, err := NewPool(ctx, c.DatabaseURL, c.DBSchema)
		if err != nil {
			return nil, nil, err
		}
		if c.RunMigrations {
			if err := EnsureSchema(ctx, pool, c.DBSchema); err != nil {
				pool.Close()
				return nil, nil, err
			}
			if err := repopg.Migrate(ctx, pool); err != nil {
				pool.Close()
				return nil, nil, fmt.Errorf("failed to run migrations: %w", err)
			}
			logger.Info("database migrations applied", "schema", c.DBSchema)
		}
		return repopg.NewWithPool(pool), pool.Close, nil
	default:
		return nil, nil, fmt.Errorf("unsupported database type: %s", c.DatabaseType)
	}
}

// buildStorageBackend creates a BlobStore based on the configuration
func (c *ServerConfig) buildStorageBackend(ctx context.Context) (filestore.BlobStore, error) {
	switch c.StorageType {
	case "memory":
		return memorystorage.New(), nil

	case "fs":
		return fsstorage.New(fsstorage.Config{
			BaseDir:   c.UploadDir,
			ChunkSize: c.ChunkSize,
		})

	case "s3":
		return s3storage.New(ctx, s3storage.Config{
			Region:                 c.S3.Region,
			Bucket:                 c.S3.Bucket,
			Prefix:                 c.S3.Prefix,
			AccessKeyID:            c.S3.AccessKeyID,
			SecretAccessKey:        c.S3.SecretAccessKey,
			Endpoint:               c.S3.Endpoint,
			UsePathStyle:           c.S3.UsePathStyle,
			PartSize:               c.S3.PartSize,
			EnableSSE:              c.S3.EnableSSE,
			SSEAlgorithm:           c.S3.SSEAlgorithm,
			SSEKMSKeyID:            c.S3.SSEKMSKeyID,
			CreateBucketIfNotExist: c.S3.CreateBucketIfNotExist,
		})

	default:
		return nil, fmt.Errorf("unsupported storage backend type: %s", c.StorageType)
	}
}

// NewPool opens a pgx pool whose sessions use schema as search_path.
func NewPool(ctx context.Context, databaseURL, schema string) (*pgxpool.Pool, error) {
	if databaseURL == "" {
		return nil, errors.New("database_url is required")
	}
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse DATABASE_URL: %w", err)
	}
	if schema != "" {
		cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
			_, err := conn.Exec(ctx, "SET search_path TO "+pgx.Identifier{schema}.Sanitize())
			return err
		}
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create pgx pool: %w", err)
	}
	return pool, nil
}

// EnsureSchema creates schema when it does not exist yet
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool, schema string) error {
	if schema == "" {
		return nil
	}
	if _, err := pool.Exec(ctx, "CREATE SCHEMA IF NOT EXISTS "+pgx.Identifier{schema}.Sanitize()); err != nil {
		return fmt.Errorf("failed to create schema %s: %w", schema, err)
	}
	return nil
}

// PingPostgres verifies connectivity to Postgres using the given schema.
func PingPostgres(databaseURL, schema string) error {
	pool, err := NewPool(context.Background(), databaseURL, schema)
	if err != nil {
		return err
	}
	defer pool.Close()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := pool.Ping(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	return nil
}
