package config

import (
	"fmt"
)

// WithPort sets the server port
func WithPort(port string) Option {
	return func(c *ServerConfig) error {
		if port == "" {
			return fmt.Errorf("port cannot be empty")
		}
		c.Port = port
		return nil
	}
}

// WithEnvironment sets the environment (development, production, testing)
func WithEnvironment(env string) Option {
	return func(c *ServerConfig) error {
		if env == "" {
			return fmt.Errorf("environment cannot be empty")
		}
		c.Environment = env
		return nil
	}
}

// WithLogLevel sets the slog level name (debug, info, warn, error)
func WithLogLevel(level string) Option {
	return func(c *ServerConfig) error {
		c.LogLevel = level
		return nil
	}
}

// WithDatabase configures the database backend
func WithDatabase(dbType, url string) Option {
	return func(c *ServerConfig) error {
		if dbType != "memory" && dbType != "postgres" {
			return fmt.Errorf("database type must be 'memory' or 'postgres', got: %s", dbType)
		}
		if dbType == "postgres" && url == "" {
			return fmt.Errorf("database URL is required for postgres")
		}
		c.DatabaseType = dbType
		c.DatabaseURL = url
		return nil
	}
}

// WithDatabaseSchema sets the database schema (for Postgres)
func WithDatabaseSchema(schema string) Option {
	return func(c *ServerConfig) error {
		c.DBSchema = schema
		return nil
	}
}

// WithMigrations toggles running migrations when the service is built
func WithMigrations(enabled bool) Option {
	return func(c *ServerConfig) error {
		c.RunMigrations = enabled
		return nil
	}
}

// WithMemoryStorage keeps blobs in process memory
func WithMemoryStorage() Option {
	return func(c *ServerConfig) error {
		c.StorageType = "memory"
		return nil
	}
}

// WithFilesystemStorage stores blobs under baseDir
func WithFilesystemStorage(baseDir string) Option {
	return func(c *ServerConfig) error {
		if baseDir == "" {
			return fmt.Errorf("filesystem base directory cannot be empty")
		}
		c.StorageType = "fs"
		c.UploadDir = baseDir
		return nil
	}
}

// WithS3Storage stores blobs in an S3 bucket
func WithS3Storage(s3 S3Config) Option {
	return func(c *ServerConfig) error {
		if s3.Bucket == "" {
			return fmt.Errorf("s3 bucket cannot be empty")
		}
		if s3.Region == "" {
			s3.Region = "us-east-1"
		}
		if s3.SSEAlgorithm == "" {
			s3.SSEAlgorithm = "AES256"
		}
		c.StorageType = "s3"
		c.S3 = s3
		return nil
	}
}

// WithKeyLayout selects how blob keys are derived from file ids
func WithKeyLayout(layout string) Option {
	return func(c *ServerConfig) error {
		c.KeyLayout = layout
		return nil
	}
}

// WithChunkSize sets the upload copy chunk size in bytes
func WithChunkSize(size int) Option {
	return func(c *ServerConfig) error {
		if size <= 0 {
			return fmt.Errorf("chunk size must be positive, got: %d", size)
		}
		c.ChunkSize = size
		return nil
	}
}

// WithSniffLimit sets how many leading bytes are read for type detection
func WithSniffLimit(limit int) Option {
	return func(c *ServerConfig) error {
		if limit <= 0 {
			return fmt.Errorf("sniff limit must be positive, got: %d", limit)
		}
		c.SniffLimit = limit
		return nil
	}
}

// WithMaxUploadBytes caps request bodies. Zero disables the cap.
func WithMaxUploadBytes(limit int64) Option {
	return func(c *ServerConfig) error {
		if limit < 0 {
			return fmt.Errorf("max upload bytes cannot be negative, got: %d", limit)
		}
		c.MaxUploadBytes = limit
		return nil
	}
}

// WithEventLogging toggles the logging event sink
func WithEventLogging(enabled bool) Option {
	return func(c *ServerConfig) error {
		c.EnableEventLogging = enabled
		return nil
	}
}

// WithMetrics toggles the Prometheus metrics endpoint and sink
func WithMetrics(enabled bool) Option {
	return func(c *ServerConfig) error {
		c.EnableMetrics = enabled
		return nil
	}
}
