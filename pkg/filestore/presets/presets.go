// Package presets builds ready-to-use services for common environments.
package presets

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"testing"

	"github.com/tendant/simple-filestore/pkg/filestore"
	"github.com/tendant/simple-filestore/pkg/filestore/config"
	memoryrepo "github.com/tendant/simple-filestore/pkg/filestore/repo/memory"
	fsstorage "github.com/tendant/simple-filestore/pkg/filestore/storage/fs"
	memorystorage "github.com/tendant/simple-filestore/pkg/filestore/storage/memory"
)

// TestOwnerID owns the files seeded by WithTestFixtures
const TestOwnerID = "test-user"

// NewDevelopment returns a service backed by an in-memory repository and the
// filesystem under ./dev-data. The cleanup func removes the storage dir.
func NewDevelopment(opts ...DevelopmentOption) (filestore.Service, func(), error) {
	cfg := &devConfig{
		storageDir: "./dev-data",
		logger:     slog.Default(),
	}

	for _, opt := range opts {
		opt(cfg)
	}

	fsBackend, err := fsstorage.New(fsstorage.Config{BaseDir: cfg.storageDir})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create filesystem storage: %w", err)
	}

	svc, err := filestore.New(
		filestore.WithRepository(memoryrepo.New()),
		filestore.WithBlobStore(fsBackend),
		filestore.WithLogger(cfg.logger),
		filestore.WithEventSink(filestore.NewLoggingEventSink(cfg.logger)),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create service: %w", err)
	}

	cleanup := func() {
		os.RemoveAll(cfg.storageDir)
	}

	return svc, cleanup, nil
}

// NewTesting returns a fully in-memory service for tests
func NewTesting(t *testing.T, opts ...TestingOption) filestore.Service {
	t.Helper()
	cfg := &testConfig{}

	for _, opt := range opts {
		opt(cfg)
	}

	svc, err := filestore.New(
		filestore.WithRepository(memoryrepo.New()),
		filestore.WithBlobStore(memorystorage.New()),
	)
	if err != nil {
		t.Fatalf("failed to create test service: %v", err)
	}

	if cfg.fixtures {
		seedFixtures(t, svc)
	}

	return svc
}

// NewProduction builds the service from environment configuration and
// refuses in-memory backends. The cleanup func closes database connections.
func NewProduction(ctx context.Context, logger *slog.Logger, opts ...config.Option) (filestore.Service, func(), error) {
	cfg, err := config.Load(opts...)
	if err != nil {
		return nil, nil, err
	}

	if cfg.DatabaseType == "memory" {
		return nil, nil, fmt.Errorf("production preset requires DATABASE_TYPE=postgres (memory not allowed in production)")
	}
	if cfg.StorageType == "memory" {
		return nil, nil, fmt.Errorf("production preset requires persistent storage (s3 or fs, not memory)")
	}

	return cfg.BuildService(ctx, logger)
}

func seedFixtures(t *testing.T, svc filestore.Service) {
	t.Helper()
	fixtures := []struct {
		name       string
		visibility filestore.Visibility
		content    string
		tags       []string
	}{
		{name: "welcome.txt", visibility: filestore.VisibilityPublic, content: "Welcome!", tags: []string{"docs"}},
		{name: "notes.txt", visibility: filestore.VisibilityPrivate, content: "private notes", tags: []string{"personal"}},
	}

	for _, f := range fixtures {
		_, err := svc.UploadFile(context.Background(), filestore.UploadFileRequest{
			OwnerID:             TestOwnerID,
			FileName:            f.name,
			DeclaredContentType: "text/plain",
			Visibility:          f.visibility,
			Tags:                f.tags,
			Body:                strings.NewReader(f.content),
		})
		if err != nil {
			t.Fatalf("failed to seed fixture %s: %v", f.name, err)
		}
	}
}

type devConfig struct {
	storageDir string
	logger     *slog.Logger
}

type testConfig struct {
	fixtures bool
}

// DevelopmentOption configures NewDevelopment
type DevelopmentOption func(*devConfig)

// WithDevStorage sets the directory used for blobs
func WithDevStorage(dir string) DevelopmentOption {
	return func(cfg *devConfig) {
		cfg.storageDir = dir
	}
}

// WithDevLogger sets the logger used by the service and its event sink
func WithDevLogger(logger *slog.Logger) DevelopmentOption {
	return func(cfg *devConfig) {
		cfg.logger = logger
	}
}

// TestingOption configures NewTesting
type TestingOption func(*testConfig)

// WithTestFixtures seeds one public and one private file owned by TestOwnerID
func WithTestFixtures() TestingOption {
	return func(cfg *testConfig) {
		cfg.fixtures = true
	}
}
