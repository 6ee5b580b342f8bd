package filestore

import (
	"context"
	"io"

	"github.com/google/uuid"
)

// BlobStore defines the interface for storage backends
type BlobStore interface {
	// Write stores the stream under key, replacing any existing blob, and
	// returns the number of bytes written
	Write(ctx context.Context, key string, r io.Reader) (int64, error)

	// Open returns a reader over the blob. ErrNotFound if it does not exist
	Open(ctx context.Context, key string) (io.ReadCloser, error)

	// Delete removes the blob and reports whether it existed
	Delete(ctx context.Context, key string) (bool, error)
}

// Repository defines the interface for file metadata persistence
type Repository interface {
	// Save inserts or updates by ID. ErrDuplicateKey when another record
	// already has the same owner and file name
	Save(ctx context.Context, record *FileRecord) error

	// DeleteByID removes the record with the given internal id
	DeleteByID(ctx context.Context, id string) error

	// FindByExternalID returns ErrNotFound if no record matches
	FindByExternalID(ctx context.Context, externalID uuid.UUID) (*FileRecord, error)

	// Listings
	FindByOwner(ctx context.Context, ownerID string, page PageRequest) (*Page[*FileRecord], error)
	FindByOwnerAndTagsIn(ctx context.Context, ownerID string, tags []string, page PageRequest) (*Page[*FileRecord], error)
	FindAllPublic(ctx context.Context, page PageRequest) (*Page[*FileRecord], error)
	FindAllPublicByTagsIn(ctx context.Context, tags []string, page PageRequest) (*Page[*FileRecord], error)
}

// ContentTypeDetector determines the media type of a stream
type ContentTypeDetector interface {
	// Detect inspects a bounded prefix of r. The returned reader yields the
	// full content from its beginning
	Detect(fileName string, r io.Reader) (string, io.Reader, error)
}

// KeyGenerator derives a blob key from a file's external id
type KeyGenerator interface {
	Key(externalID uuid.UUID) string
}

// EventSink defines the interface for event handling
type EventSink interface {
	// FileUploaded is fired after blob and metadata are both stored
	FileUploaded(ctx context.Context, file *FileRecord) error

	// FileRenamed is fired after a rename is saved
	FileRenamed(ctx context.Context, file *FileRecord, oldName string) error

	// FileDeleted is fired after metadata and blob are removed
	FileDeleted(ctx context.Context, file *FileRecord) error

	// FileDownloaded is fired when a download stream is handed out
	FileDownloaded(ctx context.Context, file *FileRecord, requesterID string) error
}
