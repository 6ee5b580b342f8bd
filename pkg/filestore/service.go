package filestore

import (
	"context"
	"io"

	"github.com/google/uuid"
)

// Service defines the main interface for the file storage library
type Service interface {
	// UploadFile stores the body as a new file owned by req.OwnerID
	UploadFile(ctx context.Context, req UploadFileRequest) (*FileView, error)

	// Listings. Empty tags list everything in scope, otherwise files whose
	// tags intersect the query
	FetchPublicFiles(ctx context.Context, tags []string, page PageRequest) (*Page[*FileView], error)
	FetchUserFiles(ctx context.Context, ownerID string, tags []string, page PageRequest) (*Page[*FileView], error)

	// Owner-only mutations
	DeleteFile(ctx context.Context, externalID uuid.UUID, requesterID string) error
	RenameFile(ctx context.Context, requesterID string, externalID uuid.UUID, newFileName string) (*FileView, error)

	// GetFile returns the file view and its content. The caller must close
	// the stream
	GetFile(ctx context.Context, externalID uuid.UUID, requesterID string) (*FileView, io.ReadCloser, error)
}
