package filestore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tendant/simple-filestore/pkg/filestore/objectkey"
)

// DefaultChunkSize is the read size of the upload copy loop (5 MiB)
const DefaultChunkSize = 5 * 1024 * 1024

const metadataBackend = "metadata"

// service implements the Service interface
type service struct {
	repository Repository
	blobStore  BlobStore
	detector   ContentTypeDetector
	keys       KeyGenerator
	eventSinks []EventSink
	logger     *slog.Logger
	chunkSize  int
	now        func() time.Time
}

// Option represents a functional option for configuring the service
type Option func(*service)

// WithRepository sets the metadata repository for the service
func WithRepository(repo Repository) Option {
	return func(s *service) {
		s.repository = repo
	}
}

// WithBlobStore sets the blob storage backend
func WithBlobStore(store BlobStore) Option {
	return func(s *service) {
		s.blobStore = store
	}
}

// WithDetector overrides the content type detector
func WithDetector(detector ContentTypeDetector) Option {
	return func(s *service) {
		s.detector = detector
	}
}

// WithKeyGenerator overrides how blob keys are derived from external ids
func WithKeyGenerator(keys KeyGenerator) Option {
	return func(s *service) {
		s.keys = keys
	}
}

// WithEventSink adds an event sink. May be given more than once
func WithEventSink(sink EventSink) Option {
	return func(s *service) {
		if sink != nil {
			s.eventSinks = append(s.eventSinks, sink)
		}
	}
}

// WithLogger sets the logger for the service
func WithLogger(logger *slog.Logger) Option {
	return func(s *service) {
		s.logger = logger
	}
}

// WithChunkSize sets the read size used while copying uploads
func WithChunkSize(size int) Option {
	return func(s *service) {
		s.chunkSize = size
	}
}

// WithClock sets the time source used for upload timestamps
func WithClock(now func() time.Time) Option {
	return func(s *service) {
		s.now = now
	}
}

// New creates a new service instance with the given options
func New(options ...Option) (Service, error) {
	s := &service{}

	for _, option := range options {
		option(s)
	}

	if s.repository == nil {
		return nil, fmt.Errorf("repository is required")
	}
	if s.blobStore == nil {
		return nil, fmt.Errorf("blob store is required")
	}
	if s.detector == nil {
		s.detector = NewMimeDetector(DefaultSniffLimit)
	}
	if s.keys == nil {
		s.keys = objectkey.NewFlatGenerator()
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.chunkSize <= 0 {
		s.chunkSize = DefaultChunkSize
	}
	if s.now == nil {
		s.now = time.Now
	}
	s.logger = s.logger.With("component", "filestore")

	return s, nil
}

func (s *service) UploadFile(ctx context.Context, req UploadFileRequest) (*FileView, error) {
	if err := validateUpload(req); err != nil {
		return nil, err
	}

	externalID := uuid.New()
	key := s.keys.Key(externalID)

	contentType, body, err := s.detector.Detect(req.FileName, req.Body)
	if err != nil {
		return nil, &FileError{FileID: externalID, Op: "detect", Err: err}
	}

	hr := newHashingReader(ctx, body, s.chunkSize)
	written, err := s.blobStore.Write(ctx, key, hr)
	if err == nil && written != hr.n {
		err = fmt.Errorf("short write: %d of %d bytes", written, hr.n)
	}
	if err != nil {
		s.removeBlob(ctx, key)
		return nil, &StorageError{Backend: "blob", Key: key, Op: "write", Err: err}
	}

	record := &FileRecord{
		ID:          uuid.NewString(),
		ExternalID:  externalID,
		FileName:    req.FileName,
		OwnerID:     req.OwnerID,
		ContentHash: hr.Sum(),
		Tags:        NormalizeTags(req.Tags),
		SizeBytes:   written,
		Visibility:  req.Visibility,
		ContentType: contentType,
		UploadedAt:  s.now().UTC(),
	}

	if err := s.repository.Save(ctx, record); err != nil {
		s.logger.ErrorContext(ctx, "failed to save file metadata", "file_id", externalID, "error", err)
		s.removeBlob(ctx, key)
		if errors.Is(err, ErrDuplicateKey) {
			return nil, &FileError{
				FileID: externalID,
				Op:     "upload",
				Err:    fmt.Errorf("%w: %s", ErrDuplicateFile, req.FileName),
			}
		}
		return nil, &FileError{FileID: externalID, Op: "upload", Err: asStorageError(err, "save")}
	}

	s.emit(ctx, "uploaded", func(sink EventSink) error { return sink.FileUploaded(ctx, record) })

	return record.View(), nil
}

func (s *service) FetchPublicFiles(ctx context.Context, tags []string, page PageRequest) (*Page[*FileView], error) {
	page = page.WithDefaults()
	tags = NormalizeTags(tags)

	var (
		result *Page[*FileRecord]
		err    error
	)
	if len(tags) == 0 {
		result, err = s.repository.FindAllPublic(ctx, page)
	} else {
		result, err = s.repository.FindAllPublicByTagsIn(ctx, tags, page)
	}
	if err != nil {
		return nil, asStorageError(err, "list_public")
	}
	return MapPage(result, (*FileRecord).View), nil
}

func (s *service) FetchUserFiles(ctx context.Context, ownerID string, tags []string, page PageRequest) (*Page[*FileView], error) {
	if strings.TrimSpace(ownerID) == "" {
		return nil, fmt.Errorf("%w: owner id is required", ErrValidation)
	}
	page = page.WithDefaults()
	tags = NormalizeTags(tags)

	var (
		result *Page[*FileRecord]
		err    error
	)
	if len(tags) == 0 {
		result, err = s.repository.FindByOwner(ctx, ownerID, page)
	} else {
		result, err = s.repository.FindByOwnerAndTagsIn(ctx, ownerID, tags, page)
	}
	if err != nil {
		return nil, asStorageError(err, "list_owner")
	}
	return MapPage(result, (*FileRecord).View), nil
}

func (s *service) DeleteFile(ctx context.Context, externalID uuid.UUID, requesterID string) error {
	record, err := s.ownedRecord(ctx, externalID, requesterID)
	if err != nil {
		return err
	}

	if err := s.repository.DeleteByID(ctx, record.ID); err != nil {
		return &FileError{FileID: externalID, Op: "delete", Err: asStorageError(err, "delete")}
	}

	key := s.keys.Key(externalID)
	existed, err := s.blobStore.Delete(ctx, key)
	if err != nil {
		s.logger.ErrorContext(ctx, "metadata removed but blob delete failed", "file_id", externalID, "key", key, "error", err)
		return &FileError{
			FileID: externalID,
			Op:     "delete",
			Err:    &StorageError{Backend: "blob", Key: key, Op: "delete", Err: err},
		}
	}
	if !existed {
		s.logger.WarnContext(ctx, "blob already absent on delete", "file_id", externalID, "key", key)
	}

	s.emit(ctx, "deleted", func(sink EventSink) error { return sink.FileDeleted(ctx, record) })
	return nil
}

func (s *service) RenameFile(ctx context.Context, requesterID string, externalID uuid.UUID, newFileName string) (*FileView, error) {
	if strings.TrimSpace(newFileName) == "" {
		return nil, fmt.Errorf("%w: file name cannot be empty", ErrValidation)
	}

	record, err := s.ownedRecord(ctx, externalID, requesterID)
	if err != nil {
		return nil, err
	}
	if record.FileName == newFileName {
		return nil, &FileError{
			FileID: externalID,
			Op:     "rename",
			Err:    fmt.Errorf("%w: file is already named %s", ErrDuplicateFile, newFileName),
		}
	}

	oldName := record.FileName
	updated := record.Clone()
	updated.FileName = newFileName

	if err := s.repository.Save(ctx, updated); err != nil {
		if errors.Is(err, ErrDuplicateKey) {
			return nil, &FileError{
				FileID: externalID,
				Op:     "rename",
				Err:    fmt.Errorf("%w: %s", ErrDuplicateFile, newFileName),
			}
		}
		return nil, &FileError{FileID: externalID, Op: "rename", Err: asStorageError(err, "save")}
	}

	s.emit(ctx, "renamed", func(sink EventSink) error { return sink.FileRenamed(ctx, updated, oldName) })
	return updated.View(), nil
}

func (s *service) GetFile(ctx context.Context, externalID uuid.UUID, requesterID string) (*FileView, io.ReadCloser, error) {
	record, err := s.findRecord(ctx, externalID)
	if err != nil {
		return nil, nil, err
	}
	if record.Visibility == VisibilityPrivate && record.OwnerID != requesterID {
		return nil, nil, &FileError{FileID: externalID, Op: "get", Err: ErrUnauthorized}
	}

	key := s.keys.Key(externalID)
	rc, err := s.blobStore.Open(ctx, key)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			s.logger.ErrorContext(ctx, "metadata present but blob missing", "file_id", externalID, "key", key)
			return nil, nil, &FileError{FileID: externalID, Op: "get", Err: err}
		}
		s.logger.ErrorContext(ctx, "error occurred while reading file", "file_id", externalID, "error", err)
		return nil, nil, &FileError{
			FileID: externalID,
			Op:     "get",
			Err:    &StorageError{Backend: "blob", Key: key, Op: "open", Err: err},
		}
	}

	s.emit(ctx, "downloaded", func(sink EventSink) error { return sink.FileDownloaded(ctx, record, requesterID) })
	return record.View(), rc, nil
}

func (s *service) findRecord(ctx context.Context, externalID uuid.UUID) (*FileRecord, error) {
	record, err := s.repository.FindByExternalID(ctx, externalID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, &FileError{FileID: externalID, Op: "find", Err: ErrNotFound}
		}
		return nil, &FileError{FileID: externalID, Op: "find", Err: asStorageError(err, "find")}
	}
	return record, nil
}

func (s *service) ownedRecord(ctx context.Context, externalID uuid.UUID, requesterID string) (*FileRecord, error) {
	record, err := s.findRecord(ctx, externalID)
	if err != nil {
		return nil, err
	}
	if record.OwnerID != requesterID {
		return nil, &FileError{FileID: externalID, Op: "authorize", Err: ErrUnauthorized}
	}
	return record, nil
}

// removeBlob deletes a blob left behind by a failed upload. It runs even if
// the request context is already cancelled.
func (s *service) removeBlob(ctx context.Context, key string) {
	if _, err := s.blobStore.Delete(context.WithoutCancel(ctx), key); err != nil {
		s.logger.ErrorContext(ctx, "failed to clean up blob", "key", key, "error", err)
	}
}

func (s *service) emit(ctx context.Context, event string, fire func(EventSink) error) {
	for _, sink := range s.eventSinks {
		if err := fire(sink); err != nil {
			s.logger.WarnContext(ctx, "event sink failed", "event", event, "error", err)
		}
	}
}

func validateUpload(req UploadFileRequest) error {
	switch {
	case strings.TrimSpace(req.FileName) == "":
		return fmt.Errorf("%w: file name cannot be empty", ErrValidation)
	case strings.TrimSpace(req.DeclaredContentType) == "":
		return fmt.Errorf("%w: content type cannot be empty", ErrValidation)
	case strings.TrimSpace(req.OwnerID) == "":
		return fmt.Errorf("%w: owner id is required", ErrValidation)
	case !req.Visibility.Valid():
		return fmt.Errorf("%w: unknown visibility %q", ErrValidation, req.Visibility)
	case req.Body == nil:
		return fmt.Errorf("%w: body is required", ErrValidation)
	}
	return nil
}

// asStorageError wraps repository failures that carry no service meaning.
func asStorageError(err error, op string) error {
	var se *StorageError
	if errors.As(err, &se) {
		return err
	}
	return &StorageError{Backend: metadataBackend, Op: op, Err: err}
}

// hashingReader hashes and counts everything read through it, reads at most
// chunk bytes per call and stops once ctx is done.
type hashingReader struct {
	ctx   context.Context
	r     io.Reader
	h     hash.Hash
	chunk int
	n     int64
}

func newHashingReader(ctx context.Context, r io.Reader, chunk int) *hashingReader {
	return &hashingReader{ctx: ctx, r: r, h: sha256.New(), chunk: chunk}
}

func (r *hashingReader) Read(p []byte) (int, error) {
	if err := r.ctx.Err(); err != nil {
		return 0, err
	}
	if len(p) > r.chunk {
		p = p[:r.chunk]
	}
	n, err := r.r.Read(p)
	if n > 0 {
		r.h.Write(p[:n])
		r.n += int64(n)
	}
	return n, err
}

func (r *hashingReader) Sum() string {
	return hex.EncodeToString(r.h.Sum(nil))
}
