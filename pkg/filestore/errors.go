package filestore

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Error types
var (
	// ErrValidation indicates the caller supplied missing or malformed input
	ErrValidation = errors.New("validation failed")

	// ErrNotFound indicates a file or blob does not exist
	ErrNotFound = errors.New("file not found")

	// ErrUnauthorized indicates the requester may not act on the file
	ErrUnauthorized = errors.New("not authorized to access file")

	// ErrDuplicateFile indicates the owner already has a file with that name
	ErrDuplicateFile = errors.New("file with this name already exists")

	// ErrDuplicateKey is returned by repositories when the (owner, file name)
	// uniqueness constraint is violated
	ErrDuplicateKey = errors.New("duplicate key")

	// ErrStorage indicates a blob store or metadata store failure
	ErrStorage = errors.New("storage failure")
)

// FileError represents an error related to a file operation
type FileError struct {
	FileID uuid.UUID
	Op     string
	Err    error
}

func (e *FileError) Error() string {
	return fmt.Sprintf("file operation %s failed for file %s: %v", e.Op, e.FileID, e.Err)
}

func (e *FileError) Unwrap() error {
	return e.Err
}

// StorageError represents an error related to storage operations
type StorageError struct {
	Backend string
	Key     string
	Op      string
	Err     error
}

func (e *StorageError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("storage operation %s failed on backend %s: %v", e.Op, e.Backend, e.Err)
	}
	return fmt.Sprintf("storage operation %s failed for key %s on backend %s: %v", e.Op, e.Key, e.Backend, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// Is makes every StorageError match ErrStorage.
func (e *StorageError) Is(target error) bool {
	return target == ErrStorage
}

// ErrorKind classifies an error returned by the service.
type ErrorKind string

const (
	KindNone         ErrorKind = ""
	KindValidation   ErrorKind = "validation"
	KindNotFound     ErrorKind = "not_found"
	KindUnauthorized ErrorKind = "unauthorized"
	KindDuplicate    ErrorKind = "duplicate"
	KindStorage      ErrorKind = "storage"
)

// KindOf reports the kind of err. Unclassified errors are storage failures.
func KindOf(err error) ErrorKind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrValidation):
		return KindValidation
	case errors.Is(err, ErrUnauthorized):
		return KindUnauthorized
	case errors.Is(err, ErrDuplicateFile), errors.Is(err, ErrDuplicateKey):
		return KindDuplicate
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	default:
		return KindStorage
	}
}
