package scan

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"

	"github.com/tendant/simple-filestore/pkg/filestore"
	"github.com/tendant/simple-filestore/pkg/filestore/objectkey"
)

// FileProcessor processes individual file records.
// Return an error to mark the record as failed; the scan continues.
type FileProcessor interface {
	Process(ctx context.Context, record *filestore.FileRecord) error
}

// ProcessorFunc adapts a function to the FileProcessor interface.
type ProcessorFunc func(ctx context.Context, record *filestore.FileRecord) error

func (f ProcessorFunc) Process(ctx context.Context, record *filestore.FileRecord) error {
	return f(ctx, record)
}

// HashVerifier re-reads each blob and checks its size and SHA-256 against
// the stored metadata. Keys must use the same layout the service wrote with.
type HashVerifier struct {
	Store filestore.BlobStore
	Keys  filestore.KeyGenerator
}

// NewHashVerifier returns a verifier for blobs written with the flat layout
// unless keys is given.
func NewHashVerifier(store filestore.BlobStore, keys filestore.KeyGenerator) *HashVerifier {
	if keys == nil {
		keys = objectkey.NewFlatGenerator()
	}
	return &HashVerifier{Store: store, Keys: keys}
}

func (v *HashVerifier) Process(ctx context.Context, record *filestore.FileRecord) error {
	key := v.Keys.Key(record.ExternalID)
	rc, err := v.Store.Open(ctx, key)
	if err != nil {
		return fmt.Errorf("open blob %s: %w", key, err)
	}
	defer rc.Close()

	h := sha256.New()
	n, err := io.Copy(h, rc)
	if err != nil {
		return fmt.Errorf("read blob %s: %w", key, err)
	}
	if n != record.SizeBytes {
		return fmt.Errorf("size mismatch for %s: stored %d, blob has %d", key, record.SizeBytes, n)
	}
	if sum := hex.EncodeToString(h.Sum(nil)); sum != record.ContentHash {
		return fmt.Errorf("hash mismatch for %s", key)
	}
	return nil
}
