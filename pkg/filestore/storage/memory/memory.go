package memory

import (
	"bytes"
	"context"
	"io"
	"sort"
	"sync"

	"github.com/tendant/simple-filestore/pkg/filestore"
)

// Backend is an in-memory implementation of the filestore.BlobStore interface
type Backend struct {
	mu      sync.RWMutex
	objects map[string][]byte
}

// New creates a new in-memory storage backend
func New() *Backend {
	return &Backend{
		objects: make(map[string][]byte),
	}
}

// Write buffers the whole stream and stores it under key
func (b *Backend) Write(ctx context.Context, key string, r io.Reader) (int64, error) {
	key, err := filestore.CleanKey(key)
	if err != nil {
		return 0, err
	}

	var buf bytes.Buffer
	n, err := io.Copy(&buf, r)
	if err != nil {
		return n, err
	}
	if err := ctx.Err(); err != nil {
		return n, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.objects[key] = buf.Bytes()
	return n, nil
}

// Open returns a reader over a snapshot of the blob
func (b *Backend) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	key, err := filestore.CleanKey(key)
	if err != nil {
		return nil, err
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	data, ok := b.objects[key]
	if !ok {
		return nil, filestore.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

// Delete removes the blob and reports whether it existed
func (b *Backend) Delete(ctx context.Context, key string) (bool, error) {
	key, err := filestore.CleanKey(key)
	if err != nil {
		return false, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	_, ok := b.objects[key]
	delete(b.objects, key)
	return ok, nil
}

// Keys lists stored keys in sorted order
func (b *Backend) Keys() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()

	keys := make([]string, 0, len(b.objects))
	for k := range b.objects {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Len reports how many blobs are stored
func (b *Backend) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.objects)
}
