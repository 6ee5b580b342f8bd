package fs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/tendant/simple-filestore/pkg/filestore"
)

// DefaultChunkSize is the copy buffer size for writes (5 MiB)
const DefaultChunkSize = 5 * 1024 * 1024

// Backend is a filesystem implementation of the filestore.BlobStore interface
type Backend struct {
	baseDir   string
	chunkSize int
}

// Config options for the filesystem backend
type Config struct {
	BaseDir   string // Base directory for storing files
	ChunkSize int    // Copy buffer size, DefaultChunkSize when zero
}

// New creates a new filesystem storage backend
func New(config Config) (*Backend, error) {
	if config.BaseDir == "" {
		return nil, errors.New("base directory is required")
	}

	baseDir, err := filepath.Abs(config.BaseDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve base directory: %w", err)
	}
	if err := os.MkdirAll(baseDir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}

	chunkSize := config.ChunkSize
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}

	return &Backend{baseDir: baseDir, chunkSize: chunkSize}, nil
}

// BaseDir returns the absolute root directory of the backend
func (b *Backend) BaseDir() string {
	return b.baseDir
}

// resolve maps a key to a path under baseDir and rejects anything that would
// land outside of it.
func (b *Backend) resolve(key string) (string, error) {
	cleaned, err := filestore.CleanKey(key)
	if err != nil {
		return "", err
	}
	full := filepath.Join(b.baseDir, filepath.FromSlash(cleaned))
	if full == b.baseDir || !strings.HasPrefix(full, b.baseDir+string(os.PathSeparator)) {
		return "", fmt.Errorf("%w: %q escapes storage root", filestore.ErrInvalidKey, key)
	}
	return full, nil
}

// Write streams r into a temp file next to the target, fsyncs it and renames
// it into place. Readers never observe a partially written blob.
func (b *Backend) Write(ctx context.Context, key string, r io.Reader) (int64, error) {
	target, err := b.resolve(key)
	if err != nil {
		return 0, err
	}

	dir := filepath.Dir(target)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return 0, fmt.Errorf("failed to create directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".upload-*")
	if err != nil {
		return 0, fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	n, err := b.copyChunks(ctx, tmp, r)
	if err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return n, err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return n, fmt.Errorf("failed to sync file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return n, fmt.Errorf("failed to close file: %w", err)
	}
	if err := os.Rename(tmpPath, target); err != nil {
		os.Remove(tmpPath)
		return n, fmt.Errorf("failed to move file into place: %w", err)
	}

	return n, nil
}

func (b *Backend) copyChunks(ctx context.Context, w io.Writer, r io.Reader) (int64, error) {
	buf := make([]byte, b.chunkSize)
	var total int64
	for {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		n, rerr := r.Read(buf)
		if n > 0 {
			if _, werr := w.Write(buf[:n]); werr != nil {
				return total, fmt.Errorf("failed to write file: %w", werr)
			}
			total += int64(n)
		}
		if rerr == io.EOF {
			return total, nil
		}
		if rerr != nil {
			return total, fmt.Errorf("failed to read content: %w", rerr)
		}
	}
}

// Open opens the blob for reading. Directories and other non regular files
// are reported as not found.
func (b *Backend) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	path, err := b.resolve(key)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, filestore.ErrNotFound
		}
		return nil, fmt.Errorf("failed to open file: %w", err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}
	if !info.Mode().IsRegular() {
		f.Close()
		return nil, filestore.ErrNotFound
	}

	return f, nil
}

// Delete removes the blob and prunes shard directories left empty
func (b *Backend) Delete(ctx context.Context, key string) (bool, error) {
	path, err := b.resolve(key)
	if err != nil {
		return false, err
	}

	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to delete file: %w", err)
	}

	b.pruneEmptyDirs(filepath.Dir(path))
	return true, nil
}

func (b *Backend) pruneEmptyDirs(dir string) {
	for dir != b.baseDir && strings.HasPrefix(dir, b.baseDir+string(os.PathSeparator)) {
		if err := os.Remove(dir); err != nil {
			return
		}
		dir = filepath.Dir(dir)
	}
}
