package fs

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/tendant/simple-filestore/pkg/filestore"
)

func TestFSBackend_BasicOps(t *testing.T) {
	tmp := t.TempDir()
	backend, err := New(Config{BaseDir: tmp})
	if err != nil {
		t.Fatalf("new fs backend: %v", err)
	}

	ctx := context.Background()
	key := "ab/cdef0123"

	data := []byte("hello fs")
	n, err := backend.Write(ctx, key, bytes.NewReader(data))
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	if n != int64(len(data)) {
		t.Fatalf("expected %d bytes written, got %d", len(data), n)
	}

	rc, err := backend.Open(ctx, key)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	got, _ := io.ReadAll(rc)
	_ = rc.Close()
	if string(got) != string(data) {
		t.Fatalf("read mismatch: %q", string(got))
	}

	existed, err := backend.Delete(ctx, key)
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if !existed {
		t.Fatal("expected blob to have existed")
	}
	if _, err := os.Stat(filepath.Join(tmp, "ab", "cdef0123")); !os.IsNotExist(err) {
		t.Fatalf("expected file removed, stat err=%v", err)
	}
	if _, err := os.Stat(filepath.Join(tmp, "ab")); !os.IsNotExist(err) {
		t.Fatalf("expected empty shard dir pruned, stat err=%v", err)
	}
	if _, err := os.Stat(tmp); err != nil {
		t.Fatalf("base dir must survive pruning: %v", err)
	}
}

func TestFSBackend_DeleteMissing(t *testing.T) {
	backend, err := New(Config{BaseDir: t.TempDir()})
	if err != nil {
		t.Fatalf("new fs backend: %v", err)
	}

	existed, err := backend.Delete(context.Background(), "missing")
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if existed {
		t.Fatal("expected missing blob to report false")
	}
}

func TestFSBackend_OpenMissingAndDirectory(t *testing.T) {
	tmp := t.TempDir()
	backend, err := New(Config{BaseDir: tmp})
	if err != nil {
		t.Fatalf("new fs backend: %v", err)
	}
	if err := os.MkdirAll(filepath.Join(tmp, "adir"), 0o750); err != nil {
		t.Fatal(err)
	}

	for _, key := range []string{"missing", "adir"} {
		if _, err := backend.Open(context.Background(), key); !errors.Is(err, filestore.ErrNotFound) {
			t.Fatalf("key %q: expected ErrNotFound, got %v", key, err)
		}
	}
}

func TestFSBackend_RejectsTraversal(t *testing.T) {
	tmp := t.TempDir()
	backend, err := New(Config{BaseDir: filepath.Join(tmp, "root")})
	if err != nil {
		t.Fatalf("new fs backend: %v", err)
	}

	ctx := context.Background()
	for _, key := range []string{"../outside", "a/../../outside", "/etc/passwd", "", ".", "a\\..\\b"} {
		if _, err := backend.Write(ctx, key, strings.NewReader("x")); !errors.Is(err, filestore.ErrInvalidKey) {
			t.Fatalf("key %q: expected ErrInvalidKey, got %v", key, err)
		}
		if _, err := backend.Open(ctx, key); !errors.Is(err, filestore.ErrInvalidKey) {
			t.Fatalf("open %q: expected ErrInvalidKey, got %v", key, err)
		}
		if _, err := backend.Delete(ctx, key); !errors.Is(err, filestore.ErrInvalidKey) {
			t.Fatalf("delete %q: expected ErrInvalidKey, got %v", key, err)
		}
	}
	if _, err := os.Stat(filepath.Join(tmp, "outside")); !os.IsNotExist(err) {
		t.Fatalf("nothing may be written outside root, stat err=%v", err)
	}
}

func TestFSBackend_OverwriteIsAtomic(t *testing.T) {
	tmp := t.TempDir()
	backend, err := New(Config{BaseDir: tmp, ChunkSize: 4})
	if err != nil {
		t.Fatalf("new fs backend: %v", err)
	}
	ctx := context.Background()

	if _, err := backend.Write(ctx, "k", strings.NewReader("first version")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := backend.Write(ctx, "k", strings.NewReader("second")); err != nil {
		t.Fatalf("overwrite: %v", err)
	}

	got, err := os.ReadFile(filepath.Join(tmp, "k"))
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "second" {
		t.Fatalf("expected overwritten content, got %q", got)
	}

	entries, _ := os.ReadDir(tmp)
	if len(entries) != 1 {
		t.Fatalf("expected no leftover temp files, got %d entries", len(entries))
	}
}

type failingReader struct{ sent bool }

func (r *failingReader) Read(p []byte) (int, error) {
	if !r.sent {
		r.sent = true
		return copy(p, "partial"), nil
	}
	return 0, errors.New("connection reset")
}

func TestFSBackend_FailedWriteLeavesNothing(t *testing.T) {
	tmp := t.TempDir()
	backend, err := New(Config{BaseDir: tmp})
	if err != nil {
		t.Fatalf("new fs backend: %v", err)
	}

	if _, err := backend.Write(context.Background(), "k", &failingReader{}); err == nil {
		t.Fatal("expected write error")
	}
	entries, _ := os.ReadDir(tmp)
	if len(entries) != 0 {
		t.Fatalf("expected empty root after failed write, got %d entries", len(entries))
	}
}

func TestFSBackend_CancelledWrite(t *testing.T) {
	tmp := t.TempDir()
	backend, err := New(Config{BaseDir: tmp})
	if err != nil {
		t.Fatalf("new fs backend: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := backend.Write(ctx, "k", strings.NewReader("data")); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if _, err := os.Stat(filepath.Join(tmp, "k")); !os.IsNotExist(err) {
		t.Fatalf("expected no blob after cancel, stat err=%v", err)
	}
}

func TestNew_RequiresBaseDir(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Fatal("expected error for empty base dir")
	}
}
