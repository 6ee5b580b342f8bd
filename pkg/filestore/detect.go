package filestore

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"mime"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

const (
	// DefaultSniffLimit is how many leading bytes are inspected for detection
	DefaultSniffLimit = 20000

	// DefaultContentType is reported when nothing more specific is known
	DefaultContentType = "application/octet-stream"
)

func init() {
	// Prefixes are already cut to the detector's limit.
	mimetype.SetLimit(0)
}

// MimeDetector detects content types from magic numbers using mimetype.
type MimeDetector struct {
	limit int
}

// NewMimeDetector creates a detector that inspects at most limit bytes. A
// non-positive limit uses DefaultSniffLimit.
func NewMimeDetector(limit int) *MimeDetector {
	if limit <= 0 {
		limit = DefaultSniffLimit
	}
	return &MimeDetector{limit: limit}
}

// Detect reads a prefix of r and returns its media type without parameters.
// Seekable readers are rewound, others are replayed through a MultiReader.
func (d *MimeDetector) Detect(fileName string, r io.Reader) (string, io.Reader, error) {
	if r == nil {
		return "", nil, fmt.Errorf("%w: body is required", ErrValidation)
	}

	var (
		start  int64
		seeker io.Seeker
	)
	if s, ok := r.(io.Seeker); ok {
		if pos, err := s.Seek(0, io.SeekCurrent); err == nil {
			start, seeker = pos, s
		}
	}

	prefix := make([]byte, d.limit)
	n, err := io.ReadFull(r, prefix)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return "", nil, fmt.Errorf("read content prefix: %w", err)
	}
	prefix = prefix[:n]

	body := r
	if seeker != nil {
		if _, err := seeker.Seek(start, io.SeekStart); err != nil {
			return "", nil, fmt.Errorf("rewind content: %w", err)
		}
	} else {
		body = io.MultiReader(bytes.NewReader(prefix), r)
	}

	return detectType(fileName, prefix), body, nil
}

func detectType(fileName string, prefix []byte) string {
	if len(prefix) == 0 {
		return DefaultContentType
	}
	ct := stripParams(mimetype.Detect(prefix).String())
	if ct == "" || ct == DefaultContentType {
		if byExt := stripParams(mime.TypeByExtension(filepath.Ext(fileName))); byExt != "" {
			return byExt
		}
		return DefaultContentType
	}
	return ct
}

func stripParams(ct string) string {
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = ct[:i]
	}
	return strings.TrimSpace(ct)
}
