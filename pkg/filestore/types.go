package filestore

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Visibility controls who may download a file.
type Visibility string

const (
	VisibilityPrivate Visibility = "PRIVATE"
	VisibilityPublic  Visibility = "PUBLIC"
)

// Valid reports whether v is a known visibility.
func (v Visibility) Valid() bool {
	return v == VisibilityPrivate || v == VisibilityPublic
}

// ParseVisibility parses a visibility name case-insensitively.
func ParseVisibility(s string) (Visibility, error) {
	v := Visibility(strings.ToUpper(strings.TrimSpace(s)))
	if !v.Valid() {
		return "", fmt.Errorf("%w: unknown visibility %q", ErrValidation, s)
	}
	return v, nil
}

// SortField names the attribute a listing is ordered by.
type SortField string

const (
	SortByFileName    SortField = "FILENAME"
	SortByUploadDate  SortField = "UPLOAD_DATE"
	SortByTag         SortField = "TAG"
	SortByContentType SortField = "CONTENT_TYPE"
	SortByFileSize    SortField = "FILE_SIZE"
)

// Valid reports whether f is a known sort field.
func (f SortField) Valid() bool {
	switch f {
	case SortByFileName, SortByUploadDate, SortByTag, SortByContentType, SortByFileSize:
		return true
	}
	return false
}

// ParseSortField parses a sort field name case-insensitively.
func ParseSortField(s string) (SortField, error) {
	f := SortField(strings.ToUpper(strings.TrimSpace(s)))
	if !f.Valid() {
		return "", fmt.Errorf("%w: unknown sort field %q", ErrValidation, s)
	}
	return f, nil
}

const (
	DefaultPageSize = 20
	MaxPageSize     = 50
)

// PageRequest selects one page of a sorted listing. Page is zero based.
type PageRequest struct {
	Page      int
	Size      int
	SortBy    SortField
	Ascending bool
}

// DefaultPageRequest returns the first page sorted by upload date, oldest first.
func DefaultPageRequest() PageRequest {
	return PageRequest{Page: 0, Size: DefaultPageSize, SortBy: SortByUploadDate, Ascending: true}
}

// WithDefaults fills zero fields with their defaults.
func (p PageRequest) WithDefaults() PageRequest {
	if p.Page < 0 {
		p.Page = 0
	}
	if p.Size <= 0 {
		p.Size = DefaultPageSize
	}
	if p.SortBy == "" {
		p.SortBy = SortByUploadDate
	}
	return p
}

// Offset is the number of items before the requested page.
func (p PageRequest) Offset() int {
	return p.Page * p.Size
}

// Page is one page of a listing.
type Page[T any] struct {
	Items      []T   `json:"content"`
	Page       int   `json:"page"`
	Size       int   `json:"size"`
	TotalItems int64 `json:"totalElements"`
	TotalPages int   `json:"totalPages"`
}

// NewPage builds a page and computes the total page count.
func NewPage[T any](items []T, req PageRequest, total int64) *Page[T] {
	pages := 0
	if req.Size > 0 {
		pages = int((total + int64(req.Size) - 1) / int64(req.Size))
	}
	if items == nil {
		items = []T{}
	}
	return &Page[T]{
		Items:      items,
		Page:       req.Page,
		Size:       req.Size,
		TotalItems: total,
		TotalPages: pages,
	}
}

// MapPage converts the items of a page and keeps its paging fields.
func MapPage[T, U any](p *Page[T], fn func(T) U) *Page[U] {
	out := make([]U, 0, len(p.Items))
	for _, item := range p.Items {
		out = append(out, fn(item))
	}
	return &Page[U]{
		Items:      out,
		Page:       p.Page,
		Size:       p.Size,
		TotalItems: p.TotalItems,
		TotalPages: p.TotalPages,
	}
}

// FileRecord is the persisted metadata of one stored file.
type FileRecord struct {
	ID          string     `json:"id"`
	ExternalID  uuid.UUID  `json:"external_id"`
	FileName    string     `json:"file_name"`
	OwnerID     string     `json:"owner_id"`
	ContentHash string     `json:"content_hash"`
	Tags        []string   `json:"tags"`
	SizeBytes   int64      `json:"size_bytes"`
	Visibility  Visibility `json:"visibility"`
	ContentType string     `json:"content_type"`
	UploadedAt  time.Time  `json:"uploaded_at"`
}

// Clone returns a deep copy of r.
func (r *FileRecord) Clone() *FileRecord {
	c := *r
	if r.Tags != nil {
		c.Tags = append([]string(nil), r.Tags...)
	}
	return &c
}

// HasTag reports whether the record carries any of the given tags.
func (r *FileRecord) HasTag(tags []string) bool {
	for _, want := range tags {
		for _, have := range r.Tags {
			if have == want {
				return true
			}
		}
	}
	return false
}

// View returns the boundary representation of the record.
func (r *FileRecord) View() *FileView {
	tags := append([]string{}, r.Tags...)
	return &FileView{
		ID:          r.ExternalID,
		FileName:    r.FileName,
		ContentType: r.ContentType,
		Visibility:  r.Visibility,
		Tags:        tags,
		SizeBytes:   r.SizeBytes,
		ContentHash: r.ContentHash,
		UploadedAt:  r.UploadedAt,
	}
}

// FileView is what callers see of a file. Owner and internal id stay hidden.
type FileView struct {
	ID          uuid.UUID  `json:"id"`
	FileName    string     `json:"fileName"`
	ContentType string     `json:"contentType"`
	Visibility  Visibility `json:"visibility"`
	Tags        []string   `json:"tags"`
	SizeBytes   int64      `json:"size"`
	ContentHash string     `json:"contentHash"`
	UploadedAt  time.Time  `json:"uploadDate"`
}

// UploadFileRequest contains parameters for uploading a file.
type UploadFileRequest struct {
	OwnerID             string
	FileName            string
	DeclaredContentType string
	Visibility          Visibility
	Tags                []string
	Body                io.Reader
}
