package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/tendant/simple-filestore/pkg/filestore"
)

// Repository implements filestore.Repository using in-memory storage
type Repository struct {
	mu         sync.RWMutex
	records    map[string]*filestore.FileRecord // id -> record
	byExternal map[uuid.UUID]string             // external id -> id
	byName     map[nameKey]string               // (owner, file name) -> id
}

type nameKey struct {
	owner string
	name  string
}

// New creates a new in-memory repository
func New() *Repository {
	return &Repository{
		records:    make(map[string]*filestore.FileRecord),
		byExternal: make(map[uuid.UUID]string),
		byName:     make(map[nameKey]string),
	}
}

// Save inserts or replaces the record with the same ID
func (r *Repository) Save(ctx context.Context, record *filestore.FileRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := nameKey{owner: record.OwnerID, name: record.FileName}
	if id, ok := r.byName[key]; ok && id != record.ID {
		return filestore.ErrDuplicateKey
	}
	if id, ok := r.byExternal[record.ExternalID]; ok && id != record.ID {
		return filestore.ErrDuplicateKey
	}

	if prev, ok := r.records[record.ID]; ok {
		delete(r.byName, nameKey{owner: prev.OwnerID, name: prev.FileName})
		delete(r.byExternal, prev.ExternalID)
	}

	// Create a copy to avoid external modifications
	r.records[record.ID] = record.Clone()
	r.byName[key] = record.ID
	r.byExternal[record.ExternalID] = record.ID
	return nil
}

func (r *Repository) DeleteByID(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	record, ok := r.records[id]
	if !ok {
		return filestore.ErrNotFound
	}
	delete(r.records, id)
	delete(r.byName, nameKey{owner: record.OwnerID, name: record.FileName})
	delete(r.byExternal, record.ExternalID)
	return nil
}

func (r *Repository) FindByExternalID(ctx context.Context, externalID uuid.UUID) (*filestore.FileRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byExternal[externalID]
	if !ok {
		return nil, filestore.ErrNotFound
	}
	return r.records[id].Clone(), nil
}

func (r *Repository) FindByOwner(ctx context.Context, ownerID string, page filestore.PageRequest) (*filestore.Page[*filestore.FileRecord], error) {
	return r.find(page, func(rec *filestore.FileRecord) bool {
		return rec.OwnerID == ownerID
	}), nil
}

func (r *Repository) FindByOwnerAndTagsIn(ctx context.Context, ownerID string, tags []string, page filestore.PageRequest) (*filestore.Page[*filestore.FileRecord], error) {
	return r.find(page, func(rec *filestore.FileRecord) bool {
		return rec.OwnerID == ownerID && rec.HasTag(tags)
	}), nil
}

func (r *Repository) FindAllPublic(ctx context.Context, page filestore.PageRequest) (*filestore.Page[*filestore.FileRecord], error) {
	return r.find(page, func(rec *filestore.FileRecord) bool {
		return rec.Visibility == filestore.VisibilityPublic
	}), nil
}

func (r *Repository) FindAllPublicByTagsIn(ctx context.Context, tags []string, page filestore.PageRequest) (*filestore.Page[*filestore.FileRecord], error) {
	return r.find(page, func(rec *filestore.FileRecord) bool {
		return rec.Visibility == filestore.VisibilityPublic && rec.HasTag(tags)
	}), nil
}

// Len reports how many records are stored
func (r *Repository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.records)
}

func (r *Repository) find(page filestore.PageRequest, match func(*filestore.FileRecord) bool) *filestore.Page[*filestore.FileRecord] {
	page = page.WithDefaults()

	r.mu.RLock()
	matched := make([]*filestore.FileRecord, 0)
	for _, rec := range r.records {
		if match(rec) {
			matched = append(matched, rec.Clone())
		}
	}
	r.mu.RUnlock()

	sortRecords(matched, page.SortBy, page.Ascending)

	total := int64(len(matched))
	start := page.Offset()
	if start > len(matched) {
		start = len(matched)
	}
	end := start + page.Size
	if end > len(matched) {
		end = len(matched)
	}
	return filestore.NewPage(matched[start:end], page, total)
}

func sortRecords(records []*filestore.FileRecord, field filestore.SortField, ascending bool) {
	sort.SliceStable(records, func(i, j int) bool {
		c := compare(records[i], records[j], field)
		if c == 0 {
			c = strings.Compare(records[i].ExternalID.String(), records[j].ExternalID.String())
		}
		if ascending {
			return c < 0
		}
		return c > 0
	})
}

func compare(a, b *filestore.FileRecord, field filestore.SortField) int {
	switch field {
	case filestore.SortByFileName:
		return strings.Compare(a.FileName, b.FileName)
	case filestore.SortByContentType:
		return strings.Compare(a.ContentType, b.ContentType)
	case filestore.SortByTag:
		return strings.Compare(firstTag(a), firstTag(b))
	case filestore.SortByFileSize:
		switch {
		case a.SizeBytes < b.SizeBytes:
			return -1
		case a.SizeBytes > b.SizeBytes:
			return 1
		}
		return 0
	default:
		return a.UploadedAt.Compare(b.UploadedAt)
	}
}

// firstTag returns the smallest tag, or "" for untagged records
func firstTag(r *filestore.FileRecord) string {
	if len(r.Tags) == 0 {
		return ""
	}
	smallest := r.Tags[0]
	for _, t := range r.Tags[1:] {
		if t < smallest {
			smallest = t
		}
	}
	return smallest
}
