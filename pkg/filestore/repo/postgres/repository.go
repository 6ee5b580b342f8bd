package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tendant/simple-filestore/pkg/filestore"
)

// DBTX is an interface that allows us to use either a database connection or a transaction
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

// Repository implements filestore.Repository using PostgreSQL
type Repository struct {
	db DBTX
}

// New creates a new PostgreSQL repository
func New(db DBTX) *Repository {
	return &Repository{db: db}
}

// NewWithPool creates a new PostgreSQL repository with connection pool
func NewWithPool(pool *pgxpool.Pool) *Repository {
	return &Repository{db: pool}
}

const selectColumns = `id, external_id, file_name, owner_id, content_hash, tags,
       size_bytes, visibility, content_type, uploaded_at`

// sortColumns whitelists ORDER BY expressions per sort field
var sortColumns = map[filestore.SortField]string{
	filestore.SortByFileName:    "file_name",
	filestore.SortByUploadDate:  "uploaded_at",
	filestore.SortByContentType: "content_type",
	filestore.SortByFileSize:    "size_bytes",
	filestore.SortByTag:         "COALESCE((SELECT min(t) FROM unnest(tags) AS t), '')",
}

// Error handling helper
func (r *Repository) handlePostgresError(operation string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505": // unique_violation
			return fmt.Errorf("%w: %s", filestore.ErrDuplicateKey, pgErr.ConstraintName)
		case "23502": // not_null_violation
			return fmt.Errorf("required field %s is missing", pgErr.ColumnName)
		case "42P01": // undefined_table
			return fmt.Errorf("table does not exist - database migration required")
		default:
			return fmt.Errorf("database error in %s: %s (code: %s)", operation, pgErr.Message, pgErr.Code)
		}
	}

	if errors.Is(err, pgx.ErrNoRows) {
		return filestore.ErrNotFound
	}

	return fmt.Errorf("database error in %s: %w", operation, err)
}

func (r *Repository) Save(ctx context.Context, record *filestore.FileRecord) error {
	query := `
		INSERT INTO files (
			id, external_id, file_name, owner_id, content_hash, tags,
			size_bytes, visibility, content_type, uploaded_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			file_name = EXCLUDED.file_name,
			content_hash = EXCLUDED.content_hash,
			tags = EXCLUDED.tags,
			size_bytes = EXCLUDED.size_bytes,
			visibility = EXCLUDED.visibility,
			content_type = EXCLUDED.content_type`

	tags := record.Tags
	if tags == nil {
		tags = []string{}
	}

	_, err := r.db.Exec(ctx, query,
		record.ID, record.ExternalID, record.FileName, record.OwnerID,
		record.ContentHash, tags, record.SizeBytes, string(record.Visibility),
		record.ContentType, record.UploadedAt)
	if err != nil {
		return r.handlePostgresError("save file", err)
	}
	return nil
}

func (r *Repository) DeleteByID(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM files WHERE id = $1`, id)
	if err != nil {
		return r.handlePostgresError("delete file", err)
	}
	if tag.RowsAffected() == 0 {
		return filestore.ErrNotFound
	}
	return nil
}

func (r *Repository) FindByExternalID(ctx context.Context, externalID uuid.UUID) (*filestore.FileRecord, error) {
	query := `SELECT ` + selectColumns + ` FROM files WHERE external_id = $1`

	record, err := scanRecord(r.db.QueryRow(ctx, query, externalID))
	if err != nil {
		return nil, r.handlePostgresError("find file", err)
	}
	return record, nil
}

func (r *Repository) FindByOwner(ctx context.Context, ownerID string, page filestore.PageRequest) (*filestore.Page[*filestore.FileRecord], error) {
	return r.list(ctx, "list owner files", `owner_id = $1`, page, ownerID)
}

func (r *Repository) FindByOwnerAndTagsIn(ctx context.Context, ownerID string, tags []string, page filestore.PageRequest) (*filestore.Page[*filestore.FileRecord], error) {
	return r.list(ctx, "list owner files by tags", `owner_id = $1 AND tags && $2`, page, ownerID, tags)
}

func (r *Repository) FindAllPublic(ctx context.Context, page filestore.PageRequest) (*filestore.Page[*filestore.FileRecord], error) {
	return r.list(ctx, "list public files", `visibility = 'PUBLIC'`, page)
}

func (r *Repository) FindAllPublicByTagsIn(ctx context.Context, tags []string, page filestore.PageRequest) (*filestore.Page[*filestore.FileRecord], error) {
	return r.list(ctx, "list public files by tags", `visibility = 'PUBLIC' AND tags && $1`, page, tags)
}

func (r *Repository) list(ctx context.Context, operation, where string, page filestore.PageRequest, args ...interface{}) (*filestore.Page[*filestore.FileRecord], error) {
	page = page.WithDefaults()

	var total int64
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM files WHERE `+where, args...).Scan(&total); err != nil {
		return nil, r.handlePostgresError(operation, err)
	}

	query := fmt.Sprintf(`SELECT %s FROM files WHERE %s ORDER BY %s LIMIT %d OFFSET %d`,
		selectColumns, where, orderBy(page), page.Size, page.Offset())

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, r.handlePostgresError(operation, err)
	}
	defer rows.Close()

	records := make([]*filestore.FileRecord, 0, page.Size)
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, r.handlePostgresError(operation, err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, r.handlePostgresError(operation, err)
	}

	return filestore.NewPage(records, page, total), nil
}

func orderBy(page filestore.PageRequest) string {
	column, ok := sortColumns[page.SortBy]
	if !ok {
		column = sortColumns[filestore.SortByUploadDate]
	}
	dir := "DESC"
	if page.Ascending {
		dir = "ASC"
	}
	return fmt.Sprintf("%s %s, external_id %s", column, dir, dir)
}

func scanRecord(row pgx.Row) (*filestore.FileRecord, error) {
	var (
		record     filestore.FileRecord
		visibility string
	)
	err := row.Scan(
		&record.ID, &record.ExternalID, &record.FileName, &record.OwnerID,
		&record.ContentHash, &record.Tags, &record.SizeBytes, &visibility,
		&record.ContentType, &record.UploadedAt)
	if err != nil {
		return nil, err
	}
	record.Visibility = filestore.Visibility(visibility)
	record.UploadedAt = record.UploadedAt.UTC()
	return &record, nil
}
