// Package scan walks stored file records in pages and hands each one to a
// processor, e.g. to audit blob integrity.
package scan

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/tendant/simple-filestore/pkg/filestore"
)

// Lister fetches one page of records. PublicFiles and OwnerFiles build
// listers over a Repository.
type Lister func(ctx context.Context, page filestore.PageRequest) (*filestore.Page[*filestore.FileRecord], error)

// PublicFiles lists every PUBLIC record
func PublicFiles(repo filestore.Repository) Lister {
	return repo.FindAllPublic
}

// OwnerFiles lists every record of ownerID
func OwnerFiles(repo filestore.Repository, ownerID string) Lister {
	return func(ctx context.Context, page filestore.PageRequest) (*filestore.Page[*filestore.FileRecord], error) {
		return repo.FindByOwner(ctx, ownerID, page)
	}
}

// Scanner pages through records and processes them.
type Scanner struct {
	logger *slog.Logger
}

// New creates a new Scanner. A nil logger uses slog.Default.
func New(logger *slog.Logger) *Scanner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scanner{logger: logger.With("component", "scan")}
}

// ScanOptions configures the scan operation.
type ScanOptions struct {
	// List supplies the records to scan (required)
	List Lister

	// Processor defines the processing logic (required unless DryRun is true)
	Processor FileProcessor

	// BatchSize controls how many records to query at once (default and cap: filestore.MaxPageSize)
	BatchSize int

	// DryRun if true, only reports what would be processed
	DryRun bool

	// OnProgress is called after each batch is processed (optional)
	OnProgress func(processed, total int64)
}

// ScanResult contains statistics about the scan operation.
type ScanResult struct {
	TotalFound     int64
	TotalProcessed int64
	TotalFailed    int64

	// FailedIDs contains the external ids of records that failed processing
	FailedIDs []string
}

// Scan lists records oldest first and processes each one. A failing record
// is recorded and scanning continues with the next.
func (s *Scanner) Scan(ctx context.Context, opts ScanOptions) (*ScanResult, error) {
	result := &ScanResult{}

	if opts.List == nil {
		return result, fmt.Errorf("lister is required")
	}
	if !opts.DryRun && opts.Processor == nil {
		return result, fmt.Errorf("processor is required when DryRun is false")
	}
	if opts.BatchSize <= 0 || opts.BatchSize > filestore.MaxPageSize {
		opts.BatchSize = filestore.MaxPageSize
	}

	page := filestore.PageRequest{
		Page:      0,
		Size:      opts.BatchSize,
		SortBy:    filestore.SortByUploadDate,
		Ascending: true,
	}
	for {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		resp, err := opts.List(ctx, page)
		if err != nil {
			return result, fmt.Errorf("failed to list files: %w", err)
		}
		if len(resp.Items) == 0 {
			break
		}

		result.TotalFound += int64(len(resp.Items))

		for _, record := range resp.Items {
			if opts.DryRun {
				s.logger.InfoContext(ctx, "dry run: would process file",
					"file_id", record.ExternalID, "owner_id", record.OwnerID, "file_name", record.FileName)
				result.TotalProcessed++
				continue
			}

			if err := opts.Processor.Process(ctx, record); err != nil {
				result.TotalFailed++
				result.FailedIDs = append(result.FailedIDs, record.ExternalID.String())
				s.logger.WarnContext(ctx, "failed to process file", "file_id", record.ExternalID, "error", err)
				continue
			}

			result.TotalProcessed++
		}

		if opts.OnProgress != nil {
			opts.OnProgress(result.TotalProcessed+result.TotalFailed, resp.TotalItems)
		}

		if page.Page+1 >= resp.TotalPages {
			break
		}
		page.Page++
	}

	return result, nil
}

// ForEach processes each listed record with fn.
func (s *Scanner) ForEach(ctx context.Context, list Lister, fn func(context.Context, *filestore.FileRecord) error) (*ScanResult, error) {
	return s.Scan(ctx, ScanOptions{
		List:      list,
		Processor: ProcessorFunc(fn),
	})
}
