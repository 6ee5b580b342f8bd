package filestore

import (
	"context"
	"log/slog"
)

// NoopEventSink is a no-operation implementation of EventSink
type NoopEventSink struct{}

// NewNoopEventSink creates a new no-operation event sink
func NewNoopEventSink() EventSink {
	return &NoopEventSink{}
}

func (n *NoopEventSink) FileUploaded(ctx context.Context, file *FileRecord) error { return nil }

func (n *NoopEventSink) FileRenamed(ctx context.Context, file *FileRecord, oldName string) error {
	return nil
}

func (n *NoopEventSink) FileDeleted(ctx context.Context, file *FileRecord) error { return nil }

func (n *NoopEventSink) FileDownloaded(ctx context.Context, file *FileRecord, requesterID string) error {
	return nil
}

// LoggingEventSink is an event sink that logs events but takes no other action
// Useful for development and debugging
type LoggingEventSink struct {
	logger *slog.Logger
}

// NewLoggingEventSink creates a new logging event sink. A nil logger uses
// slog.Default()
func NewLoggingEventSink(logger *slog.Logger) EventSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LoggingEventSink{logger: logger.With("component", "events")}
}

// FileUploaded logs the upload event
func (l *LoggingEventSink) FileUploaded(ctx context.Context, file *FileRecord) error {
	l.logger.InfoContext(ctx, "file uploaded",
		"file_id", file.ExternalID,
		"owner_id", file.OwnerID,
		"file_name", file.FileName,
		"content_type", file.ContentType,
		"size_bytes", file.SizeBytes,
	)
	return nil
}

// FileRenamed logs the rename event
func (l *LoggingEventSink) FileRenamed(ctx context.Context, file *FileRecord, oldName string) error {
	l.logger.InfoContext(ctx, "file renamed",
		"file_id", file.ExternalID,
		"old_name", oldName,
		"new_name", file.FileName,
	)
	return nil
}

// FileDeleted logs the delete event
func (l *LoggingEventSink) FileDeleted(ctx context.Context, file *FileRecord) error {
	l.logger.InfoContext(ctx, "file deleted", "file_id", file.ExternalID, "owner_id", file.OwnerID)
	return nil
}

// FileDownloaded logs the download event
func (l *LoggingEventSink) FileDownloaded(ctx context.Context, file *FileRecord, requesterID string) error {
	l.logger.DebugContext(ctx, "file downloaded", "file_id", file.ExternalID, "requester_id", requesterID)
	return nil
}
