package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/tendant/simple-filestore/pkg/filestore/config"
	"github.com/tendant/simple-filestore/pkg/filestore/scan"
)

// Usage: verify [-owner id] [-batch n] [-dry-run]. Backends come from the
// same environment the server reads.
func main() {
	owner := flag.String("owner", "", "verify the files of this owner instead of all public files")
	batch := flag.Int("batch", 0, "records per page (default and cap 50)")
	dryRun := flag.Bool("dry-run", false, "list the files that would be verified")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	backends, cleanup, err := cfg.BuildBackends(ctx, slog.Default())
	if err != nil {
		slog.Error("Failed to open backends", "error", err)
		os.Exit(1)
	}
	defer cleanup()

	result, err := verify(ctx, backends, *owner, *batch, *dryRun, slog.Default())
	if err != nil {
		slog.Error("Verification aborted", "error", err)
		os.Exit(1)
	}

	fmt.Printf("found=%d verified=%d failed=%d\n", result.TotalFound, result.TotalProcessed, result.TotalFailed)
	for _, id := range result.FailedIDs {
		fmt.Println("  failed:", id)
	}
	if result.TotalFailed > 0 {
		os.Exit(2)
	}
}

// verify re-hashes every listed blob against its stored metadata.
func verify(ctx context.Context, b *config.Backends, owner string, batch int, dryRun bool, logger *slog.Logger) (*scan.ScanResult, error) {
	list := scan.PublicFiles(b.Repository)
	if owner != "" {
		list = scan.OwnerFiles(b.Repository, owner)
	}

	return scan.New(logger).Scan(ctx, scan.ScanOptions{
		List:      list,
		Processor: scan.NewHashVerifier(b.BlobStore, b.Keys),
		BatchSize: batch,
		DryRun:    dryRun,
		OnProgress: func(processed, total int64) {
			logger.Info("verify progress", "processed", processed, "total", total)
		},
	})
}
