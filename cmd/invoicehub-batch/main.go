// invoicehub-batch drives the ingestion pipeline over a local directory of
// invoice PDFs, without the HTTP server. Useful for backfills and for
// reprocessing a folder after fixing the extraction service.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"invoicehub/constants"
	"invoicehub/internal/common"
	"invoicehub/internal/entity"
	"invoicehub/internal/extraction"
	"invoicehub/internal/pipeline"
	"invoicehub/internal/repository"
	"invoicehub/internal/services/ingest"
)

// printError prints an error message to stderr, falling back to stdout if stderr fails
func printError(format string, args ...interface{}) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		fmt.Printf(format, args...)
	}
}

func main() {
	var (
		dir      = flag.String("dir", "", "directory of invoice PDFs to process (required)")
		ownerStr = flag.String("owner", "", "owning user id, UUID (required)")
		inmem    = flag.Bool("inmem", false, "use an in-memory SQLite store")
	)
	flag.Parse()

	if *dir == "" {
		printError("Error: --dir is required\n")
		os.Exit(1)
	}
	owner, err := uuid.Parse(strings.TrimSpace(*ownerStr))
	if err != nil {
		printError("Error: --owner must be a UUID: %v\n", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg := common.LoadConfig()
	if !cfg.Extraction.Configured() {
		printError("Error: EXTRACTION_BASE_URL is not set\n")
		os.Exit(1)
	}
	// The CLI path submits smaller batches than the dashboard.
	cfg.Pipeline.BatchSize = 2

	path := cfg.Database.SQLitePath
	if *inmem {
		path = ":memory:"
	}
	repo, conn, err := repository.OpenSQLite(path, logger)
	if err != nil {
		printError("Error: open sqlite store: %v\n", err)
		os.Exit(1)
	}
	defer conn.Close()

	files, err := collectPDFs(*dir)
	if err != nil {
		printError("Error: %v\n", err)
		os.Exit(1)
	}
	if len(files) == 0 {
		fmt.Println("no PDF files found, nothing to do")
		return
	}

	client, err := extraction.NewClient(cfg.Extraction, logger)
	if err != nil {
		printError("Error: %v\n", err)
		os.Exit(1)
	}
	orch := pipeline.NewOrchestrator(client, cfg.Pipeline, cfg.Extraction.PerFileTimeout, logger)
	committer := pipeline.NewCommitter(repo, pipeline.NewResolver(repo, logger), logger)
	svc := ingest.NewService(client, orch, committer, cfg.Extraction, cfg.Pipeline, logger)

	report, err := svc.ProcessBatch(context.Background(), owner, files)
	if err != nil {
		printError("Error: ingestion did not start: %v\n", err)
		os.Exit(1)
	}

	for _, r := range report.Results {
		status := "failed"
		if r.Success {
			status = string(r.Commit.Status)
		}
		fmt.Printf("%-40s %s", r.Filename, status)
		if r.Error != "" {
			fmt.Printf("  (%s)", r.Error)
		}
		fmt.Println()
	}
	fmt.Printf("\n%d succeeded (%d new, %d updated), %d failed\n",
		report.Succeeded, report.Created, report.Updated, report.Failed)

	if report.Failed > 0 {
		os.Exit(1)
	}
}

func collectPDFs(dir string) ([]entity.UploadFile, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var out []entity.UploadFile
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := constants.NormalizeExt(filepath.Ext(e.Name()))
		if _, ok := constants.AllowedExtensions[ext]; !ok {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, err
		}
		out = append(out, entity.UploadFile{
			Filename:    e.Name(),
			ContentType: constants.PDFContentType,
			Size:        int64(len(data)),
			Data:        data,
		})
	}
	return out, nil
}
