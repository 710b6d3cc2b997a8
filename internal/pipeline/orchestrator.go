package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"invoicehub/constants"
	"invoicehub/internal/common"
	"invoicehub/internal/entity"
)

// BatchParser is the slice of the extraction client the orchestrator needs.
type BatchParser interface {
	ParseBatch(ctx context.Context, files []entity.UploadFile, timeout time.Duration) ([]entity.FileOutcome, error)
}

// Orchestrator partitions uploads into fixed-size batches and drives them
// through the extraction service in waves of bounded concurrency. One batch
// failing never aborts its siblings or later waves.
type Orchestrator struct {
	parser         BatchParser
	cfg            common.PipelineConfig
	perFileTimeout time.Duration
	logger         *slog.Logger
}

func NewOrchestrator(parser BatchParser, cfg common.PipelineConfig, perFileTimeout time.Duration, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		parser:         parser,
		cfg:            cfg,
		perFileTimeout: perFileTimeout,
		logger:         logger,
	}
}

// ProcessAll validates, partitions and extracts the files, returning one
// outcome per file in batch-schedule order. A validation failure rejects the
// entire submission before any network I/O; after that point errors only ever
// degrade to per-batch failure outcomes.
func (o *Orchestrator) ProcessAll(ctx context.Context, files []entity.UploadFile) (*entity.BatchReport, error) {
	if err := o.validate(files); err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return &entity.BatchReport{}, nil
	}

	start := time.Now()
	batches := partition(files, o.cfg.BatchSize)
	results := make([][]entity.FileOutcome, len(batches))

	// Waves: up to WaveConcurrency batches in flight; the next wave does not
	// start until every batch in the current one has settled.
	for waveStart := 0; waveStart < len(batches); waveStart += o.cfg.WaveConcurrency {
		waveEnd := waveStart + o.cfg.WaveConcurrency
		if waveEnd > len(batches) {
			waveEnd = len(batches)
		}

		var wg sync.WaitGroup
		for i := waveStart; i < waveEnd; i++ {
			wg.Add(1)
			go func(idx int) {
				defer wg.Done()
				results[idx] = o.runBatch(ctx, idx, batches[idx])
			}(i)
		}
		wg.Wait()
	}

	report := &entity.BatchReport{TotalTime: time.Since(start)}
	for _, outcomes := range results {
		for _, out := range outcomes {
			report.Outcomes = append(report.Outcomes, out)
			if out.Success {
				report.Succeeded++
			} else {
				report.Failed++
			}
		}
	}
	if n := len(report.Outcomes); n > 0 {
		report.AvgTime = report.TotalTime / time.Duration(n)
	}

	o.logger.Info("orchestrator.run_complete",
		"files", len(files),
		"batches", len(batches),
		"succeeded", report.Succeeded,
		"failed", report.Failed,
		"elapsed_ms", report.TotalTime.Milliseconds(),
	)
	return report, nil
}

func (o *Orchestrator) runBatch(ctx context.Context, idx int, batch []entity.UploadFile) []entity.FileOutcome {
	// Timeout scales with batch size so a full batch is not held to a
	// single-document budget.
	timeout := o.perFileTimeout * time.Duration(len(batch))

	outcomes, err := o.parser.ParseBatch(ctx, batch, timeout)
	if err != nil {
		o.logger.Warn("orchestrator.batch_failed", "batch", idx, "files", len(batch), "error", err)
		// The whole call failed: every file in the batch gets a synthetic
		// failure outcome carrying the reason, and siblings keep going.
		outcomes = make([]entity.FileOutcome, len(batch))
		for i, f := range batch {
			outcomes[i] = entity.FileOutcome{Filename: f.Filename, Error: err.Error()}
		}
		return outcomes
	}

	o.logger.Info("orchestrator.batch_ok", "batch", idx, "files", len(batch))
	return outcomes
}

// validate enforces the submission preconditions for the whole set before any
// batch is sent. No partial submission of an invalid set.
func (o *Orchestrator) validate(files []entity.UploadFile) error {
	return ValidateFiles(files, o.cfg.MaxFileSize)
}

// ValidateFiles checks every file's content type and size against the
// submission preconditions. Any violation rejects the whole set.
func ValidateFiles(files []entity.UploadFile, maxSize int64) error {
	for _, f := range files {
		if f.ContentType != constants.PDFContentType {
			return common.NewAppError("VALIDATION_ERROR",
				fmt.Sprintf("%s: content type %q is not %s", f.Filename, f.ContentType, constants.PDFContentType),
				common.ErrValidation)
		}
		if f.Size > maxSize {
			return common.NewAppError("VALIDATION_ERROR",
				fmt.Sprintf("%s: size %d exceeds limit of %d bytes", f.Filename, f.Size, maxSize),
				common.ErrValidation)
		}
	}
	return nil
}

func partition(files []entity.UploadFile, size int) [][]entity.UploadFile {
	if size < 1 {
		size = 1
	}
	var out [][]entity.UploadFile
	for i := 0; i < len(files); i += size {
		end := i + size
		if end > len(files) {
			end = len(files)
		}
		out = append(out, files[i:end])
	}
	return out
}
